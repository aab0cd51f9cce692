package model

import "context"

type candidateCtxKey struct{}

// ContextWithCandidate stores the authenticated candidate code in ctx.
func ContextWithCandidate(ctx context.Context, code string) context.Context {
	return context.WithValue(ctx, candidateCtxKey{}, code)
}

// CandidateFromContext returns the candidate code, or "" if unauthenticated.
func CandidateFromContext(ctx context.Context) string {
	c, _ := ctx.Value(candidateCtxKey{}).(string)
	return c
}
