package handler

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/codexuz/crm-cd-platform-sub000/internal/candidate"
	appI18n "github.com/codexuz/crm-cd-platform-sub000/internal/i18n"
	"github.com/codexuz/crm-cd-platform-sub000/internal/model"
)

const (
	jwtIssuer   = "examcore"
	jwtAudience = "candidate"
)

type tokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func newTokenIssuer(secret string, ttl time.Duration) *tokenIssuer {
	return &tokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a bearer token whose subject is the candidate code.
func (t *tokenIssuer) Issue(code string) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    jwtIssuer,
		Subject:   code,
		Audience:  jwt.ClaimStrings{jwtAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return s, exp, nil
}

// Parse validates a token and returns its candidate code.
func (t *tokenIssuer) Parse(raw string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(jwtIssuer),
		jwt.WithAudience(jwtAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errUnauthorized, err)
	}
	if !candidate.Valid(claims.Subject) {
		return "", fmt.Errorf("%w: bad subject", errUnauthorized)
	}
	return claims.Subject, nil
}

// requireCandidate authenticates the bearer token and stores the candidate
// code in the request context.
func (h *Handler) requireCandidate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeError(w, r, errUnauthorized, nil)
			return
		}
		code, err := h.tokens.Parse(raw)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(model.ContextWithCandidate(r.Context(), code)))
	})
}

// requireAdmin checks HTTP Basic credentials against the configured bcrypt
// hash.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(h.config.AdminUser)) == 1
		if !ok || !userOK ||
			bcrypt.CompareHashAndPassword([]byte(h.config.AdminPasswordHash), []byte(pass)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="examcore admin"`)
			writeJSON(w, http.StatusUnauthorized, errorBody{Code: "Unauthorized", Message: appI18n.T(r.Context(), "Unauthorized")})
			return
		}
		next.ServeHTTP(w, r)
	})
}
