// Package grading resolves answer keys and scores listening, reading and
// writing sections.
package grading

import (
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cast"

	"github.com/codexuz/crm-cd-platform-sub000/internal/model"
)

// Normalize converts v to its comparison form: stringified, trimmed, lowercased.
func Normalize(v any) string {
	return strings.ToLower(strings.TrimSpace(cast.ToString(v)))
}

// Matches reports whether a submitted value satisfies an accepted one.
//
// A scalar submission matches if it equals any accepted alternative. A list
// submission must have the same length as the accepted list and every element
// must equal some accepted item. Blank submissions never match.
func Matches(submitted, accepted model.Value) bool {
	if submitted.Blank() || accepted.Blank() {
		return false
	}
	want := lo.Map(accepted.Items, func(s string, _ int) string { return Normalize(s) })
	if !submitted.List {
		return lo.Contains(want, Normalize(submitted.Items[0]))
	}
	if len(submitted.Items) != len(accepted.Items) {
		return false
	}
	return lo.EveryBy(submitted.Items, func(s string) bool {
		n := Normalize(s)
		return n != "" && lo.Contains(want, n)
	})
}
