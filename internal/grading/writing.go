package grading

import (
	"fmt"
	"math"

	"github.com/codexuz/crm-cd-platform-sub000/internal/model"
)

const (
	minTaskScore = 0
	maxTaskScore = 9
	roundingEps  = 1e-9
)

// ValidateTaskScore checks a human-supplied writing task score.
func ValidateTaskScore(s float64) error {
	if math.IsNaN(s) || s < minTaskScore || s > maxTaskScore {
		return fmt.Errorf("%w: %v", model.ErrInvalidScore, s)
	}
	return nil
}

// WritingAggregate weights task 2 double and rounds to the nearest half band:
// a fraction below .25 rounds down, below .75 becomes .5, otherwise rounds up.
func WritingAggregate(task1, task2 float64) float64 {
	return RoundHalfBand((task1 + 2*task2) / 3)
}

// RoundHalfBand applies the half-band rounding rule to a weighted score.
func RoundHalfBand(w float64) float64 {
	whole := math.Floor(w)
	frac := w - whole
	switch {
	case frac+roundingEps < 0.25:
		return whole
	case frac+roundingEps < 0.75:
		return whole + 0.5
	default:
		return whole + 1
	}
}
