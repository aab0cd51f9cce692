package grading

import (
	"sort"

	"github.com/samber/lo"

	"github.com/codexuz/crm-cd-platform-sub000/internal/model"
)

// Result is the raw outcome of scoring one automatically graded section.
type Result struct {
	Correct   int
	Incorrect int
	Total     int
	Band      float64
}

func newResult(correct, total int) Result {
	return Result{
		Correct:   correct,
		Incorrect: total - correct,
		Total:     total,
		Band:      BandScore(correct),
	}
}

// ScoreListening grades listening answers against key. Every key slot counts
// toward the total; unanswered slots are incorrect.
func ScoreListening(key Key, answers model.ListeningAnswers) Result {
	correct := 0
	for _, s := range key.slots {
		if v, ok := lookupListening(answers[s.PartID], s.Number); ok && Matches(v, s.Accepted) {
			correct++
		}
	}
	return newResult(correct, len(key.slots))
}

// lookupListening finds a question number among a part's containers. When
// more than one container holds it, the lowest container id wins.
func lookupListening(part map[string]map[string]model.Value, number int) (model.Value, bool) {
	ids := lo.Keys(part)
	sort.Strings(ids)
	for _, id := range ids {
		for raw, v := range part[id] {
			if n, err := parseNumber("", raw); err == nil && n == number {
				return v, true
			}
		}
	}
	return model.Value{}, false
}

// FlattenReading lays the candidate's positional arrays out in key container
// order. Index i holds the answer to question i+1. A container with a declared
// range always occupies exactly that many positions.
func FlattenReading(key Key, answers model.ReadingAnswers) []model.Value {
	var flat []model.Value
	for _, ref := range key.layout {
		submitted := answers[ref.PartID][ref.Container.ID]
		n := ref.Container.Slots()
		if n == 0 {
			flat = append(flat, submitted...)
			continue
		}
		for i := 0; i < n; i++ {
			if i < len(submitted) {
				flat = append(flat, submitted[i])
			} else {
				flat = append(flat, model.Value{})
			}
		}
	}
	return flat
}

// ScoreReading grades reading answers against key using positional numbering.
func ScoreReading(key Key, answers model.ReadingAnswers) Result {
	flat := FlattenReading(key, answers)
	correct := 0
	for _, s := range key.slots {
		if s.Number <= len(flat) && Matches(flat[s.Number-1], s.Accepted) {
			correct++
		}
	}
	return newResult(correct, len(key.slots))
}
