package session

import (
	"context"
	"time"

	"github.com/codexuz/crm-cd-platform-sub000/internal/grading"
	"github.com/codexuz/crm-cd-platform-sub000/internal/model"
)

// WritingGrade is the examiner's input for the writing section.
type WritingGrade struct {
	Task1    *float64
	Task2    *float64
	Feedback string
}

// AutoScores is the outcome of ScoreAll. A section without answers is nil.
type AutoScores struct {
	Listening *model.SectionScore `json:"listening,omitempty"`
	Reading   *model.SectionScore `json:"reading,omitempty"`
}

func sectionScore(r grading.Result, now time.Time) *model.SectionScore {
	return &model.SectionScore{
		CorrectCount:   r.Correct,
		IncorrectCount: r.Incorrect,
		TotalQuestions: r.Total,
		BandScore:      r.Band,
		GradedAt:       now,
	}
}

func (s *Service) gradeListening(ctx context.Context, a *model.ExamAssignment, now time.Time) error {
	if a.Answers.Listening == nil {
		return model.ErrNoAnswersSubmitted
	}
	c, err := s.content.ExamContent(ctx, a.ExamRef)
	if err != nil {
		return err
	}
	key, err := grading.ResolveListening(c.Listening)
	if err != nil {
		return err
	}
	a.FinalScores.Listening = sectionScore(grading.ScoreListening(key, a.Answers.Listening), now)
	return nil
}

func (s *Service) gradeReading(ctx context.Context, a *model.ExamAssignment, now time.Time) error {
	if a.Answers.Reading == nil {
		return model.ErrNoAnswersSubmitted
	}
	c, err := s.content.ExamContent(ctx, a.ExamRef)
	if err != nil {
		return err
	}
	key, err := grading.ResolveReading(c.Reading)
	if err != nil {
		return err
	}
	a.FinalScores.Reading = sectionScore(grading.ScoreReading(key, a.Answers.Reading), now)
	return nil
}

// ScoreListening grades the listening answers and stores the result.
func (s *Service) ScoreListening(ctx context.Context, code string) (model.SectionScore, error) {
	a, err := s.mutate(ctx, code, func(a *model.ExamAssignment, now time.Time) error {
		return s.gradeListening(ctx, a, now)
	})
	if err != nil {
		return model.SectionScore{}, err
	}
	s.log.Info("listening scored", "id", a.ID, "band", a.FinalScores.Listening.BandScore)
	return *a.FinalScores.Listening, nil
}

// ScoreReading grades the reading answers and stores the result.
func (s *Service) ScoreReading(ctx context.Context, code string) (model.SectionScore, error) {
	a, err := s.mutate(ctx, code, func(a *model.ExamAssignment, now time.Time) error {
		return s.gradeReading(ctx, a, now)
	})
	if err != nil {
		return model.SectionScore{}, err
	}
	s.log.Info("reading scored", "id", a.ID, "band", a.FinalScores.Reading.BandScore)
	return *a.FinalScores.Reading, nil
}

// ScoreAll grades listening and reading in one write. Writing needs an
// examiner and is never included. A section without answers is skipped.
func (s *Service) ScoreAll(ctx context.Context, code string) (AutoScores, error) {
	a, err := s.mutate(ctx, code, func(a *model.ExamAssignment, now time.Time) error {
		if a.Answers.Listening == nil && a.Answers.Reading == nil {
			return model.ErrNoAnswersSubmitted
		}
		if a.Answers.Listening != nil {
			if err := s.gradeListening(ctx, a, now); err != nil {
				return err
			}
		}
		if a.Answers.Reading != nil {
			if err := s.gradeReading(ctx, a, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return AutoScores{}, err
	}
	var out AutoScores
	if a.Answers.Listening != nil {
		out.Listening = a.FinalScores.Listening
	}
	if a.Answers.Reading != nil {
		out.Reading = a.FinalScores.Reading
	}
	return out, nil
}

// ScoreWriting stores the examiner's writing scores. The aggregate is set
// only when both task scores are given. Empty feedback is drafted when a
// drafter is configured.
func (s *Service) ScoreWriting(ctx context.Context, code string, g WritingGrade) (model.WritingScore, error) {
	for _, sc := range []*float64{g.Task1, g.Task2} {
		if sc == nil {
			continue
		}
		if err := grading.ValidateTaskScore(*sc); err != nil {
			return model.WritingScore{}, err
		}
	}

	if g.Feedback == "" && s.drafter != nil {
		cur, err := s.load(ctx, code)
		if err != nil {
			return model.WritingScore{}, err
		}
		if cur.Answers.Writing != nil {
			draft, err := s.drafter.DraftFeedback(ctx, *cur.Answers.Writing, g.Task1, g.Task2)
			if err != nil {
				s.log.Warn("writing feedback draft failed", "id", cur.ID, "error", err)
			} else {
				g.Feedback = draft
			}
		}
	}

	a, err := s.mutate(ctx, code, func(a *model.ExamAssignment, now time.Time) error {
		if a.Answers.Writing == nil {
			return model.ErrNoAnswersSubmitted
		}
		ws := &model.WritingScore{
			Task1Score: g.Task1,
			Task2Score: g.Task2,
			Feedback:   g.Feedback,
			GradedAt:   now,
		}
		if g.Task1 != nil && g.Task2 != nil {
			agg := grading.WritingAggregate(*g.Task1, *g.Task2)
			ws.AggregateScore = &agg
		}
		a.FinalScores.Writing = ws
		return nil
	})
	if err != nil {
		return model.WritingScore{}, err
	}
	s.log.Info("writing scored", "id", a.ID)
	return *a.FinalScores.Writing, nil
}
