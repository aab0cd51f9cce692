package model

import "time"

// SectionScore is the frozen result of an automatically graded section.
type SectionScore struct {
	CorrectCount   int       `json:"correct_count"`
	IncorrectCount int       `json:"incorrect_count"`
	TotalQuestions int       `json:"total_questions"`
	BandScore      float64   `json:"band_score"`
	GradedAt       time.Time `json:"graded_at"`
}

// WritingScore is the frozen result of a human-graded writing section.
type WritingScore struct {
	Task1Score     *float64  `json:"task1_score,omitempty"`
	Task2Score     *float64  `json:"task2_score,omitempty"`
	AggregateScore *float64  `json:"aggregate_score,omitempty"`
	Feedback       string    `json:"feedback,omitempty"`
	GradedAt       time.Time `json:"graded_at"`
}

// FinalScores holds the latest result per section. Re-grading overwrites.
type FinalScores struct {
	Listening *SectionScore `json:"listening,omitempty"`
	Reading   *SectionScore `json:"reading,omitempty"`
	Writing   *WritingScore `json:"writing,omitempty"`
}
