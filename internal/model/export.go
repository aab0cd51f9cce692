package model

import "time"

// ExamExport is the top-level JSON structure for exam result export.
type ExamExport struct {
	ExamRef    string            `json:"exam_ref"`
	ExportedAt time.Time         `json:"exported_at"`
	Results    []CandidateResult `json:"results"`
}

// CandidateResult holds one assignment's outcome for export.
type CandidateResult struct {
	CandidateCode string        `json:"candidate_code"`
	StudentRef    string        `json:"student_ref"`
	Status        Status        `json:"status"`
	StartedAt     *time.Time    `json:"started_at,omitempty"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	Listening     *SectionScore `json:"listening,omitempty"`
	Reading       *SectionScore `json:"reading,omitempty"`
	Writing       *WritingScore `json:"writing,omitempty"`
}

// ResultOf builds the export row for a.
func ResultOf(a ExamAssignment) CandidateResult {
	return CandidateResult{
		CandidateCode: a.CandidateCode,
		StudentRef:    a.StudentRef,
		Status:        a.Status,
		StartedAt:     a.StartedAt,
		CompletedAt:   a.CompletedAt,
		Listening:     a.FinalScores.Listening,
		Reading:       a.FinalScores.Reading,
		Writing:       a.FinalScores.Writing,
	}
}
