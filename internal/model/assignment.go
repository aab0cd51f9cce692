package model

import "time"

// Status is the lifecycle state of an exam assignment.
type Status string

const (
	// StatusPending is the initial state: issued but not started.
	StatusPending Status = "pending"
	// StatusInProgress means the candidate has started the exam.
	StatusInProgress Status = "in_progress"
	// StatusCompleted is terminal: the final submission was received.
	StatusCompleted Status = "completed"
	// StatusExpired is terminal: the window ended before completion.
	StatusExpired Status = "expired"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusExpired
}

// Window bounds when an attempt may be taken. Either side may be open.
type Window struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// Ended reports whether the window has an end bound that now is past.
func (w *Window) Ended(now time.Time) bool {
	return w != nil && w.End != nil && now.After(*w.End)
}

// NotYetOpen reports whether the window has a start bound still in the future.
func (w *Window) NotYetOpen(now time.Time) bool {
	return w != nil && w.Start != nil && now.Before(*w.Start)
}

// ExamAssignment is one candidate's attempt at one exam.
type ExamAssignment struct {
	ID            string      `json:"id"`
	CandidateCode string      `json:"candidate_code"`
	StudentRef    string      `json:"student_ref"`
	ExamRef       string      `json:"exam_ref"`
	TenantRef     string      `json:"tenant_ref"`
	IssuedByRef   string      `json:"issued_by_ref"`
	Window        *Window     `json:"window,omitempty"`
	Status        Status      `json:"status"`
	Answers       Answers     `json:"answers"`
	FinalScores   FinalScores `json:"final_scores"`
	StartedAt     *time.Time  `json:"started_at,omitempty"`
	CompletedAt   *time.Time  `json:"completed_at,omitempty"`
	Notes         string      `json:"notes,omitempty"`
	Active        bool        `json:"active"`
	Version       int64       `json:"version"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// ExpireIfDue moves a pending or in-progress assignment to expired once its
// window end has passed. It reports whether the status changed.
func (a *ExamAssignment) ExpireIfDue(now time.Time) bool {
	if a.Status.Terminal() || !a.Window.Ended(now) {
		return false
	}
	a.Status = StatusExpired
	return true
}

// checkOpen applies the guards shared by Start and Submit.
func (a *ExamAssignment) checkOpen(now time.Time) error {
	a.ExpireIfDue(now)
	switch a.Status {
	case StatusCompleted:
		return ErrAlreadyCompleted
	case StatusExpired:
		return ErrExpired
	}
	if a.Window.NotYetOpen(now) {
		return ErrWindowNotOpen
	}
	return nil
}

// Start moves the assignment to in_progress. Starting twice is a no-op.
func (a *ExamAssignment) Start(now time.Time) error {
	if err := a.checkOpen(now); err != nil {
		return err
	}
	if a.Status == StatusInProgress {
		return nil
	}
	a.Status = StatusInProgress
	a.StartedAt = &now
	return nil
}

// CanMutate reports whether answers may still change.
func (a *ExamAssignment) CanMutate() bool {
	return !a.Status.Terminal()
}

// SaveSection replaces the stored payload of one section.
func (a *ExamAssignment) SaveSection(now time.Time, answers SectionAnswers) error {
	a.ExpireIfDue(now)
	if !a.CanMutate() {
		return ErrSessionClosed
	}
	return a.Answers.Replace(answers)
}

// Submit completes the assignment. A non-nil final replaces all answers.
func (a *ExamAssignment) Submit(now time.Time, final *Answers) error {
	if err := a.checkOpen(now); err != nil {
		return err
	}
	if final != nil {
		a.Answers = *final
	}
	if a.StartedAt == nil {
		a.StartedAt = &now
	}
	a.Status = StatusCompleted
	a.CompletedAt = &now
	return nil
}
