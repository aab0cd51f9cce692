package model

import "errors"

// Lifecycle and grading errors. They describe legitimate state and are
// surfaced to callers as-is.
var (
	ErrNotFound           = errors.New("exam assignment not found")
	ErrAlreadyCompleted   = errors.New("exam already completed")
	ErrExpired            = errors.New("exam window has expired")
	ErrSessionClosed      = errors.New("exam session is closed")
	ErrNoAnswersSubmitted = errors.New("no answers submitted for section")
	ErrCodeSpaceExhausted = errors.New("could not allocate a unique candidate code")
	ErrWindowNotOpen      = errors.New("exam window has not opened yet")
	ErrInvalidWindow      = errors.New("exam window ends before it starts")
	ErrInvalidScore       = errors.New("task score must be between 0 and 9")
	ErrInconsistentKey    = errors.New("answer key numbering is inconsistent")
	ErrUnknownSection     = errors.New("unknown exam section")
	ErrUnknownExam        = errors.New("no content for exam")
	ErrMissingReference   = errors.New("student and exam references are required")
)

// Storage errors shared by every repository backend.
var (
	ErrDuplicateCode = errors.New("candidate code already in use")
	ErrConflict      = errors.New("exam assignment was modified concurrently")
)
