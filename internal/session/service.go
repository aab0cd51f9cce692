// Package session runs the exam assignment lifecycle: issuing candidate
// codes, starting, saving, submitting and scoring attempts.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/codexuz/crm-cd-platform-sub000/internal/candidate"
	"github.com/codexuz/crm-cd-platform-sub000/internal/content"
	"github.com/codexuz/crm-cd-platform-sub000/internal/model"
)

// Repository persists assignments. Insert reports a taken candidate code as
// model.ErrDuplicateCode; Update is a compare-and-swap on Version and
// reports a stale write as model.ErrConflict.
type Repository interface {
	Insert(ctx context.Context, a *model.ExamAssignment) error
	GetByCode(ctx context.Context, code string) (model.ExamAssignment, error)
	Update(ctx context.Context, a *model.ExamAssignment) error
	ListByExam(ctx context.Context, examRef string) ([]model.ExamAssignment, error)
}

// Locker serializes work on one key. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// Notifier is told about new assignments. Failures never fail creation.
type Notifier interface {
	AssignmentCreated(ctx context.Context, a model.ExamAssignment) error
}

// FeedbackDrafter proposes examiner feedback for a writing submission.
type FeedbackDrafter interface {
	DraftFeedback(ctx context.Context, essay model.WritingAnswers, task1, task2 *float64) (string, error)
}

const (
	defaultMaxCodeAttempts = 100
	defaultConflictRetries = 3
)

type config struct {
	now             func() time.Time
	newCode         func() (string, error)
	maxCodeAttempts int
	conflictRetries int
	locker          Locker
	notifier        Notifier
	drafter         FeedbackDrafter
	log             *slog.Logger
}

type Option func(*config)

func WithClock(now func() time.Time) Option             { return func(c *config) { c.now = now } }
func WithCodeGenerator(g func() (string, error)) Option { return func(c *config) { c.newCode = g } }
func WithMaxCodeAttempts(n int) Option                  { return func(c *config) { c.maxCodeAttempts = n } }
func WithConflictRetries(n int) Option                  { return func(c *config) { c.conflictRetries = n } }
func WithLocker(l Locker) Option                        { return func(c *config) { c.locker = l } }
func WithNotifier(n Notifier) Option                    { return func(c *config) { c.notifier = n } }
func WithDrafter(d FeedbackDrafter) Option              { return func(c *config) { c.drafter = d } }
func WithLogger(l *slog.Logger) Option                  { return func(c *config) { c.log = l } }

type Service struct {
	repo    Repository
	content content.Provider
	config
}

// New builds a service over repo. Scoring reads keys from provider.
func New(repo Repository, provider content.Provider, opts ...Option) *Service {
	cfg := config{
		now:             time.Now,
		newCode:         candidate.Generate,
		maxCodeAttempts: defaultMaxCodeAttempts,
		conflictRetries: defaultConflictRetries,
		log:             slog.Default(),
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.locker == nil {
		cfg.locker = NewMemoryLocker()
	}
	if cfg.notifier == nil {
		cfg.notifier = NewLogNotifier(cfg.log)
	}
	return &Service{repo: repo, content: provider, config: cfg}
}

// CreateParams describes a new assignment.
type CreateParams struct {
	StudentRef  string
	ExamRef     string
	TenantRef   string
	IssuedByRef string
	Window      *model.Window
	Notes       string
}

// Create issues a pending assignment under a fresh candidate code.
func (s *Service) Create(ctx context.Context, p CreateParams) (model.ExamAssignment, error) {
	if p.StudentRef == "" || p.ExamRef == "" {
		return model.ExamAssignment{}, model.ErrMissingReference
	}
	if w := p.Window; w != nil && w.Start != nil && w.End != nil && w.End.Before(*w.Start) {
		return model.ExamAssignment{}, model.ErrInvalidWindow
	}
	if w := p.Window; w != nil && w.Start == nil && w.End == nil {
		p.Window = nil
	}

	now := s.now().UTC()
	for attempt := 1; attempt <= s.maxCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return model.ExamAssignment{}, err
		}
		a := model.ExamAssignment{
			ID:            uuid.NewString(),
			CandidateCode: code,
			StudentRef:    p.StudentRef,
			ExamRef:       p.ExamRef,
			TenantRef:     p.TenantRef,
			IssuedByRef:   p.IssuedByRef,
			Window:        p.Window,
			Status:        model.StatusPending,
			Notes:         p.Notes,
			Active:        true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		err = s.repo.Insert(ctx, &a)
		if errors.Is(err, model.ErrDuplicateCode) {
			s.log.Debug("candidate code collision", "attempt", attempt)
			continue
		}
		if err != nil {
			return model.ExamAssignment{}, err
		}
		s.log.Info("assignment created", "id", a.ID, "exam", a.ExamRef, "student", a.StudentRef)
		if err := s.notifier.AssignmentCreated(ctx, a); err != nil {
			s.log.Warn("assignment notification failed", "id", a.ID, "error", err)
		}
		return a, nil
	}
	return model.ExamAssignment{}, fmt.Errorf("%w after %d attempts", model.ErrCodeSpaceExhausted, s.maxCodeAttempts)
}

// load returns the active assignment for code.
func (s *Service) load(ctx context.Context, code string) (model.ExamAssignment, error) {
	if !candidate.Valid(code) {
		return model.ExamAssignment{}, model.ErrNotFound
	}
	a, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return model.ExamAssignment{}, err
	}
	if !a.Active {
		return model.ExamAssignment{}, model.ErrNotFound
	}
	return a, nil
}

// mutate loads the assignment under its lock, applies lazy expiry and fn,
// and persists the result. An expiry is persisted even when fn fails, and
// fn's error is returned afterwards.
func (s *Service) mutate(ctx context.Context, code string, fn func(a *model.ExamAssignment, now time.Time) error) (model.ExamAssignment, error) {
	if !candidate.Valid(code) {
		return model.ExamAssignment{}, model.ErrNotFound
	}
	unlock, err := s.locker.Lock(ctx, code)
	if err != nil {
		return model.ExamAssignment{}, fmt.Errorf("lock assignment: %w", err)
	}
	defer unlock()

	for attempt := 0; ; attempt++ {
		a, err := s.load(ctx, code)
		if err != nil {
			return model.ExamAssignment{}, err
		}
		now := s.now().UTC()
		expired := a.ExpireIfDue(now)
		snapshot := a

		fnErr := fn(&a, now)
		if fnErr != nil {
			if !expired {
				return a, fnErr
			}
			a = snapshot
		}
		a.UpdatedAt = now
		err = s.repo.Update(ctx, &a)
		if errors.Is(err, model.ErrConflict) && attempt < s.conflictRetries {
			s.log.Debug("assignment changed underneath, retrying", "code", code, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return model.ExamAssignment{}, err
		}
		if expired {
			s.log.Info("assignment expired", "id", a.ID)
		}
		return a, fnErr
	}
}

// Fetch returns the active assignment for code, persisting a lazy expiry
// first when the window has ended.
func (s *Service) Fetch(ctx context.Context, code string) (model.ExamAssignment, error) {
	a, err := s.load(ctx, code)
	if err != nil {
		return model.ExamAssignment{}, err
	}
	if !a.ExpireIfDue(s.now().UTC()) {
		return a, nil
	}
	return s.mutate(ctx, code, func(*model.ExamAssignment, time.Time) error { return nil })
}

// Start moves the assignment to in_progress.
func (s *Service) Start(ctx context.Context, code string) (model.ExamAssignment, error) {
	a, err := s.mutate(ctx, code, func(a *model.ExamAssignment, now time.Time) error {
		return a.Start(now)
	})
	if err == nil {
		s.log.Info("exam started", "id", a.ID)
	}
	return a, err
}

// SaveSectionProgress replaces the stored payload of one section.
func (s *Service) SaveSectionProgress(ctx context.Context, code string, answers model.SectionAnswers) error {
	_, err := s.mutate(ctx, code, func(a *model.ExamAssignment, now time.Time) error {
		return a.SaveSection(now, answers)
	})
	return err
}

// Submit completes the assignment. A non-nil final replaces every section.
func (s *Service) Submit(ctx context.Context, code string, final *model.Answers) (model.ExamAssignment, error) {
	a, err := s.mutate(ctx, code, func(a *model.ExamAssignment, now time.Time) error {
		return a.Submit(now, final)
	})
	if err == nil {
		s.log.Info("exam submitted", "id", a.ID)
	}
	return a, err
}

// Deactivate soft-deletes the assignment. It no longer resolves afterwards.
func (s *Service) Deactivate(ctx context.Context, code string) error {
	a, err := s.mutate(ctx, code, func(a *model.ExamAssignment, _ time.Time) error {
		a.Active = false
		return nil
	})
	if err == nil {
		s.log.Info("assignment deactivated", "id", a.ID)
	}
	return err
}

// ListByExam returns the active assignments of an exam with expiry applied
// to the returned copies.
func (s *Service) ListByExam(ctx context.Context, examRef string) ([]model.ExamAssignment, error) {
	all, err := s.repo.ListByExam(ctx, examRef)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	list := make([]model.ExamAssignment, 0, len(all))
	for _, a := range all {
		if !a.Active {
			continue
		}
		a.ExpireIfDue(now)
		list = append(list, a)
	}
	return list, nil
}
