package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/codexuz/crm-cd-platform-sub000/internal/content"
	"github.com/codexuz/crm-cd-platform-sub000/internal/model"
	"github.com/codexuz/crm-cd-platform-sub000/internal/store"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

var quietLog = slog.New(slog.NewTextHandler(io.Discard, nil))

func answersFor(from, to int, prefix string) map[string]model.Value {
	m := make(map[string]model.Value)
	for n := from; n <= to; n++ {
		m[strconv.Itoa(n)] = model.Scalar(prefix + strconv.Itoa(n))
	}
	return m
}

func testContent() content.Static {
	return content.Static{
		"mock-1": {
			ExamRef: "mock-1",
			Listening: []model.ListeningPart{
				{ID: "rec1", Answers: answersFor(1, 5, "l")},
				{ID: "rec2", Answers: answersFor(6, 10, "l")},
			},
			Reading: []model.ReadingPart{
				{
					ID:         "pass1",
					Containers: []model.Container{{ID: "g1", From: 1, To: 4}, {ID: "g2", From: 5, To: 7}},
					Answers:    answersFor(1, 7, "r"),
				},
			},
		},
	}
}

type fixture struct {
	svc   *Service
	repo  *store.Store
	clock *fakeClock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	repo, err := store.New(context.Background(), store.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	clock := &fakeClock{t: time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now), WithLogger(quietLog)}, opts...)
	return &fixture{svc: New(repo, testContent(), opts...), repo: repo, clock: clock}
}

func (f *fixture) create(t *testing.T, w *model.Window) model.ExamAssignment {
	t.Helper()
	a, err := f.svc.Create(context.Background(), CreateParams{
		StudentRef: "stu-1", ExamRef: "mock-1", TenantRef: "centre", IssuedByRef: "staff-1", Window: w,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return a
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, nil)
	if len(a.CandidateCode) != 10 || a.CandidateCode[0] == '0' {
		t.Errorf("bad candidate code %q", a.CandidateCode)
	}
	if a.Status != model.StatusPending || !a.Active || a.CompletedAt != nil {
		t.Errorf("unexpected new assignment %+v", a)
	}

	ctx := context.Background()
	if _, err := f.svc.Create(ctx, CreateParams{ExamRef: "mock-1"}); !errors.Is(err, model.ErrMissingReference) {
		t.Errorf("expected ErrMissingReference, got %v", err)
	}
	start := f.clock.Now()
	end := start.Add(-time.Hour)
	_, err := f.svc.Create(ctx, CreateParams{StudentRef: "s", ExamRef: "e", Window: &model.Window{Start: &start, End: &end}})
	if !errors.Is(err, model.ErrInvalidWindow) {
		t.Errorf("expected ErrInvalidWindow, got %v", err)
	}
}

type failingNotifier struct{ calls int }

func (n *failingNotifier) AssignmentCreated(context.Context, model.ExamAssignment) error {
	n.calls++
	return errors.New("smtp down")
}

func TestCreateSurvivesNotifierFailure(t *testing.T) {
	n := &failingNotifier{}
	f := newFixture(t, WithNotifier(n))
	a := f.create(t, nil)
	if n.calls != 1 {
		t.Errorf("notifier called %d times", n.calls)
	}
	if _, err := f.svc.Fetch(context.Background(), a.CandidateCode); err != nil {
		t.Errorf("assignment should persist despite notifier failure: %v", err)
	}
}

func TestCreateExhaustsCodeSpace(t *testing.T) {
	f := newFixture(t, WithCodeGenerator(func() (string, error) { return "1111111111", nil }), WithMaxCodeAttempts(5))
	f.create(t, nil)
	_, err := f.svc.Create(context.Background(), CreateParams{StudentRef: "s2", ExamRef: "mock-1"})
	if !errors.Is(err, model.ErrCodeSpaceExhausted) {
		t.Fatalf("expected ErrCodeSpaceExhausted, got %v", err)
	}
}

func TestConcurrentCreateUniqueCodes(t *testing.T) {
	pool := []string{"2000000001", "2000000002", "2000000003", "2000000004", "2000000005", "2000000006"}
	gen := func() (string, error) { return pool[rand.Intn(len(pool))], nil }
	f := newFixture(t, WithCodeGenerator(gen))

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = make(map[string]int)
	)
	for i := 0; i < len(pool); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := f.svc.Create(context.Background(), CreateParams{StudentRef: fmt.Sprint("s", i), ExamRef: "mock-1"})
			if err != nil {
				t.Errorf("Create %d: %v", i, err)
				return
			}
			mu.Lock()
			codes[a.CandidateCode]++
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	if len(codes) != len(pool) {
		t.Fatalf("expected %d distinct codes, got %v", len(pool), codes)
	}
	for c, n := range codes {
		if n != 1 {
			t.Errorf("code %s issued %d times", c, n)
		}
	}
}

func TestFetchNoWindowNeverExpires(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, nil)
	f.clock.Advance(10 * 365 * 24 * time.Hour)
	got, err := f.svc.Fetch(context.Background(), a.CandidateCode)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got.Status != model.StatusPending {
		t.Errorf("status = %q, want pending", got.Status)
	}
}

func TestFetchPersistsExpiry(t *testing.T) {
	f := newFixture(t)
	end := f.clock.Now().Add(time.Hour)
	a := f.create(t, &model.Window{End: &end})
	f.clock.Advance(2 * time.Hour)

	got, err := f.svc.Fetch(context.Background(), a.CandidateCode)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got.Status != model.StatusExpired {
		t.Fatalf("status = %q, want expired", got.Status)
	}
	stored, _ := f.repo.GetByCode(context.Background(), a.CandidateCode)
	if stored.Status != model.StatusExpired {
		t.Errorf("expiry was not persisted: %q", stored.Status)
	}
}

func TestFetchUnknownAndInactive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, code := range []string{"9999999999", "abc", ""} {
		if _, err := f.svc.Fetch(ctx, code); !errors.Is(err, model.ErrNotFound) {
			t.Errorf("Fetch(%q) = %v, want ErrNotFound", code, err)
		}
	}
	a := f.create(t, nil)
	if err := f.svc.Deactivate(ctx, a.CandidateCode); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if _, err := f.svc.Fetch(ctx, a.CandidateCode); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("deactivated assignment should not resolve, got %v", err)
	}
	if _, err := f.svc.Start(ctx, a.CandidateCode); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Start on deactivated = %v, want ErrNotFound", err)
	}
}

func TestLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, nil)
	code := a.CandidateCode

	got, err := f.svc.Start(ctx, code)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got.Status != model.StatusInProgress || got.StartedAt == nil {
		t.Fatalf("unexpected state after start %+v", got)
	}
	if _, err := f.svc.Start(ctx, code); err != nil {
		t.Fatalf("second Start should be a no-op: %v", err)
	}

	if err := f.svc.SaveSectionProgress(ctx, code, model.ListeningAnswers{"rec1": {"c": {"1": model.Scalar("l1")}}}); err != nil {
		t.Fatalf("SaveSectionProgress: %v", err)
	}
	f.clock.Advance(time.Minute)
	got, err = f.svc.Submit(ctx, code, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got.Status != model.StatusCompleted || got.CompletedAt == nil || !got.CompletedAt.Equal(f.clock.Now()) {
		t.Errorf("unexpected state after submit %+v", got)
	}
	if got.Answers.Listening == nil {
		t.Error("saved answers lost on submit")
	}

	if _, err := f.svc.Start(ctx, code); !errors.Is(err, model.ErrAlreadyCompleted) {
		t.Errorf("Start after submit = %v", err)
	}
	if _, err := f.svc.Submit(ctx, code, nil); !errors.Is(err, model.ErrAlreadyCompleted) {
		t.Errorf("second Submit = %v", err)
	}
	err = f.svc.SaveSectionProgress(ctx, code, model.ReadingAnswers{})
	if !errors.Is(err, model.ErrSessionClosed) {
		t.Errorf("save after submit = %v", err)
	}
}

func TestStartAfterWindowEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	end := f.clock.Now().Add(30 * time.Minute)
	a := f.create(t, &model.Window{End: &end})
	f.clock.Advance(time.Hour)

	if _, err := f.svc.Start(ctx, a.CandidateCode); !errors.Is(err, model.ErrExpired) {
		t.Fatalf("Start = %v, want ErrExpired", err)
	}
	stored, _ := f.repo.GetByCode(ctx, a.CandidateCode)
	if stored.Status != model.StatusExpired || stored.CompletedAt != nil {
		t.Errorf("expected persisted expiry without completedAt, got %+v", stored)
	}
	if _, err := f.svc.Submit(ctx, a.CandidateCode, nil); !errors.Is(err, model.ErrExpired) {
		t.Errorf("Submit = %v, want ErrExpired", err)
	}
	err := f.svc.SaveSectionProgress(ctx, a.CandidateCode, model.ReadingAnswers{})
	if !errors.Is(err, model.ErrSessionClosed) {
		t.Errorf("save on expired = %v, want ErrSessionClosed", err)
	}
}

func TestStartBeforeWindowOpens(t *testing.T) {
	f := newFixture(t)
	start := f.clock.Now().Add(time.Hour)
	a := f.create(t, &model.Window{Start: &start})
	if _, err := f.svc.Start(context.Background(), a.CandidateCode); !errors.Is(err, model.ErrWindowNotOpen) {
		t.Fatalf("Start = %v, want ErrWindowNotOpen", err)
	}
	f.clock.Advance(2 * time.Hour)
	if _, err := f.svc.Start(context.Background(), a.CandidateCode); err != nil {
		t.Fatalf("Start once open: %v", err)
	}
}

func TestSaveSectionIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := f.create(t, nil).CandidateCode
	essay := "An essay."
	reading := model.ReadingAnswers{"pass1": {"g1": {model.Scalar("r1")}}}

	if err := f.svc.SaveSectionProgress(ctx, code, reading); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.SaveSectionProgress(ctx, code, model.WritingAnswers{Task1Answer: &essay, WordCount: 2}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		la := model.ListeningAnswers{"rec1": {"c": {"1": model.Scalar(fmt.Sprint("try", i))}}}
		if err := f.svc.SaveSectionProgress(ctx, code, la); err != nil {
			t.Fatal(err)
		}
	}
	got, _ := f.svc.Fetch(ctx, code)
	if v := got.Answers.Reading["pass1"]["g1"]; len(v) != 1 || v[0].Items[0] != "r1" {
		t.Errorf("reading changed: %+v", got.Answers.Reading)
	}
	if got.Answers.Writing == nil || *got.Answers.Writing.Task1Answer != essay {
		t.Errorf("writing changed: %+v", got.Answers.Writing)
	}
	if v := got.Answers.Listening["rec1"]["c"]["1"]; v.Items[0] != "try2" {
		t.Errorf("listening not replaced: %+v", v)
	}
}

func TestConcurrentSaveAndSubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := f.create(t, nil).CandidateCode

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			la := model.ListeningAnswers{"rec1": {"c": {"1": model.Scalar(fmt.Sprint(i))}}}
			err := f.svc.SaveSectionProgress(ctx, code, la)
			if err != nil && !errors.Is(err, model.ErrSessionClosed) {
				t.Errorf("save %d: %v", i, err)
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := f.svc.Submit(ctx, code, nil); err != nil {
			t.Errorf("Submit: %v", err)
		}
	}()
	wg.Wait()

	got, err := f.svc.Fetch(ctx, code)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got.Status != model.StatusCompleted || got.CompletedAt == nil {
		t.Errorf("completion was lost: %q %v", got.Status, got.CompletedAt)
	}
}

func TestListByExam(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	end := f.clock.Now().Add(time.Minute)
	f.create(t, &model.Window{End: &end})
	b := f.create(t, nil)
	if err := f.svc.Deactivate(ctx, b.CandidateCode); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(time.Hour)

	list, err := f.svc.ListByExam(ctx, "mock-1")
	if err != nil {
		t.Fatalf("ListByExam: %v", err)
	}
	if len(list) != 1 || list[0].Status != model.StatusExpired {
		t.Errorf("unexpected list %+v", list)
	}
}
