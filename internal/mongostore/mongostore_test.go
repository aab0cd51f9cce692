package mongostore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/codexuz/crm-cd-platform-sub000/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("EXAMCORE_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("EXAMCORE_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	db := "examcore_test_" + uuid.NewString()[:8]
	s, err := New(ctx, uri, db)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		_ = s.client.Database(db).Drop(context.Background())
		s.Close()
	})
	return s
}

func TestDocRoundTrip(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	a := model.ExamAssignment{
		ID:            "id-1",
		CandidateCode: "1234567890",
		ExamRef:       "mock",
		Window:        &model.Window{Start: &start},
		Status:        model.StatusInProgress,
		Active:        true,
		Version:       3,
	}
	a.Answers.Listening = model.ListeningAnswers{"p": {"c": {"1": model.List("a", "b")}}}
	d, err := toDoc(&a)
	if err != nil {
		t.Fatalf("toDoc: %v", err)
	}
	got, err := fromDoc(d)
	if err != nil {
		t.Fatalf("fromDoc: %v", err)
	}
	if got.Window == nil || got.Window.End != nil || !got.Window.Start.Equal(start) {
		t.Errorf("window lost: %+v", got.Window)
	}
	if v := got.Answers.Listening["p"]["c"]["1"]; !v.List || len(v.Items) != 2 {
		t.Errorf("answers lost: %+v", got.Answers)
	}
	if got.Version != 3 || got.Status != model.StatusInProgress {
		t.Errorf("state lost: %+v", got)
	}
}

func TestStoreAgainstMongo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	a := &model.ExamAssignment{
		ID: uuid.NewString(), CandidateCode: "8000000000", ExamRef: "mock",
		Status: model.StatusPending, Active: true, CreatedAt: now, UpdatedAt: now,
	}
	if err := s.Insert(ctx, a); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	dup := *a
	dup.ID = uuid.NewString()
	if err := s.Insert(ctx, &dup); !errors.Is(err, model.ErrDuplicateCode) {
		t.Fatalf("expected ErrDuplicateCode, got %v", err)
	}

	stale, err := s.GetByCode(ctx, "8000000000")
	if err != nil {
		t.Fatalf("GetByCode: %v", err)
	}
	a.Status = model.StatusInProgress
	if err := s.Update(ctx, a); err != nil {
		t.Fatalf("Update: %v", err)
	}
	stale.Notes = "late write"
	if err := s.Update(ctx, &stale); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	list, err := s.ListByExam(ctx, "mock")
	if err != nil || len(list) != 1 || list[0].Status != model.StatusInProgress {
		t.Errorf("ListByExam = %+v, %v", list, err)
	}
	if _, err := s.GetByCode(ctx, "1111111111"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
