package content

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/codexuz/crm-cd-platform-sub000/internal/model"
)

func TestParseContainersDocumentOrder(t *testing.T) {
	raw := `{
		"type": "passage",
		"blocks": [
			{"type": "text", "body": "Read the passage."},
			{"zeta": {"type": "questions", "id": "q-b", "range": "1-4"}},
			{"type": "group", "children": [
				{"id": "q-a", "type": "questions", "from": 5, "to": "7"},
				{"type": "questions", "id": 12}
			]}
		]
	}`
	got, err := ParseContainers([]byte(raw))
	if err != nil {
		t.Fatalf("ParseContainers: %v", err)
	}
	want := []model.Container{
		{ID: "q-b", From: 1, To: 4},
		{ID: "q-a", From: 5, To: 7},
		{ID: "12"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d containers %+v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("container %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseContainersNestedOrder(t *testing.T) {
	// A questions block nested inside another appears after its parent.
	raw := `[{"type":"questions","id":"outer","range":"1-2","inner":{"type":"questions","id":"inner","range":"3"}}]`
	got, err := ParseContainers([]byte(raw))
	if err != nil {
		t.Fatalf("ParseContainers: %v", err)
	}
	if len(got) != 2 || got[0].ID != "outer" || got[1].ID != "inner" || got[1].From != 3 || got[1].To != 3 {
		t.Errorf("unexpected containers %+v", got)
	}
}

func TestParseContainersBadInput(t *testing.T) {
	if _, err := ParseContainers([]byte(`{"type":`)); err == nil {
		t.Error("expected an error for truncated JSON")
	}
	if _, err := ParseContainers([]byte(`{"type":"questions"}`)); err == nil {
		t.Error("expected an error for a questions block without id")
	}
	got, err := ParseContainers([]byte(`{"type":"questions","id":"x","range":"7-5"}`))
	if err != nil {
		t.Fatalf("ParseContainers: %v", err)
	}
	if got[0].Slots() != 0 {
		t.Errorf("reversed range should be treated as undeclared, got %+v", got[0])
	}
}

const examJSON = `{
	"exam": "mock-1",
	"listening": [{"id": "rec1", "answers": {"1": "cat", "2": ["dog", "hound"]}}],
	"reading": [
		{"id": "p1", "content": {"blocks": [{"type":"questions","id":"c2","range":"1-2"},{"type":"questions","id":"c1","range":"3-3"}]},
		 "answers": {"1": "a", "2": "b", "3": "c"}},
		{"id": "p2", "containers": [{"id": "x", "from": 4, "to": 4}], "answers": {"4": "d"}}
	]
}`

func TestDirProvider(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "mock-1.json"), []byte(examJSON), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	p := NewDir(dir)
	ctx := context.Background()

	c, err := p.ExamContent(ctx, "mock-1")
	if err != nil {
		t.Fatalf("ExamContent: %v", err)
	}
	if len(c.Listening) != 1 || !c.Listening[0].Answers["2"].List {
		t.Errorf("unexpected listening content %+v", c.Listening)
	}
	if len(c.Reading) != 2 {
		t.Fatalf("expected 2 reading parts, got %d", len(c.Reading))
	}
	if cs := c.Reading[0].Containers; len(cs) != 2 || cs[0].ID != "c2" || cs[1].ID != "c1" {
		t.Errorf("containers not taken from description: %+v", cs)
	}
	if cs := c.Reading[1].Containers; len(cs) != 1 || cs[0].From != 4 {
		t.Errorf("explicit containers lost: %+v", cs)
	}

	// Served from cache once loaded.
	if err := os.Remove(filepath.Join(dir, "mock-1.json")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := p.ExamContent(ctx, "mock-1"); err != nil {
		t.Errorf("cached ExamContent: %v", err)
	}

	for _, ref := range []string{"missing", "../mock-1", ""} {
		if _, err := p.ExamContent(ctx, ref); !errors.Is(err, model.ErrUnknownExam) {
			t.Errorf("ExamContent(%q) = %v, want ErrUnknownExam", ref, err)
		}
	}
}

func TestStatic(t *testing.T) {
	s := Static{"e": {ExamRef: "e"}}
	if _, err := s.ExamContent(context.Background(), "e"); err != nil {
		t.Errorf("ExamContent: %v", err)
	}
	if _, err := s.ExamContent(context.Background(), "other"); !errors.Is(err, model.ErrUnknownExam) {
		t.Errorf("expected ErrUnknownExam, got %v", err)
	}
}
