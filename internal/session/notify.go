package session

import (
	"context"
	"log/slog"

	"github.com/codexuz/crm-cd-platform-sub000/internal/model"
)

// LogNotifier records new assignments in the structured log. Delivery to
// candidates happens elsewhere.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(l *slog.Logger) *LogNotifier {
	if l == nil {
		l = slog.Default()
	}
	return &LogNotifier{log: l}
}

func (n *LogNotifier) AssignmentCreated(_ context.Context, a model.ExamAssignment) error {
	attrs := []any{"id", a.ID, "exam", a.ExamRef, "student", a.StudentRef, "tenant", a.TenantRef}
	if a.Window != nil && a.Window.End != nil {
		attrs = append(attrs, "window_end", a.Window.End.Format("2006-01-02T15:04Z07:00"))
	}
	n.log.Info("candidate code issued", attrs...)
	return nil
}
