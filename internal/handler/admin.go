package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/codexuz/crm-cd-platform-sub000/internal/model"
	"github.com/codexuz/crm-cd-platform-sub000/internal/session"
)

type createAssignmentRequest struct {
	StudentRef  string        `json:"student_ref"`
	ExamRef     string        `json:"exam_ref"`
	TenantRef   string        `json:"tenant_ref"`
	IssuedByRef string        `json:"issued_by_ref"`
	Window      *model.Window `json:"window"`
	Notes       string        `json:"notes"`
}

type writingGradeRequest struct {
	Task1Score *float64 `json:"task1_score"`
	Task2Score *float64 `json:"task2_score"`
	Feedback   string   `json:"feedback"`
}

func (h *Handler) handleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req createAssignmentRequest
	if ok, err := decodeBody(w, r, &req); err != nil || !ok {
		writeError(w, r, errBadRequestOr(err), nil)
		return
	}
	if req.IssuedByRef == "" {
		req.IssuedByRef, _, _ = r.BasicAuth()
	}
	a, err := h.svc.Create(r.Context(), session.CreateParams{
		StudentRef:  req.StudentRef,
		ExamRef:     req.ExamRef,
		TenantRef:   req.TenantRef,
		IssuedByRef: req.IssuedByRef,
		Window:      req.Window,
		Notes:       req.Notes,
	})
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) handleGetAssignment(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Fetch(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Deactivate(r.Context(), chi.URLParam(r, "code")); err != nil {
		writeError(w, r, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleScoreAll(w http.ResponseWriter, r *http.Request) {
	scores, err := h.svc.ScoreAll(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, scores)
}

func (h *Handler) handleScoreSection(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	name := chi.URLParam(r, "section")
	section, err := model.ParseSection(name)
	if err != nil {
		writeError(w, r, err, map[string]any{"Section": name})
		return
	}

	switch section {
	case model.SectionListening:
		score, err := h.svc.ScoreListening(r.Context(), code)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, score)
	case model.SectionReading:
		score, err := h.svc.ScoreReading(r.Context(), code)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, score)
	case model.SectionWriting:
		var req writingGradeRequest
		if ok, err := decodeBody(w, r, &req); err != nil || !ok {
			writeError(w, r, errBadRequestOr(err), nil)
			return
		}
		score, err := h.svc.ScoreWriting(r.Context(), code, session.WritingGrade{
			Task1:    req.Task1Score,
			Task2:    req.Task2Score,
			Feedback: req.Feedback,
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, score)
	}
}

func (h *Handler) handleExamResults(w http.ResponseWriter, r *http.Request) {
	exam := chi.URLParam(r, "exam")
	list, err := h.svc.ListByExam(r.Context(), exam)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	out := model.ExamExport{ExamRef: exam, ExportedAt: time.Now().UTC(), Results: make([]model.CandidateResult, 0, len(list))}
	for _, a := range list {
		out.Results = append(out.Results, model.ResultOf(a))
	}
	writeJSON(w, http.StatusOK, out)
}
