package handler

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/codexuz/crm-cd-platform-sub000/internal/model"
)

// examView is what a candidate sees of their assignment. Scores and staff
// references stay server-side.
type examView struct {
	CandidateCode string        `json:"candidate_code"`
	ExamRef       string        `json:"exam_ref"`
	Status        model.Status  `json:"status"`
	Window        *model.Window `json:"window,omitempty"`
	Answers       model.Answers `json:"answers"`
	StartedAt     *time.Time    `json:"started_at,omitempty"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
}

func viewOf(a model.ExamAssignment) examView {
	return examView{
		CandidateCode: a.CandidateCode,
		ExamRef:       a.ExamRef,
		Status:        a.Status,
		Window:        a.Window,
		Answers:       a.Answers,
		StartedAt:     a.StartedAt,
		CompletedAt:   a.CompletedAt,
	}
}

type loginRequest struct {
	Code string `json:"code"`
}

type loginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Exam        examView  `json:"exam"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if ok, err := decodeBody(w, r, &req); err != nil || !ok {
		writeError(w, r, errBadRequestOr(err), nil)
		return
	}
	code := strings.TrimSpace(req.Code)
	a, err := h.svc.Fetch(r.Context(), code)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	token, exp, err := h.tokens.Issue(a.CandidateCode)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{AccessToken: token, ExpiresAt: exp, Exam: viewOf(a)})
}

func (h *Handler) handleGetExam(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Fetch(r.Context(), model.CandidateFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(a))
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Start(r.Context(), model.CandidateFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(a))
}

func (h *Handler) handleSaveSection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "section")
	section, err := model.ParseSection(name)
	if err != nil {
		writeError(w, r, err, map[string]any{"Section": name})
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil || len(strings.TrimSpace(string(body))) == 0 {
		writeError(w, r, errBadRequest, nil)
		return
	}
	answers, err := model.DecodeSectionAnswers(section, body)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err), nil)
		return
	}
	if err := h.svc.SaveSectionProgress(r.Context(), model.CandidateFromContext(r.Context()), answers); err != nil {
		writeError(w, r, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSubmit accepts an optional consolidated payload that replaces all
// saved sections.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var final model.Answers
	ok, err := decodeBody(w, r, &final)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	var finalPtr *model.Answers
	if ok {
		finalPtr = &final
	}
	a, err := h.svc.Submit(r.Context(), model.CandidateFromContext(r.Context()), finalPtr)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(a))
}

func errBadRequestOr(err error) error {
	if err != nil {
		return err
	}
	return errBadRequest
}
