package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	appI18n "github.com/codexuz/crm-cd-platform-sub000/internal/i18n"
	"github.com/codexuz/crm-cd-platform-sub000/internal/model"
	"github.com/codexuz/crm-cd-platform-sub000/internal/session"
)

var (
	errBadRequest   = errors.New("bad request")
	errUnauthorized = errors.New("unauthorized")
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorMapping struct {
	err    error
	status int
	id     string
}

// errorTable maps lifecycle errors to status codes and message ids. The
// first match wins.
var errorTable = []errorMapping{
	{model.ErrNotFound, http.StatusNotFound, "NotFound"},
	{model.ErrUnknownExam, http.StatusNotFound, "UnknownExam"},
	{model.ErrUnknownSection, http.StatusNotFound, "UnknownSection"},
	{model.ErrAlreadyCompleted, http.StatusConflict, "AlreadyCompleted"},
	{model.ErrSessionClosed, http.StatusConflict, "SessionClosed"},
	{model.ErrConflict, http.StatusConflict, "Conflict"},
	{model.ErrExpired, http.StatusGone, "Expired"},
	{model.ErrWindowNotOpen, http.StatusForbidden, "WindowNotOpen"},
	{model.ErrNoAnswersSubmitted, http.StatusUnprocessableEntity, "NoAnswersSubmitted"},
	{model.ErrInvalidScore, http.StatusUnprocessableEntity, "InvalidScore"},
	{model.ErrInvalidWindow, http.StatusUnprocessableEntity, "InvalidWindow"},
	{model.ErrMissingReference, http.StatusUnprocessableEntity, "MissingReference"},
	{model.ErrInconsistentKey, http.StatusUnprocessableEntity, "InconsistentKey"},
	{model.ErrCodeSpaceExhausted, http.StatusServiceUnavailable, "CodeSpaceExhausted"},
	{session.ErrLockTimeout, http.StatusServiceUnavailable, "Busy"},
	{context.DeadlineExceeded, http.StatusServiceUnavailable, "Busy"},
	{errBadRequest, http.StatusBadRequest, "BadRequest"},
	{errUnauthorized, http.StatusUnauthorized, "Unauthorized"},
}

// writeError maps err to a status and a localized message. Unknown errors
// are logged and reported as 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error, data map[string]any) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			if m.status == http.StatusUnauthorized {
				w.Header().Set("WWW-Authenticate", `Bearer realm="examcore"`)
			}
			writeJSON(w, m.status, errorBody{Code: m.id, Message: appI18n.Td(r.Context(), m.id, data)})
			return
		}
	}
	slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, errorBody{
		Code:    "InternalError",
		Message: appI18n.T(r.Context(), "InternalError"),
	})
}
