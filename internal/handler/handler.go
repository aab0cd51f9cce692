// Package handler exposes the exam session service over a JSON HTTP API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	appI18n "github.com/codexuz/crm-cd-platform-sub000/internal/i18n"
	"github.com/codexuz/crm-cd-platform-sub000/internal/model"
	"github.com/codexuz/crm-cd-platform-sub000/internal/session"
)

const maxBodyBytes = 1 << 20

// Sessions is the part of session.Service the API uses.
type Sessions interface {
	Create(ctx context.Context, p session.CreateParams) (model.ExamAssignment, error)
	Fetch(ctx context.Context, code string) (model.ExamAssignment, error)
	Start(ctx context.Context, code string) (model.ExamAssignment, error)
	SaveSectionProgress(ctx context.Context, code string, answers model.SectionAnswers) error
	Submit(ctx context.Context, code string, final *model.Answers) (model.ExamAssignment, error)
	Deactivate(ctx context.Context, code string) error
	ListByExam(ctx context.Context, examRef string) ([]model.ExamAssignment, error)
	ScoreListening(ctx context.Context, code string) (model.SectionScore, error)
	ScoreReading(ctx context.Context, code string) (model.SectionScore, error)
	ScoreWriting(ctx context.Context, code string, g session.WritingGrade) (model.WritingScore, error)
	ScoreAll(ctx context.Context, code string) (session.AutoScores, error)
}

// Config holds the API's credentials and limits.
type Config struct {
	JWTSecret         string
	TokenTTL          time.Duration
	AdminUser         string
	AdminPasswordHash string
	AllowedOrigins    []string
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	svc    Sessions
	tokens *tokenIssuer
	config Config
}

// New creates a new Handler.
func New(svc Sessions, cfg Config) (*Handler, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT secret is required")
	}
	if cfg.AdminUser == "" || cfg.AdminPasswordHash == "" {
		return nil, errors.New("admin user and password hash are required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 4 * time.Hour
	}
	return &Handler{
		svc:    svc,
		tokens: newTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		config: cfg,
	}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/candidate", func(r chi.Router) {
		r.Post("/login", h.handleLogin)
		r.Group(func(r chi.Router) {
			r.Use(h.requireCandidate)
			r.Get("/exam", h.handleGetExam)
			r.Post("/exam/start", h.handleStart)
			r.Put("/exam/sections/{section}", h.handleSaveSection)
			r.Post("/exam/submit", h.handleSubmit)
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Post("/assignments", h.handleCreateAssignment)
		r.Get("/assignments/{code}", h.handleGetAssignment)
		r.Delete("/assignments/{code}", h.handleDeactivate)
		r.Post("/assignments/{code}/score", h.handleScoreAll)
		r.Post("/assignments/{code}/score/{section}", h.handleScoreSection)
		r.Get("/exams/{exam}/results", h.handleExamResults)
	})
}

// Router builds the full middleware stack around Routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.config.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(appI18n.Middleware)
	h.Routes(r)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched and
// reports false.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) (bool, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return true, nil
}
