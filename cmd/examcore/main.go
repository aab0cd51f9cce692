package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/codexuz/crm-cd-platform-sub000/internal/content"
	"github.com/codexuz/crm-cd-platform-sub000/internal/handler"
	appI18n "github.com/codexuz/crm-cd-platform-sub000/internal/i18n"
	"github.com/codexuz/crm-cd-platform-sub000/internal/llm"
	"github.com/codexuz/crm-cd-platform-sub000/internal/model"
	"github.com/codexuz/crm-cd-platform-sub000/internal/mongostore"
	"github.com/codexuz/crm-cd-platform-sub000/internal/session"
	"github.com/codexuz/crm-cd-platform-sub000/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "examcore",
		Short: "Exam session and scoring service for IELTS-style mock tests",
	}

	serve := serveCmd()
	root.AddCommand(serve, issueCmd(), scoreCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// storageFlags are shared by every command that opens the backend.
func storageFlags(f *pflag.FlagSet) {
	f.String("db-driver", "sqlite", "Storage backend (sqlite, postgres, mongo)")
	f.String("db", "examcore.db", "SQL database DSN or SQLite path")
	f.String("mongo-uri", "mongodb://localhost:27017", "MongoDB connection URI (db-driver=mongo)")
	f.String("mongo-db", "examcore", "MongoDB database name (db-driver=mongo)")
	f.String("content-dir", "content", "Directory of exam content files (<exam>.json)")
	f.String("redis-addr", "", "Redis address for cross-instance assignment locks (empty = in-process locks)")
	f.Int("max-code-attempts", 100, "Candidate code collisions tolerated before giving up")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  runServe,
	}
	f := cmd.Flags()
	storageFlags(f)
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringP("lang", "l", "en", "Default message language (en, ru, uz)")
	f.String("jwt-secret", "", "Secret for signing candidate tokens (or set EXAMCORE_JWT_SECRET)")
	f.Duration("token-ttl", 4*time.Hour, "Candidate token lifetime")
	f.String("admin-user", "admin", "Admin API user name")
	f.String("admin-password-hash", "", "bcrypt hash of the admin password")
	f.String("admin-password", "", "Admin password, hashed at startup when no hash is given")
	f.StringSlice("cors-origins", []string{"*"}, "Allowed CORS origins")
	f.String("llm-url", "", "OpenAI-compatible API base URL for writing feedback drafts (empty = disabled)")
	f.String("llm-key", "", "API key for LLM")
	f.String("llm-model", "gpt-4o-mini", "LLM model name")
	return cmd
}

func issueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue an exam assignment and print it as JSON",
		RunE:  runIssue,
	}
	f := cmd.Flags()
	storageFlags(f)
	f.String("student", "", "Student reference (required)")
	f.String("exam", "", "Exam reference (required)")
	f.String("tenant", "", "Tenant reference")
	f.String("issued-by", "cli", "Issuer reference")
	f.String("start", "", "Window start, RFC 3339")
	f.String("end", "", "Window end, RFC 3339")
	f.String("notes", "", "Free-form notes")
	_ = cmd.MarkFlagRequired("student")
	_ = cmd.MarkFlagRequired("exam")
	return cmd
}

func scoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score CODE",
		Short: "Score the listening and reading sections of an assignment",
		Args:  cobra.ExactArgs(1),
		RunE:  runScore,
	}
	storageFlags(cmd.Flags())
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the results of one exam as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	storageFlags(f)
	f.String("exam", "", "Exam reference (required)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	_ = cmd.MarkFlagRequired("exam")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("EXAMCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("examcore")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/examcore")
	v.AddConfigPath("/etc/examcore")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// backend is an opened repository plus everything to release on exit.
type backend struct {
	repo    session.Repository
	locker  session.Locker
	closers []func() error
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			slog.Warn("close backend", "error", err)
		}
	}
}

func openBackend(ctx context.Context, v *viper.Viper) (*backend, error) {
	b := &backend{}
	switch driver := strings.ToLower(v.GetString("db-driver")); driver {
	case "mongo", "mongodb":
		ms, err := mongostore.New(ctx, v.GetString("mongo-uri"), v.GetString("mongo-db"))
		if err != nil {
			return nil, fmt.Errorf("open mongo: %w", err)
		}
		b.repo = ms
		b.closers = append(b.closers, ms.Close)
	default:
		d, err := store.ParseDriver(driver)
		if err != nil {
			return nil, err
		}
		db, err := store.New(ctx, d, v.GetString("db"))
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		b.repo = db
		b.closers = append(b.closers, db.Close)
	}

	if addr := v.GetString("redis-addr"); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			b.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		b.locker = session.NewRedisLocker(rdb, 0, 0)
		b.closers = append(b.closers, rdb.Close)
		slog.Info("using redis assignment locks", "addr", addr)
	}
	return b, nil
}

func newService(v *viper.Viper, b *backend, extra ...session.Option) *session.Service {
	opts := []session.Option{
		session.WithMaxCodeAttempts(v.GetInt("max-code-attempts")),
		session.WithLogger(slog.Default()),
	}
	if b.locker != nil {
		opts = append(opts, session.WithLocker(b.locker))
	}
	opts = append(opts, extra...)
	return session.New(b.repo, content.NewDir(v.GetString("content-dir")), opts...)
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	hash, err := adminHash(v)
	if err != nil {
		return err
	}

	b, err := openBackend(ctx, v)
	if err != nil {
		return err
	}
	defer b.Close()

	var extra []session.Option
	if url := v.GetString("llm-url"); url != "" {
		extra = append(extra, session.WithDrafter(llm.New(url, v.GetString("llm-key"), v.GetString("llm-model"))))
		slog.Info("writing feedback drafts enabled", "url", url, "model", v.GetString("llm-model"))
	}
	svc := newService(v, b, extra...)

	h, err := handler.New(svc, handler.Config{
		JWTSecret:         v.GetString("jwt-secret"),
		TokenTTL:          v.GetDuration("token-ttl"),
		AdminUser:         v.GetString("admin-user"),
		AdminPasswordHash: hash,
		AllowedOrigins:    v.GetStringSlice("cors-origins"),
	})
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", addr,
			"db_driver", v.GetString("db-driver"),
			"content_dir", v.GetString("content-dir"),
			"lang", lang,
			"languages", appI18n.Languages(),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// adminHash returns the configured bcrypt hash, hashing a plain password
// when only that is given.
func adminHash(v *viper.Viper) (string, error) {
	if h := v.GetString("admin-password-hash"); h != "" {
		return h, nil
	}
	password := v.GetString("admin-password")
	if password == "" {
		return "", errors.New("admin credentials are required: set --admin-password-hash or EXAMCORE_ADMIN_PASSWORD")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash admin password: %w", err)
	}
	return string(hash), nil
}

func runIssue(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	var window *model.Window
	start, err := parseTime(v.GetString("start"))
	if err != nil {
		return fmt.Errorf("--start: %w", err)
	}
	end, err := parseTime(v.GetString("end"))
	if err != nil {
		return fmt.Errorf("--end: %w", err)
	}
	if start != nil || end != nil {
		window = &model.Window{Start: start, End: end}
	}

	b, err := openBackend(ctx, v)
	if err != nil {
		return err
	}
	defer b.Close()

	a, err := newService(v, b).Create(ctx, session.CreateParams{
		StudentRef:  v.GetString("student"),
		ExamRef:     v.GetString("exam"),
		TenantRef:   v.GetString("tenant"),
		IssuedByRef: v.GetString("issued-by"),
		Window:      window,
		Notes:       v.GetString("notes"),
	})
	if err != nil {
		return fmt.Errorf("issue assignment: %w", err)
	}
	return writeOutput("-", a)
}

func runScore(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	b, err := openBackend(ctx, v)
	if err != nil {
		return err
	}
	defer b.Close()

	scores, err := newService(v, b).ScoreAll(ctx, args[0])
	if err != nil {
		return fmt.Errorf("score %s: %w", args[0], err)
	}
	return writeOutput("-", scores)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	b, err := openBackend(ctx, v)
	if err != nil {
		return err
	}
	defer b.Close()

	exam := v.GetString("exam")
	list, err := newService(v, b).ListByExam(ctx, exam)
	if err != nil {
		return fmt.Errorf("list assignments: %w", err)
	}

	export := model.ExamExport{
		ExamRef:    exam,
		ExportedAt: time.Now().UTC(),
		Results:    make([]model.CandidateResult, 0, len(list)),
	}
	for _, a := range list {
		export.Results = append(export.Results, model.ResultOf(a))
	}
	slog.Info("exported results", "exam", exam, "count", len(export.Results))
	return writeOutput(v.GetString("output"), export)
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

func writeOutput(outPath string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)
	return nil
}
