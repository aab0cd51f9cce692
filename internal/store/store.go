// Package store persists exam assignments in SQLite or PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "modernc.org/sqlite"             // registers "sqlite"

	"github.com/codexuz/crm-cd-platform-sub000/internal/model"
)

// Driver selects the SQL backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// ParseDriver maps common aliases to a Driver.
func ParseDriver(s string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sqlite", "sqlite3":
		return DriverSQLite, nil
	case "postgres", "postgresql", "pg", "pgx":
		return DriverPostgres, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", s)
}

type Store struct {
	db     *sql.DB
	driver Driver
}

// New opens the database, tunes the pool and creates the schema.
func New(ctx context.Context, driver Driver, dsn string) (*Store, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite"
		if dsn == "" {
			dsn = "examcore.db"
		}
	case DriverPostgres:
		drvName = "pgx"
		if dsn == "" {
			dsn = "postgres://localhost:5432/examcore?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	tunePool(driver, db)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// tunePool keeps SQLite on a single connection so in-memory databases and
// the single-writer lock behave.
func tunePool(driver Driver, db *sql.DB) {
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
		return
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(45 * time.Minute)
	db.SetConnMaxIdleTime(15 * time.Minute)
}

func (s *Store) migrate(ctx context.Context) error {
	if s.driver == DriverSQLite {
		for _, p := range sqlitePragmas {
			if _, err := s.db.ExecContext(ctx, p); err != nil {
				return fmt.Errorf("sqlite pragma %q: %w", p, err)
			}
		}
		_, err := s.db.ExecContext(ctx, schemaSQLite)
		return err
	}
	_, err := s.db.ExecContext(ctx, schemaPostgres)
	return err
}

const assignmentColumns = `id, candidate_code, student_ref, exam_ref, tenant_ref, issued_by_ref,
	window_start, window_end, status, answers_json, scores_json,
	started_at, completed_at, notes, active, version, created_at, updated_at`

// Insert stores a new assignment. A taken candidate code yields
// model.ErrDuplicateCode.
func (s *Store) Insert(ctx context.Context, a *model.ExamAssignment) error {
	answers, scores, err := encodeJSON(a)
	if err != nil {
		return err
	}
	var ws, we *time.Time
	if a.Window != nil {
		ws, we = a.Window.Start, a.Window.End
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO exam_assignments (`+assignmentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		a.ID, a.CandidateCode, a.StudentRef, a.ExamRef, a.TenantRef, a.IssuedByRef,
		nullTime(ws), nullTime(we), string(a.Status), answers, scores,
		nullTime(a.StartedAt), nullTime(a.CompletedAt), a.Notes, a.Active, a.Version,
		a.CreatedAt.UnixNano(), a.UpdatedAt.UnixNano(),
	)
	if err != nil {
		if s.isDuplicateCode(err) {
			return fmt.Errorf("%w: %s", model.ErrDuplicateCode, a.CandidateCode)
		}
		return fmt.Errorf("insert assignment: %w", err)
	}
	return nil
}

// GetByCode returns the assignment with the given candidate code, active or
// not.
func (s *Store) GetByCode(ctx context.Context, code string) (model.ExamAssignment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM exam_assignments WHERE candidate_code = $1`, code)
	a, err := scanAssignment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ExamAssignment{}, model.ErrNotFound
	}
	if err != nil {
		return model.ExamAssignment{}, fmt.Errorf("get assignment: %w", err)
	}
	return a, nil
}

// Update writes a back if its version is still current, then bumps
// a.Version. A stale version yields model.ErrConflict.
func (s *Store) Update(ctx context.Context, a *model.ExamAssignment) error {
	answers, scores, err := encodeJSON(a)
	if err != nil {
		return err
	}
	var ws, we *time.Time
	if a.Window != nil {
		ws, we = a.Window.Start, a.Window.End
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE exam_assignments SET
			window_start = $1, window_end = $2, status = $3, answers_json = $4, scores_json = $5,
			started_at = $6, completed_at = $7, notes = $8, active = $9,
			version = version + 1, updated_at = $10
		 WHERE id = $11 AND version = $12`,
		nullTime(ws), nullTime(we), string(a.Status), answers, scores,
		nullTime(a.StartedAt), nullTime(a.CompletedAt), a.Notes, a.Active,
		a.UpdatedAt.UnixNano(), a.ID, a.Version,
	)
	if err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s at version %d", model.ErrConflict, a.CandidateCode, a.Version)
	}
	a.Version++
	return nil
}

// ListByExam returns every assignment for an exam, oldest first.
func (s *Store) ListByExam(ctx context.Context, examRef string) ([]model.ExamAssignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+assignmentColumns+` FROM exam_assignments WHERE exam_ref = $1 ORDER BY created_at, id`, examRef)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()
	var list []model.ExamAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAssignment(sc scanner) (model.ExamAssignment, error) {
	var (
		a                              model.ExamAssignment
		status, answers, scores        string
		ws, we, startedAt, completedAt sql.NullInt64
		createdAt, updatedAt           int64
	)
	err := sc.Scan(&a.ID, &a.CandidateCode, &a.StudentRef, &a.ExamRef, &a.TenantRef, &a.IssuedByRef,
		&ws, &we, &status, &answers, &scores,
		&startedAt, &completedAt, &a.Notes, &a.Active, &a.Version, &createdAt, &updatedAt)
	if err != nil {
		return a, err
	}
	a.Status = model.Status(status)
	if ws.Valid || we.Valid {
		a.Window = &model.Window{Start: timeOf(ws), End: timeOf(we)}
	}
	a.StartedAt = timeOf(startedAt)
	a.CompletedAt = timeOf(completedAt)
	a.CreatedAt = time.Unix(0, createdAt).UTC()
	a.UpdatedAt = time.Unix(0, updatedAt).UTC()
	if err := json.Unmarshal([]byte(answers), &a.Answers); err != nil {
		return a, fmt.Errorf("decode answers: %w", err)
	}
	if err := json.Unmarshal([]byte(scores), &a.FinalScores); err != nil {
		return a, fmt.Errorf("decode scores: %w", err)
	}
	return a, nil
}

func encodeJSON(a *model.ExamAssignment) (string, string, error) {
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return "", "", fmt.Errorf("encode answers: %w", err)
	}
	scores, err := json.Marshal(a.FinalScores)
	if err != nil {
		return "", "", fmt.Errorf("encode scores: %w", err)
	}
	return string(answers), string(scores), nil
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func timeOf(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(0, n.Int64).UTC()
	return &t
}
