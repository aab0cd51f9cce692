package store

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	pgUniqueViolation    = "23505"
	candidateCodeColumn  = "candidate_code"
	candidateCodeUniqKey = "exam_assignments_candidate_code_key"
)

// isDuplicateCode reports whether err is a unique violation on the
// candidate code column.
func (s *Store) isDuplicateCode(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == candidateCodeUniqKey
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE &&
			strings.Contains(liteErr.Error(), candidateCodeColumn)
	}
	return false
}
