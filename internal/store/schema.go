package store

var sqlitePragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 5000",
}

// Timestamps are Unix nanoseconds in both dialects.
const schemaSQLite = `
CREATE TABLE IF NOT EXISTS exam_assignments (
	id TEXT PRIMARY KEY,
	candidate_code TEXT NOT NULL UNIQUE,
	student_ref TEXT NOT NULL,
	exam_ref TEXT NOT NULL,
	tenant_ref TEXT NOT NULL DEFAULT '',
	issued_by_ref TEXT NOT NULL DEFAULT '',
	window_start INTEGER,
	window_end INTEGER,
	status TEXT NOT NULL DEFAULT 'pending',
	answers_json TEXT NOT NULL DEFAULT '{}',
	scores_json TEXT NOT NULL DEFAULT '{}',
	started_at INTEGER,
	completed_at INTEGER,
	notes TEXT NOT NULL DEFAULT '',
	active INTEGER NOT NULL DEFAULT 1,
	version INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_exam_assignments_exam ON exam_assignments(exam_ref);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS exam_assignments (
	id TEXT PRIMARY KEY,
	candidate_code TEXT NOT NULL,
	student_ref TEXT NOT NULL,
	exam_ref TEXT NOT NULL,
	tenant_ref TEXT NOT NULL DEFAULT '',
	issued_by_ref TEXT NOT NULL DEFAULT '',
	window_start BIGINT,
	window_end BIGINT,
	status TEXT NOT NULL DEFAULT 'pending',
	answers_json TEXT NOT NULL DEFAULT '{}',
	scores_json TEXT NOT NULL DEFAULT '{}',
	started_at BIGINT,
	completed_at BIGINT,
	notes TEXT NOT NULL DEFAULT '',
	active BOOLEAN NOT NULL DEFAULT TRUE,
	version BIGINT NOT NULL DEFAULT 0,
	created_at BIGINT NOT NULL,
	updated_at BIGINT NOT NULL,
	CONSTRAINT exam_assignments_candidate_code_key UNIQUE (candidate_code)
);

CREATE INDEX IF NOT EXISTS idx_exam_assignments_exam ON exam_assignments(exam_ref);
`
