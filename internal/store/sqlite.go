package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/qhd-cli/internal/model"
	"github.com/sells-group/qhd-cli/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS failures (
	id         TEXT PRIMARY KEY,
	part_id    TEXT NOT NULL,
	process    TEXT NOT NULL,
	doc_type   TEXT NOT NULL,
	error      TEXT NOT NULL,
	error_type TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS publish_records (
	id           TEXT PRIMARY KEY,
	part_id      TEXT NOT NULL,
	process      TEXT NOT NULL,
	doc_type     TEXT NOT NULL,
	subject      TEXT NOT NULL,
	outcome      TEXT NOT NULL,
	document_id  TEXT,
	attempts     INTEGER NOT NULL,
	published_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_failures_part ON failures(part_id);
CREATE INDEX IF NOT EXISTS idx_failures_created_at ON failures(created_at);
CREATE INDEX IF NOT EXISTS idx_publish_records_part ON publish_records(part_id, process, doc_type);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) AppendFailure(ctx context.Context, e model.FailureEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO failures (id, part_id, process, doc_type, error, error_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.PartID, e.Process, string(e.DocType), e.Error, e.ErrorType,
		utc(e.CreatedAt).Format(time.RFC3339Nano),
	)
	return eris.Wrap(err, "sqlite: append failure")
}

func (s *SQLiteStore) ListFailures(ctx context.Context, filter resilience.FailureFilter) ([]model.FailureEntry, error) {
	var where []string
	var args []any
	if filter.PartID != "" {
		where = append(where, "part_id = ?")
		args = append(args, filter.PartID)
	}
	if filter.Process != "" {
		where = append(where, "process = ?")
		args = append(args, filter.Process)
	}
	if filter.ErrorType != "" {
		where = append(where, "error_type = ?")
		args = append(args, filter.ErrorType)
	}

	query := `SELECT id, part_id, process, doc_type, error, error_type, created_at FROM failures`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC LIMIT ?"
	args = append(args, limitOf(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list failures")
	}
	defer rows.Close()

	var out []model.FailureEntry
	for rows.Next() {
		var e model.FailureEntry
		var docType, createdAt string
		if err := rows.Scan(&e.ID, &e.PartID, &e.Process, &docType, &e.Error, &e.ErrorType, &createdAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan failure")
		}
		e.DocType = model.DocType(docType)
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: parse failure time")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list failures iterate")
}

func (s *SQLiteStore) CountFailures(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM failures`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count failures")
}

func (s *SQLiteStore) RecordPublish(ctx context.Context, r model.PublishRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO publish_records (id, part_id, process, doc_type, subject, outcome, document_id, attempts, published_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), r.PartID, r.Process, string(r.DocType), r.Subject, string(r.Outcome),
		r.DocumentID, r.Attempts, utc(r.PublishedAt).Format(time.RFC3339Nano),
	)
	return eris.Wrap(err, "sqlite: record publish")
}

func (s *SQLiteStore) ListPublished(ctx context.Context, filter PublishFilter) ([]model.PublishRecord, error) {
	var where []string
	var args []any
	if filter.PartID != "" {
		where = append(where, "part_id = ?")
		args = append(args, filter.PartID)
	}
	if filter.Process != "" {
		where = append(where, "process = ?")
		args = append(args, filter.Process)
	}
	if filter.DocType != "" {
		where = append(where, "doc_type = ?")
		args = append(args, string(filter.DocType))
	}

	query := `SELECT part_id, process, doc_type, subject, outcome, document_id, attempts, published_at FROM publish_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY published_at ASC LIMIT ?"
	args = append(args, limitOf(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list published")
	}
	defer rows.Close()

	var out []model.PublishRecord
	for rows.Next() {
		var r model.PublishRecord
		var docType, outcome, publishedAt string
		var docID sql.NullString
		if err := rows.Scan(&r.PartID, &r.Process, &docType, &r.Subject, &outcome, &docID, &r.Attempts, &publishedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan publish record")
		}
		r.DocType = model.DocType(docType)
		r.Outcome = model.PublishOutcome(outcome)
		r.DocumentID = docID.String
		if r.PublishedAt, err = time.Parse(time.RFC3339Nano, publishedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: parse publish time")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list published iterate")
}

func (s *SQLiteStore) IsPublished(ctx context.Context, partID, process string, docType model.DocType) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM publish_records WHERE part_id = ? AND process = ? AND doc_type = ?`,
		partID, process, string(docType),
	).Scan(&n)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: is published")
	}
	return n > 0, nil
}
