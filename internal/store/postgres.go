package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/qhd-cli/internal/db"
	"github.com/sells-group/qhd-cli/internal/model"
	"github.com/sells-group/qhd-cli/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements are prepared on every new connection.
var preparedStatements = map[string]string{
	"insert_failure": `INSERT INTO failures (id, part_id, process, doc_type, error, error_type, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"insert_publish": `INSERT INTO publish_records (id, part_id, process, doc_type, subject, outcome, document_id, attempts, published_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
	"is_published":   `SELECT EXISTS (SELECT 1 FROM publish_records WHERE part_id = $1 AND process = $2 AND doc_type = $3)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 4
	pgxCfg.MinConns = 1
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			pgxCfg.MaxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			pgxCfg.MinConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConnIdleTime = 5 * time.Minute
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS failures (
	id         TEXT PRIMARY KEY,
	part_id    TEXT NOT NULL,
	process    TEXT NOT NULL,
	doc_type   TEXT NOT NULL,
	error      TEXT NOT NULL,
	error_type TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
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
	published_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_failures_part ON failures(part_id);
CREATE INDEX IF NOT EXISTS idx_publish_records_part ON publish_records(part_id, process, doc_type);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) AppendFailure(ctx context.Context, e model.FailureEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO failures (id, part_id, process, doc_type, error, error_type, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.PartID, e.Process, string(e.DocType), e.Error, e.ErrorType, utc(e.CreatedAt),
	)
	return eris.Wrap(err, "postgres: append failure")
}

// where builds a numbered WHERE clause from column/value pairs with
// non-empty values.
func where(pairs ...[2]string) (string, []any) {
	var conds []string
	var args []any
	for _, p := range pairs {
		if p[1] == "" {
			continue
		}
		args = append(args, p[1])
		conds = append(conds, fmt.Sprintf("%s = $%d", p[0], len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *PostgresStore) ListFailures(ctx context.Context, filter resilience.FailureFilter) ([]model.FailureEntry, error) {
	clause, args := where(
		[2]string{"part_id", filter.PartID},
		[2]string{"process", filter.Process},
		[2]string{"error_type", filter.ErrorType},
	)
	args = append(args, limitOf(filter.Limit))
	query := `SELECT id, part_id, process, doc_type, error, error_type, created_at FROM failures` +
		clause + fmt.Sprintf(` ORDER BY created_at ASC LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list failures")
	}
	defer rows.Close()

	var out []model.FailureEntry
	for rows.Next() {
		var e model.FailureEntry
		var docType string
		if err := rows.Scan(&e.ID, &e.PartID, &e.Process, &docType, &e.Error, &e.ErrorType, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan failure")
		}
		e.DocType = model.DocType(docType)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list failures iterate")
}

func (s *PostgresStore) CountFailures(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM failures`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count failures")
}

func (s *PostgresStore) RecordPublish(ctx context.Context, r model.PublishRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO publish_records (id, part_id, process, doc_type, subject, outcome, document_id, attempts, published_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.New().String(), r.PartID, r.Process, string(r.DocType), r.Subject, string(r.Outcome),
		r.DocumentID, r.Attempts, utc(r.PublishedAt),
	)
	return eris.Wrap(err, "postgres: record publish")
}

func (s *PostgresStore) ListPublished(ctx context.Context, filter PublishFilter) ([]model.PublishRecord, error) {
	clause, args := where(
		[2]string{"part_id", filter.PartID},
		[2]string{"process", filter.Process},
		[2]string{"doc_type", string(filter.DocType)},
	)
	args = append(args, limitOf(filter.Limit))
	query := `SELECT part_id, process, doc_type, subject, outcome, document_id, attempts, published_at FROM publish_records` +
		clause + fmt.Sprintf(` ORDER BY published_at ASC LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list published")
	}
	defer rows.Close()

	var out []model.PublishRecord
	for rows.Next() {
		var r model.PublishRecord
		var docType, outcome string
		var docID *string
		if err := rows.Scan(&r.PartID, &r.Process, &docType, &r.Subject, &outcome, &docID, &r.Attempts, &r.PublishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan publish record")
		}
		r.DocType = model.DocType(docType)
		r.Outcome = model.PublishOutcome(outcome)
		if docID != nil {
			r.DocumentID = *docID
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list published iterate")
}

func (s *PostgresStore) IsPublished(ctx context.Context, partID, process string, docType model.DocType) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM publish_records WHERE part_id = $1 AND process = $2 AND doc_type = $3)`,
		partID, process, string(docType),
	).Scan(&ok)
	return ok, eris.Wrap(err, "postgres: is published")
}
