// Package store persists the failure log and publish records.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/qhd-cli/internal/model"
	"github.com/sells-group/qhd-cli/internal/resilience"
)

// PublishFilter narrows a publish record query.
type PublishFilter struct {
	PartID  string        `json:"part_id,omitempty"`
	Process string        `json:"process,omitempty"`
	DocType model.DocType `json:"doc_type,omitempty"`
	Limit   int           `json:"limit,omitempty"`
}

// Store is the persistence interface of the pipeline. The failure log is
// append-only.
type Store interface {
	// Failure log
	AppendFailure(ctx context.Context, e model.FailureEntry) error
	ListFailures(ctx context.Context, filter resilience.FailureFilter) ([]model.FailureEntry, error)
	CountFailures(ctx context.Context) (int, error)

	// Publish records
	RecordPublish(ctx context.Context, r model.PublishRecord) error
	ListPublished(ctx context.Context, filter PublishFilter) ([]model.PublishRecord, error)
	IsPublished(ctx context.Context, partID, process string, docType model.DocType) (bool, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Drivers understood by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open returns the store for driver and runs its migration.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		st  Store
		err error
	)
	switch driver {
	case DriverSQLite, "":
		st, err = NewSQLite(dsn)
	case DriverPostgres:
		st, err = NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

const defaultLimit = 100

func limitOf(n int) int {
	if n <= 0 {
		return defaultLimit
	}
	return n
}

func utc(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
