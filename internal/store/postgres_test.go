package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/qhd-cli/internal/model"
	"github.com/sells-group/qhd-cli/internal/resilience"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS failures`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendFailure(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	at := time.Date(2022, 8, 16, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO failures`).
		WithArgs("f1", "1", "milling", "process_qh", "boom", "permanent", at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.AppendFailure(context.Background(), model.FailureEntry{
		ID: "f1", PartID: "1", Process: "milling", DocType: model.DocTypeProcess,
		Error: "boom", ErrorType: "permanent", CreatedAt: at,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListFailures_Filtered(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	at := time.Date(2022, 8, 16, 9, 0, 0, 0, time.UTC)

	rows := mock.NewRows([]string{"id", "part_id", "process", "doc_type", "error", "error_type", "created_at"}).
		AddRow("f1", "1", "milling", "data_qh", "timeout", "transient", at)
	mock.ExpectQuery(`SELECT id, part_id, process, doc_type, error, error_type, created_at FROM failures WHERE error_type = \$1 ORDER BY created_at ASC LIMIT \$2`).
		WithArgs("transient", 100).
		WillReturnRows(rows)

	got, err := s.ListFailures(context.Background(), resilience.FailureFilter{ErrorType: "transient"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.DocTypeData, got[0].DocType)
	assert.Equal(t, at, got[0].CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountFailures(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM failures`).
		WillReturnRows(mock.NewRows([]string{"count"}).AddRow(3))

	n, err := s.CountFailures(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordPublish(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	at := time.Date(2022, 8, 16, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO publish_records`).
		WithArgs(pgxmock.AnyArg(), "7", "sawing", "process_qh", "subj", "created", "doc-1", 1, at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.RecordPublish(context.Background(), model.PublishRecord{
		PartID: "7", Process: "sawing", DocType: model.DocTypeProcess, Subject: "subj",
		Outcome: model.PublishCreated, DocumentID: "doc-1", Attempts: 1, PublishedAt: at,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListPublished(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	at := time.Date(2022, 8, 16, 9, 0, 0, 0, time.UTC)
	docID := "doc-1"

	rows := mock.NewRows([]string{"part_id", "process", "doc_type", "subject", "outcome", "document_id", "attempts", "published_at"}).
		AddRow("7", "sawing", "process_qh", "subj", "created", &docID, 2, at).
		AddRow("8", "sawing", "process_qh", "subj2", "conflict", nil, 1, at)
	mock.ExpectQuery(`FROM publish_records WHERE process = \$1 AND doc_type = \$2 ORDER BY published_at ASC LIMIT \$3`).
		WithArgs("sawing", "process_qh", 5).
		WillReturnRows(rows)

	got, err := s.ListPublished(context.Background(), PublishFilter{Process: "sawing", DocType: model.DocTypeProcess, Limit: 5})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "doc-1", got[0].DocumentID)
	assert.Equal(t, model.PublishConflict, got[1].Outcome)
	assert.Empty(t, got[1].DocumentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_IsPublished(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("7", "sawing", "data_qh").
		WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := s.IsPublished(context.Background(), "7", "sawing", model.DocTypeData)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Close(t *testing.T) {
	var closed bool
	s := &PostgresStore{closeFn: func() { closed = true }}
	require.NoError(t, s.Close())
	assert.True(t, closed)
}
