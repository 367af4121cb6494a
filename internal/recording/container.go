package recording

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"

	"github.com/apache/arrow/go/v18/arrow/ipc"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/qhd-cli/internal/catalog"
	"github.com/sells-group/qhd-cli/internal/model"
)

// ContainerLoader reads layout B: one SQLite container keyed by part id.
//
//	datasets(key TEXT PRIMARY KEY, data BLOB)
//	boundaries(key TEXT, ts REAL, label TEXT)  -- optional
//
// Each blob is an Arrow IPC stream whose columns are the dataset rows:
// column 0 holds timestamps, then one column per catalog channel, then a
// trailing padding column that is dropped.
type ContainerLoader struct {
	cat           *catalog.Catalog
	spec          catalog.StreamSpec
	db            *sql.DB
	hasBoundaries bool
}

// OpenContainer opens an existing container file. It is only ever read.
func OpenContainer(ctx context.Context, cat *catalog.Catalog, path string) (*ContainerLoader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, eris.Wrapf(model.ErrDataUnavailable, "recording: container %s: %v", path, err)
	}
	spec, ok := cat.Stream(cat.TimingStream)
	if !ok {
		return nil, eris.Errorf("recording: catalog %s has no stream %s", cat.Process, cat.TimingStream)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrapf(model.ErrDataUnavailable, "recording: open container %s: %v", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, eris.Wrapf(model.ErrDataUnavailable, "recording: open container %s: %v", path, err)
	}

	var n int
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'boundaries'`).Scan(&n)
	if err != nil {
		db.Close()
		return nil, eris.Wrapf(model.ErrDataUnavailable, "recording: inspect container %s: %v", path, err)
	}

	return &ContainerLoader{cat: cat, spec: spec, db: db, hasBoundaries: n > 0}, nil
}

// PartIDs lists the dataset keys.
func (l *ContainerLoader) PartIDs(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT key FROM datasets`)
	if err != nil {
		return nil, eris.Wrapf(model.ErrDataUnavailable, "recording: list datasets: %v", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "recording: scan dataset key")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "recording: list datasets")
	}
	sortPartIDs(ids)
	return ids, nil
}

// Load decodes the dataset of one part.
func (l *ContainerLoader) Load(ctx context.Context, partID string) (*model.PartRecording, error) {
	var blob []byte
	err := l.db.QueryRowContext(ctx, `SELECT data FROM datasets WHERE key = ?`, partID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrDataUnavailable, "recording: no dataset %s", partID)
	}
	if err != nil {
		return nil, eris.Wrapf(model.ErrDataUnavailable, "recording: read dataset %s: %v", partID, err)
	}

	stream, err := l.decode(blob)
	if err != nil {
		return nil, eris.Wrapf(err, "recording: dataset %s", partID)
	}
	first, _, ok := stream.Bounds()
	if !ok {
		return nil, eris.Wrapf(model.ErrDataUnavailable, "recording: dataset %s holds no samples", partID)
	}

	bounds, err := l.boundaries(ctx, partID)
	if err != nil {
		return nil, err
	}
	if len(bounds) == 0 {
		bounds = []model.Boundary{{Time: first, Label: l.cat.Steps[0].Name}}
	}

	return &model.PartRecording{
		PartID:  partID,
		Process: l.cat.Process,
		Sides: []model.SideRecording{{
			Streams:    map[string]*model.Stream{l.spec.Name: stream},
			Boundaries: bounds,
		}},
		FillEmpty: true,
	}, nil
}

func (l *ContainerLoader) decode(blob []byte) (*model.Stream, error) {
	r, err := ipc.NewReader(bytes.NewReader(blob), ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, eris.Wrapf(model.ErrDataUnavailable, "decode arrow stream: %v", err)
	}
	defer r.Release()

	want := len(l.spec.Channels) + 2
	if got := r.Schema().NumFields(); got != want {
		return nil, eris.Wrapf(model.ErrSchemaMismatch, "%d rows, catalog declares %d channels plus time and padding",
			got, len(l.spec.Channels))
	}
	cols := make([]int, want-1)
	for i := range cols {
		cols[i] = i
	}
	unit := resolveUnit(r.Schema(), l.spec.Unit)

	stream := &model.Stream{Name: l.spec.Name, Channels: l.spec.Channels}
	for r.Next() {
		if err := appendRows(stream, r.Record(), cols, unit); err != nil {
			return nil, err
		}
	}
	if err := r.Err(); err != nil {
		return nil, eris.Wrapf(model.ErrDataUnavailable, "decode arrow stream: %v", err)
	}
	stream.SortByTime()
	return stream, nil
}

func (l *ContainerLoader) boundaries(ctx context.Context, partID string) ([]model.Boundary, error) {
	if !l.hasBoundaries {
		return nil, nil
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT ts, label FROM boundaries WHERE key = ? ORDER BY rowid`, partID)
	if err != nil {
		return nil, eris.Wrapf(model.ErrDataUnavailable, "recording: read boundaries %s: %v", partID, err)
	}
	defer rows.Close()

	var out []model.Boundary
	for rows.Next() {
		var ts float64
		var label string
		if err := rows.Scan(&ts, &label); err != nil {
			return nil, eris.Wrapf(model.ErrSchemaMismatch, "recording: scan boundary %s: %v", partID, err)
		}
		out = append(out, model.Boundary{Time: l.cat.BoundaryUnit.ToTimestamp(ts), Label: label})
	}
	return out, eris.Wrap(rows.Err(), "recording: read boundaries")
}

// Close releases the container handle.
func (l *ContainerLoader) Close() error {
	return l.db.Close()
}
