package recording

import (
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/ipc"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/qhd-cli/internal/catalog"
)

// buildRecord assembles a float64 record from named columns.
func buildRecord(t *testing.T, names []string, md *arrow.Metadata, cols [][]float64) arrow.Record {
	t.Helper()
	fields := make([]arrow.Field, len(names))
	for i, n := range names {
		fields[i] = arrow.Field{Name: n, Type: arrow.PrimitiveTypes.Float64}
	}
	schema := arrow.NewSchema(fields, md)

	b := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer b.Release()
	for i, c := range cols {
		b.Field(i).(*array.Float64Builder).AppendValues(c, nil)
	}
	return b.NewRecord()
}

// writeMatrix writes an Arrow IPC file with a time column and channels.
func writeMatrix(t *testing.T, path string, names []string, md *arrow.Metadata, cols [][]float64) {
	t.Helper()
	rec := buildRecord(t, names, md, cols)
	defer rec.Release()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w, err := ipc.NewFileWriter(f, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(memory.NewGoAllocator()))
	require.NoError(t, err)
	require.NoError(t, w.Write(rec))
	require.NoError(t, w.Close())
}

// encodeStream encodes columns as an Arrow IPC stream blob.
func encodeStream(t *testing.T, names []string, cols [][]float64) []byte {
	t.Helper()
	rec := buildRecord(t, names, nil, cols)
	defer rec.Release()

	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(rec.Schema()))
	require.NoError(t, w.Write(rec))
	require.NoError(t, w.Close())
	return buf.Bytes()
}

type boundaryRow struct {
	key   string
	ts    float64
	label string
}

// writeContainer creates a container file with the given datasets.
func writeContainer(t *testing.T, datasets map[string][]byte, bounds []boundaryRow) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "container.sqlite")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE datasets (key TEXT PRIMARY KEY, data BLOB)`)
	require.NoError(t, err)
	for k, v := range datasets {
		_, err = db.Exec(`INSERT INTO datasets (key, data) VALUES (?, ?)`, k, v)
		require.NoError(t, err)
	}
	if bounds != nil {
		_, err = db.Exec(`CREATE TABLE boundaries (key TEXT, ts REAL, label TEXT)`)
		require.NoError(t, err)
		for _, b := range bounds {
			_, err = db.Exec(`INSERT INTO boundaries (key, ts, label) VALUES (?, ?, ?)`, b.key, b.ts, b.label)
			require.NoError(t, err)
		}
	}
	return path
}

// testCatalog is a small two-sided directory catalog.
func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Parse([]byte(`
process: milling
part_type: cylinder_bottom
layout: directory
boundary_unit: s
timing_stream: acc
sides:
  - name: side_1
    boundary_file: front.csv
    files: {acc: front_acc.arrow}
  - name: side_2
    boundary_file: back.json
    files: {acc: back_acc.arrow}
steps:
  - {side: side_1, name: roughing}
  - {side: side_1, name: drilling}
  - {side: side_2, name: deburring}
streams:
  - name: acc
    group: features_acc
    unit: us
    channels: [acc_x, acc_y]
`))
	require.NoError(t, err)
	return cat
}

func containerCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Parse([]byte(`
process: sawing
part_type: piston_rod
layout: container
container_file: container.sqlite
boundary_unit: s
timing_stream: signals
steps:
  - {name: cutting}
streams:
  - name: signals
    group: features
    unit: s
    channels: [Position, Temp]
`))
	require.NoError(t, err)
	return cat
}
