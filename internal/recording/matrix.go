package recording

import (
	"bytes"
	"math"
	"os"
	"strconv"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/ipc"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/edsrzf/mmap-go"
	"github.com/rotisserie/eris"

	"github.com/sells-group/qhd-cli/internal/catalog"
	"github.com/sells-group/qhd-cli/internal/model"
)

// unitKey is the metadata key that overrides a stream's catalog time unit.
const unitKey = "unit"

// readMatrixFile decodes an Arrow IPC file holding a sample matrix.
// Column 0 is time, the remaining columns are the stream's channels.
// The file is mapped read-only for the duration of the call.
func readMatrixFile(path string, spec catalog.StreamSpec) (*model.Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(model.ErrDataUnavailable, "recording: open %s: %v", path, err)
	}
	defer f.Close()

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, eris.Wrapf(model.ErrDataUnavailable, "recording: map %s: %v", path, err)
	}
	defer m.Unmap() //nolint:errcheck

	r, err := ipc.NewFileReader(bytes.NewReader(m), ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, eris.Wrapf(model.ErrDataUnavailable, "recording: read arrow file %s: %v", path, err)
	}
	defer r.Close()

	cols, err := resolveColumns(r.Schema(), spec)
	if err != nil {
		return nil, eris.Wrapf(err, "recording: %s", path)
	}
	unit := resolveUnit(r.Schema(), spec.Unit)

	stream := &model.Stream{Name: spec.Name, Channels: spec.Channels}
	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.Record(i)
		if err != nil {
			return nil, eris.Wrapf(model.ErrDataUnavailable, "recording: record %d of %s: %v", i, path, err)
		}
		if err := appendRows(stream, rec, cols, unit); err != nil {
			return nil, eris.Wrapf(err, "recording: record %d of %s", i, path)
		}
	}
	stream.SortByTime()
	return stream, nil
}

// resolveColumns maps every catalog channel to a record column. Named
// lookup is used when the schema carries the channel names; unnamed or
// numbered fields fall back to catalog order when the count matches.
// The returned slice holds the time column first.
func resolveColumns(schema *arrow.Schema, spec catalog.StreamSpec) ([]int, error) {
	want := len(spec.Channels) + 1
	cols := make([]int, 0, want)
	cols = append(cols, 0)

	named := true
	for _, ch := range spec.Channels {
		idx := schema.FieldIndices(ch)
		if len(idx) == 0 {
			named = false
			break
		}
		cols = append(cols, idx[0])
	}
	if named {
		return cols, nil
	}

	if !positional(schema) {
		return nil, eris.Wrapf(model.ErrSchemaMismatch, "stream %s: field names do not match catalog channels", spec.Name)
	}
	if schema.NumFields() != want {
		return nil, eris.Wrapf(model.ErrSchemaMismatch, "stream %s: %d columns, catalog declares %d channels",
			spec.Name, schema.NumFields()-1, len(spec.Channels))
	}
	cols = cols[:1]
	for i := 1; i < want; i++ {
		cols = append(cols, i)
	}
	return cols, nil
}

// positional reports whether the data fields carry no usable names.
func positional(schema *arrow.Schema) bool {
	for _, f := range schema.Fields()[1:] {
		if f.Name == "" {
			continue
		}
		if _, err := strconv.Atoi(f.Name); err != nil {
			return false
		}
	}
	return true
}

// resolveUnit prefers a unit recorded on the time field, then on the
// schema, then the catalog's.
func resolveUnit(schema *arrow.Schema, fallback model.TimeUnit) model.TimeUnit {
	if schema.NumFields() > 0 {
		f := schema.Field(0)
		if u, ok := metadataUnit(f.Metadata); ok {
			return u
		}
	}
	if u, ok := metadataUnit(schema.Metadata()); ok {
		return u
	}
	return fallback
}

func metadataUnit(md arrow.Metadata) (model.TimeUnit, bool) {
	i := md.FindKey(unitKey)
	if i < 0 {
		return "", false
	}
	u, err := model.ParseTimeUnit(md.Values()[i])
	if err != nil {
		return "", false
	}
	return u, true
}

// appendRows converts one record batch to stream rows.
func appendRows(s *model.Stream, rec arrow.Record, cols []int, unit model.TimeUnit) error {
	if int(rec.NumCols()) < len(cols) {
		return eris.Wrapf(model.ErrSchemaMismatch, "record has %d columns, need %d", rec.NumCols(), len(cols))
	}
	n := int(rec.NumRows())
	times, err := columnValues(rec.Column(cols[0]))
	if err != nil {
		return err
	}
	channels := make([][]float64, len(cols)-1)
	for j, c := range cols[1:] {
		if channels[j], err = columnValues(rec.Column(c)); err != nil {
			return err
		}
	}

	for i := 0; i < n; i++ {
		row := make([]float64, len(channels))
		for j := range channels {
			row[j] = channels[j][i]
		}
		s.Time = append(s.Time, unit.ToTimestamp(times[i]))
		s.Values = append(s.Values, row)
	}
	return nil
}

// columnValues widens a numeric Arrow column to float64. Nulls become NaN.
func columnValues(col arrow.Array) ([]float64, error) {
	out := make([]float64, col.Len())
	switch a := col.(type) {
	case *array.Float64:
		for i := range out {
			out[i] = a.Value(i)
		}
	case *array.Float32:
		for i := range out {
			out[i] = float64(a.Value(i))
		}
	case *array.Int64:
		for i := range out {
			out[i] = float64(a.Value(i))
		}
	case *array.Int32:
		for i := range out {
			out[i] = float64(a.Value(i))
		}
	case *array.Uint64:
		for i := range out {
			out[i] = float64(a.Value(i))
		}
	default:
		return nil, eris.Wrapf(model.ErrSchemaMismatch, "unsupported column type %s", col.DataType())
	}
	for i := range out {
		if col.IsNull(i) {
			out[i] = math.NaN()
		}
	}
	return out, nil
}
