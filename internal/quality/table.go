// Package quality reads product quality measurement tables.
package quality

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/qhd-cli/internal/catalog"
	"github.com/sells-group/qhd-cli/internal/fetcher"
	"github.com/sells-group/qhd-cli/internal/model"
)

// DefaultTimestampLayout is the measurement timestamp format of the
// quality sheets.
const DefaultTimestampLayout = "02.01.2006 15:04:05"

// Record is one measured part.
type Record struct {
	ID         string
	MeasuredAt time.Time // zero when the table has no timestamp column
	Fields     map[string]any
}

// Table holds the records of one quality file, in file order.
type Table struct {
	Records []Record
	index   map[string]int
}

// Get returns the record of a part.
func (t *Table) Get(id string) (Record, error) {
	i, ok := t.index[id]
	if !ok {
		return Record{}, eris.Wrapf(model.ErrDataUnavailable, "quality: no measurements for part %s", id)
	}
	return t.Records[i], nil
}

// IDs returns the part ids in file order.
func (t *Table) IDs() []string {
	ids := make([]string, len(t.Records))
	for i, r := range t.Records {
		ids[i] = r.ID
	}
	return ids
}

// ReadTable reads a CSV or XLSX quality file described by spec.
func ReadTable(ctx context.Context, path string, spec catalog.ProductSpec) (*Table, error) {
	header, rows, err := readRows(ctx, path, spec)
	if err != nil {
		return nil, err
	}
	cols, err := resolve(header, spec)
	if err != nil {
		return nil, eris.Wrapf(err, "quality: %s", path)
	}

	layout := spec.TimestampLayout
	if layout == "" {
		layout = DefaultTimestampLayout
	}

	t := &Table{index: make(map[string]int, len(rows))}
	for n, row := range rows {
		id := cell(row, cols[spec.IDColumn])
		if id == "" {
			continue
		}
		if _, dup := t.index[id]; dup {
			zap.L().Warn("quality: duplicate part id, keeping first", zap.String("id", id), zap.String("path", path))
			continue
		}

		rec := Record{ID: id, Fields: make(map[string]any, len(spec.Fields))}
		if spec.TimestampColumn != "" {
			raw := cell(row, cols[spec.TimestampColumn])
			rec.MeasuredAt, err = time.ParseInLocation(layout, raw, time.UTC)
			if err != nil {
				return nil, eris.Wrapf(model.ErrSchemaMismatch, "quality: %s row %d: timestamp %q: %v", path, n+1, raw, err)
			}
		}
		for _, f := range spec.Fields {
			rec.Fields[f.Name] = value(cell(row, cols[f.Column]), f.Numeric)
		}

		t.index[id] = len(t.Records)
		t.Records = append(t.Records, rec)
	}
	return t, nil
}

func readRows(ctx context.Context, path string, spec catalog.ProductSpec) ([]string, [][]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		header, rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{SkipRows: spec.SkipRows})
		if err != nil {
			return nil, nil, eris.Wrapf(model.ErrDataUnavailable, "quality: %s: %v", path, err)
		}
		return header, rows, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, eris.Wrapf(model.ErrDataUnavailable, "quality: open %s: %v", path, err)
	}
	defer f.Close()

	delim := ','
	if spec.Delimiter != "" {
		delim, _ = utf8.DecodeRuneInString(spec.Delimiter)
	}
	header, rows, err := fetcher.ReadCSV(ctx, f, fetcher.CSVOptions{
		Delimiter:  delim,
		HasHeader:  true,
		SkipRows:   spec.SkipRows,
		Latin1:     strings.EqualFold(spec.Encoding, "latin1") || strings.EqualFold(spec.Encoding, "iso-8859-1"),
		LazyQuotes: true,
		TrimSpace:  true,
	})
	if err != nil {
		return nil, nil, eris.Wrapf(model.ErrDataUnavailable, "quality: %s: %v", path, err)
	}
	return header, rows, nil
}

// resolve maps every column the spec names to its header position.
func resolve(header []string, spec catalog.ProductSpec) (map[string]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, ok := pos[h]; !ok {
			pos[h] = i
		}
	}

	names := []string{spec.IDColumn}
	if spec.TimestampColumn != "" {
		names = append(names, spec.TimestampColumn)
	}
	for _, f := range spec.Fields {
		names = append(names, f.Column)
	}

	cols := make(map[string]int, len(names))
	for _, n := range names {
		i, ok := pos[n]
		if !ok {
			return nil, eris.Wrapf(model.ErrSchemaMismatch, "missing column %q", n)
		}
		cols[n] = i
	}
	return cols, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// value converts a raw cell. Numeric cells use a decimal comma in the
// source; cells that still do not parse are kept as text.
func value(raw string, numeric bool) any {
	if raw == "" {
		return nil
	}
	if !numeric {
		return raw
	}
	norm := strings.ReplaceAll(raw, ",", ".")
	if v, err := strconv.ParseFloat(norm, 64); err == nil {
		return v
	}
	return norm
}
