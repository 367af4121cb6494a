// Package feature computes per-segment statistical features from labeled
// sample rows.
package feature

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/qhd-cli/internal/model"
)

// Row is one time-stamped sample attributed to a segment.
type Row struct {
	SegmentID string
	Time      model.Timestamp
	Values    []float64
}

// LabeledRows is the long-form input of an Extractor. Values of each row
// follow Channels.
type LabeledRows struct {
	Channels []string
	Rows     []Row
}

// FromSegments flattens segments of one stream into labeled rows.
func FromSegments(channels []string, segs []model.Segment) LabeledRows {
	n := 0
	for _, s := range segs {
		n += s.Len()
	}
	lr := LabeledRows{Channels: channels, Rows: make([]Row, 0, n)}
	for _, s := range segs {
		for i, ts := range s.Time {
			lr.Rows = append(lr.Rows, Row{SegmentID: s.ID, Time: ts, Values: s.Values[i]})
		}
	}
	return lr
}

// Extractor turns labeled rows into one feature row per segment id that
// has at least one row. Column names follow `{channel}__{feature}`.
type Extractor interface {
	Extract(ctx context.Context, rows LabeledRows) (*Table, error)
}

// ColumnName composes a feature column name.
func ColumnName(channel, feature string) string {
	return channel + "__" + feature
}

// Table is an ordered feature table keyed by segment id.
type Table struct {
	Columns []string
	ids     []string
	rows    map[string][]float64
}

// NewTable creates an empty table with the given columns.
func NewTable(columns []string) *Table {
	return &Table{Columns: columns, rows: make(map[string][]float64)}
}

// Append adds the row of one segment id. Values follow Columns.
func (t *Table) Append(id string, values []float64) error {
	if len(values) != len(t.Columns) {
		return eris.Wrapf(model.ErrSchemaMismatch, "feature: row %s has %d values for %d columns", id, len(values), len(t.Columns))
	}
	if _, ok := t.rows[id]; !ok {
		t.ids = append(t.ids, id)
	}
	t.rows[id] = values
	return nil
}

// IDs returns the segment ids in row order.
func (t *Table) IDs() []string {
	return append([]string(nil), t.ids...)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.ids)
}

// Lookup returns the features of one segment id. A segment that produced
// no row fails with model.ErrEmptySegment.
func (t *Table) Lookup(id string) (map[string]float64, error) {
	vals, ok := t.rows[id]
	if !ok {
		return nil, eris.Wrapf(model.ErrEmptySegment, "feature: no features for segment %s", id)
	}
	out := make(map[string]float64, len(t.Columns))
	for i, c := range t.Columns {
		out[c] = vals[i]
	}
	return out, nil
}

// Reorder sorts rows by the position of their id in categories. Ids not
// listed keep their relative order after the listed ones.
func (t *Table) Reorder(categories []string) {
	pos := make(map[string]int, len(categories))
	for i, c := range categories {
		pos[c] = i
	}
	ordered := make([]string, 0, len(t.ids))
	for _, c := range categories {
		if _, ok := t.rows[c]; ok {
			ordered = append(ordered, c)
		}
	}
	for _, id := range t.ids {
		if _, ok := pos[id]; !ok {
			ordered = append(ordered, id)
		}
	}
	t.ids = ordered
}
