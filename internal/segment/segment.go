// Package segment partitions sample streams into process-step segments
// using timestamp boundaries.
package segment

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/qhd-cli/internal/catalog"
	"github.com/sells-group/qhd-cli/internal/model"
)

// Segmenter splits streams by boundary list. Segments are half-open:
// boundary i owns [b[i], b[i+1]), the last one owns [b[last], +inf).
// Samples before the first boundary belong to no segment.
type Segmenter struct {
	labels map[string]map[string]bool // side -> known step names
	fill   bool
}

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithDegenerateFill makes an empty segment carry exactly one zero-valued
// row at its boundary time instead of no rows.
func WithDegenerateFill() Option {
	return func(s *Segmenter) { s.fill = true }
}

// New creates a segmenter that accepts the step names of cat.
func New(cat *catalog.Catalog, opts ...Option) *Segmenter {
	s := &Segmenter{labels: make(map[string]map[string]bool)}
	for _, st := range cat.Steps {
		if s.labels[st.Side] == nil {
			s.labels[st.Side] = make(map[string]bool)
		}
		s.labels[st.Side][st.Name] = true
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Split partitions one stream of one side. The boundary list is sorted by
// time with equal times keeping their input order; the earlier of two
// tied boundaries gets an empty window. Neither argument is modified.
func (s *Segmenter) Split(side string, stream *model.Stream, boundaries []model.Boundary) ([]model.Segment, error) {
	bounds := make([]model.Boundary, len(boundaries))
	copy(bounds, boundaries)
	sort.SliceStable(bounds, func(i, j int) bool { return bounds[i].Time < bounds[j].Time })

	for _, b := range bounds {
		if !s.labels[side][b.Label] {
			return nil, eris.Wrapf(model.ErrSchemaMismatch, "segment: unknown step %q on side %q", b.Label, side)
		}
	}

	src := sorted(stream)
	segs := make([]model.Segment, len(bounds))
	for i, b := range bounds {
		lo := lowerBound(src.Time, b.Time)
		hi := len(src.Time)
		if i < len(bounds)-1 {
			hi = lowerBound(src.Time, bounds[i+1].Time)
		}

		seg := model.Segment{
			ID:     model.SegmentID(side, b.Label),
			Side:   side,
			Step:   b.Label,
			Stream: src.Name,
			Start:  b.Time,
			Time:   src.Time[lo:hi],
			Values: src.Values[lo:hi],
		}
		if seg.Len() == 0 && s.fill {
			seg.Time = []model.Timestamp{b.Time}
			seg.Values = [][]float64{make([]float64, len(src.Channels))}
			seg.Degenerate = true
		}
		segs[i] = seg
	}
	return segs, nil
}

// SplitPart segments every stream of every side of a recording. Segments
// are keyed by stream name and ordered side by side.
func (s *Segmenter) SplitPart(rec *model.PartRecording) (map[string][]model.Segment, error) {
	out := make(map[string][]model.Segment)
	for _, side := range rec.Sides {
		names := make([]string, 0, len(side.Streams))
		for name := range side.Streams {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			segs, err := s.Split(side.Name, side.Streams[name], side.Boundaries)
			if err != nil {
				return nil, eris.Wrapf(err, "segment: part %s stream %s", rec.PartID, name)
			}
			out[name] = append(out[name], segs...)
		}
	}
	return out, nil
}

// lowerBound returns the first index whose time is >= t.
func lowerBound(times []model.Timestamp, t model.Timestamp) int {
	return sort.Search(len(times), func(i int) bool { return times[i] >= t })
}

// sorted returns the stream itself when it is already in time order and a
// sorted copy otherwise.
func sorted(s *model.Stream) *model.Stream {
	if s == nil {
		return &model.Stream{}
	}
	if sort.SliceIsSorted(s.Time, func(i, j int) bool { return s.Time[i] < s.Time[j] }) {
		return s
	}
	cp := &model.Stream{
		Name:     s.Name,
		Channels: s.Channels,
		Time:     append([]model.Timestamp(nil), s.Time...),
		Values:   append([][]float64(nil), s.Values...),
	}
	cp.SortByTime()
	return cp
}
