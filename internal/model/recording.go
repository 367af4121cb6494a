package model

import "sort"

// Stream is a wide sample table: one shared time column and N value
// columns. Values is row-major, Values[i][j] is channel j at Time[i].
type Stream struct {
	Name     string
	Channels []string
	Time     []Timestamp
	Values   [][]float64
}

// Len returns the number of rows.
func (s *Stream) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Time)
}

// ChannelIndex returns the column index of the named channel.
func (s *Stream) ChannelIndex(name string) (int, bool) {
	for i, c := range s.Channels {
		if c == name {
			return i, true
		}
	}
	return -1, false
}

// SortByTime orders rows by time, keeping the input order of equal times.
func (s *Stream) SortByTime() {
	if sort.SliceIsSorted(s.Time, func(i, j int) bool { return s.Time[i] < s.Time[j] }) {
		return
	}
	idx := make([]int, len(s.Time))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return s.Time[idx[a]] < s.Time[idx[b]] })

	times := make([]Timestamp, len(idx))
	values := make([][]float64, len(idx))
	for i, k := range idx {
		times[i] = s.Time[k]
		values[i] = s.Values[k]
	}
	s.Time = times
	s.Values = values
}

// Bounds returns the first and last sample time. ok is false for an empty
// stream.
func (s *Stream) Bounds() (first, last Timestamp, ok bool) {
	if s.Len() == 0 {
		return 0, 0, false
	}
	return s.Time[0], s.Time[len(s.Time)-1], true
}

// Boundary marks the start of a process step.
type Boundary struct {
	Time  Timestamp `json:"time"`
	Label string    `json:"label"`
}

// SideRecording holds the streams and boundary list of one physical side
// of a part. Name is empty for single-sided recordings.
type SideRecording struct {
	Name       string
	Streams    map[string]*Stream
	Boundaries []Boundary
}

// PartRecording is everything captured for one manufactured unit.
type PartRecording struct {
	PartID  string
	Process string
	Sides   []SideRecording

	// FillEmpty asks the segmenter to substitute a single zero-valued row
	// for any segment that would otherwise be empty.
	FillEmpty bool
}

// Segment is the slice of one stream attributed to one process step.
type Segment struct {
	ID         string
	Side       string
	Step       string
	Stream     string
	Start      Timestamp
	Time       []Timestamp
	Values     [][]float64
	Degenerate bool
}

// Len returns the number of rows in the segment.
func (s Segment) Len() int {
	return len(s.Time)
}

// SegmentID composes the identifier of a step on a side.
func SegmentID(side, step string) string {
	if side == "" {
		return step
	}
	return side + "_" + step
}
