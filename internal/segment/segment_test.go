package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/qhd-cli/internal/catalog"
	"github.com/sells-group/qhd-cli/internal/model"
)

func newCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Parse([]byte(`
process: sawing
part_type: piston_rod
layout: container
container_file: c.sqlite
boundary_unit: s
timing_stream: s
steps:
  - {name: a}
  - {name: b}
  - {name: c}
streams:
  - {name: s, group: features, unit: us, channels: [v]}
`))
	require.NoError(t, err)
	return cat
}

func stream(times ...model.Timestamp) *model.Stream {
	s := &model.Stream{Name: "s", Channels: []string{"v"}}
	for i, ts := range times {
		s.Time = append(s.Time, ts)
		s.Values = append(s.Values, []float64{float64(i + 1)})
	}
	return s
}

func values(seg model.Segment) []float64 {
	out := make([]float64, 0, seg.Len())
	for _, row := range seg.Values {
		out = append(out, row[0])
	}
	return out
}

func TestSplit_EndToEndExample(t *testing.T) {
	s := New(newCatalog(t))
	segs, err := s.Split("", stream(100, 150, 200, 300), []model.Boundary{
		{Time: 100, Label: "a"},
		{Time: 200, Label: "b"},
	})
	require.NoError(t, err)
	require.Len(t, segs, 2)

	assert.Equal(t, "a", segs[0].ID)
	assert.Equal(t, []model.Timestamp{100, 150}, segs[0].Time)
	assert.Equal(t, []float64{1, 2}, values(segs[0]))

	assert.Equal(t, "b", segs[1].ID)
	assert.Equal(t, []model.Timestamp{200, 300}, segs[1].Time)
	assert.Equal(t, []float64{3, 4}, values(segs[1]))

	times, end, err := ProcessingTimes(segs, []string{"a", "b"}, model.UnitMicroseconds)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"a": 50, "b": 100}, times)
	assert.Equal(t, model.Timestamp(300), end)
}

func TestSplit_PartitionProperty(t *testing.T) {
	st := stream(0, 10, 20, 30, 40, 50, 60, 70)
	bounds := []model.Boundary{{Time: 35, Label: "b"}, {Time: 0, Label: "a"}, {Time: 60, Label: "c"}}

	segs, err := New(newCatalog(t)).Split("", st, bounds)
	require.NoError(t, err)
	require.Len(t, segs, len(bounds))

	// Contiguous, non-overlapping, label-ordered, covering every sample.
	assert.Equal(t, []string{"a", "b", "c"}, []string{segs[0].ID, segs[1].ID, segs[2].ID})
	var all []model.Timestamp
	for _, seg := range segs {
		all = append(all, seg.Time...)
	}
	assert.Equal(t, st.Time, all)
}

func TestSplit_HalfOpenBounds(t *testing.T) {
	segs, err := New(newCatalog(t)).Split("", stream(99, 100, 199, 200), []model.Boundary{
		{Time: 100, Label: "a"},
		{Time: 200, Label: "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, []model.Timestamp{100, 199}, segs[0].Time)
	assert.Equal(t, []model.Timestamp{200}, segs[1].Time)
}

func TestSplit_StableTieBreak(t *testing.T) {
	segs, err := New(newCatalog(t)).Split("", stream(100, 150), []model.Boundary{
		{Time: 100, Label: "b"},
		{Time: 100, Label: "a"},
	})
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.Equal(t, "b", segs[0].ID)
	assert.Equal(t, 0, segs[0].Len())
	assert.Equal(t, "a", segs[1].ID)
	assert.Equal(t, []model.Timestamp{100, 150}, segs[1].Time)
}

func TestSplit_DoesNotModifyInputs(t *testing.T) {
	bounds := []model.Boundary{{Time: 200, Label: "b"}, {Time: 100, Label: "a"}}
	st := &model.Stream{Name: "s", Channels: []string{"v"},
		Time: []model.Timestamp{200, 100}, Values: [][]float64{{2}, {1}}}

	_, err := New(newCatalog(t)).Split("", st, bounds)
	require.NoError(t, err)
	assert.Equal(t, "b", bounds[0].Label)
	assert.Equal(t, []model.Timestamp{200, 100}, st.Time)
}

func TestSplit_DegenerateCase(t *testing.T) {
	bounds := []model.Boundary{
		{Time: 100, Label: "a"},
		{Time: 200, Label: "b"},
		{Time: 250, Label: "c"},
	}
	st := stream(100, 150, 300)

	segs, err := New(newCatalog(t), WithDegenerateFill()).Split("", st, bounds)
	require.NoError(t, err)
	require.Len(t, segs, 3)
	assert.True(t, segs[1].Degenerate)
	assert.Equal(t, []model.Timestamp{200}, segs[1].Time)
	assert.Equal(t, [][]float64{{0}}, segs[1].Values)
	assert.False(t, segs[2].Degenerate)

	// Without the policy the same input yields an empty segment and the
	// processing time lookup fails.
	segs, err = New(newCatalog(t)).Split("", st, bounds)
	require.NoError(t, err)
	assert.Equal(t, 0, segs[1].Len())
	_, _, err = ProcessingTimes(segs, []string{"a", "b", "c"}, model.UnitSeconds)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrEmptySegment)
}

func TestSplit_UnknownLabel(t *testing.T) {
	_, err := New(newCatalog(t)).Split("", stream(1), []model.Boundary{{Time: 1, Label: "polishing"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrSchemaMismatch)
}

func TestSplit_SamplesBeforeFirstBoundaryDropped(t *testing.T) {
	segs, err := New(newCatalog(t)).Split("", stream(10, 20, 30), []model.Boundary{{Time: 25, Label: "a"}})
	require.NoError(t, err)
	assert.Equal(t, []model.Timestamp{30}, segs[0].Time)
}

func TestSplitPart_Sides(t *testing.T) {
	cat, err := catalog.Parse([]byte(`
process: milling
part_type: cylinder_bottom
layout: directory
boundary_unit: s
timing_stream: acc
sides:
  - {name: side_1, boundary_file: f.csv, files: {acc: f.arrow}}
  - {name: side_2, boundary_file: b.csv, files: {acc: b.arrow}}
steps:
  - {side: side_1, name: drilling}
  - {side: side_2, name: drilling}
streams:
  - {name: acc, group: features_acc, unit: us, channels: [v]}
`))
	require.NoError(t, err)

	rec := &model.PartRecording{PartID: "1", Sides: []model.SideRecording{
		{Name: "side_1", Streams: map[string]*model.Stream{"acc": stream(1, 2)},
			Boundaries: []model.Boundary{{Time: 1, Label: "drilling"}}},
		{Name: "side_2", Streams: map[string]*model.Stream{"acc": stream(5)},
			Boundaries: []model.Boundary{{Time: 5, Label: "drilling"}}},
	}}

	out, err := New(cat).SplitPart(rec)
	require.NoError(t, err)
	require.Len(t, out["acc"], 2)
	assert.Equal(t, "side_1_drilling", out["acc"][0].ID)
	assert.Equal(t, "side_2_drilling", out["acc"][1].ID)
}

func TestProcessingTimes_MissingID(t *testing.T) {
	segs := []model.Segment{{ID: "a", Time: []model.Timestamp{0, 1_000_000}}}
	_, _, err := ProcessingTimes(segs, []string{"a", "b"}, model.UnitSeconds)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrEmptySegment)
	assert.Contains(t, err.Error(), "b")
}

func TestProcessingTimes_Seconds(t *testing.T) {
	segs := []model.Segment{
		{ID: "a", Time: []model.Timestamp{1_000_000, 3_500_000}},
		{ID: "b", Time: []model.Timestamp{4_000_000, 9_000_000}},
	}
	times, end, err := ProcessingTimes(segs, []string{"a", "b"}, model.UnitSeconds)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, times["a"], 1e-9)
	assert.InDelta(t, 5.0, times["b"], 1e-9)
	assert.Equal(t, model.Timestamp(9_000_000), end)
}
