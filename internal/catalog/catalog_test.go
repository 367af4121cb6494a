package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/qhd-cli/internal/model"
)

func TestBuiltin(t *testing.T) {
	assert.Equal(t, []string{"milling", "sawing", "turning"}, Builtin())
}

func TestLoad_Milling(t *testing.T) {
	c, err := Load("milling")
	require.NoError(t, err)

	assert.Equal(t, "cylinder_bottom", c.PartType)
	assert.Equal(t, LayoutDirectory, c.Layout)
	assert.Equal(t, model.UnitSeconds, c.BoundaryUnit)
	require.Len(t, c.Steps, 13)

	ids := c.SegmentIDs()
	assert.Equal(t, "side_1_outer_contour_roughing_and_finishing", ids[0])
	assert.Equal(t, "side_2_ring_groove", ids[12])
	assert.Len(t, c.StepsOn("side_1"), 9)
	assert.Len(t, c.StepsOn("side_2"), 4)

	acc, ok := c.Stream("acc")
	require.True(t, ok)
	assert.Equal(t, model.UnitMicroseconds, acc.Unit)
	assert.Equal(t, "features_acc", acc.Group)

	bfc, ok := c.Stream("bfc")
	require.True(t, ok)
	assert.Len(t, bfc.Channels, 31)
	assert.Equal(t, 13, bfc.ChannelColumns()["cmdAngPos1"])

	groups := c.FeatureGroups()
	require.Len(t, groups, 2)
	assert.Equal(t, "acc", groups[0].Name)
	assert.Equal(t, "bfc", groups[1].Name)
}

func TestLoad_ContainerCatalogs(t *testing.T) {
	for _, name := range []string{"sawing", "turning"} {
		t.Run(name, func(t *testing.T) {
			c, err := Load(name)
			require.NoError(t, err)
			assert.Equal(t, LayoutContainer, c.Layout)
			assert.NotEmpty(t, c.ContainerFile)
			require.Len(t, c.Steps, 1)
			assert.Equal(t, c.Steps[0].Name, c.SegmentIDs()[0])
		})
	}
}

func TestLoad_Sawing_SplitsCutCounterAndCutTime(t *testing.T) {
	c, err := Load("sawing")
	require.NoError(t, err)
	s, _ := c.Stream("signals")
	cols := s.ChannelColumns()
	assert.Contains(t, cols, "CutCounter")
	assert.Contains(t, cols, "CutTime")
	assert.Len(t, s.Channels, 44)
}

func TestLoad_Unknown(t *testing.T) {
	_, err := Load("welding")
	assert.Error(t, err)
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		msg  string
	}{
		{
			name: "missing process",
			yaml: "part_type: x\n",
			msg:  "process is required",
		},
		{
			name: "unknown layout",
			yaml: "process: p\npart_type: x\nlayout: cloud\n",
			msg:  "unknown layout",
		},
		{
			name: "unknown side",
			yaml: `process: p
part_type: x
layout: directory
boundary_unit: s
timing_stream: a
sides: [{name: side_1, boundary_file: b.csv, files: {a: a.arrow}}]
steps: [{side: side_9, name: drill}]
streams: [{name: a, unit: us, channels: [x]}]
`,
			msg: "unknown side",
		},
		{
			name: "duplicate step",
			yaml: `process: p
part_type: x
layout: container
container_file: c.sqlite
boundary_unit: s
timing_stream: a
steps: [{name: cut}, {name: cut}]
streams: [{name: a, unit: s, channels: [x]}]
`,
			msg: "duplicate step",
		},
		{
			name: "timing stream missing",
			yaml: `process: p
part_type: x
layout: container
container_file: c.sqlite
boundary_unit: s
timing_stream: nope
steps: [{name: cut}]
streams: [{name: a, unit: s, channels: [x]}]
`,
			msg: "timing_stream",
		},
		{
			name: "side without stream file",
			yaml: `process: p
part_type: x
layout: directory
boundary_unit: s
timing_stream: a
sides: [{name: side_1, boundary_file: b.csv, files: {}}]
steps: [{side: side_1, name: drill}]
streams: [{name: a, unit: us, channels: [x]}]
`,
			msg: "has no file for stream",
		},
		{
			name: "side without steps",
			yaml: `process: p
part_type: x
layout: directory
boundary_unit: s
timing_stream: a
sides:
  - {name: side_1, boundary_file: f.csv, files: {a: f.arrow}}
  - {name: side_2, boundary_file: b.csv, files: {a: b.arrow}}
steps: [{side: side_1, name: drill}]
streams: [{name: a, unit: us, channels: [x]}]
`,
			msg: "side side_2 has no steps",
		},
		{
			name: "dqaas unknown stream",
			yaml: `process: p
part_type: x
layout: container
container_file: c.sqlite
boundary_unit: s
timing_stream: a
steps: [{name: cut}]
streams: [{name: a, unit: s, channels: [x]}]
dqaas: {stream: b, value_column: x}
`,
			msg: "dqaas stream",
		},
		{
			name: "dqaas value column typo",
			yaml: `process: p
part_type: x
layout: container
container_file: c.sqlite
boundary_unit: s
timing_stream: a
steps: [{name: cut}]
streams: [{name: a, unit: s, channels: [Position]}]
dqaas: {stream: a, value_column: Postion}
`,
			msg: "value_column \"Postion\"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`process: custom
version: 3
part_type: shaft
layout: container
container_file: c.sqlite
boundary_unit: ms
timing_stream: s
steps: [{name: grind}]
streams: [{name: s, group: features, unit: ms, channels: [rpm]}]
`), 0o600))

	c, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Version)
	assert.Equal(t, model.UnitMilliseconds, c.BoundaryUnit)
	assert.Equal(t, []string{"grind"}, c.SegmentIDs())
}
