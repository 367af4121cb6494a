// Package catalog holds the versioned, per-process-type descriptions of
// process steps, sides, sample streams and quality inputs.
package catalog

import (
	"embed"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/qhd-cli/internal/model"
)

//go:embed catalogs/*.yaml
var builtin embed.FS

// Layout names the physical arrangement of a process type's raw data.
type Layout string

const (
	// LayoutDirectory is one directory per part with one file per stream
	// and side.
	LayoutDirectory Layout = "directory"
	// LayoutContainer is one shared container file keyed by part id.
	LayoutContainer Layout = "container"
)

// Catalog describes one process type.
type Catalog struct {
	Process       string         `yaml:"process"`
	Version       int            `yaml:"version"`
	PartType      string         `yaml:"part_type"`
	Layout        Layout         `yaml:"layout"`
	ContainerFile string         `yaml:"container_file"`
	BoundaryUnit  model.TimeUnit `yaml:"boundary_unit"`
	TimingStream  string         `yaml:"timing_stream"`
	Sides         []Side         `yaml:"sides"`
	Steps         []Step         `yaml:"steps"`
	Streams       []StreamSpec   `yaml:"streams"`
	Product       ProductSpec    `yaml:"product"`
	DQaaS         DQaaSSpec      `yaml:"dqaas"`
}

// Side names the files of one physical face of a part.
type Side struct {
	Name         string            `yaml:"name"`
	BoundaryFile string            `yaml:"boundary_file"`
	Files        map[string]string `yaml:"files"` // stream name -> file name
}

// Step is one entry of the ordered process catalog.
type Step struct {
	Side string `yaml:"side"`
	Name string `yaml:"name"`
}

// ID returns the segment id of the step.
func (s Step) ID() string {
	return model.SegmentID(s.Side, s.Name)
}

// StreamSpec describes one sample stream.
type StreamSpec struct {
	Name     string         `yaml:"name"`
	Group    string         `yaml:"group"`
	Unit     model.TimeUnit `yaml:"unit"`
	Channels []string       `yaml:"channels"`
}

// ProductSpec describes the product quality table of a process type.
type ProductSpec struct {
	Delimiter       string         `yaml:"delimiter"`
	Encoding        string         `yaml:"encoding"`
	SkipRows        int            `yaml:"skip_rows"`
	IDColumn        string         `yaml:"id_column"`
	TimestampColumn string         `yaml:"timestamp_column"`
	TimestampLayout string         `yaml:"timestamp_layout"`
	Timeref         string         `yaml:"timeref"`
	Fields          []ProductField `yaml:"fields"`
}

// ProductField maps a source column onto a document field.
type ProductField struct {
	Name    string `yaml:"name"`
	Column  string `yaml:"column"`
	Numeric bool   `yaml:"numeric"`
}

// DQaaSSpec selects what the data-quality service analyses.
type DQaaSSpec struct {
	Stream      string `yaml:"stream"`
	ValueColumn string `yaml:"value_column"`
}

// Builtin returns the names of the embedded catalogs.
func Builtin() []string {
	entries, err := builtin.ReadDir("catalogs")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Load returns the embedded catalog for a process type.
func Load(process string) (*Catalog, error) {
	data, err := builtin.ReadFile("catalogs/" + process + ".yaml")
	if err != nil {
		return nil, eris.Errorf("catalog: unknown process type %q", process)
	}
	return Parse(data)
}

// LoadFile reads a catalog from disk, for versions not built in.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}
	return Parse(data)
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrap(err, "catalog: unmarshal")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the catalog for internal consistency.
func (c *Catalog) Validate() error {
	if c.Process == "" {
		return eris.New("catalog: process is required")
	}
	if c.PartType == "" {
		return eris.Errorf("catalog %s: part_type is required", c.Process)
	}
	switch c.Layout {
	case LayoutDirectory:
		if len(c.Sides) == 0 {
			return eris.Errorf("catalog %s: directory layout needs at least one side", c.Process)
		}
	case LayoutContainer:
		if c.ContainerFile == "" {
			return eris.Errorf("catalog %s: container layout needs container_file", c.Process)
		}
	default:
		return eris.Errorf("catalog %s: unknown layout %q", c.Process, c.Layout)
	}
	if !c.BoundaryUnit.Valid() {
		return eris.Errorf("catalog %s: invalid boundary_unit %q", c.Process, c.BoundaryUnit)
	}
	if len(c.Steps) == 0 {
		return eris.Errorf("catalog %s: no steps", c.Process)
	}

	sides := make(map[string]bool, len(c.Sides))
	for _, s := range c.Sides {
		sides[s.Name] = true
	}
	seen := make(map[string]bool, len(c.Steps))
	for _, st := range c.Steps {
		if st.Name == "" {
			return eris.Errorf("catalog %s: step without name", c.Process)
		}
		if c.Layout == LayoutDirectory && !sides[st.Side] {
			return eris.Errorf("catalog %s: step %s references unknown side %q", c.Process, st.Name, st.Side)
		}
		if seen[st.ID()] {
			return eris.Errorf("catalog %s: duplicate step %s", c.Process, st.ID())
		}
		seen[st.ID()] = true
	}

	streams := make(map[string]bool, len(c.Streams))
	for _, s := range c.Streams {
		if !s.Unit.Valid() {
			return eris.Errorf("catalog %s: stream %s has invalid unit %q", c.Process, s.Name, s.Unit)
		}
		if len(s.Channels) == 0 {
			return eris.Errorf("catalog %s: stream %s has no channels", c.Process, s.Name)
		}
		streams[s.Name] = true
	}
	if !streams[c.TimingStream] {
		return eris.Errorf("catalog %s: timing_stream %q is not a declared stream", c.Process, c.TimingStream)
	}
	if c.Layout == LayoutContainer && len(c.Streams) != 1 {
		return eris.Errorf("catalog %s: container layout holds exactly one stream", c.Process)
	}
	if c.DQaaS.Stream != "" {
		spec, ok := c.Stream(c.DQaaS.Stream)
		if !ok {
			return eris.Errorf("catalog %s: dqaas stream %q is not a declared stream", c.Process, c.DQaaS.Stream)
		}
		if _, ok := spec.ChannelColumns()[c.DQaaS.ValueColumn]; !ok {
			return eris.Errorf("catalog %s: dqaas value_column %q is not a channel of %s", c.Process, c.DQaaS.ValueColumn, spec.Name)
		}
	}
	for _, side := range c.Sides {
		if len(c.StepsOn(side.Name)) == 0 {
			return eris.Errorf("catalog %s: side %s has no steps", c.Process, side.Name)
		}
		for _, s := range c.Streams {
			if side.Files[s.Name] == "" {
				return eris.Errorf("catalog %s: side %s has no file for stream %s", c.Process, side.Name, s.Name)
			}
		}
	}
	return nil
}

// SegmentIDs returns the step ids in catalog order.
func (c *Catalog) SegmentIDs() []string {
	ids := make([]string, len(c.Steps))
	for i, st := range c.Steps {
		ids[i] = st.ID()
	}
	return ids
}

// StepsOn returns the steps of one side, in catalog order.
func (c *Catalog) StepsOn(side string) []Step {
	var out []Step
	for _, st := range c.Steps {
		if st.Side == side {
			out = append(out, st)
		}
	}
	return out
}

// Stream looks up a stream by name.
func (c *Catalog) Stream(name string) (StreamSpec, bool) {
	for _, s := range c.Streams {
		if s.Name == name {
			return s, true
		}
	}
	return StreamSpec{}, false
}

// FeatureGroups returns the streams that contribute a feature group to the
// document body, in catalog order.
func (c *Catalog) FeatureGroups() []StreamSpec {
	var out []StreamSpec
	for _, s := range c.Streams {
		if s.Group != "" {
			out = append(out, s)
		}
	}
	return out
}

// ChannelColumns maps channel names to their column position within the
// stream.
func (s StreamSpec) ChannelColumns() map[string]int {
	cols := make(map[string]int, len(s.Channels))
	for i, ch := range s.Channels {
		cols[ch] = i
	}
	return cols
}
