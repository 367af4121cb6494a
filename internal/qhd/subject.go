package qhd

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/qhd-cli/internal/model"
)

// Subject identifies the part, process and document kind a document is
// about. Its string form is
// `part::<part_type>,part_id::<id>,process::<process>,type::<doc_type>`.
type Subject struct {
	PartType string
	PartID   string
	Process  string
	DocType  model.DocType
}

var subjectKeys = [...]string{"part", "part_id", "process", "type"}

func (s Subject) components() [4]string {
	return [4]string{s.PartType, s.PartID, s.Process, string(s.DocType)}
}

// Format renders the subject. Components must be non-empty and may not
// contain "," or "::".
func (s Subject) Format() (string, error) {
	parts := make([]string, len(subjectKeys))
	for i, v := range s.components() {
		if v == "" {
			return "", eris.Errorf("qhd: subject %s is empty", subjectKeys[i])
		}
		if strings.Contains(v, ",") || strings.Contains(v, "::") {
			return "", eris.Errorf("qhd: subject %s %q contains a separator", subjectKeys[i], v)
		}
		parts[i] = subjectKeys[i] + "::" + v
	}
	return strings.Join(parts, ","), nil
}

// ParseSubject is the strict inverse of Format.
func ParseSubject(raw string) (Subject, error) {
	fields := strings.Split(raw, ",")
	if len(fields) != len(subjectKeys) {
		return Subject{}, eris.Errorf("qhd: subject %q has %d components, want %d", raw, len(fields), len(subjectKeys))
	}
	var vals [4]string
	for i, f := range fields {
		key, val, ok := strings.Cut(f, "::")
		if !ok || key != subjectKeys[i] || val == "" || strings.Contains(val, "::") {
			return Subject{}, eris.Errorf("qhd: malformed subject component %q", f)
		}
		vals[i] = val
	}
	dt, ok := model.ParseDocType(vals[3])
	if !ok {
		return Subject{}, eris.Errorf("qhd: unknown document type %q", vals[3])
	}
	return Subject{PartType: vals[0], PartID: vals[1], Process: vals[2], DocType: dt}, nil
}
