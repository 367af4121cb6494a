package qhd

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/qhd-cli/internal/model"
)

// TimerefLayout is the single timeref profile used by every document type.
const TimerefLayout = "2006-01-02T15:04:05Z"

// FormatTimeref renders a timestamp as a UTC timeref, truncated to seconds.
func FormatTimeref(ts model.Timestamp) string {
	return ts.Time().Format(TimerefLayout)
}

// FormatTime renders a wall-clock time as a UTC timeref.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimerefLayout)
}

// ParseTimeref parses a timeref. RFC 3339 offsets are accepted and
// normalized to UTC.
func ParseTimeref(s string) (time.Time, error) {
	if t, err := time.Parse(TimerefLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "qhd: parse timeref %q", s)
	}
	return t.UTC(), nil
}
