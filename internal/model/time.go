package model

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Timestamp is a point in time in microseconds since the Unix epoch.
// Every loader converts source timestamps into this unit exactly once.
type Timestamp int64

// Time returns the timestamp as a UTC time.Time.
func (t Timestamp) Time() time.Time {
	return time.UnixMicro(int64(t)).UTC()
}

// TimeUnit names the unit a raw timestamp column is expressed in.
type TimeUnit string

const (
	UnitSeconds      TimeUnit = "s"
	UnitMilliseconds TimeUnit = "ms"
	UnitMicroseconds TimeUnit = "us"
)

// ParseTimeUnit accepts the short and long spellings of a unit.
func ParseTimeUnit(s string) (TimeUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "s", "sec", "second", "seconds":
		return UnitSeconds, nil
	case "ms", "millisecond", "milliseconds":
		return UnitMilliseconds, nil
	case "us", "µs", "microsecond", "microseconds":
		return UnitMicroseconds, nil
	default:
		return "", eris.Errorf("model: unknown time unit %q", s)
	}
}

// Valid reports whether u is one of the known units.
func (u TimeUnit) Valid() bool {
	_, err := ParseTimeUnit(string(u))
	return err == nil
}

// micros returns the number of microseconds in one u.
func (u TimeUnit) micros() float64 {
	switch u {
	case UnitSeconds:
		return 1e6
	case UnitMilliseconds:
		return 1e3
	default:
		return 1
	}
}

// ToTimestamp converts a raw value in unit u to a Timestamp, rounding to
// the nearest microsecond.
func (u TimeUnit) ToTimestamp(v float64) Timestamp {
	return Timestamp(math.Round(v * u.micros()))
}

// FromDuration expresses a span of microseconds in unit u.
func (u TimeUnit) FromDuration(d Timestamp) float64 {
	return float64(d) / u.micros()
}

// ParseTimestamp parses a decimal string in unit u.
func (u TimeUnit) ParseTimestamp(s string) (Timestamp, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, eris.Wrapf(err, "model: parse timestamp %q", s)
	}
	return u.ToTimestamp(v), nil
}
