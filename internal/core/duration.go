package core

import "fmt"

// DurationType is the target video length class of a proposal.
type DurationType string

const (
	DurationShort  DurationType = "short"
	DurationMedium DurationType = "medium"
	DurationLong   DurationType = "long"
)

// DurationSpec holds the default and allowed range in seconds for a duration type.
type DurationSpec struct {
	DefaultSeconds int `mapstructure:"default_seconds" json:"default_seconds"`
	MinSeconds     int `mapstructure:"min_seconds" json:"min_seconds"`
	MaxSeconds     int `mapstructure:"max_seconds" json:"max_seconds"`
}

// DurationTable maps duration types to their specs.
type DurationTable map[DurationType]DurationSpec

// DefaultDurationTable returns the built-in duration table.
func DefaultDurationTable() DurationTable {
	return DurationTable{
		DurationShort:  {DefaultSeconds: 60, MinSeconds: 30, MaxSeconds: 90},
		DurationMedium: {DefaultSeconds: 300, MinSeconds: 180, MaxSeconds: 480},
		DurationLong:   {DefaultSeconds: 900, MinSeconds: 600, MaxSeconds: 1500},
	}
}

// Resolve returns the seconds to target for the given type. A zero seconds value selects the
// type's default; anything outside the type's range is a validation error.
func (t DurationTable) Resolve(dt DurationType, seconds int) (int, error) {
	bounds, ok := t[dt]
	if !ok {
		return 0, NewValidationError(fmt.Sprintf("unknown duration type %q", dt))
	}
	if seconds == 0 {
		return bounds.DefaultSeconds, nil
	}
	if seconds < bounds.MinSeconds || seconds > bounds.MaxSeconds {
		return 0, NewValidationError(fmt.Sprintf("duration %ds outside %s range %d-%ds",
			seconds, dt, bounds.MinSeconds, bounds.MaxSeconds))
	}
	return seconds, nil
}
