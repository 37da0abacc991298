// Package schedule decides when a project's unattended generation is due
package schedule

import (
	"fmt"
	"time"

	"topicdesk/internal/core"
)

// DefaultWindow is how long after the scheduled time a run may still fire
const DefaultWindow = 30 * time.Minute

// Gate reports whether a project's scheduled time has arrived
type Gate struct {
	Window time.Duration
}

// NewGate creates a gate with the given firing window, or DefaultWindow when zero
func NewGate(window time.Duration) Gate {
	if window <= 0 {
		window = DefaultWindow
	}
	return Gate{Window: window}
}

// ParseClock parses "HH:MM" into hour and minute
func ParseClock(s string) (int, int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid schedule time %q: expected HH:MM", s)
	}
	return t.Hour(), t.Minute(), nil
}

// Due reports whether now, in the settings timezone, falls within [scheduled, scheduled+Window)
// and the project has not already run for that slot. The reason explains a negative answer.
// Invalid time or zone values are errors.
func (g Gate) Due(settings core.TopicGeneratorSettings, now time.Time) (bool, string, error) {
	window := g.Window
	if window <= 0 {
		window = DefaultWindow
	}

	hour, minute, err := ParseClock(settings.ScheduleTime)
	if err != nil {
		return false, "", err
	}

	zone := settings.Timezone
	if zone == "" {
		zone = "UTC"
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return false, "", fmt.Errorf("invalid timezone %q: %w", zone, err)
	}

	local := now.In(loc)

	// Check today's slot and yesterday's, so windows crossing midnight still fire.
	for _, dayOffset := range []int{0, -1} {
		scheduled := time.Date(local.Year(), local.Month(), local.Day()+dayOffset, hour, minute, 0, 0, loc)
		if !local.Before(scheduled) && local.Before(scheduled.Add(window)) {
			if last := settings.LastAutoRunAt; last != nil && !last.Before(scheduled) {
				return false, fmt.Sprintf("already ran at %s", last.In(loc).Format("15:04 MST")), nil
			}
			return true, "", nil
		}
	}

	return false, fmt.Sprintf("not scheduled until %s %s", settings.ScheduleTime, zone), nil
}
