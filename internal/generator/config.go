package generator

import (
	"time"

	"topicdesk/internal/core"
	"topicdesk/internal/schedule"
)

// Config is the immutable configuration of a Generator. Zero fields take the defaults below.
type Config struct {
	// Defaults apply to projects without stored settings and fill zero fields of stored ones
	Defaults  core.TopicGeneratorSettings
	Durations core.DurationTable

	FiringWindow         time.Duration
	MinItems             int // minimum flagged items for manual generation and preview
	MaxItems             int // cap on items sent to clustering
	MaxCitationQueries   int
	MaxCitationsPerQuery int
	ProjectConcurrency   int // projects processed in parallel by scheduled runs
}

// DefaultSettings returns the built-in per-project settings
func DefaultSettings() core.TopicGeneratorSettings {
	return core.TopicGeneratorSettings{
		AutoGenerateEnabled:    false,
		ScheduleTime:           "06:00",
		Timezone:               "UTC",
		TimeWindowDays:         7,
		MinStoriesForCluster:   2,
		MaxProposalsPerRun:     3,
		FocusCategories:        []string{},
		ComparisonRegions:      []string{},
		DefaultDurationType:    core.DurationMedium,
		IncludeTrendingContext: true,
	}
}

// DefaultConfig returns the built-in generator configuration
func DefaultConfig() Config {
	return Config{
		Defaults:             DefaultSettings(),
		Durations:            core.DefaultDurationTable(),
		FiringWindow:         schedule.DefaultWindow,
		MinItems:             2,
		MaxItems:             50,
		MaxCitationQueries:   5,
		MaxCitationsPerQuery: 3,
		ProjectConcurrency:   1,
	}
}

// normalized fills zero fields from DefaultConfig
func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.Durations == nil {
		c.Durations = d.Durations
	}
	if c.FiringWindow <= 0 {
		c.FiringWindow = d.FiringWindow
	}
	if c.MinItems <= 0 {
		c.MinItems = d.MinItems
	}
	if c.MaxItems <= 0 {
		c.MaxItems = d.MaxItems
	}
	if c.MaxCitationQueries <= 0 {
		c.MaxCitationQueries = d.MaxCitationQueries
	}
	if c.MaxCitationsPerQuery <= 0 {
		c.MaxCitationsPerQuery = d.MaxCitationsPerQuery
	}
	if c.ProjectConcurrency <= 0 {
		c.ProjectConcurrency = d.ProjectConcurrency
	}
	c.Defaults = fillSettings(c.Defaults, d.Defaults)
	return c
}

// settingsFor merges stored settings over the configured defaults
func (c Config) settingsFor(projectID string, stored *core.TopicGeneratorSettings) core.TopicGeneratorSettings {
	if stored == nil {
		s := c.Defaults
		s.ProjectID = projectID
		return s
	}
	return fillSettings(*stored, c.Defaults)
}

func fillSettings(s, d core.TopicGeneratorSettings) core.TopicGeneratorSettings {
	if s.ScheduleTime == "" {
		s.ScheduleTime = d.ScheduleTime
	}
	if s.Timezone == "" {
		s.Timezone = d.Timezone
	}
	if s.TimeWindowDays <= 0 {
		s.TimeWindowDays = d.TimeWindowDays
	}
	if s.MinStoriesForCluster <= 0 {
		s.MinStoriesForCluster = d.MinStoriesForCluster
	}
	if s.MaxProposalsPerRun <= 0 {
		s.MaxProposalsPerRun = d.MaxProposalsPerRun
	}
	if s.DefaultDurationType == "" {
		s.DefaultDurationType = d.DefaultDurationType
	}
	if s.FocusCategories == nil {
		s.FocusCategories = d.FocusCategories
	}
	if s.ComparisonRegions == nil {
		s.ComparisonRegions = d.ComparisonRegions
	}
	return s
}
