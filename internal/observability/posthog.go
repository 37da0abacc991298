// Package observability sends product analytics events for the proposal pipeline.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/posthog/posthog-go"

	"topicdesk/internal/core"
	"topicdesk/internal/logger"
)

// PostHogConfig configures the analytics client
type PostHogConfig struct {
	Enabled bool
	APIKey  string
	Host    string
}

// enqueuer is the subset of posthog.Client the tracker uses
type enqueuer interface {
	Enqueue(posthog.Message) error
	Close() error
}

// Tracker wraps the PostHog SDK. A disabled tracker drops every event.
type Tracker struct {
	client  enqueuer
	enabled bool
	log     *slog.Logger
}

// EventProperties contains properties for an event
type EventProperties map[string]any

// NewTracker creates a tracker from cfg
func NewTracker(cfg PostHogConfig) (*Tracker, error) {
	if !cfg.Enabled {
		return &Tracker{log: logger.Get()}, nil
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("PostHog enabled but missing API key")
	}

	client, err := posthog.NewWithConfig(cfg.APIKey, posthog.Config{
		Endpoint: cfg.Host,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create PostHog client: %w", err)
	}
	return newTracker(client), nil
}

func newTracker(client enqueuer) *Tracker {
	return &Tracker{client: client, enabled: true, log: logger.Get()}
}

// IsEnabled returns whether tracking is enabled
func (t *Tracker) IsEnabled() bool {
	return t.enabled
}

// Capture sends an event
func (t *Tracker) Capture(ctx context.Context, distinctID, event string, properties EventProperties) error {
	if !t.enabled {
		return nil
	}

	props := posthog.NewProperties()
	for k, v := range properties {
		props.Set(k, v)
	}
	return t.client.Enqueue(posthog.Capture{
		DistinctId: distinctID,
		Event:      event,
		Properties: props,
	})
}

// TrackProposalGenerated records a persisted proposal. Manual proposals are attributed to
// their creator, scheduled ones to "system".
func (t *Tracker) TrackProposalGenerated(ctx context.Context, p *core.TopicProposal) {
	distinctID := p.CreatedBy
	if distinctID == "" {
		distinctID = "system"
	}
	err := t.Capture(ctx, distinctID, "proposal_generated", EventProperties{
		"proposal_id":      p.ID,
		"project_id":       p.ProjectID,
		"trigger":          string(p.GenerationTrigger),
		"duration_type":    string(p.DurationType),
		"duration_seconds": p.DurationSeconds,
		"story_count":      len(p.SourceStoryIDs),
		"citation_count":   len(p.Citations),
		"has_trends":       p.TrendingContext != "",
	})
	if err != nil {
		t.log.Warn("Failed to track proposal", "proposal_id", p.ID, "error", err)
	}
}

// TrackScheduledRun records the summary of a scheduled run
func (t *Tracker) TrackScheduledRun(ctx context.Context, projectsChecked, projectsRun, proposals int, elapsed time.Duration) {
	err := t.Capture(ctx, "system", "scheduled_run_completed", EventProperties{
		"projects_checked": projectsChecked,
		"projects_run":     projectsRun,
		"total_proposals":  proposals,
		"duration_ms":      elapsed.Milliseconds(),
	})
	if err != nil {
		t.log.Warn("Failed to track scheduled run", "error", err)
	}
}

// Shutdown flushes pending events and closes the client
func (t *Tracker) Shutdown(ctx context.Context) error {
	if !t.enabled {
		return nil
	}
	return t.client.Close()
}
