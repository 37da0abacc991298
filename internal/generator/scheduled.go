package generator

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"topicdesk/internal/core"
	"topicdesk/internal/sources"
)

// ProjectResult is the per-project outcome of a scheduled run
type ProjectResult struct {
	ProjectID          string           `json:"project_id"`
	ProposalsGenerated int              `json:"proposals_generated"`
	Skipped            bool             `json:"skipped"`
	Reason             string           `json:"reason,omitempty"`
	Error              string           `json:"error,omitempty"`
	FromCache          bool             `json:"from_cache,omitempty"`
	Failures           []ClusterFailure `json:"failures,omitempty"`
	Warnings           []ClusterWarning `json:"warnings,omitempty"`
}

// RunSummary is the outcome of one scheduled run across all projects
type RunSummary struct {
	StartedAt       time.Time       `json:"started_at"`
	Elapsed         time.Duration   `json:"elapsed"`
	ProjectsChecked int             `json:"projects_checked"`
	ProjectsRun     int             `json:"projects_run"`
	TotalProposals  int             `json:"total_proposals"`
	Results         []ProjectResult `json:"results"`
}

// RunScheduled checks every auto-enabled project and generates proposals for those due.
// Errors and panics inside one project are recorded in its result and never abort the others.
func (g *Generator) RunScheduled(ctx context.Context) (*RunSummary, error) {
	started := g.now()
	projects, err := g.deps.DB.Settings().ListAutoEnabled(ctx)
	if err != nil {
		return nil, core.NewPersistenceError("failed to list scheduled projects", err)
	}

	results := make([]ProjectResult, len(projects))
	var eg errgroup.Group
	eg.SetLimit(g.cfg.ProjectConcurrency)
	for i := range projects {
		eg.Go(func() error {
			results[i] = g.runProjectSafely(ctx, projects[i], started)
			return nil
		})
	}
	_ = eg.Wait()

	summary := &RunSummary{
		StartedAt:       started.UTC(),
		ProjectsChecked: len(projects),
		Results:         results,
	}
	for _, r := range results {
		if !r.Skipped {
			summary.ProjectsRun++
		}
		summary.TotalProposals += r.ProposalsGenerated
	}
	summary.Elapsed = g.now().Sub(started)

	if g.deps.Recorder != nil {
		g.deps.Recorder.ObserveScheduledRun(summary.Elapsed)
	}
	if g.deps.Events != nil {
		g.deps.Events.TrackScheduledRun(ctx, summary.ProjectsChecked, summary.ProjectsRun, summary.TotalProposals, summary.Elapsed)
	}
	g.log.Info("Scheduled run completed",
		"projects_checked", summary.ProjectsChecked,
		"projects_run", summary.ProjectsRun,
		"total_proposals", summary.TotalProposals,
		"elapsed", summary.Elapsed.String())
	return summary, nil
}

func (g *Generator) runProjectSafely(ctx context.Context, stored core.TopicGeneratorSettings, now time.Time) (result ProjectResult) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("Scheduled project panicked", "project_id", stored.ProjectID, "panic", r, "stack", string(debug.Stack()))
			result = ProjectResult{ProjectID: stored.ProjectID, Error: fmt.Sprintf("panic: %v", r)}
		}
	}()
	result = g.runProject(ctx, stored, now)
	if result.Error != "" {
		g.log.Warn("Scheduled project failed", "project_id", stored.ProjectID, "error", result.Error)
	}
	return result
}

func (g *Generator) runProject(ctx context.Context, stored core.TopicGeneratorSettings, now time.Time) ProjectResult {
	settings := g.cfg.settingsFor(stored.ProjectID, &stored)
	result := ProjectResult{ProjectID: settings.ProjectID}

	due, reason, err := g.gate.Due(settings, now)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if !due {
		result.Skipped = true
		result.Reason = reason
		return result
	}

	result = g.runDue(ctx, settings)
	if result.Error == "" || result.ProposalsGenerated > 0 {
		// A failed run with nothing stored may retry on a later tick inside the window.
		if err := g.deps.DB.Settings().MarkAutoRun(ctx, settings.ProjectID, now); err != nil {
			g.log.Warn("Failed to record scheduled run", "project_id", settings.ProjectID, "error", err.Error())
		}
	}
	return result
}

func (g *Generator) runDue(ctx context.Context, settings core.TopicGeneratorSettings) ProjectResult {
	result := ProjectResult{ProjectID: settings.ProjectID}

	items, err := g.deps.Items.FlaggedItems(ctx, settings.ProjectID, sources.Options{
		WindowDays:      settings.TimeWindowDays,
		FocusCategories: settings.FocusCategories,
		Limit:           g.cfg.MaxItems,
		Scope:           sources.ScopeProject,
	})
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if len(items) < settings.MinStoriesForCluster {
		result.Skipped = true
		result.Reason = fmt.Sprintf("only %d flagged items, need %d", len(items), settings.MinStoriesForCluster)
		return result
	}

	if settings.DefaultAudienceProfileID == "" {
		result.Skipped = true
		result.Reason = "no default audience profile"
		return result
	}
	profile, err := g.loadProfile(ctx, settings.ProjectID, settings.DefaultAudienceProfileID)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	seconds, err := g.cfg.Durations.Resolve(settings.DefaultDurationType, 0)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	tc := g.trendingContext(ctx, settings.ProjectID, settings.IncludeTrendingContext)
	clusters, cached, err := g.clusterWithCache(ctx, settings.ProjectID, profile, items, tc)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.FromCache = cached

	var eligible []selectedCluster
	for i, c := range clusters {
		if len(c.StoryIDs) >= settings.MinStoriesForCluster {
			eligible = append(eligible, selectedCluster{index: i, cluster: c})
		}
	}
	if len(eligible) == 0 {
		result.Skipped = true
		result.Reason = fmt.Sprintf("no cluster with at least %d stories", settings.MinStoriesForCluster)
		return result
	}
	if len(eligible) > settings.MaxProposalsPerRun {
		eligible = eligible[:settings.MaxProposalsPerRun]
	}

	outcome := newOutcome(len(clusters))
	byID := indexItems(items)
	for _, sc := range eligible {
		g.processCluster(ctx, outcome, clusterJob{
			index:           sc.index,
			projectID:       settings.ProjectID,
			cluster:         sc.cluster,
			items:           byID,
			profile:         profile,
			durationType:    settings.DefaultDurationType,
			durationSeconds: seconds,
			regions:         settings.ComparisonRegions,
			trending:        tc.Text,
			trigger:         core.TriggerAuto,
		})
	}

	result.ProposalsGenerated = len(outcome.Proposals())
	if len(outcome.Failures) > 0 {
		result.Failures = outcome.Failures
	}
	result.Warnings = outcome.Warnings
	if err := outcome.err(); err != nil {
		result.Error = err.Error()
	}
	return result
}
