// Package generator orchestrates topic proposal generation: aggregation, clustering,
// synthesis, citations and persistence, on demand and on a schedule.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"topicdesk/internal/citations"
	"topicdesk/internal/clustercache"
	"topicdesk/internal/core"
	"topicdesk/internal/fingerprint"
	"topicdesk/internal/llm"
	"topicdesk/internal/logger"
	"topicdesk/internal/persistence"
	"topicdesk/internal/schedule"
	"topicdesk/internal/similarity"
	"topicdesk/internal/sources"
	"topicdesk/internal/synthesis"
	"topicdesk/internal/themes"
	"topicdesk/internal/trends"
)

// ItemSource loads flagged items
type ItemSource interface {
	FlaggedItems(ctx context.Context, projectID string, opts sources.Options) ([]core.SourceItem, error)
}

// Clusterer groups items into topic clusters
type Clusterer interface {
	Cluster(ctx context.Context, items []core.SourceItem, profile *core.AudienceProfile, trendingContext string) ([]core.TopicCluster, error)
}

// Synthesizer expands a cluster into a draft
type Synthesizer interface {
	Synthesize(ctx context.Context, req synthesis.Request) (*synthesis.Draft, error)
}

// CitationFinder finds supporting evidence for a draft
type CitationFinder interface {
	Find(ctx context.Context, topic string, queries []core.CitationQuery, audienceRegion string, maxPerQuery int) []core.ResearchCitation
}

// SimilarityDetector finds existing proposals sharing stories
type SimilarityDetector interface {
	FindSimilar(ctx context.Context, projectID string, storyIDs []string, opts similarity.Options) ([]similarity.SimilarProposal, error)
}

// TrendSource builds trending context for a project
type TrendSource interface {
	Build(ctx context.Context, projectID string) trends.Context
}

// ClusterCache serves clusters whose inputs are unchanged
type ClusterCache interface {
	Lookup(ctx context.Context, key clustercache.Key) ([]core.TopicCluster, bool)
	Put(ctx context.Context, key clustercache.Key, clusters []core.TopicCluster) error
}

// Recorder receives pipeline metrics
type Recorder interface {
	ObserveProposalGenerated(trigger core.GenerationTrigger)
	ObserveClusterFailure(stage string)
	ObserveScheduledRun(elapsed time.Duration)
}

// EventTracker receives product analytics events
type EventTracker interface {
	TrackProposalGenerated(ctx context.Context, p *core.TopicProposal)
	TrackScheduledRun(ctx context.Context, projectsChecked, projectsRun, proposals int, elapsed time.Duration)
}

// Deps are the collaborators of a Generator. Cache, Recorder and Events are optional.
type Deps struct {
	DB          persistence.Database
	Items       ItemSource
	Clusterer   Clusterer
	Synthesizer Synthesizer
	Citations   CitationFinder
	Similarity  SimilarityDetector
	Trends      TrendSource
	Cache       ClusterCache
	Recorder    Recorder
	Events      EventTracker
}

// DefaultDeps wires the standard pipeline components over db and completer
func DefaultDeps(db persistence.Database, completer llm.Completer, cache ClusterCache) Deps {
	return Deps{
		DB:          db,
		Items:       sources.NewAggregator(db.SourceItems()),
		Clusterer:   themes.NewClusterer(completer),
		Synthesizer: synthesis.NewSynthesizer(completer),
		Citations:   citations.NewFinder(completer),
		Similarity:  similarity.NewDetector(db.Proposals()),
		Trends:      trends.NewBuilder(db.Trends()),
		Cache:       cache,
	}
}

// Generator runs the proposal pipeline
type Generator struct {
	cfg  Config
	deps Deps
	gate schedule.Gate
	now  func() time.Time
	log  *slog.Logger
}

// New creates a generator. Required deps must be set.
func New(cfg Config, deps Deps) (*Generator, error) {
	switch {
	case deps.DB == nil:
		return nil, fmt.Errorf("generator requires a database")
	case deps.Items == nil, deps.Clusterer == nil, deps.Synthesizer == nil, deps.Citations == nil:
		return nil, fmt.Errorf("generator requires item source, clusterer, synthesizer and citation finder")
	case deps.Similarity == nil, deps.Trends == nil:
		return nil, fmt.Errorf("generator requires similarity detector and trend source")
	}

	cfg = cfg.normalized()
	return &Generator{
		cfg:  cfg,
		deps: deps,
		gate: schedule.NewGate(cfg.FiringWindow),
		now:  time.Now,
		log:  logger.Get(),
	}, nil
}

// WithClock returns a copy of the generator using now as its clock
func (g *Generator) WithClock(now func() time.Time) *Generator {
	c := *g
	c.now = now
	return &c
}

// Config returns the generator's effective configuration
func (g *Generator) Config() Config { return g.cfg }

// ManualRequest is a user-initiated generation
type ManualRequest struct {
	ProjectID         string
	UserID            string
	AudienceProfileID string            // empty uses the project's default profile
	DurationType      core.DurationType // empty uses the project's default
	DurationSeconds   int               // 0 uses the duration type's default
	ComparisonRegions []string          // nil uses the project's regions
	IncludeTrends     *bool             // nil uses the project's setting
	Scope             sources.Scope     // empty means the user's own flags
	ClusterIndices    []int             // zero-based; empty processes clusters in relevance order
	MaxProposals      int               // 0 uses the project's max proposals per run
}

// Result is the outcome of a manual generation
type Result struct {
	Proposals []core.TopicProposal `json:"proposals"`
	Outcome   *Outcome             `json:"outcome"`
}

// Generate runs a manual generation. Clustering is always fresh. A cluster that fails is
// recorded in the outcome and skipped; the call fails only when every cluster failed.
func (g *Generator) Generate(ctx context.Context, req ManualRequest) (*Result, error) {
	if req.ProjectID == "" || req.UserID == "" {
		return nil, core.NewValidationError("project id and user id are required")
	}
	for _, idx := range req.ClusterIndices {
		if idx < 0 {
			return nil, core.NewValidationError(fmt.Sprintf("invalid cluster index %d", idx))
		}
	}
	if req.MaxProposals < 0 {
		return nil, core.NewValidationError("max proposals must not be negative")
	}

	settings, err := g.loadSettings(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}

	profileID := req.AudienceProfileID
	if profileID == "" {
		profileID = settings.DefaultAudienceProfileID
	}
	if profileID == "" {
		return nil, core.NewValidationError("audience profile is required")
	}
	profile, err := g.loadProfile(ctx, req.ProjectID, profileID)
	if err != nil {
		return nil, err
	}

	durationType := req.DurationType
	if durationType == "" {
		durationType = settings.DefaultDurationType
	}
	seconds, err := g.cfg.Durations.Resolve(durationType, req.DurationSeconds)
	if err != nil {
		return nil, err
	}

	scope := req.Scope
	if scope == "" {
		scope = sources.ScopeUser
	}
	items, err := g.deps.Items.FlaggedItems(ctx, req.ProjectID, sources.Options{
		WindowDays:      settings.TimeWindowDays,
		FocusCategories: settings.FocusCategories,
		Limit:           g.cfg.MaxItems,
		Scope:           scope,
		UserID:          req.UserID,
	})
	if err != nil {
		return nil, err
	}
	if len(items) < g.cfg.MinItems {
		return nil, core.NewInsufficientInputError(len(items), g.cfg.MinItems)
	}

	includeTrends := settings.IncludeTrendingContext
	if req.IncludeTrends != nil {
		includeTrends = *req.IncludeTrends
	}
	tc := g.trendingContext(ctx, req.ProjectID, includeTrends)

	clusters, err := g.deps.Clusterer.Cluster(ctx, items, profile, tc.Text)
	if err != nil {
		return nil, err
	}
	if len(clusters) == 0 {
		return nil, core.NewNoClustersError()
	}

	selected, err := selectClusters(clusters, req.ClusterIndices)
	if err != nil {
		return nil, err
	}
	limit := req.MaxProposals
	if limit == 0 {
		limit = settings.MaxProposalsPerRun
	}
	if len(selected) > limit {
		selected = selected[:limit]
	}

	regions := settings.ComparisonRegions
	if req.ComparisonRegions != nil {
		regions = req.ComparisonRegions
	}

	outcome := newOutcome(len(clusters))
	byID := indexItems(items)
	for _, sc := range selected {
		g.processCluster(ctx, outcome, clusterJob{
			index:           sc.index,
			projectID:       req.ProjectID,
			cluster:         sc.cluster,
			items:           byID,
			profile:         profile,
			durationType:    durationType,
			durationSeconds: seconds,
			regions:         regions,
			trending:        tc.Text,
			trigger:         core.TriggerManual,
			createdBy:       req.UserID,
		})
	}

	if err := outcome.err(); err != nil {
		return nil, err
	}

	g.log.Info("Manual generation completed",
		"project_id", req.ProjectID,
		"clusters_found", outcome.ClustersFound,
		"clusters_processed", outcome.ClustersProcessed,
		"proposals", len(outcome.Proposals()),
		"failures", len(outcome.Failures))
	return &Result{Proposals: outcome.Proposals(), Outcome: outcome}, nil
}

type selectedCluster struct {
	index   int
	cluster core.TopicCluster
}

func selectClusters(clusters []core.TopicCluster, indices []int) ([]selectedCluster, error) {
	if len(indices) == 0 {
		out := make([]selectedCluster, len(clusters))
		for i, c := range clusters {
			out[i] = selectedCluster{index: i, cluster: c}
		}
		return out, nil
	}

	seen := make(map[int]bool, len(indices))
	out := make([]selectedCluster, 0, len(indices))
	for _, idx := range indices {
		if idx >= len(clusters) {
			return nil, core.NewValidationError(fmt.Sprintf("cluster index %d out of range (found %d clusters)", idx, len(clusters)))
		}
		if seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, selectedCluster{index: idx, cluster: clusters[idx]})
	}
	return out, nil
}

type clusterJob struct {
	index           int
	projectID       string
	cluster         core.TopicCluster
	items           map[string]core.SourceItem
	profile         *core.AudienceProfile
	durationType    core.DurationType
	durationSeconds int
	regions         []string
	trending        string
	trigger         core.GenerationTrigger
	createdBy       string
}

// processCluster synthesizes, researches and persists one proposal, recording the result.
func (g *Generator) processCluster(ctx context.Context, outcome *Outcome, job clusterJob) {
	clusterItems := make([]core.SourceItem, 0, len(job.cluster.StoryIDs))
	for _, id := range job.cluster.StoryIDs {
		if item, ok := job.items[id]; ok {
			clusterItems = append(clusterItems, item)
		}
	}

	draft, err := g.deps.Synthesizer.Synthesize(ctx, synthesis.Request{
		Cluster:           job.cluster,
		Items:             clusterItems,
		Profile:           job.profile,
		DurationType:      job.durationType,
		DurationSeconds:   job.durationSeconds,
		ComparisonRegions: job.regions,
		TrendingContext:   job.trending,
	})
	if err != nil {
		g.clusterFailed(outcome, job, StageSynthesis, err)
		return
	}

	found := g.deps.Citations.Find(ctx, draft.Title, g.capQueries(draft.CitationQueries), job.profile.Region, g.cfg.MaxCitationsPerQuery)

	now := g.now().UTC()
	proposal := core.TopicProposal{
		ID:                uuid.NewString(),
		ProjectID:         job.projectID,
		AudienceProfileID: job.profile.ID,
		Title:             draft.Title,
		Hook:              draft.Hook,
		AudienceCare:      draft.AudienceCare,
		TalkingPoints:     draft.TalkingPoints,
		Citations:         citations.Dedupe(found),
		SourceStoryIDs:    job.cluster.StoryIDs,
		ClusterTheme:      job.cluster.Theme,
		ClusterKeywords:   job.cluster.Keywords,
		TrendingContext:   job.trending,
		GenerationTrigger: job.trigger,
		DurationType:      job.durationType,
		DurationSeconds:   job.durationSeconds,
		Status:            core.StatusDraft,
		CreatedBy:         job.createdBy,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := g.deps.DB.Proposals().Create(ctx, &proposal); err != nil {
		g.clusterFailed(outcome, job, StagePersistence, core.NewPersistenceError("failed to store proposal", err))
		return
	}

	outcome.succeeded(job.index, proposal, draft.DurationWarning)
	if g.deps.Recorder != nil {
		g.deps.Recorder.ObserveProposalGenerated(job.trigger)
	}
	if g.deps.Events != nil {
		g.deps.Events.TrackProposalGenerated(ctx, &proposal)
	}
	g.log.Info("Proposal generated",
		"project_id", job.projectID,
		"proposal_id", proposal.ID,
		"theme", job.cluster.Theme,
		"trigger", string(job.trigger),
		"citations", len(proposal.Citations))
}

func (g *Generator) clusterFailed(outcome *Outcome, job clusterJob, stage string, err error) {
	outcome.failed(job.index, job.cluster, stage, err)
	if g.deps.Recorder != nil {
		g.deps.Recorder.ObserveClusterFailure(stage)
	}
	logger.Error("Cluster failed, skipping", err,
		"project_id", job.projectID,
		"cluster", job.index,
		"theme", job.cluster.Theme,
		"stage", stage)
}

func (g *Generator) capQueries(queries []core.CitationQuery) []core.CitationQuery {
	if len(queries) > g.cfg.MaxCitationQueries {
		return queries[:g.cfg.MaxCitationQueries]
	}
	return queries
}

func (g *Generator) loadSettings(ctx context.Context, projectID string) (core.TopicGeneratorSettings, error) {
	stored, err := g.deps.DB.Settings().Get(ctx, projectID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return g.cfg.settingsFor(projectID, nil), nil
		}
		return core.TopicGeneratorSettings{}, core.NewPersistenceError("failed to load generator settings", err)
	}
	return g.cfg.settingsFor(projectID, stored), nil
}

func (g *Generator) loadProfile(ctx context.Context, projectID, profileID string) (*core.AudienceProfile, error) {
	profile, err := g.deps.DB.AudienceProfiles().Get(ctx, profileID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, core.NewNotFoundError("audience profile", profileID)
		}
		return nil, core.NewPersistenceError("failed to load audience profile", err)
	}
	if profile.ProjectID != "" && profile.ProjectID != projectID {
		return nil, core.NewNotFoundError("audience profile", profileID)
	}
	return profile, nil
}

func (g *Generator) trendingContext(ctx context.Context, projectID string, include bool) trends.Context {
	if !include {
		return trends.Empty()
	}
	return g.deps.Trends.Build(ctx, projectID)
}

// clusterWithCache serves clusters from the cache when the inputs are unchanged, otherwise
// clusters afresh and stores the result. The bool reports a cache hit.
func (g *Generator) clusterWithCache(ctx context.Context, projectID string, profile *core.AudienceProfile, items []core.SourceItem, tc trends.Context) ([]core.TopicCluster, bool, error) {
	key := cacheKey(projectID, profile, items, tc)
	if g.deps.Cache != nil {
		if clusters, ok := g.deps.Cache.Lookup(ctx, key); ok {
			return clusters, true, nil
		}
	}

	clusters, err := g.deps.Clusterer.Cluster(ctx, items, profile, tc.Text)
	if err != nil {
		return nil, false, err
	}
	g.put(ctx, key, clusters)
	return clusters, false, nil
}

func (g *Generator) put(ctx context.Context, key clustercache.Key, clusters []core.TopicCluster) {
	if g.deps.Cache == nil {
		return
	}
	if err := g.deps.Cache.Put(ctx, key, clusters); err != nil {
		g.log.Warn("Failed to store clusters in cache", "project_id", key.ProjectID, "error", err)
	}
}

func cacheKey(projectID string, profile *core.AudienceProfile, items []core.SourceItem, tc trends.Context) clustercache.Key {
	stamps := make([]fingerprint.ItemStamp, len(items))
	for i, item := range items {
		stamps[i] = fingerprint.ItemStamp{ID: item.ID, Timestamp: item.PublishedAt}
	}
	profileID := ""
	if profile != nil {
		profileID = profile.ID
	}
	trendsFP := tc.Fingerprint
	if trendsFP == "" {
		trendsFP = fingerprint.Empty
	}
	return clustercache.Key{
		ProjectID:          projectID,
		AudienceProfileID:  profileID,
		StoriesFingerprint: fingerprint.Stories(stamps),
		TrendsFingerprint:  trendsFP,
	}
}

func indexItems(items []core.SourceItem) map[string]core.SourceItem {
	byID := make(map[string]core.SourceItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	return byID
}
