package generator

import (
	"context"

	"topicdesk/internal/core"
	"topicdesk/internal/similarity"
	"topicdesk/internal/sources"
)

// PreviewRequest asks which clusters generation would produce
type PreviewRequest struct {
	ProjectID         string
	UserID            string
	AudienceProfileID string        // empty uses the project's default, which may also be empty
	IncludeTrends     *bool         // nil uses the project's setting
	Scope             sources.Scope // empty means the user's own flags
}

// PreviewCluster is a cluster with its items and any overlapping proposals
type PreviewCluster struct {
	Index   int                          `json:"index"`
	Cluster core.TopicCluster            `json:"cluster"`
	Items   []core.SourceItem            `json:"items"`
	Similar []similarity.SimilarProposal `json:"similar"`
}

// Preview is the result of a preview
type Preview struct {
	ItemCount       int              `json:"item_count"`
	FromCache       bool             `json:"from_cache"`
	TrendingContext string           `json:"trending_context,omitempty"`
	Clusters        []PreviewCluster `json:"clusters"`
}

// Preview clusters the caller's flagged items without synthesizing or persisting proposals.
// Unchanged inputs are served from the cluster cache; fresh clusters are written back.
func (g *Generator) Preview(ctx context.Context, req PreviewRequest) (*Preview, error) {
	if req.ProjectID == "" || req.UserID == "" {
		return nil, core.NewValidationError("project id and user id are required")
	}

	settings, err := g.loadSettings(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}

	var profile *core.AudienceProfile
	profileID := req.AudienceProfileID
	if profileID == "" {
		profileID = settings.DefaultAudienceProfileID
	}
	if profileID != "" {
		if profile, err = g.loadProfile(ctx, req.ProjectID, profileID); err != nil {
			return nil, err
		}
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

	clusters, cached, err := g.clusterWithCache(ctx, req.ProjectID, profile, items, tc)
	if err != nil {
		return nil, err
	}
	if len(clusters) == 0 {
		return nil, core.NewNoClustersError()
	}

	byID := indexItems(items)
	preview := &Preview{
		ItemCount:       len(items),
		FromCache:       cached,
		TrendingContext: tc.Text,
		Clusters:        make([]PreviewCluster, 0, len(clusters)),
	}
	for i, c := range clusters {
		pc := PreviewCluster{Index: i, Cluster: c, Items: []core.SourceItem{}, Similar: []similarity.SimilarProposal{}}
		for _, id := range c.StoryIDs {
			if item, ok := byID[id]; ok {
				pc.Items = append(pc.Items, item)
			}
		}

		similar, err := g.deps.Similarity.FindSimilar(ctx, req.ProjectID, c.StoryIDs, similarity.Options{})
		if err != nil {
			g.log.Warn("Similarity check failed", "project_id", req.ProjectID, "theme", c.Theme, "error", err)
		} else {
			pc.Similar = similar
		}
		preview.Clusters = append(preview.Clusters, pc)
	}

	g.log.Info("Preview completed",
		"project_id", req.ProjectID,
		"items", len(items),
		"clusters", len(clusters),
		"from_cache", cached)
	return preview, nil
}
