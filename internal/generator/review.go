package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"topicdesk/internal/citations"
	"topicdesk/internal/core"
	"topicdesk/internal/persistence"
	"topicdesk/internal/sources"
	"topicdesk/internal/synthesis"
)

// Resynthesize regenerates a proposal's content from its stored cluster and overwrites it in
// place. Provenance (stories, theme, trigger, creator) is preserved and fresh citations are
// merged with the existing ones by URL.
func (g *Generator) Resynthesize(ctx context.Context, proposalID string) (*core.TopicProposal, error) {
	p, err := g.loadProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if p.Status == core.StatusArchived {
		return nil, core.NewValidationError("archived proposals cannot be resynthesized")
	}

	profile, err := g.loadProfile(ctx, p.ProjectID, p.AudienceProfileID)
	if err != nil {
		return nil, err
	}
	settings, err := g.loadSettings(ctx, p.ProjectID)
	if err != nil {
		return nil, err
	}

	durationType := p.DurationType
	if durationType == "" {
		durationType = settings.DefaultDurationType
	}
	seconds, err := g.cfg.Durations.Resolve(durationType, p.DurationSeconds)
	if err != nil {
		return nil, err
	}

	items, err := g.deps.DB.SourceItems().GetByIDs(ctx, p.SourceStoryIDs)
	if err != nil {
		return nil, core.NewPersistenceError("failed to load source items", err)
	}
	for i := range items {
		items[i].Summary = sources.PlainText(items[i].Summary)
		items[i].Body = sources.PlainText(items[i].Body)
	}
	byID := indexItems(items)
	ordered := make([]core.SourceItem, 0, len(p.SourceStoryIDs))
	for _, id := range p.SourceStoryIDs {
		if item, ok := byID[id]; ok {
			ordered = append(ordered, item)
		}
	}

	draft, err := g.deps.Synthesizer.Synthesize(ctx, synthesis.Request{
		Cluster: core.TopicCluster{
			Theme:    p.ClusterTheme,
			Keywords: p.ClusterKeywords,
			StoryIDs: p.SourceStoryIDs,
		},
		Items:             ordered,
		Profile:           profile,
		DurationType:      durationType,
		DurationSeconds:   seconds,
		ComparisonRegions: settings.ComparisonRegions,
		TrendingContext:   p.TrendingContext,
	})
	if err != nil {
		return nil, err
	}

	fresh := g.deps.Citations.Find(ctx, draft.Title, g.capQueries(draft.CitationQueries), profile.Region, g.cfg.MaxCitationsPerQuery)

	before := len(p.Citations)
	p.Title = draft.Title
	p.Hook = draft.Hook
	p.AudienceCare = draft.AudienceCare
	p.TalkingPoints = draft.TalkingPoints
	p.Citations = citations.Merge(p.Citations, fresh)
	p.DurationType = durationType
	p.DurationSeconds = seconds
	p.UpdatedAt = g.now().UTC()

	if err := g.deps.DB.Proposals().Update(ctx, p); err != nil {
		return nil, core.NewPersistenceError("failed to update proposal", err)
	}

	g.log.Info("Proposal resynthesized",
		"proposal_id", p.ID,
		"project_id", p.ProjectID,
		"citations", len(p.Citations),
		"new_citations", len(p.Citations)-before)
	return p, nil
}

// Review moves a proposal through the review workflow.
func (g *Generator) Review(ctx context.Context, proposalID string, status core.ProposalStatus, notes string) (*core.TopicProposal, error) {
	status = core.ProposalStatus(strings.ToLower(strings.TrimSpace(string(status))))
	if !status.Valid() {
		return nil, core.NewValidationError(fmt.Sprintf("unknown status %q", status))
	}

	p, err := g.loadProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if !p.Status.CanTransition(status) {
		return nil, core.NewValidationError(fmt.Sprintf("cannot move proposal from %s to %s", p.Status, status))
	}

	at := g.now().UTC()
	if err := g.deps.DB.Proposals().UpdateReview(ctx, p.ID, p.Status, status, notes, at); err != nil {
		if errors.Is(err, persistence.ErrStatusChanged) {
			return nil, core.NewValidationError(fmt.Sprintf("proposal is no longer %s; reload and retry", p.Status))
		}
		return nil, core.NewPersistenceError("failed to update review", err)
	}

	g.log.Info("Proposal reviewed", "proposal_id", p.ID, "from", string(p.Status), "to", string(status))
	p.Status = status
	p.ReviewNotes = notes
	p.UpdatedAt = at
	return p, nil
}

func (g *Generator) loadProposal(ctx context.Context, proposalID string) (*core.TopicProposal, error) {
	if proposalID == "" {
		return nil, core.NewValidationError("proposal id is required")
	}
	p, err := g.deps.DB.Proposals().Get(ctx, proposalID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, core.NewNotFoundError("proposal", proposalID)
		}
		return nil, core.NewPersistenceError("failed to load proposal", err)
	}
	return p, nil
}
