// Package similarity detects existing proposals built from the same source stories
package similarity

import (
	"context"
	"sort"

	"topicdesk/internal/core"
	"topicdesk/internal/persistence"
)

// DefaultMinOverlapPercentage is the overlap at which a proposal counts as similar
const DefaultMinOverlapPercentage = 50

// Options configures a similarity search
type Options struct {
	MinOverlapPercentage *float64 // nil selects DefaultMinOverlapPercentage, 0 keeps any shared story
	ExcludeStatuses      []core.ProposalStatus
}

// SimilarProposal is an existing proposal sharing stories with a candidate
type SimilarProposal struct {
	ProposalID        string              `json:"proposal_id"`
	Title             string              `json:"title"`
	Status            core.ProposalStatus `json:"status"`
	Overlap           int                 `json:"overlap"`
	OverlapPercentage float64             `json:"overlap_percentage"`
	SharedStoryIDs    []string            `json:"shared_story_ids"`
}

// Detector compares story id sets against a project's non-archived proposals
type Detector struct {
	proposals persistence.ProposalRepository
}

// NewDetector creates a new similarity detector
func NewDetector(proposals persistence.ProposalRepository) *Detector {
	return &Detector{proposals: proposals}
}

// FindSimilar returns proposals whose story overlap with storyIDs is at least the minimum
// percentage of the smaller set, highest overlap first.
func (d *Detector) FindSimilar(ctx context.Context, projectID string, storyIDs []string, opts Options) ([]SimilarProposal, error) {
	if len(storyIDs) == 0 {
		return []SimilarProposal{}, nil
	}

	existing, err := d.proposals.ListByProject(ctx, projectID, persistence.ProposalFilter{
		ExcludeStatuses: []core.ProposalStatus{core.StatusArchived},
	})
	if err != nil {
		return nil, core.NewPersistenceError("failed to load proposals", err)
	}
	return Compare(storyIDs, existing, opts), nil
}

// Compare scores candidates against storyIDs without touching storage.
func Compare(storyIDs []string, candidates []core.TopicProposal, opts Options) []SimilarProposal {
	minPct := float64(DefaultMinOverlapPercentage)
	if opts.MinOverlapPercentage != nil {
		minPct = *opts.MinOverlapPercentage
	}
	excluded := make(map[core.ProposalStatus]bool, len(opts.ExcludeStatuses))
	for _, s := range opts.ExcludeStatuses {
		excluded[s] = true
	}

	query := unique(storyIDs)

	// story id -> indexes of candidates containing it
	index := make(map[string][]int)
	sizes := make([]int, len(candidates))
	for i, p := range candidates {
		ids := unique(p.SourceStoryIDs)
		sizes[i] = len(ids)
		for _, id := range ids {
			index[id] = append(index[id], i)
		}
	}

	shared := make(map[int][]string)
	for _, id := range query {
		for _, i := range index[id] {
			shared[i] = append(shared[i], id)
		}
	}

	results := []SimilarProposal{}
	for i, ids := range shared {
		p := candidates[i]
		if excluded[p.Status] {
			continue
		}
		smaller := sizes[i]
		if len(query) < smaller {
			smaller = len(query)
		}
		pct := 100 * float64(len(ids)) / float64(smaller)
		if pct < minPct {
			continue
		}
		results = append(results, SimilarProposal{
			ProposalID:        p.ID,
			Title:             p.Title,
			Status:            p.Status,
			Overlap:           len(ids),
			OverlapPercentage: pct,
			SharedStoryIDs:    ids,
		})
	}

	sort.Slice(results, func(a, b int) bool {
		if results[a].OverlapPercentage != results[b].OverlapPercentage {
			return results[a].OverlapPercentage > results[b].OverlapPercentage
		}
		if results[a].Overlap != results[b].Overlap {
			return results[a].Overlap > results[b].Overlap
		}
		return results[a].ProposalID < results[b].ProposalID
	})
	return results
}

func unique(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
