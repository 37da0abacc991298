package handlers

import (
	"strings"
	"testing"
	"time"

	"topicdesk/internal/core"
	"topicdesk/internal/generator"
	"topicdesk/internal/similarity"
)

func TestRenderSummary(t *testing.T) {
	summary := &generator.RunSummary{
		StartedAt:       time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		Elapsed:         1500 * time.Millisecond,
		ProjectsChecked: 3,
		ProjectsRun:     2,
		TotalProposals:  4,
		Results: []generator.ProjectResult{
			{ProjectID: "proj-ok", ProposalsGenerated: 4, FromCache: true},
			{ProjectID: "proj-skip", Skipped: true, Reason: "not due"},
			{ProjectID: "proj-fail", Error: "clustering failed", Failures: []generator.ClusterFailure{
				{Index: 1, Theme: "Transit", Stage: generator.StageSynthesis, Error: "timeout"},
			}},
		},
	}

	out := renderSummary(summary)

	for _, want := range []string{"proj-ok", "4 proposals", "cached clusters", "not due", "clustering failed", `"Transit"`, "synthesis"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected summary to contain %q, got:\n%s", want, out)
		}
	}
}

func TestRenderOutcome(t *testing.T) {
	result := &generator.Result{
		Proposals: []core.TopicProposal{
			{ID: "p-1", Title: "Why rents froze", ClusterTheme: "Rent freeze", DurationType: core.DurationMedium},
		},
		Outcome: &generator.Outcome{
			ClustersFound:     2,
			ClustersProcessed: 2,
			Failures:          []generator.ClusterFailure{{Index: 1, Theme: "Transit", Stage: generator.StagePersistence, Error: "db down"}},
			Warnings:          []generator.ClusterWarning{{Index: 0, Theme: "Rent freeze", ProposalID: "p-1", Warning: "talking points run 90s against a 300s target"}},
		},
	}

	out := renderOutcome(result)

	for _, want := range []string{"1 proposals", "2 clusters", "Why rents froze", "medium", "db down", "against a 300s target"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected outcome to contain %q, got:\n%s", want, out)
		}
	}
}

func TestRenderOutcomeWithoutOutcome(t *testing.T) {
	out := renderOutcome(&generator.Result{})
	if !strings.Contains(out, "0 proposals") {
		t.Errorf("Expected empty result to render, got %q", out)
	}
}

func TestRenderPreview(t *testing.T) {
	preview := &generator.Preview{
		ItemCount: 3,
		FromCache: true,
		Clusters: []generator.PreviewCluster{
			{
				Index:   0,
				Cluster: core.TopicCluster{Theme: "Rent freeze", StoryIDs: []string{"s1", "s2"}, Keywords: []string{"housing"}, RelevanceScore: 80},
				Items:   []core.SourceItem{{ID: "s1", Title: "City council votes"}},
				Similar: []similarity.SimilarProposal{{ProposalID: "old", Title: "Rent politics", Status: core.StatusApproved, OverlapPercentage: 66.7}},
			},
		},
	}

	out := renderPreview(preview)

	for _, want := range []string{"1 clusters from 3 stories", "cached", "[0]", "relevance 80", "housing", "City council votes", "67%", "Rent politics"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected preview to contain %q, got:\n%s", want, out)
		}
	}
}
