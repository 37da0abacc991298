package synthesis

import (
	"context"
	"strings"
	"testing"

	"topicdesk/internal/core"
	"topicdesk/test/mocks"
)

const validDraft = `{
	"title": "Who wins the rent freeze?",
	"hook": "Your rent could stop rising next month.",
	"audience_care": "Most of you rent.",
	"talking_points": [
		{"point": "What passed", "detail": "The council vote", "duration_seconds": 100},
		{"point": "Landlord pushback", "detail": "The lawsuit", "duration_seconds": 100},
		{"point": "What it means for you", "detail": "Timeline", "duration_seconds": 100}
	],
	"citation_queries": [
		{"query": "rent growth 2025 statistics", "evidence_type": "statistic", "rationale": "Show the trend"},
		{"query": "rent control economic studies", "evidence_type": "Study", "rationale": "Evidence base"},
		{"query": "", "evidence_type": "news"},
		{"query": "tenant union reaction", "evidence_type": "blog", "rationale": "Voices"}
	]
}`

func baseRequest() Request {
	return Request{
		Cluster: core.TopicCluster{Theme: "Rent freeze", Keywords: []string{"rent"}, StoryIDs: []string{"s1"}},
		Items:   []core.SourceItem{{ID: "s1", Title: "Council votes on rent freeze", URL: "https://news.example/rent"}},
		Profile: &core.AudienceProfile{
			Name:            "Young renters",
			PreferredTone:   core.ToneInvestigative,
			DepthPreference: core.DepthModerate,
		},
		DurationType:    core.DurationMedium,
		DurationSeconds: 300,
	}
}

func TestTalkingPointCount(t *testing.T) {
	tests := []struct {
		depth   core.Depth
		seconds int
		want    int
	}{
		{core.DepthSurface, 60, 2},
		{core.DepthSurface, 900, 2},
		{core.DepthModerate, 300, 3},
		{core.DepthModerate, 480, 4},
		{core.DepthDeepDive, 300, 3},
		{core.DepthDeepDive, 600, 4},
		{core.DepthDeepDive, 900, 5},
		{core.DepthDeepDive, 1500, 5},
		{core.Depth("unknown"), 60, 3},
	}
	for _, tt := range tests {
		if got := TalkingPointCount(tt.depth, tt.seconds); got != tt.want {
			t.Errorf("TalkingPointCount(%s, %d) = %d, want %d", tt.depth, tt.seconds, got, tt.want)
		}
	}
}

func TestToneInstructionFallsBackToBalanced(t *testing.T) {
	if ToneInstruction(core.Tone("sarcastic")) != ToneInstruction(core.ToneBalanced) {
		t.Error("Expected unknown tone to use the balanced strategy")
	}
	if ToneInstruction(core.ToneInvestigative) == ToneInstruction(core.ToneBalanced) {
		t.Error("Expected distinct strategies per tone")
	}
}

func TestSynthesizeParsesDraft(t *testing.T) {
	mock := mocks.NewMockCompleter()
	mock.Default = validDraft

	draft, err := NewSynthesizer(mock).Synthesize(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if draft.Title != "Who wins the rent freeze?" {
		t.Errorf("Unexpected title %q", draft.Title)
	}
	if len(draft.TalkingPoints) != 3 {
		t.Errorf("Expected 3 talking points, got %d", len(draft.TalkingPoints))
	}
	if draft.DurationWarning != "" {
		t.Errorf("Expected no drift warning, got %q", draft.DurationWarning)
	}
	if len(draft.CitationQueries) != 3 {
		t.Fatalf("Expected empty query dropped, got %d", len(draft.CitationQueries))
	}
	if draft.CitationQueries[1].EvidenceType != core.SourceStudy {
		t.Errorf("Expected evidence type normalised to study, got %s", draft.CitationQueries[1].EvidenceType)
	}
	if draft.CitationQueries[2].EvidenceType != core.SourceNews {
		t.Errorf("Expected unknown evidence type mapped to news, got %s", draft.CitationQueries[2].EvidenceType)
	}
}

func TestSynthesizeDriftWarnsButSucceeds(t *testing.T) {
	mock := mocks.NewMockCompleter()
	mock.Default = strings.ReplaceAll(validDraft, `"duration_seconds": 100`, `"duration_seconds": 30`)

	draft, err := NewSynthesizer(mock).Synthesize(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Expected drift not to fail synthesis, got %v", err)
	}
	if draft.DurationWarning == "" {
		t.Error("Expected a duration warning for 90s against 300s")
	}
}

func TestSynthesizeMissingFields(t *testing.T) {
	mock := mocks.NewMockCompleter()
	mock.Default = `{"title": "Only a title", "talking_points": []}`

	_, err := NewSynthesizer(mock).Synthesize(context.Background(), baseRequest())
	if !core.IsKind(err, core.KindGeneration) {
		t.Fatalf("Expected generation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "hook") || !strings.Contains(err.Error(), "talking_points") {
		t.Errorf("Expected missing fields named in error, got %v", err)
	}
}

func TestSynthesizeFailureNoRetry(t *testing.T) {
	mock := mocks.NewMockCompleter()
	mock.ShouldFail = true

	_, err := NewSynthesizer(mock).Synthesize(context.Background(), baseRequest())
	if !core.IsKind(err, core.KindGeneration) {
		t.Errorf("Expected generation error, got %v", err)
	}
	if mock.CallCount() != 1 {
		t.Errorf("Expected a single call, got %d", mock.CallCount())
	}
}

func TestBuildPromptSensitivity(t *testing.T) {
	req := baseRequest()
	req.Profile.PoliticalSensitivity = 6
	if strings.Contains(BuildPrompt(req), "do not take a political stance") {
		t.Error("Expected no neutrality instruction below the threshold")
	}

	req.Profile.PoliticalSensitivity = 7
	req.ComparisonRegions = []string{"Canada", "Germany"}
	req.TrendingContext = "TRENDING SEARCHES:\n- \"rent\""
	prompt := BuildPrompt(req)
	for _, want := range []string{
		"do not take a political stance",
		"Canada, Germany",
		"TRENDING CONTEXT:",
		"exactly 3 talking points",
		"add up to 300",
		"https://news.example/rent",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Expected prompt to contain %q", want)
		}
	}
}

func TestSynthesizeRequiresProfile(t *testing.T) {
	req := baseRequest()
	req.Profile = nil
	if _, err := NewSynthesizer(mocks.NewMockCompleter()).Synthesize(context.Background(), req); !core.IsKind(err, core.KindValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}
