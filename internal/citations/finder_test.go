package citations

import (
	"context"
	"testing"

	"topicdesk/internal/core"
	"topicdesk/test/mocks"
)

func cite(url string) core.ResearchCitation {
	return core.ResearchCitation{Title: url, URL: url}
}

func TestDedupe(t *testing.T) {
	got := Dedupe([]core.ResearchCitation{cite("https://a.example"), cite("https://b.example"), cite("https://a.example")})
	if len(got) != 2 || got[0].URL != "https://a.example" || got[1].URL != "https://b.example" {
		t.Errorf("Expected [a, b], got %+v", got)
	}
}

func TestDedupeNormalisesURLs(t *testing.T) {
	got := Dedupe([]core.ResearchCitation{
		cite("https://News.Example/story/"),
		cite("https://news.example/story#section"),
	})
	if len(got) != 1 {
		t.Errorf("Expected equivalent URLs to collapse, got %d", len(got))
	}
}

func TestMergeKeepsExistingFirst(t *testing.T) {
	existing := []core.ResearchCitation{{URL: "https://a.example", Title: "old"}}
	fresh := []core.ResearchCitation{{URL: "https://a.example", Title: "new"}, cite("https://c.example")}

	got := Merge(existing, fresh)
	if len(got) != 2 {
		t.Fatalf("Expected 2 citations, got %d", len(got))
	}
	if got[0].Title != "old" {
		t.Errorf("Expected existing citation to win, got %q", got[0].Title)
	}
}

func TestFindPerQuery(t *testing.T) {
	mock := mocks.NewMockCompleter()
	mock.SetResponse("rent growth", `{"citations": [
		{"title": "Census rent data", "url": "https://census.example/rent", "source_type": "statistic", "snippet": "Rents up 8%"},
		{"title": "No link", "url": ""},
		{"title": "Second", "url": "https://b.example"},
		{"title": "Third", "url": "https://c.example"}
	]}`)
	mock.FailOn("economists")
	mock.SetResponse("tenant", `{"citations": [{"title": "Dup", "url": "https://census.example/rent"}, {"title": "Union", "url": "https://union.example"}]}`)

	queries := []core.CitationQuery{
		{Query: "rent growth statistics", EvidenceType: core.SourceStatistic, Rationale: "Show the trend"},
		{Query: "economists on rent control", EvidenceType: core.SourceExpertOpinion},
		{Query: "tenant reaction", EvidenceType: core.SourceNews, Rationale: "Voices"},
	}

	got := NewFinder(mock).Find(context.Background(), "Rent freeze", queries, "US", 2)

	if mock.CallCount() != 3 {
		t.Errorf("Expected one call per query, got %d", mock.CallCount())
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 citations after truncation, drop and dedupe, got %d: %+v", len(got), got)
	}
	if got[0].RelevanceToAudience != "Show the trend" {
		t.Errorf("Expected relevance defaulted to rationale, got %q", got[0].RelevanceToAudience)
	}
	if got[0].AccessedAt.IsZero() {
		t.Error("Expected accessed time to be set")
	}
	if got[2].URL != "https://union.example" || got[2].SourceType != core.SourceNews {
		t.Errorf("Expected query evidence type as fallback, got %+v", got[2])
	}
}

func TestFindCapsQueries(t *testing.T) {
	mock := mocks.NewMockCompleter()
	mock.Default = `{"citations": []}`
	queries := make([]core.CitationQuery, 8)
	for i := range queries {
		queries[i] = core.CitationQuery{Query: "q"}
	}

	NewFinder(mock).Find(context.Background(), "topic", queries, "", 3)
	if mock.CallCount() != MaxQueries {
		t.Errorf("Expected %d calls, got %d", MaxQueries, mock.CallCount())
	}
}

func TestFindStopsOnCancelledContext(t *testing.T) {
	mock := mocks.NewMockCompleter()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := NewFinder(mock).Find(ctx, "topic", []core.CitationQuery{{Query: "q"}}, "", 3)
	if len(got) != 0 || mock.CallCount() != 0 {
		t.Errorf("Expected no calls after cancellation, got %d calls", mock.CallCount())
	}
}

func TestPublisher(t *testing.T) {
	tests := map[string]string{
		"https://www.nytimes.com/2025/rent": "nytimes.com",
		"https://blog.example.org/post":     "example.org",
		"not a url\x7f":                     "",
	}
	for in, want := range tests {
		if got := Publisher(in); got != want {
			t.Errorf("Publisher(%q) = %q, want %q", in, got, want)
		}
	}
}
