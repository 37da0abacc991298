package trends

import (
	"context"
	"strings"
	"testing"
	"time"

	"topicdesk/internal/core"
	"topicdesk/internal/fingerprint"
	"topicdesk/test/mocks"
)

func TestRenderEmpty(t *testing.T) {
	got := Render(nil, nil)
	if got.Text != "" || got.Fingerprint != fingerprint.Empty {
		t.Errorf("Expected empty context, got %+v", got)
	}
}

func TestRenderFormatsAndFingerprints(t *testing.T) {
	trendList := []core.Trend{{Query: "rent freeze", Platforms: []string{"google", "tiktok"}, Score: 87}}
	posts := []core.ViralPost{{ID: "p1", Text: "Rents   up again", Platform: "x", Engagement: 1200}}

	got := Render(trendList, posts)
	if !strings.Contains(got.Text, `"rent freeze" (score 87, platforms: google, tiktok)`) {
		t.Errorf("Missing trend line: %q", got.Text)
	}
	if !strings.Contains(got.Text, "[x, 1200 engagements] Rents up again") {
		t.Errorf("Missing post line: %q", got.Text)
	}

	reordered := Render([]core.Trend{{Query: "rent freeze", Platforms: []string{"tiktok", "google"}, Score: 87}}, posts)
	if reordered.Fingerprint != got.Fingerprint {
		t.Error("Expected platform order not to affect the fingerprint")
	}

	changed := Render([]core.Trend{{Query: "rent cap", Platforms: []string{"google", "tiktok"}}}, posts)
	if changed.Fingerprint == got.Fingerprint {
		t.Error("Expected a different trend to change the fingerprint")
	}
}

func TestBuildFromRepository(t *testing.T) {
	db := mocks.NewMockDatabase()
	db.SetTrends("proj-1",
		[]core.Trend{{Query: "transit strike", Score: 50}},
		[]core.ViralPost{
			{ID: "recent", Text: "Buses stopped", Platform: "tiktok", PostedAt: time.Now().Add(-time.Hour)},
			{ID: "old", Text: "Last week", Platform: "tiktok", PostedAt: time.Now().Add(-7 * 24 * time.Hour)},
		})

	got := NewBuilder(db.Trends()).Build(context.Background(), "proj-1")
	if !strings.Contains(got.Text, "transit strike") || !strings.Contains(got.Text, "Buses stopped") {
		t.Errorf("Unexpected context: %q", got.Text)
	}
	if strings.Contains(got.Text, "Last week") {
		t.Error("Expected posts outside the lookback to be excluded")
	}
}

func TestBuildFailureIsEmpty(t *testing.T) {
	db := mocks.NewMockDatabase()
	db.FailTrends = true

	got := NewBuilder(db.Trends()).Build(context.Background(), "proj-1")
	if got != Empty() {
		t.Errorf("Expected empty context on failure, got %+v", got)
	}
}
