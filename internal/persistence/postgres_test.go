package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"topicdesk/internal/core"
)

func newMockDB(t *testing.T) (*PostgresDB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresDBFromConn(db), mock
}

func TestFlaggedItemIDs(t *testing.T) {
	pg, mock := newMockDB(t)
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT item_id FROM flagged_items`).
		WithArgs("proj-1", since, "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"item_id"}).AddRow("s2").AddRow("s1"))

	ids, err := pg.SourceItems().FlaggedItemIDs(context.Background(), FlagQuery{
		ProjectID: "proj-1",
		UserID:    "user-1",
		Since:     since,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "s2" || ids[1] != "s1" {
		t.Errorf("Unexpected ids: %v", ids)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestGetByIDsEmptySkipsQuery(t *testing.T) {
	pg, mock := newMockDB(t)

	items, err := pg.SourceItems().GetByIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Expected no items, got %d", len(items))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Expected no queries: %v", err)
	}
}

func TestGetByIDs(t *testing.T) {
	pg, mock := newMockDB(t)
	published := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM source_items\s+WHERE id = ANY\(\$1\)`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "summary", "body", "category", "url", "published_at", "trend_score"}).
			AddRow("s1", "Rents rise", "<p>Up 8%</p>", "", "housing", "https://news.example/rents", published, 0.4))

	items, err := pg.SourceItems().GetByIDs(context.Background(), []string{"s1", "missing"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].Category != "housing" || !items[0].PublishedAt.Equal(published) {
		t.Errorf("Unexpected items: %+v", items)
	}
}

func TestProfileNotFound(t *testing.T) {
	pg, mock := newMockDB(t)

	mock.ExpectQuery(`FROM audience_profiles WHERE id = \$1`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := pg.AudienceProfiles().Get(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSettingsGet(t *testing.T) {
	pg, mock := newMockDB(t)
	lastRun := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM topic_generator_settings WHERE project_id = \$1`).
		WithArgs("proj-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"project_id", "auto_generate_enabled", "schedule_time", "timezone", "time_window_days",
			"min_stories_for_cluster", "max_proposals_per_run", "focus_categories", "comparison_regions",
			"default_duration_type", "default_audience_profile_id", "include_trending_context", "last_auto_run_at",
		}).AddRow("proj-1", true, "07:00", "Europe/Berlin", 5, 3, 2, "{politics,tech}", "{DE}", "long", nil, false, lastRun))

	s, err := pg.Settings().Get(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if s.Timezone != "Europe/Berlin" || s.DefaultDurationType != core.DurationLong {
		t.Errorf("Unexpected settings: %+v", s)
	}
	if len(s.FocusCategories) != 2 || s.FocusCategories[1] != "tech" {
		t.Errorf("Unexpected focus categories: %v", s.FocusCategories)
	}
	if s.DefaultAudienceProfileID != "" {
		t.Errorf("Expected NULL default profile to map to empty, got %q", s.DefaultAudienceProfileID)
	}
	if s.LastAutoRunAt == nil || !s.LastAutoRunAt.Equal(lastRun) {
		t.Errorf("Expected last run %v, got %v", lastRun, s.LastAutoRunAt)
	}
}

func TestSettingsMarkAutoRun(t *testing.T) {
	pg, mock := newMockDB(t)
	at := time.Date(2026, 3, 2, 6, 5, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE topic_generator_settings SET last_auto_run_at = \$2 WHERE project_id = \$1`).
		WithArgs("proj-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE topic_generator_settings SET last_auto_run_at`).
		WithArgs("missing", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := pg.Settings().MarkAutoRun(context.Background(), "proj-1", at); err != nil {
		t.Fatalf("MarkAutoRun failed: %v", err)
	}
	if err := pg.Settings().MarkAutoRun(context.Background(), "missing", at); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown project, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestProposalCreateAndGet(t *testing.T) {
	pg, mock := newMockDB(t)
	now := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)

	p := &core.TopicProposal{
		ID:                "prop-1",
		ProjectID:         "proj-1",
		AudienceProfileID: "aud-1",
		Title:             "Why rent keeps climbing",
		Hook:              "Your landlord is not the only one to blame.",
		TalkingPoints:     []core.TalkingPoint{{Point: "Supply", Detail: "Too few units", DurationSeconds: 120}},
		SourceStoryIDs:    []string{"s1", "s2"},
		GenerationTrigger: core.TriggerManual,
		DurationType:      core.DurationMedium,
		DurationSeconds:   300,
		Status:            core.StatusDraft,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	mock.ExpectExec(`INSERT INTO topic_proposals`).WillReturnResult(sqlmock.NewResult(1, 1))
	if err := pg.Proposals().Create(context.Background(), p); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	cols := []string{"id", "project_id", "audience_profile_id", "title", "hook", "audience_care", "talking_points",
		"citations", "source_story_ids", "cluster_theme", "cluster_keywords", "trending_context", "generation_trigger",
		"duration_type", "duration_seconds", "status", "review_notes", "created_by", "created_at", "updated_at"}
	mock.ExpectQuery(`FROM topic_proposals WHERE id = \$1`).
		WithArgs("prop-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"prop-1", "proj-1", "aud-1", p.Title, p.Hook, "",
			`[{"point":"Supply","detail":"Too few units","duration_seconds":120}]`,
			`[{"title":"Census","url":"https://stats.example/c","source_type":"statistic","snippet":"","accessed_at":"2026-03-03T10:00:00Z"}]`,
			"{s1,s2}", "Housing", "{rent,supply}", "", "manual", "medium", 300, "draft", "", "user-1", now, now,
		))

	got, err := pg.Proposals().Get(context.Background(), "prop-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got.TalkingPoints) != 1 || got.TalkingPoints[0].DurationSeconds != 120 {
		t.Errorf("Unexpected talking points: %+v", got.TalkingPoints)
	}
	if len(got.Citations) != 1 || got.Citations[0].SourceType != core.SourceStatistic {
		t.Errorf("Unexpected citations: %+v", got.Citations)
	}
	if len(got.SourceStoryIDs) != 2 || got.GenerationTrigger != core.TriggerManual {
		t.Errorf("Unexpected provenance: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestProposalUpdateReviewConditional(t *testing.T) {
	pg, mock := newMockDB(t)
	at := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE topic_proposals SET status = \$3, review_notes = \$4, updated_at = \$5 WHERE id = \$1 AND status = \$2`).
		WithArgs("prop-1", "draft", "approved", "lgtm", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := pg.Proposals().UpdateReview(context.Background(), "prop-1", core.StatusDraft, core.StatusApproved, "lgtm", at); err != nil {
		t.Fatalf("UpdateReview failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestProposalUpdateReviewStatusChanged(t *testing.T) {
	pg, mock := newMockDB(t)

	mock.ExpectExec(`UPDATE topic_proposals SET status = \$3`).
		WithArgs("ghost", "draft", "approved", "lgtm", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := pg.Proposals().UpdateReview(context.Background(), "ghost", core.StatusDraft, core.StatusApproved, "lgtm", time.Now())
	if !errors.Is(err, ErrStatusChanged) {
		t.Errorf("Expected ErrStatusChanged for zero affected rows, got %v", err)
	}
}

func TestListByProjectExcludesStatuses(t *testing.T) {
	pg, mock := newMockDB(t)

	mock.ExpectQuery(`WHERE project_id = \$1 AND NOT \(status = ANY\(\$2\)\) ORDER BY created_at DESC LIMIT \$3`).
		WithArgs("proj-1", sqlmock.AnyArg(), 50).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := pg.Proposals().ListByProject(context.Background(), "proj-1", ProposalFilter{
		ExcludeStatuses: []core.ProposalStatus{core.StatusArchived},
		Limit:           50,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestClusterCacheUpsertAndAbsent(t *testing.T) {
	pg, mock := newMockDB(t)
	now := time.Now().UTC()

	mock.ExpectExec(`ON CONFLICT \(project_id, audience_profile_id\) DO UPDATE`).
		WithArgs("proj-1", "aud-1", sqlmock.AnyArg(), "abc", "empty", now, now.Add(time.Hour)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := pg.ClusterCache().Upsert(context.Background(), core.ClusterCacheEntry{
		ProjectID:          "proj-1",
		AudienceProfileID:  "aud-1",
		Clusters:           []core.TopicCluster{{Theme: "Housing", StoryIDs: []string{"s1", "s2"}, RelevanceScore: 80}},
		StoriesFingerprint: "abc",
		TrendsFingerprint:  "empty",
		CreatedAt:          now,
		ExpiresAt:          now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	mock.ExpectQuery(`FROM cluster_cache`).
		WithArgs("proj-2", "").
		WillReturnError(sql.ErrNoRows)

	entry, err := pg.ClusterCache().Get(context.Background(), "proj-2", "")
	if err != nil {
		t.Fatalf("Expected absent entry without error, got %v", err)
	}
	if entry != nil {
		t.Errorf("Expected nil entry, got %+v", entry)
	}
}

func TestMemberRole(t *testing.T) {
	pg, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT role FROM project_members`).
		WithArgs("proj-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("viewer"))
	mock.ExpectQuery(`SELECT role FROM project_members`).
		WithArgs("proj-1", "stranger").
		WillReturnError(sql.ErrNoRows)

	role, err := pg.Members().Role(context.Background(), "proj-1", "user-1")
	if err != nil || role != core.RoleViewer {
		t.Errorf("Expected viewer, got %q (%v)", role, err)
	}
	if _, err := pg.Members().Role(context.Background(), "proj-1", "stranger"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for non-member, got %v", err)
	}
}

func TestTransactionRoutesThroughTx(t *testing.T) {
	pg, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE topic_proposals SET status`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := pg.BeginTx(context.Background())
	if err != nil {
		t.Fatalf("BeginTx failed: %v", err)
	}
	if err := tx.Proposals().UpdateReview(context.Background(), "prop-1", core.StatusDraft, core.StatusReviewed, "", time.Now()); err != nil {
		t.Fatalf("UpdateReview failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}
