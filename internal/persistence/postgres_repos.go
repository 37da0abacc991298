package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"topicdesk/internal/core"
)

// postgresSourceItemRepo implements SourceItemRepository for PostgreSQL
type postgresSourceItemRepo struct{ conn }

func (r *postgresSourceItemRepo) FlaggedItemIDs(ctx context.Context, q FlagQuery) ([]string, error) {
	query := `
		SELECT item_id FROM flagged_items
		WHERE project_id = $1 AND flagged_at >= $2 AND ($3 = '' OR user_id = $3)
		ORDER BY flagged_at DESC
	`
	rows, err := r.query().QueryContext(ctx, query, q.ProjectID, q.Since, q.UserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *postgresSourceItemRepo) GetByIDs(ctx context.Context, ids []string) ([]core.SourceItem, error) {
	if len(ids) == 0 {
		return []core.SourceItem{}, nil
	}

	query := `
		SELECT id, title, summary, body, category, url, published_at, trend_score
		FROM source_items
		WHERE id = ANY($1)
	`
	rows, err := r.query().QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []core.SourceItem
	for rows.Next() {
		var item core.SourceItem
		if err := rows.Scan(
			&item.ID,
			&item.Title,
			&item.Summary,
			&item.Body,
			&item.Category,
			&item.URL,
			&item.PublishedAt,
			&item.TrendScore,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// postgresProfileRepo implements AudienceProfileRepository for PostgreSQL
type postgresProfileRepo struct{ conn }

func (r *postgresProfileRepo) Get(ctx context.Context, id string) (*core.AudienceProfile, error) {
	query := `
		SELECT id, project_id, name, core_values, fears, aspirations, preferred_tone,
			depth_preference, political_sensitivity, market, region, platform, age_range
		FROM audience_profiles WHERE id = $1
	`
	var p core.AudienceProfile
	var tone, depth string
	err := r.query().QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.ProjectID,
		&p.Name,
		pq.Array(&p.Values),
		pq.Array(&p.Fears),
		pq.Array(&p.Aspirations),
		&tone,
		&depth,
		&p.PoliticalSensitivity,
		&p.Market,
		&p.Region,
		&p.Platform,
		&p.AgeRange,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("audience profile %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	p.PreferredTone = core.Tone(tone)
	p.DepthPreference = core.Depth(depth)
	return &p, nil
}

// postgresSettingsRepo implements SettingsRepository for PostgreSQL
type postgresSettingsRepo struct{ conn }

const settingsColumns = `project_id, auto_generate_enabled, schedule_time, timezone, time_window_days,
	min_stories_for_cluster, max_proposals_per_run, focus_categories, comparison_regions,
	default_duration_type, default_audience_profile_id, include_trending_context, last_auto_run_at`

func (r *postgresSettingsRepo) Get(ctx context.Context, projectID string) (*core.TopicGeneratorSettings, error) {
	query := `SELECT ` + settingsColumns + ` FROM topic_generator_settings WHERE project_id = $1`
	row := r.query().QueryRowContext(ctx, query, projectID)
	s, err := scanSettings(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("settings for project %s: %w", projectID, ErrNotFound)
		}
		return nil, err
	}
	return s, nil
}

func (r *postgresSettingsRepo) ListAutoEnabled(ctx context.Context) ([]core.TopicGeneratorSettings, error) {
	query := `SELECT ` + settingsColumns + ` FROM topic_generator_settings
		WHERE auto_generate_enabled = true ORDER BY project_id ASC`
	rows, err := r.query().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.TopicGeneratorSettings
	for rows.Next() {
		s, err := scanSettings(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *postgresSettingsRepo) Upsert(ctx context.Context, s *core.TopicGeneratorSettings) error {
	query := `
		INSERT INTO topic_generator_settings (` + settingsColumns + `, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (project_id) DO UPDATE SET
			auto_generate_enabled = EXCLUDED.auto_generate_enabled,
			schedule_time = EXCLUDED.schedule_time,
			timezone = EXCLUDED.timezone,
			time_window_days = EXCLUDED.time_window_days,
			min_stories_for_cluster = EXCLUDED.min_stories_for_cluster,
			max_proposals_per_run = EXCLUDED.max_proposals_per_run,
			focus_categories = EXCLUDED.focus_categories,
			comparison_regions = EXCLUDED.comparison_regions,
			default_duration_type = EXCLUDED.default_duration_type,
			default_audience_profile_id = EXCLUDED.default_audience_profile_id,
			include_trending_context = EXCLUDED.include_trending_context,
			last_auto_run_at = EXCLUDED.last_auto_run_at,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.query().ExecContext(ctx, query,
		s.ProjectID,
		s.AutoGenerateEnabled,
		s.ScheduleTime,
		s.Timezone,
		s.TimeWindowDays,
		s.MinStoriesForCluster,
		s.MaxProposalsPerRun,
		pq.Array(s.FocusCategories),
		pq.Array(s.ComparisonRegions),
		string(s.DefaultDurationType),
		nullString(s.DefaultAudienceProfileID),
		s.IncludeTrendingContext,
		nullTime(s.LastAutoRunAt),
		time.Now().UTC(),
	)
	return err
}

func (r *postgresSettingsRepo) MarkAutoRun(ctx context.Context, projectID string, at time.Time) error {
	query := `UPDATE topic_generator_settings SET last_auto_run_at = $2 WHERE project_id = $1`
	res, err := r.query().ExecContext(ctx, query, projectID, at.UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("settings for project %s: %w", projectID, ErrNotFound)
	}
	return nil
}

func scanSettings(scan func(dest ...interface{}) error) (*core.TopicGeneratorSettings, error) {
	var s core.TopicGeneratorSettings
	var durationType string
	var defaultProfile sql.NullString
	var lastRun sql.NullTime
	err := scan(
		&s.ProjectID,
		&s.AutoGenerateEnabled,
		&s.ScheduleTime,
		&s.Timezone,
		&s.TimeWindowDays,
		&s.MinStoriesForCluster,
		&s.MaxProposalsPerRun,
		pq.Array(&s.FocusCategories),
		pq.Array(&s.ComparisonRegions),
		&durationType,
		&defaultProfile,
		&s.IncludeTrendingContext,
		&lastRun,
	)
	if err != nil {
		return nil, err
	}
	s.DefaultDurationType = core.DurationType(durationType)
	s.DefaultAudienceProfileID = defaultProfile.String
	if lastRun.Valid {
		t := lastRun.Time
		s.LastAutoRunAt = &t
	}
	return &s, nil
}

// postgresTrendRepo implements TrendRepository for PostgreSQL
type postgresTrendRepo struct{ conn }

func (r *postgresTrendRepo) WatchedTrends(ctx context.Context, projectID string, limit int) ([]core.Trend, error) {
	query := `
		SELECT query, platforms, score FROM watched_trends
		WHERE project_id = $1 AND active = true
		ORDER BY score DESC
		LIMIT $2
	`
	rows, err := r.query().QueryContext(ctx, query, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trends []core.Trend
	for rows.Next() {
		var t core.Trend
		if err := rows.Scan(&t.Query, pq.Array(&t.Platforms), &t.Score); err != nil {
			return nil, err
		}
		trends = append(trends, t)
	}
	return trends, rows.Err()
}

func (r *postgresTrendRepo) RecentViralPosts(ctx context.Context, projectID string, since time.Time, limit int) ([]core.ViralPost, error) {
	query := `
		SELECT id, text, platform, engagement, posted_at FROM viral_posts
		WHERE project_id = $1 AND posted_at >= $2
		ORDER BY engagement DESC
		LIMIT $3
	`
	rows, err := r.query().QueryContext(ctx, query, projectID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []core.ViralPost
	for rows.Next() {
		var p core.ViralPost
		if err := rows.Scan(&p.ID, &p.Text, &p.Platform, &p.Engagement, &p.PostedAt); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// postgresMemberRepo implements MemberRepository for PostgreSQL
type postgresMemberRepo struct{ conn }

func (r *postgresMemberRepo) Role(ctx context.Context, projectID, userID string) (core.Role, error) {
	query := `SELECT role FROM project_members WHERE project_id = $1 AND user_id = $2`
	var role string
	if err := r.query().QueryRowContext(ctx, query, projectID, userID).Scan(&role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("member %s of project %s: %w", userID, projectID, ErrNotFound)
		}
		return "", err
	}
	return core.Role(role), nil
}
