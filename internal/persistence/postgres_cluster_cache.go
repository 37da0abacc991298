package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"topicdesk/internal/core"
)

// postgresClusterCacheRepo implements ClusterCacheRepository for PostgreSQL.
// The (project_id, audience_profile_id) primary key makes Upsert a single atomic replace.
type postgresClusterCacheRepo struct{ conn }

func (r *postgresClusterCacheRepo) Get(ctx context.Context, projectID, audienceProfileID string) (*core.ClusterCacheEntry, error) {
	query := `
		SELECT project_id, audience_profile_id, clusters, stories_fingerprint, trends_fingerprint, created_at, expires_at
		FROM cluster_cache
		WHERE project_id = $1 AND audience_profile_id = $2
	`
	var entry core.ClusterCacheEntry
	var clusters []byte
	err := r.query().QueryRowContext(ctx, query, projectID, audienceProfileID).Scan(
		&entry.ProjectID,
		&entry.AudienceProfileID,
		&clusters,
		&entry.StoriesFingerprint,
		&entry.TrendsFingerprint,
		&entry.CreatedAt,
		&entry.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(clusters, &entry.Clusters); err != nil {
		return nil, fmt.Errorf("failed to decode cached clusters: %w", err)
	}
	return &entry, nil
}

func (r *postgresClusterCacheRepo) Upsert(ctx context.Context, entry core.ClusterCacheEntry) error {
	clusters, err := json.Marshal(entry.Clusters)
	if err != nil {
		return fmt.Errorf("failed to encode clusters: %w", err)
	}

	query := `
		INSERT INTO cluster_cache (project_id, audience_profile_id, clusters, stories_fingerprint, trends_fingerprint, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (project_id, audience_profile_id) DO UPDATE SET
			clusters = EXCLUDED.clusters,
			stories_fingerprint = EXCLUDED.stories_fingerprint,
			trends_fingerprint = EXCLUDED.trends_fingerprint,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
	`
	_, err = r.query().ExecContext(ctx, query,
		entry.ProjectID,
		entry.AudienceProfileID,
		clusters,
		entry.StoriesFingerprint,
		entry.TrendsFingerprint,
		entry.CreatedAt,
		entry.ExpiresAt,
	)
	return err
}

func (r *postgresClusterCacheRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.query().ExecContext(ctx, `DELETE FROM cluster_cache WHERE expires_at <= $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
