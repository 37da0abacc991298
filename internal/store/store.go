// Package store provides a SQLite-backed local cluster cache for single-node deployments.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"topicdesk/internal/core"
)

// Store represents the SQLite-based caching store
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new store instance with SQLite database
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "topicdesk.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, path: dbPath}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// initialize creates the cluster cache table
func (s *Store) initialize() error {
	clusterCacheTable := `
	CREATE TABLE IF NOT EXISTS cluster_cache (
		project_id TEXT NOT NULL,
		audience_profile_id TEXT NOT NULL DEFAULT '',
		clusters TEXT NOT NULL,
		stories_fingerprint TEXT NOT NULL,
		trends_fingerprint TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		PRIMARY KEY (project_id, audience_profile_id)
	);`

	if _, err := s.db.Exec(clusterCacheTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// Path returns the database file location
func (s *Store) Path() string { return s.path }

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the stored entry for the key, or nil when absent
func (s *Store) Get(ctx context.Context, projectID, audienceProfileID string) (*core.ClusterCacheEntry, error) {
	query := `
	SELECT project_id, audience_profile_id, clusters, stories_fingerprint, trends_fingerprint, created_at, expires_at
	FROM cluster_cache
	WHERE project_id = ? AND audience_profile_id = ?`

	var entry core.ClusterCacheEntry
	var clusters string
	err := s.db.QueryRowContext(ctx, query, projectID, audienceProfileID).Scan(
		&entry.ProjectID,
		&entry.AudienceProfileID,
		&clusters,
		&entry.StoriesFingerprint,
		&entry.TrendsFingerprint,
		&entry.CreatedAt,
		&entry.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan cluster cache entry: %w", err)
	}

	if err := json.Unmarshal([]byte(clusters), &entry.Clusters); err != nil {
		return nil, fmt.Errorf("failed to decode cached clusters: %w", err)
	}
	return &entry, nil
}

// Upsert replaces the entry for the entry's key
func (s *Store) Upsert(ctx context.Context, entry core.ClusterCacheEntry) error {
	clusters, err := json.Marshal(entry.Clusters)
	if err != nil {
		return fmt.Errorf("failed to encode clusters: %w", err)
	}

	query := `
	INSERT OR REPLACE INTO cluster_cache
	(project_id, audience_profile_id, clusters, stories_fingerprint, trends_fingerprint, created_at, expires_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		entry.ProjectID,
		entry.AudienceProfileID,
		string(clusters),
		entry.StoriesFingerprint,
		entry.TrendsFingerprint,
		entry.CreatedAt.UTC(),
		entry.ExpiresAt.UTC(),
	)
	return err
}

// CleanupExpired removes entries that expired before now
func (s *Store) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cluster_cache WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup cluster cache: %w", err)
	}
	return res.RowsAffected()
}
