// Package clustercache stores computed clusters per (project, audience profile) and only
// serves them back while they are unexpired and their input fingerprints still match.
package clustercache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"topicdesk/internal/core"
	"topicdesk/internal/logger"
)

// DefaultTTL is how long a cache entry stays valid.
const DefaultTTL = time.Hour

// Lookup outcomes reported to the Recorder.
const (
	ResultHit     = "hit"
	ResultMiss    = "miss"
	ResultExpired = "expired"
	ResultStale   = "stale"
	ResultError   = "error"
)

// Store persists one entry per key. Upsert must replace any prior entry atomically.
// Get returns nil, nil when nothing is stored.
type Store interface {
	Get(ctx context.Context, projectID, audienceProfileID string) (*core.ClusterCacheEntry, error)
	Upsert(ctx context.Context, entry core.ClusterCacheEntry) error
}

// Recorder observes lookup outcomes.
type Recorder interface {
	ObserveCacheLookup(result string)
}

// Key identifies the inputs a set of clusters was computed from.
type Key struct {
	ProjectID          string
	AudienceProfileID  string
	StoriesFingerprint string
	TrendsFingerprint  string
}

// Cache applies TTL and fingerprint validation on top of a Store.
type Cache struct {
	store    Store
	ttl      time.Duration
	now      func() time.Time
	recorder Recorder
	log      *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithRecorder reports lookup outcomes.
func WithRecorder(r Recorder) Option {
	return func(c *Cache) { c.recorder = r }
}

// New creates a cache over store.
func New(store Store, opts ...Option) *Cache {
	c := &Cache{
		store: store,
		ttl:   DefaultTTL,
		now:   time.Now,
		log:   logger.Get(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured entry lifetime.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get returns the entry for (projectID, audienceProfileID) only if it has not expired.
func (c *Cache) Get(ctx context.Context, projectID, audienceProfileID string) (*core.ClusterCacheEntry, error) {
	entry, err := c.store.Get(ctx, projectID, audienceProfileID)
	if err != nil {
		return nil, fmt.Errorf("failed to read cluster cache: %w", err)
	}
	if entry == nil || !entry.ExpiresAt.After(c.now()) {
		return nil, nil
	}
	return entry, nil
}

// Put replaces the entry for the key's project and profile.
func (c *Cache) Put(ctx context.Context, key Key, clusters []core.TopicCluster) error {
	now := c.now().UTC()
	entry := core.ClusterCacheEntry{
		ProjectID:          key.ProjectID,
		AudienceProfileID:  key.AudienceProfileID,
		Clusters:           clusters,
		StoriesFingerprint: key.StoriesFingerprint,
		TrendsFingerprint:  key.TrendsFingerprint,
		CreatedAt:          now,
		ExpiresAt:          now.Add(c.ttl),
	}
	if entry.Clusters == nil {
		entry.Clusters = []core.TopicCluster{}
	}
	if err := c.store.Upsert(ctx, entry); err != nil {
		return fmt.Errorf("failed to write cluster cache: %w", err)
	}
	return nil
}

// Lookup returns cached clusters when an unexpired entry exists and both fingerprints match.
// Read failures are logged and treated as a miss.
func (c *Cache) Lookup(ctx context.Context, key Key) ([]core.TopicCluster, bool) {
	entry, err := c.store.Get(ctx, key.ProjectID, key.AudienceProfileID)
	result := ResultHit
	switch {
	case err != nil:
		c.log.Warn("Cluster cache read failed, recomputing", "project_id", key.ProjectID, "error", err)
		result = ResultError
	case entry == nil:
		result = ResultMiss
	case !entry.ExpiresAt.After(c.now()):
		result = ResultExpired
	case entry.StoriesFingerprint != key.StoriesFingerprint || entry.TrendsFingerprint != key.TrendsFingerprint:
		result = ResultStale
	}

	if c.recorder != nil {
		c.recorder.ObserveCacheLookup(result)
	}
	c.log.Debug("Cluster cache lookup", "project_id", key.ProjectID, "audience_profile_id", key.AudienceProfileID, "result", result)

	if result != ResultHit {
		return nil, false
	}
	return entry.Clusters, true
}
