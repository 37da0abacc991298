package clustercache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"topicdesk/internal/core"
)

// RedisStore keeps cache entries as JSON strings that Redis expires on its own.
// SET replaces the value, so every write is an upsert.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore connects to the Redis URL and verifies the connection.
func NewRedisStore(ctx context.Context, url, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return NewRedisStoreFromClient(client, prefix), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "topicdesk:clusters"
	}
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

func (s *RedisStore) key(projectID, audienceProfileID string) string {
	return s.prefix + ":" + projectID + ":" + audienceProfileID
}

func (s *RedisStore) Get(ctx context.Context, projectID, audienceProfileID string) (*core.ClusterCacheEntry, error) {
	raw, err := s.client.Get(ctx, s.key(projectID, audienceProfileID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var entry core.ClusterCacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode cached clusters: %w", err)
	}
	return &entry, nil
}

func (s *RedisStore) Upsert(ctx context.Context, entry core.ClusterCacheEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode clusters: %w", err)
	}
	ttl := entry.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.client.Del(ctx, s.key(entry.ProjectID, entry.AudienceProfileID)).Err()
	}
	return s.client.Set(ctx, s.key(entry.ProjectID, entry.AudienceProfileID), raw, ttl).Err()
}

// Close releases the Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
