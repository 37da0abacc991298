package clustercache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"topicdesk/internal/core"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStoreFromClient(client, "test"), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	entry := core.ClusterCacheEntry{
		ProjectID:          "proj-1",
		AudienceProfileID:  "aud-1",
		Clusters:           sampleClusters,
		StoriesFingerprint: "abc",
		TrendsFingerprint:  "empty",
		CreatedAt:          now,
		ExpiresAt:          now.Add(time.Hour),
	}
	if err := store.Upsert(ctx, entry); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if !mr.Exists("test:proj-1:aud-1") {
		t.Fatal("Expected key to be written")
	}
	if ttl := mr.TTL("test:proj-1:aud-1"); ttl <= 0 || ttl > time.Hour {
		t.Errorf("Expected TTL up to one hour, got %v", ttl)
	}

	got, err := store.Get(ctx, "proj-1", "aud-1")
	if err != nil || got == nil {
		t.Fatalf("Get failed: %v %v", got, err)
	}
	if got.StoriesFingerprint != "abc" || len(got.Clusters) != 1 {
		t.Errorf("Unexpected entry: %+v", got)
	}
}

func TestRedisStoreMissAndExpiry(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	got, err := store.Get(ctx, "proj-1", "")
	if err != nil || got != nil {
		t.Fatalf("Expected clean miss, got %v %v", got, err)
	}

	now := time.Now().UTC()
	_ = store.Upsert(ctx, core.ClusterCacheEntry{ProjectID: "proj-1", Clusters: sampleClusters, CreatedAt: now, ExpiresAt: now.Add(time.Minute)})
	mr.FastForward(2 * time.Minute)

	got, err = store.Get(ctx, "proj-1", "")
	if err != nil || got != nil {
		t.Errorf("Expected Redis to expire the entry, got %v %v", got, err)
	}
}

func TestCacheOverRedis(t *testing.T) {
	store, _ := newTestRedisStore(t)
	cache := New(store)
	ctx := context.Background()
	key := Key{ProjectID: "proj-1", AudienceProfileID: "aud-1", StoriesFingerprint: "abc", TrendsFingerprint: "empty"}

	if err := cache.Put(ctx, key, sampleClusters); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, ok := cache.Lookup(ctx, key); !ok {
		t.Error("Expected hit through Redis store")
	}
}
