package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client, "gs", time.Minute), mr
}

func futureRecord(id string, version uint64) *Record {
	now := time.Now().UnixNano()
	return &Record{
		ID:             id,
		CreatedAt:      now,
		LastAccessedAt: now,
		ExpiresAt:      now + time.Hour.Nanoseconds(),
		Version:        version,
		Payload:        map[string]any{"user": "alice"},
	}
}

func TestRedisStorePutGetDelete(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	rec := futureRecord("r1", 1)
	if err := store.Put(ctx, rec, NoVersion); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	got, err := store.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Version != 1 || got.Payload["user"] != "alice" {
		t.Fatalf("record mismatch: %+v", got)
	}

	if err := store.Delete(ctx, "r1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := store.Delete(ctx, "r1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestRedisStoreVersionCompareAndSwap(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, futureRecord("r1", 1), NoVersion); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := store.Put(ctx, futureRecord("r1", 1), NoVersion); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected create conflict, got %v", err)
	}

	if err := store.Put(ctx, futureRecord("r1", 2), 1); err != nil {
		t.Fatalf("versioned put failed: %v", err)
	}

	if err := store.Put(ctx, futureRecord("r1", 2), 1); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected stale-version conflict, got %v", err)
	}

	if err := store.Put(ctx, futureRecord("gone", 5), 4); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected conflict for missing record, got %v", err)
	}

	got, err := store.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Version != 2 {
		t.Fatalf("expected committed version 2, got %d", got.Version)
	}
}

func TestRedisStoreCorruptEnvelope(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	if err := mr.Set("gs:r1", "garbage"); err != nil {
		t.Fatalf("seed corrupt value: %v", err)
	}

	if _, err := store.Get(ctx, "r1"); !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("expected ErrCorruptRecord on get, got %v", err)
	}

	// The CAS script cannot trust a version it cannot parse.
	if err := store.Put(ctx, futureRecord("r1", 2), 1); !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("expected ErrCorruptRecord on put, got %v", err)
	}
}

func TestRedisStoreKeyTTL(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, futureRecord("r1", 1), NoVersion); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	ttl := mr.TTL("gs:r1")
	if ttl <= time.Hour || ttl > time.Hour+2*time.Minute {
		t.Fatalf("expected ttl near expiry+grace, got %v", ttl)
	}
}

func TestRedisStoreListIDs(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := store.Put(ctx, futureRecord(id, 1), NoVersion); err != nil {
			t.Fatalf("put %s: %v", id, err)
		}
	}

	seen := map[string]bool{}
	for id, err := range store.ListIDs(ctx) {
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		seen[id] = true
	}
	if len(seen) != 3 || !seen["a"] || !seen["b"] || !seen["c"] {
		t.Fatalf("unexpected id set: %v", seen)
	}
}
