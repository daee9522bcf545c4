package ledger

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
)

// newTestRedisRepo creates a RedisRepository against a local Redis instance
// under a test-only key. Tests that call this helper require a running Redis
// on localhost:6379 and skip otherwise.
func newTestRedisRepo(t *testing.T) *RedisRepository {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	const key = "modguard:ledger:test"
	client.Del(ctx, key)
	t.Cleanup(func() {
		client.Del(ctx, key)
		client.Close()
	})
	return NewRedisRepository(client, key)
}

func TestRedisRepository_MissingKey(t *testing.T) {
	repo := newTestRedisRepo(t)

	snap, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(snap.Users) != 0 || len(snap.History) != 0 {
		t.Errorf("expected empty snapshot, got %d users, %d records", len(snap.Users), len(snap.History))
	}
}

func TestRedisRepository_RoundTrip(t *testing.T) {
	repo := newTestRedisRepo(t)
	ctx := context.Background()

	snap := NewSnapshot()
	snap.Users["bob"] = &UserRecord{Count: 3, CreatedAt: snap.CreatedAt, AppealsUsed: 1}
	snap.History = append(snap.History, WarningRecord{
		ID: "id-1", Timestamp: snap.CreatedAt, Username: "bob", Message: "msg",
		WarningNumber: 1, Reason: "r", Severity: "high", Category: "explicit_content", Source: "local_filter",
	})

	if err := repo.Save(ctx, snap); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.Users["bob"] == nil || loaded.Users["bob"].Count != 3 {
		t.Errorf("user lost in round-trip: %+v", loaded.Users["bob"])
	}
	if len(loaded.History) != 1 || loaded.History[0].ID != "id-1" {
		t.Errorf("history lost in round-trip: %+v", loaded.History)
	}
}

func TestRedisRepository_CorruptValue(t *testing.T) {
	repo := newTestRedisRepo(t)
	ctx := context.Background()

	if err := repo.client.Set(ctx, repo.key, "{not json", 0).Err(); err != nil {
		t.Fatal(err)
	}

	snap, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v, corrupt values must yield a fresh ledger", err)
	}
	if len(snap.Users) != 0 {
		t.Errorf("expected fresh snapshot, got %d users", len(snap.Users))
	}
}
