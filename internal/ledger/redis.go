package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultRedisKey is the Redis key holding the ledger snapshot.
const DefaultRedisKey = "modguard:ledger"

// RedisRepository persists the ledger snapshot as a single JSON value in
// Redis. SET replaces the value atomically, so concurrent readers never see
// a partial snapshot.
type RedisRepository struct {
	client *redis.Client
	key    string
}

// NewRedisRepository creates a repository using the provided Redis client.
// An empty key falls back to DefaultRedisKey.
func NewRedisRepository(client *redis.Client, key string) *RedisRepository {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisRepository{client: client, key: key}
}

// Load fetches the snapshot. A missing key yields a fresh empty snapshot;
// an undecodable value is replaced with a fresh snapshot (logged). Redis
// errors are returned so callers can decide whether to proceed.
func (r *RedisRepository) Load(ctx context.Context) (*Snapshot, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return NewSnapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: redis get %s: %w", r.key, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		logrus.Warnf("[ledger] corrupt snapshot in redis key %s: %v (starting fresh)", r.key, err)
		return NewSnapshot(), nil
	}
	if snap.Users == nil {
		snap.Users = make(map[string]*UserRecord)
	}
	if snap.History == nil {
		snap.History = []WarningRecord{}
	}
	return &snap, nil
}

// Save stores the snapshot under the configured key with no expiry.
func (r *RedisRepository) Save(ctx context.Context, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("ledger: marshal snapshot: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("ledger: redis set %s: %w", r.key, err)
	}
	return nil
}
