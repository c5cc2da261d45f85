package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the production Store backend: one JSON-encoded string key
// per session, written by SET with the TTL as its expiry (Touch extends it
// via EXPIRE), so a crashed agent's abandoned session still reclaims itself
// without any sweeper process.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps an already-configured *redis.Client. keyPrefix
// namespaces session keys (e.g. "voicegw:memory:") so the store can share a
// Redis instance with other subsystems.
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	return &RedisStore{client: client, prefix: keyPrefix}
}

func (r *RedisStore) key(sessionID string) string {
	return r.prefix + sessionID
}

// Put merges via read-modify-write rather than a transaction: the gateway
// is the sole writer to session memory, and each session's writes arrive on
// that session's own goroutines, so two racing writers for one key never
// occur in practice.
func (r *RedisStore) Put(ctx context.Context, sessionID string, data map[string]any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	merged := make(map[string]any, len(data))
	existing, err := r.Get(ctx, sessionID)
	switch {
	case err == nil:
		for k, v := range existing.Data {
			merged[k] = v
		}
	case errors.Is(err, ErrNotFound):
	default:
		return err
	}
	for k, v := range data {
		merged[k] = v
	}

	rec := Record{SessionID: sessionID, Data: merged, UpdatedAt: time.Now()}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("memory: encode record: %w", err)
	}
	if err := r.client.Set(ctx, r.key(sessionID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrMemoryUnavailable, err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, sessionID string) (Record, error) {
	raw, err := r.client.Get(ctx, r.key(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("%w: %v", ErrMemoryUnavailable, err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("memory: decode record: %w", err)
	}
	return rec, nil
}

func (r *RedisStore) Touch(ctx context.Context, sessionID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ok, err := r.client.Expire(ctx, r.key(sessionID), ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMemoryUnavailable, err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrMemoryUnavailable, err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
