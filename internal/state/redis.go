package state

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisLastCheckKey = "cvewatch:last_check"
	redisProcessedKey = "cvewatch:processed_ids"
)

// ConnectRedis creates and validates a Redis connection.
func ConnectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	return client, nil
}

// RedisStore persists run state in Redis: the last-check time as a string
// key and the processed IDs as a set. Useful when the watcher runs without a
// persistent volume.
type RedisStore struct {
	client   *redis.Client
	lookback time.Duration
	now      func() time.Time
}

// NewRedisStore creates a Redis-backed state store.
func NewRedisStore(client *redis.Client, lookback time.Duration) *RedisStore {
	return &RedisStore{
		client:   client,
		lookback: lookback,
		now:      time.Now,
	}
}

// Load reads run state from Redis, falling back to the default lookback
// window when keys are missing or unreadable.
func (r *RedisStore) Load(ctx context.Context) *RunState {
	raw, err := r.client.Get(ctx, redisLastCheckKey).Result()
	if err == redis.Nil {
		slog.Info("No run state in Redis, using default lookback", "lookback", r.lookback)
		return r.defaultState()
	}
	if err != nil {
		slog.Warn("Failed to read last-check time from Redis, using default lookback", "error", err)
		return r.defaultState()
	}

	lastCheck, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		slog.Warn("Unparseable last-check time in Redis, using default lookback",
			"value", raw,
			"error", err,
		)
		return r.defaultState()
	}

	ids, err := r.client.SMembers(ctx, redisProcessedKey).Result()
	if err != nil {
		slog.Warn("Failed to read processed IDs from Redis, using default lookback", "error", err)
		return r.defaultState()
	}

	st := NewRunState(lastCheck)
	for _, id := range ids {
		st.MarkSeen(id)
	}

	slog.Info("Loaded run state from Redis",
		"last_check", st.LastCheck.Format(time.RFC3339),
		"processed_ids", st.ProcessedCount(),
	)
	return st
}

// Save writes the run state back to Redis. The processed-ID set only ever
// receives additions, matching the grow-only contract.
func (r *RedisStore) Save(ctx context.Context, st *RunState) error {
	pipe := r.client.Pipeline()
	pipe.Set(ctx, redisLastCheckKey, st.LastCheck.UTC().Format(time.RFC3339), 0)
	if ids := st.IDs(); len(ids) > 0 {
		members := make([]interface{}, len(ids))
		for i, id := range ids {
			members[i] = id
		}
		pipe.SAdd(ctx, redisProcessedKey, members...)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save run state to Redis: %w", err)
	}
	return nil
}

func (r *RedisStore) defaultState() *RunState {
	return NewRunState(r.now().UTC().Add(-r.lookback))
}
