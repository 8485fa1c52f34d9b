package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	drepo "AlphaForge/internal/domain/repository"
)

// checkpointTTL keeps completed-batch sets from accumulating forever.
const checkpointTTL = 30 * 24 * time.Hour

// RedisCheckpoint records completed event ids per batch in a Redis set,
// so a restarted run skips finished events instead of recomputing them.
type RedisCheckpoint struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisCheckpoint creates a checkpoint store.
func NewRedisCheckpoint(client *redis.Client) *RedisCheckpoint {
	return &RedisCheckpoint{client: client, keyPrefix: "alphaforge:batch"}
}

func (c *RedisCheckpoint) key(batchID string) string {
	return fmt.Sprintf("%s:%s:done", c.keyPrefix, batchID)
}

// IsDone reports whether the event was already completed in this batch.
func (c *RedisCheckpoint) IsDone(ctx context.Context, batchID, eventID string) (bool, error) {
	ok, err := c.client.SIsMember(ctx, c.key(batchID), eventID).Result()
	if err != nil {
		return false, fmt.Errorf("checkpoint sismember: %w", err)
	}
	return ok, nil
}

// MarkDone records the event as completed.
func (c *RedisCheckpoint) MarkDone(ctx context.Context, batchID, eventID string) error {
	key := c.key(batchID)
	if err := c.client.SAdd(ctx, key, eventID).Err(); err != nil {
		return fmt.Errorf("checkpoint sadd: %w", err)
	}
	// refresh TTL on every write so long-running batches do not expire mid-run
	if err := c.client.Expire(ctx, key, checkpointTTL).Err(); err != nil {
		return fmt.Errorf("checkpoint expire: %w", err)
	}
	return nil
}

var _ drepo.Checkpoint = (*RedisCheckpoint)(nil)

// NoopCheckpoint disables resume tracking (useful in tests and one-shot
// runs without Redis).
type NoopCheckpoint struct{}

func (NoopCheckpoint) IsDone(ctx context.Context, batchID, eventID string) (bool, error) {
	return false, nil
}

func (NoopCheckpoint) MarkDone(ctx context.Context, batchID, eventID string) error { return nil }

var _ drepo.Checkpoint = NoopCheckpoint{}
