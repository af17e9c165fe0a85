package state

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

// Budget tracks how much output the crawl has produced against a limit.
type Budget interface {
	// Consume records n more bytes of output and reports whether the limit
	// is now reached.
	Consume(ctx context.Context, n int64) (bool, error)
	Used(ctx context.Context) (int64, error)
	// Exhausted reports whether output recorded so far already reaches the limit.
	Exhausted(ctx context.Context) (bool, error)
	// Reset forgets all recorded output. It is called when a new crawl starts.
	Reset(ctx context.Context) error
}

// NewBudget returns a process-local budget. A limit of zero never runs out.
func NewBudget(limit int64) Budget {
	return &memoryBudget{limit: limit}
}

type memoryBudget struct {
	limit int64
	used  atomic.Int64
}

func (b *memoryBudget) Consume(_ context.Context, n int64) (bool, error) {
	used := b.used.Add(n)
	return b.limit > 0 && used >= b.limit, nil
}

func (b *memoryBudget) Used(_ context.Context) (int64, error) {
	return b.used.Load(), nil
}

func (b *memoryBudget) Exhausted(_ context.Context) (bool, error) {
	return b.limit > 0 && b.used.Load() >= b.limit, nil
}

func (b *memoryBudget) Reset(_ context.Context) error {
	b.used.Store(0)
	return nil
}

type redisBudget struct {
	redisClient *redis.Client
	key         string
	limit       int64
}

// NewRedisBudget returns a budget shared by every crawler process using the
// same Redis database.
func NewRedisBudget(redisClient *redis.Client, limit int64) Budget {
	return &redisBudget{
		redisClient: redisClient,
		key:         "digikala:budget:bytes",
		limit:       limit,
	}
}

func (b *redisBudget) Consume(ctx context.Context, n int64) (bool, error) {
	used, err := b.redisClient.IncrBy(ctx, b.key, n).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record %d bytes of output: %w", n, err)
	}
	return b.limit > 0 && used >= b.limit, nil
}

func (b *redisBudget) Used(ctx context.Context) (int64, error) {
	used, err := b.redisClient.Get(ctx, b.key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil // nothing written yet
		}
		return 0, fmt.Errorf("failed to read output counter: %w", err)
	}
	return used, nil
}

func (b *redisBudget) Exhausted(ctx context.Context) (bool, error) {
	if b.limit <= 0 {
		return false, nil
	}
	used, err := b.Used(ctx)
	if err != nil {
		return false, err
	}
	return used >= b.limit, nil
}

func (b *redisBudget) Reset(ctx context.Context) error {
	if err := b.redisClient.Del(ctx, b.key).Err(); err != nil {
		return fmt.Errorf("failed to reset output counter: %w", err)
	}
	return nil
}
