package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"digikala/crawler/internal/config"
	"digikala/crawler/internal/domain/task"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	streamName = "digikala:stream:tasks"
	pendingKey = "digikala:pending"
)

// RedisQueue keeps tasks in a Redis stream read through a consumer group, so
// several crawler processes can share one walk and a restarted process picks
// up where the last one stopped. Deliveries left unacknowledged longer than
// minIdleTime are claimed again.
type RedisQueue struct {
	redisClient *redis.Client
	stream      string
	pendingKey  string
	groupName   string
	consumer    string
	block       time.Duration
	minIdleTime time.Duration
}

func NewRedisQueue(ctx context.Context, redisClient *redis.Client, cfg config.RedisConfig, consumer string) (*RedisQueue, error) {
	q := &RedisQueue{
		redisClient: redisClient,
		stream:      streamName,
		pendingKey:  pendingKey,
		groupName:   cfg.ConsumerGroup,
		consumer:    consumer,
		block:       5 * time.Second,
		minIdleTime: time.Duration(cfg.MinIdleTime) * time.Second,
	}

	if err := q.CreateGroup(ctx); err != nil {
		return nil, fmt.Errorf("failed to create consumer group %s: %w", q.groupName, err)
	}

	log.Infof("✅ Stream %s and consumer group %s ready", q.stream, q.groupName)
	return q, nil
}

func (q *RedisQueue) CreateGroup(ctx context.Context) error {
	err := q.redisClient.XGroupCreateMkStream(ctx, q.stream, q.groupName, "0").Err()
	if err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP") {
		log.Debugf("Group %s already exists for stream %s", q.groupName, q.stream)
		return nil
	}
	return err
}

func (q *RedisQueue) Push(ctx context.Context, t task.Task) error {
	taskType := t.TaskType()

	taskValue, err := t.TaskValue()
	if err != nil {
		return fmt.Errorf("failed to serialize task: %w", err)
	}

	// Count first: a worker may pop and ack the task before XADD returns.
	if err := q.redisClient.Incr(ctx, q.pendingKey).Err(); err != nil {
		return fmt.Errorf("failed to increment pending counter: %w", err)
	}

	messageID, err := q.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: []interface{}{"task_type", taskType, "task_data", string(taskValue)},
	}).Result()
	if err != nil {
		if decErr := q.redisClient.Decr(ctx, q.pendingKey).Err(); decErr != nil {
			log.Errorf("❌ Failed to compensate pending counter after failed push: %v", decErr)
		}
		return fmt.Errorf("failed to add task to Redis stream %s: %w", q.stream, err)
	}

	log.Debugf("Added task %s to stream %s with message ID: %s", taskType, q.stream, messageID)
	return nil
}

func (q *RedisQueue) Pop(ctx context.Context) (*Message, error) {
	result, err := q.redisClient.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.groupName,
		Consumer: q.consumer,
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    q.block,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read from Redis stream %s: %w", q.stream, err)
	}

	if len(result) > 0 && len(result[0].Messages) > 0 {
		return q.decode(ctx, result[0].Messages[0])
	}

	return q.reclaim(ctx)
}

// reclaim takes over one delivery another consumer left unacknowledged.
func (q *RedisQueue) reclaim(ctx context.Context) (*Message, error) {
	claimed, _, err := q.redisClient.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.groupName,
		Consumer: q.consumer,
		MinIdle:  q.minIdleTime,
		Start:    "0-0",
		Count:    1,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to claim messages from Redis stream %s: %w", q.stream, err)
	}

	if len(claimed) == 0 {
		return nil, nil
	}

	log.Infof("🔄 Re-claimed stale message %s", claimed[0].ID)
	return q.decode(ctx, claimed[0])
}

func (q *RedisQueue) decode(ctx context.Context, msg redis.XMessage) (*Message, error) {
	taskType, _ := msg.Values["task_type"].(string)
	taskData, _ := msg.Values["task_data"].(string)

	t, err := task.Decode(taskType, []byte(taskData))
	if err != nil {
		// Drop the poison message so it is not redelivered forever.
		if ackErr := q.Ack(ctx, &Message{ID: msg.ID}); ackErr != nil {
			log.Errorf("❌ Failed to drop undecodable message %s: %v", msg.ID, ackErr)
		}
		return nil, fmt.Errorf("invalid task in message %s: %w", msg.ID, err)
	}

	return &Message{ID: msg.ID, Task: t}, nil
}

func (q *RedisQueue) Ack(ctx context.Context, msg *Message) error {
	acked, err := q.redisClient.XAck(ctx, q.stream, q.groupName, msg.ID).Result()
	if err != nil {
		return fmt.Errorf("failed to ack message %s: %w", msg.ID, err)
	}
	if acked == 0 {
		// Someone else already acknowledged it.
		return nil
	}

	if err := q.redisClient.Decr(ctx, q.pendingKey).Err(); err != nil {
		return fmt.Errorf("failed to decrement pending counter: %w", err)
	}
	return nil
}

func (q *RedisQueue) Pending(ctx context.Context) (int64, error) {
	pending, err := q.redisClient.Get(ctx, q.pendingKey).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read pending counter: %w", err)
	}
	return pending, nil
}

// Close leaves the Redis client open; it is owned by the container.
func (q *RedisQueue) Close() error {
	return nil
}
