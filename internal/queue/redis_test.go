package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"digikala/crawler/internal/config"
	"digikala/crawler/internal/domain/task"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (*RedisQueue, redismock.ClientMock) {
	db, mock := redismock.NewClientMock()
	q := &RedisQueue{
		redisClient: db,
		stream:      streamName,
		pendingKey:  pendingKey,
		groupName:   "crawlers",
		consumer:    "worker-1",
		block:       time.Second,
		minIdleTime: time.Minute,
	}
	return q, mock
}

func redisConfig(group string) config.RedisConfig {
	return config.RedisConfig{ConsumerGroup: group, MinIdleTime: 60}
}

func TestNewRedisQueue_ExistingGroup(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectXGroupCreateMkStream(streamName, "crawlers", "0").
		SetErr(errors.New("BUSYGROUP Consumer Group name already exists"))

	_, err := NewRedisQueue(context.TODO(), db, redisConfig("crawlers"), "worker-1")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisQueue_Push(t *testing.T) {
	q, mock := newTestQueue(t)
	ctx := context.TODO()

	mock.ExpectIncr(pendingKey).SetVal(1)
	mock.ExpectXAdd(&redis.XAddArgs{
		Stream: streamName,
		Values: []interface{}{"task_type", task.TypeProduct, "task_data", `{"id":42}`},
	}).SetVal("1-0")

	err := q.Push(ctx, &task.ProductTask{ID: 42})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisQueue_PushCompensatesOnFailure(t *testing.T) {
	q, mock := newTestQueue(t)
	ctx := context.TODO()

	mock.ExpectIncr(pendingKey).SetVal(1)
	mock.ExpectXAdd(&redis.XAddArgs{
		Stream: streamName,
		Values: []interface{}{"task_type", task.TypeProduct, "task_data", `{"id":42}`},
	}).SetErr(errors.New("redis down"))
	mock.ExpectDecr(pendingKey).SetVal(0)

	err := q.Push(ctx, &task.ProductTask{ID: 42})
	assert.ErrorContains(t, err, "failed to add task")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisQueue_PopNewMessage(t *testing.T) {
	q, mock := newTestQueue(t)
	ctx := context.TODO()

	mock.ExpectXReadGroup(&redis.XReadGroupArgs{
		Group:    "crawlers",
		Consumer: "worker-1",
		Streams:  []string{streamName, ">"},
		Count:    1,
		Block:    time.Second,
	}).SetVal([]redis.XStream{{
		Stream: streamName,
		Messages: []redis.XMessage{{
			ID: "5-0",
			Values: map[string]interface{}{
				"task_type": task.TypeComments,
				"task_data": `{"product_id":9,"page":3}`,
			},
		}},
	}})

	msg, err := q.Pop(ctx)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "5-0", msg.ID)
	assert.Equal(t, &task.CommentsTask{ProductID: 9, Page: 3}, msg.Task)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisQueue_PopReclaimsWhenIdle(t *testing.T) {
	q, mock := newTestQueue(t)
	ctx := context.TODO()

	mock.ExpectXReadGroup(&redis.XReadGroupArgs{
		Group:    "crawlers",
		Consumer: "worker-1",
		Streams:  []string{streamName, ">"},
		Count:    1,
		Block:    time.Second,
	}).RedisNil()
	mock.ExpectXAutoClaim(&redis.XAutoClaimArgs{
		Stream:   streamName,
		Group:    "crawlers",
		Consumer: "worker-1",
		MinIdle:  time.Minute,
		Start:    "0-0",
		Count:    1,
	}).SetVal([]redis.XMessage{}, "0-0")

	msg, err := q.Pop(ctx)
	assert.NoError(t, err)
	assert.Nil(t, msg)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisQueue_Ack(t *testing.T) {
	q, mock := newTestQueue(t)
	ctx := context.TODO()

	mock.ExpectXAck(streamName, "crawlers", "5-0").SetVal(1)
	mock.ExpectDecr(pendingKey).SetVal(2)

	assert.NoError(t, q.Ack(ctx, &Message{ID: "5-0"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisQueue_Pending(t *testing.T) {
	q, mock := newTestQueue(t)
	ctx := context.TODO()

	mock.ExpectGet(pendingKey).RedisNil()
	pending, err := q.Pending(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), pending)

	mock.ExpectGet(pendingKey).SetVal("3")
	pending, err = q.Pending(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), pending)

	assert.NoError(t, mock.ExpectationsWereMet())
}
