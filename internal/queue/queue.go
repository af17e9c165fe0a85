package queue

import (
	"context"
	"errors"

	"digikala/crawler/internal/domain/task"
)

var ErrQueueClosed = errors.New("queue is closed")

// Message is a task handed to a worker. ID identifies the delivery for Ack.
type Message struct {
	ID   string
	Task task.Task
}

// Queue holds pending crawl tasks. A task counts as pending from Push until
// its Ack, so a worker that pushes children before acknowledging its own
// task never lets Pending drop to zero early.
type Queue interface {
	Push(ctx context.Context, t task.Task) error
	// Pop returns nil, nil when nothing arrived within the queue's wait time.
	Pop(ctx context.Context) (*Message, error)
	Ack(ctx context.Context, msg *Message) error
	Pending(ctx context.Context) (int64, error)
	Close() error
}
