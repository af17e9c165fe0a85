package queue

import (
	"context"
	"strconv"
	"sync"
	"time"

	"digikala/crawler/internal/domain/task"
)

// MemoryQueue is a process-local LIFO queue. Popping the newest task first
// keeps the walk depth-first, so pages of one collection finish before the
// frontier grows sideways.
type MemoryQueue struct {
	mu      sync.Mutex
	tasks   []*Message
	pending int64
	seq     uint64
	closed  bool

	notify chan struct{}
	wait   time.Duration
}

func NewMemoryQueue(wait time.Duration) *MemoryQueue {
	if wait <= 0 {
		wait = 100 * time.Millisecond
	}
	return &MemoryQueue{
		tasks:  make([]*Message, 0),
		notify: make(chan struct{}, 1),
		wait:   wait,
	}
}

func (q *MemoryQueue) Push(_ context.Context, t task.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.seq++
	q.tasks = append(q.tasks, &Message{ID: strconv.FormatUint(q.seq, 10), Task: t})
	q.pending++

	select {
	case q.notify <- struct{}{}:
	default:
	}

	return nil
}

func (q *MemoryQueue) Pop(ctx context.Context) (*Message, error) {
	timer := time.NewTimer(q.wait)
	defer timer.Stop()

	for {
		msg, err := q.tryPop()
		if msg != nil || err != nil {
			return msg, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return q.tryPop()
		case <-q.notify:
		}
	}
}

func (q *MemoryQueue) tryPop() (*Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrQueueClosed
	}
	if len(q.tasks) == 0 {
		return nil, nil
	}

	last := len(q.tasks) - 1
	msg := q.tasks[last]
	q.tasks[last] = nil
	q.tasks = q.tasks[:last]

	// Hand the wake-up on if more work is waiting.
	if len(q.tasks) > 0 {
		select {
		case q.notify <- struct{}{}:
		default:
		}
	}

	return msg, nil
}

func (q *MemoryQueue) Ack(_ context.Context, _ *Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pending > 0 {
		q.pending--
	}
	return nil
}

func (q *MemoryQueue) Pending(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending, nil
}

// Len returns the number of tasks waiting to be popped.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}
