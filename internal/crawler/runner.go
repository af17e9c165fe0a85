package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"digikala/crawler/internal/domain"
	"digikala/crawler/internal/domain/task"
	"digikala/crawler/internal/queue"
	"digikala/crawler/internal/state"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Fetcher returns the body of a resource URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type ReviewSink interface {
	WriteReview(ctx context.Context, review domain.Review) error
}

type CommentSink interface {
	SaveComment(ctx context.Context, comment domain.Comment) error
}

// Stats summarises a run.
type Stats struct {
	Fetches       int64
	FetchFailures int64
	Malformed     int64
	Reviews       int64
	Comments      int64
	SinkErrors    int64
	QueueErrors   int64
}

type counters struct {
	fetches       atomic.Int64
	fetchFailures atomic.Int64
	malformed     atomic.Int64
	reviews       atomic.Int64
	comments      atomic.Int64
	sinkErrors    atomic.Int64
	queueErrors   atomic.Int64
}

// Runner drains the task queue with a pool of workers, feeding each response
// through the Engine and routing its outcome to the sinks and back into the
// queue.
type Runner struct {
	baseURL  string
	engine   *Engine
	fetcher  Fetcher
	queue    queue.Queue
	reviews  ReviewSink
	comments CommentSink
	budget   state.Budget
	workers  int

	stopOnce sync.Once
	stopped  chan struct{}
	stats    counters
}

// Option configures a Runner.
type Option func(*Runner)

func WithQueue(q queue.Queue) Option {
	return func(r *Runner) { r.queue = q }
}

func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

func WithReviewSink(s ReviewSink) Option {
	return func(r *Runner) { r.reviews = s }
}

func WithCommentSink(s CommentSink) Option {
	return func(r *Runner) { r.comments = s }
}

func WithBudget(b state.Budget) Option {
	return func(r *Runner) { r.budget = b }
}

func NewRunner(baseURL string, fetcher Fetcher, engine *Engine, opts ...Option) *Runner {
	r := &Runner{
		baseURL:  baseURL,
		engine:   engine,
		fetcher:  fetcher,
		queue:    queue.NewMemoryQueue(0),
		reviews:  discard{},
		comments: discard{},
		budget:   state.NewBudget(0),
		workers:  1,
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Crawl walks the whole catalog under baseURL with a single worker and an
// in-memory queue, emitting every record to the given sinks.
func Crawl(ctx context.Context, baseURL string, fetcher Fetcher, reviews ReviewSink, comments CommentSink) (Stats, error) {
	r := NewRunner(baseURL, fetcher, NewEngine(DefaultPageCap),
		WithReviewSink(reviews),
		WithCommentSink(comments),
	)
	err := r.Run(ctx)
	return r.Stats(), err
}

// Run starts a fresh crawl from the root task unless earlier work is still
// pending, in which case it resumes that work and keeps the spent
// budget. It blocks until the queue drains, Stop is called or ctx ends.
func (r *Runner) Run(ctx context.Context) error {
	pending, err := r.queue.Pending(ctx)
	if err != nil {
		return fmt.Errorf("failed to read pending tasks: %w", err)
	}

	if pending == 0 {
		if err := r.budget.Reset(ctx); err != nil {
			return fmt.Errorf("failed to reset crawl budget: %w", err)
		}
		if err := r.queue.Push(ctx, &task.RootTask{}); err != nil {
			return fmt.Errorf("failed to seed root task: %w", err)
		}
	} else {
		exhausted, err := r.budget.Exhausted(ctx)
		if err != nil {
			return fmt.Errorf("failed to check crawl budget: %w", err)
		}
		if exhausted {
			log.Infof("🛑 Crawl budget already spent, leaving %d pending tasks untouched", pending)
			return nil
		}
		log.Infof("🔄 Resuming crawl with %d pending tasks", pending)
	}

	log.Infof("🚀 Starting %d workers against %s", r.workers, r.baseURL)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < r.workers; i++ {
		workerID := i + 1
		g.Go(func() error {
			return r.work(ctx, workerID)
		})
	}

	err = g.Wait()

	s := r.Stats()
	log.Infof("✅ Crawl finished: %d fetches (%d failed, %d malformed), %d reviews, %d comments",
		s.Fetches, s.FetchFailures, s.Malformed, s.Reviews, s.Comments)

	return err
}

// Stop makes workers finish their current task and take no new ones. Calling
// it more than once has no further effect.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		log.Info("🛑 Stop requested, no new requests will be issued")
		close(r.stopped)
	})
}

func (r *Runner) isStopped() bool {
	select {
	case <-r.stopped:
		return true
	default:
		return false
	}
}

func (r *Runner) Stats() Stats {
	return Stats{
		Fetches:       r.stats.fetches.Load(),
		FetchFailures: r.stats.fetchFailures.Load(),
		Malformed:     r.stats.malformed.Load(),
		Reviews:       r.stats.reviews.Load(),
		Comments:      r.stats.comments.Load(),
		SinkErrors:    r.stats.sinkErrors.Load(),
		QueueErrors:   r.stats.queueErrors.Load(),
	}
}

func (r *Runner) work(ctx context.Context, workerID int) error {
	log.Debugf("Worker %d started", workerID)
	defer log.Debugf("Worker %d stopped", workerID)

	for {
		if r.isStopped() || ctx.Err() != nil {
			return nil
		}

		msg, err := r.queue.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrQueueClosed) {
				return nil
			}
			r.stats.queueErrors.Add(1)
			log.Errorf("❌ Worker %d failed to get task: %v", workerID, err)
			r.pause(ctx, time.Second)
			continue
		}

		if msg == nil {
			pending, err := r.queue.Pending(ctx)
			if err != nil {
				log.Errorf("❌ Worker %d failed to read pending tasks: %v", workerID, err)
				continue
			}
			if pending <= 0 {
				return nil
			}
			continue
		}

		// Stop may have fired while this worker waited in Pop. Left unacked,
		// the task stays pending for a later run.
		if r.isStopped() {
			log.Debugf("Worker %d dropping %s after stop", workerID, msg.Task.TaskType())
			return nil
		}

		r.process(ctx, msg.Task)

		if err := r.queue.Ack(ctx, msg); err != nil {
			r.stats.queueErrors.Add(1)
			log.Errorf("❌ Failed to ack task %s: %v", msg.ID, err)
		}
	}
}

// process runs one task to completion. Any failure abandons only this branch.
func (r *Runner) process(ctx context.Context, t task.Task) {
	url := URL(r.baseURL, t)
	log.Debugf("Fetching %s %s", t.TaskType(), url)

	r.stats.fetches.Add(1)
	body, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		r.stats.fetchFailures.Add(1)
		log.Warnf("⚠️ Abandoning branch: %v", fmt.Errorf("%w: %s: %v", ErrFetchFailure, url, err))
		return
	}

	out, err := r.engine.Step(t, body)
	if err != nil {
		r.stats.malformed.Add(1)
		log.Warnf("⚠️ Abandoning branch at %s: %v", url, err)
		return
	}

	for _, review := range out.Reviews {
		if err := r.reviews.WriteReview(ctx, review); err != nil {
			r.stats.sinkErrors.Add(1)
			log.Errorf("❌ Failed to write review: %v", err)
			continue
		}
		r.stats.reviews.Add(1)
		r.consume(ctx, review.Size())
	}

	for _, comment := range out.Comments {
		if err := r.comments.SaveComment(ctx, comment); err != nil {
			r.stats.sinkErrors.Add(1)
			log.Errorf("❌ Failed to save comment of product %d: %v", comment.ProductID, err)
			continue
		}
		r.stats.comments.Add(1)
		r.consume(ctx, comment.Size())
	}

	for _, next := range out.Tasks {
		if err := r.queue.Push(ctx, next); err != nil {
			r.stats.queueErrors.Add(1)
			log.Errorf("❌ Failed to queue %s: %v", next.TaskType(), err)
		}
	}
}

func (r *Runner) consume(ctx context.Context, n int64) {
	exhausted, err := r.budget.Consume(ctx, n)
	if err != nil {
		log.Errorf("❌ Failed to update crawl budget: %v", err)
		return
	}
	if exhausted {
		r.Stop()
	}
}

func (r *Runner) pause(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-r.stopped:
	case <-time.After(d):
	}
}

type discard struct{}

func (discard) WriteReview(context.Context, domain.Review) error   { return nil }
func (discard) SaveComment(context.Context, domain.Comment) error { return nil }
