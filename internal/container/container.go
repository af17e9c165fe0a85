package container

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"digikala/crawler/internal/client"
	"digikala/crawler/internal/config"
	"digikala/crawler/internal/crawler"
	"digikala/crawler/internal/domain/task"
	"digikala/crawler/internal/export"
	"digikala/crawler/internal/proxy"
	"digikala/crawler/internal/queue"
	"digikala/crawler/internal/repository"
	"digikala/crawler/internal/state"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const progressInterval = 30 * time.Second

// Container holds all initialized components
type Container struct {
	Config *config.Config
	Client client.DigikalaClient
	Queue  queue.Queue
	Budget state.Budget
	Runner *crawler.Runner

	reviews  *export.ReviewWriter
	comments *export.CommentWriter
	db       *pgxpool.Pool
	redis    *redis.Client
}

// New creates a new container with all dependencies initialized. Redis and
// Postgres are only dialled when the configuration asks for them.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{Config: cfg}

	if err := c.init(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) init(ctx context.Context) error {
	cfg := c.Config

	probeURL := crawler.URL(cfg.Digikala.BaseURL, &task.RootTask{})
	proxySupplier := proxy.NewProxySupplier(ctx, cfg.Digikala.Proxies, probeURL)
	c.Client = client.NewDigikalaClient(cfg.Digikala, proxySupplier)

	if cfg.Crawl.Queue == config.QueueRedis {
		if err := c.connectRedis(ctx); err != nil {
			return err
		}

		consumer, err := consumerName()
		if err != nil {
			return err
		}
		redisQueue, err := queue.NewRedisQueue(ctx, c.redis, cfg.Redis, consumer)
		if err != nil {
			return err
		}
		c.Queue = redisQueue
		c.Budget = state.NewRedisBudget(c.redis, cfg.Crawl.LimitBytes())
	} else {
		c.Queue = queue.NewMemoryQueue(0)
		c.Budget = state.NewBudget(cfg.Crawl.LimitBytes())
	}

	reviews, err := export.OpenReviewFile(cfg.Crawl.ReviewsFile, cfg.Crawl.StripHTML)
	if err != nil {
		return err
	}
	c.reviews = reviews

	var comments crawler.CommentSink
	if cfg.Crawl.CommentsSink == config.SinkPostgres {
		repo, err := c.connectPostgres(ctx)
		if err != nil {
			return err
		}
		comments = repo
	} else {
		c.comments, err = export.OpenCommentFile(cfg.Crawl.CommentsFile)
		if err != nil {
			return err
		}
		comments = c.comments
	}

	c.Runner = crawler.NewRunner(
		cfg.Digikala.BaseURL,
		c.Client,
		crawler.NewEngine(cfg.Digikala.PageCap),
		crawler.WithQueue(c.Queue),
		crawler.WithWorkers(cfg.Digikala.MaxWorkers),
		crawler.WithBudget(c.Budget),
		crawler.WithReviewSink(c.reviews),
		crawler.WithCommentSink(comments),
	)

	return nil
}

func (c *Container) connectRedis(ctx context.Context) error {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", c.Config.Redis.Host, c.Config.Redis.Port),
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.Database,
	})
	c.redis = rdb

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("✅ Connected to Redis successfully")
	return nil
}

func (c *Container) connectPostgres(ctx context.Context) (repository.CommentRepository, error) {
	db, err := pgxpool.New(ctx,
		fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			c.Config.Database.Host,
			c.Config.Database.Port,
			c.Config.Database.User,
			c.Config.Database.Password,
			c.Config.Database.Name,
		))
	if err != nil {
		return nil, fmt.Errorf("failed to open database pool: %w", err)
	}
	c.db = db

	repo := repository.NewCommentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	log.Info("✅ Connected to Postgres successfully")
	return repo, nil
}

// Run crawls until the queue drains, the budget runs out or ctx is cancelled.
func (c *Container) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	g.Go(func() error {
		defer close(done)
		return c.Runner.Run(gctx)
	})

	g.Go(func() error {
		c.reportProgress(gctx, done)
		return nil
	})

	// A cancelled parent means shutdown was requested, not a failure.
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (c *Container) reportProgress(ctx context.Context, done <-chan struct{}) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			s := c.Runner.Stats()
			used, err := c.Budget.Used(ctx)
			if err != nil {
				log.Warnf("⚠️ Failed to read budget usage: %v", err)
			}
			log.Infof("📊 %d fetches, %d reviews, %d comments, %d bytes written",
				s.Fetches, s.Reviews, s.Comments, used)
		}
	}
}

// Close performs cleanup when shutting down
func (c *Container) Close() error {
	log.Info("Shutting down container...")

	var errs []error
	if c.reviews != nil {
		errs = append(errs, c.reviews.Close())
	}
	if c.comments != nil {
		errs = append(errs, c.comments.Close())
	}
	if c.Queue != nil {
		errs = append(errs, c.Queue.Close())
	}
	if c.db != nil {
		c.db.Close()
	}
	if c.redis != nil {
		errs = append(errs, c.redis.Close())
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	log.Info("Container shut down successfully")
	return nil
}

func consumerName() (string, error) {
	host, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("failed to resolve consumer name: %w", err)
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid()), nil
}
