package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Digikala DigikalaConfig `mapstructure:"digikala"`
	Crawl    CrawlConfig    `mapstructure:"crawl"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
}

// DigikalaConfig holds Digikala API configuration
type DigikalaConfig struct {
	BaseURL              string   `mapstructure:"base_url"`
	Timeout              int      `mapstructure:"timeout"`
	MaxRetries           int      `mapstructure:"max_retries"`
	MaxWorkers           int      `mapstructure:"max_workers"`
	MaxRequestsPerSecond int      `mapstructure:"max_requests_per_second"`
	PageCap              int      `mapstructure:"page_cap"`
	BreakerCooldown      int      `mapstructure:"breaker_cooldown"` // seconds
	Proxies              []string `mapstructure:"proxies"`
}

// CrawlConfig controls the crawl budget and where records end up
type CrawlConfig struct {
	LimitInGB    float64 `mapstructure:"limit_in_gb"`
	ReviewsFile  string  `mapstructure:"reviews_file"`
	CommentsFile string  `mapstructure:"comments_file"`
	CommentsSink string  `mapstructure:"comments_sink"` // file, postgres
	Queue        string  `mapstructure:"queue"`         // memory, redis
	StripHTML    bool    `mapstructure:"strip_html"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// RedisConfig holds Redis connection details
type RedisConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Password      string `mapstructure:"password"`
	Database      int    `mapstructure:"database"`
	ConsumerGroup string `mapstructure:"consumer_group"`
	MinIdleTime   int    `mapstructure:"min_idle_time"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

const (
	QueueMemory = "memory"
	QueueRedis  = "redis"

	SinkFile     = "file"
	SinkPostgres = "postgres"
)

// LimitBytes converts the configured budget into bytes. Zero means unlimited.
func (c CrawlConfig) LimitBytes() int64 {
	if c.LimitInGB <= 0 {
		return 0
	}
	return int64(c.LimitInGB * 1024 * 1024 * 1024)
}

// Flags returns the command line flags understood by Load.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("crawler", pflag.ContinueOnError)
	fs.Float64("limit-gb", 0.001, "stop issuing requests after this many gigabytes of output (0 disables)")
	return fs
}

// Load reads config.yaml from the working directory when present, applies
// environment overrides and the parsed command line flags.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if flags != nil {
		if f := flags.Lookup("limit-gb"); f != nil {
			if err := v.BindPFlag("crawl.limit_in_gb", f); err != nil {
				return nil, fmt.Errorf("error binding limit-gb flag: %w", err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	switch c.Crawl.Queue {
	case QueueMemory, QueueRedis:
	default:
		return fmt.Errorf("unknown crawl.queue %q", c.Crawl.Queue)
	}

	switch c.Crawl.CommentsSink {
	case SinkFile, SinkPostgres:
	default:
		return fmt.Errorf("unknown crawl.comments_sink %q", c.Crawl.CommentsSink)
	}

	if c.Digikala.MaxWorkers < 1 {
		return fmt.Errorf("digikala.max_workers must be positive, got %d", c.Digikala.MaxWorkers)
	}
	if c.Digikala.PageCap < 1 {
		return fmt.Errorf("digikala.page_cap must be positive, got %d", c.Digikala.PageCap)
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("digikala.base_url", "http://api.digikala.com/v1")
	v.SetDefault("digikala.timeout", 30)
	v.SetDefault("digikala.max_retries", 3)
	v.SetDefault("digikala.max_workers", 10)
	v.SetDefault("digikala.max_requests_per_second", 10)
	v.SetDefault("digikala.page_cap", 100)
	v.SetDefault("digikala.breaker_cooldown", 600)
	v.SetDefault("digikala.proxies", []string{})

	v.SetDefault("crawl.limit_in_gb", 0.001)
	v.SetDefault("crawl.reviews_file", "reviews.txt")
	v.SetDefault("crawl.comments_file", "comments.jsonl")
	v.SetDefault("crawl.comments_sink", SinkFile)
	v.SetDefault("crawl.queue", QueueMemory)
	v.SetDefault("crawl.strip_html", false)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "digikala")
	v.SetDefault("database.user", "digikala_user")
	v.SetDefault("database.password", "digikala_pass")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.consumer_group", "digikala_crawler")
	v.SetDefault("redis.min_idle_time", 120)

	v.SetDefault("log.level", "info")
}
