package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"digikala/crawler/internal/config"
	"digikala/crawler/internal/proxy"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

type DigikalaClient interface {
	// Fetch returns the JSON body of an API resource.
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Resty backs off between retries for at most this long.
const maxRetryWait = 10 * time.Second

type digikalaClient struct {
	rl             ratelimit.Limiter
	httpClient     *resty.Client
	requestTimeout time.Duration
	proxySupplier  proxy.ProxySupplier
	breaker        *breaker
}

func NewDigikalaClient(cfg config.DigikalaConfig, proxySupplier proxy.ProxySupplier) DigikalaClient {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(2*time.Second).
		SetRetryMaxWaitTime(maxRetryWait).
		SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36").
		SetHeader("Accept", "application/json").
		SetHeader("Accept-Language", "fa-IR,fa;q=0.9,en;q=0.5")

	if proxySupplier != nil {
		if proxyURL := proxySupplier.Get(); proxyURL != "" {
			client.SetProxy(proxyURL)
			log.Infof("🔗 Using initial proxy: %s", proxyURL)
		}
	}

	rl := ratelimit.NewUnlimited()
	if cfg.MaxRequestsPerSecond > 0 {
		rl = ratelimit.New(cfg.MaxRequestsPerSecond)
	}

	return &digikalaClient{
		rl:             rl,
		httpClient:     client,
		requestTimeout: requestDeadline(timeout, cfg.MaxRetries),
		proxySupplier:  proxySupplier,
		breaker:        newBreaker(time.Duration(cfg.BreakerCooldown) * time.Second),
	}
}

// requestDeadline bounds one Fetch: every attempt resty makes plus the
// longest wait before each retry.
func requestDeadline(timeout time.Duration, retries int) time.Duration {
	if retries < 0 {
		retries = 0
	}
	return time.Duration(retries+1)*timeout + time.Duration(retries)*maxRetryWait
}

func (c *digikalaClient) Fetch(ctx context.Context, url string) ([]byte, error) {
	if remaining := c.breaker.Remaining(); remaining > 0 {
		log.Debugf("🚫 Request blocked by circuit breaker. Remaining time: %v", remaining.Round(time.Second))
		return nil, fmt.Errorf("circuit breaker is open - requests disabled for %v more", remaining.Round(time.Second))
	}

	c.rl.Take()

	resp, err := c.get(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}

	if resp.StatusCode() == http.StatusTooManyRequests {
		log.Warnf("🚫 Rate limit exceeded for URL: %s", url)

		resp, err = c.retryWithNextProxy(ctx, url)
		if err != nil || resp == nil || resp.StatusCode() == http.StatusTooManyRequests {
			until := c.breaker.Trip()
			log.Warnf("🚫 Circuit breaker activated! All requests disabled until %v", until.Format("15:04:05"))
			return nil, fmt.Errorf("rate limited - circuit breaker activated for %v", c.breaker.cooldown)
		}
	}

	if resp.IsError() {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode(), resp.Status())
	}

	log.Debugf("Fetched %s (%d bytes)", url, len(resp.String()))
	return []byte(resp.String()), nil
}

func (c *digikalaClient) get(ctx context.Context, url string) (*resty.Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	return c.httpClient.R().
		SetContext(reqCtx).
		Get(url)
}

// retryWithNextProxy switches to the next proxy and repeats the request once.
// It returns nil, nil when there is no proxy to switch to.
func (c *digikalaClient) retryWithNextProxy(ctx context.Context, url string) (*resty.Response, error) {
	if c.proxySupplier == nil {
		return nil, nil
	}

	newProxy := c.proxySupplier.Get()
	if newProxy == "" {
		return nil, nil
	}

	log.Infof("🔄 Switching to new proxy: %s", newProxy)
	c.httpClient.SetProxy(newProxy)

	return c.get(ctx, url)
}
