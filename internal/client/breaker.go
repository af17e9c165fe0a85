package client

import (
	"sync"
	"time"
)

const defaultBreakerCooldown = 10 * time.Minute

// breaker rejects requests for a cool-down after the API keeps answering 429.
type breaker struct {
	mu       sync.Mutex
	cooldown time.Duration
	until    time.Time
	now      func() time.Time
}

func newBreaker(cooldown time.Duration) *breaker {
	if cooldown <= 0 {
		cooldown = defaultBreakerCooldown
	}
	return &breaker{cooldown: cooldown, now: time.Now}
}

// Trip opens the breaker and returns when it closes again.
func (b *breaker) Trip() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.until = b.now().Add(b.cooldown)
	return b.until
}

// Remaining is how long the breaker stays open; zero once it has closed.
func (b *breaker) Remaining() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.until.IsZero() {
		return 0
	}

	remaining := b.until.Sub(b.now())
	if remaining <= 0 {
		b.until = time.Time{}
		return 0
	}
	return remaining
}
