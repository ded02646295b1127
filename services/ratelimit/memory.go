package ratelimit

import (
	"context"
	"sync"
)

// MemoryLimiter keeps buckets in process memory. State is lost on restart
// and is not shared between instances; buckets are never evicted.
type MemoryLimiter struct {
	cfg     Config
	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewMemoryLimiter creates an in-process limiter
func NewMemoryLimiter(cfg Config) (*MemoryLimiter, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	return &MemoryLimiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
	}, nil
}

// Admit consumes a token for key if one is available
func (l *MemoryLimiter) Admit(_ context.Context, key string) (Decision, error) {
	now := l.cfg.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{}
		l.buckets[key] = b
	}
	allowed := b.take(now, l.cfg.Capacity, l.cfg.RefillInterval)

	return Decision{
		Allowed:    allowed,
		Remaining:  b.tokens,
		RetryAfter: l.cfg.RefillInterval,
	}, nil
}

// Len returns the number of tracked keys
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
