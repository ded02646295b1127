// Package ratelimit implements the token bucket that guards the admin
// write endpoints. Buckets are keyed by caller and refill in whole
// intervals: every complete RefillInterval since the last observation
// restores a full Capacity of tokens, never exceeding Capacity.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// Defaults applied when a Config leaves a field unset
const (
	DefaultCapacity       = 20
	DefaultRefillInterval = 60 * time.Second
)

// ErrInvalidConfig is returned when a limiter is built with a non-positive
// capacity or interval
var ErrInvalidConfig = errors.New("ratelimit: capacity and refill interval must be positive")

// Decision is the outcome of one admission attempt
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter admits or rejects requests for a caller key
type Limiter interface {
	Admit(ctx context.Context, key string) (Decision, error)
}

// Config configures a bucket store
type Config struct {
	Capacity       int
	RefillInterval time.Duration
	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

func (c Config) withDefaults() (Config, error) {
	if c.Capacity == 0 {
		c.Capacity = DefaultCapacity
	}
	if c.RefillInterval == 0 {
		c.RefillInterval = DefaultRefillInterval
	}
	if c.Capacity < 0 || c.RefillInterval < 0 {
		return c, ErrInvalidConfig
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c, nil
}

// bucket is the per-key state shared by every store
type bucket struct {
	tokens int
	last   time.Time
}

// take refills b for the whole intervals elapsed since last and then tries
// to consume one token. A zero bucket starts full.
func (b *bucket) take(now time.Time, capacity int, interval time.Duration) bool {
	if b.last.IsZero() {
		b.tokens = capacity
		b.last = now
	}
	if elapsed := now.Sub(b.last); elapsed > 0 {
		refill := int(elapsed/interval) * capacity
		b.tokens = min(capacity, b.tokens+refill)
		b.last = now
	}
	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}
