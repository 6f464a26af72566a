// Package ratelimit implements fixed-window admission control per client identity.
package ratelimit

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// CounterStore atomically increments key and returns the new count. The key
// must expire ttl after it is first created.
type CounterStore interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAfter time.Duration
	// FailedClosed is set when the counting store was unreachable and the request was denied for that reason.
	FailedClosed bool
}

// Limiter admits at most Quota requests per Window for each identity.
type Limiter struct {
	store     CounterStore
	window    time.Duration
	quota     int
	keyPrefix string
	now       func() time.Time
	logger    *zap.Logger
}

// Option customises a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithKeyPrefix namespaces counter keys.
func WithKeyPrefix(prefix string) Option {
	return func(l *Limiter) { l.keyPrefix = prefix }
}

// New creates a Limiter. quota and window must be positive.
func New(store CounterStore, quota int, window time.Duration, logger *zap.Logger, opts ...Option) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Limiter{
		store:     store,
		window:    window,
		quota:     quota,
		keyPrefix: "ratelimit:",
		now:       time.Now,
		logger:    logger.With(zap.String("component", "ratelimit")),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Admit counts one request for identity and reports whether it is allowed.
// A store failure denies the request.
func (l *Limiter) Admit(ctx context.Context, identity string) Decision {
	now := l.now()
	start := now.Truncate(l.window)
	reset := start.Add(l.window).Sub(now)
	key := l.keyPrefix + identity + ":" + strconv.FormatInt(start.UnixMilli(), 10)

	count, err := l.store.Incr(ctx, key, l.window)
	if err != nil {
		l.logger.Error("rate limit store unavailable, denying request",
			zap.String("identity", identity), zap.Error(err))
		return Decision{Allowed: false, Limit: l.quota, ResetAfter: reset, FailedClosed: true}
	}

	remaining := l.quota - int(count)
	if remaining < 0 {
		remaining = 0
	}
	d := Decision{
		Allowed:    count <= int64(l.quota),
		Limit:      l.quota,
		Remaining:  remaining,
		ResetAfter: reset,
	}
	if !d.Allowed {
		l.logger.Debug("rate limited", zap.String("identity", identity), zap.Int64("count", count))
	}
	return d
}
