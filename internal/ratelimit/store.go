package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrScript increments the window counter and arms its expiry on first use in one round trip.
var incrScript = redis.NewScript(`
local c = redis.call('INCR', KEYS[1])
if c == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return c
`)

// RedisCounter keeps window counters in Redis.
type RedisCounter struct {
	client redis.Scripter
}

func NewRedisCounter(client redis.Scripter) *RedisCounter {
	return &RedisCounter{client: client}
}

func (r *RedisCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return incrScript.Run(ctx, r.client, []string{key}, ttl.Milliseconds()).Int64()
}

type counter struct {
	count     int64
	expiresAt time.Time
}

// MemoryCounter keeps window counters in process memory. It only limits a single instance.
type MemoryCounter struct {
	mu       sync.Mutex
	counters map[string]*counter
	now      func() time.Time
}

func NewMemoryCounter(now func() time.Time) *MemoryCounter {
	if now == nil {
		now = time.Now
	}
	return &MemoryCounter{counters: make(map[string]*counter), now: now}
}

func (m *MemoryCounter) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	c, ok := m.counters[key]
	if !ok || !now.Before(c.expiresAt) {
		if len(m.counters) > 1024 {
			m.sweepLocked(now)
		}
		c = &counter{expiresAt: now.Add(ttl)}
		m.counters[key] = c
	}
	c.count++
	return c.count, nil
}

func (m *MemoryCounter) sweepLocked(now time.Time) {
	for k, c := range m.counters {
		if !now.Before(c.expiresAt) {
			delete(m.counters, k)
		}
	}
}
