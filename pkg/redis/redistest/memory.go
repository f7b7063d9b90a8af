// Package redistest provides an in-memory stand-in for the redis helpers.
package redistest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/storefront-checkout/pkg/redis"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// Memory implements redis.Store, redis.IdempotencyStore and redis.RateLimiter.
type Memory struct {
	mu      sync.Mutex
	data    map[string]entry
	now     func() time.Time
	FailGet error
	FailSet error
	FailDel error
}

func New() *Memory {
	return &Memory{data: make(map[string]entry), now: time.Now}
}

// SetClock overrides the time source used for expiry.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) lookup(key string) (entry, bool) {
	e, ok := m.data[key]
	if !ok {
		return entry{}, false
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.data, key)
		return entry{}, false
	}
	return e, true
}

func (m *Memory) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailGet != nil {
		return "", m.FailGet
	}
	e, ok := m.lookup(key)
	if !ok {
		return "", redis.Nil
	}
	return e.value, nil
}

func (m *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSet != nil {
		return m.FailSet
	}
	m.data[key] = entry{value: stringify(value), expiresAt: m.expiry(ttl)}
	return nil
}

func (m *Memory) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSet != nil {
		return false, m.FailSet
	}
	if _, ok := m.lookup(key); ok {
		return false, nil
	}
	m.data[key] = entry{value: stringify(value), expiresAt: m.expiry(ttl)}
	return true, nil
}

func (m *Memory) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.lookup(key); ok {
		e.expiresAt = m.expiry(ttl)
		m.data[key] = e
	}
	return nil
}

func (m *Memory) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDel != nil {
		return m.FailDel
	}
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) IdempotencyKey(scope, id string) string {
	return redis.BuildKey("idempotency", scope, id)
}

func (m *Memory) FixedWindowAllow(_ context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := redis.BuildKey("rate_limit", scope)
	var count int64
	e, ok := m.lookup(key)
	if ok {
		fmt.Sscan(e.value, &count)
	} else {
		e = entry{expiresAt: m.expiry(window)}
	}
	count++
	e.value = fmt.Sprint(count)
	m.data[key] = e
	return count <= limit, count, nil
}

// Has reports whether a live key exists.
func (m *Memory) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.lookup(key)
	return ok
}

// Len returns the number of live keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key := range m.data {
		if _, ok := m.lookup(key); ok {
			n++
		}
	}
	return n
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
