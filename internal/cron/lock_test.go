package cron

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-checkout/pkg/redis/redistest"
)

func TestRedisLockIsExclusive(t *testing.T) {
	ctx := context.Background()
	store := redistest.New()
	first, err := NewRedisLock(store, "checkout:lock:maintenance:test", time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, _ := NewRedisLock(store, "checkout:lock:maintenance:test", time.Minute)

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire ok=%v err=%v", ok, err)
	}
	if ok, err := second.Acquire(ctx); err != nil || ok {
		t.Fatalf("second acquire should fail, ok=%v err=%v", ok, err)
	}

	// a non-owner release leaves the lease intact
	if err := second.Release(ctx); err != nil {
		t.Fatalf("second release: %v", err)
	}
	if !store.Has("checkout:lock:maintenance:test") {
		t.Fatal("expected lease to survive foreign release")
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if ok, err := second.Acquire(ctx); err != nil || !ok {
		t.Fatalf("second acquire after release ok=%v err=%v", ok, err)
	}
}

func TestRedisLockLeaseExpires(t *testing.T) {
	ctx := context.Background()
	store := redistest.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })

	stale, _ := NewRedisLock(store, "lease", time.Minute)
	fresh, _ := NewRedisLock(store, "lease", time.Minute)
	if ok, _ := stale.Acquire(ctx); !ok {
		t.Fatal("expected first acquire")
	}
	now = now.Add(2 * time.Minute)
	if ok, _ := fresh.Acquire(ctx); !ok {
		t.Fatal("expected acquire after lease expiry")
	}
	if err := stale.Release(ctx); err != nil {
		t.Fatalf("stale release: %v", err)
	}
	if !store.Has("lease") {
		t.Fatal("stale owner must not delete the new lease")
	}
}

func TestNewRedisLockValidates(t *testing.T) {
	if _, err := NewRedisLock(nil, "k", 0); err == nil {
		t.Fatal("expected nil client error")
	}
	if _, err := NewRedisLock(redistest.New(), "", 0); err == nil {
		t.Fatal("expected empty key error")
	}
}
