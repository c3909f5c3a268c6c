package ratelimit

import (
	"context"
	"testing"
	"time"

	appErr "runbox/pkg/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testLimiter(t *testing.T, max int, window time.Duration) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	l := NewWithClient(client, Config{Window: window, Max: max})
	t.Cleanup(func() { _ = l.Close() })
	return l, mr
}

func TestAllowUnderLimit(t *testing.T) {
	l, _ := testLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Allow(ctx, "runbox:rate:ip:1.2.3.4:execute"); err != nil {
			t.Fatalf("request %d should be allowed: %v", i+1, err)
		}
	}
}

func TestAllowRejectsOverLimit(t *testing.T) {
	l, _ := testLimiter(t, 2, time.Minute)
	ctx := context.Background()

	_ = l.Allow(ctx, "k")
	_ = l.Allow(ctx, "k")
	err := l.Allow(ctx, "k")
	if !appErr.Is(err, appErr.TooManyRequests) {
		t.Fatalf("expected too many requests, got %v", err)
	}
}

func TestAllowWindowResets(t *testing.T) {
	l, mr := testLimiter(t, 1, time.Minute)
	ctx := context.Background()

	if err := l.Allow(ctx, "k"); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if err := l.Allow(ctx, "k"); !appErr.Is(err, appErr.TooManyRequests) {
		t.Fatalf("expected rejection, got %v", err)
	}

	mr.FastForward(2 * time.Minute)
	if err := l.Allow(ctx, "k"); err != nil {
		t.Fatalf("request after window expiry should be allowed: %v", err)
	}
}

func TestAllowKeysAreIndependent(t *testing.T) {
	l, _ := testLimiter(t, 1, time.Minute)
	ctx := context.Background()

	if err := l.Allow(ctx, "ip-a"); err != nil {
		t.Fatalf("ip-a: %v", err)
	}
	if err := l.Allow(ctx, "ip-b"); err != nil {
		t.Fatalf("a limit on one key must not affect another: %v", err)
	}
}

func TestNilLimiterAllowsEverything(t *testing.T) {
	var l *Limiter
	if err := l.Allow(context.Background(), "k"); err != nil {
		t.Fatalf("nil limiter must be a no-op: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("nil limiter close: %v", err)
	}
}

func TestNewWithoutAddrDisablesLimiting(t *testing.T) {
	l, err := New(Config{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if l != nil {
		t.Fatalf("expected nil limiter when no addr is configured")
	}
}
