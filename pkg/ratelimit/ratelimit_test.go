package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLocalRateLimiter_Burst(t *testing.T) {
	l := NewLocalRateLimiter()
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	limit := PerSecond(2, 3)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "client-a", limit)
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if !res.Allowed {
			t.Fatalf("request %d rejected inside burst", i)
		}
	}

	res, err := l.Allow(ctx, "client-a", limit)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if res.Allowed {
		t.Fatal("request beyond burst should be rejected")
	}
	if res.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want > 0", res.RetryAfter)
	}

	// 其他 key 不受影响
	res, err = l.Allow(ctx, "client-b", limit)
	if err != nil || !res.Allowed {
		t.Fatalf("independent key rejected: %+v, %v", res, err)
	}

	// 补充令牌后放行
	fixed = fixed.Add(time.Second)
	res, err = l.Allow(ctx, "client-a", limit)
	if err != nil || !res.Allowed {
		t.Fatalf("request after refill rejected: %+v, %v", res, err)
	}
}

func TestLocalRateLimiter_InvalidLimit(t *testing.T) {
	l := NewLocalRateLimiter()
	if _, err := l.Allow(context.Background(), "k", Limit{}); err == nil {
		t.Fatal("expected error for zero limit")
	}
}

func TestPerSecond(t *testing.T) {
	got := PerSecond(10, 5)
	if got.Burst != 10 || got.Rate != 10 || got.Period != time.Second {
		t.Errorf("PerSecond(10, 5) = %+v", got)
	}
}
