package ratelimit

import (
	"context"
	"testing"
	"time"
)

var (
	_ Limiter = (*LocalLimiter)(nil)
	_ Limiter = (*RedisTokenBucket)(nil)
)

func TestLocalLimiterRejectsAfterCapacity(t *testing.T) {
	limiter, err := NewLocalLimiter(2, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	now := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		decision, err := limiter.Allow(ctx, "user-1")
		if err != nil || !decision.Allowed {
			t.Fatalf("request %d: expected allowed, got %+v err=%v", i, decision, err)
		}
	}

	decision, err := limiter.Allow(ctx, "user-1")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if decision.Allowed {
		t.Fatal("expected third request to be rejected")
	}
	if decision.RetryAfter <= 0 || decision.RetryAfter > 31*time.Second {
		t.Fatalf("unexpected retry after %s", decision.RetryAfter)
	}

	other, _ := limiter.Allow(ctx, "user-2")
	if !other.Allowed {
		t.Fatal("expected independent bucket for another subject")
	}

	now = now.Add(31 * time.Second)
	decision, _ = limiter.Allow(ctx, "user-1")
	if !decision.Allowed {
		t.Fatal("expected a token to refill after half the window")
	}
}

func TestLocalLimiterEvictsIdleSubjects(t *testing.T) {
	limiter, _ := NewLocalLimiter(1, time.Second)
	now := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return now }

	_, _ = limiter.Allow(context.Background(), "")
	if _, ok := limiter.buckets["anonymous"]; !ok {
		t.Fatal("expected empty subject to map to anonymous")
	}

	now = now.Add(3 * time.Second)
	_, _ = limiter.Allow(context.Background(), "someone")
	if _, ok := limiter.buckets["anonymous"]; ok {
		t.Fatal("expected idle bucket to be evicted")
	}
}

func TestNewLocalLimiterValidates(t *testing.T) {
	if _, err := NewLocalLimiter(0, time.Second); err == nil {
		t.Fatal("expected error for zero capacity")
	}
	if _, err := NewLocalLimiter(1, 0); err == nil {
		t.Fatal("expected error for zero window")
	}
}

func TestToInt64(t *testing.T) {
	for _, in := range []any{int64(7), 7, float64(7), "7"} {
		got, err := toInt64(in)
		if err != nil || got != 7 {
			t.Fatalf("toInt64(%#v)=%d err=%v", in, got, err)
		}
	}
	if _, err := toInt64([]byte("7")); err == nil {
		t.Fatal("expected error for unsupported type")
	}
}
