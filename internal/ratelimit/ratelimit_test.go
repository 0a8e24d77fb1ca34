package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLocalBurstThenThrottle(t *testing.T) {
	l := NewLocal(1, 3)
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "10.0.0.1")
		if err != nil || !d.Allowed {
			t.Fatalf("request %d: %+v, %v", i, d, err)
		}
	}
	d, _ := l.Allow(ctx, "10.0.0.1")
	if d.Allowed {
		t.Fatal("fourth request inside the burst window should be throttled")
	}
	if d.RetryAfter <= 0 || d.RetryAfter > time.Second {
		t.Fatalf("RetryAfter = %s", d.RetryAfter)
	}

	if d, _ := l.Allow(ctx, "10.0.0.2"); !d.Allowed {
		t.Fatal("keys must be limited independently")
	}

	now = now.Add(time.Second)
	if d, _ := l.Allow(ctx, "10.0.0.1"); !d.Allowed {
		t.Fatal("token should refill after a second")
	}
}

func TestLocalEvictsIdleKeys(t *testing.T) {
	l := NewLocal(1, 1)
	now := time.Now()
	l.now = func() time.Time { return now }

	_, _ = l.Allow(context.Background(), "a")
	now = now.Add(time.Hour)
	_, _ = l.Allow(context.Background(), "b")

	if _, ok := l.visitors["a"]; ok {
		t.Fatal("idle visitor should be evicted")
	}
}
