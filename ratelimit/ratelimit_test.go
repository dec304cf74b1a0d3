package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAllowWithinBurst(t *testing.T) {
	l := New(WithRate(60, 3))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !l.Allow(ctx, "login:t1:a@x.com") {
			t.Fatalf("request %d within burst must pass", i)
		}
	}
	if l.Allow(ctx, "login:t1:a@x.com") {
		t.Error("request beyond burst must be denied")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l := New(WithRate(60, 1))
	ctx := context.Background()

	if !l.Allow(ctx, "login:t1:a@x.com") {
		t.Fatal("first key must pass")
	}
	if l.Allow(ctx, "login:t1:a@x.com") {
		t.Error("first key must be exhausted")
	}
	if !l.Allow(ctx, "login:t1:b@x.com") {
		t.Error("second key must have its own bucket")
	}
	if !l.Allow(ctx, "login:t2:a@x.com") {
		t.Error("same email in another tenant must have its own bucket")
	}
}

func TestReset(t *testing.T) {
	l := New(WithRate(60, 1))
	ctx := context.Background()

	l.Allow(ctx, "k")
	if l.Allow(ctx, "k") {
		t.Fatal("bucket must be exhausted")
	}
	l.Reset("k")
	if !l.Allow(ctx, "k") {
		t.Error("reset must restore the bucket")
	}
}

func TestPrune(t *testing.T) {
	l := New(WithMaxIdle(time.Millisecond))
	ctx := context.Background()

	l.Allow(ctx, "old")
	time.Sleep(5 * time.Millisecond)
	l.Allow(ctx, "fresh")

	if n := l.Prune(); n != 1 {
		t.Errorf("expected 1 pruned entry, got %d", n)
	}

	l.mu.Lock()
	_, oldExists := l.entries["old"]
	_, freshExists := l.entries["fresh"]
	l.mu.Unlock()
	if oldExists || !freshExists {
		t.Errorf("prune kept old=%v fresh=%v", oldExists, freshExists)
	}
}
