package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-warranty/core"
)

func TestFixedWindowPolicy_AllowsUpToLimit(t *testing.T) {
	ctx := context.Background()
	policy := NewFixedWindowPolicy(NewMemoryStateStore(), 3, time.Hour)

	for i := 0; i < 3; i++ {
		if err := policy.Allow(ctx, "dealer-1", "form"); err != nil {
			t.Fatalf("allow %d: %v", i+1, err)
		}
	}

	err := policy.Allow(ctx, "dealer-1", "form")
	if err == nil {
		t.Fatalf("expected fourth submission rejected")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected go-errors type, got %T", err)
	}
	if richErr.TextCode != core.ClaimsErrorRateLimited {
		t.Fatalf("expected rate limited code, got %q", richErr.TextCode)
	}
	if richErr.Code != 429 {
		t.Fatalf("expected 429, got %d", richErr.Code)
	}
}

func TestFixedWindowPolicy_BucketsAreIndependent(t *testing.T) {
	ctx := context.Background()
	policy := NewFixedWindowPolicy(NewMemoryStateStore(), 1, time.Hour)

	if err := policy.Allow(ctx, "dealer-1", "form"); err != nil {
		t.Fatalf("dealer-1 form: %v", err)
	}
	if err := policy.Allow(ctx, "dealer-1", "api"); err != nil {
		t.Fatalf("dealer-1 api should have its own bucket: %v", err)
	}
	if err := policy.Allow(ctx, "dealer-2", "form"); err != nil {
		t.Fatalf("dealer-2 form should have its own bucket: %v", err)
	}
	if err := policy.Allow(ctx, "dealer-1", "form"); err == nil {
		t.Fatalf("expected dealer-1 form bucket exhausted")
	}
}

func TestFixedWindowPolicy_WindowRollsOver(t *testing.T) {
	ctx := context.Background()
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	policy := NewFixedWindowPolicy(NewMemoryStateStore(), 1, time.Minute)
	policy.Now = func() time.Time { return current }

	if err := policy.Allow(ctx, "dealer-1", "form"); err != nil {
		t.Fatalf("first submission: %v", err)
	}
	if err := policy.Allow(ctx, "dealer-1", "form"); err == nil {
		t.Fatalf("expected rejection inside window")
	}

	current = current.Add(61 * time.Second)
	if err := policy.Allow(ctx, "dealer-1", "form"); err != nil {
		t.Fatalf("expected fresh window, got %v", err)
	}
}

func TestFixedWindowPolicy_ThrottledErrorCarriesRetryHint(t *testing.T) {
	ctx := context.Background()
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	policy := NewFixedWindowPolicy(NewMemoryStateStore(), 1, time.Minute)
	policy.Now = func() time.Time { return current }

	if err := policy.Allow(ctx, "dealer-1", "form"); err != nil {
		t.Fatalf("first submission: %v", err)
	}
	current = current.Add(20 * time.Second)

	err := policy.Allow(ctx, "dealer-1", "form")
	var throttled *ThrottledError
	if !errors.As(err, &throttled) {
		t.Fatalf("expected throttled error in chain, got %T", err)
	}
	if throttled.RetryAfter != 40*time.Second {
		t.Fatalf("expected 40s retry after, got %s", throttled.RetryAfter)
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected go-errors type, got %v", err)
	}
	retryAfter, ok := richErr.Metadata["retry_after_ms"].(int64)
	if !ok {
		t.Fatalf("expected retry_after_ms metadata, got %v", richErr.Metadata)
	}
	if retryAfter != (40 * time.Second).Milliseconds() {
		t.Fatalf("expected 40s retry hint, got %dms", retryAfter)
	}
}

func TestFixedWindowPolicy_RequiresDealer(t *testing.T) {
	policy := NewFixedWindowPolicy(NewMemoryStateStore(), 1, time.Minute)
	if err := policy.Allow(context.Background(), "  ", "form"); err == nil {
		t.Fatalf("expected error for blank dealer id")
	}
}

func TestFixedWindowPolicy_NilStoreAllowsAll(t *testing.T) {
	policy := &FixedWindowPolicy{MaxPerWindow: 1, Window: time.Minute}
	for i := 0; i < 5; i++ {
		if err := policy.Allow(context.Background(), "dealer-1", "form"); err != nil {
			t.Fatalf("expected pass-through without store, got %v", err)
		}
	}
}
