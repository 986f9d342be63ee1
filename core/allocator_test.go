package core

import (
	"context"
	"fmt"
	"sync"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

type failingCounterStore struct {
	inner CounterStore

	mu      sync.Mutex
	failing bool
	calls   int
}

func (s *failingCounterStore) setFailing(failing bool) {
	s.mu.Lock()
	s.failing = failing
	s.mu.Unlock()
}

func (s *failingCounterStore) Next(ctx context.Context, name string) (int64, error) {
	s.mu.Lock()
	s.calls++
	failing := s.failing
	s.mu.Unlock()
	if failing {
		return 0, fmt.Errorf("%w: connection refused", ErrStorageUnavailable)
	}
	return s.inner.Next(ctx, name)
}

func (s *failingCounterStore) Current(ctx context.Context, name string) (int64, error) {
	s.mu.Lock()
	failing := s.failing
	s.mu.Unlock()
	if failing {
		return 0, fmt.Errorf("%w: connection refused", ErrStorageUnavailable)
	}
	return s.inner.Current(ctx, name)
}

type regressingCounterStore struct {
	mu     sync.Mutex
	values []int64
}

func (s *regressingCounterStore) Next(context.Context, string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return 0, fmt.Errorf("%w: exhausted", ErrStorageUnavailable)
	}
	value := s.values[0]
	s.values = s.values[1:]
	return value, nil
}

func (s *regressingCounterStore) Current(context.Context, string) (int64, error) {
	return 0, nil
}

func newTestAllocator(t *testing.T, store CounterStore) *ClaimAllocator {
	t.Helper()
	allocator, err := NewClaimAllocator(store, CounterConfig{})
	if err != nil {
		t.Fatalf("new allocator: %v", err)
	}
	return allocator
}

func TestClaimAllocator_SequenceStartsAfterBaseline(t *testing.T) {
	ctx := context.Background()
	allocator := newTestAllocator(t, NewMemoryCounterStore(0))

	first, err := allocator.AllocateNext(ctx)
	if err != nil {
		t.Fatalf("allocate first: %v", err)
	}
	if first != 100001 {
		t.Fatalf("expected first claim number 100001, got %d", first)
	}

	second, err := allocator.AllocateNext(ctx)
	if err != nil {
		t.Fatalf("allocate second: %v", err)
	}
	if second != 100002 {
		t.Fatalf("expected second claim number 100002, got %d", second)
	}
}

func TestClaimAllocator_ResumesFromPersistedValue(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCounterStore(0)

	allocator := newTestAllocator(t, store)
	for want := int64(100001); want <= 100002; want++ {
		got, err := allocator.AllocateNext(ctx)
		if err != nil {
			t.Fatalf("allocate %d: %v", want, err)
		}
		if got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
	}

	// A fresh allocator over the same store models a process restart.
	restarted := newTestAllocator(t, store)
	got, err := restarted.AllocateNext(ctx)
	if err != nil {
		t.Fatalf("allocate after restart: %v", err)
	}
	if got != 100003 {
		t.Fatalf("expected 100003 after restart, got %d", got)
	}
}

func TestClaimAllocator_ConcurrentCallsNeverRepeat(t *testing.T) {
	ctx := context.Background()
	allocator := newTestAllocator(t, NewMemoryCounterStore(0))

	const callers = 100
	results := make(chan int64, callers)
	errs := make(chan error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err := allocator.AllocateNext(ctx)
			if err != nil {
				errs <- err
				return
			}
			results <- value
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent allocate: %v", err)
	}

	seen := map[int64]struct{}{}
	for value := range results {
		if _, dup := seen[value]; dup {
			t.Fatalf("claim number %d issued twice", value)
		}
		if value < 100001 || value > 100000+callers {
			t.Fatalf("claim number %d outside expected range", value)
		}
		seen[value] = struct{}{}
	}
	if len(seen) != callers {
		t.Fatalf("expected %d distinct claim numbers, got %d", callers, len(seen))
	}
}

func TestClaimAllocator_FiveConcurrentConsecutive(t *testing.T) {
	ctx := context.Background()
	allocator := newTestAllocator(t, NewMemoryCounterStore(0))

	const callers = 5
	results := make(chan int64, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err := allocator.AllocateNext(ctx)
			if err != nil {
				t.Errorf("concurrent allocate: %v", err)
				return
			}
			results <- value
		}()
	}
	wg.Wait()
	close(results)

	seen := map[int64]struct{}{}
	for value := range results {
		seen[value] = struct{}{}
	}
	for want := int64(100001); want <= 100005; want++ {
		if _, ok := seen[want]; !ok {
			t.Fatalf("expected %d among issued numbers %v", want, seen)
		}
	}
}

func TestClaimAllocator_StorageFailureIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := &failingCounterStore{inner: NewMemoryCounterStore(0), failing: true}
	allocator := newTestAllocator(t, store)

	_, err := allocator.AllocateNext(ctx)
	if err == nil {
		t.Fatalf("expected storage error")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected go-errors type, got %T", err)
	}
	if richErr.TextCode != ClaimsErrorStorageUnavailable {
		t.Fatalf("expected storage unavailable code, got %q", richErr.TextCode)
	}
	if richErr.Code != 503 {
		t.Fatalf("expected 503 on storage failure, got %d", richErr.Code)
	}

	// The failed attempt must not have advanced the counter.
	store.setFailing(false)
	value, err := allocator.AllocateNext(ctx)
	if err != nil {
		t.Fatalf("allocate after recovery: %v", err)
	}
	if value != 100001 {
		t.Fatalf("expected 100001 after recovery, got %d", value)
	}
}

func TestClaimAllocator_DetectsCounterRegression(t *testing.T) {
	ctx := context.Background()
	allocator := newTestAllocator(t, &regressingCounterStore{values: []int64{100005, 100003}})

	if _, err := allocator.AllocateNext(ctx); err != nil {
		t.Fatalf("allocate first: %v", err)
	}

	_, err := allocator.AllocateNext(ctx)
	if err == nil {
		t.Fatalf("expected counter violation")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected go-errors type, got %T", err)
	}
	if richErr.TextCode != ClaimsErrorCounterViolation {
		t.Fatalf("expected counter violation code, got %q", richErr.TextCode)
	}
}

func TestClaimAllocator_RejectsValueAtOrBelowBaseline(t *testing.T) {
	ctx := context.Background()
	allocator := newTestAllocator(t, &regressingCounterStore{values: []int64{100000}})

	_, err := allocator.AllocateNext(ctx)
	if err == nil {
		t.Fatalf("expected counter violation for baseline value")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.TextCode != ClaimsErrorCounterViolation {
		t.Fatalf("expected counter violation envelope, got %v", err)
	}
}

func TestClaimAllocator_CurrentDoesNotConsume(t *testing.T) {
	ctx := context.Background()
	allocator := newTestAllocator(t, NewMemoryCounterStore(0))

	current, err := allocator.Current(ctx)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if current != 100000 {
		t.Fatalf("expected baseline before first allocation, got %d", current)
	}

	if _, err := allocator.AllocateNext(ctx); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	current, err = allocator.Current(ctx)
	if err != nil {
		t.Fatalf("current after allocate: %v", err)
	}
	if current != 100001 {
		t.Fatalf("expected 100001, got %d", current)
	}
}

func TestNewClaimAllocator_RequiresStore(t *testing.T) {
	if _, err := NewClaimAllocator(nil, CounterConfig{}); err == nil {
		t.Fatalf("expected error for nil store")
	}
}
