package core

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// ClaimAllocator issues sequential warranty claim numbers. The counter
// value lives in a CounterStore row addressed by a fixed name; the
// store's transactional increment keeps concurrent processes correct,
// the allocator's mutex keeps the read-increment-persist cycle of this
// process serialized so at most one transaction per process is in
// flight.
//
// The in-memory view (lastIssued) only advances after the store has
// committed, so a failed persistence attempt never burns a number from
// this process's point of view. A committed value that a caller then
// abandons is permanently spent: gaps are tolerated, reuse never is.
type ClaimAllocator struct {
	mu    sync.Mutex
	store CounterStore
	name  string

	baseline   int64
	lastIssued int64

	logger  Logger
	metrics MetricsRecorder
	now     func() time.Time
}

type AllocatorOption func(*ClaimAllocator)

func WithAllocatorLogger(logger Logger) AllocatorOption {
	return func(a *ClaimAllocator) {
		a.logger = logger
	}
}

func WithAllocatorMetrics(recorder MetricsRecorder) AllocatorOption {
	return func(a *ClaimAllocator) {
		a.metrics = recorder
	}
}

func NewClaimAllocator(store CounterStore, cfg CounterConfig, opts ...AllocatorOption) (*ClaimAllocator, error) {
	if store == nil {
		return nil, fmt.Errorf("core: counter store is required")
	}
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = DefaultCounterName
	}
	baseline := cfg.Baseline
	if baseline <= 0 {
		baseline = BaselineClaimNumber
	}
	allocator := &ClaimAllocator{
		store:    store,
		name:     name,
		baseline: baseline,
		metrics:  NopMetricsRecorder{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(allocator)
	}
	return allocator, nil
}

// CounterName returns the well-known name this allocator resolves.
func (a *ClaimAllocator) CounterName() string {
	if a == nil {
		return ""
	}
	return a.name
}

// AllocateNext returns the next claim number. The value is persisted
// before it is returned: once a caller sees a number, no later call in
// any process can see it again.
func (a *ClaimAllocator) AllocateNext(ctx context.Context) (int64, error) {
	if a == nil || a.store == nil {
		return 0, allocatorInternal("core: claim allocator is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	startedAt := a.now()
	value, err := a.store.Next(ctx, a.name)
	if err != nil {
		a.observeAllocation(ctx, startedAt, 0, err)
		return 0, goerrors.Wrap(err, goerrors.CategoryExternal, "core: allocate claim number").
			WithCode(http.StatusServiceUnavailable).
			WithTextCode(ClaimsErrorStorageUnavailable).
			WithMetadata(map[string]any{"counter": a.name})
	}

	// Structurally impossible when the store increments atomically; a
	// hit means the persistence layer broke the single-row invariant.
	if value <= a.baseline || (a.lastIssued != 0 && value <= a.lastIssued) {
		violation := goerrors.New(
			fmt.Sprintf("core: counter %q returned %d after issuing %d", a.name, value, a.lastIssued),
			goerrors.CategoryInternal,
		).
			WithCode(http.StatusInternalServerError).
			WithTextCode(ClaimsErrorCounterViolation).
			WithMetadata(map[string]any{
				"counter":     a.name,
				"value":       value,
				"last_issued": a.lastIssued,
				"baseline":    a.baseline,
			})
		a.observeAllocation(ctx, startedAt, value, violation)
		return 0, violation
	}

	a.lastIssued = value
	a.observeAllocation(ctx, startedAt, value, nil)
	return value, nil
}

// Current reports the last persisted counter value without consuming a
// number. A fresh counter reports the baseline.
func (a *ClaimAllocator) Current(ctx context.Context) (int64, error) {
	if a == nil || a.store == nil {
		return 0, allocatorInternal("core: claim allocator is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	value, err := a.store.Current(ctx, a.name)
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryExternal, "core: read claim counter").
			WithCode(http.StatusServiceUnavailable).
			WithTextCode(ClaimsErrorStorageUnavailable).
			WithMetadata(map[string]any{"counter": a.name})
	}
	return value, nil
}

func (a *ClaimAllocator) observeAllocation(ctx context.Context, startedAt time.Time, value int64, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	tags := map[string]string{
		"counter": a.name,
		"status":  status,
	}
	if a.metrics != nil {
		a.metrics.IncCounter(ctx, MetricAllocateTotal, 1, tags)
		a.metrics.ObserveHistogram(ctx, MetricAllocateDurationMS, float64(time.Since(startedAt).Milliseconds()), tags)
	}
	if a.logger == nil {
		return
	}
	logger := a.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if err != nil {
		logger.Error("claim number allocation failed", "counter", a.name, "error", err.Error())
		return
	}
	logger.Debug("claim number allocated", "counter", a.name, "claim_number", value)
}

func allocatorInternal(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ClaimsErrorInternal)
}
