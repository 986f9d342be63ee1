package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-warranty/core"
)

var ErrStateNotFound = errors.New("ratelimit: state not found")

// Key addresses one fixed-window bucket: a dealer on an intake surface.
type Key struct {
	DealerID string
	Surface  string
}

type State struct {
	Key         Key
	WindowStart time.Time
	Count       int
	UpdatedAt   time.Time
	Metadata    map[string]any
}

type StateStore interface {
	Get(ctx context.Context, key Key) (State, error)
	Upsert(ctx context.Context, state State) error
}

type ThrottledError struct {
	DealerID   string
	Surface    string
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf(
		"ratelimit: dealer %q surface %q throttled for %s",
		strings.TrimSpace(e.DealerID),
		strings.TrimSpace(e.Surface),
		e.RetryAfter,
	)
}

// ToClaimsError wraps the typed error in the claims envelope. The
// source stays in the chain so callers can errors.As their way back
// to RetryAfter.
func (e *ThrottledError) ToClaimsError() *goerrors.Error {
	metadata := map[string]any{
		"dealer_id": strings.TrimSpace(e.DealerID),
		"surface":   strings.TrimSpace(e.Surface),
	}
	if e.RetryAfter > 0 {
		metadata["retry_after_ms"] = e.RetryAfter.Milliseconds()
	}
	return goerrors.Wrap(e, goerrors.CategoryRateLimit, e.Error()).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(core.ClaimsErrorRateLimited).
		WithMetadata(metadata)
}

// FixedWindowPolicy allows MaxPerWindow submissions per dealer and
// surface inside each Window, then rejects until the window rolls over.
// State lives in a pluggable store so multiple instances sharing a
// database enforce one budget.
type FixedWindowPolicy struct {
	Store        StateStore
	Now          func() time.Time
	MaxPerWindow int
	Window       time.Duration
}

func NewFixedWindowPolicy(store StateStore, maxPerWindow int, window time.Duration) *FixedWindowPolicy {
	if maxPerWindow <= 0 {
		maxPerWindow = 60
	}
	if window <= 0 {
		window = time.Hour
	}
	return &FixedWindowPolicy{
		Store:        store,
		Now:          func() time.Time { return time.Now().UTC() },
		MaxPerWindow: maxPerWindow,
		Window:       window,
	}
}

func (p *FixedWindowPolicy) Allow(ctx context.Context, dealerID string, surface string) error {
	if p == nil || p.Store == nil {
		return nil
	}
	key := normalizeKey(Key{DealerID: dealerID, Surface: surface})
	if key.DealerID == "" {
		return fmt.Errorf("ratelimit: dealer id is required")
	}

	now := p.now()
	state, err := p.Store.Get(ctx, key)
	if err != nil && !errors.Is(err, ErrStateNotFound) {
		return err
	}
	if errors.Is(err, ErrStateNotFound) || now.Sub(state.WindowStart) >= p.Window {
		state = State{Key: key, WindowStart: now}
	}

	if state.Count >= p.MaxPerWindow {
		retryAfter := state.WindowStart.Add(p.Window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		throttled := &ThrottledError{
			DealerID:   key.DealerID,
			Surface:    key.Surface,
			RetryAfter: retryAfter,
		}
		return throttled.ToClaimsError()
	}

	state.Count++
	state.UpdatedAt = now
	state.Metadata = cloneMap(state.Metadata)
	return p.Store.Upsert(ctx, state)
}

func (p *FixedWindowPolicy) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func normalizeKey(key Key) Key {
	return Key{
		DealerID: strings.TrimSpace(key.DealerID),
		Surface:  strings.TrimSpace(strings.ToLower(key.Surface)),
	}
}

func cloneMap(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	output := make(map[string]any, len(input))
	for key, value := range input {
		output[key] = value
	}
	return output
}

type MemoryStateStore struct {
	mu    sync.RWMutex
	items map[string]State
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{items: map[string]State{}}
}

func (s *MemoryStateStore) Get(_ context.Context, key Key) (State, error) {
	if s == nil {
		return State{}, fmt.Errorf("ratelimit: state store is nil")
	}
	normalized := normalizeKey(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.items[stateKey(normalized)]
	if !ok {
		return State{}, ErrStateNotFound
	}
	state.Metadata = cloneMap(state.Metadata)
	return state, nil
}

func (s *MemoryStateStore) Upsert(_ context.Context, state State) error {
	if s == nil {
		return fmt.Errorf("ratelimit: state store is nil")
	}
	state.Key = normalizeKey(state.Key)
	state.Metadata = cloneMap(state.Metadata)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[stateKey(state.Key)] = state
	return nil
}

func stateKey(key Key) string {
	return key.DealerID + "|" + key.Surface
}

var _ core.SubmissionThrottle = (*FixedWindowPolicy)(nil)
