package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryCounterStore keeps the counter in process memory. It honors
// the CounterStore contract for tests and single-process setups but
// provides no durability across restarts.
type MemoryCounterStore struct {
	mu       sync.Mutex
	baseline int64
	values   map[string]int64
}

func NewMemoryCounterStore(baseline int64) *MemoryCounterStore {
	if baseline <= 0 {
		baseline = BaselineClaimNumber
	}
	return &MemoryCounterStore{
		baseline: baseline,
		values:   map[string]int64{},
	}
}

func (s *MemoryCounterStore) Next(_ context.Context, name string) (int64, error) {
	if s == nil {
		return 0, fmt.Errorf("core: counter store is not configured")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("core: counter name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.values[name]
	if !ok {
		current = s.baseline
	}
	current++
	s.values[name] = current
	return current, nil
}

func (s *MemoryCounterStore) Current(_ context.Context, name string) (int64, error) {
	if s == nil {
		return 0, fmt.Errorf("core: counter store is not configured")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("core: counter name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.values[name]
	if !ok {
		return s.baseline, nil
	}
	return current, nil
}

type MemoryClaimStore struct {
	mu       sync.Mutex
	claims   map[string]Claim
	byNumber map[int64]string
	now      func() time.Time
}

func NewMemoryClaimStore() *MemoryClaimStore {
	return &MemoryClaimStore{
		claims:   map[string]Claim{},
		byNumber: map[int64]string{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (s *MemoryClaimStore) Create(_ context.Context, in CreateClaimInput) (Claim, error) {
	if s == nil {
		return Claim{}, fmt.Errorf("core: claim store is not configured")
	}
	if in.Number <= 0 {
		return Claim{}, fmt.Errorf("core: claim number is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byNumber[in.Number]; exists {
		return Claim{}, fmt.Errorf("core: claim number %d already recorded", in.Number)
	}

	now := s.now()
	status := in.Status
	if status == "" {
		status = ClaimStatusReceived
	}
	claim := Claim{
		ID:            uuid.NewString(),
		Number:        in.Number,
		DealerID:      strings.TrimSpace(in.DealerID),
		CustomerName:  strings.TrimSpace(in.CustomerName),
		CustomerEmail: strings.TrimSpace(in.CustomerEmail),
		ProductModel:  strings.TrimSpace(in.ProductModel),
		ProductSerial: strings.TrimSpace(in.ProductSerial),
		PurchaseDate:  in.PurchaseDate,
		Issue:         strings.TrimSpace(in.Issue),
		Status:        status,
		Metadata:      copyAnyMap(in.Metadata),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.claims[claim.ID] = claim
	s.byNumber[claim.Number] = claim.ID
	return cloneClaim(claim), nil
}

func (s *MemoryClaimStore) Get(_ context.Context, id string) (Claim, error) {
	if s == nil {
		return Claim{}, fmt.Errorf("core: claim store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	claim, ok := s.claims[strings.TrimSpace(id)]
	if !ok {
		return Claim{}, fmt.Errorf("%w: %s", ErrClaimNotFound, id)
	}
	return cloneClaim(claim), nil
}

func (s *MemoryClaimStore) GetByNumber(_ context.Context, number int64) (Claim, error) {
	if s == nil {
		return Claim{}, fmt.Errorf("core: claim store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byNumber[number]
	if !ok {
		return Claim{}, fmt.Errorf("%w: number %d", ErrClaimNotFound, number)
	}
	return cloneClaim(s.claims[id]), nil
}

func (s *MemoryClaimStore) List(_ context.Context, filter ClaimFilter) (ClaimPage, error) {
	if s == nil {
		return ClaimPage{}, fmt.Errorf("core: claim store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]Claim, 0, len(s.claims))
	for _, claim := range s.claims {
		if filter.DealerID != "" && claim.DealerID != filter.DealerID {
			continue
		}
		if filter.Status != "" && claim.Status != filter.Status {
			continue
		}
		if filter.From != nil && claim.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && claim.CreatedAt.After(*filter.To) {
			continue
		}
		matched = append(matched, cloneClaim(claim))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Number < matched[j].Number
	})

	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage < 1 {
		perPage = 25
	}
	total := len(matched)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}

	return ClaimPage{
		Items:   matched[start:end],
		Page:    page,
		PerPage: perPage,
		Total:   total,
		HasNext: end < total,
	}, nil
}

func (s *MemoryClaimStore) UpdateRecords(_ context.Context, in UpdateClaimRecordsInput) (Claim, error) {
	if s == nil {
		return Claim{}, fmt.Errorf("core: claim store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	claim, ok := s.claims[strings.TrimSpace(in.ClaimID)]
	if !ok {
		return Claim{}, fmt.Errorf("%w: %s", ErrClaimNotFound, in.ClaimID)
	}
	if strings.TrimSpace(in.CRMContactID) != "" {
		claim.CRMContactID = strings.TrimSpace(in.CRMContactID)
	}
	if strings.TrimSpace(in.CRMTicketID) != "" {
		claim.CRMTicketID = strings.TrimSpace(in.CRMTicketID)
	}
	if in.Status != "" {
		if err := claim.TransitionTo(in.Status, in.Reason, s.now()); err != nil {
			return Claim{}, err
		}
	} else {
		claim.UpdatedAt = s.now()
	}
	s.claims[claim.ID] = claim
	return cloneClaim(claim), nil
}

func (s *MemoryClaimStore) UpdateStatus(_ context.Context, id string, status ClaimStatus, reason string) error {
	if s == nil {
		return fmt.Errorf("core: claim store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	claim, ok := s.claims[strings.TrimSpace(id)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrClaimNotFound, id)
	}
	if err := claim.TransitionTo(status, reason, s.now()); err != nil {
		return err
	}
	s.claims[claim.ID] = claim
	return nil
}

type MemoryEmailOutboxStore struct {
	mu         sync.Mutex
	dispatches map[string]EmailDispatch
	order      []string
	now        func() time.Time
}

func NewMemoryEmailOutboxStore() *MemoryEmailOutboxStore {
	return &MemoryEmailOutboxStore{
		dispatches: map[string]EmailDispatch{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (s *MemoryEmailOutboxStore) Enqueue(_ context.Context, in EnqueueEmailInput) (EmailDispatch, error) {
	if s == nil {
		return EmailDispatch{}, fmt.Errorf("core: email outbox store is not configured")
	}
	recipient := strings.TrimSpace(in.Recipient)
	if recipient == "" {
		return EmailDispatch{}, fmt.Errorf("core: email recipient is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	dispatch := EmailDispatch{
		ID:          uuid.NewString(),
		ClaimID:     strings.TrimSpace(in.ClaimID),
		ClaimNumber: in.ClaimNumber,
		Recipient:   recipient,
		Status:      DispatchStatusPending,
		Metadata:    copyAnyMap(in.Metadata),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.dispatches[dispatch.ID] = dispatch
	s.order = append(s.order, dispatch.ID)
	return cloneDispatch(dispatch), nil
}

func (s *MemoryEmailOutboxStore) ClaimBatch(_ context.Context, limit int) ([]EmailDispatch, error) {
	if s == nil {
		return nil, fmt.Errorf("core: email outbox store is not configured")
	}
	if limit <= 0 {
		limit = 10
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	claimed := make([]EmailDispatch, 0, limit)
	for _, id := range s.order {
		if len(claimed) >= limit {
			break
		}
		dispatch := s.dispatches[id]
		if dispatch.Status != DispatchStatusPending {
			continue
		}
		if dispatch.NextAttemptAt != nil && dispatch.NextAttemptAt.After(now) {
			continue
		}
		dispatch.Status = DispatchStatusSending
		dispatch.Attempts++
		dispatch.UpdatedAt = now
		s.dispatches[id] = dispatch
		claimed = append(claimed, cloneDispatch(dispatch))
	}
	return claimed, nil
}

func (s *MemoryEmailOutboxStore) Ack(_ context.Context, id string) error {
	if s == nil {
		return fmt.Errorf("core: email outbox store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dispatch, ok := s.dispatches[strings.TrimSpace(id)]
	if !ok {
		return fmt.Errorf("core: email dispatch not found: %s", id)
	}
	dispatch.Status = DispatchStatusDelivered
	dispatch.LastError = ""
	dispatch.NextAttemptAt = nil
	dispatch.UpdatedAt = s.now()
	s.dispatches[dispatch.ID] = dispatch
	return nil
}

func (s *MemoryEmailOutboxStore) Fail(_ context.Context, id string, cause error, nextAttemptAt time.Time, maxAttempts int) error {
	if s == nil {
		return fmt.Errorf("core: email outbox store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dispatch, ok := s.dispatches[strings.TrimSpace(id)]
	if !ok {
		return fmt.Errorf("core: email dispatch not found: %s", id)
	}
	if cause != nil {
		dispatch.LastError = cause.Error()
	}
	if maxAttempts > 0 && dispatch.Attempts >= maxAttempts {
		dispatch.Status = DispatchStatusDead
		dispatch.NextAttemptAt = nil
	} else {
		dispatch.Status = DispatchStatusPending
		next := nextAttemptAt
		dispatch.NextAttemptAt = &next
	}
	dispatch.UpdatedAt = s.now()
	s.dispatches[dispatch.ID] = dispatch
	return nil
}

// Dispatch returns a point-in-time copy of a queued dispatch.
func (s *MemoryEmailOutboxStore) Dispatch(id string) (EmailDispatch, bool) {
	if s == nil {
		return EmailDispatch{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dispatch, ok := s.dispatches[strings.TrimSpace(id)]
	if !ok {
		return EmailDispatch{}, false
	}
	return cloneDispatch(dispatch), true
}

func cloneClaim(claim Claim) Claim {
	cloned := claim
	cloned.Metadata = copyAnyMap(claim.Metadata)
	if claim.PurchaseDate != nil {
		purchaseDate := *claim.PurchaseDate
		cloned.PurchaseDate = &purchaseDate
	}
	return cloned
}

func cloneDispatch(dispatch EmailDispatch) EmailDispatch {
	cloned := dispatch
	cloned.Metadata = copyAnyMap(dispatch.Metadata)
	if dispatch.NextAttemptAt != nil {
		next := *dispatch.NextAttemptAt
		cloned.NextAttemptAt = &next
	}
	return cloned
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
