package command

import (
	"context"
	"fmt"
	"testing"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-warranty/core"
)

type stubMutatingService struct {
	submitFn   func(ctx context.Context, submission core.Submission) (core.ClaimReceipt, error)
	allocateFn func(ctx context.Context) (int64, error)
}

func (s stubMutatingService) SubmitClaim(ctx context.Context, submission core.Submission) (core.ClaimReceipt, error) {
	if s.submitFn == nil {
		return core.ClaimReceipt{}, fmt.Errorf("submit not configured")
	}
	return s.submitFn(ctx, submission)
}

func (s stubMutatingService) AllocateClaimNumber(ctx context.Context) (int64, error) {
	if s.allocateFn == nil {
		return 0, fmt.Errorf("allocate not configured")
	}
	return s.allocateFn(ctx)
}

type stubConfirmationService struct {
	dispatchFn func(ctx context.Context, batchSize int) (core.DispatchStats, error)
}

func (s stubConfirmationService) DispatchPending(ctx context.Context, batchSize int) (core.DispatchStats, error) {
	return s.dispatchFn(ctx, batchSize)
}

type stubTransitioner struct {
	updateFn func(ctx context.Context, id string, status core.ClaimStatus, reason string) error
}

func (s stubTransitioner) UpdateStatus(ctx context.Context, id string, status core.ClaimStatus, reason string) error {
	return s.updateFn(ctx, id, status, reason)
}

func TestSubmitClaimCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	expected := core.ClaimReceipt{ClaimNumber: 100001, EmailQueued: true}
	called := false

	svc := stubMutatingService{
		submitFn: func(_ context.Context, submission core.Submission) (core.ClaimReceipt, error) {
			called = true
			if submission.DealerID != "dealer-042" {
				t.Fatalf("expected dealer dealer-042, got %q", submission.DealerID)
			}
			return expected, nil
		},
	}

	cmd := NewSubmitClaimCommand(svc)
	collector := gocmd.NewResult[core.ClaimReceipt]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := cmd.Execute(ctx, SubmitClaimMessage{Submission: core.Submission{
		DealerID:     "dealer-042",
		CustomerName: "Avery Ruiz",
		Issue:        "compressor rattles under load",
	}})
	if err != nil {
		t.Fatalf("execute submit claim: %v", err)
	}
	if !called {
		t.Fatalf("expected claim service invocation")
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.ClaimNumber != expected.ClaimNumber || !result.EmailQueued {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestAllocateClaimNumberCommand_StoresAllocatedNumber(t *testing.T) {
	svc := stubMutatingService{
		allocateFn: func(_ context.Context) (int64, error) {
			return 100042, nil
		},
	}

	cmd := NewAllocateClaimNumberCommand(svc)
	collector := gocmd.NewResult[int64]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	if err := cmd.Execute(ctx, AllocateClaimNumberMessage{}); err != nil {
		t.Fatalf("execute allocate: %v", err)
	}
	number, ok := collector.Load()
	if !ok {
		t.Fatalf("expected allocated number to be stored")
	}
	if number != 100042 {
		t.Fatalf("expected 100042, got %d", number)
	}
}

func TestDispatchConfirmationsCommand_DelegatesBatchSize(t *testing.T) {
	svc := stubConfirmationService{
		dispatchFn: func(_ context.Context, batchSize int) (core.DispatchStats, error) {
			if batchSize != 25 {
				t.Fatalf("expected batch size 25, got %d", batchSize)
			}
			return core.DispatchStats{Claimed: 3, Delivered: 2, Retried: 1}, nil
		},
	}

	cmd := NewDispatchConfirmationsCommand(svc)
	collector := gocmd.NewResult[core.DispatchStats]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	if err := cmd.Execute(ctx, DispatchConfirmationsMessage{BatchSize: 25}); err != nil {
		t.Fatalf("execute dispatch: %v", err)
	}
	stats, ok := collector.Load()
	if !ok {
		t.Fatalf("expected dispatch stats result")
	}
	if stats.Delivered != 2 || stats.Retried != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
}

func TestTransitionClaimCommand_DelegatesToStore(t *testing.T) {
	called := false
	store := stubTransitioner{
		updateFn: func(_ context.Context, id string, status core.ClaimStatus, reason string) error {
			called = true
			if id != "claim-1" || status != core.ClaimStatusClosed || reason != "resolved" {
				t.Fatalf("unexpected transition payload: %q %q %q", id, status, reason)
			}
			return nil
		},
	}

	cmd := NewTransitionClaimCommand(store)
	msg := TransitionClaimMessage{ClaimID: "claim-1", Status: core.ClaimStatusClosed, Reason: "resolved"}
	if err := cmd.Execute(context.Background(), msg); err != nil {
		t.Fatalf("execute transition: %v", err)
	}
	if !called {
		t.Fatalf("expected update status invocation")
	}
}

func TestCommands_PropagateServiceErrors(t *testing.T) {
	wantErr := fmt.Errorf("counter storage offline")
	svc := stubMutatingService{
		allocateFn: func(_ context.Context) (int64, error) {
			return 0, wantErr
		},
	}

	cmd := NewAllocateClaimNumberCommand(svc)
	err := cmd.Execute(context.Background(), AllocateClaimNumberMessage{})
	if err == nil {
		t.Fatalf("expected allocation error")
	}
	if err.Error() != wantErr.Error() {
		t.Fatalf("expected service error to pass through, got %v", err)
	}
}

func TestMessages_Validate(t *testing.T) {
	if err := (SubmitClaimMessage{}).Validate(); err == nil {
		t.Fatalf("expected empty submission to fail validation")
	}
	if err := (DispatchConfirmationsMessage{BatchSize: -1}).Validate(); err == nil {
		t.Fatalf("expected negative batch size to fail validation")
	}
	if err := (DispatchConfirmationsMessage{}).Validate(); err != nil {
		t.Fatalf("zero batch size uses the dispatcher default: %v", err)
	}
	if err := (TransitionClaimMessage{Status: core.ClaimStatusClosed}).Validate(); err == nil {
		t.Fatalf("expected missing claim id to fail validation")
	}
	msg := TransitionClaimMessage{ClaimID: "claim-1", Status: core.ClaimStatusClosed}
	if err := msg.Validate(); err != nil {
		t.Fatalf("validate transition: %v", err)
	}
}
