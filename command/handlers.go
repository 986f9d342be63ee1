package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-warranty/core"
)

// MutatingService is the slice of *core.Service used by the write-side
// commands.
type MutatingService interface {
	SubmitClaim(ctx context.Context, submission core.Submission) (core.ClaimReceipt, error)
	AllocateClaimNumber(ctx context.Context) (int64, error)
}

// ConfirmationService drains the queued confirmation emails. Satisfied
// by *core.ConfirmationDispatcher.
type ConfirmationService interface {
	DispatchPending(ctx context.Context, batchSize int) (core.DispatchStats, error)
}

// ClaimTransitioner moves a claim through its lifecycle. Satisfied by
// any core.ClaimStore.
type ClaimTransitioner interface {
	UpdateStatus(ctx context.Context, id string, status core.ClaimStatus, reason string) error
}

type SubmitClaimCommand struct {
	service MutatingService
}

func NewSubmitClaimCommand(service MutatingService) *SubmitClaimCommand {
	return &SubmitClaimCommand{service: service}
}

func (c *SubmitClaimCommand) Execute(ctx context.Context, msg SubmitClaimMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: claim service is required")
	}
	out, err := c.service.SubmitClaim(ctx, msg.Submission)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type AllocateClaimNumberCommand struct {
	service MutatingService
}

func NewAllocateClaimNumberCommand(service MutatingService) *AllocateClaimNumberCommand {
	return &AllocateClaimNumberCommand{service: service}
}

func (c *AllocateClaimNumberCommand) Execute(ctx context.Context, msg AllocateClaimNumberMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: counter service is required")
	}
	out, err := c.service.AllocateClaimNumber(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DispatchConfirmationsCommand struct {
	service ConfirmationService
}

func NewDispatchConfirmationsCommand(service ConfirmationService) *DispatchConfirmationsCommand {
	return &DispatchConfirmationsCommand{service: service}
}

func (c *DispatchConfirmationsCommand) Execute(ctx context.Context, msg DispatchConfirmationsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: confirmation dispatcher is required")
	}
	out, err := c.service.DispatchPending(ctx, msg.BatchSize)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type TransitionClaimCommand struct {
	store ClaimTransitioner
}

func NewTransitionClaimCommand(store ClaimTransitioner) *TransitionClaimCommand {
	return &TransitionClaimCommand{store: store}
}

func (c *TransitionClaimCommand) Execute(ctx context.Context, msg TransitionClaimMessage) error {
	if c == nil || c.store == nil {
		return commandDependencyError("command: claim store is required")
	}
	return c.store.UpdateStatus(ctx, msg.ClaimID, msg.Status, msg.Reason)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
