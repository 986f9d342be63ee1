package command

import (
	"strings"

	"github.com/goliatone/go-warranty/core"
)

const (
	TypeSubmitClaim           = "warranty.command.claim.submit"
	TypeAllocateClaimNumber   = "warranty.command.counter.allocate"
	TypeDispatchConfirmations = "warranty.command.confirmations.dispatch"
	TypeTransitionClaim       = "warranty.command.claim.transition"
)

type SubmitClaimMessage struct {
	Submission core.Submission
}

func (SubmitClaimMessage) Type() string { return TypeSubmitClaim }

func (m SubmitClaimMessage) Validate() error {
	if err := m.Submission.Validate(); err != nil {
		return commandWrapValidation(err, "command: submission is invalid")
	}
	return nil
}

type AllocateClaimNumberMessage struct{}

func (AllocateClaimNumberMessage) Type() string { return TypeAllocateClaimNumber }

func (AllocateClaimNumberMessage) Validate() error { return nil }

type DispatchConfirmationsMessage struct {
	BatchSize int
}

func (DispatchConfirmationsMessage) Type() string { return TypeDispatchConfirmations }

func (m DispatchConfirmationsMessage) Validate() error {
	if m.BatchSize < 0 {
		return commandValidationError("batch_size", "batch size must not be negative")
	}
	return nil
}

type TransitionClaimMessage struct {
	ClaimID string
	Status  core.ClaimStatus
	Reason  string
}

func (TransitionClaimMessage) Type() string { return TypeTransitionClaim }

func (m TransitionClaimMessage) Validate() error {
	if strings.TrimSpace(m.ClaimID) == "" {
		return commandValidationError("claim_id", "claim id is required")
	}
	if strings.TrimSpace(string(m.Status)) == "" {
		return commandValidationError("status", "target status is required")
	}
	return nil
}
