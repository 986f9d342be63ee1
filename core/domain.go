package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// BaselineClaimNumber is the counter value before any claim number has
// been issued. The first allocated number is BaselineClaimNumber + 1.
const BaselineClaimNumber int64 = 100000

// DefaultCounterName is the well-known identifier of the shared claim
// counter row. Every process pointed at the same database resolves the
// same logical counter through this name.
const DefaultCounterName = "warranty-claims"

var (
	ErrStorageUnavailable     = errors.New("core: counter storage unavailable")
	ErrCounterViolation       = errors.New("core: claim counter regressed")
	ErrClaimNotFound          = errors.New("core: claim not found")
	ErrInvalidClaimTransition = errors.New("core: invalid claim status transition")
	ErrInvalidSubmission      = errors.New("core: invalid submission")
)

type ClaimStatus string

const (
	// ClaimStatusReceived means a claim number was allocated and the
	// claim record persisted, but no CRM records exist yet.
	ClaimStatusReceived ClaimStatus = "received"
	// ClaimStatusRecorded means the CRM contact and ticket were created.
	ClaimStatusRecorded ClaimStatus = "recorded"
	// ClaimStatusNotified means the confirmation email was delivered.
	ClaimStatusNotified ClaimStatus = "notified"
	ClaimStatusFailed   ClaimStatus = "failed"
	ClaimStatusClosed   ClaimStatus = "closed"
)

type Claim struct {
	ID            string
	Number        int64
	DealerID      string
	CustomerName  string
	CustomerEmail string
	ProductModel  string
	ProductSerial string
	PurchaseDate  *time.Time
	Issue         string
	Status        ClaimStatus
	CRMContactID  string
	CRMTicketID   string
	LastError     string
	Metadata      map[string]any
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (c *Claim) TransitionTo(status ClaimStatus, reason string, now time.Time) error {
	if c == nil {
		return nil
	}
	if c.Status == status {
		c.UpdatedAt = now
		if strings.TrimSpace(reason) != "" {
			c.LastError = strings.TrimSpace(reason)
		}
		return nil
	}
	if !claimTransitionAllowed(c.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidClaimTransition, c.Status, status)
	}
	c.Status = status
	c.UpdatedAt = now
	if strings.TrimSpace(reason) != "" {
		c.LastError = strings.TrimSpace(reason)
	}
	if status == ClaimStatusRecorded || status == ClaimStatusNotified {
		c.LastError = ""
	}
	return nil
}

func claimTransitionAllowed(current, next ClaimStatus) bool {
	allowed := map[ClaimStatus]map[ClaimStatus]struct{}{
		ClaimStatusReceived: {
			ClaimStatusRecorded: {},
			ClaimStatusFailed:   {},
		},
		ClaimStatusRecorded: {
			ClaimStatusNotified: {},
			ClaimStatusFailed:   {},
			ClaimStatusClosed:   {},
		},
		ClaimStatusNotified: {
			ClaimStatusClosed: {},
		},
		ClaimStatusFailed: {
			ClaimStatusRecorded: {},
			ClaimStatusClosed:   {},
		},
	}
	_, ok := allowed[current][next]
	return ok
}

// Submission is one dealer/customer warranty form, already parsed out
// of its wire shape. Field-level form validation beyond presence checks
// belongs to the intake surface, not here.
type Submission struct {
	DealerID              string
	CustomerName          string
	CustomerEmail         string
	ProductModel          string
	ProductSerial         string
	PurchaseDate          *time.Time
	Issue                 string
	ConfirmationRequested bool
	Metadata              map[string]any
}

func (s Submission) Validate() error {
	if strings.TrimSpace(s.DealerID) == "" {
		return fmt.Errorf("%w: dealer id is required", ErrInvalidSubmission)
	}
	if strings.TrimSpace(s.CustomerName) == "" {
		return fmt.Errorf("%w: customer name is required", ErrInvalidSubmission)
	}
	email := strings.TrimSpace(s.CustomerEmail)
	if s.ConfirmationRequested && email == "" {
		return fmt.Errorf("%w: customer email is required for confirmation", ErrInvalidSubmission)
	}
	if email != "" && !strings.Contains(email, "@") {
		return fmt.Errorf("%w: customer email %q is invalid", ErrInvalidSubmission, email)
	}
	if strings.TrimSpace(s.ProductSerial) == "" {
		return fmt.Errorf("%w: product serial is required", ErrInvalidSubmission)
	}
	if strings.TrimSpace(s.Issue) == "" {
		return fmt.Errorf("%w: issue description is required", ErrInvalidSubmission)
	}
	return nil
}

type DispatchStatus string

const (
	DispatchStatusPending   DispatchStatus = "pending"
	DispatchStatusSending   DispatchStatus = "sending"
	DispatchStatusDelivered DispatchStatus = "delivered"
	DispatchStatusDead      DispatchStatus = "dead"
)

// EmailDispatch is one queued confirmation email. Dispatches live in a
// durable outbox so a crash between claim acceptance and email delivery
// never loses the confirmation.
type EmailDispatch struct {
	ID            string
	ClaimID       string
	ClaimNumber   int64
	Recipient     string
	Status        DispatchStatus
	Attempts      int
	NextAttemptAt *time.Time
	LastError     string
	Metadata      map[string]any
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
