package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-warranty/core"
)

func cloneTimePtr(in *time.Time) *time.Time {
	if in == nil {
		return nil
	}
	out := *in
	return &out
}

func (r *claimRecord) toDomain() core.Claim {
	if r == nil {
		return core.Claim{}
	}
	return core.Claim{
		ID:            r.ID,
		Number:        r.Number,
		DealerID:      r.DealerID,
		CustomerName:  r.CustomerName,
		CustomerEmail: r.CustomerEmail,
		ProductModel:  r.ProductModel,
		ProductSerial: r.ProductSerial,
		PurchaseDate:  cloneTimePtr(r.PurchaseDate),
		Issue:         r.Issue,
		Status:        core.ClaimStatus(r.Status),
		CRMContactID:  r.CRMContactID,
		CRMTicketID:   r.CRMTicketID,
		LastError:     r.LastError,
		Metadata:      copyAnyMap(r.Metadata),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func (r *emailOutboxRecord) toDomain() core.EmailDispatch {
	if r == nil {
		return core.EmailDispatch{}
	}
	return core.EmailDispatch{
		ID:            r.ID,
		ClaimID:       r.ClaimID,
		ClaimNumber:   r.ClaimNumber,
		Recipient:     r.Recipient,
		Status:        core.DispatchStatus(r.Status),
		Attempts:      r.Attempts,
		NextAttemptAt: cloneTimePtr(r.NextAttemptAt),
		LastError:     r.LastError,
		Metadata:      copyAnyMap(r.Metadata),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func copyAnyMap(in map[string]any) map[string]any {
	out := map[string]any{}
	for key, value := range in {
		out[key] = value
	}
	return out
}

// isUniqueViolation matches the driver-specific text for unique
// constraint failures across the sqlite and postgres drivers we run
// against. Neither driver exposes a portable sentinel for this.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint") ||
		strings.Contains(message, "duplicate key")
}
