package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-warranty/core"
)

// ClaimSubmitter is the slice of the claims service the intake surface
// needs. Satisfied by *core.Service.
type ClaimSubmitter interface {
	SubmitClaim(ctx context.Context, submission core.Submission) (core.ClaimReceipt, error)
}

type submissionPayload struct {
	CustomerName          string         `json:"customer_name"`
	CustomerEmail         string         `json:"customer_email"`
	ProductModel          string         `json:"product_model"`
	ProductSerial         string         `json:"product_serial"`
	PurchaseDate          string         `json:"purchase_date"`
	Issue                 string         `json:"issue"`
	ConfirmationRequested bool           `json:"confirmation_requested"`
	Metadata              map[string]any `json:"metadata"`
}

// SubmissionHandler turns a raw intake request into a warranty
// submission and hands it to the claims service.
type SubmissionHandler struct {
	surface   string
	submitter ClaimSubmitter
}

func NewSubmissionHandler(surface string, submitter ClaimSubmitter) (*SubmissionHandler, error) {
	surface = normalizeSurface(surface)
	if !isSupportedSurface(surface) {
		return nil, intakeBadInput(
			fmt.Sprintf("intake: unsupported surface %q", surface),
			map[string]any{"surface": surface},
		)
	}
	if submitter == nil {
		return nil, intakeBadInput("intake: claim submitter is required", nil)
	}
	return &SubmissionHandler{surface: surface, submitter: submitter}, nil
}

func (h *SubmissionHandler) Surface() string {
	if h == nil {
		return ""
	}
	return h.surface
}

func (h *SubmissionHandler) Handle(ctx context.Context, req core.IntakeRequest) (core.IntakeResult, error) {
	if h == nil || h.submitter == nil {
		return core.IntakeResult{}, intakeInternal("intake: submission handler is not configured", nil)
	}

	var payload submissionPayload
	if len(req.Body) == 0 {
		return core.IntakeResult{}, intakeBadInput("intake: request body is required", map[string]any{
			"dealer_id": req.DealerID,
			"surface":   h.surface,
		})
	}
	if err := json.Unmarshal(req.Body, &payload); err != nil {
		return core.IntakeResult{}, intakeBadInput(
			fmt.Sprintf("intake: invalid submission payload: %v", err),
			map[string]any{"dealer_id": req.DealerID, "surface": h.surface},
		)
	}

	purchaseDate, err := parsePurchaseDate(payload.PurchaseDate)
	if err != nil {
		return core.IntakeResult{}, intakeBadInput(
			fmt.Sprintf("intake: invalid purchase date %q", payload.PurchaseDate),
			map[string]any{"dealer_id": req.DealerID, "surface": h.surface},
		)
	}

	metadata := map[string]any{"surface": h.surface}
	for key, value := range req.Metadata {
		metadata[key] = value
	}
	for key, value := range payload.Metadata {
		metadata[key] = value
	}

	receipt, err := h.submitter.SubmitClaim(ctx, core.Submission{
		DealerID:              req.DealerID,
		CustomerName:          payload.CustomerName,
		CustomerEmail:         payload.CustomerEmail,
		ProductModel:          payload.ProductModel,
		ProductSerial:         payload.ProductSerial,
		PurchaseDate:          purchaseDate,
		Issue:                 payload.Issue,
		ConfirmationRequested: payload.ConfirmationRequested,
		Metadata:              metadata,
	})
	if err != nil {
		return core.IntakeResult{}, err
	}

	return core.IntakeResult{
		Accepted:    true,
		StatusCode:  http.StatusCreated,
		ClaimNumber: receipt.ClaimNumber,
		Metadata: map[string]any{
			"claim_id":     receipt.Claim.ID,
			"email_queued": receipt.EmailQueued,
		},
	}, nil
}

func parsePurchaseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			utc := parsed.UTC()
			return &utc, nil
		}
	}
	return nil, fmt.Errorf("intake: unrecognized date %q", raw)
}

var _ core.IntakeHandler = (*SubmissionHandler)(nil)
