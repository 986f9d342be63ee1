package intake

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-warranty/core"
)

type stubSubmitter struct {
	submissions []core.Submission
	receipt     core.ClaimReceipt
	err         error
}

func (s *stubSubmitter) SubmitClaim(_ context.Context, submission core.Submission) (core.ClaimReceipt, error) {
	s.submissions = append(s.submissions, submission)
	if s.err != nil {
		return core.ClaimReceipt{}, s.err
	}
	return s.receipt, nil
}

func TestSubmissionHandler_ParsesPayloadAndSubmits(t *testing.T) {
	submitter := &stubSubmitter{
		receipt: core.ClaimReceipt{
			Claim:       core.Claim{ID: "claim-1", Number: 100001},
			ClaimNumber: 100001,
			EmailQueued: true,
		},
	}
	handler, err := NewSubmissionHandler(SurfaceForm, submitter)
	if err != nil {
		t.Fatalf("new submission handler: %v", err)
	}

	body := []byte(`{
		"customer_name": "Ada Lovelace",
		"customer_email": "ada@example.com",
		"product_model": "HX-200",
		"product_serial": "SN-0001",
		"purchase_date": "2025-11-03",
		"issue": "compressor rattles on startup",
		"confirmation_requested": true,
		"metadata": {"campaign": "winter"}
	}`)
	result, err := handler.Handle(context.Background(), core.IntakeRequest{
		DealerID: "dealer-north",
		Surface:  SurfaceForm,
		Body:     body,
		Metadata: map[string]any{"request_id": "req-1"},
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !result.Accepted || result.StatusCode != 201 {
		t.Fatalf("expected accepted 201, got accepted=%v status=%d", result.Accepted, result.StatusCode)
	}
	if result.ClaimNumber != 100001 {
		t.Fatalf("expected claim number 100001, got %d", result.ClaimNumber)
	}
	if result.Metadata["claim_id"] != "claim-1" {
		t.Fatalf("expected claim id metadata, got %v", result.Metadata["claim_id"])
	}
	if result.Metadata["email_queued"] != true {
		t.Fatalf("expected email_queued metadata")
	}

	if len(submitter.submissions) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(submitter.submissions))
	}
	submission := submitter.submissions[0]
	if submission.DealerID != "dealer-north" {
		t.Fatalf("expected dealer from request, got %q", submission.DealerID)
	}
	if submission.CustomerEmail != "ada@example.com" {
		t.Fatalf("unexpected customer email %q", submission.CustomerEmail)
	}
	if !submission.ConfirmationRequested {
		t.Fatalf("expected confirmation requested")
	}
	if submission.PurchaseDate == nil || !submission.PurchaseDate.Equal(time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected parsed purchase date, got %v", submission.PurchaseDate)
	}
	if submission.Metadata["surface"] != SurfaceForm {
		t.Fatalf("expected surface metadata, got %v", submission.Metadata["surface"])
	}
	if submission.Metadata["request_id"] != "req-1" || submission.Metadata["campaign"] != "winter" {
		t.Fatalf("expected merged metadata, got %v", submission.Metadata)
	}
}

func TestSubmissionHandler_RejectsMalformedPayload(t *testing.T) {
	handler, err := NewSubmissionHandler(SurfaceAPI, &stubSubmitter{})
	if err != nil {
		t.Fatalf("new submission handler: %v", err)
	}

	if _, err := handler.Handle(context.Background(), core.IntakeRequest{
		DealerID: "dealer-north",
		Body:     []byte(`{"customer_name":`),
	}); err == nil {
		t.Fatalf("expected malformed payload to fail")
	}

	if _, err := handler.Handle(context.Background(), core.IntakeRequest{
		DealerID: "dealer-north",
	}); err == nil {
		t.Fatalf("expected empty body to fail")
	}

	if _, err := handler.Handle(context.Background(), core.IntakeRequest{
		DealerID: "dealer-north",
		Body:     []byte(`{"purchase_date": "last tuesday"}`),
	}); err == nil {
		t.Fatalf("expected invalid purchase date to fail")
	}
}

func TestNewSubmissionHandler_Validates(t *testing.T) {
	if _, err := NewSubmissionHandler("carrier-pigeon", &stubSubmitter{}); err == nil {
		t.Fatalf("expected unsupported surface to fail")
	}
	if _, err := NewSubmissionHandler(SurfaceForm, nil); err == nil {
		t.Fatalf("expected nil submitter to fail")
	}
}
