package postmark

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-warranty/core"
)

type stubTransport struct {
	requests []core.TransportRequest
	response core.TransportResponse
	err      error
}

func (s *stubTransport) Kind() string {
	return "rest"
}

func (s *stubTransport) Do(_ context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return core.TransportResponse{}, s.err
	}
	return s.response, nil
}

func newTestClient(t *testing.T, transport *stubTransport) *Client {
	t.Helper()
	client, err := New(Config{
		ServerToken: "pm-token",
		From:        "claims@example.com",
		Transport:   transport,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestClient_SendConfirmation(t *testing.T) {
	transport := &stubTransport{
		response: core.TransportResponse{
			StatusCode: http.StatusOK,
			Body:       []byte(`{"MessageID": "pm-msg-1", "ErrorCode": 0}`),
		},
	}
	client := newTestClient(t, transport)

	result, err := client.SendConfirmation(context.Background(), core.ConfirmationEmail{
		Recipient:   "ada@example.com",
		ClaimNumber: 100001,
	})
	if err != nil {
		t.Fatalf("send confirmation: %v", err)
	}
	if result.MessageID != "pm-msg-1" {
		t.Fatalf("expected message id pm-msg-1, got %q", result.MessageID)
	}

	if len(transport.requests) != 1 {
		t.Fatalf("expected 1 transport call, got %d", len(transport.requests))
	}
	req := transport.requests[0]
	if req.URL != DefaultBaseURL+"/email" {
		t.Fatalf("unexpected url %q", req.URL)
	}
	if req.Headers["X-Postmark-Server-Token"] != "pm-token" {
		t.Fatalf("expected server token header")
	}

	var payload map[string]any
	if err := json.Unmarshal(req.Body, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["From"] != "claims@example.com" || payload["To"] != "ada@example.com" {
		t.Fatalf("unexpected addresses %v -> %v", payload["From"], payload["To"])
	}
	if payload["Subject"] != "Your warranty claim #100001" {
		t.Fatalf("expected default subject, got %v", payload["Subject"])
	}
	if !strings.Contains(payload["TextBody"].(string), "100001") {
		t.Fatalf("expected claim number in body, got %v", payload["TextBody"])
	}
	if payload["MessageStream"] != "outbound" {
		t.Fatalf("expected outbound stream, got %v", payload["MessageStream"])
	}
}

func TestClient_SubjectOverrideWins(t *testing.T) {
	transport := &stubTransport{
		response: core.TransportResponse{
			StatusCode: http.StatusOK,
			Body:       []byte(`{"MessageID": "pm-msg-2"}`),
		},
	}
	client := newTestClient(t, transport)

	if _, err := client.SendConfirmation(context.Background(), core.ConfirmationEmail{
		Recipient:   "ada@example.com",
		ClaimNumber: 100002,
		Subject:     "Claim received",
	}); err != nil {
		t.Fatalf("send confirmation: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(transport.requests[0].Body, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["Subject"] != "Claim received" {
		t.Fatalf("expected subject override, got %v", payload["Subject"])
	}
}

func TestClient_MapsAPIErrors(t *testing.T) {
	transport := &stubTransport{
		response: core.TransportResponse{
			StatusCode: http.StatusUnprocessableEntity,
			Body:       []byte(`{"ErrorCode": 300, "Message": "Invalid email request"}`),
		},
	}
	client := newTestClient(t, transport)

	_, err := client.SendConfirmation(context.Background(), core.ConfirmationEmail{
		Recipient:   "ada@example.com",
		ClaimNumber: 100001,
	})
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected structured error, got %v", err)
	}
	if richErr.Category != goerrors.CategoryExternal {
		t.Fatalf("expected external category, got %s", richErr.Category)
	}
	if !strings.Contains(richErr.Message, "Invalid email request") {
		t.Fatalf("expected upstream message, got %q", richErr.Message)
	}
}

func TestClient_Validation(t *testing.T) {
	if _, err := New(Config{From: "claims@example.com"}); err == nil {
		t.Fatalf("expected missing server token to fail")
	}
	if _, err := New(Config{ServerToken: "pm-token"}); err == nil {
		t.Fatalf("expected missing sender to fail")
	}

	client := newTestClient(t, &stubTransport{response: core.TransportResponse{StatusCode: http.StatusOK}})
	if _, err := client.SendConfirmation(context.Background(), core.ConfirmationEmail{ClaimNumber: 1}); err == nil {
		t.Fatalf("expected missing recipient to fail")
	}
	if _, err := client.SendConfirmation(context.Background(), core.ConfirmationEmail{Recipient: "a@b.c"}); err == nil {
		t.Fatalf("expected missing claim number to fail")
	}
}
