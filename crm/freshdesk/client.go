package freshdesk

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-warranty/core"
	"github.com/goliatone/go-warranty/transport"
)

const ProviderID = "freshdesk"

const (
	contactsPath = "/api/v2/contacts"
	ticketsPath  = "/api/v2/tickets"
)

// Freshdesk ticket defaults: status 2 is "open", priority 1 is "low".
const (
	ticketStatusOpen   = 2
	ticketPriorityLow  = 1
	defaultCallTimeout = 15 * time.Second
)

type Config struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	Transport core.TransportAdapter
}

func DefaultConfig() Config {
	return Config{
		Timeout: defaultCallTimeout,
	}
}

// Client records warranty claims in Freshdesk as a contact plus a
// ticket. The core only keeps the returned identifiers.
type Client struct {
	baseURL   string
	apiKey    string
	timeout   time.Duration
	transport core.TransportAdapter
}

func New(cfg Config) (*Client, error) {
	defaults := DefaultConfig()
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("freshdesk: base url is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("freshdesk: api key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.Transport == nil {
		cfg.Transport = transport.NewRESTAdapter(nil)
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		timeout:   cfg.Timeout,
		transport: cfg.Transport,
	}, nil
}

type contactPayload struct {
	Name         string         `json:"name"`
	Email        string         `json:"email,omitempty"`
	CustomFields map[string]any `json:"custom_fields,omitempty"`
}

type ticketPayload struct {
	Subject      string         `json:"subject"`
	Description  string         `json:"description"`
	RequesterID  json.Number    `json:"requester_id,omitempty"`
	Status       int            `json:"status"`
	Priority     int            `json:"priority"`
	CustomFields map[string]any `json:"custom_fields,omitempty"`
}

type recordResponse struct {
	ID json.Number `json:"id"`
}

func (c *Client) CreateContact(ctx context.Context, contact core.CRMContact) (core.CRMContactResult, error) {
	if c == nil || c.transport == nil {
		return core.CRMContactResult{}, fmt.Errorf("freshdesk: client is not configured")
	}
	if strings.TrimSpace(contact.Name) == "" {
		return core.CRMContactResult{}, freshdeskBadInput("freshdesk: contact name is required", nil)
	}

	custom := map[string]any{}
	if strings.TrimSpace(contact.DealerID) != "" {
		custom["dealer_id"] = strings.TrimSpace(contact.DealerID)
	}
	for key, value := range contact.Metadata {
		custom[key] = value
	}
	body, err := json.Marshal(contactPayload{
		Name:         strings.TrimSpace(contact.Name),
		Email:        strings.TrimSpace(contact.Email),
		CustomFields: custom,
	})
	if err != nil {
		return core.CRMContactResult{}, freshdeskBadInput(
			fmt.Sprintf("freshdesk: encode contact: %v", err), nil)
	}

	record, err := c.call(ctx, contactsPath, body, map[string]any{"operation": "create_contact"})
	if err != nil {
		return core.CRMContactResult{}, err
	}
	return core.CRMContactResult{
		ID:       record.ID.String(),
		Metadata: map[string]any{"provider": ProviderID},
	}, nil
}

func (c *Client) CreateTicket(ctx context.Context, ticket core.CRMTicket) (core.CRMTicketResult, error) {
	if c == nil || c.transport == nil {
		return core.CRMTicketResult{}, fmt.Errorf("freshdesk: client is not configured")
	}
	if ticket.ClaimNumber <= 0 {
		return core.CRMTicketResult{}, freshdeskBadInput("freshdesk: claim number is required", nil)
	}

	subject := strings.TrimSpace(ticket.Subject)
	if subject == "" {
		subject = fmt.Sprintf("Warranty claim #%d", ticket.ClaimNumber)
	}
	custom := map[string]any{"claim_number": ticket.ClaimNumber}
	for key, value := range ticket.Metadata {
		custom[key] = value
	}
	payload := ticketPayload{
		Subject:      subject,
		Description:  strings.TrimSpace(ticket.Description),
		Status:       ticketStatusOpen,
		Priority:     ticketPriorityLow,
		CustomFields: custom,
	}
	if strings.TrimSpace(ticket.ContactID) != "" {
		payload.RequesterID = json.Number(strings.TrimSpace(ticket.ContactID))
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return core.CRMTicketResult{}, freshdeskBadInput(
			fmt.Sprintf("freshdesk: encode ticket: %v", err), nil)
	}

	record, err := c.call(ctx, ticketsPath, body, map[string]any{
		"operation":    "create_ticket",
		"claim_number": ticket.ClaimNumber,
	})
	if err != nil {
		return core.CRMTicketResult{}, err
	}
	return core.CRMTicketResult{
		ID:       record.ID.String(),
		Metadata: map[string]any{"provider": ProviderID},
	}, nil
}

func (c *Client) call(ctx context.Context, path string, body []byte, metadata map[string]any) (recordResponse, error) {
	res, err := c.transport.Do(ctx, core.TransportRequest{
		Method: http.MethodPost,
		URL:    c.baseURL + path,
		Headers: map[string]string{
			"Authorization": c.authorizationHeader(),
			"Content-Type":  "application/json",
		},
		Body:     body,
		Timeout:  c.timeout,
		Metadata: metadata,
	})
	if err != nil {
		return recordResponse{}, goerrors.Wrap(err, goerrors.CategoryExternal, "freshdesk: request failed").
			WithCode(http.StatusBadGateway).
			WithTextCode(core.ClaimsErrorExternalFailure).
			WithMetadata(map[string]any{"provider": ProviderID, "path": path})
	}
	if res.StatusCode == http.StatusTooManyRequests {
		return recordResponse{}, goerrors.New("freshdesk: rate limited", goerrors.CategoryRateLimit).
			WithCode(http.StatusTooManyRequests).
			WithTextCode(core.ClaimsErrorRateLimited).
			WithMetadata(map[string]any{"provider": ProviderID, "path": path})
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return recordResponse{}, goerrors.New(
			fmt.Sprintf("freshdesk: unexpected status %d", res.StatusCode),
			goerrors.CategoryExternal,
		).
			WithCode(http.StatusBadGateway).
			WithTextCode(core.ClaimsErrorExternalFailure).
			WithMetadata(map[string]any{
				"provider":    ProviderID,
				"path":        path,
				"status_code": res.StatusCode,
			})
	}

	var record recordResponse
	if err := json.Unmarshal(res.Body, &record); err != nil {
		return recordResponse{}, goerrors.Wrap(err, goerrors.CategoryExternal, "freshdesk: decode response").
			WithCode(http.StatusBadGateway).
			WithTextCode(core.ClaimsErrorExternalFailure).
			WithMetadata(map[string]any{"provider": ProviderID, "path": path})
	}
	if record.ID.String() == "" {
		return recordResponse{}, goerrors.New("freshdesk: response missing record id", goerrors.CategoryExternal).
			WithCode(http.StatusBadGateway).
			WithTextCode(core.ClaimsErrorExternalFailure).
			WithMetadata(map[string]any{"provider": ProviderID, "path": path})
	}
	return record, nil
}

// Freshdesk uses basic auth with the API key as username and a
// placeholder password.
func (c *Client) authorizationHeader() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.apiKey+":X"))
}

func freshdeskBadInput(message string, metadata map[string]any) error {
	err := goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ClaimsErrorBadInput)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

var _ core.CRMClient = (*Client)(nil)
