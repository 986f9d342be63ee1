package postmark

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-warranty/core"
	"github.com/goliatone/go-warranty/transport"
)

const ProviderID = "postmark"

const (
	DefaultBaseURL       = "https://api.postmarkapp.com"
	defaultMessageStream = "outbound"
	defaultCallTimeout   = 15 * time.Second
	emailPath            = "/email"
)

type Config struct {
	BaseURL       string
	ServerToken   string
	From          string
	MessageStream string
	Timeout       time.Duration
	Transport     core.TransportAdapter
}

func DefaultConfig() Config {
	return Config{
		BaseURL:       DefaultBaseURL,
		MessageStream: defaultMessageStream,
		Timeout:       defaultCallTimeout,
	}
}

// Client delivers claim confirmation emails through the Postmark API.
type Client struct {
	baseURL       string
	serverToken   string
	from          string
	messageStream string
	timeout       time.Duration
	transport     core.TransportAdapter
}

func New(cfg Config) (*Client, error) {
	defaults := DefaultConfig()
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.ServerToken = strings.TrimSpace(cfg.ServerToken)
	cfg.From = strings.TrimSpace(cfg.From)
	cfg.MessageStream = strings.TrimSpace(cfg.MessageStream)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.ServerToken == "" {
		return nil, fmt.Errorf("postmark: server token is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("postmark: sender address is required")
	}
	if cfg.MessageStream == "" {
		cfg.MessageStream = defaults.MessageStream
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.Transport == nil {
		cfg.Transport = transport.NewRESTAdapter(nil)
	}
	return &Client{
		baseURL:       cfg.BaseURL,
		serverToken:   cfg.ServerToken,
		from:          cfg.From,
		messageStream: cfg.MessageStream,
		timeout:       cfg.Timeout,
		transport:     cfg.Transport,
	}, nil
}

type emailPayload struct {
	From          string `json:"From"`
	To            string `json:"To"`
	Subject       string `json:"Subject"`
	TextBody      string `json:"TextBody"`
	MessageStream string `json:"MessageStream"`
}

type emailResponse struct {
	MessageID string `json:"MessageID"`
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
}

func (c *Client) SendConfirmation(ctx context.Context, email core.ConfirmationEmail) (core.MailResult, error) {
	if c == nil || c.transport == nil {
		return core.MailResult{}, fmt.Errorf("postmark: client is not configured")
	}
	recipient := strings.TrimSpace(email.Recipient)
	if recipient == "" {
		return core.MailResult{}, goerrors.New("postmark: recipient is required", goerrors.CategoryBadInput).
			WithCode(http.StatusBadRequest).
			WithTextCode(core.ClaimsErrorBadInput)
	}
	if email.ClaimNumber <= 0 {
		return core.MailResult{}, goerrors.New("postmark: claim number is required", goerrors.CategoryBadInput).
			WithCode(http.StatusBadRequest).
			WithTextCode(core.ClaimsErrorBadInput)
	}

	subject := strings.TrimSpace(email.Subject)
	if subject == "" {
		subject = fmt.Sprintf("Your warranty claim #%d", email.ClaimNumber)
	}
	body, err := json.Marshal(emailPayload{
		From:          c.from,
		To:            recipient,
		Subject:       subject,
		TextBody:      confirmationText(email.ClaimNumber),
		MessageStream: c.messageStream,
	})
	if err != nil {
		return core.MailResult{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "postmark: encode email").
			WithCode(http.StatusBadRequest).
			WithTextCode(core.ClaimsErrorBadInput)
	}

	res, err := c.transport.Do(ctx, core.TransportRequest{
		Method: http.MethodPost,
		URL:    c.baseURL + emailPath,
		Headers: map[string]string{
			"X-Postmark-Server-Token": c.serverToken,
			"Content-Type":            "application/json",
			"Accept":                  "application/json",
		},
		Body:    body,
		Timeout: c.timeout,
		Metadata: map[string]any{
			"operation":    "send_confirmation",
			"claim_number": email.ClaimNumber,
		},
	})
	if err != nil {
		return core.MailResult{}, goerrors.Wrap(err, goerrors.CategoryExternal, "postmark: request failed").
			WithCode(http.StatusBadGateway).
			WithTextCode(core.ClaimsErrorExternalFailure).
			WithMetadata(map[string]any{"provider": ProviderID})
	}
	if res.StatusCode == http.StatusTooManyRequests {
		return core.MailResult{}, goerrors.New("postmark: rate limited", goerrors.CategoryRateLimit).
			WithCode(http.StatusTooManyRequests).
			WithTextCode(core.ClaimsErrorRateLimited).
			WithMetadata(map[string]any{"provider": ProviderID})
	}

	var decoded emailResponse
	if len(res.Body) > 0 {
		if err := json.Unmarshal(res.Body, &decoded); err != nil {
			return core.MailResult{}, goerrors.Wrap(err, goerrors.CategoryExternal, "postmark: decode response").
				WithCode(http.StatusBadGateway).
				WithTextCode(core.ClaimsErrorExternalFailure).
				WithMetadata(map[string]any{"provider": ProviderID, "status_code": res.StatusCode})
		}
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices || decoded.ErrorCode != 0 {
		message := strings.TrimSpace(decoded.Message)
		if message == "" {
			message = fmt.Sprintf("postmark: unexpected status %d", res.StatusCode)
		}
		return core.MailResult{}, goerrors.New(message, goerrors.CategoryExternal).
			WithCode(http.StatusBadGateway).
			WithTextCode(core.ClaimsErrorExternalFailure).
			WithMetadata(map[string]any{
				"provider":    ProviderID,
				"status_code": res.StatusCode,
				"error_code":  decoded.ErrorCode,
			})
	}

	return core.MailResult{
		MessageID: decoded.MessageID,
		Metadata:  map[string]any{"provider": ProviderID, "stream": c.messageStream},
	}, nil
}

func confirmationText(claimNumber int64) string {
	return fmt.Sprintf(
		"Your warranty claim was received and assigned claim number %d.\n"+
			"Keep this number for any follow-up with your dealer.\n",
		claimNumber,
	)
}

var _ core.Mailer = (*Client)(nil)
