package intake

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-warranty/core"
)

const (
	defaultSignatureHeader = "X-Signature"
	defaultTimestampHeader = "X-Timestamp"
	defaultSignatureSkew   = 5 * time.Minute
)

// SecretLookup resolves the signing secret for a dealer. Backed by
// security.DealerSecretSource in production wiring.
type SecretLookup func(ctx context.Context, dealerID string) ([]byte, error)

type HMACVerifierConfig struct {
	SignatureHeader string
	TimestampHeader string
	MaxSkew         time.Duration
	Secrets         SecretLookup
}

// HMACVerifier authenticates dealer submissions by checking an
// HMAC-SHA256 signature over the request timestamp and body. The
// signed payload is "<timestamp>.<body>" and the signature travels
// hex encoded in the signature header.
type HMACVerifier struct {
	config HMACVerifierConfig
	now    func() time.Time
}

func NewHMACVerifier(cfg HMACVerifierConfig) (*HMACVerifier, error) {
	if cfg.Secrets == nil {
		return nil, intakeInternal("intake: hmac verifier requires a secret lookup", nil)
	}
	signatureHeader := strings.TrimSpace(cfg.SignatureHeader)
	if signatureHeader == "" {
		signatureHeader = defaultSignatureHeader
	}
	timestampHeader := strings.TrimSpace(cfg.TimestampHeader)
	if timestampHeader == "" {
		timestampHeader = defaultTimestampHeader
	}
	skew := cfg.MaxSkew
	if skew <= 0 {
		skew = defaultSignatureSkew
	}
	return &HMACVerifier{
		config: HMACVerifierConfig{
			SignatureHeader: signatureHeader,
			TimestampHeader: timestampHeader,
			MaxSkew:         skew,
			Secrets:         cfg.Secrets,
		},
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithNow overrides the verifier clock. Test hook.
func (v *HMACVerifier) WithNow(now func() time.Time) *HMACVerifier {
	if v != nil && now != nil {
		v.now = now
	}
	return v
}

func (v *HMACVerifier) Verify(ctx context.Context, req core.IntakeRequest) error {
	if v == nil {
		return intakeInternal("intake: hmac verifier is nil", nil)
	}
	dealerID := strings.TrimSpace(req.DealerID)
	if dealerID == "" {
		return intakeUnauthorized("intake: dealer id is required for signature verification", nil)
	}

	signature := strings.TrimSpace(headerValue(req.Headers, v.config.SignatureHeader))
	if signature == "" {
		return intakeUnauthorized("intake: missing request signature", map[string]any{
			"dealer_id": dealerID,
			"header":    v.config.SignatureHeader,
		})
	}
	timestamp := strings.TrimSpace(headerValue(req.Headers, v.config.TimestampHeader))
	if timestamp == "" {
		return intakeUnauthorized("intake: missing request timestamp", map[string]any{
			"dealer_id": dealerID,
			"header":    v.config.TimestampHeader,
		})
	}

	issuedAt, err := parseSignatureTimestamp(timestamp)
	if err != nil {
		return intakeUnauthorized("intake: malformed request timestamp", map[string]any{
			"dealer_id": dealerID,
			"timestamp": timestamp,
		})
	}
	if drift := v.now().Sub(issuedAt); drift > v.config.MaxSkew || drift < -v.config.MaxSkew {
		return intakeUnauthorized("intake: request timestamp outside allowed skew", map[string]any{
			"dealer_id": dealerID,
			"skew":      v.config.MaxSkew.String(),
		})
	}

	secret, err := v.config.Secrets(ctx, dealerID)
	if err != nil {
		return intakeUnauthorized("intake: unknown signing dealer", map[string]any{
			"dealer_id": dealerID,
		})
	}

	expected := SignRequest(secret, timestamp, req.Body)
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return intakeUnauthorized("intake: malformed request signature", map[string]any{
			"dealer_id": dealerID,
		})
	}
	expectedRaw, _ := hex.DecodeString(expected)
	if !hmac.Equal(provided, expectedRaw) {
		return intakeUnauthorized("intake: request signature mismatch", map[string]any{
			"dealer_id": dealerID,
		})
	}
	return nil
}

// SignRequest computes the hex HMAC-SHA256 signature clients send.
// Exported so dealer SDKs and tests share one definition.
func SignRequest(secret []byte, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func parseSignatureTimestamp(value string) (time.Time, error) {
	if unix, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("intake: unsupported timestamp format %q", value)
}

var _ Verifier = (*HMACVerifier)(nil)
