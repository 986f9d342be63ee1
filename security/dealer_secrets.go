package security

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-warranty/core"
)

// DealerSecretSource holds per-dealer signing secrets at rest in
// envelope form and decrypts them on demand for signature checks.
type DealerSecretSource struct {
	provider core.SecretProvider

	mu     sync.RWMutex
	sealed map[string][]byte
}

func NewDealerSecretSource(provider core.SecretProvider) (*DealerSecretSource, error) {
	if provider == nil {
		return nil, fmt.Errorf("security: secret provider is required")
	}
	return &DealerSecretSource{
		provider: provider,
		sealed:   map[string][]byte{},
	}, nil
}

// Seal encrypts and stores the signing secret for a dealer,
// replacing any previous value.
func (s *DealerSecretSource) Seal(ctx context.Context, dealerID string, secret []byte) error {
	if s == nil {
		return fmt.Errorf("security: dealer secret source is nil")
	}
	id := strings.TrimSpace(dealerID)
	if id == "" {
		return fmt.Errorf("security: dealer id is required")
	}
	if len(secret) == 0 {
		return fmt.Errorf("security: dealer secret is required")
	}
	ciphertext, err := s.provider.Encrypt(ctx, secret)
	if err != nil {
		return fmt.Errorf("security: seal dealer secret: %w", err)
	}
	s.mu.Lock()
	s.sealed[id] = ciphertext
	s.mu.Unlock()
	return nil
}

// Import registers an already encrypted secret, as loaded from
// configuration or a database row.
func (s *DealerSecretSource) Import(dealerID string, ciphertext []byte) error {
	if s == nil {
		return fmt.Errorf("security: dealer secret source is nil")
	}
	id := strings.TrimSpace(dealerID)
	if id == "" {
		return fmt.Errorf("security: dealer id is required")
	}
	if len(ciphertext) == 0 {
		return fmt.Errorf("security: dealer ciphertext is required")
	}
	stored := make([]byte, len(ciphertext))
	copy(stored, ciphertext)
	s.mu.Lock()
	s.sealed[id] = stored
	s.mu.Unlock()
	return nil
}

// Lookup returns the plaintext signing secret for a dealer.
func (s *DealerSecretSource) Lookup(ctx context.Context, dealerID string) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("security: dealer secret source is nil")
	}
	id := strings.TrimSpace(dealerID)
	if id == "" {
		return nil, fmt.Errorf("security: dealer id is required")
	}
	s.mu.RLock()
	ciphertext, ok := s.sealed[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("security: no signing secret for dealer %q", id)
	}
	secret, err := s.provider.Decrypt(ctx, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("security: unseal dealer secret: %w", err)
	}
	return secret, nil
}
