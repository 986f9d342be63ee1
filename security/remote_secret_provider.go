package security

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-warranty/core"
)

type RemoteEncryptRequest struct {
	KeyID      string
	KeyVersion int
	Plaintext  []byte
	Metadata   map[string]string
}

type RemoteEncryptResponse struct {
	Ciphertext []byte
}

type RemoteDecryptRequest struct {
	KeyID      string
	KeyVersion int
	Ciphertext []byte
	Metadata   map[string]string
}

type RemoteDecryptResponse struct {
	Plaintext []byte
}

// RemoteKeyClient is the seam for externally managed keys (cloud KMS,
// Vault transit, or an in-house key service). The provider never sees
// key material; the client performs the cryptography remotely.
type RemoteKeyClient interface {
	Encrypt(ctx context.Context, req RemoteEncryptRequest) (RemoteEncryptResponse, error)
	Decrypt(ctx context.Context, req RemoteDecryptRequest) (RemoteDecryptResponse, error)
}

type RemoteOption func(*RemoteSecretProvider)

type remoteKeyRef struct {
	KeyID   string
	Version int
}

func (r remoteKeyRef) id() string {
	return fmt.Sprintf("%s:%d", r.KeyID, r.Version)
}

func newRemoteKeyRef(keyID string, version int) (remoteKeyRef, error) {
	trimmed := strings.TrimSpace(keyID)
	if trimmed == "" {
		return remoteKeyRef{}, fmt.Errorf("security: remote key id is required")
	}
	if version <= 0 {
		return remoteKeyRef{}, fmt.Errorf("security: remote key version must be positive")
	}
	return remoteKeyRef{KeyID: trimmed, Version: version}, nil
}

// RemoteSecretProvider wraps a RemoteKeyClient as a core.SecretProvider.
// Encryption always uses the active key; decryption additionally
// accepts compatibility keys so rotation does not strand old rows.
type RemoteSecretProvider struct {
	client          RemoteKeyClient
	active          remoteKeyRef
	decryptAllowed  map[string]remoteKeyRef
	rotationWindows map[string]KeyRotationWindow
	metadata        map[string]string
	now             func() time.Time
}

func NewRemoteSecretProvider(client RemoteKeyClient, keyID string, version int, opts ...RemoteOption) (*RemoteSecretProvider, error) {
	ref, err := newRemoteKeyRef(keyID, version)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("security: remote key client is required")
	}
	provider := &RemoteSecretProvider{
		client:          client,
		active:          ref,
		decryptAllowed:  map[string]remoteKeyRef{ref.id(): ref},
		rotationWindows: map[string]KeyRotationWindow{},
		metadata:        map[string]string{},
		now:             func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(provider)
	}
	if provider.now == nil {
		provider.now = func() time.Time { return time.Now().UTC() }
	}
	return provider, nil
}

func WithRemoteDecryptCompatibilityKey(keyID string, version int) RemoteOption {
	return func(provider *RemoteSecretProvider) {
		ref, err := newRemoteKeyRef(keyID, version)
		if err != nil {
			return
		}
		provider.decryptAllowed[ref.id()] = ref
	}
}

func WithRemoteRotationWindow(keyID string, version int, window KeyRotationWindow) RemoteOption {
	return func(provider *RemoteSecretProvider) {
		ref, err := newRemoteKeyRef(keyID, version)
		if err != nil {
			return
		}
		provider.rotationWindows[ref.id()] = window
	}
}

func WithRemoteMetadata(metadata map[string]string) RemoteOption {
	return func(provider *RemoteSecretProvider) {
		for key, value := range metadata {
			provider.metadata[key] = value
		}
	}
}

func WithRemoteClock(now func() time.Time) RemoteOption {
	return func(provider *RemoteSecretProvider) {
		if now != nil {
			provider.now = now
		}
	}
}

func (p *RemoteSecretProvider) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("security: secret provider is nil")
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("security: plaintext is required")
	}
	if err := p.checkRotation(p.active); err != nil {
		return nil, err
	}
	response, err := p.client.Encrypt(ctx, RemoteEncryptRequest{
		KeyID:      p.active.KeyID,
		KeyVersion: p.active.Version,
		Plaintext:  plaintext,
		Metadata:   p.metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("security: remote encrypt failed: %w", err)
	}
	if len(response.Ciphertext) == 0 {
		return nil, fmt.Errorf("security: remote encrypt returned empty ciphertext")
	}
	return encodeEnvelope(envelope{
		KeyID:      p.active.KeyID,
		Version:    p.active.Version,
		Algorithm:  envelopeAlgorithmRemote,
		Ciphertext: base64.StdEncoding.EncodeToString(response.Ciphertext),
		Metadata:   p.metadata,
	})
}

func (p *RemoteSecretProvider) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("security: secret provider is nil")
	}
	if len(ciphertext) == 0 {
		return nil, fmt.Errorf("security: ciphertext is required")
	}
	parsed, _, err := decodeEnvelope(ciphertext, false)
	if err != nil {
		return nil, err
	}
	ref, err := newRemoteKeyRef(parsed.KeyID, parsed.Version)
	if err != nil {
		return nil, err
	}
	if _, ok := p.decryptAllowed[ref.id()]; !ok {
		return nil, fmt.Errorf("security: key %s is not allowed to decrypt", ref.id())
	}
	if err := p.checkRotation(ref); err != nil {
		return nil, err
	}
	sealed, err := base64.StdEncoding.DecodeString(parsed.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("security: decode ciphertext payload: %w", err)
	}
	response, err := p.client.Decrypt(ctx, RemoteDecryptRequest{
		KeyID:      ref.KeyID,
		KeyVersion: ref.Version,
		Ciphertext: sealed,
		Metadata:   parsed.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("security: remote decrypt failed: %w", err)
	}
	return response.Plaintext, nil
}

func (p *RemoteSecretProvider) Metadata() (string, int) {
	if p == nil {
		return "", 0
	}
	return p.active.KeyID, p.active.Version
}

func (p *RemoteSecretProvider) checkRotation(ref remoteKeyRef) error {
	window, ok := p.rotationWindows[ref.id()]
	if !ok {
		return nil
	}
	if !window.Allows(p.now()) {
		return fmt.Errorf("security: key %s is outside its rotation window", ref.id())
	}
	return nil
}

var _ core.SecretProvider = (*RemoteSecretProvider)(nil)
