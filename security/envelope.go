package security

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	envelopePrefix          = "warranty.secret.v1:"
	envelopeAlgorithmAESGCM = "aes-256-gcm"
	envelopeAlgorithmRemote = "remote-kms"
)

// envelope is the serialized form every SecretProvider in this package
// emits. The prefix lets operators spot encrypted values in config
// dumps and database rows without attempting to parse them.
type envelope struct {
	KeyID      string            `json:"kid"`
	Version    int               `json:"ver"`
	Algorithm  string            `json:"alg"`
	Nonce      string            `json:"nonce,omitempty"`
	Ciphertext string            `json:"ciphertext"`
	Metadata   map[string]string `json:"meta,omitempty"`
}

type EnvelopeMetadata struct {
	HasPrefix bool
	KeyID     string
	Version   int
	Algorithm string
}

// ParseEnvelopeMetadata inspects a ciphertext without decrypting it.
// Useful when auditing which key version protects a stored secret.
func ParseEnvelopeMetadata(ciphertext []byte, allowMissingPrefix bool) (EnvelopeMetadata, error) {
	env, hasPrefix, err := decodeEnvelope(ciphertext, allowMissingPrefix)
	if err != nil {
		return EnvelopeMetadata{}, err
	}
	return EnvelopeMetadata{
		HasPrefix: hasPrefix,
		KeyID:     env.KeyID,
		Version:   env.Version,
		Algorithm: env.Algorithm,
	}, nil
}

// IsEnvelope reports whether the value carries the warranty secret
// prefix. Plaintext secrets migrated from older deployments will not.
func IsEnvelope(value []byte) bool {
	return strings.HasPrefix(string(value), envelopePrefix)
}

func encodeEnvelope(env envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("security: encode envelope: %w", err)
	}
	return append([]byte(envelopePrefix), data...), nil
}

func decodeEnvelope(ciphertext []byte, allowMissingPrefix bool) (envelope, bool, error) {
	payload := string(ciphertext)
	hasPrefix := strings.HasPrefix(payload, envelopePrefix)
	if hasPrefix {
		payload = strings.TrimPrefix(payload, envelopePrefix)
	} else if !allowMissingPrefix {
		return envelope{}, false, fmt.Errorf("security: missing envelope prefix")
	}
	var parsed envelope
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return envelope{}, hasPrefix, fmt.Errorf("security: decode envelope: %w", err)
	}
	if strings.TrimSpace(parsed.Ciphertext) == "" {
		return envelope{}, hasPrefix, fmt.Errorf("security: envelope ciphertext is empty")
	}
	return parsed, hasPrefix, nil
}
