// Package credential normalizes stored account credentials into usable
// bearer tokens and classifies their token family.
package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/insights-engine/internal/logging"
	"github.com/insights-engine/internal/types"
)

const (
	// encryptedPrefix marks a credential stored with AES-256-GCM
	encryptedPrefix = "enc:"
	// gcmNonceSize is the standard 12-byte GCM nonce length
	gcmNonceSize = 12
	// minPlausibleTokenLen guards the legacy base64 path against decoding
	// short garbage that happens to start with a known prefix
	minPlausibleTokenLen = 40

	platformTokenPrefix = "IGAA"
	bridgeTokenPrefix   = "EAA"
)

// Resolver decrypts and classifies stored credentials
type Resolver struct {
	key []byte
}

// NewResolver creates a resolver from the configured secret. The secret is
// padded or truncated to 32 bytes to form the AES-256 key.
func NewResolver(secret string) (*Resolver, error) {
	if secret == "" {
		return nil, fmt.Errorf("credential secret is not configured")
	}
	return &Resolver{key: deriveKey(secret)}, nil
}

// deriveKey pads or truncates the secret to exactly 32 bytes
func deriveKey(secret string) []byte {
	key := make([]byte, 32)
	copy(key, secret)
	return key
}

// Resolve normalizes a stored credential into a bearer token and its
// family. Precedence: explicit encrypted marker, known literal prefix,
// legacy bare base64, last-resort passthrough with FamilyUnknown.
func (r *Resolver) Resolve(stored string) (string, types.TokenFamily, error) {
	if stored == "" {
		return "", types.FamilyUnknown, fmt.Errorf("credential is empty")
	}

	if strings.HasPrefix(stored, encryptedPrefix) {
		token, err := r.decrypt(strings.TrimPrefix(stored, encryptedPrefix))
		if err != nil {
			// Not retryable: a credential that fails authentication
			// will fail on every attempt
			return "", types.FamilyUnknown, fmt.Errorf("credential decryption failed: %w", err)
		}
		return token, Classify(token), nil
	}

	if family := Classify(stored); family != types.FamilyUnknown {
		return stored, family, nil
	}

	// Legacy rows stored the raw token base64-encoded without a marker
	if decoded, err := base64.StdEncoding.DecodeString(stored); err == nil {
		candidate := string(decoded)
		if family := Classify(candidate); family != types.FamilyUnknown && len(candidate) >= minPlausibleTokenLen {
			return candidate, family, nil
		}
	}

	// Pass the value through unchanged so downstream calls fail with a
	// clear upstream auth error instead of a silent drop
	logging.GetGlobalLogger().Warn("credential format unrecognized, passing through")
	return stored, types.FamilyUnknown, nil
}

// Classify determines the token family from its literal prefix
func Classify(token string) types.TokenFamily {
	switch {
	case strings.HasPrefix(token, platformTokenPrefix):
		return types.FamilyPlatform
	case strings.HasPrefix(token, bridgeTokenPrefix):
		return types.FamilyBridge
	default:
		return types.FamilyUnknown
	}
}

// Encrypt seals a plaintext token for storage, producing the marked
// "enc:" + base64(nonce || ciphertext) form Resolve understands.
func (r *Resolver) Encrypt(token string) (string, error) {
	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(token), nil)
	return encryptedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// decrypt opens base64(nonce || ciphertext) with AES-256-GCM
func (r *Resolver) decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("invalid base64 payload: %w", err)
	}

	if len(raw) <= gcmNonceSize {
		return "", fmt.Errorf("payload too short: %d bytes", len(raw))
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce, ciphertext := raw[:gcmNonceSize], raw[gcmNonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("authentication failed: %w", err)
	}

	return string(plaintext), nil
}
