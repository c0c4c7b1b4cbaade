package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charlesng35/authapp/pkg/crypto"
)

// DefaultStateTTL bounds how long a user may spend on the provider consent page.
const DefaultStateTTL = 10 * time.Minute

var (
	ErrStateExpired = errors.New("oauth state: expired")
	ErrStateInvalid = errors.New("oauth state: invalid")
)

// StateCodec encrypts the authorization-code flow state so the callback needs no server-side storage.
type StateCodec struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// StatePayload carries what the callback needs to finish the flow.
type StatePayload struct {
	Provider string    `json:"p"`
	Nonce    string    `json:"n"`
	Verifier string    `json:"k"`
	IssuedAt time.Time `json:"iat"`
}

// NewStateCodec constructs a StateCodec using the provided AES key and lifetime.
func NewStateCodec(key []byte, ttl time.Duration, now func() time.Time) (*StateCodec, error) {
	length := len(key)
	if length != 16 && length != 24 && length != 32 {
		return nil, fmt.Errorf("oauth state: key must be 16, 24, or 32 bytes, got %d", length)
	}
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	if now == nil {
		now = time.Now
	}
	return &StateCodec{key: key, ttl: ttl, now: now}, nil
}

// Encode encrypts the payload into an opaque state parameter.
func (c *StateCodec) Encode(payload StatePayload) (string, error) {
	payload.Provider = strings.ToLower(strings.TrimSpace(payload.Provider))
	if payload.Provider == "" {
		return "", errors.New("oauth state: provider is required")
	}
	payload.IssuedAt = c.now().UTC()

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("oauth state: marshal payload: %w", err)
	}

	encoded, err := crypto.Encrypt(raw, c.key)
	if err != nil {
		return "", fmt.Errorf("oauth state: encrypt payload: %w", err)
	}
	return encoded, nil
}

// Decode decrypts a state parameter and enforces its lifetime.
func (c *StateCodec) Decode(token string) (StatePayload, error) {
	var payload StatePayload
	if strings.TrimSpace(token) == "" {
		return payload, ErrStateInvalid
	}

	raw, err := crypto.Decrypt(token, c.key)
	if err != nil {
		return payload, ErrStateInvalid
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, ErrStateInvalid
	}
	if payload.Provider == "" || payload.IssuedAt.IsZero() {
		return payload, ErrStateInvalid
	}
	if c.now().UTC().After(payload.IssuedAt.Add(c.ttl)) {
		return payload, ErrStateExpired
	}
	return payload, nil
}

// PKCEPair is the verifier/challenge material for an S256 PKCE exchange.
type PKCEPair struct {
	Verifier  string
	Challenge string
}

// GeneratePKCE produces a PKCE verifier and its S256 challenge.
func GeneratePKCE() (PKCEPair, error) {
	verifier, err := crypto.GenerateToken(64)
	if err != nil {
		return PKCEPair{}, fmt.Errorf("pkce: generate verifier: %w", err)
	}
	sum := sha256.Sum256([]byte(verifier))
	return PKCEPair{
		Verifier:  verifier,
		Challenge: base64.RawURLEncoding.EncodeToString(sum[:]),
	}, nil
}

// GenerateNonce returns a random value bound into OIDC ID tokens.
func GenerateNonce() (string, error) {
	nonce, err := crypto.GenerateToken(24)
	if err != nil {
		return "", fmt.Errorf("oauth state: generate nonce: %w", err)
	}
	return nonce, nil
}
