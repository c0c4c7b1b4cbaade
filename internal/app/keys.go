package app

import (
	"errors"
	"strings"

	"golang.org/x/crypto/argon2"
)

// stateKeySalt domain-separates the OAuth state key from other uses of the JWT secret.
var stateKeySalt = []byte("authapp/oauth-state/v1")

// Argon2id cost for the state key. It runs once per process, so the memory cost can be high.
const (
	stateKeyTime    = 2
	stateKeyMemory  = 64 * 1024 // KiB
	stateKeyThreads = 4
	stateKeyLength  = 32 // AES-256
)

// DeriveStateKey derives the AES key for OAuth state parameters from the configured JWT secret.
// The derivation is deterministic so every replica accepts state minted by any other.
func DeriveStateKey(secret string) ([]byte, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("state key: jwt secret is required")
	}
	return argon2.IDKey([]byte(secret), stateKeySalt, stateKeyTime, stateKeyMemory, stateKeyThreads, stateKeyLength), nil
}
