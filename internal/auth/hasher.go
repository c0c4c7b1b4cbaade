package auth

import "github.com/charlesng35/authapp/pkg/crypto"

// Hasher hashes and verifies account passwords.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

// BcryptHasher is the default Hasher. A zero Cost uses bcrypt's default work factor.
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(password string) (string, error) {
	if h.Cost == 0 {
		return crypto.HashPassword(password)
	}
	return crypto.HashPasswordWithCost(password, h.Cost)
}

func (h BcryptHasher) Verify(hash, password string) bool {
	if hash == "" {
		return false
	}
	return crypto.VerifyPassword(hash, password)
}
