package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/charlesng35/authapp/internal/models"
)

const (
	// DefaultAccessTokenTTL is the published access token lifetime (86400 s).
	DefaultAccessTokenTTL = 24 * time.Hour
	// DefaultRenewalTokenTTL is the published renewal token lifetime (604800 s).
	DefaultRenewalTokenTTL = 7 * 24 * time.Hour

	minSecretBytes = 32
	bearerPrefix   = "Bearer "

	tokenTypeAccess  = "access"
	tokenTypeRenewal = "refresh"
)

// Parse failures. Callers distinguish them with errors.Is.
var (
	ErrTokenEmpty       = errors.New("token: empty")
	ErrTokenExpired     = errors.New("token: expired")
	ErrTokenMalformed   = errors.New("token: malformed")
	ErrTokenUnsupported = errors.New("token: unsupported signing algorithm")
	ErrTokenSignature   = errors.New("token: invalid signature")
)

// TokenConfig bundles the configuration required to build a TokenCodec.
type TokenConfig struct {
	// Secret is the base64 encoded HMAC key.
	Secret     string
	AccessTTL  time.Duration
	RenewalTTL time.Duration
	Clock      func() time.Time
}

// Claims is the claim bag carried by access and renewal tokens. Subject is the account email.
type Claims struct {
	UserID   uint64 `json:"userId"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	Provider string `json:"provider,omitempty"`
	Type     string `json:"type"`
	jwt.RegisteredClaims
}

// IsAccess reports whether the claims were minted as an access token.
func (c *Claims) IsAccess() bool { return c != nil && c.Type == tokenTypeAccess }

// TokenCodec mints and verifies HS256 tokens with a key decoded once at construction.
type TokenCodec struct {
	key        []byte
	accessTTL  time.Duration
	renewalTTL time.Duration
	now        func() time.Time
}

// NewTokenCodec decodes the signing key and applies lifetime defaults.
func NewTokenCodec(cfg TokenConfig) (*TokenCodec, error) {
	key, err := decodeSecret(cfg.Secret)
	if err != nil {
		return nil, err
	}

	accessTTL := cfg.AccessTTL
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	renewalTTL := cfg.RenewalTTL
	if renewalTTL <= 0 {
		renewalTTL = DefaultRenewalTokenTTL
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &TokenCodec{
		key:        key,
		accessTTL:  accessTTL,
		renewalTTL: renewalTTL,
		now:        now,
	}, nil
}

func decodeSecret(secret string) ([]byte, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("token: secret must be provided")
	}

	var (
		key []byte
		err error
	)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if key, err = enc.DecodeString(secret); err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("token: secret is not valid base64: %w", err)
	}
	if len(key) < minSecretBytes {
		return nil, fmt.Errorf("token: secret must decode to at least %d bytes (got %d)", minSecretBytes, len(key))
	}
	return key, nil
}

// SecretLength is the decoded signing key size in bytes.
func (c *TokenCodec) SecretLength() int { return len(c.key) }

// AccessTTL is the lifetime of minted access tokens.
func (c *TokenCodec) AccessTTL() time.Duration { return c.accessTTL }

// RenewalTTL is the lifetime of minted renewal tokens.
func (c *TokenCodec) RenewalTTL() time.Duration { return c.renewalTTL }

// Now exposes the codec clock so collaborators share one notion of time.
func (c *TokenCodec) Now() time.Time { return c.now() }

// IssueAccess mints an access token carrying the account id, email, role and provider.
func (c *TokenCodec) IssueAccess(account *models.Account) (string, error) {
	if account == nil || account.ID == 0 || account.Email == "" {
		return "", errors.New("token: account with id and email is required")
	}
	claims := &Claims{
		UserID:   account.ID,
		Email:    account.Email,
		Role:     string(account.Role),
		Provider: account.ProviderLabel(),
		Type:     tokenTypeAccess,
	}
	token, _, err := c.sign(account.Email, claims, c.accessTTL)
	return token, err
}

// IssueRenewal mints a renewal token and returns its expiry.
func (c *TokenCodec) IssueRenewal(account *models.Account) (string, time.Time, error) {
	if account == nil || account.ID == 0 || account.Email == "" {
		return "", time.Time{}, errors.New("token: account with id and email is required")
	}
	claims := &Claims{
		UserID: account.ID,
		Type:   tokenTypeRenewal,
	}
	return c.sign(account.Email, claims, c.renewalTTL)
}

func (c *TokenCodec) sign(subject string, claims *Claims, ttl time.Duration) (string, time.Time, error) {
	// NumericDate keeps whole seconds, so the lifetime is measured from the truncated iat.
	now := c.now().Truncate(time.Second)
	expiresAt := now.Add(ttl)

	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   subject,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token: sign: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies the token and returns its claims, or one of the ErrToken* kinds.
func (c *TokenCodec) Parse(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, ErrTokenEmpty
	}

	parser := jwt.NewParser(jwt.WithTimeFunc(c.now), jwt.WithExpirationRequired())

	var claims Claims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method == nil || token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrTokenUnsupported
		}
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenUnsupported
		}
		return c.key, nil
	})
	if err != nil {
		return nil, classifyParseError(err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenMalformed)
	}
	return &claims, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, ErrTokenUnsupported):
		return ErrTokenUnsupported
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrTokenSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrTokenUnsupported
	default:
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}

// Validate reports whether the token verifies, is unexpired and belongs to expectedSubject.
func (c *TokenCodec) Validate(tokenString, expectedSubject string) bool {
	claims, err := c.Parse(tokenString)
	if err != nil {
		return false
	}
	return claims.Subject == expectedSubject
}

// ExtractBearer returns the token from an "Authorization: Bearer <token>" header value.
// The prefix is matched case-sensitively.
func ExtractBearer(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", false
	}
	return token, true
}
