package providers

import (
	"context"
	"net/http"
	"time"

	"github.com/charlesng35/authapp/internal/models"
)

// Config holds the client registration for one provider. Endpoint fields override the
// provider's public endpoints and exist for tests and self-hosted proxies.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	AuthURL     string
	TokenURL    string
	UserInfoURL string
	IssuerURL   string
	JWKSURL     string
}

// Configured reports whether enough of the registration is present to run the flow.
func (c Config) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Options carries transport tuning shared by all providers.
type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: o.Timeout}
	}
	return o
}

// AuthRequest holds the per-login values bound into the authorization URL.
type AuthRequest struct {
	State         string
	Nonce         string
	PKCEChallenge string
}

// CallbackRequest holds the values needed to redeem an authorization code.
type CallbackRequest struct {
	Code          string
	PKCEVerifier  string
	ExpectedNonce string
}

// Provider runs the authorization-code flow against one external identity service and
// returns the raw attribute map that Extract understands.
type Provider interface {
	Kind() models.Provider
	DisplayName() string
	AuthCodeURL(req AuthRequest) string
	Exchange(ctx context.Context, req CallbackRequest) (map[string]any, error)
}
