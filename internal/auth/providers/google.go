package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/charlesng35/authapp/internal/models"
)

const (
	googleIssuer      = "https://accounts.google.com"
	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	googleJWKSURL     = "https://www.googleapis.com/oauth2/v3/certs"
)

type googleProvider struct {
	oauthConfig *oauth2.Config
	oidc        *oidc.Provider
	verifier    *oidc.IDTokenVerifier
	opts        Options
}

// NewGoogle builds the Google provider. Provider metadata is static so no discovery request is made.
func NewGoogle(cfg Config, opts Options) (Provider, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("google provider: client id is required")
	}
	if strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, errors.New("google provider: client secret is required")
	}
	if strings.TrimSpace(cfg.RedirectURL) == "" {
		return nil, errors.New("google provider: redirect url is required")
	}
	opts = opts.withDefaults()

	endpoint := google.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	providerConfig := &oidc.ProviderConfig{
		IssuerURL:   firstNonEmpty(cfg.IssuerURL, googleIssuer),
		AuthURL:     endpoint.AuthURL,
		TokenURL:    endpoint.TokenURL,
		UserInfoURL: firstNonEmpty(cfg.UserInfoURL, googleUserInfoURL),
		JWKSURL:     firstNonEmpty(cfg.JWKSURL, googleJWKSURL),
		Algorithms:  []string{oidc.RS256},
	}
	// The key set fetches lazily with this context, so it must outlive any request.
	issuer := providerConfig.NewProvider(oidc.ClientContext(context.Background(), opts.HTTPClient))

	return &googleProvider{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
		},
		oidc:     issuer,
		verifier: issuer.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		opts:     opts,
	}, nil
}

func (p *googleProvider) Kind() models.Provider { return models.ProviderGoogle }

func (p *googleProvider) DisplayName() string { return "Google" }

func (p *googleProvider) AuthCodeURL(req AuthRequest) string {
	authOpts := []oauth2.AuthCodeOption{oauth2.AccessTypeOnline}
	if req.Nonce != "" {
		authOpts = append(authOpts, oidc.Nonce(req.Nonce))
	}
	if req.PKCEChallenge != "" {
		authOpts = append(authOpts,
			oauth2.SetAuthURLParam("code_challenge", req.PKCEChallenge),
			oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		)
	}
	return p.oauthConfig.AuthCodeURL(req.State, authOpts...)
}

// Exchange redeems the code, verifies the ID token when one is returned and merges the
// UserInfo claims over it.
func (p *googleProvider) Exchange(ctx context.Context, req CallbackRequest) (map[string]any, error) {
	if strings.TrimSpace(req.Code) == "" {
		return nil, errors.New("google provider: authorization code missing")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(oidc.ClientContext(ctx, p.opts.HTTPClient), p.opts.Timeout)
	defer cancel()

	var exchangeOpts []oauth2.AuthCodeOption
	if req.PKCEVerifier != "" {
		exchangeOpts = append(exchangeOpts, oauth2.VerifierOption(req.PKCEVerifier))
	}
	token, err := p.oauthConfig.Exchange(ctx, req.Code, exchangeOpts...)
	if err != nil {
		return nil, fmt.Errorf("google provider: exchange failed: %w", err)
	}

	attrs := map[string]any{}
	if rawIDToken, ok := token.Extra("id_token").(string); ok && rawIDToken != "" {
		idToken, err := p.verifier.Verify(ctx, rawIDToken)
		if err != nil {
			return nil, fmt.Errorf("google provider: verify id token: %w", err)
		}
		if req.ExpectedNonce != "" && idToken.Nonce != req.ExpectedNonce {
			return nil, errors.New("google provider: nonce mismatch")
		}
		if err := idToken.Claims(&attrs); err != nil {
			return nil, fmt.Errorf("google provider: decode id token claims: %w", err)
		}
	}

	info, err := p.oidc.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		if len(attrs) == 0 {
			return nil, fmt.Errorf("google provider: fetch userinfo: %w", err)
		}
		return attrs, nil
	}
	if sub, ok := attrs["sub"].(string); ok && sub != info.Subject {
		return nil, errors.New("google provider: userinfo subject does not match id token")
	}

	var claims map[string]any
	if err := info.Claims(&claims); err != nil {
		return nil, fmt.Errorf("google provider: decode userinfo: %w", err)
	}
	for key, value := range claims {
		attrs[key] = value
	}
	return attrs, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
