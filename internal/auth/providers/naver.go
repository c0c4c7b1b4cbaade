package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/charlesng35/authapp/internal/models"
)

const (
	naverAuthURL     = "https://nid.naver.com/oauth2.0/authorize"
	naverTokenURL    = "https://nid.naver.com/oauth2.0/token"
	naverUserInfoURL = "https://openapi.naver.com/v1/nid/me"
)

type naverProvider struct {
	oauthConfig *oauth2.Config
	userInfoURL string
	opts        Options
}

// NewNaver builds the Naver provider. Naver is plain OAuth 2.0 so the profile comes from its REST API.
func NewNaver(cfg Config, opts Options) (Provider, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("naver provider: client id is required")
	}
	if strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, errors.New("naver provider: client secret is required")
	}
	if strings.TrimSpace(cfg.RedirectURL) == "" {
		return nil, errors.New("naver provider: redirect url is required")
	}
	opts = opts.withDefaults()

	return &naverProvider{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   firstNonEmpty(cfg.AuthURL, naverAuthURL),
				TokenURL:  firstNonEmpty(cfg.TokenURL, naverTokenURL),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		userInfoURL: firstNonEmpty(cfg.UserInfoURL, naverUserInfoURL),
		opts:        opts,
	}, nil
}

func (p *naverProvider) Kind() models.Provider { return models.ProviderNaver }

func (p *naverProvider) DisplayName() string { return "Naver" }

// AuthCodeURL ignores the nonce and PKCE challenge; Naver supports neither.
func (p *naverProvider) AuthCodeURL(req AuthRequest) string {
	return p.oauthConfig.AuthCodeURL(req.State)
}

func (p *naverProvider) Exchange(ctx context.Context, req CallbackRequest) (map[string]any, error) {
	if strings.TrimSpace(req.Code) == "" {
		return nil, errors.New("naver provider: authorization code missing")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(context.WithValue(ctx, oauth2.HTTPClient, p.opts.HTTPClient), p.opts.Timeout)
	defer cancel()

	token, err := p.oauthConfig.Exchange(ctx, req.Code)
	if err != nil {
		return nil, fmt.Errorf("naver provider: exchange failed: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("naver provider: build profile request: %w", err)
	}
	resp, err := p.oauthConfig.Client(ctx, token).Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("naver provider: fetch profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("naver provider: profile request returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var attrs map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&attrs); err != nil {
		return nil, fmt.Errorf("naver provider: decode profile: %w", err)
	}
	if code, ok := attrs["resultcode"].(string); ok && code != "00" {
		return nil, fmt.Errorf("naver provider: profile request failed: %s", stringValue(attrs, "message"))
	}
	return attrs, nil
}
