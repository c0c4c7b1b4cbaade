package app

import (
	"strings"
	"time"

	"github.com/charlesng35/authapp/internal/auth"
	"github.com/charlesng35/authapp/internal/auth/providers"
	"github.com/charlesng35/authapp/internal/models"
)

// TokenConfig converts the jwt section into token codec parameters. Non-positive
// lifetimes fall back to the codec defaults.
func (c *Config) TokenConfig() auth.TokenConfig {
	return auth.TokenConfig{
		Secret:     c.JWT.Secret,
		AccessTTL:  secondsToDuration(c.JWT.Expiration),
		RenewalTTL: secondsToDuration(c.JWT.RefreshExpiration),
	}
}

func secondsToDuration(seconds int64) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// ProviderConfigs converts the oauth section into provider registrations. A missing
// redirect URI defaults to <server.base_url>/login/oauth2/code/<provider>.
func (c *Config) ProviderConfigs() map[models.Provider]providers.Config {
	return map[models.Provider]providers.Config{
		models.ProviderGoogle: c.providerConfig(models.ProviderGoogle, c.OAuth.Google),
		models.ProviderNaver:  c.providerConfig(models.ProviderNaver, c.OAuth.Naver),
	}
}

func (c *Config) providerConfig(kind models.Provider, client OAuthClientConfig) providers.Config {
	redirect := strings.TrimSpace(client.RedirectURI)
	if redirect == "" {
		redirect = strings.TrimRight(c.Server.BaseURL, "/") + "/login/oauth2/code/" + kind.String()
	}
	return providers.Config{
		ClientID:     strings.TrimSpace(client.ClientID),
		ClientSecret: strings.TrimSpace(client.ClientSecret),
		RedirectURL:  redirect,
		Scopes:       client.Scopes,
		AuthURL:      client.AuthURL,
		TokenURL:     client.TokenURL,
		UserInfoURL:  client.UserInfoURL,
	}
}
