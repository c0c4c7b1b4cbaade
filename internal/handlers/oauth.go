package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	iauth "github.com/charlesng35/authapp/internal/auth"
	"github.com/charlesng35/authapp/internal/auth/providers"
	"github.com/charlesng35/authapp/internal/models"
	appErrors "github.com/charlesng35/authapp/pkg/errors"
	"github.com/charlesng35/authapp/pkg/logger"
	"github.com/charlesng35/authapp/pkg/metrics"
	"github.com/charlesng35/authapp/pkg/response"
	appValidator "github.com/charlesng35/authapp/pkg/validator"
)

const (
	oauthSuccessPath = "/auth/callback"
	oauthFailurePath = "/login"
	oauthFailureCode = "oauth_failed"
)

// OAuthConfig holds the public addresses the provider flow redirects between.
type OAuthConfig struct {
	// FrontendURL receives the browser after the callback.
	FrontendURL string
	// BaseURL is this server's public origin, used to build absolute login URLs.
	BaseURL string
}

// OAuthHandler drives the authorization-code flow for external providers.
type OAuthHandler struct {
	registry *providers.Registry
	states   *iauth.StateCodec
	service  *iauth.Service
	frontend string
	baseURL  string
	log      *zap.Logger
}

func NewOAuthHandler(registry *providers.Registry, states *iauth.StateCodec, service *iauth.Service, cfg OAuthConfig) (*OAuthHandler, error) {
	if registry == nil || states == nil || service == nil {
		return nil, errors.New("oauth handler: registry, state codec and auth service are required")
	}
	return &OAuthHandler{
		registry: registry,
		states:   states,
		service:  service,
		frontend: strings.TrimRight(strings.TrimSpace(cfg.FrontendURL), "/"),
		baseURL:  strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		log:      logger.WithModule("oauth"),
	}, nil
}

func init() {
	// Provider ids are owned by models, so the rule is registered here.
	_ = appValidator.RegisterValidation("provider", func(fl validator.FieldLevel) bool {
		_, ok := models.ParseProvider(fl.Field().String())
		return ok
	})
}

type providerURI struct {
	Provider string `uri:"provider" json:"provider" validate:"required,provider"`
}

func providerNames() []string {
	names := make([]string, 0, len(models.SupportedProviders))
	for _, p := range models.SupportedProviders {
		names = append(names, p.String())
	}
	return names
}

func parseProviderParam(c *gin.Context) (models.Provider, bool) {
	var uri providerURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, appErrors.NewBadRequest("provider is required"))
		return "", false
	}
	if err := appValidator.ValidateStruct(uri); err != nil {
		response.Error(c, appErrors.NewBadRequest(formatValidationError(err)))
		return "", false
	}
	kind, _ := models.ParseProvider(uri.Provider)
	return kind, true
}

// GET /api/auth/oauth/:provider
func (h *OAuthHandler) LoginPath(c *gin.Context) {
	kind, ok := parseProviderParam(c)
	if !ok {
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, kind.String()+" login url", providers.LoginPath(kind))
}

// GET /api/oauth/url/:provider
func (h *OAuthHandler) URL(c *gin.Context) {
	kind, ok := parseProviderParam(c)
	if !ok {
		return
	}
	path := providers.LoginPath(kind)
	response.Success(c, http.StatusOK, gin.H{
		"provider": kind,
		"loginUrl": path,
		"url":      h.baseURL + path,
	})
}

// GET /api/oauth/providers
func (h *OAuthHandler) Providers(c *gin.Context) {
	response.Success(c, http.StatusOK, h.registry.Catalogue())
}

// GET /oauth2/authorization/:provider
func (h *OAuthHandler) Begin(c *gin.Context) {
	provider, err := h.registry.Get(c.Param("provider"))
	if err != nil {
		h.log.Debug("oauth kickoff rejected", zap.String("provider", c.Param("provider")), zap.Error(err))
		h.redirectFailure(c, "provider is not available")
		return
	}

	pkce, err := iauth.GeneratePKCE()
	if err != nil {
		h.log.Error("generate pkce", zap.Error(err))
		h.redirectFailure(c, "failed to start login")
		return
	}
	nonce, err := iauth.GenerateNonce()
	if err != nil {
		h.log.Error("generate nonce", zap.Error(err))
		h.redirectFailure(c, "failed to start login")
		return
	}
	state, err := h.states.Encode(iauth.StatePayload{
		Provider: provider.Kind().String(),
		Nonce:    nonce,
		Verifier: pkce.Verifier,
	})
	if err != nil {
		h.log.Error("encode oauth state", zap.Error(err))
		h.redirectFailure(c, "failed to start login")
		return
	}

	c.Redirect(http.StatusFound, provider.AuthCodeURL(providers.AuthRequest{
		State:         state,
		Nonce:         nonce,
		PKCEChallenge: pkce.Challenge,
	}))
}

// GET /login/oauth2/code/:provider
func (h *OAuthHandler) Callback(c *gin.Context) {
	providerID := strings.ToLower(strings.TrimSpace(c.Param("provider")))

	if providerErr := strings.TrimSpace(c.Query("error")); providerErr != "" {
		message := strings.TrimSpace(c.Query("error_description"))
		if message == "" {
			message = providerErr
		}
		h.fail(c, providerID, "provider returned an error", message, nil)
		return
	}

	provider, err := h.registry.Get(providerID)
	if err != nil {
		h.fail(c, providerID, "provider is not available", "provider is not available", err)
		return
	}

	payload, err := h.states.Decode(c.Query("state"))
	if err != nil {
		h.fail(c, providerID, "invalid oauth state", "login request expired, please try again", err)
		return
	}
	if payload.Provider != provider.Kind().String() {
		h.fail(c, providerID, "oauth state provider mismatch", "invalid login request", nil)
		return
	}

	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		h.fail(c, providerID, "missing authorization code", "authorization code is missing", nil)
		return
	}

	attrs, err := provider.Exchange(requestContext(c), providers.CallbackRequest{
		Code:          code,
		PKCEVerifier:  payload.Verifier,
		ExpectedNonce: payload.Nonce,
	})
	if err != nil {
		h.fail(c, providerID, "oauth exchange failed", "failed to contact provider", err)
		return
	}

	session, err := h.service.LoginOAuth(requestContext(c), providerID, attrs)
	if err != nil {
		h.fail(c, providerID, "oauth login failed", appErrors.FromError(err).Message, err)
		return
	}

	metrics.OAuthCallbacks.WithLabelValues(providerID, "success").Inc()
	c.Redirect(http.StatusFound, h.successURL(session))
}

func (h *OAuthHandler) fail(c *gin.Context, provider, logMessage, userMessage string, err error) {
	metrics.OAuthCallbacks.WithLabelValues(metricProviderLabel(provider), "failure").Inc()
	h.log.Warn(logMessage, zap.String("provider", provider), zap.Error(err))
	h.redirectFailure(c, userMessage)
}

func (h *OAuthHandler) redirectFailure(c *gin.Context, message string) {
	query := url.Values{}
	query.Set("error", oauthFailureCode)
	query.Set("message", message)
	c.Redirect(http.StatusFound, h.frontend+oauthFailurePath+"?"+query.Encode())
}

func (h *OAuthHandler) successURL(session *iauth.Session) string {
	query := url.Values{}
	query.Set("accessToken", session.AccessToken)
	query.Set("refreshToken", session.RenewalToken)
	query.Set("userId", strconv.FormatUint(session.Account.ID, 10))
	query.Set("email", session.Account.Email)
	query.Set("name", session.Account.Name)
	return h.frontend + oauthSuccessPath + "?" + query.Encode()
}

// metricProviderLabel bounds label cardinality to the supported providers.
func metricProviderLabel(provider string) string {
	if kind, ok := models.ParseProvider(provider); ok {
		return kind.String()
	}
	return "unknown"
}
