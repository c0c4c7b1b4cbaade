package security

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/authapp/internal/app"
	"github.com/charlesng35/authapp/internal/models"
)

// CheckStatus captures the outcome of a security audit check.
type CheckStatus string

const (
	StatusPass CheckStatus = "pass"
	StatusWarn CheckStatus = "warn"
	StatusFail CheckStatus = "fail"
)

// maxRecommendedRenewalTTL bounds how long a stolen renewal token stays useful.
const maxRecommendedRenewalTTL = 30 * 24 * time.Hour

// Check contains the result of a single audit verification.
type Check struct {
	ID          string      `json:"id"`
	Status      CheckStatus `json:"status"`
	Message     string      `json:"message"`
	Remediation string      `json:"remediation,omitempty"`
	Details     any         `json:"details,omitempty"`
}

// Result aggregates all checks with a simple status summary.
type Result struct {
	CheckedAt time.Time      `json:"checkedAt"`
	Checks    []Check        `json:"checks"`
	Summary   map[string]int `json:"summary"`
}

// Failed reports whether any check failed.
func (r Result) Failed() bool {
	return r.Summary[string(StatusFail)] > 0
}

// TokenInspector exposes the token settings the audit evaluates.
type TokenInspector interface {
	SecretLength() int
	RenewalTTL() time.Duration
}

// AuditService evaluates core security controls and configuration.
type AuditService struct {
	db     *gorm.DB
	tokens TokenInspector
	cfg    *app.Config
	now    func() time.Time
}

// NewAuditService constructs the audit service. All dependencies are optional; missing
// inputs degrade specific checks to warnings.
func NewAuditService(db *gorm.DB, tokens TokenInspector, cfg *app.Config) *AuditService {
	return &AuditService{
		db:     db,
		tokens: tokens,
		cfg:    cfg,
		now:    time.Now,
	}
}

// WithClock overrides the clock used in results (primarily for testing).
func (s *AuditService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Run executes all audit checks and returns their outcome.
func (s *AuditService) Run(ctx context.Context) Result {
	if ctx == nil {
		ctx = context.Background()
	}

	checks := []Check{
		s.checkAdminAccount(ctx),
		s.checkJWTSecret(),
		s.checkRenewalTTL(),
		s.checkCORSOrigins(),
		s.checkBaseURL(),
	}

	summary := map[string]int{
		string(StatusPass): 0,
		string(StatusWarn): 0,
		string(StatusFail): 0,
	}

	for _, check := range checks {
		summary[string(check.Status)]++
	}

	return Result{
		CheckedAt: s.now().UTC(),
		Checks:    checks,
		Summary:   summary,
	}
}

func (s *AuditService) checkAdminAccount(ctx context.Context) Check {
	if s.db == nil {
		return Check{
			ID:          "admin_account_present",
			Status:      StatusWarn,
			Message:     "Database unavailable, unable to confirm an administrator exists.",
			Remediation: "Ensure database connectivity before running the audit.",
		}
	}

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("role = ? AND active = ?", models.RoleAdmin, true).
		Count(&count).Error; err != nil {
		return Check{
			ID:          "admin_account_present",
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Could not verify administrators: %v", err),
			Remediation: "Retry after resolving database errors.",
		}
	}

	if count == 0 {
		return Check{
			ID:          "admin_account_present",
			Status:      StatusFail,
			Message:     "No active administrator account found.",
			Remediation: "Set app.admin.email or run `authapp-server promote-admin --email <address>`.",
		}
	}

	return Check{
		ID:      "admin_account_present",
		Status:  StatusPass,
		Message: "Active administrator present.",
		Details: map[string]any{"count": count},
	}
}

func (s *AuditService) checkJWTSecret() Check {
	if s.tokens == nil {
		return Check{
			ID:          "jwt_secret_strength",
			Status:      StatusWarn,
			Message:     "Token codec not initialised, unable to assess signing secret strength.",
			Remediation: "Initialise the token codec with a strong secret.",
		}
	}

	length := s.tokens.SecretLength()
	if length < 48 {
		return Check{
			ID:          "jwt_secret_strength",
			Status:      StatusWarn,
			Message:     fmt.Sprintf("JWT signing secret is %d bytes. Consider increasing to 48+ bytes.", length),
			Remediation: "Set AUTHAPP_JWT_SECRET to a base64 value decoding to at least 48 random bytes.",
			Details:     map[string]any{"length": length},
		}
	}

	return Check{
		ID:      "jwt_secret_strength",
		Status:  StatusPass,
		Message: fmt.Sprintf("JWT signing secret length is %d bytes.", length),
		Details: map[string]any{"length": length},
	}
}

func (s *AuditService) checkRenewalTTL() Check {
	if s.tokens == nil {
		return Check{
			ID:          "renewal_token_ttl",
			Status:      StatusWarn,
			Message:     "Token codec not initialised, unable to evaluate session lifetime.",
			Remediation: "Initialise the token codec before running the audit.",
		}
	}

	ttl := s.tokens.RenewalTTL()
	if ttl > maxRecommendedRenewalTTL {
		return Check{
			ID:          "renewal_token_ttl",
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Refresh token TTL (%s) exceeds recommended maximum (%s).", ttl, maxRecommendedRenewalTTL),
			Remediation: "Reduce jwt.refresh_expiration to 30 days or lower.",
			Details:     map[string]any{"ttl": ttl.String()},
		}
	}

	return Check{
		ID:      "renewal_token_ttl",
		Status:  StatusPass,
		Message: fmt.Sprintf("Refresh token TTL is %s.", ttl),
		Details: map[string]any{"ttl": ttl.String()},
	}
}

func (s *AuditService) checkCORSOrigins() Check {
	if s.cfg == nil {
		return configMissing("cors_origins")
	}

	origins := s.cfg.CORS.AllowedOrigins
	for _, origin := range origins {
		if strings.TrimSpace(origin) == "*" {
			return Check{
				ID:          "cors_origins",
				Status:      StatusFail,
				Message:     "Wildcard CORS origin configured while credentials are allowed.",
				Remediation: "List the frontend origins explicitly in cors.allowed_origins.",
			}
		}
	}

	if len(origins) == 0 {
		return Check{
			ID:          "cors_origins",
			Status:      StatusWarn,
			Message:     "No CORS origins configured; local development origins are used.",
			Remediation: "Set cors.allowed_origins to the deployed frontend origin.",
		}
	}

	return Check{
		ID:      "cors_origins",
		Status:  StatusPass,
		Message: fmt.Sprintf("%d CORS origin(s) configured.", len(origins)),
		Details: map[string]any{"origins": origins},
	}
}

func (s *AuditService) checkBaseURL() Check {
	if s.cfg == nil {
		return configMissing("public_base_url")
	}

	parsed, err := url.Parse(strings.TrimSpace(s.cfg.Server.BaseURL))
	if err != nil || parsed.Host == "" {
		return Check{
			ID:          "public_base_url",
			Status:      StatusFail,
			Message:     fmt.Sprintf("server.base_url %q is not an absolute URL.", s.cfg.Server.BaseURL),
			Remediation: "Set server.base_url to the public origin used in OAuth redirect URIs.",
		}
	}

	if parsed.Scheme != "https" && !isLoopback(parsed.Hostname()) {
		return Check{
			ID:          "public_base_url",
			Status:      StatusWarn,
			Message:     "server.base_url is not served over HTTPS; tokens travel in redirect URLs.",
			Remediation: "Serve the API over HTTPS and update server.base_url.",
			Details:     map[string]any{"baseUrl": parsed.String()},
		}
	}

	return Check{
		ID:      "public_base_url",
		Status:  StatusPass,
		Message: "Public base URL is acceptable.",
		Details: map[string]any{"baseUrl": parsed.String()},
	}
}

func configMissing(id string) Check {
	return Check{
		ID:          id,
		Status:      StatusWarn,
		Message:     "Configuration not loaded.",
		Remediation: "Load configuration before running the security audit.",
	}
}

func isLoopback(host string) bool {
	switch strings.ToLower(host) {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
