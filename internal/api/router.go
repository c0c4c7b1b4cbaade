package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"gorm.io/gorm"

	"github.com/charlesng35/authapp/internal/app"
	"github.com/charlesng35/authapp/internal/cache"
	"github.com/charlesng35/authapp/internal/handlers"
	"github.com/charlesng35/authapp/internal/middleware"
	"github.com/charlesng35/authapp/internal/services"
)

// maxMultipartMemory caps the in-memory portion of profile uploads; the rest spills to disk.
const maxMultipartMemory = 8 << 20

// NewRouter builds the Gin engine, wires middleware and registers every route.
func NewRouter(db *gorm.DB, cfg *app.Config, svc *Services) (*gin.Engine, error) {
	if db == nil {
		return nil, errors.New("database handle must be provided")
	}
	if cfg == nil {
		return nil, errors.New("config must be provided")
	}
	if svc == nil {
		return nil, errors.New("services must be provided")
	}

	loginLimiter, err := optionalLimiter(svc.Counters, "login", cfg.RateLimit.Login)
	if err != nil {
		return nil, fmt.Errorf("login rate limit: %w", err)
	}
	signupLimiter, err := optionalLimiter(svc.Counters, "signup", cfg.RateLimit.Signup)
	if err != nil {
		return nil, fmt.Errorf("signup rate limit: %w", err)
	}

	oauthHandler, err := handlers.NewOAuthHandler(svc.Providers, svc.States, svc.Auth, handlers.OAuthConfig{
		FrontendURL: cfg.App.FrontendURL,
		BaseURL:     cfg.Server.BaseURL,
	})
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.MaxMultipartMemory = maxMultipartMemory

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Authenticate(svc.Codec, svc.Accounts))

	registerHealthRoutes(r, db, cfg)

	registerAuthRoutes(r, authRouteDeps{
		Handler:       handlers.NewAuthHandler(svc.Auth),
		LoginLimiter:  loginLimiter,
		SignupLimiter: signupLimiter,
	})
	registerOAuthRoutes(r, oauthHandler)
	registerUserRoutes(r, handlers.NewUserHandler(svc.Profiles))
	registerAdminRoutes(r, handlers.NewAdminHandler(svc.Admin), handlers.NewSecurityHandler(svc.Audit))

	r.Static(services.ProfilesRoute, svc.Files.ProfilesDir())

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

// optionalLimiter returns nil for an empty rate, which RateLimit treats as unlimited.
// Database counters are namespaced per limiter.
func optionalLimiter(counters *cache.DatabaseStore, name, rate string) (*limiter.Limiter, error) {
	rate = strings.TrimSpace(rate)
	if rate == "" {
		return nil, nil
	}
	if counters == nil {
		return middleware.NewMemoryLimiter(rate)
	}
	return middleware.NewLimiter(counters.Namespace(name), rate)
}
