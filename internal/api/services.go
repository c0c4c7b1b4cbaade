package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/authapp/internal/app"
	iauth "github.com/charlesng35/authapp/internal/auth"
	"github.com/charlesng35/authapp/internal/auth/providers"
	"github.com/charlesng35/authapp/internal/cache"
	"github.com/charlesng35/authapp/internal/security"
	"github.com/charlesng35/authapp/internal/services"
	"github.com/charlesng35/authapp/internal/store"
)

// Services bundles the long-lived domain services the router serves.
type Services struct {
	Accounts  *store.Accounts
	Codec     *iauth.TokenCodec
	Renewals  *iauth.RenewalService
	Auth      *iauth.Service
	States    *iauth.StateCodec
	Providers *providers.Registry
	Files     *services.FileStore
	Profiles  *services.ProfileService
	Admin     *services.AdminService
	Audit     *security.AuditService

	// Counters is set when rate limit counters live in the database. Nil means
	// each limiter keeps its own in-process store.
	Counters *cache.DatabaseStore
}

// ServiceOptions overrides collaborators, mainly for tests.
type ServiceOptions struct {
	Clock      func() time.Time
	Hasher     iauth.Hasher
	HTTPClient *http.Client
}

// BuildServices wires the domain services from configuration. It fails when the signing
// key is unusable or a configured provider is invalid.
func BuildServices(db *gorm.DB, cfg *app.Config, opts ServiceOptions) (*Services, error) {
	if db == nil {
		return nil, errors.New("database handle must be provided")
	}
	if cfg == nil {
		return nil, errors.New("config must be provided")
	}

	svc := &Services{}
	var err error

	if svc.Accounts, err = store.NewAccounts(db); err != nil {
		return nil, err
	}

	tokenCfg := cfg.TokenConfig()
	tokenCfg.Clock = opts.Clock
	if svc.Codec, err = iauth.NewTokenCodec(tokenCfg); err != nil {
		return nil, fmt.Errorf("initialise token codec: %w", err)
	}
	if svc.Renewals, err = iauth.NewRenewalService(db, svc.Codec); err != nil {
		return nil, fmt.Errorf("initialise renewal service: %w", err)
	}
	if svc.Auth, err = iauth.NewService(svc.Accounts, svc.Renewals, svc.Codec, opts.Hasher); err != nil {
		return nil, fmt.Errorf("initialise auth service: %w", err)
	}

	stateKey, err := app.DeriveStateKey(cfg.JWT.Secret)
	if err != nil {
		return nil, err
	}
	if svc.States, err = iauth.NewStateCodec(stateKey, iauth.DefaultStateTTL, opts.Clock); err != nil {
		return nil, fmt.Errorf("initialise oauth state codec: %w", err)
	}
	if svc.Providers, err = providers.Build(cfg.ProviderConfigs(), providers.Options{HTTPClient: opts.HTTPClient}); err != nil {
		return nil, fmt.Errorf("initialise oauth providers: %w", err)
	}

	if svc.Files, err = services.NewFileStore(cfg.FileStoreConfig()); err != nil {
		return nil, fmt.Errorf("initialise file store: %w", err)
	}
	if svc.Profiles, err = services.NewProfileService(svc.Accounts, svc.Files); err != nil {
		return nil, fmt.Errorf("initialise profile service: %w", err)
	}
	if svc.Admin, err = services.NewAdminService(svc.Accounts, svc.Renewals, svc.Files); err != nil {
		return nil, fmt.Errorf("initialise admin service: %w", err)
	}
	svc.Audit = security.NewAuditService(db, svc.Codec, cfg)
	if opts.Clock != nil {
		svc.Admin.WithClock(opts.Clock)
		svc.Audit.WithClock(opts.Clock)
	}

	if svc.Counters, err = buildCounters(db, cfg.RateLimit.Store, opts.Clock); err != nil {
		return nil, err
	}

	return svc, nil
}

func buildCounters(db *gorm.DB, kind string, clock func() time.Time) (*cache.DatabaseStore, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", app.RateLimitStoreMemory:
		return nil, nil
	case app.RateLimitStoreDatabase:
		counters, err := cache.NewDatabaseStore(db, cache.WithClock(clock))
		if err != nil {
			return nil, fmt.Errorf("initialise rate limit store: %w", err)
		}
		return counters, nil
	default:
		return nil, fmt.Errorf("unsupported rate limit store %q", kind)
	}
}
