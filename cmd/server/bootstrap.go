package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/authapp/internal/api"
	"github.com/charlesng35/authapp/internal/app"
	"github.com/charlesng35/authapp/internal/app/maintenance"
	"github.com/charlesng35/authapp/internal/database"
	"github.com/charlesng35/authapp/internal/models"
	"github.com/charlesng35/authapp/internal/security"
	"github.com/charlesng35/authapp/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB       *gorm.DB
	Services *api.Services
	Cleaner  *maintenance.Cleaner
	Router   *gin.Engine
}

// bootstrapRuntime initialises the database, domain services, background jobs and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	stack.Services, err = api.BuildServices(stack.DB, cfg, api.ServiceOptions{})
	if err != nil {
		return nil, err
	}
	for _, entry := range stack.Services.Providers.Catalogue() {
		log.Info("oauth provider", zap.String("provider", entry.Provider.String()), zap.Bool("available", entry.Available))
	}

	logAudit(stack.Services.Audit.Run(ctx), log)

	cleanerOpts := []maintenance.Option{maintenance.WithSchedule(cfg.Maintenance.PurgeSchedule)}
	if stack.Services.Counters != nil {
		cleanerOpts = append(cleanerOpts, maintenance.WithPurger("rate limit counters", stack.Services.Counters))
	}
	stack.Cleaner = maintenance.NewCleaner(stack.DB, stack.Services.Renewals, cleanerOpts...)
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}
	if err := stack.Cleaner.RunOnce(ctx); err != nil {
		log.Warn("initial maintenance run failed", zap.Error(err))
	}

	stack.Router, err = api.NewRouter(stack.DB, cfg, stack.Services)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		if stopCtx != nil {
			<-stopCtx.Done()
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
		s.Cleaner = nil
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
		s.DB = nil
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.DatabaseConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db, cfg.SeedConfig()); err != nil {
		closeDatabase(db, logger.WithModule("database"))
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

// logAudit surfaces failing and warning checks at startup. Failures do not stop the server.
func logAudit(result security.Result, log *zap.Logger) {
	for _, check := range result.Checks {
		fields := []zap.Field{zap.String("check", check.ID), zap.String("remediation", check.Remediation)}
		switch check.Status {
		case security.StatusFail:
			log.Error(check.Message, fields...)
		case security.StatusWarn:
			log.Warn(check.Message, fields...)
		}
	}
}

func promoteAdmin(ctx context.Context, db *gorm.DB, email, password string) (*models.Account, error) {
	if strings.TrimSpace(email) == "" {
		return nil, errors.New("--email is required")
	}
	account, err := database.EnsureAdmin(ctx, db, email, password)
	if err != nil {
		return nil, fmt.Errorf("promote admin: %w", err)
	}
	return account, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
