package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/authapp/internal/models"
	"github.com/charlesng35/authapp/pkg/logger"
)

const defaultPurgeSpec = "@hourly"

// RenewalPurger deletes renewal credentials whose expiry has passed.
type RenewalPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Purger deletes any other expired rows, such as closed rate limit windows.
type Purger = RenewalPurger

// Cleaner coordinates background maintenance: purging expired renewal tokens and
// clearing the online flag of accounts that no longer hold a renewal token.
type Cleaner struct {
	db       *gorm.DB
	renewals RenewalPurger
	extra    map[string]Purger
	cron     *cron.Cron
	log      *zap.Logger
	schedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithSchedule overrides the cron specification for the purge job.
func WithSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.schedule = spec
		}
	}
}

// WithPurger adds a named purge step to every run.
func WithPurger(name string, p Purger) Option {
	return func(cleaner *Cleaner) {
		if p == nil {
			return
		}
		if cleaner.extra == nil {
			cleaner.extra = map[string]Purger{}
		}
		cleaner.extra[name] = p
	}
}

// NewCleaner constructs a Cleaner. A nil db skips the presence job; a nil purger skips the purge.
func NewCleaner(db *gorm.DB, renewals RenewalPurger, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:       db,
		renewals: renewals,
		schedule: defaultPurgeSpec,
		log:      logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return cleaner
}

// Start registers the maintenance job and launches the scheduler.
func (c *Cleaner) Start() error {
	if c.renewals == nil && c.db == nil && len(c.extra) == 0 {
		return nil
	}

	if _, err := c.cron.AddFunc(c.schedule, func() {
		if err := c.RunOnce(context.Background()); err != nil {
			c.log.Warn("maintenance run failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("maintenance: schedule %q: %w", c.schedule, err)
	}

	c.cron.Start()
	c.log.Info("maintenance scheduled", zap.String("schedule", c.schedule))
	return nil
}

// Stop halts the underlying scheduler. The returned context is done once running jobs finish.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce purges expired renewal tokens and any extra purgers, then clears stale presence.
// Every step runs even when an earlier one fails; their errors are combined.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.renewals != nil {
		if _, err := c.renewals.PurgeExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	for name, purger := range c.extra {
		purged, err := purger.PurgeExpired(ctx)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("purge %s: %w", name, err))
		} else if purged > 0 {
			c.log.Debug("purged expired rows", zap.String("job", name), zap.Int64("count", purged))
		}
	}

	if c.db != nil {
		cleared, err := ClearStalePresence(ctx, c.db)
		if err != nil {
			errs = multierr.Append(errs, err)
		} else if cleared > 0 {
			c.log.Info("cleared stale online flags", zap.Int64("count", cleared))
		}
	}

	return errs
}

// ClearStalePresence marks accounts offline when they are flagged online but hold no
// renewal token, which happens once their token expired and was purged.
func ClearStalePresence(ctx context.Context, db *gorm.DB) (int64, error) {
	if db == nil {
		return 0, errors.New("clear presence: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	holders := db.Model(&models.RenewalToken{}).Select("user_id")
	result := db.WithContext(ctx).
		Model(&models.Account{}).
		Where("is_online = ?", true).
		Where("id NOT IN (?)", holders).
		Updates(map[string]any{"is_online": false, "updated_at": time.Now()})
	if result.Error != nil {
		return 0, fmt.Errorf("clear presence: %w", result.Error)
	}
	return result.RowsAffected, nil
}
