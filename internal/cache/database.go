package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/common"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/authapp/internal/models"
)

const defaultPrefix = "limiter"

// DatabaseStore implements limiter.Store on the primary SQL database, so every
// instance sharing the database shares the same counters.
type DatabaseStore struct {
	db     *gorm.DB
	prefix string
	now    func() time.Time
}

// Option customises the DatabaseStore.
type Option func(*DatabaseStore)

// WithPrefix namespaces every counter key.
func WithPrefix(prefix string) Option {
	return func(s *DatabaseStore) {
		if prefix = strings.TrimSpace(prefix); prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *DatabaseStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewDatabaseStore constructs a database-backed limiter store.
func NewDatabaseStore(db *gorm.DB, opts ...Option) (*DatabaseStore, error) {
	if db == nil {
		return nil, errors.New("cache: database handle is required")
	}
	s := &DatabaseStore{db: db, prefix: defaultPrefix, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Namespace returns a store sharing the same table whose keys are prefixed with prefix.
func (s *DatabaseStore) Namespace(prefix string) *DatabaseStore {
	clone := *s
	WithPrefix(s.prefix + ":" + prefix)(&clone)
	return &clone
}

func (s *DatabaseStore) key(key string) string {
	return s.prefix + ":" + key
}

func (s *DatabaseStore) lock(tx *gorm.DB, key string, entry *models.RateCounter) error {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Take(entry, "counter_key = ?", s.key(key)).Error
}

// Get increments the counter for key by one and returns the resulting limit state.
func (s *DatabaseStore) Get(ctx context.Context, key string, rate limiter.Rate) (limiter.Context, error) {
	return s.Increment(ctx, key, 1, rate)
}

// Increment adds count to the counter for key, opening a new window when the previous one closed.
func (s *DatabaseStore) Increment(ctx context.Context, key string, count int64, rate limiter.Rate) (limiter.Context, error) {
	now := s.now()
	var entry models.RateCounter

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Acquire row-level lock
		err := s.lock(tx, key, &entry)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			entry = models.RateCounter{
				Key:       s.key(key),
				Count:     count,
				ExpiresAt: now.Add(rate.Period),
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
			if res.Error != nil || res.RowsAffected > 0 {
				return res.Error
			}
			// A concurrent request opened the window between the lookup and the insert.
			entry = models.RateCounter{}
			err = s.lock(tx, key, &entry)
		}
		if err != nil {
			return err
		}

		if entry.Expired(now) {
			entry.Count = 0
			entry.ExpiresAt = now.Add(rate.Period)
		}
		entry.Count += count
		return tx.Save(&entry).Error
	})
	if err != nil {
		return limiter.Context{}, fmt.Errorf("cache: increment %q: %w", key, err)
	}

	return common.GetContextFromState(now, rate, entry.ExpiresAt, entry.Count), nil
}

// Peek returns the limit state for key without consuming a request.
func (s *DatabaseStore) Peek(ctx context.Context, key string, rate limiter.Rate) (limiter.Context, error) {
	now := s.now()

	var entry models.RateCounter
	err := s.db.WithContext(ctx).Take(&entry, "counter_key = ?", s.key(key)).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return common.GetContextFromState(now, rate, now.Add(rate.Period), 0), nil
	case err != nil:
		return limiter.Context{}, fmt.Errorf("cache: peek %q: %w", key, err)
	}

	if entry.Expired(now) {
		return common.GetContextFromState(now, rate, now.Add(rate.Period), 0), nil
	}
	return common.GetContextFromState(now, rate, entry.ExpiresAt, entry.Count), nil
}

// Reset drops the counter for key.
func (s *DatabaseStore) Reset(ctx context.Context, key string, rate limiter.Rate) (limiter.Context, error) {
	now := s.now()
	err := s.db.WithContext(ctx).
		Where("counter_key = ?", s.key(key)).
		Delete(&models.RateCounter{}).Error
	if err != nil {
		return limiter.Context{}, fmt.Errorf("cache: reset %q: %w", key, err)
	}
	return common.GetContextFromState(now, rate, now.Add(rate.Period), 0), nil
}

// PurgeExpired deletes counters whose window has closed.
func (s *DatabaseStore) PurgeExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at <= ?", s.now()).
		Delete(&models.RateCounter{})
	if result.Error != nil {
		return 0, fmt.Errorf("cache: purge expired counters: %w", result.Error)
	}
	return result.RowsAffected, nil
}

var _ limiter.Store = (*DatabaseStore)(nil)
