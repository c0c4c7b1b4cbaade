package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	iauth "github.com/charlesng35/authapp/internal/auth"
	testutil "github.com/charlesng35/authapp/internal/database/testutil"
	"github.com/charlesng35/authapp/internal/models"
)

const cleanupSecret = "bWFpbnRlbmFuY2Utc2VjcmV0LW1haW50ZW5hbmNlLXNlY3JldA=="

func TestClearStalePresence(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	holder := seedAccount(t, db, "holder", true)
	stale := seedAccount(t, db, "stale", true)
	offline := seedAccount(t, db, "offline", false)

	require.NoError(t, db.Create(&models.RenewalToken{
		Token:     "holder-token",
		AccountID: holder.ID,
		ExpiresAt: time.Now().Add(time.Hour),
	}).Error)

	cleared, err := ClearStalePresence(context.Background(), db)
	require.NoError(t, err)
	require.Equal(t, int64(1), cleared)

	require.True(t, reload(t, db, holder.ID).Online)
	require.False(t, reload(t, db, stale.ID).Online)
	require.False(t, reload(t, db, offline.ID).Online)
}

func TestCleanerRunOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	clock := &fixedClock{current: time.Now().Truncate(time.Second)}
	codec, err := iauth.NewTokenCodec(iauth.TokenConfig{
		Secret:     cleanupSecret,
		RenewalTTL: time.Hour,
		Clock:      clock.Now,
	})
	require.NoError(t, err)
	renewals, err := iauth.NewRenewalService(db, codec)
	require.NoError(t, err)

	expired := seedAccount(t, db, "expired", true)
	active := seedAccount(t, db, "active", true)

	_, err = renewals.Create(context.Background(), expired)
	require.NoError(t, err)
	clock.current = clock.current.Add(30 * time.Minute)
	_, err = renewals.Create(context.Background(), active)
	require.NoError(t, err)
	clock.current = clock.current.Add(45 * time.Minute)

	c := NewCleaner(db, renewals, WithCron(cron.New(cron.WithLogger(cron.DiscardLogger))))
	require.NoError(t, c.RunOnce(context.Background()))

	var remaining []models.RenewalToken
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	require.Equal(t, active.ID, remaining[0].AccountID)

	require.False(t, reload(t, db, expired.ID).Online)
	require.True(t, reload(t, db, active.ID).Online)
}

func TestCleanerRunOnceCombinesErrors(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	sqlDB, err := db.DB()
	require.NoError(t, err)

	purgeErr := errors.New("purge failed")
	c := NewCleaner(db, failingPurger{err: purgeErr})
	require.NoError(t, sqlDB.Close())

	err = c.RunOnce(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, purgeErr)
	require.Contains(t, err.Error(), "clear presence")
}

func TestCleanerRunsExtraPurgers(t *testing.T) {
	counter := &countingPurger{}
	purgeErr := errors.New("counters unavailable")

	c := NewCleaner(nil, nil,
		WithPurger("counters", counter),
		WithPurger("broken", failingPurger{err: purgeErr}),
		WithPurger("ignored", nil))

	err := c.RunOnce(context.Background())
	require.ErrorIs(t, err, purgeErr)
	require.Contains(t, err.Error(), "purge broken")
	require.Equal(t, 1, counter.calls)
}

func TestCleanerStartRejectsInvalidSchedule(t *testing.T) {
	c := NewCleaner(nil, failingPurger{}, WithSchedule("not a schedule"))
	require.Error(t, c.Start())
}

func TestCleanerStartAndStop(t *testing.T) {
	c := NewCleaner(nil, failingPurger{})
	require.NoError(t, c.Start())
	<-c.Stop().Done()
}

type countingPurger struct {
	calls int
}

func (c *countingPurger) PurgeExpired(context.Context) (int64, error) {
	c.calls++
	return 2, nil
}

type failingPurger struct {
	err error
}

func (f failingPurger) PurgeExpired(context.Context) (int64, error) {
	return 0, f.err
}

func seedAccount(t *testing.T, db *gorm.DB, username string, online bool) *models.Account {
	t.Helper()

	account := &models.Account{
		Email:    username + "@example.com",
		Username: &username,
		Name:     username,
		Role:     models.RoleUser,
		Active:   true,
		Online:   online,
	}
	require.NoError(t, db.Create(account).Error)
	return account
}

func reload(t *testing.T, db *gorm.DB, id uint64) *models.Account {
	t.Helper()
	var account models.Account
	require.NoError(t, db.First(&account, id).Error)
	return &account
}

type fixedClock struct {
	current time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.current
}
