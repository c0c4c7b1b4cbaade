package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3"
	"gorm.io/gorm"

	testutil "github.com/charlesng35/authapp/internal/database/testutil"
	"github.com/charlesng35/authapp/internal/models"
)

type testClock struct {
	current time.Time
}

func (c *testClock) Now() time.Time { return c.current }

func newTestStore(t *testing.T) (*DatabaseStore, *testClock) {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	clock := &testClock{current: time.Now().UTC().Truncate(time.Second)}
	store, err := NewDatabaseStore(db, WithPrefix("test"), WithClock(clock.Now))
	require.NoError(t, err)
	return store, clock
}

func TestNewDatabaseStoreRequiresDB(t *testing.T) {
	_, err := NewDatabaseStore(nil)
	require.Error(t, err)
}

func TestDatabaseStoreCountsWithinWindow(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()
	rate := limiter.Rate{Period: time.Minute, Limit: 2}

	first, err := store.Get(ctx, "10.0.0.1", rate)
	require.NoError(t, err)
	require.EqualValues(t, 1, first.Remaining)
	require.False(t, first.Reached)
	require.Equal(t, clock.current.Add(time.Minute).Unix(), first.Reset)

	peek, err := store.Peek(ctx, "10.0.0.1", rate)
	require.NoError(t, err)
	require.EqualValues(t, 1, peek.Remaining)

	_, err = store.Get(ctx, "10.0.0.1", rate)
	require.NoError(t, err)
	third, err := store.Get(ctx, "10.0.0.1", rate)
	require.NoError(t, err)
	require.True(t, third.Reached)
	require.Zero(t, third.Remaining)

	other, err := store.Get(ctx, "10.0.0.2", rate)
	require.NoError(t, err)
	require.False(t, other.Reached)

	clock.current = clock.current.Add(time.Minute)
	reopened, err := store.Get(ctx, "10.0.0.1", rate)
	require.NoError(t, err)
	require.False(t, reopened.Reached)
	require.EqualValues(t, 1, reopened.Remaining)
}

func TestDatabaseStoreIncrementAndReset(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	rate := limiter.Rate{Period: time.Hour, Limit: 5}

	state, err := store.Increment(ctx, "key", 5, rate)
	require.NoError(t, err)
	require.EqualValues(t, 0, state.Remaining)
	require.False(t, state.Reached)

	state, err = store.Increment(ctx, "key", 1, rate)
	require.NoError(t, err)
	require.True(t, state.Reached)

	state, err = store.Reset(ctx, "key", rate)
	require.NoError(t, err)
	require.EqualValues(t, 5, state.Remaining)

	state, err = store.Peek(ctx, "key", rate)
	require.NoError(t, err)
	require.EqualValues(t, 5, state.Remaining)
}

func TestDatabaseStorePurgeExpired(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "short", limiter.Rate{Period: time.Minute, Limit: 1})
	require.NoError(t, err)
	_, err = store.Get(ctx, "long", limiter.Rate{Period: time.Hour, Limit: 1})
	require.NoError(t, err)

	clock.current = clock.current.Add(2 * time.Minute)
	purged, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, purged)

	var remaining []models.RateCounter
	require.NoError(t, store.db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	require.Equal(t, "test:long", remaining[0].Key)
}

func TestDatabaseStoreDrivesLimiter(t *testing.T) {
	store, _ := newTestStore(t)
	instance := limiter.New(store, limiter.Rate{Period: time.Minute, Limit: 1})

	state, err := instance.Get(context.Background(), "client")
	require.NoError(t, err)
	require.False(t, state.Reached)

	state, err = instance.Get(context.Background(), "client")
	require.NoError(t, err)
	require.True(t, state.Reached)
}

func TestDatabaseStoreNamespacesAreIndependent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	rate := limiter.Rate{Period: time.Minute, Limit: 1}

	login := store.Namespace("login")
	signup := store.Namespace("signup")

	state, err := login.Get(ctx, "10.0.0.1", rate)
	require.NoError(t, err)
	require.False(t, state.Reached)
	state, err = signup.Get(ctx, "10.0.0.1", rate)
	require.NoError(t, err)
	require.False(t, state.Reached)

	state, err = login.Get(ctx, "10.0.0.1", rate)
	require.NoError(t, err)
	require.True(t, state.Reached)

	var keys []string
	require.NoError(t, store.db.Model(&models.RateCounter{}).Order("counter_key").Pluck("counter_key", &keys).Error)
	require.Equal(t, []string{"test:login:10.0.0.1", "test:signup:10.0.0.1"}, keys)
}

func TestDatabaseStoreJoinsWindowOpenedConcurrently(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()
	rate := limiter.Rate{Period: time.Minute, Limit: 5}

	// Another writer inserts the counter after the lookup missed and before our insert runs.
	raced := false
	err := store.db.Callback().Create().Before("gorm:create").Register("test:concurrent_window", func(tx *gorm.DB) {
		if raced || tx.Statement.Table != "rate_limit_counters" {
			return
		}
		raced = true
		tx.Session(&gorm.Session{NewDB: true}).Exec(
			"INSERT INTO rate_limit_counters (counter_key, count, expires_at, updated_at) VALUES (?, ?, ?, ?)",
			store.key("10.0.0.9"), 2, clock.current.Add(time.Minute), clock.current,
		)
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, "10.0.0.9", rate)
	require.NoError(t, err)
	require.True(t, raced)
	require.EqualValues(t, 2, got.Remaining)

	var counter models.RateCounter
	require.NoError(t, store.db.Take(&counter, "counter_key = ?", store.key("10.0.0.9")).Error)
	require.EqualValues(t, 3, counter.Count)
}
