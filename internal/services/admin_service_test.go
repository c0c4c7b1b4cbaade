package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/authapp/internal/models"
	"github.com/charlesng35/authapp/internal/store"
)

func TestAdminGetStats(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)
	env.admin.WithClock(func() time.Time { return now })

	env.createAccount(t, "alice", "alice@x.com", func(a *models.Account) {
		a.Online = true
		a.LastLoginAt = timePtr(now.Add(-2 * time.Minute))
	})
	env.createAccount(t, "bob", "bob@x.com", func(a *models.Account) {
		a.LastLoginAt = timePtr(now.Add(-10 * time.Minute))
	})
	env.createAccount(t, "carol", "carol@x.com")

	stats, err := env.admin.GetStats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, stats.TotalUsers)
	require.EqualValues(t, 1, stats.OnlineUsers)
	require.EqualValues(t, 1, stats.RecentlyActiveUsers)
	require.EqualValues(t, 3, stats.NewUsersToday)
	require.Zero(t, stats.TotalAnalyses)
	require.Zero(t, stats.AnalysesToday)
}

func TestAdminListUsers(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	env.createAccount(t, "alice", "alice@x.com")
	env.createAccount(t, "bob", "bob@x.com", func(a *models.Account) { a.Active = false })

	result, err := env.admin.ListUsers(ctx, store.Filter{Status: store.StatusInactive}, store.Page{})
	require.NoError(t, err)
	require.EqualValues(t, 1, result.Total)
	require.Equal(t, "bob@x.com", result.Items[0].Email)
}

func TestAdminToggleActive(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	alice := env.createAccount(t, "alice", "alice@x.com")

	toggled, err := env.admin.ToggleActive(ctx, alice.ID)
	require.NoError(t, err)
	require.False(t, toggled.Active)

	stored, err := env.admin.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	require.False(t, stored.Active)

	toggled, err = env.admin.ToggleActive(ctx, alice.ID)
	require.NoError(t, err)
	require.True(t, toggled.Active)

	_, err = env.admin.ToggleActive(ctx, 999)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestAdminDeleteRemovesAccountRenewalAndImage(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	alice := env.createAccount(t, "alice", "alice@x.com")

	record, err := env.renewals.Create(ctx, alice)
	require.NoError(t, err)

	updated, err := env.admin.UpdateProfileImage(ctx, alice.ID, pngUpload("me.png", 32))
	require.NoError(t, err)
	imagePath := filepath.Join(env.files.ProfilesDir(), filepath.Base(models.Deref(updated.ProfileImage)))
	_, err = os.Stat(imagePath)
	require.NoError(t, err)

	require.NoError(t, env.admin.Delete(ctx, alice.ID))

	_, err = env.admin.GetUser(ctx, alice.ID)
	require.ErrorIs(t, err, ErrUserNotFound)
	_, err = env.renewals.Find(ctx, record.Token)
	require.Error(t, err)
	_, err = os.Stat(imagePath)
	require.True(t, os.IsNotExist(err))

	require.ErrorIs(t, env.admin.Delete(ctx, alice.ID), ErrUserNotFound)
}

func TestAdminDeleteToleratesForeignImage(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	bob := env.createAccount(t, "bob", "bob@x.com", func(a *models.Account) {
		a.ProfileImage = models.StringPtr("https://lh3.googleusercontent.com/a/bob.png")
	})

	require.NoError(t, env.admin.Delete(ctx, bob.ID))
}

func TestAdminUpdateProfileImageReplacesPrevious(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	alice := env.createAccount(t, "alice", "alice@x.com")

	first, err := env.admin.UpdateProfileImage(ctx, alice.ID, pngUpload("one.png", 16))
	require.NoError(t, err)
	firstPath := filepath.Join(env.files.ProfilesDir(), filepath.Base(models.Deref(first.ProfileImage)))

	second, err := env.admin.UpdateProfileImage(ctx, alice.ID, pngUpload("two.png", 16))
	require.NoError(t, err)
	require.NotEqual(t, firstPath, models.Deref(second.ProfileImage))

	_, err = os.Stat(firstPath)
	require.True(t, os.IsNotExist(err))

	stored, err := env.admin.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, models.Deref(second.ProfileImage), models.Deref(stored.ProfileImage))
}
