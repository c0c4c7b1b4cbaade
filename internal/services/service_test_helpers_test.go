package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/authapp/internal/auth"
	"github.com/charlesng35/authapp/internal/database/testutil"
	"github.com/charlesng35/authapp/internal/models"
	"github.com/charlesng35/authapp/internal/store"
)

const testBaseURL = "http://files.test"

type serviceEnv struct {
	accounts *store.Accounts
	renewals *auth.RenewalService
	files    *FileStore
	admin    *AdminService
	profiles *ProfileService
}

func newServiceEnv(t *testing.T) *serviceEnv {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	accounts, err := store.NewAccounts(db)
	require.NoError(t, err)

	codec, err := auth.NewTokenCodec(auth.TokenConfig{
		Secret: base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef")),
	})
	require.NoError(t, err)
	renewals, err := auth.NewRenewalService(db, codec)
	require.NoError(t, err)

	files, err := NewFileStore(FileStoreConfig{UploadDir: t.TempDir(), BaseURL: testBaseURL})
	require.NoError(t, err)

	admin, err := NewAdminService(accounts, renewals, files)
	require.NoError(t, err)
	profiles, err := NewProfileService(accounts, files)
	require.NoError(t, err)

	return &serviceEnv{accounts: accounts, renewals: renewals, files: files, admin: admin, profiles: profiles}
}

func (e *serviceEnv) createAccount(t *testing.T, username, email string, mutate ...func(*models.Account)) *models.Account {
	t.Helper()

	account := &models.Account{
		Email:    email,
		Username: &username,
		Name:     username,
		Role:     models.RoleUser,
		Active:   true,
	}
	for _, fn := range mutate {
		fn(account)
	}
	require.NoError(t, e.accounts.Create(context.Background(), account))
	return account
}

func pngUpload(name string, size int) Upload {
	body := bytes.Repeat([]byte{0x89}, size)
	return Upload{Filename: name, ContentType: "image/png", Size: int64(size), Body: bytes.NewReader(body)}
}

func timePtr(t time.Time) *time.Time { return &t }
