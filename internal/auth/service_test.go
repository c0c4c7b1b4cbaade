package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/authapp/internal/models"
	"github.com/charlesng35/authapp/internal/store"
	apperrors "github.com/charlesng35/authapp/pkg/errors"
)

// plainHasher keeps tests fast; bcrypt is covered in pkg/crypto.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }

func (plainHasher) Verify(hash, password string) bool { return hash == "plain:"+password }

type serviceFixture struct {
	*renewalFixture
	accounts *store.Accounts
	svc      *Service
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	f := newRenewalFixture(t)
	accounts, err := store.NewAccounts(f.db)
	require.NoError(t, err)
	svc, err := NewService(accounts, f.renewals, f.codec, plainHasher{})
	require.NoError(t, err)

	return &serviceFixture{renewalFixture: f, accounts: accounts, svc: svc}
}

func (f *serviceFixture) registerAlice(t *testing.T) *models.Account {
	t.Helper()

	account, err := f.svc.Register(context.Background(), RegisterInput{
		Username:        "alice",
		Email:           "alice@x.com",
		Password:        "pw123456",
		ConfirmPassword: "pw123456",
	})
	require.NoError(t, err)
	return account
}

func requireAppCode(t *testing.T, err error, code string) {
	t.Helper()

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	require.Equal(t, code, appErr.Code)
}

func TestRegisterCreatesLocalAccount(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	account := f.registerAlice(t)
	require.NotZero(t, account.ID)
	require.Equal(t, models.RoleUser, account.Role)
	require.True(t, account.Active)
	require.False(t, account.Online)
	require.Equal(t, models.LocalProviderLabel, account.ProviderLabel())
	require.Equal(t, "alice", models.Deref(account.Nickname))
	require.Zero(t, account.AnalysisCount)

	exists, err := f.accounts.ExistsByEmail(ctx, "alice@x.com")
	require.NoError(t, err)
	require.True(t, exists)
	exists, err = f.accounts.ExistsByUsername(ctx, "alice")
	require.NoError(t, err)
	require.True(t, exists)

	session, err := f.svc.LoginPassword(ctx, "alice", "pw123456")
	require.NoError(t, err)
	require.NotEmpty(t, session.AccessToken)
}

func TestRegisterRejections(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.registerAlice(t)

	_, err := f.svc.Register(ctx, RegisterInput{Username: "bob", Email: "bob@x.com", Password: "a", ConfirmPassword: "b"})
	require.ErrorIs(t, err, ErrPasswordMismatch)
	requireAppCode(t, err, "VALIDATION_FAILED")

	_, err = f.svc.Register(ctx, RegisterInput{Username: "bob", Email: "ALICE@x.com", Password: "pw", ConfirmPassword: "pw"})
	require.ErrorIs(t, err, ErrEmailTaken)
	requireAppCode(t, err, "CONFLICT")
	require.NotErrorIs(t, err, ErrUsernameTaken)

	_, err = f.svc.Register(ctx, RegisterInput{Username: "alice", Email: "other@x.com", Password: "pw", ConfirmPassword: "pw"})
	require.ErrorIs(t, err, ErrUsernameTaken)
	require.NotErrorIs(t, err, ErrEmailTaken)
}

func TestLoginPasswordIssuesSingleRenewal(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	alice := f.registerAlice(t)

	first, err := f.svc.LoginPassword(ctx, "alice", "pw123456")
	require.NoError(t, err)
	require.True(t, first.Account.Online)
	require.NotNil(t, first.Account.LastLoginAt)

	second, err := f.svc.LoginPassword(ctx, "alice@x.com", "pw123456")
	require.NoError(t, err)
	require.EqualValues(t, 1, f.countTokens(t, alice.ID))

	ok, err := f.renewals.Validate(ctx, first.RenewalToken)
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = f.renewals.Validate(ctx, second.RenewalToken)
	require.NoError(t, err)
	require.True(t, ok)

	stored, err := f.accounts.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	require.True(t, stored.Online)
}

func TestLoginPasswordRollsBackPresenceOnRenewalFailure(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	alice := f.registerAlice(t)

	require.NoError(t, f.db.Migrator().DropTable(&models.RenewalToken{}))

	session, err := f.svc.LoginPassword(ctx, "alice", "pw123456")
	require.Error(t, err)
	require.Nil(t, session)
	requireAppCode(t, err, "INTERNAL_SERVER_ERROR")

	stored, err := f.accounts.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	require.False(t, stored.Online)
	require.Nil(t, stored.LastLoginAt)
}

func TestLoginPasswordFailures(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	alice := f.registerAlice(t)

	_, err := f.svc.LoginPassword(ctx, "nobody", "pw")
	require.ErrorIs(t, err, ErrAccountNotFound)

	_, err = f.svc.LoginPassword(ctx, "alice", "wrong")
	require.ErrorIs(t, err, ErrWrongPassword)
	require.Contains(t, err.Error(), "password does not match")
	require.Zero(t, f.countTokens(t, alice.ID))

	stored, err := f.accounts.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	require.False(t, stored.Online)

	stored.Active = false
	require.NoError(t, f.accounts.Update(ctx, stored, "active"))
	_, err = f.svc.LoginPassword(ctx, "alice", "pw123456")
	requireAppCode(t, err, "ACCESS_DENIED")
	require.ErrorIs(t, err, ErrDisabledAccount)
	require.NotErrorIs(t, err, ErrProviderAccount)
}

func TestLoginPasswordRejectsProviderAccounts(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.LoginOAuth(ctx, "google", map[string]any{"sub": "g-1", "email": "bob@x.com", "name": "Bob"})
	require.NoError(t, err)

	_, err = f.svc.LoginPassword(ctx, "bob@x.com", "anything")
	requireAppCode(t, err, "ACCESS_DENIED")
	require.Contains(t, err.Error(), "GOOGLE")
	require.ErrorIs(t, err, ErrProviderAccount)
	require.NotErrorIs(t, err, ErrDisabledAccount)
}

func TestLoginOAuthCreatesOnceAndUpdatesName(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	attrs := map[string]any{"sub": "g-1", "email": "bob@x.com", "name": "Bob", "picture": "https://img/bob.png"}
	first, err := f.svc.LoginOAuth(ctx, "GOOGLE", attrs)
	require.NoError(t, err)
	require.Equal(t, "bob", first.Account.DisplayUsername())
	require.Equal(t, "bob", models.Deref(first.Account.Nickname))
	require.Nil(t, first.Account.Password)
	require.Equal(t, "https://img/bob.png", models.Deref(first.Account.ProfileImage))

	second, err := f.svc.LoginOAuth(ctx, "google", map[string]any{"sub": "g-1", "email": "bob@x.com", "name": "Robert"})
	require.NoError(t, err)
	require.Equal(t, first.Account.ID, second.Account.ID)
	require.Equal(t, "Robert", second.Account.Name)
	require.Equal(t, "https://img/bob.png", models.Deref(second.Account.ProfileImage))

	total, err := f.accounts.CountAll(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}

func TestLoginOAuthNaverAndUsernameCollision(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.registerAlice(t)

	session, err := f.svc.LoginOAuth(ctx, "naver", map[string]any{
		"resultcode": "00",
		"response": map[string]any{
			"id":    "n-7",
			"email": "alice@naver.com",
			"name":  "Alice N",
		},
	})
	require.NoError(t, err)
	require.Equal(t, "alice1", session.Account.DisplayUsername())
	require.Equal(t, "NAVER", session.Account.ProviderLabel())
}

func TestLoginOAuthDoesNotMergeSameEmail(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	alice := f.registerAlice(t)

	_, err := f.svc.LoginOAuth(ctx, "google", map[string]any{"sub": "g-2", "email": "alice@x.com", "name": "Alice"})
	requireAppCode(t, err, "CONFLICT")

	stored, err := f.accounts.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	require.True(t, stored.IsLocal())
}

func TestLoginOAuthRejectsIncompleteProfiles(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.LoginOAuth(ctx, "google", map[string]any{"sub": "g-3"})
	require.ErrorIs(t, err, ErrOAuthEmailRequired)

	_, err = f.svc.LoginOAuth(ctx, "google", map[string]any{"email": "x@x.com"})
	requireAppCode(t, err, "VALIDATION_FAILED")

	_, err = f.svc.LoginOAuth(ctx, "github", map[string]any{"sub": "1", "email": "x@x.com"})
	requireAppCode(t, err, "BAD_REQUEST")
}

func TestRefreshReturnsSameRenewalToken(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.registerAlice(t)

	session, err := f.svc.LoginPassword(ctx, "alice", "pw123456")
	require.NoError(t, err)

	f.clock.Advance(time.Second)
	info, err := f.svc.Refresh(ctx, session.RenewalToken)
	require.NoError(t, err)
	require.Equal(t, session.RenewalToken, info.RefreshToken)
	require.NotEqual(t, session.AccessToken, info.AccessToken)
	require.EqualValues(t, 3600, info.AccessTokenExpiresIn)
	require.EqualValues(t, 7200, info.RefreshTokenExpiresIn)
	require.True(t, f.svc.Validate(info.AccessToken))

	_, err = f.svc.Refresh(ctx, "garbage")
	requireAppCode(t, err, "INVALID_TOKEN")

	f.clock.Advance(3 * time.Hour)
	_, err = f.svc.Refresh(ctx, session.RenewalToken)
	requireAppCode(t, err, "EXPIRED_TOKEN")
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	alice := f.registerAlice(t)

	session, err := f.svc.LoginPassword(ctx, "alice", "pw123456")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, session.RenewalToken))
	require.NoError(t, f.svc.Logout(ctx, session.RenewalToken))
	require.NoError(t, f.svc.Logout(ctx, ""))

	stored, err := f.accounts.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	require.False(t, stored.Online)
	require.Zero(t, f.countTokens(t, alice.ID))
}

func TestLogoutAccount(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	alice := f.registerAlice(t)

	_, err := f.svc.LoginPassword(ctx, "alice", "pw123456")
	require.NoError(t, err)

	require.NoError(t, f.svc.LogoutAccount(ctx, alice.ID))
	stored, err := f.accounts.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	require.False(t, stored.Online)
	require.Zero(t, f.countTokens(t, alice.ID))

	require.NoError(t, f.svc.LogoutAccount(ctx, 9999))
}

func TestValidateAccessToken(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.registerAlice(t)

	session, err := f.svc.LoginPassword(ctx, "alice", "pw123456")
	require.NoError(t, err)

	require.True(t, f.svc.Validate(session.AccessToken))
	require.False(t, f.svc.Validate(session.RenewalToken))
	require.False(t, f.svc.Validate(""))

	f.clock.Advance(time.Hour)
	require.False(t, f.svc.Validate(session.AccessToken))
}

func TestUsernameFromEmail(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	require.Equal(t, "john.doe", usernameFromEmail("John.Doe@x.com", now))
	require.Equal(t, "user1700000000123", usernameFromEmail("@x.com", now))
	require.Equal(t, "user1700000000123", usernameFromEmail("malformed", now))

	long := usernameFromEmail(strings.Repeat("a", 80)+"@x.com", now)
	require.Len(t, long, maxUsernameLength)
}
