package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/authapp/internal/app"
	"github.com/charlesng35/authapp/internal/handlers/testutil"
	"github.com/charlesng35/authapp/internal/models"
)

func TestAuthHandler_SignupLoginMe(t *testing.T) {
	env := testutil.NewEnv(t)

	user := env.Signup("alice", "alice@x.com", "pw123456")
	require.NotZero(t, user.ID)
	require.Equal(t, "alice@x.com", user.Email)
	require.Equal(t, "alice", user.Username)
	require.Equal(t, "alice", user.Nickname)
	require.Equal(t, string(models.RoleUser), user.Role)
	require.Equal(t, models.LocalProviderLabel, user.Provider)
	require.True(t, user.Active)
	require.False(t, user.Online)

	login := env.Login("alice", "pw123456")
	require.Equal(t, user.ID, login.User.ID)

	w := env.Request(http.MethodGet, "/api/auth/me", nil, login.AccessToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var me testutil.UserPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &me)
	require.Equal(t, "alice@x.com", me.Email)
	require.True(t, me.Online)
}

func TestAuthHandler_LoginByEmailAndLegacyField(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Signup("carol", "carol@x.com", "pw123456")

	env.Login("Carol@X.com", "pw123456")

	w := env.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "carol@x.com",
		"password": "pw123456",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestAuthHandler_SignupValidation(t *testing.T) {
	env := testutil.NewEnv(t)

	cases := []struct {
		name string
		body map[string]string
	}{
		{"short username", map[string]string{"username": "ab", "email": "a@x.com", "password": "pw123456", "confirmPassword": "pw123456"}},
		{"bad email", map[string]string{"username": "abc", "email": "not-an-email", "password": "pw123456", "confirmPassword": "pw123456"}},
		{"short password", map[string]string{"username": "abc", "email": "a@x.com", "password": "pw1", "confirmPassword": "pw1"}},
		{"mismatch", map[string]string{"username": "abc", "email": "a@x.com", "password": "pw123456", "confirmPassword": "pw654321"}},
		{"username charset", map[string]string{"username": "a b/c", "email": "a@x.com", "password": "pw123456", "confirmPassword": "pw123456"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.Request(http.MethodPost, "/api/auth/signup", tc.body, "")
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			resp := testutil.DecodeResponse(t, w)
			require.False(t, resp.Success)
			require.Equal(t, "VALIDATION_FAILED", resp.Error.Code)
		})
	}

	w := env.Request(http.MethodPost, "/api/auth/signup", map[string]string{
		"username": "bad name", "email": "a@x.com", "password": "pw123456", "confirmPassword": "pw123456",
	}, "")
	require.Contains(t, testutil.DecodeResponse(t, w).Error.Message, "username may only contain letters")

	w = env.Request(http.MethodPost, "/api/auth/signup", nil, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "BAD_REQUEST", testutil.DecodeResponse(t, w).Error.Code)
}

func TestAuthHandler_SignupDuplicates(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Signup("alice", "alice@x.com", "pw123456")

	w := env.Request(http.MethodPost, "/api/auth/signup", map[string]string{
		"username": "alice2", "email": "alice@x.com", "password": "pw123456", "confirmPassword": "pw123456",
	}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := testutil.DecodeResponse(t, w)
	require.Equal(t, "CONFLICT", resp.Error.Code)
	require.Contains(t, resp.Error.Message, "email")

	w = env.Request(http.MethodPost, "/api/auth/signup", map[string]string{
		"username": "alice", "email": "other@x.com", "password": "pw123456", "confirmPassword": "pw123456",
	}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, testutil.DecodeResponse(t, w).Error.Message, "username")
}

func TestAuthHandler_LoginFailures(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Signup("alice", "alice@x.com", "pw123456")

	w := env.Request(http.MethodPost, "/api/auth/login", map[string]string{"loginId": "alice", "password": "wrong-pass"}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := testutil.DecodeResponse(t, w)
	require.False(t, resp.Success)
	require.Contains(t, resp.Error.Message, "password does not match")
	require.Empty(t, resp.Data)

	var account models.Account
	require.NoError(t, env.DB.Where("email = ?", "alice@x.com").Take(&account).Error)
	require.False(t, account.Online)
	require.Nil(t, account.LastLoginAt)

	w = env.Request(http.MethodPost, "/api/auth/login", map[string]string{"loginId": "nobody", "password": "pw123456"}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "USER_NOT_FOUND", testutil.DecodeResponse(t, w).Error.Code)

	w = env.Request(http.MethodPost, "/api/auth/login", map[string]string{"password": "pw123456"}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "VALIDATION_FAILED", testutil.DecodeResponse(t, w).Error.Code)
}

func TestAuthHandler_SecondLoginReplacesRenewalToken(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Signup("alice", "alice@x.com", "pw123456")

	first := env.Login("alice", "pw123456")
	second := env.Login("alice", "pw123456")
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	w := env.Request(http.MethodPost, "/api/auth/refresh", map[string]string{"refreshToken": first.RefreshToken}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code, w.Body.String())
	require.Equal(t, "INVALID_TOKEN", testutil.DecodeResponse(t, w).Error.Code)

	w = env.Request(http.MethodPost, "/api/auth/refresh", map[string]string{"refreshToken": second.RefreshToken}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var info struct {
		AccessToken           string `json:"accessToken"`
		RefreshToken          string `json:"refreshToken"`
		AccessTokenExpiresIn  int64  `json:"accessTokenExpiresIn"`
		RefreshTokenExpiresIn int64  `json:"refreshTokenExpiresIn"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &info)
	require.NotEmpty(t, info.AccessToken)
	require.Equal(t, second.RefreshToken, info.RefreshToken)
	require.EqualValues(t, 3600, info.AccessTokenExpiresIn)
	require.EqualValues(t, 86400, info.RefreshTokenExpiresIn)

	w = env.Request(http.MethodGet, "/api/auth/me", nil, info.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAuthHandler_RefreshRequiresToken(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPost, "/api/auth/refresh", map[string]string{"refreshToken": "   "}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "VALIDATION_FAILED", testutil.DecodeResponse(t, w).Error.Code)
}

func TestAuthHandler_Logout(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Signup("alice", "alice@x.com", "pw123456")
	login := env.Login("alice", "pw123456")

	w := env.Request(http.MethodPost, "/api/auth/logout", map[string]string{"refreshToken": login.RefreshToken}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var account models.Account
	require.NoError(t, env.DB.Where("email = ?", "alice@x.com").Take(&account).Error)
	require.False(t, account.Online)

	var renewals int64
	require.NoError(t, env.DB.Model(&models.RenewalToken{}).Count(&renewals).Error)
	require.Zero(t, renewals)

	// Repeating the logout is a no-op.
	w = env.Request(http.MethodPost, "/api/auth/logout", map[string]string{"refreshToken": login.RefreshToken}, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.Request(http.MethodPost, "/api/auth/refresh", map[string]string{"refreshToken": login.RefreshToken}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_LogoutFallsBackToPrincipal(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Signup("alice", "alice@x.com", "pw123456")
	login := env.Login("alice", "pw123456")

	w := env.Request(http.MethodPost, "/api/auth/logout", nil, login.AccessToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.Request(http.MethodPost, "/api/auth/refresh", map[string]string{"refreshToken": login.RefreshToken}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.Request(http.MethodPost, "/api/auth/logout", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAuthHandler_Validate(t *testing.T) {
	env := testutil.NewEnv(t)
	login := env.LoginAdmin()

	decodeBool := func(token string) bool {
		t.Helper()
		w := env.Request(http.MethodPost, "/api/auth/validate", nil, token)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var valid bool
		testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &valid)
		return valid
	}

	require.True(t, decodeBool(login.AccessToken))
	require.False(t, decodeBool("not-a-jwt"))
	require.False(t, decodeBool(""))
}

func TestAuthHandler_MeRequiresBearer(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/api/auth/me", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
	require.Equal(t, "AUTHENTICATION_FAILED", testutil.DecodeResponse(t, w).Error.Code)

	w = env.Request(http.MethodGet, "/api/auth/me", nil, "garbage")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "INVALID_TOKEN", testutil.DecodeResponse(t, w).Error.Code)
}

func TestAuthHandler_LoginRateLimited(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithConfig(func(cfg *app.Config) {
		cfg.RateLimit.Login = "2-M"
	}))

	body := map[string]string{"loginId": "nobody", "password": "pw123456"}
	for i := 0; i < 2; i++ {
		w := env.Request(http.MethodPost, "/api/auth/login", body, "")
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w := env.Request(http.MethodPost, "/api/auth/login", body, "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "RATE_LIMIT_EXCEEDED", testutil.DecodeResponse(t, w).Error.Code)
}
