package handlers_test

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/authapp/internal/handlers/testutil"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nnot-really-an-image")

func TestUserHandler_ProfileRequiresAuth(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/api/users/profile", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.Request(http.MethodPut, "/api/users/profile", map[string]string{"name": "x"}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUserHandler_ProfileAndGet(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.Signup("alice", "alice@x.com", "pw123456")
	login := env.Login("alice", "pw123456")

	w := env.Request(http.MethodGet, "/api/users/profile", nil, login.AccessToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var profile testutil.UserPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &profile)
	require.Equal(t, user.ID, profile.ID)
	require.Equal(t, "alice", profile.Username)

	admin := env.LoginAdmin()
	w = env.Request(http.MethodGet, "/api/users/"+strconv.FormatUint(admin.User.ID, 10), nil, login.AccessToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &profile)
	require.Equal(t, testutil.AdminEmail, profile.Email)

	w = env.Request(http.MethodGet, "/api/users/999999", nil, login.AccessToken)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "USER_NOT_FOUND", testutil.DecodeResponse(t, w).Error.Code)

	w = env.Request(http.MethodGet, "/api/users/abc", nil, login.AccessToken)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserHandler_UpdateProfileJSON(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Signup("alice", "alice@x.com", "pw123456")
	login := env.Login("alice", "pw123456")

	w := env.Request(http.MethodPut, "/api/users/profile", map[string]string{
		"name":        "Alice Liddell",
		"nickname":    "  ",
		"nationality": "KR",
	}, login.AccessToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var profile testutil.UserPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &profile)
	require.Equal(t, "Alice Liddell", profile.Name)
	require.Equal(t, "alice", profile.Nickname)

	w = env.Request(http.MethodPut, "/api/users/profile", map[string]string{
		"birthYear": "19999",
	}, login.AccessToken)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "VALIDATION_FAILED", testutil.DecodeResponse(t, w).Error.Code)

	w = env.Request(http.MethodPut, "/api/users/profile", map[string]string{"birthYear": "19a0"}, login.AccessToken)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, testutil.DecodeResponse(t, w).Error.Message, "birth year must be a four-digit year")

	w = env.Request(http.MethodPut, "/api/users/profile", map[string]string{"name": " "}, login.AccessToken)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserHandler_UpdateProfileMultipartStoresImage(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Signup("alice", "alice@x.com", "pw123456")
	login := env.Login("alice", "pw123456")

	w := env.RequestMultipart(http.MethodPut, "/api/users/profile",
		map[string]string{"name": "Alice", "gender": "F"},
		[]testutil.FormFile{{Field: "profileImage", Filename: "me.png", ContentType: "image/png", Content: pngBytes}},
		login.AccessToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var profile testutil.UserPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &profile)
	require.Equal(t, "Alice", profile.Name)
	require.True(t, strings.HasPrefix(profile.ProfileImage, "http://api.test/api/files/profiles/user_"), profile.ProfileImage)
	require.True(t, strings.HasSuffix(profile.ProfileImage, ".png"))

	imageURL, err := url.Parse(profile.ProfileImage)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodGet, imageURL.Path, nil)
	require.NoError(t, err)
	served := env.Do(req, "")
	require.Equal(t, http.StatusOK, served.Code)
	require.Equal(t, pngBytes, served.Body.Bytes())
}

func TestUserHandler_UpdateProfileRejectsUnsupportedUpload(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Signup("alice", "alice@x.com", "pw123456")
	login := env.Login("alice", "pw123456")

	w := env.RequestMultipart(http.MethodPut, "/api/users/profile", nil,
		[]testutil.FormFile{{Field: "profileImage", Filename: "notes.txt", ContentType: "text/plain", Content: []byte("hello")}},
		login.AccessToken)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	require.Contains(t, testutil.DecodeResponse(t, w).Error.Message, "unsupported file type")
}

func TestUserHandler_UpdateBasic(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Signup("alice", "alice@x.com", "pw123456")
	login := env.Login("alice", "pw123456")

	query := url.Values{}
	query.Set("name", "Queen Alice")
	query.Set("profileImage", "https://cdn.example.com/alice.png")
	w := env.Request(http.MethodPut, "/api/users/profile/basic?"+query.Encode(), nil, login.AccessToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var profile testutil.UserPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &profile)
	require.Equal(t, "Queen Alice", profile.Name)
	require.Equal(t, "https://cdn.example.com/alice.png", profile.ProfileImage)
}
