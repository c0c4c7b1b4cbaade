package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/charlesng35/authapp/internal/api"
	"github.com/charlesng35/authapp/internal/app"
	iauth "github.com/charlesng35/authapp/internal/auth"
	"github.com/charlesng35/authapp/internal/database"
	sharedtestutil "github.com/charlesng35/authapp/internal/database/testutil"
	"github.com/charlesng35/authapp/pkg/response"
)

const (
	// AdminEmail and AdminPassword identify the administrator seeded into every Env.
	AdminEmail    = "admin@example.com"
	AdminPassword = "admin-password"

	testSecret = "dGVzdC1zdWl0ZS1zaWduaW5nLWtleS10aGF0LWlzLWxvbmctZW5vdWdo"
)

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T        *testing.T
	DB       *gorm.DB
	Config   *app.Config
	Services *api.Services
	Router   *gin.Engine
}

// Option adjusts the configuration before the router is built.
type Option func(*app.Config)

// WithConfig applies fn to the test configuration.
func WithConfig(fn func(*app.Config)) Option {
	return func(cfg *app.Config) { fn(cfg) }
}

// NewEnv provisions a fresh handler test environment with migrations and the admin seed applied.
func NewEnv(t *testing.T, opts ...Option) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithSeedData(database.SeedConfig{
		AdminEmail:    AdminEmail,
		AdminPassword: AdminPassword,
	}))

	uploadDir := t.TempDir()
	cfg := &app.Config{
		Server: app.ServerConfig{BaseURL: "http://api.test"},
		JWT: app.JWTConfig{
			Secret:            testSecret,
			Expiration:        3600,
			RefreshExpiration: 86400,
		},
		App: app.AppConfig{
			FrontendURL: "http://frontend.test",
			File: app.FileConfig{
				UploadDir: uploadDir,
				BaseURL:   "http://api.test",
				MaxSize:   1 << 20,
			},
		},
		CORS: app.CORSConfig{AllowedOrigins: []string{"http://frontend.test"}},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	svc, err := api.BuildServices(db, cfg, api.ServiceOptions{
		Hasher: iauth.BcryptHasher{Cost: bcrypt.MinCost},
	})
	require.NoError(t, err)

	router, err := api.NewRouter(db, cfg, svc)
	require.NoError(t, err)

	return &Env{
		T:        t,
		DB:       db,
		Config:   cfg,
		Services: svc,
		Router:   router,
	}
}

// UserPayload captures the account fields returned from auth and profile endpoints.
type UserPayload struct {
	ID           uint64 `json:"id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	Name         string `json:"name"`
	Nickname     string `json:"nickname"`
	ProfileImage string `json:"profileImage"`
	Address      string `json:"address"`
	Provider     string `json:"provider"`
	Role         string `json:"role"`
	Active       bool   `json:"active"`
	Online       bool   `json:"online"`
}

// LoginResult bundles the JSON data from POST /api/auth/login.
type LoginResult struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	User         UserPayload `json:"user"`
}

// Signup registers a local account and returns its payload.
func (e *Env) Signup(username, email, password string) UserPayload {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/auth/signup", map[string]string{
		"username":        username,
		"email":           email,
		"password":        password,
		"confirmPassword": password,
	}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	var user UserPayload
	DecodeInto(e.T, DecodeResponse(e.T, w).Data, &user)
	return user
}

// Login authenticates with a username or email and returns the issued token pair.
func (e *Env) Login(loginID, password string) LoginResult {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"loginId":  loginID,
		"password": password,
	}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())

	var result LoginResult
	DecodeInto(e.T, resp.Data, &result)
	require.NotEmpty(e.T, result.AccessToken)
	require.NotEmpty(e.T, result.RefreshToken)
	return result
}

// LoginAdmin logs in as the seeded administrator.
func (e *Env) LoginAdmin() LoginResult {
	e.T.Helper()
	return e.Login(AdminEmail, AdminPassword)
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	buf := bytes.NewBuffer(nil)
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.Do(req, token)
}

// FormFile is one file part of a multipart request.
type FormFile struct {
	Field       string
	Filename    string
	ContentType string
	Content     []byte
}

// RequestMultipart sends fields and files as multipart/form-data.
func (e *Env) RequestMultipart(method, path string, fields map[string]string, files []FormFile, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		require.NoError(e.T, writer.WriteField(key, value))
	}
	for _, file := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.Field, file.Filename))
		header.Set("Content-Type", file.ContentType)
		part, err := writer.CreatePart(header)
		require.NoError(e.T, err)
		_, err = part.Write(file.Content)
		require.NoError(e.T, err)
	}
	require.NoError(e.T, writer.Close())

	req, err := http.NewRequest(method, path, &body)
	require.NoError(e.T, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return e.Do(req, token)
}

// Do serves req, attaching token as a bearer credential when non-empty.
func (e *Env) Do(req *http.Request, token string) *httptest.ResponseRecorder {
	e.T.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
