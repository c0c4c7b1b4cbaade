package app

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. AUTHAPP_JWT_SECRET.
const EnvPrefix = "AUTHAPP"

// Config represents the runtime configuration for the authapp server.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	App         AppConfig         `mapstructure:"app"`
	OAuth       OAuthConfig       `mapstructure:"oauth"`
	CORS        CORSConfig        `mapstructure:"cors"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
	// BaseURL is the public origin of this server, used for absolute OAuth URLs.
	BaseURL string `mapstructure:"base_url"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// JWTConfig configures the token codec. Lifetimes are in seconds.
type JWTConfig struct {
	Secret            string `mapstructure:"secret"`
	Expiration        int64  `mapstructure:"expiration"`
	RefreshExpiration int64  `mapstructure:"refresh_expiration"`
}

// AppConfig holds the frontend address, profile image storage and bootstrap admin.
type AppConfig struct {
	FrontendURL string      `mapstructure:"frontend_url"`
	File        FileConfig  `mapstructure:"file"`
	Admin       AdminConfig `mapstructure:"admin"`
}

// FileConfig configures local profile image storage.
type FileConfig struct {
	UploadDir string `mapstructure:"upload_dir"`
	BaseURL   string `mapstructure:"base_url"`
	MaxSize   int64  `mapstructure:"max_size"`
}

// AdminConfig names the administrator ensured at migration time. Empty email disables seeding.
type AdminConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// OAuthConfig holds the client registrations for the external providers.
type OAuthConfig struct {
	Google OAuthClientConfig `mapstructure:"google"`
	Naver  OAuthClientConfig `mapstructure:"naver"`
}

// OAuthClientConfig is one provider registration. Endpoint overrides are optional.
type OAuthClientConfig struct {
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURI  string   `mapstructure:"redirect_uri"`
	Scopes       []string `mapstructure:"scopes"`
	AuthURL      string   `mapstructure:"auth_url"`
	TokenURL     string   `mapstructure:"token_url"`
	UserInfoURL  string   `mapstructure:"user_info_url"`
}

// CORSConfig lists the browser origins allowed to call the API with credentials.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Rate limit counter stores.
const (
	RateLimitStoreMemory   = "memory"
	RateLimitStoreDatabase = "database"
)

// RateLimitConfig holds ulule/limiter formatted rates ("10-M"). Empty disables the limit.
// Store selects where counters live: "memory" (per process) or "database" (shared).
type RateLimitConfig struct {
	Login  string `mapstructure:"login"`
	Signup string `mapstructure:"signup"`
	Store  string `mapstructure:"store"`
}

// MaintenanceConfig schedules the background purge of expired renewal tokens.
type MaintenanceConfig struct {
	PurgeSchedule string `mapstructure:"purge_schedule"`
}

// MonitoringConfig toggles the metrics endpoint.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// LoadConfig reads config.yaml from ./config or the given directories, applies AUTHAPP_*
// environment overrides and fills defaults. A .env file in the working directory is loaded first.
func LoadConfig(paths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

// setDefaults registers every key so AutomaticEnv can override keys absent from the file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.base_url", "http://localhost:8080")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/authapp.sqlite")
	v.SetDefault("database.dsn", "")
	for _, driver := range []string{"postgres", "mysql"} {
		v.SetDefault("database."+driver+".host", "")
		v.SetDefault("database."+driver+".port", 0)
		v.SetDefault("database."+driver+".database", "")
		v.SetDefault("database."+driver+".username", "")
		v.SetDefault("database."+driver+".password", "")
	}

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiration", 86400)
	v.SetDefault("jwt.refresh_expiration", 604800)

	v.SetDefault("app.frontend_url", "http://localhost:3000")
	v.SetDefault("app.file.upload_dir", "./uploads")
	v.SetDefault("app.file.base_url", "http://localhost:8080")
	v.SetDefault("app.file.max_size", 5*1024*1024)
	v.SetDefault("app.admin.email", "")
	v.SetDefault("app.admin.password", "")

	for _, provider := range []string{"google", "naver"} {
		v.SetDefault("oauth."+provider+".client_id", "")
		v.SetDefault("oauth."+provider+".client_secret", "")
		v.SetDefault("oauth."+provider+".redirect_uri", "")
		v.SetDefault("oauth."+provider+".scopes", []string{})
		v.SetDefault("oauth."+provider+".auth_url", "")
		v.SetDefault("oauth."+provider+".token_url", "")
		v.SetDefault("oauth."+provider+".user_info_url", "")
	}

	v.SetDefault("cors.allowed_origins", []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://localhost:8081",
	})

	v.SetDefault("rate_limit.login", "10-M")
	v.SetDefault("rate_limit.signup", "5-M")
	v.SetDefault("rate_limit.store", RateLimitStoreMemory)

	v.SetDefault("maintenance.purge_schedule", "@hourly")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
