package app

import (
	"strings"

	"github.com/charlesng35/authapp/internal/database"
	"github.com/charlesng35/authapp/internal/services"
)

// DatabaseConfig converts the database section into connection options for the selected driver.
func (c *Config) DatabaseConfig() database.Config {
	cfg := database.Config{
		Driver: c.Database.Driver,
		Path:   c.Database.Path,
		DSN:    c.Database.DSN,
	}

	var auth DBAuthConfig
	switch strings.ToLower(strings.TrimSpace(c.Database.Driver)) {
	case "postgres", "postgresql":
		auth = c.Database.Postgres
	case "mysql":
		auth = c.Database.MySQL
	default:
		return cfg
	}
	cfg.Host = auth.Host
	cfg.Port = auth.Port
	cfg.Name = auth.Database
	cfg.User = auth.Username
	cfg.Password = auth.Password
	return cfg
}

// SeedConfig names the bootstrap administrator ensured after migration.
func (c *Config) SeedConfig() database.SeedConfig {
	return database.SeedConfig{
		AdminEmail:    strings.TrimSpace(c.App.Admin.Email),
		AdminPassword: c.App.Admin.Password,
	}
}

// FileStoreConfig converts the app.file section into profile image storage options.
func (c *Config) FileStoreConfig() services.FileStoreConfig {
	return services.FileStoreConfig{
		UploadDir: c.App.File.UploadDir,
		BaseURL:   c.App.File.BaseURL,
		MaxSize:   c.App.File.MaxSize,
	}
}
