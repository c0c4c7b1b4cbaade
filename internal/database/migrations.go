package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/authapp/internal/models"
	"github.com/charlesng35/authapp/pkg/crypto"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Account{},
		&models.RenewalToken{},
		&models.RateCounter{},
	)
}

// SeedConfig describes the optional bootstrap administrator.
type SeedConfig struct {
	AdminEmail    string
	AdminPassword string
}

// SeedData ensures the configured bootstrap administrator exists. Nothing is seeded when no admin email is set.
func SeedData(db *gorm.DB, seed SeedConfig) error {
	if strings.TrimSpace(seed.AdminEmail) == "" {
		return nil
	}
	_, err := EnsureAdmin(context.Background(), db, seed.AdminEmail, seed.AdminPassword)
	return err
}

// EnsureAdmin promotes the account registered under email to ADMIN, creating a local
// admin account when none exists. Creating requires a password.
func EnsureAdmin(ctx context.Context, db *gorm.DB, email, password string) (*models.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, errors.New("admin email is required")
	}

	var account models.Account
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("email = ?", email).Take(&account).Error
		switch {
		case err == nil:
			if account.Role == models.RoleAdmin {
				return nil
			}
			account.Role = models.RoleAdmin
			return tx.Model(&account).Select("role", "updated_at").Updates(&account).Error
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		if strings.TrimSpace(password) == "" {
			return fmt.Errorf("account %q does not exist and no admin password was provided", email)
		}

		hash, err := crypto.HashPassword(password)
		if err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}

		username := adminUsername(email)
		account = models.Account{
			Email:    email,
			Username: &username,
			Password: &hash,
			Name:     "Administrator",
			Nickname: &username,
			Role:     models.RoleAdmin,
			Active:   true,
		}
		return tx.Create(&account).Error
	})
	if err != nil {
		return nil, err
	}

	return &account, nil
}

func adminUsername(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		return "admin"
	}
	return local
}
