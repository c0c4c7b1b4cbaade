package models

import (
	"strings"
	"time"
)

// Provider identifies the external identity service an account was created through.
// Local accounts carry a nil provider.
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderNaver  Provider = "naver"
)

// LocalProviderLabel is rendered wherever a local account's provider must be displayed.
const LocalProviderLabel = "REGULAR"

// SupportedProviders lists every provider the adapter can normalise.
var SupportedProviders = []Provider{ProviderGoogle, ProviderNaver}

// ParseProvider matches a registration id case-insensitively.
func ParseProvider(value string) (Provider, bool) {
	candidate := strings.ToLower(strings.TrimSpace(value))
	for _, p := range SupportedProviders {
		if string(p) == candidate {
			return p, true
		}
	}
	return "", false
}

func (p Provider) String() string { return string(p) }

// Role is the single authority granted to an account.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// RecentActivityWindow bounds the "recently active" predicate used by admin stats.
const RecentActivityWindow = 5 * time.Minute

// Account is the canonical identity record for one end user.
type Account struct {
	ID       uint64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Email    string  `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Username *string `gorm:"size:50;uniqueIndex" json:"username"`
	Password *string `gorm:"size:255" json:"-"`

	Provider   *Provider `gorm:"size:20;uniqueIndex:idx_users_provider_subject" json:"provider"`
	ProviderID *string   `gorm:"size:255;uniqueIndex:idx_users_provider_subject" json:"provider_id,omitempty"`

	Name         string  `gorm:"size:100;not null" json:"name"`
	Nickname     *string `gorm:"size:50" json:"nickname"`
	ProfileImage *string `gorm:"size:500" json:"profile_image"`
	Gender       *string `gorm:"size:20" json:"gender"`
	BirthYear    *string `gorm:"size:4" json:"birth_year"`
	Nationality  *string `gorm:"size:50" json:"nationality"`
	Address      *string `gorm:"size:255" json:"address"`

	Role   Role `gorm:"size:20;not null;default:'USER'" json:"role"`
	Active bool `gorm:"not null" json:"active"`
	Online bool `gorm:"column:is_online;not null" json:"online"`

	LastLoginAt    *time.Time `gorm:"index" json:"last_login_at"`
	AnalysisCount  int        `gorm:"not null;check:analysis_count >= 0" json:"analysis_count"`
	LastAnalysisAt *time.Time `json:"last_analysis_at"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName keeps the historical table name.
func (Account) TableName() string { return "users" }

// IsLocal reports whether the account authenticates with a stored password.
func (a *Account) IsLocal() bool {
	return a != nil && a.Provider == nil
}

// ProviderLabel renders the provider tag, REGULAR for local accounts.
func (a *Account) ProviderLabel() string {
	if a == nil || a.Provider == nil {
		return LocalProviderLabel
	}
	return strings.ToUpper(string(*a.Provider))
}

// IsRecentlyActive reports whether the last login happened within RecentActivityWindow of now.
func (a *Account) IsRecentlyActive(now time.Time) bool {
	if a == nil || a.LastLoginAt == nil {
		return false
	}
	return !a.LastLoginAt.Before(now.Add(-RecentActivityWindow))
}

// DisplayUsername returns the username or an empty string when unset.
func (a *Account) DisplayUsername() string {
	if a == nil || a.Username == nil {
		return ""
	}
	return *a.Username
}

// StringPtr returns nil for blank input, otherwise a pointer to the trimmed value.
func StringPtr(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// Deref returns the pointed-to string or "".
func Deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
