package models

import "time"

// RenewalToken is the server-side record backing a refresh credential.
// The unique index on account_id keeps at most one live record per account.
type RenewalToken struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Token     string    `gorm:"size:500;uniqueIndex;not null" json:"-"`
	AccountID uint64    `gorm:"column:user_id;uniqueIndex;not null" json:"user_id"`
	Account   *Account  `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"-"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (RenewalToken) TableName() string { return "refresh_tokens" }

// Expired reports whether the record is no longer usable at now.
func (r *RenewalToken) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
