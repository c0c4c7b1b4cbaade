package models

import "time"

// RateCounter is one fixed-window request counter of the database-backed rate limiter.
type RateCounter struct {
	Key       string    `gorm:"column:counter_key;primaryKey;size:191"`
	Count     int64     `gorm:"not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (RateCounter) TableName() string { return "rate_limit_counters" }

// Expired reports whether the counter window has closed at now.
func (c *RateCounter) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
