package models

import (
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"
)

// MaxSubscriptionsPerUser limits how many tickers a single user may follow
const MaxSubscriptionsPerUser = 5

// Subscription represents one user following one ticker
type Subscription struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;uniqueIndex:idx_user_ticker" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Ticker    string    `gorm:"uniqueIndex:idx_user_ticker;not null" json:"ticker"`
	CreatedAt time.Time `json:"created_at"`
}

var tickerPattern = regexp.MustCompile(`^[A-Z]{1,5}$`)

// NormalizeTicker uppercases and trims a raw ticker string
func NormalizeTicker(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// IsValidTicker checks if the symbol is a plain uppercase ticker
func IsValidTicker(ticker string) bool {
	return tickerPattern.MatchString(ticker)
}

// MigrateSubscriptionModels runs database migrations for subscription-related models
func MigrateSubscriptionModels(db *gorm.DB) error {
	return db.AutoMigrate(&Subscription{})
}
