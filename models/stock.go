package models

import (
	"time"

	"gorm.io/gorm"
)

// Stock represents a US equity symbol in the tradable catalog
type Stock struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Symbol    string    `gorm:"uniqueIndex;not null" json:"symbol"`
	Name      string    `json:"name"`
	Exchange  string    `json:"exchange"`                       // NYSE and NASDAQ are reported as "US"
	Status    string    `gorm:"default:'active'" json:"status"` // active, delisted
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Stock status constants
const (
	StockStatusActive   = "active"
	StockStatusDelisted = "delisted"
)

// MigrateStockModels runs database migrations for stock-related models
func MigrateStockModels(db *gorm.DB) error {
	return db.AutoMigrate(&Stock{})
}
