package services

import (
	"fmt"

	"stockwatch_backend/models"

	"gorm.io/gorm"
)

// SubscriptionSnapshot is a point-in-time view of all subscriptions, used by
// exactly one broadcast cycle
type SubscriptionSnapshot struct {
	DistinctTickers []string
	ByUser          map[uint][]string
}

// SubscriptionService reads subscription snapshots for the scheduler
type SubscriptionService struct {
	db *gorm.DB
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService(db *gorm.DB) *SubscriptionService {
	return &SubscriptionService{db: db}
}

// Snapshot reads all active-user subscriptions in a single query. Changes
// made after the read are only reflected in the next cycle.
func (s *SubscriptionService) Snapshot() (*SubscriptionSnapshot, error) {
	var rows []models.Subscription
	err := s.db.Model(&models.Subscription{}).
		Joins("JOIN users ON users.id = subscriptions.user_id").
		Where("users.is_active = ?", true).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriptions: %w", err)
	}

	return BuildSnapshot(rows), nil
}

// BuildSnapshot derives the distinct ticker set and the per-user ticker
// lists from raw subscription rows
func BuildSnapshot(rows []models.Subscription) *SubscriptionSnapshot {
	snapshot := &SubscriptionSnapshot{
		ByUser: make(map[uint][]string),
	}

	seen := make(map[string]bool)
	for _, row := range rows {
		snapshot.ByUser[row.UserID] = append(snapshot.ByUser[row.UserID], row.Ticker)
		if !seen[row.Ticker] {
			seen[row.Ticker] = true
			snapshot.DistinctTickers = append(snapshot.DistinctTickers, row.Ticker)
		}
	}

	return snapshot
}
