package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"canteen-occupancy-backend/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// Store defines the interface for all database operations.
type Store interface {
	RecordSample(ctx context.Context, sample *model.OccupancySample) (bool, error)
	LatestSample(ctx context.Context) (*model.OccupancySample, error)
	RecentSamples(ctx context.Context, limit int) ([]model.OccupancySample, error)

	UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionsCrossed(ctx context.Context, previous, current int) ([]model.PushSubscription, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// RecordSample inserts a sample unless one with the same remote timestamp
// already exists. It reports whether a row was written.
func (s *gormStore) RecordSample(ctx context.Context, sample *model.OccupancySample) (bool, error) {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_created_at"}},
		DoNothing: true,
	}).Create(sample)
	if res.Error != nil {
		return false, fmt.Errorf("failed to record sample %q: %w", sample.EntryCreatedAt, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// LatestSample returns the most recently observed sample.
func (s *gormStore) LatestSample(ctx context.Context) (*model.OccupancySample, error) {
	var sample model.OccupancySample
	err := s.db.WithContext(ctx).Order("observed_at DESC").Order("id DESC").First(&sample).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest sample: %w", err)
	}
	return &sample, nil
}

// RecentSamples returns up to limit samples, newest first.
func (s *gormStore) RecentSamples(ctx context.Context, limit int) ([]model.OccupancySample, error) {
	samples := make([]model.OccupancySample, 0, limit)
	if err := s.db.WithContext(ctx).
		Order("observed_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&samples).Error; err != nil {
		return nil, fmt.Errorf("failed to list samples: %w", err)
	}
	return samples, nil
}

// UpsertSubscription creates a subscription or replaces its keys and threshold.
func (s *gormStore) UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "threshold"}),
	}).Create(sub).Error
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// GetSubscription looks a subscription up by endpoint.
func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).First(&sub, "endpoint = ?", endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	return &sub, nil
}

// DeleteSubscription removes a subscription. Deleting an unknown endpoint is not an error.
func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	if err := s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error; err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}

// SubscriptionsCrossed returns the subscriptions whose threshold was crossed
// by a drop from previous to current, i.e. current <= threshold < previous.
func (s *gormStore) SubscriptionsCrossed(ctx context.Context, previous, current int) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if current >= previous {
		return subs, nil
	}
	if err := s.db.WithContext(ctx).
		Where("threshold >= ? AND threshold < ?", current, previous).
		Order("endpoint").
		Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to find subscriptions for drop %d->%d: %w", previous, current, err)
	}
	return subs, nil
}
