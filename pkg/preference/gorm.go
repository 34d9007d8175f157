package preference

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pennywise-hq/budgetd/pkg/database"
)

// GormStore implements Store with gorm.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore migrates the preferences table and returns a store over db.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&Preference{}); err != nil {
		return nil, fmt.Errorf("failed to migrate preferences: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Get implements Store.
func (s *GormStore) Get(ctx context.Context, userID string) (*Preference, error) {
	var p Preference
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preference: %w", err)
	}
	return &p, nil
}

// Save implements Store.
func (s *GormStore) Save(ctx context.Context, p *Preference) error {
	p.BaseCurrency = strings.ToUpper(p.BaseCurrency)
	if err := p.Validate(); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(p).Error
	if err != nil {
		return fmt.Errorf("failed to save preference: %w", err)
	}
	return nil
}

// SaveAlertState implements Store.
func (s *GormStore) SaveAlertState(ctx context.Context, userID string, state AlertState) error {
	res := s.db.WithContext(ctx).
		Model(&Preference{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"alert_period_key":     state.PeriodKey,
			"alert_reset_cycle":    string(state.ResetCycle),
			"alert_last_threshold": state.LastThreshold,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to save alert state: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping implements Store.
func (s *GormStore) Ping(ctx context.Context) error {
	return database.Ping(ctx, s.db)
}
