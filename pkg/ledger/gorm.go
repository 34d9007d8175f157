package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"pennywise-hq/budgetd/pkg/database"
)

// GormStore implements Store with gorm.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore migrates the expenses table and returns a store over db.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&Expense{}); err != nil {
		return nil, fmt.Errorf("failed to migrate expenses: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Insert implements Store.
func (s *GormStore) Insert(ctx context.Context, e *Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.PaymentMethod == "" {
		e.PaymentMethod = OtherMethod
	}
	// Dates are compared as text in SQLite, so every stored instant is UTC.
	e.Date = e.Date.UTC()
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *GormStore) Get(ctx context.Context, userID, id string) (*Expense, error) {
	var e Expense
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return &e, nil
}

// Find implements Store.
func (s *GormStore) Find(ctx context.Context, userID string, start, end time.Time) ([]Expense, error) {
	var out []Expense
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND date >= ? AND date <= ?", userID, start.UTC(), end.UTC()).
		Order("date ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find expenses: %w", err)
	}
	return out, nil
}

// Count implements Store.
func (s *GormStore) Count(ctx context.Context, f Filter) (int64, error) {
	var n int64
	if err := s.scope(ctx, f).Model(&Expense{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count expenses: %w", err)
	}
	return n, nil
}

// List implements Store.
func (s *GormStore) List(ctx context.Context, f Filter) (Page, error) {
	f = f.normalized()

	total, err := s.Count(ctx, f)
	if err != nil {
		return Page{}, err
	}

	var items []Expense
	err = s.scope(ctx, f).
		Order("date DESC").
		Offset((f.Page - 1) * f.Limit).
		Limit(f.Limit).
		Find(&items).Error
	if err != nil {
		return Page{}, fmt.Errorf("failed to list expenses: %w", err)
	}
	return newPage(items, f, total), nil
}

// Update implements Store.
func (s *GormStore) Update(ctx context.Context, e *Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	e.Date = e.Date.UTC()
	res := s.db.WithContext(ctx).
		Model(&Expense{}).
		Where("id = ? AND user_id = ?", e.ID, e.UserID).
		Select("*").
		Omit("created_at").
		Updates(e)
	if res.Error != nil {
		return fmt.Errorf("failed to update expense: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete implements Store.
func (s *GormStore) Delete(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&Expense{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete expense: %w", res.Error)
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

func (s *GormStore) scope(ctx context.Context, f Filter) *gorm.DB {
	q := s.db.WithContext(ctx)
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if !f.Start.IsZero() {
		q = q.Where("date >= ?", f.Start.UTC())
	}
	if !f.End.IsZero() {
		q = q.Where("date <= ?", f.End.UTC())
	}
	return q
}
