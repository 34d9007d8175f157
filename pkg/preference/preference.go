// Package preference stores per-user budget settings and alert state.
//
// The high-water mark of fired alert thresholds is kept in an AlertState
// tagged with the period it belongs to. A state recorded for another period
// or cycle reads as zero, so alerts re-arm at every rollover without any
// explicit reset.
package preference

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"pennywise-hq/budgetd/pkg/period"
)

// ErrNotFound is returned when a user has no stored preference.
var ErrNotFound = errors.New("preference not found")

// DefaultCurrency is reported when neither a preference nor an expense
// currency is available.
const DefaultCurrency = "INR"

// DefaultThresholds are used when a preference has no valid thresholds.
var DefaultThresholds = Thresholds{0.5, 1.0}

// Thresholds is an ascending set of budget fractions.
type Thresholds []float64

// Normalize returns the thresholds sorted and de-duplicated. It returns
// DefaultThresholds when t is empty or holds a non-positive or non-finite value.
func (t Thresholds) Normalize() Thresholds {
	if len(t) == 0 {
		return append(Thresholds(nil), DefaultThresholds...)
	}
	out := make(Thresholds, 0, len(t))
	seen := make(map[float64]bool, len(t))
	for _, v := range t {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return append(Thresholds(nil), DefaultThresholds...)
		}
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}

// Value implements driver.Valuer.
func (t Thresholds) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]float64(t))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (t *Thresholds) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*t = nil
		return nil
	case string:
		b = []byte(v)
	case []byte:
		b = v
	default:
		return fmt.Errorf("cannot scan %T into Thresholds", src)
	}
	var out []float64
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("decode thresholds: %w", err)
	}
	*t = out
	return nil
}

// AlertState records the highest threshold alerted in one period.
type AlertState struct {
	PeriodKey     string       `gorm:"size:10" json:"periodKey"`
	ResetCycle    period.Cycle `gorm:"size:16" json:"resetCycle"`
	LastThreshold float64      `json:"lastThreshold"`
}

// EffectiveLast returns the last alerted threshold for the given period, or
// zero if the state belongs to another period or cycle.
func (s AlertState) EffectiveLast(cycle period.Cycle, periodKey string) float64 {
	if s.PeriodKey != periodKey || s.ResetCycle.Normalize() != cycle.Normalize() {
		return 0
	}
	return s.LastThreshold
}

// Preference is a user's budget configuration.
type Preference struct {
	UserID          string       `gorm:"primaryKey;size:64" json:"userId"`
	Email           string       `gorm:"size:254" json:"email"`
	BaseCurrency    string       `gorm:"size:3;not null" json:"baseCurrency"`
	Budget          float64      `gorm:"not null" json:"budget"`
	Notifications   bool         `gorm:"not null" json:"notifications"`
	ResetCycle      period.Cycle `gorm:"size:16;not null" json:"resetCycle"`
	AlertThresholds Thresholds   `gorm:"type:text" json:"alertThresholds"`
	Alert           AlertState   `gorm:"embedded;embeddedPrefix:alert_" json:"alertState"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// Defaults returns the preference used for a user with no stored record.
func Defaults(userID, baseCurrency string) *Preference {
	if baseCurrency == "" {
		baseCurrency = DefaultCurrency
	}
	return &Preference{
		UserID:          userID,
		BaseCurrency:    strings.ToUpper(baseCurrency),
		Budget:          0,
		Notifications:   true,
		ResetCycle:      period.Monthly,
		AlertThresholds: append(Thresholds(nil), DefaultThresholds...),
	}
}

// Cycle returns the preference's reset cycle, defaulting to monthly.
func (p *Preference) Cycle() period.Cycle {
	return p.ResetCycle.Normalize()
}

// Validate checks user-editable fields.
func (p *Preference) Validate() error {
	if p.UserID == "" {
		return errors.New("user id cannot be empty")
	}
	if len(p.BaseCurrency) != 3 {
		return fmt.Errorf("base currency %q must be a 3-letter code", p.BaseCurrency)
	}
	if math.IsNaN(p.Budget) || math.IsInf(p.Budget, 0) || p.Budget < 0 {
		return fmt.Errorf("budget must be a non-negative number")
	}
	if p.ResetCycle != "" && !p.ResetCycle.Valid() {
		return fmt.Errorf("reset cycle %q must be weekly, monthly or yearly", p.ResetCycle)
	}
	for _, v := range p.AlertThresholds {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return fmt.Errorf("alert threshold %v must be a positive fraction", v)
		}
	}
	return nil
}

// Store persists preferences.
type Store interface {
	// Get returns the user's preference or ErrNotFound.
	Get(ctx context.Context, userID string) (*Preference, error)

	// Save creates or replaces the user's preference.
	Save(ctx context.Context, p *Preference) error

	// SaveAlertState writes only the alert state. It returns ErrNotFound when
	// the user has no stored preference.
	SaveAlertState(ctx context.Context, userID string, state AlertState) error

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}

// Load returns the stored preference or Defaults(userID, fallbackCurrency)
// when none exists.
func Load(ctx context.Context, s Store, userID, fallbackCurrency string) (*Preference, error) {
	p, err := s.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return Defaults(userID, fallbackCurrency), nil
	}
	if err != nil {
		return nil, err
	}
	if p.BaseCurrency == "" {
		p.BaseCurrency = Defaults(userID, fallbackCurrency).BaseCurrency
	}
	return p, nil
}
