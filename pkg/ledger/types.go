package ledger

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when an expense does not exist for the user.
	ErrNotFound = errors.New("expense not found")

	// ErrInvalidAmount is returned when a base amount is not positive and finite.
	ErrInvalidAmount = errors.New("base amount must be positive and finite")

	// ErrMissingUser is returned when an expense has no owner.
	ErrMissingUser = errors.New("expense user cannot be empty")
)

// PaymentMethod is how an expense was paid.
type PaymentMethod string

const (
	Cash         PaymentMethod = "Cash"
	CreditCard   PaymentMethod = "Credit Card"
	DebitCard    PaymentMethod = "Debit Card"
	UPI          PaymentMethod = "UPI"
	BankTransfer PaymentMethod = "Bank Transfer"
	OtherMethod  PaymentMethod = "Other"
)

// PaymentMethods lists the accepted payment methods.
var PaymentMethods = []PaymentMethod{Cash, CreditCard, DebitCard, UPI, BankTransfer, OtherMethod}

// ParsePaymentMethod matches s case-insensitively. Empty or unknown values
// return OtherMethod and false.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	for _, m := range PaymentMethods {
		if strings.EqualFold(string(m), strings.TrimSpace(s)) {
			return m, true
		}
	}
	return OtherMethod, false
}

// Expense is a single ledger record.
type Expense struct {
	ID            string        `gorm:"primaryKey;size:36" json:"id"`
	UserID        string        `gorm:"size:64;not null;index:idx_expenses_user_date,priority:1" json:"userId"`
	Title         string        `gorm:"size:100;not null" json:"title"`
	Description   string        `gorm:"size:500" json:"description,omitempty"`
	Amount        float64       `gorm:"not null" json:"amount"`
	Currency      string        `gorm:"size:3;not null" json:"currency"`
	BaseAmount    float64       `gorm:"not null" json:"baseAmount"`
	BaseCurrency  string        `gorm:"size:3;not null" json:"baseCurrency"`
	Category      string        `gorm:"size:64;not null;index" json:"category"`
	Date          time.Time     `gorm:"not null;index:idx_expenses_user_date,priority:2" json:"date"`
	PaymentMethod PaymentMethod `gorm:"size:32;not null;default:Other" json:"paymentMethod"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// Validate checks the invariants every stored expense must satisfy.
func (e *Expense) Validate() error {
	if e.UserID == "" {
		return ErrMissingUser
	}
	if math.IsNaN(e.BaseAmount) || math.IsInf(e.BaseAmount, 0) || e.BaseAmount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Filter selects expenses. Zero values are unbounded.
type Filter struct {
	UserID   string
	Category string
	Start    time.Time
	End      time.Time

	// Page is 1-based. Default: 1
	Page int
	// Limit is the page size. Default: 100
	Limit int
}

const (
	defaultPage  = 1
	defaultLimit = 100
)

func (f Filter) normalized() Filter {
	if f.Page < 1 {
		f.Page = defaultPage
	}
	if f.Limit < 1 {
		f.Limit = defaultLimit
	}
	return f
}

func (f Filter) matches(e *Expense) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if !f.Start.IsZero() && e.Date.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && e.Date.After(f.End) {
		return false
	}
	return true
}

// Page is one page of a listing.
type Page struct {
	Items       []Expense `json:"expenses"`
	CurrentPage int       `json:"currentPage"`
	TotalPages  int       `json:"totalPages"`
	TotalCount  int64     `json:"totalCount"`
	HasNext     bool      `json:"hasNext"`
	HasPrev     bool      `json:"hasPrev"`
}

func newPage(items []Expense, f Filter, total int64) Page {
	pages := int((total + int64(f.Limit) - 1) / int64(f.Limit))
	return Page{
		Items:       items,
		CurrentPage: f.Page,
		TotalPages:  pages,
		TotalCount:  total,
		HasNext:     f.Page < pages,
		HasPrev:     f.Page > 1,
	}
}

// Store persists expenses. Implementations must be safe for concurrent use.
type Store interface {
	// Insert stores a new expense, assigning an ID if empty.
	Insert(ctx context.Context, e *Expense) error

	// Get returns one expense of the user or ErrNotFound.
	Get(ctx context.Context, userID, id string) (*Expense, error)

	// Find returns the user's expenses with start <= date <= end.
	Find(ctx context.Context, userID string, start, end time.Time) ([]Expense, error)

	// Count returns how many expenses match f, ignoring pagination.
	Count(ctx context.Context, f Filter) (int64, error)

	// List returns one page of matching expenses, newest first.
	List(ctx context.Context, f Filter) (Page, error)

	// Update rewrites an existing expense or returns ErrNotFound.
	Update(ctx context.Context, e *Expense) error

	// Delete removes an expense of the user or returns ErrNotFound.
	Delete(ctx context.Context, userID, id string) error

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}

// Sum returns the total base amount, rounded to 2 decimals, and the count.
func Sum(expenses []Expense) (float64, int64) {
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(decimal.NewFromFloat(e.BaseAmount))
	}
	return total.Round(2).InexactFloat64(), int64(len(expenses))
}
