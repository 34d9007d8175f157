package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"pennywise-hq/budgetd/pkg/ledger"
)

// ErrUnsupportedFormat is returned by ForFormat for unknown formats.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Exporter writes expenses to w.
type Exporter interface {
	Export(ctx context.Context, expenses []ledger.Expense, w io.Writer) error
	ContentType() string
	Extension() string
}

// Error represents a failed export.
type Error struct {
	Format string
	Count  int
	Cause  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("export error [format=%s, count=%d]: %v", e.Format, e.Count, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(format string, count int, cause error) *Error {
	return &Error{Format: format, Count: count, Cause: cause}
}

// ForFormat returns the exporter for csv, json or xlsx.
func ForFormat(format string) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "csv":
		return NewCSVExporter(true), nil
	case "json":
		return NewJSONExporter(false), nil
	case "xlsx", "excel":
		return NewXLSXExporter(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// Filename returns the attachment name of an export made at t.
func Filename(e Exporter, t time.Time) string {
	return fmt.Sprintf("expenses_%s.%s", t.Format("20060102"), e.Extension())
}

var header = []string{
	"id", "date", "title", "description", "category", "payment_method",
	"amount", "currency", "base_amount", "base_currency",
}

func row(e *ledger.Expense) []string {
	return []string{
		e.ID,
		e.Date.Format(time.RFC3339),
		e.Title,
		e.Description,
		e.Category,
		string(e.PaymentMethod),
		fmt.Sprintf("%.2f", e.Amount),
		e.Currency,
		fmt.Sprintf("%.2f", e.BaseAmount),
		e.BaseCurrency,
	}
}
