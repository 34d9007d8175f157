package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"pennywise-hq/budgetd/pkg/ledger"
)

func sample() []ledger.Expense {
	date := time.Date(2024, 3, 13, 9, 30, 0, 0, time.UTC)
	return []ledger.Expense{
		{
			ID: "e1", UserID: "u1", Title: "Coffee, large", Description: `said "hi"`,
			Amount: 3.5, Currency: "USD", BaseAmount: 290.5, BaseCurrency: "INR",
			Category: "Food", Date: date, PaymentMethod: ledger.CreditCard,
		},
		{
			ID: "e2", UserID: "u1", Title: "Bus", Amount: 40, Currency: "INR",
			BaseAmount: 40, BaseCurrency: "INR", Category: "Transport",
			Date: date.Add(-24 * time.Hour), PaymentMethod: ledger.UPI,
		},
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("disk full") }

func TestForFormat(t *testing.T) {
	tests := []struct {
		format string
		ext    string
	}{
		{"", "csv"},
		{"CSV", "csv"},
		{"json", "json"},
		{"xlsx", "xlsx"},
		{"excel", "xlsx"},
	}
	for _, tt := range tests {
		e, err := ForFormat(tt.format)
		if err != nil {
			t.Fatalf("ForFormat(%q) failed: %v", tt.format, err)
		}
		if e.Extension() != tt.ext {
			t.Errorf("ForFormat(%q) extension = %s, want %s", tt.format, e.Extension(), tt.ext)
		}
	}
	if _, err := ForFormat("pdf"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}

	e, _ := ForFormat("csv")
	if got := Filename(e, time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC)); got != "expenses_20240313.csv" {
		t.Errorf("Unexpected filename %q", got)
	}
}

func TestCSVExporter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewCSVExporter(true).Export(context.Background(), sample(), &buf); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("Output is not valid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected header plus 2 rows, got %d", len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(header, ",") {
		t.Errorf("Unexpected header %v", rows[0])
	}
	if rows[1][2] != "Coffee, large" || rows[1][3] != `said "hi"` {
		t.Errorf("Expected quoted fields to survive, got %v", rows[1])
	}
	if rows[1][5] != "Credit Card" || rows[1][8] != "290.50" {
		t.Errorf("Unexpected row %v", rows[1])
	}

	var noHeader bytes.Buffer
	_ = NewCSVExporter(false).Export(context.Background(), sample(), &noHeader)
	if strings.HasPrefix(noHeader.String(), "id,") {
		t.Error("Expected no header row")
	}
}

func TestJSONExporter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONExporter(true).Export(context.Background(), sample(), &buf); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	var got []ledger.Expense
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	if len(got) != 2 || got[0].Title != "Coffee, large" {
		t.Errorf("Unexpected decoded expenses %+v", got)
	}

	buf.Reset()
	_ = NewJSONExporter(false).Export(context.Background(), nil, &buf)
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("Expected empty array, got %q", buf.String())
	}
}

func TestXLSXExporter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewXLSXExporter().Export(context.Background(), sample(), &buf); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("Output is not a workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "id" || rows[2][2] != "Bus" {
		t.Errorf("Unexpected rows %v", rows)
	}
}

func TestExportErrors(t *testing.T) {
	ctx := context.Background()
	for _, e := range []Exporter{NewCSVExporter(true), NewJSONExporter(false), NewXLSXExporter()} {
		err := e.Export(ctx, sample(), failingWriter{})
		var exportErr *Error
		if !errors.As(err, &exportErr) {
			t.Errorf("%s: expected *Error, got %v", e.Extension(), err)
			continue
		}
		if exportErr.Format != e.Extension() || exportErr.Count != 2 {
			t.Errorf("%s: unexpected error %+v", e.Extension(), exportErr)
		}
	}
}
