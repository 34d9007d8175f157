package export

import (
	"context"
	"encoding/csv"
	"io"

	"pennywise-hq/budgetd/pkg/ledger"
)

// CSVExporter exports expenses to CSV.
type CSVExporter struct {
	// IncludeHeader writes a header row with column names.
	IncludeHeader bool
}

// NewCSVExporter creates a CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

func (e *CSVExporter) ContentType() string { return "text/csv; charset=utf-8" }
func (e *CSVExporter) Extension() string   { return "csv" }

// Export implements Exporter.
func (e *CSVExporter) Export(ctx context.Context, expenses []ledger.Expense, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(header); err != nil {
			return newError("csv", len(expenses), err)
		}
	}

	for i := range expenses {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := writer.Write(row(&expenses[i])); err != nil {
			return newError("csv", len(expenses), err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return newError("csv", len(expenses), err)
	}
	return nil
}
