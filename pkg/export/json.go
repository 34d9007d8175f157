package export

import (
	"context"
	"encoding/json"
	"io"

	"pennywise-hq/budgetd/pkg/ledger"
)

// JSONExporter exports expenses as a JSON array.
type JSONExporter struct {
	// Pretty enables indentation.
	Pretty bool
}

// NewJSONExporter creates a JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

func (e *JSONExporter) ContentType() string { return "application/json" }
func (e *JSONExporter) Extension() string   { return "json" }

// Export implements Exporter. An empty ledger is written as [].
func (e *JSONExporter) Export(ctx context.Context, expenses []ledger.Expense, w io.Writer) error {
	if expenses == nil {
		expenses = []ledger.Expense{}
	}
	enc := json.NewEncoder(w)
	if e.Pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(expenses); err != nil {
		return newError("json", len(expenses), err)
	}
	return nil
}
