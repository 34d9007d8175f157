package export

import (
	"context"
	"io"

	"github.com/xuri/excelize/v2"

	"pennywise-hq/budgetd/pkg/ledger"
)

// SheetName is the worksheet expenses are written to.
const SheetName = "Expenses"

var columnWidths = map[string]float64{
	"A": 38, "B": 22, "C": 24, "D": 36, "E": 16,
	"F": 16, "G": 12, "H": 10, "I": 14, "J": 14,
}

// XLSXExporter exports expenses to an Excel workbook.
type XLSXExporter struct{}

// NewXLSXExporter creates an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}
func (e *XLSXExporter) Extension() string { return "xlsx" }

// Export implements Exporter. Amounts are written as numbers.
func (e *XLSXExporter) Export(ctx context.Context, expenses []ledger.Expense, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return newError("xlsx", len(expenses), err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return newError("xlsx", len(expenses), err)
	}

	for col, h := range header {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return newError("xlsx", len(expenses), err)
		}
	}

	for i := range expenses {
		if err := ctx.Err(); err != nil {
			return err
		}
		exp := &expenses[i]
		values := []any{
			exp.ID,
			exp.Date.Format("2006-01-02 15:04"),
			exp.Title,
			exp.Description,
			exp.Category,
			string(exp.PaymentMethod),
			exp.Amount,
			exp.Currency,
			exp.BaseAmount,
			exp.BaseCurrency,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return newError("xlsx", len(expenses), err)
			}
		}
	}

	for col, width := range columnWidths {
		_ = f.SetColWidth(SheetName, col, col, width)
	}

	if err := f.Write(w); err != nil {
		return newError("xlsx", len(expenses), err)
	}
	return nil
}
