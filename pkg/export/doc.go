// Package export writes a user's ledger in downloadable formats.
//
// # Export Formats
//
//   - CSV: one row per expense with a header row
//   - JSON: an array of expense objects, optionally indented
//   - XLSX: a single worksheet built with excelize
//
// # Usage
//
//	exporter, err := export.ForFormat("csv")
//	if err != nil {
//	    return err
//	}
//	w.Header().Set("Content-Type", exporter.ContentType())
//	err = exporter.Export(ctx, expenses, w)
//
// # Error Handling
//
// Exporters return *Error when encoding or writing fails. Unknown formats
// return ErrUnsupportedFormat.
package export
