// Package ledger stores expense records, the source of truth for every
// budget total.
//
// # Overview
//
// Expenses are written once by the add path and queried by user and date
// range. Each record carries its amount both in the currency it was paid in
// and converted into the user's base currency at creation time; budget
// totals only ever sum the base amount.
//
// Two Store implementations are provided:
//
//   - GormStore: SQLite through gorm, for production
//   - MemoryStore: in-process, for tests and dry runs
//
// # Thread Safety
//
// Both stores are safe for concurrent use.
package ledger
