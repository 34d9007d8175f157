// Package cache maintains the running total of a user's spend within the
// current budget period.
//
// # Overview
//
// Each (user, reset cycle, period start) has one entry stored under
//
//	budget:{userId}:{resetCycle}:{periodStartDate}
//
// holding the total of base amounts and the number of expenses recorded in
// the period. Entries are derived data: the expense ledger is the source of
// truth and any entry can be rebuilt from it.
//
// # Lifecycle
//
// Entries are created lazily, expire 24 hours after the natural end of their
// period, and are invalidated when the ledger is changed by anything other
// than an expense add. Only the add path may call IncrementalUpdate.
//
// # Failure Model
//
// Store errors and undecodable entries are reported as misses. A malformed
// entry is deleted so the next read recomputes from the ledger.
//
// # Thread Safety
//
// BudgetCache holds no mutable state of its own. Concurrent increments for
// the same user may race on read-modify-write; the drift is bounded by
// invalidation and natural expiry.
package cache
