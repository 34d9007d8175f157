// Package period computes budget period boundaries.
//
// # Overview
//
// A user's budget resets on a weekly, monthly or yearly cycle. The current
// period always starts at a calendar boundary in local time and ends at the
// evaluation instant, so totals for the current period are live:
//
//   - weekly: the most recent Monday at 00:00:00
//   - monthly: the first day of the month at 00:00:00
//   - yearly: January 1 at 00:00:00
//
// Fixed display periods (week, month, year) use the same rules and are
// independent of the user's cycle.
//
// # Period Keys
//
// Key returns the local calendar date of a period start. It changes exactly
// at a cycle boundary and is used to partition cached totals and alert state.
//
// # Usage
//
//	r := period.CurrentRange(period.ParseCycle(pref.ResetCycle), time.Now())
//	key := period.Key(r.Start)
//	ttl := time.Until(period.NaturalEnd(cycle, r.Start))
package period
