// Package alerts detects budget threshold crossings and delivers alert
// emails through the job queue.
//
// # Overview
//
// After every expense add, CheckAndFire compares the period total against
// the user's budget. Each configured threshold (a fraction of the budget)
// that is reached for the first time in the current period produces one
// "budget-alert" job. The highest threshold fired is then recorded in the
// user's AlertState, tagged with the period key, so a threshold never fires
// twice in one period and every threshold re-arms when the period rolls over.
//
// Delivery is handled by Delivery.Handle, registered on a queue.Worker. It
// enforces a per-user daily cap on alert emails before sending.
//
// # State Machine
//
// Per user and period, the alert state only moves forward:
//
//	0 -> 0.5 -> 1.0
//
// A single expense that jumps past several thresholds enqueues one job per
// threshold, in ascending order, and writes the state once.
package alerts
