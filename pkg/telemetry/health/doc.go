// Package health provides liveness, readiness and version endpoints.
//
// Readiness aggregates named checks run concurrently with a per-check
// timeout. The server registers one check per backing store:
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("ledger", health.PingCheck(ledgerStore))
//	checker.RegisterCheck("cache", health.PingCheck(kvStore))
//	checker.RegisterCheck("queue", health.QueueCheck(q, 1000))
//	checker.Register(mux, version, commit, buildTime)
package health
