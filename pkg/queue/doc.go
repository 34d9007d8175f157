// Package queue is a durable, retrying job queue with a concurrent worker
// pool.
//
// # Overview
//
// Producers call Enqueue with a job name, a JSON-encodable payload and
// Options controlling priority, attempts and backoff. A Worker dequeues
// ready jobs (lowest priority value first, then oldest run time) and
// dispatches them to the Handler registered for the job name.
//
// Delivery is at-least-once: a job that was active when the process died
// is returned to the waiting state on the next start, and a handler error
// schedules a retry until the attempts are exhausted. Handlers must
// tolerate duplicates.
//
// # Backends
//
//   - SQLiteQueue: durable, survives restarts
//   - MemoryQueue: in-process, for tests and dry runs
//
// # Usage
//
//	q, _ := queue.NewSQLiteQueue("data/queue.db")
//	id, _ := q.Enqueue(ctx, "budget-alert", payload, queue.Options{
//	    Priority: queue.PriorityHigh,
//	    Attempts: 3,
//	    Backoff:  queue.Backoff{Type: queue.BackoffExponential, Delay: 2 * time.Second},
//	})
//
//	w := queue.NewWorker(q, queue.WorkerConfig{Concurrency: 5})
//	w.Handle("budget-alert", handler)
//	w.Start(ctx)
//	defer w.Stop()
package queue
