// Package janitor runs periodic housekeeping on a cron schedule.
//
// Two tasks are supported: sweeping expired keys from cache backends that
// keep them until swept (memory, SQLite), and removing finished alert jobs
// older than a grace period from the queue. Schedules use standard
// five-field cron syntax:
//
//	"*/15 * * * *"  every 15 minutes
//	"0 3 * * *"     daily at 3 AM
//
// An empty schedule disables its task.
package janitor
