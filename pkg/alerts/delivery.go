package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pennywise-hq/budgetd/pkg/cache/kv"
	"pennywise-hq/budgetd/pkg/mail"
	"pennywise-hq/budgetd/pkg/queue"
)

// DefaultDailyLimit is the number of alert emails a user may receive per day.
const DefaultDailyLimit = 10

// RateLimitKey returns the counter key of a user's daily alert emails.
func RateLimitKey(userID string) string {
	return "email_rate_limit:" + userID
}

// countedKey marks a job as already counted against its user's daily limit.
func countedKey(jobID string) string {
	return "email_counted:" + jobID
}

// Delivery sends queued alert emails.
type Delivery struct {
	sender     mail.Sender
	counters   kv.Store
	dailyLimit int64
	logger     *slog.Logger
}

// NewDelivery creates a Delivery. A dailyLimit <= 0 uses DefaultDailyLimit.
func NewDelivery(sender mail.Sender, counters kv.Store, dailyLimit int) *Delivery {
	if dailyLimit <= 0 {
		dailyLimit = DefaultDailyLimit
	}
	return &Delivery{
		sender:     sender,
		counters:   counters,
		dailyLimit: int64(dailyLimit),
		logger:     slog.Default().With("component", "alert-delivery"),
	}
}

// Register attaches the handler to w.
func (d *Delivery) Register(w *queue.Worker) {
	w.Handle(JobName, d.Handle)
}

// Handle is the queue.Handler for budget-alert jobs. Jobs over the user's
// daily limit are dropped without retry.
func (d *Delivery) Handle(ctx context.Context, job *queue.Job) error {
	var p Payload
	if err := job.Decode(&p); err != nil {
		return queue.Permanent(err)
	}
	if p.Email == "" {
		return queue.Permanent(fmt.Errorf("alert for user %s has no email", p.UserID))
	}

	if d.firstCount(ctx, job) {
		n, err := d.counters.Incr(ctx, RateLimitKey(p.UserID), 24*time.Hour)
		if err != nil {
			d.logger.Warn("email rate limit check failed, sending anyway", "user_id", p.UserID, "error", err)
		} else if n > d.dailyLimit {
			d.logger.Warn("email rate limit exceeded, dropping alert",
				"user_id", p.UserID,
				"threshold", p.Threshold,
				"count", n,
				"limit", d.dailyLimit,
			)
			return nil
		}
	}

	if err := d.sender.Send(ctx, p.Email, p.Subject, p.Body); err != nil {
		return err
	}

	d.logger.Info("budget alert sent",
		"job_id", job.ID,
		"user_id", p.UserID,
		"threshold", p.Threshold,
		"current_total", p.CurrentTotal,
		"budget", p.Budget,
	)
	return nil
}

// firstCount reports whether job has not yet been counted against the daily
// limit. The marker outlives attempt resets from a manual retry.
func (d *Delivery) firstCount(ctx context.Context, job *queue.Job) bool {
	if job.ID == "" {
		return job.AttemptsMade <= 1
	}
	n, err := d.counters.Incr(ctx, countedKey(job.ID), 24*time.Hour)
	if err != nil {
		d.logger.Warn("email count marker unavailable", "job_id", job.ID, "error", err)
		return job.AttemptsMade <= 1
	}
	return n == 1
}
