package handlers

import (
	"context"
	"net/http"
	"time"

	"pennywise-hq/budgetd/pkg/queue"
	"pennywise-hq/budgetd/pkg/telemetry/health"
)

// CacheClearer deletes budget cache entries by glob pattern.
type CacheClearer interface {
	Clear(ctx context.Context, pattern string) (int, error)
}

// QueueAdmin is the queue surface used by admin routes.
type QueueAdmin interface {
	Stats(ctx context.Context) (queue.Stats, error)
	RetryFailed(ctx context.Context) (int, error)
	Clean(ctx context.Context, grace time.Duration, status queue.Status) (int, error)
}

// Admin serves /admin routes.
type Admin struct {
	cache   CacheClearer
	queue   QueueAdmin
	checker *health.Checker
}

// NewAdmin creates the admin handlers.
func NewAdmin(c CacheClearer, q QueueAdmin, checker *health.Checker) *Admin {
	return &Admin{cache: c, queue: q, checker: checker}
}

// Health handles GET /admin/health: dependency checks plus queue counts.
func (h *Admin) Health(w http.ResponseWriter, r *http.Request) {
	status := h.checker.CheckReadiness(r.Context())
	stats, err := h.queue.Stats(r.Context())
	code := http.StatusOK
	if status.Status != health.StatusReady || err != nil {
		code = http.StatusServiceUnavailable
	}
	fields := envelope{"health": status}
	if err == nil {
		fields["queue"] = stats
	}
	writeJSON(w, code, status.Status, fields)
}

// QueueStats handles GET /admin/queue/stats.
func (h *Admin) QueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queue.Stats(r.Context())
	if err != nil {
		writeError(w, r, err, "Failed to read queue stats")
		return
	}
	writeJSON(w, http.StatusOK, "Queue stats fetched successfully", envelope{
		"stats": stats,
		"total": stats.Total(),
	})
}

// ClearCache handles POST /admin/cache/clear?pattern=.
func (h *Admin) ClearCache(w http.ResponseWriter, r *http.Request) {
	n, err := h.cache.Clear(r.Context(), r.URL.Query().Get("pattern"))
	if err != nil {
		writeError(w, r, err, "Failed to clear cache")
		return
	}
	writeJSON(w, http.StatusOK, "Cache cleared", envelope{"deleted": n})
}

// RetryFailed handles POST /admin/queue/retry.
func (h *Admin) RetryFailed(w http.ResponseWriter, r *http.Request) {
	n, err := h.queue.RetryFailed(r.Context())
	if err != nil {
		writeError(w, r, err, "Failed to retry jobs")
		return
	}
	writeJSON(w, http.StatusOK, "Failed jobs requeued", envelope{"retried": n})
}

// Clean handles POST /admin/queue/clean?grace=1h&status=completed. Both
// finished states are cleaned when status is omitted.
func (h *Admin) Clean(w http.ResponseWriter, r *http.Request) {
	grace := 24 * time.Hour
	if v := r.URL.Query().Get("grace"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			writeError(w, r, badRequest("invalid grace %q", v), "")
			return
		}
		grace = d
	}

	statuses := []queue.Status{queue.StatusCompleted, queue.StatusFailed}
	switch s := queue.Status(r.URL.Query().Get("status")); s {
	case "":
	case queue.StatusCompleted, queue.StatusFailed:
		statuses = []queue.Status{s}
	default:
		writeError(w, r, badRequest("status must be completed or failed"), "")
		return
	}

	removed := 0
	for _, s := range statuses {
		n, err := h.queue.Clean(r.Context(), grace, s)
		if err != nil {
			writeError(w, r, err, "Failed to clean queue")
			return
		}
		removed += n
	}
	writeJSON(w, http.StatusOK, "Queue cleaned", envelope{"removed": removed})
}
