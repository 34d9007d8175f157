package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pennywise-hq/budgetd/pkg/expense"
	"pennywise-hq/budgetd/pkg/export"
	"pennywise-hq/budgetd/pkg/ledger"
	"pennywise-hq/budgetd/pkg/rates"
)

// envelope is the common response body.
type envelope map[string]any

func writeJSON(w http.ResponseWriter, status int, message string, fields envelope) {
	body := envelope{"success": status < 400, "message": message}
	for k, v := range fields {
		body[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, expense.ErrValidation),
		errors.Is(err, expense.ErrInvalidAmount),
		errors.Is(err, expense.ErrAmountTooLarge),
		errors.Is(err, rates.ErrInvalidCurrency),
		errors.Is(err, export.ErrUnsupportedFormat),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, rates.ErrRateUnavailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and writes the mapped status. Server errors hide the
// cause behind fallback.
func writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := statusFor(err)
	msg := err.Error()
	if status >= 500 {
		slog.ErrorContext(r.Context(), fallback, "error", err, "path", r.URL.Path)
		msg = fallback
	} else {
		slog.DebugContext(r.Context(), "request rejected", "status", status, "error", err)
	}
	writeJSON(w, status, msg, nil)
}

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

// dateLayouts are accepted for dates in request bodies and query strings.
var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"}

// parseDate parses s in local time when it carries no zone.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, badRequest("invalid date %q", s)
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, badRequest("%s must be a positive integer", name)
	}
	return n, nil
}

// filterFromQuery reads category, startDate and endDate. An endDate given
// as a bare date includes the whole day.
func filterFromQuery(r *http.Request) (ledger.Filter, error) {
	q := r.URL.Query()
	f := ledger.Filter{Category: q.Get("category")}
	if v := q.Get("startDate"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return f, err
		}
		f.Start = t
	}
	if v := q.Get("endDate"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return f, err
		}
		if len(strings.TrimSpace(v)) == len("2006-01-02") {
			t = t.AddDate(0, 0, 1).Add(-time.Millisecond)
		}
		f.End = t
	}
	return f, nil
}
