package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"pennywise-hq/budgetd/pkg/expense"
	"pennywise-hq/budgetd/pkg/export"
	"pennywise-hq/budgetd/pkg/ledger"
	"pennywise-hq/budgetd/pkg/period"
	"pennywise-hq/budgetd/pkg/preference"
	"pennywise-hq/budgetd/pkg/server/middleware"
)

// ExpenseService is the domain surface used by the API.
type ExpenseService interface {
	Add(ctx context.Context, user expense.User, in expense.Input) (*expense.AddResult, error)
	List(ctx context.Context, userID string, f ledger.Filter) (ledger.Page, error)
	Totals(ctx context.Context, userID string) (*expense.Totals, error)
	Update(ctx context.Context, userID, id string, p expense.Patch) (*ledger.Expense, error)
	Delete(ctx context.Context, userID, id string) error
	Export(ctx context.Context, userID string, f ledger.Filter) ([]ledger.Expense, error)
	Preference(ctx context.Context, userID string) (*preference.Preference, error)
	SavePreference(ctx context.Context, p *preference.Preference) error
}

// Expenses serves /api/expenses and /api/preferences.
type Expenses struct {
	svc ExpenseService
	now func() time.Time
}

// NewExpenses creates the expense handlers.
func NewExpenses(svc ExpenseService) *Expenses {
	return &Expenses{svc: svc, now: time.Now}
}

type expenseRequest struct {
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	Category      string  `json:"category"`
	Date          string  `json:"date"`
	PaymentMethod string  `json:"paymentMethod"`
}

func identity(r *http.Request) middleware.Identity {
	id, _ := middleware.IdentityFrom(r.Context())
	return id
}

// Create handles POST /api/expenses.
func (h *Expenses) Create(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, "Server error while adding expense")
		return
	}
	in := expense.Input{
		Title:         req.Title,
		Description:   req.Description,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Category:      req.Category,
		PaymentMethod: req.PaymentMethod,
	}
	if req.Date != "" {
		d, err := parseDate(req.Date)
		if err != nil {
			writeError(w, r, err, "")
			return
		}
		in.Date = d
	}

	id := identity(r)
	res, err := h.svc.Add(r.Context(), expense.User{ID: id.UserID, Email: id.Email}, in)
	if err != nil {
		writeError(w, r, err, "Server error while adding expense")
		return
	}
	writeJSON(w, http.StatusOK, "Added expense successfully", envelope{
		"expense":      res.Expense,
		"budgetStatus": res.BudgetStatus,
	})
}

// List handles GET /api/expenses.
func (h *Expenses) List(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	if f.Page, err = queryInt(r, "page", 1); err != nil {
		writeError(w, r, err, "")
		return
	}
	if f.Limit, err = queryInt(r, "limit", 100); err != nil {
		writeError(w, r, err, "")
		return
	}

	page, err := h.svc.List(r.Context(), identity(r).UserID, f)
	if err != nil {
		writeError(w, r, err, "Server error while getting expenses")
		return
	}
	msg := "Fetched transactions successfully"
	if len(page.Items) == 0 {
		msg = "No transactions found"
	}
	items := page.Items
	if items == nil {
		items = []ledger.Expense{}
	}
	writeJSON(w, http.StatusOK, msg, envelope{
		"expenses": items,
		"pagination": envelope{
			"currentPage": page.CurrentPage,
			"totalPages":  page.TotalPages,
			"totalCount":  page.TotalCount,
			"hasNext":     page.HasNext,
			"hasPrev":     page.HasPrev,
		},
	})
}

// Totals handles GET /api/expenses/totals.
func (h *Expenses) Totals(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Totals(r.Context(), identity(r).UserID)
	if err != nil {
		writeError(w, r, err, "Server error while getting expense totals")
		return
	}
	writeJSON(w, http.StatusOK, "Expense totals fetched successfully", envelope{
		"totals":     t.Totals,
		"budgetInfo": t.BudgetInfo,
		"currency":   t.Currency,
	})
}

// Update handles PUT /api/expenses/{id}.
func (h *Expenses) Update(w http.ResponseWriter, r *http.Request) {
	var raw struct {
		expense.Patch
		Date *string `json:"date"`
	}
	if err := decodeJSON(r, &raw); err != nil {
		writeError(w, r, err, "Server error while updating expense")
		return
	}
	patch := raw.Patch
	if raw.Date != nil {
		d, err := parseDate(*raw.Date)
		if err != nil {
			writeError(w, r, err, "")
			return
		}
		patch.Date = &d
	}

	exp, err := h.svc.Update(r.Context(), identity(r).UserID, r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, err, "Server error while updating expense")
		return
	}
	writeJSON(w, http.StatusOK, "Expense updated successfully", envelope{"expense": exp})
}

// Delete handles DELETE /api/expenses/{id}.
func (h *Expenses) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), identity(r).UserID, r.PathValue("id")); err != nil {
		writeError(w, r, err, "Server error while deleting expense")
		return
	}
	writeJSON(w, http.StatusOK, "Expense deleted successfully", nil)
}

// Export handles GET /api/expenses/export?format=csv|json|xlsx.
func (h *Expenses) Export(w http.ResponseWriter, r *http.Request) {
	exporter, err := export.ForFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	expenses, err := h.svc.Export(r.Context(), identity(r).UserID, f)
	if err != nil {
		writeError(w, r, err, "Server error while exporting expenses")
		return
	}

	w.Header().Set("Content-Type", exporter.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(exporter, h.now())))
	if err := exporter.Export(r.Context(), expenses, w); err != nil {
		// Headers are already sent; the client sees a truncated file.
		slog.ErrorContext(r.Context(), "export failed", "format", exporter.Extension(), "error", err)
	}
}

// GetPreference handles GET /api/preferences.
func (h *Expenses) GetPreference(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Preference(r.Context(), identity(r).UserID)
	if err != nil {
		writeError(w, r, err, "Server error while getting preferences")
		return
	}
	writeJSON(w, http.StatusOK, "Preferences fetched successfully", envelope{"preference": p})
}

type preferenceRequest struct {
	BaseCurrency    *string               `json:"baseCurrency"`
	Budget          *float64              `json:"budget"`
	Notifications   *bool                 `json:"notifications"`
	ResetCycle      *string               `json:"resetCycle"`
	AlertThresholds preference.Thresholds `json:"alertThresholds"`
}

// PutPreference handles PUT /api/preferences. Omitted fields keep their
// stored values.
func (h *Expenses) PutPreference(w http.ResponseWriter, r *http.Request) {
	var req preferenceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, "Server error while saving preferences")
		return
	}
	id := identity(r)
	p, err := h.svc.Preference(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, err, "Server error while saving preferences")
		return
	}
	if id.Email != "" {
		p.Email = id.Email
	}
	if req.BaseCurrency != nil {
		p.BaseCurrency = *req.BaseCurrency
	}
	if req.Budget != nil {
		p.Budget = *req.Budget
	}
	if req.Notifications != nil {
		p.Notifications = *req.Notifications
	}
	if req.ResetCycle != nil {
		p.ResetCycle = period.Cycle(strings.ToLower(strings.TrimSpace(*req.ResetCycle)))
	}
	if req.AlertThresholds != nil {
		p.AlertThresholds = req.AlertThresholds
	}

	if err := h.svc.SavePreference(r.Context(), p); err != nil {
		writeError(w, r, err, "Server error while saving preferences")
		return
	}
	writeJSON(w, http.StatusOK, "Preferences saved successfully", envelope{"preference": p})
}
