package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/opsdesk/opsdesk/internal/apperr"
	"github.com/opsdesk/opsdesk/internal/auth"
	"github.com/opsdesk/opsdesk/internal/database"
	"github.com/opsdesk/opsdesk/internal/models"
)

type expenseRequest struct {
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Amount      float64 `json:"amount"`
	IncurredOn  string  `json:"incurred_on"`
}

func (req *expenseRequest) toModel(submittedBy string) (*models.Expense, error) {
	if req.Description == "" {
		return nil, apperr.Validation("description is required")
	}
	if req.Amount <= 0 {
		return nil, apperr.Validation("amount must be positive")
	}
	incurredOn := time.Now()
	if req.IncurredOn != "" {
		t, err := time.Parse("2006-01-02", req.IncurredOn)
		if err != nil {
			return nil, apperr.Validation("incurred_on must be YYYY-MM-DD")
		}
		incurredOn = t
	}
	return &models.Expense{
		Description: req.Description,
		Category:    req.Category,
		Amount:      req.Amount,
		IncurredOn:  incurredOn,
		SubmittedBy: submittedBy,
	}, nil
}

func ListExpenses(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, perPage, offset := pageParams(r)
		// Staff only see their own expenses.
		submittedBy := r.URL.Query().Get("submitted_by")
		if auth.Role(r) == models.RoleStaff {
			submittedBy = auth.UserID(r)
		}
		expenses, total, err := database.ListExpenses(db, r.URL.Query().Get("status"), submittedBy, perPage, offset)
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		writePage(w, expenses, page, perPage, total)
	}
}

func GetExpense(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		expense, err := database.GetExpense(db, mux.Vars(r)["id"])
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		if expense == nil {
			apperr.HandleError(w, apperr.NotFound("expense"))
			return
		}
		if auth.Role(r) == models.RoleStaff && expense.SubmittedBy != auth.UserID(r) {
			apperr.HandleError(w, apperr.Forbidden("not your expense"))
			return
		}
		writeJSON(w, http.StatusOK, expense)
	}
}

func CreateExpense(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req expenseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperr.HandleError(w, apperr.Validation("invalid request body"))
			return
		}
		expense, err := req.toModel(auth.UserID(r))
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		created, err := database.CreateExpense(db, expense)
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func UpdateExpense(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		existing, err := database.GetExpense(db, mux.Vars(r)["id"])
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		if existing == nil {
			apperr.HandleError(w, apperr.NotFound("expense"))
			return
		}
		if existing.SubmittedBy != auth.UserID(r) && auth.Role(r) == models.RoleStaff {
			apperr.HandleError(w, apperr.Forbidden("not your expense"))
			return
		}
		if existing.Status != "pending" {
			apperr.HandleError(w, apperr.Validation("only pending expenses can be edited"))
			return
		}

		var req expenseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperr.HandleError(w, apperr.Validation("invalid request body"))
			return
		}
		expense, err := req.toModel(existing.SubmittedBy)
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		updated, err := database.UpdateExpense(db, existing.ID, expense)
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

// SetExpenseStatus approves or rejects a pending expense. Route is gated to
// manager/admin roles.
func SetExpenseStatus(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperr.HandleError(w, apperr.Validation("invalid request body"))
			return
		}
		if req.Status != "approved" && req.Status != "rejected" {
			apperr.HandleError(w, apperr.Validation("status must be approved or rejected"))
			return
		}
		updated, err := database.SetExpenseStatus(db, mux.Vars(r)["id"], req.Status)
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		if updated == nil {
			apperr.HandleError(w, apperr.NotFound("expense"))
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func DeleteExpense(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deleted, err := database.DeleteExpense(db, mux.Vars(r)["id"])
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		if !deleted {
			apperr.HandleError(w, apperr.NotFound("expense"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}
