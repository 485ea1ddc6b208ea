package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/opsdesk/opsdesk/internal/apperr"
	"github.com/opsdesk/opsdesk/internal/database"
	"github.com/opsdesk/opsdesk/internal/models"
)

type employeeRequest struct {
	FullName   string  `json:"full_name"`
	Email      string  `json:"email"`
	Phone      string  `json:"phone"`
	Department string  `json:"department"`
	Position   string  `json:"position"`
	Salary     float64 `json:"salary"`
	HireDate   string  `json:"hire_date"`
	Status     string  `json:"status"`
}

func (req *employeeRequest) toModel() (*models.Employee, error) {
	if req.FullName == "" || req.Email == "" {
		return nil, apperr.Validation("full_name and email are required")
	}
	if req.Status == "" {
		req.Status = "active"
	}
	hireDate := time.Now()
	if req.HireDate != "" {
		t, err := time.Parse("2006-01-02", req.HireDate)
		if err != nil {
			return nil, apperr.Validation("hire_date must be YYYY-MM-DD")
		}
		hireDate = t
	}
	return &models.Employee{
		FullName:   req.FullName,
		Email:      req.Email,
		Phone:      req.Phone,
		Department: req.Department,
		Position:   req.Position,
		Salary:     req.Salary,
		HireDate:   hireDate,
		Status:     req.Status,
	}, nil
}

func ListEmployees(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, perPage, offset := pageParams(r)
		employees, total, err := database.ListEmployees(db, r.URL.Query().Get("status"), r.URL.Query().Get("q"), perPage, offset)
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		writePage(w, employees, page, perPage, total)
	}
}

func GetEmployee(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		employee, err := database.GetEmployee(db, mux.Vars(r)["id"])
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		if employee == nil {
			apperr.HandleError(w, apperr.NotFound("employee"))
			return
		}
		writeJSON(w, http.StatusOK, employee)
	}
}

func CreateEmployee(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req employeeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperr.HandleError(w, apperr.Validation("invalid request body"))
			return
		}
		employee, err := req.toModel()
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		created, err := database.CreateEmployee(db, employee)
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func UpdateEmployee(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req employeeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperr.HandleError(w, apperr.Validation("invalid request body"))
			return
		}
		employee, err := req.toModel()
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		updated, err := database.UpdateEmployee(db, mux.Vars(r)["id"], employee)
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		if updated == nil {
			apperr.HandleError(w, apperr.NotFound("employee"))
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func DeleteEmployee(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deleted, err := database.DeleteEmployee(db, mux.Vars(r)["id"])
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		if !deleted {
			apperr.HandleError(w, apperr.NotFound("employee"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}
