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

type driverRequest struct {
	FullName      string `json:"full_name"`
	LicenseNumber string `json:"license_number"`
	LicenseExpiry string `json:"license_expiry"`
	Phone         string `json:"phone"`
	Vehicle       string `json:"vehicle"`
	Status        string `json:"status"`
}

func (req *driverRequest) toModel() (*models.Driver, error) {
	if req.FullName == "" || req.LicenseNumber == "" || req.LicenseExpiry == "" {
		return nil, apperr.Validation("full_name, license_number, and license_expiry are required")
	}
	expiry, err := time.Parse("2006-01-02", req.LicenseExpiry)
	if err != nil {
		return nil, apperr.Validation("license_expiry must be YYYY-MM-DD")
	}
	if req.Status == "" {
		req.Status = "active"
	}
	return &models.Driver{
		FullName:      req.FullName,
		LicenseNumber: req.LicenseNumber,
		LicenseExpiry: expiry,
		Phone:         req.Phone,
		Vehicle:       req.Vehicle,
		Status:        req.Status,
	}, nil
}

func ListDrivers(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, perPage, offset := pageParams(r)
		drivers, total, err := database.ListDrivers(db, r.URL.Query().Get("status"), r.URL.Query().Get("q"), perPage, offset)
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		writePage(w, drivers, page, perPage, total)
	}
}

func GetDriver(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		driver, err := database.GetDriver(db, mux.Vars(r)["id"])
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		if driver == nil {
			apperr.HandleError(w, apperr.NotFound("driver"))
			return
		}
		writeJSON(w, http.StatusOK, driver)
	}
}

func CreateDriver(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req driverRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperr.HandleError(w, apperr.Validation("invalid request body"))
			return
		}
		driver, err := req.toModel()
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		created, err := database.CreateDriver(db, driver)
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func UpdateDriver(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req driverRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperr.HandleError(w, apperr.Validation("invalid request body"))
			return
		}
		driver, err := req.toModel()
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		updated, err := database.UpdateDriver(db, mux.Vars(r)["id"], driver)
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		if updated == nil {
			apperr.HandleError(w, apperr.NotFound("driver"))
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func DeleteDriver(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deleted, err := database.DeleteDriver(db, mux.Vars(r)["id"])
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		if !deleted {
			apperr.HandleError(w, apperr.NotFound("driver"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}
