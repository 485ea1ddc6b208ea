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

type assetRequest struct {
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	SerialNumber string  `json:"serial_number"`
	AssignedTo   *string `json:"assigned_to"`
	Status       string  `json:"status"`
	PurchaseDate string  `json:"purchase_date"`
	PurchaseCost float64 `json:"purchase_cost"`
}

func (req *assetRequest) toModel() (*models.Asset, error) {
	if req.Name == "" || req.SerialNumber == "" {
		return nil, apperr.Validation("name and serial_number are required")
	}
	if req.Status == "" {
		if req.AssignedTo != nil {
			req.Status = "assigned"
		} else {
			req.Status = "available"
		}
	}
	var purchaseDate *time.Time
	if req.PurchaseDate != "" {
		t, err := time.Parse("2006-01-02", req.PurchaseDate)
		if err != nil {
			return nil, apperr.Validation("purchase_date must be YYYY-MM-DD")
		}
		purchaseDate = &t
	}
	return &models.Asset{
		Name:         req.Name,
		Category:     req.Category,
		SerialNumber: req.SerialNumber,
		AssignedTo:   req.AssignedTo,
		Status:       req.Status,
		PurchaseDate: purchaseDate,
		PurchaseCost: req.PurchaseCost,
	}, nil
}

func ListAssets(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, perPage, offset := pageParams(r)
		assets, total, err := database.ListAssets(db, r.URL.Query().Get("status"), r.URL.Query().Get("q"), perPage, offset)
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		writePage(w, assets, page, perPage, total)
	}
}

func GetAsset(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asset, err := database.GetAsset(db, mux.Vars(r)["id"])
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		if asset == nil {
			apperr.HandleError(w, apperr.NotFound("asset"))
			return
		}
		writeJSON(w, http.StatusOK, asset)
	}
}

func CreateAsset(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req assetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperr.HandleError(w, apperr.Validation("invalid request body"))
			return
		}
		asset, err := req.toModel()
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		created, err := database.CreateAsset(db, asset)
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func UpdateAsset(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req assetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperr.HandleError(w, apperr.Validation("invalid request body"))
			return
		}
		asset, err := req.toModel()
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		updated, err := database.UpdateAsset(db, mux.Vars(r)["id"], asset)
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		if updated == nil {
			apperr.HandleError(w, apperr.NotFound("asset"))
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func DeleteAsset(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deleted, err := database.DeleteAsset(db, mux.Vars(r)["id"])
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		if !deleted {
			apperr.HandleError(w, apperr.NotFound("asset"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}
