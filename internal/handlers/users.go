package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/opsdesk/opsdesk/internal/apperr"
	"github.com/opsdesk/opsdesk/internal/auth"
	"github.com/opsdesk/opsdesk/internal/database"
	"github.com/opsdesk/opsdesk/internal/models"
)

func ListUsers(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := database.ListUsers(db, r.URL.Query().Get("q"), 50)
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, users)
	}
}

func GetUser(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := database.GetUserByID(db, mux.Vars(r)["id"])
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		if user == nil {
			apperr.HandleError(w, apperr.NotFound("user"))
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

// UpdateProfile lets a user change their own full name and avatar.
func UpdateProfile(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			FullName  string `json:"full_name"`
			AvatarURL string `json:"avatar_url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperr.HandleError(w, apperr.Validation("invalid request body"))
			return
		}
		updated, err := database.UpdateUserProfile(db, auth.UserID(r), req.FullName, req.AvatarURL)
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		if updated == nil {
			apperr.HandleError(w, apperr.NotFound("user"))
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

// UpdateUserRole changes another user's role. Route is admin-gated.
func UpdateUserRole(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Role string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperr.HandleError(w, apperr.Validation("invalid request body"))
			return
		}
		switch req.Role {
		case models.RoleAdmin, models.RoleManager, models.RoleStaff:
		default:
			apperr.HandleError(w, apperr.Validation("role must be admin, manager, or staff"))
			return
		}
		updated, err := database.UpdateUserRole(db, mux.Vars(r)["id"], req.Role)
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		if updated == nil {
			apperr.HandleError(w, apperr.NotFound("user"))
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}
