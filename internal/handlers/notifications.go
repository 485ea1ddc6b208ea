package handlers

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/opsdesk/opsdesk/internal/apperr"
	"github.com/opsdesk/opsdesk/internal/auth"
	"github.com/opsdesk/opsdesk/internal/chat"
	"github.com/opsdesk/opsdesk/internal/database"
	"github.com/opsdesk/opsdesk/internal/notify"
)

func ListNotifications(center *notify.Center) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		notifications, unread := center.Notifications(auth.UserID(r))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"notifications": notifications,
			"unread":        unread,
			"popups":        center.Popups(auth.UserID(r)),
		})
	}
}

func MarkNotificationRead(center *notify.Center) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		center.MarkRead(auth.UserID(r), mux.Vars(r)["id"])
		writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
	}
}

func MarkAllNotificationsRead(center *notify.Center) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		center.MarkAllRead(auth.UserID(r))
		writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
	}
}

func ClearNotifications(center *notify.Center) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		center.Clear(auth.UserID(r))
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	}
}

func DismissPopup(center *notify.Center) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		center.DismissPopup(auth.UserID(r), mux.Vars(r)["id"])
		writeJSON(w, http.StatusOK, map[string]string{"status": "dismissed"})
	}
}

// Source-record handlers (complaints, suggestions, IT requests). Creating
// or updating a record publishes a change event the notification watcher
// fans out to online users.

func ListSourceRecords(db *sql.DB, table string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !database.ValidSourceTable(table) {
			apperr.HandleError(w, apperr.NotFound("resource"))
			return
		}
		_, perPage, offset := pageParams(r)
		records, err := database.ListSourceRecords(db, table, r.URL.Query().Get("status"), perPage, offset)
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func CreateSourceRecord(db *sql.DB, table string, publisher chat.EventPublisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !database.ValidSourceTable(table) {
			apperr.HandleError(w, apperr.NotFound("resource"))
			return
		}
		var req struct {
			Title string `json:"title"`
			Body  string `json:"body"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperr.HandleError(w, apperr.Validation("invalid request body"))
			return
		}
		if req.Title == "" {
			apperr.HandleError(w, apperr.Validation("title is required"))
			return
		}
		record, err := database.CreateSourceRecord(db, table, req.Title, req.Body, auth.UserID(r))
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		publishSourceEvent(publisher, table, "insert", record)
		writeJSON(w, http.StatusCreated, record)
	}
}

func SetSourceStatus(db *sql.DB, table string, publisher chat.EventPublisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !database.ValidSourceTable(table) {
			apperr.HandleError(w, apperr.NotFound("resource"))
			return
		}
		var req struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperr.HandleError(w, apperr.Validation("invalid request body"))
			return
		}
		if req.Status == "" {
			apperr.HandleError(w, apperr.Validation("status is required"))
			return
		}
		record, err := database.SetSourceStatus(db, table, mux.Vars(r)["id"], req.Status)
		if err != nil {
			apperr.HandleError(w, err)
			return
		}
		if record == nil {
			apperr.HandleError(w, apperr.NotFound("record"))
			return
		}
		publishSourceEvent(publisher, table, "update", record)
		writeJSON(w, http.StatusOK, record)
	}
}

func publishSourceEvent(publisher chat.EventPublisher, table, action string, record interface{}) {
	if publisher == nil {
		return
	}
	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	if err := publisher.PublishEvent(table, action, data); err != nil {
		slog.Warn("failed to publish source event", "table", table, "action", action, "error", err)
	}
}
