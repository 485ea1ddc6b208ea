package handlers

import (
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/opsdesk/opsdesk/internal/auth"
	"github.com/opsdesk/opsdesk/internal/models"
	"github.com/opsdesk/opsdesk/internal/redisc"
)

// OnlineUsers lists users with a live presence key. Presence is optional
// infrastructure: on failure the list is empty, never an error page.
func OnlineUsers(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := redisc.GetOnlineUsers(redisClient)
		if err != nil {
			slog.Warn("failed to list online users", "error", err)
			users = []models.UserPresence{}
		}
		writeJSON(w, http.StatusOK, users)
	}
}

// UpdateStatus is the best-effort presence upsert. It reports success as a
// boolean rather than failing the request.
func UpdateStatus(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		statusMessage := r.URL.Query().Get("message")
		err := redisc.SetOnline(redisClient, auth.UserID(r), auth.Username(r), statusMessage)
		if err != nil {
			slog.Warn("presence update failed", "user_id", auth.UserID(r), "error", err)
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": err == nil})
	}
}
