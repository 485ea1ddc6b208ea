package models

import "time"

type UserPresence struct {
	UserID        string    `json:"user_id"`
	Username      string    `json:"username"`
	Status        string    `json:"status"`
	StatusMessage string    `json:"status_message,omitempty"`
	LastSeen      time.Time `json:"last_seen"`
}
