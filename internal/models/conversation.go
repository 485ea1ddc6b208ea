package models

import "time"

const (
	ConversationDirect = "direct"
	ConversationGroup  = "group"
)

type Conversation struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationSummary is the per-viewer view of a conversation: unread count
// computed against the viewer's read watermark, plus the last message preview.
type ConversationSummary struct {
	Conversation
	ParticipantCount int        `json:"participant_count"`
	UnreadCount      int        `json:"unread_count"`
	LastMessage      string     `json:"last_message"`
	LastMessageAt    *time.Time `json:"last_message_at,omitempty"`
}

type Participant struct {
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	JoinedAt       time.Time `json:"joined_at"`
	LastReadAt     time.Time `json:"last_read_at"`
}
