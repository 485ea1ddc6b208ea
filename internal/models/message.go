package models

import (
	"encoding/json"
	"time"
)

type Message struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	SenderID       string          `json:"sender_id"`
	Content        string          `json:"content"`
	MessageType    string          `json:"message_type"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

type MessageWithSender struct {
	Message
	SenderUsername string `json:"sender_username"`
}
