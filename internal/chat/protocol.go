package chat

import "encoding/json"

// Client -> server message types.
const (
	TypeMessageSend = "message.send"
	TypeTypingStart = "typing.start"
	TypeTypingStop  = "typing.stop"
	TypeMessageRead = "message.read"
	TypePing        = "ping"
)

// Server -> client event types.
const (
	TypeMessageNew        = "message.new"
	TypeTypingUpdate      = "typing.update"
	TypePresenceUpdate    = "presence.update"
	TypeReadReceipt       = "read_receipt.update"
	TypeUnreadUpdate      = "unread.update"
	TypeConversationNew   = "conversation.new"
	TypeNotificationNew   = "notification.new"
	TypeChatPopup         = "chat.popup"
	TypeError             = "error"
	TypePong              = "pong"
)

type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type SendMessagePayload struct {
	ConversationID string          `json:"conversation_id"`
	Content        string          `json:"content"`
	MessageType    string          `json:"message_type,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

type ConversationPayload struct {
	ConversationID string `json:"conversation_id"`
}

type NewMessagePayload struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	SenderID       string          `json:"sender_id"`
	SenderUsername string          `json:"sender_username"`
	Content        string          `json:"content"`
	MessageType    string          `json:"message_type"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	CreatedAt      string          `json:"created_at"`
}

type TypingUpdatePayload struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Username       string `json:"username"`
	IsTyping       bool   `json:"is_typing"`
}

type PresenceUpdatePayload struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Status   string `json:"status"`
}

type ReadReceiptPayload struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Username       string `json:"username"`
	LastReadAt     string `json:"last_read_at"`
}

type UnreadUpdatePayload struct {
	ConversationID string `json:"conversation_id"`
	Count          int    `json:"count"`
}

type ConversationNewPayload struct {
	ConversationID string `json:"conversation_id"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	CreatedBy      string `json:"created_by"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func NewWSMessage(msgType string, payload interface{}) ([]byte, error) {
	var p json.RawMessage
	if payload != nil {
		var err error
		p, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	msg := WSMessage{Type: msgType, Payload: p}
	return json.Marshal(msg)
}
