package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opsdesk/opsdesk/internal/models"
)

// ChatStore holds the conversation, participant and message queries behind
// the chat service.
type ChatStore struct {
	DB *sql.DB
}

func (s *ChatStore) ListConversations(userID string) ([]models.ConversationSummary, error) {
	rows, err := s.DB.Query(`
		SELECT c.id, c.name, c.type, COALESCE(c.created_by::text, ''), c.created_at,
		       members.cnt,
		       COALESCE(unread.cnt, 0),
		       COALESCE(last_msg.content, ''),
		       last_msg.created_at
		FROM conversations c
		JOIN conversation_participants cp ON c.id = cp.conversation_id
		LEFT JOIN LATERAL (
		    SELECT COUNT(*) AS cnt FROM conversation_participants
		    WHERE conversation_id = c.id
		) members ON true
		LEFT JOIN LATERAL (
		    SELECT COUNT(*) AS cnt FROM messages m
		    WHERE m.conversation_id = c.id AND m.created_at > cp.last_read_at AND m.sender_id != $1
		) unread ON true
		LEFT JOIN LATERAL (
		    SELECT content, created_at FROM messages
		    WHERE conversation_id = c.id ORDER BY created_at DESC LIMIT 1
		) last_msg ON true
		WHERE cp.user_id = $1
		ORDER BY COALESCE(last_msg.created_at, c.created_at) DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var convs []models.ConversationSummary
	for rows.Next() {
		var c models.ConversationSummary
		var lastMsgAt *time.Time
		if err := rows.Scan(&c.ID, &c.Name, &c.Type, &c.CreatedBy, &c.CreatedAt,
			&c.ParticipantCount, &c.UnreadCount, &c.LastMessage, &lastMsgAt); err != nil {
			return nil, err
		}
		c.LastMessageAt = lastMsgAt
		convs = append(convs, c)
	}
	if convs == nil {
		convs = []models.ConversationSummary{}
	}
	return convs, nil
}

func (s *ChatStore) GetConversation(id string) (*models.Conversation, error) {
	var c models.Conversation
	err := s.DB.QueryRow(
		`SELECT id, name, type, COALESCE(created_by::text, ''), created_at
		 FROM conversations WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Name, &c.Type, &c.CreatedBy, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &c, nil
}

// Messages returns up to limit rows, newest first; the service reverses
// them for display.
func (s *ChatStore) Messages(conversationID string, limit, offset int) ([]models.MessageWithSender, error) {
	rows, err := s.DB.Query(`
		SELECT m.id, m.conversation_id, m.sender_id, m.content, m.message_type, m.metadata, m.created_at, u.username
		FROM messages m JOIN users u ON m.sender_id = u.id
		WHERE m.conversation_id = $1
		ORDER BY m.created_at DESC LIMIT $2 OFFSET $3
	`, conversationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	var messages []models.MessageWithSender
	for rows.Next() {
		var m models.MessageWithSender
		var metadata []byte
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.MessageType, &metadata, &m.CreatedAt, &m.SenderUsername); err != nil {
			return nil, err
		}
		m.Metadata = json.RawMessage(metadata)
		messages = append(messages, m)
	}
	if messages == nil {
		messages = []models.MessageWithSender{}
	}
	return messages, nil
}

func (s *ChatStore) CreateMessage(conversationID, senderID, content, messageType string, metadata json.RawMessage) (*models.MessageWithSender, error) {
	var m models.MessageWithSender
	var meta []byte
	err := s.DB.QueryRow(`
		WITH inserted AS (
		    INSERT INTO messages (conversation_id, sender_id, content, message_type, metadata)
		    VALUES ($1, $2, $3, $4, $5)
		    RETURNING id, conversation_id, sender_id, content, message_type, metadata, created_at
		)
		SELECT i.id, i.conversation_id, i.sender_id, i.content, i.message_type, i.metadata, i.created_at, u.username
		FROM inserted i JOIN users u ON i.sender_id = u.id
	`, conversationID, senderID, content, messageType, nullableJSON(metadata),
	).Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.MessageType, &meta, &m.CreatedAt, &m.SenderUsername)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	m.Metadata = json.RawMessage(meta)
	return &m, nil
}

func (s *ChatStore) IsParticipant(conversationID, userID string) (bool, error) {
	var exists bool
	err := s.DB.QueryRow(
		`SELECT EXISTS(SELECT 1 FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2)`,
		conversationID, userID,
	).Scan(&exists)
	return exists, err
}

func (s *ChatStore) Participants(conversationID string) ([]models.User, error) {
	rows, err := s.DB.Query(`
		SELECT u.id, u.username, u.email, u.full_name, u.role, u.avatar_url, u.created_at
		FROM users u JOIN conversation_participants cp ON u.id = cp.user_id
		WHERE cp.conversation_id = $1
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.Role, &u.AvatarURL, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

func (s *ChatStore) AddParticipant(conversationID, userID string) error {
	_, err := s.DB.Exec(
		`INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		conversationID, userID,
	)
	return err
}

func (s *ChatStore) RemoveParticipant(conversationID, userID string) error {
	_, err := s.DB.Exec(
		`DELETE FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2`,
		conversationID, userID,
	)
	return err
}

// GetDirectConversation finds an existing direct conversation between two
// users, or returns nil when none exists.
func (s *ChatStore) GetDirectConversation(userID1, userID2 string) (*models.Conversation, error) {
	var convID string
	err := s.DB.QueryRow(`
		SELECT cp1.conversation_id FROM conversation_participants cp1
		JOIN conversation_participants cp2 ON cp1.conversation_id = cp2.conversation_id
		JOIN conversations c ON c.id = cp1.conversation_id
		WHERE cp1.user_id = $1 AND cp2.user_id = $2 AND c.type = 'direct'
		LIMIT 1
	`, userID1, userID2).Scan(&convID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to check existing direct conversation: %w", err)
	}
	return s.GetConversation(convID)
}

// CreateConversation inserts the conversation row and all participant rows
// in one transaction.
func (s *ChatStore) CreateConversation(name, convType, createdBy string, participantIDs []string) (*models.Conversation, error) {
	tx, err := s.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var c models.Conversation
	err = tx.QueryRow(
		`INSERT INTO conversations (name, type, created_by) VALUES ($1, $2, $3)
		 RETURNING id, name, type, created_by, created_at`,
		name, convType, createdBy,
	).Scan(&c.ID, &c.Name, &c.Type, &c.CreatedBy, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	for _, userID := range participantIDs {
		if _, err := tx.Exec(
			`INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			c.ID, userID,
		); err != nil {
			return nil, fmt.Errorf("failed to add participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit conversation: %w", err)
	}
	return &c, nil
}

func (s *ChatStore) MarkRead(conversationID, userID string, timestamp time.Time) error {
	_, err := s.DB.Exec(
		`UPDATE conversation_participants SET last_read_at = $1 WHERE conversation_id = $2 AND user_id = $3`,
		timestamp, conversationID, userID,
	)
	return err
}

func (s *ChatStore) UnreadCount(conversationID, userID string) (int, error) {
	var count int
	err := s.DB.QueryRow(`
		SELECT COUNT(*) FROM messages m
		JOIN conversation_participants cp ON cp.conversation_id = m.conversation_id AND cp.user_id = $2
		WHERE m.conversation_id = $1 AND m.created_at > cp.last_read_at AND m.sender_id != $2
	`, conversationID, userID).Scan(&count)
	return count, err
}

func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
