package chat

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opsdesk/opsdesk/internal/apperr"
	"github.com/opsdesk/opsdesk/internal/models"
	"github.com/opsdesk/opsdesk/internal/redisc"
)

// Store is the persistence surface the chat service needs.
type Store interface {
	ListConversations(userID string) ([]models.ConversationSummary, error)
	GetConversation(id string) (*models.Conversation, error)
	Messages(conversationID string, limit, offset int) ([]models.MessageWithSender, error)
	CreateMessage(conversationID, senderID, content, messageType string, metadata json.RawMessage) (*models.MessageWithSender, error)
	IsParticipant(conversationID, userID string) (bool, error)
	Participants(conversationID string) ([]models.User, error)
	AddParticipant(conversationID, userID string) error
	RemoveParticipant(conversationID, userID string) error
	GetDirectConversation(userID1, userID2 string) (*models.Conversation, error)
	CreateConversation(name, convType, createdBy string, participantIDs []string) (*models.Conversation, error)
	MarkRead(conversationID, userID string, timestamp time.Time) error
	UnreadCount(conversationID, userID string) (int, error)
}

// Broadcaster pushes events to connected clients. The hub implements it.
type Broadcaster interface {
	BroadcastToConversation(conversationID string, data []byte, excludeUserID string)
	SendToUser(userID string, data []byte)
	AddConversation(userID, conversationID string)
	RemoveConversation(userID, conversationID string)
}

// EventPublisher feeds the notification watcher's change channels.
type EventPublisher interface {
	PublishEvent(table, action string, data []byte) error
}

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 100
)

// Service mediates between transports (REST handlers, the websocket hub)
// and the conversation store. Listing calls degrade to empty results when
// the backing tables are not provisioned; mutations report their errors.
type Service struct {
	Store  Store
	Events Broadcaster
	Typing *TypingTracker

	// Optional: conversation-list cache. Nil disables caching.
	Redis *redis.Client
	// Optional: source of messages:insert events for the notification
	// watcher. Nil disables fan-out.
	Publisher EventPublisher
}

func NewService(store Store, events Broadcaster, redisClient *redis.Client, publisher EventPublisher) *Service {
	s := &Service{
		Store:     store,
		Events:    events,
		Redis:     redisClient,
		Publisher: publisher,
	}
	s.Typing = NewTypingTracker(DefaultTypingIdle, func(conversationID, userID string) {
		s.broadcastTyping(conversationID, userID, "", false)
	})
	return s
}

// ListConversations returns the viewer's conversation summaries, newest
// activity first. When the chat tables are not provisioned the result is an
// empty list, not an error, so the rest of the application keeps working.
func (s *Service) ListConversations(userID string) ([]models.ConversationSummary, error) {
	if s.Redis != nil {
		var cached []models.ConversationSummary
		if redisc.GetCachedConversations(s.Redis, userID, &cached) {
			return cached, nil
		}
	}

	convs, err := s.Store.ListConversations(userID)
	if err != nil {
		if apperr.IsUnavailable(err) {
			slog.Warn("conversations unavailable", "error", err)
			return []models.ConversationSummary{}, nil
		}
		return nil, err
	}

	if s.Redis != nil {
		if err := redisc.SetCachedConversations(s.Redis, userID, convs); err != nil {
			slog.Debug("failed to cache conversations", "error", err)
		}
	}
	return convs, nil
}

// Messages returns up to limit messages oldest-first. The store fetches
// newest-first for pagination, then the slice is reversed for display.
func (s *Service) Messages(userID, conversationID string, limit, offset int) ([]models.MessageWithSender, error) {
	ok, err := s.Store.IsParticipant(conversationID, userID)
	if err != nil {
		if apperr.IsUnavailable(err) {
			slog.Warn("messages unavailable", "error", err)
			return []models.MessageWithSender{}, nil
		}
		return nil, err
	}
	if !ok {
		return nil, apperr.Forbidden("not a participant of this conversation")
	}

	if limit <= 0 || limit > maxMessageLimit {
		limit = defaultMessageLimit
	}
	if offset < 0 {
		offset = 0
	}

	messages, err := s.Store.Messages(conversationID, limit, offset)
	if err != nil {
		if apperr.IsUnavailable(err) {
			slog.Warn("messages unavailable", "error", err)
			return []models.MessageWithSender{}, nil
		}
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// Send persists a message, broadcasts it to the conversation, fans out
// unread counts, and publishes a messages:insert event for the
// notification watcher.
func (s *Service) Send(conversationID, senderID, content, messageType string, metadata json.RawMessage) (*models.MessageWithSender, error) {
	if content == "" {
		return nil, apperr.Validation("content is required")
	}
	ok, err := s.Store.IsParticipant(conversationID, senderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Forbidden("not a participant of this conversation")
	}

	if messageType == "" {
		messageType = "text"
	}
	msg, err := s.Store.CreateMessage(conversationID, senderID, content, messageType, metadata)
	if err != nil {
		return nil, err
	}

	data, err := NewWSMessage(TypeMessageNew, NewMessagePayload{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		SenderUsername: msg.SenderUsername,
		Content:        msg.Content,
		MessageType:    msg.MessageType,
		Metadata:       msg.Metadata,
		CreatedAt:      msg.CreatedAt.Format(time.RFC3339),
	})
	if err == nil {
		s.Events.BroadcastToConversation(conversationID, data, "")
	}

	// A send also ends the sender's typing burst.
	if s.Typing != nil && s.Typing.Stop(conversationID, senderID) {
		s.broadcastTyping(conversationID, senderID, msg.SenderUsername, false)
	}

	go s.fanOutAfterSend(msg)

	return msg, nil
}

func (s *Service) fanOutAfterSend(msg *models.MessageWithSender) {
	participants, err := s.Store.Participants(msg.ConversationID)
	if err != nil {
		slog.Warn("failed to load participants for fan-out", "conversation_id", msg.ConversationID, "error", err)
		return
	}

	ids := make([]string, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.ID)
		if p.ID == msg.SenderID {
			continue
		}
		count, err := s.Store.UnreadCount(msg.ConversationID, p.ID)
		if err != nil {
			continue
		}
		data, err := NewWSMessage(TypeUnreadUpdate, UnreadUpdatePayload{
			ConversationID: msg.ConversationID,
			Count:          count,
		})
		if err == nil {
			s.Events.SendToUser(p.ID, data)
		}
	}

	if s.Redis != nil {
		redisc.InvalidateConversations(s.Redis, ids...)
	}

	if s.Publisher != nil {
		payload, err := json.Marshal(msg)
		if err == nil {
			if err := s.Publisher.PublishEvent("messages", "insert", payload); err != nil {
				slog.Warn("failed to publish message event", "error", err)
			}
		}
	}
}

// CreateDirect returns the existing direct conversation between the two
// users when one exists, otherwise creates it with both participant rows.
func (s *Service) CreateDirect(userID, otherUserID string) (*models.Conversation, error) {
	if otherUserID == "" {
		return nil, apperr.Validation("user_id is required")
	}
	if userID == otherUserID {
		return nil, apperr.Validation("cannot start a conversation with yourself")
	}

	existing, err := s.Store.GetDirectConversation(userID, otherUserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	conv, err := s.Store.CreateConversation("", models.ConversationDirect, userID, []string{userID, otherUserID})
	if err != nil {
		return nil, err
	}
	s.afterConversationCreate(conv, []string{userID, otherUserID})
	return conv, nil
}

func (s *Service) CreateGroup(userID, name string, participantIDs []string) (*models.Conversation, error) {
	if name == "" {
		return nil, apperr.Validation("name is required")
	}

	ids := []string{userID}
	for _, id := range participantIDs {
		if id != userID {
			ids = append(ids, id)
		}
	}

	conv, err := s.Store.CreateConversation(name, models.ConversationGroup, userID, ids)
	if err != nil {
		return nil, err
	}
	s.afterConversationCreate(conv, ids)
	return conv, nil
}

func (s *Service) afterConversationCreate(conv *models.Conversation, participantIDs []string) {
	data, err := NewWSMessage(TypeConversationNew, ConversationNewPayload{
		ConversationID: conv.ID,
		Name:           conv.Name,
		Type:           conv.Type,
		CreatedBy:      conv.CreatedBy,
	})
	for _, id := range participantIDs {
		s.Events.AddConversation(id, conv.ID)
		if err == nil && id != conv.CreatedBy {
			s.Events.SendToUser(id, data)
		}
	}
	if s.Redis != nil {
		redisc.InvalidateConversations(s.Redis, participantIDs...)
	}
}

// AddMember adds a user to a group conversation and subscribes their live
// connection to it. Direct conversations are fixed at two members.
func (s *Service) AddMember(conversationID, actorID, userID string) error {
	if userID == "" {
		return apperr.Validation("user_id is required")
	}

	conv, err := s.Store.GetConversation(conversationID)
	if err != nil {
		return err
	}
	if conv == nil {
		return apperr.NotFound("conversation")
	}
	if conv.Type != models.ConversationGroup {
		return apperr.Validation("members can only be added to group conversations")
	}

	ok, err := s.Store.IsParticipant(conversationID, actorID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Forbidden("not a participant of this conversation")
	}

	if err := s.Store.AddParticipant(conversationID, userID); err != nil {
		return err
	}

	s.Events.AddConversation(userID, conversationID)
	data, err := NewWSMessage(TypeConversationNew, ConversationNewPayload{
		ConversationID: conv.ID,
		Name:           conv.Name,
		Type:           conv.Type,
		CreatedBy:      conv.CreatedBy,
	})
	if err == nil {
		s.Events.SendToUser(userID, data)
	}
	if s.Redis != nil {
		redisc.InvalidateConversations(s.Redis, userID)
	}
	return nil
}

// Leave removes the caller from a conversation and unsubscribes their live
// connection, so no further events for it are delivered.
func (s *Service) Leave(conversationID, userID string) error {
	ok, err := s.Store.IsParticipant(conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Forbidden("not a participant of this conversation")
	}

	if err := s.Store.RemoveParticipant(conversationID, userID); err != nil {
		return err
	}

	s.Events.RemoveConversation(userID, conversationID)
	if s.Redis != nil {
		redisc.InvalidateConversations(s.Redis, userID)
	}
	return nil
}

// MarkRead moves the viewer's read watermark to now, zeroing their unread
// count for the conversation.
func (s *Service) MarkRead(conversationID, userID, username string) error {
	ok, err := s.Store.IsParticipant(conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Forbidden("not a participant of this conversation")
	}

	now := time.Now().UTC()
	if err := s.Store.MarkRead(conversationID, userID, now); err != nil {
		return err
	}

	receipt, err := NewWSMessage(TypeReadReceipt, ReadReceiptPayload{
		ConversationID: conversationID,
		UserID:         userID,
		Username:       username,
		LastReadAt:     now.Format(time.RFC3339),
	})
	if err == nil {
		s.Events.BroadcastToConversation(conversationID, receipt, userID)
	}

	unread, err := NewWSMessage(TypeUnreadUpdate, UnreadUpdatePayload{
		ConversationID: conversationID,
		Count:          0,
	})
	if err == nil {
		s.Events.SendToUser(userID, unread)
	}

	if s.Redis != nil {
		redisc.InvalidateConversations(s.Redis, userID)
	}
	return nil
}

// TypingStart broadcasts a typing indicator only for the first keystroke of
// a burst; later keystrokes just keep the tracker's timer alive.
func (s *Service) TypingStart(conversationID, userID, username string) {
	if s.Typing.Start(conversationID, userID) {
		s.broadcastTyping(conversationID, userID, username, true)
	}
}

func (s *Service) TypingStop(conversationID, userID, username string) {
	if s.Typing.Stop(conversationID, userID) {
		s.broadcastTyping(conversationID, userID, username, false)
	}
}

func (s *Service) broadcastTyping(conversationID, userID, username string, isTyping bool) {
	data, err := NewWSMessage(TypeTypingUpdate, TypingUpdatePayload{
		ConversationID: conversationID,
		UserID:         userID,
		Username:       username,
		IsTyping:       isTyping,
	})
	if err == nil {
		s.Events.BroadcastToConversation(conversationID, data, userID)
	}
}
