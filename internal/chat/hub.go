package chat

import (
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/opsdesk/opsdesk/internal/redisc"
)

type BroadcastMessage struct {
	ConversationID string
	Data           []byte
	ExcludeUserID  string
}

// Hub owns the set of connected clients. One Run goroutine serializes
// register/unregister/broadcast; everything else goes through the mutex.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	done     chan struct{}
	shutdown sync.Once

	Redis *redis.Client
}

func NewHub(redisClient *redis.Client) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
		done:       make(chan struct{}),
		Redis:      redisClient,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if old, ok := h.clients[client.UserID]; ok {
				old.closeSend()
			}
			h.clients[client.UserID] = client
			h.mu.Unlock()
			slog.Info("client connected", "user_id", client.UserID, "username", client.Username)
			h.markOnline(client)
			h.broadcastPresence(client.UserID, client.Username, "online")

		case client := <-h.unregister:
			h.mu.Lock()
			existing, ok := h.clients[client.UserID]
			if ok && existing == client {
				delete(h.clients, client.UserID)
			}
			h.mu.Unlock()
			// Safe to call on an already-removed client; closeSend is
			// idempotent so a double unregister is a no-op.
			client.closeSend()
			if ok && existing == client {
				slog.Info("client disconnected", "user_id", client.UserID)
				h.markOffline(client)
				h.broadcastPresence(client.UserID, client.Username, "offline")
			}

		case msg := <-h.broadcast:
			h.deliver(msg)

		case <-h.done:
			return
		}
	}
}

func (h *Hub) deliver(msg *BroadcastMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, client := range h.clients {
		if userID == msg.ExcludeUserID {
			continue
		}
		if !client.inConversation(msg.ConversationID) {
			continue
		}
		if !client.trySend(msg.Data) {
			client.closeSend()
			delete(h.clients, userID)
		}
	}
}

func (h *Hub) markOnline(client *Client) {
	if h.Redis == nil {
		return
	}
	if err := redisc.SetOnline(h.Redis, client.UserID, client.Username, ""); err != nil {
		slog.Warn("failed to mark user online", "user_id", client.UserID, "error", err)
	}
}

func (h *Hub) markOffline(client *Client) {
	if h.Redis == nil {
		return
	}
	if err := redisc.SetOffline(h.Redis, client.UserID); err != nil {
		slog.Warn("failed to mark user offline", "user_id", client.UserID, "error", err)
	}
}

func (h *Hub) broadcastPresence(userID, username, status string) {
	data, err := NewWSMessage(TypePresenceUpdate, PresenceUpdatePayload{
		UserID:   userID,
		Username: username,
		Status:   status,
	})
	if err != nil {
		return
	}
	h.mu.RLock()
	for _, client := range h.clients {
		client.trySend(data)
	}
	h.mu.RUnlock()
}

// Register hands a client to the run loop. A connection that completes its
// upgrade while the hub is shutting down is closed instead of parked on the
// channel forever.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.closeSend()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.closeSend()
	}
}

func (h *Hub) BroadcastToConversation(conversationID string, data []byte, excludeUserID string) {
	select {
	case h.broadcast <- &BroadcastMessage{
		ConversationID: conversationID,
		Data:           data,
		ExcludeUserID:  excludeUserID,
	}:
	case <-h.done:
	}
}

func (h *Hub) SendToUser(userID string, data []byte) {
	h.mu.RLock()
	client, ok := h.clients[userID]
	h.mu.RUnlock()
	if ok {
		client.trySend(data)
	}
}

// AddConversation subscribes a connected user's client to a conversation
// created or joined after connect. A no-op when the user is offline.
func (h *Hub) AddConversation(userID, conversationID string) {
	h.mu.RLock()
	client, ok := h.clients[userID]
	h.mu.RUnlock()
	if ok {
		client.addConversation(conversationID)
	}
}

func (h *Hub) RemoveConversation(userID, conversationID string) {
	h.mu.RLock()
	client, ok := h.clients[userID]
	h.mu.RUnlock()
	if ok {
		client.removeConversation(conversationID)
	}
}

func (h *Hub) OnlineUserIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown closes every client send channel and stops Run. Safe to call
// more than once.
func (h *Hub) Shutdown() {
	h.shutdown.Do(func() {
		close(h.done)
		h.mu.Lock()
		defer h.mu.Unlock()
		for _, client := range h.clients {
			client.closeSend()
		}
		h.clients = make(map[string]*Client)
	})
}
