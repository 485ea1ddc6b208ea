package chat

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opsdesk/opsdesk/internal/auth"
	"github.com/opsdesk/opsdesk/internal/redisc"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Client struct {
	hub      *Hub
	service  *Service
	conn     *websocket.Conn
	UserID   string
	Username string

	mu            sync.Mutex
	conversations map[string]bool
	send          chan []byte
	sendClosed    bool
}

func newClient(hub *Hub, service *Service, conn *websocket.Conn, userID, username string, conversations map[string]bool) *Client {
	return &Client{
		hub:           hub,
		service:       service,
		conn:          conn,
		UserID:        userID,
		Username:      username,
		conversations: conversations,
		send:          make(chan []byte, 256),
	}
}

func (c *Client) inConversation(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversations[id]
}

func (c *Client) addConversation(id string) {
	c.mu.Lock()
	c.conversations[id] = true
	c.mu.Unlock()
}

func (c *Client) removeConversation(id string) {
	c.mu.Lock()
	delete(c.conversations, id)
	c.mu.Unlock()
}

// closeSend closes the send channel exactly once.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

// trySend queues data for the write pump. Returns false when the client is
// gone or its buffer is full; never panics on a closed channel because the
// close and the send share c.mu.
func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendClosed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func ServeWS(hub *Hub, service *Service, jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		claims, err := auth.ValidateToken(token, jwtSecret)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("websocket upgrade failed", "error", err)
			return
		}

		conversations := make(map[string]bool)
		summaries, err := service.ListConversations(claims.UserID)
		if err == nil {
			for _, conv := range summaries {
				conversations[conv.ID] = true
			}
		}

		client := newClient(hub, service, conn, claims.UserID, claims.Username, conversations)

		hub.Register(client)
		go client.writePump()
		go client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.service.Typing.ClearUser(c.UserID)
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if c.hub.Redis != nil {
			if err := redisc.RefreshPresence(c.hub.Redis, c.UserID); err != nil {
				slog.Debug("presence refresh failed", "user_id", c.UserID, "error", err)
			}
		}
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("ws read error", "error", err, "user_id", c.UserID)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		c.handleMessage(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(msg WSMessage) {
	switch msg.Type {
	case TypeMessageSend:
		var payload SendMessagePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return
		}
		c.handleSend(payload)
	case TypeTypingStart:
		var payload ConversationPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return
		}
		c.service.TypingStart(payload.ConversationID, c.UserID, c.Username)
	case TypeTypingStop:
		var payload ConversationPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return
		}
		c.service.TypingStop(payload.ConversationID, c.UserID, c.Username)
	case TypeMessageRead:
		var payload ConversationPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return
		}
		if err := c.service.MarkRead(payload.ConversationID, c.UserID, c.Username); err != nil {
			slog.Warn("failed to mark conversation read", "conversation_id", payload.ConversationID, "error", err)
		}
	case TypePing:
		data, _ := NewWSMessage(TypePong, nil)
		c.trySend(data)
	}
}

func (c *Client) handleSend(payload SendMessagePayload) {
	if payload.Content == "" || payload.ConversationID == "" {
		c.sendError("content and conversation_id are required", "INVALID_PAYLOAD")
		return
	}
	_, err := c.service.Send(payload.ConversationID, c.UserID, payload.Content, payload.MessageType, payload.Metadata)
	if err != nil {
		slog.Error("failed to send message", "error", err, "user_id", c.UserID)
		c.sendError("failed to send message", "SEND_FAILED")
	}
}

func (c *Client) sendError(message, code string) {
	data, _ := NewWSMessage(TypeError, ErrorPayload{Message: message, Code: code})
	c.trySend(data)
}
