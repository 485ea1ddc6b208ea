package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/opsdesk/opsdesk/internal/chat"
	"github.com/opsdesk/opsdesk/internal/models"
	"github.com/opsdesk/opsdesk/internal/redisc"
)

// ParticipantChecker answers whether a user belongs to a conversation. The
// chat store implements it.
type ParticipantChecker interface {
	IsParticipant(conversationID, userID string) (bool, error)
}

// Sink delivers events to connected users. The hub implements it.
type Sink interface {
	SendToUser(userID string, data []byte)
	OnlineUserIDs() []string
}

// watchedChannel pairs a source table with the row action it emits.
type watchedChannel struct {
	table  string
	action string
}

// The change channels the watcher subscribes to, one subscription each so
// a failure on one doesn't block the others.
var watchedChannels = []watchedChannel{
	{"complaints", "insert"},
	{"complaints", "update"},
	{"suggestions", "insert"},
	{"it_requests", "insert"},
	{"it_requests", "update"},
	{"messages", "insert"},
}

var sourcePriority = map[string]string{
	"complaints":  "high",
	"it_requests": "medium",
	"suggestions": "low",
}

var sourceTitles = map[string]map[string]string{
	"complaints":  {"insert": "New complaint", "update": "Complaint updated"},
	"suggestions": {"insert": "New suggestion"},
	"it_requests": {"insert": "New IT request", "update": "IT request updated"},
}

// Watcher turns change-feed events from the business tables and the chat
// messages table into transient notifications and chat popups, delivered to
// online users through the sink.
type Watcher struct {
	Redis        *redis.Client
	Center       *Center
	Sink         Sink
	Participants ParticipantChecker

	subscribe func(ctx context.Context, channel string, handler func(table, action string, data []byte)) (*redis.PubSub, error)

	mu      sync.Mutex
	cancel  context.CancelFunc
	handles []*redis.PubSub
	closed  bool
}

func NewWatcher(redisClient *redis.Client, center *Center, sink Sink, participants ParticipantChecker) *Watcher {
	w := &Watcher{
		Redis:        redisClient,
		Center:       center,
		Sink:         sink,
		Participants: participants,
	}
	w.subscribe = func(ctx context.Context, channel string, handler func(table, action string, data []byte)) (*redis.PubSub, error) {
		return redisc.SubscribeEvents(ctx, w.Redis, channel, handler)
	}
	return w
}

// Start opens one subscription per watched channel. Handles are collected
// as they are created, so even if a later subscription fails everything
// already open is torn down by Close.
func (w *Watcher) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, wc := range watchedChannels {
		wc := wc
		g.Go(func() error {
			handle, err := w.subscribe(ctx, redisc.EventChannel(wc.table, wc.action), w.dispatch)
			if err != nil {
				return err
			}
			w.mu.Lock()
			w.handles = append(w.handles, handle)
			w.mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		w.Close()
		return err
	}
	slog.Info("notification watcher started", "channels", len(watchedChannels))
	return nil
}

func (w *Watcher) dispatch(table, action string, data []byte) {
	if table == "messages" {
		w.HandleMessageEvent(data)
		return
	}
	w.HandleSourceEvent(table, action, data)
}

// HandleSourceEvent fans a business-table event out to every online user
// except whoever caused it.
func (w *Watcher) HandleSourceEvent(table, action string, data []byte) {
	var rec models.SourceRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		slog.Warn("bad source event payload", "table", table, "error", err)
		return
	}

	title := sourceTitles[table][action]
	if title == "" {
		return
	}

	for _, userID := range w.Sink.OnlineUserIDs() {
		if userID == rec.CreatedBy {
			continue
		}
		n := w.Center.Add(userID, Notification{
			Type:     table,
			Title:    title,
			Message:  rec.Title,
			Priority: sourcePriority[table],
		})
		payload, err := chat.NewWSMessage(chat.TypeNotificationNew, n)
		if err == nil {
			w.Sink.SendToUser(userID, payload)
		}
	}
}

// HandleMessageEvent enqueues a chat popup for each online participant of
// the message's conversation other than the sender. The change feed is not
// filtered by participation, so membership is confirmed before enqueueing.
func (w *Watcher) HandleMessageEvent(data []byte) {
	var msg models.MessageWithSender
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Warn("bad message event payload", "error", err)
		return
	}

	for _, userID := range w.Sink.OnlineUserIDs() {
		if userID == msg.SenderID {
			continue
		}
		ok, err := w.Participants.IsParticipant(msg.ConversationID, userID)
		if err != nil {
			slog.Warn("participation check failed", "conversation_id", msg.ConversationID, "error", err)
			continue
		}
		if !ok {
			continue
		}
		p := w.Center.AddPopup(userID, Popup{
			ConversationID: msg.ConversationID,
			SenderID:       msg.SenderID,
			SenderName:     msg.SenderUsername,
			Message:        msg.Content,
		})
		payload, err := chat.NewWSMessage(chat.TypeChatPopup, p)
		if err == nil {
			w.Sink.SendToUser(userID, payload)
		}
	}
}

// Close cancels the subscriptions and closes every handle collected during
// setup. Safe to call twice, and safe on a watcher whose Start failed
// partway through.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	if w.cancel != nil {
		w.cancel()
	}
	for _, handle := range w.handles {
		if handle != nil {
			if err := handle.Close(); err != nil {
				slog.Warn("failed to close subscription", "error", err)
			}
		}
	}
	w.handles = nil
}
