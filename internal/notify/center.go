package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultNotificationTTL = 10 * time.Second
	DefaultPopupTTL        = 5 * time.Second
)

// Notification is a transient, in-memory alert synthesized from a source
// event. It is never persisted; it auto-expires or is dismissed.
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Priority  string    `json:"priority"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// Popup is the transient chat popup shown for an inbound message.
type Popup struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	SenderName     string    `json:"sender_name"`
	Message        string    `json:"message"`
	Timestamp      time.Time `json:"timestamp"`
}

// Center holds per-user notification and popup queues with automatic
// expiry. Lifecycle is explicit: one Center per server, queues appear on
// first use and vanish as their items expire.
type Center struct {
	mu sync.Mutex

	notificationTTL time.Duration
	popupTTL        time.Duration
	now             func() time.Time
	after           func(d time.Duration, f func()) *time.Timer

	notifications map[string][]Notification
	unread        map[string]int
	popups        map[string][]Popup
	timers        map[string]*time.Timer

	closed bool
}

type CenterOption func(*Center)

func WithTTLs(notificationTTL, popupTTL time.Duration) CenterOption {
	return func(c *Center) {
		c.notificationTTL = notificationTTL
		c.popupTTL = popupTTL
	}
}

func WithClock(now func() time.Time) CenterOption {
	return func(c *Center) { c.now = now }
}

// WithTimers replaces the expiry timer source so tests can fire expiry
// deterministically instead of sleeping through real TTLs.
func WithTimers(after func(d time.Duration, f func()) *time.Timer) CenterOption {
	return func(c *Center) { c.after = after }
}

func NewCenter(opts ...CenterOption) *Center {
	c := &Center{
		notificationTTL: DefaultNotificationTTL,
		popupTTL:        DefaultPopupTTL,
		now:             time.Now,
		after:           time.AfterFunc,
		notifications:   make(map[string][]Notification),
		unread:          make(map[string]int),
		popups:          make(map[string][]Popup),
		timers:          make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Add prepends a notification to the user's queue (newest first), bumps the
// unread counter, and schedules removal after the notification TTL. The
// stored notification, with its generated id, is returned.
func (c *Center) Add(userID string, n Notification) Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return n
	}

	n.ID = uuid.New().String()
	n.Read = false
	if n.Timestamp.IsZero() {
		n.Timestamp = c.now()
	}

	c.notifications[userID] = append([]Notification{n}, c.notifications[userID]...)
	c.unread[userID]++

	id := n.ID
	c.timers[id] = c.after(c.notificationTTL, func() {
		c.expireNotification(userID, id)
	})
	return n
}

// AddPopup appends a popup (render order is arrival order) and schedules
// removal after the popup TTL.
func (c *Center) AddPopup(userID string, p Popup) Popup {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return p
	}

	p.ID = uuid.New().String()
	if p.Timestamp.IsZero() {
		p.Timestamp = c.now()
	}

	c.popups[userID] = append(c.popups[userID], p)

	id := p.ID
	c.timers[id] = c.after(c.popupTTL, func() {
		c.expirePopup(userID, id)
	})
	return p
}

func (c *Center) expireNotification(userID, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.timers, id)
	list := c.notifications[userID]
	for i, n := range list {
		if n.ID == id {
			if !n.Read && c.unread[userID] > 0 {
				c.unread[userID]--
			}
			c.notifications[userID] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

func (c *Center) expirePopup(userID, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.timers, id)
	list := c.popups[userID]
	for i, p := range list {
		if p.ID == id {
			c.popups[userID] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// Notifications returns the user's current queue and unread count.
func (c *Center) Notifications(userID string) ([]Notification, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.notifications[userID]
	out := make([]Notification, len(list))
	copy(out, list)
	return out, c.unread[userID]
}

func (c *Center) Popups(userID string) []Popup {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.popups[userID]
	out := make([]Popup, len(list))
	copy(out, list)
	return out
}

func (c *Center) MarkRead(userID, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.notifications[userID]
	for i, n := range list {
		if n.ID == id && !n.Read {
			list[i].Read = true
			if c.unread[userID] > 0 {
				c.unread[userID]--
			}
			return
		}
	}
}

func (c *Center) MarkAllRead(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.notifications[userID]
	for i := range list {
		list[i].Read = true
	}
	c.unread[userID] = 0
}

// Clear drops every notification and popup for the user and cancels their
// expiry timers.
func (c *Center) Clear(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range c.notifications[userID] {
		if t, ok := c.timers[n.ID]; ok {
			t.Stop()
			delete(c.timers, n.ID)
		}
	}
	for _, p := range c.popups[userID] {
		if t, ok := c.timers[p.ID]; ok {
			t.Stop()
			delete(c.timers, p.ID)
		}
	}
	delete(c.notifications, userID)
	delete(c.popups, userID)
	delete(c.unread, userID)
}

// DismissPopup removes one popup before its timer fires.
func (c *Center) DismissPopup(userID, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.timers[id]; ok {
		t.Stop()
		delete(c.timers, id)
	}
	list := c.popups[userID]
	for i, p := range list {
		if p.ID == id {
			c.popups[userID] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// Close stops all timers. Further adds are ignored. Idempotent.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
}
