package notify

import (
	"sync"
	"testing"
	"time"
)

// manualTimers captures expiry callbacks so tests drive expiry themselves
// instead of sleeping through real TTLs.
type manualTimers struct {
	mu        sync.Mutex
	durations []time.Duration
	pending   []func()
}

func (m *manualTimers) after(d time.Duration, f func()) *time.Timer {
	m.mu.Lock()
	m.durations = append(m.durations, d)
	m.pending = append(m.pending, f)
	m.mu.Unlock()
	return time.NewTimer(time.Hour)
}

func (m *manualTimers) fire() {
	m.mu.Lock()
	fns := m.pending
	m.pending = nil
	m.mu.Unlock()
	for _, f := range fns {
		f()
	}
}

func TestNotificationExpiry(t *testing.T) {
	timers := &manualTimers{}
	c := NewCenter(WithTimers(timers.after))
	defer c.Close()

	c.Add("u1", Notification{Type: "complaints", Title: "New complaint"})

	list, unread := c.Notifications("u1")
	if len(list) != 1 || unread != 1 {
		t.Fatalf("got %d notifications, %d unread; want 1, 1", len(list), unread)
	}
	if list[0].ID == "" {
		t.Error("stored notification should have a generated id")
	}
	if list[0].Read {
		t.Error("new notifications start unread")
	}
	if len(timers.durations) != 1 || timers.durations[0] != DefaultNotificationTTL {
		t.Errorf("expiry scheduled at %v, want %v", timers.durations, DefaultNotificationTTL)
	}

	timers.fire()

	list, unread = c.Notifications("u1")
	if len(list) != 0 || unread != 0 {
		t.Errorf("after the TTL got %d notifications, %d unread; want 0, 0", len(list), unread)
	}
}

func TestReadNotificationExpiry(t *testing.T) {
	timers := &manualTimers{}
	c := NewCenter(WithTimers(timers.after))
	defer c.Close()

	n := c.Add("u1", Notification{Title: "a"})
	c.MarkRead("u1", n.ID)

	timers.fire()

	list, unread := c.Notifications("u1")
	if len(list) != 0 || unread != 0 {
		t.Errorf("got %d notifications, %d unread after expiring a read one; want 0, 0", len(list), unread)
	}
}

func TestNotificationsNewestFirst(t *testing.T) {
	c := NewCenter()
	defer c.Close()

	c.Add("u1", Notification{Title: "first"})
	c.Add("u1", Notification{Title: "second"})

	list, _ := c.Notifications("u1")
	if len(list) != 2 || list[0].Title != "second" {
		t.Errorf("expected newest first, got %+v", list)
	}
}

func TestPopupExpiry(t *testing.T) {
	timers := &manualTimers{}
	c := NewCenter(WithTimers(timers.after))
	defer c.Close()

	c.AddPopup("u1", Popup{ConversationID: "conv1", SenderName: "alice", Message: "hi"})
	if got := c.Popups("u1"); len(got) != 1 {
		t.Fatalf("got %d popups, want 1", len(got))
	}
	if len(timers.durations) != 1 || timers.durations[0] != DefaultPopupTTL {
		t.Errorf("expiry scheduled at %v, want %v", timers.durations, DefaultPopupTTL)
	}

	timers.fire()
	if got := c.Popups("u1"); len(got) != 0 {
		t.Errorf("popup should have expired, got %d", len(got))
	}
}

func TestMarkRead(t *testing.T) {
	c := NewCenter()
	defer c.Close()

	n1 := c.Add("u1", Notification{Title: "a"})
	c.Add("u1", Notification{Title: "b"})

	c.MarkRead("u1", n1.ID)
	list, unread := c.Notifications("u1")
	if unread != 1 {
		t.Errorf("unread = %d, want 1", unread)
	}
	for _, n := range list {
		if n.ID == n1.ID && !n.Read {
			t.Error("marked notification should be read")
		}
	}

	// Marking twice must not push the counter below the truth.
	c.MarkRead("u1", n1.ID)
	if _, unread := c.Notifications("u1"); unread != 1 {
		t.Errorf("unread after double mark = %d, want 1", unread)
	}

	c.MarkAllRead("u1")
	if _, unread := c.Notifications("u1"); unread != 0 {
		t.Errorf("unread after mark all = %d, want 0", unread)
	}
}

func TestClearCancelsTimers(t *testing.T) {
	c := NewCenter(WithTTLs(20*time.Millisecond, 20*time.Millisecond))
	defer c.Close()

	c.Add("u1", Notification{Title: "a"})
	c.AddPopup("u1", Popup{Message: "hi"})
	c.Clear("u1")

	c.mu.Lock()
	pending := len(c.timers)
	c.mu.Unlock()
	if pending != 0 {
		t.Errorf("clear left %d timers pending", pending)
	}

	list, unread := c.Notifications("u1")
	if len(list) != 0 || unread != 0 || len(c.Popups("u1")) != 0 {
		t.Error("clear should drop all queues")
	}
}

func TestDismissPopup(t *testing.T) {
	c := NewCenter()
	defer c.Close()

	p1 := c.AddPopup("u1", Popup{Message: "one"})
	c.AddPopup("u1", Popup{Message: "two"})

	c.DismissPopup("u1", p1.ID)
	got := c.Popups("u1")
	if len(got) != 1 || got[0].Message != "two" {
		t.Errorf("expected only the second popup to remain, got %+v", got)
	}
}

func TestCloseStopsAdds(t *testing.T) {
	c := NewCenter()
	c.Close()
	c.Close()

	c.Add("u1", Notification{Title: "late"})
	c.AddPopup("u1", Popup{Message: "late"})

	list, unread := c.Notifications("u1")
	if len(list) != 0 || unread != 0 || len(c.Popups("u1")) != 0 {
		t.Error("a closed center should ignore adds")
	}
}
