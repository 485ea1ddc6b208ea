package chat

import (
	"sync"
	"time"
)

// DefaultTypingIdle is how long a typing indicator survives without a
// refresh before it is cleared automatically.
const DefaultTypingIdle = 3 * time.Second

// TypingTracker holds the ephemeral per-(conversation, user) typing state.
// Repeated keystrokes reset a single timer per key, so a burst of input
// produces one start and, after the idle window, one stop.
type TypingTracker struct {
	mu     sync.Mutex
	idle   time.Duration
	active map[string]*time.Timer
	onStop func(conversationID, userID string)
}

func NewTypingTracker(idle time.Duration, onStop func(conversationID, userID string)) *TypingTracker {
	if idle <= 0 {
		idle = DefaultTypingIdle
	}
	return &TypingTracker{
		idle:   idle,
		active: make(map[string]*time.Timer),
		onStop: onStop,
	}
}

func typingKey(conversationID, userID string) string {
	return conversationID + "|" + userID
}

// Start records typing activity. It returns true only when the user was not
// already typing in the conversation, i.e. when a start event should be
// broadcast. Subsequent calls within the idle window just reset the timer.
func (t *TypingTracker) Start(conversationID, userID string) bool {
	key := typingKey(conversationID, userID)
	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.active[key]; ok {
		timer.Reset(t.idle)
		return false
	}

	t.active[key] = time.AfterFunc(t.idle, func() {
		if t.Stop(conversationID, userID) && t.onStop != nil {
			t.onStop(conversationID, userID)
		}
	})
	return true
}

// Stop clears the typing state. Returns true when the user was typing, so
// callers broadcast exactly one clear per burst.
func (t *TypingTracker) Stop(conversationID, userID string) bool {
	key := typingKey(conversationID, userID)
	t.mu.Lock()
	defer t.mu.Unlock()

	timer, ok := t.active[key]
	if !ok {
		return false
	}
	timer.Stop()
	delete(t.active, key)
	return true
}

// ClearUser drops all typing state for a user, used on disconnect.
func (t *TypingTracker) ClearUser(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	suffix := "|" + userID
	for key, timer := range t.active {
		if len(key) >= len(suffix) && key[len(key)-len(suffix):] == suffix {
			timer.Stop()
			delete(t.active, key)
		}
	}
}

// ActiveCount reports how many (conversation, user) pairs are typing.
func (t *TypingTracker) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}
