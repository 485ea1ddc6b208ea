package chat

import (
	"sync"
	"testing"
	"time"
)

func TestTypingTrackerBurst(t *testing.T) {
	var mu sync.Mutex
	var stops []string
	tracker := NewTypingTracker(80*time.Millisecond, func(conversationID, userID string) {
		mu.Lock()
		stops = append(stops, conversationID+"|"+userID)
		mu.Unlock()
	})

	starts := 0
	for i := 0; i < 3; i++ {
		if tracker.Start("conv1", "u1") {
			starts++
		}
		time.Sleep(20 * time.Millisecond)
	}
	if starts != 1 {
		t.Fatalf("expected 1 start event for a burst, got %d", starts)
	}
	if tracker.ActiveCount() != 1 {
		t.Fatalf("expected 1 active pair, got %d", tracker.ActiveCount())
	}

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(stops) != 1 {
		t.Fatalf("expected exactly 1 stop callback, got %d", len(stops))
	}
	if stops[0] != "conv1|u1" {
		t.Errorf("unexpected stop key %q", stops[0])
	}
	if tracker.ActiveCount() != 0 {
		t.Errorf("expected tracker to be empty after idle, got %d", tracker.ActiveCount())
	}
}

func TestTypingTrackerStop(t *testing.T) {
	tracker := NewTypingTracker(time.Minute, nil)

	if tracker.Stop("conv1", "u1") {
		t.Error("Stop on an idle user should report false")
	}

	tracker.Start("conv1", "u1")
	if !tracker.Stop("conv1", "u1") {
		t.Error("Stop on a typing user should report true")
	}
	if tracker.Stop("conv1", "u1") {
		t.Error("second Stop should report false")
	}
}

func TestTypingTrackerClearUser(t *testing.T) {
	tracker := NewTypingTracker(time.Minute, nil)
	tracker.Start("conv1", "u1")
	tracker.Start("conv2", "u1")
	tracker.Start("conv1", "u2")

	tracker.ClearUser("u1")

	if tracker.ActiveCount() != 1 {
		t.Fatalf("expected only u2 to remain typing, got %d active", tracker.ActiveCount())
	}
	if tracker.Start("conv1", "u2") {
		t.Error("u2 should still be typing in conv1")
	}
}
