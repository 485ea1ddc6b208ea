package chat

import (
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func recv(t *testing.T, ch chan []byte) []byte {
	t.Helper()
	select {
	case data := <-ch:
		return data
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestHubDeliverToConversation(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Shutdown()

	member := newClient(hub, nil, nil, "u1", "alice", map[string]bool{"conv1": true})
	outsider := newClient(hub, nil, nil, "u2", "bob", map[string]bool{"conv2": true})

	hub.Register(member)
	hub.Register(outsider)
	waitFor(t, func() bool { return len(hub.OnlineUserIDs()) == 2 })

	// Registration fans presence updates out to everyone connected.
	recv(t, member.send)
	recv(t, member.send)
	recv(t, outsider.send)

	hub.BroadcastToConversation("conv1", []byte("hello"), "")
	if got := string(recv(t, member.send)); got != "hello" {
		t.Errorf("member received %q, want %q", got, "hello")
	}

	select {
	case data := <-outsider.send:
		t.Errorf("outsider received %q for a conversation it is not in", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubBroadcastExcludesSender(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Shutdown()

	a := newClient(hub, nil, nil, "u1", "alice", map[string]bool{"conv1": true})
	b := newClient(hub, nil, nil, "u2", "bob", map[string]bool{"conv1": true})

	hub.Register(a)
	hub.Register(b)
	waitFor(t, func() bool { return len(hub.OnlineUserIDs()) == 2 })
	recv(t, a.send)
	recv(t, a.send)
	recv(t, b.send)

	hub.BroadcastToConversation("conv1", []byte("x"), "u1")
	if got := string(recv(t, b.send)); got != "x" {
		t.Errorf("b received %q, want %q", got, "x")
	}
	select {
	case data := <-a.send:
		t.Errorf("excluded sender received %q", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubDoubleUnregister(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Shutdown()

	client := newClient(hub, nil, nil, "u1", "alice", map[string]bool{})
	hub.Register(client)
	waitFor(t, func() bool { return len(hub.OnlineUserIDs()) == 1 })

	hub.Unregister(client)
	hub.Unregister(client)
	waitFor(t, func() bool { return len(hub.OnlineUserIDs()) == 0 })

	if client.trySend([]byte("x")) {
		t.Error("trySend should fail after unregister closed the channel")
	}
}

func TestHubReplacesExistingConnection(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Shutdown()

	first := newClient(hub, nil, nil, "u1", "alice", map[string]bool{})
	second := newClient(hub, nil, nil, "u1", "alice", map[string]bool{})

	hub.Register(first)
	waitFor(t, func() bool { return len(hub.OnlineUserIDs()) == 1 })
	hub.Register(second)
	waitFor(t, func() bool { return !first.trySend([]byte("x")) })

	if !second.trySend([]byte("x")) {
		t.Error("replacement connection should still accept sends")
	}

	// Unregistering the stale connection must not evict the new one.
	hub.Unregister(first)
	time.Sleep(20 * time.Millisecond)
	if len(hub.OnlineUserIDs()) != 1 {
		t.Errorf("expected the replacement to stay registered, online=%v", hub.OnlineUserIDs())
	}
}

func TestHubSendToUser(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Shutdown()

	client := newClient(hub, nil, nil, "u1", "alice", map[string]bool{})
	hub.Register(client)
	waitFor(t, func() bool { return len(hub.OnlineUserIDs()) == 1 })
	recv(t, client.send)

	hub.SendToUser("u1", []byte("direct"))
	if got := string(recv(t, client.send)); got != "direct" {
		t.Errorf("got %q, want %q", got, "direct")
	}

	// Unknown user is a no-op.
	hub.SendToUser("nobody", []byte("lost"))
}

func TestHubShutdownIdempotent(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()

	client := newClient(hub, nil, nil, "u1", "alice", map[string]bool{"conv1": true})
	hub.Register(client)
	waitFor(t, func() bool { return len(hub.OnlineUserIDs()) == 1 })

	hub.Shutdown()
	hub.Shutdown()

	if client.trySend([]byte("x")) {
		t.Error("trySend should fail after shutdown")
	}

	// Must not block once the run loop has exited.
	hub.BroadcastToConversation("conv1", []byte("x"), "")
}

func TestHubRegisterAfterShutdown(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	hub.Shutdown()

	late := newClient(hub, nil, nil, "u1", "alice", map[string]bool{})

	done := make(chan struct{})
	go func() {
		hub.Register(late)
		hub.Unregister(late)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("register against a stopped hub should not block")
	}

	if late.trySend([]byte("x")) {
		t.Error("a client registered after shutdown should be closed")
	}
}

func TestHubRemoveConversation(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Shutdown()

	client := newClient(hub, nil, nil, "u1", "alice", map[string]bool{"conv1": true})
	hub.Register(client)
	waitFor(t, func() bool { return len(hub.OnlineUserIDs()) == 1 })
	recv(t, client.send)

	hub.RemoveConversation("u1", "conv1")
	hub.BroadcastToConversation("conv1", []byte("x"), "")
	select {
	case data := <-client.send:
		t.Errorf("received %q after leaving the conversation", data)
	case <-time.After(50 * time.Millisecond):
	}

	hub.AddConversation("u1", "conv1")
	hub.BroadcastToConversation("conv1", []byte("y"), "")
	if got := string(recv(t, client.send)); got != "y" {
		t.Errorf("got %q after rejoining, want %q", got, "y")
	}
}
