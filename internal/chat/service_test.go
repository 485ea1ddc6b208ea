package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"

	"github.com/opsdesk/opsdesk/internal/apperr"
	"github.com/opsdesk/opsdesk/internal/models"
)

type fakeStore struct {
	mu sync.Mutex

	summaries   []models.ConversationSummary
	listErr     error
	messages    []models.MessageWithSender
	messagesErr error
	participant bool
	users       []models.User
	unread      map[string]int
	direct      *models.Conversation
	conv        *models.Conversation

	lastLimit   int
	lastOffset  int
	created     []models.MessageWithSender
	createdConv *models.Conversation
	convIDs     []string
	markedRead  []string
	added       []string
	removed     []string
}

func (f *fakeStore) ListConversations(userID string) ([]models.ConversationSummary, error) {
	return f.summaries, f.listErr
}

func (f *fakeStore) GetConversation(id string) (*models.Conversation, error) { return f.conv, nil }

func (f *fakeStore) Messages(conversationID string, limit, offset int) ([]models.MessageWithSender, error) {
	f.mu.Lock()
	f.lastLimit, f.lastOffset = limit, offset
	f.mu.Unlock()
	return f.messages, f.messagesErr
}

func (f *fakeStore) CreateMessage(conversationID, senderID, content, messageType string, metadata json.RawMessage) (*models.MessageWithSender, error) {
	msg := models.MessageWithSender{
		Message: models.Message{
			ID:             fmt.Sprintf("m%d", len(f.created)+1),
			ConversationID: conversationID,
			SenderID:       senderID,
			Content:        content,
			MessageType:    messageType,
			Metadata:       metadata,
			CreatedAt:      time.Now(),
		},
		SenderUsername: "alice",
	}
	f.mu.Lock()
	f.created = append(f.created, msg)
	f.mu.Unlock()
	return &msg, nil
}

func (f *fakeStore) IsParticipant(conversationID, userID string) (bool, error) {
	return f.participant, nil
}

func (f *fakeStore) Participants(conversationID string) ([]models.User, error) {
	return f.users, nil
}

func (f *fakeStore) AddParticipant(conversationID, userID string) error {
	f.mu.Lock()
	f.added = append(f.added, conversationID+"|"+userID)
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) RemoveParticipant(conversationID, userID string) error {
	f.mu.Lock()
	f.removed = append(f.removed, conversationID+"|"+userID)
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) GetDirectConversation(userID1, userID2 string) (*models.Conversation, error) {
	return f.direct, nil
}

func (f *fakeStore) CreateConversation(name, convType, createdBy string, participantIDs []string) (*models.Conversation, error) {
	f.mu.Lock()
	f.convIDs = participantIDs
	f.createdConv = &models.Conversation{ID: "c1", Name: name, Type: convType, CreatedBy: createdBy}
	f.mu.Unlock()
	return f.createdConv, nil
}

func (f *fakeStore) MarkRead(conversationID, userID string, timestamp time.Time) error {
	f.mu.Lock()
	f.markedRead = append(f.markedRead, conversationID+"|"+userID)
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) UnreadCount(conversationID, userID string) (int, error) {
	return f.unread[userID], nil
}

type sentEvent struct {
	conversationID string
	excludeUserID  string
	msg            WSMessage
}

type fakeBroadcaster struct {
	mu         sync.Mutex
	broadcasts []sentEvent
	direct     map[string][]WSMessage
	joined     []string
	left       []string
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{direct: make(map[string][]WSMessage)}
}

func (f *fakeBroadcaster) BroadcastToConversation(conversationID string, data []byte, excludeUserID string) {
	var msg WSMessage
	json.Unmarshal(data, &msg)
	f.mu.Lock()
	f.broadcasts = append(f.broadcasts, sentEvent{conversationID, excludeUserID, msg})
	f.mu.Unlock()
}

func (f *fakeBroadcaster) SendToUser(userID string, data []byte) {
	var msg WSMessage
	json.Unmarshal(data, &msg)
	f.mu.Lock()
	f.direct[userID] = append(f.direct[userID], msg)
	f.mu.Unlock()
}

func (f *fakeBroadcaster) AddConversation(userID, conversationID string) {
	f.mu.Lock()
	f.joined = append(f.joined, userID+"|"+conversationID)
	f.mu.Unlock()
}

func (f *fakeBroadcaster) RemoveConversation(userID, conversationID string) {
	f.mu.Lock()
	f.left = append(f.left, userID+"|"+conversationID)
	f.mu.Unlock()
}

func (f *fakeBroadcaster) broadcastTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]string, 0, len(f.broadcasts))
	for _, ev := range f.broadcasts {
		types = append(types, ev.msg.Type)
	}
	return types
}

func (f *fakeBroadcaster) directTo(userID string) []WSMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]WSMessage(nil), f.direct[userID]...)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (f *fakePublisher) PublishEvent(table, action string, data []byte) error {
	f.mu.Lock()
	f.events = append(f.events, table+":"+action)
	f.mu.Unlock()
	return nil
}

func (f *fakePublisher) published() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func newTestService(store *fakeStore) (*Service, *fakeBroadcaster, *fakePublisher) {
	bcast := newFakeBroadcaster()
	pub := &fakePublisher{}
	return NewService(store, bcast, nil, pub), bcast, pub
}

func TestListConversationsMissingTables(t *testing.T) {
	store := &fakeStore{listErr: &pq.Error{Code: "42P01"}}
	svc, _, _ := newTestService(store)

	convs, err := svc.ListConversations("u1")
	if err != nil {
		t.Fatalf("missing chat tables should not be an error, got %v", err)
	}
	if convs == nil {
		t.Fatal("expected an empty slice, got nil")
	}
	if len(convs) != 0 {
		t.Errorf("expected no conversations, got %d", len(convs))
	}
}

func TestListConversationsOtherError(t *testing.T) {
	store := &fakeStore{listErr: errors.New("connection refused")}
	svc, _, _ := newTestService(store)

	if _, err := svc.ListConversations("u1"); err == nil {
		t.Fatal("expected the error to propagate")
	}
}

func TestMessagesReversedOldestFirst(t *testing.T) {
	newest := func(id string) models.MessageWithSender {
		return models.MessageWithSender{Message: models.Message{ID: id}}
	}
	store := &fakeStore{
		participant: true,
		messages:    []models.MessageWithSender{newest("m3"), newest("m2"), newest("m1")},
	}
	svc, _, _ := newTestService(store)

	msgs, err := svc.Messages("u1", "conv1", 0, -1)
	if err != nil {
		t.Fatal(err)
	}
	if store.lastLimit != defaultMessageLimit || store.lastOffset != 0 {
		t.Errorf("expected limit %d offset 0, got %d %d", defaultMessageLimit, store.lastLimit, store.lastOffset)
	}
	got := []string{msgs[0].ID, msgs[1].ID, msgs[2].ID}
	want := []string{"m1", "m2", "m3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("messages out of order: got %v, want %v", got, want)
		}
	}
}

func TestMessagesRequiresParticipation(t *testing.T) {
	store := &fakeStore{participant: false}
	svc, _, _ := newTestService(store)

	_, err := svc.Messages("u1", "conv1", 50, 0)
	if err == nil {
		t.Fatal("expected a forbidden error")
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Code != apperr.CodeForbidden {
		t.Errorf("expected FORBIDDEN, got %v", err)
	}
}

func TestSendValidation(t *testing.T) {
	store := &fakeStore{participant: true}
	svc, _, _ := newTestService(store)

	if _, err := svc.Send("conv1", "u1", "", "text", nil); err == nil {
		t.Error("empty content should be rejected")
	}

	store.participant = false
	if _, err := svc.Send("conv1", "u1", "hi", "text", nil); err == nil {
		t.Error("non-participants should not be able to send")
	}
}

func TestSendBroadcastsAndFansOut(t *testing.T) {
	store := &fakeStore{
		participant: true,
		users: []models.User{
			{ID: "u1", Username: "alice"},
			{ID: "u2", Username: "bob"},
		},
		unread: map[string]int{"u2": 3},
	}
	svc, bcast, pub := newTestService(store)

	svc.Typing.Start("conv1", "u1")

	msg, err := svc.Send("conv1", "u1", "hello", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if msg.MessageType != "text" {
		t.Errorf("empty message type should default to text, got %q", msg.MessageType)
	}

	types := bcast.broadcastTypes()
	if len(types) < 2 || types[0] != TypeMessageNew || types[1] != TypeTypingUpdate {
		t.Errorf("expected message.new then typing.update, got %v", types)
	}
	if svc.Typing.ActiveCount() != 0 {
		t.Error("sending should end the sender's typing burst")
	}

	// Fan-out runs asynchronously.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(bcast.directTo("u2")) > 0 && len(pub.published()) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	direct := bcast.directTo("u2")
	if len(direct) != 1 || direct[0].Type != TypeUnreadUpdate {
		t.Fatalf("expected one unread.update for u2, got %v", direct)
	}
	var unread UnreadUpdatePayload
	if err := json.Unmarshal(direct[0].Payload, &unread); err != nil {
		t.Fatal(err)
	}
	if unread.Count != 3 {
		t.Errorf("unread count = %d, want 3", unread.Count)
	}
	if len(bcast.directTo("u1")) != 0 {
		t.Error("the sender should not receive an unread update")
	}

	events := pub.published()
	if len(events) != 1 || events[0] != "messages:insert" {
		t.Errorf("expected one messages:insert event, got %v", events)
	}
}

func TestCreateDirectDedup(t *testing.T) {
	existing := &models.Conversation{ID: "c-existing", Type: models.ConversationDirect}
	store := &fakeStore{direct: existing}
	svc, _, _ := newTestService(store)

	conv, err := svc.CreateDirect("u1", "u2")
	if err != nil {
		t.Fatal(err)
	}
	if conv.ID != "c-existing" {
		t.Errorf("expected the existing DM, got %q", conv.ID)
	}
	if store.createdConv != nil {
		t.Error("a duplicate DM was created")
	}
}

func TestCreateDirectRejectsSelf(t *testing.T) {
	svc, _, _ := newTestService(&fakeStore{})
	if _, err := svc.CreateDirect("u1", "u1"); err == nil {
		t.Error("a self conversation should be rejected")
	}
	if _, err := svc.CreateDirect("u1", ""); err == nil {
		t.Error("a missing user id should be rejected")
	}
}

func TestCreateGroupDedupesCreator(t *testing.T) {
	store := &fakeStore{}
	svc, bcast, _ := newTestService(store)

	conv, err := svc.CreateGroup("u1", "ops", []string{"u2", "u1", "u3"})
	if err != nil {
		t.Fatal(err)
	}
	if len(store.convIDs) != 3 {
		t.Fatalf("expected 3 unique participants, got %v", store.convIDs)
	}
	if store.convIDs[0] != "u1" {
		t.Errorf("creator should lead the participant list, got %v", store.convIDs)
	}

	// Everyone but the creator is told about the new conversation.
	for _, id := range []string{"u2", "u3"} {
		msgs := bcast.directTo(id)
		if len(msgs) != 1 || msgs[0].Type != TypeConversationNew {
			t.Errorf("expected conversation.new for %s, got %v", id, msgs)
		}
	}
	if len(bcast.directTo("u1")) != 0 {
		t.Error("the creator should not be notified of their own conversation")
	}
	if conv.Name != "ops" {
		t.Errorf("conversation name = %q, want ops", conv.Name)
	}
}

func TestCreateGroupRequiresName(t *testing.T) {
	svc, _, _ := newTestService(&fakeStore{})
	if _, err := svc.CreateGroup("u1", "", nil); err == nil {
		t.Error("a group without a name should be rejected")
	}
}

func TestMarkRead(t *testing.T) {
	store := &fakeStore{participant: true}
	svc, bcast, _ := newTestService(store)

	if err := svc.MarkRead("conv1", "u1", "alice"); err != nil {
		t.Fatal(err)
	}
	if len(store.markedRead) != 1 || store.markedRead[0] != "conv1|u1" {
		t.Fatalf("watermark not stored, got %v", store.markedRead)
	}

	types := bcast.broadcastTypes()
	if len(types) != 1 || types[0] != TypeReadReceipt {
		t.Fatalf("expected one read_receipt.update broadcast, got %v", types)
	}
	if bcast.broadcasts[0].excludeUserID != "u1" {
		t.Error("the reader should be excluded from their own read receipt")
	}

	direct := bcast.directTo("u1")
	if len(direct) != 1 || direct[0].Type != TypeUnreadUpdate {
		t.Fatalf("expected unread.update for the reader, got %v", direct)
	}
	var unread UnreadUpdatePayload
	if err := json.Unmarshal(direct[0].Payload, &unread); err != nil {
		t.Fatal(err)
	}
	if unread.Count != 0 {
		t.Errorf("unread count after read = %d, want 0", unread.Count)
	}
}

func TestMarkReadRequiresParticipation(t *testing.T) {
	store := &fakeStore{participant: false}
	svc, bcast, _ := newTestService(store)

	err := svc.MarkRead("conv1", "outsider", "mallory")
	if err == nil {
		t.Fatal("expected a forbidden error")
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Code != apperr.CodeForbidden {
		t.Errorf("expected FORBIDDEN, got %v", err)
	}

	if len(store.markedRead) != 0 {
		t.Error("the watermark should not move for non-participants")
	}
	if types := bcast.broadcastTypes(); len(types) != 0 {
		t.Errorf("no read receipt should reach the conversation, got %v", types)
	}
	if msgs := bcast.directTo("outsider"); len(msgs) != 0 {
		t.Errorf("no unread update should reach the caller, got %v", msgs)
	}
}

func TestAddMember(t *testing.T) {
	store := &fakeStore{
		participant: true,
		conv:        &models.Conversation{ID: "c1", Name: "ops", Type: models.ConversationGroup, CreatedBy: "u1"},
	}
	svc, bcast, _ := newTestService(store)

	if err := svc.AddMember("c1", "u1", "u3"); err != nil {
		t.Fatal(err)
	}
	if len(store.added) != 1 || store.added[0] != "c1|u3" {
		t.Fatalf("participant row not written, got %v", store.added)
	}
	if len(bcast.joined) != 1 || bcast.joined[0] != "u3|c1" {
		t.Errorf("new member's connection not subscribed, got %v", bcast.joined)
	}
	msgs := bcast.directTo("u3")
	if len(msgs) != 1 || msgs[0].Type != TypeConversationNew {
		t.Errorf("expected conversation.new for the new member, got %v", msgs)
	}
}

func TestAddMemberGating(t *testing.T) {
	group := &models.Conversation{ID: "c1", Type: models.ConversationGroup}

	store := &fakeStore{participant: false, conv: group}
	svc, _, _ := newTestService(store)
	if err := svc.AddMember("c1", "outsider", "u3"); err == nil {
		t.Error("non-participants should not be able to add members")
	}

	store = &fakeStore{participant: true, conv: &models.Conversation{ID: "c2", Type: models.ConversationDirect}}
	svc, _, _ = newTestService(store)
	if err := svc.AddMember("c2", "u1", "u3"); err == nil {
		t.Error("direct conversations should not accept new members")
	}

	store = &fakeStore{participant: true}
	svc, _, _ = newTestService(store)
	if err := svc.AddMember("missing", "u1", "u3"); err == nil {
		t.Error("a missing conversation should be not found")
	}
}

func TestLeave(t *testing.T) {
	store := &fakeStore{participant: true}
	svc, bcast, _ := newTestService(store)

	if err := svc.Leave("c1", "u2"); err != nil {
		t.Fatal(err)
	}
	if len(store.removed) != 1 || store.removed[0] != "c1|u2" {
		t.Fatalf("participant row not removed, got %v", store.removed)
	}
	if len(bcast.left) != 1 || bcast.left[0] != "u2|c1" {
		t.Errorf("connection not unsubscribed, got %v", bcast.left)
	}

	store.participant = false
	if err := svc.Leave("c1", "outsider"); err == nil {
		t.Error("leaving a conversation you are not in should fail")
	}
}

func TestTypingStartBroadcastsOncePerBurst(t *testing.T) {
	svc, bcast, _ := newTestService(&fakeStore{})

	svc.TypingStart("conv1", "u1", "alice")
	svc.TypingStart("conv1", "u1", "alice")
	svc.TypingStart("conv1", "u1", "alice")

	types := bcast.broadcastTypes()
	if len(types) != 1 || types[0] != TypeTypingUpdate {
		t.Fatalf("expected one typing.update, got %v", types)
	}

	svc.TypingStop("conv1", "u1", "alice")
	svc.TypingStop("conv1", "u1", "alice")

	types = bcast.broadcastTypes()
	if len(types) != 2 {
		t.Fatalf("expected one start and one stop broadcast, got %v", types)
	}
}
