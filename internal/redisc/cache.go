package redisc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const conversationCacheTTL = 30 * time.Second

// Conversation-list read cache. Entries go stale after a short TTL and are
// invalidated explicitly on any mutation that changes a viewer's list
// (send, mark-read, conversation create).

func conversationsKey(userID string) string {
	return "cache:conversations:" + userID
}

func GetCachedConversations(client *redis.Client, userID string, out interface{}) bool {
	raw, err := client.Get(context.Background(), conversationsKey(userID)).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(raw), out) == nil
}

func SetCachedConversations(client *redis.Client, userID string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return client.Set(context.Background(), conversationsKey(userID), data, conversationCacheTTL).Err()
}

func InvalidateConversations(client *redis.Client, userIDs ...string) {
	if len(userIDs) == 0 {
		return
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = conversationsKey(id)
	}
	client.Del(context.Background(), keys...)
}
