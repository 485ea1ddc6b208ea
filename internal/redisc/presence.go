package redisc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opsdesk/opsdesk/internal/models"
)

const presenceTTL = 120 * time.Second

type presenceRecord struct {
	Username      string    `json:"username"`
	StatusMessage string    `json:"status_message,omitempty"`
	LastSeen      time.Time `json:"last_seen"`
}

// SetOnline records a user as online. Best effort: callers log failures and
// move on, presence is not required infrastructure.
func SetOnline(client *redis.Client, userID, username, statusMessage string) error {
	data, err := json.Marshal(presenceRecord{
		Username:      username,
		StatusMessage: statusMessage,
		LastSeen:      time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	ctx := context.Background()
	pipe := client.Pipeline()
	pipe.SAdd(ctx, "online_users", userID)
	pipe.Set(ctx, "presence:"+userID, data, presenceTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func SetOffline(client *redis.Client, userID string) error {
	ctx := context.Background()
	pipe := client.Pipeline()
	pipe.SRem(ctx, "online_users", userID)
	pipe.Del(ctx, "presence:"+userID)
	_, err := pipe.Exec(ctx)
	return err
}

func RefreshPresence(client *redis.Client, userID string) error {
	return client.Expire(context.Background(), "presence:"+userID, presenceTTL).Err()
}

// GetOnlineUsers lists users whose presence key is still alive. Members of
// the online set whose key has expired are pruned as a side effect.
func GetOnlineUsers(client *redis.Client) ([]models.UserPresence, error) {
	ctx := context.Background()
	ids, err := client.SMembers(ctx, "online_users").Result()
	if err != nil {
		return nil, err
	}

	users := make([]models.UserPresence, 0, len(ids))
	for _, id := range ids {
		raw, err := client.Get(ctx, "presence:"+id).Result()
		if err == redis.Nil {
			client.SRem(ctx, "online_users", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		var rec presenceRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		users = append(users, models.UserPresence{
			UserID:        id,
			Username:      rec.Username,
			Status:        "online",
			StatusMessage: rec.StatusMessage,
			LastSeen:      rec.LastSeen,
		})
	}
	return users, nil
}
