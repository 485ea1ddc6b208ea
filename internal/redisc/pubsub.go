package redisc

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Source events travel over one channel per (table, action) pair, e.g.
// "events:complaints:insert". The notification watcher subscribes per
// channel so one bad subscription doesn't take down the rest.

func EventChannel(table, action string) string {
	return "events:" + table + ":" + action
}

// Publisher adapts a redis client to the event-publishing interfaces the
// chat service and REST handlers accept.
type Publisher struct {
	Client *redis.Client
}

func (p *Publisher) PublishEvent(table, action string, data []byte) error {
	return PublishEvent(p.Client, table, action, data)
}

func PublishEvent(client *redis.Client, table, action string, data []byte) error {
	return client.Publish(context.Background(), EventChannel(table, action), data).Err()
}

// SubscribeEvents subscribes to a single event channel and invokes handler
// for every payload until ctx is cancelled. The subscription is confirmed
// before returning, so a broken connection surfaces here rather than as a
// silently idle consumer. The returned PubSub handle must be closed by the
// caller.
func SubscribeEvents(ctx context.Context, client *redis.Client, channel string, handler func(table, action string, data []byte)) (*redis.PubSub, error) {
	pubsub := client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}
	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				table, action := parseEventChannel(msg.Channel)
				handler(table, action, []byte(msg.Payload))
			case <-ctx.Done():
				return
			}
		}
	}()
	return pubsub, nil
}

func parseEventChannel(channel string) (table, action string) {
	parts := strings.SplitN(channel, ":", 3)
	if len(parts) != 3 {
		return "", ""
	}
	return parts[1], parts[2]
}
