package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Change announces a committed write to a collection.
type Change struct {
	Origin     string `json:"origin"`
	Collection string `json:"collection"`
}

// Notifier carries change announcements between processes.
type Notifier interface {
	Publish(ctx context.Context, c Change)
	Listen(ctx context.Context, fn func(Change)) error
}

// RedisNotifier publishes changes on a Redis pub/sub channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedisNotifier connects to the Redis server at url (for example
// redis://localhost:6379/0).
func NewRedisNotifier(ctx context.Context, url, channel string, logger *slog.Logger) (*RedisNotifier, error) {
	if url == "" {
		return nil, errors.New("redis URL is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	if channel == "" {
		channel = "folio:changes"
	}
	return &RedisNotifier{client: client, channel: channel, logger: logger}, nil
}

// Publish sends c. Failures are logged; watches in this process have
// already been refreshed.
func (n *RedisNotifier) Publish(ctx context.Context, c Change) {
	payload, err := json.Marshal(c)
	if err != nil {
		return
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		n.logger.Warn("publishing change failed", "collection", c.Collection, "error", err)
	}
}

// Listen delivers changes from other processes to fn until ctx is done.
func (n *RedisNotifier) Listen(ctx context.Context, fn func(Change)) error {
	sub := n.client.Subscribe(ctx, n.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}
	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var c Change
				if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
					n.logger.Warn("ignoring malformed change", "payload", msg.Payload)
					continue
				}
				fn(c)
			}
		}
	}()
	return nil
}

// Close closes the Redis connection.
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
