// Package notifications delivers realtime events to websocket clients over Redis pub/sub.
package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"zanhu/internal/middleware"
	"zanhu/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Notifier provides helpers to publish events into Redis channels.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

func (n *Notifier) publish(ctx context.Context, kind, channel string, ev Event) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	payload, err := ev.Encode()
	if err != nil {
		observability.RealtimePublishes.WithLabelValues(kind, "error").Inc()
		return fmt.Errorf("encode event: %w", err)
	}
	if err := n.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		observability.RealtimePublishes.WithLabelValues(kind, "error").Inc()
		return err
	}
	observability.RealtimePublishes.WithLabelValues(kind, "ok").Inc()
	return nil
}

// PublishUser sends an event to a single user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, ev Event) error {
	return n.publish(ctx, "user", UserChannel(userID), ev)
}

// PublishGroup sends an event to every connected client.
func (n *Notifier) PublishGroup(ctx context.Context, ev Event) error {
	return n.publish(ctx, "group", GroupChannel, ev)
}

// StartPatternSubscriber subscribes to the group channel and every user channel and
// calls onMessage for each incoming message until ctx is done.
func (n *Notifier) StartPatternSubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	patterns := []string{userChannelPrefix + "*", GroupChannel}
	sub := n.rdb.PSubscribe(ctx, patterns...)
	// Wait for every subscription to be confirmed so publishes right after start are not lost.
	for range patterns {
		if _, err := sub.Receive(ctx); err != nil {
			_ = sub.Close()
			return fmt.Errorf("subscribe: %w", err)
		}
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in pattern subscriber",
								slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}
