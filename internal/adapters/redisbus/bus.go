// Package redisbus bridges the broadcast hub across process instances
// over Redis pub/sub. The arena runs fine without it: callers treat
// every failure here as a degradation to local-only delivery.
package redisbus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/agentarena/arena/internal/ports"
)

// inboundBuffer absorbs short delivery bursts so a slow local consumer
// does not stall the pub/sub read loop.
const inboundBuffer = 64

// Bus implements ports.Bus on a Redis connection.
type Bus struct {
	client *redis.Client
}

// New builds a bus against the given Redis address. The connection is
// lazy; call Ping to probe it.
func New(addr, password string, db int) *Bus {
	return &Bus{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

// Publish sends payload on channel.
func (b *Bus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redisbus.Publish: channel %q: %w", channel, err)
	}
	return nil
}

// Listen pattern-subscribes and pumps incoming messages until ctx is
// cancelled or the subscription dies; either way the returned channel
// closes and the caller carries on local-only.
func (b *Bus) Listen(ctx context.Context, patterns ...string) (<-chan ports.BusMessage, error) {
	sub := b.client.PSubscribe(ctx, patterns...)
	// Confirm the subscription before reporting success.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("redisbus.Listen: subscribe %v: %w", patterns, err)
	}

	out := make(chan ports.BusMessage, inboundBuffer)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					slog.Warn("redis subscription closed, bus listening stopped")
					return
				}
				select {
				case out <- ports.BusMessage{Channel: msg.Channel, Payload: []byte(msg.Payload)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Ping probes the connection.
func (b *Bus) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redisbus.Ping: %w", err)
	}
	return nil
}

// Close releases the client.
func (b *Bus) Close() error {
	return b.client.Close()
}
