package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/agentarena/arena/internal/domain"
	"github.com/agentarena/arena/internal/ports"
)

// busEnvelope wraps events on the bus with the publishing instance's
// origin id so an instance can recognize its own messages echoing back.
type busEnvelope struct {
	Origin string       `json:"origin"`
	Event  domain.Event `json:"event"`
}

// BusBridge decorates a Hub with a distributed bus: local publishes are
// mirrored to the bus, and bus messages from other instances are fed
// back into the local hub. Bus failures degrade to local-only delivery,
// they never surface to publishers.
type BusBridge struct {
	hub    *Hub
	bus    ports.Bus
	origin string
}

// NewBusBridge wraps hub with bus. Call Run to start the inbound side.
func NewBusBridge(hub *Hub, bus ports.Bus) *BusBridge {
	return &BusBridge{hub: hub, bus: bus, origin: uuid.New().String()}
}

// Origin returns this instance's echo-suppression id.
func (b *BusBridge) Origin() string {
	return b.origin
}

// Run subscribes to the arena channel patterns and pumps inbound bus
// messages into the local hub until ctx is cancelled. Messages this
// instance published are skipped: their subscribers were already served
// by the local pass in Publish.
func (b *BusBridge) Run(ctx context.Context) error {
	msgs, err := b.bus.Listen(ctx, "match:*", "agent:*", domain.LeaderboardChannel)
	if err != nil {
		return fmt.Errorf("broadcast.BusBridge: subscribe: %w", err)
	}

	go func() {
		for msg := range msgs {
			var env busEnvelope
			if err := json.Unmarshal(msg.Payload, &env); err != nil {
				slog.Warn("dropping malformed bus message", "channel", msg.Channel, "error", err)
				continue
			}
			if env.Origin == b.origin {
				continue
			}
			env.Event.Channel = msg.Channel
			_ = b.hub.Publish(ctx, env.Event)
		}
	}()
	return nil
}

// Publish delivers locally first, then mirrors to the bus. A bus error
// is logged and absorbed: observers on this instance already got the
// event.
func (b *BusBridge) Publish(ctx context.Context, event domain.Event) error {
	if err := b.hub.Publish(ctx, event); err != nil {
		return err
	}

	payload, err := json.Marshal(busEnvelope{Origin: b.origin, Event: event})
	if err != nil {
		return fmt.Errorf("broadcast.BusBridge: marshal event: %w", err)
	}
	if err := b.bus.Publish(ctx, event.Channel, payload); err != nil {
		slog.Warn("bus publish failed, delivered local-only", "channel", event.Channel, "error", err)
	}
	return nil
}
