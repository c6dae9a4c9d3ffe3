// Package broadcast fans match events out to live observers. The Hub
// handles in-process delivery and subscription bookkeeping; BusBridge
// layers an optional distributed bus on top so multiple instances see
// each other's events.
package broadcast

import (
	"context"
	"log/slog"
	"sync"

	"github.com/agentarena/arena/internal/domain"
	"github.com/agentarena/arena/internal/metrics"
	"github.com/agentarena/arena/internal/ports"
)

// Hub is the in-process subscriber registry and fan-out. It is the
// only shared-mutable structure in the system; everything it owns sits
// behind one RWMutex.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]ports.Subscriber
	channels    map[string]map[string]struct{} // channel -> subscriber ids
}

// NewHub builds an empty hub.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]ports.Subscriber),
		channels:    make(map[string]map[string]struct{}),
	}
}

// Connect registers a subscriber under id. Reconnecting with the same
// id replaces the previous subscriber but keeps its subscriptions.
func (h *Hub) Connect(id string, sub ports.Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[id] = sub
}

// Disconnect removes the subscriber and all its subscriptions.
func (h *Hub) Disconnect(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(id)
}

// Subscribe adds the subscriber to a channel. Unknown ids are ignored;
// Connect comes first.
func (h *Hub) Subscribe(id, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[id]; !ok {
		return
	}
	if h.channels[channel] == nil {
		h.channels[channel] = make(map[string]struct{})
	}
	h.channels[channel][id] = struct{}{}
}

// Unsubscribe removes the subscriber from a channel.
func (h *Hub) Unsubscribe(id, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ids, ok := h.channels[channel]; ok {
		delete(ids, id)
		if len(ids) == 0 {
			delete(h.channels, channel)
		}
	}
}

// SubscriberCount reports how many subscribers are connected.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Publish delivers the event to every subscriber of its channel, in
// one synchronous pass. A subscriber whose Deliver fails is dropped
// from the hub entirely so one dead connection cannot poison later
// publishes. Publish itself never fails.
func (h *Hub) Publish(ctx context.Context, event domain.Event) error {
	type target struct {
		id  string
		sub ports.Subscriber
	}

	h.mu.RLock()
	targets := make([]target, 0, len(h.channels[event.Channel]))
	for id := range h.channels[event.Channel] {
		if sub, ok := h.subscribers[id]; ok {
			targets = append(targets, target{id: id, sub: sub})
		}
	}
	h.mu.RUnlock()

	// Deliver outside the lock: a slow subscriber must not block
	// registry operations.
	var failed []string
	for _, t := range targets {
		if err := t.sub.Deliver(ctx, event); err != nil {
			slog.Warn("dropping broken subscriber",
				"subscriber_id", t.id, "channel", event.Channel, "error", err)
			metrics.BroadcastFailures.Inc()
			failed = append(failed, t.id)
		}
	}

	if len(failed) > 0 {
		h.mu.Lock()
		for _, id := range failed {
			h.dropLocked(id)
		}
		h.mu.Unlock()
	}

	metrics.EventsPublished.WithLabelValues(event.Type).Inc()
	return nil
}

// dropLocked removes id from the registry and every channel. Caller
// holds the write lock.
func (h *Hub) dropLocked(id string) {
	delete(h.subscribers, id)
	for channel, ids := range h.channels {
		delete(ids, id)
		if len(ids) == 0 {
			delete(h.channels, channel)
		}
	}
}
