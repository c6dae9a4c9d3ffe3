package ports

import (
	"context"

	"github.com/agentarena/arena/internal/domain"
)

// Broadcaster fans an event out to everyone subscribed to its channel.
// Implementations must never fail a publish because some subscriber is
// broken; delivery problems are theirs to absorb.
type Broadcaster interface {
	Publish(ctx context.Context, event domain.Event) error
}
