package ports

import (
	"context"

	"github.com/agentarena/arena/internal/domain"
)

// Subscriber receives events fanned out by the broadcast hub. A
// Deliver error tells the hub the subscriber is gone; the hub drops it
// from every channel and never retries.
type Subscriber interface {
	Deliver(ctx context.Context, event domain.Event) error
}
