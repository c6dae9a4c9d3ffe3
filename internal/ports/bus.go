package ports

import "context"

// BusMessage is one message received from the distributed bus.
type BusMessage struct {
	Channel string
	Payload []byte
}

// Bus is the distributed pub/sub bridge that syncs broadcasts across
// process instances. It is always optional: every caller must degrade
// to local-only delivery when the bus is down.
type Bus interface {
	// Publish sends payload on a channel.
	Publish(ctx context.Context, channel string, payload []byte) error

	// Listen subscribes to channel patterns (e.g. "match:*") and
	// returns a channel of incoming messages. The channel closes when
	// ctx is cancelled or the connection is lost for good.
	Listen(ctx context.Context, patterns ...string) (<-chan BusMessage, error)

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close tears down the connection.
	Close() error
}
