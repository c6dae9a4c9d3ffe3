// Package decision holds the built-in agent brains. Real deployments
// point HTTPProvider at an agent container; random and SMA providers
// drive testing and demo matches.
package decision

import (
	"strings"
	"time"

	"github.com/agentarena/arena/internal/ports"
)

// Config carries the tunable knobs the provider constructors need.
type Config struct {
	Seed          int64
	ShortWindow   int
	LongWindow    int
	OrderQuantity float64
	AgentURL      string
	Timeout       time.Duration
}

// Build returns the provider matching the configured kind. Unknown
// kinds fall back to the random provider.
func Build(kind string, cfg Config) ports.DecisionProvider {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "random":
		return NewRandom(cfg.Seed)
	case "sma", "sma_cross":
		return NewSMA(cfg.ShortWindow, cfg.LongWindow, cfg.OrderQuantity)
	case "http", "container":
		return NewHTTP(cfg.AgentURL, cfg.Timeout)
	default:
		return NewRandom(cfg.Seed)
	}
}
