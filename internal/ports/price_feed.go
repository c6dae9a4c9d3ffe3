package ports

import (
	"context"

	"github.com/shopspring/decimal"
)

// PriceFeed supplies the starting price for each instrument of a match.
// It is consulted once at match start; the synthetic walk carries
// prices forward from there.
type PriceFeed interface {
	// InitialPrices returns a price for every requested symbol.
	// Implementations substitute a default for symbols they cannot
	// quote rather than failing the whole set.
	InitialPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error)
}
