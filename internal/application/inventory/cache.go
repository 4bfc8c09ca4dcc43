package inventory

import (
	"context"

	"github.com/erp/stockledger/internal/domain/inventory"
)

// AvailabilityCache stores computed stock levels for read paths.
// Admission and movement appends never read from it.
type AvailabilityCache interface {
	// Get returns nil, nil on a miss
	Get(ctx context.Context, key inventory.StockKey) (*StockLevel, error)
	Set(ctx context.Context, level *StockLevel) error
	Invalidate(ctx context.Context, keys ...inventory.StockKey) error
}
