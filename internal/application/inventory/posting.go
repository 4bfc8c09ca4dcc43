package inventory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
)

// PostMovement appends a movement to the ledger inside an open transaction.
// Every affected balance row is locked, the movement impact applied and the
// movement events written to the outbox. Returns the keys whose availability changed.
func PostMovement(ctx context.Context, repos TransactionalRepositories, m *inventory.StockMovement, now time.Time) ([]inventory.StockKey, error) {
	locations := m.AffectedLocations()
	// Lock in a stable order so two transfers in opposite directions cannot deadlock
	sort.Slice(locations, func(i, j int) bool {
		return locations[i].String() < locations[j].String()
	})

	keys := make([]inventory.StockKey, 0, len(locations))
	for _, locationID := range locations {
		impact := m.ImpactAt(locationID)
		if err := requireLocationFor(ctx, repos, locationID, impact.IsPositive()); err != nil {
			return nil, err
		}

		balance, err := repos.Balances().LockForUpdate(ctx, locationID, m.ProductID, m.Quantity.Unit())
		if err != nil {
			return nil, err
		}
		if err := balance.Apply(impact, now); err != nil {
			return nil, err
		}
		if err := repos.Balances().Save(ctx, balance); err != nil {
			return nil, err
		}
		keys = append(keys, balance.Key())
	}

	if err := repos.Movements().Append(ctx, m); err != nil {
		return nil, err
	}
	if err := repos.SaveEvents(ctx, m.PullDomainEvents()...); err != nil {
		return nil, fmt.Errorf("failed to save movement events: %w", err)
	}
	return keys, nil
}

// requireLocationFor loads a location; stock can only be added to active ones
func requireLocationFor(ctx context.Context, repos TransactionalRepositories, locationID uuid.UUID, receiving bool) error {
	location, err := repos.Locations().FindByID(ctx, locationID)
	if err != nil {
		return err
	}
	if receiving && !location.IsActive {
		return shared.NewInvalidStateError("LOCATION_INACTIVE",
			fmt.Sprintf("Location %s is inactive", location.Code))
	}
	return nil
}
