package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxHierarchyDepth bounds the parent walk when checking for cycles
const maxHierarchyDepth = 32

// LocationService handles location configuration and threshold checks
type LocationService struct {
	txScope TransactionScope
	clock   shared.Clock
	logger  *zap.Logger
}

// NewLocationService creates a new LocationService
func NewLocationService(txScope TransactionScope, logger *zap.Logger) *LocationService {
	return &LocationService{
		txScope: txScope,
		clock:   shared.SystemClock{},
		logger:  logger,
	}
}

// SetClock replaces the clock used to stamp changes
func (s *LocationService) SetClock(clock shared.Clock) {
	s.clock = clock
}

// Create creates a new location with a unique code
func (s *LocationService) Create(ctx context.Context, req CreateLocationRequest) (*inventory.Location, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	location, err := inventory.NewLocation(uuid.New(), req.Name, req.Code, inventory.LocationType(req.LocationType), now)
	if err != nil {
		return nil, err
	}
	location.Description = req.Description

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		exists, err := repos.Locations().ExistsByCode(ctx, location.Code)
		if err != nil {
			return err
		}
		if exists {
			return shared.NewInvalidArgumentError("DUPLICATE_CODE",
				fmt.Sprintf("Location code %s already exists", location.Code))
		}
		if err := repos.Locations().Save(ctx, location); err != nil {
			return err
		}
		return repos.SaveEvents(ctx, location.PullDomainEvents()...)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("location created",
		zap.String("location_id", location.ID.String()),
		zap.String("code", location.Code),
		zap.String("type", string(location.LocationType)),
	)
	return location, nil
}

// GetByID returns a location with its thresholds
func (s *LocationService) GetByID(ctx context.Context, id uuid.UUID) (*inventory.Location, error) {
	var location *inventory.Location
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		location, err = repos.Locations().FindByID(ctx, id)
		return err
	})
	return location, err
}

// GetByCode returns a location by its normalized code
func (s *LocationService) GetByCode(ctx context.Context, code string) (*inventory.Location, error) {
	var location *inventory.Location
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		location, err = repos.Locations().FindByCode(ctx, inventory.NormalizeLocationCode(code))
		return err
	})
	return location, err
}

// List returns locations matching the filter
func (s *LocationService) List(ctx context.Context, filter shared.Filter) ([]*inventory.Location, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	var locations []*inventory.Location
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		locations, err = repos.Locations().FindAll(ctx, filter)
		return err
	})
	return locations, err
}

// Rename changes the name and description of a location
func (s *LocationService) Rename(ctx context.Context, id uuid.UUID, name, description string) (*inventory.Location, error) {
	return s.update(ctx, id, func(_ TransactionalRepositories, l *inventory.Location) error {
		return l.Rename(name, description, s.clock.Now())
	})
}

// ConfigurePhysicalProperties replaces capacity and climate settings
func (s *LocationService) ConfigurePhysicalProperties(ctx context.Context, id uuid.UUID, props inventory.PhysicalProperties) (*inventory.Location, error) {
	return s.update(ctx, id, func(_ TransactionalRepositories, l *inventory.Location) error {
		return l.ConfigurePhysicalProperties(props, s.clock.Now())
	})
}

// ConfigureHierarchy places a location under a parent. The whole parent chain
// is walked so that no cycle can be introduced.
func (s *LocationService) ConfigureHierarchy(ctx context.Context, id uuid.UUID, h inventory.Hierarchy) (*inventory.Location, error) {
	return s.update(ctx, id, func(repos TransactionalRepositories, l *inventory.Location) error {
		if h.ParentLocationID != nil && *h.ParentLocationID != l.ID {
			if err := s.checkAncestry(ctx, repos, l.ID, *h.ParentLocationID); err != nil {
				return err
			}
		}
		return l.ConfigureHierarchy(h, s.clock.Now())
	})
}

func (s *LocationService) checkAncestry(ctx context.Context, repos TransactionalRepositories, id, parentID uuid.UUID) error {
	current := parentID
	for depth := 0; depth < maxHierarchyDepth; depth++ {
		parent, err := repos.Locations().FindByID(ctx, current)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return shared.NewInvalidArgumentError("INVALID_PARENT",
					fmt.Sprintf("Parent location %s does not exist", current))
			}
			return err
		}
		if parent.Hierarchy.ParentLocationID == nil {
			return nil
		}
		if *parent.Hierarchy.ParentLocationID == id {
			return shared.NewInvariantViolationError("CYCLIC_PARENT",
				"Location hierarchy cannot contain a cycle")
		}
		current = *parent.Hierarchy.ParentLocationID
	}
	return shared.NewInvariantViolationError("HIERARCHY_TOO_DEEP",
		fmt.Sprintf("Location hierarchy cannot be deeper than %d levels", maxHierarchyDepth))
}

// ConfigureAccess replaces the access settings
func (s *LocationService) ConfigureAccess(ctx context.Context, id uuid.UUID, a inventory.AccessSettings) (*inventory.Location, error) {
	return s.update(ctx, id, func(_ TransactionalRepositories, l *inventory.Location) error {
		return l.ConfigureAccess(a, s.clock.Now())
	})
}

// SetThresholds creates or replaces the thresholds of a product at a location
func (s *LocationService) SetThresholds(ctx context.Context, req SetThresholdsRequest) (*inventory.LocationStockLevel, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	var level *inventory.LocationStockLevel
	_, err := s.update(ctx, req.LocationID, func(_ TransactionalRepositories, l *inventory.Location) error {
		var err error
		level, err = l.SetStockThresholds(req.ProductID, req.Thresholds(), s.clock.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return level, nil
}

// RemoveThresholds stops tracking thresholds for a product at a location
func (s *LocationService) RemoveThresholds(ctx context.Context, locationID, productID uuid.UUID) error {
	_, err := s.update(ctx, locationID, func(_ TransactionalRepositories, l *inventory.Location) error {
		return l.RemoveStockThresholds(productID, s.clock.Now())
	})
	return err
}

// Deactivate takes a location out of service
func (s *LocationService) Deactivate(ctx context.Context, id uuid.UUID, reason string) (*inventory.Location, error) {
	return s.update(ctx, id, func(_ TransactionalRepositories, l *inventory.Location) error {
		return l.Deactivate(reason, s.clock.Now())
	})
}

// Reactivate puts a location back in service
func (s *LocationService) Reactivate(ctx context.Context, id uuid.UUID) (*inventory.Location, error) {
	return s.update(ctx, id, func(_ TransactionalRepositories, l *inventory.Location) error {
		return l.Reactivate(s.clock.Now())
	})
}

// FindLocationsWithThresholds returns active locations that track thresholds for a product
func (s *LocationService) FindLocationsWithThresholds(ctx context.Context, productID uuid.UUID) ([]*inventory.Location, error) {
	var locations []*inventory.Location
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		locations, err = repos.Locations().FindWithThresholdsForProduct(ctx, productID)
		return err
	})
	return locations, err
}

// CheckStockAlert evaluates the product's thresholds at a location against the
// current available quantity. Returns nil when no threshold is breached.
func (s *LocationService) CheckStockAlert(ctx context.Context, locationID, productID uuid.UUID) (*StockAlert, error) {
	var alert *StockAlert
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		location, err := repos.Locations().FindByID(ctx, locationID)
		if err != nil {
			return err
		}
		alert, err = evaluateAlert(ctx, repos, location, productID, s.clock)
		return err
	})
	return alert, err
}

// evaluateAlert compares available stock with the thresholds of location for productID
func evaluateAlert(ctx context.Context, repos TransactionalRepositories, location *inventory.Location, productID uuid.UUID, clock shared.Clock) (*StockAlert, error) {
	level := location.StockLevelFor(productID)
	if level == nil {
		return nil, nil
	}

	key := inventory.StockKey{LocationID: location.ID, ProductID: productID}
	available := valueobject.ZeroStockQuantity(level.Unit())
	stock, err := computeStockLevel(ctx, repos, key, clock)
	switch {
	case err == nil:
		available = stock.Available
	case errors.Is(err, shared.ErrNotFound):
	default:
		return nil, err
	}

	alertType, breached := location.CheckAlert(productID, available)
	if !breached {
		return nil, nil
	}
	return &StockAlert{
		LocationID:   location.ID,
		LocationCode: location.Code,
		ProductID:    productID,
		AlertType:    alertType,
		Available:    available,
		DetectedAt:   clock.Now(),
	}, nil
}

func (s *LocationService) update(ctx context.Context, id uuid.UUID, mutate func(TransactionalRepositories, *inventory.Location) error) (*inventory.Location, error) {
	var location *inventory.Location
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		location, err = repos.Locations().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := mutate(repos, location); err != nil {
			return err
		}
		if err := repos.Locations().SaveWithLock(ctx, location); err != nil {
			return err
		}
		return repos.SaveEvents(ctx, location.PullDomainEvents()...)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("location updated",
		zap.String("location_id", location.ID.String()),
		zap.Int("version", location.Version),
	)
	return location, nil
}
