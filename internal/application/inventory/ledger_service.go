package inventory

import (
	"context"
	"strings"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/shared/valueobject"
	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LedgerService appends movements to the stock ledger and answers balance queries
type LedgerService struct {
	txScope      TransactionScope
	cache        AvailabilityCache
	clock        shared.Clock
	logger       *zap.Logger
	stockMetrics *telemetry.StockMetrics
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(txScope TransactionScope, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		txScope: txScope,
		clock:   shared.SystemClock{},
		logger:  logger,
	}
}

// SetClock replaces the clock used to stamp movements
func (s *LedgerService) SetClock(clock shared.Clock) {
	s.clock = clock
}

// SetCache sets the availability cache used by GetAvailable
func (s *LedgerService) SetCache(cache AvailabilityCache) {
	s.cache = cache
}

// SetStockMetrics sets the stock metrics collector
func (s *LedgerService) SetStockMetrics(sm *telemetry.StockMetrics) {
	s.stockMetrics = sm
}

// RecordInbound records goods arriving at a location
func (s *LedgerService) RecordInbound(ctx context.Context, req RecordInboundRequest) (*inventory.StockMovement, error) {
	return s.record(ctx, "record_inbound", req, func(in inventory.MovementInput) (*inventory.StockMovement, error) {
		return inventory.CreateInbound(in, req.PurchaseOrderID)
	}, req.MovementRequest)
}

// RecordOutbound records goods leaving a location
func (s *LedgerService) RecordOutbound(ctx context.Context, req RecordOutboundRequest) (*inventory.StockMovement, error) {
	return s.record(ctx, "record_outbound", req, func(in inventory.MovementInput) (*inventory.StockMovement, error) {
		return inventory.CreateOutbound(in, req.ReservationID)
	}, req.MovementRequest)
}

// RecordTransfer moves goods from one location to another in a single ledger entry
func (s *LedgerService) RecordTransfer(ctx context.Context, req RecordTransferRequest) (*inventory.StockMovement, error) {
	return s.record(ctx, "record_transfer", req, func(in inventory.MovementInput) (*inventory.StockMovement, error) {
		return inventory.CreateTransfer(in, req.ToLocationID)
	}, req.MovementRequest)
}

// RecordAdjustment corrects the ledger by a signed delta
func (s *LedgerService) RecordAdjustment(ctx context.Context, req RecordAdjustmentRequest) (*inventory.StockMovement, error) {
	return s.record(ctx, "record_adjustment", req, inventory.CreateAdjustment, req.MovementRequest)
}

// RecordLoss writes off goods that were lost or destroyed
func (s *LedgerService) RecordLoss(ctx context.Context, req RecordLossRequest) (*inventory.StockMovement, error) {
	return s.record(ctx, "record_loss", req, inventory.CreateLoss, req.MovementRequest)
}

func (s *LedgerService) record(
	ctx context.Context,
	method string,
	req any,
	build func(inventory.MovementInput) (*inventory.StockMovement, error),
	common MovementRequest,
) (*inventory.StockMovement, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", method,
		telemetry.WithAttribute(telemetry.SpanAttrLocationID, common.LocationID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrProductID, common.ProductID.String()),
	)
	defer span.End()

	if err := ValidateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := s.clock.Now()
	in, err := common.toMovementInput(now)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	movement, err := build(in)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var keys []inventory.StockKey
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var postErr error
		keys, postErr = PostMovement(ctx, repos, movement, now)
		return postErr
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Debug("movement rejected",
			zap.String("movement_type", string(movement.MovementType)),
			zap.String("location_id", movement.LocationID.String()),
			zap.String("product_id", movement.ProductID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	s.invalidate(ctx, keys...)
	if s.stockMetrics != nil {
		s.stockMetrics.RecordMovement(ctx, string(movement.MovementType))
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrMovementType, string(movement.MovementType))
	telemetry.SetOK(span)
	s.logger.Info("movement recorded",
		zap.String("movement_id", movement.ID.String()),
		zap.String("movement_type", string(movement.MovementType)),
		zap.String("location_id", movement.LocationID.String()),
		zap.String("product_id", movement.ProductID.String()),
		zap.String("quantity", movement.Quantity.String()),
	)
	return movement, nil
}

// GetOnHand returns the materialized ledger sum for a key
func (s *LedgerService) GetOnHand(ctx context.Context, locationID, productID uuid.UUID) (valueobject.StockQuantity, error) {
	var onHand valueobject.StockQuantity
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		balance, err := repos.Balances().Find(ctx, locationID, productID)
		if err != nil {
			return err
		}
		onHand = balance.OnHand
		return nil
	})
	return onHand, err
}

// GetAvailable returns on-hand minus active reservations for a key.
// Results are served from the cache when one is configured.
func (s *LedgerService) GetAvailable(ctx context.Context, locationID, productID uuid.UUID) (*StockLevel, error) {
	key := inventory.StockKey{LocationID: locationID, ProductID: productID}
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("availability cache read failed", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	var level *StockLevel
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		level, err = computeStockLevel(ctx, repos, key, s.clock)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, level); err != nil {
			s.logger.Warn("availability cache write failed", zap.Error(err))
		}
	}
	return level, nil
}

// Rebuild recomputes a balance by folding the ledger and overwrites the stored row
func (s *LedgerService) Rebuild(ctx context.Context, locationID, productID uuid.UUID, unit string) (*inventory.StockBalance, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "rebuild",
		telemetry.WithAttribute(telemetry.SpanAttrLocationID, locationID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrProductID, productID.String()),
	)
	defer span.End()

	if strings.TrimSpace(unit) == "" {
		err := shared.NewInvalidArgumentError("INVALID_UNIT", "Unit is required to rebuild a balance")
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := s.clock.Now()
	var balance *inventory.StockBalance
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		balance, err = repos.Balances().LockForUpdate(ctx, locationID, productID, unit)
		if err != nil {
			return err
		}
		movements, err := repos.Movements().FindByKey(ctx, locationID, productID)
		if err != nil {
			return err
		}
		folded, err := inventory.FoldBalance(locationID, productID, balance.OnHand.Unit(), movements)
		if err != nil {
			return err
		}
		if folded.Equals(balance.OnHand) {
			return nil
		}

		s.logger.Warn("stock balance drifted from ledger",
			zap.String("location_id", locationID.String()),
			zap.String("product_id", productID.String()),
			zap.String("stored", balance.OnHand.String()),
			zap.String("ledger", folded.String()),
		)
		balance.OnHand = folded
		balance.Version++
		balance.UpdatedAt = now
		return repos.Balances().Save(ctx, balance)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.invalidate(ctx, balance.Key())
	telemetry.SetOK(span)
	return balance, nil
}

func (s *LedgerService) invalidate(ctx context.Context, keys ...inventory.StockKey) {
	if s.cache == nil || len(keys) == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		s.logger.Warn("availability cache invalidation failed", zap.Error(err))
	}
}

// computeStockLevel reads the balance and the active reservations of a key
func computeStockLevel(ctx context.Context, repos TransactionalRepositories, key inventory.StockKey, clock shared.Clock) (*StockLevel, error) {
	balance, err := repos.Balances().Find(ctx, key.LocationID, key.ProductID)
	if err != nil {
		return nil, err
	}
	reservations, err := repos.Reservations().FindActiveByKey(ctx, key.LocationID, key.ProductID)
	if err != nil {
		return nil, err
	}
	reserved, err := inventory.ReservedQuantity(balance.OnHand.Unit(), reservations)
	if err != nil {
		return nil, err
	}
	available, err := balance.Available(reserved)
	if err != nil {
		return nil, err
	}
	return &StockLevel{
		LocationID: key.LocationID,
		ProductID:  key.ProductID,
		OnHand:     balance.OnHand,
		Reserved:   reserved,
		Available:  available,
		AsOf:       clock.Now(),
	}, nil
}

// toMovementInput converts the request into domain input stamped at now
func (r MovementRequest) toMovementInput(now time.Time) (inventory.MovementInput, error) {
	in := inventory.MovementInput{
		ID:           uuid.New(),
		ProductID:    r.ProductID,
		LocationID:   r.LocationID,
		Quantity:     valueobject.NewStockQuantity(r.Quantity, r.Unit),
		Reference:    r.Reference,
		Reason:       r.Reason,
		UserID:       r.UserID,
		MovementDate: now,
	}
	if r.MovementDate != nil {
		in.MovementDate = *r.MovementDate
	}
	if r.UnitCost != nil {
		if r.Currency == "" {
			return inventory.MovementInput{}, shared.NewInvalidArgumentError("VALIDATION_FAILED", "currency: is required with unit_cost")
		}
		cost, err := valueobject.NewUnitCost(*r.UnitCost, valueobject.Currency(r.Currency))
		if err != nil {
			return inventory.MovementInput{}, err
		}
		in.UnitCost = &cost
	}
	return in, nil
}
