package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/shared/valueobject"
	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReservationDurations are the default holds applied when a request has no deadline
type ReservationDurations struct {
	Order     time.Duration
	Temporary time.Duration
}

// DefaultReservationDurations returns the 24h order hold and the 30 minute temporary hold
func DefaultReservationDurations() ReservationDurations {
	return ReservationDurations{
		Order:     inventory.DefaultOrderReservationDuration,
		Temporary: inventory.DefaultTemporaryReservationDuration,
	}
}

// ReservationService admits, confirms and releases stock reservations.
// Admission locks the balance row of the key so that the availability check
// and the insert happen atomically.
type ReservationService struct {
	txScope      TransactionScope
	cache        AvailabilityCache
	clock        shared.Clock
	durations    ReservationDurations
	logger       *zap.Logger
	stockMetrics *telemetry.StockMetrics
}

// NewReservationService creates a new ReservationService
func NewReservationService(txScope TransactionScope, logger *zap.Logger) *ReservationService {
	return &ReservationService{
		txScope:   txScope,
		clock:     shared.SystemClock{},
		durations: DefaultReservationDurations(),
		logger:    logger,
	}
}

// SetClock replaces the clock used for deadlines and transitions
func (s *ReservationService) SetClock(clock shared.Clock) {
	s.clock = clock
}

// SetDurations overrides the default hold durations
func (s *ReservationService) SetDurations(d ReservationDurations) {
	s.durations = d
}

// SetCache sets the availability cache invalidated after each change
func (s *ReservationService) SetCache(cache AvailabilityCache) {
	s.cache = cache
}

// SetStockMetrics sets the stock metrics collector
func (s *ReservationService) SetStockMetrics(sm *telemetry.StockMetrics) {
	s.stockMetrics = sm
}

// Reserve holds stock until req.ExpiresAt, or for the order duration when unset
func (s *ReservationService) Reserve(ctx context.Context, req ReserveRequest) (*inventory.StockReservation, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	return s.admit(ctx, "reserve", req, func(in inventory.ReservationInput, now time.Time) (*inventory.StockReservation, error) {
		if req.ExpiresAt != nil {
			in.ExpirationDate = *req.ExpiresAt
		} else {
			in.ExpirationDate = now.Add(s.durations.Order)
		}
		return inventory.NewStockReservation(in, now)
	})
}

// ReserveForOrder holds stock for an order
func (s *ReservationService) ReserveForOrder(ctx context.Context, req ReserveForOrderRequest) (*inventory.StockReservation, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	return s.admit(ctx, "reserve_for_order", req.ReserveRequest, func(in inventory.ReservationInput, now time.Time) (*inventory.StockReservation, error) {
		return inventory.CreateForOrderWithin(in, req.OrderID, holdFor(req.ExpiresAt, s.durations.Order, now), now)
	})
}

// ReserveTemporary places a short hold, e.g. while a cart is checked out
func (s *ReservationService) ReserveTemporary(ctx context.Context, req ReserveRequest) (*inventory.StockReservation, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	return s.admit(ctx, "reserve_temporary", req, func(in inventory.ReservationInput, now time.Time) (*inventory.StockReservation, error) {
		return inventory.CreateTemporaryWithin(in, holdFor(req.ExpiresAt, s.durations.Temporary, now), now)
	})
}

// holdFor returns the time left until the requested deadline, or the configured hold
func holdFor(requested *time.Time, configured time.Duration, now time.Time) time.Duration {
	if requested != nil {
		return requested.Sub(now)
	}
	return configured
}

func (s *ReservationService) admit(
	ctx context.Context,
	method string,
	req ReserveRequest,
	build func(inventory.ReservationInput, time.Time) (*inventory.StockReservation, error),
) (*inventory.StockReservation, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reservation", method,
		telemetry.WithAttribute(telemetry.SpanAttrLocationID, req.LocationID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrProductID, req.ProductID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrQuantity, req.Quantity.String()),
	)
	defer span.End()

	now := s.clock.Now()
	reservation, err := build(inventory.ReservationInput{
		ID:         uuid.New(),
		ProductID:  req.ProductID,
		LocationID: req.LocationID,
		Quantity:   valueobject.NewStockQuantity(req.Quantity, req.Unit),
		UserID:     req.UserID,
		Reference:  req.Reference,
		CustomerID: req.CustomerID,
	}, now)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	start := time.Now()
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		location, err := repos.Locations().FindByID(ctx, reservation.LocationID)
		if err != nil {
			return err
		}
		if !location.IsActive {
			return shared.NewInvalidStateError("LOCATION_INACTIVE",
				fmt.Sprintf("Location %s is inactive", location.Code))
		}
		if !location.Access.AllowsPicking {
			return shared.NewInvalidStateError("LOCATION_NOT_PICKABLE",
				fmt.Sprintf("Location %s does not allow picking", location.Code))
		}

		balance, err := repos.Balances().LockForUpdate(ctx, reservation.LocationID, reservation.ProductID, reservation.ReservedQuantity.Unit())
		if err != nil {
			return err
		}
		active, err := repos.Reservations().FindActiveByKey(ctx, reservation.LocationID, reservation.ProductID)
		if err != nil {
			return err
		}
		available, err := inventory.AvailableQuantity(balance.OnHand, active)
		if err != nil {
			return err
		}
		enough, err := available.GreaterThanOrEqual(reservation.ReservedQuantity)
		if err != nil {
			return err
		}
		if !enough {
			return shared.NewDomainError(shared.KindInvariantViolation, shared.ErrInsufficientStock.Code,
				fmt.Sprintf("Insufficient stock: requested %s, available %s", reservation.ReservedQuantity, available))
		}

		if err := repos.Reservations().Create(ctx, reservation); err != nil {
			return err
		}
		return repos.SaveEvents(ctx, reservation.PullDomainEvents()...)
	})
	if s.stockMetrics != nil {
		s.stockMetrics.RecordAdmission(ctx, time.Since(start))
	}
	if err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, shared.ErrInsufficientStock) && s.stockMetrics != nil {
			s.stockMetrics.RecordReservation(ctx, telemetry.ReservationOutcomeInsufficient)
		}
		return nil, err
	}

	s.afterChange(ctx, reservation, telemetry.ReservationOutcomeAdmitted)
	telemetry.SetAttribute(span, telemetry.SpanAttrReservationID, reservation.ID.String())
	telemetry.SetOK(span)
	s.logger.Info("stock reserved",
		zap.String("reservation_id", reservation.ID.String()),
		zap.String("location_id", reservation.LocationID.String()),
		zap.String("product_id", reservation.ProductID.String()),
		zap.String("quantity", reservation.ReservedQuantity.String()),
		zap.Time("expires_at", reservation.ExpirationDate),
	)
	return reservation, nil
}

// Confirm turns a reservation into an outbound movement referencing it.
// Both happen in one transaction; a concurrent expiry makes the confirm fail
// with a concurrency conflict.
func (s *ReservationService) Confirm(ctx context.Context, req ConfirmReservationRequest) (*inventory.StockReservation, *inventory.StockMovement, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reservation", "confirm",
		telemetry.WithAttribute(telemetry.SpanAttrReservationID, req.ReservationID.String()),
	)
	defer span.End()

	if err := ValidateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, nil, err
	}

	now := s.clock.Now()
	var (
		reservation *inventory.StockReservation
		movement    *inventory.StockMovement
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		reservation, err = repos.Reservations().FindByID(ctx, req.ReservationID)
		if err != nil {
			return err
		}

		if req.Quantity != nil {
			err = reservation.Confirm(valueobject.NewStockQuantity(*req.Quantity, reservation.ReservedQuantity.Unit()), now)
		} else {
			err = reservation.ConfirmFull(now)
		}
		if err != nil {
			return err
		}

		reference := req.Reference
		if reference == "" {
			reference = reservation.Reference
		}
		reservationID := reservation.ID
		movement, err = inventory.CreateOutbound(inventory.MovementInput{
			ID:           uuid.New(),
			ProductID:    reservation.ProductID,
			LocationID:   reservation.LocationID,
			Quantity:     *reservation.ConfirmedQuantity,
			Reference:    reference,
			UserID:       req.UserID,
			MovementDate: now,
		}, &reservationID)
		if err != nil {
			return err
		}

		if err := repos.Reservations().SaveWithLock(ctx, reservation); err != nil {
			return err
		}
		if _, err := PostMovement(ctx, repos, movement, now); err != nil {
			return err
		}
		return repos.SaveEvents(ctx, reservation.PullDomainEvents()...)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, nil, err
	}

	s.afterChange(ctx, reservation, telemetry.ReservationOutcomeConfirmed)
	if s.stockMetrics != nil {
		s.stockMetrics.RecordMovement(ctx, string(movement.MovementType))
	}
	telemetry.SetOK(span)
	s.logger.Info("reservation confirmed",
		zap.String("reservation_id", reservation.ID.String()),
		zap.String("movement_id", movement.ID.String()),
		zap.String("confirmed_quantity", reservation.ConfirmedQuantity.String()),
	)
	return reservation, movement, nil
}

// Cancel releases a reservation. Cancelling one that is already past its
// deadline records an expiry instead.
func (s *ReservationService) Cancel(ctx context.Context, req CancelReservationRequest) (*inventory.StockReservation, error) {
	return s.transition(ctx, "cancel", req, req.ReservationID, telemetry.ReservationOutcomeCancelled,
		func(r *inventory.StockReservation, now time.Time) error {
			return r.Cancel(req.Reason, now)
		})
}

// Extend moves the deadline of an active reservation later
func (s *ReservationService) Extend(ctx context.Context, req ExtendReservationRequest) (*inventory.StockReservation, error) {
	return s.transition(ctx, "extend", req, req.ReservationID, telemetry.ReservationOutcomeExtended,
		func(r *inventory.StockReservation, now time.Time) error {
			return r.ExtendExpiration(req.ExpiresAt, now)
		})
}

// GetByID returns a reservation
func (s *ReservationService) GetByID(ctx context.Context, id uuid.UUID) (*inventory.StockReservation, error) {
	var reservation *inventory.StockReservation
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		reservation, err = repos.Reservations().FindByID(ctx, id)
		return err
	})
	return reservation, err
}

// ListByOrder returns every reservation held for an order
func (s *ReservationService) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*inventory.StockReservation, error) {
	var reservations []*inventory.StockReservation
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		reservations, err = repos.Reservations().FindByOrder(ctx, orderID)
		return err
	})
	return reservations, err
}

func (s *ReservationService) transition(
	ctx context.Context,
	method string,
	req any,
	id uuid.UUID,
	outcome telemetry.ReservationOutcome,
	apply func(*inventory.StockReservation, time.Time) error,
) (*inventory.StockReservation, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reservation", method,
		telemetry.WithAttribute(telemetry.SpanAttrReservationID, id.String()),
	)
	defer span.End()

	if err := ValidateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := s.clock.Now()
	var reservation *inventory.StockReservation
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		reservation, err = repos.Reservations().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := apply(reservation, now); err != nil {
			return err
		}
		if err := repos.Reservations().SaveWithLock(ctx, reservation); err != nil {
			return err
		}
		return repos.SaveEvents(ctx, reservation.PullDomainEvents()...)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.afterChange(ctx, reservation, outcome)
	telemetry.SetOK(span)
	s.logger.Info("reservation updated",
		zap.String("reservation_id", reservation.ID.String()),
		zap.String("status", string(reservation.Status)),
		zap.Time("expires_at", reservation.ExpirationDate),
	)
	return reservation, nil
}

func (s *ReservationService) afterChange(ctx context.Context, r *inventory.StockReservation, outcome telemetry.ReservationOutcome) {
	if s.cache != nil {
		key := inventory.StockKey{LocationID: r.LocationID, ProductID: r.ProductID}
		if err := s.cache.Invalidate(ctx, key); err != nil {
			s.logger.Warn("availability cache invalidation failed", zap.Error(err))
		}
	}
	if s.stockMetrics != nil {
		s.stockMetrics.RecordReservation(ctx, outcome)
	}
}
