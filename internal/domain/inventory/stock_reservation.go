package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Aggregate type constant
const AggregateTypeStockReservation = "StockReservation"

// Default hold durations
const (
	DefaultOrderReservationDuration     = 24 * time.Hour
	DefaultTemporaryReservationDuration = 30 * time.Minute

	ReferenceTemporary = "TEMPORARY"
)

// ReservationStatus represents the lifecycle state of a reservation
type ReservationStatus string

const (
	ReservationStatusActive    ReservationStatus = "ACTIVE"
	ReservationStatusConfirmed ReservationStatus = "CONFIRMED"
	ReservationStatusCancelled ReservationStatus = "CANCELLED"
	ReservationStatusExpired   ReservationStatus = "EXPIRED"
)

// IsValid checks if the status is known
func (s ReservationStatus) IsValid() bool {
	switch s {
	case ReservationStatusActive, ReservationStatusConfirmed, ReservationStatusCancelled, ReservationStatusExpired:
		return true
	}
	return false
}

// IsTerminal returns true when no further transition is possible
func (s ReservationStatus) IsTerminal() bool {
	switch s {
	case ReservationStatusConfirmed, ReservationStatusCancelled:
		return true
	case ReservationStatusActive, ReservationStatusExpired:
		return false
	}
	return false
}

// ReservationInput carries the fields needed to open a reservation
type ReservationInput struct {
	ID             uuid.UUID
	ProductID      uuid.UUID
	LocationID     uuid.UUID
	Quantity       valueobject.StockQuantity
	ExpirationDate time.Time
	UserID         uuid.UUID
	Reference      string
	OrderID        *uuid.UUID
	CustomerID     *uuid.UUID
}

// StockReservation is a time-bounded hold on a quantity of a product at a location
type StockReservation struct {
	shared.BaseAggregateRoot
	ProductID          uuid.UUID
	LocationID         uuid.UUID
	ReservedQuantity   valueobject.StockQuantity
	ConfirmedQuantity  *valueobject.StockQuantity
	Status             ReservationStatus
	Reference          string
	ExpirationDate     time.Time
	UserID             uuid.UUID
	OrderID            *uuid.UUID
	CustomerID         *uuid.UUID
	ConfirmedAt        *time.Time
	CancelledAt        *time.Time
	ExpiredAt          *time.Time
	CancellationReason string
}

// NewStockReservation opens an ACTIVE reservation
func NewStockReservation(in ReservationInput, now time.Time) (*StockReservation, error) {
	if in.ID == uuid.Nil {
		return nil, shared.NewInvalidArgumentError("INVALID_ID", "Reservation ID cannot be empty")
	}
	if in.ProductID == uuid.Nil {
		return nil, shared.NewInvalidArgumentError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	if in.LocationID == uuid.Nil {
		return nil, shared.NewInvalidArgumentError("INVALID_LOCATION", "Location ID cannot be empty")
	}
	if in.UserID == uuid.Nil {
		return nil, shared.NewInvalidArgumentError("INVALID_USER", "User ID cannot be empty")
	}
	if !in.Quantity.IsPositive() {
		return nil, shared.NewInvalidArgumentError("INVALID_QUANTITY", "Reserved quantity must be positive")
	}
	if strings.TrimSpace(in.Quantity.Unit()) == "" {
		return nil, shared.NewInvalidArgumentError("INVALID_UNIT", "Quantity unit cannot be empty")
	}
	if !in.ExpirationDate.After(now) {
		return nil, shared.NewInvalidArgumentError("INVALID_EXPIRATION", "Expiration date must be in the future")
	}

	r := &StockReservation{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(in.ID, now),
		ProductID:         in.ProductID,
		LocationID:        in.LocationID,
		ReservedQuantity:  in.Quantity,
		Status:            ReservationStatusActive,
		Reference:         strings.TrimSpace(in.Reference),
		ExpirationDate:    in.ExpirationDate,
		UserID:            in.UserID,
		OrderID:           in.OrderID,
		CustomerID:        in.CustomerID,
	}

	r.AddDomainEvent(NewStockReservationCreatedEvent(r, now))
	return r, nil
}

// CreateForOrder opens a reservation held for an order for the default order duration
func CreateForOrder(in ReservationInput, orderID uuid.UUID, now time.Time) (*StockReservation, error) {
	return CreateForOrderWithin(in, orderID, DefaultOrderReservationDuration, now)
}

// CreateForOrderWithin opens a reservation held for an order for hold
func CreateForOrderWithin(in ReservationInput, orderID uuid.UUID, hold time.Duration, now time.Time) (*StockReservation, error) {
	if orderID == uuid.Nil {
		return nil, shared.NewInvalidArgumentError("INVALID_ORDER", "Order ID cannot be empty")
	}
	in.OrderID = &orderID
	in.Reference = fmt.Sprintf("ORDER:%s", orderID)
	in.ExpirationDate = now.Add(hold)
	return NewStockReservation(in, now)
}

// CreateTemporary opens a short hold, e.g. while a cart is checked out
func CreateTemporary(in ReservationInput, now time.Time) (*StockReservation, error) {
	return CreateTemporaryWithin(in, DefaultTemporaryReservationDuration, now)
}

// CreateTemporaryWithin opens a temporary hold lasting hold
func CreateTemporaryWithin(in ReservationInput, hold time.Duration, now time.Time) (*StockReservation, error) {
	in.Reference = ReferenceTemporary
	in.ExpirationDate = now.Add(hold)
	return NewStockReservation(in, now)
}

// IsActive returns true while the reservation holds stock
func (r *StockReservation) IsActive() bool {
	return r.Status == ReservationStatusActive
}

// IsExpiredAt checks the deadline against a reference time
func (r *StockReservation) IsExpiredAt(now time.Time) bool {
	return now.After(r.ExpirationDate)
}

// TimeUntilExpiration returns the remaining hold time, zero once past the deadline
func (r *StockReservation) TimeUntilExpiration(now time.Time) time.Duration {
	if r.IsExpiredAt(now) {
		return 0
	}
	return r.ExpirationDate.Sub(now)
}

func (r *StockReservation) requireActive(action string) error {
	if r.Status != ReservationStatusActive {
		return shared.NewInvalidStateError("RESERVATION_NOT_ACTIVE",
			fmt.Sprintf("Cannot %s a reservation in %s status", action, r.Status))
	}
	return nil
}

// Confirm converts the hold into a fulfilment of quantity
func (r *StockReservation) Confirm(quantity valueobject.StockQuantity, now time.Time) error {
	if err := r.requireActive("confirm"); err != nil {
		return err
	}
	if !quantity.IsPositive() {
		return shared.NewInvalidArgumentError("INVALID_QUANTITY", "Confirmed quantity must be positive")
	}
	exceeds, err := quantity.GreaterThan(r.ReservedQuantity)
	if err != nil {
		return err
	}
	if exceeds {
		return shared.NewInvariantViolationError("CONFIRM_EXCEEDS_RESERVED",
			fmt.Sprintf("Confirmed quantity %s exceeds reserved quantity %s", quantity, r.ReservedQuantity))
	}

	confirmed := quantity
	r.ConfirmedQuantity = &confirmed
	r.Status = ReservationStatusConfirmed
	r.ConfirmedAt = &now
	r.Touch(now)
	r.IncrementVersion()

	r.AddDomainEvent(NewStockReservationConfirmedEvent(r, now))
	return nil
}

// ConfirmFull confirms the entire reserved quantity
func (r *StockReservation) ConfirmFull(now time.Time) error {
	return r.Confirm(r.ReservedQuantity, now)
}

// Cancel releases the hold. Cancelling a reservation that has already expired,
// by status or by deadline, records an expiry rather than a cancellation.
func (r *StockReservation) Cancel(reason string, now time.Time) error {
	switch r.Status {
	case ReservationStatusConfirmed:
		return shared.NewInvalidStateError("RESERVATION_CONFIRMED", "Cannot cancel a confirmed reservation")
	case ReservationStatusCancelled:
		return shared.NewInvalidStateError("RESERVATION_CANCELLED", "Reservation is already cancelled")
	case ReservationStatusActive, ReservationStatusExpired:
	}

	expired := r.Status == ReservationStatusExpired || r.IsExpiredAt(now)

	r.Status = ReservationStatusCancelled
	r.CancelledAt = &now
	r.CancellationReason = strings.TrimSpace(reason)
	r.Touch(now)
	r.IncrementVersion()

	if expired {
		if r.ExpiredAt == nil {
			r.ExpiredAt = &now
		}
		r.AddDomainEvent(NewStockReservationExpiredEvent(r, now))
		return nil
	}
	r.AddDomainEvent(NewStockReservationCancelledEvent(r, now))
	return nil
}

// MarkAsExpired ends an ACTIVE reservation whose deadline has passed
func (r *StockReservation) MarkAsExpired(now time.Time) error {
	if err := r.requireActive("expire"); err != nil {
		return err
	}
	if !r.IsExpiredAt(now) {
		return shared.NewInvalidStateError("RESERVATION_NOT_EXPIRED",
			fmt.Sprintf("Reservation does not expire until %s", r.ExpirationDate.Format(time.RFC3339)))
	}

	r.Status = ReservationStatusExpired
	r.ExpiredAt = &now
	r.Touch(now)
	r.IncrementVersion()

	r.AddDomainEvent(NewStockReservationExpiredEvent(r, now))
	return nil
}

// ExtendExpiration moves the deadline strictly later
func (r *StockReservation) ExtendExpiration(newDate time.Time, now time.Time) error {
	if err := r.requireActive("extend"); err != nil {
		return err
	}
	if !newDate.After(r.ExpirationDate) {
		return shared.NewInvalidArgumentError("INVALID_EXPIRATION", "New expiration must be later than the current one")
	}
	if !newDate.After(now) {
		return shared.NewInvalidArgumentError("INVALID_EXPIRATION", "New expiration must be in the future")
	}

	previous := r.ExpirationDate
	r.ExpirationDate = newDate
	r.Touch(now)
	r.IncrementVersion()

	r.AddDomainEvent(NewStockReservationExtendedEvent(r, previous, now))
	return nil
}
