package trade

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseOrderStatus represents the status of a purchase order
type PurchaseOrderStatus string

const (
	PurchaseOrderStatusDraft             PurchaseOrderStatus = "DRAFT"
	PurchaseOrderStatusConfirmed         PurchaseOrderStatus = "CONFIRMED"
	PurchaseOrderStatusSent              PurchaseOrderStatus = "SENT"
	PurchaseOrderStatusPartiallyReceived PurchaseOrderStatus = "PARTIALLY_RECEIVED"
	PurchaseOrderStatusReceived          PurchaseOrderStatus = "RECEIVED"
	PurchaseOrderStatusCancelled         PurchaseOrderStatus = "CANCELLED"
)

// IsValid checks if the status is a valid PurchaseOrderStatus
func (s PurchaseOrderStatus) IsValid() bool {
	switch s {
	case PurchaseOrderStatusDraft, PurchaseOrderStatusConfirmed, PurchaseOrderStatusSent,
		PurchaseOrderStatusPartiallyReceived, PurchaseOrderStatusReceived, PurchaseOrderStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of PurchaseOrderStatus
func (s PurchaseOrderStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status
func (s PurchaseOrderStatus) CanTransitionTo(target PurchaseOrderStatus) bool {
	switch s {
	case PurchaseOrderStatusDraft:
		return target == PurchaseOrderStatusConfirmed || target == PurchaseOrderStatusCancelled
	case PurchaseOrderStatusConfirmed:
		return target == PurchaseOrderStatusSent || target == PurchaseOrderStatusCancelled
	case PurchaseOrderStatusSent:
		return target == PurchaseOrderStatusPartiallyReceived || target == PurchaseOrderStatusReceived ||
			target == PurchaseOrderStatusCancelled
	case PurchaseOrderStatusPartiallyReceived:
		return target == PurchaseOrderStatusPartiallyReceived || target == PurchaseOrderStatusReceived ||
			target == PurchaseOrderStatusCancelled
	case PurchaseOrderStatusReceived, PurchaseOrderStatusCancelled:
		return false // Terminal states
	}
	return false
}

// CanReceive returns true if receiving goods is allowed in this status
func (s PurchaseOrderStatus) CanReceive() bool {
	return s == PurchaseOrderStatusSent || s == PurchaseOrderStatusPartiallyReceived
}

// IsTerminal returns true for RECEIVED and CANCELLED
func (s PurchaseOrderStatus) IsTerminal() bool {
	return s == PurchaseOrderStatusReceived || s == PurchaseOrderStatusCancelled
}

// PurchaseOrderLine represents one product on a purchase order
type PurchaseOrderLine struct {
	ID               uuid.UUID
	OrderID          uuid.UUID
	ProductID        uuid.UUID
	OrderedQuantity  valueobject.StockQuantity
	ReceivedQuantity valueobject.StockQuantity
	UnitCost         valueobject.UnitCost
	TotalCost        valueobject.Money
	Notes            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewPurchaseOrderLine creates a new line with nothing received
func NewPurchaseOrderLine(id, orderID, productID uuid.UUID, quantity valueobject.StockQuantity, unitCost valueobject.UnitCost, notes string, now time.Time) (*PurchaseOrderLine, error) {
	if id == uuid.Nil {
		return nil, shared.NewInvalidArgumentError("INVALID_LINE_ID", "Line ID cannot be empty")
	}
	if productID == uuid.Nil {
		return nil, shared.NewInvalidArgumentError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	if err := validateOrderedQuantity(quantity); err != nil {
		return nil, err
	}

	return &PurchaseOrderLine{
		ID:               id,
		OrderID:          orderID,
		ProductID:        productID,
		OrderedQuantity:  quantity,
		ReceivedQuantity: valueobject.ZeroStockQuantity(quantity.Unit()),
		UnitCost:         unitCost,
		TotalCost:        unitCost.CalculateTotal(quantity),
		Notes:            strings.TrimSpace(notes),
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func validateOrderedQuantity(quantity valueobject.StockQuantity) error {
	if !quantity.IsPositive() {
		return shared.NewInvalidArgumentError("INVALID_QUANTITY", "Ordered quantity must be positive")
	}
	if strings.TrimSpace(quantity.Unit()) == "" {
		return shared.NewInvalidArgumentError("INVALID_UNIT", "Quantity unit cannot be empty")
	}
	return nil
}

func (l *PurchaseOrderLine) update(quantity valueobject.StockQuantity, unitCost valueobject.UnitCost, now time.Time) {
	l.OrderedQuantity = quantity
	l.ReceivedQuantity = valueobject.ZeroStockQuantity(quantity.Unit())
	l.UnitCost = unitCost
	l.TotalCost = unitCost.CalculateTotal(quantity)
	l.UpdatedAt = now
}

// RemainingQuantity returns the quantity still to be received, never negative
func (l *PurchaseOrderLine) RemainingQuantity() valueobject.StockQuantity {
	remaining, err := l.OrderedQuantity.Subtract(l.ReceivedQuantity)
	if err != nil || remaining.IsNegative() {
		return valueobject.ZeroStockQuantity(l.OrderedQuantity.Unit())
	}
	return remaining
}

// IsFullyReceived returns true if all ordered quantity has been received
func (l *PurchaseOrderLine) IsFullyReceived() bool {
	done, err := l.ReceivedQuantity.GreaterThanOrEqual(l.OrderedQuantity)
	return err == nil && done
}

// HasReceived returns true if anything has been received on this line
func (l *PurchaseOrderLine) HasReceived() bool {
	return l.ReceivedQuantity.IsPositive()
}

// ReceiptLine describes a quantity received on one line in one receiving operation
type ReceiptLine struct {
	LineID    uuid.UUID                 `json:"line_id"`
	ProductID uuid.UUID                 `json:"product_id"`
	Quantity  valueobject.StockQuantity `json:"quantity"`
	UnitCost  valueobject.UnitCost      `json:"unit_cost"`
}

// PurchaseOrder represents a purchase order aggregate root.
// It drives a supplier order from draft through sending to (partial) receipt.
type PurchaseOrder struct {
	shared.BaseAggregateRoot
	OrderNumber          string
	SupplierID           uuid.UUID
	UserID               uuid.UUID
	Status               PurchaseOrderStatus
	OrderDate            time.Time
	ExpectedDeliveryDate time.Time
	ActualDeliveryDate   *time.Time
	Currency             valueobject.Currency
	TotalAmount          valueobject.Money
	Lines                []PurchaseOrderLine
	ReceivedBy           *uuid.UUID
	ConfirmedAt          *time.Time
	SentAt               *time.Time
	CancelledAt          *time.Time
	CancellationReason   string
}

// NewPurchaseOrder creates a new purchase order in DRAFT
func NewPurchaseOrder(id uuid.UUID, orderNumber string, supplierID, userID uuid.UUID, expectedDelivery, now time.Time) (*PurchaseOrder, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if id == uuid.Nil {
		return nil, shared.NewInvalidArgumentError("INVALID_ID", "Order ID cannot be empty")
	}
	if orderNumber == "" {
		return nil, shared.NewInvalidArgumentError("INVALID_ORDER_NUMBER", "Order number cannot be empty")
	}
	if len(orderNumber) > 50 {
		return nil, shared.NewInvalidArgumentError("INVALID_ORDER_NUMBER", "Order number cannot exceed 50 characters")
	}
	if supplierID == uuid.Nil {
		return nil, shared.NewInvalidArgumentError("INVALID_SUPPLIER", "Supplier ID cannot be empty")
	}
	if userID == uuid.Nil {
		return nil, shared.NewInvalidArgumentError("INVALID_USER", "User ID cannot be empty")
	}
	if !expectedDelivery.After(now) {
		return nil, shared.NewInvalidArgumentError("INVALID_DELIVERY_DATE", "Expected delivery date must be in the future")
	}

	order := &PurchaseOrder{
		BaseAggregateRoot:    shared.NewBaseAggregateRoot(id, now),
		OrderNumber:          orderNumber,
		SupplierID:           supplierID,
		UserID:               userID,
		Status:               PurchaseOrderStatusDraft,
		OrderDate:            now,
		ExpectedDeliveryDate: expectedDelivery,
		Lines:                make([]PurchaseOrderLine, 0),
	}

	order.AddDomainEvent(NewPurchaseOrderCreatedEvent(order, now))

	return order, nil
}

func (o *PurchaseOrder) requireDraft(action string) error {
	if o.Status != PurchaseOrderStatusDraft {
		return shared.NewInvalidStateError("INVALID_STATE",
			fmt.Sprintf("Cannot %s in %s status", action, o.Status))
	}
	return nil
}

// checkCurrency rejects a cost whose currency differs from any other line
func (o *PurchaseOrder) checkCurrency(cost valueobject.UnitCost, productID uuid.UUID) error {
	for _, line := range o.Lines {
		if line.ProductID == productID {
			continue
		}
		if line.UnitCost.Currency() != cost.Currency() {
			return shared.NewDomainError(shared.KindCurrencyMismatch, "CURRENCY_MISMATCH",
				fmt.Sprintf("Order lines use %s, cannot add a line in %s", line.UnitCost.Currency(), cost.Currency()))
		}
	}
	return nil
}

func (o *PurchaseOrder) lineIndex(productID uuid.UUID) int {
	for idx := range o.Lines {
		if o.Lines[idx].ProductID == productID {
			return idx
		}
	}
	return -1
}

// AddLine adds a product to the order. Adding a product that is already on the
// order merges the quantity and replaces the unit cost.
// Only allowed in DRAFT status.
func (o *PurchaseOrder) AddLine(lineID, productID uuid.UUID, quantity valueobject.StockQuantity, unitCost valueobject.UnitCost, notes string, now time.Time) (*PurchaseOrderLine, error) {
	if err := o.requireDraft("add lines"); err != nil {
		return nil, err
	}
	if err := validateOrderedQuantity(quantity); err != nil {
		return nil, err
	}
	if err := o.checkCurrency(unitCost, productID); err != nil {
		return nil, err
	}

	if idx := o.lineIndex(productID); idx >= 0 {
		line := &o.Lines[idx]
		merged, err := line.OrderedQuantity.Add(quantity)
		if err != nil {
			return nil, err
		}
		line.update(merged, unitCost, now)
		if n := strings.TrimSpace(notes); n != "" {
			line.Notes = n
		}
		if err := o.afterLineChange(now); err != nil {
			return nil, err
		}
		return line, nil
	}

	line, err := NewPurchaseOrderLine(lineID, o.ID, productID, quantity, unitCost, notes, now)
	if err != nil {
		return nil, err
	}
	o.Lines = append(o.Lines, *line)
	if err := o.afterLineChange(now); err != nil {
		return nil, err
	}

	return &o.Lines[len(o.Lines)-1], nil
}

// UpdateLine replaces the quantity and unit cost of a product's line.
// Only allowed in DRAFT status.
func (o *PurchaseOrder) UpdateLine(productID uuid.UUID, quantity valueobject.StockQuantity, unitCost valueobject.UnitCost, now time.Time) error {
	if err := o.requireDraft("update lines"); err != nil {
		return err
	}
	idx := o.lineIndex(productID)
	if idx < 0 {
		return shared.NewDomainError(shared.KindNotFound, "LINE_NOT_FOUND", "Order line not found")
	}
	if err := validateOrderedQuantity(quantity); err != nil {
		return err
	}
	if err := o.checkCurrency(unitCost, productID); err != nil {
		return err
	}

	o.Lines[idx].update(quantity, unitCost, now)
	return o.afterLineChange(now)
}

// RemoveLine removes a product from the order.
// Only allowed in DRAFT status.
func (o *PurchaseOrder) RemoveLine(productID uuid.UUID, now time.Time) error {
	if err := o.requireDraft("remove lines"); err != nil {
		return err
	}
	idx := o.lineIndex(productID)
	if idx < 0 {
		return shared.NewDomainError(shared.KindNotFound, "LINE_NOT_FOUND", "Order line not found")
	}

	o.Lines = append(o.Lines[:idx], o.Lines[idx+1:]...)
	return o.afterLineChange(now)
}

func (o *PurchaseOrder) afterLineChange(now time.Time) error {
	if err := o.recalculateTotal(); err != nil {
		return err
	}
	o.Touch(now)
	o.IncrementVersion()
	return nil
}

// recalculateTotal sums line totals in the currency of the first line.
// Lines are kept single-currency by checkCurrency.
func (o *PurchaseOrder) recalculateTotal() error {
	if len(o.Lines) == 0 {
		o.Currency = ""
		o.TotalAmount = valueobject.Zero("")
		return nil
	}
	currency := o.Lines[0].UnitCost.Currency()
	total := valueobject.Zero(currency)
	for _, line := range o.Lines {
		sum, err := total.Add(line.TotalCost)
		if err != nil {
			return err
		}
		total = sum
	}
	o.Currency = currency
	o.TotalAmount = total
	return nil
}

// Confirm moves the order from DRAFT to CONFIRMED; at least one line is required
func (o *PurchaseOrder) Confirm(now time.Time) error {
	if !o.Status.CanTransitionTo(PurchaseOrderStatusConfirmed) {
		return shared.NewInvalidStateError("INVALID_STATE", fmt.Sprintf("Cannot confirm order in %s status", o.Status))
	}
	if len(o.Lines) == 0 {
		return shared.NewInvalidStateError("NO_LINES", "Cannot confirm order without lines")
	}

	o.Status = PurchaseOrderStatusConfirmed
	o.ConfirmedAt = &now
	o.Touch(now)
	o.IncrementVersion()

	o.AddDomainEvent(NewPurchaseOrderConfirmedEvent(o, now))

	return nil
}

// Send moves the order from CONFIRMED to SENT
func (o *PurchaseOrder) Send(now time.Time) error {
	if o.Status != PurchaseOrderStatusConfirmed {
		return shared.NewInvalidStateError("INVALID_STATE", fmt.Sprintf("Cannot send order in %s status", o.Status))
	}

	o.Status = PurchaseOrderStatusSent
	o.SentAt = &now
	o.Touch(now)
	o.IncrementVersion()

	o.AddDomainEvent(NewPurchaseOrderSentEvent(o, now))

	return nil
}

// MarkAsReceived receives the remaining quantity of every line and closes the order.
// It returns what was received by this call.
func (o *PurchaseOrder) MarkAsReceived(userID uuid.UUID, now time.Time) ([]ReceiptLine, error) {
	if !o.Status.CanReceive() {
		return nil, shared.NewInvalidStateError("INVALID_STATE", fmt.Sprintf("Cannot receive goods for order in %s status", o.Status))
	}
	if userID == uuid.Nil {
		return nil, shared.NewInvalidArgumentError("INVALID_USER", "User ID cannot be empty")
	}

	receipt := make([]ReceiptLine, 0, len(o.Lines))
	for idx := range o.Lines {
		line := &o.Lines[idx]
		remaining := line.RemainingQuantity()
		if remaining.IsPositive() {
			receipt = append(receipt, ReceiptLine{
				LineID:    line.ID,
				ProductID: line.ProductID,
				Quantity:  remaining,
				UnitCost:  line.UnitCost,
			})
		}
		line.ReceivedQuantity = line.OrderedQuantity
		line.UpdatedAt = now
	}

	o.markReceived(userID, now)
	o.AddDomainEvent(NewPurchaseOrderReceivedEvent(o, receipt, now))

	return receipt, nil
}

// ReceivePartially records delivered quantities per product. Zero and negative
// entries are ignored. Nothing is applied if any entry is invalid. The order
// becomes RECEIVED once every line is complete, otherwise PARTIALLY_RECEIVED;
// the status is unchanged when nothing was received.
func (o *PurchaseOrder) ReceivePartially(quantities map[uuid.UUID]valueobject.StockQuantity, userID uuid.UUID, now time.Time) ([]ReceiptLine, error) {
	if !o.Status.CanReceive() {
		return nil, shared.NewInvalidStateError("INVALID_STATE", fmt.Sprintf("Cannot receive goods for order in %s status", o.Status))
	}
	if userID == uuid.Nil {
		return nil, shared.NewInvalidArgumentError("INVALID_USER", "User ID cannot be empty")
	}

	for productID, q := range quantities {
		if q.IsPositive() && o.lineIndex(productID) < 0 {
			return nil, shared.NewInvalidArgumentError("UNKNOWN_PRODUCT",
				fmt.Sprintf("Product %s is not on order %s", productID, o.OrderNumber))
		}
	}

	// validate every line before mutating any
	updated := make(map[int]valueobject.StockQuantity)
	receipt := make([]ReceiptLine, 0, len(quantities))
	for idx := range o.Lines {
		line := &o.Lines[idx]
		q, ok := quantities[line.ProductID]
		if !ok || !q.IsPositive() {
			continue
		}
		next, err := line.ReceivedQuantity.Add(q)
		if err != nil {
			return nil, err
		}
		exceeds, err := next.GreaterThan(line.OrderedQuantity)
		if err != nil {
			return nil, err
		}
		if exceeds {
			return nil, shared.NewInvariantViolationError("RECEIPT_EXCEEDS_ORDERED",
				fmt.Sprintf("Cannot receive %s of product %s, only %s remaining", q, line.ProductID, line.RemainingQuantity()))
		}
		updated[idx] = next
		receipt = append(receipt, ReceiptLine{
			LineID:    line.ID,
			ProductID: line.ProductID,
			Quantity:  q,
			UnitCost:  line.UnitCost,
		})
	}

	if len(receipt) == 0 {
		return receipt, nil
	}

	for idx, received := range updated {
		o.Lines[idx].ReceivedQuantity = received
		o.Lines[idx].UpdatedAt = now
	}

	if o.allLinesReceived() {
		o.markReceived(userID, now)
	} else {
		o.Status = PurchaseOrderStatusPartiallyReceived
		o.ReceivedBy = &userID
		o.Touch(now)
		o.IncrementVersion()
	}

	o.AddDomainEvent(NewPurchaseOrderReceivedEvent(o, receipt, now))

	return receipt, nil
}

func (o *PurchaseOrder) markReceived(userID uuid.UUID, now time.Time) {
	o.Status = PurchaseOrderStatusReceived
	o.ReceivedBy = &userID
	o.ActualDeliveryDate = &now
	o.Touch(now)
	o.IncrementVersion()
}

// Cancel cancels the order. Quantities already received stay received.
func (o *PurchaseOrder) Cancel(reason string, now time.Time) error {
	if !o.Status.CanTransitionTo(PurchaseOrderStatusCancelled) {
		return shared.NewInvalidStateError("INVALID_STATE", fmt.Sprintf("Cannot cancel order in %s status", o.Status))
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return shared.NewInvalidArgumentError("INVALID_REASON", "Cancel reason is required")
	}

	previous := o.Status
	o.Status = PurchaseOrderStatusCancelled
	o.CancelledAt = &now
	o.CancellationReason = reason
	o.Touch(now)
	o.IncrementVersion()

	o.AddDomainEvent(NewPurchaseOrderCancelledEvent(o, previous, now))

	return nil
}

// IsOverdue returns true when the order was sent and the expected delivery has passed
func (o *PurchaseOrder) IsOverdue(now time.Time) bool {
	return o.Status == PurchaseOrderStatusSent && now.After(o.ExpectedDeliveryDate)
}

func (o *PurchaseOrder) allLinesReceived() bool {
	for idx := range o.Lines {
		if !o.Lines[idx].IsFullyReceived() {
			return false
		}
	}
	return len(o.Lines) > 0
}

// HasReceivedAnyGoods returns true if any line has received stock
func (o *PurchaseOrder) HasReceivedAnyGoods() bool {
	for idx := range o.Lines {
		if o.Lines[idx].HasReceived() {
			return true
		}
	}
	return false
}

// GetLine returns the line for a product, or nil
func (o *PurchaseOrder) GetLine(productID uuid.UUID) *PurchaseOrderLine {
	if idx := o.lineIndex(productID); idx >= 0 {
		return &o.Lines[idx]
	}
	return nil
}

// LineCount returns the number of lines in the order
func (o *PurchaseOrder) LineCount() int {
	return len(o.Lines)
}

// IsDraft returns true if order is in draft status
func (o *PurchaseOrder) IsDraft() bool {
	return o.Status == PurchaseOrderStatusDraft
}

// ReceiveProgress returns the received share of ordered quantity as a percentage (0-100).
// Quantities are summed by value across lines.
func (o *PurchaseOrder) ReceiveProgress() decimal.Decimal {
	ordered := decimal.Zero
	received := decimal.Zero
	for _, line := range o.Lines {
		ordered = ordered.Add(line.OrderedQuantity.Value())
		received = received.Add(line.ReceivedQuantity.Value())
	}
	if ordered.IsZero() {
		return decimal.Zero
	}
	return received.Div(ordered).Mul(decimal.NewFromInt(100)).Round(2)
}
