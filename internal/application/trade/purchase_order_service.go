package trade

import (
	"context"
	"fmt"

	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/shared/valueobject"
	"github.com/erp/stockledger/internal/domain/trade"
	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultOverdueLimit caps the number of overdue orders returned per query
const DefaultOverdueLimit = 200

// PurchaseOrderService handles purchase order business operations.
// Receipts are turned into inbound movements in the same transaction as the
// order update, so stock and order progress never diverge.
type PurchaseOrderService struct {
	txScope      appinv.TransactionScope
	cache        appinv.AvailabilityCache
	clock        shared.Clock
	logger       *zap.Logger
	stockMetrics *telemetry.StockMetrics
}

// NewPurchaseOrderService creates a new PurchaseOrderService
func NewPurchaseOrderService(txScope appinv.TransactionScope, logger *zap.Logger) *PurchaseOrderService {
	return &PurchaseOrderService{
		txScope: txScope,
		clock:   shared.SystemClock{},
		logger:  logger,
	}
}

// SetClock replaces the clock used to stamp changes
func (s *PurchaseOrderService) SetClock(clock shared.Clock) {
	s.clock = clock
}

// SetCache sets the availability cache invalidated after receipts
func (s *PurchaseOrderService) SetCache(cache appinv.AvailabilityCache) {
	s.cache = cache
}

// SetStockMetrics sets the stock metrics collector
func (s *PurchaseOrderService) SetStockMetrics(sm *telemetry.StockMetrics) {
	s.stockMetrics = sm
}

// Create creates a new purchase order in DRAFT with its initial lines
func (s *PurchaseOrderService) Create(ctx context.Context, req CreatePurchaseOrderRequest) (*trade.PurchaseOrder, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "purchase_order", "create",
		telemetry.WithAttribute(telemetry.SpanAttrOrderNumber, req.OrderNumber),
	)
	defer span.End()

	if err := appinv.ValidateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := s.clock.Now()
	order, err := trade.NewPurchaseOrder(uuid.New(), req.OrderNumber, req.SupplierID, req.UserID, req.ExpectedDelivery, now)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	for _, line := range req.Lines {
		quantity, unitCost, err := lineValues(line.Quantity, line.Unit, line.UnitCost, line.Currency)
		if err != nil {
			return nil, err
		}
		if _, err := order.AddLine(uuid.New(), line.ProductID, quantity, unitCost, line.Notes, now); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	}

	err = s.txScope.Execute(ctx, func(repos appinv.TransactionalRepositories) error {
		exists, err := repos.PurchaseOrders().ExistsByOrderNumber(ctx, order.OrderNumber)
		if err != nil {
			return err
		}
		if exists {
			return shared.NewInvalidArgumentError("DUPLICATE_ORDER_NUMBER",
				fmt.Sprintf("Order number %s already exists", order.OrderNumber))
		}
		if err := repos.PurchaseOrders().Save(ctx, order); err != nil {
			return err
		}
		return repos.SaveEvents(ctx, order.PullDomainEvents()...)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrOrderID, order.ID.String())
	telemetry.SetOK(span)
	s.logger.Info("purchase order created",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.Int("lines", order.LineCount()),
	)
	return order, nil
}

// GetByID retrieves a purchase order by ID
func (s *PurchaseOrderService) GetByID(ctx context.Context, id uuid.UUID) (*trade.PurchaseOrder, error) {
	var order *trade.PurchaseOrder
	err := s.txScope.Execute(ctx, func(repos appinv.TransactionalRepositories) error {
		var err error
		order, err = repos.PurchaseOrders().FindByID(ctx, id)
		return err
	})
	return order, err
}

// GetByOrderNumber retrieves a purchase order by order number
func (s *PurchaseOrderService) GetByOrderNumber(ctx context.Context, orderNumber string) (*trade.PurchaseOrder, error) {
	var order *trade.PurchaseOrder
	err := s.txScope.Execute(ctx, func(repos appinv.TransactionalRepositories) error {
		var err error
		order, err = repos.PurchaseOrders().FindByOrderNumber(ctx, orderNumber)
		return err
	})
	return order, err
}

// List retrieves purchase orders with filtering and pagination
func (s *PurchaseOrderService) List(ctx context.Context, filter shared.Filter) ([]*trade.PurchaseOrder, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	var orders []*trade.PurchaseOrder
	err := s.txScope.Execute(ctx, func(repos appinv.TransactionalRepositories) error {
		var err error
		orders, err = repos.PurchaseOrders().FindAll(ctx, filter)
		return err
	})
	return orders, err
}

// AddLine adds a product to a DRAFT order, merging with an existing line
func (s *PurchaseOrderService) AddLine(ctx context.Context, orderID uuid.UUID, req PurchaseOrderLineInput) (*trade.PurchaseOrder, error) {
	if err := appinv.ValidateRequest(req); err != nil {
		return nil, err
	}
	quantity, unitCost, err := lineValues(req.Quantity, req.Unit, req.UnitCost, req.Currency)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, "add_line", orderID, func(o *trade.PurchaseOrder) error {
		_, err := o.AddLine(uuid.New(), req.ProductID, quantity, unitCost, req.Notes, s.clock.Now())
		return err
	})
}

// UpdateLine replaces the quantity and cost of a line on a DRAFT order
func (s *PurchaseOrderService) UpdateLine(ctx context.Context, orderID uuid.UUID, req UpdatePurchaseOrderLineRequest) (*trade.PurchaseOrder, error) {
	if err := appinv.ValidateRequest(req); err != nil {
		return nil, err
	}
	quantity, unitCost, err := lineValues(req.Quantity, req.Unit, req.UnitCost, req.Currency)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, "update_line", orderID, func(o *trade.PurchaseOrder) error {
		return o.UpdateLine(req.ProductID, quantity, unitCost, s.clock.Now())
	})
}

// RemoveLine removes a product from a DRAFT order
func (s *PurchaseOrderService) RemoveLine(ctx context.Context, orderID, productID uuid.UUID) (*trade.PurchaseOrder, error) {
	return s.update(ctx, "remove_line", orderID, func(o *trade.PurchaseOrder) error {
		return o.RemoveLine(productID, s.clock.Now())
	})
}

// Confirm confirms a DRAFT order
func (s *PurchaseOrderService) Confirm(ctx context.Context, orderID uuid.UUID) (*trade.PurchaseOrder, error) {
	return s.update(ctx, "confirm", orderID, func(o *trade.PurchaseOrder) error {
		return o.Confirm(s.clock.Now())
	})
}

// Send marks a CONFIRMED order as sent to the supplier
func (s *PurchaseOrderService) Send(ctx context.Context, orderID uuid.UUID) (*trade.PurchaseOrder, error) {
	return s.update(ctx, "send", orderID, func(o *trade.PurchaseOrder) error {
		return o.Send(s.clock.Now())
	})
}

// Cancel cancels an order; quantities already received stay in stock
func (s *PurchaseOrderService) Cancel(ctx context.Context, orderID uuid.UUID, reason string) (*trade.PurchaseOrder, error) {
	return s.update(ctx, "cancel", orderID, func(o *trade.PurchaseOrder) error {
		return o.Cancel(reason, s.clock.Now())
	})
}

// Delete removes a DRAFT order
func (s *PurchaseOrderService) Delete(ctx context.Context, orderID uuid.UUID) error {
	return s.txScope.Execute(ctx, func(repos appinv.TransactionalRepositories) error {
		order, err := repos.PurchaseOrders().FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.IsDraft() {
			return shared.NewInvalidStateError("INVALID_STATE",
				fmt.Sprintf("Cannot delete order in %s status", order.Status))
		}
		return repos.PurchaseOrders().Delete(ctx, orderID)
	})
}

// ReceiveAll receives every outstanding quantity into a location and closes the order
func (s *PurchaseOrderService) ReceiveAll(ctx context.Context, req ReceiveRequest) (*ReceiveResult, error) {
	if err := appinv.ValidateRequest(req); err != nil {
		return nil, err
	}
	return s.receive(ctx, "receive_all", req, func(o *trade.PurchaseOrder) ([]trade.ReceiptLine, error) {
		return o.MarkAsReceived(req.UserID, s.clock.Now())
	})
}

// ReceivePartially receives the listed quantities into a location
func (s *PurchaseOrderService) ReceivePartially(ctx context.Context, req ReceivePartiallyRequest) (*ReceiveResult, error) {
	if err := appinv.ValidateRequest(req); err != nil {
		return nil, err
	}
	quantities := make(map[uuid.UUID]valueobject.StockQuantity, len(req.Quantities))
	for _, q := range req.Quantities {
		quantity := valueobject.NewStockQuantity(q.Quantity, q.Unit)
		if existing, ok := quantities[q.ProductID]; ok {
			merged, err := existing.Add(quantity)
			if err != nil {
				return nil, err
			}
			quantity = merged
		}
		quantities[q.ProductID] = quantity
	}
	return s.receive(ctx, "receive_partially", req.ReceiveRequest, func(o *trade.PurchaseOrder) ([]trade.ReceiptLine, error) {
		return o.ReceivePartially(quantities, req.UserID, s.clock.Now())
	})
}

func (s *PurchaseOrderService) receive(
	ctx context.Context,
	method string,
	req ReceiveRequest,
	apply func(*trade.PurchaseOrder) ([]trade.ReceiptLine, error),
) (*ReceiveResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "purchase_order", method,
		telemetry.WithAttribute(telemetry.SpanAttrOrderID, req.OrderID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrLocationID, req.LocationID.String()),
	)
	defer span.End()

	now := s.clock.Now()
	result := &ReceiveResult{OrderID: req.OrderID}
	var keys []inventory.StockKey
	err := s.txScope.Execute(ctx, func(repos appinv.TransactionalRepositories) error {
		order, err := repos.PurchaseOrders().FindByID(ctx, req.OrderID)
		if err != nil {
			return err
		}
		receipt, err := apply(order)
		if err != nil {
			return err
		}

		orderID := order.ID
		for _, line := range receipt {
			cost := line.UnitCost
			movement, err := inventory.CreateInbound(inventory.MovementInput{
				ID:           uuid.New(),
				ProductID:    line.ProductID,
				LocationID:   req.LocationID,
				Quantity:     line.Quantity,
				UnitCost:     &cost,
				Reference:    order.OrderNumber,
				UserID:       req.UserID,
				MovementDate: now,
			}, &orderID)
			if err != nil {
				return err
			}
			affected, err := appinv.PostMovement(ctx, repos, movement, now)
			if err != nil {
				return err
			}
			keys = append(keys, affected...)
			result.MovementIDs = append(result.MovementIDs, movement.ID)
		}

		if len(receipt) == 0 {
			return nil
		}
		if err := repos.PurchaseOrders().SaveWithLock(ctx, order); err != nil {
			return err
		}
		result.Status = string(order.Status)
		result.IsFullyReceived = order.Status == trade.PurchaseOrderStatusReceived
		return repos.SaveEvents(ctx, order.PullDomainEvents()...)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if len(result.MovementIDs) == 0 {
		return nil, shared.NewInvalidArgumentError("NOTHING_RECEIVED", "Receipt contains no positive quantity")
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, keys...); err != nil {
			s.logger.Warn("availability cache invalidation failed", zap.Error(err))
		}
	}
	if s.stockMetrics != nil {
		s.stockMetrics.RecordReceipt(ctx, result.IsFullyReceived)
		for range result.MovementIDs {
			s.stockMetrics.RecordMovement(ctx, string(inventory.MovementTypeInbound))
		}
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrOrderStatus, result.Status)
	telemetry.SetOK(span)
	s.logger.Info("purchase order received",
		zap.String("order_id", req.OrderID.String()),
		zap.String("location_id", req.LocationID.String()),
		zap.Int("movements", len(result.MovementIDs)),
		zap.Bool("complete", result.IsFullyReceived),
	)
	return result, nil
}

// FindOverdue returns SENT orders whose expected delivery has passed
func (s *PurchaseOrderService) FindOverdue(ctx context.Context, limit int) ([]*trade.PurchaseOrder, error) {
	if limit <= 0 {
		limit = DefaultOverdueLimit
	}
	now := s.clock.Now()
	var orders []*trade.PurchaseOrder
	err := s.txScope.Execute(ctx, func(repos appinv.TransactionalRepositories) error {
		var err error
		orders, err = repos.PurchaseOrders().FindOverdue(ctx, now, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(orders) > 0 {
		s.logger.Warn("overdue purchase orders found", zap.Int("count", len(orders)))
	}
	return orders, nil
}

func (s *PurchaseOrderService) update(ctx context.Context, method string, orderID uuid.UUID, mutate func(*trade.PurchaseOrder) error) (*trade.PurchaseOrder, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "purchase_order", method,
		telemetry.WithAttribute(telemetry.SpanAttrOrderID, orderID.String()),
	)
	defer span.End()

	var order *trade.PurchaseOrder
	err := s.txScope.Execute(ctx, func(repos appinv.TransactionalRepositories) error {
		var err error
		order, err = repos.PurchaseOrders().FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if err := mutate(order); err != nil {
			return err
		}
		if err := repos.PurchaseOrders().SaveWithLock(ctx, order); err != nil {
			return err
		}
		return repos.SaveEvents(ctx, order.PullDomainEvents()...)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrOrderStatus, string(order.Status))
	telemetry.SetOK(span)
	s.logger.Debug("purchase order updated",
		zap.String("order_id", order.ID.String()),
		zap.String("status", string(order.Status)),
		zap.Int("version", order.Version),
	)
	return order, nil
}

// lineValues builds the quantity and unit cost of an order line
func lineValues(quantity decimal.Decimal, unit string, cost decimal.Decimal, currency string) (valueobject.StockQuantity, valueobject.UnitCost, error) {
	c, err := valueobject.NewUnitCost(cost, valueobject.Currency(currency))
	if err != nil {
		return valueobject.StockQuantity{}, valueobject.UnitCost{}, err
	}
	return valueobject.NewStockQuantity(quantity, unit), c, nil
}
