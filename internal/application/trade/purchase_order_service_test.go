package trade_test

import (
	"context"
	"errors"
	"testing"
	"time"

	appinv "github.com/erp/stockledger/internal/application/inventory"
	apptrade "github.com/erp/stockledger/internal/application/trade"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/shared/valueobject"
	"github.com/erp/stockledger/internal/domain/trade"
	"github.com/erp/stockledger/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type poFixture struct {
	db       *gorm.DB
	clock    *shared.FixedClock
	service  *apptrade.PurchaseOrderService
	ledger   *appinv.LedgerService
	location *inventory.Location
	userID   uuid.UUID
}

func newPOFixture(t *testing.T) *poFixture {
	t.Helper()
	d, err := persistence.NewSQLiteDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	scope := persistence.NewDefaultTransactionScope(d.DB)
	clock := shared.NewFixedClock(testNow)
	log := zap.NewNop()

	locations := appinv.NewLocationService(scope, log)
	locations.SetClock(clock)
	loc, err := locations.Create(context.Background(), appinv.CreateLocationRequest{
		Name: "Receiving dock", Code: "DOCK-1", LocationType: "WAREHOUSE",
	})
	require.NoError(t, err)

	service := apptrade.NewPurchaseOrderService(scope, log)
	service.SetClock(clock)
	ledger := appinv.NewLedgerService(scope, log)
	ledger.SetClock(clock)

	return &poFixture{
		db:       d.DB,
		clock:    clock,
		service:  service,
		ledger:   ledger,
		location: loc,
		userID:   uuid.New(),
	}
}

func line(productID uuid.UUID, qty int64, cost string) apptrade.PurchaseOrderLineInput {
	return apptrade.PurchaseOrderLineInput{
		ProductID: productID,
		Quantity:  decimal.NewFromInt(qty),
		Unit:      "pcs",
		UnitCost:  decimal.RequireFromString(cost),
		Currency:  "EUR",
	}
}

func (f *poFixture) create(t *testing.T, number string, lines ...apptrade.PurchaseOrderLineInput) *trade.PurchaseOrder {
	t.Helper()
	order, err := f.service.Create(context.Background(), apptrade.CreatePurchaseOrderRequest{
		OrderNumber:      number,
		SupplierID:       uuid.New(),
		UserID:           f.userID,
		ExpectedDelivery: testNow.Add(72 * time.Hour),
		Lines:            lines,
	})
	require.NoError(t, err)
	return order
}

// sent creates an order and moves it to SENT
func (f *poFixture) sent(t *testing.T, number string, lines ...apptrade.PurchaseOrderLineInput) *trade.PurchaseOrder {
	t.Helper()
	ctx := context.Background()
	order := f.create(t, number, lines...)
	_, err := f.service.Confirm(ctx, order.ID)
	require.NoError(t, err)
	order, err = f.service.Send(ctx, order.ID)
	require.NoError(t, err)
	return order
}

func (f *poFixture) onHand(t *testing.T, productID uuid.UUID) valueobject.StockQuantity {
	t.Helper()
	q, err := f.ledger.GetOnHand(context.Background(), f.location.ID, productID)
	require.NoError(t, err)
	return q
}

func (f *poFixture) outboxCount(t *testing.T, eventType string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Table("outbox_events").Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func codeOf(err error) string {
	var de *shared.DomainError
	if !errors.As(err, &de) {
		return ""
	}
	return de.Code
}

func TestPurchaseOrderService_Create(t *testing.T) {
	f := newPOFixture(t)
	ctx := context.Background()
	productA, productB := uuid.New(), uuid.New()

	order := f.create(t, "PO-1001", line(productA, 10, "2.50"), line(productB, 4, "10"))
	assert.Equal(t, trade.PurchaseOrderStatusDraft, order.Status)
	assert.Equal(t, 2, order.LineCount())
	assert.True(t, order.TotalAmount.Amount().Equal(decimal.NewFromInt(65)), "total %s", order.TotalAmount)
	assert.Equal(t, int64(1), f.outboxCount(t, trade.EventTypePurchaseOrderCreated))

	stored, err := f.service.GetByOrderNumber(ctx, "PO-1001")
	require.NoError(t, err)
	assert.Equal(t, order.ID, stored.ID)
	assert.Len(t, stored.Lines, 2)

	_, err = f.service.Create(ctx, apptrade.CreatePurchaseOrderRequest{
		OrderNumber: "PO-1001", SupplierID: uuid.New(), UserID: f.userID,
		ExpectedDelivery: testNow.Add(time.Hour),
	})
	assert.Equal(t, "DUPLICATE_ORDER_NUMBER", codeOf(err))
}

func TestPurchaseOrderService_CreateRejectsInvalidInput(t *testing.T) {
	f := newPOFixture(t)
	ctx := context.Background()

	_, err := f.service.Create(ctx, apptrade.CreatePurchaseOrderRequest{
		OrderNumber: "PO-1", SupplierID: uuid.New(), UserID: f.userID,
		ExpectedDelivery: testNow.Add(-time.Hour),
	})
	assert.Equal(t, "INVALID_DELIVERY_DATE", codeOf(err))

	_, err = f.service.Create(ctx, apptrade.CreatePurchaseOrderRequest{
		OrderNumber: "PO-2", SupplierID: uuid.New(), UserID: f.userID,
		ExpectedDelivery: testNow.Add(time.Hour),
		Lines:            []apptrade.PurchaseOrderLineInput{{ProductID: uuid.New(), Quantity: decimal.NewFromInt(1), Unit: "pcs"}},
	})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", codeOf(err))
	assert.Contains(t, err.Error(), "currency")

	mixed := line(uuid.New(), 1, "1")
	mixed.Currency = "USD"
	_, err = f.service.Create(ctx, apptrade.CreatePurchaseOrderRequest{
		OrderNumber: "PO-3", SupplierID: uuid.New(), UserID: f.userID,
		ExpectedDelivery: testNow.Add(time.Hour),
		Lines:            []apptrade.PurchaseOrderLineInput{line(uuid.New(), 1, "1"), mixed},
	})
	assert.True(t, errors.Is(err, shared.ErrCurrencyMismatch))
}

func TestPurchaseOrderService_EditLinesWhileDraft(t *testing.T) {
	f := newPOFixture(t)
	ctx := context.Background()
	productA, productB := uuid.New(), uuid.New()
	order := f.create(t, "PO-1", line(productA, 2, "1"))

	order, err := f.service.AddLine(ctx, order.ID, line(productA, 3, "1.5"))
	require.NoError(t, err)
	require.Equal(t, 1, order.LineCount(), "same product merges into one line")
	assert.True(t, order.GetLine(productA).OrderedQuantity.Value().Equal(decimal.NewFromInt(5)))

	order, err = f.service.AddLine(ctx, order.ID, line(productB, 1, "4"))
	require.NoError(t, err)
	assert.Equal(t, 2, order.LineCount())

	order, err = f.service.UpdateLine(ctx, order.ID, apptrade.UpdatePurchaseOrderLineRequest{
		ProductID: productB, Quantity: decimal.NewFromInt(6), Unit: "pcs",
		UnitCost: decimal.NewFromInt(4), Currency: "EUR",
	})
	require.NoError(t, err)
	assert.True(t, order.GetLine(productB).OrderedQuantity.Value().Equal(decimal.NewFromInt(6)))

	order, err = f.service.RemoveLine(ctx, order.ID, productA)
	require.NoError(t, err)
	assert.Equal(t, 1, order.LineCount())

	_, err = f.service.RemoveLine(ctx, order.ID, uuid.New())
	assert.Equal(t, "LINE_NOT_FOUND", codeOf(err))

	stored, err := f.service.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.LineCount())
	assert.Equal(t, order.Version, stored.Version)
	assert.True(t, stored.TotalAmount.Amount().Equal(decimal.NewFromInt(24)))

	_, err = f.service.Confirm(ctx, order.ID)
	require.NoError(t, err)
	_, err = f.service.AddLine(ctx, order.ID, line(productA, 1, "1"))
	assert.Equal(t, "INVALID_STATE", codeOf(err))
}

func TestPurchaseOrderService_ConfirmRequiresLines(t *testing.T) {
	f := newPOFixture(t)
	order := f.create(t, "PO-EMPTY")

	_, err := f.service.Confirm(context.Background(), order.ID)
	assert.Equal(t, "NO_LINES", codeOf(err))
}

func TestPurchaseOrderService_ReceiveAll(t *testing.T) {
	f := newPOFixture(t)
	ctx := context.Background()
	productA, productB := uuid.New(), uuid.New()
	order := f.sent(t, "PO-1", line(productA, 10, "2"), line(productB, 3, "5"))

	result, err := f.service.ReceiveAll(ctx, apptrade.ReceiveRequest{
		OrderID: order.ID, LocationID: f.location.ID, UserID: f.userID,
	})
	require.NoError(t, err)
	assert.True(t, result.IsFullyReceived)
	assert.Equal(t, string(trade.PurchaseOrderStatusReceived), result.Status)
	assert.Len(t, result.MovementIDs, 2)

	assert.True(t, f.onHand(t, productA).Equals(valueobject.NewStockQuantityFromInt(10, "pcs")))
	assert.True(t, f.onHand(t, productB).Equals(valueobject.NewStockQuantityFromInt(3, "pcs")))
	assert.Equal(t, int64(2), f.outboxCount(t, inventory.EventTypeStockMovementOccurred))
	assert.Equal(t, int64(1), f.outboxCount(t, trade.EventTypePurchaseOrderReceived))

	var movements []struct {
		PurchaseOrderID uuid.UUID
		Reference       string
	}
	require.NoError(t, f.db.Table("stock_movements").Select("purchase_order_id, reference").Find(&movements).Error)
	require.Len(t, movements, 2)
	for _, m := range movements {
		assert.Equal(t, order.ID, m.PurchaseOrderID)
		assert.Equal(t, "PO-1", m.Reference)
	}

	_, err = f.service.ReceiveAll(ctx, apptrade.ReceiveRequest{
		OrderID: order.ID, LocationID: f.location.ID, UserID: f.userID,
	})
	assert.Equal(t, "INVALID_STATE", codeOf(err))
}

func TestPurchaseOrderService_ReceivePartially(t *testing.T) {
	f := newPOFixture(t)
	ctx := context.Background()
	productA, productB := uuid.New(), uuid.New()
	order := f.sent(t, "PO-1", line(productA, 10, "2"), line(productB, 3, "5"))

	receive := func(quantities ...apptrade.ReceiveQuantity) (*apptrade.ReceiveResult, error) {
		return f.service.ReceivePartially(ctx, apptrade.ReceivePartiallyRequest{
			ReceiveRequest: apptrade.ReceiveRequest{OrderID: order.ID, LocationID: f.location.ID, UserID: f.userID},
			Quantities:     quantities,
		})
	}
	qty := func(productID uuid.UUID, n int64) apptrade.ReceiveQuantity {
		return apptrade.ReceiveQuantity{ProductID: productID, Quantity: decimal.NewFromInt(n), Unit: "pcs"}
	}

	// split entries for one product are merged
	result, err := receive(qty(productA, 3), qty(productA, 1))
	require.NoError(t, err)
	assert.False(t, result.IsFullyReceived)
	assert.Equal(t, string(trade.PurchaseOrderStatusPartiallyReceived), result.Status)
	assert.Len(t, result.MovementIDs, 1)
	assert.True(t, f.onHand(t, productA).Equals(valueobject.NewStockQuantityFromInt(4, "pcs")))

	_, err = receive(qty(productB, 4))
	assert.Equal(t, "RECEIPT_EXCEEDS_ORDERED", codeOf(err))

	_, err = receive(qty(uuid.New(), 1))
	assert.Equal(t, "UNKNOWN_PRODUCT", codeOf(err))

	_, err = receive(qty(productA, 0))
	assert.Equal(t, "NOTHING_RECEIVED", codeOf(err))

	result, err = receive(qty(productA, 6), qty(productB, 3))
	require.NoError(t, err)
	assert.True(t, result.IsFullyReceived)

	stored, err := f.service.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, trade.PurchaseOrderStatusReceived, stored.Status)
	for _, l := range stored.Lines {
		assert.True(t, l.IsFullyReceived())
	}
	assert.True(t, f.onHand(t, productA).Equals(valueobject.NewStockQuantityFromInt(10, "pcs")))
}

func TestPurchaseOrderService_ReceiveIntoInactiveLocationRollsBack(t *testing.T) {
	f := newPOFixture(t)
	ctx := context.Background()
	productID := uuid.New()
	order := f.sent(t, "PO-1", line(productID, 5, "1"))

	closed, err := appinv.NewLocationService(persistence.NewDefaultTransactionScope(f.db), zap.NewNop()).
		Create(ctx, appinv.CreateLocationRequest{Name: "Closed", Code: "CLOSED", LocationType: "WAREHOUSE"})
	require.NoError(t, err)
	_, err = appinv.NewLocationService(persistence.NewDefaultTransactionScope(f.db), zap.NewNop()).
		Deactivate(ctx, closed.ID, "moved out")
	require.NoError(t, err)

	_, err = f.service.ReceiveAll(ctx, apptrade.ReceiveRequest{
		OrderID: order.ID, LocationID: closed.ID, UserID: f.userID,
	})
	assert.Equal(t, "LOCATION_INACTIVE", codeOf(err))

	stored, err := f.service.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, trade.PurchaseOrderStatusSent, stored.Status)
	assert.True(t, stored.GetLine(productID).ReceivedQuantity.IsZero())
}

func TestPurchaseOrderService_CancelAndDelete(t *testing.T) {
	f := newPOFixture(t)
	ctx := context.Background()

	draft := f.create(t, "PO-DRAFT", line(uuid.New(), 1, "1"))
	require.NoError(t, f.service.Delete(ctx, draft.ID))
	_, err := f.service.GetByID(ctx, draft.ID)
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	productID := uuid.New()
	order := f.sent(t, "PO-SENT", line(productID, 4, "1"))
	assert.Equal(t, "INVALID_STATE", codeOf(f.service.Delete(ctx, order.ID)))

	_, err = f.service.Cancel(ctx, order.ID, " ")
	assert.Equal(t, "INVALID_REASON", codeOf(err))

	_, err = f.service.ReceivePartially(ctx, apptrade.ReceivePartiallyRequest{
		ReceiveRequest: apptrade.ReceiveRequest{OrderID: order.ID, LocationID: f.location.ID, UserID: f.userID},
		Quantities:     []apptrade.ReceiveQuantity{{ProductID: productID, Quantity: decimal.NewFromInt(1), Unit: "pcs"}},
	})
	require.NoError(t, err)

	cancelled, err := f.service.Cancel(ctx, order.ID, "supplier out of stock")
	require.NoError(t, err)
	assert.Equal(t, trade.PurchaseOrderStatusCancelled, cancelled.Status)
	assert.Equal(t, int64(1), f.outboxCount(t, trade.EventTypePurchaseOrderCancelled))

	// received goods stay in stock
	assert.True(t, f.onHand(t, productID).Equals(valueobject.NewStockQuantityFromInt(1, "pcs")))
}

func TestPurchaseOrderService_FindOverdue(t *testing.T) {
	f := newPOFixture(t)
	ctx := context.Background()

	late := f.sent(t, "PO-LATE", line(uuid.New(), 1, "1"))
	f.create(t, "PO-DRAFT", line(uuid.New(), 1, "1"))
	received := f.sent(t, "PO-DONE", line(uuid.New(), 1, "1"))
	_, err := f.service.ReceiveAll(ctx, apptrade.ReceiveRequest{
		OrderID: received.ID, LocationID: f.location.ID, UserID: f.userID,
	})
	require.NoError(t, err)

	overdue, err := f.service.FindOverdue(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, overdue, "nothing is due yet")

	f.clock.Advance(96 * time.Hour)
	overdue, err = f.service.FindOverdue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, late.ID, overdue[0].ID)
	assert.True(t, overdue[0].IsOverdue(f.clock.Now()))
}

func TestPurchaseOrderService_List(t *testing.T) {
	f := newPOFixture(t)
	for _, number := range []string{"PO-1", "PO-2", "PO-3"} {
		f.create(t, number, line(uuid.New(), 1, "1"))
	}

	orders, err := f.service.List(context.Background(), shared.Filter{})
	require.NoError(t, err)
	assert.Len(t, orders, 3)
}
