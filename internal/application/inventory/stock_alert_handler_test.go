package inventory_test

import (
	"context"
	"errors"
	"testing"

	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingNotifier struct {
	alerts []appinv.StockAlert
	err    error
}

func (n *recordingNotifier) SendAlert(_ context.Context, alert appinv.StockAlert) error {
	n.alerts = append(n.alerts, alert)
	return n.err
}

func newAlertHandler(f *fixture) (*appinv.StockAlertHandler, *recordingNotifier, *memoryCache) {
	notifier := &recordingNotifier{}
	cache := newMemoryCache()
	h := appinv.NewStockAlertHandler(f.scope, zap.NewNop()).
		WithNotifier(notifier).
		WithCache(cache).
		WithClock(f.clock)
	return h, notifier, cache
}

func TestStockAlertHandler_EventTypes(t *testing.T) {
	h, _, _ := newAlertHandler(newFixture(t))

	assert.ElementsMatch(t, []string{
		inventory.EventTypeStockMovementOccurred,
		inventory.EventTypeStockReservationCreated,
		inventory.EventTypeStockReservationConfirmed,
		inventory.EventTypeStockReservationCancelled,
		inventory.EventTypeStockReservationExpired,
	}, h.EventTypes())
}

func TestStockAlertHandler_MovementBreachingThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loc := f.createLocation(t, "WH-1", "WAREHOUSE")
	productID := uuid.New()
	_, err := f.locations.SetThresholds(ctx, appinv.SetThresholdsRequest{
		LocationID: loc.ID, ProductID: productID, Unit: "pcs", Minimum: dec(3),
	})
	require.NoError(t, err)
	f.receive(t, loc.ID, productID, 5)

	out, err := f.ledger.RecordOutbound(ctx, appinv.RecordOutboundRequest{
		MovementRequest: f.movement(loc.ID, productID, 3),
	})
	require.NoError(t, err)

	h, notifier, cache := newAlertHandler(f)
	require.NoError(t, h.Handle(ctx, inventory.NewStockMovementOccurredEvent(out)))

	require.Len(t, notifier.alerts, 1)
	alert := notifier.alerts[0]
	assert.Equal(t, inventory.AlertTypeLowStock, alert.AlertType)
	assert.Equal(t, loc.ID, alert.LocationID)
	assert.Equal(t, productID, alert.ProductID)
	assert.Equal(t, "WH-1", alert.LocationCode)
	assert.Equal(t, testNow, alert.DetectedAt)
	assert.Equal(t, []inventory.StockKey{{LocationID: loc.ID, ProductID: productID}}, cache.invalidated)
}

func TestStockAlertHandler_TransferTouchesBothLocations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	from := f.createLocation(t, "WH-1", "WAREHOUSE")
	to := f.createLocation(t, "ST-1", "STORE")
	productID := uuid.New()
	f.receive(t, from.ID, productID, 5)

	m, err := f.ledger.RecordTransfer(ctx, appinv.RecordTransferRequest{
		MovementRequest: f.movement(from.ID, productID, 2),
		ToLocationID:    to.ID,
	})
	require.NoError(t, err)

	h, notifier, cache := newAlertHandler(f)
	require.NoError(t, h.Handle(ctx, inventory.NewStockMovementOccurredEvent(m)))

	assert.Empty(t, notifier.alerts, "no thresholds configured")
	assert.ElementsMatch(t, []inventory.StockKey{
		{LocationID: from.ID, ProductID: productID},
		{LocationID: to.ID, ProductID: productID},
	}, cache.invalidated)
}

func TestStockAlertHandler_ReservationEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loc := f.createLocation(t, "WH-1", "WAREHOUSE")
	productID := uuid.New()
	_, err := f.locations.SetThresholds(ctx, appinv.SetThresholdsRequest{
		LocationID: loc.ID, ProductID: productID, Unit: "pcs", Reorder: dec(4),
	})
	require.NoError(t, err)
	f.receive(t, loc.ID, productID, 6)

	r, err := f.reserve(loc.ID, productID, 3)
	require.NoError(t, err)

	h, notifier, _ := newAlertHandler(f)
	require.NoError(t, h.Handle(ctx, inventory.NewStockReservationCreatedEvent(r, testNow)))

	require.Len(t, notifier.alerts, 1)
	assert.Equal(t, inventory.AlertTypeReorderPoint, notifier.alerts[0].AlertType)
}

func TestStockAlertHandler_NotifierFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loc := f.createLocation(t, "WH-1", "WAREHOUSE")
	productID := uuid.New()
	_, err := f.locations.SetThresholds(ctx, appinv.SetThresholdsRequest{
		LocationID: loc.ID, ProductID: productID, Unit: "pcs", Minimum: dec(10),
	})
	require.NoError(t, err)
	in, err := f.ledger.RecordInbound(ctx, appinv.RecordInboundRequest{
		MovementRequest: f.movement(loc.ID, productID, 2),
	})
	require.NoError(t, err)

	h, notifier, _ := newAlertHandler(f)
	notifier.err = errors.New("smtp down")

	assert.NoError(t, h.Handle(ctx, inventory.NewStockMovementOccurredEvent(in)))
	assert.Len(t, notifier.alerts, 1)
}

func TestStockAlertHandler_UnexpectedEvent(t *testing.T) {
	f := newFixture(t)
	loc := f.createLocation(t, "WH-1", "WAREHOUSE")

	h, notifier, _ := newAlertHandler(f)
	err := h.Handle(context.Background(), inventory.NewLocationCreatedEvent(loc, testNow))
	require.Error(t, err)
	assert.Contains(t, err.Error(), inventory.EventTypeLocationCreated)
	assert.Empty(t, notifier.alerts)
}

func TestStockAlertHandler_UnknownLocation(t *testing.T) {
	f := newFixture(t)
	r := &inventory.StockReservation{LocationID: uuid.New(), ProductID: uuid.New()}
	r.ID = uuid.New()

	h, _, _ := newAlertHandler(f)
	err := h.Handle(context.Background(), inventory.NewStockReservationCancelledEvent(r, testNow))
	assert.Error(t, err)
}
