package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type stubStockProvider struct {
	active   int64
	stockOut int64
	err      error
}

func (p *stubStockProvider) CountActiveReservations(ctx context.Context) (int64, error) {
	return p.active, p.err
}

func (p *stubStockProvider) CountStockOutKeys(ctx context.Context) (int64, error) {
	return p.stockOut, p.err
}

func TestNewStockMetrics_RequiresMeter(t *testing.T) {
	_, err := NewStockMetrics(StockMetricsConfig{})
	assert.ErrorIs(t, err, ErrMeterNil)
	assert.Equal(t, "NewStockMetrics: meter cannot be nil", err.Error())
}

func TestStockMetrics_Counters(t *testing.T) {
	meter, reader := newTestMeter(t)
	ctx := context.Background()

	sm, err := NewStockMetrics(StockMetricsConfig{Meter: meter})
	require.NoError(t, err)

	sm.RecordMovement(ctx, "INBOUND")
	sm.RecordMovement(ctx, "INBOUND")
	sm.RecordMovement(ctx, "TRANSFER")
	sm.RecordReservation(ctx, ReservationOutcomeAdmitted)
	sm.RecordReservation(ctx, ReservationOutcomeInsufficient)
	sm.RecordAlert(ctx, "LOW_STOCK")
	sm.RecordReceipt(ctx, true)
	sm.RecordReceipt(ctx, false)
	sm.RecordAdmission(ctx, 2*time.Millisecond)

	assert.Equal(t, int64(2), intValue(t, reader, "stock_movements_total", AttrMovementType.String("INBOUND")))
	assert.Equal(t, int64(1), intValue(t, reader, "stock_movements_total", AttrMovementType.String("TRANSFER")))
	assert.Equal(t, int64(1), intValue(t, reader, "stock_reservations_total",
		AttrReservationOutcome.String(string(ReservationOutcomeInsufficient))))
	assert.Equal(t, int64(1), intValue(t, reader, "stock_alerts_total", AttrAlertType.String("LOW_STOCK")))
	assert.Equal(t, int64(1), intValue(t, reader, "purchase_order_receipts_total", attribute.Bool("complete", true)))
	assert.Equal(t, uint64(1), histogramCount(t, reader, "stock_admission_duration_seconds"))
}

func TestStockMetrics_Sweep(t *testing.T) {
	meter, reader := newTestMeter(t)
	ctx := context.Background()

	sm, err := NewStockMetrics(StockMetricsConfig{Meter: meter})
	require.NoError(t, err)

	sm.RecordSweep(ctx, 0, 10*time.Millisecond)
	sm.RecordSweep(ctx, 4, 20*time.Millisecond)

	assert.Equal(t, int64(4), intValue(t, reader, "stock_reservations_expired_total"))
	assert.Equal(t, uint64(2), histogramCount(t, reader, "stock_reservation_sweep_duration_seconds"))
}

func TestStockMetrics_OutboxAndOverdue(t *testing.T) {
	meter, reader := newTestMeter(t)
	ctx := context.Background()

	sm, err := NewStockMetrics(StockMetricsConfig{Meter: meter})
	require.NoError(t, err)

	sm.OutboxDelivered(ctx, "StockReserved")
	sm.OutboxFailed(ctx, "StockReserved", false)
	sm.OutboxFailed(ctx, "StockReserved", true)
	sm.RecordOverduePurchaseOrders(ctx, 7)
	sm.RecordOverduePurchaseOrders(ctx, 2)

	assert.Equal(t, int64(1), intValue(t, reader, "outbox_events_delivered_total", AttrEventType.String("StockReserved")))
	assert.Equal(t, int64(1), intValue(t, reader, "outbox_events_failed_total", attribute.Bool("dead", true)))
	assert.Equal(t, int64(2), intValue(t, reader, "outbox_events_failed_total"))
	assert.Equal(t, int64(2), intValue(t, reader, "purchase_orders_overdue"))
}

func TestStockMetrics_PeriodicCollection(t *testing.T) {
	meter, reader := newTestMeter(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sm, err := NewStockMetrics(StockMetricsConfig{
		Meter:    meter,
		Provider: &stubStockProvider{active: 12, stockOut: 3},
	})
	require.NoError(t, err)

	sm.StartPeriodicCollection(ctx, time.Hour)
	defer sm.Stop()

	assert.Eventually(t, func() bool {
		_, ok := findMetric(t, reader, "stock_out_keys")
		return ok
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(12), intValue(t, reader, "stock_reservations_active"))
	assert.Equal(t, int64(3), intValue(t, reader, "stock_out_keys"))

	// idempotent
	sm.Stop()
}

func TestStockMetrics_CollectProviderError(t *testing.T) {
	meter, reader := newTestMeter(t)
	ctx := context.Background()

	sm, err := NewStockMetrics(StockMetricsConfig{
		Meter:    meter,
		Provider: &stubStockProvider{err: errors.New("db down")},
	})
	require.NoError(t, err)

	sm.collect(ctx)

	_, ok := findMetric(t, reader, "stock_reservations_active")
	assert.False(t, ok)
}

func TestGormStockMetricsProvider(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Exec(`CREATE TABLE stock_reservations (id TEXT PRIMARY KEY, status TEXT)`).Error)
	require.NoError(t, db.Exec(`CREATE TABLE stock_balances (location_id TEXT, product_id TEXT, on_hand NUMERIC)`).Error)
	require.NoError(t, db.Exec(`INSERT INTO stock_reservations VALUES ('a','ACTIVE'),('b','ACTIVE'),('c','EXPIRED')`).Error)
	require.NoError(t, db.Exec(`INSERT INTO stock_balances VALUES ('l','p1',0),('l','p2',5),('l','p3',-1)`).Error)

	p := NewGormStockMetricsProvider(db)
	ctx := context.Background()

	active, err := p.CountActiveReservations(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), active)

	stockOut, err := p.CountStockOutKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stockOut)
}
