package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// StockMetrics records ledger, reservation and replenishment activity.
type StockMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	movementsTotal       *Counter
	reservationsTotal    *Counter
	alertsTotal          *Counter
	expiredTotal         *Counter
	receiptsTotal        *Counter
	outboxDelivered      *Counter
	outboxFailed         *Counter
	sweepDuration        *Histogram
	admissionWaitSeconds *Histogram

	// Gauge metrics (point-in-time values)
	activeReservations *Gauge
	stockOutKeys       *Gauge
	overdueOrders      *Gauge

	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	provider StockMetricsProvider
}

// StockMetricsProvider supplies values for the periodic gauges.
type StockMetricsProvider interface {
	// CountActiveReservations returns the number of ACTIVE reservations
	CountActiveReservations(ctx context.Context) (int64, error)
	// CountStockOutKeys returns the number of location+product balances at or below zero
	CountStockOutKeys(ctx context.Context) (int64, error)
}

// StockMetricsConfig holds configuration for stock metrics.
type StockMetricsConfig struct {
	Meter    metric.Meter
	Logger   *zap.Logger
	Provider StockMetricsProvider
}

// NewStockMetrics creates a new StockMetrics instance.
func NewStockMetrics(cfg StockMetricsConfig) (*StockMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sm := &StockMetrics{
		meter:    cfg.Meter,
		logger:   logger,
		stopChan: make(chan struct{}),
		provider: cfg.Provider,
	}

	var err error
	if sm.movementsTotal, err = NewCounter(cfg.Meter,
		"stock_movements_total", "Total number of ledger movements appended", "{movements}"); err != nil {
		return nil, err
	}
	if sm.reservationsTotal, err = NewCounter(cfg.Meter,
		"stock_reservations_total", "Reservation operations by outcome", "{reservations}"); err != nil {
		return nil, err
	}
	if sm.alertsTotal, err = NewCounter(cfg.Meter,
		"stock_alerts_total", "Threshold alerts raised", "{alerts}"); err != nil {
		return nil, err
	}
	if sm.expiredTotal, err = NewCounter(cfg.Meter,
		"stock_reservations_expired_total", "Reservations expired by the sweep", "{reservations}"); err != nil {
		return nil, err
	}
	if sm.receiptsTotal, err = NewCounter(cfg.Meter,
		"purchase_order_receipts_total", "Purchase order receipt operations", "{receipts}"); err != nil {
		return nil, err
	}
	if sm.outboxDelivered, err = NewCounter(cfg.Meter,
		"outbox_events_delivered_total", "Outbox entries delivered to the event bus", "{events}"); err != nil {
		return nil, err
	}
	if sm.outboxFailed, err = NewCounter(cfg.Meter,
		"outbox_events_failed_total", "Failed outbox delivery attempts", "{events}"); err != nil {
		return nil, err
	}
	if sm.sweepDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "stock_reservation_sweep_duration_seconds",
		Description: "Duration of a reservation expiry sweep",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if sm.admissionWaitSeconds, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "stock_admission_duration_seconds",
		Description: "Time spent admitting a reservation, row lock included",
		Unit:        "s",
		Boundaries:  SmallDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if sm.activeReservations, err = NewGauge(cfg.Meter,
		"stock_reservations_active", "Current number of ACTIVE reservations", "{reservations}"); err != nil {
		return nil, err
	}
	if sm.stockOutKeys, err = NewGauge(cfg.Meter,
		"stock_out_keys", "Location+product balances at or below zero", "{keys}"); err != nil {
		return nil, err
	}
	if sm.overdueOrders, err = NewGauge(cfg.Meter,
		"purchase_orders_overdue", "SENT purchase orders past their expected delivery", "{orders}"); err != nil {
		return nil, err
	}

	return sm, nil
}

// ReservationOutcome labels reservation operations.
type ReservationOutcome string

const (
	ReservationOutcomeAdmitted     ReservationOutcome = "admitted"
	ReservationOutcomeInsufficient ReservationOutcome = "insufficient"
	ReservationOutcomeConfirmed    ReservationOutcome = "confirmed"
	ReservationOutcomeCancelled    ReservationOutcome = "cancelled"
	ReservationOutcomeExtended     ReservationOutcome = "extended"
)

// RecordMovement counts an appended movement.
func (sm *StockMetrics) RecordMovement(ctx context.Context, movementType string) {
	sm.movementsTotal.Inc(ctx, AttrMovementType.String(movementType))
}

// RecordReservation counts a reservation operation.
func (sm *StockMetrics) RecordReservation(ctx context.Context, outcome ReservationOutcome) {
	sm.reservationsTotal.Inc(ctx, AttrReservationOutcome.String(string(outcome)))
}

// RecordAdmission records how long an admission took.
func (sm *StockMetrics) RecordAdmission(ctx context.Context, d time.Duration) {
	sm.admissionWaitSeconds.RecordDuration(ctx, d)
}

// RecordAlert counts a raised threshold alert.
func (sm *StockMetrics) RecordAlert(ctx context.Context, alertType string) {
	sm.alertsTotal.Inc(ctx, AttrAlertType.String(alertType))
}

// RecordSweep records the outcome of one expiry sweep.
func (sm *StockMetrics) RecordSweep(ctx context.Context, expired int, d time.Duration) {
	if expired > 0 {
		sm.expiredTotal.Add(ctx, int64(expired))
	}
	sm.sweepDuration.RecordDuration(ctx, d)
}

// RecordReceipt counts a purchase order receipt.
func (sm *StockMetrics) RecordReceipt(ctx context.Context, complete bool) {
	sm.receiptsTotal.Inc(ctx, attribute.Bool("complete", complete))
}

// RecordOverduePurchaseOrders records the size of the last overdue scan.
func (sm *StockMetrics) RecordOverduePurchaseOrders(ctx context.Context, count int) {
	sm.overdueOrders.Record(ctx, int64(count))
}

// OutboxDelivered counts an outbox entry handed to the event bus.
func (sm *StockMetrics) OutboxDelivered(ctx context.Context, eventType string) {
	sm.outboxDelivered.Inc(ctx, AttrEventType.String(eventType))
}

// OutboxFailed counts a failed delivery attempt; dead marks entries that will not be retried.
func (sm *StockMetrics) OutboxFailed(ctx context.Context, eventType string, dead bool) {
	sm.outboxFailed.Inc(ctx, AttrEventType.String(eventType), attribute.Bool("dead", dead))
}

// StartPeriodicCollection starts periodic collection of gauge metrics.
// This is non-blocking - use Stop() to stop collection.
func (sm *StockMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	sm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = time.Minute
		}
		go sm.runPeriodicCollection(ctx, interval)
	})
}

func (sm *StockMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sm.collect(ctx)

	for {
		select {
		case <-sm.stopChan:
			sm.logger.Info("Stopping periodic stock metrics collection")
			return
		case <-ctx.Done():
			sm.logger.Info("Context cancelled, stopping periodic stock metrics collection")
			return
		case <-ticker.C:
			sm.collect(ctx)
		}
	}
}

func (sm *StockMetrics) collect(ctx context.Context) {
	if sm.provider == nil {
		sm.logger.Debug("No stock metrics provider configured, skipping collection")
		return
	}

	if active, err := sm.provider.CountActiveReservations(ctx); err != nil {
		sm.logger.Warn("Failed to count active reservations", zap.Error(err))
	} else {
		sm.activeReservations.Record(ctx, active)
	}

	if stockOut, err := sm.provider.CountStockOutKeys(ctx); err != nil {
		sm.logger.Warn("Failed to count stock-out balances", zap.Error(err))
	} else {
		sm.stockOutKeys.Record(ctx, stockOut)
	}
}

// Stop stops the periodic collection.
func (sm *StockMetrics) Stop() {
	sm.stopOnce.Do(func() {
		close(sm.stopChan)
	})
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewStockMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
