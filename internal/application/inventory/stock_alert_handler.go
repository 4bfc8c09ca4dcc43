package inventory

import (
	"context"
	"fmt"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/logger"
	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// StockAlertNotifier is the interface for delivering stock alerts.
// Implementations can support different channels (in-app, email, SMS, etc.)
type StockAlertNotifier interface {
	// SendAlert sends a stock alert notification
	SendAlert(ctx context.Context, alert StockAlert) error
}

// StockAlertHandler reacts to movement and reservation events: it drops the
// cached availability of the affected keys and re-evaluates their thresholds
type StockAlertHandler struct {
	txScope      TransactionScope
	cache        AvailabilityCache
	notifier     StockAlertNotifier
	clock        shared.Clock
	logger       *zap.Logger
	stockMetrics *telemetry.StockMetrics
}

// NewStockAlertHandler creates a new StockAlertHandler
func NewStockAlertHandler(txScope TransactionScope, logger *zap.Logger) *StockAlertHandler {
	return &StockAlertHandler{
		txScope: txScope,
		clock:   shared.SystemClock{},
		logger:  logger,
	}
}

// WithNotifier sets the notifier for sending alerts
func (h *StockAlertHandler) WithNotifier(notifier StockAlertNotifier) *StockAlertHandler {
	h.notifier = notifier
	return h
}

// WithCache sets the availability cache refreshed on every event
func (h *StockAlertHandler) WithCache(cache AvailabilityCache) *StockAlertHandler {
	h.cache = cache
	return h
}

// WithClock replaces the clock used to stamp alerts
func (h *StockAlertHandler) WithClock(clock shared.Clock) *StockAlertHandler {
	h.clock = clock
	return h
}

// WithStockMetrics sets the stock metrics collector
func (h *StockAlertHandler) WithStockMetrics(sm *telemetry.StockMetrics) *StockAlertHandler {
	h.stockMetrics = sm
	return h
}

// EventTypes returns the event types this handler is interested in
func (h *StockAlertHandler) EventTypes() []string {
	return []string{
		inventory.EventTypeStockMovementOccurred,
		inventory.EventTypeStockReservationCreated,
		inventory.EventTypeStockReservationConfirmed,
		inventory.EventTypeStockReservationCancelled,
		inventory.EventTypeStockReservationExpired,
	}
}

// Handle processes a movement or reservation event
func (h *StockAlertHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	keys, err := affectedKeys(event)
	if err != nil {
		h.logger.Error("unexpected event type",
			zap.String("actual", event.EventType()),
		)
		return err
	}

	if h.cache != nil {
		if err := h.cache.Invalidate(ctx, keys...); err != nil {
			h.logger.Warn("availability cache invalidation failed", zap.Error(err))
		}
	}

	var alerts []StockAlert
	err = h.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		for _, key := range keys {
			location, err := repos.Locations().FindByID(ctx, key.LocationID)
			if err != nil {
				return err
			}
			alert, err := evaluateAlert(ctx, repos, location, key.ProductID, h.clock)
			if err != nil {
				return err
			}
			if alert != nil {
				alerts = append(alerts, *alert)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to evaluate stock thresholds: %w", err)
	}

	for _, alert := range alerts {
		logger.WithLogger(ctx, h.logger).Warn("stock threshold breached",
			zap.String("event_id", event.EventID().String()),
			zap.String("location_id", alert.LocationID.String()),
			zap.String("location_code", alert.LocationCode),
			zap.String("product_id", alert.ProductID.String()),
			zap.String("alert_type", string(alert.AlertType)),
			zap.String("available", alert.Available.String()),
		)
		if h.stockMetrics != nil {
			h.stockMetrics.RecordAlert(ctx, string(alert.AlertType))
		}
		if h.notifier != nil {
			if err := h.notifier.SendAlert(ctx, alert); err != nil {
				// Delivery failure shouldn't fail the event handling
				h.logger.Error("failed to send stock alert notification",
					zap.String("product_id", alert.ProductID.String()),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

// affectedKeys returns the stock keys whose availability an event changes
func affectedKeys(event shared.DomainEvent) ([]inventory.StockKey, error) {
	if e, ok := event.(*inventory.StockMovementOccurredEvent); ok {
		keys := []inventory.StockKey{{LocationID: e.LocationID, ProductID: e.ProductID}}
		if e.TransferToLocationID != nil {
			keys = append(keys, inventory.StockKey{LocationID: *e.TransferToLocationID, ProductID: e.ProductID})
		}
		return keys, nil
	}
	if key, ok := inventory.ReservationKey(event); ok {
		return []inventory.StockKey{key}, nil
	}
	return nil, fmt.Errorf("unexpected event type: %s", event.EventType())
}

// Ensure StockAlertHandler implements shared.EventHandler
var _ shared.EventHandler = (*StockAlertHandler)(nil)

// LoggingStockAlertNotifier is a simple notifier that logs alerts
type LoggingStockAlertNotifier struct {
	logger *zap.Logger
}

// NewLoggingStockAlertNotifier creates a new logging notifier
func NewLoggingStockAlertNotifier(logger *zap.Logger) *LoggingStockAlertNotifier {
	return &LoggingStockAlertNotifier{
		logger: logger,
	}
}

// SendAlert logs the stock alert
func (n *LoggingStockAlertNotifier) SendAlert(ctx context.Context, alert StockAlert) error {
	n.logger.Warn("STOCK ALERT",
		zap.String("type", string(alert.AlertType)),
		zap.String("product_id", alert.ProductID.String()),
		zap.String("location_code", alert.LocationCode),
		zap.String("available", alert.Available.String()),
	)
	return nil
}

// Ensure LoggingStockAlertNotifier implements StockAlertNotifier
var _ StockAlertNotifier = (*LoggingStockAlertNotifier)(nil)
