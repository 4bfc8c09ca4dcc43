package scheduler

import (
	"context"
	"time"

	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/trade"
	"github.com/erp/stockledger/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// ReservationExpirer expires lapsed reservations
type ReservationExpirer interface {
	ExpireDue(ctx context.Context) (*appinv.ExpirationStats, error)
}

// ReservationExpiryExecutor runs the reservation expiry sweep
type ReservationExpiryExecutor struct {
	expirer ReservationExpirer
	logger  *zap.Logger
}

// NewReservationExpiryExecutor creates a new ReservationExpiryExecutor
func NewReservationExpiryExecutor(expirer ReservationExpirer, logger *zap.Logger) *ReservationExpiryExecutor {
	return &ReservationExpiryExecutor{expirer: expirer, logger: logger}
}

// Execute implements JobExecutor
func (e *ReservationExpiryExecutor) Execute(ctx context.Context, job *Job) error {
	stats, err := e.expirer.ExpireDue(ctx)
	if err != nil {
		return err
	}
	if stats.Failed > 0 {
		logger.WithLogger(ctx, e.logger).Warn("Reservation sweep left failures for the next run",
			zap.Int("failed", stats.Failed),
		)
	}
	return nil
}

// OverdueFinder lists SENT purchase orders past their expected delivery
type OverdueFinder interface {
	FindOverdue(ctx context.Context, limit int) ([]*trade.PurchaseOrder, error)
}

// OverdueRecorder receives the size of each overdue scan
type OverdueRecorder interface {
	RecordOverduePurchaseOrders(ctx context.Context, count int)
}

// OverduePurchaseOrderExecutor reports purchase orders whose delivery is late
type OverduePurchaseOrderExecutor struct {
	finder    OverdueFinder
	batchSize int
	recorder  OverdueRecorder
	now       func() time.Time
	logger    *zap.Logger
}

// NewOverduePurchaseOrderExecutor creates a new OverduePurchaseOrderExecutor
func NewOverduePurchaseOrderExecutor(finder OverdueFinder, batchSize int, logger *zap.Logger) *OverduePurchaseOrderExecutor {
	return &OverduePurchaseOrderExecutor{
		finder:    finder,
		batchSize: batchSize,
		now:       time.Now,
		logger:    logger,
	}
}

// WithRecorder sets where scan sizes are reported
func (e *OverduePurchaseOrderExecutor) WithRecorder(recorder OverdueRecorder) *OverduePurchaseOrderExecutor {
	e.recorder = recorder
	return e
}

// Execute implements JobExecutor
func (e *OverduePurchaseOrderExecutor) Execute(ctx context.Context, job *Job) error {
	orders, err := e.finder.FindOverdue(ctx, e.batchSize)
	if err != nil {
		return err
	}

	now := e.now()
	log := logger.WithLogger(ctx, e.logger)
	for _, o := range orders {
		log.Warn("Purchase order delivery overdue",
			zap.String("order_id", o.ID.String()),
			zap.String("order_number", o.OrderNumber),
			zap.String("supplier_id", o.SupplierID.String()),
			zap.Time("expected_delivery_date", o.ExpectedDeliveryDate),
			zap.Duration("overdue_by", now.Sub(o.ExpectedDeliveryDate)),
		)
	}
	if e.recorder != nil {
		e.recorder.RecordOverduePurchaseOrders(ctx, len(orders))
	}
	return nil
}
