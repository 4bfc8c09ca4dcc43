package trade

import (
	"context"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
)

// PurchaseOrderRepository defines the interface for purchase order persistence
type PurchaseOrderRepository interface {
	// FindByID finds a purchase order by ID, lines included
	FindByID(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error)

	// FindByOrderNumber finds a purchase order by its order number
	FindByOrderNumber(ctx context.Context, orderNumber string) (*PurchaseOrder, error)

	// FindAll finds purchase orders with filtering ("status", "supplier_id") and pagination
	FindAll(ctx context.Context, filter shared.Filter) ([]*PurchaseOrder, error)

	// FindOverdue finds SENT orders whose expected delivery date is before now
	FindOverdue(ctx context.Context, now time.Time, limit int) ([]*PurchaseOrder, error)

	// ExistsByOrderNumber checks whether an order number is taken
	ExistsByOrderNumber(ctx context.Context, orderNumber string) (bool, error)

	// Save creates or updates a purchase order and replaces its lines
	Save(ctx context.Context, order *PurchaseOrder) error

	// SaveWithLock saves only if the stored version is order.Version-1
	SaveWithLock(ctx context.Context, order *PurchaseOrder) error

	// Delete removes a DRAFT purchase order
	Delete(ctx context.Context, id uuid.UUID) error
}
