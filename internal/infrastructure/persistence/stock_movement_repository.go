package persistence

import (
	"context"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormStockMovementRepository implements StockMovementRepository using GORM.
// The ledger is append-only: there is no delete and only costs can be updated.
type GormStockMovementRepository struct {
	db *gorm.DB
}

// NewGormStockMovementRepository creates a new GormStockMovementRepository
func NewGormStockMovementRepository(db *gorm.DB) *GormStockMovementRepository {
	return &GormStockMovementRepository{db: db}
}

// FindByID finds a movement by its ID
func (r *GormStockMovementRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.StockMovement, error) {
	var model models.StockMovementModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "stock movement", id)
	}
	return model.ToDomain(), nil
}

// FindByKey returns every movement of productID that touches locationID,
// transfers into it included, in movement order
func (r *GormStockMovementRepository) FindByKey(ctx context.Context, locationID, productID uuid.UUID) ([]*inventory.StockMovement, error) {
	return r.find(ctx, r.db.WithContext(ctx).
		Where("product_id = ? AND (location_id = ? OR transfer_to_location_id = ?)", productID, locationID, locationID))
}

// FindByPurchaseOrder returns the receipts posted for a purchase order
func (r *GormStockMovementRepository) FindByPurchaseOrder(ctx context.Context, purchaseOrderID uuid.UUID) ([]*inventory.StockMovement, error) {
	return r.find(ctx, r.db.WithContext(ctx).Where("purchase_order_id = ?", purchaseOrderID))
}

// FindByReservation returns the outbound movements that fulfilled a reservation
func (r *GormStockMovementRepository) FindByReservation(ctx context.Context, reservationID uuid.UUID) ([]*inventory.StockMovement, error) {
	return r.find(ctx, r.db.WithContext(ctx).Where("reservation_id = ?", reservationID))
}

func (r *GormStockMovementRepository) find(_ context.Context, query *gorm.DB) ([]*inventory.StockMovement, error) {
	var movementModels []models.StockMovementModel
	if err := query.Order("movement_date ASC, created_at ASC").Find(&movementModels).Error; err != nil {
		return nil, err
	}
	movements := make([]*inventory.StockMovement, len(movementModels))
	for i := range movementModels {
		movements[i] = movementModels[i].ToDomain()
	}
	return movements, nil
}

// Append inserts a new ledger entry
func (r *GormStockMovementRepository) Append(ctx context.Context, movement *inventory.StockMovement) error {
	return r.db.WithContext(ctx).Create(models.StockMovementModelFromDomain(movement)).Error
}

// UpdateCost persists a unit cost change. Quantity, type and keys are never written.
func (r *GormStockMovementRepository) UpdateCost(ctx context.Context, movement *inventory.StockMovement) error {
	model := models.StockMovementModelFromDomain(movement)
	result := r.db.WithContext(ctx).
		Model(&models.StockMovementModel{}).
		Where("id = ? AND version = ?", movement.ID, movement.Version-1).
		Updates(map[string]interface{}{
			"unit_cost":  model.UnitCost,
			"total_cost": model.TotalCost,
			"currency":   model.Currency,
			"version":    model.Version,
			"updated_at": model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return versionConflict(ctx, r.db, &models.StockMovementModel{}, "stock movement", movement.ID)
	}
	return nil
}

// Ensure GormStockMovementRepository implements StockMovementRepository
var _ inventory.StockMovementRepository = (*GormStockMovementRepository)(nil)
