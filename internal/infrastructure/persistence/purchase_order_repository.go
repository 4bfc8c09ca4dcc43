package persistence

import (
	"context"
	"strings"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/trade"
	"github.com/erp/stockledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPurchaseOrderRepository implements PurchaseOrderRepository using GORM
type GormPurchaseOrderRepository struct {
	db *gorm.DB
}

// NewGormPurchaseOrderRepository creates a new GormPurchaseOrderRepository
func NewGormPurchaseOrderRepository(db *gorm.DB) *GormPurchaseOrderRepository {
	return &GormPurchaseOrderRepository{db: db}
}

// FindByID finds a purchase order by its ID
func (r *GormPurchaseOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*trade.PurchaseOrder, error) {
	var model models.PurchaseOrderModel
	if err := r.db.WithContext(ctx).
		Preload("Lines", orderLines).
		First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "purchase order", id)
	}
	return model.ToDomain(), nil
}

// FindByOrderNumber finds a purchase order by order number
func (r *GormPurchaseOrderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (*trade.PurchaseOrder, error) {
	var model models.PurchaseOrderModel
	if err := r.db.WithContext(ctx).
		Preload("Lines", orderLines).
		Where("order_number = ?", orderNumber).
		First(&model).Error; err != nil {
		return nil, notFound(err, "purchase order", orderNumber)
	}
	return model.ToDomain(), nil
}

// FindAll finds purchase orders with filtering and pagination
func (r *GormPurchaseOrderRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*trade.PurchaseOrder, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.PurchaseOrderModel{}), filter)
	query = applyPagination(query, filter, PurchaseOrderSortFields)
	return r.find(query)
}

// FindOverdue finds SENT orders whose expected delivery is before now
func (r *GormPurchaseOrderRepository) FindOverdue(ctx context.Context, now time.Time, limit int) ([]*trade.PurchaseOrder, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND expected_delivery_date < ?", string(trade.PurchaseOrderStatusSent), now).
		Order("expected_delivery_date ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	return r.find(query)
}

func (r *GormPurchaseOrderRepository) find(query *gorm.DB) ([]*trade.PurchaseOrder, error) {
	var orderModels []models.PurchaseOrderModel
	if err := query.Preload("Lines", orderLines).Find(&orderModels).Error; err != nil {
		return nil, err
	}
	orders := make([]*trade.PurchaseOrder, len(orderModels))
	for i := range orderModels {
		orders[i] = orderModels[i].ToDomain()
	}
	return orders, nil
}

// ExistsByOrderNumber checks if an order number exists
func (r *GormPurchaseOrderRepository) ExistsByOrderNumber(ctx context.Context, orderNumber string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.PurchaseOrderModel{}).
		Where("order_number = ?", orderNumber).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save creates or updates a purchase order and replaces its lines
func (r *GormPurchaseOrderRepository) Save(ctx context.Context, order *trade.PurchaseOrder) error {
	model := models.PurchaseOrderModelFromDomain(order)
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Save(model).Error; err != nil {
		return err
	}
	return r.replaceLines(db, order.ID, model.Lines)
}

// SaveWithLock saves with optimistic locking: the stored version must be order.Version-1
func (r *GormPurchaseOrderRepository) SaveWithLock(ctx context.Context, order *trade.PurchaseOrder) error {
	model := models.PurchaseOrderModelFromDomain(order)
	db := r.db.WithContext(ctx)

	result := db.Model(&models.PurchaseOrderModel{}).
		Where("id = ? AND version = ?", order.ID, order.Version-1).
		Updates(map[string]interface{}{
			"supplier_id":            model.SupplierID,
			"status":                 model.Status,
			"expected_delivery_date": model.ExpectedDeliveryDate,
			"actual_delivery_date":   model.ActualDeliveryDate,
			"currency":               model.Currency,
			"total_amount":           model.TotalAmount,
			"received_by":            model.ReceivedBy,
			"confirmed_at":           model.ConfirmedAt,
			"sent_at":                model.SentAt,
			"cancelled_at":           model.CancelledAt,
			"cancellation_reason":    model.CancellationReason,
			"version":                model.Version,
			"updated_at":             model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return versionConflict(ctx, r.db, &models.PurchaseOrderModel{}, "purchase order", order.ID)
	}
	return r.replaceLines(db, order.ID, model.Lines)
}

// replaceLines deletes lines no longer on the order and upserts the rest
func (r *GormPurchaseOrderRepository) replaceLines(db *gorm.DB, orderID uuid.UUID, lines []models.PurchaseOrderLineModel) error {
	currentLineIDs := make([]uuid.UUID, len(lines))
	for i := range lines {
		lines[i].OrderID = orderID
		currentLineIDs[i] = lines[i].ID
	}

	remove := db.Where("order_id = ?", orderID)
	if len(currentLineIDs) > 0 {
		remove = remove.Where("id NOT IN ?", currentLineIDs)
	}
	if err := remove.Delete(&models.PurchaseOrderLineModel{}).Error; err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&lines).Error
}

// Delete removes a purchase order and its lines
func (r *GormPurchaseOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("order_id = ?", id).Delete(&models.PurchaseOrderLineModel{}).Error; err != nil {
		return err
	}
	result := db.Where("id = ?", id).Delete(&models.PurchaseOrderModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "purchase order", id)
	}
	return nil
}

// applyFilter applies search and the status/supplier_id filters
func (r *GormPurchaseOrderRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		query = query.Where("LOWER(order_number) LIKE ?", "%"+strings.ToLower(filter.Search)+"%")
	}
	for key, value := range filter.Filters {
		switch key {
		case "supplier_id":
			query = query.Where("supplier_id = ?", value)
		case "status":
			query = query.Where("status = ?", value)
		case "statuses":
			if statuses, ok := value.([]string); ok && len(statuses) > 0 {
				query = query.Where("status IN ?", statuses)
			}
		case "start_date":
			if t, ok := value.(time.Time); ok {
				query = query.Where("order_date >= ?", t)
			}
		case "end_date":
			if t, ok := value.(time.Time); ok {
				query = query.Where("order_date <= ?", t)
			}
		}
	}
	return query
}

func orderLines(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC")
}

// Ensure GormPurchaseOrderRepository implements PurchaseOrderRepository
var _ trade.PurchaseOrderRepository = (*GormPurchaseOrderRepository)(nil)
