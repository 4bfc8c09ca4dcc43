package persistence

import (
	"context"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormStockReservationRepository implements StockReservationRepository using GORM
type GormStockReservationRepository struct {
	db *gorm.DB
}

// NewGormStockReservationRepository creates a new GormStockReservationRepository
func NewGormStockReservationRepository(db *gorm.DB) *GormStockReservationRepository {
	return &GormStockReservationRepository{db: db}
}

// FindByID finds a reservation by its ID
func (r *GormStockReservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.StockReservation, error) {
	var model models.StockReservationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "reservation", id)
	}
	return model.ToDomain(), nil
}

// FindActiveByKey returns the ACTIVE reservations of a product at a location,
// including those whose deadline passed but have not been swept yet
func (r *GormStockReservationRepository) FindActiveByKey(ctx context.Context, locationID, productID uuid.UUID) ([]*inventory.StockReservation, error) {
	return r.find(r.db.WithContext(ctx).
		Where("location_id = ? AND product_id = ? AND status = ?",
			locationID, productID, inventory.ReservationStatusActive).
		Order("created_at ASC"))
}

// FindByOrder returns every reservation taken for an order
func (r *GormStockReservationRepository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]*inventory.StockReservation, error) {
	return r.find(r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC"))
}

// FindActiveExpiredBefore returns up to limit ACTIVE reservations whose deadline is before now,
// oldest deadline first. Ids in exclude are left out so a sweep can page past rows it could not expire.
func (r *GormStockReservationRepository) FindActiveExpiredBefore(ctx context.Context, now time.Time, exclude []uuid.UUID, limit int) ([]*inventory.StockReservation, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND expiration_date < ?", inventory.ReservationStatusActive, now)
	if len(exclude) > 0 {
		query = query.Where("id NOT IN ?", exclude)
	}
	return r.find(query.Order("expiration_date ASC, id ASC").Limit(limit))
}

func (r *GormStockReservationRepository) find(query *gorm.DB) ([]*inventory.StockReservation, error) {
	var reservationModels []models.StockReservationModel
	if err := query.Find(&reservationModels).Error; err != nil {
		return nil, err
	}
	reservations := make([]*inventory.StockReservation, len(reservationModels))
	for i := range reservationModels {
		reservations[i] = reservationModels[i].ToDomain()
	}
	return reservations, nil
}

// Create inserts a new reservation
func (r *GormStockReservationRepository) Create(ctx context.Context, reservation *inventory.StockReservation) error {
	return r.db.WithContext(ctx).Create(models.StockReservationModelFromDomain(reservation)).Error
}

// SaveWithLock updates a reservation only if the stored version is reservation.Version-1
func (r *GormStockReservationRepository) SaveWithLock(ctx context.Context, reservation *inventory.StockReservation) error {
	model := models.StockReservationModelFromDomain(reservation)
	result := r.db.WithContext(ctx).
		Model(&models.StockReservationModel{}).
		Where("id = ? AND version = ?", reservation.ID, reservation.Version-1).
		Updates(map[string]interface{}{
			"confirmed_quantity":  model.ConfirmedQuantity,
			"status":              model.Status,
			"expiration_date":     model.ExpirationDate,
			"confirmed_at":        model.ConfirmedAt,
			"cancelled_at":        model.CancelledAt,
			"expired_at":          model.ExpiredAt,
			"cancellation_reason": model.CancellationReason,
			"version":             model.Version,
			"updated_at":          model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return versionConflict(ctx, r.db, &models.StockReservationModel{}, "reservation", reservation.ID)
	}
	return nil
}

// Ensure GormStockReservationRepository implements StockReservationRepository
var _ inventory.StockReservationRepository = (*GormStockReservationRepository)(nil)
