package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStockBalanceRepository implements StockBalanceRepository using GORM.
// On PostgreSQL LockForUpdate takes a row lock (SELECT ... FOR UPDATE);
// SQLite ignores the clause and relies on its single writer.
type GormStockBalanceRepository struct {
	db *gorm.DB
}

// NewGormStockBalanceRepository creates a new GormStockBalanceRepository
func NewGormStockBalanceRepository(db *gorm.DB) *GormStockBalanceRepository {
	return &GormStockBalanceRepository{db: db}
}

// Find returns the balance of a key without locking it
func (r *GormStockBalanceRepository) Find(ctx context.Context, locationID, productID uuid.UUID) (*inventory.StockBalance, error) {
	var model models.StockBalanceModel
	if err := r.db.WithContext(ctx).
		Where("location_id = ? AND product_id = ?", locationID, productID).
		First(&model).Error; err != nil {
		return nil, notFound(err, "stock balance", inventory.StockKey{LocationID: locationID, ProductID: productID})
	}
	return model.ToDomain(), nil
}

// LockForUpdate returns the balance row locked until the transaction ends.
// A missing row is inserted first (ignoring a concurrent insert) and then locked.
func (r *GormStockBalanceRepository) LockForUpdate(ctx context.Context, locationID, productID uuid.UUID, unit string) (*inventory.StockBalance, error) {
	model, err := r.selectForUpdate(ctx, locationID, productID)
	if err == nil {
		return model.ToDomain(), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	empty := models.StockBalanceModelFromDomain(
		inventory.NewStockBalance(locationID, productID, unit, time.Now().UTC()))
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(empty).Error; err != nil {
		return nil, err
	}

	model, err = r.selectForUpdate(ctx, locationID, productID)
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

func (r *GormStockBalanceRepository) selectForUpdate(ctx context.Context, locationID, productID uuid.UUID) (*models.StockBalanceModel, error) {
	var model models.StockBalanceModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("location_id = ? AND product_id = ?", locationID, productID).
		First(&model).Error
	if err != nil {
		return nil, err
	}
	return &model, nil
}

// Save writes the balance, inserting it when missing
func (r *GormStockBalanceRepository) Save(ctx context.Context, balance *inventory.StockBalance) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "location_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"on_hand", "unit", "version", "updated_at"}),
		}).
		Create(models.StockBalanceModelFromDomain(balance)).Error
}

// Ensure GormStockBalanceRepository implements StockBalanceRepository
var _ inventory.StockBalanceRepository = (*GormStockBalanceRepository)(nil)
