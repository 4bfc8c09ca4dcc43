package persistence

import (
	"context"
	"strings"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLocationRepository implements LocationRepository using GORM.
// Thresholds live in location_stock_levels and are replaced on every save.
type GormLocationRepository struct {
	db *gorm.DB
}

// NewGormLocationRepository creates a new GormLocationRepository
func NewGormLocationRepository(db *gorm.DB) *GormLocationRepository {
	return &GormLocationRepository{db: db}
}

// FindByID finds a location by its ID
func (r *GormLocationRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Location, error) {
	var model models.LocationModel
	if err := r.db.WithContext(ctx).
		Preload("StockLevels").
		First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "location", id)
	}
	return model.ToDomain(), nil
}

// FindByCode finds a location by its normalized code
func (r *GormLocationRepository) FindByCode(ctx context.Context, code string) (*inventory.Location, error) {
	var model models.LocationModel
	if err := r.db.WithContext(ctx).
		Preload("StockLevels").
		Where("code = ?", code).
		First(&model).Error; err != nil {
		return nil, notFound(err, "location", code)
	}
	return model.ToDomain(), nil
}

// FindAll finds locations with filtering and pagination.
// Supported filters: location_type, is_active, parent_location_id.
func (r *GormLocationRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*inventory.Location, error) {
	query := r.db.WithContext(ctx).Model(&models.LocationModel{})

	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ?", pattern, pattern)
	}
	for key, value := range filter.Filters {
		switch key {
		case "location_type":
			query = query.Where("location_type = ?", value)
		case "is_active":
			query = query.Where("is_active = ?", value)
		case "parent_location_id":
			query = query.Where("parent_location_id = ?", value)
		}
	}
	query = applyPagination(query, filter, LocationSortFields)

	var locationModels []models.LocationModel
	if err := query.Preload("StockLevels").Find(&locationModels).Error; err != nil {
		return nil, err
	}
	locations := make([]*inventory.Location, len(locationModels))
	for i := range locationModels {
		locations[i] = locationModels[i].ToDomain()
	}
	return locations, nil
}

// FindWithThresholdsForProduct returns active locations that track thresholds for productID
func (r *GormLocationRepository) FindWithThresholdsForProduct(ctx context.Context, productID uuid.UUID) ([]*inventory.Location, error) {
	tracked := r.db.Model(&models.LocationStockLevelModel{}).
		Select("location_id").
		Where("product_id = ?", productID)

	var locationModels []models.LocationModel
	if err := r.db.WithContext(ctx).
		Preload("StockLevels").
		Where("is_active = ? AND id IN (?)", true, tracked).
		Order("priority DESC, code ASC").
		Find(&locationModels).Error; err != nil {
		return nil, err
	}
	locations := make([]*inventory.Location, len(locationModels))
	for i := range locationModels {
		locations[i] = locationModels[i].ToDomain()
	}
	return locations, nil
}

// ExistsByCode checks whether a code is taken
func (r *GormLocationRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.LocationModel{}).
		Where("code = ?", code).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save creates or updates a location and replaces its thresholds
func (r *GormLocationRepository) Save(ctx context.Context, location *inventory.Location) error {
	model := models.LocationModelFromDomain(location)
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Save(model).Error; err != nil {
		return err
	}
	return r.replaceStockLevels(db, location.ID, model.StockLevels)
}

// SaveWithLock updates a location only if the stored version is location.Version-1
func (r *GormLocationRepository) SaveWithLock(ctx context.Context, location *inventory.Location) error {
	model := models.LocationModelFromDomain(location)
	db := r.db.WithContext(ctx)

	result := db.Model(&models.LocationModel{}).
		Where("id = ? AND version = ?", location.ID, location.Version-1).
		Select("*").
		Omit("id", "created_at", clause.Associations).
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return versionConflict(ctx, r.db, &models.LocationModel{}, "location", location.ID)
	}
	return r.replaceStockLevels(db, location.ID, model.StockLevels)
}

func (r *GormLocationRepository) replaceStockLevels(db *gorm.DB, locationID uuid.UUID, levels []models.LocationStockLevelModel) error {
	keep := make([]uuid.UUID, len(levels))
	for i := range levels {
		keep[i] = levels[i].ProductID
	}

	remove := db.Where("location_id = ?", locationID)
	if len(keep) > 0 {
		remove = remove.Where("product_id NOT IN ?", keep)
	}
	if err := remove.Delete(&models.LocationStockLevelModel{}).Error; err != nil {
		return err
	}
	if len(levels) == 0 {
		return nil
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "location_id"}, {Name: "product_id"}},
		UpdateAll: true,
	}).Create(&levels).Error
}

// Ensure GormLocationRepository implements LocationRepository
var _ inventory.LocationRepository = (*GormLocationRepository)(nil)
