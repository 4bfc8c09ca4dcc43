package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// notFound maps gorm.ErrRecordNotFound to a NOT_FOUND domain error naming the entity
func notFound(err error, entity string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.NewDomainError(shared.KindNotFound, "NOT_FOUND",
			fmt.Sprintf("%s %v not found", entity, id))
	}
	return err
}

// versionConflict explains a version-checked update that matched no row.
// A row that still exists was changed by another writer; a missing row is NOT_FOUND.
func versionConflict(ctx context.Context, db *gorm.DB, model any, entity string, id uuid.UUID) error {
	var count int64
	if err := db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return notFound(gorm.ErrRecordNotFound, entity, id)
	}
	return shared.ErrOptimisticLock
}
