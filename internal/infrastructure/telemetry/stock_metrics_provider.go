package telemetry

import (
	"context"

	"gorm.io/gorm"
)

// GormStockMetricsProvider implements StockMetricsProvider using GORM.
// It queries the reservation and balance tables directly.
type GormStockMetricsProvider struct {
	db *gorm.DB
}

// NewGormStockMetricsProvider creates a new GormStockMetricsProvider.
func NewGormStockMetricsProvider(db *gorm.DB) *GormStockMetricsProvider {
	return &GormStockMetricsProvider{db: db}
}

// CountActiveReservations returns the number of ACTIVE reservations.
func (p *GormStockMetricsProvider) CountActiveReservations(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("stock_reservations").
		Where("status = ?", "ACTIVE").
		Count(&count).Error
	return count, err
}

// CountStockOutKeys returns the number of balances at or below zero.
func (p *GormStockMetricsProvider) CountStockOutKeys(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("stock_balances").
		Where("on_hand <= 0").
		Count(&count).Error
	return count, err
}

var _ StockMetricsProvider = (*GormStockMetricsProvider)(nil)
