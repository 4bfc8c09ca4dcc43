package persistence

import "github.com/erp/stockledger/internal/infrastructure/persistence/models"

// AllModels lists every persisted model. SQLite databases are created from it;
// PostgreSQL uses the SQL migrations, which must describe the same tables.
func AllModels() []any {
	return []any{
		&models.LocationModel{},
		&models.LocationStockLevelModel{},
		&models.StockMovementModel{},
		&models.StockReservationModel{},
		&models.StockBalanceModel{},
		&models.PurchaseOrderModel{},
		&models.PurchaseOrderLineModel{},
		&models.OutboxEntryModel{},
	}
}
