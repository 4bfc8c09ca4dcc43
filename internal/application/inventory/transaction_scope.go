package inventory

import (
	"context"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/trade"
)

// TransactionScope provides transactional access to the stock repositories.
// When a function is executed within a transaction scope, all repository operations
// will be part of the same database transaction and will be committed or rolled back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all repositories within a transaction.
// All repositories returned share the same underlying database transaction.
//
// Aggregate Boundary Notes:
//   - Balances: the materialized on-hand per location+product. LockForUpdate is the
//     serialization point for movement appends and reservation admission on a key.
//   - Movements: append-only ledger. Only the unit cost of a movement can be updated.
//   - Reservations: versioned aggregates, saved with an optimistic version check.
//   - PurchaseOrders: versioned aggregate with its lines; receipts append movements
//     in the same transaction.
type TransactionalRepositories interface {
	// Locations returns the location repository scoped to the current transaction
	Locations() inventory.LocationRepository
	// Movements returns the stock movement repository scoped to the current transaction
	Movements() inventory.StockMovementRepository
	// Reservations returns the reservation repository scoped to the current transaction
	Reservations() inventory.StockReservationRepository
	// Balances returns the stock balance repository scoped to the current transaction
	Balances() inventory.StockBalanceRepository
	// PurchaseOrders returns the purchase order repository scoped to the current transaction
	PurchaseOrders() trade.PurchaseOrderRepository
	// SaveEvents writes domain events to the outbox as part of the current transaction
	SaveEvents(ctx context.Context, events ...shared.DomainEvent) error
}
