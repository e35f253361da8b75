package inventory

import (
	"context"

	"apothek/internal/core/id"
	"apothek/internal/domain"
)

// Repository defines storage operations for stock items.
//
// GetForUpdate and AdjustQuantity are only meaningful inside a transaction
// opened by the caller; the implementation resolves the active transaction
// from context and never commits on its own.
type Repository interface {
	// Create inserts a new stock item
	Create(ctx context.Context, item *StockItem) error

	// GetByID retrieves an item scoped to a branch
	GetByID(ctx context.Context, branchID string, itemID id.ID) (*StockItem, error)

	// GetForUpdate retrieves an item with a pessimistic row lock (SELECT ... FOR UPDATE)
	GetForUpdate(ctx context.Context, branchID string, itemID id.ID) (*StockItem, error)

	// AdjustQuantity applies a signed delta to quantity_on_hand.
	// The CHECK constraint on the column is the last line of defense against
	// negative stock; callers validate under lock first.
	AdjustQuantity(ctx context.Context, branchID string, itemID id.ID, delta int) error

	// ListByBranch retrieves all items of a branch
	ListByBranch(ctx context.Context, branchID string, filter domain.ListFilter) (domain.ListResult[*StockItem], error)
}
