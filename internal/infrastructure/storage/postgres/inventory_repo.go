package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"apothek/internal/core/apperror"
	"apothek/internal/core/id"
	"apothek/internal/domain"
	"apothek/internal/domain/inventory"
)

const stockItemsTable = "stock_items"

var stockItemColumns = ExtractDBColumns[inventory.StockItem]()

// InventoryRepo implements inventory.Repository.
type InventoryRepo struct {
	txm     *TxManager
	builder squirrel.StatementBuilderType
}

// NewInventoryRepo creates the stock item repository.
func NewInventoryRepo(txm *TxManager) *InventoryRepo {
	return &InventoryRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new stock item.
func (r *InventoryRepo) Create(ctx context.Context, item *inventory.StockItem) error {
	q := r.builder.Insert(stockItemsTable).
		Columns(stockItemColumns...).
		Values(
			item.ID, item.BranchID, item.Name, item.UnitPrice, item.QuantityOnHand,
			item.ExpiryDate, item.CreatedAt, item.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert stock item: %w", err)
	}
	return nil
}

// GetByID retrieves an item scoped to a branch.
func (r *InventoryRepo) GetByID(ctx context.Context, branchID string, itemID id.ID) (*inventory.StockItem, error) {
	q := r.builder.Select(stockItemColumns...).
		From(stockItemsTable).
		Where(squirrel.Eq{"id": itemID, "branch_id": branchID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var item inventory.StockItem
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &item, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("stock item", itemID)
		}
		return nil, fmt.Errorf("get stock item: %w", err)
	}
	return &item, nil
}

// GetForUpdate retrieves an item with a pessimistic row lock. The branch
// predicate makes a foreign branch's item indistinguishable from a missing
// one.
func (r *InventoryRepo) GetForUpdate(ctx context.Context, branchID string, itemID id.ID) (*inventory.StockItem, error) {
	sql := `
		SELECT id, branch_id, name, unit_price, quantity_on_hand,
		       expiry_date, created_at, updated_at
		FROM stock_items
		WHERE id = $1 AND branch_id = $2
		FOR UPDATE
	`

	var item inventory.StockItem
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &item, sql, itemID, branchID); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("stock item", itemID)
		}
		return nil, fmt.Errorf("get stock item for update: %w", err)
	}
	return &item, nil
}

// AdjustQuantity applies a signed delta to quantity_on_hand.
func (r *InventoryRepo) AdjustQuantity(ctx context.Context, branchID string, itemID id.ID, delta int) error {
	q := r.builder.Update(stockItemsTable).
		Set("quantity_on_hand", squirrel.Expr("quantity_on_hand + ?", delta)).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": itemID, "branch_id": branchID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("adjust quantity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("stock item", itemID)
	}
	return nil
}

// ListByBranch retrieves all items of a branch.
func (r *InventoryRepo) ListByBranch(ctx context.Context, branchID string, filter domain.ListFilter) (domain.ListResult[*inventory.StockItem], error) {
	result := domain.ListResult[*inventory.StockItem]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.builder.Select(stockItemColumns...).
		From(stockItemsTable).
		Where(squirrel.Eq{"branch_id": branchID})

	countQ := r.builder.Select("COUNT(*)").
		From(stockItemsTable).
		Where(squirrel.Eq{"branch_id": branchID})
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	orderBy := "name"
	if filter.OrderBy != "" {
		orderBy = filter.OrderBy
	}
	q = q.OrderBy(orderBy)

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("select stock items: %w", err)
	}
	return result, nil
}
