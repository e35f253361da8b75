package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"apothek/internal/core/apperror"
	"apothek/internal/core/id"
	"apothek/internal/core/types"
	"apothek/internal/domain"
	"apothek/internal/domain/sale"
)

const (
	salesTable         = "sales"
	saleLineItemsTable = "sale_line_items"
	paymentsTable      = "payments"
)

var saleColumns = ExtractDBColumns[sale.Sale]()

// SaleRepo implements sale.Repository.
type SaleRepo struct {
	txm     *TxManager
	builder squirrel.StatementBuilderType
}

// NewSaleRepo creates the sale repository.
func NewSaleRepo(txm *TxManager) *SaleRepo {
	return &SaleRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts the sale header.
func (r *SaleRepo) Create(ctx context.Context, s *sale.Sale) error {
	q := r.builder.Insert(salesTable).
		Columns(saleColumns...).
		Values(
			s.ID, s.ReceiptNumber, s.BranchID, s.CreatedByUserID, s.CustomerName,
			s.TotalAmount, s.Status, s.SaleDate, s.CreatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	return nil
}

// SaveLines inserts the line items of a sale.
func (r *SaleRepo) SaveLines(ctx context.Context, saleID id.ID, lines []sale.LineItem) error {
	if len(lines) == 0 {
		return nil
	}

	q := r.builder.Insert(saleLineItemsTable).
		Columns("id", "sale_id", "item_id", "quantity", "unit_price_at_sale", "subtotal")

	for _, line := range lines {
		q = q.Values(line.ID, saleID, line.ItemID, line.Quantity, line.UnitPriceAtSale, line.Subtotal)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert lines: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert lines: %w", err)
	}
	return nil
}

// GetByID retrieves a sale header scoped to a branch.
func (r *SaleRepo) GetByID(ctx context.Context, branchID string, saleID id.ID) (*sale.Sale, error) {
	q := r.builder.Select(saleColumns...).
		From(salesTable).
		Where(squirrel.Eq{"id": saleID, "branch_id": branchID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var s sale.Sale
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &s, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("sale", saleID)
		}
		return nil, fmt.Errorf("get sale: %w", err)
	}
	return &s, nil
}

// GetForUpdate retrieves the sale header with a row lock.
func (r *SaleRepo) GetForUpdate(ctx context.Context, branchID string, saleID id.ID) (*sale.Sale, error) {
	sql := `
		SELECT id, receipt_number, branch_id, created_by_user_id, customer_name,
		       total_amount, status, sale_date, created_at
		FROM sales
		WHERE id = $1 AND branch_id = $2
		FOR UPDATE
	`

	var s sale.Sale
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &s, sql, saleID, branchID); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("sale", saleID)
		}
		return nil, fmt.Errorf("get sale for update: %w", err)
	}
	return &s, nil
}

// GetLines retrieves the line items of a sale.
func (r *SaleRepo) GetLines(ctx context.Context, saleID id.ID) ([]sale.LineItem, error) {
	q := r.builder.Select("id", "sale_id", "item_id", "quantity", "unit_price_at_sale", "subtotal").
		From(saleLineItemsTable).
		Where(squirrel.Eq{"sale_id": saleID}).
		OrderBy("id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []sale.LineItem
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	return lines, nil
}

// UpdateStatus transitions the sale status.
func (r *SaleRepo) UpdateStatus(ctx context.Context, saleID id.ID, status sale.Status) error {
	q := r.builder.Update(salesTable).
		Set("status", status).
		Where(squirrel.Eq{"id": saleID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("sale", saleID)
	}
	return nil
}

// GetPayment returns the payment of a sale, or nil when none exists.
func (r *SaleRepo) GetPayment(ctx context.Context, saleID id.ID) (*sale.Payment, error) {
	q := r.builder.Select("id", "sale_id", "method", "amount", "reference_number", "paid_at").
		From(paymentsTable).
		Where(squirrel.Eq{"sale_id": saleID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p sale.Payment
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return &p, nil
}

// UpsertPayment inserts the payment or updates the existing row for the
// sale in place. The UNIQUE constraint on sale_id enforces at-most-one
// payment per sale even under concurrent recording; the stored row keeps
// its original ID, which is written back to p.
func (r *SaleRepo) UpsertPayment(ctx context.Context, p *sale.Payment) error {
	sql := `
		INSERT INTO payments (id, sale_id, method, amount, reference_number, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (sale_id) DO UPDATE SET
			method = EXCLUDED.method,
			amount = EXCLUDED.amount,
			reference_number = EXCLUDED.reference_number,
			paid_at = EXCLUDED.paid_at
		RETURNING id
	`

	err := r.txm.GetQuerier(ctx).
		QueryRow(ctx, sql, p.ID, p.SaleID, p.Method, p.Amount, p.ReferenceNumber, p.PaidAt).
		Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("upsert payment: %w", err)
	}
	return nil
}

// SumRefundedBySale totals committed refunds across the sale's returns.
func (r *SaleRepo) SumRefundedBySale(ctx context.Context, saleID id.ID) (types.Money, error) {
	sql := `
		SELECT COALESCE(SUM(r.amount), 0)
		FROM refunds r
		JOIN return_requests rr ON rr.id = r.return_id
		WHERE rr.sale_id = $1
	`

	var total types.Money
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, saleID).Scan(&total); err != nil {
		return types.Zero(), fmt.Errorf("sum refunds: %w", err)
	}
	return total, nil
}

// List retrieves sale headers for a branch.
func (r *SaleRepo) List(ctx context.Context, branchID string, filter sale.ListFilter) (domain.ListResult[*sale.Sale], error) {
	result := domain.ListResult[*sale.Sale]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.builder.Select(saleColumns...).
		From(salesTable).
		Where(squirrel.Eq{"branch_id": branchID})

	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"sale_date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"sale_date": *filter.DateTo})
	}

	countQ := r.builder.Select("COUNT(*)").FromSelect(q, "sub")
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	orderBy := "sale_date DESC"
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
		return result, fmt.Errorf("select sales: %w", err)
	}
	return result, nil
}
