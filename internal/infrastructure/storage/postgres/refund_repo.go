package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"apothek/internal/core/apperror"
	"apothek/internal/core/id"
	"apothek/internal/domain/refund"
)

const (
	returnRequestsTable = "return_requests"
	refundsTable        = "refunds"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// RefundRepo implements refund.Repository.
type RefundRepo struct {
	txm     *TxManager
	builder squirrel.StatementBuilderType
}

// NewRefundRepo creates the return/refund repository.
func NewRefundRepo(txm *TxManager) *RefundRepo {
	return &RefundRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// CreateReturn inserts a new return request.
func (r *RefundRepo) CreateReturn(ctx context.Context, ret *refund.ReturnRequest) error {
	q := r.builder.Insert(returnRequestsTable).
		Columns("id", "sale_id", "status", "reason", "created_at").
		Values(ret.ID, ret.SaleID, ret.Status, ret.Reason, ret.CreatedAt)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert return request: %w", err)
	}
	return nil
}

// GetReturn retrieves a return request, or nil when absent.
func (r *RefundRepo) GetReturn(ctx context.Context, returnID id.ID) (*refund.ReturnRequest, error) {
	q := r.builder.Select("id", "sale_id", "status", "reason", "created_at").
		From(returnRequestsTable).
		Where(squirrel.Eq{"id": returnID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var ret refund.ReturnRequest
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &ret, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get return request: %w", err)
	}
	return &ret, nil
}

// CloseReturn transitions a return request to completed.
func (r *RefundRepo) CloseReturn(ctx context.Context, returnID id.ID) error {
	q := r.builder.Update(returnRequestsTable).
		Set("status", refund.ReturnCompleted).
		Where(squirrel.Eq{"id": returnID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("close return: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("return request", returnID)
	}
	return nil
}

// GetRefundByReturn returns the refund issued for a return, or nil when none.
func (r *RefundRepo) GetRefundByReturn(ctx context.Context, returnID id.ID) (*refund.Refund, error) {
	q := r.builder.Select("id", "return_id", "issued_by_user_id", "amount", "method", "notes", "issued_at").
		From(refundsTable).
		Where(squirrel.Eq{"return_id": returnID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rf refund.Refund
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &rf, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get refund: %w", err)
	}
	return &rf, nil
}

// CreateRefund inserts the refund row. A unique violation on return_id
// means another transaction issued the refund first.
func (r *RefundRepo) CreateRefund(ctx context.Context, rf *refund.Refund) error {
	q := r.builder.Insert(refundsTable).
		Columns("id", "return_id", "issued_by_user_id", "amount", "method", "notes", "issued_at").
		Values(rf.ID, rf.ReturnID, rf.IssuedByUserID, rf.Amount, rf.Method, rf.Notes, rf.IssuedAt)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperror.NewRefundAlreadyProcessed(rf.ReturnID)
		}
		return fmt.Errorf("insert refund: %w", err)
	}
	return nil
}
