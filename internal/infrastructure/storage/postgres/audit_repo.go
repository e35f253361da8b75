package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"apothek/internal/domain"
	"apothek/internal/domain/audit"
)

const auditEntriesTable = "audit_entries"

var auditColumns = ExtractDBColumns[audit.Entry]()

// AuditRepo implements audit.Repository. The table is append-only: this
// repository exposes no update or delete.
type AuditRepo struct {
	txm     *TxManager
	builder squirrel.StatementBuilderType
}

// NewAuditRepo creates the audit trail repository.
func NewAuditRepo(txm *TxManager) *AuditRepo {
	return &AuditRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Insert appends one entry inside the caller's transaction.
func (r *AuditRepo) Insert(ctx context.Context, entry *audit.Entry) error {
	q := r.builder.Insert(auditEntriesTable).
		Columns(auditColumns...).
		Values(
			entry.ID, entry.BranchID, entry.ActorUserID, entry.ActionType,
			entry.EntityType, entry.EntityID, entry.Description,
			entry.Details, entry.DetailsCompressed, entry.CompressionAlgo,
			entry.CreatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// List retrieves entries for a branch with optional filters.
func (r *AuditRepo) List(ctx context.Context, branchID string, filter audit.ListFilter) (domain.ListResult[*audit.Entry], error) {
	result := domain.ListResult[*audit.Entry]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.buildListQuery(branchID, filter)

	countQ := r.builder.Select("COUNT(*)").FromSelect(q, "sub")
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	orderBy := "created_at DESC"
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
		return result, fmt.Errorf("select audit entries: %w", err)
	}
	return result, nil
}

func (r *AuditRepo) buildListQuery(branchID string, filter audit.ListFilter) squirrel.SelectBuilder {
	q := r.builder.Select(auditColumns...).
		From(auditEntriesTable).
		Where(squirrel.Eq{"branch_id": branchID})

	if filter.ActionType != nil {
		q = q.Where(squirrel.Eq{"action_type": *filter.ActionType})
	}
	if filter.EntityType != nil {
		q = q.Where(squirrel.Eq{"entity_type": *filter.EntityType})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *filter.DateTo})
	}
	return q
}
