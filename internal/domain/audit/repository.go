package audit

import (
	"context"
	"time"

	"apothek/internal/domain"
)

// Repository defines storage operations for audit entries.
// Insert resolves the active transaction from context so that an entry
// commits or rolls back together with the action it describes.
// There is no update or delete: the trail is append-only.
type Repository interface {
	Insert(ctx context.Context, entry *Entry) error
	List(ctx context.Context, branchID string, filter ListFilter) (domain.ListResult[*Entry], error)
}

// ListFilter narrows the audit trail query.
type ListFilter struct {
	domain.ListFilter

	ActionType *ActionType
	EntityType *EntityType
	DateFrom   *time.Time
	DateTo     *time.Time
}
