package sale

import (
	"context"
	"time"

	"apothek/internal/core/id"
	"apothek/internal/core/types"
	"apothek/internal/domain"
)

// Repository defines storage operations for sales, lines and payments.
// All writes resolve the active transaction from context; nothing here
// commits independently of the coordinator.
type Repository interface {
	// Create inserts the sale header
	Create(ctx context.Context, s *Sale) error

	// SaveLines inserts the line items of a sale
	SaveLines(ctx context.Context, saleID id.ID, lines []LineItem) error

	// GetByID retrieves a sale header scoped to a branch
	GetByID(ctx context.Context, branchID string, saleID id.ID) (*Sale, error)

	// GetForUpdate retrieves the sale header with a row lock, serializing
	// payment upserts and refund issuance against the same sale
	GetForUpdate(ctx context.Context, branchID string, saleID id.ID) (*Sale, error)

	// GetLines retrieves the line items of a sale
	GetLines(ctx context.Context, saleID id.ID) ([]LineItem, error)

	// UpdateStatus transitions the sale status
	UpdateStatus(ctx context.Context, saleID id.ID, status Status) error

	// GetPayment returns the payment of a sale, or nil when none exists
	GetPayment(ctx context.Context, saleID id.ID) (*Payment, error)

	// UpsertPayment inserts the payment or, when one already exists for the
	// sale, updates it in place keeping the original payment ID. The stored
	// ID is written back to p.
	UpsertPayment(ctx context.Context, p *Payment) error

	// SumRefundedBySale totals committed refunds across the sale's returns
	SumRefundedBySale(ctx context.Context, saleID id.ID) (types.Money, error)

	// List retrieves sale headers for a branch
	List(ctx context.Context, branchID string, filter ListFilter) (domain.ListResult[*Sale], error)
}

// ListFilter narrows sale listings.
type ListFilter struct {
	domain.ListFilter

	Status   *Status
	DateFrom *time.Time
	DateTo   *time.Time
}
