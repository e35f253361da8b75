package refund

import (
	"context"

	"apothek/internal/core/id"
)

// Repository defines storage operations for return requests and refunds.
// Writes resolve the active transaction from context.
type Repository interface {
	// CreateReturn inserts a new return request
	CreateReturn(ctx context.Context, r *ReturnRequest) error

	// GetReturn retrieves a return request by ID, or nil when absent
	GetReturn(ctx context.Context, returnID id.ID) (*ReturnRequest, error)

	// CloseReturn transitions a return request to completed
	CloseReturn(ctx context.Context, returnID id.ID) error

	// GetRefundByReturn returns the refund issued for a return, or nil when none
	GetRefundByReturn(ctx context.Context, returnID id.ID) (*Refund, error)

	// CreateRefund inserts the refund row. The UNIQUE constraint on
	// return_id backs the at-most-one-refund invariant under concurrency.
	CreateRefund(ctx context.Context, r *Refund) error
}
