// Package refund provides the return/refund workflow over committed sales.
package refund

import (
	"time"

	"apothek/internal/core/id"
	"apothek/internal/core/types"
	"apothek/internal/domain/sale"
)

// ReturnStatus is the lifecycle state of a return request.
// completed is terminal.
type ReturnStatus string

const (
	ReturnPending   ReturnStatus = "pending"
	ReturnCompleted ReturnStatus = "completed"
)

// ReturnRequest flags a committed sale for refund. It is created by staff
// and consumed by ProcessRefund, which closes it.
type ReturnRequest struct {
	ID        id.ID        `db:"id" json:"id"`
	SaleID    id.ID        `db:"sale_id" json:"saleId"`
	Status    ReturnStatus `db:"status" json:"status"`
	Reason    string       `db:"reason" json:"reason,omitempty"`
	CreatedAt time.Time    `db:"created_at" json:"createdAt"`
}

// NewReturnRequest flags a sale for return.
func NewReturnRequest(saleID id.ID, reason string) *ReturnRequest {
	return &ReturnRequest{
		ID:        id.New(),
		SaleID:    saleID,
		Status:    ReturnPending,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
}

// Refund is the money issued against a return request. At most one refund
// exists per return, and cumulative refunds across a sale's returns never
// exceed the sale total.
type Refund struct {
	ID             id.ID              `db:"id" json:"id"`
	ReturnID       id.ID              `db:"return_id" json:"returnId"`
	IssuedByUserID string             `db:"issued_by_user_id" json:"issuedByUserId"`
	Amount         types.Money        `db:"amount" json:"amount"`
	Method         sale.PaymentMethod `db:"method" json:"method"`
	Notes          string             `db:"notes" json:"notes,omitempty"`
	IssuedAt       time.Time          `db:"issued_at" json:"issuedAt"`
}
