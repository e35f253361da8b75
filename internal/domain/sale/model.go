// Package sale provides the sale document and the transaction coordinator
// that commits carts against the inventory ledger.
package sale

import (
	"time"

	"apothek/internal/core/apperror"
	"apothek/internal/core/id"
	"apothek/internal/core/types"
)

// Status is the lifecycle state of a sale.
// completed is terminal; refund state lives on the return/refund entities.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// RefundStatus is derived at read time from committed refund totals.
// It is never persisted on the sale row.
type RefundStatus string

const (
	RefundNone    RefundStatus = "none"
	RefundPartial RefundStatus = "partial"
	RefundFull    RefundStatus = "full"
)

// PaymentMethod enumerates accepted tender types.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentGCash    PaymentMethod = "gcash"
)

// ValidPaymentMethod reports whether m is an accepted tender type.
func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer, PaymentGCash:
		return true
	}
	return false
}

// Sale is a committed point-of-sale transaction. Once completed it is
// immutable; TotalAmount always equals the exact sum of line subtotals.
type Sale struct {
	ID              id.ID       `db:"id" json:"id"`
	ReceiptNumber   string      `db:"receipt_number" json:"receiptNumber,omitempty"`
	BranchID        string      `db:"branch_id" json:"branchId"`
	CreatedByUserID string      `db:"created_by_user_id" json:"createdByUserId"`
	CustomerName    string      `db:"customer_name" json:"customerName,omitempty"`
	TotalAmount     types.Money `db:"total_amount" json:"totalAmount"`
	Status          Status      `db:"status" json:"status"`
	SaleDate        time.Time   `db:"sale_date" json:"saleDate"`
	CreatedAt       time.Time   `db:"created_at" json:"createdAt"`

	// Loaded separately
	Lines        []LineItem   `db:"-" json:"lines,omitempty"`
	Payment      *Payment     `db:"-" json:"payment,omitempty"`
	RefundStatus RefundStatus `db:"-" json:"refundStatus,omitempty"`
}

// LineItem is one priced cart line of a sale. UnitPriceAtSale is a snapshot
// taken under the stock row lock; later catalog price changes never alter
// historical sales.
type LineItem struct {
	ID              id.ID       `db:"id" json:"id"`
	SaleID          id.ID       `db:"sale_id" json:"saleId"`
	ItemID          id.ID       `db:"item_id" json:"itemId"`
	Quantity        int         `db:"quantity" json:"quantity"`
	UnitPriceAtSale types.Money `db:"unit_price_at_sale" json:"unitPriceAtSale"`
	Subtotal        types.Money `db:"subtotal" json:"subtotal"`
}

// Payment settles a sale. At most one payment row exists per sale;
// recording a second payment updates the existing row in place.
type Payment struct {
	ID              id.ID         `db:"id" json:"id"`
	SaleID          id.ID         `db:"sale_id" json:"saleId"`
	Method          PaymentMethod `db:"method" json:"method"`
	Amount          types.Money   `db:"amount" json:"amount"`
	ReferenceNumber string        `db:"reference_number" json:"referenceNumber,omitempty"`
	PaidAt          time.Time     `db:"paid_at" json:"paidAt"`
}

// DeriveRefundStatus classifies a sale by its committed refund total.
func DeriveRefundStatus(total, refunded types.Money) RefundStatus {
	switch {
	case refunded.IsZero():
		return RefundNone
	case refunded.GreaterThanOrEqual(total):
		return RefundFull
	default:
		return RefundPartial
	}
}

// checkTotals verifies the total reconciliation invariant before commit.
func (s *Sale) checkTotals() error {
	sum := types.Zero()
	for _, l := range s.Lines {
		sum = sum.Add(l.Subtotal)
	}
	if !sum.Equal(s.TotalAmount) {
		return apperror.NewInternal(nil).
			WithDetail("reason", "sale total does not reconcile with line subtotals").
			WithDetail("total", s.TotalAmount.String()).
			WithDetail("lines", sum.String())
	}
	return nil
}
