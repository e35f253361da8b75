// Package inventory provides the per-branch stock ledger.
package inventory

import (
	"context"
	"time"

	"apothek/internal/core/apperror"
	"apothek/internal/core/id"
	"apothek/internal/core/types"
)

// StockItem is a medicine position owned by a single branch.
// QuantityOnHand is mutated only through the ledger's Reserve/Release/Receive
// operations and never goes below zero, including mid-transaction.
type StockItem struct {
	ID             id.ID       `db:"id" json:"id"`
	BranchID       string      `db:"branch_id" json:"branchId"`
	Name           string      `db:"name" json:"name"`
	UnitPrice      types.Money `db:"unit_price" json:"unitPrice"`
	QuantityOnHand int         `db:"quantity_on_hand" json:"quantityOnHand"`
	ExpiryDate     *time.Time  `db:"expiry_date" json:"expiryDate,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updatedAt"`
}

// NewStockItem creates a stock item for a branch.
func NewStockItem(branchID, name string, unitPrice types.Money, quantity int, expiry *time.Time) *StockItem {
	now := time.Now().UTC()
	return &StockItem{
		ID:             id.New(),
		BranchID:       branchID,
		Name:           name,
		UnitPrice:      unitPrice,
		QuantityOnHand: quantity,
		ExpiryDate:     expiry,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Validate checks invariants before persisting.
func (i *StockItem) Validate(ctx context.Context) error {
	if i.BranchID == "" {
		return apperror.NewValidation("branch is required").WithDetail("field", "branchId")
	}
	if i.Name == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if i.UnitPrice.IsNegative() {
		return apperror.NewValidation("unit price must not be negative").WithDetail("field", "unitPrice")
	}
	if i.QuantityOnHand < 0 {
		return apperror.NewValidation("quantity must not be negative").WithDetail("field", "quantityOnHand")
	}
	return nil
}
