package dto

import (
	"time"

	"apothek/internal/core/apperror"
	"apothek/internal/core/types"
	"apothek/internal/domain/inventory"
)

// --- Request DTOs ---

// CreateStockItemRequest registers a new item in a branch ledger.
type CreateStockItemRequest struct {
	Name       string     `json:"name" binding:"required"`
	UnitPrice  string     `json:"unitPrice" binding:"required"`
	Quantity   int        `json:"quantity" binding:"gte=0"`
	ExpiryDate *time.Time `json:"expiryDate,omitempty"`
}

// ToEntity converts the request into a stock item for the caller's branch.
func (r *CreateStockItemRequest) ToEntity(branchID string) (*inventory.StockItem, error) {
	price, err := types.NewMoneyFromString(r.UnitPrice)
	if err != nil {
		return nil, apperror.NewValidation("invalid unit price").
			WithDetail("unitPrice", r.UnitPrice)
	}

	return inventory.NewStockItem(branchID, r.Name, price, r.Quantity, r.ExpiryDate), nil
}

// ReceiveStockRequest adds received quantity to an existing item.
type ReceiveStockRequest struct {
	Quantity int `json:"quantity" binding:"required,gt=0"`
}

// --- Response DTOs ---

type StockItemResponse struct {
	ID             string     `json:"id"`
	BranchID       string     `json:"branchId"`
	Name           string     `json:"name"`
	UnitPrice      string     `json:"unitPrice"`
	QuantityOnHand int        `json:"quantityOnHand"`
	ExpiryDate     *time.Time `json:"expiryDate,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// FromStockItem creates StockItemResponse from a stock item.
func FromStockItem(item *inventory.StockItem) *StockItemResponse {
	return &StockItemResponse{
		ID:             item.ID.String(),
		BranchID:       item.BranchID,
		Name:           item.Name,
		UnitPrice:      item.UnitPrice.StringFixed(2),
		QuantityOnHand: item.QuantityOnHand,
		ExpiryDate:     item.ExpiryDate,
		CreatedAt:      item.CreatedAt,
		UpdatedAt:      item.UpdatedAt,
	}
}

type StockListResponse struct {
	Items      []*StockItemResponse `json:"items"`
	TotalCount int                  `json:"totalCount"`
	Limit      int                  `json:"limit"`
	Offset     int                  `json:"offset"`
}
