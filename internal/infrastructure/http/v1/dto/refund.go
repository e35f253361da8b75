package dto

import (
	"time"

	"apothek/internal/domain/refund"
)

// --- Request DTOs ---

// FlagReturnRequest flags a completed sale for return.
type FlagReturnRequest struct {
	Reason string `json:"reason,omitempty"`
}

// IssueRefundRequest issues the refund for a flagged return.
type IssueRefundRequest struct {
	SaleID string `json:"saleId" binding:"required"`
	Amount string `json:"amount" binding:"required"`
	Method string `json:"method" binding:"required"`
	Notes  string `json:"notes,omitempty"`
}

// --- Response DTOs ---

type ReturnResponse struct {
	ID        string    `json:"id"`
	SaleID    string    `json:"saleId"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// FromReturn creates ReturnResponse from a return request.
func FromReturn(r *refund.ReturnRequest) *ReturnResponse {
	return &ReturnResponse{
		ID:        r.ID.String(),
		SaleID:    r.SaleID.String(),
		Status:    string(r.Status),
		Reason:    r.Reason,
		CreatedAt: r.CreatedAt,
	}
}

type RefundResponse struct {
	ID             string    `json:"id"`
	ReturnID       string    `json:"returnId"`
	IssuedByUserID string    `json:"issuedByUserId"`
	Amount         string    `json:"amount"`
	Method         string    `json:"method"`
	Notes          string    `json:"notes,omitempty"`
	IssuedAt       time.Time `json:"issuedAt"`
}

// FromRefund creates RefundResponse from a refund.
func FromRefund(r *refund.Refund) *RefundResponse {
	return &RefundResponse{
		ID:             r.ID.String(),
		ReturnID:       r.ReturnID.String(),
		IssuedByUserID: r.IssuedByUserID,
		Amount:         r.Amount.StringFixed(2),
		Method:         string(r.Method),
		Notes:          r.Notes,
		IssuedAt:       r.IssuedAt,
	}
}
