package dto

import (
	"time"

	"apothek/internal/core/apperror"
	"apothek/internal/core/id"
	"apothek/internal/domain/sale"
)

// --- Request DTOs ---

// CreateSaleRequest commits a cart as a sale. Pricing is never taken from
// the request; unit prices are resolved server-side at commit time.
type CreateSaleRequest struct {
	CustomerName  string            `json:"customerName,omitempty"`
	PaymentMethod string            `json:"paymentMethod" binding:"required"`
	Lines         []CartLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// CartLineRequest is one requested cart line.
type CartLineRequest struct {
	ItemID   string `json:"itemId" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
}

// ToCart converts request lines into domain cart lines.
func (r *CreateSaleRequest) ToCart() ([]sale.CartLine, error) {
	cart := make([]sale.CartLine, 0, len(r.Lines))
	for _, line := range r.Lines {
		itemID, err := id.Parse(line.ItemID)
		if err != nil {
			return nil, apperror.NewValidation("invalid item id").
				WithDetail("itemId", line.ItemID)
		}
		cart = append(cart, sale.CartLine{ItemID: itemID, Quantity: line.Quantity})
	}
	return cart, nil
}

// RecordPaymentRequest settles a pending sale or corrects the payment
// record of a completed one.
type RecordPaymentRequest struct {
	Method          string `json:"method" binding:"required"`
	ReferenceNumber string `json:"referenceNumber,omitempty"`
}

// --- Response DTOs ---

type SaleResponse struct {
	ID              string             `json:"id"`
	ReceiptNumber   string             `json:"receiptNumber,omitempty"`
	BranchID        string             `json:"branchId"`
	CreatedByUserID string             `json:"createdByUserId"`
	CustomerName    string             `json:"customerName,omitempty"`
	TotalAmount     string             `json:"totalAmount"`
	Status          string             `json:"status"`
	RefundStatus    string             `json:"refundStatus,omitempty"`
	SaleDate        time.Time          `json:"saleDate"`
	CreatedAt       time.Time          `json:"createdAt"`
	Lines           []SaleLineResponse `json:"lines,omitempty"`
	Payment         *PaymentResponse   `json:"payment,omitempty"`
}

type SaleLineResponse struct {
	ID              string `json:"id"`
	ItemID          string `json:"itemId"`
	Quantity        int    `json:"quantity"`
	UnitPriceAtSale string `json:"unitPriceAtSale"`
	Subtotal        string `json:"subtotal"`
}

type PaymentResponse struct {
	ID              string    `json:"id"`
	SaleID          string    `json:"saleId"`
	Method          string    `json:"method"`
	Amount          string    `json:"amount"`
	ReferenceNumber string    `json:"referenceNumber,omitempty"`
	PaidAt          time.Time `json:"paidAt"`
}

// FromSale creates SaleResponse from a sale.
func FromSale(s *sale.Sale) *SaleResponse {
	resp := &SaleResponse{
		ID:              s.ID.String(),
		ReceiptNumber:   s.ReceiptNumber,
		BranchID:        s.BranchID,
		CreatedByUserID: s.CreatedByUserID,
		CustomerName:    s.CustomerName,
		TotalAmount:     s.TotalAmount.StringFixed(2),
		Status:          string(s.Status),
		RefundStatus:    string(s.RefundStatus),
		SaleDate:        s.SaleDate,
		CreatedAt:       s.CreatedAt,
	}

	if len(s.Lines) > 0 {
		resp.Lines = make([]SaleLineResponse, len(s.Lines))
		for i, line := range s.Lines {
			resp.Lines[i] = SaleLineResponse{
				ID:              line.ID.String(),
				ItemID:          line.ItemID.String(),
				Quantity:        line.Quantity,
				UnitPriceAtSale: line.UnitPriceAtSale.StringFixed(2),
				Subtotal:        line.Subtotal.StringFixed(2),
			}
		}
	}

	if s.Payment != nil {
		resp.Payment = FromPayment(s.Payment)
	}

	return resp
}

// FromPayment creates PaymentResponse from a payment.
func FromPayment(p *sale.Payment) *PaymentResponse {
	return &PaymentResponse{
		ID:              p.ID.String(),
		SaleID:          p.SaleID.String(),
		Method:          string(p.Method),
		Amount:          p.Amount.StringFixed(2),
		ReferenceNumber: p.ReferenceNumber,
		PaidAt:          p.PaidAt,
	}
}

type SaleListResponse struct {
	Items      []*SaleResponse `json:"items"`
	TotalCount int             `json:"totalCount"`
	Limit      int             `json:"limit"`
	Offset     int             `json:"offset"`
}
