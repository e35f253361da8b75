package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"apothek/internal/core/apperror"
	"apothek/internal/core/id"
	"apothek/internal/core/types"
	"apothek/internal/domain/refund"
	"apothek/internal/domain/sale"
	"apothek/internal/infrastructure/http/v1/dto"
)

// RefundHandler handles HTTP requests for returns and refunds.
type RefundHandler struct {
	*BaseHandler
	service *refund.Service
}

// NewRefundHandler creates a new refund handler.
func NewRefundHandler(base *BaseHandler, service *refund.Service) *RefundHandler {
	return &RefundHandler{BaseHandler: base, service: service}
}

// FlagReturn flags a completed sale for return.
// POST /api/v1/sales/:id/returns
func (h *RefundHandler) FlagReturn(c *gin.Context) {
	ctx := c.Request.Context()

	saleID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.FlagReturnRequest
	if c.Request.ContentLength > 0 && !h.BindJSON(c, &req) {
		return
	}

	ret, err := h.service.FlagReturn(ctx, h.GetBranchID(c), h.GetUserID(c), saleID, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromReturn(ret))
}

// IssueRefund issues the refund for a flagged return.
// POST /api/v1/returns/:id/refund
func (h *RefundHandler) IssueRefund(c *gin.Context) {
	ctx := c.Request.Context()

	returnID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.IssueRefundRequest
	if !h.BindJSON(c, &req) {
		return
	}

	saleID, err := id.Parse(req.SaleID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid sale id").WithDetail("saleId", req.SaleID))
		return
	}

	amount, err := types.NewMoneyFromString(req.Amount)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid amount").WithDetail("amount", req.Amount))
		return
	}

	issued, err := h.service.ProcessRefund(
		ctx,
		h.GetBranchID(c),
		h.GetUserID(c),
		saleID,
		returnID,
		amount,
		sale.PaymentMethod(req.Method),
		req.Notes,
	)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromRefund(issued))
}

// RegisterSaleRoutes registers return routes nested under sales.
func (h *RefundHandler) RegisterSaleRoutes(rg *gin.RouterGroup) {
	rg.POST("/:id/returns", h.FlagReturn)
}

// RegisterRoutes registers refund routes.
func (h *RefundHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/:id/refund", h.IssueRefund)
}
