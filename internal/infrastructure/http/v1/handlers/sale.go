package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"apothek/internal/core/apperror"
	"apothek/internal/core/id"
	"apothek/internal/domain"
	"apothek/internal/domain/sale"
	"apothek/internal/infrastructure/http/v1/dto"
)

// SaleHandler handles HTTP requests for sales and payments.
type SaleHandler struct {
	*BaseHandler
	service *sale.Service
}

// NewSaleHandler creates a new sale handler.
func NewSaleHandler(base *BaseHandler, service *sale.Service) *SaleHandler {
	return &SaleHandler{BaseHandler: base, service: service}
}

// Create commits a cart as a sale.
// POST /api/v1/sales
func (h *SaleHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	cart, err := req.ToCart()
	if err != nil {
		h.Error(c, err)
		return
	}

	committed, err := h.service.CreateSale(
		ctx,
		h.GetBranchID(c),
		h.GetUserID(c),
		cart,
		sale.PaymentMethod(req.PaymentMethod),
		req.CustomerName,
	)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromSale(committed))
}

// Get returns a sale with its lines, payment and refund status.
// GET /api/v1/sales/:id
func (h *SaleHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	saleID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	s, err := h.service.GetSale(ctx, h.GetBranchID(c), saleID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromSale(s))
}

// List returns sales for the caller's branch.
// GET /api/v1/sales
func (h *SaleHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := sale.ListFilter{
		ListFilter: domain.DefaultListFilter(),
	}
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.OrderBy = c.DefaultQuery("orderBy", "sale_date DESC")

	if status := c.Query("status"); status != "" {
		val := sale.Status(status)
		filter.Status = &val
	}

	if dateFrom := c.Query("dateFrom"); dateFrom != "" {
		if parsed, err := time.Parse(time.RFC3339, dateFrom); err == nil {
			filter.DateFrom = &parsed
		}
	}

	if dateTo := c.Query("dateTo"); dateTo != "" {
		if parsed, err := time.Parse(time.RFC3339, dateTo); err == nil {
			filter.DateTo = &parsed
		}
	}

	result, err := h.service.ListSales(ctx, h.GetBranchID(c), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]*dto.SaleResponse, len(result.Items))
	for i, s := range result.Items {
		items[i] = dto.FromSale(s)
	}

	h.OK(c, dto.SaleListResponse{
		Items:      items,
		TotalCount: int(result.TotalCount),
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// RecordPayment settles a sale.
// POST /api/v1/sales/:id/payment
func (h *SaleHandler) RecordPayment(c *gin.Context) {
	ctx := c.Request.Context()

	saleID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.RecordPaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	payment, err := h.service.RecordPayment(
		ctx,
		h.GetBranchID(c),
		h.GetUserID(c),
		saleID,
		sale.PaymentMethod(req.Method),
		req.ReferenceNumber,
	)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromPayment(payment))
}

// RegisterRoutes registers sale routes.
func (h *SaleHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/payment", h.RecordPayment)
}
