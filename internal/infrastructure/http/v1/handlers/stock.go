package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"apothek/internal/core/apperror"
	"apothek/internal/core/id"
	"apothek/internal/domain"
	"apothek/internal/domain/inventory"
	"apothek/internal/infrastructure/http/v1/dto"
)

// StockHandler handles HTTP requests for the branch stock ledger.
type StockHandler struct {
	*BaseHandler
	service *inventory.Service
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, service *inventory.Service) *StockHandler {
	return &StockHandler{BaseHandler: base, service: service}
}

// Create registers a new stock item.
// POST /api/v1/stock
func (h *StockHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateStockItemRequest
	if !h.BindJSON(c, &req) {
		return
	}

	item, err := req.ToEntity(h.GetBranchID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.CreateItem(ctx, h.GetUserID(c), item); err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromStockItem(item))
}

// Get returns one stock item.
// GET /api/v1/stock/:id
func (h *StockHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	itemID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	item, err := h.service.GetItem(ctx, h.GetBranchID(c), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromStockItem(item))
}

// List returns the stock ledger for the caller's branch.
// GET /api/v1/stock
func (h *StockHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	// Zero filter lets the service serve the default page from cache.
	var filter domain.ListFilter
	filter.Limit = h.ParseIntQuery(c, "limit", 0)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.OrderBy = c.Query("orderBy")

	result, err := h.service.ListBranchStock(ctx, h.GetBranchID(c), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]*dto.StockItemResponse, len(result.Items))
	for i, item := range result.Items {
		items[i] = dto.FromStockItem(item)
	}

	h.OK(c, dto.StockListResponse{
		Items:      items,
		TotalCount: int(result.TotalCount),
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Receive adds received quantity to an item.
// POST /api/v1/stock/:id/receive
func (h *StockHandler) Receive(c *gin.Context) {
	ctx := c.Request.Context()

	itemID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format"))
		return
	}

	var req dto.ReceiveStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	item, err := h.service.Receive(ctx, h.GetBranchID(c), h.GetUserID(c), itemID, req.Quantity)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromStockItem(item))
}

// RegisterRoutes registers stock routes.
func (h *StockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/receive", h.Receive)
}
