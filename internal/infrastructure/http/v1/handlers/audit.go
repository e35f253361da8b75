package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"apothek/internal/domain"
	"apothek/internal/domain/audit"
	"apothek/internal/infrastructure/http/v1/dto"
)

// AuditHandler handles HTTP requests for the audit trail.
type AuditHandler struct {
	*BaseHandler
	service *audit.Service
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(base *BaseHandler, service *audit.Service) *AuditHandler {
	return &AuditHandler{BaseHandler: base, service: service}
}

// List returns audit entries for the caller's branch, newest first.
// GET /api/v1/audit
func (h *AuditHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := audit.ListFilter{
		ListFilter: domain.DefaultListFilter(),
	}
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)
	filter.OrderBy = "created_at DESC"

	if action := c.Query("actionType"); action != "" {
		val := audit.ActionType(action)
		filter.ActionType = &val
	}

	if entity := c.Query("entityType"); entity != "" {
		val := audit.EntityType(entity)
		filter.EntityType = &val
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

	result, err := h.service.List(ctx, h.GetBranchID(c), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]*dto.AuditEntryResponse, len(result.Items))
	for i, entry := range result.Items {
		items[i] = dto.FromAuditEntry(entry)
	}

	h.OK(c, dto.AuditListResponse{
		Items:      items,
		TotalCount: int(result.TotalCount),
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// RegisterRoutes registers audit routes.
func (h *AuditHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
}
