// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"apothek/internal/domain/audit"
	"apothek/internal/domain/inventory"
	"apothek/internal/domain/refund"
	"apothek/internal/domain/sale"
	"apothek/internal/infrastructure/http/v1/handlers"
	"apothek/internal/infrastructure/http/v1/middleware"
	"apothek/internal/infrastructure/storage/postgres"
	"apothek/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Pool is the database connection pool (for health checks)
	Pool *postgres.Pool

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// Domain services
	SaleService      *sale.Service
	RefundService    *refund.Service
	InventoryService *inventory.Service
	AuditService     *audit.Service
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// API v1 - all endpoints are branch-scoped via the token
	apiV1 := router.Group("/api/v1")
	apiV1.Use(middleware.Auth(cfg.JWTValidator))
	{
		baseHandler := handlers.NewBaseHandler()

		saleHandler := handlers.NewSaleHandler(baseHandler, cfg.SaleService)
		refundHandler := handlers.NewRefundHandler(baseHandler, cfg.RefundService)
		stockHandler := handlers.NewStockHandler(baseHandler, cfg.InventoryService)
		auditHandler := handlers.NewAuditHandler(baseHandler, cfg.AuditService)

		sales := apiV1.Group("/sales")
		saleHandler.RegisterRoutes(sales)
		refundHandler.RegisterSaleRoutes(sales)

		refundHandler.RegisterRoutes(apiV1.Group("/returns"))
		stockHandler.RegisterRoutes(apiV1.Group("/stock"))
		auditHandler.RegisterRoutes(apiV1.Group("/audit"))
	}

	return router
}
