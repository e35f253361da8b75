// Package main is the entry point for the Apothek API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"apothek/internal/domain/audit"
	"apothek/internal/domain/auth"
	"apothek/internal/domain/inventory"
	"apothek/internal/domain/refund"
	"apothek/internal/domain/sale"
	"apothek/internal/infrastructure/cache"
	v1 "apothek/internal/infrastructure/http/v1"
	"apothek/internal/infrastructure/numerator"
	"apothek/internal/infrastructure/storage/postgres"
	"apothek/pkg/logger"
)

func main() {
	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting apothek server")

	// --- Database connection ---
	poolCfg := postgres.DefaultPoolConfig(mustEnv("DATABASE_URL"))
	if maxConns := getEnvInt("DB_MAX_CONNS", 25); maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Stock cache ---
	var stockCache inventory.StockCache = inventory.NoopStockCache{}
	if redisAddr := getEnv("REDIS_ADDR", ""); redisAddr != "" {
		redisCache := cache.NewRedisStockCache(
			redisAddr,
			getEnv("REDIS_PASSWORD", ""),
			getEnvInt("REDIS_DB", 0),
		)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warnw("redis unavailable, stock cache disabled", "error", err)
		} else {
			defer redisCache.Close()
			stockCache = redisCache
			log.Infow("stock cache enabled", "addr", redisAddr)
		}
	}

	// --- Repositories ---
	inventoryRepo := postgres.NewInventoryRepo(txManager)
	saleRepo := postgres.NewSaleRepo(txManager)
	refundRepo := postgres.NewRefundRepo(txManager)
	auditRepo := postgres.NewAuditRepo(txManager)

	// --- Domain services ---
	auditService, err := audit.NewService(auditRepo)
	if err != nil {
		log.Fatalw("failed to initialize audit service", "error", err)
	}

	inventoryService := inventory.NewService(inventoryRepo, txManager, auditService, stockCache)
	numeratorService := numerator.New(pool.Pool)
	saleBuilder := sale.NewBuilder(inventoryService)
	saleService := sale.NewService(saleRepo, saleBuilder, inventoryService, auditService, numeratorService, txManager)
	refundService := refund.NewService(refundRepo, saleRepo, auditService, txManager)

	// --- JWT Service ---
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(mustEnv("JWT_SECRET")))

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:             pool,
		Logger:           log,
		JWTValidator:     jwtService,
		SaleService:      saleService,
		RefundService:    refundService,
		InventoryService: inventoryService,
		AuditService:     auditService,
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
