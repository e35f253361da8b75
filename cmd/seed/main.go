// Package main provides a CLI tool for seeding the database with initial data.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"apothek/internal/core/id"
	"apothek/internal/core/types"
	"apothek/internal/infrastructure/storage/postgres"
	"apothek/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Connect to database
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	poolCfg := postgres.DefaultPoolConfig(dbURL)
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	branchID := os.Getenv("BRANCH_ID")
	if branchID == "" {
		branchID = "main"
	}

	if err := seedAdminAccount(ctx, pool, log, branchID); err != nil {
		log.Fatalw("failed to seed admin account", "error", err)
	}

	if os.Getenv("SEED_DEMO_DATA") == "true" {
		if err := seedDemoStock(ctx, pool, log, branchID); err != nil {
			log.Fatalw("failed to seed demo stock", "error", err)
		}
	}

	log.Info("seeding completed successfully")
}

func seedAdminAccount(ctx context.Context, pool *postgres.Pool, log *logger.Logger, branchID string) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	if adminEmail == "" {
		adminEmail = "admin@apothek.local"
	}

	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminPassword == "" {
		adminPassword = "Admin123!"
	}

	// Check if admin already exists
	var existingID id.ID
	err := pool.Pool.QueryRow(ctx,
		`SELECT id FROM staff_accounts WHERE email = $1`,
		adminEmail,
	).Scan(&existingID)
	if err == nil {
		log.Infow("admin account already exists", "email", adminEmail, "user_id", existingID)
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("check admin exists: %w", err)
	}

	// Hash password
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	userID := id.New()
	_, err = pool.Pool.Exec(ctx, `
		INSERT INTO staff_accounts (id, branch_id, email, password_hash, display_name, roles, created_at)
		VALUES ($1, $2, $3, $4, 'Administrator', '{admin}', $5)
	`, userID, branchID, adminEmail, string(passwordHash), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert admin account: %w", err)
	}

	log.Infow("admin account created", "email", adminEmail, "user_id", userID, "branch_id", branchID)
	return nil
}

func seedDemoStock(ctx context.Context, pool *postgres.Pool, log *logger.Logger, branchID string) error {
	items := []struct {
		name     string
		price    string
		quantity int
	}{
		{"Paracetamol 500mg (box of 100)", "185.00", 40},
		{"Amoxicillin 500mg (box of 100)", "420.00", 25},
		{"Cetirizine 10mg (box of 100)", "150.00", 30},
		{"Ibuprofen 200mg (box of 100)", "210.00", 20},
		{"Ascorbic Acid 500mg (bottle)", "95.00", 60},
		{"Salbutamol inhaler", "380.00", 12},
	}

	expiry := time.Now().AddDate(1, 6, 0)

	for _, it := range items {
		var existingID id.ID
		err := pool.Pool.QueryRow(ctx,
			`SELECT id FROM stock_items WHERE branch_id = $1 AND name = $2`,
			branchID, it.name,
		).Scan(&existingID)
		if err == nil {
			continue
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("check stock item: %w", err)
		}

		now := time.Now().UTC()
		_, err = pool.Pool.Exec(ctx, `
			INSERT INTO stock_items (id, branch_id, name, unit_price, quantity_on_hand, expiry_date, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		`, id.New(), branchID, it.name, types.MustMoney(it.price), it.quantity, expiry, now)
		if err != nil {
			return fmt.Errorf("insert stock item %q: %w", it.name, err)
		}
	}

	log.Infow("demo stock seeded", "branch_id", branchID, "items", len(items))
	return nil
}
