package sale

import (
	"context"
	"fmt"
	"time"

	"apothek/internal/core/apperror"
	"apothek/internal/core/id"
	"apothek/internal/core/numerator"
	"apothek/internal/core/tx"
	"apothek/internal/domain"
	"apothek/internal/domain/audit"
	"apothek/internal/domain/inventory"
	"apothek/pkg/logger"
)

// receiptPrefix is the official receipt series prefix.
const receiptPrefix = "OR"

// Service is the transaction coordinator: it executes CreateSale and
// RecordPayment as single database transactions. Stock reservation, the
// sale header and lines, the payment row and the audit entry commit
// together or not at all.
type Service struct {
	repo      Repository
	builder   *Builder
	ledger    *inventory.Service
	auditor   *audit.Service
	numbers   numerator.Generator
	txManager tx.Manager
}

// NewService creates the coordinator.
func NewService(repo Repository, builder *Builder, ledger *inventory.Service, auditor *audit.Service, numbers numerator.Generator, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		builder:   builder,
		ledger:    ledger,
		auditor:   auditor,
		numbers:   numbers,
		txManager: txManager,
	}
}

// CreateSale converts a cart into a committed sale: reserves stock per
// line, persists the sale with its lines, records the payment for the full
// total and writes one audit entry. A failure at any step aborts the whole
// unit of work; no partial stock decrement is ever visible.
func (s *Service) CreateSale(
	ctx context.Context,
	branchID, userID string,
	cart []CartLine,
	method PaymentMethod,
	customerName string,
) (*Sale, error) {
	if !ValidPaymentMethod(method) {
		return nil, apperror.NewValidation("unknown payment method").
			WithDetail("field", "paymentMethod").WithDetail("value", string(method))
	}
	if err := s.builder.ValidateCart(cart); err != nil {
		return nil, err
	}

	// Receipt number is drawn outside the transaction; a rollback leaves a
	// gap in the series but never a duplicate.
	receiptNumber, err := s.numbers.GetNextNumber(ctx,
		numerator.DefaultConfig(receiptPrefix), nil, branchID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("next receipt number: %w", err)
	}

	var committed *Sale
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		draft, err := s.builder.Build(ctx, branchID, userID, cart)
		if err != nil {
			return err
		}
		draft.ReceiptNumber = receiptNumber
		draft.CustomerName = customerName
		draft.Status = StatusCompleted

		if err := s.repo.Create(ctx, draft); err != nil {
			return fmt.Errorf("create sale: %w", err)
		}
		if err := s.repo.SaveLines(ctx, draft.ID, draft.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}

		payment := &Payment{
			ID:     id.New(),
			SaleID: draft.ID,
			Method: method,
			Amount: draft.TotalAmount,
			PaidAt: time.Now().UTC(),
		}
		if err := s.repo.UpsertPayment(ctx, payment); err != nil {
			return fmt.Errorf("record payment: %w", err)
		}
		draft.Payment = payment

		if err := s.auditor.RecordAction(ctx,
			branchID, userID,
			audit.ActionSaleCreated, audit.EntitySale, draft.ID,
			fmt.Sprintf("sale of %d line(s) for %s paid by %s", len(draft.Lines), draft.TotalAmount.String(), method),
			map[string]any{
				"receipt_number": draft.ReceiptNumber,
				"total_amount":   draft.TotalAmount.String(),
				"payment_method": method,
				"line_count":     len(draft.Lines),
			},
		); err != nil {
			return err
		}

		committed = draft
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.ledger.InvalidateBranch(ctx, branchID)
	committed.RefundStatus = RefundNone

	logger.Info(ctx, "sale created",
		"sale_id", committed.ID,
		"total", committed.TotalAmount.String(),
		"lines", len(committed.Lines),
	)
	return committed, nil
}

// RecordPayment settles a sale. An existing payment is updated in place
// (method, reference, timestamp) rather than duplicated, and a pending sale
// transitions to completed in the same transaction.
func (s *Service) RecordPayment(
	ctx context.Context,
	branchID, userID string,
	saleID id.ID,
	method PaymentMethod,
	referenceNumber string,
) (*Payment, error) {
	if !ValidPaymentMethod(method) {
		return nil, apperror.NewValidation("unknown payment method").
			WithDetail("field", "method").WithDetail("value", string(method))
	}

	var payment *Payment
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		sl, err := s.repo.GetForUpdate(ctx, branchID, saleID)
		if err != nil {
			return err
		}

		payment = &Payment{
			ID:              id.New(),
			SaleID:          sl.ID,
			Method:          method,
			Amount:          sl.TotalAmount,
			ReferenceNumber: referenceNumber,
			PaidAt:          time.Now().UTC(),
		}
		if err := s.repo.UpsertPayment(ctx, payment); err != nil {
			return fmt.Errorf("upsert payment: %w", err)
		}

		if sl.Status != StatusCompleted {
			if err := s.repo.UpdateStatus(ctx, sl.ID, StatusCompleted); err != nil {
				return fmt.Errorf("complete sale: %w", err)
			}
		}

		return s.auditor.RecordAction(ctx,
			branchID, userID,
			audit.ActionPaymentRecorded, audit.EntityPayment, payment.ID,
			fmt.Sprintf("payment of %s recorded for sale %s", payment.Amount.String(), sl.ID),
			map[string]any{
				"sale_id":          sl.ID,
				"method":           method,
				"reference_number": referenceNumber,
			},
		)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "payment recorded", "sale_id", saleID, "payment_id", payment.ID)
	return payment, nil
}

// GetSale returns a sale with lines, payment and derived refund status.
func (s *Service) GetSale(ctx context.Context, branchID string, saleID id.ID) (*Sale, error) {
	sl, err := s.repo.GetByID(ctx, branchID, saleID)
	if err != nil {
		return nil, err
	}

	lines, err := s.repo.GetLines(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	sl.Lines = lines

	payment, err := s.repo.GetPayment(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	sl.Payment = payment

	refunded, err := s.repo.SumRefundedBySale(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("sum refunds: %w", err)
	}
	sl.RefundStatus = DeriveRefundStatus(sl.TotalAmount, refunded)

	return sl, nil
}

// ListSales returns sale headers for the branch.
func (s *Service) ListSales(ctx context.Context, branchID string, filter ListFilter) (domain.ListResult[*Sale], error) {
	if filter.Limit <= 0 {
		filter.ListFilter = domain.DefaultListFilter()
	}
	return s.repo.List(ctx, branchID, filter)
}
