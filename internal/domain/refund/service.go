package refund

import (
	"context"
	"fmt"
	"time"

	"apothek/internal/core/apperror"
	"apothek/internal/core/id"
	"apothek/internal/core/tx"
	"apothek/internal/core/types"
	"apothek/internal/domain/audit"
	"apothek/internal/domain/sale"
	"apothek/pkg/logger"
)

// Service runs the return/refund workflow. ProcessRefund follows the same
// coordinator pattern as sale creation: one transaction covers the refund
// row, the return closure and the audit entry.
type Service struct {
	repo      Repository
	sales     sale.Repository
	auditor   *audit.Service
	txManager tx.Manager
}

// NewService creates the refund service.
func NewService(repo Repository, sales sale.Repository, auditor *audit.Service, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		sales:     sales,
		auditor:   auditor,
		txManager: txManager,
	}
}

// FlagReturn opens a return request against a committed sale of the branch.
func (s *Service) FlagReturn(ctx context.Context, branchID, actorUserID string, saleID id.ID, reason string) (*ReturnRequest, error) {
	var ret *ReturnRequest
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		sl, err := s.sales.GetByID(ctx, branchID, saleID)
		if err != nil {
			return err
		}
		if sl.Status != sale.StatusCompleted {
			return apperror.NewConflict("only completed sales can be returned").
				WithDetail("sale_id", saleID).WithDetail("status", string(sl.Status))
		}

		ret = NewReturnRequest(sl.ID, reason)
		if err := s.repo.CreateReturn(ctx, ret); err != nil {
			return fmt.Errorf("create return request: %w", err)
		}

		return s.auditor.RecordAction(ctx,
			branchID, actorUserID,
			audit.ActionReturnFlagged, audit.EntityReturn, ret.ID,
			fmt.Sprintf("return flagged for sale %s", sl.ID),
			map[string]any{"sale_id": sl.ID, "reason": reason},
		)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "return flagged", "return_id", ret.ID, "sale_id", saleID)
	return ret, nil
}

// ProcessRefund validates and issues the refund for an open return request,
// closing the request in the same unit of work.
//
// Validation order follows the workflow contract: sale ownership, return
// existence and state, amount, at-most-one refund, and the cumulative cap
// against the sale total. The sale row is locked first so two concurrent
// refunds against the same sale serialize on the cap check.
func (s *Service) ProcessRefund(
	ctx context.Context,
	branchID, actorUserID string,
	saleID, returnID id.ID,
	amount types.Money,
	method sale.PaymentMethod,
	notes string,
) (*Refund, error) {
	var issued *Refund
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		sl, err := s.sales.GetForUpdate(ctx, branchID, saleID)
		if err != nil {
			return err
		}

		ret, err := s.repo.GetReturn(ctx, returnID)
		if err != nil {
			return fmt.Errorf("get return: %w", err)
		}
		if ret == nil || ret.SaleID != sl.ID {
			return apperror.NewNotFound("return request", returnID)
		}
		if ret.Status != ReturnPending {
			return apperror.NewReturnAlreadyProcessed(returnID)
		}

		if !amount.IsPositive() {
			return apperror.NewValidation("refund amount must be positive").
				WithDetail("field", "amount").WithDetail("value", amount.String())
		}
		if !ValidRefundMethod(method) {
			return apperror.NewValidation("unknown refund method").
				WithDetail("field", "method").WithDetail("value", string(method))
		}

		existing, err := s.repo.GetRefundByReturn(ctx, returnID)
		if err != nil {
			return fmt.Errorf("get refund: %w", err)
		}
		if existing != nil {
			return apperror.NewRefundAlreadyProcessed(returnID)
		}

		refunded, err := s.sales.SumRefundedBySale(ctx, sl.ID)
		if err != nil {
			return fmt.Errorf("sum refunds: %w", err)
		}
		refundable := sl.TotalAmount.Sub(refunded)
		if amount.GreaterThan(refundable) {
			return apperror.NewRefundExceedsSale(sl.ID, amount.String(), refundable.String())
		}

		issued = &Refund{
			ID:             id.New(),
			ReturnID:       ret.ID,
			IssuedByUserID: actorUserID,
			Amount:         amount,
			Method:         method,
			Notes:          notes,
			IssuedAt:       time.Now().UTC(),
		}
		if err := s.repo.CreateRefund(ctx, issued); err != nil {
			return fmt.Errorf("create refund: %w", err)
		}
		if err := s.repo.CloseReturn(ctx, ret.ID); err != nil {
			return fmt.Errorf("close return: %w", err)
		}

		return s.auditor.RecordAction(ctx,
			branchID, actorUserID,
			audit.ActionRefundIssued, audit.EntityRefund, issued.ID,
			fmt.Sprintf("refund of %s issued for sale %s", amount.String(), sl.ID),
			map[string]any{
				"sale_id":   sl.ID,
				"return_id": ret.ID,
				"amount":    amount.String(),
				"method":    method,
			},
		)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "refund issued",
		"refund_id", issued.ID,
		"return_id", returnID,
		"amount", issued.Amount.String(),
	)
	return issued, nil
}

// ValidRefundMethod reports whether m is accepted for refunds.
// Refunds use the same tender types as payments.
func ValidRefundMethod(m sale.PaymentMethod) bool {
	return sale.ValidPaymentMethod(m)
}
