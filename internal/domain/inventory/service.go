package inventory

import (
	"context"
	"fmt"
	"time"

	"apothek/internal/core/apperror"
	"apothek/internal/core/id"
	"apothek/internal/core/tx"
	"apothek/internal/core/types"
	"apothek/internal/domain"
	"apothek/internal/domain/audit"
	"apothek/pkg/logger"
)

// stockCacheTTL bounds staleness of the cached branch stock listing.
const stockCacheTTL = 30 * time.Second

// Service is the inventory ledger. Reserve and Release participate in the
// caller's transaction; the standalone operations (CreateItem, Receive)
// open their own.
type Service struct {
	repo      Repository
	txManager tx.Manager
	auditor   *audit.Service
	cache     StockCache
}

// NewService creates the ledger service.
func NewService(repo Repository, txManager tx.Manager, auditor *audit.Service, cache StockCache) *Service {
	if cache == nil {
		cache = NoopStockCache{}
	}
	return &Service{
		repo:      repo,
		txManager: txManager,
		auditor:   auditor,
		cache:     cache,
	}
}

// Reserve decrements stock for one line of a sale and returns the
// authoritative unit price at the moment of reservation.
//
// It must run inside the coordinator's transaction: the row is locked with
// SELECT ... FOR UPDATE before the quantity check, so two concurrent sales
// against the same item serialize and can never decrement past zero.
func (s *Service) Reserve(ctx context.Context, branchID string, itemID id.ID, quantity int) (types.Money, error) {
	if quantity <= 0 {
		return types.Zero(), apperror.NewValidation("quantity must be positive").
			WithDetail("item_id", itemID)
	}

	item, err := s.repo.GetForUpdate(ctx, branchID, itemID)
	if err != nil {
		return types.Zero(), err
	}

	if item.QuantityOnHand < quantity {
		return types.Zero(), apperror.NewInsufficientStock(itemID.String(), quantity, item.QuantityOnHand)
	}

	if err := s.repo.AdjustQuantity(ctx, branchID, itemID, -quantity); err != nil {
		return types.Zero(), fmt.Errorf("decrement stock: %w", err)
	}

	return item.UnitPrice, nil
}

// Release is the compensating increment for a reservation. With a single
// transaction around the whole sale it is not needed on abort (rollback
// undoes the decrement); it exists for callers that reserve outside a
// shared transaction.
func (s *Service) Release(ctx context.Context, branchID string, itemID id.ID, quantity int) error {
	if quantity <= 0 {
		return apperror.NewValidation("quantity must be positive").
			WithDetail("item_id", itemID)
	}

	if _, err := s.repo.GetForUpdate(ctx, branchID, itemID); err != nil {
		return err
	}
	return s.repo.AdjustQuantity(ctx, branchID, itemID, quantity)
}

// CreateItem registers a new stock item for the branch.
func (s *Service) CreateItem(ctx context.Context, actorUserID string, item *StockItem) error {
	if err := item.Validate(ctx); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, item); err != nil {
			return fmt.Errorf("create stock item: %w", err)
		}
		return s.auditor.RecordAction(ctx,
			item.BranchID, actorUserID,
			audit.ActionStockCreated, audit.EntityStockItem, item.ID,
			fmt.Sprintf("stock item %q created with quantity %d", item.Name, item.QuantityOnHand),
			map[string]any{"quantity": item.QuantityOnHand, "unit_price": item.UnitPrice},
		)
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, item.BranchID)
	logger.Info(ctx, "stock item created", "item_id", item.ID, "branch_id", item.BranchID)
	return nil
}

// Receive increments stock for a delivery (goods receipt).
func (s *Service) Receive(ctx context.Context, branchID, actorUserID string, itemID id.ID, quantity int) (*StockItem, error) {
	if quantity <= 0 {
		return nil, apperror.NewValidation("quantity must be positive").WithDetail("field", "quantity")
	}

	var item *StockItem
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		item, err = s.repo.GetForUpdate(ctx, branchID, itemID)
		if err != nil {
			return err
		}
		if err := s.repo.AdjustQuantity(ctx, branchID, itemID, quantity); err != nil {
			return fmt.Errorf("increment stock: %w", err)
		}
		item.QuantityOnHand += quantity

		return s.auditor.RecordAction(ctx,
			branchID, actorUserID,
			audit.ActionStockReceived, audit.EntityStockItem, itemID,
			fmt.Sprintf("received %d units of %q", quantity, item.Name),
			map[string]any{"quantity": quantity, "on_hand": item.QuantityOnHand},
		)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, branchID)
	logger.Info(ctx, "stock received", "item_id", itemID, "quantity", quantity)
	return item, nil
}

// GetItem returns a single stock item scoped to the branch.
func (s *Service) GetItem(ctx context.Context, branchID string, itemID id.ID) (*StockItem, error) {
	return s.repo.GetByID(ctx, branchID, itemID)
}

// ListBranchStock returns the branch's stock. The unfiltered first page is
// served from cache when available; anything else goes to the store.
func (s *Service) ListBranchStock(ctx context.Context, branchID string, filter domain.ListFilter) (domain.ListResult[*StockItem], error) {
	cacheable := filter.Offset == 0 && filter.OrderBy == "" && filter.Limit == 0
	if cacheable {
		filter = domain.DefaultListFilter()
		if items, ok, err := s.cache.Get(ctx, branchID); err == nil && ok {
			return domain.ListResult[*StockItem]{
				Items:      items,
				TotalCount: int64(len(items)),
				Limit:      filter.Limit,
				Offset:     0,
			}, nil
		} else if err != nil {
			logger.Warn(ctx, "stock cache read failed", "error", err)
		}
	}

	result, err := s.repo.ListByBranch(ctx, branchID, filter)
	if err != nil {
		return result, fmt.Errorf("list branch stock: %w", err)
	}

	if cacheable {
		if err := s.cache.Set(ctx, branchID, result.Items, stockCacheTTL); err != nil {
			logger.Warn(ctx, "stock cache write failed", "error", err)
		}
	}

	return result, nil
}

// InvalidateBranch drops the cached listing after stock changed outside
// this service (e.g. a committed sale).
func (s *Service) InvalidateBranch(ctx context.Context, branchID string) {
	s.invalidate(ctx, branchID)
}

func (s *Service) invalidate(ctx context.Context, branchID string) {
	if err := s.cache.Invalidate(ctx, branchID); err != nil {
		logger.Warn(ctx, "stock cache invalidation failed", "branch_id", branchID, "error", err)
	}
}
