package sale

import (
	"context"
	"sort"
	"time"

	"apothek/internal/core/apperror"
	"apothek/internal/core/id"
	"apothek/internal/core/types"
	"apothek/internal/domain/inventory"
)

// CartLine is one requested position of a cart, before pricing.
type CartLine struct {
	ItemID   id.ID
	Quantity int
}

// Builder turns a requested cart into a fully priced sale draft.
//
// Pricing happens through the ledger's Reserve, so Build must run inside
// the coordinator's transaction: validation, pricing and stock commitment
// form one atomic step with no read-then-write window.
type Builder struct {
	ledger *inventory.Service
}

// NewBuilder creates a sale builder over the ledger.
func NewBuilder(ledger *inventory.Service) *Builder {
	return &Builder{ledger: ledger}
}

// ValidateCart checks the request shape before any transaction is opened.
func (b *Builder) ValidateCart(cart []CartLine) error {
	if len(cart) == 0 {
		return apperror.NewValidation("cart must contain at least one line").
			WithDetail("field", "items")
	}

	seen := make(map[id.ID]struct{}, len(cart))
	for i, line := range cart {
		if id.IsNil(line.ItemID) {
			return apperror.NewValidation("item is required").
				WithDetail("field", "items").WithDetail("line", i+1)
		}
		if line.Quantity <= 0 {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "items").WithDetail("line", i+1)
		}
		if _, dup := seen[line.ItemID]; dup {
			return apperror.NewValidation("duplicate item in cart").
				WithDetail("field", "items").WithDetail("item_id", line.ItemID)
		}
		seen[line.ItemID] = struct{}{}
	}
	return nil
}

// Build reserves stock for every cart line and assembles the sale with
// snapshot prices and exact totals. Any failed line aborts the whole build;
// the surrounding transaction rollback undoes reservations already applied.
func (b *Builder) Build(ctx context.Context, branchID, userID string, cart []CartLine) (*Sale, error) {
	if err := b.ValidateCart(cart); err != nil {
		return nil, err
	}

	// Stable lock order across concurrent sales avoids deadlocks when two
	// carts share items.
	ordered := make([]CartLine, len(cart))
	copy(ordered, cart)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ItemID.String() < ordered[j].ItemID.String()
	})

	now := time.Now().UTC()
	s := &Sale{
		ID:              id.New(),
		BranchID:        branchID,
		CreatedByUserID: userID,
		Status:          StatusPending,
		SaleDate:        now,
		CreatedAt:       now,
		Lines:           make([]LineItem, 0, len(ordered)),
	}

	total := types.Zero()
	for _, line := range ordered {
		unitPrice, err := b.ledger.Reserve(ctx, branchID, line.ItemID, line.Quantity)
		if err != nil {
			return nil, err
		}

		subtotal := types.LineSubtotal(unitPrice, line.Quantity)
		s.Lines = append(s.Lines, LineItem{
			ID:              id.New(),
			SaleID:          s.ID,
			ItemID:          line.ItemID,
			Quantity:        line.Quantity,
			UnitPriceAtSale: unitPrice,
			Subtotal:        subtotal,
		})
		total = total.Add(subtotal)
	}

	s.TotalAmount = total
	if err := s.checkTotals(); err != nil {
		return nil, err
	}
	return s, nil
}
