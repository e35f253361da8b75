package sale

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apothek/internal/core/apperror"
	"apothek/internal/core/id"
	"apothek/internal/core/numerator"
	"apothek/internal/core/types"
	"apothek/internal/domain"
	"apothek/internal/domain/audit"
	"apothek/internal/domain/inventory"
)

// memStore is a shared in-memory backing store for the fake repositories.
// fakeTxManager snapshots it before each unit of work and restores it on
// error, modelling rollback semantics of the real transaction manager.
type memStore struct {
	stock    map[id.ID]*inventory.StockItem
	sales    map[id.ID]*Sale
	lines    map[id.ID][]LineItem
	payments map[id.ID]*Payment // keyed by sale ID
	refunded map[id.ID]types.Money
	audits   []*audit.Entry
}

func newMemStore() *memStore {
	return &memStore{
		stock:    make(map[id.ID]*inventory.StockItem),
		sales:    make(map[id.ID]*Sale),
		lines:    make(map[id.ID][]LineItem),
		payments: make(map[id.ID]*Payment),
		refunded: make(map[id.ID]types.Money),
	}
}

func (m *memStore) snapshot() *memStore {
	s := newMemStore()
	for k, v := range m.stock {
		cp := *v
		s.stock[k] = &cp
	}
	for k, v := range m.sales {
		cp := *v
		s.sales[k] = &cp
	}
	for k, v := range m.lines {
		s.lines[k] = append([]LineItem(nil), v...)
	}
	for k, v := range m.payments {
		cp := *v
		s.payments[k] = &cp
	}
	for k, v := range m.refunded {
		s.refunded[k] = v
	}
	s.audits = append([]*audit.Entry(nil), m.audits...)
	return s
}

func (m *memStore) restore(s *memStore) {
	m.stock = s.stock
	m.sales = s.sales
	m.lines = s.lines
	m.payments = s.payments
	m.refunded = s.refunded
	m.audits = s.audits
}

func (m *memStore) addItem(branchID, name, price string, qty int) id.ID {
	item := inventory.NewStockItem(branchID, name, types.MustMoney(price), qty, nil)
	m.stock[item.ID] = item
	return item.ID
}

type fakeTxManager struct {
	store *memStore
	calls int
}

func (f *fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	snap := f.store.snapshot()
	if err := fn(ctx); err != nil {
		f.store.restore(snap)
		return err
	}
	return nil
}

type fakeStockRepo struct {
	store *memStore
}

func (f *fakeStockRepo) Create(_ context.Context, item *inventory.StockItem) error {
	f.store.stock[item.ID] = item
	return nil
}

func (f *fakeStockRepo) get(branchID string, itemID id.ID) (*inventory.StockItem, error) {
	item, ok := f.store.stock[itemID]
	if !ok || item.BranchID != branchID {
		return nil, apperror.NewNotFound("stock item", itemID)
	}
	return item, nil
}

// Reads hand out copies, like a row scan does; only AdjustQuantity touches
// the stored item.
func (f *fakeStockRepo) GetByID(_ context.Context, branchID string, itemID id.ID) (*inventory.StockItem, error) {
	item, err := f.get(branchID, itemID)
	if err != nil {
		return nil, err
	}
	cp := *item
	return &cp, nil
}

func (f *fakeStockRepo) GetForUpdate(ctx context.Context, branchID string, itemID id.ID) (*inventory.StockItem, error) {
	return f.GetByID(ctx, branchID, itemID)
}

func (f *fakeStockRepo) AdjustQuantity(_ context.Context, branchID string, itemID id.ID, delta int) error {
	item, err := f.get(branchID, itemID)
	if err != nil {
		return err
	}
	if item.QuantityOnHand+delta < 0 {
		return apperror.NewDatabase(nil).WithDetail("constraint", "stock_items_quantity_on_hand_check")
	}
	item.QuantityOnHand += delta
	return nil
}

func (f *fakeStockRepo) ListByBranch(_ context.Context, branchID string, _ domain.ListFilter) (domain.ListResult[*inventory.StockItem], error) {
	var items []*inventory.StockItem
	for _, item := range f.store.stock {
		if item.BranchID == branchID {
			items = append(items, item)
		}
	}
	return domain.ListResult[*inventory.StockItem]{Items: items, TotalCount: int64(len(items))}, nil
}

type fakeSaleRepo struct {
	store *memStore
}

func (f *fakeSaleRepo) Create(_ context.Context, s *Sale) error {
	cp := *s
	cp.Lines = nil
	cp.Payment = nil
	f.store.sales[s.ID] = &cp
	return nil
}

func (f *fakeSaleRepo) SaveLines(_ context.Context, saleID id.ID, lines []LineItem) error {
	f.store.lines[saleID] = append([]LineItem(nil), lines...)
	return nil
}

func (f *fakeSaleRepo) get(branchID string, saleID id.ID) (*Sale, error) {
	s, ok := f.store.sales[saleID]
	if !ok || s.BranchID != branchID {
		return nil, apperror.NewNotFound("sale", saleID)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSaleRepo) GetByID(_ context.Context, branchID string, saleID id.ID) (*Sale, error) {
	return f.get(branchID, saleID)
}

func (f *fakeSaleRepo) GetForUpdate(_ context.Context, branchID string, saleID id.ID) (*Sale, error) {
	return f.get(branchID, saleID)
}

func (f *fakeSaleRepo) GetLines(_ context.Context, saleID id.ID) ([]LineItem, error) {
	return append([]LineItem(nil), f.store.lines[saleID]...), nil
}

func (f *fakeSaleRepo) UpdateStatus(_ context.Context, saleID id.ID, status Status) error {
	s, ok := f.store.sales[saleID]
	if !ok {
		return apperror.NewNotFound("sale", saleID)
	}
	s.Status = status
	return nil
}

func (f *fakeSaleRepo) GetPayment(_ context.Context, saleID id.ID) (*Payment, error) {
	p, ok := f.store.payments[saleID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeSaleRepo) UpsertPayment(_ context.Context, p *Payment) error {
	if existing, ok := f.store.payments[p.SaleID]; ok {
		p.ID = existing.ID
	}
	cp := *p
	f.store.payments[p.SaleID] = &cp
	return nil
}

func (f *fakeSaleRepo) SumRefundedBySale(_ context.Context, saleID id.ID) (types.Money, error) {
	if refunded, ok := f.store.refunded[saleID]; ok {
		return refunded, nil
	}
	return types.Zero(), nil
}

func (f *fakeSaleRepo) List(_ context.Context, branchID string, _ ListFilter) (domain.ListResult[*Sale], error) {
	var sales []*Sale
	for _, s := range f.store.sales {
		if s.BranchID == branchID {
			sales = append(sales, s)
		}
	}
	return domain.ListResult[*Sale]{Items: sales, TotalCount: int64(len(sales))}, nil
}

type fakeAuditRepo struct {
	store *memStore
}

func (f *fakeAuditRepo) Insert(_ context.Context, entry *audit.Entry) error {
	cp := *entry
	f.store.audits = append(f.store.audits, &cp)
	return nil
}

func (f *fakeAuditRepo) List(_ context.Context, branchID string, _ audit.ListFilter) (domain.ListResult[*audit.Entry], error) {
	var entries []*audit.Entry
	for _, e := range f.store.audits {
		if e.BranchID == branchID {
			entries = append(entries, e)
		}
	}
	return domain.ListResult[*audit.Entry]{Items: entries, TotalCount: int64(len(entries))}, nil
}

type saleRig struct {
	store   *memStore
	txm     *fakeTxManager
	ledger  *inventory.Service
	builder *Builder
	numbers *numerator.MockGenerator
	svc     *Service
}

func newSaleRig(t *testing.T) *saleRig {
	t.Helper()

	store := newMemStore()
	txm := &fakeTxManager{store: store}

	auditor, err := audit.NewService(&fakeAuditRepo{store: store})
	require.NoError(t, err)

	ledger := inventory.NewService(&fakeStockRepo{store: store}, txm, auditor, nil)
	builder := NewBuilder(ledger)
	numbers := &numerator.MockGenerator{}

	return &saleRig{
		store:   store,
		txm:     txm,
		ledger:  ledger,
		builder: builder,
		numbers: numbers,
		svc:     NewService(&fakeSaleRepo{store: store}, builder, ledger, auditor, numbers, txm),
	}
}

func (r *saleRig) auditActions() []audit.ActionType {
	actions := make([]audit.ActionType, 0, len(r.store.audits))
	for _, e := range r.store.audits {
		actions = append(actions, e.ActionType)
	}
	return actions
}

func TestCreateSale_CommitsSaleLinesPaymentAndAudit(t *testing.T) {
	rig := newSaleRig(t)
	ctx := context.Background()

	paracetamol := rig.store.addItem("branch-1", "Paracetamol 500mg", "5.50", 100)
	amoxicillin := rig.store.addItem("branch-1", "Amoxicillin 250mg", "12.25", 40)

	cart := []CartLine{
		{ItemID: paracetamol, Quantity: 3},
		{ItemID: amoxicillin, Quantity: 2},
	}

	sl, err := rig.svc.CreateSale(ctx, "branch-1", "user-1", cart, PaymentCash, "Walk-in")
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, sl.Status)
	assert.Equal(t, "MOCK-2026-00001", sl.ReceiptNumber)
	assert.Equal(t, RefundNone, sl.RefundStatus)
	assert.True(t, sl.TotalAmount.Equal(types.MustMoney("41.00")),
		"3x5.50 + 2x12.25 = 41.00, got %s", sl.TotalAmount)
	assert.Len(t, sl.Lines, 2)

	// Stock decremented exactly once per line.
	assert.Equal(t, 97, rig.store.stock[paracetamol].QuantityOnHand)
	assert.Equal(t, 38, rig.store.stock[amoxicillin].QuantityOnHand)

	// Payment settles the full total in the same unit of work.
	require.NotNil(t, sl.Payment)
	assert.Equal(t, PaymentCash, sl.Payment.Method)
	assert.True(t, sl.Payment.Amount.Equal(sl.TotalAmount))
	stored := rig.store.payments[sl.ID]
	require.NotNil(t, stored)
	assert.Equal(t, sl.Payment.ID, stored.ID)

	assert.Equal(t, []audit.ActionType{audit.ActionSaleCreated}, rig.auditActions())
}

func TestCreateSale_LinesCarrySnapshotPrices(t *testing.T) {
	rig := newSaleRig(t)
	ctx := context.Background()

	itemID := rig.store.addItem("branch-1", "Cetirizine 10mg", "8.75", 20)

	sl, err := rig.svc.CreateSale(ctx, "branch-1", "user-1",
		[]CartLine{{ItemID: itemID, Quantity: 4}}, PaymentCard, "")
	require.NoError(t, err)

	// A later catalog price change must not alter the committed sale.
	rig.store.stock[itemID].UnitPrice = types.MustMoney("99.99")

	got, err := rig.svc.GetSale(ctx, "branch-1", sl.ID)
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	assert.True(t, got.Lines[0].UnitPriceAtSale.Equal(types.MustMoney("8.75")))
	assert.True(t, got.Lines[0].Subtotal.Equal(types.MustMoney("35.00")))
	assert.True(t, got.TotalAmount.Equal(types.MustMoney("35.00")))
}

func TestCreateSale_InsufficientStockRollsBackWholeCart(t *testing.T) {
	rig := newSaleRig(t)
	ctx := context.Background()

	plenty := rig.store.addItem("branch-1", "Ibuprofen 400mg", "7.00", 50)
	scarce := rig.store.addItem("branch-1", "Insulin pen", "450.00", 1)

	_, err := rig.svc.CreateSale(ctx, "branch-1", "user-1",
		[]CartLine{
			{ItemID: plenty, Quantity: 5},
			{ItemID: scarce, Quantity: 3},
		}, PaymentCash, "")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock), "got %v", err)

	// No partial decrement survives the abort.
	assert.Equal(t, 50, rig.store.stock[plenty].QuantityOnHand)
	assert.Equal(t, 1, rig.store.stock[scarce].QuantityOnHand)
	assert.Empty(t, rig.store.sales)
	assert.Empty(t, rig.store.payments)
	assert.Empty(t, rig.store.audits)
}

func TestCreateSale_RejectsUnknownPaymentMethod(t *testing.T) {
	rig := newSaleRig(t)
	itemID := rig.store.addItem("branch-1", "Loperamide 2mg", "3.00", 10)

	numeratorCalls := 0
	rig.numbers.GetNextNumberFunc = func(context.Context, numerator.Config, *numerator.Options, string, time.Time) (string, error) {
		numeratorCalls++
		return "OR-2026-00001", nil
	}

	_, err := rig.svc.CreateSale(context.Background(), "branch-1", "user-1",
		[]CartLine{{ItemID: itemID, Quantity: 1}}, PaymentMethod("barter"), "")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	// Rejected before a receipt number is consumed.
	assert.Zero(t, numeratorCalls)
	assert.Zero(t, rig.txm.calls)
}

func TestCreateSale_RejectsEmptyCart(t *testing.T) {
	rig := newSaleRig(t)

	_, err := rig.svc.CreateSale(context.Background(), "branch-1", "user-1", nil, PaymentCash, "")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
	assert.Zero(t, rig.txm.calls)
}

func TestCreateSale_BranchScopedStockLookup(t *testing.T) {
	rig := newSaleRig(t)

	itemID := rig.store.addItem("branch-2", "Salbutamol inhaler", "180.00", 5)

	_, err := rig.svc.CreateSale(context.Background(), "branch-1", "user-1",
		[]CartLine{{ItemID: itemID, Quantity: 1}}, PaymentCash, "")
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
	assert.Equal(t, 5, rig.store.stock[itemID].QuantityOnHand)
}

func TestRecordPayment_CompletesPendingSale(t *testing.T) {
	rig := newSaleRig(t)
	ctx := context.Background()

	pending := &Sale{
		ID:              id.New(),
		BranchID:        "branch-1",
		CreatedByUserID: "user-1",
		TotalAmount:     types.MustMoney("120.00"),
		Status:          StatusPending,
	}
	rig.store.sales[pending.ID] = pending

	p, err := rig.svc.RecordPayment(ctx, "branch-1", "user-1", pending.ID, PaymentGCash, "GC-123")
	require.NoError(t, err)
	assert.True(t, p.Amount.Equal(pending.TotalAmount))
	assert.Equal(t, "GC-123", p.ReferenceNumber)
	assert.Equal(t, StatusCompleted, rig.store.sales[pending.ID].Status)
	assert.Equal(t, []audit.ActionType{audit.ActionPaymentRecorded}, rig.auditActions())
}

func TestRecordPayment_UpsertKeepsSinglePaymentRow(t *testing.T) {
	rig := newSaleRig(t)
	ctx := context.Background()

	itemID := rig.store.addItem("branch-1", "Omeprazole 20mg", "15.00", 10)
	sl, err := rig.svc.CreateSale(ctx, "branch-1", "user-1",
		[]CartLine{{ItemID: itemID, Quantity: 2}}, PaymentCash, "")
	require.NoError(t, err)

	firstID := rig.store.payments[sl.ID].ID

	p, err := rig.svc.RecordPayment(ctx, "branch-1", "user-1", sl.ID, PaymentCard, "POS-42")
	require.NoError(t, err)

	// The original payment row is updated in place, never duplicated.
	assert.Equal(t, firstID, p.ID)
	assert.Len(t, rig.store.payments, 1)
	stored := rig.store.payments[sl.ID]
	assert.Equal(t, PaymentCard, stored.Method)
	assert.Equal(t, "POS-42", stored.ReferenceNumber)
}

func TestRecordPayment_RejectsUnknownMethod(t *testing.T) {
	rig := newSaleRig(t)

	_, err := rig.svc.RecordPayment(context.Background(), "branch-1", "user-1",
		id.New(), PaymentMethod("iou"), "")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestGetSale_DerivesRefundStatus(t *testing.T) {
	rig := newSaleRig(t)
	ctx := context.Background()

	itemID := rig.store.addItem("branch-1", "Metformin 500mg", "10.00", 30)
	sl, err := rig.svc.CreateSale(ctx, "branch-1", "user-1",
		[]CartLine{{ItemID: itemID, Quantity: 10}}, PaymentCash, "")
	require.NoError(t, err)

	rig.store.refunded[sl.ID] = types.MustMoney("40.00")
	got, err := rig.svc.GetSale(ctx, "branch-1", sl.ID)
	require.NoError(t, err)
	assert.Equal(t, RefundPartial, got.RefundStatus)

	rig.store.refunded[sl.ID] = types.MustMoney("100.00")
	got, err = rig.svc.GetSale(ctx, "branch-1", sl.ID)
	require.NoError(t, err)
	assert.Equal(t, RefundFull, got.RefundStatus)
}
