package refund

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apothek/internal/core/apperror"
	"apothek/internal/core/id"
	"apothek/internal/core/types"
	"apothek/internal/domain"
	"apothek/internal/domain/audit"
	"apothek/internal/domain/sale"
)

type refundStore struct {
	sales   map[id.ID]*sale.Sale
	returns map[id.ID]*ReturnRequest
	refunds map[id.ID]*Refund // keyed by return ID
	audits  []*audit.Entry
}

func newRefundStore() *refundStore {
	return &refundStore{
		sales:   make(map[id.ID]*sale.Sale),
		returns: make(map[id.ID]*ReturnRequest),
		refunds: make(map[id.ID]*Refund),
	}
}

func (s *refundStore) addSale(branchID, total string, status sale.Status) *sale.Sale {
	sl := &sale.Sale{
		ID:          id.New(),
		BranchID:    branchID,
		TotalAmount: types.MustMoney(total),
		Status:      status,
	}
	s.sales[sl.ID] = sl
	return sl
}

type passthroughTx struct{}

func (passthroughTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeRefundRepo struct {
	store *refundStore
}

func (f *fakeRefundRepo) CreateReturn(_ context.Context, r *ReturnRequest) error {
	cp := *r
	f.store.returns[r.ID] = &cp
	return nil
}

func (f *fakeRefundRepo) GetReturn(_ context.Context, returnID id.ID) (*ReturnRequest, error) {
	r, ok := f.store.returns[returnID]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRefundRepo) CloseReturn(_ context.Context, returnID id.ID) error {
	r, ok := f.store.returns[returnID]
	if !ok {
		return apperror.NewNotFound("return request", returnID)
	}
	r.Status = ReturnCompleted
	return nil
}

func (f *fakeRefundRepo) GetRefundByReturn(_ context.Context, returnID id.ID) (*Refund, error) {
	r, ok := f.store.refunds[returnID]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRefundRepo) CreateRefund(_ context.Context, r *Refund) error {
	if _, exists := f.store.refunds[r.ReturnID]; exists {
		return apperror.NewRefundAlreadyProcessed(r.ReturnID)
	}
	cp := *r
	f.store.refunds[r.ReturnID] = &cp
	return nil
}

type fakeSaleStore struct {
	store *refundStore
}

func (f *fakeSaleStore) get(branchID string, saleID id.ID) (*sale.Sale, error) {
	s, ok := f.store.sales[saleID]
	if !ok || s.BranchID != branchID {
		return nil, apperror.NewNotFound("sale", saleID)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSaleStore) GetByID(_ context.Context, branchID string, saleID id.ID) (*sale.Sale, error) {
	return f.get(branchID, saleID)
}

func (f *fakeSaleStore) GetForUpdate(_ context.Context, branchID string, saleID id.ID) (*sale.Sale, error) {
	return f.get(branchID, saleID)
}

// SumRefundedBySale joins refunds through their return requests, the same
// aggregate the SQL implementation computes.
func (f *fakeSaleStore) SumRefundedBySale(_ context.Context, saleID id.ID) (types.Money, error) {
	total := types.Zero()
	for returnID, r := range f.store.refunds {
		ret, ok := f.store.returns[returnID]
		if ok && ret.SaleID == saleID {
			total = total.Add(r.Amount)
		}
	}
	return total, nil
}

func (f *fakeSaleStore) Create(context.Context, *sale.Sale) error { return nil }

func (f *fakeSaleStore) SaveLines(context.Context, id.ID, []sale.LineItem) error { return nil }

func (f *fakeSaleStore) GetLines(context.Context, id.ID) ([]sale.LineItem, error) { return nil, nil }

func (f *fakeSaleStore) UpdateStatus(context.Context, id.ID, sale.Status) error { return nil }

func (f *fakeSaleStore) GetPayment(context.Context, id.ID) (*sale.Payment, error) { return nil, nil }

func (f *fakeSaleStore) UpsertPayment(context.Context, *sale.Payment) error { return nil }

func (f *fakeSaleStore) List(context.Context, string, sale.ListFilter) (domain.ListResult[*sale.Sale], error) {
	return domain.ListResult[*sale.Sale]{}, nil
}

type fakeTrail struct {
	store *refundStore
}

func (f *fakeTrail) Insert(_ context.Context, entry *audit.Entry) error {
	cp := *entry
	f.store.audits = append(f.store.audits, &cp)
	return nil
}

func (f *fakeTrail) List(context.Context, string, audit.ListFilter) (domain.ListResult[*audit.Entry], error) {
	return domain.ListResult[*audit.Entry]{}, nil
}

func newRefundRig(t *testing.T) (*Service, *refundStore) {
	t.Helper()

	store := newRefundStore()
	auditor, err := audit.NewService(&fakeTrail{store: store})
	require.NoError(t, err)

	svc := NewService(&fakeRefundRepo{store: store}, &fakeSaleStore{store: store}, auditor, passthroughTx{})
	return svc, store
}

func TestFlagReturn_OnCompletedSale(t *testing.T) {
	svc, store := newRefundRig(t)
	sl := store.addSale("branch-1", "250.00", sale.StatusCompleted)

	ret, err := svc.FlagReturn(context.Background(), "branch-1", "user-1", sl.ID, "expired batch")
	require.NoError(t, err)

	assert.Equal(t, sl.ID, ret.SaleID)
	assert.Equal(t, ReturnPending, ret.Status)
	assert.Equal(t, "expired batch", ret.Reason)
	require.Len(t, store.audits, 1)
	assert.Equal(t, audit.ActionReturnFlagged, store.audits[0].ActionType)
}

func TestFlagReturn_RejectsPendingSale(t *testing.T) {
	svc, store := newRefundRig(t)
	sl := store.addSale("branch-1", "250.00", sale.StatusPending)

	_, err := svc.FlagReturn(context.Background(), "branch-1", "user-1", sl.ID, "")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeConflict), "got %v", err)
	assert.Empty(t, store.returns)
}

func TestFlagReturn_UnknownSale(t *testing.T) {
	svc, _ := newRefundRig(t)

	_, err := svc.FlagReturn(context.Background(), "branch-1", "user-1", id.New(), "")
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestProcessRefund_IssuesRefundAndClosesReturn(t *testing.T) {
	svc, store := newRefundRig(t)
	ctx := context.Background()

	sl := store.addSale("branch-1", "300.00", sale.StatusCompleted)
	ret, err := svc.FlagReturn(ctx, "branch-1", "user-1", sl.ID, "wrong dosage")
	require.NoError(t, err)

	issued, err := svc.ProcessRefund(ctx, "branch-1", "user-2", sl.ID, ret.ID,
		types.MustMoney("120.00"), sale.PaymentCash, "two boxes returned")
	require.NoError(t, err)

	assert.Equal(t, ret.ID, issued.ReturnID)
	assert.Equal(t, "user-2", issued.IssuedByUserID)
	assert.True(t, issued.Amount.Equal(types.MustMoney("120.00")))
	assert.Equal(t, ReturnCompleted, store.returns[ret.ID].Status)

	require.Len(t, store.audits, 2)
	assert.Equal(t, audit.ActionRefundIssued, store.audits[1].ActionType)
}

func TestProcessRefund_ClosedReturnRejected(t *testing.T) {
	svc, store := newRefundRig(t)
	ctx := context.Background()

	sl := store.addSale("branch-1", "300.00", sale.StatusCompleted)
	ret, err := svc.FlagReturn(ctx, "branch-1", "user-1", sl.ID, "")
	require.NoError(t, err)

	_, err = svc.ProcessRefund(ctx, "branch-1", "user-1", sl.ID, ret.ID,
		types.MustMoney("50.00"), sale.PaymentCash, "")
	require.NoError(t, err)

	// The first refund closed the return; replaying the request must fail.
	_, err = svc.ProcessRefund(ctx, "branch-1", "user-1", sl.ID, ret.ID,
		types.MustMoney("50.00"), sale.PaymentCash, "")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeReturnAlreadyProcessed), "got %v", err)
}

func TestProcessRefund_ExistingRefundRejected(t *testing.T) {
	svc, store := newRefundRig(t)
	ctx := context.Background()

	sl := store.addSale("branch-1", "300.00", sale.StatusCompleted)
	ret, err := svc.FlagReturn(ctx, "branch-1", "user-1", sl.ID, "")
	require.NoError(t, err)

	// A refund row exists while the return is still open. This is the
	// state a concurrent writer or an interrupted close leaves behind;
	// the unique refund-per-return rule still holds.
	store.refunds[ret.ID] = &Refund{
		ID:       id.New(),
		ReturnID: ret.ID,
		Amount:   types.MustMoney("10.00"),
	}

	_, err = svc.ProcessRefund(ctx, "branch-1", "user-1", sl.ID, ret.ID,
		types.MustMoney("50.00"), sale.PaymentCash, "")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeRefundAlreadyProcessed), "got %v", err)
}

func TestProcessRefund_CumulativeCapAgainstSaleTotal(t *testing.T) {
	svc, store := newRefundRig(t)
	ctx := context.Background()

	sl := store.addSale("branch-1", "100.00", sale.StatusCompleted)

	first, err := svc.FlagReturn(ctx, "branch-1", "user-1", sl.ID, "first batch")
	require.NoError(t, err)
	_, err = svc.ProcessRefund(ctx, "branch-1", "user-1", sl.ID, first.ID,
		types.MustMoney("70.00"), sale.PaymentCash, "")
	require.NoError(t, err)

	second, err := svc.FlagReturn(ctx, "branch-1", "user-1", sl.ID, "second batch")
	require.NoError(t, err)

	// 70 already refunded, only 30 remains refundable.
	_, err = svc.ProcessRefund(ctx, "branch-1", "user-1", sl.ID, second.ID,
		types.MustMoney("40.00"), sale.PaymentCash, "")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeRefundExceedsSale), "got %v", err)
	assert.Equal(t, ReturnPending, store.returns[second.ID].Status)

	issued, err := svc.ProcessRefund(ctx, "branch-1", "user-1", sl.ID, second.ID,
		types.MustMoney("30.00"), sale.PaymentCash, "")
	require.NoError(t, err)
	assert.True(t, issued.Amount.Equal(types.MustMoney("30.00")))

	refunded, err := (&fakeSaleStore{store: store}).SumRefundedBySale(ctx, sl.ID)
	require.NoError(t, err)
	assert.True(t, refunded.Equal(sl.TotalAmount))
}

func TestProcessRefund_RejectsNonPositiveAmount(t *testing.T) {
	svc, store := newRefundRig(t)
	ctx := context.Background()

	sl := store.addSale("branch-1", "100.00", sale.StatusCompleted)
	ret, err := svc.FlagReturn(ctx, "branch-1", "user-1", sl.ID, "")
	require.NoError(t, err)

	for _, amount := range []string{"0", "-5.00"} {
		_, err = svc.ProcessRefund(ctx, "branch-1", "user-1", sl.ID, ret.ID,
			types.MustMoney(amount), sale.PaymentCash, "")
		require.Error(t, err)
		assert.True(t, apperror.IsCode(err, apperror.CodeValidation), "amount %s: got %v", amount, err)
	}
}

func TestProcessRefund_RejectsUnknownMethod(t *testing.T) {
	svc, store := newRefundRig(t)
	ctx := context.Background()

	sl := store.addSale("branch-1", "100.00", sale.StatusCompleted)
	ret, err := svc.FlagReturn(ctx, "branch-1", "user-1", sl.ID, "")
	require.NoError(t, err)

	_, err = svc.ProcessRefund(ctx, "branch-1", "user-1", sl.ID, ret.ID,
		types.MustMoney("10.00"), sale.PaymentMethod("cheque"), "")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestProcessRefund_ReturnMustBelongToSale(t *testing.T) {
	svc, store := newRefundRig(t)
	ctx := context.Background()

	slA := store.addSale("branch-1", "100.00", sale.StatusCompleted)
	slB := store.addSale("branch-1", "200.00", sale.StatusCompleted)
	ret, err := svc.FlagReturn(ctx, "branch-1", "user-1", slA.ID, "")
	require.NoError(t, err)

	_, err = svc.ProcessRefund(ctx, "branch-1", "user-1", slB.ID, ret.ID,
		types.MustMoney("10.00"), sale.PaymentCash, "")
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}
