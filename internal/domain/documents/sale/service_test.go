package sale

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apotheca/internal/core/apperror"
	"apotheca/internal/core/id"
	"apotheca/internal/core/types"
	"apotheca/internal/domain/ledger"
	"apotheca/internal/domain/snapshot"
)

type noopTxManager struct{}

func (noopTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memInvoiceRepo struct {
	invoices map[id.ID]*Invoice
}

func (m *memInvoiceRepo) Create(ctx context.Context, inv *Invoice) error {
	cp := *inv
	m.invoices[inv.ID] = &cp
	return nil
}

func (m *memInvoiceRepo) GetByID(ctx context.Context, companyID, invID id.ID) (*Invoice, error) {
	inv := m.invoices[invID]
	if inv == nil || inv.CompanyID != companyID {
		return nil, nil
	}
	cp := *inv
	return &cp, nil
}

func (m *memInvoiceRepo) MarkPosted(ctx context.Context, invID id.ID, postedAt time.Time) error {
	inv := m.invoices[invID]
	if inv == nil || inv.Posted {
		return apperror.NewDocumentPosted("sales invoice", invID)
	}
	inv.Posted = true
	inv.PostedAt = &postedAt
	return nil
}

func (m *memInvoiceRepo) ListByBranch(ctx context.Context, companyID, branchID id.ID, limit, offset int) ([]Invoice, error) {
	return nil, nil
}

// stockLedger serves fixed availability per item and records appends.
type stockLedger struct {
	stock    map[id.ID]types.Quantity
	appended []ledger.Entry
}

func (l *stockLedger) AppendBatch(ctx context.Context, entries []ledger.Entry) error {
	l.appended = append(l.appended, entries...)
	for _, e := range entries {
		l.stock[e.ItemID] += e.QuantityDelta
	}
	return nil
}

func (l *stockLedger) SumQuantity(ctx context.Context, itemID, branchID id.ID, asOf *time.Time) (types.Quantity, error) {
	return l.stock[itemID], nil
}

type recordingRefresher struct {
	scopes []snapshot.Scope
}

func (r *recordingRefresher) ScheduleRefresh(ctx context.Context, companyID, branchID id.ID, scope snapshot.Scope) error {
	r.scopes = append(r.scopes, scope)
	return nil
}

type recordingAuditor struct {
	posts []string
}

func (a *recordingAuditor) LogPost(ctx context.Context, companyID id.ID, entityType string, entityID id.ID, payload any) error {
	a.posts = append(a.posts, entityType)
	return nil
}

type saleFixture struct {
	svc       *Service
	repo      *memInvoiceRepo
	ledger    *stockLedger
	refresher *recordingRefresher
	audit     *recordingAuditor
	companyID id.ID
	branchID  id.ID
}

func newSaleFixture(t *testing.T) *saleFixture {
	t.Helper()
	f := &saleFixture{
		repo:      &memInvoiceRepo{invoices: map[id.ID]*Invoice{}},
		ledger:    &stockLedger{stock: map[id.ID]types.Quantity{}},
		refresher: &recordingRefresher{},
		audit:     &recordingAuditor{},
		companyID: id.New(),
		branchID:  id.New(),
	}
	f.svc = NewService(f.repo, f.ledger, f.refresher, f.audit, noopTxManager{})
	return f
}

func (f *saleFixture) invoice(t *testing.T, lines ...Line) id.ID {
	t.Helper()
	invID, err := f.svc.Create(context.Background(), &Invoice{
		CompanyID:   f.companyID,
		BranchID:    f.branchID,
		InvoiceDate: time.Now().UTC(),
		Lines:       lines,
	})
	require.NoError(t, err)
	return invID
}

func line(itemID id.ID, qty float64) Line {
	return Line{
		ItemID:    itemID,
		Quantity:  types.NewQuantityFromFloat64(qty),
		UnitPrice: decimal.RequireFromString("12.50"),
	}
}

func TestCreate_Validation(t *testing.T) {
	f := newSaleFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, &Invoice{CompanyID: f.companyID, BranchID: f.branchID})
	require.Error(t, err)

	bad := line(id.New(), 0)
	_, err = f.svc.Create(ctx, &Invoice{CompanyID: f.companyID, BranchID: f.branchID, Lines: []Line{bad}})
	require.Error(t, err)
}

func TestPost_AppendsNegativeEntries(t *testing.T) {
	f := newSaleFixture(t)
	itemID := id.New()
	f.ledger.stock[itemID] = types.NewQuantityFromFloat64(100)

	invID := f.invoice(t, line(itemID, 30))
	require.NoError(t, f.svc.Post(context.Background(), f.companyID, invID))

	require.Len(t, f.ledger.appended, 1)
	e := f.ledger.appended[0]
	assert.Equal(t, ledger.TxnSale, e.TxnType)
	assert.Equal(t, types.NewQuantityFromFloat64(-30), e.QuantityDelta)
	assert.Nil(t, e.UnitCost)
	assert.Equal(t, ledger.RefSalesInvoice, e.Kind)
	assert.Equal(t, invID, e.Reference.ID)

	assert.Equal(t, []string{"sales_invoice"}, f.audit.posts)
	assert.True(t, f.repo.invoices[invID].Posted)
}

func TestPost_InsufficientStock(t *testing.T) {
	f := newSaleFixture(t)
	itemID := id.New()
	f.ledger.stock[itemID] = types.NewQuantityFromFloat64(10)

	invID := f.invoice(t, line(itemID, 25))
	err := f.svc.Post(context.Background(), f.companyID, invID)
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.Empty(t, f.ledger.appended)
	assert.False(t, f.repo.invoices[invID].Posted)
	assert.Empty(t, f.refresher.scopes)
}

func TestPost_AvailabilityCheckedPerItemAcrossLines(t *testing.T) {
	f := newSaleFixture(t)
	itemID := id.New()
	f.ledger.stock[itemID] = types.NewQuantityFromFloat64(10)

	// Two lines of the same item, each fine alone, together over stock.
	invID := f.invoice(t, line(itemID, 6), line(itemID, 6))
	err := f.svc.Post(context.Background(), f.companyID, invID)
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
}

func TestPost_AlreadyPosted(t *testing.T) {
	f := newSaleFixture(t)
	itemID := id.New()
	f.ledger.stock[itemID] = types.NewQuantityFromFloat64(100)

	invID := f.invoice(t, line(itemID, 5))
	require.NoError(t, f.svc.Post(context.Background(), f.companyID, invID))

	err := f.svc.Post(context.Background(), f.companyID, invID)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeDocumentPosted, appErr.Code)
	assert.Len(t, f.ledger.appended, 1, "no second set of entries")
}

func TestPost_RefreshScope(t *testing.T) {
	ctx := context.Background()

	t.Run("single item refreshes that pair", func(t *testing.T) {
		f := newSaleFixture(t)
		itemID := id.New()
		f.ledger.stock[itemID] = types.NewQuantityFromFloat64(100)

		invID := f.invoice(t, line(itemID, 1))
		require.NoError(t, f.svc.Post(ctx, f.companyID, invID))

		require.Len(t, f.refresher.scopes, 1)
		require.NotNil(t, f.refresher.scopes[0].ItemID)
		assert.Equal(t, itemID, *f.refresher.scopes[0].ItemID)
	})

	t.Run("repeated item collapses to one pair", func(t *testing.T) {
		f := newSaleFixture(t)
		itemID := id.New()
		f.ledger.stock[itemID] = types.NewQuantityFromFloat64(100)

		invID := f.invoice(t, line(itemID, 1), line(itemID, 2))
		require.NoError(t, f.svc.Post(ctx, f.companyID, invID))

		require.Len(t, f.refresher.scopes, 1)
		require.NotNil(t, f.refresher.scopes[0].ItemID)
		assert.Equal(t, itemID, *f.refresher.scopes[0].ItemID)
	})

	t.Run("distinct items carry the deduped list", func(t *testing.T) {
		f := newSaleFixture(t)
		a, b := id.New(), id.New()
		f.ledger.stock[a] = types.NewQuantityFromFloat64(100)
		f.ledger.stock[b] = types.NewQuantityFromFloat64(100)

		invID := f.invoice(t, line(a, 1), line(b, 2), line(a, 3))
		require.NoError(t, f.svc.Post(ctx, f.companyID, invID))

		require.Len(t, f.refresher.scopes, 1)
		scope := f.refresher.scopes[0]
		assert.Nil(t, scope.ItemID)
		assert.Equal(t, []id.ID{a, b}, scope.ItemIDs)
	})
}

func TestGetByID_NotFound(t *testing.T) {
	f := newSaleFixture(t)
	_, err := f.svc.GetByID(context.Background(), f.companyID, id.New())
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}
