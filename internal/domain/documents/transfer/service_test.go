package transfer

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

type memTransferRepo struct {
	transfers map[id.ID]*Transfer
}

func (m *memTransferRepo) Create(ctx context.Context, t *Transfer) error {
	cp := *t
	m.transfers[t.ID] = &cp
	return nil
}

func (m *memTransferRepo) GetByID(ctx context.Context, companyID, transferID id.ID) (*Transfer, error) {
	t := m.transfers[transferID]
	if t == nil || t.CompanyID != companyID {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *memTransferRepo) MarkPosted(ctx context.Context, transferID id.ID, postedAt time.Time) error {
	t := m.transfers[transferID]
	if t == nil || t.Posted {
		return apperror.NewDocumentPosted("transfer", transferID)
	}
	t.Posted = true
	t.PostedAt = &postedAt
	return nil
}

func (m *memTransferRepo) ListByBranch(ctx context.Context, companyID, branchID id.ID, limit, offset int) ([]Transfer, error) {
	return nil, nil
}

type branchLedger struct {
	stock    map[[2]id.ID]types.Quantity // (item, branch)
	appended []ledger.Entry
}

func (l *branchLedger) AppendBatch(ctx context.Context, entries []ledger.Entry) error {
	l.appended = append(l.appended, entries...)
	return nil
}

func (l *branchLedger) SumQuantity(ctx context.Context, itemID, branchID id.ID, asOf *time.Time) (types.Quantity, error) {
	return l.stock[[2]id.ID{itemID, branchID}], nil
}

type fixedCoster struct {
	costs map[[2]id.ID]decimal.Decimal // (item, branch)
}

func (c *fixedCoster) BestAvailableCost(ctx context.Context, itemID, branchID, companyID id.ID) (decimal.Decimal, error) {
	return c.costs[[2]id.ID{itemID, branchID}], nil
}

type refreshCall struct {
	branchID id.ID
	scope    snapshot.Scope
}

type recordingRefresher struct {
	calls []refreshCall
}

func (r *recordingRefresher) ScheduleRefresh(ctx context.Context, companyID, branchID id.ID, scope snapshot.Scope) error {
	r.calls = append(r.calls, refreshCall{branchID: branchID, scope: scope})
	return nil
}

type noopAuditor struct{}

func (noopAuditor) LogPost(ctx context.Context, companyID id.ID, entityType string, entityID id.ID, payload any) error {
	return nil
}

func TestValidate_SameBranch(t *testing.T) {
	branchID := id.New()
	tr := &Transfer{
		SourceBranch: branchID,
		DestBranch:   branchID,
		Lines:        []Line{{ItemID: id.New(), Quantity: types.NewQuantityFromFloat64(1)}},
	}
	require.Error(t, tr.Validate())
}

func TestPost_BooksBothEndsAtSourceCost(t *testing.T) {
	companyID := id.New()
	source, dest := id.New(), id.New()
	itemID := id.New()

	sourceCost := decimal.RequireFromString("7.25")
	led := &branchLedger{stock: map[[2]id.ID]types.Quantity{
		{itemID, source}: types.NewQuantityFromFloat64(50),
	}}
	coster := &fixedCoster{costs: map[[2]id.ID]decimal.Decimal{
		{itemID, source}: sourceCost,
		// A different destination cost must not be consulted.
		{itemID, dest}: decimal.RequireFromString("99"),
	}}
	refresher := &recordingRefresher{}
	repo := &memTransferRepo{transfers: map[id.ID]*Transfer{}}
	svc := NewService(repo, led, coster, refresher, noopAuditor{}, noopTxManager{})

	ctx := context.Background()
	transferID, err := svc.Create(ctx, &Transfer{
		CompanyID:    companyID,
		SourceBranch: source,
		DestBranch:   dest,
		Lines:        []Line{{ItemID: itemID, Quantity: types.NewQuantityFromFloat64(20)}},
	})
	require.NoError(t, err)
	require.NoError(t, svc.Post(ctx, companyID, transferID))

	require.Len(t, led.appended, 2)
	out, in := led.appended[0], led.appended[1]

	assert.Equal(t, ledger.TxnTransferOut, out.TxnType)
	assert.Equal(t, source, out.BranchID)
	assert.Equal(t, types.NewQuantityFromFloat64(-20), out.QuantityDelta)
	assert.Nil(t, out.UnitCost)

	assert.Equal(t, ledger.TxnTransferIn, in.TxnType)
	assert.Equal(t, dest, in.BranchID)
	assert.Equal(t, types.NewQuantityFromFloat64(20), in.QuantityDelta)
	require.NotNil(t, in.UnitCost)
	assert.True(t, in.UnitCost.Equal(sourceCost), "incoming cost %s", in.UnitCost)

	// Same document reference on both entries.
	assert.Equal(t, out.Reference, in.Reference)
	assert.Equal(t, transferID, out.Reference.ID)

	// Both ends get refreshed with the same scope.
	require.Len(t, refresher.calls, 2)
	assert.Equal(t, source, refresher.calls[0].branchID)
	assert.Equal(t, dest, refresher.calls[1].branchID)
	assert.Equal(t, refresher.calls[0].scope, refresher.calls[1].scope)
}

func TestPost_SourceStockChecked(t *testing.T) {
	companyID := id.New()
	source, dest := id.New(), id.New()
	itemID := id.New()

	led := &branchLedger{stock: map[[2]id.ID]types.Quantity{
		{itemID, source}: types.NewQuantityFromFloat64(5),
		// Plenty at the destination; it must not count.
		{itemID, dest}: types.NewQuantityFromFloat64(500),
	}}
	repo := &memTransferRepo{transfers: map[id.ID]*Transfer{}}
	svc := NewService(repo, led, &fixedCoster{}, &recordingRefresher{}, noopAuditor{}, noopTxManager{})

	ctx := context.Background()
	transferID, err := svc.Create(ctx, &Transfer{
		CompanyID:    companyID,
		SourceBranch: source,
		DestBranch:   dest,
		Lines:        []Line{{ItemID: itemID, Quantity: types.NewQuantityFromFloat64(10)}},
	})
	require.NoError(t, err)

	err = svc.Post(ctx, companyID, transferID)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.Empty(t, led.appended)
}
