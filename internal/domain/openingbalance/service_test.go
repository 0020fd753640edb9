package openingbalance

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apotheca/internal/core/apperror"
	"apotheca/internal/core/id"
	"apotheca/internal/core/types"
	"apotheca/internal/domain/ledger"
)

type noopTxManager struct{}

func (noopTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeLedger struct {
	entries []ledger.Entry

	delta     ledger.CorrectionDelta
	corrErr   error
	corrected []id.ID
}

func (f *fakeLedger) Append(ctx context.Context, entry *ledger.Entry) (id.ID, error) {
	f.entries = append(f.entries, *entry)
	return entry.ID, nil
}

func (f *fakeLedger) CorrectOpeningBalance(ctx context.Context, companyID, entryID id.ID, newQuantity types.Quantity, newCost decimal.Decimal) (ledger.CorrectionDelta, error) {
	if f.corrErr != nil {
		return ledger.CorrectionDelta{}, f.corrErr
	}
	f.corrected = append(f.corrected, entryID)
	return f.delta, nil
}

type fakeCosts struct {
	existing map[[2]id.ID]*decimal.Decimal
}

func (f *fakeCosts) OpeningBalanceCost(ctx context.Context, itemID, branchID id.ID) (*decimal.Decimal, error) {
	return f.existing[[2]id.ID{itemID, branchID}], nil
}

type refreshedPair struct {
	branchID id.ID
	itemID   id.ID
}

type recordingRefresher struct {
	pairs []refreshedPair
}

func (r *recordingRefresher) RefreshItemSync(ctx context.Context, companyID, branchID, itemID id.ID) error {
	r.pairs = append(r.pairs, refreshedPair{branchID: branchID, itemID: itemID})
	return nil
}

type recordingAuditor struct {
	entityTypes []string
	entityIDs   []id.ID
}

func (a *recordingAuditor) LogPost(ctx context.Context, companyID id.ID, entityType string, entityID id.ID, payload any) error {
	a.entityTypes = append(a.entityTypes, entityType)
	a.entityIDs = append(a.entityIDs, entityID)
	return nil
}

func validOpening() *Opening {
	cost := decimal.RequireFromString("4.20")
	return &Opening{
		CompanyID: id.New(),
		BranchID:  id.New(),
		ItemID:    id.New(),
		Quantity:  types.NewQuantityFromFloat64(150),
		UnitCost:  cost,
	}
}

func TestSet_RecordsSelfReferencingEntry(t *testing.T) {
	ctx := context.Background()
	led := &fakeLedger{}
	refresher := &recordingRefresher{}
	audit := &recordingAuditor{}
	svc := NewService(led, &fakeCosts{}, refresher, audit, noopTxManager{})

	o := validOpening()
	entryID, err := svc.Set(ctx, o)
	require.NoError(t, err)
	require.False(t, id.IsNil(entryID))

	require.Len(t, led.entries, 1)
	entry := led.entries[0]
	assert.Equal(t, ledger.TxnOpeningBalance, entry.TxnType)
	assert.Equal(t, ledger.RefOpeningBalance, entry.Kind)
	assert.Equal(t, entry.ID, entry.Reference.ID, "opening entries reference themselves")
	require.NotNil(t, entry.UnitCost)
	assert.True(t, entry.UnitCost.Equal(o.UnitCost))

	assert.Equal(t, []refreshedPair{{branchID: o.BranchID, itemID: o.ItemID}}, refresher.pairs)
	assert.Equal(t, []string{"opening_balance"}, audit.entityTypes)
	assert.Equal(t, []id.ID{entryID}, audit.entityIDs)
}

func TestSet_RejectsSecondOpeningForPair(t *testing.T) {
	ctx := context.Background()
	o := validOpening()

	existing := decimal.RequireFromString("3")
	costs := &fakeCosts{existing: map[[2]id.ID]*decimal.Decimal{
		{o.ItemID, o.BranchID}: &existing,
	}}
	led := &fakeLedger{}
	refresher := &recordingRefresher{}
	svc := NewService(led, costs, refresher, &recordingAuditor{}, noopTxManager{})

	_, err := svc.Set(ctx, o)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeConflict, appErr.Code)
	assert.Empty(t, led.entries)
	assert.Empty(t, refresher.pairs)
}

func TestSet_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *Opening)
	}{
		{"missing branch", func(o *Opening) { o.BranchID = id.Nil() }},
		{"missing item", func(o *Opening) { o.ItemID = id.Nil() }},
		{"zero quantity", func(o *Opening) { o.Quantity = 0 }},
		{"negative quantity", func(o *Opening) { o.Quantity = types.NewQuantityFromFloat64(-5) }},
		{"negative cost", func(o *Opening) { o.UnitCost = decimal.RequireFromString("-1") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			led := &fakeLedger{}
			svc := NewService(led, &fakeCosts{}, &recordingRefresher{}, &recordingAuditor{}, noopTxManager{})

			o := validOpening()
			tt.mutate(o)

			_, err := svc.Set(context.Background(), o)
			require.Error(t, err)
			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, apperror.CodeValidation, appErr.Code)
			assert.Empty(t, led.entries)
		})
	}
}

func TestCorrect_RefreshesAffectedPair(t *testing.T) {
	ctx := context.Background()
	itemID, branchID := id.New(), id.New()
	entryID := id.New()

	led := &fakeLedger{delta: ledger.CorrectionDelta{
		EntryID:       entryID,
		ItemID:        itemID,
		BranchID:      branchID,
		QuantityDelta: types.NewQuantityFromFloat64(-20),
	}}
	refresher := &recordingRefresher{}
	audit := &recordingAuditor{}
	svc := NewService(led, &fakeCosts{}, refresher, audit, noopTxManager{})

	delta, err := svc.Correct(ctx, id.New(), entryID, types.NewQuantityFromFloat64(80), decimal.RequireFromString("3.5"))
	require.NoError(t, err)
	assert.Equal(t, led.delta, delta)
	assert.Equal(t, []id.ID{entryID}, led.corrected)
	assert.Equal(t, []refreshedPair{{branchID: branchID, itemID: itemID}}, refresher.pairs)
	assert.Equal(t, []string{"opening_balance"}, audit.entityTypes)
}

func TestCorrect_PropagatesLedgerError(t *testing.T) {
	led := &fakeLedger{corrErr: errors.New("entry gone")}
	refresher := &recordingRefresher{}
	svc := NewService(led, &fakeCosts{}, refresher, &recordingAuditor{}, noopTxManager{})

	_, err := svc.Correct(context.Background(), id.New(), id.New(), types.NewQuantityFromFloat64(1), decimal.Zero)
	require.Error(t, err)
	assert.Empty(t, refresher.pairs)
}
