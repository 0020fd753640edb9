package openingbalance

import (
	"context"

	"github.com/shopspring/decimal"

	"apotheca/internal/core/apperror"
	"apotheca/internal/core/id"
	"apotheca/internal/core/tx"
	"apotheca/internal/core/types"
	"apotheca/internal/domain/ledger"
	"apotheca/pkg/logger"
)

type Ledger interface {
	Append(ctx context.Context, entry *ledger.Entry) (id.ID, error)
	CorrectOpeningBalance(ctx context.Context, companyID, entryID id.ID, newQuantity types.Quantity, newCost decimal.Decimal) (ledger.CorrectionDelta, error)
}

type Costs interface {
	OpeningBalanceCost(ctx context.Context, itemID, branchID id.ID) (*decimal.Decimal, error)
}

type Refresher interface {
	RefreshItemSync(ctx context.Context, companyID, branchID, itemID id.ID) error
}

type Auditor interface {
	LogPost(ctx context.Context, companyID id.ID, entityType string, entityID id.ID, payload any) error
}

type Service struct {
	ledger    Ledger
	costs     Costs
	refresher Refresher
	audit     Auditor
	txManager tx.Manager
}

func NewService(ledger Ledger, costs Costs, refresher Refresher, audit Auditor, txManager tx.Manager) *Service {
	return &Service{
		ledger:    ledger,
		costs:     costs,
		refresher: refresher,
		audit:     audit,
		txManager: txManager,
	}
}

// Set records the opening position for an item at a branch. The entry,
// the audit record and the snapshot refresh share one transaction, so
// the snapshot never lags the opening it covers.
func (s *Service) Set(ctx context.Context, o *Opening) (id.ID, error) {
	if err := o.Validate(); err != nil {
		return id.Nil(), err
	}

	var entryID id.ID
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.costs.OpeningBalanceCost(ctx, o.ItemID, o.BranchID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperror.NewConflict("opening balance already recorded for this item and branch")
		}

		entry := ledger.NewEntry(o.CompanyID, o.BranchID, o.ItemID,
			ledger.TxnOpeningBalance, o.Quantity, ledger.Reference{})
		// An opening has no source document, so the entry references
		// itself.
		entry.Reference = ledger.Reference{Kind: ledger.RefOpeningBalance, ID: entry.ID}
		entry.UnitCost = &o.UnitCost
		entry.BatchNumber = o.BatchNumber
		entry.ExpiryDate = o.ExpiryDate

		if entryID, err = s.ledger.Append(ctx, &entry); err != nil {
			return err
		}
		if err := s.audit.LogPost(ctx, o.CompanyID, "opening_balance", entryID, entry); err != nil {
			return err
		}
		return s.refresher.RefreshItemSync(ctx, o.CompanyID, o.BranchID, o.ItemID)
	})
	if err != nil {
		return id.Nil(), err
	}

	logger.Info(ctx, "recorded opening balance",
		"entry_id", entryID,
		"item_id", o.ItemID,
		"branch_id", o.BranchID,
	)
	return entryID, nil
}

// Correct rewrites an existing opening entry and refreshes the affected
// snapshot pair from the returned delta.
func (s *Service) Correct(ctx context.Context, companyID, entryID id.ID, newQuantity types.Quantity, newCost decimal.Decimal) (ledger.CorrectionDelta, error) {
	var delta ledger.CorrectionDelta
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		if delta, err = s.ledger.CorrectOpeningBalance(ctx, companyID, entryID, newQuantity, newCost); err != nil {
			return err
		}
		if err := s.audit.LogPost(ctx, companyID, "opening_balance", entryID, delta); err != nil {
			return err
		}
		return s.refresher.RefreshItemSync(ctx, companyID, delta.BranchID, delta.ItemID)
	})
	if err != nil {
		return ledger.CorrectionDelta{}, err
	}
	return delta, nil
}
