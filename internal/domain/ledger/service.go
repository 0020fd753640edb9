package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"apotheca/internal/core/apperror"
	"apotheca/internal/core/id"
	"apotheca/internal/core/types"
	"apotheca/pkg/logger"
)

// Service provides business operations over the ledger.
// Transactions are managed by the caller (document posting services):
// every append shares the posting document's transaction.
type Service struct {
	repo Repository
}

// NewService creates a new ledger service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Append validates and inserts one entry, returning its ID.
// Persistence errors are fatal to the caller; there is no partial append.
func (s *Service) Append(ctx context.Context, entry *Entry) (id.ID, error) {
	if err := s.validate(entry); err != nil {
		return id.Nil(), err
	}
	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	if err := s.repo.Insert(ctx, entry); err != nil {
		return id.Nil(), fmt.Errorf("insert ledger entry: %w", err)
	}

	return entry.ID, nil
}

// AppendBatch validates and inserts entries from a multi-line document.
func (s *Service) AppendBatch(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range entries {
		if err := s.validate(&entries[i]); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		if id.IsNil(entries[i].ID) {
			entries[i].ID = id.New()
		}
		if entries[i].CreatedAt.IsZero() {
			entries[i].CreatedAt = now
		}
	}

	if err := s.repo.InsertBatch(ctx, entries); err != nil {
		return fmt.Errorf("insert ledger entries: %w", err)
	}

	logger.Info(ctx, "appended ledger entries",
		"count", len(entries),
		"reference_kind", entries[0].Kind,
		"reference_id", entries[0].Reference.ID,
	)

	return nil
}

// SumQuantity returns the current (or as-of) stock for an item at a branch.
func (s *Service) SumQuantity(ctx context.Context, itemID, branchID id.ID, asOf *time.Time) (types.Quantity, error) {
	qty, err := s.repo.SumQuantity(ctx, itemID, branchID, asOf)
	if err != nil {
		return 0, fmt.Errorf("sum quantity: %w", err)
	}
	return qty, nil
}

// Movements returns the pair's movements in deterministic order.
func (s *Service) Movements(ctx context.Context, itemID, branchID id.ID, filter MovementFilter) ([]Entry, error) {
	return s.repo.Movements(ctx, itemID, branchID, filter)
}

// BatchStock returns remaining quantity per batch with positive remainder.
func (s *Service) BatchStock(ctx context.Context, itemID, branchID id.ID) ([]BatchStock, error) {
	return s.repo.BatchStock(ctx, itemID, branchID)
}

// CorrectOpeningBalance rewrites an opening balance entry and returns the
// position delta so the caller can refresh the affected snapshot pair.
func (s *Service) CorrectOpeningBalance(ctx context.Context, companyID, entryID id.ID, newQuantity types.Quantity, newCost decimal.Decimal) (CorrectionDelta, error) {
	var delta CorrectionDelta

	old, err := s.repo.GetByID(ctx, entryID)
	if err != nil {
		return delta, fmt.Errorf("load opening balance entry: %w", err)
	}
	if old == nil || old.CompanyID != companyID {
		return delta, apperror.NewNotFound("ledger entry", entryID)
	}
	if old.TxnType != TxnOpeningBalance {
		return delta, apperror.NewBusinessRule(apperror.CodeBusinessRule,
			"only opening balance entries may be corrected").
			WithDetail("txn_type", string(old.TxnType))
	}
	if newQuantity.IsNegative() {
		return delta, apperror.NewValidation("opening balance quantity cannot be negative")
	}

	if err := s.repo.UpdateOpeningBalance(ctx, entryID, newQuantity, newCost); err != nil {
		return delta, fmt.Errorf("update opening balance: %w", err)
	}

	oldCost := decimal.Zero
	if old.UnitCost != nil {
		oldCost = *old.UnitCost
	}

	delta = CorrectionDelta{
		EntryID:       entryID,
		ItemID:        old.ItemID,
		BranchID:      old.BranchID,
		QuantityDelta: newQuantity - old.QuantityDelta,
		OldUnitCost:   oldCost,
		NewUnitCost:   newCost,
	}

	logger.Info(ctx, "corrected opening balance",
		"entry_id", entryID,
		"item_id", old.ItemID,
		"branch_id", old.BranchID,
		"quantity_delta", delta.QuantityDelta,
	)

	return delta, nil
}

func (s *Service) validate(entry *Entry) error {
	if id.IsNil(entry.CompanyID) || id.IsNil(entry.BranchID) || id.IsNil(entry.ItemID) {
		return apperror.NewValidation("company_id, branch_id and item_id are required")
	}
	if !entry.TxnType.Valid() {
		return apperror.NewValidation("unknown transaction type").
			WithDetail("txn_type", string(entry.TxnType))
	}
	if _, err := ParseReferenceKind(string(entry.Kind)); err != nil {
		return apperror.NewValidation("unknown reference kind").
			WithDetail("reference_kind", string(entry.Kind))
	}
	if entry.QuantityDelta.IsZero() {
		return apperror.NewValidation("quantity delta cannot be zero")
	}
	if entry.QuantityDelta.IsPositive() && entry.UnitCost == nil {
		return apperror.NewValidation("unit cost is required for receipts")
	}
	return nil
}
