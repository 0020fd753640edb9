package reports

import (
	"context"
	"fmt"
	"time"

	"apotheca/internal/core/id"
	"apotheca/internal/core/types"
	"apotheca/internal/domain/ledger"
)

// Ledger is the slice of the ledger service the movement report needs.
type Ledger interface {
	Movements(ctx context.Context, itemID, branchID id.ID, filter ledger.MovementFilter) ([]ledger.Entry, error)
	SumQuantity(ctx context.Context, itemID, branchID id.ID, asOf *time.Time) (types.Quantity, error)
}

type Service struct {
	repo   Repository
	ledger Ledger
}

func NewService(repo Repository, ledger Ledger) *Service {
	return &Service{repo: repo, ledger: ledger}
}

// Movement builds the movement history for one pair. The running
// balance follows the ledger's (created_at, id) ordering, so replaying
// the rows always lands on the closing balance regardless of how the
// entries interleave in wall-clock time.
func (s *Service) Movement(ctx context.Context, itemID, branchID id.ID, filter ledger.MovementFilter) (*MovementReport, error) {
	opening := types.Quantity(0)
	if filter.From != nil {
		var err error
		opening, err = s.ledger.SumQuantity(ctx, itemID, branchID, filter.From)
		if err != nil {
			return nil, fmt.Errorf("opening balance: %w", err)
		}
	}

	entries, err := s.ledger.Movements(ctx, itemID, branchID, filter)
	if err != nil {
		return nil, fmt.Errorf("movements: %w", err)
	}

	report := &MovementReport{
		ItemID:         itemID,
		BranchID:       branchID,
		OpeningBalance: opening,
		Rows:           make([]MovementRow, 0, len(entries)),
	}
	balance := opening
	for i := range entries {
		balance += entries[i].QuantityDelta
		report.Rows = append(report.Rows, MovementRow{
			Entry:   entries[i],
			Balance: balance,
		})
	}
	report.ClosingBalance = balance
	return report, nil
}

// Expiry lists batches expiring within the horizon, soonest first.
func (s *Service) Expiry(ctx context.Context, companyID, branchID id.ID, horizon time.Duration, limit int) ([]ExpiryRow, error) {
	if limit <= 0 {
		limit = 100
	}
	cutoff := time.Now().UTC().Add(horizon)
	return s.repo.ExpiringBatches(ctx, companyID, branchID, cutoff, limit)
}

// Valuation reads stock value per branch from the snapshot table. It
// deliberately trusts the denormalized rows; reconciliation is the
// check that they can be trusted.
func (s *Service) Valuation(ctx context.Context, companyID id.ID) ([]ValuationRow, error) {
	return s.repo.Valuation(ctx, companyID)
}

// Reconcile reports, per branch, ledger pairs versus snapshot rows.
func (s *Service) Reconcile(ctx context.Context, companyID id.ID) ([]ReconcileRow, error) {
	return s.repo.ReconcileCounts(ctx, companyID)
}

// MissingPairs lists items at one branch that have ledger history but
// no snapshot row.
func (s *Service) MissingPairs(ctx context.Context, companyID, branchID id.ID, limit int) ([]id.ID, error) {
	if limit <= 0 {
		limit = 1000
	}
	return s.repo.MissingPairs(ctx, companyID, branchID, limit)
}
