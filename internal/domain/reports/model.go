// Package reports builds read-only operational reports: item movement
// history with running balance, batch expiry, stock valuation and
// ledger/snapshot reconciliation.
package reports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"apotheca/internal/core/id"
	"apotheca/internal/core/types"
	"apotheca/internal/domain/ledger"
)

// MovementRow is one ledger entry annotated with the balance after it.
type MovementRow struct {
	Entry   ledger.Entry   `json:"entry"`
	Balance types.Quantity `json:"balance"`
}

// MovementReport is the full movement history of one pair, oldest
// first, with the opening balance the requested window started from.
type MovementReport struct {
	ItemID         id.ID          `json:"itemId"`
	BranchID       id.ID          `json:"branchId"`
	OpeningBalance types.Quantity `json:"openingBalance"`
	ClosingBalance types.Quantity `json:"closingBalance"`
	Rows           []MovementRow  `json:"rows"`
}

// ExpiryRow is one batch approaching its expiry date.
type ExpiryRow struct {
	ItemID      id.ID          `db:"item_id" json:"itemId"`
	ItemName    string         `db:"item_name" json:"itemName"`
	BranchID    id.ID          `db:"branch_id" json:"branchId"`
	BatchNumber *string        `db:"batch_number" json:"batchNumber,omitempty"`
	ExpiryDate  time.Time      `db:"expiry_date" json:"expiryDate"`
	Remaining   types.Quantity `db:"remaining" json:"remaining"`
}

// ValuationRow is one branch's stock value from the snapshot table.
type ValuationRow struct {
	BranchID   id.ID           `db:"branch_id" json:"branchId"`
	ItemCount  int             `db:"item_count" json:"itemCount"`
	TotalValue decimal.Decimal `db:"total_value" json:"totalValue"`
}

// ReconcileRow compares the pairs the ledger knows about with the
// snapshot rows that exist for one branch.
type ReconcileRow struct {
	BranchID id.ID `db:"branch_id" json:"branchId"`
	Expected int   `db:"expected" json:"expected"`
	Actual   int   `db:"actual" json:"actual"`
	Missing  int   `db:"missing" json:"missing"`
}

// Repository runs the cross-item report queries that don't belong to a
// single domain repository.
type Repository interface {
	// ExpiringBatches lists batches with positive remaining stock whose
	// expiry falls on or before the cutoff, soonest first.
	ExpiringBatches(ctx context.Context, companyID, branchID id.ID, before time.Time, limit int) ([]ExpiryRow, error)

	// Valuation sums current_stock * average_cost over snapshot rows,
	// grouped by branch.
	Valuation(ctx context.Context, companyID id.ID) ([]ValuationRow, error)

	// ReconcileCounts returns, per branch, how many (item, branch)
	// pairs appear in the ledger and how many of those have a snapshot
	// row.
	ReconcileCounts(ctx context.Context, companyID id.ID) ([]ReconcileRow, error)

	// MissingPairs lists ledger pairs with no snapshot row for one
	// branch, for targeted repair.
	MissingPairs(ctx context.Context, companyID, branchID id.ID, limit int) ([]id.ID, error)
}
