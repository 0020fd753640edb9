package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"apotheca/internal/core/id"
	"apotheca/internal/core/types"
)

// Repository defines persistence operations for the ledger.
// Insert is the only general mutation; UpdateOpeningBalance is the
// documented correction path and must stay confined to OPENING_BALANCE rows.
type Repository interface {
	// Insert appends one entry.
	Insert(ctx context.Context, entry *Entry) error

	// InsertBatch appends many entries (multi-line document postings).
	InsertBatch(ctx context.Context, entries []Entry) error

	// GetByID retrieves a single entry.
	GetByID(ctx context.Context, entryID id.ID) (*Entry, error)

	// SumQuantity returns SUM(quantity_delta) for the pair, optionally as of
	// a point in time.
	SumQuantity(ctx context.Context, itemID, branchID id.ID, asOf *time.Time) (types.Quantity, error)

	// Movements returns entries for the pair ordered by (created_at, id)
	// ascending, for deterministic running-balance computation.
	Movements(ctx context.Context, itemID, branchID id.ID, filter MovementFilter) ([]Entry, error)

	// BatchStock returns per-(batch, expiry) remaining quantities with
	// positive remainder only.
	BatchStock(ctx context.Context, itemID, branchID id.ID) ([]BatchStock, error)

	// LastPurchaseCost returns the unit cost of the most recent PURCHASE
	// entry with positive delta, or nil when the pair has none.
	LastPurchaseCost(ctx context.Context, itemID, branchID id.ID) (*decimal.Decimal, error)

	// OpeningBalanceCost returns the unit cost of the pair's opening
	// balance entry, or nil when there is none.
	OpeningBalanceCost(ctx context.Context, itemID, branchID id.ID) (*decimal.Decimal, error)

	// WeightedAverageCost returns SUM(delta*cost)/SUM(delta) over entries
	// with positive delta, or nil when the pair has no positive entries.
	WeightedAverageCost(ctx context.Context, itemID, branchID id.ID) (*decimal.Decimal, error)

	// UpdateOpeningBalance rewrites quantity and cost of an existing
	// OPENING_BALANCE entry. Implementations must refuse other txn types.
	UpdateOpeningBalance(ctx context.Context, entryID id.ID, quantity types.Quantity, unitCost decimal.Decimal) error
}

// MovementFilter narrows a movement query.
type MovementFilter struct {
	From    *time.Time
	To      *time.Time
	TxnType *TxnType
	Limit   int
	Offset  int
}
