package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"apotheca/internal/core/apperror"
	"apotheca/internal/core/id"
	"apotheca/internal/core/types"
	"apotheca/internal/domain/catalogs/branch"
	"apotheca/internal/domain/catalogs/company"
	"apotheca/internal/domain/catalogs/item"
	"apotheca/internal/domain/ledger"
	"apotheca/internal/domain/pricing"
	"apotheca/pkg/logger"
)

// LedgerSource is the slice of the ledger the refresher reads.
type LedgerSource interface {
	SumQuantity(ctx context.Context, itemID, branchID id.ID, asOf *time.Time) (types.Quantity, error)
	BatchStock(ctx context.Context, itemID, branchID id.ID) ([]ledger.BatchStock, error)
	LastPurchaseCost(ctx context.Context, itemID, branchID id.ID) (*decimal.Decimal, error)
}

// CostResolver resolves the best available cost for a pair.
type CostResolver interface {
	BestAvailableCost(ctx context.Context, itemID, branchID, companyID id.ID) (decimal.Decimal, error)
}

// Enqueuer is the slice of the refresh queue the refresher uses for
// bulk-impact writes.
type Enqueuer interface {
	EnqueueBranch(ctx context.Context, companyID, branchID id.ID, reason string) error
	EnqueueItems(ctx context.Context, companyID, branchID id.ID, itemIDs []id.ID) error
}

// Scope selects what a refresh covers. The zero value means the whole
// branch. ItemIDs distinguishes nil (absent) from an empty non-nil slice
// (explicit empty list, a no-op) to mirror the write paths: a document
// with zero lines refreshes nothing, while a pricing change with no item
// scope refreshes the branch.
type Scope struct {
	ItemID  *id.ID
	ItemIDs []id.ID
}

// Refresher recomputes snapshot rows from the ledger and pricing inputs.
//
// Single-pair refreshes run synchronously inside the caller's transaction
// and their failure must roll the caller back; bulk refreshes are deferred
// to the queue so no request holds a branch-sized transaction.
type Refresher struct {
	snapshots Repository
	ledger    LedgerSource
	pricing   CostResolver
	items     item.Repository
	branches  branch.Repository
	companies company.Repository
	queue     Enqueuer
}

// NewRefresher creates a snapshot refresher.
func NewRefresher(
	snapshots Repository,
	ledgerSrc LedgerSource,
	pricing CostResolver,
	items item.Repository,
	branches branch.Repository,
	companies company.Repository,
	queue Enqueuer,
) *Refresher {
	return &Refresher{
		snapshots: snapshots,
		ledger:    ledgerSrc,
		pricing:   pricing,
		items:     items,
		branches:  branches,
		companies: companies,
		queue:     queue,
	}
}

// ScheduleRefresh is the single entry point for write paths.
//
//	scope.ItemID set              -> synchronous recompute of that pair
//	scope.ItemIDs empty non-nil   -> no-op
//	scope.ItemIDs length 1        -> synchronous recompute of that pair
//	scope.ItemIDs length > 1      -> one deduplicated job per item
//	no scope                      -> one deduplicated branch-wide job
func (r *Refresher) ScheduleRefresh(ctx context.Context, companyID, branchID id.ID, scope Scope) error {
	if scope.ItemID != nil {
		return r.RefreshItemSync(ctx, companyID, branchID, *scope.ItemID)
	}

	if scope.ItemIDs != nil {
		switch len(scope.ItemIDs) {
		case 0:
			return nil
		case 1:
			return r.RefreshItemSync(ctx, companyID, branchID, scope.ItemIDs[0])
		default:
			return r.queue.EnqueueItems(ctx, companyID, branchID, scope.ItemIDs)
		}
	}

	return r.queue.EnqueueBranch(ctx, companyID, branchID, "")
}

// RefreshItemSync recomputes and upserts the snapshot row for one pair.
// Runs in the caller's existing transaction; any failure propagates so
// the caller rolls back rather than commit a ledger change with a stale
// snapshot.
func (r *Refresher) RefreshItemSync(ctx context.Context, companyID, branchID, itemID id.ID) error {
	row, err := r.compute(ctx, companyID, branchID, itemID)
	if err != nil {
		return err
	}
	if err := r.snapshots.Upsert(ctx, row); err != nil {
		return apperror.NewSnapshotRefresh(itemID.String(), branchID.String(), err)
	}
	return nil
}

// RefreshItemSafe is the lenient variant for write paths that must not
// fail because of the snapshot alone (e.g. during a deploy window before
// migrations run). It logs and discards the error, accepting staleness.
func (r *Refresher) RefreshItemSafe(ctx context.Context, companyID, branchID, itemID id.ID) {
	if err := r.RefreshItemSync(ctx, companyID, branchID, itemID); err != nil {
		logger.Warn(ctx, "snapshot refresh failed, continuing",
			"item_id", itemID,
			"branch_id", branchID,
			"error", err,
		)
	}
}

// RefreshItemAllBranches synchronously refreshes one item across every
// active branch of its company. Used by item edits; bounded by branch
// count, which is assumed small.
func (r *Refresher) RefreshItemAllBranches(ctx context.Context, companyID, itemID id.ID) error {
	branches, err := r.branches.ListActive(ctx, companyID)
	if err != nil {
		return fmt.Errorf("list active branches: %w", err)
	}
	for _, b := range branches {
		if err := r.RefreshItemSync(ctx, companyID, b.ID, itemID); err != nil {
			return fmt.Errorf("branch %s: %w", b.ID, err)
		}
	}
	return nil
}

// SeedItemBranches writes the zero-stock snapshot rows for a freshly
// created item so it shows up in branch listings before its first
// movement. Seeding is best effort: a branch that fails here heals on
// the item's first posting or the next branch drain, so the create
// itself never rolls back over it.
func (r *Refresher) SeedItemBranches(ctx context.Context, companyID, itemID id.ID) error {
	branches, err := r.branches.ListActive(ctx, companyID)
	if err != nil {
		return fmt.Errorf("list active branches: %w", err)
	}
	for _, b := range branches {
		r.RefreshItemSafe(ctx, companyID, b.ID, itemID)
	}
	return nil
}

// compute builds the snapshot row for a pair from current ledger and
// master data state. Pure read; the same inputs always produce the same
// row (UpdatedAt aside), which makes the subsequent upsert idempotent.
func (r *Refresher) compute(ctx context.Context, companyID, branchID, itemID id.ID) (*Row, error) {
	it, err := r.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("load item: %w", err)
	}
	if it == nil {
		return nil, apperror.NewNotFound("item", itemID)
	}

	stock, err := r.ledger.SumQuantity(ctx, itemID, branchID, nil)
	if err != nil {
		return nil, fmt.Errorf("sum ledger quantity: %w", err)
	}

	cost, err := r.pricing.BestAvailableCost(ctx, itemID, branchID, companyID)
	if err != nil {
		return nil, fmt.Errorf("resolve cost: %w", err)
	}

	lastPurchase, err := r.ledger.LastPurchaseCost(ctx, itemID, branchID)
	if err != nil {
		return nil, fmt.Errorf("last purchase cost: %w", err)
	}

	margin, err := r.resolveMargin(ctx, it, companyID)
	if err != nil {
		return nil, err
	}

	nextExpiry, err := r.nextExpiry(ctx, itemID, branchID)
	if err != nil {
		return nil, err
	}

	return &Row{
		ItemID:            itemID,
		BranchID:          branchID,
		CompanyID:         companyID,
		CurrentStock:      stock,
		AverageCost:       cost,
		LastPurchasePrice: lastPurchase,
		SellingPrice:      pricing.SellingPrice(cost, margin),
		MarginPercent:     margin,
		NextExpiryDate:    nextExpiry,
		SearchText:        BuildSearchText(it),
		ItemName:          it.Name,
		SKU:               it.SKU,
		Barcode:           it.Barcode,
		PackSize:          it.PackSize,
		BaseUnit:          it.BaseUnit,
		VATRate:           it.VATRate,
		UpdatedAt:         time.Now().UTC(),
	}, nil
}

// resolveMargin prefers the item's own margin, falling back to the
// company default. Nil when neither is set.
func (r *Refresher) resolveMargin(ctx context.Context, it *item.Item, companyID id.ID) (*decimal.Decimal, error) {
	if it.MarginPercent != nil {
		return it.MarginPercent, nil
	}
	c, err := r.companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("load company: %w", err)
	}
	if c == nil {
		return nil, nil
	}
	return c.DefaultMarginPercent, nil
}

// nextExpiry is MIN(expiry_date) over batches with positive remaining
// quantity. Nil when no dated batch remains.
func (r *Refresher) nextExpiry(ctx context.Context, itemID, branchID id.ID) (*time.Time, error) {
	batches, err := r.ledger.BatchStock(ctx, itemID, branchID)
	if err != nil {
		return nil, fmt.Errorf("batch stock: %w", err)
	}
	var min *time.Time
	for i := range batches {
		exp := batches[i].ExpiryDate
		if exp == nil || !batches[i].Remaining.IsPositive() {
			continue
		}
		if min == nil || exp.Before(*min) {
			min = exp
		}
	}
	return min, nil
}
