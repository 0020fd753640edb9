// Package adjustment implements stock adjustments: count corrections,
// write-offs, found stock. Lines carry signed deltas.
package adjustment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"apotheca/internal/core/apperror"
	"apotheca/internal/core/id"
	"apotheca/internal/core/types"
)

type Adjustment struct {
	ID        id.ID      `db:"id" json:"id"`
	CompanyID id.ID      `db:"company_id" json:"companyId"`
	BranchID  id.ID      `db:"branch_id" json:"branchId"`
	Reason    string     `db:"reason" json:"reason"`
	Posted    bool       `db:"posted" json:"posted"`
	PostedAt  *time.Time `db:"posted_at" json:"postedAt,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`

	Lines []Line `db:"-" json:"lines"`
}

// Line is one item correction. UnitCost is required for positive
// deltas, where the ledger needs a cost for the incoming stock.
type Line struct {
	ID           id.ID            `db:"id" json:"id"`
	AdjustmentID id.ID            `db:"adjustment_id" json:"adjustmentId"`
	ItemID       id.ID            `db:"item_id" json:"itemId"`
	QuantityDelta types.Quantity  `db:"quantity_delta" json:"quantityDelta"`
	UnitCost     *decimal.Decimal `db:"unit_cost" json:"unitCost,omitempty"`
	BatchNumber  *string          `db:"batch_number" json:"batchNumber,omitempty"`
	ExpiryDate   *time.Time       `db:"expiry_date" json:"expiryDate,omitempty"`
}

func (a *Adjustment) Validate() error {
	if a.Reason == "" {
		return apperror.NewValidation("adjustment reason is required")
	}
	if len(a.Lines) == 0 {
		return apperror.NewValidation("adjustment must have at least one line")
	}
	for i := range a.Lines {
		l := &a.Lines[i]
		if l.QuantityDelta.IsZero() {
			return apperror.NewValidation("line quantity delta must not be zero")
		}
		if l.QuantityDelta.IsPositive() && l.UnitCost == nil {
			return apperror.NewValidation("unit cost is required for positive adjustments")
		}
	}
	return nil
}

type Repository interface {
	Create(ctx context.Context, adj *Adjustment) error
	GetByID(ctx context.Context, companyID, adjID id.ID) (*Adjustment, error)
	MarkPosted(ctx context.Context, adjID id.ID, postedAt time.Time) error
	ListByBranch(ctx context.Context, companyID, branchID id.ID, limit, offset int) ([]Adjustment, error)
}
