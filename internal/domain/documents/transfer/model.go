// Package transfer implements inter-branch stock transfers. Posting
// writes a TRANSFER_OUT entry at the source branch and a matching
// TRANSFER_IN at the destination, priced at the source branch's
// current cost.
package transfer

import (
	"context"
	"time"

	"apotheca/internal/core/apperror"
	"apotheca/internal/core/id"
	"apotheca/internal/core/types"
)

type Transfer struct {
	ID           id.ID      `db:"id" json:"id"`
	CompanyID    id.ID      `db:"company_id" json:"companyId"`
	SourceBranch id.ID      `db:"source_branch_id" json:"sourceBranchId"`
	DestBranch   id.ID      `db:"dest_branch_id" json:"destBranchId"`
	Posted       bool       `db:"posted" json:"posted"`
	PostedAt     *time.Time `db:"posted_at" json:"postedAt,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`

	Lines []Line `db:"-" json:"lines"`
}

type Line struct {
	ID         id.ID          `db:"id" json:"id"`
	TransferID id.ID          `db:"transfer_id" json:"transferId"`
	ItemID     id.ID          `db:"item_id" json:"itemId"`
	Quantity   types.Quantity `db:"quantity" json:"quantity"`
}

func (t *Transfer) Validate() error {
	if t.SourceBranch == t.DestBranch {
		return apperror.NewValidation("source and destination branch must differ")
	}
	if len(t.Lines) == 0 {
		return apperror.NewValidation("transfer must have at least one line")
	}
	for i := range t.Lines {
		if !t.Lines[i].Quantity.IsPositive() {
			return apperror.NewValidation("line quantity must be positive")
		}
	}
	return nil
}

type Repository interface {
	Create(ctx context.Context, t *Transfer) error
	GetByID(ctx context.Context, companyID, transferID id.ID) (*Transfer, error)
	MarkPosted(ctx context.Context, transferID id.ID, postedAt time.Time) error
	ListByBranch(ctx context.Context, companyID, branchID id.ID, limit, offset int) ([]Transfer, error)
}
