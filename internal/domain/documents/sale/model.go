// Package sale implements retail sales invoices. Posting checks
// available stock per line before appending SALE ledger entries.
package sale

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"apotheca/internal/core/apperror"
	"apotheca/internal/core/id"
	"apotheca/internal/core/types"
)

type Invoice struct {
	ID           id.ID      `db:"id" json:"id"`
	CompanyID    id.ID      `db:"company_id" json:"companyId"`
	BranchID     id.ID      `db:"branch_id" json:"branchId"`
	CustomerName *string    `db:"customer_name" json:"customerName,omitempty"`
	InvoiceDate  time.Time  `db:"invoice_date" json:"invoiceDate"`
	Posted       bool       `db:"posted" json:"posted"`
	PostedAt     *time.Time `db:"posted_at" json:"postedAt,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`

	Lines []Line `db:"-" json:"lines"`
}

// Line is one sold item. UnitPrice is the price charged, not the cost;
// the ledger entry carries no cost because the delta is negative.
type Line struct {
	ID        id.ID           `db:"id" json:"id"`
	InvoiceID id.ID           `db:"invoice_id" json:"invoiceId"`
	ItemID    id.ID           `db:"item_id" json:"itemId"`
	Quantity  types.Quantity  `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unitPrice"`
}

func (inv *Invoice) Validate() error {
	if len(inv.Lines) == 0 {
		return apperror.NewValidation("invoice must have at least one line")
	}
	for i := range inv.Lines {
		l := &inv.Lines[i]
		if !l.Quantity.IsPositive() {
			return apperror.NewValidation("line quantity must be positive")
		}
		if l.UnitPrice.IsNegative() {
			return apperror.NewValidation("line unit price must not be negative")
		}
	}
	return nil
}

type Repository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, companyID, invID id.ID) (*Invoice, error)
	MarkPosted(ctx context.Context, invID id.ID, postedAt time.Time) error
	ListByBranch(ctx context.Context, companyID, branchID id.ID, limit, offset int) ([]Invoice, error)
}
