// Package purchase implements supplier purchase invoices. Posting one
// appends PURCHASE ledger entries and brings the touched snapshot rows
// up to date before the transaction commits.
package purchase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"apotheca/internal/core/apperror"
	"apotheca/internal/core/id"
	"apotheca/internal/core/types"
)

// Invoice is a supplier delivery. Draft until posted; posting is
// one-way.
type Invoice struct {
	ID           id.ID      `db:"id" json:"id"`
	CompanyID    id.ID      `db:"company_id" json:"companyId"`
	BranchID     id.ID      `db:"branch_id" json:"branchId"`
	SupplierName string     `db:"supplier_name" json:"supplierName"`
	InvoiceDate  time.Time  `db:"invoice_date" json:"invoiceDate"`
	Posted       bool       `db:"posted" json:"posted"`
	PostedAt     *time.Time `db:"posted_at" json:"postedAt,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`

	Lines []Line `db:"-" json:"lines"`
}

// Line is one received item. Quantity and UnitCost are per base unit.
type Line struct {
	ID          id.ID           `db:"id" json:"id"`
	InvoiceID   id.ID           `db:"invoice_id" json:"invoiceId"`
	ItemID      id.ID           `db:"item_id" json:"itemId"`
	Quantity    types.Quantity  `db:"quantity" json:"quantity"`
	UnitCost    decimal.Decimal `db:"unit_cost" json:"unitCost"`
	BatchNumber *string         `db:"batch_number" json:"batchNumber,omitempty"`
	ExpiryDate  *time.Time      `db:"expiry_date" json:"expiryDate,omitempty"`
}

func (inv *Invoice) Validate() error {
	if inv.SupplierName == "" {
		return apperror.NewValidation("supplier name is required")
	}
	if len(inv.Lines) == 0 {
		return apperror.NewValidation("invoice must have at least one line")
	}
	for i := range inv.Lines {
		l := &inv.Lines[i]
		if !l.Quantity.IsPositive() {
			return apperror.NewValidation("line quantity must be positive")
		}
		if l.UnitCost.IsNegative() {
			return apperror.NewValidation("line unit cost must not be negative")
		}
	}
	return nil
}

// Repository persists invoices with their lines.
type Repository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, companyID, invID id.ID) (*Invoice, error)
	MarkPosted(ctx context.Context, invID id.ID, postedAt time.Time) error
	ListByBranch(ctx context.Context, companyID, branchID id.ID, limit, offset int) ([]Invoice, error)
}
