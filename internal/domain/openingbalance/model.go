// Package openingbalance maintains the initial stock positions a company
// loads before go-live. An opening balance is an ordinary ledger entry of
// type OPENING_BALANCE that references itself, so it needs no document
// header; corrections rewrite the entry in place instead of appending a
// compensating movement.
package openingbalance

import (
	"time"

	"github.com/shopspring/decimal"

	"apotheca/internal/core/apperror"
	"apotheca/internal/core/id"
	"apotheca/internal/core/types"
)

// Opening describes the initial position to record for one item at one
// branch.
type Opening struct {
	CompanyID id.ID `json:"companyId"`
	BranchID  id.ID `json:"branchId"`
	ItemID    id.ID `json:"itemId"`

	Quantity types.Quantity  `json:"quantity"`
	UnitCost decimal.Decimal `json:"unitCost"`

	BatchNumber *string    `json:"batchNumber,omitempty"`
	ExpiryDate  *time.Time `json:"expiryDate,omitempty"`
}

func (o *Opening) Validate() error {
	if id.IsNil(o.CompanyID) || id.IsNil(o.BranchID) || id.IsNil(o.ItemID) {
		return apperror.NewValidation("company_id, branch_id and item_id are required")
	}
	if !o.Quantity.IsPositive() {
		return apperror.NewValidation("opening balance quantity must be positive")
	}
	if o.UnitCost.IsNegative() {
		return apperror.NewValidation("opening balance unit cost cannot be negative")
	}
	return nil
}
