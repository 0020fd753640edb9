// Package ledger provides the append-only inventory ledger: the source of
// truth for stock quantity and cost history. Entries are immutable facts;
// the only sanctioned mutation is the opening-balance correction path,
// which reports an explicit old-to-new delta.
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"apotheca/internal/core/id"
	"apotheca/internal/core/types"
)

// TxnType classifies an inventory movement.
type TxnType string

const (
	TxnPurchase       TxnType = "PURCHASE"
	TxnSale           TxnType = "SALE"
	TxnAdjustment     TxnType = "ADJUSTMENT"
	TxnOpeningBalance TxnType = "OPENING_BALANCE"
	TxnTransferIn     TxnType = "TRANSFER_IN"
	TxnTransferOut    TxnType = "TRANSFER_OUT"
)

// Valid reports whether t is a known transaction type.
func (t TxnType) Valid() bool {
	switch t {
	case TxnPurchase, TxnSale, TxnAdjustment, TxnOpeningBalance, TxnTransferIn, TxnTransferOut:
		return true
	}
	return false
}

// ReferenceKind identifies the document kind that recorded an entry.
// Modeled as a closed enum with an exhaustive resolver, not free-form
// strings compared ad hoc.
type ReferenceKind string

const (
	RefPurchaseInvoice ReferenceKind = "purchase_invoice"
	RefSalesInvoice    ReferenceKind = "sales_invoice"
	RefStockAdjustment ReferenceKind = "stock_adjustment"
	RefStockTransfer   ReferenceKind = "stock_transfer"
	RefOpeningBalance  ReferenceKind = "opening_balance"
)

// ParseReferenceKind validates a stored reference kind.
func ParseReferenceKind(s string) (ReferenceKind, error) {
	k := ReferenceKind(s)
	switch k {
	case RefPurchaseInvoice, RefSalesInvoice, RefStockAdjustment, RefStockTransfer, RefOpeningBalance:
		return k, nil
	}
	return "", fmt.Errorf("unknown reference kind %q", s)
}

// Describe returns a human-readable document kind name for reports.
// The switch is exhaustive over all known kinds.
func (k ReferenceKind) Describe() string {
	switch k {
	case RefPurchaseInvoice:
		return "Purchase Invoice"
	case RefSalesInvoice:
		return "Sales Invoice"
	case RefStockAdjustment:
		return "Stock Adjustment"
	case RefStockTransfer:
		return "Stock Transfer"
	case RefOpeningBalance:
		return "Opening Balance"
	default:
		return string(k)
	}
}

// Reference links a ledger entry back to the document that recorded it.
type Reference struct {
	Kind ReferenceKind `db:"reference_kind" json:"referenceKind"`
	ID   id.ID         `db:"reference_id" json:"referenceId"`
}

// Entry is an immutable inventory movement fact.
// QuantityDelta is signed: receipts positive, issues negative.
// UnitCost is required whenever QuantityDelta is positive.
type Entry struct {
	ID          id.ID   `db:"id" json:"id"`
	CompanyID   id.ID   `db:"company_id" json:"companyId"`
	BranchID    id.ID   `db:"branch_id" json:"branchId"`
	ItemID      id.ID   `db:"item_id" json:"itemId"`
	TxnType     TxnType `db:"txn_type" json:"txnType"`

	QuantityDelta types.Quantity   `db:"quantity_delta" json:"quantityDelta"`
	UnitCost      *decimal.Decimal `db:"unit_cost" json:"unitCost,omitempty"`

	BatchNumber *string    `db:"batch_number" json:"batchNumber,omitempty"`
	ExpiryDate  *time.Time `db:"expiry_date" json:"expiryDate,omitempty"`

	Reference

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewEntry creates an entry with generated ID and timestamp.
func NewEntry(companyID, branchID, itemID id.ID, txnType TxnType, delta types.Quantity, ref Reference) Entry {
	return Entry{
		ID:            id.New(),
		CompanyID:     companyID,
		BranchID:      branchID,
		ItemID:        itemID,
		TxnType:       txnType,
		QuantityDelta: delta,
		Reference:     ref,
		CreatedAt:     time.Now().UTC(),
	}
}

// BatchStock is the remaining quantity of one batch of an item at a branch.
// Only batches with positive remaining quantity are reported.
type BatchStock struct {
	BatchNumber *string        `db:"batch_number" json:"batchNumber,omitempty"`
	ExpiryDate  *time.Time     `db:"expiry_date" json:"expiryDate,omitempty"`
	Remaining   types.Quantity `db:"remaining" json:"remaining"`
}

// CorrectionDelta reports the effect of an opening-balance correction so
// the snapshot refresher can reconcile the affected pair.
type CorrectionDelta struct {
	EntryID       id.ID
	ItemID        id.ID
	BranchID      id.ID
	QuantityDelta types.Quantity  // new quantity minus old quantity
	OldUnitCost   decimal.Decimal
	NewUnitCost   decimal.Decimal
}
