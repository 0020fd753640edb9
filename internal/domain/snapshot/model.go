// Package snapshot maintains the denormalized per-(item, branch) stock
// snapshot: a read-optimized cache over the inventory ledger used by
// search and stock display. Rows are recomputed, never edited in place;
// the refresher's upsert is a pure function of current ledger and item
// master state, which is what makes refreshes idempotent.
package snapshot

import (
	"time"

	"github.com/shopspring/decimal"

	"apotheca/internal/core/id"
	"apotheca/internal/core/types"

	"apotheca/internal/domain/catalogs/item"
)

// Row is the snapshot for one item at one branch, unique per pair.
// CurrentStock equals SUM(quantity_delta) over the pair's ledger entries
// once all in-flight refreshes settle.
type Row struct {
	ItemID    id.ID `db:"item_id" json:"itemId"`
	BranchID  id.ID `db:"branch_id" json:"branchId"`
	CompanyID id.ID `db:"company_id" json:"companyId"`

	CurrentStock      types.Quantity   `db:"current_stock" json:"currentStock"`
	AverageCost       decimal.Decimal  `db:"average_cost" json:"averageCost"`
	LastPurchasePrice *decimal.Decimal `db:"last_purchase_price" json:"lastPurchasePrice,omitempty"`
	SellingPrice      *decimal.Decimal `db:"selling_price" json:"sellingPrice,omitempty"`
	MarginPercent     *decimal.Decimal `db:"margin_percent" json:"marginPercent,omitempty"`

	NextExpiryDate *time.Time `db:"next_expiry_date" json:"nextExpiryDate,omitempty"`

	SearchText string `db:"search_text" json:"-"`

	// Denormalized item display fields
	ItemName string       `db:"item_name" json:"itemName"`
	SKU      string       `db:"sku" json:"sku"`
	Barcode  *string      `db:"barcode" json:"barcode,omitempty"`
	PackSize int          `db:"pack_size" json:"packSize"`
	BaseUnit string       `db:"base_unit" json:"baseUnit"`
	VATRate  item.VATRate `db:"vat_rate" json:"vatRate"`

	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}
