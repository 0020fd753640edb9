// Package item provides the item master catalog: drugs and retail goods
// sold by the pharmacy.
package item

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"apotheca/internal/core/apperror"
	"apotheca/internal/core/id"
)

// VATRate is the VAT percentage applied on sale.
type VATRate string

const (
	VAT0  VATRate = "0"
	VAT5  VATRate = "5"
	VAT15 VATRate = "15"
)

// Item is a pharmacy item master record. Display fields are denormalized
// into snapshot rows; DefaultCost and MarginPercent feed the pricing
// resolver.
type Item struct {
	ID        id.ID `db:"id" json:"id"`
	CompanyID id.ID `db:"company_id" json:"companyId"`

	Name    string  `db:"name" json:"name"`
	SKU     string  `db:"sku" json:"sku"`
	Barcode *string `db:"barcode" json:"barcode,omitempty"`

	PackSize int    `db:"pack_size" json:"packSize"`
	BaseUnit string `db:"base_unit" json:"baseUnit"`

	VATRate       VATRate          `db:"vat_rate" json:"vatRate"`
	DefaultCost   *decimal.Decimal `db:"default_cost" json:"defaultCost,omitempty"`
	MarginPercent *decimal.Decimal `db:"margin_percent" json:"marginPercent,omitempty"`

	Description *string `db:"description" json:"description,omitempty"`

	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// New creates an item with generated ID and defaults.
func New(companyID id.ID, name, sku string) *Item {
	now := time.Now().UTC()
	return &Item{
		ID:        id.New(),
		CompanyID: companyID,
		Name:      name,
		SKU:       sku,
		PackSize:  1,
		BaseUnit:  "unit",
		VATRate:   VAT0,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks item invariants.
func (i *Item) Validate(ctx context.Context) error {
	if i.Name == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if i.SKU == "" {
		return apperror.NewValidation("sku is required").WithDetail("field", "sku")
	}
	if i.PackSize <= 0 {
		return apperror.NewValidation("pack size must be positive").WithDetail("field", "pack_size")
	}
	if i.MarginPercent != nil && i.MarginPercent.IsNegative() {
		return apperror.NewValidation("margin percent cannot be negative").WithDetail("field", "margin_percent")
	}
	return nil
}
