// Package company provides the company catalog: the top-level tenant
// entity owning branches, items and ledger data.
package company

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"apotheca/internal/core/apperror"
	"apotheca/internal/core/id"
)

// Company is a pharmacy chain. DefaultMarginPercent applies to items
// without their own margin; changing it invalidates every snapshot row
// of every branch.
type Company struct {
	ID id.ID `db:"id" json:"id"`

	Name     string `db:"name" json:"name"`
	TaxID    *string `db:"tax_id" json:"taxId,omitempty"`
	Currency string `db:"currency" json:"currency"`

	DefaultMarginPercent *decimal.Decimal `db:"default_margin_percent" json:"defaultMarginPercent,omitempty"`

	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Validate checks company invariants.
func (c *Company) Validate(ctx context.Context) error {
	if c.Name == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if c.DefaultMarginPercent != nil && c.DefaultMarginPercent.IsNegative() {
		return apperror.NewValidation("default margin percent cannot be negative")
	}
	return nil
}

// Repository defines persistence operations for the company catalog.
type Repository interface {
	GetByID(ctx context.Context, companyID id.ID) (*Company, error)
	Update(ctx context.Context, company *Company) error
}
