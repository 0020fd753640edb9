// Package branch provides the branch catalog: a company's retail outlets.
package branch

import (
	"context"
	"time"

	"apotheca/internal/core/apperror"
	"apotheca/internal/core/id"
)

// Branch is one retail outlet of a company. Snapshot rows and refresh
// queue jobs are keyed per branch.
type Branch struct {
	ID        id.ID `db:"id" json:"id"`
	CompanyID id.ID `db:"company_id" json:"companyId"`

	Code    string  `db:"code" json:"code"`
	Name    string  `db:"name" json:"name"`
	Address *string `db:"address" json:"address,omitempty"`
	Phone   *string `db:"phone" json:"phone,omitempty"`

	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// New creates a branch with generated ID.
func New(companyID id.ID, code, name string) *Branch {
	now := time.Now().UTC()
	return &Branch{
		ID:        id.New(),
		CompanyID: companyID,
		Code:      code,
		Name:      name,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks branch invariants.
func (b *Branch) Validate(ctx context.Context) error {
	if b.Name == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if b.Code == "" {
		return apperror.NewValidation("code is required").WithDetail("field", "code")
	}
	return nil
}

// Repository defines persistence operations for the branch catalog.
type Repository interface {
	Create(ctx context.Context, branch *Branch) error
	Update(ctx context.Context, branch *Branch) error
	GetByID(ctx context.Context, branchID id.ID) (*Branch, error)
	ListActive(ctx context.Context, companyID id.ID) ([]Branch, error)
}
