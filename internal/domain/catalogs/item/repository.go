package item

import (
	"context"

	"apotheca/internal/core/id"
)

// Repository defines persistence operations for the item catalog.
type Repository interface {
	Create(ctx context.Context, item *Item) error
	Update(ctx context.Context, item *Item) error
	GetByID(ctx context.Context, itemID id.ID) (*Item, error)
	GetBySKU(ctx context.Context, companyID id.ID, sku string) (*Item, error)

	// ListActiveIDs pages through active item IDs for a company in stable
	// ID order. Used by the chunked branch-wide refresh.
	ListActiveIDs(ctx context.Context, companyID id.ID, afterID *id.ID, limit int) ([]id.ID, error)

	// CountActive returns the number of active items for a company.
	CountActive(ctx context.Context, companyID id.ID) (int, error)
}
