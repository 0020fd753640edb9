package snapshot

import (
	"context"

	"apotheca/internal/core/id"
)

// Repository defines persistence operations for snapshot rows.
type Repository interface {
	// Upsert inserts the row for its (item_id, branch_id) key, or
	// overwrites all derived columns when the pair already exists.
	Upsert(ctx context.Context, row *Row) error

	// Get returns the row for a pair, or nil when absent.
	Get(ctx context.Context, itemID, branchID id.ID) (*Row, error)

	// Search matches query words against search_text for a branch,
	// returning rows ordered by item name.
	Search(ctx context.Context, companyID, branchID id.ID, query string, limit int) ([]Row, error)

	// ListByBranch returns all rows of a branch ordered by item name.
	ListByBranch(ctx context.Context, companyID, branchID id.ID, limit, offset int) ([]Row, error)

	// CountByBranch returns the number of snapshot rows in a branch,
	// used by the reconciliation diagnostic.
	CountByBranch(ctx context.Context, companyID, branchID id.ID) (int, error)
}
