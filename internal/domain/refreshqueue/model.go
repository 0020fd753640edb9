// Package refreshqueue implements the durable snapshot refresh queue.
// Writers enqueue jobs inside their own transaction so a committed
// inventory change always has a matching refresh job; the worker
// drains them with crash-safe claims.
package refreshqueue

import (
	"time"

	"apotheca/internal/core/id"
)

// Enqueue reasons recorded for diagnostics.
const (
	ReasonDocumentPost = "document_post"
	ReasonMarginChange = "margin_change"
	ReasonItemChange   = "item_change"
	ReasonReconcile    = "reconcile"
)

// ChunkSize bounds how many items a branch-wide job refreshes per
// transaction. Small enough to keep commits short, large enough to
// amortize the claim round-trip.
const ChunkSize = 200

// StaleClaimAfter is how long a claim holds before another worker may
// steal the job. A healthy worker touches its claim after every chunk,
// so only a genuinely crashed worker's claim goes stale.
const StaleClaimAfter = time.Hour

// Job is one unit of deferred snapshot work. ItemID nil means the
// whole branch: every active item of the company at that branch.
type Job struct {
	ID          id.ID
	CompanyID   id.ID
	BranchID    id.ID
	ItemID      *id.ID
	Reason      string
	CreatedAt   time.Time
	ClaimedAt   *time.Time
	ProcessedAt *time.Time
}

// BranchWide reports whether the job covers every item of the branch.
func (j *Job) BranchWide() bool {
	return j.ItemID == nil
}

// Stats summarizes queue depth for monitoring endpoints.
type Stats struct {
	Pending int `json:"pending"`
	Claimed int `json:"claimed"`
	Stale   int `json:"stale"`
}
