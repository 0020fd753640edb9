package refreshqueue

import (
	"context"
	"time"

	"apotheca/internal/core/id"
)

// Repository is the persistence contract for refresh jobs.
type Repository interface {
	// InsertIfAbsent inserts the job unless an unprocessed job with the
	// same (company_id, branch_id, item_id) key already exists, the
	// NULL-item branch-wide key included. Returns true when a row was
	// actually inserted. Must run as a single statement so concurrent
	// enqueuers cannot both pass the existence check.
	InsertIfAbsent(ctx context.Context, job *Job) (bool, error)

	// ClaimBatch marks up to limit claimable jobs as claimed by now()
	// and returns them, oldest first. Claimable means unprocessed and
	// either never claimed or claimed longer than staleAfter ago. Uses
	// FOR UPDATE SKIP LOCKED so concurrent workers never block on or
	// double-claim the same rows.
	ClaimBatch(ctx context.Context, limit int, staleAfter time.Duration) ([]*Job, error)

	// TouchClaim re-stamps claimed_at on a job the worker still holds,
	// extending the lease past StaleClaimAfter.
	TouchClaim(ctx context.Context, jobID id.ID) error

	// MarkProcessed stamps processed_at. Idempotent.
	MarkProcessed(ctx context.Context, jobID id.ID) error

	// ReleaseClaim clears claimed_at so the job becomes immediately
	// claimable again. Used when a worker gives up a job it cannot
	// finish rather than waiting out the stale window.
	ReleaseClaim(ctx context.Context, jobID id.ID) error

	// Stats counts pending, claimed and stale unprocessed jobs.
	Stats(ctx context.Context, staleAfter time.Duration) (*Stats, error)

	// DeleteProcessedBefore purges processed jobs older than cutoff and
	// returns how many rows went away.
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
