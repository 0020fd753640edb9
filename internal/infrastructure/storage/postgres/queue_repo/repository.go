// Package queue_repo provides the PostgreSQL implementation of the
// refresh job queue. The dedup insert and the claim selection are kept
// as literal SQL: their correctness hangs on single-statement atomicity
// and on FOR UPDATE SKIP LOCKED, which a query builder would only
// obscure.
package queue_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"apotheca/internal/core/id"
	"apotheca/internal/domain/refreshqueue"
	"apotheca/internal/infrastructure/storage/postgres"
)

// Dedup key is (company_id, branch_id, item_id) over unprocessed rows.
// IS NOT DISTINCT FROM makes the NULL item_id (branch-wide) case
// collapse into the same key. Single statement, so two concurrent
// enqueuers cannot both pass the existence check.
const insertIfAbsentSQL = `
	INSERT INTO inv_refresh_jobs (id, company_id, branch_id, item_id, reason, created_at)
	SELECT $1, $2, $3, $4, $5, $6
	WHERE NOT EXISTS (
		SELECT 1 FROM inv_refresh_jobs
		WHERE company_id = $2
		  AND branch_id = $3
		  AND item_id IS NOT DISTINCT FROM $4
		  AND processed_at IS NULL
	)
`

// Claimable: unprocessed and either never claimed or claimed before
// the stale cutoff. SKIP LOCKED keeps concurrent workers from blocking
// on or double-claiming the same rows.
const claimBatchSQL = `
	UPDATE inv_refresh_jobs
	SET claimed_at = now()
	WHERE id IN (
		SELECT id FROM inv_refresh_jobs
		WHERE processed_at IS NULL
		  AND (claimed_at IS NULL OR claimed_at < $1)
		ORDER BY created_at, id
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	)
	RETURNING id, company_id, branch_id, item_id, reason, created_at, claimed_at, processed_at
`

const statsSQL = `
	SELECT
		COUNT(*) FILTER (WHERE claimed_at IS NULL)                       AS pending,
		COUNT(*) FILTER (WHERE claimed_at IS NOT NULL AND claimed_at >= $1) AS claimed,
		COUNT(*) FILTER (WHERE claimed_at IS NOT NULL AND claimed_at < $1)  AS stale
	FROM inv_refresh_jobs
	WHERE processed_at IS NULL
`

type Repo struct {
	txManager *postgres.TxManager
}

func New(txManager *postgres.TxManager) *Repo {
	return &Repo{txManager: txManager}
}

func (r *Repo) InsertIfAbsent(ctx context.Context, job *refreshqueue.Job) (bool, error) {
	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, insertIfAbsentSQL,
		job.ID, job.CompanyID, job.BranchID, job.ItemID, job.Reason, job.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert refresh job: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repo) ClaimBatch(ctx context.Context, limit int, staleAfter time.Duration) ([]*refreshqueue.Job, error) {
	cutoff := time.Now().UTC().Add(-staleAfter)

	var jobs []*refreshqueue.Job
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &jobs, claimBatchSQL, cutoff, limit); err != nil {
		return nil, fmt.Errorf("claim refresh jobs: %w", err)
	}
	return jobs, nil
}

func (r *Repo) TouchClaim(ctx context.Context, jobID id.ID) error {
	sql := `UPDATE inv_refresh_jobs SET claimed_at = now() WHERE id = $1 AND processed_at IS NULL`

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, jobID); err != nil {
		return fmt.Errorf("touch refresh claim: %w", err)
	}
	return nil
}

func (r *Repo) MarkProcessed(ctx context.Context, jobID id.ID) error {
	sql := `UPDATE inv_refresh_jobs SET processed_at = now() WHERE id = $1 AND processed_at IS NULL`

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, jobID); err != nil {
		return fmt.Errorf("mark refresh job processed: %w", err)
	}
	return nil
}

func (r *Repo) ReleaseClaim(ctx context.Context, jobID id.ID) error {
	sql := `UPDATE inv_refresh_jobs SET claimed_at = NULL WHERE id = $1 AND processed_at IS NULL`

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, jobID); err != nil {
		return fmt.Errorf("release refresh claim: %w", err)
	}
	return nil
}

func (r *Repo) Stats(ctx context.Context, staleAfter time.Duration) (*refreshqueue.Stats, error) {
	cutoff := time.Now().UTC().Add(-staleAfter)

	var stats refreshqueue.Stats
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &stats, statsSQL, cutoff); err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	return &stats, nil
}

func (r *Repo) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	sql := `DELETE FROM inv_refresh_jobs WHERE processed_at IS NOT NULL AND processed_at < $1`

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge refresh jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}
