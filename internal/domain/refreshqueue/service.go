package refreshqueue

import (
	"context"
	"fmt"
	"time"

	"apotheca/internal/core/id"
	"apotheca/internal/core/tx"
	"apotheca/pkg/logger"
)

// Refresher is the slice of the snapshot refresher the worker needs.
// Bound after construction because the refresher itself enqueues
// through this service.
type Refresher interface {
	RefreshItemSync(ctx context.Context, companyID, branchID, itemID id.ID) error
}

// ItemLister pages active item IDs for branch-wide drains.
type ItemLister interface {
	ListActiveIDs(ctx context.Context, companyID id.ID, afterID *id.ID, limit int) ([]id.ID, error)
}

// Service enqueues and drains refresh jobs.
type Service struct {
	repo      Repository
	txManager tx.SavepointManager
	items     ItemLister
	refresher Refresher
}

func NewService(repo Repository, txManager tx.SavepointManager, items ItemLister) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
		items:     items,
	}
}

// BindRefresher closes the enqueue/drain loop. Must be called once
// during wiring, before ProcessBatch runs.
func (s *Service) BindRefresher(r Refresher) {
	s.refresher = r
}

// EnqueueBranch queues a branch-wide refresh. Deduplicated: a second
// branch-wide job for the same branch is dropped while the first is
// unprocessed.
func (s *Service) EnqueueBranch(ctx context.Context, companyID, branchID id.ID, reason string) error {
	if reason == "" {
		reason = ReasonMarginChange
	}
	job := &Job{
		ID:        id.New(),
		CompanyID: companyID,
		BranchID:  branchID,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
	inserted, err := s.repo.InsertIfAbsent(ctx, job)
	if err != nil {
		return fmt.Errorf("enqueue branch refresh: %w", err)
	}
	if !inserted {
		logger.Debug(ctx, "branch refresh already queued",
			"branch_id", branchID, "reason", reason)
	}
	return nil
}

// EnqueueItems queues one job per item. Items already queued for the
// branch are skipped.
func (s *Service) EnqueueItems(ctx context.Context, companyID, branchID id.ID, itemIDs []id.ID) error {
	for i := range itemIDs {
		itemID := itemIDs[i]
		job := &Job{
			ID:        id.New(),
			CompanyID: companyID,
			BranchID:  branchID,
			ItemID:    &itemID,
			Reason:    ReasonDocumentPost,
			CreatedAt: time.Now().UTC(),
		}
		if _, err := s.repo.InsertIfAbsent(ctx, job); err != nil {
			return fmt.Errorf("enqueue item refresh: %w", err)
		}
	}
	return nil
}

// Stats reports queue depth.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx, StaleClaimAfter)
}

// PurgeProcessed removes processed jobs older than retention.
func (s *Service) PurgeProcessed(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repo.DeleteProcessedBefore(ctx, time.Now().UTC().Add(-retention))
}

// ProcessBatch claims up to limit jobs and works them off. Returns how
// many jobs reached processed. Job-level failures are logged and left
// claimed, so the stale window acts as a retry backoff rather than a
// hot loop.
func (s *Service) ProcessBatch(ctx context.Context, limit int) (int, error) {
	if s.refresher == nil {
		return 0, fmt.Errorf("refresh queue: refresher not bound")
	}

	var jobs []*Job
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		jobs, err = s.repo.ClaimBatch(ctx, limit, StaleClaimAfter)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("claim refresh jobs: %w", err)
	}

	processed := 0
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			// Shutting down: hand unstarted jobs straight back.
			if relErr := s.repo.ReleaseClaim(context.WithoutCancel(ctx), job.ID); relErr != nil {
				logger.Warn(ctx, "release refresh claim", "job_id", job.ID, "error", relErr)
			}
			continue
		}

		var jobErr error
		if job.BranchWide() {
			jobErr = s.processBranchJob(ctx, job)
		} else {
			jobErr = s.processItemJob(ctx, job)
		}
		if jobErr != nil {
			logger.Error(ctx, "refresh job failed",
				"job_id", job.ID,
				"branch_id", job.BranchID,
				"branch_wide", job.BranchWide(),
				"error", jobErr)
			continue
		}
		processed++
	}
	return processed, nil
}

// processItemJob refreshes one pair and marks the job processed in the
// same transaction, so a crash between the two repeats the refresh
// instead of losing it.
func (s *Service) processItemJob(ctx context.Context, job *Job) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.refresher.RefreshItemSync(ctx, job.CompanyID, job.BranchID, *job.ItemID); err != nil {
			return err
		}
		return s.repo.MarkProcessed(ctx, job.ID)
	})
}

// processBranchJob walks every active item of the company in chunks,
// committing after each chunk so a crash mid-branch only repeats the
// in-flight chunk when the job is reclaimed. The claim is touched
// after every chunk to keep long drains from going stale under other
// workers' noses.
func (s *Service) processBranchJob(ctx context.Context, job *Job) error {
	var afterID *id.ID
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var itemIDs []id.ID
		err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			var err error
			itemIDs, err = s.items.ListActiveIDs(ctx, job.CompanyID, afterID, ChunkSize)
			if err != nil {
				return fmt.Errorf("list active items: %w", err)
			}
			for _, itemID := range itemIDs {
				itemID := itemID
				// One bad item must not wedge the whole branch. A failed
				// statement aborts the chunk's transaction until rolled
				// back, so each item runs under its own savepoint.
				err := s.txManager.RunInSavepoint(ctx, func(ctx context.Context) error {
					return s.refresher.RefreshItemSync(ctx, job.CompanyID, job.BranchID, itemID)
				})
				if err != nil {
					logger.Error(ctx, "refresh item in branch drain",
						"job_id", job.ID,
						"item_id", itemID,
						"branch_id", job.BranchID,
						"error", err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		if len(itemIDs) < ChunkSize {
			break
		}
		last := itemIDs[len(itemIDs)-1]
		afterID = &last

		if err := s.repo.TouchClaim(ctx, job.ID); err != nil {
			return fmt.Errorf("extend refresh claim: %w", err)
		}
	}
	return s.repo.MarkProcessed(ctx, job.ID)
}
