package refreshqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apotheca/internal/core/id"
)

type noopTxManager struct{}

func (noopTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (noopTxManager) RunInSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// abortState models Postgres transaction state: once a statement fails,
// every later statement in the same transaction fails with 25P02 until
// a rollback, and rolling back to a savepoint clears the abort.
type abortState struct {
	aborted bool
}

type abortStateKey struct{}

var errTxAborted = errors.New("current transaction is aborted, commands ignored until end of transaction block")

type pgLikeTxManager struct{}

func (pgLikeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	st := &abortState{}
	if err := fn(context.WithValue(ctx, abortStateKey{}, st)); err != nil {
		return err
	}
	if st.aborted {
		return errTxAborted
	}
	return nil
}

func (pgLikeTxManager) RunInSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	st, _ := ctx.Value(abortStateKey{}).(*abortState)
	if st != nil && st.aborted {
		return errTxAborted
	}
	if err := fn(ctx); err != nil {
		if st != nil {
			st.aborted = false
		}
		return err
	}
	return nil
}

// constraintRefresher fails on chosen items the way a constraint
// violation does: the failure poisons the surrounding transaction.
type constraintRefresher struct {
	refreshed []id.ID
	failOn    map[id.ID]error
}

func (r *constraintRefresher) RefreshItemSync(ctx context.Context, companyID, branchID, itemID id.ID) error {
	st, _ := ctx.Value(abortStateKey{}).(*abortState)
	if st != nil && st.aborted {
		return errTxAborted
	}
	if err := r.failOn[itemID]; err != nil {
		if st != nil {
			st.aborted = true
		}
		return err
	}
	r.refreshed = append(r.refreshed, itemID)
	return nil
}

type jobKey struct {
	companyID id.ID
	branchID  id.ID
	itemID    id.ID // zero value stands in for the branch-wide NULL key
}

func keyOf(job *Job) jobKey {
	k := jobKey{companyID: job.CompanyID, branchID: job.BranchID}
	if job.ItemID != nil {
		k.itemID = *job.ItemID
	}
	return k
}

// memQueueRepo mimics the conditional-insert dedup and claim protocol
// in memory.
type memQueueRepo struct {
	jobs      []*Job
	touched   map[id.ID]int
	released  []id.ID
	processed []id.ID
}

func newMemQueueRepo() *memQueueRepo {
	return &memQueueRepo{touched: map[id.ID]int{}}
}

func (m *memQueueRepo) InsertIfAbsent(ctx context.Context, job *Job) (bool, error) {
	for _, existing := range m.jobs {
		if existing.ProcessedAt == nil && keyOf(existing) == keyOf(job) {
			return false, nil
		}
	}
	cp := *job
	m.jobs = append(m.jobs, &cp)
	return true, nil
}

func (m *memQueueRepo) ClaimBatch(ctx context.Context, limit int, staleAfter time.Duration) ([]*Job, error) {
	cutoff := time.Now().UTC().Add(-staleAfter)
	var out []*Job
	for _, j := range m.jobs {
		if len(out) == limit {
			break
		}
		if j.ProcessedAt != nil {
			continue
		}
		if j.ClaimedAt != nil && j.ClaimedAt.After(cutoff) {
			continue
		}
		now := time.Now().UTC()
		j.ClaimedAt = &now
		out = append(out, j)
	}
	return out, nil
}

func (m *memQueueRepo) TouchClaim(ctx context.Context, jobID id.ID) error {
	m.touched[jobID]++
	return nil
}

func (m *memQueueRepo) MarkProcessed(ctx context.Context, jobID id.ID) error {
	for _, j := range m.jobs {
		if j.ID == jobID {
			now := time.Now().UTC()
			j.ProcessedAt = &now
		}
	}
	m.processed = append(m.processed, jobID)
	return nil
}

func (m *memQueueRepo) ReleaseClaim(ctx context.Context, jobID id.ID) error {
	for _, j := range m.jobs {
		if j.ID == jobID {
			j.ClaimedAt = nil
		}
	}
	m.released = append(m.released, jobID)
	return nil
}

func (m *memQueueRepo) Stats(ctx context.Context, staleAfter time.Duration) (*Stats, error) {
	s := &Stats{}
	cutoff := time.Now().UTC().Add(-staleAfter)
	for _, j := range m.jobs {
		if j.ProcessedAt != nil {
			continue
		}
		switch {
		case j.ClaimedAt == nil:
			s.Pending++
		case j.ClaimedAt.Before(cutoff):
			s.Stale++
		default:
			s.Claimed++
		}
	}
	return s, nil
}

func (m *memQueueRepo) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var kept []*Job
	var n int64
	for _, j := range m.jobs {
		if j.ProcessedAt != nil && j.ProcessedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, j)
	}
	m.jobs = kept
	return n, nil
}

type recordingRefresher struct {
	refreshed []id.ID
	failOn    map[id.ID]error
}

func (r *recordingRefresher) RefreshItemSync(ctx context.Context, companyID, branchID, itemID id.ID) error {
	if err := r.failOn[itemID]; err != nil {
		return err
	}
	r.refreshed = append(r.refreshed, itemID)
	return nil
}

type staticItemLister struct {
	ids []id.ID
}

func (l *staticItemLister) ListActiveIDs(ctx context.Context, companyID id.ID, afterID *id.ID, limit int) ([]id.ID, error) {
	start := 0
	if afterID != nil {
		for i, v := range l.ids {
			if v == *afterID {
				start = i + 1
				break
			}
		}
	}
	end := start + limit
	if end > len(l.ids) {
		end = len(l.ids)
	}
	return l.ids[start:end], nil
}

func TestEnqueueBranch_Deduplicates(t *testing.T) {
	ctx := context.Background()
	repo := newMemQueueRepo()
	svc := NewService(repo, noopTxManager{}, &staticItemLister{})

	companyID, branchID := id.New(), id.New()
	require.NoError(t, svc.EnqueueBranch(ctx, companyID, branchID, ReasonMarginChange))
	require.NoError(t, svc.EnqueueBranch(ctx, companyID, branchID, ReasonMarginChange))

	assert.Len(t, repo.jobs, 1)

	// A different branch gets its own job.
	require.NoError(t, svc.EnqueueBranch(ctx, companyID, id.New(), ReasonMarginChange))
	assert.Len(t, repo.jobs, 2)
}

func TestEnqueueItems_SkipsAlreadyQueued(t *testing.T) {
	ctx := context.Background()
	repo := newMemQueueRepo()
	svc := NewService(repo, noopTxManager{}, &staticItemLister{})

	companyID, branchID := id.New(), id.New()
	a, b := id.New(), id.New()

	require.NoError(t, svc.EnqueueItems(ctx, companyID, branchID, []id.ID{a, b}))
	require.NoError(t, svc.EnqueueItems(ctx, companyID, branchID, []id.ID{a}))

	assert.Len(t, repo.jobs, 2)
}

func TestProcessBatch_RequiresBoundRefresher(t *testing.T) {
	svc := NewService(newMemQueueRepo(), noopTxManager{}, &staticItemLister{})
	_, err := svc.ProcessBatch(context.Background(), 10)
	require.Error(t, err)
}

func TestProcessBatch_ItemJob(t *testing.T) {
	ctx := context.Background()
	repo := newMemQueueRepo()
	svc := NewService(repo, noopTxManager{}, &staticItemLister{})
	refresher := &recordingRefresher{}
	svc.BindRefresher(refresher)

	companyID, branchID := id.New(), id.New()
	itemID := id.New()
	require.NoError(t, svc.EnqueueItems(ctx, companyID, branchID, []id.ID{itemID}))

	n, err := svc.ProcessBatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []id.ID{itemID}, refresher.refreshed)
	assert.Equal(t, []id.ID{repo.jobs[0].ID}, repo.processed)

	// Nothing left to claim.
	n, err = svc.ProcessBatch(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessBatch_FailedJobStaysClaimed(t *testing.T) {
	ctx := context.Background()
	repo := newMemQueueRepo()
	svc := NewService(repo, noopTxManager{}, &staticItemLister{})

	itemID := id.New()
	refresher := &recordingRefresher{failOn: map[id.ID]error{itemID: errors.New("deadlock")}}
	svc.BindRefresher(refresher)

	require.NoError(t, svc.EnqueueItems(ctx, id.New(), id.New(), []id.ID{itemID}))

	n, err := svc.ProcessBatch(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, repo.processed)
	// Still claimed: the stale window is the retry backoff.
	require.NotNil(t, repo.jobs[0].ClaimedAt)

	// A second pass inside the stale window must not hot-loop the job.
	n, err = svc.ProcessBatch(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessBatch_BranchJobChunks(t *testing.T) {
	ctx := context.Background()
	repo := newMemQueueRepo()

	// Two full chunks plus a remainder.
	total := ChunkSize*2 + 17
	ids := make([]id.ID, total)
	for i := range ids {
		ids[i] = id.New()
	}
	svc := NewService(repo, noopTxManager{}, &staticItemLister{ids: ids})
	refresher := &recordingRefresher{}
	svc.BindRefresher(refresher)

	companyID, branchID := id.New(), id.New()
	require.NoError(t, svc.EnqueueBranch(ctx, companyID, branchID, ReasonReconcile))

	n, err := svc.ProcessBatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, refresher.refreshed, total)
	assert.Equal(t, ids, refresher.refreshed)

	jobID := repo.jobs[0].ID
	// The claim is extended after each full chunk, not the trailing partial.
	assert.Equal(t, 2, repo.touched[jobID])
	assert.Equal(t, []id.ID{jobID}, repo.processed)
}

func TestProcessBatch_BranchJobSkipsBadItem(t *testing.T) {
	ctx := context.Background()
	repo := newMemQueueRepo()

	ids := []id.ID{id.New(), id.New(), id.New()}
	svc := NewService(repo, noopTxManager{}, &staticItemLister{ids: ids})
	refresher := &recordingRefresher{failOn: map[id.ID]error{ids[1]: errors.New("missing item")}}
	svc.BindRefresher(refresher)

	require.NoError(t, svc.EnqueueBranch(ctx, id.New(), id.New(), ReasonReconcile))

	n, err := svc.ProcessBatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []id.ID{ids[0], ids[2]}, refresher.refreshed)
	assert.Len(t, repo.processed, 1)
}

func TestProcessBatch_BranchDrainConfinesAbortedItem(t *testing.T) {
	ctx := context.Background()
	repo := newMemQueueRepo()

	ids := []id.ID{id.New(), id.New(), id.New()}
	svc := NewService(repo, pgLikeTxManager{}, &staticItemLister{ids: ids})
	refresher := &constraintRefresher{failOn: map[id.ID]error{
		ids[1]: errors.New(`insert or update on table "inventory_snapshots" violates foreign key constraint`),
	}}
	svc.BindRefresher(refresher)

	require.NoError(t, svc.EnqueueBranch(ctx, id.New(), id.New(), ReasonReconcile))

	// The failed statement must not leave the chunk's transaction
	// aborted: the items after it still refresh and the chunk commits.
	n, err := svc.ProcessBatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []id.ID{ids[0], ids[2]}, refresher.refreshed)
	assert.Len(t, repo.processed, 1)
	require.NotNil(t, repo.jobs[0].ProcessedAt)
}

func TestProcessBatch_ReclaimsStaleClaim(t *testing.T) {
	ctx := context.Background()
	repo := newMemQueueRepo()
	svc := NewService(repo, noopTxManager{}, &staticItemLister{})
	refresher := &recordingRefresher{}
	svc.BindRefresher(refresher)

	itemID := id.New()
	require.NoError(t, svc.EnqueueItems(ctx, id.New(), id.New(), []id.ID{itemID}))

	// A worker died holding the claim longer than the stale window.
	stale := time.Now().UTC().Add(-StaleClaimAfter - time.Minute)
	repo.jobs[0].ClaimedAt = &stale

	n, err := svc.ProcessBatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []id.ID{itemID}, refresher.refreshed)
	require.NotNil(t, repo.jobs[0].ProcessedAt)
}

// dyingRefresher simulates a worker crash by cancelling its context
// after a set number of successful refreshes.
type dyingRefresher struct {
	recordingRefresher
	cancel      context.CancelFunc
	cancelAfter int
}

func (r *dyingRefresher) RefreshItemSync(ctx context.Context, companyID, branchID, itemID id.ID) error {
	if err := r.recordingRefresher.RefreshItemSync(ctx, companyID, branchID, itemID); err != nil {
		return err
	}
	if len(r.refreshed) == r.cancelAfter {
		r.cancel()
	}
	return nil
}

func TestProcessBatch_CrashedBranchDrainReclaimedAfterWindow(t *testing.T) {
	repo := newMemQueueRepo()

	total := ChunkSize + 5
	ids := make([]id.ID, total)
	for i := range ids {
		ids[i] = id.New()
	}
	svc := NewService(repo, noopTxManager{}, &staticItemLister{ids: ids})

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.BindRefresher(&dyingRefresher{cancel: cancel, cancelAfter: ChunkSize})

	require.NoError(t, svc.EnqueueBranch(context.Background(), id.New(), id.New(), ReasonReconcile))

	// The worker dies after the first chunk commits. The job stays
	// claimed so its partial progress is not lost to a hot retry.
	n, err := svc.ProcessBatch(workerCtx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NotNil(t, repo.jobs[0].ClaimedAt)
	assert.Nil(t, repo.jobs[0].ProcessedAt)

	healthy := &recordingRefresher{}
	svc.BindRefresher(healthy)

	// Inside the stale window no other worker may steal the job.
	n, err = svc.ProcessBatch(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, healthy.refreshed)

	// Past the window the claim counts as abandoned and the whole
	// drain is retried.
	stale := time.Now().UTC().Add(-StaleClaimAfter - time.Minute)
	repo.jobs[0].ClaimedAt = &stale

	n, err = svc.ProcessBatch(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, ids, healthy.refreshed)
	require.NotNil(t, repo.jobs[0].ProcessedAt)
}

func TestProcessBatch_CancelledContextReleasesClaims(t *testing.T) {
	repo := newMemQueueRepo()
	svc := NewService(repo, noopTxManager{}, &staticItemLister{})
	svc.BindRefresher(&recordingRefresher{})

	require.NoError(t, svc.EnqueueItems(context.Background(), id.New(), id.New(), []id.ID{id.New(), id.New()}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := svc.ProcessBatch(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, repo.released, 2)
	for _, j := range repo.jobs {
		assert.Nil(t, j.ClaimedAt)
	}
}

func TestStatsAndPurge(t *testing.T) {
	ctx := context.Background()
	repo := newMemQueueRepo()
	svc := NewService(repo, noopTxManager{}, &staticItemLister{})
	svc.BindRefresher(&recordingRefresher{})

	require.NoError(t, svc.EnqueueItems(ctx, id.New(), id.New(), []id.ID{id.New()}))

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)

	_, err = svc.ProcessBatch(ctx, 10)
	require.NoError(t, err)

	stats, err = svc.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Pending)

	// Retention of zero purges everything already processed.
	n, err := svc.PurgeProcessed(ctx, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Empty(t, repo.jobs)
}
