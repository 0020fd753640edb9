package queue_repo

import (
	"strings"
	"testing"
)

// The queue protocol lives in these statements; a regression here is a
// correctness bug (double refreshes, blocked workers), not a style one.

func TestInsertIfAbsentSQL_DedupSemantics(t *testing.T) {
	if !strings.Contains(insertIfAbsentSQL, "WHERE NOT EXISTS") {
		t.Error("dedup must be a conditional insert in a single statement")
	}
	if !strings.Contains(insertIfAbsentSQL, "item_id IS NOT DISTINCT FROM $4") {
		t.Error("NULL item_id (branch-wide) must participate in the dedup key")
	}
	if !strings.Contains(insertIfAbsentSQL, "processed_at IS NULL") {
		t.Error("processed jobs must not block re-enqueueing")
	}
}

func TestClaimBatchSQL_ClaimSemantics(t *testing.T) {
	if !strings.Contains(claimBatchSQL, "FOR UPDATE SKIP LOCKED") {
		t.Error("concurrent workers must not block on or double-claim rows")
	}
	if !strings.Contains(claimBatchSQL, "claimed_at IS NULL OR claimed_at < $1") {
		t.Error("stale claims must be reclaimable")
	}
	if !strings.Contains(claimBatchSQL, "ORDER BY created_at, id") {
		t.Error("claims must come oldest first")
	}
	if !strings.Contains(claimBatchSQL, "RETURNING") {
		t.Error("claim must return the claimed rows in the same statement")
	}
}

func TestStatsSQL_CountsUnprocessedOnly(t *testing.T) {
	if !strings.Contains(statsSQL, "WHERE processed_at IS NULL") {
		t.Error("stats must ignore processed jobs")
	}
}
