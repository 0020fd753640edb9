// Package report_repo runs the cross-item report queries. All queries
// are literal SQL: they join or aggregate across tables in ways the
// builder adds nothing to.
package report_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"apotheca/internal/core/id"
	"apotheca/internal/domain/reports"
	"apotheca/internal/infrastructure/storage/postgres"
)

const expiringBatchesSQL = `
	SELECT l.item_id, i.name AS item_name, l.branch_id,
	       l.batch_number, l.expiry_date,
	       SUM(l.quantity_delta) AS remaining
	FROM inv_ledger_entries l
	JOIN cat_items i ON i.id = l.item_id
	WHERE l.company_id = $1 AND l.branch_id = $2
	  AND l.expiry_date IS NOT NULL AND l.expiry_date <= $3
	GROUP BY l.item_id, i.name, l.branch_id, l.batch_number, l.expiry_date
	HAVING SUM(l.quantity_delta) > 0
	ORDER BY l.expiry_date ASC, i.name ASC
	LIMIT $4
`

const valuationSQL = `
	SELECT branch_id,
	       COUNT(*) FILTER (WHERE current_stock > 0) AS item_count,
	       COALESCE(SUM((current_stock::numeric / 10000) * average_cost), 0) AS total_value
	FROM inv_snapshots
	WHERE company_id = $1
	GROUP BY branch_id
	ORDER BY branch_id
`

// Pairs the ledger knows about versus snapshot rows that exist.
const reconcileCountsSQL = `
	WITH expected AS (
		SELECT branch_id, item_id
		FROM inv_ledger_entries
		WHERE company_id = $1
		GROUP BY branch_id, item_id
	)
	SELECT e.branch_id,
	       COUNT(*) AS expected,
	       COUNT(s.item_id) AS actual,
	       COUNT(*) - COUNT(s.item_id) AS missing
	FROM expected e
	LEFT JOIN inv_snapshots s
	  ON s.item_id = e.item_id AND s.branch_id = e.branch_id
	GROUP BY e.branch_id
	ORDER BY e.branch_id
`

const missingPairsSQL = `
	SELECT l.item_id
	FROM inv_ledger_entries l
	LEFT JOIN inv_snapshots s
	  ON s.item_id = l.item_id AND s.branch_id = l.branch_id
	WHERE l.company_id = $1 AND l.branch_id = $2 AND s.item_id IS NULL
	GROUP BY l.item_id
	ORDER BY l.item_id
	LIMIT $3
`

type Repo struct {
	txManager *postgres.TxManager
}

func New(txManager *postgres.TxManager) *Repo {
	return &Repo{txManager: txManager}
}

func (r *Repo) ExpiringBatches(ctx context.Context, companyID, branchID id.ID, before time.Time, limit int) ([]reports.ExpiryRow, error) {
	var rows []reports.ExpiryRow
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rows, expiringBatchesSQL, companyID, branchID, before, limit); err != nil {
		return nil, fmt.Errorf("select expiring batches: %w", err)
	}
	return rows, nil
}

func (r *Repo) Valuation(ctx context.Context, companyID id.ID) ([]reports.ValuationRow, error) {
	var rows []reports.ValuationRow
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rows, valuationSQL, companyID); err != nil {
		return nil, fmt.Errorf("select valuation: %w", err)
	}
	return rows, nil
}

func (r *Repo) ReconcileCounts(ctx context.Context, companyID id.ID) ([]reports.ReconcileRow, error) {
	var rows []reports.ReconcileRow
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rows, reconcileCountsSQL, companyID); err != nil {
		return nil, fmt.Errorf("select reconcile counts: %w", err)
	}
	return rows, nil
}

func (r *Repo) MissingPairs(ctx context.Context, companyID, branchID id.ID, limit int) ([]id.ID, error) {
	var ids []id.ID
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &ids, missingPairsSQL, companyID, branchID, limit); err != nil {
		return nil, fmt.Errorf("select missing pairs: %w", err)
	}
	return ids, nil
}
