// Package ledger_repo provides the PostgreSQL implementation of the
// inventory ledger repository. The ledger table is append-only; the
// sole UPDATE path is the opening balance correction.
package ledger_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/shopspring/decimal"

	"apotheca/internal/core/apperror"
	"apotheca/internal/core/id"
	"apotheca/internal/core/types"
	"apotheca/internal/domain/ledger"
	"apotheca/internal/infrastructure/storage/postgres"
)

const ledgerTable = "inv_ledger_entries"

var ledgerColumns = []string{
	"id", "company_id", "branch_id", "item_id", "txn_type",
	"quantity_delta", "unit_cost", "batch_number", "expiry_date",
	"reference_kind", "reference_id", "created_at",
}

type Repo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

func New(txManager *postgres.TxManager) *Repo {
	return &Repo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *Repo) Insert(ctx context.Context, entry *ledger.Entry) error {
	q := r.builder.Insert(ledgerTable).
		Columns(ledgerColumns...).
		Values(entryValues(entry)...)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

func (r *Repo) InsertBatch(ctx context.Context, entries []ledger.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	// Fast path: COPY when inside a transaction.
	if tx := r.txManager.GetTx(ctx); tx != nil {
		inserter := postgres.NewBatchInserter(r.txManager)
		rows := make([][]any, 0, len(entries))
		for i := range entries {
			rows = append(rows, entryValues(&entries[i]))
		}
		if _, err := inserter.CopyFromSlice(ctx, ledgerTable, ledgerColumns, rows); err != nil {
			return fmt.Errorf("copy ledger entries: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(ledgerTable).Columns(ledgerColumns...)
	for i := range entries {
		q = q.Values(entryValues(&entries[i])...)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert ledger entries: %w", err)
	}
	return nil
}

func entryValues(e *ledger.Entry) []any {
	return []any{
		e.ID, e.CompanyID, e.BranchID, e.ItemID, e.TxnType,
		e.QuantityDelta, e.UnitCost, e.BatchNumber, e.ExpiryDate,
		e.Kind, e.Reference.ID, e.CreatedAt,
	}
}

func (r *Repo) GetByID(ctx context.Context, entryID id.ID) (*ledger.Entry, error) {
	q := r.builder.Select(ledgerColumns...).
		From(ledgerTable).
		Where(squirrel.Eq{"id": entryID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entry ledger.Entry
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &entry, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}
	return &entry, nil
}

func (r *Repo) SumQuantity(ctx context.Context, itemID, branchID id.ID, asOf *time.Time) (types.Quantity, error) {
	q := r.builder.Select("COALESCE(SUM(quantity_delta), 0)").
		From(ledgerTable).
		Where(squirrel.Eq{"item_id": itemID, "branch_id": branchID})
	if asOf != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *asOf})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var sum int64
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &sum, sql, args...); err != nil {
		return 0, fmt.Errorf("sum quantity: %w", err)
	}
	return types.Quantity(sum), nil
}

func (r *Repo) Movements(ctx context.Context, itemID, branchID id.ID, filter ledger.MovementFilter) ([]ledger.Entry, error) {
	q := r.builder.Select(ledgerColumns...).
		From(ledgerTable).
		Where(squirrel.Eq{"item_id": itemID, "branch_id": branchID})

	if filter.From != nil {
		q = q.Where(squirrel.Gt{"created_at": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *filter.To})
	}
	if filter.TxnType != nil {
		q = q.Where(squirrel.Eq{"txn_type": *filter.TxnType})
	}

	// Stable ordering: id breaks created_at ties, so running balances
	// replay identically on every read.
	q = q.OrderBy("created_at ASC", "id ASC")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entries []ledger.Entry
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	return entries, nil
}

func (r *Repo) BatchStock(ctx context.Context, itemID, branchID id.ID) ([]ledger.BatchStock, error) {
	sql := `
		SELECT batch_number, expiry_date, SUM(quantity_delta) AS remaining
		FROM inv_ledger_entries
		WHERE item_id = $1 AND branch_id = $2
		GROUP BY batch_number, expiry_date
		HAVING SUM(quantity_delta) > 0
		ORDER BY expiry_date NULLS LAST, batch_number
	`

	var batches []ledger.BatchStock
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &batches, sql, itemID, branchID); err != nil {
		return nil, fmt.Errorf("select batch stock: %w", err)
	}
	return batches, nil
}

func (r *Repo) LastPurchaseCost(ctx context.Context, itemID, branchID id.ID) (*decimal.Decimal, error) {
	q := r.builder.Select("unit_cost").
		From(ledgerTable).
		Where(squirrel.Eq{
			"item_id":   itemID,
			"branch_id": branchID,
			"txn_type":  ledger.TxnPurchase,
		}).
		Where(squirrel.Gt{"quantity_delta": 0}).
		OrderBy("created_at DESC", "id DESC").
		Limit(1)

	return r.scanCost(ctx, q, "last purchase cost")
}

func (r *Repo) OpeningBalanceCost(ctx context.Context, itemID, branchID id.ID) (*decimal.Decimal, error) {
	q := r.builder.Select("unit_cost").
		From(ledgerTable).
		Where(squirrel.Eq{
			"item_id":   itemID,
			"branch_id": branchID,
			"txn_type":  ledger.TxnOpeningBalance,
		}).
		OrderBy("created_at ASC", "id ASC").
		Limit(1)

	return r.scanCost(ctx, q, "opening balance cost")
}

func (r *Repo) scanCost(ctx context.Context, q squirrel.SelectBuilder, op string) (*decimal.Decimal, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var cost *decimal.Decimal
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &cost, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return cost, nil
}

func (r *Repo) WeightedAverageCost(ctx context.Context, itemID, branchID id.ID) (*decimal.Decimal, error) {
	// Weighted over incoming stock only. quantity_delta is scaled by
	// 1e4, which cancels out in the division.
	sql := `
		SELECT SUM(quantity_delta * unit_cost) / SUM(quantity_delta)
		FROM inv_ledger_entries
		WHERE item_id = $1 AND branch_id = $2
		  AND quantity_delta > 0 AND unit_cost IS NOT NULL
	`

	var cost *decimal.Decimal
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &cost, sql, itemID, branchID); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("weighted average cost: %w", err)
	}
	return cost, nil
}

func (r *Repo) UpdateOpeningBalance(ctx context.Context, entryID id.ID, quantity types.Quantity, unitCost decimal.Decimal) error {
	q := r.builder.Update(ledgerTable).
		Set("quantity_delta", quantity).
		Set("unit_cost", unitCost).
		Where(squirrel.Eq{
			"id":       entryID,
			"txn_type": ledger.TxnOpeningBalance,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update opening balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("opening balance entry", entryID)
	}
	return nil
}
