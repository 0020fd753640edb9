// Package snapshot_repo provides the PostgreSQL implementation of the
// inventory snapshot repository.
package snapshot_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"apotheca/internal/core/id"
	"apotheca/internal/domain/snapshot"
	"apotheca/internal/infrastructure/storage/postgres"
)

const snapshotTable = "inv_snapshots"

var snapshotColumns = []string{
	"item_id", "branch_id", "company_id",
	"current_stock", "average_cost", "last_purchase_price",
	"selling_price", "margin_percent", "next_expiry_date",
	"search_text", "item_name", "sku", "barcode",
	"pack_size", "base_unit", "vat_rate", "updated_at",
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

// Upsert writes the whole derived row. Last write wins on conflict:
// every refresh recomputes from the ledger, so the newest row is
// always at least as fresh as whatever it replaces.
func (r *Repo) Upsert(ctx context.Context, row *snapshot.Row) error {
	q := r.builder.Insert(snapshotTable).
		Columns(snapshotColumns...).
		Values(
			row.ItemID, row.BranchID, row.CompanyID,
			row.CurrentStock, row.AverageCost, row.LastPurchasePrice,
			row.SellingPrice, row.MarginPercent, row.NextExpiryDate,
			row.SearchText, row.ItemName, row.SKU, row.Barcode,
			row.PackSize, row.BaseUnit, row.VATRate, row.UpdatedAt,
		).
		Suffix(`ON CONFLICT (item_id, branch_id) DO UPDATE SET
			company_id = EXCLUDED.company_id,
			current_stock = EXCLUDED.current_stock,
			average_cost = EXCLUDED.average_cost,
			last_purchase_price = EXCLUDED.last_purchase_price,
			selling_price = EXCLUDED.selling_price,
			margin_percent = EXCLUDED.margin_percent,
			next_expiry_date = EXCLUDED.next_expiry_date,
			search_text = EXCLUDED.search_text,
			item_name = EXCLUDED.item_name,
			sku = EXCLUDED.sku,
			barcode = EXCLUDED.barcode,
			pack_size = EXCLUDED.pack_size,
			base_unit = EXCLUDED.base_unit,
			vat_rate = EXCLUDED.vat_rate,
			updated_at = EXCLUDED.updated_at`)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, itemID, branchID id.ID) (*snapshot.Row, error) {
	q := r.builder.Select(snapshotColumns...).
		From(snapshotTable).
		Where(squirrel.Eq{"item_id": itemID, "branch_id": branchID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row snapshot.Row
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return &row, nil
}

// Search matches every query word as a substring of search_text. The
// search never touches the ledger; a hit is only as fresh as the last
// refresh.
func (r *Repo) Search(ctx context.Context, companyID, branchID id.ID, query string, limit int) ([]snapshot.Row, error) {
	q := r.builder.Select(snapshotColumns...).
		From(snapshotTable).
		Where(squirrel.Eq{"company_id": companyID, "branch_id": branchID})

	for _, word := range strings.Fields(strings.ToLower(query)) {
		q = q.Where(squirrel.Like{"search_text": "%" + word + "%"})
	}

	q = q.OrderBy("item_name ASC").Limit(uint64(limit))

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []snapshot.Row
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("search snapshots: %w", err)
	}
	return rows, nil
}

func (r *Repo) ListByBranch(ctx context.Context, companyID, branchID id.ID, limit, offset int) ([]snapshot.Row, error) {
	q := r.builder.Select(snapshotColumns...).
		From(snapshotTable).
		Where(squirrel.Eq{"company_id": companyID, "branch_id": branchID}).
		OrderBy("item_name ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset))

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []snapshot.Row
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return rows, nil
}

func (r *Repo) CountByBranch(ctx context.Context, companyID, branchID id.ID) (int, error) {
	q := r.builder.Select("COUNT(*)").
		From(snapshotTable).
		Where(squirrel.Eq{"company_id": companyID, "branch_id": branchID})

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var count int
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &count, sql, args...); err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return count, nil
}
