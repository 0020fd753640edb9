// Package catalog_repo provides PostgreSQL implementations of the
// catalog repositories: items, branches and companies.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"apotheca/internal/core/id"
	"apotheca/internal/domain/catalogs/item"
	"apotheca/internal/infrastructure/storage/postgres"
)

const itemsTable = "cat_items"

var itemColumns = []string{
	"id", "company_id", "name", "sku", "barcode",
	"pack_size", "base_unit", "vat_rate",
	"default_cost", "margin_percent", "description",
	"active", "created_at", "updated_at",
}

type ItemRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

func NewItemRepo(txManager *postgres.TxManager) *ItemRepo {
	return &ItemRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *ItemRepo) Create(ctx context.Context, it *item.Item) error {
	q := r.builder.Insert(itemsTable).
		Columns(itemColumns...).
		Values(
			it.ID, it.CompanyID, it.Name, it.SKU, it.Barcode,
			it.PackSize, it.BaseUnit, it.VATRate,
			it.DefaultCost, it.MarginPercent, it.Description,
			it.Active, it.CreatedAt, it.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

func (r *ItemRepo) Update(ctx context.Context, it *item.Item) error {
	q := r.builder.Update(itemsTable).
		Set("name", it.Name).
		Set("sku", it.SKU).
		Set("barcode", it.Barcode).
		Set("pack_size", it.PackSize).
		Set("base_unit", it.BaseUnit).
		Set("vat_rate", it.VATRate).
		Set("default_cost", it.DefaultCost).
		Set("margin_percent", it.MarginPercent).
		Set("description", it.Description).
		Set("active", it.Active).
		Set("updated_at", it.UpdatedAt).
		Where(squirrel.Eq{"id": it.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

func (r *ItemRepo) GetByID(ctx context.Context, itemID id.ID) (*item.Item, error) {
	q := r.builder.Select(itemColumns...).
		From(itemsTable).
		Where(squirrel.Eq{"id": itemID}).
		Limit(1)

	return r.getOne(ctx, q)
}

func (r *ItemRepo) GetBySKU(ctx context.Context, companyID id.ID, sku string) (*item.Item, error) {
	q := r.builder.Select(itemColumns...).
		From(itemsTable).
		Where(squirrel.Eq{"company_id": companyID, "sku": sku}).
		Limit(1)

	return r.getOne(ctx, q)
}

func (r *ItemRepo) getOne(ctx context.Context, q squirrel.SelectBuilder) (*item.Item, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var it item.Item
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &it, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &it, nil
}

// ListActiveIDs pages in ID order so a chunked caller sees each item
// exactly once even while items are being created concurrently.
func (r *ItemRepo) ListActiveIDs(ctx context.Context, companyID id.ID, afterID *id.ID, limit int) ([]id.ID, error) {
	q := r.builder.Select("id").
		From(itemsTable).
		Where(squirrel.Eq{"company_id": companyID, "active": true})
	if afterID != nil {
		q = q.Where(squirrel.Gt{"id": *afterID})
	}
	q = q.OrderBy("id ASC").Limit(uint64(limit))

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var ids []id.ID
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &ids, sql, args...); err != nil {
		return nil, fmt.Errorf("list active item ids: %w", err)
	}
	return ids, nil
}

func (r *ItemRepo) CountActive(ctx context.Context, companyID id.ID) (int, error) {
	q := r.builder.Select("COUNT(*)").
		From(itemsTable).
		Where(squirrel.Eq{"company_id": companyID, "active": true})

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var count int
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &count, sql, args...); err != nil {
		return 0, fmt.Errorf("count active items: %w", err)
	}
	return count, nil
}
