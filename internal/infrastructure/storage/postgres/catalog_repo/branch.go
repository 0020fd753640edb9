package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"apotheca/internal/core/id"
	"apotheca/internal/domain/catalogs/branch"
	"apotheca/internal/infrastructure/storage/postgres"
)

const branchesTable = "cat_branches"

var branchColumns = []string{
	"id", "company_id", "code", "name", "address", "phone",
	"active", "created_at", "updated_at",
}

type BranchRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

func NewBranchRepo(txManager *postgres.TxManager) *BranchRepo {
	return &BranchRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *BranchRepo) Create(ctx context.Context, b *branch.Branch) error {
	q := r.builder.Insert(branchesTable).
		Columns(branchColumns...).
		Values(
			b.ID, b.CompanyID, b.Code, b.Name, b.Address, b.Phone,
			b.Active, b.CreatedAt, b.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert branch: %w", err)
	}
	return nil
}

func (r *BranchRepo) Update(ctx context.Context, b *branch.Branch) error {
	q := r.builder.Update(branchesTable).
		Set("code", b.Code).
		Set("name", b.Name).
		Set("address", b.Address).
		Set("phone", b.Phone).
		Set("active", b.Active).
		Set("updated_at", b.UpdatedAt).
		Where(squirrel.Eq{"id": b.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("update branch: %w", err)
	}
	return nil
}

func (r *BranchRepo) GetByID(ctx context.Context, branchID id.ID) (*branch.Branch, error) {
	q := r.builder.Select(branchColumns...).
		From(branchesTable).
		Where(squirrel.Eq{"id": branchID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var b branch.Branch
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &b, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get branch: %w", err)
	}
	return &b, nil
}

func (r *BranchRepo) ListActive(ctx context.Context, companyID id.ID) ([]branch.Branch, error) {
	q := r.builder.Select(branchColumns...).
		From(branchesTable).
		Where(squirrel.Eq{"company_id": companyID, "active": true}).
		OrderBy("code ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var branches []branch.Branch
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &branches, sql, args...); err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	return branches, nil
}
