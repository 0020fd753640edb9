package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"apotheca/internal/core/id"
	"apotheca/internal/domain/catalogs/company"
	"apotheca/internal/infrastructure/storage/postgres"
)

const companiesTable = "cat_companies"

var companyColumns = []string{
	"id", "name", "tax_id", "currency", "default_margin_percent",
	"active", "created_at", "updated_at",
}

type CompanyRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

func NewCompanyRepo(txManager *postgres.TxManager) *CompanyRepo {
	return &CompanyRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *CompanyRepo) GetByID(ctx context.Context, companyID id.ID) (*company.Company, error) {
	q := r.builder.Select(companyColumns...).
		From(companiesTable).
		Where(squirrel.Eq{"id": companyID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var c company.Company
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &c, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get company: %w", err)
	}
	return &c, nil
}

func (r *CompanyRepo) Update(ctx context.Context, c *company.Company) error {
	q := r.builder.Update(companiesTable).
		Set("name", c.Name).
		Set("tax_id", c.TaxID).
		Set("currency", c.Currency).
		Set("default_margin_percent", c.DefaultMarginPercent).
		Set("active", c.Active).
		Set("updated_at", c.UpdatedAt).
		Where(squirrel.Eq{"id": c.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("update company: %w", err)
	}
	return nil
}
