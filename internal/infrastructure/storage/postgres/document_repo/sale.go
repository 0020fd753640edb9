package document_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"apotheca/internal/core/id"
	"apotheca/internal/domain/documents/sale"
	"apotheca/internal/infrastructure/storage/postgres"
)

const (
	saleTable      = "doc_sales_invoices"
	saleLinesTable = "doc_sales_lines"
)

type SaleRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

func NewSaleRepo(txManager *postgres.TxManager) *SaleRepo {
	return &SaleRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *SaleRepo) Create(ctx context.Context, inv *sale.Invoice) error {
	q := r.builder.Insert(saleTable).
		Columns("id", "company_id", "branch_id", "customer_name",
			"invoice_date", "posted", "created_at").
		Values(inv.ID, inv.CompanyID, inv.BranchID, inv.CustomerName,
			inv.InvoiceDate, inv.Posted, inv.CreatedAt)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert sales invoice: %w", err)
	}

	lq := r.builder.Insert(saleLinesTable).
		Columns("id", "invoice_id", "item_id", "quantity", "unit_price")
	for i := range inv.Lines {
		l := &inv.Lines[i]
		lq = lq.Values(l.ID, l.InvoiceID, l.ItemID, l.Quantity, l.UnitPrice)
	}

	sql, args, err = lq.ToSql()
	if err != nil {
		return fmt.Errorf("build lines insert: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert sales lines: %w", err)
	}
	return nil
}

func (r *SaleRepo) GetByID(ctx context.Context, companyID, invID id.ID) (*sale.Invoice, error) {
	q := r.builder.Select("id", "company_id", "branch_id", "customer_name",
		"invoice_date", "posted", "posted_at", "created_at").
		From(saleTable).
		Where(squirrel.Eq{"id": invID, "company_id": companyID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var inv sale.Invoice
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &inv, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get sales invoice: %w", err)
	}

	lq := r.builder.Select("id", "invoice_id", "item_id", "quantity", "unit_price").
		From(saleLinesTable).
		Where(squirrel.Eq{"invoice_id": invID}).
		OrderBy("id ASC")

	sql, args, err = lq.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lines query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &inv.Lines, sql, args...); err != nil {
		return nil, fmt.Errorf("select sales lines: %w", err)
	}
	return &inv, nil
}

func (r *SaleRepo) MarkPosted(ctx context.Context, invID id.ID, postedAt time.Time) error {
	return markPosted(ctx, r.txManager, r.builder, saleTable, invID, postedAt)
}

func (r *SaleRepo) ListByBranch(ctx context.Context, companyID, branchID id.ID, limit, offset int) ([]sale.Invoice, error) {
	q := r.builder.Select("id", "company_id", "branch_id", "customer_name",
		"invoice_date", "posted", "posted_at", "created_at").
		From(saleTable).
		Where(squirrel.Eq{"company_id": companyID, "branch_id": branchID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset))

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var invoices []sale.Invoice
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &invoices, sql, args...); err != nil {
		return nil, fmt.Errorf("list sales invoices: %w", err)
	}
	return invoices, nil
}
