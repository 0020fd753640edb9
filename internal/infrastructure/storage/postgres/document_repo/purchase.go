// Package document_repo provides PostgreSQL implementations of the
// document repositories. Each document is a header row plus line rows;
// Create writes both and belongs inside a transaction.
package document_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"apotheca/internal/core/id"
	"apotheca/internal/domain/documents/purchase"
	"apotheca/internal/infrastructure/storage/postgres"
)

const (
	purchaseTable      = "doc_purchase_invoices"
	purchaseLinesTable = "doc_purchase_lines"
)

type PurchaseRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

func NewPurchaseRepo(txManager *postgres.TxManager) *PurchaseRepo {
	return &PurchaseRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *PurchaseRepo) Create(ctx context.Context, inv *purchase.Invoice) error {
	q := r.builder.Insert(purchaseTable).
		Columns("id", "company_id", "branch_id", "supplier_name",
			"invoice_date", "posted", "created_at").
		Values(inv.ID, inv.CompanyID, inv.BranchID, inv.SupplierName,
			inv.InvoiceDate, inv.Posted, inv.CreatedAt)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert purchase invoice: %w", err)
	}

	lq := r.builder.Insert(purchaseLinesTable).
		Columns("id", "invoice_id", "item_id", "quantity",
			"unit_cost", "batch_number", "expiry_date")
	for i := range inv.Lines {
		l := &inv.Lines[i]
		lq = lq.Values(l.ID, l.InvoiceID, l.ItemID, l.Quantity,
			l.UnitCost, l.BatchNumber, l.ExpiryDate)
	}

	sql, args, err = lq.ToSql()
	if err != nil {
		return fmt.Errorf("build lines insert: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert purchase lines: %w", err)
	}
	return nil
}

func (r *PurchaseRepo) GetByID(ctx context.Context, companyID, invID id.ID) (*purchase.Invoice, error) {
	q := r.builder.Select("id", "company_id", "branch_id", "supplier_name",
		"invoice_date", "posted", "posted_at", "created_at").
		From(purchaseTable).
		Where(squirrel.Eq{"id": invID, "company_id": companyID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var inv purchase.Invoice
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &inv, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get purchase invoice: %w", err)
	}

	lq := r.builder.Select("id", "invoice_id", "item_id", "quantity",
		"unit_cost", "batch_number", "expiry_date").
		From(purchaseLinesTable).
		Where(squirrel.Eq{"invoice_id": invID}).
		OrderBy("id ASC")

	sql, args, err = lq.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lines query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &inv.Lines, sql, args...); err != nil {
		return nil, fmt.Errorf("select purchase lines: %w", err)
	}
	return &inv, nil
}

func (r *PurchaseRepo) MarkPosted(ctx context.Context, invID id.ID, postedAt time.Time) error {
	return markPosted(ctx, r.txManager, r.builder, purchaseTable, invID, postedAt)
}

func (r *PurchaseRepo) ListByBranch(ctx context.Context, companyID, branchID id.ID, limit, offset int) ([]purchase.Invoice, error) {
	q := r.builder.Select("id", "company_id", "branch_id", "supplier_name",
		"invoice_date", "posted", "posted_at", "created_at").
		From(purchaseTable).
		Where(squirrel.Eq{"company_id": companyID, "branch_id": branchID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset))

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var invoices []purchase.Invoice
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &invoices, sql, args...); err != nil {
		return nil, fmt.Errorf("list purchase invoices: %w", err)
	}
	return invoices, nil
}
