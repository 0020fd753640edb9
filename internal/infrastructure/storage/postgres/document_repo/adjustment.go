package document_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"apotheca/internal/core/id"
	"apotheca/internal/domain/documents/adjustment"
	"apotheca/internal/infrastructure/storage/postgres"
)

const (
	adjustmentTable      = "doc_stock_adjustments"
	adjustmentLinesTable = "doc_adjustment_lines"
)

type AdjustmentRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

func NewAdjustmentRepo(txManager *postgres.TxManager) *AdjustmentRepo {
	return &AdjustmentRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *AdjustmentRepo) Create(ctx context.Context, adj *adjustment.Adjustment) error {
	q := r.builder.Insert(adjustmentTable).
		Columns("id", "company_id", "branch_id", "reason", "posted", "created_at").
		Values(adj.ID, adj.CompanyID, adj.BranchID, adj.Reason, adj.Posted, adj.CreatedAt)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert adjustment: %w", err)
	}

	lq := r.builder.Insert(adjustmentLinesTable).
		Columns("id", "adjustment_id", "item_id", "quantity_delta",
			"unit_cost", "batch_number", "expiry_date")
	for i := range adj.Lines {
		l := &adj.Lines[i]
		lq = lq.Values(l.ID, l.AdjustmentID, l.ItemID, l.QuantityDelta,
			l.UnitCost, l.BatchNumber, l.ExpiryDate)
	}

	sql, args, err = lq.ToSql()
	if err != nil {
		return fmt.Errorf("build lines insert: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert adjustment lines: %w", err)
	}
	return nil
}

func (r *AdjustmentRepo) GetByID(ctx context.Context, companyID, adjID id.ID) (*adjustment.Adjustment, error) {
	q := r.builder.Select("id", "company_id", "branch_id", "reason",
		"posted", "posted_at", "created_at").
		From(adjustmentTable).
		Where(squirrel.Eq{"id": adjID, "company_id": companyID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var adj adjustment.Adjustment
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &adj, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get adjustment: %w", err)
	}

	lq := r.builder.Select("id", "adjustment_id", "item_id", "quantity_delta",
		"unit_cost", "batch_number", "expiry_date").
		From(adjustmentLinesTable).
		Where(squirrel.Eq{"adjustment_id": adjID}).
		OrderBy("id ASC")

	sql, args, err = lq.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lines query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &adj.Lines, sql, args...); err != nil {
		return nil, fmt.Errorf("select adjustment lines: %w", err)
	}
	return &adj, nil
}

func (r *AdjustmentRepo) MarkPosted(ctx context.Context, adjID id.ID, postedAt time.Time) error {
	return markPosted(ctx, r.txManager, r.builder, adjustmentTable, adjID, postedAt)
}

func (r *AdjustmentRepo) ListByBranch(ctx context.Context, companyID, branchID id.ID, limit, offset int) ([]adjustment.Adjustment, error) {
	q := r.builder.Select("id", "company_id", "branch_id", "reason",
		"posted", "posted_at", "created_at").
		From(adjustmentTable).
		Where(squirrel.Eq{"company_id": companyID, "branch_id": branchID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset))

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var adjustments []adjustment.Adjustment
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &adjustments, sql, args...); err != nil {
		return nil, fmt.Errorf("list adjustments: %w", err)
	}
	return adjustments, nil
}
