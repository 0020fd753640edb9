package document_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"apotheca/internal/core/id"
	"apotheca/internal/domain/documents/transfer"
	"apotheca/internal/infrastructure/storage/postgres"
)

const (
	transferTable      = "doc_stock_transfers"
	transferLinesTable = "doc_transfer_lines"
)

type TransferRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

func NewTransferRepo(txManager *postgres.TxManager) *TransferRepo {
	return &TransferRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *TransferRepo) Create(ctx context.Context, t *transfer.Transfer) error {
	q := r.builder.Insert(transferTable).
		Columns("id", "company_id", "source_branch_id", "dest_branch_id",
			"posted", "created_at").
		Values(t.ID, t.CompanyID, t.SourceBranch, t.DestBranch,
			t.Posted, t.CreatedAt)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}

	lq := r.builder.Insert(transferLinesTable).
		Columns("id", "transfer_id", "item_id", "quantity")
	for i := range t.Lines {
		l := &t.Lines[i]
		lq = lq.Values(l.ID, l.TransferID, l.ItemID, l.Quantity)
	}

	sql, args, err = lq.ToSql()
	if err != nil {
		return fmt.Errorf("build lines insert: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert transfer lines: %w", err)
	}
	return nil
}

func (r *TransferRepo) GetByID(ctx context.Context, companyID, transferID id.ID) (*transfer.Transfer, error) {
	q := r.builder.Select("id", "company_id", "source_branch_id", "dest_branch_id",
		"posted", "posted_at", "created_at").
		From(transferTable).
		Where(squirrel.Eq{"id": transferID, "company_id": companyID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var t transfer.Transfer
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &t, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transfer: %w", err)
	}

	lq := r.builder.Select("id", "transfer_id", "item_id", "quantity").
		From(transferLinesTable).
		Where(squirrel.Eq{"transfer_id": transferID}).
		OrderBy("id ASC")

	sql, args, err = lq.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lines query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &t.Lines, sql, args...); err != nil {
		return nil, fmt.Errorf("select transfer lines: %w", err)
	}
	return &t, nil
}

func (r *TransferRepo) MarkPosted(ctx context.Context, transferID id.ID, postedAt time.Time) error {
	return markPosted(ctx, r.txManager, r.builder, transferTable, transferID, postedAt)
}

func (r *TransferRepo) ListByBranch(ctx context.Context, companyID, branchID id.ID, limit, offset int) ([]transfer.Transfer, error) {
	q := r.builder.Select("id", "company_id", "source_branch_id", "dest_branch_id",
		"posted", "posted_at", "created_at").
		From(transferTable).
		Where(squirrel.Eq{"company_id": companyID}).
		Where(squirrel.Or{
			squirrel.Eq{"source_branch_id": branchID},
			squirrel.Eq{"dest_branch_id": branchID},
		}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset))

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var transfers []transfer.Transfer
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &transfers, sql, args...); err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	return transfers, nil
}
