package document_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"apotheca/internal/core/apperror"
	"apotheca/internal/core/id"
	"apotheca/internal/infrastructure/storage/postgres"
)

// markPosted flips the posted flag exactly once. The posted = false
// guard makes a double post a no-op at the SQL level; the services
// also check, but only after reading, and two concurrent posts can
// both read unposted.
func markPosted(ctx context.Context, txManager *postgres.TxManager, builder squirrel.StatementBuilderType, table string, docID id.ID, postedAt time.Time) error {
	q := builder.Update(table).
		Set("posted", true).
		Set("posted_at", postedAt).
		Where(squirrel.Eq{"id": docID, "posted": false})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("mark posted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewDocumentPosted(table, docID)
	}
	return nil
}
