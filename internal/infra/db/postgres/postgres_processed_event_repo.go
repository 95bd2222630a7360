package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4/pgxpool"

	"ai-credits-billing/internal/domain"
	"ai-credits-billing/internal/domain/model"
	"ai-credits-billing/internal/domain/ports/repository"
)

var _ repository.ProcessedEventRepository = (*processedEventRepo)(nil)

type processedEventRepo struct{ pool *pgxpool.Pool }

func NewProcessedEventRepo(pool *pgxpool.Pool) *processedEventRepo {
	return &processedEventRepo{pool: pool}
}

// MarkProcessed relies on the primary key on event_id: the second of two
// concurrent inserts for the same event blocks until the first transaction
// resolves, then reports the conflict as fresh=false.
func (r *processedEventRepo) MarkProcessed(ctx context.Context, tx repository.Tx, rec *model.ProcessedEvent) (bool, error) {
	const q = `
INSERT INTO processed_events (event_id, user_id, product_id, processed_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (event_id) DO NOTHING;`

	tag, err := execSQL(ctx, r.pool, tx, q, rec.EventID, rec.UserID, rec.ProductID, rec.ProcessedAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return tag.RowsAffected() == 1, nil
}

func (r *processedEventRepo) Exists(ctx context.Context, tx repository.Tx, eventID string) (bool, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id=$1);`, eventID)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return exists, nil
}
