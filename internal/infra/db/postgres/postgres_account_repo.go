package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ai-credits-billing/internal/domain"
	"ai-credits-billing/internal/domain/model"
	"ai-credits-billing/internal/domain/ports/repository"
)

var _ repository.AccountRepository = (*accountRepo)(nil)

type accountRepo struct{ pool *pgxpool.Pool }

func NewAccountRepo(pool *pgxpool.Pool) *accountRepo {
	return &accountRepo{pool: pool}
}

func (r *accountRepo) Save(ctx context.Context, tx repository.Tx, a *model.Account) error {
	const q = `
INSERT INTO accounts (
  user_id, email, token_balance, subscription_tier, subscription_status, subscription_ref, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
) ON CONFLICT (user_id) DO UPDATE SET
  email=$2, token_balance=$3, subscription_tier=$4, subscription_status=$5, subscription_ref=$6, updated_at=$8;`

	_, err := execSQL(ctx, r.pool, tx, q, a.UserID, a.Email, a.TokenBalance, a.SubscriptionTier, a.SubscriptionStatus, a.SubscriptionRef, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *accountRepo) CreateIfAbsent(ctx context.Context, tx repository.Tx, a *model.Account) error {
	const q = `
INSERT INTO accounts (
  user_id, email, token_balance, subscription_tier, subscription_status, subscription_ref, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
) ON CONFLICT (user_id) DO NOTHING;`

	_, err := execSQL(ctx, r.pool, tx, q, a.UserID, a.Email, a.TokenBalance, a.SubscriptionTier, a.SubscriptionStatus, a.SubscriptionRef, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *accountRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.Account, error) {
	q := `SELECT user_id, email, token_balance, subscription_tier, subscription_status, subscription_ref, created_at, updated_at FROM accounts WHERE user_id=$1`
	if inTx(tx) {
		// Serializes concurrent reconciliations for the same user.
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}

	a := &model.Account{}
	if err := row.Scan(&a.UserID, &a.Email, &a.TokenBalance, &a.SubscriptionTier, &a.SubscriptionStatus, &a.SubscriptionRef, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return a, nil
}

func (r *accountRepo) CountAccounts(ctx context.Context, tx repository.Tx) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM accounts;`)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}
