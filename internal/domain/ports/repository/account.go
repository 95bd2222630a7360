package repository

import (
	"context"

	"ai-credits-billing/internal/domain/model"
)

// -----------------------------
// Accounts
// -----------------------------

type AccountRepository interface {
	// Save creates or updates an account keyed by user id.
	Save(ctx context.Context, tx Tx, a *model.Account) error
	// CreateIfAbsent inserts the account only when no row exists for the
	// user; an existing row is left untouched. Callers that need the
	// current state must re-read it afterwards.
	CreateIfAbsent(ctx context.Context, tx Tx, a *model.Account) error
	// FindByUserID returns domain.ErrNotFound when no account exists.
	// Inside a transaction the row is locked for update.
	FindByUserID(ctx context.Context, tx Tx, userID string) (*model.Account, error)
	CountAccounts(ctx context.Context, tx Tx) (int, error)
}
