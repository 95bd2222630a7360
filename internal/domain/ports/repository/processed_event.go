package repository

import (
	"context"

	"ai-credits-billing/internal/domain/model"
)

// -----------------------------
// Processed events (idempotency records)
// -----------------------------

type ProcessedEventRepository interface {
	// MarkProcessed inserts the idempotency record for an event. It returns
	// false when the event id was already recorded, which is how a duplicate
	// or a lost race between two concurrent deliveries is detected. The
	// insert must participate in the caller's transaction so the record and
	// the account mutation commit or roll back together.
	MarkProcessed(ctx context.Context, tx Tx, rec *model.ProcessedEvent) (bool, error)
	// Exists reports whether the event id has already been reconciled.
	Exists(ctx context.Context, tx Tx, eventID string) (bool, error)
}
