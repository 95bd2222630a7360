// File: internal/usecase/reconcile_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"ai-credits-billing/internal/domain"
	"ai-credits-billing/internal/domain/model"
	"ai-credits-billing/internal/domain/ports/adapter"
	"ai-credits-billing/internal/domain/ports/repository"
	"ai-credits-billing/internal/infra/logging"
	"ai-credits-billing/internal/infra/metrics"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

// defaultTxTimeout bounds the account-store transaction; a delivery that
// cannot commit within it fails transiently and gets redelivered.
const defaultTxTimeout = 10 * time.Second

type ReconcileUseCase interface {
	// HandleEvent authenticates, decodes and applies one inbound delivery.
	// Deliveries are at-least-once: a given event id mutates the account
	// exactly once no matter how often (or how concurrently) it arrives.
	//
	// Error mapping for the HTTP surface:
	//   - domain.ErrSignatureInvalid / domain.ErrMalformedPayload: permanent,
	//     respond 4xx so the processor stops retrying.
	//   - domain.ErrOperationFailed: transient, respond 5xx so the processor
	//     redelivers; the idempotency record makes the retry safe.
	//   - nil: acknowledged. Includes ignored kinds, incomplete metadata and
	//     duplicates, which can never succeed differently on retry.
	HandleEvent(ctx context.Context, payload []byte, signatureHeader string) error
}

// EventSeenCache is an optional, non-authoritative duplicate fast path.
// The in-transaction idempotency record stays the source of truth.
type EventSeenCache interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	MarkSeen(ctx context.Context, eventID string) error
}

type reconcileUC struct {
	codec     adapter.EventCodec
	catalog   *model.Catalog
	accounts  repository.AccountRepository
	processed repository.ProcessedEventRepository
	tm        repository.TransactionManager
	cache     EventSeenCache // may be nil
	txTimeout time.Duration
	log       *zerolog.Logger
}

func NewReconcileUseCase(
	codec adapter.EventCodec,
	catalog *model.Catalog,
	accounts repository.AccountRepository,
	processed repository.ProcessedEventRepository,
	tm repository.TransactionManager,
	cache EventSeenCache,
	txTimeout time.Duration,
	logger *zerolog.Logger,
) *reconcileUC {
	if txTimeout <= 0 {
		txTimeout = defaultTxTimeout
	}
	return &reconcileUC{
		codec:     codec,
		catalog:   catalog,
		accounts:  accounts,
		processed: processed,
		tm:        tm,
		cache:     cache,
		txTimeout: txTimeout,
		log:       logger,
	}
}

func (u *reconcileUC) HandleEvent(ctx context.Context, payload []byte, signatureHeader string) error {
	defer logging.TraceDuration(u.log, "ReconcileUseCase.HandleEvent")()

	// Step 1: authenticate the exact raw bytes before touching anything else.
	if err := u.codec.Verify(payload, signatureHeader); err != nil {
		metrics.IncWebhookDelivery("rejected", "bad_signature")
		u.log.Warn().Msg("webhook delivery failed signature verification")
		return fmt.Errorf("verify delivery: %w", domain.ErrSignatureInvalid)
	}

	// Step 2: decode.
	ev, err := u.codec.Parse(payload)
	if err != nil {
		metrics.IncWebhookDelivery("rejected", "bad_payload")
		return fmt.Errorf("parse delivery: %w", domain.ErrMalformedPayload)
	}
	ctx = logging.WithEventID(ctx, ev.ID)
	if ev.Kind != model.EventKindCheckoutCompleted {
		// Correctly delivered but not ours to act on; acknowledge so the
		// processor does not redeliver forever.
		metrics.IncWebhookDelivery("ignored", "unhandled_kind")
		u.log.Debug().Str("event_id", ev.ID).Str("kind", ev.Kind).Msg("ignoring unhandled event kind")
		return nil
	}

	// Step 3: the metadata must identify a user and product, otherwise the
	// event can never be applied and retrying is pointless.
	if !ev.Metadata.Complete() {
		metrics.IncWebhookDelivery("ignored", "incomplete_metadata")
		u.log.Warn().Str("event_id", ev.ID).Msg("completion event missing userId/productId metadata")
		return nil
	}

	// Step 4 (fast path): the cache may short-circuit an obvious duplicate.
	// Misses and cache errors fall through to the authoritative in-tx check.
	if u.cache != nil {
		if seen, err := u.cache.Seen(ctx, ev.ID); err == nil && seen {
			metrics.IncDuplicateEvent()
			u.log.Info().Str("event_id", ev.ID).Msg("duplicate delivery short-circuited by cache")
			return nil
		}
	}

	// Step 5: catalog lookup. Unknown products credit zero.
	entry := u.catalog.Lookup(ev.Metadata.ProductID)
	if !u.catalog.Contains(ev.Metadata.ProductID) {
		u.log.Warn().Str("event_id", ev.ID).Str("product_id", ev.Metadata.ProductID).Msg("product not in catalog, applying zero credit")
	}

	// Step 6: one transaction covers the idempotency record and the account
	// mutation so they can never diverge.
	applied, err := u.applyEvent(ctx, ev, entry)
	if err != nil {
		metrics.IncWebhookDelivery("failed", "store_tx")
		logging.With(ctx, u.log).Error().Err(err).Msg("account update transaction failed")
		return fmt.Errorf("apply event %s: %w", ev.ID, domain.ErrOperationFailed)
	}

	if !applied {
		metrics.IncDuplicateEvent()
		metrics.IncWebhookDelivery("ignored", "duplicate")
		u.log.Info().Str("event_id", ev.ID).Msg("duplicate delivery, account untouched")
		return nil
	}

	// Step 7: only now is the delivery acknowledged. Seed the fast path
	// after commit; a miss here costs one extra tx on the next retry.
	if u.cache != nil {
		_ = u.cache.MarkSeen(ctx, ev.ID)
	}

	metrics.IncWebhookDelivery("applied", "")
	metrics.IncReconciliation(string(ev.Metadata.PurchaseType))
	u.log.Info().Str("event_id", ev.ID).Str("user_id", ev.Metadata.UserID).
		Str("product_id", ev.Metadata.ProductID).Int64("credit", entry.TokenCredit).
		Msg("completion event reconciled")
	return nil
}

// applyEvent runs the read-modify-write under the store's transaction.
// It returns false when the event id was already recorded, in which case
// nothing was written.
func (u *reconcileUC) applyEvent(ctx context.Context, ev *model.PaymentEvent, entry model.CatalogEntry) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, u.txTimeout)
	defer cancel()

	start := time.Now()
	applied := false
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		// The idempotency insert goes first: a concurrent delivery of the
		// same event id blocks on the unique index until this tx resolves,
		// then observes the conflict and applies nothing.
		fresh, err := u.processed.MarkProcessed(ctx, tx, &model.ProcessedEvent{
			EventID:     ev.ID,
			UserID:      ev.Metadata.UserID,
			ProductID:   ev.Metadata.ProductID,
			ProcessedAt: time.Now(),
		})
		if err != nil {
			return err
		}
		if !fresh {
			return nil
		}

		account, err := u.accounts.FindByUserID(ctx, tx, ev.Metadata.UserID)
		if errors.Is(err, domain.ErrNotFound) {
			account, err = u.bootstrapAccount(ctx, tx, ev)
		}
		if err != nil {
			return err
		}
		if account.Email == "" && ev.CustomerEmail != "" {
			account.Email = ev.CustomerEmail
		}

		if err := account.Credit(entry.TokenCredit); err != nil {
			return err
		}
		if ev.Metadata.PurchaseType == model.PurchaseTypeSubscription && entry.HasTier() {
			account.ActivateSubscription(entry.Tier, ev.SubscriptionRef)
		}

		if err := u.accounts.Save(ctx, tx, account); err != nil {
			return err
		}
		applied = true
		return nil
	})
	metrics.ObserveStoreTx(time.Since(start), err == nil)
	if err != nil {
		return false, err
	}
	return applied, nil
}

// bootstrapAccount lazily creates the baseline account for a first-ever
// event and re-reads it under the row lock. FOR UPDATE on a missing row
// locks nothing, so two concurrent first events for the same user can both
// observe not-found; the conflict-free insert lets exactly one of them
// create the row while the other blocks on the unique index until that
// commit, then the re-read locks the committed row and the credit applies
// on top of it instead of overwriting it.
func (u *reconcileUC) bootstrapAccount(ctx context.Context, tx repository.Tx, ev *model.PaymentEvent) (*model.Account, error) {
	baseline, err := model.NewAccount(ev.Metadata.UserID, ev.CustomerEmail)
	if err != nil {
		return nil, err
	}
	if err := u.accounts.CreateIfAbsent(ctx, tx, baseline); err != nil {
		return nil, err
	}
	u.log.Debug().Str("user_id", ev.Metadata.UserID).
		Str("email", logging.Redact(ev.CustomerEmail)).
		Msg("bootstrapping account from completion event")
	return u.accounts.FindByUserID(ctx, tx, ev.Metadata.UserID)
}
