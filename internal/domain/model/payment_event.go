package model

import (
	"time"

	"ai-credits-billing/internal/domain"
)

type PurchaseType string

const (
	PurchaseTypeToken        PurchaseType = "TOKEN"
	PurchaseTypeSubscription PurchaseType = "SUBSCRIPTION"
)

// ParsePurchaseType maps the wire value to a PurchaseType.
func ParsePurchaseType(s string) (PurchaseType, error) {
	switch PurchaseType(s) {
	case PurchaseTypeToken, PurchaseTypeSubscription:
		return PurchaseType(s), nil
	default:
		return "", domain.ErrInvalidArgument
	}
}

// EventKindCheckoutCompleted is the only event kind that mutates accounts.
// Every other kind is acknowledged and ignored.
const EventKindCheckoutCompleted = "checkout.session.completed"

// EventMetadata is the opaque block the session initiator attaches to the
// outbound session so the completion event is self-describing.
type EventMetadata struct {
	UserID       string       `json:"userId"`
	ProductID    string       `json:"productId"`
	PurchaseType PurchaseType `json:"type"`
}

// Complete reports whether the metadata identifies a creditable purchase.
func (m EventMetadata) Complete() bool {
	return m.UserID != "" && m.ProductID != ""
}

// PaymentEvent is the decoded completion notification from the payment
// processor. It is ephemeral; only the idempotency record persists.
type PaymentEvent struct {
	ID              string
	Kind            string
	Metadata        EventMetadata
	CustomerEmail   string
	SubscriptionRef string
	ReceivedAt      time.Time
}

// ProcessedEvent is the durable idempotency record for a reconciled event.
type ProcessedEvent struct {
	EventID     string
	UserID      string
	ProductID   string
	ProcessedAt time.Time
}
