package adapter

import (
	"context"

	"ai-credits-billing/internal/domain/model"
)

// CheckoutRequest carries everything the processor needs to start a
// checkout flow. Amount is in minor currency units.
type CheckoutRequest struct {
	UserID        string
	CustomerEmail string
	ProductID     string
	ProductName   string
	PurchaseType  model.PurchaseType
	AmountMinor   int64
	Currency      string
	SuccessURL    string
	CancelURL     string
}

// CheckoutSession is the processor-side session handle returned to the client.
type CheckoutSession struct {
	ID  string
	URL string
}

// CheckoutGateway is the port for the outbound create-checkout-session call.
type CheckoutGateway interface {
	Name() string
	// CreateSession starts a checkout flow on the processor, attaching the
	// {userId, productId, type} metadata so the completion event is
	// self-describing.
	CreateSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}

// EventCodec authenticates and decodes inbound processor notifications.
type EventCodec interface {
	// Verify validates the signature header against the exact raw payload
	// bytes. Any re-serialization before verification invalidates the check.
	Verify(payload []byte, signatureHeader string) error
	// Parse decodes a verified payload into a PaymentEvent.
	Parse(payload []byte) (*model.PaymentEvent, error)
}
