// File: internal/usecase/checkout_uc.go
package usecase

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"ai-credits-billing/internal/domain"
	"ai-credits-billing/internal/domain/model"
	"ai-credits-billing/internal/domain/ports/adapter"
	"ai-credits-billing/internal/infra/metrics"
)

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

// Principal is the authenticated caller of the checkout endpoint.
type Principal struct {
	UserID string
	Email  string
}

func (p *Principal) IsZero() bool { return p == nil || p.UserID == "" }

// CheckoutInput is the purchase intent coming from the client.
type CheckoutInput struct {
	ProductID   string
	Type        string
	Price       float64
	Currency    string
	ProductName string
	OriginHint  string
}

type CheckoutUseCase interface {
	// CreateSession packages the purchase intent into a processor checkout
	// session and returns its id. No durable state is written; the session
	// metadata makes the eventual completion event self-describing.
	CreateSession(ctx context.Context, principal *Principal, in CheckoutInput) (*adapter.CheckoutSession, error)
}

type checkoutUC struct {
	gateway       adapter.CheckoutGateway
	defaultOrigin string
	log           *zerolog.Logger
}

func NewCheckoutUseCase(gateway adapter.CheckoutGateway, defaultOrigin string, logger *zerolog.Logger) *checkoutUC {
	return &checkoutUC{gateway: gateway, defaultOrigin: strings.TrimSuffix(defaultOrigin, "/"), log: logger}
}

func (u *checkoutUC) CreateSession(ctx context.Context, principal *Principal, in CheckoutInput) (*adapter.CheckoutSession, error) {
	if principal.IsZero() {
		return nil, domain.ErrUnauthenticated
	}
	if strings.TrimSpace(in.ProductID) == "" || in.Price <= 0 {
		return nil, fmt.Errorf("productId and positive price required: %w", domain.ErrInvalidArgument)
	}
	purchaseType, err := model.ParsePurchaseType(in.Type)
	if err != nil {
		return nil, fmt.Errorf("unknown purchase type %q: %w", in.Type, domain.ErrInvalidArgument)
	}

	currency := strings.ToLower(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "usd"
	}

	origin := u.resolveOrigin(in.OriginHint)
	req := adapter.CheckoutRequest{
		UserID:        principal.UserID,
		CustomerEmail: principal.Email,
		ProductID:     in.ProductID,
		ProductName:   in.ProductName,
		PurchaseType:  purchaseType,
		AmountMinor:   int64(math.Round(in.Price * 100)),
		Currency:      currency,
		SuccessURL:    origin + "/billing/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     origin + "/billing/cancel",
	}

	session, err := u.gateway.CreateSession(ctx, req)
	if err != nil {
		metrics.IncCheckoutSession("fail")
		u.log.Error().Err(err).Str("user_id", principal.UserID).Str("product_id", in.ProductID).Msg("checkout session creation failed")
		return nil, err
	}

	metrics.IncCheckoutSession("ok")
	u.log.Info().Str("user_id", principal.UserID).Str("product_id", in.ProductID).
		Str("purchase_type", string(purchaseType)).Str("session_id", session.ID).
		Msg("checkout session created")
	return session, nil
}

// resolveOrigin falls back to the configured public origin when the caller's
// declared origin is absent or not an absolute http(s) URL.
func (u *checkoutUC) resolveOrigin(hint string) string {
	hint = strings.TrimSuffix(strings.TrimSpace(hint), "/")
	if hint == "" {
		return u.defaultOrigin
	}
	parsed, err := url.Parse(hint)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return u.defaultOrigin
	}
	return hint
}
