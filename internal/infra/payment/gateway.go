package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"ai-credits-billing/internal/domain"
	"ai-credits-billing/internal/domain/model"
	"ai-credits-billing/internal/domain/ports/adapter"
)

var _ adapter.CheckoutGateway = (*ProcessorGateway)(nil)

// ProcessorGateway implements adapter.CheckoutGateway against the payment
// processor's REST API.
type ProcessorGateway struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewProcessorGateway(apiKey, baseURL string) (*ProcessorGateway, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("processor api key empty: %w", domain.ErrInvalidArgument)
	}
	if _, err := url.Parse(baseURL); err != nil || baseURL == "" {
		return nil, fmt.Errorf("invalid processor base url: %w", domain.ErrInvalidArgument)
	}
	return &ProcessorGateway{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (g *ProcessorGateway) Name() string { return "processor" }

// CreateSession calls POST /v1/checkout/sessions. Mode is "payment" for
// one-off token packs and "subscription" (monthly) for recurring tiers. The
// metadata block rides on both the line item and the session so the
// completion event stays self-describing even if the processor drops one.
func (g *ProcessorGateway) CreateSession(ctx context.Context, req adapter.CheckoutRequest) (*adapter.CheckoutSession, error) {
	mode := "payment"
	if req.PurchaseType == model.PurchaseTypeSubscription {
		mode = "subscription"
	}

	meta := map[string]string{
		"userId":    req.UserID,
		"productId": req.ProductID,
		"type":      string(req.PurchaseType),
	}

	lineItem := map[string]any{
		"name":     req.ProductName,
		"amount":   req.AmountMinor,
		"currency": req.Currency,
		"quantity": 1,
		"metadata": meta,
	}
	if mode == "subscription" {
		lineItem["recurring"] = map[string]any{"interval": "month"}
	}

	payload := map[string]any{
		"mode":           mode,
		"success_url":    req.SuccessURL,
		"cancel_url":     req.CancelURL,
		"customer_email": req.CustomerEmail,
		"line_items":     []any{lineItem},
		"metadata":       meta,
	}

	b, _ := json.Marshal(payload)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/checkout/sessions", bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("build session request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	// Lets the processor dedupe a retried create on its side.
	httpReq.Header.Set("Idempotency-Key", uuid.NewString())

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayFailure, err)
	}
	defer resp.Body.Close()

	var out struct {
		ID    string `json:"id"`
		URL   string `json:"url"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode session response: %v", domain.ErrGatewayFailure, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || out.ID == "" {
		msg := out.Error.Message
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrGatewayFailure, msg)
	}

	return &adapter.CheckoutSession{ID: out.ID, URL: out.URL}, nil
}
