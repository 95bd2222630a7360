package payment

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ai-credits-billing/internal/domain"
	"ai-credits-billing/internal/domain/model"
	"ai-credits-billing/internal/domain/ports/adapter"
)

var _ adapter.EventCodec = (*Codec)(nil)

// Codec authenticates and decodes processor webhook deliveries.
type Codec struct {
	secret    string
	tolerance time.Duration
	now       func() time.Time
}

func NewCodec(webhookSecret string, tolerance time.Duration) *Codec {
	if tolerance <= 0 {
		tolerance = DefaultSignatureTolerance
	}
	return &Codec{secret: webhookSecret, tolerance: tolerance, now: time.Now}
}

func (c *Codec) Verify(payload []byte, signatureHeader string) error {
	return VerifySignature(c.secret, payload, signatureHeader, c.tolerance, c.now())
}

// event wire envelope, processor side.
type wireEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID              string `json:"id"`
			Subscription    string `json:"subscription"`
			CustomerDetails struct {
				Email string `json:"email"`
			} `json:"customer_details"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

func (c *Codec) Parse(payload []byte) (*model.PaymentEvent, error) {
	var ev wireEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", domain.ErrMalformedPayload)
	}
	if strings.TrimSpace(ev.ID) == "" {
		return nil, fmt.Errorf("event id missing: %w", domain.ErrMalformedPayload)
	}

	meta := model.EventMetadata{
		UserID:    ev.Data.Object.Metadata["userId"],
		ProductID: ev.Data.Object.Metadata["productId"],
	}
	// Purchase type defaults to TOKEN when the metadata omits or mangles it;
	// the reconciler then applies a plain credit and touches no tier state.
	if pt, err := model.ParsePurchaseType(ev.Data.Object.Metadata["type"]); err == nil {
		meta.PurchaseType = pt
	} else {
		meta.PurchaseType = model.PurchaseTypeToken
	}

	return &model.PaymentEvent{
		ID:              ev.ID,
		Kind:            ev.Type,
		Metadata:        meta,
		CustomerEmail:   ev.Data.Object.CustomerDetails.Email,
		SubscriptionRef: ev.Data.Object.Subscription,
		ReceivedAt:      c.now(),
	}, nil
}
