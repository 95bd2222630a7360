package web

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"ai-credits-billing/internal/domain"
	"ai-credits-billing/internal/infra/logging"
	"ai-credits-billing/internal/infra/metrics"
	red "ai-credits-billing/internal/infra/redis"
	"ai-credits-billing/internal/usecase"
)

// maxWebhookBody caps inbound delivery payloads.
const maxWebhookBody = 1 << 20

// signatureHeader is the processor's signature header on each delivery.
const signatureHeader = "X-Payment-Signature"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type checkoutRequest struct {
	ProductID   string  `json:"productId"`
	Type        string  `json:"type"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency,omitempty"`
	ProductName string  `json:"productName"`
}

type checkoutResponse struct {
	SessionID string `json:"sessionId"`
}

func (s *Server) handleCreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := s.checkoutUC.CreateSession(r.Context(), principal, usecase.CheckoutInput{
		ProductID:   req.ProductID,
		Type:        req.Type,
		Price:       req.Price,
		Currency:    req.Currency,
		ProductName: req.ProductName,
		OriginHint:  r.Header.Get("Origin"),
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, checkoutResponse{SessionID: session.ID})
	case errors.Is(err, domain.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthenticated")
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "productId, type and positive price are required")
	case errors.Is(err, domain.ErrGatewayFailure):
		// Opaque to the caller; the processor message stays in the logs.
		writeError(w, http.StatusInternalServerError, "payment processor error")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// handlePaymentWebhook is the at-least-once delivery entrypoint. 2xx stops
// redelivery, 4xx is a permanent rejection, 5xx asks the processor to retry.
func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if s.limiter != nil {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		allowed, err := s.limiter.Allow(r.Context(), red.WebhookSenderKey(host), s.rateCfg.Limit, s.rateCfg.Window)
		if err == nil && !allowed {
			metrics.IncWebhookDelivery("rejected", "rate_limited")
			writeError(w, http.StatusTooManyRequests, "rate limited")
			return
		}
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
	if err != nil || len(payload) == 0 || len(payload) > maxWebhookBody {
		writeError(w, http.StatusBadRequest, "unreadable payload")
		return
	}

	err = s.reconcileUC.HandleEvent(r.Context(), payload, r.Header.Get(signatureHeader))
	switch {
	case err == nil:
		metrics.ObserveWebhookDuration("ok", time.Since(start))
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
	case errors.Is(err, domain.ErrSignatureInvalid):
		metrics.ObserveWebhookDuration("rejected", time.Since(start))
		logging.With(r.Context(), s.log).Warn().Str("remote", r.RemoteAddr).Msg("webhook signature rejected")
		writeError(w, http.StatusBadRequest, "signature verification failed")
	case errors.Is(err, domain.ErrMalformedPayload):
		metrics.ObserveWebhookDuration("rejected", time.Since(start))
		writeError(w, http.StatusBadRequest, "malformed payload")
	default:
		// Transient: the processor will redeliver and the idempotency
		// record keeps the retry safe.
		metrics.ObserveWebhookDuration("failed", time.Since(start))
		writeError(w, http.StatusInternalServerError, "temporarily unable to process event")
	}
}
