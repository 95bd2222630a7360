//go:build !integration

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ai-credits-billing/internal/domain"
	"ai-credits-billing/internal/domain/ports/adapter"
	"ai-credits-billing/internal/usecase"
)

const testJWTSecret = "jwt-unit-secret"

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// ---- Stub use cases ----

type stubCheckoutUC struct {
	lastPrincipal *usecase.Principal
	lastInput     usecase.CheckoutInput
	session       *adapter.CheckoutSession
	err           error
}

func (s *stubCheckoutUC) CreateSession(ctx context.Context, p *usecase.Principal, in usecase.CheckoutInput) (*adapter.CheckoutSession, error) {
	s.lastPrincipal = p
	s.lastInput = in
	if s.err != nil {
		return nil, s.err
	}
	if s.session != nil {
		return s.session, nil
	}
	return &adapter.CheckoutSession{ID: "cs_stub", URL: "https://pay.example.com/cs_stub"}, nil
}

type stubReconcileUC struct {
	lastPayload []byte
	lastSig     string
	calls       int
	err         error
}

func (s *stubReconcileUC) HandleEvent(ctx context.Context, payload []byte, sig string) error {
	s.calls++
	s.lastPayload = append([]byte(nil), payload...)
	s.lastSig = sig
	return s.err
}

type stubLimiter struct {
	allowed bool
	err     error
	lastKey string
}

func (s *stubLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	s.lastKey = key
	return s.allowed, s.err
}

func newTestServer(co usecase.CheckoutUseCase, rec usecase.ReconcileUseCase, limiter SenderLimiter) *Server {
	return NewServer(
		co, rec,
		NewAuthManager(testJWTSecret, time.Hour),
		limiter,
		RateLimitConfig{Limit: 10, Window: time.Minute},
		newTestLogger(),
	)
}

func postJSON(t *testing.T, h http.Handler, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestServer_CreateCheckoutSession(t *testing.T) {
	body := map[string]any{
		"productId":   "MEDIUM",
		"type":        "TOKEN",
		"price":       9.99,
		"productName": "Medium token pack",
	}

	t.Run("should create a session for an authenticated caller", func(t *testing.T) {
		// --- Arrange ---
		co := &stubCheckoutUC{}
		srv := newTestServer(co, &stubReconcileUC{}, nil)
		token, err := srv.auth.Mint("user-42", "u42@example.com")
		if err != nil {
			t.Fatalf("mint token: %v", err)
		}

		// --- Act ---
		rr := postJSON(t, srv.Handler(), "/api/v1/checkout/session", token, body)

		// --- Assert ---
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
		var resp struct {
			SessionID string `json:"sessionId"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.SessionID != "cs_stub" {
			t.Errorf("expected sessionId cs_stub, got %q", resp.SessionID)
		}
		if co.lastPrincipal == nil || co.lastPrincipal.UserID != "user-42" || co.lastPrincipal.Email != "u42@example.com" {
			t.Errorf("principal not propagated from token claims: %+v", co.lastPrincipal)
		}
		if co.lastInput.ProductID != "MEDIUM" || co.lastInput.Type != "TOKEN" {
			t.Errorf("request body not propagated: %+v", co.lastInput)
		}
	})

	t.Run("should forward the Origin header as the redirect hint", func(t *testing.T) {
		co := &stubCheckoutUC{}
		srv := newTestServer(co, &stubReconcileUC{}, nil)
		token, _ := srv.auth.Mint("user-42", "")

		raw, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/session", bytes.NewReader(raw))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Origin", "https://app.example.com")
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if co.lastInput.OriginHint != "https://app.example.com" {
			t.Errorf("expected origin hint forwarded, got %q", co.lastInput.OriginHint)
		}
	})

	t.Run("should reject a caller without a token", func(t *testing.T) {
		co := &stubCheckoutUC{}
		srv := newTestServer(co, &stubReconcileUC{}, nil)

		rr := postJSON(t, srv.Handler(), "/api/v1/checkout/session", "", body)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rr.Code)
		}
		if co.lastPrincipal != nil {
			t.Error("handler must not run without a valid token")
		}
	})

	t.Run("should reject a token signed with another secret", func(t *testing.T) {
		srv := newTestServer(&stubCheckoutUC{}, &stubReconcileUC{}, nil)
		foreign := NewAuthManager("some-other-secret", time.Hour)
		token, _ := foreign.Mint("user-42", "")

		rr := postJSON(t, srv.Handler(), "/api/v1/checkout/session", token, body)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rr.Code)
		}
	})

	t.Run("should map validation failures to 400", func(t *testing.T) {
		co := &stubCheckoutUC{err: fmt.Errorf("bad price: %w", domain.ErrInvalidArgument)}
		srv := newTestServer(co, &stubReconcileUC{}, nil)
		token, _ := srv.auth.Mint("user-42", "")

		rr := postJSON(t, srv.Handler(), "/api/v1/checkout/session", token, body)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("should map gateway failures to 500 without leaking details", func(t *testing.T) {
		co := &stubCheckoutUC{err: fmt.Errorf("processor said no: %w", domain.ErrGatewayFailure)}
		srv := newTestServer(co, &stubReconcileUC{}, nil)
		token, _ := srv.auth.Mint("user-42", "")

		rr := postJSON(t, srv.Handler(), "/api/v1/checkout/session", token, body)

		if rr.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rr.Code)
		}
		if bytes.Contains(rr.Body.Bytes(), []byte("processor said no")) {
			t.Error("processor error detail must not reach the caller")
		}
	})

	t.Run("should reject an unparseable body", func(t *testing.T) {
		srv := newTestServer(&stubCheckoutUC{}, &stubReconcileUC{}, nil)
		token, _ := srv.auth.Mint("user-42", "")

		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/session", bytes.NewReader([]byte("{not json")))
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})
}

func TestServer_PaymentWebhook(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)

	post := func(h http.Handler, sig string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(payload))
		if sig != "" {
			req.Header.Set(signatureHeader, sig)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	t.Run("should acknowledge an applied delivery with received true", func(t *testing.T) {
		rec := &stubReconcileUC{}
		srv := newTestServer(&stubCheckoutUC{}, rec, nil)

		rr := post(srv.Handler(), "t=1,v1=abc")

		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		var resp map[string]bool
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if !resp["received"] {
			t.Error(`expected {"received": true}`)
		}
		if !bytes.Equal(rec.lastPayload, payload) {
			t.Error("raw body must be handed over byte for byte")
		}
		if rec.lastSig != "t=1,v1=abc" {
			t.Errorf("signature header not forwarded, got %q", rec.lastSig)
		}
	})

	t.Run("should answer 400 on a rejected signature", func(t *testing.T) {
		rec := &stubReconcileUC{err: fmt.Errorf("verify: %w", domain.ErrSignatureInvalid)}
		srv := newTestServer(&stubCheckoutUC{}, rec, nil)

		if rr := post(srv.Handler(), "t=1,v1=bad"); rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("should answer 400 on a malformed payload", func(t *testing.T) {
		rec := &stubReconcileUC{err: fmt.Errorf("parse: %w", domain.ErrMalformedPayload)}
		srv := newTestServer(&stubCheckoutUC{}, rec, nil)

		if rr := post(srv.Handler(), "t=1,v1=abc"); rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("should answer 500 on a transient store failure", func(t *testing.T) {
		rec := &stubReconcileUC{err: fmt.Errorf("apply: %w", domain.ErrOperationFailed)}
		srv := newTestServer(&stubCheckoutUC{}, rec, nil)

		if rr := post(srv.Handler(), "t=1,v1=abc"); rr.Code != http.StatusInternalServerError {
			t.Errorf("expected 500 so the processor retries, got %d", rr.Code)
		}
	})

	t.Run("should answer 429 when the sender is rate limited", func(t *testing.T) {
		rec := &stubReconcileUC{}
		limiter := &stubLimiter{allowed: false}
		srv := newTestServer(&stubCheckoutUC{}, rec, limiter)

		rr := post(srv.Handler(), "t=1,v1=abc")

		if rr.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rr.Code)
		}
		if rec.calls != 0 {
			t.Error("a throttled delivery must not reach the reconciler")
		}
	})

	t.Run("should process deliveries when the limiter itself fails", func(t *testing.T) {
		// A broken limiter must not drop payments.
		rec := &stubReconcileUC{}
		limiter := &stubLimiter{allowed: false, err: errors.New("redis down")}
		srv := newTestServer(&stubCheckoutUC{}, rec, limiter)

		if rr := post(srv.Handler(), "t=1,v1=abc"); rr.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rr.Code)
		}
		if rec.calls != 1 {
			t.Error("delivery must fall through to the reconciler")
		}
	})

	t.Run("should reject an empty body", func(t *testing.T) {
		srv := newTestServer(&stubCheckoutUC{}, &stubReconcileUC{}, nil)
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(nil))
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(&stubCheckoutUC{}, &stubReconcileUC{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
}

func TestAuthManager(t *testing.T) {
	t.Run("should round-trip claims through a minted token", func(t *testing.T) {
		am := NewAuthManager(testJWTSecret, time.Hour)
		token, err := am.Mint("user-7", "u7@example.com")
		if err != nil {
			t.Fatalf("mint: %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		claims, err := am.ParseFromRequest(req)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if claims.Subject != "user-7" || claims.Email != "u7@example.com" {
			t.Errorf("unexpected claims: %+v", claims)
		}
	})

	t.Run("should reject an expired token", func(t *testing.T) {
		am := NewAuthManager(testJWTSecret, time.Hour)
		am.ttl = -time.Minute
		token, _ := am.Mint("user-7", "")
		am.ttl = time.Hour

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		if _, err := am.ParseFromRequest(req); err == nil {
			t.Error("expected an expired token to be rejected")
		}
	})

	t.Run("should reject a non-bearer authorization header", func(t *testing.T) {
		am := NewAuthManager(testJWTSecret, time.Hour)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwdw==")
		if _, err := am.ParseFromRequest(req); err == nil {
			t.Error("expected non-bearer credentials to be rejected")
		}
	})
}
