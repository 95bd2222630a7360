package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"ai-credits-billing/internal/usecase"
)

// SenderLimiter throttles webhook deliveries per remote sender.
type SenderLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type RateLimitConfig struct {
	Limit  int
	Window time.Duration
}

type Server struct {
	checkoutUC  usecase.CheckoutUseCase
	reconcileUC usecase.ReconcileUseCase
	auth        *AuthManager
	limiter     SenderLimiter // may be nil
	rateCfg     RateLimitConfig
	log         *zerolog.Logger
	server      *http.Server
}

func NewServer(
	checkoutUC usecase.CheckoutUseCase,
	reconcileUC usecase.ReconcileUseCase,
	auth *AuthManager,
	limiter SenderLimiter,
	rateCfg RateLimitConfig,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		checkoutUC:  checkoutUC,
		reconcileUC: reconcileUC,
		auth:        auth,
		limiter:     limiter,
		rateCfg:     rateCfg,
		log:         logger,
	}
}

// Handler builds the chi router for the whole HTTP surface.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(logMiddleware(s.log))

	r.Route("/api/v1", func(r chi.Router) {
		r.With(s.authMiddleware).Post("/checkout/session", s.handleCreateCheckoutSession)
	})

	// The processor authenticates with the signature header, not a token.
	r.Post("/webhooks/payment", s.handlePaymentWebhook)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

func (s *Server) Start(port int) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info().Int("port", port).Msg("http server listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
