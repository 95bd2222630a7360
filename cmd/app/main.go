// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-credits-billing/internal/config"
	"ai-credits-billing/internal/domain/model"
	pg "ai-credits-billing/internal/infra/db/postgres"
	"ai-credits-billing/internal/infra/logging"
	"ai-credits-billing/internal/infra/metrics"
	"ai-credits-billing/internal/infra/payment"
	red "ai-credits-billing/internal/infra/redis"
	"ai-credits-billing/internal/infra/web"
	"ai-credits-billing/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Schema ----
	if err := pg.RunMigrations(cfg.Database.URL); err != nil {
		logger.Fatal().Err(err).Msg("migrations failed")
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, int32(cfg.Database.PoolSize))
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	go func() {
		t := time.NewTicker(15 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				st := pool.Stat()
				metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
			}
		}
	}()

	// ---- Redis (optional fast paths) ----
	var (
		limiter    web.SenderLimiter
		eventCache usecase.EventSeenCache
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connect failed")
		}
		defer redisClient.Close()
		limiter = red.NewRateLimiter(redisClient)
		eventCache = red.NewEventCache(redisClient, cfg.Redis.TTL)
	} else {
		logger.Warn().Msg("redis.url not set; webhook rate limiting and duplicate fast path disabled")
	}

	// ---- Repositories ----
	accountRepo := pg.NewAccountRepo(pool)
	processedRepo := pg.NewProcessedEventRepo(pool)
	tm := pg.NewTxManager(pool)

	if n, err := accountRepo.CountAccounts(ctx, nil); err == nil {
		logger.Info().Int("accounts", n).Msg("account store ready")
	}

	// ---- Processor adapters ----
	gateway, err := payment.NewProcessorGateway(cfg.Processor.APIKey, cfg.Processor.BaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("processor gateway init failed")
	}
	codec := payment.NewCodec(cfg.Processor.WebhookSecret, cfg.Processor.SignatureTolerance)

	// ---- Catalog ----
	catalog := model.DefaultCatalog()
	if len(cfg.Billing.Catalog) > 0 {
		entries := make(map[string]model.CatalogEntry, len(cfg.Billing.Catalog))
		for id, e := range cfg.Billing.Catalog {
			entries[id] = model.CatalogEntry{TokenCredit: e.TokenCredit, Tier: model.SubscriptionTier(e.Tier)}
		}
		catalog = model.NewCatalog(entries)
		logger.Info().Int("products", len(entries)).Msg("catalog loaded from config")
	}

	// ---- Use cases ----
	checkoutUC := usecase.NewCheckoutUseCase(gateway, cfg.Processor.DefaultOrigin, logger)
	reconcileUC := usecase.NewReconcileUseCase(codec, catalog, accountRepo, processedRepo, tm, eventCache, cfg.Billing.TxTimeout, logger)

	// ---- HTTP ----
	auth := web.NewAuthManager(cfg.Auth.JWTSecret, 30*time.Minute)
	srv := web.NewServer(checkoutUC, reconcileUC, auth, limiter, web.RateLimitConfig{
		Limit:  cfg.Webhook.RateLimit,
		Window: cfg.Webhook.RateLimitWindow,
	}, logger)

	go func() {
		if err := srv.Start(cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
	case <-ctx.Done():
	}
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}
	cancel()
}
