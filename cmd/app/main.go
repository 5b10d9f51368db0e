// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"telegram-payment-links/internal/application"
	"telegram-payment-links/internal/config"
	"telegram-payment-links/internal/domain/ports/adapter"
	payAdapters "telegram-payment-links/internal/infra/adapters/payment"
	tele "telegram-payment-links/internal/infra/adapters/telegram"
	"telegram-payment-links/internal/infra/api"
	pg "telegram-payment-links/internal/infra/db/postgres"
	"telegram-payment-links/internal/infra/logging"
	"telegram-payment-links/internal/infra/metrics"
	red "telegram-payment-links/internal/infra/redis"
	"telegram-payment-links/internal/infra/sched"
	"telegram-payment-links/internal/infra/worker"
	"telegram-payment-links/internal/usecase"
)

// Set via -ldflags.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode: noop payment gateway and bot when credentials are missing")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("DEV MODE enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	go observePool(ctx, pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	linkRepo := pg.NewPaymentLinkRepo(pool)
	productRepo := pg.NewProductRepoCacheDecorator(pg.NewPostgresProductRepo(pool), redisClient, cfg.Redis.TTL, logger)
	txManager := pg.NewTxManager(pool)

	// ---- Payment provider ----
	var provider adapter.PaymentProvider
	if cfg.Runtime.Dev && cfg.Payment.Razorpay.KeyID == "" {
		provider = payAdapters.NewNoopPaymentGateway()
		logger.Warn().Msg("razorpay keys missing; using noop payment gateway")
	} else {
		gw, err := payAdapters.NewRazorpayGateway(cfg.Payment.Razorpay, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("razorpay gateway")
		}
		provider = gw
	}

	// ---- Notification workers ----
	notifyPool := worker.NewPool(cfg.Notifications.Workers, logger)
	notifyPool.Start(ctx)

	// ---- Use cases, facade, bot ----
	// The bot is both the facade's front end and the link notifier, so the
	// facade gets its link usecase after the bot exists.
	catalogUC := usecase.NewCatalogUseCase(productRepo)
	facade := application.NewBotFacade(catalogUC, nil)

	var (
		notifier   adapter.Notifier
		botAdapter *tele.RealTelegramBotAdapter
	)
	if cfg.Runtime.Dev && cfg.Bot.Token == "" {
		notifier = tele.NewNoopBotAdapter(logger)
		logger.Warn().Msg("bot token missing; using noop telegram adapter")
	} else {
		botAdapter, err = tele.NewRealTelegramBotAdapter(&cfg.Bot, facade, rateLimiter, cfg.Payment, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram")
		}
		notifier = botAdapter
	}

	linkUC := usecase.NewPaymentLinkUseCase(
		linkRepo, productRepo, provider, txManager, notifier, notifyPool,
		usecase.PaymentLinkConfig{TTL: cfg.Payment.LinkTTL, Currency: cfg.Payment.Currency},
		logger,
	)
	facade.Links = linkUC

	// ---- Reconciler ----
	reconciler := sched.NewLinkReconciler(linkUC, cfg.Scheduler.ReconcileInterval, cfg.Scheduler.TickTimeout, cfg.Scheduler.BatchSize, logger)
	reconciler.Start(ctx)

	// ---- HTTP ----
	deps := api.Deps{
		Links:          linkUC,
		Reconciler:     reconciler,
		Auth:           api.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL),
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Logger:         logger,
	}
	if botAdapter != nil && cfg.Bot.Mode == "webhook" {
		deps.BotWebhook = botAdapter
		deps.WebhookPath = cfg.Bot.WebhookPath
	}
	server := api.NewServer(cfg.HTTP.Port, api.NewRouter(deps), logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	if botAdapter != nil {
		if err := botAdapter.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("telegram start")
		}
	}

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sigc:
		logger.Info().Str("signal", s.String()).Msg("shutdown requested")
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Scheduler.ShutdownTimeout)
	defer stop()

	// Stop intake first, then background work, then outbound notifications.
	if err := server.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	if botAdapter != nil {
		botAdapter.Stop()
	}
	if err := reconciler.Stop(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("reconciler did not stop in time; in-flight pass aborted")
	}
	notifyPool.Stop()
	cancel()
	logger.Info().Msg("bye")
}

// observePool exports pgxpool stats until ctx ends.
func observePool(ctx context.Context, pool *pgxpool.Pool) {
	t := time.NewTicker(15 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			metrics.ObserveDBPool(pool.Stat())
		}
	}
}
