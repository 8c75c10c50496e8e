package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"subscription-commerce/internal/config"
	"subscription-commerce/internal/domain/model"
	"subscription-commerce/internal/domain/ports/adapter"
	pg "subscription-commerce/internal/infra/db/postgres"
	"subscription-commerce/internal/infra/logging"
	"subscription-commerce/internal/infra/metrics"
	"subscription-commerce/internal/infra/notify"
	"subscription-commerce/internal/infra/payment"
	red "subscription-commerce/internal/infra/redis"
	"subscription-commerce/internal/infra/sched"
	"subscription-commerce/internal/infra/web"
	"subscription-commerce/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, no sampling)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, *devMode)
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	txManager := pg.NewTxManager(pool)
	contractRepo := pg.NewContractRepo(pool)
	userRepo := pg.NewUserRepo(pool)
	planRepo := pg.NewPlanRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	txnRepo := pg.NewTransactionRepo(pool)

	// ---- Gateways ----
	gateways := map[model.PaymentProvider]adapter.PaymentGateway{}
	if cfg.Payment.Stripe.SecretKey != "" {
		gw, err := payment.NewStripeGateway(cfg.Payment.Stripe.SecretKey, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("stripe gateway")
		}
		gateways[model.ProviderStripe] = gw
		logger.Info().Msg("stripe gateway configured")
	}
	if cfg.Payment.PayPal.ClientID != "" {
		gateways[model.ProviderPayPal] = payment.NewPayPalGateway(
			cfg.Payment.PayPal.ClientID, cfg.Payment.PayPal.Secret, cfg.Payment.PayPal.Sandbox, logger)
		logger.Info().Bool("sandbox", cfg.Payment.PayPal.Sandbox).Msg("paypal gateway configured")
	}

	// ---- Collaborators ----
	mailer := notify.NewHTTPMailer(&cfg.Notify, cfg.Runtime.Dev, logger)

	// ---- Use cases ----
	pricingUC := usecase.NewPricingUseCase(usecase.DefaultCatalog(), logger)
	provisionUC := usecase.NewProvisionUseCase(userRepo, contractRepo, mailer, cfg.Notify.ReturnURL, cfg.Runtime.Dev, logger)
	subUC := usecase.NewSubscriptionUseCase(subRepo, planRepo, userRepo, locker, txManager, logger)
	ledgerUC := usecase.NewLedgerUseCase(txnRepo, logger)
	captureUC := usecase.NewCaptureUseCase(contractRepo, pricingUC, gateways, provisionUC, subUC, ledgerUC, cfg.Payment.Currency, logger)
	planUC := usecase.NewPlanUseCase(planRepo, logger)
	statsUC := usecase.NewStatsUseCase(userRepo, subRepo, txnRepo, logger)

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL)
	srv := web.NewServer(captureUC, provisionUC, subUC, planUC, statsUC, contractRepo, auth, logger)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server")
		}
	}()

	// ---- Capture reconciler ----
	reconciler := sched.NewCaptureReconciler(captureUC, contractRepo, cfg.Reconciler.Interval, cfg.Reconciler.StaleAfter, logger)
	go reconciler.Start(ctx)

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
