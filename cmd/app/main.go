// File: cmd/app/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telegram-vpn-billing/internal/config"
	"telegram-vpn-billing/internal/domain/ports/repository"
	pg "telegram-vpn-billing/internal/infra/db/postgres"
	"telegram-vpn-billing/internal/infra/logging"
	"telegram-vpn-billing/internal/infra/metrics"
	"telegram-vpn-billing/internal/infra/payment"
	red "telegram-vpn-billing/internal/infra/redis"
	"telegram-vpn-billing/internal/infra/sched"
	tele "telegram-vpn-billing/internal/infra/telegram"
	"telegram-vpn-billing/internal/infra/web"
	"telegram-vpn-billing/internal/infra/worker"
	"telegram-vpn-billing/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	transactionRepo := pg.NewTransactionRepo(pool)
	userRepo := pg.NewUserRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	attemptRepo := pg.NewPaymentAttemptRepo(pool)
	groupRepo := pg.NewPromoGroupRepo(pool)
	codeRepo := pg.NewPromoCodeRepo(pool)
	offerRepo := pg.NewDiscountOfferRepo(pool)
	earningRepo := pg.NewReferralEarningRepo(pool)
	cardRepo := pg.NewCardToCardRepo(pool)
	tenantRepo := pg.NewTenantRepo(pool)
	settingsRepo := red.NewSettingsCache(redisClient, pg.NewTenantSettingsRepo(pool), cfg.Redis.SettingsTTL, logger)

	tenants, err := tenantRepo.ListActive(ctx, repository.NoTX)
	if err != nil {
		logger.Fatal().Err(err).Msg("tenant lookup failed")
	}
	logger.Info().Int("count", len(tenants)).Msg("active tenants loaded")

	// ---- Notifier ----
	notifier, err := tele.NewBotNotifier(&cfg.Bot, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("telegram bot init failed")
	}

	// ---- Payment providers ----
	httpClient := payment.NewHTTPClient(logger)
	creds := payment.NewSettingsCredentialSource(settingsRepo)
	registry := payment.NewRegistry(
		payment.NewYooKassa(httpClient, creds),
		payment.NewYooMoney(creds),
		payment.NewCryptoBot(httpClient, creds),
		payment.NewTelegramStars(creds),
		payment.NewRobokassa(creds),
		payment.NewFreekassa(creds),
		payment.NewWata(httpClient, creds),
		payment.NewHeleket(httpClient, creds),
		payment.NewMulenPay(httpClient, creds),
	)

	// ---- Dispatcher ----
	pool2 := worker.NewPool(cfg.Billing.Workers, logger)
	pool2.Start(ctx)
	defer pool2.Stop()

	// ---- Use cases ----
	ledgerUC := usecase.NewLedgerUseCase(transactionRepo, userRepo, logger)
	pricingUC := usecase.NewPricingUseCase(userRepo, groupRepo, offerRepo, settingsRepo, logger)
	referralUC := usecase.NewReferralUseCase(earningRepo, userRepo, transactionRepo, settingsRepo, ledgerUC, tm, logger)
	subUC := usecase.NewSubscriptionUseCase(subRepo, userRepo, transactionRepo, settingsRepo, ledgerUC, pricingUC, notifier, tm, logger)
	promoUC := usecase.NewPromoUseCase(codeRepo, userRepo, ledgerUC, tm, logger)
	reconcileUC := usecase.NewReconcileUseCase(registry, attemptRepo, ledgerUC, subUC, referralUC, pricingUC, notifier, pool2, tm, logger)
	purchaseUC := usecase.NewPurchaseUseCase(registry, attemptRepo, settingsRepo, ledgerUC, pricingUC, subUC, referralUC, pool2, tm, cfg.Billing.Currency, cfg.Web.PublicBaseURL, logger)
	cardUC := usecase.NewCardToCardUseCase(cardRepo, userRepo, settingsRepo, ledgerUC, subUC, referralUC, pricingUC, notifier, pool2, tm, logger)

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Web.JWTSecret, 30*time.Minute)
	server := web.NewServer(reconcileUC, purchaseUC, cardUC, promoUC, subUC, ledgerUC, auth, cfg.Web.Port, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	// ---- Background workers ----
	expiry := sched.NewExpiryWorker(cfg.Scheduler.ExpiryInterval, subUC, locker, logger)
	autopay := sched.NewAutopayWorker(cfg.Scheduler.AutopayInterval, cfg.Scheduler.AutopayWindow, subUC, locker, logger)
	sweep := sched.NewStalePendingWorker(cfg.Scheduler.SweepInterval, cfg.Billing.StalePendingTTL, transactionRepo, attemptRepo, ledgerUC, tm, locker, logger)
	go func() { _ = expiry.Run(ctx) }()
	go func() { _ = autopay.Run(ctx) }()
	go func() { _ = sweep.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
}
