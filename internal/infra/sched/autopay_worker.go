package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-vpn-billing/internal/infra/metrics"
	"telegram-vpn-billing/internal/infra/redis"
	"telegram-vpn-billing/internal/usecase"
)

const autopayLockKey = "lock:autopay_worker"

// AutopayWorker renews subscriptions from user balance shortly before they
// expire. The window is how far ahead of end_date the sweep reaches.
type AutopayWorker struct {
	interval time.Duration
	window   time.Duration
	subUC    usecase.SubscriptionUseCase
	locker   redis.Locker
	log      *zerolog.Logger
}

func NewAutopayWorker(interval, window time.Duration, subUC usecase.SubscriptionUseCase, locker redis.Locker, logger *zerolog.Logger) *AutopayWorker {
	if window <= 0 {
		window = 24 * time.Hour
	}
	l := logger.With().Str("component", "AutopayWorker").Logger()
	return &AutopayWorker{
		interval: interval,
		window:   window,
		subUC:    subUC,
		locker:   locker,
		log:      &l,
	}
}

func (w *AutopayWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting autopay worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping autopay worker")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *AutopayWorker) tick(ctx context.Context) {
	token, err := w.locker.TryLock(ctx, autopayLockKey, w.interval)
	if err != nil {
		metrics.IncSweepRun("autopay", "skipped")
		return
	}
	defer func() { _ = w.locker.Unlock(ctx, autopayLockKey, token) }()

	n, err := w.subUC.RunAutopay(ctx, w.window)
	if err != nil {
		metrics.IncSweepRun("autopay", "failed")
		w.log.Error().Err(err).Msg("autopay sweep error")
		return
	}
	metrics.IncSweepRun("autopay", "ok")
	if n > 0 {
		metrics.AddAutopayRenewals("renewed", n)
		w.log.Info().Int("count", n).Msg("subscriptions renewed from balance")
	}
}
