package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-vpn-billing/internal/infra/metrics"
	"telegram-vpn-billing/internal/infra/redis"
	"telegram-vpn-billing/internal/usecase"
)

const expiryLockKey = "lock:expiry_worker"

// ExpiryWorker periodically finishes expired subscriptions via the use case.
type ExpiryWorker struct {
	interval time.Duration
	subUC    usecase.SubscriptionUseCase
	locker   redis.Locker
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, subUC usecase.SubscriptionUseCase, locker redis.Locker, logger *zerolog.Logger) *ExpiryWorker {
	l := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval: interval,
		subUC:    subUC,
		locker:   locker,
		log:      &l,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *ExpiryWorker) tick(ctx context.Context) {
	token, err := w.locker.TryLock(ctx, expiryLockKey, w.interval)
	if err != nil {
		// Another instance holds the sweep.
		metrics.IncSweepRun("expiry", "skipped")
		return
	}
	defer func() { _ = w.locker.Unlock(ctx, expiryLockKey, token) }()

	n, err := w.subUC.FinishExpired(ctx)
	if err != nil {
		metrics.IncSweepRun("expiry", "failed")
		w.log.Error().Err(err).Msg("expiry worker error")
		return
	}
	metrics.IncSweepRun("expiry", "ok")
	if n > 0 {
		metrics.IncSubscriptionsExpired(n)
		w.log.Info().Int("count", n).Msg("expired subscriptions finished")
	}
}
