package sched

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-vpn-billing/internal/domain"
	"telegram-vpn-billing/internal/domain/model"
	"telegram-vpn-billing/internal/domain/ports/repository"
	"telegram-vpn-billing/internal/infra/metrics"
	"telegram-vpn-billing/internal/infra/redis"
	"telegram-vpn-billing/internal/usecase"
)

const (
	staleLockKey   = "lock:stale_pending_worker"
	staleBatchSize = 200
)

// StalePendingWorker fails pending transactions whose webhook never arrived
// within the TTL and expires their payment attempts. A webhook that shows up
// later loses the conditional update and is acknowledged as a duplicate.
type StalePendingWorker struct {
	interval     time.Duration
	ttl          time.Duration
	transactions repository.TransactionRepository
	attempts     repository.PaymentAttemptRepository
	ledger       usecase.LedgerUseCase
	tm           repository.TransactionManager
	locker       redis.Locker
	log          *zerolog.Logger
}

func NewStalePendingWorker(
	interval, ttl time.Duration,
	transactions repository.TransactionRepository,
	attempts repository.PaymentAttemptRepository,
	ledger usecase.LedgerUseCase,
	tm repository.TransactionManager,
	locker redis.Locker,
	logger *zerolog.Logger,
) *StalePendingWorker {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	l := logger.With().Str("component", "StalePendingWorker").Logger()
	return &StalePendingWorker{
		interval:     interval,
		ttl:          ttl,
		transactions: transactions,
		attempts:     attempts,
		ledger:       ledger,
		tm:           tm,
		locker:       locker,
		log:          &l,
	}
}

func (w *StalePendingWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting stale-pending worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping stale-pending worker")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *StalePendingWorker) tick(ctx context.Context) {
	token, err := w.locker.TryLock(ctx, staleLockKey, w.interval)
	if err != nil {
		metrics.IncSweepRun("stale_pending", "skipped")
		return
	}
	defer func() { _ = w.locker.Unlock(ctx, staleLockKey, token) }()

	n, err := w.sweep(ctx)
	if err != nil {
		metrics.IncSweepRun("stale_pending", "failed")
		w.log.Error().Err(err).Msg("stale-pending sweep error")
		return
	}
	metrics.IncSweepRun("stale_pending", "ok")
	if n > 0 {
		metrics.AddStalePaymentsSwept(n)
		w.log.Info().Int("count", n).Msg("stale pending transactions failed")
	}
}

func (w *StalePendingWorker) sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-w.ttl)
	stale, err := w.transactions.ListPendingOlderThan(ctx, repository.NoTX, cutoff, staleBatchSize)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, t := range stale {
		err := w.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			if err := w.ledger.Fail(ctx, tx, t.TenantID, t.ID, "expired"); err != nil {
				return err
			}
			attempts, err := w.attempts.FindByTransaction(ctx, tx, t.TenantID, t.ID)
			if err != nil {
				return err
			}
			for _, a := range attempts {
				if _, err := w.attempts.UpdateStatusIfPending(ctx, tx, t.TenantID, a.ID, model.PaymentAttemptStatusExpired, nil); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			if err == domain.ErrAlreadyTerminal {
				// A webhook won the race between the list and the sweep.
				continue
			}
			w.log.Error().Err(err).Str("transaction_id", t.ID).Msg("failed to sweep stale transaction")
			continue
		}
		swept++
	}
	return swept, nil
}
