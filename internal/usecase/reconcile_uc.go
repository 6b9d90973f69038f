// File: internal/usecase/reconcile_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-vpn-billing/internal/domain"
	"telegram-vpn-billing/internal/domain/model"
	"telegram-vpn-billing/internal/domain/ports/adapter"
	"telegram-vpn-billing/internal/domain/ports/repository"
	"telegram-vpn-billing/internal/infra/logging"
)

var _ ReconcileUseCase = (*reconcileUC)(nil)

// ProviderRegistry resolves a payment adapter by provider id. The reconciler
// never branches on provider identity beyond this lookup.
type ProviderRegistry interface {
	Get(name string) (adapter.PaymentProvider, bool)
}

// Dispatcher queues post-completion work (subscription activation, referral
// payout, promo group re-evaluation) off the webhook request path.
type Dispatcher interface {
	Submit(task func(ctx context.Context) error) error
}

// WebhookAck is what the transport layer translates into an HTTP status and
// metrics labels.
type WebhookAck struct {
	// Duplicate marks an idempotent replay: acknowledged, nothing mutated.
	Duplicate bool

	// Completed is set when this delivery finalized a payment.
	Completed bool
	Outcome   string
	Provider  string
	Amount    int64
}

// ReconcileUseCase turns inbound provider callbacks into ledger mutations.
// Order is the correctness property: signature check, then idempotency check,
// then a conditional mutation — replays and out-of-order deliveries can never
// double-credit.
type ReconcileUseCase interface {
	HandleWebhook(ctx context.Context, tenantID, provider string, rawBody []byte, headers map[string]string) (*WebhookAck, error)
}

type reconcileUC struct {
	registry ProviderRegistry
	attempts repository.PaymentAttemptRepository
	ledger   LedgerUseCase
	subs     SubscriptionUseCase
	referral ReferralUseCase
	pricing  PricingUseCase
	notifier adapter.Notifier
	dispatch Dispatcher
	tm       repository.TransactionManager
	log      *zerolog.Logger
}

func NewReconcileUseCase(
	registry ProviderRegistry,
	attempts repository.PaymentAttemptRepository,
	ledger LedgerUseCase,
	subs SubscriptionUseCase,
	referral ReferralUseCase,
	pricing PricingUseCase,
	notifier adapter.Notifier,
	dispatch Dispatcher,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *reconcileUC {
	l := logger.With().Str("component", "ReconcileUC").Logger()
	return &reconcileUC{
		registry: registry,
		attempts: attempts,
		ledger:   ledger,
		subs:     subs,
		referral: referral,
		pricing:  pricing,
		notifier: notifier,
		dispatch: dispatch,
		tm:       tm,
		log:      &l,
	}
}

func (u *reconcileUC) HandleWebhook(ctx context.Context, tenantID, provider string, rawBody []byte, headers map[string]string) (*WebhookAck, error) {
	defer logging.TraceDuration(u.log, "ReconcileUC.HandleWebhook")()

	prov, ok := u.registry.Get(provider)
	if !ok {
		return nil, domain.ErrValidation
	}

	// 1. Signature first: an unverified payload touches nothing.
	event, err := prov.ParseCallback(ctx, tenantID, rawBody, headers)
	if err != nil {
		if err == domain.ErrInvalidSignature {
			u.log.Warn().Str("provider", provider).Str("tenant_id", tenantID).Msg("webhook signature verification failed")
			_ = u.notifier.AlertOperator(ctx, fmt.Sprintf("invalid %s webhook signature for tenant %s", provider, tenantID))
		}
		return nil, err
	}

	// 2. The attempt must pre-exist; a callback never conjures a transaction.
	attempt, err := u.attempts.FindByProviderRef(ctx, repository.NoTX, tenantID, provider, event.ProviderRef)
	if err != nil {
		if err == domain.ErrNotFound {
			u.log.Warn().Str("provider", provider).Str("provider_ref", event.ProviderRef).Msg("webhook for unknown provider ref")
			return nil, domain.ErrUnknownProviderRef
		}
		return nil, err
	}

	// 3. Terminal transaction means duplicate delivery: ack, no mutation.
	t, err := u.ledger.FindByExternalRef(ctx, tenantID, provider, event.ProviderRef)
	if err != nil {
		return nil, err
	}
	if t.IsTerminal() {
		u.log.Debug().Str("transaction_id", t.ID).Str("provider", provider).Msg("duplicate webhook delivery ignored")
		return &WebhookAck{Duplicate: true, Provider: provider}, nil
	}

	// Cross-check the amount the provider reports against the amount we
	// opened. A mismatch is never reconciled silently: the row stays pending
	// for the operator, and the provider keeps retrying a non-200.
	if event.Amount > 0 && event.Amount != t.Amount {
		u.log.Warn().Str("transaction_id", t.ID).Str("provider", provider).
			Int64("expected", t.Amount).Int64("reported", event.Amount).
			Msg("webhook amount mismatch")
		_ = u.notifier.AlertOperator(ctx, fmt.Sprintf(
			"amount mismatch on %s payment %s: expected %d, provider reported %d",
			provider, t.ID, t.Amount, event.Amount))
		return nil, domain.ErrValidation
	}

	// 4. Conditional transition of attempt + transaction in one DB tx.
	var completed bool
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		now := time.Now()
		switch event.Outcome {
		case adapter.CallbackOutcomePaid:
			moved, err := u.attempts.UpdateStatusIfPending(ctx, tx, tenantID, attempt.ID, model.PaymentAttemptStatusPaid, &now)
			if err != nil {
				return err
			}
			if !moved {
				return domain.ErrDuplicateEvent
			}
			if _, err := u.ledger.Complete(ctx, tx, tenantID, t.ID); err != nil {
				return err
			}
			completed = true
			return nil
		case adapter.CallbackOutcomeFailed, adapter.CallbackOutcomeExpired:
			status := model.PaymentAttemptStatusFailed
			if event.Outcome == adapter.CallbackOutcomeExpired {
				status = model.PaymentAttemptStatusExpired
			}
			moved, err := u.attempts.UpdateStatusIfPending(ctx, tx, tenantID, attempt.ID, status, nil)
			if err != nil {
				return err
			}
			if !moved {
				return domain.ErrDuplicateEvent
			}
			return u.ledger.Fail(ctx, tx, tenantID, t.ID, string(event.Outcome))
		}
		return domain.ErrValidation
	})
	if err != nil {
		if err == domain.ErrDuplicateEvent || err == domain.ErrAlreadyTerminal {
			// Lost a race against another delivery of the same event.
			return &WebhookAck{Duplicate: true, Provider: provider}, nil
		}
		return nil, err
	}

	if completed {
		u.enqueueDownstream(tenantID, t)
	}
	return &WebhookAck{Completed: completed, Outcome: string(event.Outcome), Provider: provider, Amount: t.Amount}, nil
}

// enqueueDownstream schedules the effects of a completed transaction:
// subscription activation/extension, promo group upgrade, referral payout.
func (u *reconcileUC) enqueueDownstream(tenantID string, t *model.Transaction) {
	transactionID, userID := t.ID, t.UserID
	isPurchase := t.Type == model.TransactionTypeSubscriptionPayment

	err := u.dispatch.Submit(func(ctx context.Context) error {
		if isPurchase {
			if _, err := u.subs.ApplyCompletedPurchase(ctx, tenantID, transactionID); err != nil {
				return fmt.Errorf("apply purchase %s: %w", transactionID, err)
			}
		}
		if err := u.pricing.ReevaluatePromoGroup(ctx, repository.NoTX, tenantID, userID); err != nil {
			u.log.Error().Err(err).Str("user_id", userID).Msg("promo group re-evaluation failed")
		}
		if err := u.referral.RewardFor(ctx, tenantID, transactionID); err != nil {
			return fmt.Errorf("referral reward %s: %w", transactionID, err)
		}
		return nil
	})
	if err != nil {
		// The ledger is already consistent; sweeps pick up what the queue
		// dropped.
		u.log.Error().Err(err).Str("transaction_id", transactionID).Msg("downstream dispatch failed")
	}
}
