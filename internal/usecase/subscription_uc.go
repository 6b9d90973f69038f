// File: internal/usecase/subscription_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-vpn-billing/internal/domain"
	"telegram-vpn-billing/internal/domain/model"
	"telegram-vpn-billing/internal/domain/ports/adapter"
	"telegram-vpn-billing/internal/domain/ports/repository"
)

var _ SubscriptionUseCase = (*subscriptionUC)(nil)

// SubscriptionUseCase owns every subscription mutation. Completed
// subscription_payment transactions create or extend; deposits never touch a
// subscription; sweeps expire and autopay-renew.
type SubscriptionUseCase interface {
	// ApplyCompletedPurchase consumes a completed subscription_payment
	// transaction: creates the subscription or extends it from
	// max(end_date, now). Deposits are rejected with ErrInvalidArgument.
	ApplyCompletedPurchase(ctx context.Context, tenantID, transactionID string) (*model.Subscription, error)

	// ActivateTrial creates a trial subscription once per user.
	ActivateTrial(ctx context.Context, tenantID, userID string) (*model.Subscription, error)

	// Disable is the admin-only terminal-ish transition.
	Disable(ctx context.Context, tenantID, subscriptionID string) error

	Get(ctx context.Context, tenantID, userID string) (*model.Subscription, error)

	// FinishExpired sweeps subscriptions whose end_date passed. Returns the
	// number transitioned.
	FinishExpired(ctx context.Context) (int, error)

	// RunAutopay renews autopay-enabled subscriptions whose end date falls
	// within the warning window, funded from the user's balance.
	// Insufficient balance notifies the user and moves on; it never aborts
	// the sweep.
	RunAutopay(ctx context.Context, within time.Duration) (int, error)

	CountByStatus(ctx context.Context, tenantID string) (map[model.SubscriptionStatus]int, error)
}

type subscriptionUC struct {
	subs         repository.SubscriptionRepository
	users        repository.UserRepository
	transactions repository.TransactionRepository
	settings     repository.TenantSettingsRepository
	ledger       LedgerUseCase
	pricing      PricingUseCase
	notifier     adapter.Notifier
	tm           repository.TransactionManager
	log          *zerolog.Logger
}

func NewSubscriptionUseCase(
	subs repository.SubscriptionRepository,
	users repository.UserRepository,
	transactions repository.TransactionRepository,
	settings repository.TenantSettingsRepository,
	ledger LedgerUseCase,
	pricing PricingUseCase,
	notifier adapter.Notifier,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *subscriptionUC {
	l := logger.With().Str("component", "SubscriptionUC").Logger()
	return &subscriptionUC{
		subs:         subs,
		users:        users,
		transactions: transactions,
		settings:     settings,
		ledger:       ledger,
		pricing:      pricing,
		notifier:     notifier,
		tm:           tm,
		log:          &l,
	}
}

func (u *subscriptionUC) ApplyCompletedPurchase(ctx context.Context, tenantID, transactionID string) (*model.Subscription, error) {
	t, err := u.transactions.FindByID(ctx, repository.NoTX, tenantID, transactionID)
	if err != nil {
		return nil, err
	}
	if t.Type != model.TransactionTypeSubscriptionPayment || t.Status != model.TransactionStatusCompleted {
		return nil, domain.ErrInvalidArgument
	}
	if t.PeriodDays <= 0 {
		return nil, domain.ErrValidation
	}

	var result *model.Subscription
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		now := time.Now()
		sub, err := u.subs.FindByUser(ctx, tx, tenantID, t.UserID)
		if err == domain.ErrNotFound {
			sub = &model.Subscription{
				ID:           uuid.NewString(),
				TenantID:     tenantID,
				UserID:       t.UserID,
				Status:       model.SubscriptionStatusActive,
				StartDate:    now,
				EndDate:      now.AddDate(0, 0, t.PeriodDays),
				TrafficLimit: t.TrafficLimit,
				DeviceLimit:  t.DeviceLimit,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := u.subs.Save(ctx, tx, sub); err != nil {
				return err
			}
			result = sub
			return nil
		}
		if err != nil {
			return err
		}

		if !model.CanTransition(sub.Status, model.SubscriptionStatusActive) {
			return domain.ErrInvalidTransition
		}

		// Renewal extends from the unexpired end date, never resets it.
		base := sub.ExtensionBase(now)
		sub.EndDate = base.AddDate(0, 0, t.PeriodDays)
		if sub.Status != model.SubscriptionStatusActive {
			sub.StartDate = now
			sub.TrafficUsed = 0
		}
		sub.Status = model.SubscriptionStatusActive
		if t.TrafficLimit > 0 {
			sub.TrafficLimit = t.TrafficLimit
		}
		if t.DeviceLimit > 0 {
			sub.DeviceLimit = t.DeviceLimit
		}
		sub.UpdatedAt = now
		if err := u.subs.Save(ctx, tx, sub); err != nil {
			return err
		}
		result = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.log.Info().Str("subscription_id", result.ID).Str("user_id", t.UserID).Time("end_date", result.EndDate).Msg("purchase applied to subscription")
	return result, nil
}

func (u *subscriptionUC) ActivateTrial(ctx context.Context, tenantID, userID string) (*model.Subscription, error) {
	settings, err := u.settings.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if settings.TrialDays <= 0 {
		return nil, domain.ErrValidation
	}

	var sub *model.Subscription
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ok, err := u.users.SetTrialUsed(ctx, tx, tenantID, userID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrTrialAlreadyUsed
		}

		if existing, err := u.subs.FindByUser(ctx, tx, tenantID, userID); err == nil && existing != nil {
			return domain.ErrTrialAlreadyUsed
		} else if err != nil && err != domain.ErrNotFound {
			return err
		}

		now := time.Now()
		sub = &model.Subscription{
			ID:        uuid.NewString(),
			TenantID:  tenantID,
			UserID:    userID,
			Status:    model.SubscriptionStatusTrial,
			StartDate: now,
			EndDate:   now.AddDate(0, 0, settings.TrialDays),
			CreatedAt: now,
			UpdatedAt: now,
		}
		return u.subs.Save(ctx, tx, sub)
	})
	if err != nil {
		return nil, err
	}
	u.log.Info().Str("user_id", userID).Int("trial_days", settings.TrialDays).Msg("trial activated")
	return sub, nil
}

func (u *subscriptionUC) Disable(ctx context.Context, tenantID, subscriptionID string) error {
	sub, err := u.subs.FindByID(ctx, repository.NoTX, tenantID, subscriptionID)
	if err != nil {
		return err
	}
	if !model.CanTransition(sub.Status, model.SubscriptionStatusDisabled) {
		return domain.ErrInvalidTransition
	}
	ok, err := u.subs.UpdateStatusIf(ctx, repository.NoTX, tenantID, subscriptionID,
		model.SubscriptionStatusDisabled, sub.Status)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInvalidTransition
	}
	return nil
}

func (u *subscriptionUC) Get(ctx context.Context, tenantID, userID string) (*model.Subscription, error) {
	sub, err := u.subs.FindByUser(ctx, repository.NoTX, tenantID, userID)
	if err == domain.ErrNotFound {
		return nil, domain.ErrSubscriptionNotFound
	}
	return sub, err
}

func (u *subscriptionUC) FinishExpired(ctx context.Context) (int, error) {
	due, err := u.subs.ListExpired(ctx, repository.NoTX, time.Now(), 200)
	if err != nil {
		if err == domain.ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	n := 0
	for _, sub := range due {
		ok, err := u.subs.UpdateStatusIf(ctx, repository.NoTX, sub.TenantID, sub.ID,
			model.SubscriptionStatusExpired,
			model.SubscriptionStatusActive, model.SubscriptionStatusTrial)
		if err != nil {
			u.log.Error().Err(err).Str("subscription_id", sub.ID).Msg("expiry transition failed")
			continue
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (u *subscriptionUC) RunAutopay(ctx context.Context, within time.Duration) (int, error) {
	due, err := u.subs.ListAutopayDue(ctx, repository.NoTX, within, 200)
	if err != nil {
		if err == domain.ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	renewed := 0
	for _, sub := range due {
		ok, err := u.autopayOne(ctx, sub)
		if err != nil {
			// One failed user never aborts the sweep for the rest.
			u.log.Warn().Err(err).Str("subscription_id", sub.ID).Msg("autopay renewal skipped")
			continue
		}
		if ok {
			renewed++
		}
	}
	return renewed, nil
}

// autopayOne returns true only when it actually renewed; a low-balance
// warning is not a renewal.
func (u *subscriptionUC) autopayOne(ctx context.Context, sub *model.Subscription) (bool, error) {
	settings, err := u.settings.Get(ctx, sub.TenantID)
	if err != nil {
		return false, err
	}
	base, ok := settings.BasePrices[autopayPeriodDays]
	if !ok {
		return false, domain.ErrValidation
	}

	bd, err := u.pricing.PriceFor(ctx, sub.TenantID, sub.UserID, base, autopayPeriodDays, model.PriceComponentServer)
	if err != nil {
		return false, err
	}

	user, err := u.users.FindByID(ctx, repository.NoTX, sub.TenantID, sub.UserID)
	if err != nil {
		return false, err
	}

	if user.Balance < bd.FinalPrice {
		// Expected condition: warn the user, mutate nothing.
		_ = u.notifier.NotifyUser(ctx, user.ExternalID,
			fmt.Sprintf("Subscription renews soon but your balance is short: need %d, have %d. Top up to keep access.", bd.FinalPrice, user.Balance))
		return false, nil
	}

	var t *model.Transaction
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		t = &model.Transaction{
			TenantID:    sub.TenantID,
			UserID:      sub.UserID,
			Type:        model.TransactionTypeSubscriptionPayment,
			Amount:      -bd.FinalPrice,
			Provider:    "balance",
			ExternalRef: "autopay:" + uuid.NewString(),
			PeriodDays:  autopayPeriodDays,
		}
		if _, err := u.ledger.RecordPending(ctx, tx, t); err != nil {
			return err
		}
		_, err := u.ledger.Complete(ctx, tx, sub.TenantID, t.ID)
		return err
	})
	if err != nil {
		return false, err
	}

	if _, err := u.ApplyCompletedPurchase(ctx, sub.TenantID, t.ID); err != nil {
		return false, err
	}
	_ = u.notifier.NotifyUser(ctx, user.ExternalID,
		fmt.Sprintf("Subscription renewed for %d days from your balance.", autopayPeriodDays))
	return true, nil
}

// autopayPeriodDays is the renewal period the autopay sweep buys.
const autopayPeriodDays = 30

func (u *subscriptionUC) CountByStatus(ctx context.Context, tenantID string) (map[model.SubscriptionStatus]int, error) {
	return u.subs.CountByStatus(ctx, repository.NoTX, tenantID)
}
