// File: internal/usecase/referral_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-vpn-billing/internal/domain"
	"telegram-vpn-billing/internal/domain/model"
	"telegram-vpn-billing/internal/domain/ports/repository"
)

var _ ReferralUseCase = (*referralUC)(nil)

// ReferralUseCase pays commissions on qualifying transactions of referred
// users. Exactly one earning per source transaction; the payout is itself a
// ledger transaction, so commissions stay auditable.
type ReferralUseCase interface {
	// RewardFor processes one completed transaction. Safe to call on retry:
	// a duplicate resolves to a no-op via the earning's unique constraint.
	RewardFor(ctx context.Context, tenantID, transactionID string) error

	Earnings(ctx context.Context, tenantID, referrerID string, limit int) ([]*model.ReferralEarning, error)
	TotalEarned(ctx context.Context, tenantID, referrerID string) (int64, error)
}

type referralUC struct {
	earnings     repository.ReferralEarningRepository
	users        repository.UserRepository
	transactions repository.TransactionRepository
	settings     repository.TenantSettingsRepository
	ledger       LedgerUseCase
	tm           repository.TransactionManager
	log          *zerolog.Logger
}

func NewReferralUseCase(
	earnings repository.ReferralEarningRepository,
	users repository.UserRepository,
	transactions repository.TransactionRepository,
	settings repository.TenantSettingsRepository,
	ledger LedgerUseCase,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *referralUC {
	l := logger.With().Str("component", "ReferralUC").Logger()
	return &referralUC{
		earnings:     earnings,
		users:        users,
		transactions: transactions,
		settings:     settings,
		ledger:       ledger,
		tm:           tm,
		log:          &l,
	}
}

func (u *referralUC) RewardFor(ctx context.Context, tenantID, transactionID string) error {
	source, err := u.transactions.FindByID(ctx, repository.NoTX, tenantID, transactionID)
	if err != nil {
		return err
	}
	if source.Status != model.TransactionStatusCompleted {
		return domain.ErrInvalidArgument
	}
	if !qualifiesForReferral(source) {
		return nil
	}

	referee, err := u.users.FindByID(ctx, repository.NoTX, tenantID, source.UserID)
	if err != nil {
		return err
	}
	if referee.ReferredByID == nil {
		return nil
	}

	referrer, err := u.users.FindByID(ctx, repository.NoTX, tenantID, *referee.ReferredByID)
	if err != nil {
		return err
	}

	percent, err := u.commissionPercent(ctx, tenantID, referrer)
	if err != nil {
		return err
	}
	amount := source.Amount
	if amount < 0 {
		amount = -amount
	}
	commission := amount * int64(percent) / 100
	if commission <= 0 {
		return nil
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		reward := &model.Transaction{
			TenantID:    tenantID,
			UserID:      referrer.ID,
			Type:        model.TransactionTypeReferralReward,
			Amount:      commission,
			Provider:    "referral",
			ExternalRef: "referral:" + source.ID,
		}
		if _, err := u.ledger.RecordPending(ctx, tx, reward); err != nil {
			return err
		}

		earning := &model.ReferralEarning{
			ID:                  uuid.NewString(),
			TenantID:            tenantID,
			ReferrerID:          referrer.ID,
			RefereeID:           referee.ID,
			SourceTransactionID: source.ID,
			RewardTransactionID: reward.ID,
			Amount:              commission,
			Percent:             percent,
			CreatedAt:           time.Now(),
		}
		if err := u.earnings.Save(ctx, tx, earning); err != nil {
			return err
		}

		_, err := u.ledger.Complete(ctx, tx, tenantID, reward.ID)
		return err
	})
	if err != nil {
		if err == domain.ErrDuplicateEvent {
			u.log.Debug().Str("transaction_id", transactionID).Msg("referral already rewarded")
			return nil
		}
		return err
	}

	u.log.Info().Str("referrer_id", referrer.ID).Str("source_transaction_id", source.ID).Int64("commission", commission).Msg("referral commission paid")
	return nil
}

func (u *referralUC) commissionPercent(ctx context.Context, tenantID string, referrer *model.User) (int, error) {
	if referrer.ReferralPercent != nil {
		return clampPercent(*referrer.ReferralPercent), nil
	}
	settings, err := u.settings.Get(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	return clampPercent(settings.ReferralPercent), nil
}

func qualifiesForReferral(t *model.Transaction) bool {
	switch t.Type {
	case model.TransactionTypeDeposit, model.TransactionTypeSubscriptionPayment:
		return true
	}
	return false
}

func (u *referralUC) Earnings(ctx context.Context, tenantID, referrerID string, limit int) ([]*model.ReferralEarning, error) {
	return u.earnings.ListByReferrer(ctx, repository.NoTX, tenantID, referrerID, limit)
}

func (u *referralUC) TotalEarned(ctx context.Context, tenantID, referrerID string) (int64, error) {
	return u.earnings.SumByReferrer(ctx, repository.NoTX, tenantID, referrerID)
}
