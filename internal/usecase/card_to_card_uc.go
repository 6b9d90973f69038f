// File: internal/usecase/card_to_card_uc.go
package usecase

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"telegram-vpn-billing/internal/domain"
	"telegram-vpn-billing/internal/domain/model"
	"telegram-vpn-billing/internal/domain/ports/adapter"
	"telegram-vpn-billing/internal/domain/ports/repository"
)

var _ CardToCardUseCase = (*cardToCardUC)(nil)

// ReviewDecision is the reviewer's verdict on a card-to-card payment.
type ReviewDecision string

const (
	ReviewApprove ReviewDecision = "approve"
	ReviewReject  ReviewDecision = "reject"
)

// CardInstructions is returned to the user on initiation.
type CardInstructions struct {
	TrackingNumber string
	CardNumber     string
	CardHolder     string
	Amount         int64
}

// CardToCardUseCase is the human-in-the-loop reconciliation path: the user
// transfers to the tenant's card, attaches a receipt, and an admin approves
// or rejects. Review races resolve to exactly one effective decision via a
// conditional update.
type CardToCardUseCase interface {
	Initiate(ctx context.Context, tenantID, userID string, amount int64, purchase *PurchaseParams) (*CardInstructions, error)
	SubmitReceipt(ctx context.Context, tenantID, trackingNumber, receipt string) error
	Review(ctx context.Context, tenantID, trackingNumber, reviewerID string, decision ReviewDecision) error
	ListPending(ctx context.Context, tenantID string, limit int) ([]*model.CardToCardPayment, error)
}

// PurchaseParams carries what a subscription purchase buys; nil means a plain
// balance deposit.
type PurchaseParams struct {
	PeriodDays   int
	TrafficLimit int64
	DeviceLimit  int
}

type cardToCardUC struct {
	cards    repository.CardToCardRepository
	users    repository.UserRepository
	settings repository.TenantSettingsRepository
	ledger   LedgerUseCase
	subs     SubscriptionUseCase
	referral ReferralUseCase
	pricing  PricingUseCase
	notifier adapter.Notifier
	dispatch Dispatcher
	tm       repository.TransactionManager
	log      *zerolog.Logger
}

func NewCardToCardUseCase(
	cards repository.CardToCardRepository,
	users repository.UserRepository,
	settings repository.TenantSettingsRepository,
	ledger LedgerUseCase,
	subs SubscriptionUseCase,
	referral ReferralUseCase,
	pricing PricingUseCase,
	notifier adapter.Notifier,
	dispatch Dispatcher,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *cardToCardUC {
	l := logger.With().Str("component", "CardToCardUC").Logger()
	return &cardToCardUC{
		cards:    cards,
		users:    users,
		settings: settings,
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

func (u *cardToCardUC) Initiate(ctx context.Context, tenantID, userID string, amount int64, purchase *PurchaseParams) (*CardInstructions, error) {
	if amount <= 0 {
		return nil, domain.ErrValidation
	}
	settings, err := u.settings.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if settings.CardNumber == "" {
		return nil, domain.ErrValidation
	}

	tracking := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		t := &model.Transaction{
			TenantID:    tenantID,
			UserID:      userID,
			Type:        model.TransactionTypeDeposit,
			Amount:      amount,
			Provider:    "card_to_card",
			ExternalRef: tracking,
		}
		if purchase != nil {
			t.Type = model.TransactionTypeSubscriptionPayment
			t.PeriodDays = purchase.PeriodDays
			t.TrafficLimit = purchase.TrafficLimit
			t.DeviceLimit = purchase.DeviceLimit
		}
		if _, err := u.ledger.RecordPending(ctx, tx, t); err != nil {
			return err
		}

		card := &model.CardToCardPayment{
			ID:             uuid.NewString(),
			TenantID:       tenantID,
			TransactionID:  t.ID,
			UserID:         userID,
			TrackingNumber: tracking,
			Amount:         amount,
			Status:         model.CardToCardStatusPending,
			CreatedAt:      time.Now(),
		}
		return u.cards.Save(ctx, tx, card)
	})
	if err != nil {
		return nil, err
	}

	u.log.Info().Str("tracking_number", tracking).Str("user_id", userID).Int64("amount", amount).Msg("card-to-card payment initiated")
	return &CardInstructions{
		TrackingNumber: tracking,
		CardNumber:     settings.CardNumber,
		CardHolder:     settings.CardHolder,
		Amount:         amount,
	}, nil
}

func (u *cardToCardUC) SubmitReceipt(ctx context.Context, tenantID, trackingNumber, receipt string) error {
	card, err := u.cards.FindByTrackingNumber(ctx, repository.NoTX, tenantID, trackingNumber)
	if err != nil {
		return err
	}
	if card.Decided() {
		return domain.ErrAlreadyReviewed
	}
	// Evidence only; status stays pending until a reviewer acts.
	return u.cards.AttachReceipt(ctx, repository.NoTX, tenantID, card.ID, receipt)
}

func (u *cardToCardUC) Review(ctx context.Context, tenantID, trackingNumber, reviewerID string, decision ReviewDecision) error {
	if decision != ReviewApprove && decision != ReviewReject {
		return domain.ErrValidation
	}
	card, err := u.cards.FindByTrackingNumber(ctx, repository.NoTX, tenantID, trackingNumber)
	if err != nil {
		return err
	}

	status := model.CardToCardStatusApproved
	if decision == ReviewReject {
		status = model.CardToCardStatusRejected
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		// Two admins racing here: the conditional update lets exactly one
		// decision through.
		moved, err := u.cards.DecideIfPending(ctx, tx, tenantID, card.ID, status, reviewerID, time.Now())
		if err != nil {
			return err
		}
		if !moved {
			return domain.ErrAlreadyReviewed
		}

		if decision == ReviewApprove {
			_, err = u.ledger.Complete(ctx, tx, tenantID, card.TransactionID)
			return err
		}
		return u.ledger.Fail(ctx, tx, tenantID, card.TransactionID, "rejected by reviewer")
	})
	if err != nil {
		return err
	}

	u.log.Info().Str("tracking_number", trackingNumber).Str("reviewer_id", reviewerID).Str("decision", string(decision)).Msg("card-to-card payment reviewed")

	user, uerr := u.users.FindByID(ctx, repository.NoTX, tenantID, card.UserID)
	if decision == ReviewReject {
		if uerr == nil {
			_ = u.notifier.NotifyUser(ctx, user.ExternalID,
				fmt.Sprintf("Payment %s was rejected. Contact support if you believe this is a mistake.", trackingNumber))
		}
		return nil
	}

	// Same downstream effects as a provider webhook completion.
	transactionID := card.TransactionID
	_ = u.dispatch.Submit(func(ctx context.Context) error {
		t, err := u.ledger.FindByExternalRef(ctx, tenantID, "card_to_card", trackingNumber)
		if err != nil {
			return err
		}
		if t.Type == model.TransactionTypeSubscriptionPayment {
			if _, err := u.subs.ApplyCompletedPurchase(ctx, tenantID, transactionID); err != nil {
				return err
			}
		}
		if err := u.pricing.ReevaluatePromoGroup(ctx, repository.NoTX, tenantID, card.UserID); err != nil {
			u.log.Error().Err(err).Str("user_id", card.UserID).Msg("promo group re-evaluation failed")
		}
		return u.referral.RewardFor(ctx, tenantID, transactionID)
	})
	if uerr == nil {
		_ = u.notifier.NotifyUser(ctx, user.ExternalID,
			fmt.Sprintf("Payment %s was approved. Thank you!", trackingNumber))
	}
	return nil
}

func (u *cardToCardUC) ListPending(ctx context.Context, tenantID string, limit int) ([]*model.CardToCardPayment, error) {
	return u.cards.ListPending(ctx, repository.NoTX, tenantID, limit)
}
