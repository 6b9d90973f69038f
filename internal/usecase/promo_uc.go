// File: internal/usecase/promo_uc.go
package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-vpn-billing/internal/domain"
	"telegram-vpn-billing/internal/domain/model"
	"telegram-vpn-billing/internal/domain/ports/repository"
)

var _ PromoUseCase = (*promoUC)(nil)

// PromoUseCase redeems promo codes. The max_uses cap is enforced by a
// conditional increment and the one-use-per-user rule by a unique constraint,
// so two racing redemptions resolve in the database, not in process.
type PromoUseCase interface {
	Redeem(ctx context.Context, tenantID, userID, code string) (*model.PromoCode, error)
}

type promoUC struct {
	codes  repository.PromoCodeRepository
	users  repository.UserRepository
	ledger LedgerUseCase
	tm     repository.TransactionManager
	log    *zerolog.Logger
}

func NewPromoUseCase(
	codes repository.PromoCodeRepository,
	users repository.UserRepository,
	ledger LedgerUseCase,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *promoUC {
	l := logger.With().Str("component", "PromoUC").Logger()
	return &promoUC{codes: codes, users: users, ledger: ledger, tm: tm, log: &l}
}

func (u *promoUC) Redeem(ctx context.Context, tenantID, userID, rawCode string) (*model.PromoCode, error) {
	code := strings.ToUpper(strings.TrimSpace(rawCode))
	if code == "" {
		return nil, domain.ErrValidation
	}

	var redeemed *model.PromoCode
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		pc, err := u.codes.FindByCode(ctx, tx, tenantID, code)
		if err != nil {
			return err
		}
		if pc.ExpiresAt != nil && pc.ExpiresAt.Before(time.Now()) {
			return domain.ErrPromoCodeExhausted
		}

		ok, err := u.codes.IncrementUsesIfAvailable(ctx, tx, tenantID, pc.ID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrPromoCodeExhausted
		}

		// Unique (code_id, user_id) rejects a second redemption by the same
		// user and rolls back the increment above.
		use := &model.PromoCodeUse{
			ID:        uuid.NewString(),
			TenantID:  tenantID,
			CodeID:    pc.ID,
			UserID:    userID,
			CreatedAt: time.Now(),
		}
		if err := u.codes.SaveUse(ctx, tx, use); err != nil {
			return err
		}

		if pc.BalanceBonus > 0 {
			t := &model.Transaction{
				TenantID:    tenantID,
				UserID:      userID,
				Type:        model.TransactionTypeDeposit,
				Amount:      pc.BalanceBonus,
				Provider:    "promo",
				ExternalRef: "promo:" + use.ID,
			}
			if _, err := u.ledger.RecordPending(ctx, tx, t); err != nil {
				return err
			}
			if _, err := u.ledger.Complete(ctx, tx, tenantID, t.ID); err != nil {
				return err
			}
		}

		if pc.GroupID != nil {
			if err := u.users.SetPromoGroup(ctx, tx, tenantID, userID, *pc.GroupID); err != nil {
				return err
			}
		}

		redeemed = pc
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.log.Info().Str("user_id", userID).Str("code", code).Msg("promo code redeemed")
	return redeemed, nil
}
