// File: internal/usecase/purchase_uc.go
package usecase

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-vpn-billing/internal/domain"
	"telegram-vpn-billing/internal/domain/model"
	"telegram-vpn-billing/internal/domain/ports/adapter"
	"telegram-vpn-billing/internal/domain/ports/repository"
	"telegram-vpn-billing/internal/infra/logging"

	"github.com/google/uuid"
)

var _ PurchaseUseCase = (*purchaseUC)(nil)

// Addons are the optional extras on top of the base period.
type Addons struct {
	TrafficGB    int64
	ExtraDevices int
}

// Quote is the full itemized price for one purchase.
type Quote struct {
	Server     *PriceBreakdown
	Traffic    *PriceBreakdown
	Device     *PriceBreakdown
	Total      int64
	PeriodDays int
	Addons     Addons
}

// PaymentHandle is what the storefront renders after initiation.
type PaymentHandle struct {
	TransactionID string
	Provider      string
	PayURL        string
	Instructions  string

	// Completed is set on the balance path, which settles synchronously.
	Completed bool
}

// PurchaseUseCase is the user-initiated entry into the payment flow: price a
// purchase, then open a payment with a provider or settle it from balance.
type PurchaseUseCase interface {
	Quote(ctx context.Context, tenantID, userID string, periodDays int, addons Addons) (*Quote, error)
	InitiatePurchase(ctx context.Context, tenantID, userID, provider string, q *Quote) (*PaymentHandle, error)
	InitiateDeposit(ctx context.Context, tenantID, userID, provider string, amount int64) (*PaymentHandle, error)
}

type purchaseUC struct {
	registry  ProviderRegistry
	attempts  repository.PaymentAttemptRepository
	settings  repository.TenantSettingsRepository
	ledger    LedgerUseCase
	pricing   PricingUseCase
	subs      SubscriptionUseCase
	referral  ReferralUseCase
	dispatch  Dispatcher
	tm        repository.TransactionManager
	currency  string
	returnURL string
	log       *zerolog.Logger
}

func NewPurchaseUseCase(
	registry ProviderRegistry,
	attempts repository.PaymentAttemptRepository,
	settings repository.TenantSettingsRepository,
	ledger LedgerUseCase,
	pricing PricingUseCase,
	subs SubscriptionUseCase,
	referral ReferralUseCase,
	dispatch Dispatcher,
	tm repository.TransactionManager,
	currency string,
	returnURL string,
	logger *zerolog.Logger,
) *purchaseUC {
	if currency == "" {
		currency = "RUB"
	}
	l := logger.With().Str("component", "PurchaseUC").Logger()
	return &purchaseUC{
		registry:  registry,
		attempts:  attempts,
		settings:  settings,
		ledger:    ledger,
		pricing:   pricing,
		subs:      subs,
		referral:  referral,
		dispatch:  dispatch,
		tm:        tm,
		currency:  currency,
		returnURL: returnURL,
		log:       &l,
	}
}

func (u *purchaseUC) Quote(ctx context.Context, tenantID, userID string, periodDays int, addons Addons) (*Quote, error) {
	settings, err := u.settings.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	base, ok := settings.BasePrices[periodDays]
	if !ok {
		return nil, domain.ErrValidation
	}

	q := &Quote{PeriodDays: periodDays, Addons: addons}

	q.Server, err = u.pricing.PriceFor(ctx, tenantID, userID, base, periodDays, model.PriceComponentServer)
	if err != nil {
		return nil, err
	}
	q.Total = q.Server.FinalPrice

	if addons.TrafficGB > 0 {
		q.Traffic, err = u.pricing.PriceFor(ctx, tenantID, userID, settings.TrafficGBPrice*addons.TrafficGB, periodDays, model.PriceComponentTraffic)
		if err != nil {
			return nil, err
		}
		q.Total += q.Traffic.FinalPrice
	}
	if addons.ExtraDevices > 0 {
		q.Device, err = u.pricing.PriceFor(ctx, tenantID, userID, settings.DevicePrice*int64(addons.ExtraDevices), periodDays, model.PriceComponentDevice)
		if err != nil {
			return nil, err
		}
		q.Total += q.Device.FinalPrice
	}
	return q, nil
}

func (u *purchaseUC) InitiatePurchase(ctx context.Context, tenantID, userID, provider string, q *Quote) (*PaymentHandle, error) {
	defer logging.TraceDuration(u.log, "PurchaseUC.InitiatePurchase")()

	if q == nil || q.Total <= 0 || q.PeriodDays <= 0 {
		return nil, domain.ErrValidation
	}

	t := &model.Transaction{
		TenantID:     tenantID,
		UserID:       userID,
		Type:         model.TransactionTypeSubscriptionPayment,
		Amount:       q.Total,
		Provider:     provider,
		PeriodDays:   q.PeriodDays,
		TrafficLimit: q.Addons.TrafficGB << 30, // GB to bytes
		DeviceLimit:  q.Addons.ExtraDevices,
	}

	if provider == "balance" {
		return u.settleFromBalance(ctx, t)
	}
	return u.openWithProvider(ctx, t)
}

func (u *purchaseUC) InitiateDeposit(ctx context.Context, tenantID, userID, provider string, amount int64) (*PaymentHandle, error) {
	if amount <= 0 {
		return nil, domain.ErrValidation
	}
	if provider == "balance" {
		return nil, domain.ErrValidation
	}
	t := &model.Transaction{
		TenantID: tenantID,
		UserID:   userID,
		Type:     model.TransactionTypeDeposit,
		Amount:   amount,
		Provider: provider,
	}
	return u.openWithProvider(ctx, t)
}

// settleFromBalance debits the balance and completes synchronously. The
// debit guard inside the ledger rejects overdrafts and rolls everything back.
func (u *purchaseUC) settleFromBalance(ctx context.Context, t *model.Transaction) (*PaymentHandle, error) {
	t.Amount = -t.Amount
	t.ExternalRef = "balance:" + uuid.NewString()

	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if _, err := u.ledger.RecordPending(ctx, tx, t); err != nil {
			return err
		}
		_, err := u.ledger.Complete(ctx, tx, t.TenantID, t.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	tenantID, transactionID, userID := t.TenantID, t.ID, t.UserID
	_ = u.dispatch.Submit(func(ctx context.Context) error {
		if _, err := u.subs.ApplyCompletedPurchase(ctx, tenantID, transactionID); err != nil {
			return err
		}
		if err := u.pricing.ReevaluatePromoGroup(ctx, repository.NoTX, tenantID, userID); err != nil {
			u.log.Error().Err(err).Str("user_id", userID).Msg("promo group re-evaluation failed")
		}
		return u.referral.RewardFor(ctx, tenantID, transactionID)
	})

	u.log.Info().Str("transaction_id", t.ID).Int64("amount", t.Amount).Msg("purchase settled from balance")
	return &PaymentHandle{TransactionID: t.ID, Provider: "balance", Completed: true}, nil
}

// openWithProvider creates the provider-side payment first, then records the
// pending transaction and attempt under the provider's reference.
func (u *purchaseUC) openWithProvider(ctx context.Context, t *model.Transaction) (*PaymentHandle, error) {
	prov, ok := u.registry.Get(t.Provider)
	if !ok {
		return nil, domain.ErrValidation
	}

	// The transaction id is minted here so the provider can carry it in its
	// own metadata before the ledger row exists.
	t.ID = uuid.NewString()
	meta := map[string]string{
		"type":           string(t.Type),
		"period_days":    strconv.Itoa(t.PeriodDays),
		"transaction_id": t.ID,
	}
	if u.returnURL != "" {
		meta["return_url"] = u.returnURL
	}

	res, err := prov.CreatePayment(ctx, adapter.CreatePaymentRequest{
		TenantID: t.TenantID,
		UserID:   t.UserID,
		Amount:   t.Amount,
		Currency: u.currency,
		Metadata: meta,
	})
	if err != nil {
		return nil, err
	}

	t.ExternalRef = res.ProviderRef
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if _, err := u.ledger.RecordPending(ctx, tx, t); err != nil {
			return err
		}
		attempt := &model.PaymentAttempt{
			ID:            uuid.NewString(),
			TenantID:      t.TenantID,
			TransactionID: t.ID,
			Provider:      t.Provider,
			ProviderRef:   res.ProviderRef,
			PayURL:        res.PayURL,
			Status:        model.PaymentAttemptStatusPending,
		}
		return u.attempts.Save(ctx, tx, attempt)
	})
	if err != nil {
		return nil, err
	}

	u.log.Info().Str("transaction_id", t.ID).Str("provider", t.Provider).Str("provider_ref", res.ProviderRef).Msg("payment opened with provider")
	return &PaymentHandle{
		TransactionID: t.ID,
		Provider:      t.Provider,
		PayURL:        res.PayURL,
		Instructions:  res.Instructions,
	}, nil
}
