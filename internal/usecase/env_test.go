//go:build !integration

package usecase_test

import (
	"context"
	"time"

	"telegram-vpn-billing/internal/domain/model"
	"telegram-vpn-billing/internal/usecase"
)

// billingEnv wires the real use cases over in-memory mocks, the same shape
// main() builds over postgres and redis.
type billingEnv struct {
	transactions *MockTransactionRepo
	users        *MockUserRepo
	subs         *MockSubscriptionRepo
	attempts     *MockPaymentAttemptRepo
	groups       *MockPromoGroupRepo
	codes        *MockPromoCodeRepo
	offers       *MockDiscountOfferRepo
	earnings     *MockReferralEarningRepo
	cards        *MockCardToCardRepo
	settings     *MockSettingsRepo
	notifier     *MockNotifier
	provider     *MockProvider
	registry     *MockRegistry
	dispatch     *syncDispatcher
	tm           *MockTxManager

	ledger    usecase.LedgerUseCase
	pricing   usecase.PricingUseCase
	referral  usecase.ReferralUseCase
	subUC     usecase.SubscriptionUseCase
	promo     usecase.PromoUseCase
	reconcile usecase.ReconcileUseCase
	purchase  usecase.PurchaseUseCase
	card      usecase.CardToCardUseCase
}

func newBillingEnv() *billingEnv {
	e := &billingEnv{
		transactions: NewMockTransactionRepo(),
		users:        NewMockUserRepo(),
		subs:         NewMockSubscriptionRepo(),
		attempts:     NewMockPaymentAttemptRepo(),
		groups:       NewMockPromoGroupRepo(),
		codes:        NewMockPromoCodeRepo(),
		offers:       NewMockDiscountOfferRepo(),
		earnings:     NewMockReferralEarningRepo(),
		cards:        NewMockCardToCardRepo(),
		settings:     NewMockSettingsRepo(),
		notifier:     &MockNotifier{},
		provider:     &MockProvider{},
		dispatch:     &syncDispatcher{},
		tm:           NewMockTxManager(),
	}
	e.registry = NewMockRegistry(e.provider)
	logger := newTestLogger()

	e.ledger = usecase.NewLedgerUseCase(e.transactions, e.users, logger)
	e.pricing = usecase.NewPricingUseCase(e.users, e.groups, e.offers, e.settings, logger)
	e.referral = usecase.NewReferralUseCase(e.earnings, e.users, e.transactions, e.settings, e.ledger, e.tm, logger)
	e.subUC = usecase.NewSubscriptionUseCase(e.subs, e.users, e.transactions, e.settings, e.ledger, e.pricing, e.notifier, e.tm, logger)
	e.promo = usecase.NewPromoUseCase(e.codes, e.users, e.ledger, e.tm, logger)
	e.reconcile = usecase.NewReconcileUseCase(e.registry, e.attempts, e.ledger, e.subUC, e.referral, e.pricing, e.notifier, e.dispatch, e.tm, logger)
	e.purchase = usecase.NewPurchaseUseCase(e.registry, e.attempts, e.settings, e.ledger, e.pricing, e.subUC, e.referral, e.dispatch, e.tm, testCurrency, testReturnURL, logger)
	e.card = usecase.NewCardToCardUseCase(e.cards, e.users, e.settings, e.ledger, e.subUC, e.referral, e.pricing, e.notifier, e.dispatch, e.tm, logger)
	return e
}

const (
	testTenant    = "tenant-1"
	testCurrency  = "RUB"
	testReturnURL = "https://billing.example.com/return"
)

// seedTenant installs default settings so quotes and trials work out of the box.
func (e *billingEnv) seedTenant() {
	e.settings.Put(&model.TenantSettings{
		TenantID:        testTenant,
		CardNumber:      "6037-9911-2233-4455",
		CardHolder:      "ACME LTD",
		ReferralPercent: 10,
		PeriodDiscounts: map[int]int{90: 10, 180: 20},
		BasePrices:      map[int]int64{30: 100000, 90: 270000, 180: 480000},
		TrafficGBPrice:  1000,
		DevicePrice:     20000,
		TrialDays:       7,
		AutopayWarnDays: 1,
	})
}

func (e *billingEnv) seedUser(id string, balance int64) *model.User {
	u := &model.User{
		ID:           id,
		TenantID:     testTenant,
		ExternalID:   int64(len(id)) + 1000,
		Balance:      balance,
		RegisteredAt: time.Now(),
	}
	_ = e.users.Save(context.Background(), nil, u)
	return u
}
