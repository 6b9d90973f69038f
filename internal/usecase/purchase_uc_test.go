//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"telegram-vpn-billing/internal/domain"
	"telegram-vpn-billing/internal/domain/model"
	"telegram-vpn-billing/internal/domain/ports/adapter"
	"telegram-vpn-billing/internal/usecase"
)

func usecaseAddons(trafficGB int64, devices int) usecase.Addons {
	return usecase.Addons{TrafficGB: trafficGB, ExtraDevices: devices}
}

func TestPurchase_Quote(t *testing.T) {
	ctx := context.Background()

	t.Run("base period only", func(t *testing.T) {
		e := newBillingEnv()
		e.seedTenant()
		e.seedUser("u1", 0)

		q, err := e.purchase.Quote(ctx, testTenant, "u1", 30, usecaseAddons(0, 0))
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if q.Total != 100000 {
			t.Errorf("expected total 100000, got %d", q.Total)
		}
		if q.Traffic != nil || q.Device != nil {
			t.Error("expected no addon lines")
		}
	})

	t.Run("addons are itemized and summed", func(t *testing.T) {
		e := newBillingEnv()
		e.seedTenant()
		e.seedUser("u1", 0)

		q, err := e.purchase.Quote(ctx, testTenant, "u1", 30, usecaseAddons(50, 2))
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		// 100000 server + 50*1000 traffic + 2*20000 devices.
		if q.Total != 100000+50000+40000 {
			t.Errorf("expected total 190000, got %d", q.Total)
		}
	})

	t.Run("unknown period is rejected", func(t *testing.T) {
		e := newBillingEnv()
		e.seedTenant()
		e.seedUser("u1", 0)

		if _, err := e.purchase.Quote(ctx, testTenant, "u1", 45, usecaseAddons(0, 0)); err != domain.ErrValidation {
			t.Fatalf("expected ErrValidation, got: %v", err)
		}
	})
}

func TestPurchase_InitiatePurchase(t *testing.T) {
	ctx := context.Background()

	t.Run("balance path settles synchronously and activates", func(t *testing.T) {
		e := newBillingEnv()
		e.seedTenant()
		e.seedUser("u1", 150000)

		q, err := e.purchase.Quote(ctx, testTenant, "u1", 30, usecaseAddons(0, 0))
		if err != nil {
			t.Fatalf("quote: %v", err)
		}
		h, err := e.purchase.InitiatePurchase(ctx, testTenant, "u1", "balance", q)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if !h.Completed {
			t.Error("expected synchronous completion on the balance path")
		}
		if got := e.users.Get("u1").Balance; got != 50000 {
			t.Errorf("expected balance 50000 after debit, got %d", got)
		}
		if _, err := e.subUC.Get(ctx, testTenant, "u1"); err != nil {
			t.Errorf("expected an active subscription, got: %v", err)
		}
	})

	t.Run("insufficient balance rejects and leaves the balance alone", func(t *testing.T) {
		e := newBillingEnv()
		e.seedTenant()
		e.seedUser("u1", 10000)

		q, _ := e.purchase.Quote(ctx, testTenant, "u1", 30, usecaseAddons(0, 0))
		_, err := e.purchase.InitiatePurchase(ctx, testTenant, "u1", "balance", q)
		if err != domain.ErrInsufficientBalance {
			t.Fatalf("expected ErrInsufficientBalance, got: %v", err)
		}
		if got := e.users.Get("u1").Balance; got != 10000 {
			t.Errorf("expected balance untouched, got %d", got)
		}
		if _, err := e.subUC.Get(ctx, testTenant, "u1"); err != domain.ErrSubscriptionNotFound {
			t.Errorf("expected no subscription, got: %v", err)
		}
	})

	t.Run("provider path opens a payment and records the attempt", func(t *testing.T) {
		e := newBillingEnv()
		e.seedTenant()
		e.seedUser("u1", 0)
		e.provider.CreatePaymentFunc = func(ctx context.Context, req adapter.CreatePaymentRequest) (*adapter.CreatePaymentResult, error) {
			if req.TenantID != testTenant {
				t.Errorf("expected tenant on the request, got %q", req.TenantID)
			}
			return &adapter.CreatePaymentResult{ProviderRef: "REF-X", PayURL: "https://pay.example/REF-X"}, nil
		}

		q, _ := e.purchase.Quote(ctx, testTenant, "u1", 30, usecaseAddons(0, 0))
		h, err := e.purchase.InitiatePurchase(ctx, testTenant, "u1", e.provider.Name(), q)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if h.Completed {
			t.Error("provider path must not settle synchronously")
		}
		if h.PayURL == "" {
			t.Error("expected a pay URL")
		}
		attempt, err := e.attempts.FindByProviderRef(ctx, nil, testTenant, e.provider.Name(), "REF-X")
		if err != nil {
			t.Fatalf("expected a stored attempt: %v", err)
		}
		if attempt.TransactionID != h.TransactionID {
			t.Errorf("attempt links %s, handle says %s", attempt.TransactionID, h.TransactionID)
		}
		if got := e.transactions.Get(h.TransactionID).Status; got != model.TransactionStatusPending {
			t.Errorf("expected pending transaction, got %s", got)
		}
	})

	t.Run("provider request carries currency and metadata", func(t *testing.T) {
		e := newBillingEnv()
		e.seedTenant()
		e.seedUser("u1", 0)
		var got adapter.CreatePaymentRequest
		e.provider.CreatePaymentFunc = func(ctx context.Context, req adapter.CreatePaymentRequest) (*adapter.CreatePaymentResult, error) {
			got = req
			return &adapter.CreatePaymentResult{ProviderRef: "REF-M"}, nil
		}

		q, _ := e.purchase.Quote(ctx, testTenant, "u1", 30, usecaseAddons(0, 0))
		h, err := e.purchase.InitiatePurchase(ctx, testTenant, "u1", e.provider.Name(), q)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if got.Currency != testCurrency {
			t.Errorf("expected currency %q on the request, got %q", testCurrency, got.Currency)
		}
		if got.Metadata["transaction_id"] != h.TransactionID {
			t.Errorf("expected metadata to carry the transaction id %s, got %q", h.TransactionID, got.Metadata["transaction_id"])
		}
		if got.Metadata["return_url"] != testReturnURL {
			t.Errorf("expected return url %q, got %q", testReturnURL, got.Metadata["return_url"])
		}
		if got.Metadata["period_days"] != "30" {
			t.Errorf("expected period_days 30, got %q", got.Metadata["period_days"])
		}
	})

	t.Run("provider failure records nothing", func(t *testing.T) {
		e := newBillingEnv()
		e.seedTenant()
		e.seedUser("u1", 0)
		provErr := errors.New("gateway down")
		e.provider.CreatePaymentFunc = func(ctx context.Context, req adapter.CreatePaymentRequest) (*adapter.CreatePaymentResult, error) {
			return nil, provErr
		}

		q, _ := e.purchase.Quote(ctx, testTenant, "u1", 30, usecaseAddons(0, 0))
		if _, err := e.purchase.InitiatePurchase(ctx, testTenant, "u1", e.provider.Name(), q); !errors.Is(err, provErr) {
			t.Fatalf("expected provider error, got: %v", err)
		}
	})

	t.Run("unknown provider is rejected", func(t *testing.T) {
		e := newBillingEnv()
		e.seedTenant()
		e.seedUser("u1", 0)
		q, _ := e.purchase.Quote(ctx, testTenant, "u1", 30, usecaseAddons(0, 0))
		if _, err := e.purchase.InitiatePurchase(ctx, testTenant, "u1", "nopay", q); err != domain.ErrValidation {
			t.Fatalf("expected ErrValidation, got: %v", err)
		}
	})
}

func TestPurchase_InitiateDeposit(t *testing.T) {
	ctx := context.Background()

	t.Run("opens a deposit with the provider", func(t *testing.T) {
		e := newBillingEnv()
		e.seedTenant()
		e.seedUser("u1", 0)

		h, err := e.purchase.InitiateDeposit(ctx, testTenant, "u1", e.provider.Name(), 50000)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		row := e.transactions.Get(h.TransactionID)
		if row.Type != model.TransactionTypeDeposit || row.Amount != 50000 {
			t.Errorf("unexpected transaction %+v", row)
		}
	})

	t.Run("deposit request is quoted in the configured currency", func(t *testing.T) {
		e := newBillingEnv()
		e.seedTenant()
		e.seedUser("u1", 0)
		var got adapter.CreatePaymentRequest
		e.provider.CreatePaymentFunc = func(ctx context.Context, req adapter.CreatePaymentRequest) (*adapter.CreatePaymentResult, error) {
			got = req
			return &adapter.CreatePaymentResult{ProviderRef: "REF-D"}, nil
		}

		h, err := e.purchase.InitiateDeposit(ctx, testTenant, "u1", e.provider.Name(), 50000)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if got.Currency != testCurrency {
			t.Errorf("expected currency %q on the request, got %q", testCurrency, got.Currency)
		}
		if got.Metadata["transaction_id"] != h.TransactionID {
			t.Errorf("expected metadata to carry the transaction id %s, got %q", h.TransactionID, got.Metadata["transaction_id"])
		}
	})

	t.Run("balance cannot fund a deposit", func(t *testing.T) {
		e := newBillingEnv()
		if _, err := e.purchase.InitiateDeposit(ctx, testTenant, "u1", "balance", 50000); err != domain.ErrValidation {
			t.Fatalf("expected ErrValidation, got: %v", err)
		}
	})

	t.Run("non-positive amount is rejected", func(t *testing.T) {
		e := newBillingEnv()
		if _, err := e.purchase.InitiateDeposit(ctx, testTenant, "u1", "mockpay", 0); err != domain.ErrValidation {
			t.Fatalf("expected ErrValidation, got: %v", err)
		}
	})
}
