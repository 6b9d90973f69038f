//go:build !integration

package payment

import (
	"context"
	"crypto/sha256"
	"net/url"
	"strings"
	"testing"

	"telegram-vpn-billing/internal/domain"
	"telegram-vpn-billing/internal/domain/model"
	"telegram-vpn-billing/internal/domain/ports/adapter"
)

// staticCreds hands every provider the same credential set.
type staticCreds struct {
	creds model.ProviderCredentials
	err   error
}

func (s *staticCreds) Credentials(ctx context.Context, tenantID, provider string) (model.ProviderCredentials, error) {
	if s.err != nil {
		return model.ProviderCredentials{}, s.err
	}
	return s.creds, nil
}

func TestYooKassa_ParseCallback(t *testing.T) {
	ctx := context.Background()
	creds := &staticCreds{creds: model.ProviderCredentials{ShopID: "shop-1", SecretKey: "s3cret"}}
	p := NewYooKassa(nil, creds)

	body := []byte(`{"event":"payment.succeeded","object":{"id":"pay-1","status":"succeeded","amount":{"value":"100.00"}}}`)
	sig := hmacSHA256Hex([]byte("s3cret"), body)

	t.Run("accepts a signed success event", func(t *testing.T) {
		ev, err := p.ParseCallback(ctx, "t1", body, map[string]string{"X-Api-Signature": sig})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if ev.ProviderRef != "pay-1" || ev.Outcome != adapter.CallbackOutcomePaid || ev.Amount != 10000 {
			t.Errorf("unexpected event %+v", ev)
		}
	})

	t.Run("rejects a tampered signature", func(t *testing.T) {
		if _, err := p.ParseCallback(ctx, "t1", body, map[string]string{"X-Api-Signature": "deadbeef"}); err != domain.ErrInvalidSignature {
			t.Fatalf("expected ErrInvalidSignature, got: %v", err)
		}
	})

	t.Run("rejects a tampered body", func(t *testing.T) {
		tampered := []byte(`{"event":"payment.succeeded","object":{"id":"pay-1","status":"succeeded","amount":{"value":"999.00"}}}`)
		if _, err := p.ParseCallback(ctx, "t1", tampered, map[string]string{"X-Api-Signature": sig}); err != domain.ErrInvalidSignature {
			t.Fatalf("expected ErrInvalidSignature, got: %v", err)
		}
	})

	t.Run("maps expired cancellations", func(t *testing.T) {
		b := []byte(`{"event":"payment.canceled","object":{"id":"pay-2","amount":{"value":"50.00"},"cancellation_details":{"reason":"expired_on_confirmation"}}}`)
		ev, err := p.ParseCallback(ctx, "t1", b, map[string]string{"X-Api-Signature": hmacSHA256Hex([]byte("s3cret"), b)})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if ev.Outcome != adapter.CallbackOutcomeExpired {
			t.Errorf("expected expired, got %s", ev.Outcome)
		}
	})
}

func TestCryptoBot_ParseCallback(t *testing.T) {
	ctx := context.Background()
	token := "12345:AAtoken"
	creds := &staticCreds{creds: model.ProviderCredentials{SecretKey: token}}
	p := NewCryptoBot(nil, creds)

	body := []byte(`{"update_type":"invoice_paid","payload":{"invoice_id":777,"status":"paid","amount":"42.00"}}`)
	tokenHash := sha256.Sum256([]byte(token))
	sig := hmacSHA256Hex(tokenHash[:], body)

	ev, err := p.ParseCallback(ctx, "t1", body, map[string]string{"Crypto-Pay-Api-Signature": sig})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if ev.ProviderRef != "777" || ev.Outcome != adapter.CallbackOutcomePaid || ev.Amount != 4200 {
		t.Errorf("unexpected event %+v", ev)
	}

	// HMAC keyed with the raw token instead of its hash must not verify.
	wrong := hmacSHA256Hex([]byte(token), body)
	if _, err := p.ParseCallback(ctx, "t1", body, map[string]string{"Crypto-Pay-Api-Signature": wrong}); err != domain.ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got: %v", err)
	}
}

func TestTelegramStars_ParseCallback(t *testing.T) {
	ctx := context.Background()
	creds := &staticCreds{creds: model.ProviderCredentials{SecretKey: "hook-token"}}
	p := NewTelegramStars(creds)

	body := []byte(`{"invoice_payload":"pl-1","telegram_payment_charge_id":"ch-1","total_amount":150}`)

	ev, err := p.ParseCallback(ctx, "t1", body, map[string]string{"X-Telegram-Bot-Api-Secret-Token": "hook-token"})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if ev.ProviderRef != "pl-1" || ev.Amount != 150 {
		t.Errorf("unexpected event %+v", ev)
	}

	if _, err := p.ParseCallback(ctx, "t1", body, map[string]string{"X-Telegram-Bot-Api-Secret-Token": "guess"}); err != domain.ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got: %v", err)
	}
}

func TestRobokassa_ParseCallback(t *testing.T) {
	ctx := context.Background()
	creds := &staticCreds{creds: model.ProviderCredentials{
		ShopID:    "shop",
		SecretKey: "pass1",
		Extra:     map[string]string{"password2": "pass2"},
	}}
	p := NewRobokassa(creds)

	form := url.Values{}
	form.Set("OutSum", "150.00")
	form.Set("InvId", "1712345678001")
	form.Set("SignatureValue", md5Hex(strings.Join([]string{"150.00", "1712345678001", "pass2"}, ":")))

	ev, err := p.ParseCallback(ctx, "t1", []byte(form.Encode()), nil)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if ev.ProviderRef != "1712345678001" || ev.Outcome != adapter.CallbackOutcomePaid || ev.Amount != 15000 {
		t.Errorf("unexpected event %+v", ev)
	}

	// Signing with password #1 (the checkout password) must not verify.
	form.Set("SignatureValue", md5Hex(strings.Join([]string{"150.00", "1712345678001", "pass1"}, ":")))
	if _, err := p.ParseCallback(ctx, "t1", []byte(form.Encode()), nil); err != domain.ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got: %v", err)
	}
}

func TestFreekassa_ParseCallback(t *testing.T) {
	ctx := context.Background()
	creds := &staticCreds{creds: model.ProviderCredentials{
		ShopID:    "999",
		SecretKey: "secret1",
		Extra:     map[string]string{"secret2": "secret2"},
	}}
	p := NewFreekassa(creds)

	form := url.Values{}
	form.Set("MERCHANT_ID", "999")
	form.Set("AMOUNT", "75.50")
	form.Set("MERCHANT_ORDER_ID", "order-1")
	form.Set("SIGN", md5Hex(strings.Join([]string{"999", "75.50", "secret2", "order-1"}, ":")))

	ev, err := p.ParseCallback(ctx, "t1", []byte(form.Encode()), nil)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if ev.ProviderRef != "order-1" || ev.Amount != 7550 {
		t.Errorf("unexpected event %+v", ev)
	}

	form.Set("SIGN", "bogus")
	if _, err := p.ParseCallback(ctx, "t1", []byte(form.Encode()), nil); err != domain.ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got: %v", err)
	}
}

func TestYooMoney_ParseCallback(t *testing.T) {
	ctx := context.Background()
	secret := "notify-secret"
	creds := &staticCreds{creds: model.ProviderCredentials{ShopID: "410011234567890", SecretKey: secret}}
	p := NewYooMoney(creds)

	buildForm := func(codepro string) url.Values {
		form := url.Values{}
		form.Set("notification_type", "p2p-incoming")
		form.Set("operation_id", "op-1")
		form.Set("amount", "300.00")
		form.Set("currency", "643")
		form.Set("datetime", "2026-08-28T10:00:00Z")
		form.Set("sender", "41001000040")
		form.Set("codepro", codepro)
		form.Set("label", "label-1")
		joined := strings.Join([]string{
			form.Get("notification_type"), form.Get("operation_id"), form.Get("amount"),
			form.Get("currency"), form.Get("datetime"), form.Get("sender"),
			form.Get("codepro"), secret, form.Get("label"),
		}, "&")
		form.Set("sha1_hash", sha1Hex(joined))
		return form
	}

	t.Run("accepts a signed notification", func(t *testing.T) {
		ev, err := p.ParseCallback(ctx, "t1", []byte(buildForm("false").Encode()), nil)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if ev.ProviderRef != "label-1" || ev.Outcome != adapter.CallbackOutcomePaid || ev.Amount != 30000 {
			t.Errorf("unexpected event %+v", ev)
		}
	})

	t.Run("protected payments are not treated as paid", func(t *testing.T) {
		ev, err := p.ParseCallback(ctx, "t1", []byte(buildForm("true").Encode()), nil)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if ev.Outcome != adapter.CallbackOutcomeFailed {
			t.Errorf("expected failed, got %s", ev.Outcome)
		}
	})

	t.Run("rejects a wrong hash", func(t *testing.T) {
		form := buildForm("false")
		form.Set("sha1_hash", "0000000000000000000000000000000000000000")
		if _, err := p.ParseCallback(ctx, "t1", []byte(form.Encode()), nil); err != domain.ErrInvalidSignature {
			t.Fatalf("expected ErrInvalidSignature, got: %v", err)
		}
	})
}

func TestHeleket_ParseCallback(t *testing.T) {
	ctx := context.Background()
	creds := &staticCreds{creds: model.ProviderCredentials{ShopID: "merchant-1", SecretKey: "api-key"}}
	p := NewHeleket(nil, creds)

	body := []byte(`{"uuid":"inv-1","status":"paid","amount":"10.00"}`)

	ev, err := p.ParseCallback(ctx, "t1", body, map[string]string{"Sign": heleketSign(body, "api-key")})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if ev.ProviderRef != "inv-1" || ev.Outcome != adapter.CallbackOutcomePaid || ev.Amount != 1000 {
		t.Errorf("unexpected event %+v", ev)
	}

	if _, err := p.ParseCallback(ctx, "t1", body, map[string]string{"Sign": heleketSign(body, "other-key")}); err != domain.ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got: %v", err)
	}
}

func TestWata_ParseCallback(t *testing.T) {
	ctx := context.Background()
	creds := &staticCreds{creds: model.ProviderCredentials{SecretKey: "wata-secret"}}
	p := NewWata(nil, creds)

	body := []byte(`{"paymentLinkId":"link-1","transactionStatus":"Paid","amount":"20.00"}`)
	sig := hmacSHA256Hex([]byte("wata-secret"), body)

	ev, err := p.ParseCallback(ctx, "t1", body, map[string]string{"X-Signature": sig})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if ev.ProviderRef != "link-1" || ev.Outcome != adapter.CallbackOutcomePaid || ev.Amount != 2000 {
		t.Errorf("unexpected event %+v", ev)
	}

	declined := []byte(`{"paymentLinkId":"link-1","transactionStatus":"Declined","amount":"20.00"}`)
	ev, err = p.ParseCallback(ctx, "t1", declined, map[string]string{"X-Signature": hmacSHA256Hex([]byte("wata-secret"), declined)})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if ev.Outcome != adapter.CallbackOutcomeFailed {
		t.Errorf("expected failed, got %s", ev.Outcome)
	}
}

func TestMulenPay_ParseCallback(t *testing.T) {
	ctx := context.Background()
	creds := &staticCreds{creds: model.ProviderCredentials{SecretKey: "mp-secret", Extra: map[string]string{"api_key": "mp-api"}}}
	p := NewMulenPay(nil, creds)

	body := []byte(`{"id":31337,"status":"success","amount":"5.00"}`)
	sig := hmacSHA256Hex([]byte("mp-secret"), body)

	ev, err := p.ParseCallback(ctx, "t1", body, map[string]string{"X-Sign": sig})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if ev.ProviderRef != "31337" || ev.Outcome != adapter.CallbackOutcomePaid || ev.Amount != 500 {
		t.Errorf("unexpected event %+v", ev)
	}

	if _, err := p.ParseCallback(ctx, "t1", body, map[string]string{"X-Sign": "nope"}); err != domain.ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got: %v", err)
	}
}

func TestSignatureEqual(t *testing.T) {
	if !signatureEqual("ABCDEF", "abcdef") {
		t.Error("comparison must be case-insensitive")
	}
	if signatureEqual("abcdef", "abcde0") {
		t.Error("different signatures must not match")
	}
}

func TestRegistry(t *testing.T) {
	creds := &staticCreds{}
	r := NewRegistry(NewYooMoney(creds), NewRobokassa(creds))

	if _, ok := r.Get("yoomoney"); !ok {
		t.Error("expected yoomoney registered")
	}
	if _, ok := r.Get("nopay"); ok {
		t.Error("unexpected provider")
	}
	if len(r.Names()) != 2 {
		t.Errorf("expected 2 names, got %d", len(r.Names()))
	}
}
