package payment

import (
	"context"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"telegram-vpn-billing/internal/domain"
	"telegram-vpn-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentProvider = (*yoomoneyProvider)(nil)

// yoomoneyProvider is the personal-wallet quickpay flow: no API call to open
// a payment, just a redirect URL with a label we generate. The notification
// is a signed form post.
type yoomoneyProvider struct {
	creds CredentialSource
}

func NewYooMoney(creds CredentialSource) *yoomoneyProvider {
	return &yoomoneyProvider{creds: creds}
}

func (p *yoomoneyProvider) Name() string { return "yoomoney" }

func (p *yoomoneyProvider) CreatePayment(ctx context.Context, req adapter.CreatePaymentRequest) (*adapter.CreatePaymentResult, error) {
	creds, err := p.creds.Credentials(ctx, req.TenantID, p.Name())
	if err != nil {
		return nil, err
	}

	// The label round-trips through the wallet and identifies the payment
	// in the notification.
	label := uuid.NewString()

	v := url.Values{}
	v.Set("receiver", creds.ShopID) // wallet number
	v.Set("quickpay-form", "button")
	v.Set("paymentType", "AC")
	v.Set("sum", formatAmount(req.Amount))
	v.Set("label", label)

	return &adapter.CreatePaymentResult{
		ProviderRef: label,
		PayURL:      "https://yoomoney.ru/quickpay/confirm.xml?" + v.Encode(),
	}, nil
}

func (p *yoomoneyProvider) ParseCallback(ctx context.Context, tenantID string, rawBody []byte, headers map[string]string) (*adapter.CallbackEvent, error) {
	creds, err := p.creds.Credentials(ctx, tenantID, p.Name())
	if err != nil {
		return nil, err
	}

	form, err := url.ParseQuery(string(rawBody))
	if err != nil {
		return nil, domain.ErrValidation
	}

	// sha1 over the documented field order with the notification secret
	// spliced in before the label.
	joined := strings.Join([]string{
		form.Get("notification_type"),
		form.Get("operation_id"),
		form.Get("amount"),
		form.Get("currency"),
		form.Get("datetime"),
		form.Get("sender"),
		form.Get("codepro"),
		creds.SecretKey,
		form.Get("label"),
	}, "&")
	if !signatureEqual(form.Get("sha1_hash"), sha1Hex(joined)) {
		return nil, domain.ErrInvalidSignature
	}

	label := form.Get("label")
	if label == "" {
		return nil, domain.ErrValidation
	}

	amount, err := parseAmount(form.Get("amount"))
	if err != nil {
		return nil, err
	}

	outcome := adapter.CallbackOutcomePaid
	if form.Get("unaccepted") == "true" || form.Get("codepro") == "true" {
		outcome = adapter.CallbackOutcomeFailed
	}
	return &adapter.CallbackEvent{
		ProviderRef: label,
		Outcome:     outcome,
		Amount:      amount,
	}, nil
}
