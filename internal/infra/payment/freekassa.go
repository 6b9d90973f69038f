package payment

import (
	"context"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"telegram-vpn-billing/internal/domain"
	"telegram-vpn-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentProvider = (*freekassaProvider)(nil)

// freekassaProvider builds a signed SCI checkout URL. Two secrets are in
// play: secret #1 signs the outgoing form, secret #2 the notification.
type freekassaProvider struct {
	creds CredentialSource
}

func NewFreekassa(creds CredentialSource) *freekassaProvider {
	return &freekassaProvider{creds: creds}
}

func (p *freekassaProvider) Name() string { return "freekassa" }

func (p *freekassaProvider) CreatePayment(ctx context.Context, req adapter.CreatePaymentRequest) (*adapter.CreatePaymentResult, error) {
	creds, err := p.creds.Credentials(ctx, req.TenantID, p.Name())
	if err != nil {
		return nil, err
	}

	orderID := uuid.NewString()
	amount := formatAmount(req.Amount)
	sig := md5Hex(strings.Join([]string{creds.ShopID, amount, creds.SecretKey, req.Currency, orderID}, ":"))

	v := url.Values{}
	v.Set("m", creds.ShopID)
	v.Set("oa", amount)
	v.Set("currency", req.Currency)
	v.Set("o", orderID)
	v.Set("s", sig)

	return &adapter.CreatePaymentResult{
		ProviderRef: orderID,
		PayURL:      "https://pay.fk.money/?" + v.Encode(),
	}, nil
}

func (p *freekassaProvider) ParseCallback(ctx context.Context, tenantID string, rawBody []byte, headers map[string]string) (*adapter.CallbackEvent, error) {
	creds, err := p.creds.Credentials(ctx, tenantID, p.Name())
	if err != nil {
		return nil, err
	}

	form, err := url.ParseQuery(string(rawBody))
	if err != nil {
		return nil, domain.ErrValidation
	}

	merchantID := form.Get("MERCHANT_ID")
	amountStr := form.Get("AMOUNT")
	orderID := form.Get("MERCHANT_ORDER_ID")
	if merchantID == "" || orderID == "" {
		return nil, domain.ErrValidation
	}

	secret2 := creds.Extra["secret2"]
	want := md5Hex(strings.Join([]string{merchantID, amountStr, secret2, orderID}, ":"))
	if !signatureEqual(form.Get("SIGN"), want) {
		return nil, domain.ErrInvalidSignature
	}

	amount, err := parseAmount(amountStr)
	if err != nil {
		return nil, err
	}
	return &adapter.CallbackEvent{
		ProviderRef: orderID,
		Outcome:     adapter.CallbackOutcomePaid,
		Amount:      amount,
	}, nil
}
