package payment

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"telegram-vpn-billing/internal/domain"
	"telegram-vpn-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentProvider = (*robokassaProvider)(nil)

// robokassaProvider builds a signed checkout URL; the result notification is
// a form post signed with the second merchant password.
type robokassaProvider struct {
	creds CredentialSource

	// invSeq disambiguates invoice ids minted in the same second.
	invSeq int64
}

func NewRobokassa(creds CredentialSource) *robokassaProvider {
	return &robokassaProvider{creds: creds}
}

func (p *robokassaProvider) Name() string { return "robokassa" }

func (p *robokassaProvider) CreatePayment(ctx context.Context, req adapter.CreatePaymentRequest) (*adapter.CreatePaymentResult, error) {
	creds, err := p.creds.Credentials(ctx, req.TenantID, p.Name())
	if err != nil {
		return nil, err
	}

	// Robokassa requires a numeric InvId unique per shop.
	invID := fmt.Sprintf("%d%03d", time.Now().Unix(), atomic.AddInt64(&p.invSeq, 1)%1000)
	outSum := formatAmount(req.Amount)

	sig := md5Hex(strings.Join([]string{creds.ShopID, outSum, invID, creds.SecretKey}, ":"))

	v := url.Values{}
	v.Set("MerchantLogin", creds.ShopID)
	v.Set("OutSum", outSum)
	v.Set("InvId", invID)
	v.Set("SignatureValue", sig)

	return &adapter.CreatePaymentResult{
		ProviderRef: invID,
		PayURL:      "https://auth.robokassa.ru/Merchant/Index.aspx?" + v.Encode(),
	}, nil
}

func (p *robokassaProvider) ParseCallback(ctx context.Context, tenantID string, rawBody []byte, headers map[string]string) (*adapter.CallbackEvent, error) {
	creds, err := p.creds.Credentials(ctx, tenantID, p.Name())
	if err != nil {
		return nil, err
	}

	form, err := url.ParseQuery(string(rawBody))
	if err != nil {
		return nil, domain.ErrValidation
	}

	outSum := form.Get("OutSum")
	invID := form.Get("InvId")
	if outSum == "" || invID == "" {
		return nil, domain.ErrValidation
	}

	// Result URL signature uses password #2, kept in Extra.
	password2 := creds.Extra["password2"]
	want := md5Hex(strings.Join([]string{outSum, invID, password2}, ":"))
	if !signatureEqual(form.Get("SignatureValue"), want) {
		return nil, domain.ErrInvalidSignature
	}

	amount, err := parseAmount(outSum)
	if err != nil {
		return nil, err
	}
	// Robokassa only notifies on success; failures simply never arrive.
	return &adapter.CallbackEvent{
		ProviderRef: invID,
		Outcome:     adapter.CallbackOutcomePaid,
		Amount:      amount,
	}, nil
}
