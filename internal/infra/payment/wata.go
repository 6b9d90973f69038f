package payment

import (
	"context"
	"encoding/json"

	"telegram-vpn-billing/internal/domain"
	"telegram-vpn-billing/internal/domain/ports/adapter"
)

const wataBaseURL = "https://api.wata.pro/api/h2h"

var _ adapter.PaymentProvider = (*wataProvider)(nil)

// wataProvider opens hosted payment links over the h2h API with a bearer
// token; webhooks are HMAC-signed JSON.
type wataProvider struct {
	http    *httpClient
	creds   CredentialSource
	baseURL string
}

func NewWata(http *httpClient, creds CredentialSource) *wataProvider {
	return &wataProvider{http: http, creds: creds, baseURL: wataBaseURL}
}

func (p *wataProvider) Name() string { return "wata" }

type wataLinkResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (p *wataProvider) CreatePayment(ctx context.Context, req adapter.CreatePaymentRequest) (*adapter.CreatePaymentResult, error) {
	creds, err := p.creds.Credentials(ctx, req.TenantID, p.Name())
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"amount":   formatAmount(req.Amount),
		"currency": req.Currency,
		"orderId":  req.Metadata["transaction_id"],
	}
	headers := map[string]string{"Authorization": "Bearer " + creds.SecretKey}

	var resp wataLinkResponse
	if err := p.http.postJSON(ctx, p.baseURL+"/links", headers, payload, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, domain.ErrProviderUnavailable
	}
	return &adapter.CreatePaymentResult{ProviderRef: resp.ID, PayURL: resp.URL}, nil
}

type wataWebhook struct {
	// LinkID matches the id returned when the payment link was created.
	LinkID            string `json:"paymentLinkId"`
	TransactionStatus string `json:"transactionStatus"`
	Amount            string `json:"amount"`
}

func (p *wataProvider) ParseCallback(ctx context.Context, tenantID string, rawBody []byte, headers map[string]string) (*adapter.CallbackEvent, error) {
	creds, err := p.creds.Credentials(ctx, tenantID, p.Name())
	if err != nil {
		return nil, err
	}

	want := hmacSHA256Hex([]byte(creds.SecretKey), rawBody)
	if !signatureEqual(headers["X-Signature"], want) {
		return nil, domain.ErrInvalidSignature
	}

	var hook wataWebhook
	if err := json.Unmarshal(rawBody, &hook); err != nil {
		return nil, domain.ErrValidation
	}

	var outcome adapter.CallbackOutcome
	switch hook.TransactionStatus {
	case "Paid":
		outcome = adapter.CallbackOutcomePaid
	case "Declined":
		outcome = adapter.CallbackOutcomeFailed
	case "Expired":
		outcome = adapter.CallbackOutcomeExpired
	default:
		return nil, domain.ErrValidation
	}

	amount, err := parseAmount(hook.Amount)
	if err != nil {
		return nil, err
	}

	return &adapter.CallbackEvent{ProviderRef: hook.LinkID, Outcome: outcome, Amount: amount}, nil
}
