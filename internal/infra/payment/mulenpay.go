package payment

import (
	"context"
	"encoding/json"
	"strconv"

	"telegram-vpn-billing/internal/domain"
	"telegram-vpn-billing/internal/domain/ports/adapter"
)

const mulenpayBaseURL = "https://mulenpay.ru/api/v2"

var _ adapter.PaymentProvider = (*mulenpayProvider)(nil)

type mulenpayProvider struct {
	http    *httpClient
	creds   CredentialSource
	baseURL string
}

func NewMulenPay(http *httpClient, creds CredentialSource) *mulenpayProvider {
	return &mulenpayProvider{http: http, creds: creds, baseURL: mulenpayBaseURL}
}

func (p *mulenpayProvider) Name() string { return "mulenpay" }

type mulenpayCreateResponse struct {
	Success    bool   `json:"success"`
	ID         int64  `json:"id"`
	PaymentURL string `json:"paymentUrl"`
}

func (p *mulenpayProvider) CreatePayment(ctx context.Context, req adapter.CreatePaymentRequest) (*adapter.CreatePaymentResult, error) {
	creds, err := p.creds.Credentials(ctx, req.TenantID, p.Name())
	if err != nil {
		return nil, err
	}

	amount := formatAmount(req.Amount)
	orderID := req.Metadata["transaction_id"]
	payload := map[string]interface{}{
		"currency": req.Currency,
		"amount":   amount,
		"uuid":     orderID,
		"shopId":   creds.ShopID,
		// Request signature binds amount and order to this shop's secret.
		"sign": hmacSHA256Hex([]byte(creds.SecretKey), []byte(req.Currency+amount+orderID)),
	}
	headers := map[string]string{"Authorization": "Bearer " + creds.Extra["api_key"]}

	var resp mulenpayCreateResponse
	if err := p.http.postJSON(ctx, p.baseURL+"/payments", headers, payload, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.ID == 0 {
		return nil, domain.ErrProviderUnavailable
	}
	return &adapter.CreatePaymentResult{
		ProviderRef: strconv.FormatInt(resp.ID, 10),
		PayURL:      resp.PaymentURL,
	}, nil
}

type mulenpayWebhook struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
	Amount string `json:"amount"`
}

func (p *mulenpayProvider) ParseCallback(ctx context.Context, tenantID string, rawBody []byte, headers map[string]string) (*adapter.CallbackEvent, error) {
	creds, err := p.creds.Credentials(ctx, tenantID, p.Name())
	if err != nil {
		return nil, err
	}

	want := hmacSHA256Hex([]byte(creds.SecretKey), rawBody)
	if !signatureEqual(headers["X-Sign"], want) {
		return nil, domain.ErrInvalidSignature
	}

	var hook mulenpayWebhook
	if err := json.Unmarshal(rawBody, &hook); err != nil {
		return nil, domain.ErrValidation
	}

	var outcome adapter.CallbackOutcome
	switch hook.Status {
	case "success":
		outcome = adapter.CallbackOutcomePaid
	case "error", "canceled":
		outcome = adapter.CallbackOutcomeFailed
	default:
		return nil, domain.ErrValidation
	}

	amount, err := parseAmount(hook.Amount)
	if err != nil {
		return nil, err
	}
	return &adapter.CallbackEvent{
		ProviderRef: strconv.FormatInt(hook.ID, 10),
		Outcome:     outcome,
		Amount:      amount,
	}, nil
}
