package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/google/uuid"

	"telegram-vpn-billing/internal/domain"
	"telegram-vpn-billing/internal/domain/ports/adapter"
)

const yookassaBaseURL = "https://api.yookassa.ru/v3"

var _ adapter.PaymentProvider = (*yookassaProvider)(nil)

// yookassaProvider drives the YooKassa smart payment API. Authentication is
// HTTP Basic with shop id and secret key; every create call carries an
// Idempotence-Key so our own retries cannot open two payments.
type yookassaProvider struct {
	http    *httpClient
	creds   CredentialSource
	baseURL string
}

func NewYooKassa(http *httpClient, creds CredentialSource) *yookassaProvider {
	return &yookassaProvider{http: http, creds: creds, baseURL: yookassaBaseURL}
}

func (p *yookassaProvider) Name() string { return "yookassa" }

type yookassaCreateResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Confirmation struct {
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
}

func (p *yookassaProvider) CreatePayment(ctx context.Context, req adapter.CreatePaymentRequest) (*adapter.CreatePaymentResult, error) {
	creds, err := p.creds.Credentials(ctx, req.TenantID, p.Name())
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"amount": map[string]string{
			"value":    formatAmount(req.Amount),
			"currency": req.Currency,
		},
		"capture": true,
		"confirmation": map[string]string{
			"type":       "redirect",
			"return_url": req.Metadata["return_url"],
		},
		"metadata": req.Metadata,
	}

	auth := base64.StdEncoding.EncodeToString([]byte(creds.ShopID + ":" + creds.SecretKey))
	headers := map[string]string{
		"Authorization":   "Basic " + auth,
		"Idempotence-Key": uuid.NewString(),
	}

	var resp yookassaCreateResponse
	if err := p.http.postJSON(ctx, p.baseURL+"/payments", headers, payload, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, domain.ErrProviderUnavailable
	}
	return &adapter.CreatePaymentResult{
		ProviderRef: resp.ID,
		PayURL:      resp.Confirmation.ConfirmationURL,
	}, nil
}

type yookassaEvent struct {
	Event  string `json:"event"`
	Object struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Amount struct {
			Value string `json:"value"`
		} `json:"amount"`
		CancellationDetails struct {
			Reason string `json:"reason"`
		} `json:"cancellation_details"`
	} `json:"object"`
}

func (p *yookassaProvider) ParseCallback(ctx context.Context, tenantID string, rawBody []byte, headers map[string]string) (*adapter.CallbackEvent, error) {
	creds, err := p.creds.Credentials(ctx, tenantID, p.Name())
	if err != nil {
		return nil, err
	}

	want := hmacSHA256Hex([]byte(creds.SecretKey), rawBody)
	if !signatureEqual(headers["X-Api-Signature"], want) {
		return nil, domain.ErrInvalidSignature
	}

	var ev yookassaEvent
	if err := json.Unmarshal(rawBody, &ev); err != nil {
		return nil, domain.ErrValidation
	}

	var outcome adapter.CallbackOutcome
	switch ev.Event {
	case "payment.succeeded":
		outcome = adapter.CallbackOutcomePaid
	case "payment.canceled":
		outcome = adapter.CallbackOutcomeFailed
		if ev.Object.CancellationDetails.Reason == "expired_on_confirmation" {
			outcome = adapter.CallbackOutcomeExpired
		}
	default:
		return nil, domain.ErrValidation
	}

	amount, err := parseAmount(ev.Object.Amount.Value)
	if err != nil {
		return nil, err
	}
	return &adapter.CallbackEvent{
		ProviderRef: ev.Object.ID,
		Outcome:     outcome,
		Amount:      amount,
	}, nil
}
