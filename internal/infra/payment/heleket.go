package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"telegram-vpn-billing/internal/domain"
	"telegram-vpn-billing/internal/domain/ports/adapter"
)

const heleketBaseURL = "https://api.heleket.com/v1"

var _ adapter.PaymentProvider = (*heleketProvider)(nil)

// heleketProvider is a crypto gateway. Requests and webhooks are signed with
// MD5 over the base64 of the JSON body concatenated with the API key.
type heleketProvider struct {
	http    *httpClient
	creds   CredentialSource
	baseURL string
}

func NewHeleket(http *httpClient, creds CredentialSource) *heleketProvider {
	return &heleketProvider{http: http, creds: creds, baseURL: heleketBaseURL}
}

func (p *heleketProvider) Name() string { return "heleket" }

func heleketSign(body []byte, apiKey string) string {
	return md5Hex(base64.StdEncoding.EncodeToString(body) + apiKey)
}

type heleketPaymentResponse struct {
	State  int `json:"state"`
	Result struct {
		UUID string `json:"uuid"`
		URL  string `json:"url"`
	} `json:"result"`
}

func (p *heleketProvider) CreatePayment(ctx context.Context, req adapter.CreatePaymentRequest) (*adapter.CreatePaymentResult, error) {
	creds, err := p.creds.Credentials(ctx, req.TenantID, p.Name())
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"amount":   formatAmount(req.Amount),
		"currency": req.Currency,
		"order_id": req.Metadata["transaction_id"],
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	headers := map[string]string{
		"merchant": creds.ShopID,
		"sign":     heleketSign(body, creds.SecretKey),
	}

	var resp heleketPaymentResponse
	if err := p.http.postJSON(ctx, p.baseURL+"/payment", headers, payload, &resp); err != nil {
		return nil, err
	}
	if resp.Result.UUID == "" {
		return nil, domain.ErrProviderUnavailable
	}
	return &adapter.CreatePaymentResult{
		ProviderRef: resp.Result.UUID,
		PayURL:      resp.Result.URL,
	}, nil
}

type heleketWebhook struct {
	UUID   string `json:"uuid"`
	Status string `json:"status"`
	Amount string `json:"amount"`
}

func (p *heleketProvider) ParseCallback(ctx context.Context, tenantID string, rawBody []byte, headers map[string]string) (*adapter.CallbackEvent, error) {
	creds, err := p.creds.Credentials(ctx, tenantID, p.Name())
	if err != nil {
		return nil, err
	}

	if !signatureEqual(headers["Sign"], heleketSign(rawBody, creds.SecretKey)) {
		return nil, domain.ErrInvalidSignature
	}

	var hook heleketWebhook
	if err := json.Unmarshal(rawBody, &hook); err != nil {
		return nil, domain.ErrValidation
	}

	var outcome adapter.CallbackOutcome
	switch hook.Status {
	case "paid", "paid_over":
		outcome = adapter.CallbackOutcomePaid
	case "cancel", "fail", "wrong_amount":
		outcome = adapter.CallbackOutcomeFailed
	case "expired":
		outcome = adapter.CallbackOutcomeExpired
	default:
		return nil, domain.ErrValidation
	}

	amount, err := parseAmount(hook.Amount)
	if err != nil {
		return nil, err
	}
	return &adapter.CallbackEvent{
		ProviderRef: hook.UUID,
		Outcome:     outcome,
		Amount:      amount,
	}, nil
}
