package payment

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"strconv"

	"telegram-vpn-billing/internal/domain"
	"telegram-vpn-billing/internal/domain/ports/adapter"
)

const cryptobotBaseURL = "https://pay.crypt.bot/api"

var _ adapter.PaymentProvider = (*cryptobotProvider)(nil)

// cryptobotProvider integrates Crypto Pay (@CryptoBot). Webhook signatures
// are HMAC-SHA256 over the body keyed with SHA256 of the API token.
type cryptobotProvider struct {
	http    *httpClient
	creds   CredentialSource
	baseURL string
}

func NewCryptoBot(http *httpClient, creds CredentialSource) *cryptobotProvider {
	return &cryptobotProvider{http: http, creds: creds, baseURL: cryptobotBaseURL}
}

func (p *cryptobotProvider) Name() string { return "cryptobot" }

type cryptobotInvoiceResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		InvoiceID int64  `json:"invoice_id"`
		PayURL    string `json:"pay_url"`
	} `json:"result"`
}

func (p *cryptobotProvider) CreatePayment(ctx context.Context, req adapter.CreatePaymentRequest) (*adapter.CreatePaymentResult, error) {
	creds, err := p.creds.Credentials(ctx, req.TenantID, p.Name())
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"currency_type": "fiat",
		"fiat":          req.Currency,
		"amount":        formatAmount(req.Amount),
		"payload":       req.Metadata["transaction_id"],
	}
	headers := map[string]string{"Crypto-Pay-API-Token": creds.SecretKey}

	var resp cryptobotInvoiceResponse
	if err := p.http.postJSON(ctx, p.baseURL+"/createInvoice", headers, payload, &resp); err != nil {
		return nil, err
	}
	if !resp.OK || resp.Result.InvoiceID == 0 {
		return nil, domain.ErrProviderUnavailable
	}
	return &adapter.CreatePaymentResult{
		ProviderRef: strconv.FormatInt(resp.Result.InvoiceID, 10),
		PayURL:      resp.Result.PayURL,
	}, nil
}

type cryptobotUpdate struct {
	UpdateType string `json:"update_type"`
	Payload    struct {
		InvoiceID int64  `json:"invoice_id"`
		Status    string `json:"status"`
		Amount    string `json:"amount"`
	} `json:"payload"`
}

func (p *cryptobotProvider) ParseCallback(ctx context.Context, tenantID string, rawBody []byte, headers map[string]string) (*adapter.CallbackEvent, error) {
	creds, err := p.creds.Credentials(ctx, tenantID, p.Name())
	if err != nil {
		return nil, err
	}

	tokenHash := sha256.Sum256([]byte(creds.SecretKey))
	want := hmacSHA256Hex(tokenHash[:], rawBody)
	if !signatureEqual(headers["Crypto-Pay-Api-Signature"], want) {
		return nil, domain.ErrInvalidSignature
	}

	var upd cryptobotUpdate
	if err := json.Unmarshal(rawBody, &upd); err != nil {
		return nil, domain.ErrValidation
	}

	var outcome adapter.CallbackOutcome
	switch {
	case upd.UpdateType == "invoice_paid" || upd.Payload.Status == "paid":
		outcome = adapter.CallbackOutcomePaid
	case upd.Payload.Status == "expired":
		outcome = adapter.CallbackOutcomeExpired
	default:
		return nil, domain.ErrValidation
	}

	amount, err := parseAmount(upd.Payload.Amount)
	if err != nil {
		return nil, err
	}
	return &adapter.CallbackEvent{
		ProviderRef: strconv.FormatInt(upd.Payload.InvoiceID, 10),
		Outcome:     outcome,
		Amount:      amount,
	}, nil
}
