package payment

import (
	"context"
	"crypto/subtle"
	"encoding/json"

	"github.com/google/uuid"

	"telegram-vpn-billing/internal/domain"
	"telegram-vpn-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentProvider = (*telegramStarsProvider)(nil)

// telegramStarsProvider handles XTR invoices. The invoice itself is sent by
// the bot layer; this adapter only mints the payload that ties the eventual
// successful_payment update back to our attempt, and verifies the update when
// the bot forwards it here.
type telegramStarsProvider struct {
	creds CredentialSource
}

func NewTelegramStars(creds CredentialSource) *telegramStarsProvider {
	return &telegramStarsProvider{creds: creds}
}

func (p *telegramStarsProvider) Name() string { return "telegram_stars" }

func (p *telegramStarsProvider) CreatePayment(ctx context.Context, req adapter.CreatePaymentRequest) (*adapter.CreatePaymentResult, error) {
	// Stars invoices carry no pay URL; the bot sends the invoice message
	// with this payload and Telegram echoes it back on payment.
	payload := uuid.NewString()
	return &adapter.CreatePaymentResult{
		ProviderRef:  payload,
		Instructions: "invoice",
	}, nil
}

type starsUpdate struct {
	InvoicePayload          string `json:"invoice_payload"`
	TelegramPaymentChargeID string `json:"telegram_payment_charge_id"`
	TotalAmount             int64  `json:"total_amount"`
	Status                  string `json:"status"`
}

func (p *telegramStarsProvider) ParseCallback(ctx context.Context, tenantID string, rawBody []byte, headers map[string]string) (*adapter.CallbackEvent, error) {
	creds, err := p.creds.Credentials(ctx, tenantID, p.Name())
	if err != nil {
		return nil, err
	}

	// The bot layer forwards updates with the webhook secret token; anything
	// else did not come from our own bot.
	got := headers["X-Telegram-Bot-Api-Secret-Token"]
	if subtle.ConstantTimeCompare([]byte(got), []byte(creds.SecretKey)) != 1 {
		return nil, domain.ErrInvalidSignature
	}

	var upd starsUpdate
	if err := json.Unmarshal(rawBody, &upd); err != nil {
		return nil, domain.ErrValidation
	}
	if upd.InvoicePayload == "" {
		return nil, domain.ErrValidation
	}

	outcome := adapter.CallbackOutcomePaid
	if upd.Status == "failed" {
		outcome = adapter.CallbackOutcomeFailed
	}
	return &adapter.CallbackEvent{
		ProviderRef: upd.InvoicePayload,
		Outcome:     outcome,
		// Stars are whole units; the ledger stores them as-is.
		Amount: upd.TotalAmount,
	}, nil
}
