package adapter

import "context"

// CreatePaymentRequest carries everything a provider needs to open a payment.
type CreatePaymentRequest struct {
	TenantID string
	UserID   string
	Amount   int64 // minor units
	Currency string
	Metadata map[string]string
}

// CreatePaymentResult is the provider-side handle for a new payment.
type CreatePaymentResult struct {
	// ProviderRef is the provider's identifier for this payment; callbacks
	// echo it back.
	ProviderRef string

	// PayURL redirects the user to the provider checkout, or is empty when
	// Instructions carry an inline flow (e.g. an invoice message).
	PayURL       string
	Instructions string
}

// CallbackOutcome is the provider's verdict carried by a webhook.
type CallbackOutcome string

const (
	CallbackOutcomePaid    CallbackOutcome = "paid"
	CallbackOutcomeFailed  CallbackOutcome = "failed"
	CallbackOutcomeExpired CallbackOutcome = "expired"
)

// CallbackEvent is the provider-neutral form of an inbound webhook after
// signature verification.
type CallbackEvent struct {
	ProviderRef string
	Outcome     CallbackOutcome

	// Amount as reported by the provider, used as a cross-check.
	Amount int64
}

// PaymentProvider is the uniform contract every concrete provider implements.
// Nothing outside the adapter layer branches on provider identity beyond
// selecting an adapter from the registry.
type PaymentProvider interface {
	Name() string
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error)

	// ParseCallback verifies the signature against the tenant's credentials
	// and normalizes the payload. Returns domain.ErrInvalidSignature on
	// verification failure; no state is touched by this call.
	ParseCallback(ctx context.Context, tenantID string, rawBody []byte, headers map[string]string) (*CallbackEvent, error)
}
