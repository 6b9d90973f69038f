package model

import "time"

type PaymentAttemptStatus string

const (
	PaymentAttemptStatusPending PaymentAttemptStatus = "pending"
	PaymentAttemptStatusPaid    PaymentAttemptStatus = "paid"
	PaymentAttemptStatusFailed  PaymentAttemptStatus = "failed"
	PaymentAttemptStatusExpired PaymentAttemptStatus = "expired"
)

// PaymentAttempt tracks one outbound payment request at a provider. One
// transaction has at most one attempt per provider; an expired attempt is
// superseded by a new transaction, never reused.
type PaymentAttempt struct {
	ID            string // UUID
	TenantID      string
	TransactionID string
	Provider      string

	// ProviderRef is the provider-side identifier returned on creation and
	// echoed back in callbacks. Unique per (tenant_id, provider).
	ProviderRef string

	// PayURL is the redirect the user is sent to, or empty for providers
	// that return inline instructions.
	PayURL string

	Status    PaymentAttemptStatus
	CreatedAt time.Time
	UpdatedAt time.Time
	PaidAt    *time.Time
}
