package model

import "time"

type TransactionType string

const (
	TransactionTypeDeposit             TransactionType = "deposit"
	TransactionTypeSubscriptionPayment TransactionType = "subscription_payment"
	TransactionTypeRefund              TransactionType = "refund"
	TransactionTypeReferralReward      TransactionType = "referral_reward"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// Transaction is the ledger row. A completed transaction is immutable;
// corrections are new offsetting transactions, never edits.
type Transaction struct {
	ID       string // UUID
	TenantID string
	UserID   string
	Type     TransactionType

	// Amount in minor currency units, signed: deposits and rewards are
	// positive, subscription payments funded from balance are negative.
	Amount int64

	// Provider is the payment provider id, or "balance" for internal debits.
	Provider string

	// ExternalRef is the provider's idempotency key. Unique per
	// (tenant_id, provider, external_ref).
	ExternalRef string

	// Purchase parameters, set on subscription_payment rows so the state
	// machine can apply a completed purchase without a side channel.
	PeriodDays   int
	TrafficLimit int64
	DeviceLimit  int

	Status      TransactionStatus
	FailReason  string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// IsTerminal reports whether the transaction reached a final status.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusCompleted || t.Status == TransactionStatusFailed
}

// AffectsBalance reports whether completion credits/debits the user balance.
func (t *Transaction) AffectsBalance() bool {
	switch t.Type {
	case TransactionTypeDeposit, TransactionTypeReferralReward, TransactionTypeRefund:
		return true
	case TransactionTypeSubscriptionPayment:
		// Balance-funded purchases carry a negative amount; provider-funded
		// purchases settle externally and leave the balance untouched.
		return t.Amount < 0
	}
	return false
}
