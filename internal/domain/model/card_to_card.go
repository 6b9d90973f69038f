package model

import "time"

type CardToCardStatus string

const (
	CardToCardStatusPending  CardToCardStatus = "pending"
	CardToCardStatusApproved CardToCardStatus = "approved"
	CardToCardStatusRejected CardToCardStatus = "rejected"
)

// CardToCardPayment is the manual-review variant of a payment attempt. Status
// transitions only by an authorized reviewer and is terminal once decided.
type CardToCardPayment struct {
	ID            string // UUID
	TenantID      string
	TransactionID string
	UserID        string

	// TrackingNumber is the user-facing ULID quoted in support chats.
	TrackingNumber string

	// Receipt is an image reference or free text attached by the user.
	Receipt string

	Amount     int64
	Status     CardToCardStatus
	ReviewerID *string
	ReviewedAt *time.Time
	CreatedAt  time.Time
}

// Decided reports whether a reviewer already acted on this payment.
func (p *CardToCardPayment) Decided() bool {
	return p.Status != CardToCardStatusPending
}
