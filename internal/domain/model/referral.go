package model

import "time"

// ReferralEarning links a referrer to one qualifying transaction of a referee.
// Unique on SourceTransactionID, so webhook retries cannot pay a commission
// twice. The payout itself is a referral_reward ledger transaction.
type ReferralEarning struct {
	ID       string // UUID
	TenantID string

	ReferrerID string
	RefereeID  string

	// SourceTransactionID is the referee's completed transaction that
	// earned the commission.
	SourceTransactionID string

	// RewardTransactionID is the referral_reward transaction crediting the
	// referrer, set once enqueued.
	RewardTransactionID string

	Amount  int64 // commission in minor units
	Percent int

	CreatedAt time.Time
}
