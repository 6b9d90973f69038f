package model

import "time"

// User is identified by (TenantID, ExternalID). ExternalID is the messenger
// user id supplied by the storefront layer.
type User struct {
	ID         string // UUID
	TenantID   string
	ExternalID int64

	// Balance in minor currency units. Only the ledger mutates this field.
	Balance int64

	// LifetimeSpend accumulates completed purchase amounts; promo group
	// auto-assignment reads it against group thresholds.
	LifetimeSpend int64

	// ReferredByID links to the referrer's user ID. A referrer always
	// predates the referee, so the chain cannot be cyclic.
	ReferredByID *string

	// ReferralPercent overrides the tenant default when set.
	ReferralPercent *int

	// PromoGroupID is the primary (auto-assigned) promo group membership.
	PromoGroupID *string

	TrialUsedAt  *time.Time
	RegisteredAt time.Time
	LastActiveAt time.Time
}
