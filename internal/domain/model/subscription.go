package model

import "time"

type SubscriptionStatus string

const (
	SubscriptionStatusPending  SubscriptionStatus = "pending"
	SubscriptionStatusTrial    SubscriptionStatus = "trial"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusExpired  SubscriptionStatus = "expired"
	SubscriptionStatusDisabled SubscriptionStatus = "disabled"
)

// subscriptionTransitions is the authoritative transition table. Every status
// mutation goes through CanTransition; nothing re-enters pending once left.
var subscriptionTransitions = map[SubscriptionStatus][]SubscriptionStatus{
	SubscriptionStatusPending:  {SubscriptionStatusTrial, SubscriptionStatusActive},
	SubscriptionStatusTrial:    {SubscriptionStatusActive, SubscriptionStatusExpired, SubscriptionStatusDisabled},
	SubscriptionStatusActive:   {SubscriptionStatusActive, SubscriptionStatusExpired, SubscriptionStatusDisabled},
	SubscriptionStatusExpired:  {SubscriptionStatusActive, SubscriptionStatusDisabled},
	SubscriptionStatusDisabled: {},
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func CanTransition(from, to SubscriptionStatus) bool {
	for _, s := range subscriptionTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Subscription is one per (tenant_id, user_id), never deleted, only
// transitioned to expired/disabled.
type Subscription struct {
	ID       string // UUID
	TenantID string
	UserID   string

	Status    SubscriptionStatus
	StartDate time.Time
	EndDate   time.Time

	// TrafficLimit in bytes, 0 means unlimited.
	TrafficLimit int64
	TrafficUsed  int64
	DeviceLimit  int

	AutopayEnabled bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Remaining returns the time left until expiry, never negative.
func (s *Subscription) Remaining(now time.Time) time.Duration {
	if s.EndDate.Before(now) {
		return 0
	}
	return s.EndDate.Sub(now)
}

// ExtensionBase returns the moment a renewal extends from: the current end
// date while it is still in the future, otherwise now. Renewal never resets
// remaining paid time.
func (s *Subscription) ExtensionBase(now time.Time) time.Time {
	if s.EndDate.After(now) {
		return s.EndDate
	}
	return now
}
