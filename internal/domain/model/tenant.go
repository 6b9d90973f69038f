package model

import "time"

// Tenant is the isolation boundary: one deployed storefront bot sharing the
// codebase but not data. Identity is immutable after creation; settings are not.
type Tenant struct {
	ID        string // UUID
	Name      string
	Active    bool
	CreatedAt time.Time
}

// TenantSettings carries the per-tenant inputs this core only reads:
// manual-payment card details, referral defaults and the period discount table.
// Provider credentials live here too, keyed by provider id.
type TenantSettings struct {
	TenantID string

	// Card-to-card details shown to the user on manual payment.
	CardNumber string
	CardHolder string

	// Default referral commission in percent, used when the referrer has
	// no per-user override.
	ReferralPercent int

	// PeriodDiscounts maps period length in days to a percentage discount.
	// Longer periods never carry a smaller discount.
	PeriodDiscounts map[int]int

	// BasePrices maps period length in days to the undiscounted server price
	// in minor units.
	BasePrices map[int]int64

	// Addon unit prices in minor units.
	TrafficGBPrice int64
	DevicePrice    int64

	// TrialDays is 0 when the tenant does not offer a trial.
	TrialDays int

	// Autopay sweep warns/renews when a subscription is within this window.
	AutopayWarnDays int

	// ProviderCredentials maps provider id to its secret material.
	ProviderCredentials map[string]ProviderCredentials
}

type ProviderCredentials struct {
	ShopID    string            `json:"shop_id" yaml:"shop_id"`
	SecretKey string            `json:"secret_key" yaml:"secret_key"`
	Extra     map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}
