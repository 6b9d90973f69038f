package model

import "time"

// PriceComponent names the part of a quote a percentage discount applies to.
type PriceComponent string

const (
	PriceComponentServer  PriceComponent = "server"
	PriceComponentTraffic PriceComponent = "traffic"
	PriceComponentDevice  PriceComponent = "device"
)

// PromoGroup is a named discount tier. Users are auto-assigned the highest
// priority group whose spend threshold they have crossed; assignment never
// downgrades automatically.
type PromoGroup struct {
	ID       string // UUID
	TenantID string
	Name     string

	// Priority orders groups; a higher value wins when several thresholds
	// are crossed.
	Priority int

	// SpendThreshold is the lifetime spend (minor units) required for
	// auto-assignment. Zero marks the default group.
	SpendThreshold int64

	// Percentage discounts per price component.
	ServerDiscount  int
	TrafficDiscount int
	DeviceDiscount  int

	CreatedAt time.Time
}

// DiscountFor returns the group's percentage discount for a component.
func (g *PromoGroup) DiscountFor(c PriceComponent) int {
	switch c {
	case PriceComponentServer:
		return g.ServerDiscount
	case PriceComponentTraffic:
		return g.TrafficDiscount
	case PriceComponentDevice:
		return g.DeviceDiscount
	}
	return 0
}

// PromoCode grants balance or a group membership on redemption.
// CurrentUses never exceeds MaxUses; the increment is a conditional update.
type PromoCode struct {
	ID       string // UUID
	TenantID string
	Code     string

	// BalanceBonus in minor units credited on redemption, 0 for none.
	BalanceBonus int64

	// GroupID optionally moves the redeemer into a promo group.
	GroupID *string

	MaxUses     int
	CurrentUses int
	ExpiresAt   *time.Time
	CreatedAt   time.Time
}

// PromoCodeUse is the junction row created exactly once per (code, user),
// enforced by a unique constraint rather than application logic alone.
type PromoCodeUse struct {
	ID        string // UUID
	TenantID  string
	CodeID    string
	UserID    string
	CreatedAt time.Time
}

// DiscountOffer is a time-limited personal discount, distinct from group
// discounts. When several are somehow active the highest percent wins.
type DiscountOffer struct {
	ID       string // UUID
	TenantID string
	UserID   string
	Percent  int

	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// ActiveAt reports whether the offer can still be applied.
func (o *DiscountOffer) ActiveAt(now time.Time) bool {
	return o.UsedAt == nil && o.ExpiresAt.After(now)
}
