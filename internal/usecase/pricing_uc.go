// File: internal/usecase/pricing_uc.go
package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"telegram-vpn-billing/internal/domain"
	"telegram-vpn-billing/internal/domain/model"
	"telegram-vpn-billing/internal/domain/ports/repository"
)

var _ PricingUseCase = (*pricingUC)(nil)

// PriceBreakdown itemizes how a quote was computed, for the storefront to
// render and for InitiatePurchase to charge.
type PriceBreakdown struct {
	BasePrice       int64
	GroupPercent    int
	PeriodPercent   int
	PersonalPercent int
	OfferID         string // set when a personal offer participated
	FinalPrice      int64
	PeriodDays      int
}

// PricingUseCase is the discount engine: a pure computation over user, tenant
// and promo state. Precedence is fixed: promo group, then period length, then
// one personal offer, applied multiplicatively with a single floor at the end.
type PricingUseCase interface {
	PriceFor(ctx context.Context, tenantID, userID string, basePrice int64, periodDays int, component model.PriceComponent) (*PriceBreakdown, error)

	// ReevaluatePromoGroup upgrades the user's primary group when lifetime
	// spend crosses a higher-priority threshold. Never downgrades.
	ReevaluatePromoGroup(ctx context.Context, tx repository.Tx, tenantID, userID string) error
}

type pricingUC struct {
	users    repository.UserRepository
	groups   repository.PromoGroupRepository
	offers   repository.DiscountOfferRepository
	settings repository.TenantSettingsRepository
	log      *zerolog.Logger
}

func NewPricingUseCase(
	users repository.UserRepository,
	groups repository.PromoGroupRepository,
	offers repository.DiscountOfferRepository,
	settings repository.TenantSettingsRepository,
	logger *zerolog.Logger,
) *pricingUC {
	l := logger.With().Str("component", "PricingUC").Logger()
	return &pricingUC{users: users, groups: groups, offers: offers, settings: settings, log: &l}
}

func (u *pricingUC) PriceFor(ctx context.Context, tenantID, userID string, basePrice int64, periodDays int, component model.PriceComponent) (*PriceBreakdown, error) {
	if basePrice < 0 || periodDays <= 0 {
		return nil, domain.ErrInvalidArgument
	}

	bd := &PriceBreakdown{BasePrice: basePrice, PeriodDays: periodDays}

	user, err := u.users.FindByID(ctx, repository.NoTX, tenantID, userID)
	if err != nil {
		return nil, err
	}

	if user.PromoGroupID != nil {
		group, err := u.groups.FindByID(ctx, repository.NoTX, tenantID, *user.PromoGroupID)
		if err == nil {
			bd.GroupPercent = clampPercent(group.DiscountFor(component))
		} else if err != domain.ErrNotFound {
			return nil, err
		}
	}

	settings, err := u.settings.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	bd.PeriodPercent = periodDiscount(settings.PeriodDiscounts, periodDays)

	offers, err := u.offers.ListActiveByUser(ctx, repository.NoTX, tenantID, userID)
	if err != nil && err != domain.ErrNotFound {
		return nil, err
	}
	now := time.Now()
	for _, o := range offers {
		if !o.ActiveAt(now) {
			continue
		}
		if p := clampPercent(o.Percent); p > bd.PersonalPercent {
			bd.PersonalPercent = p
			bd.OfferID = o.ID
		}
	}

	bd.FinalPrice = applyDiscounts(basePrice, bd.GroupPercent, bd.PeriodPercent, bd.PersonalPercent)
	return bd, nil
}

// applyDiscounts multiplies the three percentage discounts and floors the
// result exactly once. Intermediate products stay integral so no per-step
// rounding drift accumulates.
func applyDiscounts(base int64, percents ...int) int64 {
	num := base
	den := int64(1)
	for _, p := range percents {
		num *= int64(100 - clampPercent(p))
		den *= 100
	}
	return num / den
}

// periodDiscount picks the discount of the largest table threshold that the
// requested period reaches.
func periodDiscount(table map[int]int, periodDays int) int {
	if len(table) == 0 {
		return 0
	}
	thresholds := make([]int, 0, len(table))
	for d := range table {
		thresholds = append(thresholds, d)
	}
	sort.Ints(thresholds)
	best := 0
	for _, d := range thresholds {
		if periodDays >= d {
			best = table[d]
		}
	}
	return clampPercent(best)
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func (u *pricingUC) ReevaluatePromoGroup(ctx context.Context, tx repository.Tx, tenantID, userID string) error {
	user, err := u.users.FindByID(ctx, tx, tenantID, userID)
	if err != nil {
		return err
	}

	best, err := u.groups.FindBestForSpend(ctx, tx, tenantID, user.LifetimeSpend)
	if err != nil {
		if err == domain.ErrNotFound {
			return nil
		}
		return err
	}

	// Upgrade only: keep the current group when it has equal or higher priority.
	if user.PromoGroupID != nil {
		current, err := u.groups.FindByID(ctx, tx, tenantID, *user.PromoGroupID)
		if err == nil && current.Priority >= best.Priority {
			return nil
		}
		if err != nil && err != domain.ErrNotFound {
			return err
		}
	}

	if err := u.users.SetPromoGroup(ctx, tx, tenantID, userID, best.ID); err != nil {
		return err
	}
	u.log.Info().Str("user_id", userID).Str("group_id", best.ID).Int64("lifetime_spend", user.LifetimeSpend).Msg("promo group upgraded")
	return nil
}
