package repository

import (
	"context"

	"telegram-vpn-billing/internal/domain/model"
)

type PromoGroupRepository interface {
	Save(ctx context.Context, tx Tx, g *model.PromoGroup) error
	FindByID(ctx context.Context, tx Tx, tenantID, id string) (*model.PromoGroup, error)
	ListByTenant(ctx context.Context, tx Tx, tenantID string) ([]*model.PromoGroup, error)

	// FindBestForSpend returns the highest-priority group whose threshold is
	// covered by the given lifetime spend, or ErrNotFound.
	FindBestForSpend(ctx context.Context, tx Tx, tenantID string, spend int64) (*model.PromoGroup, error)
}

type PromoCodeRepository interface {
	Save(ctx context.Context, tx Tx, c *model.PromoCode) error
	FindByCode(ctx context.Context, tx Tx, tenantID, code string) (*model.PromoCode, error)

	// IncrementUsesIfAvailable bumps current_uses only while it is below
	// max_uses; false means the code is exhausted.
	IncrementUsesIfAvailable(ctx context.Context, tx Tx, tenantID, id string) (bool, error)

	// SaveUse inserts the (code, user) junction row; the unique constraint
	// maps to ErrPromoCodeUsed on conflict.
	SaveUse(ctx context.Context, tx Tx, use *model.PromoCodeUse) error
}

type DiscountOfferRepository interface {
	Save(ctx context.Context, tx Tx, o *model.DiscountOffer) error
	ListActiveByUser(ctx context.Context, tx Tx, tenantID, userID string) ([]*model.DiscountOffer, error)
	MarkUsed(ctx context.Context, tx Tx, tenantID, id string) error
}
