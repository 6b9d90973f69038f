package repository

import (
	"context"

	"telegram-vpn-billing/internal/domain/model"
)

type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, tenantID, id string) (*model.User, error)
	FindByExternalID(ctx context.Context, tx Tx, tenantID string, externalID int64) (*model.User, error)

	// AdjustBalance applies a signed delta atomically. When the delta is
	// negative the update is guarded by balance >= -delta; false means the
	// guard failed (insufficient balance).
	AdjustBalance(ctx context.Context, tx Tx, tenantID, id string, delta int64) (bool, error)

	// AddLifetimeSpend accumulates completed purchase volume.
	AddLifetimeSpend(ctx context.Context, tx Tx, tenantID, id string, amount int64) error

	SetPromoGroup(ctx context.Context, tx Tx, tenantID, id, groupID string) error
	SetTrialUsed(ctx context.Context, tx Tx, tenantID, id string) (bool, error)

	ListReferrals(ctx context.Context, tx Tx, tenantID, referrerID string) ([]*model.User, error)
	CountByTenant(ctx context.Context, tx Tx, tenantID string) (int, error)
}
