package repository

import (
	"context"

	"telegram-vpn-billing/internal/domain/model"
)

type TenantRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Tenant, error)
	ListActive(ctx context.Context, tx Tx) ([]*model.Tenant, error)
}

// TenantSettingsRepository reads the per-tenant configuration this core
// consumes: card details, referral defaults, discount tables, provider
// credentials. Read-only from this core's perspective.
type TenantSettingsRepository interface {
	Get(ctx context.Context, tenantID string) (*model.TenantSettings, error)
}
