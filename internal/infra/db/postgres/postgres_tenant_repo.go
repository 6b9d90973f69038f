package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-vpn-billing/internal/domain"
	"telegram-vpn-billing/internal/domain/model"
	"telegram-vpn-billing/internal/domain/ports/repository"
)

var (
	_ repository.TenantRepository         = (*tenantRepo)(nil)
	_ repository.TenantSettingsRepository = (*tenantSettingsRepo)(nil)
)

type tenantRepo struct{ pool *pgxpool.Pool }

func NewTenantRepo(pool *pgxpool.Pool) *tenantRepo {
	return &tenantRepo{pool: pool}
}

func (r *tenantRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Tenant, error) {
	row, err := pickRow(ctx, r.pool, tx,
		`SELECT id, name, active, created_at FROM tenants WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	t := &model.Tenant{}
	if err := row.Scan(&t.ID, &t.Name, &t.Active, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return t, nil
}

func (r *tenantRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Tenant, error) {
	rows, err := queryRows(ctx, r.pool, tx,
		`SELECT id, name, active, created_at FROM tenants WHERE active ORDER BY created_at;`)
	if err != nil {
		return nil, mapQueryErr(err)
	}
	defer rows.Close()

	var out []*model.Tenant
	for rows.Next() {
		t := &model.Tenant{}
		if err := rows.Scan(&t.ID, &t.Name, &t.Active, &t.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, t)
	}
	return out, nil
}

type tenantSettingsRepo struct{ pool *pgxpool.Pool }

func NewTenantSettingsRepo(pool *pgxpool.Pool) *tenantSettingsRepo {
	return &tenantSettingsRepo{pool: pool}
}

// Get reads the settings row. The discount table, price table and provider
// credentials live in JSONB columns; JSON object keys are strings, so the
// day-keyed tables are converted back to int keys on the way out.
func (r *tenantSettingsRepo) Get(ctx context.Context, tenantID string) (*model.TenantSettings, error) {
	const q = `
SELECT tenant_id, card_number, card_holder, referral_percent,
       period_discounts, base_prices, traffic_gb_price, device_price,
       trial_days, autopay_warn_days, provider_credentials
  FROM tenant_settings WHERE tenant_id=$1;`
	row, err := pickRow(ctx, r.pool, nil, q, tenantID)
	if err != nil {
		return nil, err
	}

	s := &model.TenantSettings{}
	var periodDiscounts, basePrices, providerCreds []byte
	err = row.Scan(&s.TenantID, &s.CardNumber, &s.CardHolder, &s.ReferralPercent,
		&periodDiscounts, &basePrices, &s.TrafficGBPrice, &s.DevicePrice,
		&s.TrialDays, &s.AutopayWarnDays, &providerCreds)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}

	if s.PeriodDiscounts, err = decodeIntKeyed[int](periodDiscounts); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	if s.BasePrices, err = decodeIntKeyed[int64](basePrices); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	if len(providerCreds) > 0 {
		if err := json.Unmarshal(providerCreds, &s.ProviderCredentials); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return s, nil
}

func decodeIntKeyed[V int | int64](raw []byte) (map[int]V, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var byDay map[string]V
	if err := json.Unmarshal(raw, &byDay); err != nil {
		return nil, err
	}
	out := make(map[int]V, len(byDay))
	for k, v := range byDay {
		day, err := strconv.Atoi(k)
		if err != nil {
			return nil, err
		}
		out[day] = v
	}
	return out, nil
}
