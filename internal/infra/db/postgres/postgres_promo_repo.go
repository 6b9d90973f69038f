package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-vpn-billing/internal/domain"
	"telegram-vpn-billing/internal/domain/model"
	"telegram-vpn-billing/internal/domain/ports/repository"
)

var (
	_ repository.PromoGroupRepository    = (*promoGroupRepo)(nil)
	_ repository.PromoCodeRepository     = (*promoCodeRepo)(nil)
	_ repository.DiscountOfferRepository = (*discountOfferRepo)(nil)
)

type promoGroupRepo struct{ pool *pgxpool.Pool }

func NewPromoGroupRepo(pool *pgxpool.Pool) *promoGroupRepo {
	return &promoGroupRepo{pool: pool}
}

const promoGroupCols = `id, tenant_id, name, priority, spend_threshold, server_discount, traffic_discount, device_discount, created_at`

func (r *promoGroupRepo) Save(ctx context.Context, tx repository.Tx, g *model.PromoGroup) error {
	const q = `
INSERT INTO promo_groups (
  id, tenant_id, name, priority, spend_threshold, server_discount, traffic_discount, device_discount, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9
) ON CONFLICT (id) DO UPDATE SET
  name=$3, priority=$4, spend_threshold=$5, server_discount=$6, traffic_discount=$7, device_discount=$8;`
	_, err := execSQL(ctx, r.pool, tx, q,
		g.ID, g.TenantID, g.Name, g.Priority, g.SpendThreshold,
		g.ServerDiscount, g.TrafficDiscount, g.DeviceDiscount, g.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *promoGroupRepo) FindByID(ctx context.Context, tx repository.Tx, tenantID, id string) (*model.PromoGroup, error) {
	q := `SELECT ` + promoGroupCols + ` FROM promo_groups WHERE tenant_id=$1 AND id=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, tenantID, id)
	if err != nil {
		return nil, err
	}
	return scanPromoGroup(row)
}

func (r *promoGroupRepo) ListByTenant(ctx context.Context, tx repository.Tx, tenantID string) ([]*model.PromoGroup, error) {
	q := `SELECT ` + promoGroupCols + ` FROM promo_groups WHERE tenant_id=$1 ORDER BY priority DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, tenantID)
	if err != nil {
		return nil, mapQueryErr(err)
	}
	defer rows.Close()

	var out []*model.PromoGroup
	for rows.Next() {
		g := &model.PromoGroup{}
		if err := rows.Scan(&g.ID, &g.TenantID, &g.Name, &g.Priority, &g.SpendThreshold,
			&g.ServerDiscount, &g.TrafficDiscount, &g.DeviceDiscount, &g.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, g)
	}
	return out, nil
}

func (r *promoGroupRepo) FindBestForSpend(ctx context.Context, tx repository.Tx, tenantID string, spend int64) (*model.PromoGroup, error) {
	q := `SELECT ` + promoGroupCols + ` FROM promo_groups
 WHERE tenant_id=$1 AND spend_threshold <= $2
 ORDER BY priority DESC LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, tenantID, spend)
	if err != nil {
		return nil, err
	}
	return scanPromoGroup(row)
}

func scanPromoGroup(row pgx.Row) (*model.PromoGroup, error) {
	g := &model.PromoGroup{}
	err := row.Scan(&g.ID, &g.TenantID, &g.Name, &g.Priority, &g.SpendThreshold,
		&g.ServerDiscount, &g.TrafficDiscount, &g.DeviceDiscount, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return g, nil
}

type promoCodeRepo struct{ pool *pgxpool.Pool }

func NewPromoCodeRepo(pool *pgxpool.Pool) *promoCodeRepo {
	return &promoCodeRepo{pool: pool}
}

const promoCodeCols = `id, tenant_id, code, balance_bonus, group_id, max_uses, current_uses, expires_at, created_at`

func (r *promoCodeRepo) Save(ctx context.Context, tx repository.Tx, c *model.PromoCode) error {
	const q = `
INSERT INTO promo_codes (
  id, tenant_id, code, balance_bonus, group_id, max_uses, current_uses, expires_at, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9
);`
	_, err := execSQL(ctx, r.pool, tx, q,
		c.ID, c.TenantID, c.Code, c.BalanceBonus, c.GroupID, c.MaxUses, c.CurrentUses, c.ExpiresAt, c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *promoCodeRepo) FindByCode(ctx context.Context, tx repository.Tx, tenantID, code string) (*model.PromoCode, error) {
	q := `SELECT ` + promoCodeCols + ` FROM promo_codes WHERE tenant_id=$1 AND code=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, tenantID, code)
	if err != nil {
		return nil, err
	}
	c := &model.PromoCode{}
	err = row.Scan(&c.ID, &c.TenantID, &c.Code, &c.BalanceBonus, &c.GroupID,
		&c.MaxUses, &c.CurrentUses, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return c, nil
}

// IncrementUsesIfAvailable is the cap guard: the WHERE clause admits the
// increment only below max_uses, so concurrent redemptions past the cap
// affect zero rows.
func (r *promoCodeRepo) IncrementUsesIfAvailable(ctx context.Context, tx repository.Tx, tenantID, id string) (bool, error) {
	const q = `
UPDATE promo_codes SET current_uses = current_uses + 1
 WHERE tenant_id=$1 AND id=$2 AND current_uses < max_uses;`
	cmd, err := execSQL(ctx, r.pool, tx, q, tenantID, id)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *promoCodeRepo) SaveUse(ctx context.Context, tx repository.Tx, use *model.PromoCodeUse) error {
	const q = `
INSERT INTO promo_code_uses (id, tenant_id, code_id, user_id, created_at)
VALUES ($1,$2,$3,$4,$5);`
	_, err := execSQL(ctx, r.pool, tx, q, use.ID, use.TenantID, use.CodeID, use.UserID, use.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// (code_id, user_id): this user already redeemed the code.
			return domain.ErrPromoCodeUsed
		}
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

type discountOfferRepo struct{ pool *pgxpool.Pool }

func NewDiscountOfferRepo(pool *pgxpool.Pool) *discountOfferRepo {
	return &discountOfferRepo{pool: pool}
}

const discountOfferCols = `id, tenant_id, user_id, percent, expires_at, used_at, created_at`

func (r *discountOfferRepo) Save(ctx context.Context, tx repository.Tx, o *model.DiscountOffer) error {
	const q = `
INSERT INTO discount_offers (id, tenant_id, user_id, percent, expires_at, used_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7);`
	_, err := execSQL(ctx, r.pool, tx, q, o.ID, o.TenantID, o.UserID, o.Percent, o.ExpiresAt, o.UsedAt, o.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *discountOfferRepo) ListActiveByUser(ctx context.Context, tx repository.Tx, tenantID, userID string) ([]*model.DiscountOffer, error) {
	q := `SELECT ` + discountOfferCols + ` FROM discount_offers
 WHERE tenant_id=$1 AND user_id=$2 AND used_at IS NULL AND expires_at > NOW()
 ORDER BY percent DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, tenantID, userID)
	if err != nil {
		return nil, mapQueryErr(err)
	}
	defer rows.Close()

	var out []*model.DiscountOffer
	for rows.Next() {
		o := &model.DiscountOffer{}
		if err := rows.Scan(&o.ID, &o.TenantID, &o.UserID, &o.Percent, &o.ExpiresAt, &o.UsedAt, &o.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, o)
	}
	return out, nil
}

func (r *discountOfferRepo) MarkUsed(ctx context.Context, tx repository.Tx, tenantID, id string) error {
	const q = `UPDATE discount_offers SET used_at=NOW() WHERE tenant_id=$1 AND id=$2 AND used_at IS NULL;`
	_, err := execSQL(ctx, r.pool, tx, q, tenantID, id)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}
