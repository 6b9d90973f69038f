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

var _ repository.UserRepository = (*userRepo)(nil)

type userRepo struct{ pool *pgxpool.Pool }

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

const userCols = `id, tenant_id, external_id, balance, lifetime_spend, referred_by_id, referral_percent, promo_group_id, trial_used_at, registered_at, last_active_at`

func (r *userRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (
  id, tenant_id, external_id, balance, lifetime_spend, referred_by_id, referral_percent, promo_group_id, trial_used_at, registered_at, last_active_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
) ON CONFLICT (id) DO UPDATE SET
  referred_by_id=$6, referral_percent=$7, promo_group_id=$8, trial_used_at=$9, last_active_at=$11;`
	_, err := execSQL(ctx, r.pool, tx, q,
		u.ID, u.TenantID, u.ExternalID, u.Balance, u.LifetimeSpend, u.ReferredByID,
		u.ReferralPercent, u.PromoGroupID, u.TrialUsedAt, u.RegisteredAt, u.LastActiveAt)
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

func (r *userRepo) FindByID(ctx context.Context, tx repository.Tx, tenantID, id string) (*model.User, error) {
	q := `SELECT ` + userCols + ` FROM users WHERE tenant_id=$1 AND id=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, tenantID, id)
	if err != nil {
		return nil, err
	}
	return scanUser(row)
}

func (r *userRepo) FindByExternalID(ctx context.Context, tx repository.Tx, tenantID string, externalID int64) (*model.User, error) {
	q := `SELECT ` + userCols + ` FROM users WHERE tenant_id=$1 AND external_id=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, tenantID, externalID)
	if err != nil {
		return nil, err
	}
	return scanUser(row)
}

// AdjustBalance applies the delta as a single atomic increment. Debits are
// guarded by the balance check in the WHERE clause; zero rows affected means
// the user would have gone negative.
func (r *userRepo) AdjustBalance(ctx context.Context, tx repository.Tx, tenantID, id string, delta int64) (bool, error) {
	const q = `
UPDATE users SET balance = balance + $3
 WHERE tenant_id=$1 AND id=$2 AND balance + $3 >= 0;`
	cmd, err := execSQL(ctx, r.pool, tx, q, tenantID, id, delta)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *userRepo) AddLifetimeSpend(ctx context.Context, tx repository.Tx, tenantID, id string, amount int64) error {
	const q = `UPDATE users SET lifetime_spend = lifetime_spend + $3 WHERE tenant_id=$1 AND id=$2;`
	_, err := execSQL(ctx, r.pool, tx, q, tenantID, id, amount)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *userRepo) SetPromoGroup(ctx context.Context, tx repository.Tx, tenantID, id, groupID string) error {
	const q = `UPDATE users SET promo_group_id=$3 WHERE tenant_id=$1 AND id=$2;`
	_, err := execSQL(ctx, r.pool, tx, q, tenantID, id, groupID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

// SetTrialUsed claims the trial flag; false when it was already claimed.
func (r *userRepo) SetTrialUsed(ctx context.Context, tx repository.Tx, tenantID, id string) (bool, error) {
	const q = `UPDATE users SET trial_used_at=NOW() WHERE tenant_id=$1 AND id=$2 AND trial_used_at IS NULL;`
	cmd, err := execSQL(ctx, r.pool, tx, q, tenantID, id)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *userRepo) ListReferrals(ctx context.Context, tx repository.Tx, tenantID, referrerID string) ([]*model.User, error) {
	q := `SELECT ` + userCols + ` FROM users WHERE tenant_id=$1 AND referred_by_id=$2 ORDER BY registered_at;`
	rows, err := queryRows(ctx, r.pool, tx, q, tenantID, referrerID)
	if err != nil {
		return nil, mapQueryErr(err)
	}
	defer rows.Close()

	var out []*model.User
	for rows.Next() {
		u := &model.User{}
		if err := rows.Scan(&u.ID, &u.TenantID, &u.ExternalID, &u.Balance, &u.LifetimeSpend,
			&u.ReferredByID, &u.ReferralPercent, &u.PromoGroupID, &u.TrialUsedAt, &u.RegisteredAt, &u.LastActiveAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, u)
	}
	return out, nil
}

func (r *userRepo) CountByTenant(ctx context.Context, tx repository.Tx, tenantID string) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM users WHERE tenant_id=$1;`, tenantID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.TenantID, &u.ExternalID, &u.Balance, &u.LifetimeSpend,
		&u.ReferredByID, &u.ReferralPercent, &u.PromoGroupID, &u.TrialUsedAt, &u.RegisteredAt, &u.LastActiveAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return u, nil
}
