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

var _ repository.ReferralEarningRepository = (*referralEarningRepo)(nil)

type referralEarningRepo struct{ pool *pgxpool.Pool }

func NewReferralEarningRepo(pool *pgxpool.Pool) *referralEarningRepo {
	return &referralEarningRepo{pool: pool}
}

const referralCols = `id, tenant_id, referrer_id, referee_id, source_transaction_id, reward_transaction_id, amount, percent, created_at`

func (r *referralEarningRepo) Save(ctx context.Context, tx repository.Tx, e *model.ReferralEarning) error {
	const q = `
INSERT INTO referral_earnings (
  id, tenant_id, referrer_id, referee_id, source_transaction_id, reward_transaction_id, amount, percent, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9
);`
	_, err := execSQL(ctx, r.pool, tx, q,
		e.ID, e.TenantID, e.ReferrerID, e.RefereeID, e.SourceTransactionID,
		e.RewardTransactionID, e.Amount, e.Percent, e.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// source_transaction_id already rewarded.
			return domain.ErrDuplicateEvent
		}
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *referralEarningRepo) FindBySourceTransaction(ctx context.Context, tx repository.Tx, tenantID, transactionID string) (*model.ReferralEarning, error) {
	q := `SELECT ` + referralCols + ` FROM referral_earnings WHERE tenant_id=$1 AND source_transaction_id=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, tenantID, transactionID)
	if err != nil {
		return nil, err
	}
	return scanReferralEarning(row)
}

func (r *referralEarningRepo) ListByReferrer(ctx context.Context, tx repository.Tx, tenantID, referrerID string, limit int) ([]*model.ReferralEarning, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + referralCols + ` FROM referral_earnings
 WHERE tenant_id=$1 AND referrer_id=$2 ORDER BY created_at DESC LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, tenantID, referrerID, limit)
	if err != nil {
		return nil, mapQueryErr(err)
	}
	defer rows.Close()

	var out []*model.ReferralEarning
	for rows.Next() {
		e := &model.ReferralEarning{}
		if err := rows.Scan(&e.ID, &e.TenantID, &e.ReferrerID, &e.RefereeID, &e.SourceTransactionID,
			&e.RewardTransactionID, &e.Amount, &e.Percent, &e.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *referralEarningRepo) SumByReferrer(ctx context.Context, tx repository.Tx, tenantID, referrerID string) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount),0) FROM referral_earnings WHERE tenant_id=$1 AND referrer_id=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, tenantID, referrerID)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}

func scanReferralEarning(row pgx.Row) (*model.ReferralEarning, error) {
	e := &model.ReferralEarning{}
	err := row.Scan(&e.ID, &e.TenantID, &e.ReferrerID, &e.RefereeID, &e.SourceTransactionID,
		&e.RewardTransactionID, &e.Amount, &e.Percent, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return e, nil
}
