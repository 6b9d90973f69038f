package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-vpn-billing/internal/domain"
	"telegram-vpn-billing/internal/domain/model"
	"telegram-vpn-billing/internal/domain/ports/repository"
)

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct{ pool *pgxpool.Pool }

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionCols = `id, tenant_id, user_id, status, start_date, end_date, traffic_limit, traffic_used, device_limit, autopay_enabled, created_at, updated_at`

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (
  id, tenant_id, user_id, status, start_date, end_date, traffic_limit, traffic_used, device_limit, autopay_enabled, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
) ON CONFLICT (id) DO UPDATE SET
  status=$4, start_date=$5, end_date=$6, traffic_limit=$7, traffic_used=$8, device_limit=$9, autopay_enabled=$10, updated_at=$12;`
	_, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.TenantID, s.UserID, s.Status, s.StartDate, s.EndDate,
		s.TrafficLimit, s.TrafficUsed, s.DeviceLimit, s.AutopayEnabled, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// One subscription per (tenant_id, user_id).
			return domain.ErrAlreadyExists
		}
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *subscriptionRepo) FindByUser(ctx context.Context, tx repository.Tx, tenantID, userID string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionCols + ` FROM subscriptions WHERE tenant_id=$1 AND user_id=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, tenantID, userID)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, tenantID, id string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionCols + ` FROM subscriptions WHERE tenant_id=$1 AND id=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, tenantID, id)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

func (r *subscriptionRepo) UpdateStatusIf(ctx context.Context, tx repository.Tx, tenantID, id string, to model.SubscriptionStatus, from ...model.SubscriptionStatus) (bool, error) {
	if len(from) == 0 {
		return false, domain.ErrInvalidArgument
	}
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = "'" + string(s) + "'"
	}
	q := `UPDATE subscriptions SET status=$3, updated_at=NOW()
 WHERE tenant_id=$1 AND id=$2 AND status IN (` + strings.Join(states, ",") + `);`
	cmd, err := execSQL(ctx, r.pool, tx, q, tenantID, id, to)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *subscriptionRepo) ListExpired(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Subscription, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + subscriptionCols + ` FROM subscriptions
 WHERE status IN ('active','trial') AND end_date < $1 ORDER BY end_date ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, now, limit)
	if err != nil {
		return nil, mapQueryErr(err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func (r *subscriptionRepo) ListAutopayDue(ctx context.Context, tx repository.Tx, within time.Duration, limit int) ([]*model.Subscription, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + subscriptionCols + ` FROM subscriptions
 WHERE status='active' AND autopay_enabled AND end_date BETWEEN NOW() AND NOW() + $1
 ORDER BY end_date ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, within, limit)
	if err != nil {
		return nil, mapQueryErr(err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func (r *subscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx, tenantID string) (map[model.SubscriptionStatus]int, error) {
	rows, err := queryRows(ctx, r.pool, tx,
		`SELECT status, COUNT(*) FROM subscriptions WHERE tenant_id=$1 GROUP BY status;`, tenantID)
	if err != nil {
		return nil, mapQueryErr(err)
	}
	defer rows.Close()

	out := make(map[model.SubscriptionStatus]int)
	for rows.Next() {
		var s model.SubscriptionStatus
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out[s] = n
	}
	return out, nil
}

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	s := &model.Subscription{}
	err := row.Scan(&s.ID, &s.TenantID, &s.UserID, &s.Status, &s.StartDate, &s.EndDate,
		&s.TrafficLimit, &s.TrafficUsed, &s.DeviceLimit, &s.AutopayEnabled, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return s, nil
}

func scanSubscriptions(rows pgx.Rows) ([]*model.Subscription, error) {
	var out []*model.Subscription
	for rows.Next() {
		s := &model.Subscription{}
		err := rows.Scan(&s.ID, &s.TenantID, &s.UserID, &s.Status, &s.StartDate, &s.EndDate,
			&s.TrafficLimit, &s.TrafficUsed, &s.DeviceLimit, &s.AutopayEnabled, &s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, s)
	}
	return out, nil
}
