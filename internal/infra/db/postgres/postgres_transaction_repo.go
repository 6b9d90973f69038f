package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-vpn-billing/internal/domain"
	"telegram-vpn-billing/internal/domain/model"
	"telegram-vpn-billing/internal/domain/ports/repository"
)

var _ repository.TransactionRepository = (*transactionRepo)(nil)

type transactionRepo struct{ pool *pgxpool.Pool }

func NewTransactionRepo(pool *pgxpool.Pool) *transactionRepo {
	return &transactionRepo{pool: pool}
}

const transactionCols = `id, tenant_id, user_id, type, amount, provider, external_ref, period_days, traffic_limit, device_limit, status, fail_reason, created_at, completed_at`

func (r *transactionRepo) Save(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	const q = `
INSERT INTO transactions (
  id, tenant_id, user_id, type, amount, provider, external_ref, period_days, traffic_limit, device_limit, status, fail_reason, created_at, completed_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
);`
	_, err := execSQL(ctx, r.pool, tx, q,
		t.ID, t.TenantID, t.UserID, t.Type, t.Amount, t.Provider, t.ExternalRef,
		t.PeriodDays, t.TrafficLimit, t.DeviceLimit, t.Status, t.FailReason, t.CreatedAt, t.CompletedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// (tenant_id, provider, external_ref) collision: the provider
			// already opened this payment once.
			return domain.ErrDuplicateEvent
		}
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *transactionRepo) FindByID(ctx context.Context, tx repository.Tx, tenantID, id string) (*model.Transaction, error) {
	q := `SELECT ` + transactionCols + ` FROM transactions WHERE tenant_id=$1 AND id=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, tenantID, id)
	if err != nil {
		return nil, err
	}
	return scanTransaction(row)
}

func (r *transactionRepo) FindByExternalRef(ctx context.Context, tx repository.Tx, tenantID, provider, externalRef string) (*model.Transaction, error) {
	q := `SELECT ` + transactionCols + ` FROM transactions WHERE tenant_id=$1 AND provider=$2 AND external_ref=$3 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, tenantID, provider, externalRef)
	if err != nil {
		return nil, err
	}
	return scanTransaction(row)
}

// CompleteIfPending is the optimistic guard at the heart of reconciliation:
// the UPDATE matches only while the row is still pending, so a replay or a
// racing sweep affects zero rows and reports a conflict instead of mutating.
func (r *transactionRepo) CompleteIfPending(ctx context.Context, tx repository.Tx, tenantID, id string, completedAt time.Time) (bool, error) {
	const q = `
UPDATE transactions
   SET status='completed', completed_at=$3
 WHERE tenant_id=$1 AND id=$2 AND status='pending';`
	cmd, err := execSQL(ctx, r.pool, tx, q, tenantID, id, completedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *transactionRepo) FailIfPending(ctx context.Context, tx repository.Tx, tenantID, id string, reason string) (bool, error) {
	const q = `
UPDATE transactions
   SET status='failed', fail_reason=$3, completed_at=NOW()
 WHERE tenant_id=$1 AND id=$2 AND status='pending';`
	cmd, err := execSQL(ctx, r.pool, tx, q, tenantID, id, reason)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *transactionRepo) SumCompletedByUser(ctx context.Context, tx repository.Tx, tenantID, userID string) (int64, error) {
	const q = `
SELECT COALESCE(SUM(ABS(amount)),0) FROM transactions
 WHERE tenant_id=$1 AND user_id=$2 AND status='completed'
   AND type IN ('deposit','subscription_payment');`
	row, err := pickRow(ctx, r.pool, tx, q, tenantID, userID)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}

func (r *transactionRepo) SumCompletedByPeriod(ctx context.Context, tx repository.Tx, tenantID, period string) (int64, error) {
	const q = `
SELECT COALESCE(SUM(ABS(amount)),0) FROM transactions
 WHERE tenant_id=$1 AND status='completed'
   AND type IN ('deposit','subscription_payment')
   AND completed_at >= DATE_TRUNC($2, NOW());`
	row, err := pickRow(ctx, r.pool, tx, q, tenantID, period)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}

func (r *transactionRepo) ListByUser(ctx context.Context, tx repository.Tx, tenantID, userID string, limit int) ([]*model.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + transactionCols + ` FROM transactions WHERE tenant_id=$1 AND user_id=$2 ORDER BY created_at DESC LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, tenantID, userID, limit)
	if err != nil {
		return nil, mapQueryErr(err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (r *transactionRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + transactionCols + ` FROM transactions WHERE status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		return nil, mapQueryErr(err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	t := &model.Transaction{}
	err := row.Scan(&t.ID, &t.TenantID, &t.UserID, &t.Type, &t.Amount, &t.Provider, &t.ExternalRef,
		&t.PeriodDays, &t.TrafficLimit, &t.DeviceLimit, &t.Status, &t.FailReason, &t.CreatedAt, &t.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return t, nil
}

func scanTransactions(rows pgx.Rows) ([]*model.Transaction, error) {
	var out []*model.Transaction
	for rows.Next() {
		t := &model.Transaction{}
		err := rows.Scan(&t.ID, &t.TenantID, &t.UserID, &t.Type, &t.Amount, &t.Provider, &t.ExternalRef,
			&t.PeriodDays, &t.TrafficLimit, &t.DeviceLimit, &t.Status, &t.FailReason, &t.CreatedAt, &t.CompletedAt)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, t)
	}
	return out, nil
}

func mapQueryErr(err error) error {
	switch err {
	case pgx.ErrNoRows:
		return domain.ErrNotFound
	case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
		return err
	default:
		return domain.ErrOperationFailed
	}
}
