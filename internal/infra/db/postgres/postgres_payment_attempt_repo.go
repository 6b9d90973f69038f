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

var _ repository.PaymentAttemptRepository = (*paymentAttemptRepo)(nil)

type paymentAttemptRepo struct{ pool *pgxpool.Pool }

func NewPaymentAttemptRepo(pool *pgxpool.Pool) *paymentAttemptRepo {
	return &paymentAttemptRepo{pool: pool}
}

const attemptCols = `id, tenant_id, transaction_id, provider, provider_ref, pay_url, status, created_at, updated_at, paid_at`

func (r *paymentAttemptRepo) Save(ctx context.Context, tx repository.Tx, a *model.PaymentAttempt) error {
	const q = `
INSERT INTO payment_attempts (
  id, tenant_id, transaction_id, provider, provider_ref, pay_url, status, created_at, updated_at, paid_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,NOW(),NOW(),$8
);`
	_, err := execSQL(ctx, r.pool, tx, q,
		a.ID, a.TenantID, a.TransactionID, a.Provider, a.ProviderRef, a.PayURL, a.Status, a.PaidAt)
	if err != nil {
		if isUniqueViolation(err) {
			// (tenant_id, provider, provider_ref) or one attempt per
			// (transaction_id, provider).
			return domain.ErrDuplicateEvent
		}
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentAttemptRepo) FindByProviderRef(ctx context.Context, tx repository.Tx, tenantID, provider, providerRef string) (*model.PaymentAttempt, error) {
	q := `SELECT ` + attemptCols + ` FROM payment_attempts WHERE tenant_id=$1 AND provider=$2 AND provider_ref=$3 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, tenantID, provider, providerRef)
	if err != nil {
		return nil, err
	}
	return scanAttempt(row)
}

func (r *paymentAttemptRepo) FindByTransaction(ctx context.Context, tx repository.Tx, tenantID, transactionID string) ([]*model.PaymentAttempt, error) {
	q := `SELECT ` + attemptCols + ` FROM payment_attempts WHERE tenant_id=$1 AND transaction_id=$2;`
	rows, err := queryRows(ctx, r.pool, tx, q, tenantID, transactionID)
	if err != nil {
		return nil, mapQueryErr(err)
	}
	defer rows.Close()

	var out []*model.PaymentAttempt
	for rows.Next() {
		a := &model.PaymentAttempt{}
		if err := rows.Scan(&a.ID, &a.TenantID, &a.TransactionID, &a.Provider, &a.ProviderRef,
			&a.PayURL, &a.Status, &a.CreatedAt, &a.UpdatedAt, &a.PaidAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *paymentAttemptRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, tenantID, id string, status model.PaymentAttemptStatus, paidAt *time.Time) (bool, error) {
	const q = `
UPDATE payment_attempts
   SET status=$3, paid_at=COALESCE($4, paid_at), updated_at=NOW()
 WHERE tenant_id=$1 AND id=$2 AND status='pending';`
	cmd, err := execSQL(ctx, r.pool, tx, q, tenantID, id, status, paidAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func scanAttempt(row pgx.Row) (*model.PaymentAttempt, error) {
	a := &model.PaymentAttempt{}
	err := row.Scan(&a.ID, &a.TenantID, &a.TransactionID, &a.Provider, &a.ProviderRef,
		&a.PayURL, &a.Status, &a.CreatedAt, &a.UpdatedAt, &a.PaidAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return a, nil
}
