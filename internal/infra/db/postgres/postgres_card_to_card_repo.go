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

var _ repository.CardToCardRepository = (*cardToCardRepo)(nil)

type cardToCardRepo struct{ pool *pgxpool.Pool }

func NewCardToCardRepo(pool *pgxpool.Pool) *cardToCardRepo {
	return &cardToCardRepo{pool: pool}
}

const cardToCardCols = `id, tenant_id, transaction_id, user_id, tracking_number, receipt, amount, status, reviewer_id, reviewed_at, created_at`

func (r *cardToCardRepo) Save(ctx context.Context, tx repository.Tx, p *model.CardToCardPayment) error {
	const q = `
INSERT INTO card_to_card_payments (
  id, tenant_id, transaction_id, user_id, tracking_number, receipt, amount, status, reviewer_id, reviewed_at, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
);`
	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.TenantID, p.TransactionID, p.UserID, p.TrackingNumber, p.Receipt,
		p.Amount, p.Status, p.ReviewerID, p.ReviewedAt, p.CreatedAt)
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

func (r *cardToCardRepo) FindByTrackingNumber(ctx context.Context, tx repository.Tx, tenantID, trackingNumber string) (*model.CardToCardPayment, error) {
	q := `SELECT ` + cardToCardCols + ` FROM card_to_card_payments WHERE tenant_id=$1 AND tracking_number=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, tenantID, trackingNumber)
	if err != nil {
		return nil, err
	}
	return scanCardToCard(row)
}

func (r *cardToCardRepo) ListPending(ctx context.Context, tx repository.Tx, tenantID string, limit int) ([]*model.CardToCardPayment, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + cardToCardCols + ` FROM card_to_card_payments
 WHERE tenant_id=$1 AND status='pending' ORDER BY created_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, tenantID, limit)
	if err != nil {
		return nil, mapQueryErr(err)
	}
	defer rows.Close()

	var out []*model.CardToCardPayment
	for rows.Next() {
		p := &model.CardToCardPayment{}
		if err := rows.Scan(&p.ID, &p.TenantID, &p.TransactionID, &p.UserID, &p.TrackingNumber,
			&p.Receipt, &p.Amount, &p.Status, &p.ReviewerID, &p.ReviewedAt, &p.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *cardToCardRepo) AttachReceipt(ctx context.Context, tx repository.Tx, tenantID, id, receipt string) error {
	const q = `UPDATE card_to_card_payments SET receipt=$3 WHERE tenant_id=$1 AND id=$2;`
	_, err := execSQL(ctx, r.pool, tx, q, tenantID, id, receipt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

// DecideIfPending moves the payment out of pending exactly once; a second
// reviewer racing on the same row affects zero rows.
func (r *cardToCardRepo) DecideIfPending(ctx context.Context, tx repository.Tx, tenantID, id string, status model.CardToCardStatus, reviewerID string, reviewedAt time.Time) (bool, error) {
	const q = `
UPDATE card_to_card_payments
   SET status=$3, reviewer_id=$4, reviewed_at=$5
 WHERE tenant_id=$1 AND id=$2 AND status='pending';`
	cmd, err := execSQL(ctx, r.pool, tx, q, tenantID, id, status, reviewerID, reviewedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func scanCardToCard(row pgx.Row) (*model.CardToCardPayment, error) {
	p := &model.CardToCardPayment{}
	err := row.Scan(&p.ID, &p.TenantID, &p.TransactionID, &p.UserID, &p.TrackingNumber,
		&p.Receipt, &p.Amount, &p.Status, &p.ReviewerID, &p.ReviewedAt, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}
