package repository

import (
	"context"

	"telegram-vpn-billing/internal/domain/model"
)

type ReferralEarningRepository interface {
	// Save inserts a new earning. The unique constraint on
	// source_transaction_id maps to ErrDuplicateEvent on conflict.
	Save(ctx context.Context, tx Tx, e *model.ReferralEarning) error

	FindBySourceTransaction(ctx context.Context, tx Tx, tenantID, transactionID string) (*model.ReferralEarning, error)
	ListByReferrer(ctx context.Context, tx Tx, tenantID, referrerID string, limit int) ([]*model.ReferralEarning, error)
	SumByReferrer(ctx context.Context, tx Tx, tenantID, referrerID string) (int64, error)
}
