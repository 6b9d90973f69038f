package repository

import (
	"context"
	"time"

	"telegram-vpn-billing/internal/domain/model"
)

// TransactionRepository persists ledger rows. Status moves are conditional
// single-row updates: zero rows affected means the row already left pending.
type TransactionRepository interface {
	Save(ctx context.Context, tx Tx, t *model.Transaction) error
	FindByID(ctx context.Context, tx Tx, tenantID, id string) (*model.Transaction, error)
	FindByExternalRef(ctx context.Context, tx Tx, tenantID, provider, externalRef string) (*model.Transaction, error)

	// CompleteIfPending sets status=completed with completed_at only when the
	// row is still pending. Returns false when the row was already terminal.
	CompleteIfPending(ctx context.Context, tx Tx, tenantID, id string, completedAt time.Time) (bool, error)

	// FailIfPending is the failure counterpart of CompleteIfPending.
	FailIfPending(ctx context.Context, tx Tx, tenantID, id string, reason string) (bool, error)

	// SumCompletedByUser returns the lifetime spend of a user over completed
	// deposit/subscription_payment rows (absolute amounts).
	SumCompletedByUser(ctx context.Context, tx Tx, tenantID, userID string) (int64, error)

	// SumCompletedByPeriod aggregates completed revenue since the start of
	// the given period ("day", "week", "month").
	SumCompletedByPeriod(ctx context.Context, tx Tx, tenantID, period string) (int64, error)

	ListByUser(ctx context.Context, tx Tx, tenantID, userID string, limit int) ([]*model.Transaction, error)
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Transaction, error)
}
