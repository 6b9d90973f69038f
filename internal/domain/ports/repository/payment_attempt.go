package repository

import (
	"context"
	"time"

	"telegram-vpn-billing/internal/domain/model"
)

type PaymentAttemptRepository interface {
	Save(ctx context.Context, tx Tx, a *model.PaymentAttempt) error
	FindByProviderRef(ctx context.Context, tx Tx, tenantID, provider, providerRef string) (*model.PaymentAttempt, error)
	FindByTransaction(ctx context.Context, tx Tx, tenantID, transactionID string) ([]*model.PaymentAttempt, error)

	// UpdateStatusIfPending transitions the attempt only while it is still
	// pending; zero rows affected returns false.
	UpdateStatusIfPending(ctx context.Context, tx Tx, tenantID, id string, status model.PaymentAttemptStatus, paidAt *time.Time) (bool, error)
}
