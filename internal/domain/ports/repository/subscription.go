package repository

import (
	"context"
	"time"

	"telegram-vpn-billing/internal/domain/model"
)

type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.Subscription) error
	FindByUser(ctx context.Context, tx Tx, tenantID, userID string) (*model.Subscription, error)
	FindByID(ctx context.Context, tx Tx, tenantID, id string) (*model.Subscription, error)

	// UpdateStatusIf transitions status only when the current status matches
	// one of the expected values. Zero rows affected returns false.
	UpdateStatusIf(ctx context.Context, tx Tx, tenantID, id string, to model.SubscriptionStatus, from ...model.SubscriptionStatus) (bool, error)

	ListExpired(ctx context.Context, tx Tx, now time.Time, limit int) ([]*model.Subscription, error)
	ListAutopayDue(ctx context.Context, tx Tx, within time.Duration, limit int) ([]*model.Subscription, error)

	CountByStatus(ctx context.Context, tx Tx, tenantID string) (map[model.SubscriptionStatus]int, error)
}
