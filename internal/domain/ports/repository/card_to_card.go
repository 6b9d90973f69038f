package repository

import (
	"context"
	"time"

	"telegram-vpn-billing/internal/domain/model"
)

type CardToCardRepository interface {
	Save(ctx context.Context, tx Tx, p *model.CardToCardPayment) error
	FindByTrackingNumber(ctx context.Context, tx Tx, tenantID, trackingNumber string) (*model.CardToCardPayment, error)
	ListPending(ctx context.Context, tx Tx, tenantID string, limit int) ([]*model.CardToCardPayment, error)

	AttachReceipt(ctx context.Context, tx Tx, tenantID, id, receipt string) error

	// DecideIfPending records the reviewer's decision only while the payment
	// is still pending. Two racing reviewers resolve to exactly one true.
	DecideIfPending(ctx context.Context, tx Tx, tenantID, id string, status model.CardToCardStatus, reviewerID string, reviewedAt time.Time) (bool, error)
}
