// File: internal/usecase/ledger_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"telegram-vpn-billing/internal/domain"
	"telegram-vpn-billing/internal/domain/model"
	"telegram-vpn-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ LedgerUseCase = (*ledgerUC)(nil)

// LedgerUseCase is the single write path for balance-affecting state. Every
// credit and debit in the system is a transaction recorded pending and then
// completed or failed exactly once.
type LedgerUseCase interface {
	// RecordPending appends a pending transaction. ExternalRef duplicates
	// within (tenant, provider) surface as domain.ErrDuplicateEvent.
	RecordPending(ctx context.Context, tx repository.Tx, t *model.Transaction) (*model.Transaction, error)

	// Complete finalizes a pending transaction and applies its balance and
	// lifetime-spend effects atomically. Returns domain.ErrAlreadyTerminal
	// when the row already left pending.
	Complete(ctx context.Context, tx repository.Tx, tenantID, transactionID string) (*model.Transaction, error)

	// Fail marks a pending transaction failed with a reason.
	Fail(ctx context.Context, tx repository.Tx, tenantID, transactionID, reason string) error

	FindByExternalRef(ctx context.Context, tenantID, provider, externalRef string) (*model.Transaction, error)
	ListByUser(ctx context.Context, tenantID, userID string, limit int) ([]*model.Transaction, error)
	SumByPeriod(ctx context.Context, tenantID, period string) (int64, error)
	LifetimeSpend(ctx context.Context, tenantID, userID string) (int64, error)
}

type ledgerUC struct {
	transactions repository.TransactionRepository
	users        repository.UserRepository
	log          *zerolog.Logger
}

func NewLedgerUseCase(
	transactions repository.TransactionRepository,
	users repository.UserRepository,
	logger *zerolog.Logger,
) *ledgerUC {
	l := logger.With().Str("component", "LedgerUC").Logger()
	return &ledgerUC{transactions: transactions, users: users, log: &l}
}

func (u *ledgerUC) RecordPending(ctx context.Context, tx repository.Tx, t *model.Transaction) (*model.Transaction, error) {
	if t == nil || t.TenantID == "" || t.UserID == "" || t.Amount == 0 {
		return nil, domain.ErrInvalidArgument
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.Status = model.TransactionStatusPending
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if err := u.transactions.Save(ctx, tx, t); err != nil {
		return nil, err
	}
	u.log.Debug().Str("transaction_id", t.ID).Str("type", string(t.Type)).Int64("amount", t.Amount).Msg("pending transaction recorded")
	return t, nil
}

func (u *ledgerUC) Complete(ctx context.Context, tx repository.Tx, tenantID, transactionID string) (*model.Transaction, error) {
	t, err := u.transactions.FindByID(ctx, tx, tenantID, transactionID)
	if err != nil {
		return nil, err
	}
	now := time.Now()

	ok, err := u.transactions.CompleteIfPending(ctx, tx, tenantID, transactionID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrAlreadyTerminal
	}

	if t.AffectsBalance() {
		credited, err := u.users.AdjustBalance(ctx, tx, tenantID, t.UserID, t.Amount)
		if err != nil {
			return nil, err
		}
		if !credited {
			return nil, domain.ErrInsufficientBalance
		}
	}

	// Lifetime spend counts money the user put in or spent on subscriptions,
	// not rewards or refunds.
	switch t.Type {
	case model.TransactionTypeDeposit, model.TransactionTypeSubscriptionPayment:
		spend := t.Amount
		if spend < 0 {
			spend = -spend
		}
		if err := u.users.AddLifetimeSpend(ctx, tx, tenantID, t.UserID, spend); err != nil {
			return nil, err
		}
	}

	t.Status = model.TransactionStatusCompleted
	t.CompletedAt = &now
	u.log.Info().Str("transaction_id", t.ID).Str("type", string(t.Type)).Int64("amount", t.Amount).Msg("transaction completed")
	return t, nil
}

func (u *ledgerUC) Fail(ctx context.Context, tx repository.Tx, tenantID, transactionID, reason string) error {
	ok, err := u.transactions.FailIfPending(ctx, tx, tenantID, transactionID, reason)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrAlreadyTerminal
	}
	u.log.Info().Str("transaction_id", transactionID).Str("reason", reason).Msg("transaction failed")
	return nil
}

func (u *ledgerUC) FindByExternalRef(ctx context.Context, tenantID, provider, externalRef string) (*model.Transaction, error) {
	return u.transactions.FindByExternalRef(ctx, repository.NoTX, tenantID, provider, externalRef)
}

func (u *ledgerUC) ListByUser(ctx context.Context, tenantID, userID string, limit int) ([]*model.Transaction, error) {
	return u.transactions.ListByUser(ctx, repository.NoTX, tenantID, userID, limit)
}

func (u *ledgerUC) SumByPeriod(ctx context.Context, tenantID, period string) (int64, error) {
	return u.transactions.SumCompletedByPeriod(ctx, repository.NoTX, tenantID, period)
}

func (u *ledgerUC) LifetimeSpend(ctx context.Context, tenantID, userID string) (int64, error) {
	return u.transactions.SumCompletedByUser(ctx, repository.NoTX, tenantID, userID)
}
