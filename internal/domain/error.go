package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrInvalidExecContext = errors.New("invalid query execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Money-path errors
	ErrValidation          = errors.New("validation failed")
	ErrDuplicateEvent      = errors.New("duplicate event")
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrUnknownProviderRef  = errors.New("unknown provider reference")
	ErrAlreadyTerminal     = errors.New("transaction already terminal")
	ErrAlreadyReviewed     = errors.New("payment already reviewed")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrPromoCodeExhausted  = errors.New("promo code exhausted")
	ErrPromoCodeUsed       = errors.New("promo code already used by this user")

	// Subscription lifecycle errors
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrInvalidTransition    = errors.New("invalid subscription state transition")
	ErrTrialAlreadyUsed     = errors.New("trial already activated")

	// Infrastructure errors
	ErrLockNotAcquired = errors.New("distributed lock not acquired")
)
