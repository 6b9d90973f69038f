package adapter

import "context"

// Notifier delivers user-facing and operator-facing messages. The storefront
// bot is the usual implementation; tests use a recording fake.
type Notifier interface {
	// NotifyUser sends a message to the user identified by the messenger
	// external id.
	NotifyUser(ctx context.Context, externalID int64, text string) error

	// AlertOperator surfaces a condition that needs a human: exhausted
	// provider retries, signature failures, review queues piling up.
	AlertOperator(ctx context.Context, text string) error
}
