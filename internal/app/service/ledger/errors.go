package ledger

import "errors"

var (
	// ErrInvalidStateTransition is returned when a status update would move a
	// transaction out of a terminal status. The update is a no-op, which makes
	// webhook replay idempotent.
	ErrInvalidStateTransition = errors.New("invalid transaction state transition")

	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrNotRefundable is returned when a refund is requested for a
	// transaction that is not in completed status or not of a refundable type.
	ErrNotRefundable = errors.New("transaction is not refundable")
)
