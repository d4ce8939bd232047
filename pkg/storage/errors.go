package storage

import "errors"

// ErrInsufficientFunds is returned when a wallet has an insufficient balance for a transaction.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrNotFound is returned when an account, wallet, transaction or setting does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned for malformed input. Nothing is written.
var ErrValidation = errors.New("validation failed")

// ErrBelowMinimum is returned when an amount is under the configured minimum.
var ErrBelowMinimum = errors.New("amount below minimum")

// ErrRecipientNotFound is returned when a transfer recipient cannot be resolved.
var ErrRecipientNotFound = errors.New("recipient not found")

// ErrConflict is returned when a versioned record changed between read and write.
// Callers may retry the whole operation.
var ErrConflict = errors.New("concurrent modification")

// ErrBusy is returned when contention persisted beyond the retry budget.
var ErrBusy = errors.New("resource busy, retry later")

// ErrDuplicateEvent is returned when a commit's idempotency key was already applied.
var ErrDuplicateEvent = errors.New("event already processed")

// ErrAlreadyExists is returned when a unique email or referral code is taken.
var ErrAlreadyExists = errors.New("already exists")

// ErrInvalidState is returned when an account or transaction is not in a state that allows the operation.
var ErrInvalidState = errors.New("invalid state for operation")

// ErrInternal marks a violated ledger invariant. Nothing is written.
var ErrInternal = errors.New("internal ledger error")

// IsRejected reports whether err is a domain rejection that will fail the same
// way on redelivery. Queue consumers drop such messages instead of retrying.
// Busy is never a rejection.
func IsRejected(err error) bool {
	if errors.Is(err, ErrBusy) {
		return false
	}
	for _, target := range []error{
		ErrInsufficientFunds, ErrNotFound, ErrValidation, ErrBelowMinimum, ErrRecipientNotFound,
		ErrConflict, ErrDuplicateEvent, ErrAlreadyExists, ErrInvalidState, ErrInternal,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
