package domain

import "errors"

// Not found: the referenced owner, account or transaction does not exist.
// These are terminal; the engine never journals or retries them.
var (
	ErrOwnerNotFound       = errors.New("owner not found")
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
)

// Conflicts: the request contradicts existing state.
var (
	ErrOwnershipMismatch          = errors.New("account does not belong to owner")
	ErrMaxAccountsPerOwner        = errors.New("owner already has the maximum number of accounts")
	ErrDuplicateAccountNumber     = errors.New("account number already taken")
	ErrAccountAlreadyClosed       = errors.New("account already unregistered")
	ErrTransactionAccountMismatch = errors.New("transaction does not belong to account")
)

// Business rule violations.
var (
	ErrInvalidAmount             = errors.New("amount must be positive")
	ErrAccountNotInUse           = errors.New("account is not in use")
	ErrInsufficientBalance       = errors.New("amount exceeds account balance")
	ErrCancelMustBeFull          = errors.New("cancel amount must match the original transaction amount")
	ErrTransactionNotCancellable = errors.New("only successful use transactions can be cancelled")
	ErrCancelTooOld              = errors.New("transaction is too old to cancel")
	ErrBalanceNotEmpty           = errors.New("account balance is not empty")
)

// ErrAccountBusy is returned when the per-account lock could not be acquired
// within the bounded wait. Callers may retry with their own backoff.
var ErrAccountBusy = errors.New("account is busy, try again")
