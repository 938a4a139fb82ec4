package domain

import "errors"

// Sentinel errors returned by storage adapters.
var (
	// ErrVersionConflict means the conditional update matched no row at the expected version.
	ErrVersionConflict = errors.New("wallet version conflict")
	// ErrTransient covers deadlocks and serialization failures that are safe to retry.
	ErrTransient = errors.New("transient storage conflict")
	// ErrDuplicateReference means a ledger entry with the same reference already exists.
	ErrDuplicateReference = errors.New("duplicate ledger reference")
	// ErrWalletExists means an active wallet with the same owner, name and currency exists.
	ErrWalletExists = errors.New("wallet already exists")
)
