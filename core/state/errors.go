package state

import "errors"

var (
	errInvalidLedgerAmount = errors.New("state: ledger amount must be positive")

	// ErrLedgerInsufficient marks a refused transfer, as opposed to a
	// storage failure.
	ErrLedgerInsufficient = errors.New("state: insufficient balance")
)
