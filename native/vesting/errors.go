package vesting

import "errors"

var (
	ErrNilState     = errors.New("vesting: state not configured")
	ErrNilLedger    = errors.New("vesting: token ledger not configured")
	ErrUnauthorized = errors.New("vesting: missing capability")

	// Validation errors: the caller must correct the input.
	ErrZeroBeneficiary  = errors.New("vesting: beneficiary must not be zero")
	ErrInvalidAmount    = errors.New("vesting: amount must be positive")
	ErrInvalidSchedule  = errors.New("vesting: schedule requires positive period duration and count")
	ErrUnlockBpsTooHigh = errors.New("vesting: initial unlock bps above denominator")

	// Allocation errors: the request cannot be satisfied as specified.
	ErrCategoryNotFound       = errors.New("vesting: category not found")
	ErrCategoryExhausted      = errors.New("vesting: category beneficiary slots exhausted")
	ErrInsufficientAllocation = errors.New("vesting: category allocation insufficient")
	ErrNoParamsProvided       = errors.New("vesting: batch requires at least one request")
	ErrBatchSizeExceedsLimit  = errors.New("vesting: batch size exceeds limit")

	// Balance errors.
	ErrInsufficientBalance = errors.New("vesting: insufficient balance")

	// Claim errors: absence of entitlement versus exhausted-for-now
	// entitlement.
	ErrNoAllocationsFound = errors.New("vesting: no allocations for beneficiary")
	ErrZeroAmountToClaim  = errors.New("vesting: zero amount to claim")

	ErrNothingToWithdraw = errors.New("vesting: zero amount to withdraw")
)
