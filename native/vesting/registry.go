package vesting

import "math/big"

// RequestedAmount resolves the grant size for a reservation request. Most
// tiers size grants as PerUnitAmount * multiplier; the single direct-amount
// tier takes the caller-supplied amount verbatim. The branching is an
// intentional per-tier rule, dispatched on category identity.
func (c *Category) RequestedAmount(value *big.Int) (*big.Int, error) {
	if c == nil {
		return nil, ErrCategoryNotFound
	}
	if value == nil || value.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if c.DirectAmount {
		return new(big.Int).Set(value), nil
	}
	if c.PerUnitAmount == nil || c.PerUnitAmount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	return new(big.Int).Mul(c.PerUnitAmount, value), nil
}

// Reserve consumes one beneficiary slot and the requested amount from the
// tier's remaining allocation. The caller must persist the mutated category
// in the same atomic unit as the pool insertion it funds.
func (c *Category) Reserve(amount *big.Int) error {
	if c == nil {
		return ErrCategoryNotFound
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if c.SlotsRemaining == 0 {
		return ErrCategoryExhausted
	}
	if c.AllocationRemaining == nil || c.AllocationRemaining.Cmp(amount) < 0 {
		return ErrInsufficientAllocation
	}
	c.SlotsRemaining--
	c.AllocationRemaining = new(big.Int).Sub(c.AllocationRemaining, amount)
	return nil
}
