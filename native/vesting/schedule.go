package vesting

import "math/big"

// UnlockedAmount returns the portion of the pool's amount that has unlocked
// by the given time. The result is non-decreasing in now for fixed pool state
// and reaches exactly pool.Amount at or after maturity, so no rounding dust
// is ever stranded in the terminal period.
//
// All arithmetic is integer with floor division; multiplications happen
// before divisions to avoid precision loss.
func UnlockedAmount(p *Pool, now int64) *big.Int {
	if p == nil || p.Amount == nil || p.Amount.Sign() <= 0 {
		return big.NewInt(0)
	}
	cliffEnd := p.Start + int64(p.Schedule.CliffSeconds)
	if now < cliffEnd {
		return big.NewInt(0)
	}
	amount := p.Amount

	initial := new(big.Int).Mul(amount, big.NewInt(int64(p.InitialUnlockBps)))
	initial.Quo(initial, big.NewInt(BpsDenominator))

	if p.Schedule.PeriodSeconds == 0 || p.Schedule.PeriodCount == 0 {
		// Degenerate schedule, everything past the cliff is unlocked.
		return new(big.Int).Set(amount)
	}
	// Periods elapse from the pool start; the cliff only gates claiming. A
	// pool whose cliff spans several periods unlocks all of them at once the
	// moment the cliff ends.
	elapsed := uint64(now - p.Start)
	elapsedPeriods := elapsed / p.Schedule.PeriodSeconds
	if elapsedPeriods >= p.Schedule.PeriodCount {
		return new(big.Int).Set(amount)
	}

	remainder := new(big.Int).Sub(amount, initial)
	vested := new(big.Int).Mul(remainder, new(big.Int).SetUint64(elapsedPeriods))
	vested.Quo(vested, new(big.Int).SetUint64(p.Schedule.PeriodCount))
	return vested.Add(vested, initial)
}

// ClaimableAmount returns the unlocked amount not yet claimed.
func ClaimableAmount(p *Pool, now int64) *big.Int {
	unlocked := UnlockedAmount(p, now)
	if p == nil || p.Claimed == nil {
		return unlocked
	}
	return unlocked.Sub(unlocked, p.Claimed)
}
