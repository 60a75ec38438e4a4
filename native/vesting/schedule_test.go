package vesting

import (
	"math/big"
	"testing"
)

const day = int64(24 * 60 * 60)

func testPool(amount int64, start int64, cliff, period, count uint64, bps uint32) *Pool {
	return &Pool{
		Beneficiary: [20]byte{0x01},
		Amount:      big.NewInt(amount),
		Start:       start,
		Schedule: Schedule{
			CliffSeconds:  cliff,
			PeriodSeconds: period,
			PeriodCount:   count,
		},
		InitialUnlockBps: bps,
		Claimed:          big.NewInt(0),
	}
}

func TestUnlockedAmountInitialUnlock(t *testing.T) {
	// 1200 tokens, 10% initial unlock, 12 monthly periods, no cliff.
	pool := testPool(1200, 0, 0, uint64(30*day), 12, 1000)

	cases := []struct {
		now  int64
		want int64
	}{
		{0, 120},
		{29 * day, 120},
		{30 * day, 210},
		{59 * day, 210},
		{330 * day, 1110},
		{360 * day, 1200},
		{400 * day, 1200},
	}
	for _, tc := range cases {
		got := UnlockedAmount(pool, tc.now)
		if got.Int64() != tc.want {
			t.Fatalf("unlocked at t=%d: got %s want %d", tc.now, got, tc.want)
		}
	}
}

func TestUnlockedAmountCliff(t *testing.T) {
	// 90 day cliff over 12 monthly periods with no initial unlock. The three
	// periods spanned by the cliff unlock together the moment it ends.
	pool := testPool(1200, 0, uint64(90*day), uint64(30*day), 12, 0)

	if got := UnlockedAmount(pool, 60*day); got.Sign() != 0 {
		t.Fatalf("expected zero before cliff, got %s", got)
	}
	if got := UnlockedAmount(pool, 89*day); got.Sign() != 0 {
		t.Fatalf("expected zero the second before cliff end, got %s", got)
	}
	got := UnlockedAmount(pool, 91*day)
	if got.Sign() <= 0 {
		t.Fatalf("expected positive unlock after cliff, got %s", got)
	}
	if want := int64(300); got.Int64() != want {
		t.Fatalf("unlocked after cliff: got %s want %d", got, want)
	}
}

func TestUnlockedAmountMaturityExact(t *testing.T) {
	// An amount that does not divide evenly must still land exactly on the
	// full amount at maturity.
	pool := testPool(1000, 0, 0, uint64(30*day), 7, 333)

	maturity := int64(pool.Schedule.Duration())
	if got := UnlockedAmount(pool, maturity); got.Int64() != 1000 {
		t.Fatalf("maturity: got %s want 1000", got)
	}
	if got := UnlockedAmount(pool, maturity+day); got.Int64() != 1000 {
		t.Fatalf("past maturity: got %s want 1000", got)
	}
	if got := UnlockedAmount(pool, maturity-1); got.Int64() >= 1000 {
		t.Fatalf("one second before maturity should be partial, got %s", got)
	}
}

func TestUnlockedAmountMonotonic(t *testing.T) {
	pool := testPool(987654321, 1000, uint64(45*day), uint64(30*day), 24, 777)

	prev := big.NewInt(-1)
	for now := int64(0); now <= 1000+800*day; now += 6 * 60 * 60 {
		got := UnlockedAmount(pool, now)
		if got.Cmp(prev) < 0 {
			t.Fatalf("unlocked amount decreased at t=%d: %s < %s", now, got, prev)
		}
		prev = got
	}
	if prev.Cmp(pool.Amount) != 0 {
		t.Fatalf("final unlocked %s, want full amount %s", prev, pool.Amount)
	}
}

func TestClaimableAmountSubtractsClaimed(t *testing.T) {
	pool := testPool(1200, 0, 0, uint64(30*day), 12, 1000)
	pool.Claimed = big.NewInt(120)

	if got := ClaimableAmount(pool, 0); got.Sign() != 0 {
		t.Fatalf("expected nothing claimable, got %s", got)
	}
	if got := ClaimableAmount(pool, 30*day); got.Int64() != 90 {
		t.Fatalf("claimable after one period: got %s want 90", got)
	}
}

func TestUnlockedAmountZeroPool(t *testing.T) {
	if got := UnlockedAmount(nil, 100); got.Sign() != 0 {
		t.Fatalf("nil pool should unlock nothing, got %s", got)
	}
}
