package vesting

import (
	"fmt"
	"math/big"
	"strings"
)

// BpsDenominator is the basis-point scale used for unlock percentages.
const BpsDenominator = 10_000

// MaxBatchSize bounds the number of pool requests a single batch may carry.
const MaxBatchSize = 100

// CategoryID enumerates the fixed allocation tiers. The registry table is
// created once at genesis and only ever decremented.
type CategoryID uint8

const (
	CategoryNone CategoryID = iota
	CategorySeed
	CategoryPrivate
	CategoryStrategic
	CategoryTeam
	CategoryCommunity
)

// CategoryIDs lists every valid tier in registry order.
var CategoryIDs = []CategoryID{
	CategorySeed,
	CategoryPrivate,
	CategoryStrategic,
	CategoryTeam,
	CategoryCommunity,
}

func (id CategoryID) String() string {
	switch id {
	case CategorySeed:
		return "seed"
	case CategoryPrivate:
		return "private"
	case CategoryStrategic:
		return "strategic"
	case CategoryTeam:
		return "team"
	case CategoryCommunity:
		return "community"
	default:
		return ""
	}
}

// Valid reports whether the identifier names a known tier.
func (id CategoryID) Valid() bool {
	return id >= CategorySeed && id <= CategoryCommunity
}

// ParseCategoryID resolves a tier name to its identifier.
func ParseCategoryID(name string) (CategoryID, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "seed":
		return CategorySeed, nil
	case "private":
		return CategoryPrivate, nil
	case "strategic":
		return CategoryStrategic, nil
	case "team":
		return CategoryTeam, nil
	case "community":
		return CategoryCommunity, nil
	default:
		return CategoryNone, fmt.Errorf("vesting: unknown category %q", name)
	}
}

// Schedule describes a cliff followed by PeriodCount equal-length periods
// during which the post-initial-unlock remainder vests period by period.
type Schedule struct {
	CliffSeconds  uint64
	PeriodSeconds uint64
	PeriodCount   uint64
}

// Duration returns the time from pool start until full maturity in seconds.
// The cliff dominates when it outlasts the vesting periods.
func (s Schedule) Duration() uint64 {
	total := s.PeriodSeconds * s.PeriodCount
	if s.CliffSeconds > total {
		return s.CliffSeconds
	}
	return total
}

// Category is one row of the fixed allocation table. AllocationRemaining and
// SlotsRemaining are monotonically non-increasing; they are set once from
// protocol constants and never replenished.
type Category struct {
	ID                  CategoryID
	AllocationRemaining *big.Int
	SlotsRemaining      uint64
	// PerUnitAmount is the grant size per multiplier unit. Ignored for the
	// direct-amount tier.
	PerUnitAmount *big.Int
	// DirectAmount marks the single tier whose requests carry the grant
	// amount itself instead of a multiplier.
	DirectAmount     bool
	Schedule         Schedule
	InitialUnlockBps uint32
}

func (c *Category) Clone() *Category {
	if c == nil {
		return nil
	}
	clone := *c
	clone.AllocationRemaining = cloneBigInt(c.AllocationRemaining)
	clone.PerUnitAmount = cloneBigInt(c.PerUnitAmount)
	return &clone
}

// Pool is one beneficiary's vesting grant. It is immutable after creation
// except for Claimed, which is monotonically non-decreasing and bounded by
// Amount.
type Pool struct {
	ID               [32]byte
	Beneficiary      [20]byte
	Amount           *big.Int
	Start            int64
	Schedule         Schedule
	InitialUnlockBps uint32
	Claimed          *big.Int
	// Category is CategoryNone for custom pools.
	Category  CategoryID
	CreatedAt int64
}

func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Amount = cloneBigInt(p.Amount)
	clone.Claimed = cloneBigInt(p.Claimed)
	return &clone
}

// Capability is the already-resolved authorization flag handed to the engine
// by the boundary layer. The engine never inspects caller identity itself.
type Capability uint8

const (
	// CapabilityManager authorizes pool and batch creation.
	CapabilityManager Capability = 1 << iota
	// CapabilityAdmin authorizes withdrawal of unreserved funds.
	CapabilityAdmin
)

// Has reports whether the set includes the requested capability.
func (c Capability) Has(required Capability) bool {
	return c&required == required
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
