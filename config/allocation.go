package config

import (
	"fmt"
	"math/big"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lumos-codes-dev/dfv-sc-core/native/vesting"
)

// AllocationFile is the externalised genesis seed: the category table and the
// initial grants that the original deployment hardcoded. It is applied once,
// at first boot, through the engine's normal creation path.
type AllocationFile struct {
	// Supply is minted to the vault before seeding so pre-funded creation
	// has something to reserve against.
	Supply     string         `yaml:"supply"`
	Categories []CategorySeed `yaml:"categories"`
	Grants     []GrantSeed    `yaml:"grants"`
}

type CategorySeed struct {
	Name             string `yaml:"name"`
	Allocation       string `yaml:"allocation"`
	Slots            uint64 `yaml:"slots"`
	PerUnit          string `yaml:"perUnit"`
	DirectAmount     bool   `yaml:"directAmount"`
	CliffSeconds     uint64 `yaml:"cliffSeconds"`
	PeriodSeconds    uint64 `yaml:"periodSeconds"`
	PeriodCount      uint64 `yaml:"periodCount"`
	InitialUnlockBps uint32 `yaml:"initialUnlockBps"`
}

type GrantSeed struct {
	Category    string `yaml:"category"`
	Beneficiary string `yaml:"beneficiary"`
	Value       string `yaml:"value"`
	Start       int64  `yaml:"start"`
}

// LoadAllocation parses the allocation seed file.
func LoadAllocation(path string) (*AllocationFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	alloc := new(AllocationFile)
	if err := yaml.Unmarshal(data, alloc); err != nil {
		return nil, err
	}
	return alloc, nil
}

// ParseAmount parses a decimal base-unit amount.
func ParseAmount(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("config: invalid amount %q", s)
	}
	return v, nil
}

// CategoryRows converts the seed entries into registry rows, validating each
// against the schedule and unlock constraints the engine enforces.
func (f *AllocationFile) CategoryRows() ([]*vesting.Category, error) {
	rows := make([]*vesting.Category, 0, len(f.Categories))
	for _, seed := range f.Categories {
		id, err := vesting.ParseCategoryID(seed.Name)
		if err != nil {
			return nil, err
		}
		allocation, err := ParseAmount(seed.Allocation)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", seed.Name, err)
		}
		perUnit, err := ParseAmount(seed.PerUnit)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", seed.Name, err)
		}
		if !seed.DirectAmount && perUnit.Sign() <= 0 {
			return nil, fmt.Errorf("category %s: perUnit required for multiplier tiers", seed.Name)
		}
		if seed.PeriodSeconds == 0 || seed.PeriodCount == 0 {
			return nil, fmt.Errorf("category %s: schedule requires positive period duration and count", seed.Name)
		}
		if seed.InitialUnlockBps > vesting.BpsDenominator {
			return nil, fmt.Errorf("category %s: initial unlock bps above denominator", seed.Name)
		}
		rows = append(rows, &vesting.Category{
			ID:                  id,
			AllocationRemaining: allocation,
			SlotsRemaining:      seed.Slots,
			PerUnitAmount:       perUnit,
			DirectAmount:        seed.DirectAmount,
			Schedule: vesting.Schedule{
				CliffSeconds:  seed.CliffSeconds,
				PeriodSeconds: seed.PeriodSeconds,
				PeriodCount:   seed.PeriodCount,
			},
			InitialUnlockBps: seed.InitialUnlockBps,
		})
	}
	return rows, nil
}
