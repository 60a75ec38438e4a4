package state

import (
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/lumos-codes-dev/dfv-sc-core/native/vesting"
	"github.com/lumos-codes-dev/dfv-sc-core/storage"
)

// Manager persists the allocation engine's state — the category table, the
// per-beneficiary pool lists, the reserved counter — together with the token
// balances and allowances backing the ledger collaborator. Values are RLP
// encoded under keccak-hashed keys.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

var (
	categoryPrefix  = []byte("vesting:category:")
	poolsPrefix     = []byte("vesting:pools:")
	reservedKey     = ethcrypto.Keccak256([]byte("vesting:total-reserved"))
	seededKey       = ethcrypto.Keccak256([]byte("vesting:genesis-seeded"))
	balancePrefix   = []byte("balance:")
	allowancePrefix = []byte("allowance:")
)

func categoryKey(id vesting.CategoryID) []byte {
	return ethcrypto.Keccak256(append(append([]byte{}, categoryPrefix...), byte(id)))
}

func poolsKey(beneficiary [20]byte) []byte {
	buf := make([]byte, len(poolsPrefix)+20)
	copy(buf, poolsPrefix)
	copy(buf[len(poolsPrefix):], beneficiary[:])
	return ethcrypto.Keccak256(buf)
}

func balanceKey(addr [20]byte, symbol string) []byte {
	buf := make([]byte, 0, len(balancePrefix)+len(symbol)+1+20)
	buf = append(buf, balancePrefix...)
	buf = append(buf, symbol...)
	buf = append(buf, ':')
	buf = append(buf, addr[:]...)
	return ethcrypto.Keccak256(buf)
}

func allowanceKey(owner, spender [20]byte, symbol string) []byte {
	buf := make([]byte, 0, len(allowancePrefix)+len(symbol)+1+40)
	buf = append(buf, allowancePrefix...)
	buf = append(buf, symbol...)
	buf = append(buf, ':')
	buf = append(buf, owner[:]...)
	buf = append(buf, spender[:]...)
	return ethcrypto.Keccak256(buf)
}

type storedCategory struct {
	ID                  uint8
	AllocationRemaining *big.Int
	SlotsRemaining      uint64
	PerUnitAmount       *big.Int
	DirectAmount        bool
	CliffSeconds        uint64
	PeriodSeconds       uint64
	PeriodCount         uint64
	InitialUnlockBps    uint32
}

type storedPool struct {
	ID               [32]byte
	Beneficiary      [20]byte
	Amount           *big.Int
	Start            uint64
	CliffSeconds     uint64
	PeriodSeconds    uint64
	PeriodCount      uint64
	InitialUnlockBps uint32
	Claimed          *big.Int
	Category         uint8
	CreatedAt        uint64
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

// Category implements vesting.State.
func (m *Manager) Category(id vesting.CategoryID) (*vesting.Category, bool, error) {
	data, err := m.db.Get(categoryKey(id))
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	stored := new(storedCategory)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false, err
	}
	return &vesting.Category{
		ID:                  vesting.CategoryID(stored.ID),
		AllocationRemaining: nonNil(stored.AllocationRemaining),
		SlotsRemaining:      stored.SlotsRemaining,
		PerUnitAmount:       nonNil(stored.PerUnitAmount),
		DirectAmount:        stored.DirectAmount,
		Schedule: vesting.Schedule{
			CliffSeconds:  stored.CliffSeconds,
			PeriodSeconds: stored.PeriodSeconds,
			PeriodCount:   stored.PeriodCount,
		},
		InitialUnlockBps: stored.InitialUnlockBps,
	}, true, nil
}

// PutCategory implements vesting.State.
func (m *Manager) PutCategory(cat *vesting.Category) error {
	if cat == nil {
		return fmt.Errorf("state: nil category")
	}
	encoded, err := rlp.EncodeToBytes(&storedCategory{
		ID:                  uint8(cat.ID),
		AllocationRemaining: nonNil(cat.AllocationRemaining),
		SlotsRemaining:      cat.SlotsRemaining,
		PerUnitAmount:       nonNil(cat.PerUnitAmount),
		DirectAmount:        cat.DirectAmount,
		CliffSeconds:        cat.Schedule.CliffSeconds,
		PeriodSeconds:       cat.Schedule.PeriodSeconds,
		PeriodCount:         cat.Schedule.PeriodCount,
		InitialUnlockBps:    cat.InitialUnlockBps,
	})
	if err != nil {
		return err
	}
	return m.db.Put(categoryKey(cat.ID), encoded)
}

// Pools implements vesting.State. The returned slice preserves insertion
// order.
func (m *Manager) Pools(beneficiary [20]byte) ([]*vesting.Pool, error) {
	data, err := m.db.Get(poolsKey(beneficiary))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var stored []storedPool
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, err
	}
	pools := make([]*vesting.Pool, len(stored))
	for i := range stored {
		sp := &stored[i]
		pools[i] = &vesting.Pool{
			ID:          sp.ID,
			Beneficiary: sp.Beneficiary,
			Amount:      nonNil(sp.Amount),
			Start:       int64(sp.Start),
			Schedule: vesting.Schedule{
				CliffSeconds:  sp.CliffSeconds,
				PeriodSeconds: sp.PeriodSeconds,
				PeriodCount:   sp.PeriodCount,
			},
			InitialUnlockBps: sp.InitialUnlockBps,
			Claimed:          nonNil(sp.Claimed),
			Category:         vesting.CategoryID(sp.Category),
			CreatedAt:        int64(sp.CreatedAt),
		}
	}
	return pools, nil
}

// PutPools implements vesting.State.
func (m *Manager) PutPools(beneficiary [20]byte, pools []*vesting.Pool) error {
	stored := make([]storedPool, len(pools))
	for i, p := range pools {
		if p == nil {
			return fmt.Errorf("state: nil pool at index %d", i)
		}
		stored[i] = storedPool{
			ID:               p.ID,
			Beneficiary:      p.Beneficiary,
			Amount:           nonNil(p.Amount),
			Start:            uint64(p.Start),
			CliffSeconds:     p.Schedule.CliffSeconds,
			PeriodSeconds:    p.Schedule.PeriodSeconds,
			PeriodCount:      p.Schedule.PeriodCount,
			InitialUnlockBps: p.InitialUnlockBps,
			Claimed:          nonNil(p.Claimed),
			Category:         uint8(p.Category),
			CreatedAt:        uint64(p.CreatedAt),
		}
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return err
	}
	return m.db.Put(poolsKey(beneficiary), encoded)
}

// TotalReserved implements vesting.State.
func (m *Manager) TotalReserved() (*big.Int, error) {
	data, err := m.db.Get(reservedKey)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return big.NewInt(0), nil
	}
	reserved := new(big.Int)
	if err := rlp.DecodeBytes(data, reserved); err != nil {
		return nil, err
	}
	return reserved, nil
}

// SetTotalReserved implements vesting.State.
func (m *Manager) SetTotalReserved(v *big.Int) error {
	encoded, err := rlp.EncodeToBytes(nonNil(v))
	if err != nil {
		return err
	}
	return m.db.Put(reservedKey, encoded)
}

// AllocationSeeded reports whether the genesis category table has been
// written already.
func (m *Manager) AllocationSeeded() (bool, error) {
	return m.db.Has(seededKey)
}

// SeedCategories writes the genesis category table exactly once.
func (m *Manager) SeedCategories(cats []*vesting.Category) error {
	seeded, err := m.AllocationSeeded()
	if err != nil {
		return err
	}
	if seeded {
		return fmt.Errorf("state: allocation categories already seeded")
	}
	for _, cat := range cats {
		if err := m.PutCategory(cat); err != nil {
			return err
		}
	}
	return m.db.Put(seededKey, []byte{1})
}
