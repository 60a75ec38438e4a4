package vesting

import (
	"encoding/binary"
	"math/big"
	"sync"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/lumos-codes-dev/dfv-sc-core/core/events"
	"github.com/lumos-codes-dev/dfv-sc-core/native/token"
)

// State is the persistence surface the engine mutates: the fixed category
// table, the append-only per-beneficiary pool lists and the global reserved
// counter.
type State interface {
	Category(id CategoryID) (*Category, bool, error)
	PutCategory(cat *Category) error
	Pools(beneficiary [20]byte) ([]*Pool, error)
	PutPools(beneficiary [20]byte, pools []*Pool) error
	TotalReserved() (*big.Int, error)
	SetTotalReserved(v *big.Int) error
}

// FundingMode selects how pool creation is funded.
type FundingMode uint8

const (
	// FundingPreFunded expects the vault to already hold enough balance to
	// cover every reservation.
	FundingPreFunded FundingMode = iota
	// FundingPull draws the pool amount from the funder via an allowance
	// granted to the vault.
	FundingPull
)

// PoolRequest describes one pool creation inside a batch. Category set to
// CategoryNone requests a custom pool using the embedded schedule; otherwise
// Value is interpreted per the tier's sizing rule and the tier's schedule
// template applies.
type PoolRequest struct {
	Beneficiary      [20]byte
	Category         CategoryID
	Value            *big.Int
	Start            int64
	Schedule         Schedule
	InitialUnlockBps uint32
}

// Engine implements the allocation-and-vesting accounting: category
// reservations, pool lifecycle, batched creation, claim settlement and the
// solvency sweep. A single mutex serialises every mutating operation so a
// category reservation and its pool insertion are one atomic unit.
type Engine struct {
	mu      sync.Mutex
	state   State
	ledger  token.Ledger
	emitter events.Emitter
	vault   [20]byte
	symbol  string
	funding FundingMode
	nowFn   func() int64
}

// NewEngine creates a vesting engine with a no-op emitter. Callers wire the
// state backend, token ledger and vault before use.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		symbol:  "DFV",
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state State) { e.state = state }

// SetLedger configures the token collaborator funds are settled against.
func (e *Engine) SetLedger(ledger token.Ledger) { e.ledger = ledger }

// SetVault configures the address holding the engine's token balance.
func (e *Engine) SetVault(addr [20]byte) { e.vault = addr }

// SetToken configures the vesting token symbol.
func (e *Engine) SetToken(symbol string) {
	if symbol != "" {
		e.symbol = symbol
	}
}

// SetFundingMode selects between pre-funded and allowance-pull creation.
func (e *Engine) SetFundingMode(mode FundingMode) { e.funding = mode }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Token returns the vesting token symbol.
func (e *Engine) Token() string { return e.symbol }

// Vault returns the address holding the engine's funds.
func (e *Engine) Vault() [20]byte { return e.vault }

func (e *Engine) emit(evt events.Descriptor) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if e.ledger == nil {
		return ErrNilLedger
	}
	return nil
}

func poolID(beneficiary [20]byte, index int, createdAt int64) [32]byte {
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], uint64(index))
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(createdAt))
	return ethcrypto.Keccak256Hash(beneficiary[:], seq[:], ts[:])
}

// createPool validates and stages one pool inside the supplied journal. It
// performs the funding check, appends the pool and bumps the reserved
// counter. Events are the caller's responsibility, emitted only after commit.
func (e *Engine) createPool(j *journal, funder, beneficiary [20]byte, amount *big.Int, start int64, schedule Schedule, initialUnlockBps uint32, category CategoryID) (*Pool, error) {
	if beneficiary == ([20]byte{}) {
		return nil, ErrZeroBeneficiary
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if schedule.PeriodSeconds == 0 || schedule.PeriodCount == 0 {
		return nil, ErrInvalidSchedule
	}
	if initialUnlockBps > BpsDenominator {
		return nil, ErrUnlockBpsTooHigh
	}
	now := e.now()
	// A past start is clamped to now: vesting never retro-activates.
	if start < now {
		start = now
	}

	if e.funding == FundingPull {
		if err := j.transferFrom(funder, e.vault, e.vault, e.symbol, amount); err != nil {
			return nil, err
		}
	}

	reserved, err := j.totalReserved()
	if err != nil {
		return nil, err
	}
	newReserved := reserved.Add(reserved, amount)
	held, err := j.balanceOf(e.vault, e.symbol)
	if err != nil {
		return nil, err
	}
	if held.Cmp(newReserved) < 0 {
		return nil, ErrInsufficientBalance
	}

	pools, err := j.poolsOf(beneficiary)
	if err != nil {
		return nil, err
	}
	pool := &Pool{
		ID:               poolID(beneficiary, len(pools), now),
		Beneficiary:      beneficiary,
		Amount:           new(big.Int).Set(amount),
		Start:            start,
		Schedule:         schedule,
		InitialUnlockBps: initialUnlockBps,
		Claimed:          big.NewInt(0),
		Category:         category,
		CreatedAt:        now,
	}
	j.putPools(beneficiary, append(pools, pool))
	j.setTotalReserved(newReserved)
	return pool, nil
}

// createCategoryPool resolves the grant size per the tier's rule, reserves
// allocation and slots, and stages the derived pool. Reservation and pool
// insertion share the journal, so no caller ever observes one without the
// other.
func (e *Engine) createCategoryPool(j *journal, funder [20]byte, id CategoryID, beneficiary [20]byte, value *big.Int, start int64) (*Pool, error) {
	if !id.Valid() {
		return nil, ErrCategoryNotFound
	}
	cat, ok, err := j.category(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCategoryNotFound
	}
	amount, err := cat.RequestedAmount(value)
	if err != nil {
		return nil, err
	}
	if err := cat.Reserve(amount); err != nil {
		return nil, err
	}
	j.putCategory(cat)
	return e.createPool(j, funder, beneficiary, amount, start, cat.Schedule, cat.InitialUnlockBps, id)
}

func poolCreatedEvent(p *Pool) events.PoolCreated {
	return events.PoolCreated{
		PoolID:           p.ID,
		Beneficiary:      p.Beneficiary,
		Amount:           new(big.Int).Set(p.Amount),
		Start:            p.Start,
		CliffSeconds:     p.Schedule.CliffSeconds,
		PeriodSeconds:    p.Schedule.PeriodSeconds,
		PeriodCount:      p.Schedule.PeriodCount,
		InitialUnlockBps: p.InitialUnlockBps,
		Category:         p.Category.String(),
		CreatedAt:        p.CreatedAt,
	}
}

// CreatePool creates a custom pool with an ad-hoc schedule. Requires the
// manager capability resolved by the boundary layer.
func (e *Engine) CreatePool(caps Capability, funder, beneficiary [20]byte, amount *big.Int, start int64, schedule Schedule, initialUnlockBps uint32) (*Pool, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !caps.Has(CapabilityManager) {
		return nil, ErrUnauthorized
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	j := newJournal(e.state, e.ledger)
	pool, err := e.createPool(j, funder, beneficiary, amount, start, schedule, initialUnlockBps, CategoryNone)
	if err != nil {
		return nil, err
	}
	if err := j.commit(); err != nil {
		return nil, err
	}
	e.emit(poolCreatedEvent(pool))
	return pool.Clone(), nil
}

// CreateCategoryPool creates a pool derived from a tier's schedule template.
// Requires the manager capability.
func (e *Engine) CreateCategoryPool(caps Capability, funder [20]byte, id CategoryID, beneficiary [20]byte, value *big.Int, start int64) (*Pool, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !caps.Has(CapabilityManager) {
		return nil, ErrUnauthorized
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	j := newJournal(e.state, e.ledger)
	pool, err := e.createCategoryPool(j, funder, id, beneficiary, value, start)
	if err != nil {
		return nil, err
	}
	if err := j.commit(); err != nil {
		return nil, err
	}
	e.emit(poolCreatedEvent(pool))
	return pool.Clone(), nil
}

// CreateBatch creates every requested pool or none of them. A failing item
// aborts the batch before anything is committed.
func (e *Engine) CreateBatch(caps Capability, funder [20]byte, requests []PoolRequest) ([]*Pool, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !caps.Has(CapabilityManager) {
		return nil, ErrUnauthorized
	}
	if len(requests) == 0 {
		return nil, ErrNoParamsProvided
	}
	if len(requests) > MaxBatchSize {
		return nil, ErrBatchSizeExceedsLimit
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	j := newJournal(e.state, e.ledger)
	pools := make([]*Pool, 0, len(requests))
	total := big.NewInt(0)
	for _, req := range requests {
		var (
			pool *Pool
			err  error
		)
		if req.Category == CategoryNone {
			pool, err = e.createPool(j, funder, req.Beneficiary, req.Value, req.Start, req.Schedule, req.InitialUnlockBps, CategoryNone)
		} else {
			pool, err = e.createCategoryPool(j, funder, req.Category, req.Beneficiary, req.Value, req.Start)
		}
		if err != nil {
			return nil, err
		}
		pools = append(pools, pool)
		total.Add(total, pool.Amount)
	}
	if err := j.commit(); err != nil {
		return nil, err
	}
	for _, pool := range pools {
		e.emit(poolCreatedEvent(pool))
	}
	e.emit(events.BatchCreated{
		BatchID:   uuid.New().String(),
		Count:     len(pools),
		Amount:    total,
		Timestamp: e.now(),
	})
	out := make([]*Pool, len(pools))
	for i, pool := range pools {
		out[i] = pool.Clone()
	}
	return out, nil
}

// Claim settles everything currently claimable across the beneficiary's
// pools and transfers the sum out of the vault. The claimed increments and
// the transfer are one unit: a refused transfer leaves every pool untouched.
func (e *Engine) Claim(beneficiary [20]byte) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if beneficiary == ([20]byte{}) {
		return nil, ErrZeroBeneficiary
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	j := newJournal(e.state, e.ledger)
	pools, err := j.poolsOf(beneficiary)
	if err != nil {
		return nil, err
	}
	if len(pools) == 0 {
		return nil, ErrNoAllocationsFound
	}
	now := e.now()
	total := big.NewInt(0)
	touched := 0
	for _, pool := range pools {
		claimable := ClaimableAmount(pool, now)
		if claimable.Sign() <= 0 {
			continue
		}
		pool.Claimed = new(big.Int).Add(pool.Claimed, claimable)
		total.Add(total, claimable)
		touched++
	}
	if total.Sign() == 0 {
		return nil, ErrZeroAmountToClaim
	}
	j.putPools(beneficiary, pools)
	if err := j.transfer(e.vault, beneficiary, e.symbol, total); err != nil {
		return nil, err
	}
	if err := j.commit(); err != nil {
		return nil, err
	}
	e.emit(events.Claimed{
		Beneficiary: beneficiary,
		Amount:      new(big.Int).Set(total),
		Pools:       touched,
		Timestamp:   now,
	})
	return total, nil
}

// Claimable returns the amount a claim would settle right now, without
// mutating anything.
func (e *Engine) Claimable(beneficiary [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	pools, err := e.state.Pools(beneficiary)
	if err != nil {
		return nil, err
	}
	now := e.now()
	total := big.NewInt(0)
	for _, pool := range pools {
		claimable := ClaimableAmount(pool, now)
		if claimable.Sign() > 0 {
			total.Add(total, claimable)
		}
	}
	return total, nil
}

// PoolsOf returns clones of the beneficiary's pools in insertion order.
func (e *Engine) PoolsOf(beneficiary [20]byte) ([]*Pool, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	pools, err := e.state.Pools(beneficiary)
	if err != nil {
		return nil, err
	}
	out := make([]*Pool, len(pools))
	for i, pool := range pools {
		out[i] = pool.Clone()
	}
	return out, nil
}

// Categories returns clones of every seeded tier in registry order.
func (e *Engine) Categories() ([]*Category, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*Category, 0, len(CategoryIDs))
	for _, id := range CategoryIDs {
		cat, ok, err := e.state.Category(id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, cat.Clone())
		}
	}
	return out, nil
}

// TotalReserved returns the sum of all pool amounts ever created.
func (e *Engine) TotalReserved() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	reserved, err := e.state.TotalReserved()
	if err != nil {
		return nil, err
	}
	return cloneBigInt(reserved), nil
}

// WithdrawUnused sweeps vault holdings not reserved by any pool to the
// recipient. For the vesting token that is held balance minus totalReserved;
// any other token held by the vault is swept in full. Requires the admin
// capability.
func (e *Engine) WithdrawUnused(caps Capability, symbol string, recipient [20]byte) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !caps.Has(CapabilityAdmin) {
		return nil, ErrUnauthorized
	}
	if recipient == ([20]byte{}) {
		return nil, ErrZeroBeneficiary
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	held, err := e.ledger.BalanceOf(e.vault, symbol)
	if err != nil {
		return nil, err
	}
	amount := cloneBigInt(held)
	if symbol == e.symbol {
		reserved, err := e.state.TotalReserved()
		if err != nil {
			return nil, err
		}
		amount.Sub(amount, cloneBigInt(reserved))
	}
	if amount.Sign() <= 0 {
		return nil, ErrNothingToWithdraw
	}
	if err := e.ledger.Transfer(e.vault, recipient, symbol, amount); err != nil {
		return nil, err
	}
	e.emit(events.TreasuryWithdrawn{
		Token:     symbol,
		Recipient: recipient,
		Amount:    new(big.Int).Set(amount),
		Timestamp: e.now(),
	})
	return amount, nil
}
