package vesting

import (
	"math/big"
	"sort"

	"github.com/lumos-codes-dev/dfv-sc-core/native/token"
)

type balanceKey struct {
	addr   [20]byte
	symbol string
}

type allowanceKey struct {
	owner   [20]byte
	spender [20]byte
	symbol  string
}

type transferOp struct {
	pull    bool
	owner   [20]byte
	spender [20]byte
	from    [20]byte
	to      [20]byte
	symbol  string
	amount  *big.Int
}

// journal buffers every mutation of an engine operation — category rows, pool
// lists, the reserved counter and token movements — and applies them to the
// underlying state and ledger only on commit. A failing sub-operation simply
// abandons the journal, leaving no partial effects behind. This is what makes
// batches all-or-nothing and claims safe against transfer failures.
type journal struct {
	state  State
	ledger token.Ledger

	categories map[CategoryID]*Category
	pools      map[[20]byte][]*Pool
	reserved   *big.Int
	balances   map[balanceKey]*big.Int
	allowances map[allowanceKey]*big.Int
	transfers  []transferOp
}

func newJournal(state State, ledger token.Ledger) *journal {
	return &journal{
		state:      state,
		ledger:     ledger,
		categories: make(map[CategoryID]*Category),
		pools:      make(map[[20]byte][]*Pool),
		balances:   make(map[balanceKey]*big.Int),
		allowances: make(map[allowanceKey]*big.Int),
	}
}

func (j *journal) category(id CategoryID) (*Category, bool, error) {
	if cat, ok := j.categories[id]; ok {
		return cat, true, nil
	}
	cat, ok, err := j.state.Category(id)
	if err != nil || !ok {
		return nil, ok, err
	}
	clone := cat.Clone()
	j.categories[id] = clone
	return clone, true, nil
}

func (j *journal) putCategory(cat *Category) {
	j.categories[cat.ID] = cat
}

func (j *journal) poolsOf(beneficiary [20]byte) ([]*Pool, error) {
	if pools, ok := j.pools[beneficiary]; ok {
		return pools, nil
	}
	stored, err := j.state.Pools(beneficiary)
	if err != nil {
		return nil, err
	}
	pools := make([]*Pool, len(stored))
	for i, p := range stored {
		pools[i] = p.Clone()
	}
	j.pools[beneficiary] = pools
	return pools, nil
}

func (j *journal) putPools(beneficiary [20]byte, pools []*Pool) {
	j.pools[beneficiary] = pools
}

func (j *journal) totalReserved() (*big.Int, error) {
	if j.reserved != nil {
		return new(big.Int).Set(j.reserved), nil
	}
	reserved, err := j.state.TotalReserved()
	if err != nil {
		return nil, err
	}
	j.reserved = cloneBigInt(reserved)
	return new(big.Int).Set(j.reserved), nil
}

func (j *journal) setTotalReserved(v *big.Int) {
	j.reserved = cloneBigInt(v)
}

func (j *journal) balanceOf(addr [20]byte, symbol string) (*big.Int, error) {
	key := balanceKey{addr: addr, symbol: symbol}
	if bal, ok := j.balances[key]; ok {
		return new(big.Int).Set(bal), nil
	}
	bal, err := j.ledger.BalanceOf(addr, symbol)
	if err != nil {
		return nil, err
	}
	j.balances[key] = cloneBigInt(bal)
	return new(big.Int).Set(j.balances[key]), nil
}

func (j *journal) allowance(owner, spender [20]byte, symbol string) (*big.Int, error) {
	key := allowanceKey{owner: owner, spender: spender, symbol: symbol}
	if allowed, ok := j.allowances[key]; ok {
		return new(big.Int).Set(allowed), nil
	}
	allowed, err := j.ledger.Allowance(owner, spender, symbol)
	if err != nil {
		return nil, err
	}
	j.allowances[key] = cloneBigInt(allowed)
	return new(big.Int).Set(j.allowances[key]), nil
}

func (j *journal) moveBalance(from, to [20]byte, symbol string, amount *big.Int) error {
	fromBal, err := j.balanceOf(from, symbol)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	toBal, err := j.balanceOf(to, symbol)
	if err != nil {
		return err
	}
	j.balances[balanceKey{addr: from, symbol: symbol}] = fromBal.Sub(fromBal, amount)
	j.balances[balanceKey{addr: to, symbol: symbol}] = toBal.Add(toBal, amount)
	return nil
}

// transfer stages a vault-side transfer after validating it against the
// journalled balances.
func (j *journal) transfer(from, to [20]byte, symbol string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := j.moveBalance(from, to, symbol, amount); err != nil {
		return err
	}
	j.transfers = append(j.transfers, transferOp{
		from:   from,
		to:     to,
		symbol: symbol,
		amount: new(big.Int).Set(amount),
	})
	return nil
}

// transferFrom stages an allowance-gated pull from the owner's balance.
func (j *journal) transferFrom(owner, spender, to [20]byte, symbol string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	allowed, err := j.allowance(owner, spender, symbol)
	if err != nil {
		return err
	}
	if allowed.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if err := j.moveBalance(owner, to, symbol, amount); err != nil {
		return err
	}
	j.allowances[allowanceKey{owner: owner, spender: spender, symbol: symbol}] = allowed.Sub(allowed, amount)
	j.transfers = append(j.transfers, transferOp{
		pull:    true,
		owner:   owner,
		spender: spender,
		to:      to,
		symbol:  symbol,
		amount:  new(big.Int).Set(amount),
	})
	return nil
}

// commit replays the staged token movements against the live ledger, then
// writes the journalled state. Transfers go first so a ledger refusal leaves
// pool and claim bookkeeping untouched.
func (j *journal) commit() error {
	for _, op := range j.transfers {
		var err error
		if op.pull {
			err = j.ledger.TransferFrom(op.owner, op.spender, op.to, op.symbol, op.amount)
		} else {
			err = j.ledger.Transfer(op.from, op.to, op.symbol, op.amount)
		}
		if err != nil {
			return err
		}
	}

	ids := make([]CategoryID, 0, len(j.categories))
	for id := range j.categories {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	for _, id := range ids {
		if err := j.state.PutCategory(j.categories[id]); err != nil {
			return err
		}
	}

	addrs := make([][20]byte, 0, len(j.pools))
	for addr := range j.pools {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(a, b int) bool {
		return string(addrs[a][:]) < string(addrs[b][:])
	})
	for _, addr := range addrs {
		if err := j.state.PutPools(addr, j.pools[addr]); err != nil {
			return err
		}
	}

	if j.reserved != nil {
		if err := j.state.SetTotalReserved(j.reserved); err != nil {
			return err
		}
	}
	return nil
}
