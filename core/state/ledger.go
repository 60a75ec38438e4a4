package state

import (
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
)

// The Manager doubles as the fungible-token collaborator the engine settles
// against. Balances and allowances live in the same database as the vesting
// state so a deployment stays a single store.

func (m *Manager) readAmount(key []byte) (*big.Int, error) {
	data, err := m.db.Get(key)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return big.NewInt(0), nil
	}
	amount := new(big.Int)
	if err := rlp.DecodeBytes(data, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

func (m *Manager) writeAmount(key []byte, amount *big.Int) error {
	encoded, err := rlp.EncodeToBytes(nonNil(amount))
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

// BalanceOf implements token.Ledger.
func (m *Manager) BalanceOf(addr [20]byte, symbol string) (*big.Int, error) {
	return m.readAmount(balanceKey(addr, symbol))
}

// Mint credits freshly issued supply to an address. Used at genesis to fund
// the vault and by tests.
func (m *Manager) Mint(addr [20]byte, symbol string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidLedgerAmount
	}
	balance, err := m.BalanceOf(addr, symbol)
	if err != nil {
		return err
	}
	return m.writeAmount(balanceKey(addr, symbol), balance.Add(balance, amount))
}

// Transfer implements token.Ledger.
func (m *Manager) Transfer(from, to [20]byte, symbol string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidLedgerAmount
	}
	fromBal, err := m.BalanceOf(from, symbol)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return ErrLedgerInsufficient
	}
	toBal, err := m.BalanceOf(to, symbol)
	if err != nil {
		return err
	}
	if err := m.writeAmount(balanceKey(from, symbol), fromBal.Sub(fromBal, amount)); err != nil {
		return err
	}
	return m.writeAmount(balanceKey(to, symbol), toBal.Add(toBal, amount))
}

// Allowance implements token.Ledger.
func (m *Manager) Allowance(owner, spender [20]byte, symbol string) (*big.Int, error) {
	return m.readAmount(allowanceKey(owner, spender, symbol))
}

// Approve implements token.Ledger.
func (m *Manager) Approve(owner, spender [20]byte, symbol string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errInvalidLedgerAmount
	}
	return m.writeAmount(allowanceKey(owner, spender, symbol), amount)
}

// TransferFrom implements token.Ledger. The spend is gated by the allowance
// the owner granted to the spender.
func (m *Manager) TransferFrom(owner, spender, to [20]byte, symbol string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidLedgerAmount
	}
	allowed, err := m.Allowance(owner, spender, symbol)
	if err != nil {
		return err
	}
	if allowed.Cmp(amount) < 0 {
		return ErrLedgerInsufficient
	}
	if err := m.Transfer(owner, to, symbol, amount); err != nil {
		return err
	}
	return m.writeAmount(allowanceKey(owner, spender, symbol), allowed.Sub(allowed, amount))
}
