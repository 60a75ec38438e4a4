package token

import "math/big"

// Ledger is the fungible-token collaborator the vesting engine settles
// against. The engine never assumes implicit credit: it checks balances and
// allowances through this interface before committing a pool or a claim.
//
// Implementations must treat a nil or negative amount as invalid.
type Ledger interface {
	BalanceOf(addr [20]byte, symbol string) (*big.Int, error)
	Transfer(from, to [20]byte, symbol string, amount *big.Int) error
	Allowance(owner, spender [20]byte, symbol string) (*big.Int, error)
	Approve(owner, spender [20]byte, symbol string, amount *big.Int) error
	TransferFrom(owner, spender, to [20]byte, symbol string, amount *big.Int) error
}
