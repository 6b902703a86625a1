package contracts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
)

// ERC20 wraps the token contract backing a token network: only the two
// calls a deposit's token-approve prerequisite needs (spec §4.8
// "set_total_deposit, with token-approve prerequisite").
type ERC20 struct {
	contract *bind.BoundContract
}

// Allowance reads how much spender may currently pull from owner.
func (t *ERC20) Allowance(opts *bind.CallOpts, owner, spender primitives.Address) (*big.Int, error) {
	var out []interface{}
	if err := t.contract.Call(opts, &out, "allowance", owner, spender); err != nil {
		return nil, err
	}
	return asBigInt(out), nil
}

// Approve submits approve(spender, amount).
func (t *ERC20) Approve(opts *bind.TransactOpts, spender primitives.Address, amount *big.Int) (primitives.Hash, error) {
	tx, err := t.contract.Transact(opts, "approve", spender, amount)
	if err != nil {
		return primitives.EmptyHash, err
	}
	return tx.Hash(), nil
}
