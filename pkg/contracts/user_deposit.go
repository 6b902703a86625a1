package contracts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
)

// UserDeposit wraps the deployed UserDeposit contract: read-only for
// this spec (service discovery/deposits for pathfinding payments,
// spec §6.1), exposing the balance a node has available to pay PFS
// IOUs or monitoring-service rewards from.
type UserDeposit struct {
	contract *bind.BoundContract
}

// EffectiveBalance reads address's currently withdrawable deposit.
func (u *UserDeposit) EffectiveBalance(opts *bind.CallOpts, address primitives.Address) (*big.Int, error) {
	var out []interface{}
	if err := u.contract.Call(opts, &out, "effectiveBalance", address); err != nil {
		return nil, err
	}
	return asBigInt(out), nil
}

// TotalDeposit reads address's total (not yet withdrawn) deposit.
func (u *UserDeposit) TotalDeposit(opts *bind.CallOpts, address primitives.Address) (*big.Int, error) {
	var out []interface{}
	if err := u.contract.Call(opts, &out, "total_deposit", address); err != nil {
		return nil, err
	}
	return asBigInt(out), nil
}
