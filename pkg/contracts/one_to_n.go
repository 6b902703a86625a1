package contracts

import (
	"github.com/ethereum/go-ethereum/accounts/abi/bind"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
)

// OneToN wraps the deployed OneToN contract: read-only for this spec
// (spec §6.1), the monitoring-service/one-shot-payment settlement
// contract IOUs are ultimately claimed against.
type OneToN struct {
	contract *bind.BoundContract
}

// Deposit reads the UserDeposit contract address OneToN claims IOUs
// against.
func (o *OneToN) Deposit(opts *bind.CallOpts) (primitives.Address, error) {
	var out []interface{}
	if err := o.contract.Call(opts, &out, "deposit_contract"); err != nil {
		return primitives.EmptyAddress, err
	}
	if len(out) == 0 {
		return primitives.EmptyAddress, nil
	}
	a, _ := out[0].(primitives.Address)
	return a, nil
}
