package contracts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
)

// TokenNetworkRegistry wraps the deployed TokenNetworkRegistry
// contract: createERC20TokenNetwork plus read access to already
// registered networks (spec §6.1).
type TokenNetworkRegistry struct {
	contract *bind.BoundContract
}

// TokenNetworkAddress reads the token network address already
// registered for token, or the zero address if none.
func (r *TokenNetworkRegistry) TokenNetworkAddress(opts *bind.CallOpts, token primitives.Address) (primitives.Address, error) {
	var out []interface{}
	if err := r.contract.Call(opts, &out, "token_to_token_networks", token); err != nil {
		return primitives.EmptyAddress, err
	}
	if len(out) == 0 {
		return primitives.EmptyAddress, nil
	}
	if a, ok := out[0].(primitives.Address); ok {
		return a, nil
	}
	return primitives.EmptyAddress, nil
}

// CreateERC20TokenNetwork submits createERC20TokenNetwork(token,
// channel_participant_deposit_limit, token_network_deposit_limit),
// registering a new token network for an ERC20 token.
func (r *TokenNetworkRegistry) CreateERC20TokenNetwork(opts *bind.TransactOpts, token primitives.Address, channelParticipantDepositLimit, tokenNetworkDepositLimit *big.Int) (primitives.Hash, error) {
	tx, err := r.contract.Transact(opts, "createERC20TokenNetwork", token, channelParticipantDepositLimit, tokenNetworkDepositLimit)
	if err != nil {
		return primitives.EmptyHash, err
	}
	return tx.Hash(), nil
}
