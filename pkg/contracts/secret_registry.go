package contracts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
)

// SecretRegistry wraps the deployed SecretRegistry contract:
// registerSecret, plus a read for the block a secret was revealed at
// (spec §6.1: "registerSecret(secret); event SecretRevealed(secrethash,
// secret)").
type SecretRegistry struct {
	contract *bind.BoundContract
}

// RegisterSecret submits registerSecret(secret), protecting a mediator
// or target's outstanding lock on-chain before it expires.
func (s *SecretRegistry) RegisterSecret(opts *bind.TransactOpts, secret primitives.Hash) (primitives.Hash, error) {
	tx, err := s.contract.Transact(opts, "registerSecret", secret)
	if err != nil {
		return primitives.EmptyHash, err
	}
	return tx.Hash(), nil
}

// GetSecretRevealBlockHeight reads the block height secrethash was
// registered at, or zero if never registered.
func (s *SecretRegistry) GetSecretRevealBlockHeight(opts *bind.CallOpts, secretHash primitives.Hash) (*big.Int, error) {
	var out []interface{}
	if err := s.contract.Call(opts, &out, "getSecretRevealBlockHeight", secretHash); err != nil {
		return nil, err
	}
	return asBigInt(out), nil
}
