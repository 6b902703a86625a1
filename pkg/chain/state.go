// Package chain implements the root chain state machine (spec
// component E): the top-level dispatch over block ticks, init actions,
// contract events and transfer events, producing a new ChainState plus
// events.
package chain

import (
	"github.com/ethereum/go-ethereum/log"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/mediatedtransfer"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/tokennetwork"
)

var logger = log.New("module", "chain")

// TokenNetworkRegistryState indexes every token network deployed from
// one registry contract, plus the token-address -> network-address
// lookup spec §3 requires stay consistent with the nested map.
type TokenNetworkRegistryState struct {
	Address       primitives.Address
	TokenNetworks map[primitives.Address]*tokennetwork.State // keyed by network address
	TokenToNetwork map[primitives.Address]primitives.Address  // token address -> network address
}

// NewTokenNetworkRegistryState returns an empty registry state.
func NewTokenNetworkRegistryState(address primitives.Address) *TokenNetworkRegistryState {
	return &TokenNetworkRegistryState{
		Address:        address,
		TokenNetworks:  make(map[primitives.Address]*tokennetwork.State),
		TokenToNetwork: make(map[primitives.Address]primitives.Address),
	}
}

// AddTokenNetwork registers a newly-created token network, keeping both
// indices consistent (spec §3 invariant).
func (r *TokenNetworkRegistryState) AddTokenNetwork(tn *tokennetwork.State) {
	r.TokenNetworks[tn.Address] = tn
	r.TokenToNetwork[tn.TokenAddress] = tn.Address
}

// Clone returns a copy of r whose TokenNetworks/TokenToNetwork maps are
// independent of the original; the *tokennetwork.State values
// themselves are shared, since tokennetwork.Transition already returns
// a fresh State rather than mutating the one it was given.
func (r *TokenNetworkRegistryState) Clone() *TokenNetworkRegistryState {
	next := &TokenNetworkRegistryState{
		Address:        r.Address,
		TokenNetworks:  make(map[primitives.Address]*tokennetwork.State, len(r.TokenNetworks)),
		TokenToNetwork: make(map[primitives.Address]primitives.Address, len(r.TokenToNetwork)),
	}
	for k, v := range r.TokenNetworks {
		next.TokenNetworks[k] = v
	}
	for k, v := range r.TokenToNetwork {
		next.TokenToNetwork[k] = v
	}
	return next
}

// State is the chain state machine's root (spec §3 ChainState).
type State struct {
	ChainID     *primitives.U256
	BlockNumber int64
	BlockHash   primitives.Hash
	OurAddress  primitives.Address

	TokenNetworkRegistries map[primitives.Address]*TokenNetworkRegistryState

	// PaymentMapping indexes every in-flight payment task by its
	// secrethash (spec §3).
	PaymentMapping map[primitives.Hash]*mediatedtransfer.TransferTask

	PendingTransactions []interface{}

	PseudoRandom *primitives.PseudoRandom
}

// NewState constructs the state ActionInitChain produces (spec §4.9
// restore-on-startup step 1).
func NewState(chainID *primitives.U256, ourAddress primitives.Address, blockNumber int64, blockHash primitives.Hash, seed int64) *State {
	return &State{
		ChainID:                chainID,
		BlockNumber:            blockNumber,
		BlockHash:              blockHash,
		OurAddress:             ourAddress,
		TokenNetworkRegistries: make(map[primitives.Address]*TokenNetworkRegistryState),
		PaymentMapping:         make(map[primitives.Hash]*mediatedtransfer.TransferTask),
		PseudoRandom:           primitives.NewPseudoRandom(seed),
	}
}

// FindTokenNetwork looks up a token network by its address across every
// registered registry.
func (s *State) FindTokenNetwork(tokenNetworkAddress primitives.Address) *tokennetwork.State {
	for _, reg := range s.TokenNetworkRegistries {
		if tn, ok := reg.TokenNetworks[tokenNetworkAddress]; ok {
			return tn
		}
	}
	return nil
}

// FindChannel looks up the token network a canonical identifier belongs
// to and reports whether that network holds the channel; it does not
// return the channel itself.
func (s *State) FindChannel(id primitives.CanonicalIdentifier) (*tokennetwork.State, bool) {
	tn := s.FindTokenNetwork(id.TokenNetworkAddress)
	if tn == nil {
		return nil, false
	}
	return tn, tn.GetChannel(id) != nil
}
