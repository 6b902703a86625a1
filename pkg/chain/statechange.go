package chain

import (
	"encoding/gob"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
)

// ActionInitChain seeds a brand-new chain state at startup when no
// snapshot exists (spec §4.9 restore step 1).
type ActionInitChain struct {
	ChainID     *primitives.U256
	OurAddress  primitives.Address
	BlockNumber int64
	BlockHash   primitives.Hash
	Seed        int64
}

// ContractReceiveTokenNetworkRegistry seeds the configured registry
// deployment into chain state, derived at startup from config
// (spec §4.9 restore step 1) or from a decoded TokenNetworkCreated's
// parent registry the first time it's observed.
type ContractReceiveTokenNetworkRegistry struct {
	RegistryAddress primitives.Address
	BlockNumber     int64
}

func (e *ContractReceiveTokenNetworkRegistry) GetBlockNumber() int64 { return e.BlockNumber }

// ContractReceiveNewTokenNetwork mirrors a TokenNetworkCreated event
// (spec §6.1/§4.7).
type ContractReceiveNewTokenNetwork struct {
	RegistryAddress     primitives.Address
	TokenAddress        primitives.Address
	TokenNetworkAddress primitives.Address
	BlockNumber         int64
}

func (e *ContractReceiveNewTokenNetwork) GetBlockNumber() int64 { return e.BlockNumber }

// ContractReceiveChannelOpened mirrors a ChannelOpened event
// (spec §6.1/§4.7).
type ContractReceiveChannelOpened struct {
	CanonicalIdentifier primitives.CanonicalIdentifier
	Participant1        primitives.Address
	Participant2        primitives.Address
	SettleTimeout       int64
	BlockNumber         int64
}

func (e *ContractReceiveChannelOpened) GetBlockNumber() int64 { return e.BlockNumber }

// ActionChannelOpen is a local request to open a new channel (mirrors
// the on-chain write via the executor once confirmed).
type ActionChannelOpen struct {
	TokenNetworkAddress primitives.Address
	Partner             primitives.Address
	SettleTimeout       int64
	RevealTimeout       int64
}

// ActionInitPayment describes a local request to start a new mediated
// payment. Transition has no case for it and nothing in this module
// turns it into a mediatedtransfer.ActionInitInitiator; payments start
// through InitInitiatorPayment with an already-resolved route set.
type ActionInitPayment struct {
	TokenNetworkAddress primitives.Address
	Target              primitives.Address
	Amount              *primitives.U256
	PaymentIdentifier   uint64
	Secret              primitives.Hash
}

func init() {
	gob.Register(&ActionInitChain{})
	gob.Register(&ContractReceiveTokenNetworkRegistry{})
	gob.Register(&ContractReceiveNewTokenNetwork{})
	gob.Register(&ContractReceiveChannelOpened{})
	gob.Register(&ActionChannelOpen{})
	gob.Register(&ActionInitPayment{})
}
