package mediatedtransfer

import (
	"encoding/gob"
	"math/big"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/route"
)

// ActionInitInitiator starts a new outgoing mediated payment, adapted
// directly from the teacher's ActionInitInitiatorStateChange (spec §4.5).
type ActionInitInitiator struct {
	OurAddress          primitives.Address
	TransferDescription *TransferDescriptionWithSecretState
	Routes              *route.RoutesState
	BlockNumber         int64
}

// ActionInitMediator is the initial state-change for a new mediator,
// adapted from the teacher's ActionInitMediatorStateChange.
type ActionInitMediator struct {
	OurAddress   primitives.Address
	FromTransfer *LockedTransferState
	FromRoute    *route.State
	Routes       *route.RoutesState
	BlockNumber  int64
}

// ActionInitTarget is the initial state-change for a new payment
// target, adapted from the teacher's ActionInitTargetStateChange.
type ActionInitTarget struct {
	OurAddress  primitives.Address
	FromTransfer *LockedTransferState
	FromRoute    *route.State
	BlockNumber  int64
}

// ActionCancelRoute cancels the current route for a secrethash, used
// for timeouts (spec §4.5).
type ActionCancelRoute struct {
	SecretHash primitives.Hash
}

// ReceiveSecretRequest is a SecretRequest message received by the
// initiator from the target.
type ReceiveSecretRequest struct {
	Amount      *big.Int
	SecretHash  primitives.Hash
	Sender      primitives.Address
	PaymentID   uint64
	Expiration  *big.Int
}

// ReceiveSecretReveal is a RevealSecret message received from the next
// node down the chain toward the initiator.
type ReceiveSecretReveal struct {
	Secret primitives.Hash
	Sender primitives.Address
}

// ReceiveLockExpired mirrors channel.ReceiveLockExpired at the
// transfer-task level, so initiator/mediator/target can react to a
// lock expiring without reaching into channel internals directly.
type ReceiveLockExpired struct {
	SecretHash  primitives.Hash
	Sender      primitives.Address
	BlockNumber int64
}

func init() {
	gob.Register(&ActionInitInitiator{})
	gob.Register(&ActionInitMediator{})
	gob.Register(&ActionInitTarget{})
	gob.Register(&ActionCancelRoute{})
	gob.Register(&ReceiveSecretRequest{})
	gob.Register(&ReceiveSecretReveal{})
	gob.Register(&ReceiveLockExpired{})
}
