// Package mediatedtransfer implements the initiator/mediator/target
// payment sub-machines (spec component F, §4.5): the per-role state
// carried in the chain state's payment_mapping, keyed by secrethash.
package mediatedtransfer

import (
	"math/big"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/channel"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/route"
)

// TransferDescriptionWithSecretState is an initiator-side payment
// intent before any route has been picked (spec §3).
type TransferDescriptionWithSecretState struct {
	TokenNetworkRegistryAddress primitives.Address
	TokenNetworkAddress         primitives.Address
	PaymentIdentifier           uint64
	Amount                      *big.Int
	LockTimeout                 *int64
	Initiator                   primitives.Address
	Target                      primitives.Address
	Secret                      primitives.Hash
	SecretHash                  primitives.Hash
}

// LockedTransferState is the payload of a SendLockedTransfer/
// ReceiveLockedTransfer: everything needed to forward or finalize one
// hop of a mediated payment (spec §3).
type LockedTransferState struct {
	PaymentIdentifier uint64
	Token             primitives.Address
	Lock              *channel.Lock
	Initiator         primitives.Address
	Target            primitives.Address
	MessageIdentifier uint64
	Routes            *route.RoutesState
	BalanceProof      *channel.BalanceProofState
	// EncryptedSecret is the optional in-band ECIES-encrypted secret
	// delivered to the target alongside the lock (spec §4.1/§4.5).
	EncryptedSecret []byte
}

// InitiatorStatus is the lifecycle stage of an initiator payment task.
type InitiatorStatus int

const (
	InitiatorWaitingForRoute InitiatorStatus = iota
	InitiatorWaitingForSecretRequest
	InitiatorWaitingForSecretReveal
	InitiatorPaymentSent
	InitiatorPaymentFailed
)

// InitiatorTransferState is the initiator role's per-payment state.
type InitiatorTransferState struct {
	TransferDescription *TransferDescriptionWithSecretState
	Route               *route.State
	Transfer             *LockedTransferState
	Status               InitiatorStatus
	RevealTimeout         int64
}

// MediatorTransferPair pairs the inbound (payer) and outbound (payee)
// legs of one mediation.
type MediatorTransferPair struct {
	PayerTransfer  *LockedTransferState
	PayerSender    primitives.Address
	PayeeTransfer  *LockedTransferState
	PayeeReceiver  primitives.Address
	PayeeRoute     *route.State

	SecretRevealedOnchain bool
	PayeeSent             bool
	PayerUnlocked         bool
}

// MediatorStatus is the lifecycle stage of a mediator payment task.
type MediatorStatus int

const (
	MediatorWaitingForForwardRoute MediatorStatus = iota
	MediatorWaitingSecretReveal
	MediatorOnchainSecretReveal
	MediatorSettling
	MediatorFinished
)

// MediatorTransferState is the mediator role's per-payment state.
type MediatorTransferState struct {
	SecretHash primitives.Hash
	Secret     primitives.Hash
	Pairs      []*MediatorTransferPair
	Status     MediatorStatus
}

// TargetStatus is the lifecycle stage of a target payment task.
type TargetStatus int

const (
	TargetWaitingForReveal TargetStatus = iota
	TargetSecretRequested
	TargetPaymentReceived
)

// TargetTransferState is the target role's per-payment state.
type TargetTransferState struct {
	Route    *route.State
	Transfer *LockedTransferState
	Secret   primitives.Hash
	Status   TargetStatus
}

// TaskRole tags which of the three roles a TransferTask is playing.
type TaskRole int

const (
	RoleInitiator TaskRole = iota
	RoleMediator
	RoleTarget
)

// TransferTask is the tagged sum stored in the chain state's
// payment_mapping (spec §3), keyed by secrethash.
type TransferTask struct {
	Role      TaskRole
	Initiator *InitiatorTransferState
	Mediator  *MediatorTransferState
	Target    *TargetTransferState
}
