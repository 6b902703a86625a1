package mediatedtransfer

import (
	"encoding/gob"
	"math/big"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/channel"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
)

// SendLockedTransfer emits a new LockedTransfer wire message carrying
// the hop's balance proof (spec §4.5/§6.2).
type SendLockedTransfer struct {
	Receiver          primitives.Address
	MessageIdentifier uint64
	Transfer          *LockedTransferState
}

// SendSecretRequest asks the node holding the secret (the initiator) to
// reveal it, emitted by the target.
type SendSecretRequest struct {
	Receiver          primitives.Address
	MessageIdentifier uint64
	PaymentIdentifier uint64
	Amount            *big.Int
	SecretHash        primitives.Hash
	Expiration        *big.Int
}

// SendSecretReveal forwards a revealed secret one hop closer to the
// target (initiator/mediator) or toward the initiator (target/mediator).
type SendSecretReveal struct {
	Receiver          primitives.Address
	MessageIdentifier uint64
	Secret            primitives.Hash
}

// SendUnlock emits an Unlock message claiming a lock, advancing our
// balance proof's transferred_amount.
type SendUnlock struct {
	Receiver          primitives.Address
	MessageIdentifier uint64
	PaymentIdentifier uint64
	SecretHash        primitives.Hash
	BalanceProof      *channel.BalanceProofState
}

// SendLockExpired emits a LockExpired message removing our own
// outstanding lock once it has passed the safe expiration threshold.
type SendLockExpired struct {
	Receiver          primitives.Address
	MessageIdentifier uint64
	SecretHash        primitives.Hash
	BalanceProof      *channel.BalanceProofState
}

// ContractSendSecretReveal schedules registering a secret on-chain via
// the SecretRegistry contract, used when a mediator or target must
// protect itself from an expiring lock (spec §4.5).
type ContractSendSecretReveal struct {
	Secret     primitives.Hash
	Expiration *big.Int
}

// PaymentSentSuccess notifies the upper layer an initiator payment
// completed.
type PaymentSentSuccess struct {
	PaymentIdentifier uint64
	Amount            *big.Int
	Target            primitives.Address
	SecretHash        primitives.Hash
}

// PaymentReceivedSuccess notifies the upper layer a target payment
// completed.
type PaymentReceivedSuccess struct {
	PaymentIdentifier uint64
	Amount            *big.Int
	Initiator         primitives.Address
	SecretHash        primitives.Hash
}

// ErrorPaymentSentFailed notifies the upper layer an initiator payment
// failed (no route, lock expired), spec §7.
type ErrorPaymentSentFailed struct {
	PaymentIdentifier uint64
	Target            primitives.Address
	Reason            string
}

// ErrorUnlockClaimFailed notifies the upper layer a mediator/target
// could not claim a lock it was owed, spec §4.5/§7.
type ErrorUnlockClaimFailed struct {
	SecretHash primitives.Hash
	Reason     string
}

func init() {
	gob.Register(&SendLockedTransfer{})
	gob.Register(&SendSecretRequest{})
	gob.Register(&SendSecretReveal{})
	gob.Register(&SendUnlock{})
	gob.Register(&SendLockExpired{})
	gob.Register(&ContractSendSecretReveal{})
	gob.Register(&PaymentSentSuccess{})
	gob.Register(&PaymentReceivedSuccess{})
	gob.Register(&ErrorPaymentSentFailed{})
	gob.Register(&ErrorUnlockClaimFailed{})
}
