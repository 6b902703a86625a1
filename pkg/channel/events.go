package channel

import (
	"encoding/gob"
	"math/big"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
)

// SendMessageEvent is embedded by every event that must become an
// outbound wire message, carrying the addressing the event-handler (K)
// needs to pick a QueueIdentifier (spec §5/§6.3).
type SendMessageEvent struct {
	Receiver            primitives.Address
	CanonicalIdentifier primitives.CanonicalIdentifier
	MessageIdentifier   uint64
}

// SendWithdrawRequest asks the partner to counter-sign a withdraw.
type SendWithdrawRequest struct {
	SendMessageEvent
	TotalWithdraw *big.Int
	Nonce         *big.Int
	Expiration    *big.Int
}

// SendWithdrawConfirmation counter-signs a partner's withdraw request.
type SendWithdrawConfirmation struct {
	SendMessageEvent
	TotalWithdraw *big.Int
	Nonce         *big.Int
	Expiration    *big.Int
}

// SendWithdrawExpired notifies the partner a pending withdraw has
// expired.
type SendWithdrawExpired struct {
	SendMessageEvent
	TotalWithdraw *big.Int
	Nonce         *big.Int
}

// SendProcessed acknowledges that an inbound message advanced our state
// machine (spec §6.2).
type SendProcessed struct {
	SendMessageEvent
}

// ContractSendChannelClose schedules the on-chain close transaction.
type ContractSendChannelClose struct {
	CanonicalIdentifier primitives.CanonicalIdentifier
	BalanceProof        *BalanceProofState // nil -> close with an empty proof
}

// ContractSendChannelWithdraw schedules materializing a confirmed
// off-chain withdraw on-chain.
type ContractSendChannelWithdraw struct {
	CanonicalIdentifier primitives.CanonicalIdentifier
	TotalWithdraw       *big.Int
	Expiration          *big.Int
	PartnerSignature    []byte
	OurSignature        []byte
}

// ContractSendChannelUpdateTransfer schedules submitting the partner's
// last known balance proof after they closed the channel without it.
type ContractSendChannelUpdateTransfer struct {
	CanonicalIdentifier primitives.CanonicalIdentifier
	BalanceProof        *BalanceProofState
	Expiration          *big.Int
}

// ContractSendChannelBatchUnlock schedules submitting the Merkle proof
// of every still-unlocked lock once the channel is settled.
type ContractSendChannelBatchUnlock struct {
	CanonicalIdentifier primitives.CanonicalIdentifier
	Participant         primitives.Address
	Partner             primitives.Address
}

// Error taxonomy events (spec §7): the state-machine emits these
// instead of mutating state or returning a Go error, so a rejected
// inbound message never aborts the transition.

type ErrorInvalidActionWithdraw struct {
	CanonicalIdentifier primitives.CanonicalIdentifier
	Reason              string
}

type ErrorInvalidActionSetRevealTimeout struct {
	CanonicalIdentifier primitives.CanonicalIdentifier
	Reason              string
}

type ErrorInvalidReceivedWithdrawRequest struct {
	CanonicalIdentifier primitives.CanonicalIdentifier
	Reason              string
}

type ErrorInvalidReceivedWithdrawConfirmation struct {
	CanonicalIdentifier primitives.CanonicalIdentifier
	Reason              string
}

type ErrorInvalidReceivedUnlock struct {
	CanonicalIdentifier primitives.CanonicalIdentifier
	SecretHash          primitives.Hash
	Reason              string
}

type ErrorInvalidReceivedLockExpired struct {
	CanonicalIdentifier primitives.CanonicalIdentifier
	SecretHash          primitives.Hash
	Reason              string
}

type ErrorInvalidReceivedLockedTransfer struct {
	CanonicalIdentifier primitives.CanonicalIdentifier
	Reason              string
}

func init() {
	gob.Register(&SendWithdrawRequest{})
	gob.Register(&SendWithdrawConfirmation{})
	gob.Register(&SendWithdrawExpired{})
	gob.Register(&SendProcessed{})
	gob.Register(&ContractSendChannelClose{})
	gob.Register(&ContractSendChannelWithdraw{})
	gob.Register(&ContractSendChannelUpdateTransfer{})
	gob.Register(&ContractSendChannelBatchUnlock{})
	gob.Register(&ErrorInvalidActionWithdraw{})
	gob.Register(&ErrorInvalidActionSetRevealTimeout{})
	gob.Register(&ErrorInvalidReceivedWithdrawRequest{})
	gob.Register(&ErrorInvalidReceivedWithdrawConfirmation{})
	gob.Register(&ErrorInvalidReceivedUnlock{})
	gob.Register(&ErrorInvalidReceivedLockExpired{})
	gob.Register(&ErrorInvalidReceivedLockedTransfer{})
}
