package channel

import (
	"encoding/gob"
	"math/big"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
)

// ContractStateChange is implemented by every state-change decoded from
// an on-chain log, so the chain state-machine can order them by block
// number (adapted from the teacher's
// transfer/mediatedtransfer/statechange.go ContractStateChange
// interface).
type ContractStateChange interface {
	GetBlockNumber() int64
}

// ActionChannelClose requests that our side close the channel,
// spec §4.3.
type ActionChannelClose struct {
	CanonicalIdentifier primitives.CanonicalIdentifier
}

// ActionChannelWithdraw requests an off-chain-negotiated withdraw of
// `TotalWithdraw` tokens, spec §4.3.
type ActionChannelWithdraw struct {
	CanonicalIdentifier primitives.CanonicalIdentifier
	TotalWithdraw       *big.Int
}

// ActionChannelSetRevealTimeout requests changing this channel's
// reveal_timeout, spec §4.3.
type ActionChannelSetRevealTimeout struct {
	CanonicalIdentifier primitives.CanonicalIdentifier
	RevealTimeout       int64
}

// ReceiveWithdrawRequest is a partner-initiated withdraw request
// message, spec §4.3.
type ReceiveWithdrawRequest struct {
	CanonicalIdentifier primitives.CanonicalIdentifier
	Sender              primitives.Address
	TotalWithdraw       *big.Int
	Nonce               *big.Int
	Expiration          *big.Int
	Signature           []byte
}

// ReceiveWithdrawConfirmation is the partner's counter-signature over
// our withdraw request, spec §4.3.
type ReceiveWithdrawConfirmation struct {
	CanonicalIdentifier primitives.CanonicalIdentifier
	Sender              primitives.Address
	TotalWithdraw       *big.Int
	Nonce               *big.Int
	Expiration          *big.Int
	Signature           []byte
}

// ReceiveWithdrawExpired is the partner notifying us it has stopped
// honoring an expired withdraw, spec §4.3.
type ReceiveWithdrawExpired struct {
	CanonicalIdentifier primitives.CanonicalIdentifier
	Sender              primitives.Address
	TotalWithdraw       *big.Int
	Nonce               *big.Int
}

// ReceiveUnlock is a partner's Unlock message claiming a lock we hold,
// spec §4.3.
type ReceiveUnlock struct {
	CanonicalIdentifier primitives.CanonicalIdentifier
	Sender              primitives.Address
	Secret              primitives.Hash
	SecretHash          primitives.Hash
	BalanceProof        *BalanceProofState
}

// ReceiveLockExpired is a partner's notice that a lock it held for us
// has expired and should be removed, spec §4.3.
type ReceiveLockExpired struct {
	CanonicalIdentifier primitives.CanonicalIdentifier
	Sender              primitives.Address
	SecretHash          primitives.Hash
	BalanceProof        *BalanceProofState
}

// ReceiveLockedTransfer is a partner's new locked transfer, validated
// via handle_receive_locked_transfer (spec §4.3/§4.4).
type ReceiveLockedTransfer struct {
	CanonicalIdentifier primitives.CanonicalIdentifier
	Sender              primitives.Address
	Lock                *Lock
	BalanceProof        *BalanceProofState
}

// Block is the periodic block-number tick driving timeout-based
// transitions (lock/withdraw expiry).
type Block struct {
	BlockNumber int64
	BlockHash   primitives.Hash
}

// GetBlockNumber implements ContractStateChange.
func (b *Block) GetBlockNumber() int64 { return b.BlockNumber }

// ContractReceiveChannelDeposit mirrors a ChannelNewDeposit event
// (spec §4.3/§6.1).
type ContractReceiveChannelDeposit struct {
	CanonicalIdentifier primitives.CanonicalIdentifier
	Participant         primitives.Address
	TotalDeposit        *big.Int
	BlockNumber         int64
}

func (e *ContractReceiveChannelDeposit) GetBlockNumber() int64 { return e.BlockNumber }

// ContractReceiveChannelWithdraw mirrors a ChannelWithdraw event.
type ContractReceiveChannelWithdraw struct {
	CanonicalIdentifier primitives.CanonicalIdentifier
	Participant         primitives.Address
	TotalWithdraw       *big.Int
	BlockNumber         int64
}

func (e *ContractReceiveChannelWithdraw) GetBlockNumber() int64 { return e.BlockNumber }

// ContractReceiveChannelClosed mirrors a ChannelClosed event.
type ContractReceiveChannelClosed struct {
	CanonicalIdentifier primitives.CanonicalIdentifier
	TransactionFrom     primitives.Address
	Nonce               *big.Int
	BlockNumber         int64
}

func (e *ContractReceiveChannelClosed) GetBlockNumber() int64 { return e.BlockNumber }

// ContractReceiveChannelSettled mirrors a ChannelSettled event; the
// on-chain locksroots are taken by the decoder from the event's own
// participant1_locksroot/participant2_locksroot fields, with no separate
// on-chain read (spec §4.7).
type ContractReceiveChannelSettled struct {
	CanonicalIdentifier  primitives.CanonicalIdentifier
	OurOnchainLocksroot  primitives.Hash
	PartnerOnchainLocksroot primitives.Hash
	BlockNumber          int64
}

func (e *ContractReceiveChannelSettled) GetBlockNumber() int64 { return e.BlockNumber }

// ContractReceiveChannelBatchUnlock mirrors a ChannelUnlocked event.
type ContractReceiveChannelBatchUnlock struct {
	CanonicalIdentifier primitives.CanonicalIdentifier
	Participant         primitives.Address
	Partner             primitives.Address
	UnlockedAmount      *big.Int
	ReturnedTokens      *big.Int
	BlockNumber         int64
}

func (e *ContractReceiveChannelBatchUnlock) GetBlockNumber() int64 { return e.BlockNumber }

// ContractReceiveUpdateTransfer mirrors a NonClosingBalanceProofUpdated event.
type ContractReceiveUpdateTransfer struct {
	CanonicalIdentifier primitives.CanonicalIdentifier
	Nonce               *big.Int
	BlockNumber         int64
}

func (e *ContractReceiveUpdateTransfer) GetBlockNumber() int64 { return e.BlockNumber }

func init() {
	gob.Register(&ActionChannelClose{})
	gob.Register(&ActionChannelWithdraw{})
	gob.Register(&ActionChannelSetRevealTimeout{})
	gob.Register(&ReceiveWithdrawRequest{})
	gob.Register(&ReceiveWithdrawConfirmation{})
	gob.Register(&ReceiveWithdrawExpired{})
	gob.Register(&ReceiveUnlock{})
	gob.Register(&ReceiveLockExpired{})
	gob.Register(&ReceiveLockedTransfer{})
	gob.Register(&Block{})
	gob.Register(&ContractReceiveChannelDeposit{})
	gob.Register(&ContractReceiveChannelWithdraw{})
	gob.Register(&ContractReceiveChannelClosed{})
	gob.Register(&ContractReceiveChannelSettled{})
	gob.Register(&ContractReceiveChannelBatchUnlock{})
	gob.Register(&ContractReceiveUpdateTransfer{})
}
