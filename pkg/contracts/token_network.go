package contracts

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
)

// TokenNetwork wraps one deployed TokenNetwork contract (spec §6.1):
// openChannel, setTotalDeposit, setTotalWithdraw, closeChannel,
// updateNonClosingBalanceProof, settleChannel, unlock.
type TokenNetwork struct {
	contract *bind.BoundContract
}

// ChannelDetails mirrors the proxy read `channel_details` spec §4.8
// names: the on-chain participant/channel bookkeeping a transaction's
// precondition check reads before submitting.
type ChannelDetails struct {
	ChannelIdentifier *big.Int
	SettleTimeout     *big.Int
	Status            uint8
}

// ParticipantDetails mirrors `participant_details`: one side's
// deposited/withdrawn/locked amounts as currently recorded on-chain.
type ParticipantDetails struct {
	Deposit       *big.Int
	Withdrawn     *big.Int
	IsCloser      bool
	BalanceHash   primitives.Hash
	Nonce         *big.Int
	Locksroot     primitives.Hash
	LockedAmount  *big.Int
}

// ChannelDetails reads a channel's current settlement bookkeeping.
func (t *TokenNetwork) ChannelDetails(opts *bind.CallOpts, channelIdentifier *big.Int) (ChannelDetails, error) {
	var out []interface{}
	if err := t.contract.Call(opts, &out, "channels", channelIdentifier); err != nil {
		return ChannelDetails{}, err
	}
	return decodeChannelDetails(out), nil
}

func decodeChannelDetails(out []interface{}) ChannelDetails {
	var d ChannelDetails
	if len(out) > 0 {
		if v, ok := out[0].(*big.Int); ok {
			d.SettleTimeout = v
		}
	}
	if len(out) > 1 {
		if v, ok := out[1].(uint8); ok {
			d.Status = v
		}
	}
	return d
}

// ParticipantDetails reads participant's current deposit/withdraw/lock
// bookkeeping for channelIdentifier.
func (t *TokenNetwork) ParticipantDetails(opts *bind.CallOpts, channelIdentifier *big.Int, participant primitives.Address) (ParticipantDetails, error) {
	var out []interface{}
	if err := t.contract.Call(opts, &out, "getChannelParticipantInfo", channelIdentifier, participant); err != nil {
		return ParticipantDetails{}, err
	}
	var d ParticipantDetails
	if len(out) >= 7 {
		d.Deposit, _ = out[0].(*big.Int)
		d.Withdrawn, _ = out[1].(*big.Int)
		d.IsCloser, _ = out[2].(bool)
		if h, ok := out[3].([32]byte); ok {
			d.BalanceHash = h
		}
		d.Nonce, _ = out[4].(*big.Int)
		if h, ok := out[5].([32]byte); ok {
			d.Locksroot = h
		}
		d.LockedAmount, _ = out[6].(*big.Int)
	}
	return d, nil
}

// SettlementTimeoutMin reads the contract's configured minimum settle
// timeout.
func (t *TokenNetwork) SettlementTimeoutMin(opts *bind.CallOpts) (*big.Int, error) {
	var out []interface{}
	if err := t.contract.Call(opts, &out, "settlement_timeout_min"); err != nil {
		return nil, err
	}
	return asBigInt(out), nil
}

// SettlementTimeoutMax reads the contract's configured maximum settle
// timeout.
func (t *TokenNetwork) SettlementTimeoutMax(opts *bind.CallOpts) (*big.Int, error) {
	var out []interface{}
	if err := t.contract.Call(opts, &out, "settlement_timeout_max"); err != nil {
		return nil, err
	}
	return asBigInt(out), nil
}

// TokenNetworkDepositLimit reads the per-channel deposit cap.
func (t *TokenNetwork) TokenNetworkDepositLimit(opts *bind.CallOpts) (*big.Int, error) {
	var out []interface{}
	if err := t.contract.Call(opts, &out, "channel_participant_deposit_limit"); err != nil {
		return nil, err
	}
	return asBigInt(out), nil
}

func asBigInt(out []interface{}) *big.Int {
	if len(out) == 0 {
		return big.NewInt(0)
	}
	if v, ok := out[0].(*big.Int); ok {
		return v
	}
	return big.NewInt(0)
}

// OpenChannel submits openChannel(participant1, participant2,
// settle_timeout) (spec §4.8 "channel open").
func (t *TokenNetwork) OpenChannel(opts *bind.TransactOpts, participant1, participant2 primitives.Address, settleTimeout *big.Int) (primitives.Hash, error) {
	tx, err := t.contract.Transact(opts, "openChannel", participant1, participant2, settleTimeout)
	if err != nil {
		return primitives.EmptyHash, err
	}
	return tx.Hash(), nil
}

// SetTotalDeposit submits setTotalDeposit(channel_identifier,
// participant, total_deposit, partner) (spec §4.8 "set_total_deposit,
// with token-approve prerequisite" — the approve call itself is the
// ExecutePrerequisite phase of the owning Transaction, not this method).
func (t *TokenNetwork) SetTotalDeposit(opts *bind.TransactOpts, channelIdentifier *big.Int, participant primitives.Address, totalDeposit *big.Int, partner primitives.Address) (primitives.Hash, error) {
	tx, err := t.contract.Transact(opts, "setTotalDeposit", channelIdentifier, participant, totalDeposit, partner)
	if err != nil {
		return primitives.EmptyHash, err
	}
	return tx.Hash(), nil
}

// SetTotalWithdraw submits setTotalWithdraw(channel_identifier,
// participant, total_withdraw, expiration_block, participant_signature,
// partner_signature) (spec §4.8 "set_total_withdraw, requires both
// signatures").
func (t *TokenNetwork) SetTotalWithdraw(opts *bind.TransactOpts, channelIdentifier *big.Int, participant primitives.Address, totalWithdraw, expirationBlock *big.Int, participantSignature, partnerSignature []byte) (primitives.Hash, error) {
	tx, err := t.contract.Transact(opts, "setTotalWithdraw", channelIdentifier, participant, totalWithdraw, expirationBlock, participantSignature, partnerSignature)
	if err != nil {
		return primitives.EmptyHash, err
	}
	return tx.Hash(), nil
}

// CloseChannel submits closeChannel with the partner's last known
// balance proof, or a zeroed one if we never received one.
func (t *TokenNetwork) CloseChannel(ctx context.Context, opts *bind.TransactOpts, channelIdentifier *big.Int, partner primitives.Address, balanceHash, nonce, additionalHash primitives.Hash, signature []byte) (primitives.Hash, error) {
	tx, err := t.contract.Transact(opts, "closeChannel", channelIdentifier, partner, balanceHash, nonce, additionalHash, signature)
	if err != nil {
		return primitives.EmptyHash, err
	}
	return tx.Hash(), nil
}

// UpdateNonClosingBalanceProof submits the non-closing participant's
// stored balance proof after the partner closed without it.
func (t *TokenNetwork) UpdateNonClosingBalanceProof(opts *bind.TransactOpts, channelIdentifier *big.Int, closingParticipant, nonClosingParticipant primitives.Address, balanceHash, additionalHash primitives.Hash, nonce *big.Int, closingSignature, nonClosingSignature []byte) (primitives.Hash, error) {
	tx, err := t.contract.Transact(opts, "updateNonClosingBalanceProof", channelIdentifier, closingParticipant, nonClosingParticipant, balanceHash, nonce, additionalHash, closingSignature, nonClosingSignature)
	if err != nil {
		return primitives.EmptyHash, err
	}
	return tx.Hash(), nil
}

// SettleChannel submits settleChannel with both participants' final
// transferred/locked amounts and locksroots.
func (t *TokenNetwork) SettleChannel(opts *bind.TransactOpts, channelIdentifier *big.Int, p1 primitives.Address, p1TransferredAmount, p1LockedAmount *big.Int, p1Locksroot primitives.Hash, p2 primitives.Address, p2TransferredAmount, p2LockedAmount *big.Int, p2Locksroot primitives.Hash) (primitives.Hash, error) {
	tx, err := t.contract.Transact(opts, "settleChannel", channelIdentifier, p1, p1TransferredAmount, p1LockedAmount, p1Locksroot, p2, p2TransferredAmount, p2LockedAmount, p2Locksroot)
	if err != nil {
		return primitives.EmptyHash, err
	}
	return tx.Hash(), nil
}

// Unlock submits the packed pending-locks Merkle leaves for every
// still-unlocked lock after settlement (spec §4.8 "unlock,
// pending-locks Merkle leaves packed and submitted").
func (t *TokenNetwork) Unlock(opts *bind.TransactOpts, channelIdentifier *big.Int, sender, receiver primitives.Address, lockedEncoded []byte) (primitives.Hash, error) {
	tx, err := t.contract.Transact(opts, "unlock", channelIdentifier, sender, receiver, lockedEncoded)
	if err != nil {
		return primitives.EmptyHash, err
	}
	return tx.Hash(), nil
}

// CoopSettle submits a cooperative settlement authorized by both
// participants' signatures, skipping the close/settle-timeout wait.
func (t *TokenNetwork) CoopSettle(opts *bind.TransactOpts, channelIdentifier *big.Int, p1 primitives.Address, p1BalanceProof []byte, p2 primitives.Address, p2BalanceProof []byte) (primitives.Hash, error) {
	tx, err := t.contract.Transact(opts, "cooperativeSettle", channelIdentifier, p1, p1BalanceProof, p2, p2BalanceProof)
	if err != nil {
		return primitives.EmptyHash, err
	}
	return tx.Hash(), nil
}
