package channel

import (
	"fmt"
	"math/big"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
)

// confirmedBlockOffset is the buffer (in blocks) a receiver adds on top
// of a lock/withdraw expiration before treating it as safely expired,
// guarding against shallow reorgs (spec §3 invariant 6, §9 Open
// Questions on reorg handling).
const confirmedBlockOffset = 1

// Transition applies one state-change to a channel, returning the
// successor state (nil once settled+pruned, spec §4.3) and the events
// produced. It is the sub-state-machine for component C.
func Transition(state *State, stateChange interface{}, block int64, blockHash primitives.Hash) (*State, []interface{}) {
	switch sc := stateChange.(type) {
	case *ActionChannelClose:
		return handleActionChannelClose(state, sc)
	case *ActionChannelWithdraw:
		return handleActionChannelWithdraw(state, sc, block)
	case *ActionChannelSetRevealTimeout:
		return handleActionChannelSetRevealTimeout(state, sc)
	case *ReceiveWithdrawRequest:
		return handleReceiveWithdrawRequest(state, sc)
	case *ReceiveWithdrawConfirmation:
		return handleReceiveWithdrawConfirmation(state, sc)
	case *ReceiveWithdrawExpired:
		return handleReceiveWithdrawExpired(state, sc)
	case *ReceiveLockedTransfer:
		return handleReceiveLockedTransfer(state, sc)
	case *ReceiveUnlock:
		return handleReceiveUnlock(state, sc)
	case *ReceiveLockExpired:
		return handleReceiveLockExpired(state, sc, block)
	case *ContractReceiveChannelDeposit:
		return handleContractReceiveChannelDeposit(state, sc)
	case *ContractReceiveChannelWithdraw:
		return handleContractReceiveChannelWithdraw(state, sc)
	case *ContractReceiveChannelClosed:
		return handleContractReceiveChannelClosed(state, sc)
	case *ContractReceiveChannelSettled:
		return handleContractReceiveChannelSettled(state, sc)
	case *Block:
		return handleBlock(state, sc)
	default:
		return state, nil
	}
}

func handleActionChannelClose(state *State, sc *ActionChannelClose) (*State, []interface{}) {
	if state.StatusOf() != StatusOpened {
		return state, nil
	}
	next := *state
	next.CloseTransaction = &TransactionResult{Started: true}
	return &next, []interface{}{
		&ContractSendChannelClose{
			CanonicalIdentifier: state.CanonicalIdentifier,
			BalanceProof:        state.PartnerState.BalanceProof,
		},
	}
}

func handleActionChannelWithdraw(state *State, sc *ActionChannelWithdraw, block int64) (*State, []interface{}) {
	if state.StatusOf() != StatusOpened {
		return state, []interface{}{invalidActionWithdraw(state, "channel is not opened")}
	}
	if sc.TotalWithdraw.Cmp(state.OurState.OffchainTotalWithdraw()) <= 0 {
		return state, []interface{}{invalidActionWithdraw(state, "total_withdraw must increase")}
	}
	combined := new(big.Int).Add(sc.TotalWithdraw, state.PartnerState.TotalWithdraw())
	if combined.Cmp(state.Deposit()) > 0 {
		return state, []interface{}{invalidActionWithdraw(state, "total_withdraw exceeds channel deposit")}
	}
	key := sc.TotalWithdraw.String()
	if _, ok := state.OurState.WithdrawsPending[key]; ok {
		return state, []interface{}{invalidActionWithdraw(state, "withdraw already pending")}
	}

	next := cloneState(state)
	nonce := next.OurState.NextNonce()
	expiration := big.NewInt(block + next.SettleTimeout/2)
	next.OurState.WithdrawsPending[key] = &PendingWithdraw{
		TotalWithdraw: sc.TotalWithdraw,
		Expiration:    expiration,
		Nonce:         nonce,
	}
	return next, []interface{}{
		&SendWithdrawRequest{
			SendMessageEvent: SendMessageEvent{
				Receiver:            state.PartnerState.Address,
				CanonicalIdentifier: state.CanonicalIdentifier,
			},
			TotalWithdraw: sc.TotalWithdraw,
			Nonce:         nonce,
			Expiration:    expiration,
		},
	}
}

func handleActionChannelSetRevealTimeout(state *State, sc *ActionChannelSetRevealTimeout) (*State, []interface{}) {
	if sc.RevealTimeout*2 >= state.SettleTimeout {
		return state, []interface{}{&ErrorInvalidActionSetRevealTimeout{
			CanonicalIdentifier: state.CanonicalIdentifier,
			Reason:              "reveal_timeout must be less than settle_timeout/2",
		}}
	}
	next := cloneState(state)
	next.RevealTimeout = sc.RevealTimeout
	return next, nil
}

func handleReceiveWithdrawRequest(state *State, sc *ReceiveWithdrawRequest) (*State, []interface{}) {
	if sc.Sender != state.PartnerState.Address {
		return state, []interface{}{invalidReceivedWithdrawRequest(state, "sender is not our partner")}
	}
	packed := primitives.PackWithdraw(state.CanonicalIdentifier, sc.Sender, sc.TotalWithdraw, sc.Expiration)
	digest := primitives.Keccak256(packed)
	recovered, err := primitives.Recover(digest, sc.Signature)
	if err != nil || recovered != sc.Sender {
		return state, []interface{}{invalidReceivedWithdrawRequest(state, "invalid signature")}
	}
	if sc.Nonce.Cmp(state.PartnerState.NextNonce()) != 0 {
		return state, []interface{}{invalidReceivedWithdrawRequest(state, "nonce is not monotonic")}
	}
	combined := new(big.Int).Add(sc.TotalWithdraw, state.OurState.TotalWithdraw())
	if combined.Cmp(state.Deposit()) > 0 {
		return state, []interface{}{invalidReceivedWithdrawRequest(state, "total_withdraw exceeds channel deposit")}
	}

	next := cloneState(state)
	key := sc.TotalWithdraw.String()
	next.PartnerState.WithdrawsPending[key] = &PendingWithdraw{
		TotalWithdraw: sc.TotalWithdraw,
		Expiration:    sc.Expiration,
		Nonce:         sc.Nonce,
	}
	next.PartnerState.Nonce = sc.Nonce

	return next, []interface{}{
		&SendWithdrawConfirmation{
			SendMessageEvent: SendMessageEvent{
				Receiver:            state.PartnerState.Address,
				CanonicalIdentifier: state.CanonicalIdentifier,
			},
			TotalWithdraw: sc.TotalWithdraw,
			Nonce:         sc.Nonce,
			Expiration:    sc.Expiration,
		},
	}
}

func handleReceiveWithdrawConfirmation(state *State, sc *ReceiveWithdrawConfirmation) (*State, []interface{}) {
	if sc.Sender != state.PartnerState.Address {
		return state, []interface{}{invalidReceivedWithdrawConfirmation(state, "sender is not our partner")}
	}
	packed := primitives.PackWithdraw(state.CanonicalIdentifier, state.OurState.Address, sc.TotalWithdraw, sc.Expiration)
	digest := primitives.Keccak256(packed)
	recovered, err := primitives.Recover(digest, sc.Signature)
	if err != nil || recovered != sc.Sender {
		return state, []interface{}{invalidReceivedWithdrawConfirmation(state, "invalid signature")}
	}
	key := sc.TotalWithdraw.String()
	if _, ok := state.OurState.WithdrawsPending[key]; !ok {
		return state, []interface{}{invalidReceivedWithdrawConfirmation(state, "no matching pending withdraw")}
	}
	return state, []interface{}{
		&ContractSendChannelWithdraw{
			CanonicalIdentifier: state.CanonicalIdentifier,
			TotalWithdraw:       sc.TotalWithdraw,
			Expiration:          sc.Expiration,
			PartnerSignature:    sc.Signature,
		},
	}
}

func handleReceiveWithdrawExpired(state *State, sc *ReceiveWithdrawExpired) (*State, []interface{}) {
	key := sc.TotalWithdraw.String()
	next := cloneState(state)
	if pending, ok := next.PartnerState.WithdrawsPending[key]; ok {
		delete(next.PartnerState.WithdrawsPending, key)
		next.PartnerState.WithdrawsExpired = append(next.PartnerState.WithdrawsExpired, pending)
	}
	return next, nil
}

func handleContractReceiveChannelDeposit(state *State, sc *ContractReceiveChannelDeposit) (*State, []interface{}) {
	next := cloneState(state)
	end := next.OurState
	if sc.Participant == next.PartnerState.Address {
		end = next.PartnerState
	}
	if sc.TotalDeposit.Cmp(end.ContractBalance) > 0 {
		end.ContractBalance = sc.TotalDeposit
	}
	return next, nil
}

func handleContractReceiveChannelWithdraw(state *State, sc *ContractReceiveChannelWithdraw) (*State, []interface{}) {
	next := cloneState(state)
	end := next.OurState
	if sc.Participant == next.PartnerState.Address {
		end = next.PartnerState
	}
	if sc.TotalWithdraw.Cmp(end.OnchainTotalWithdraw) > 0 {
		end.OnchainTotalWithdraw = sc.TotalWithdraw
	}
	return next, nil
}

func handleContractReceiveChannelClosed(state *State, sc *ContractReceiveChannelClosed) (*State, []interface{}) {
	next := cloneState(state)
	next.CloseTransaction = &TransactionResult{Started: true, Finished: true, Success: true, BlockNumber: sc.BlockNumber}

	var events []interface{}
	// If the partner closed with our balance-proof absent from what
	// they submitted (we know our own latest nonce; the closing
	// transaction only carries what the closer had), schedule an
	// update-transfer carrying our latest received balance-proof,
	// spec §4.3.
	if sc.TransactionFrom == next.PartnerState.Address && next.PartnerState.BalanceProof != nil {
		if sc.Nonce.Cmp(next.PartnerState.BalanceProof.Nonce) < 0 {
			expiration := big.NewInt(sc.BlockNumber + next.SettleTimeout/2)
			events = append(events, &ContractSendChannelUpdateTransfer{
				CanonicalIdentifier: state.CanonicalIdentifier,
				BalanceProof:        next.PartnerState.BalanceProof,
				Expiration:          expiration,
			})
		}
	}
	return next, events
}

func handleContractReceiveChannelSettled(state *State, sc *ContractReceiveChannelSettled) (*State, []interface{}) {
	next := cloneState(state)
	next.SettleTransaction = &TransactionResult{Started: true, Finished: true, Success: true, BlockNumber: sc.BlockNumber}

	var events []interface{}
	ourLocksroot := next.OurState.PendingLocks.Locksroot()
	if sc.OurOnchainLocksroot == ourLocksroot && len(next.OurState.SecretHashesToUnlockedLocks.Locks()) > 0 {
		events = append(events, &ContractSendChannelBatchUnlock{
			CanonicalIdentifier: state.CanonicalIdentifier,
			Participant:         next.OurState.Address,
			Partner:             next.PartnerState.Address,
		})
	}
	partnerLocksroot := next.PartnerState.PendingLocks.Locksroot()
	if sc.PartnerOnchainLocksroot == partnerLocksroot && len(next.PartnerState.SecretHashesToUnlockedLocks.Locks()) > 0 {
		events = append(events, &ContractSendChannelBatchUnlock{
			CanonicalIdentifier: state.CanonicalIdentifier,
			Participant:         next.PartnerState.Address,
			Partner:             next.OurState.Address,
		})
	}
	return next, events
}

func handleBlock(state *State, sc *Block) (*State, []interface{}) {
	next := cloneState(state)
	var events []interface{}
	for key, pending := range next.OurState.WithdrawsPending {
		threshold := ReceiverExpirationThreshold(pending.Expiration, confirmedBlockOffset)
		if big.NewInt(sc.BlockNumber).Cmp(threshold) >= 0 {
			delete(next.OurState.WithdrawsPending, key)
			next.OurState.WithdrawsExpired = append(next.OurState.WithdrawsExpired, pending)
			events = append(events, &SendWithdrawExpired{
				SendMessageEvent: SendMessageEvent{
					Receiver:            state.PartnerState.Address,
					CanonicalIdentifier: state.CanonicalIdentifier,
				},
				TotalWithdraw: pending.TotalWithdraw,
				Nonce:         next.OurState.NextNonce(),
			})
		}
	}
	return next, events
}

// handleReceiveLockedTransfer validates and admits an inbound locked
// transfer per the central correctness checkpoint in spec §4.4.
func handleReceiveLockedTransfer(state *State, sc *ReceiveLockedTransfer) (*State, []interface{}) {
	prospective := state.PartnerState.PendingLocks.Clone()
	prospective.Add(sc.Lock)

	if err := validateBalanceProof(state, state.PartnerState, sc.Sender, sc.BalanceProof, prospective, state.PartnerState.TransferredAmount(), false, nil); err != nil {
		return state, []interface{}{&ErrorInvalidReceivedLockedTransfer{
			CanonicalIdentifier: state.CanonicalIdentifier,
			Reason:              err.Error(),
		}}
	}
	if state.OurState.Distributable(state.PartnerState).Sign() < 0 {
		return state, []interface{}{&ErrorInvalidReceivedLockedTransfer{
			CanonicalIdentifier: state.CanonicalIdentifier,
			Reason:              "channel distributable would go negative",
		}}
	}

	next := cloneState(state)
	next.PartnerState.PendingLocks.Add(sc.Lock)
	next.PartnerState.SecretHashesToLockedLocks.Add(sc.Lock)
	next.PartnerState.BalanceProof = sc.BalanceProof
	next.PartnerState.Nonce = sc.BalanceProof.Nonce

	return next, []interface{}{
		&SendProcessed{SendMessageEvent: SendMessageEvent{Receiver: sc.Sender, CanonicalIdentifier: state.CanonicalIdentifier}},
	}
}

// handleReceiveUnlock validates a partner's claim against a lock we
// hold (spec §4.3/§4.4).
func handleReceiveUnlock(state *State, sc *ReceiveUnlock) (*State, []interface{}) {
	lock := state.PartnerState.SecretHashesToUnlockedLocks.Get(sc.SecretHash)
	if lock == nil {
		lock = state.PartnerState.SecretHashesToLockedLocks.Get(sc.SecretHash)
	}
	if lock == nil {
		return state, []interface{}{&ErrorInvalidReceivedUnlock{
			CanonicalIdentifier: state.CanonicalIdentifier,
			SecretHash:          sc.SecretHash,
			Reason:              "unknown lock",
		}}
	}

	prospective := state.PartnerState.PendingLocks.Clone()
	prospective.Remove(sc.SecretHash)
	expectedTransferred := new(big.Int).Add(state.PartnerState.TransferredAmount(), lock.Amount)

	if err := validateBalanceProof(state, state.PartnerState, sc.Sender, sc.BalanceProof, prospective, expectedTransferred, true, nil); err != nil {
		return state, []interface{}{&ErrorInvalidReceivedUnlock{
			CanonicalIdentifier: state.CanonicalIdentifier,
			SecretHash:          sc.SecretHash,
			Reason:              err.Error(),
		}}
	}

	next := cloneState(state)
	next.PartnerState.PendingLocks.Remove(sc.SecretHash)
	next.PartnerState.SecretHashesToLockedLocks.Remove(sc.SecretHash)
	next.PartnerState.SecretHashesToUnlockedLocks.Remove(sc.SecretHash)
	next.PartnerState.BalanceProof = sc.BalanceProof
	next.PartnerState.Nonce = sc.BalanceProof.Nonce

	return next, []interface{}{
		&SendProcessed{SendMessageEvent: SendMessageEvent{Receiver: sc.Sender, CanonicalIdentifier: state.CanonicalIdentifier}},
	}
}

// handleReceiveLockExpired validates the partner's claim that a lock it
// held for us has expired (spec §4.3/§4.4).
func handleReceiveLockExpired(state *State, sc *ReceiveLockExpired, block int64) (*State, []interface{}) {
	lock := state.PartnerState.SecretHashesToLockedLocks.Get(sc.SecretHash)
	if lock == nil {
		return state, []interface{}{&ErrorInvalidReceivedLockExpired{
			CanonicalIdentifier: state.CanonicalIdentifier,
			SecretHash:          sc.SecretHash,
			Reason:              "unknown lock",
		}}
	}
	threshold := ReceiverExpirationThreshold(lock.Expiration, confirmedBlockOffset)
	if big.NewInt(block).Cmp(threshold) < 0 {
		return state, []interface{}{&ErrorInvalidReceivedLockExpired{
			CanonicalIdentifier: state.CanonicalIdentifier,
			SecretHash:          sc.SecretHash,
			Reason:              "lock has not yet expired",
		}}
	}

	prospective := state.PartnerState.PendingLocks.Clone()
	prospective.Remove(sc.SecretHash)

	if err := validateBalanceProof(state, state.PartnerState, sc.Sender, sc.BalanceProof, prospective, state.PartnerState.TransferredAmount(), false, nil); err != nil {
		return state, []interface{}{&ErrorInvalidReceivedLockExpired{
			CanonicalIdentifier: state.CanonicalIdentifier,
			SecretHash:          sc.SecretHash,
			Reason:              err.Error(),
		}}
	}

	next := cloneState(state)
	next.PartnerState.PendingLocks.Remove(sc.SecretHash)
	next.PartnerState.SecretHashesToLockedLocks.Remove(sc.SecretHash)
	next.PartnerState.BalanceProof = sc.BalanceProof
	next.PartnerState.Nonce = sc.BalanceProof.Nonce

	return next, []interface{}{
		&SendProcessed{SendMessageEvent: SendMessageEvent{Receiver: sc.Sender, CanonicalIdentifier: state.CanonicalIdentifier}},
	}
}

// validateBalanceProof is the shared checkpoint from spec §4.4: every
// field of an inbound balance-proof-bearing message is checked before
// any state mutation is allowed. receivingEnd is the end-state whose
// next nonce/locks are being asserted against (the sender's side).
func validateBalanceProof(
	state *State,
	receivingEnd *EndState,
	sender primitives.Address,
	bp *BalanceProofState,
	prospectiveLocks *PendingLocks,
	expectedTransferred *big.Int,
	mustIncrease bool,
	_ interface{},
) error {
	if sender != receivingEnd.Address {
		return fmt.Errorf("sender %s does not match partner %s", sender.Hex(), receivingEnd.Address.Hex())
	}
	if !bp.CanonicalIdentifier.Equal(state.CanonicalIdentifier) {
		return fmt.Errorf("canonical identifier mismatch")
	}
	if bp.Nonce.Cmp(receivingEnd.NextNonce()) != 0 {
		return fmt.Errorf("nonce %s is not the expected next nonce %s (skipped or replayed)", bp.Nonce, receivingEnd.NextNonce())
	}
	expectedLocked := prospectiveLocks.Amount()
	if bp.LockedAmount.Cmp(expectedLocked) != 0 {
		return fmt.Errorf("locked_amount %s does not match pending locks sum %s", bp.LockedAmount, expectedLocked)
	}
	expectedLocksroot := prospectiveLocks.Locksroot()
	if bp.Locksroot != expectedLocksroot {
		return fmt.Errorf("locksroot mismatch")
	}
	expectedHash := primitives.HashBalanceData(bp.TransferredAmount, bp.LockedAmount, bp.Locksroot)
	if bp.BalanceHash != expectedHash {
		return fmt.Errorf("balance_hash does not match (transferred, locked, locksroot)")
	}
	if mustIncrease {
		if bp.TransferredAmount.Cmp(expectedTransferred) != 0 {
			return fmt.Errorf("transferred_amount did not increase by exactly the lock amount")
		}
	} else {
		if bp.TransferredAmount.Cmp(expectedTransferred) != 0 {
			return fmt.Errorf("transferred_amount must stay unchanged")
		}
	}
	packed := primitives.PackBalanceProof(bp.Nonce, bp.BalanceHash, bp.MessageHash, bp.CanonicalIdentifier, primitives.MessageTypeIDBalanceProof)
	digest := primitives.Keccak256(packed)
	recovered, err := primitives.Recover(digest, bp.Signature)
	if err != nil || recovered != sender {
		return fmt.Errorf("signature does not recover to sender")
	}
	return nil
}

// cloneState returns a copy of state whose OurState/PartnerState are
// independent of the predecessor's, so a handler is free to mutate them
// in place without retroactively changing the state it was given (spec
// §3/§5: Transition is a pure function, no aliasing between successive
// states).
func cloneState(state *State) *State {
	next := *state
	next.OurState = state.OurState.Clone()
	next.PartnerState = state.PartnerState.Clone()
	return &next
}

func invalidActionWithdraw(state *State, reason string) *ErrorInvalidActionWithdraw {
	return &ErrorInvalidActionWithdraw{CanonicalIdentifier: state.CanonicalIdentifier, Reason: reason}
}

func invalidReceivedWithdrawRequest(state *State, reason string) *ErrorInvalidReceivedWithdrawRequest {
	return &ErrorInvalidReceivedWithdrawRequest{CanonicalIdentifier: state.CanonicalIdentifier, Reason: reason}
}

func invalidReceivedWithdrawConfirmation(state *State, reason string) *ErrorInvalidReceivedWithdrawConfirmation {
	return &ErrorInvalidReceivedWithdrawConfirmation{CanonicalIdentifier: state.CanonicalIdentifier, Reason: reason}
}
