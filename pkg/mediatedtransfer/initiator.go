package mediatedtransfer

import (
	"math/big"

	"github.com/ethereum/go-ethereum/log"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/channel"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/route"
)

var logger = log.New("module", "mediatedtransfer")

// Fee margin constants from spec §4.5: amount_with_fee = amount +
// estimated_fee + margin, margin = estimated_fee*alpha + amount*beta.
// Expressed as parts-per-thousand to stay in integer arithmetic.
const (
	feeMarginAlphaPerMille = 20  // 2%  of estimated_fee
	feeMarginBetaPerMille  = 3   // 0.3% of amount
	maxMediationFeePercentPerMille = 50 // MAX_MEDIATION_FEE_PERC: 5% of amount
)

// AmountWithFee computes the amount an initiator must lock so the
// receiving mediator still forwards `amount` net of its fee, including
// a safety margin (spec §4.5).
func AmountWithFee(amount, estimatedFee *big.Int) *big.Int {
	margin := new(big.Int).Div(new(big.Int).Mul(estimatedFee, big.NewInt(feeMarginAlphaPerMille)), big.NewInt(1000))
	margin.Add(margin, new(big.Int).Div(new(big.Int).Mul(amount, big.NewInt(feeMarginBetaPerMille)), big.NewInt(1000)))
	total := new(big.Int).Add(amount, estimatedFee)
	total.Add(total, margin)
	return total
}

// FeeWithinCap reports whether estimatedFee stays within
// MAX_MEDIATION_FEE_PERC of amount (spec §4.5).
func FeeWithinCap(amount, estimatedFee *big.Int) bool {
	cap := new(big.Int).Div(new(big.Int).Mul(amount, big.NewInt(maxMediationFeePercentPerMille)), big.NewInt(1000))
	return estimatedFee.Cmp(cap) <= 0
}

// InitInitiator picks the first usable route and emits the initial
// locked transfer for a new payment (spec §4.5 ActionInitInitiator).
// channelsByNextHop maps each candidate route's next hop to our channel
// with it; the caller (chain-level dispatch) resolves this from the
// token network state.
func InitInitiator(
	sc *ActionInitInitiator,
	channelsByNextHop map[primitives.Address]*channel.State,
	prng *primitives.PseudoRandom,
) (*TransferTask, []interface{}) {
	desc := sc.TransferDescription
	for _, rt := range sc.Routes.Usable() {
		nextHop := rt.NextHopAfter(sc.OurAddress)
		if nextHop == primitives.EmptyAddress {
			continue
		}
		ch := channelsByNextHop[nextHop]
		if ch == nil || ch.StatusOf() != channel.StatusOpened {
			continue
		}
		fee := rt.EstimatedFee
		if fee == nil {
			fee = big.NewInt(0)
		}
		if !FeeWithinCap(desc.Amount, fee) {
			continue
		}
		amountWithFee := AmountWithFee(desc.Amount, fee)
		if !ch.IsUsableForNewTransfer(amountWithFee, desc.LockTimeout) {
			continue
		}

		lockExpiration := channel.GetSafeInitialExpiration(sc.BlockNumber, ch.RevealTimeout, desc.LockTimeout)
		lock := channel.NewLock(amountWithFee, lockExpiration, desc.SecretHash)

		prospectiveLocks := ch.OurState.PendingLocks.Clone()
		prospectiveLocks.Add(lock)
		nonce := ch.OurState.NextNonce()
		transferred := ch.OurState.TransferredAmount()
		locked := prospectiveLocks.Amount()
		locksroot := prospectiveLocks.Locksroot()
		balanceHash := primitives.HashBalanceData(transferred, locked, locksroot)

		msgID := prng.NextMessageIdentifier()

		transfer := &LockedTransferState{
			PaymentIdentifier: desc.PaymentIdentifier,
			Token:             desc.TokenNetworkAddress,
			Lock:              lock,
			Initiator:         desc.Initiator,
			Target:            desc.Target,
			MessageIdentifier: msgID,
			Routes:            &route.RoutesState{Routes: []*route.State{rt.PruneBefore(nextHop)}},
			BalanceProof: &channel.BalanceProofState{
				Nonce:               nonce,
				TransferredAmount:   transferred,
				LockedAmount:        locked,
				Locksroot:           locksroot,
				BalanceHash:         balanceHash,
				Sender:              sc.OurAddress,
				CanonicalIdentifier: ch.CanonicalIdentifier,
			},
		}

		task := &TransferTask{
			Role: RoleInitiator,
			Initiator: &InitiatorTransferState{
				TransferDescription: desc,
				Route:                rt,
				Transfer:             transfer,
				Status:               InitiatorWaitingForSecretRequest,
				RevealTimeout:        ch.RevealTimeout,
			},
		}
		return task, []interface{}{
			&SendLockedTransfer{Receiver: nextHop, MessageIdentifier: msgID, Transfer: transfer},
		}
	}

	return &TransferTask{Role: RoleInitiator, Initiator: &InitiatorTransferState{TransferDescription: desc, Status: InitiatorPaymentFailed}},
		[]interface{}{&ErrorPaymentSentFailed{PaymentIdentifier: desc.PaymentIdentifier, Target: desc.Target, Reason: "no usable route"}}
}

// ReceiveSecretRequestInitiator validates an inbound SecretRequest and,
// if it matches the outstanding transfer, reveals the secret to the
// next hop (spec §4.5).
func ReceiveSecretRequestInitiator(task *InitiatorTransferState, sc *ReceiveSecretRequest) (*InitiatorTransferState, []interface{}) {
	if task.Status != InitiatorWaitingForSecretRequest {
		return task, nil
	}
	if sc.Sender != task.TransferDescription.Target {
		return task, nil
	}
	if sc.Amount.Cmp(task.Transfer.Lock.Amount) != 0 {
		return task, nil
	}
	if sc.Expiration.Cmp(task.Transfer.Lock.Expiration) != 0 {
		return task, nil
	}
	next := *task
	next.Status = InitiatorWaitingForSecretReveal
	nextHop := task.Route.NextHopAfter(task.Transfer.BalanceProof.Sender)
	return &next, []interface{}{
		&SendSecretReveal{Receiver: nextHop, Secret: task.TransferDescription.Secret},
	}
}

// ReceiveSecretRevealInitiator registers the secret off-chain on our
// channel with the first hop and unlocks, completing the payment
// (spec §4.5).
func ReceiveSecretRevealInitiator(task *InitiatorTransferState, sc *ReceiveSecretReveal, ch *channel.State) (*InitiatorTransferState, []interface{}) {
	if task.Status != InitiatorWaitingForSecretReveal && task.Status != InitiatorWaitingForSecretRequest {
		return task, nil
	}
	ch.OurState.RegisterSecretOffchain(sc.Secret)

	prospective := ch.OurState.PendingLocks.Clone()
	prospective.Remove(task.Transfer.Lock.SecretHash)
	newTransferred := new(big.Int).Add(ch.OurState.TransferredAmount(), task.Transfer.Lock.Amount)
	nonce := ch.OurState.NextNonce()
	locked := prospective.Amount()
	locksroot := prospective.Locksroot()
	bp := &channel.BalanceProofState{
		Nonce:               nonce,
		TransferredAmount:   newTransferred,
		LockedAmount:        locked,
		Locksroot:           locksroot,
		BalanceHash:         primitives.HashBalanceData(newTransferred, locked, locksroot),
		Sender:              ch.OurState.Address,
		CanonicalIdentifier: ch.CanonicalIdentifier,
	}

	next := *task
	next.Status = InitiatorPaymentSent
	return &next, []interface{}{
		&SendUnlock{
			Receiver:          ch.PartnerState.Address,
			PaymentIdentifier: task.TransferDescription.PaymentIdentifier,
			SecretHash:        task.Transfer.Lock.SecretHash,
			BalanceProof:      bp,
		},
		&PaymentSentSuccess{
			PaymentIdentifier: task.TransferDescription.PaymentIdentifier,
			Amount:            task.TransferDescription.Amount,
			Target:            task.TransferDescription.Target,
			SecretHash:        task.Transfer.Lock.SecretHash,
		},
	}
}

// ExpireInitiator checks whether the initiator's outstanding lock has
// passed its safe expiration threshold and, if so, withdraws it
// (spec §4.5).
func ExpireInitiator(task *InitiatorTransferState, block int64) (*InitiatorTransferState, []interface{}) {
	if task.Status == InitiatorPaymentSent || task.Status == InitiatorPaymentFailed {
		return task, nil
	}
	threshold := channel.ReceiverExpirationThreshold(task.Transfer.Lock.Expiration, 1)
	if big.NewInt(block).Cmp(threshold) < 0 {
		return task, nil
	}

	next := *task
	next.Status = InitiatorPaymentFailed
	return &next, []interface{}{
		&SendLockExpired{
			Receiver:   task.Route.NextHopAfter(task.Transfer.BalanceProof.Sender),
			SecretHash: task.Transfer.Lock.SecretHash,
		},
		&ErrorPaymentSentFailed{
			PaymentIdentifier: task.TransferDescription.PaymentIdentifier,
			Target:            task.TransferDescription.Target,
			Reason:            "Lock expired",
		},
	}
}
