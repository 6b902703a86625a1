package mediatedtransfer

import (
	"math/big"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/channel"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
)

// InitMediator validates the inbound transfer and, if a safe forwarding
// route exists, emits the outbound locked transfer for the next hop
// (spec §4.5 ActionInitMediator).
func InitMediator(
	sc *ActionInitMediator,
	payerChannel *channel.State,
	channelsByNextHop map[primitives.Address]*channel.State,
	block int64,
	prng *primitives.PseudoRandom,
) (*TransferTask, []interface{}) {
	secretHash := sc.FromTransfer.Lock.SecretHash

	for _, rt := range sc.Routes.Usable() {
		nextHop := rt.NextHopAfter(sc.OurAddress)
		if nextHop == primitives.EmptyAddress || nextHop == sc.FromRoute.NextHopAfter(sc.OurAddress) {
			continue
		}
		payeeChannel := channelsByNextHop[nextHop]
		if payeeChannel == nil || payeeChannel.StatusOf() != channel.StatusOpened {
			continue
		}

		fee := mediationFee(payeeChannel, sc.FromTransfer.Lock.Amount)
		forwardedAmount := new(big.Int).Sub(sc.FromTransfer.Lock.Amount, fee)
		if forwardedAmount.Sign() <= 0 {
			continue
		}

		forwardExpiration := new(big.Int).Sub(sc.FromTransfer.Lock.Expiration, big.NewInt(payeeChannel.RevealTimeout))
		safeToWait := big.NewInt(block + payeeChannel.RevealTimeout)
		if forwardExpiration.Cmp(safeToWait) < 0 {
			continue
		}
		if !payeeChannel.IsUsableForNewTransfer(forwardedAmount, nil) {
			continue
		}

		lock := channel.NewLock(forwardedAmount, forwardExpiration, secretHash)
		prospectiveLocks := payeeChannel.OurState.PendingLocks.Clone()
		prospectiveLocks.Add(lock)
		nonce := payeeChannel.OurState.NextNonce()
		transferred := payeeChannel.OurState.TransferredAmount()
		locked := prospectiveLocks.Amount()
		locksroot := prospectiveLocks.Locksroot()

		msgID := prng.NextMessageIdentifier()
		payeeTransfer := &LockedTransferState{
			PaymentIdentifier: sc.FromTransfer.PaymentIdentifier,
			Token:             sc.FromTransfer.Token,
			Lock:              lock,
			Initiator:         sc.FromTransfer.Initiator,
			Target:            sc.FromTransfer.Target,
			MessageIdentifier: msgID,
			BalanceProof: &channel.BalanceProofState{
				Nonce:               nonce,
				TransferredAmount:   transferred,
				LockedAmount:        locked,
				Locksroot:           locksroot,
				BalanceHash:         primitives.HashBalanceData(transferred, locked, locksroot),
				Sender:              sc.OurAddress,
				CanonicalIdentifier: payeeChannel.CanonicalIdentifier,
			},
		}

		task := &TransferTask{
			Role: RoleMediator,
			Mediator: &MediatorTransferState{
				SecretHash: secretHash,
				Status:     MediatorWaitingSecretReveal,
				Pairs: []*MediatorTransferPair{{
					PayerTransfer: sc.FromTransfer,
					PayerSender:   sc.FromTransfer.BalanceProof.Sender,
					PayeeTransfer: payeeTransfer,
					PayeeReceiver: nextHop,
					PayeeRoute:    rt,
				}},
			},
		}
		return task, []interface{}{&SendLockedTransfer{Receiver: nextHop, MessageIdentifier: msgID, Transfer: payeeTransfer}}
	}

	return &TransferTask{Role: RoleMediator, Mediator: &MediatorTransferState{SecretHash: secretHash, Status: MediatorFinished}},
		[]interface{}{&SendLockExpired{Receiver: sc.FromTransfer.BalanceProof.Sender, SecretHash: secretHash}}
}

// mediationFee computes the flat+proportional fee the payee channel's
// fee schedule charges for forwarding amount, spec §4.5/§11 domain-stack
// fee_schedule wiring.
func mediationFee(payeeChannel *channel.State, amount *big.Int) *big.Int {
	fs := payeeChannel.FeeSchedule
	if fs == nil {
		return big.NewInt(0)
	}
	fee := new(big.Int).Set(fs.Flat)
	if fs.ProportionalPercent != nil && fs.ProportionalPercent.Sign() > 0 {
		prop := new(big.Int).Mul(amount, fs.ProportionalPercent)
		prop.Div(prop, big.NewInt(10000))
		fee.Add(fee, prop)
	}
	return fee
}

// ReceiveSecretRevealMediator registers the secret on the payee leg,
// reveals it to the payer, and unlocks once the payer has unlocked
// (spec §4.5).
func ReceiveSecretRevealMediator(task *MediatorTransferState, sc *ReceiveSecretReveal, payerChannel, payeeChannel *channel.State) (*MediatorTransferState, []interface{}) {
	var events []interface{}
	next := *task
	next.Secret = sc.Secret

	for i, pair := range task.Pairs {
		if sc.Sender != pair.PayeeReceiver {
			continue
		}
		payeeChannel.OurState.RegisterSecretOffchain(sc.Secret)
		events = append(events, &SendSecretReveal{Receiver: pair.PayerSender, Secret: sc.Secret})

		newPair := *pair
		newPair.SecretRevealedOnchain = false
		newPairs := append([]*MediatorTransferPair{}, task.Pairs...)
		newPairs[i] = &newPair
		next.Pairs = newPairs
	}
	return &next, events
}

// ReceivePayerUnlockMediator forwards a payer's unlock as our own unlock
// on the payee leg (spec §4.5: "on receiving payer unlock, SendUnlock to
// payee").
func ReceivePayerUnlockMediator(task *MediatorTransferState, pairIndex int, payeeChannel *channel.State) (*MediatorTransferState, []interface{}) {
	if pairIndex < 0 || pairIndex >= len(task.Pairs) {
		return task, nil
	}
	pair := task.Pairs[pairIndex]
	if pair.PayeeSent {
		return task, nil
	}

	prospective := payeeChannel.OurState.PendingLocks.Clone()
	prospective.Remove(pair.PayeeTransfer.Lock.SecretHash)
	newTransferred := new(big.Int).Add(payeeChannel.OurState.TransferredAmount(), pair.PayeeTransfer.Lock.Amount)
	nonce := payeeChannel.OurState.NextNonce()
	locked := prospective.Amount()
	locksroot := prospective.Locksroot()

	bp := &channel.BalanceProofState{
		Nonce:               nonce,
		TransferredAmount:   newTransferred,
		LockedAmount:        locked,
		Locksroot:           locksroot,
		BalanceHash:         primitives.HashBalanceData(newTransferred, locked, locksroot),
		Sender:              payeeChannel.OurState.Address,
		CanonicalIdentifier: payeeChannel.CanonicalIdentifier,
	}

	next := *task
	newPair := *pair
	newPair.PayeeSent = true
	newPair.PayerUnlocked = true
	newPairs := append([]*MediatorTransferPair{}, task.Pairs...)
	newPairs[pairIndex] = &newPair
	next.Pairs = newPairs
	if allPaired(newPairs) {
		next.Status = MediatorFinished
	}

	return &next, []interface{}{
		&SendUnlock{
			Receiver:          pair.PayeeReceiver,
			PaymentIdentifier: pair.PayeeTransfer.PaymentIdentifier,
			SecretHash:        pair.PayeeTransfer.Lock.SecretHash,
			BalanceProof:      bp,
		},
	}
}

func allPaired(pairs []*MediatorTransferPair) bool {
	for _, p := range pairs {
		if !p.PayeeSent {
			return false
		}
	}
	return true
}

// ProtectSecretOnchain emits ContractSendSecretReveal when the payer's
// lock nears expiration while the secret is known only off-chain
// (spec §4.5).
func ProtectSecretOnchain(task *MediatorTransferState, pairIndex int, block int64, revealTimeout int64) (*MediatorTransferState, []interface{}) {
	if pairIndex < 0 || pairIndex >= len(task.Pairs) {
		return task, nil
	}
	pair := task.Pairs[pairIndex]
	if pair.SecretRevealedOnchain || task.Secret == primitives.EmptyHash {
		return task, nil
	}
	safeToWait := new(big.Int).Sub(pair.PayerTransfer.Lock.Expiration, big.NewInt(revealTimeout))
	if big.NewInt(block).Cmp(safeToWait) < 0 {
		return task, nil
	}

	next := *task
	newPair := *pair
	newPair.SecretRevealedOnchain = true
	newPairs := append([]*MediatorTransferPair{}, task.Pairs...)
	newPairs[pairIndex] = &newPair
	next.Pairs = newPairs
	next.Status = MediatorOnchainSecretReveal

	return &next, []interface{}{
		&ContractSendSecretReveal{Secret: task.Secret, Expiration: pair.PayerTransfer.Lock.Expiration},
	}
}
