package chain

import (
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/channel"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/mediatedtransfer"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/tokennetwork"
)

// Transition is the root dispatch function of spec component E: given
// the current chain state and one state-change, it returns the
// successor state plus every event produced. It never suspends and
// never panics; all error conditions surface as Error* events deeper in
// the call tree (spec §5, §7, §9).
func Transition(state *State, stateChange interface{}) (*State, []interface{}) {
	switch sc := stateChange.(type) {
	case *ActionInitChain:
		return NewState(sc.ChainID, sc.OurAddress, sc.BlockNumber, sc.BlockHash, sc.Seed), nil

	case *ContractReceiveTokenNetworkRegistry:
		next := shallowCopy(state)
		if _, ok := next.TokenNetworkRegistries[sc.RegistryAddress]; !ok {
			next.TokenNetworkRegistries[sc.RegistryAddress] = NewTokenNetworkRegistryState(sc.RegistryAddress)
		}
		return next, nil

	case *ContractReceiveNewTokenNetwork:
		next := shallowCopy(state)
		reg, ok := next.TokenNetworkRegistries[sc.RegistryAddress]
		if !ok {
			return state, nil
		}
		reg.AddTokenNetwork(tokennetwork.NewState(sc.TokenNetworkAddress, sc.TokenAddress))
		return next, nil

	case *ContractReceiveChannelOpened:
		return handleContractReceiveChannelOpened(state, sc)

	case *channel.Block:
		return handleBlock(state, sc)

	case *channel.ReceiveUnlock:
		return handleReceiveUnlock(state, sc)

	case *mediatedtransfer.ActionInitMediator:
		return handleActionInitMediator(state, sc)

	case *mediatedtransfer.ActionInitTarget:
		return handleActionInitTarget(state, sc)

	case *mediatedtransfer.ReceiveSecretRequest:
		return handleReceiveSecretRequest(state, sc)

	case *mediatedtransfer.ReceiveSecretReveal:
		return handleReceiveSecretReveal(state, sc)

	default:
		if id, ok := channelScopedIdentifier(stateChange); ok {
			return dispatchToChannel(state, id, stateChange)
		}
		return state, nil
	}
}

// InitInitiatorPayment is a distinct entry point (rather than a case in
// Transition) because starting a payment needs a resolved route set,
// normally supplied by the caller after a pathfinding-service query
// (spec §6.4); it is invoked directly by pkg/transition's dispatcher
// once routes are available.
func InitInitiatorPayment(state *State, sc *mediatedtransfer.ActionInitInitiator) (*State, []interface{}) {
	tn := state.FindTokenNetwork(sc.TransferDescription.TokenNetworkAddress)
	if tn == nil {
		return state, []interface{}{&mediatedtransfer.ErrorPaymentSentFailed{
			PaymentIdentifier: sc.TransferDescription.PaymentIdentifier,
			Target:            sc.TransferDescription.Target,
			Reason:            "unknown token network",
		}}
	}
	channelsByNextHop := openChannelsByPartner(tn)
	task, events := mediatedtransfer.InitInitiator(sc, channelsByNextHop, state.PseudoRandom)

	next := shallowCopy(state)
	next.PaymentMapping[sc.TransferDescription.SecretHash] = task
	applyLockedTransferEvents(next, tn, events)
	return next, events
}

func handleContractReceiveChannelOpened(state *State, sc *ContractReceiveChannelOpened) (*State, []interface{}) {
	tn := state.FindTokenNetwork(sc.CanonicalIdentifier.TokenNetworkAddress)
	if tn == nil {
		return state, nil
	}
	us, partner := sc.Participant1, sc.Participant2
	if us == state.OurAddress {
		// keep (us, partner) as-is
	} else if partner == state.OurAddress {
		us, partner = partner, us
	} else {
		return state, nil
	}
	defaultRevealTimeout := sc.SettleTimeout / 2
	ch, err := channel.NewState(sc.CanonicalIdentifier, tn.TokenAddress, primitives.EmptyAddress, us, partner, defaultRevealTimeout, sc.SettleTimeout, sc.BlockNumber)
	if err != nil {
		return state, nil
	}
	newTN := tokennetwork.NewState(tn.Address, tn.TokenAddress)
	for k, v := range tn.ChannelsByID {
		newTN.ChannelsByID[k] = v
	}
	for p, ids := range tn.ChannelIDsByPartner {
		newTN.ChannelIDsByPartner[p] = append([]string(nil), ids...)
	}
	newTN.AddChannel(ch, partner)
	next := shallowCopy(state)
	if reg := registryFor(next, tn.Address); reg != nil {
		reg.TokenNetworks[tn.Address] = newTN
	}
	return next, nil
}

func handleBlock(state *State, sc *channel.Block) (*State, []interface{}) {
	next := shallowCopy(state)
	next.BlockNumber = sc.BlockNumber
	next.BlockHash = sc.BlockHash

	var events []interface{}
	for _, reg := range next.TokenNetworkRegistries {
		for addr, tn := range reg.TokenNetworks {
			newTN, tnEvents := tokennetwork.Transition(tn, sc, sc.BlockNumber, sc.BlockHash)
			reg.TokenNetworks[addr] = newTN
			events = append(events, tnEvents...)
		}
	}
	for secretHash, task := range next.PaymentMapping {
		switch task.Role {
		case mediatedtransfer.RoleInitiator:
			updated, taskEvents := mediatedtransfer.ExpireInitiator(task.Initiator, sc.BlockNumber)
			next.PaymentMapping[secretHash] = &mediatedtransfer.TransferTask{Role: task.Role, Initiator: updated}
			events = append(events, taskEvents...)

		case mediatedtransfer.RoleMediator:
			// Registering the secret on-chain is per payer leg, so
			// walk every pair and let ProtectSecretOnchain decide
			// whether that leg's payer channel is close enough to
			// its lock expiration to need it (spec §4.5).
			mediator := task.Mediator
			var taskEvents []interface{}
			for i, pair := range mediator.Pairs {
				payerCh := channelFor(next, pair.PayerTransfer.BalanceProof.CanonicalIdentifier)
				if payerCh == nil {
					continue
				}
				var ev []interface{}
				mediator, ev = mediatedtransfer.ProtectSecretOnchain(mediator, i, sc.BlockNumber, payerCh.RevealTimeout)
				taskEvents = append(taskEvents, ev...)
			}
			next.PaymentMapping[secretHash] = &mediatedtransfer.TransferTask{Role: task.Role, Mediator: mediator}
			events = append(events, taskEvents...)

		case mediatedtransfer.RoleTarget:
			payerCh := channelFor(next, task.Target.Transfer.BalanceProof.CanonicalIdentifier)
			if payerCh == nil {
				continue
			}
			updated, taskEvents := mediatedtransfer.ProtectSecretOnchainTarget(task.Target, sc.BlockNumber, payerCh.RevealTimeout)
			next.PaymentMapping[secretHash] = &mediatedtransfer.TransferTask{Role: task.Role, Target: updated}
			events = append(events, taskEvents...)
		}
	}
	return next, events
}

// handleReceiveUnlock applies an inbound Unlock at the channel level
// (releasing the claimed lock) and, if the secrethash belongs to an
// in-flight payment task, forwards it to the task that is waiting on
// it: the target finalizes the payment (spec §4.5, §8.1), the mediator
// forwards the unlock to its payee leg (spec §4.5, §8.3).
func handleReceiveUnlock(state *State, sc *channel.ReceiveUnlock) (*State, []interface{}) {
	next, events := dispatchToChannel(state, sc.CanonicalIdentifier, sc)

	task, ok := next.PaymentMapping[sc.SecretHash]
	if !ok {
		return next, events
	}

	switch task.Role {
	case mediatedtransfer.RoleTarget:
		updated, taskEvents := mediatedtransfer.ReceiveUnlockTarget(task.Target)
		next.PaymentMapping[sc.SecretHash] = &mediatedtransfer.TransferTask{Role: task.Role, Target: updated}
		events = append(events, taskEvents...)

	case mediatedtransfer.RoleMediator:
		for i, pair := range task.Mediator.Pairs {
			if pair.PayerSender != sc.Sender || pair.PayerUnlocked {
				continue
			}
			payeeCh := channelFor(next, pair.PayeeTransfer.BalanceProof.CanonicalIdentifier)
			if payeeCh == nil {
				continue
			}
			updated, taskEvents := mediatedtransfer.ReceivePayerUnlockMediator(task.Mediator, i, payeeCh)
			next.PaymentMapping[sc.SecretHash] = &mediatedtransfer.TransferTask{Role: task.Role, Mediator: updated}
			events = append(events, taskEvents...)
			break
		}
	}

	return next, events
}

func handleActionInitMediator(state *State, sc *mediatedtransfer.ActionInitMediator) (*State, []interface{}) {
	payerTN := state.FindTokenNetwork(sc.FromTransfer.BalanceProof.CanonicalIdentifier.TokenNetworkAddress)
	if payerTN == nil {
		return state, nil
	}
	payerChannel := payerTN.GetChannel(sc.FromTransfer.BalanceProof.CanonicalIdentifier)
	if payerChannel == nil {
		return state, nil
	}
	channelsByNextHop := openChannelsByPartner(payerTN)
	task, events := mediatedtransfer.InitMediator(sc, payerChannel, channelsByNextHop, sc.BlockNumber, state.PseudoRandom)

	next := shallowCopy(state)
	next.PaymentMapping[sc.FromTransfer.Lock.SecretHash] = task
	applyLockedTransferEvents(next, payerTN, events)
	return next, events
}

func handleActionInitTarget(state *State, sc *mediatedtransfer.ActionInitTarget) (*State, []interface{}) {
	task, events := mediatedtransfer.InitTarget(sc, nil, state.PseudoRandom)
	next := shallowCopy(state)
	next.PaymentMapping[sc.FromTransfer.Lock.SecretHash] = task
	return next, events
}

func handleReceiveSecretRequest(state *State, sc *mediatedtransfer.ReceiveSecretRequest) (*State, []interface{}) {
	task, ok := state.PaymentMapping[sc.SecretHash]
	if !ok || task.Role != mediatedtransfer.RoleInitiator {
		return state, nil
	}
	updated, events := mediatedtransfer.ReceiveSecretRequestInitiator(task.Initiator, sc)
	next := shallowCopy(state)
	next.PaymentMapping[sc.SecretHash] = &mediatedtransfer.TransferTask{Role: task.Role, Initiator: updated}
	return next, events
}

func handleReceiveSecretReveal(state *State, sc *mediatedtransfer.ReceiveSecretReveal) (*State, []interface{}) {
	var secretHash primitives.Hash
	var found *mediatedtransfer.TransferTask
	for h, t := range state.PaymentMapping {
		switch t.Role {
		case mediatedtransfer.RoleInitiator:
			if t.Initiator.Transfer != nil && t.Initiator.Route != nil && t.Initiator.Route.NextHopAfter(t.Initiator.Transfer.BalanceProof.Sender) == sc.Sender {
				secretHash, found = h, t
			}
		case mediatedtransfer.RoleMediator:
			for _, p := range t.Mediator.Pairs {
				if p.PayeeReceiver == sc.Sender {
					secretHash, found = h, t
				}
			}
		case mediatedtransfer.RoleTarget:
			if t.Target.Transfer != nil && t.Target.Transfer.BalanceProof.Sender == sc.Sender {
				secretHash, found = h, t
			}
		}
	}
	if found == nil {
		return state, nil
	}

	next := shallowCopy(state)
	var events []interface{}
	switch found.Role {
	case mediatedtransfer.RoleInitiator:
		ch := channelFor(state, found.Initiator.Transfer.BalanceProof.CanonicalIdentifier)
		if ch == nil {
			return state, nil
		}
		updated, ev := mediatedtransfer.ReceiveSecretRevealInitiator(found.Initiator, sc, ch)
		next.PaymentMapping[secretHash] = &mediatedtransfer.TransferTask{Role: found.Role, Initiator: updated}
		events = ev
	case mediatedtransfer.RoleTarget:
		ch := channelFor(state, found.Target.Transfer.BalanceProof.CanonicalIdentifier)
		if ch == nil {
			return state, nil
		}
		updated, ev := mediatedtransfer.ReceiveSecretRevealTarget(found.Target, sc, ch)
		next.PaymentMapping[secretHash] = &mediatedtransfer.TransferTask{Role: found.Role, Target: updated}
		events = ev
	case mediatedtransfer.RoleMediator:
		var payerCh, payeeCh *channel.State
		for _, p := range found.Mediator.Pairs {
			if p.PayeeReceiver == sc.Sender {
				payerCh = channelFor(state, p.PayerTransfer.BalanceProof.CanonicalIdentifier)
				payeeCh = channelFor(state, p.PayeeTransfer.BalanceProof.CanonicalIdentifier)
			}
		}
		if payerCh == nil || payeeCh == nil {
			return state, nil
		}
		updated, ev := mediatedtransfer.ReceiveSecretRevealMediator(found.Mediator, sc, payerCh, payeeCh)
		next.PaymentMapping[secretHash] = &mediatedtransfer.TransferTask{Role: found.Role, Mediator: updated}
		events = ev
	}
	return next, events
}

func channelFor(state *State, id primitives.CanonicalIdentifier) *channel.State {
	tn := state.FindTokenNetwork(id.TokenNetworkAddress)
	if tn == nil {
		return nil
	}
	return tn.GetChannel(id)
}

// openChannelsByPartner returns every currently-open channel in tn,
// indexed by partner address, for route-hop lookups.
func openChannelsByPartner(tn *tokennetwork.State) map[primitives.Address]*channel.State {
	out := make(map[primitives.Address]*channel.State)
	for _, ch := range tn.AllChannels() {
		if ch.StatusOf() == channel.StatusOpened {
			out[ch.PartnerState.Address] = ch
		}
	}
	return out
}

// applyLockedTransferEvents folds the our-side mutation InitInitiator/
// InitMediator already computed (via ch.OurState pointers) back into
// the owning token network; those functions read channel state to
// build the transfer but the canonical mutation path is still
// channel.Transition, so we replay it here as a ReceiveLockedTransfer
// would on the *payee* side once it arrives. On our own (payer) side,
// the balance-proof advance is committed immediately since we are the
// signer and do not wait for an ack to update our own bookkeeping.
func applyLockedTransferEvents(state *State, tn *tokennetwork.State, events []interface{}) {
	for _, ev := range events {
		sent, ok := ev.(*mediatedtransfer.SendLockedTransfer)
		if !ok {
			continue
		}
		ch := tn.GetChannel(sent.Transfer.BalanceProof.CanonicalIdentifier)
		if ch == nil {
			continue
		}
		ch.OurState.PendingLocks.Add(sent.Transfer.Lock)
		ch.OurState.SecretHashesToLockedLocks.Add(sent.Transfer.Lock)
		ch.OurState.BalanceProof = sent.Transfer.BalanceProof
		ch.OurState.Nonce = sent.Transfer.BalanceProof.Nonce
	}
}

func channelScopedIdentifier(stateChange interface{}) (primitives.CanonicalIdentifier, bool) {
	switch sc := stateChange.(type) {
	case *channel.ActionChannelClose:
		return sc.CanonicalIdentifier, true
	case *channel.ActionChannelWithdraw:
		return sc.CanonicalIdentifier, true
	case *channel.ActionChannelSetRevealTimeout:
		return sc.CanonicalIdentifier, true
	case *channel.ReceiveWithdrawRequest:
		return sc.CanonicalIdentifier, true
	case *channel.ReceiveWithdrawConfirmation:
		return sc.CanonicalIdentifier, true
	case *channel.ReceiveWithdrawExpired:
		return sc.CanonicalIdentifier, true
	case *channel.ReceiveLockedTransfer:
		return sc.CanonicalIdentifier, true
	case *channel.ReceiveLockExpired:
		return sc.CanonicalIdentifier, true
	case *channel.ContractReceiveChannelDeposit:
		return sc.CanonicalIdentifier, true
	case *channel.ContractReceiveChannelWithdraw:
		return sc.CanonicalIdentifier, true
	case *channel.ContractReceiveChannelClosed:
		return sc.CanonicalIdentifier, true
	case *channel.ContractReceiveChannelSettled:
		return sc.CanonicalIdentifier, true
	case *channel.ContractReceiveChannelBatchUnlock:
		return sc.CanonicalIdentifier, true
	case *channel.ContractReceiveUpdateTransfer:
		return sc.CanonicalIdentifier, true
	default:
		return primitives.CanonicalIdentifier{}, false
	}
}

func dispatchToChannel(state *State, id primitives.CanonicalIdentifier, stateChange interface{}) (*State, []interface{}) {
	tn := state.FindTokenNetwork(id.TokenNetworkAddress)
	if tn == nil {
		return state, nil
	}
	newTN, events := tokennetwork.Transition(tn, stateChange, state.BlockNumber, state.BlockHash)
	next := shallowCopy(state)
	reg := registryFor(next, tn.Address)
	if reg != nil {
		reg.TokenNetworks[tn.Address] = newTN
	}
	return next, events
}

func registryFor(state *State, tokenNetworkAddress primitives.Address) *TokenNetworkRegistryState {
	for _, reg := range state.TokenNetworkRegistries {
		if _, ok := reg.TokenNetworks[tokenNetworkAddress]; ok {
			return reg
		}
	}
	return nil
}

// shallowCopy returns a copy of state whose TokenNetworkRegistries and
// PaymentMapping maps (down to each registry's own TokenNetworks map)
// are independent of the predecessor's, so a handler writing into the
// copy never retroactively mutates the state it was given (spec §3/§5:
// Transition is a pure function, no aliasing between successive
// states).
func shallowCopy(state *State) *State {
	next := &State{
		ChainID:                state.ChainID,
		BlockNumber:            state.BlockNumber,
		BlockHash:              state.BlockHash,
		OurAddress:             state.OurAddress,
		TokenNetworkRegistries: make(map[primitives.Address]*TokenNetworkRegistryState, len(state.TokenNetworkRegistries)),
		PaymentMapping:         make(map[primitives.Hash]*mediatedtransfer.TransferTask, len(state.PaymentMapping)),
		PendingTransactions:    state.PendingTransactions,
		PseudoRandom:           state.PseudoRandom,
	}
	for k, v := range state.TokenNetworkRegistries {
		next.TokenNetworkRegistries[k] = v.Clone()
	}
	for k, v := range state.PaymentMapping {
		next.PaymentMapping[k] = v
	}
	return next
}
