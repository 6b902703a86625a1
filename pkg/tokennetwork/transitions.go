package tokennetwork

import (
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/channel"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
)

// canonicalIdentifierOf extracts the canonical identifier a state-change
// targets, if any; state-changes without one (e.g. a plain Block tick)
// are broadcast to every channel.
func canonicalIdentifierOf(stateChange interface{}) (primitives.CanonicalIdentifier, bool) {
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
	case *channel.ReceiveUnlock:
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
	default:
		return primitives.CanonicalIdentifier{}, false
	}
}

// Transition dispatches one state-change to the channel it targets (by
// canonical identifier), or to every channel for state-changes with
// channel-wide effect such as Block (spec component D).
func Transition(state *State, stateChange interface{}, block int64, blockHash primitives.Hash) (*State, []interface{}) {
	if id, ok := canonicalIdentifierOf(stateChange); ok {
		ch := state.GetChannel(id)
		if ch == nil {
			return state, nil
		}
		nextCh, events := channel.Transition(ch, stateChange, block, blockHash)
		next := shallowCopy(state)
		next.ChannelsByID[id.Key()] = nextCh
		return next, events
	}

	if b, ok := stateChange.(*channel.Block); ok {
		next := shallowCopy(state)
		var events []interface{}
		for key, ch := range state.ChannelsByID {
			nextCh, chEvents := channel.Transition(ch, b, block, blockHash)
			next.ChannelsByID[key] = nextCh
			events = append(events, chEvents...)
		}
		return next, events
	}

	return state, nil
}

func shallowCopy(state *State) *State {
	next := &State{
		Address:             state.Address,
		TokenAddress:        state.TokenAddress,
		ChannelsByID:        make(map[string]*channel.State, len(state.ChannelsByID)),
		ChannelIDsByPartner: state.ChannelIDsByPartner,
	}
	for k, v := range state.ChannelsByID {
		next.ChannelsByID[k] = v
	}
	return next
}
