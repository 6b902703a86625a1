// Package tokennetwork implements the token-network sub-state-machine
// (spec component D): it owns every channel for one token network and
// dispatches state-changes to the right one by canonical identifier.
package tokennetwork

import (
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/channel"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
)

// State holds every channel ever opened on one token network, plus a
// partner-address index so "find my channel(s) with X" doesn't require
// a linear scan (spec §3 TokenNetworkState).
type State struct {
	Address      primitives.Address
	TokenAddress primitives.Address

	ChannelsByID map[string]*channel.State
	// history of every channel id ever opened with a partner, not only
	// the currently-open one: spec §3 explicitly calls this out.
	ChannelIDsByPartner map[primitives.Address][]string
}

// NewState returns an empty token network.
func NewState(address, tokenAddress primitives.Address) *State {
	return &State{
		Address:             address,
		TokenAddress:        tokenAddress,
		ChannelsByID:        make(map[string]*channel.State),
		ChannelIDsByPartner: make(map[primitives.Address][]string),
	}
}

// AddChannel registers a newly-opened channel, updating both indices.
func (s *State) AddChannel(ch *channel.State, partner primitives.Address) {
	key := ch.CanonicalIdentifier.Key()
	s.ChannelsByID[key] = ch
	s.ChannelIDsByPartner[partner] = append(s.ChannelIDsByPartner[partner], key)
}

// GetChannel returns the channel for a canonical identifier, or nil.
func (s *State) GetChannel(id primitives.CanonicalIdentifier) *channel.State {
	return s.ChannelsByID[id.Key()]
}

// OpenChannelWithPartner returns the currently-open channel with
// partner, if any (a partner may have a history of multiple settled
// channels, but at most one open at a time).
func (s *State) OpenChannelWithPartner(partner primitives.Address) *channel.State {
	for _, key := range s.ChannelIDsByPartner[partner] {
		ch := s.ChannelsByID[key]
		if ch != nil && ch.StatusOf() == channel.StatusOpened {
			return ch
		}
	}
	return nil
}

// AllChannels returns every channel ever opened on this network,
// live or historical.
func (s *State) AllChannels() []*channel.State {
	out := make([]*channel.State, 0, len(s.ChannelsByID))
	for _, ch := range s.ChannelsByID {
		out = append(out, ch)
	}
	return out
}
