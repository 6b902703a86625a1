// Package route holds the route state threaded through mediated
// transfers: the ordered path of node addresses a locked transfer will
// hop across, plus per-node metadata needed to reach them.
package route

import (
	"math/big"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
)

// AddressMetadata is opaque per-node routing/transport metadata (e.g.
// the node's current transport user id), passed through unmodified.
type AddressMetadata map[string]interface{}

// State is a single candidate route: an ordered path of hops plus the
// fee estimated for using it end to end.
type State struct {
	Addresses       []primitives.Address
	AddressMetadata map[primitives.Address]AddressMetadata
	Swaps           map[primitives.Address]primitives.Address
	EstimatedFee    *big.Int
}

// NextHopAfter returns the address immediately following us in the
// route, or the zero address if we are the last hop.
func (s *State) NextHopAfter(us primitives.Address) primitives.Address {
	for i, a := range s.Addresses {
		if a == us && i+1 < len(s.Addresses) {
			return s.Addresses[i+1]
		}
	}
	return primitives.EmptyAddress
}

// PruneBefore drops every hop before `us`, keeping `us` as the first
// address, and returns a new route-state usable by the next hop down
// the chain. This mirrors
// "drop nodes already behind us" from spec §4.5 (initiator).
func (s *State) PruneBefore(us primitives.Address) *State {
	out := &State{
		AddressMetadata: s.AddressMetadata,
		Swaps:           s.Swaps,
		EstimatedFee:    s.EstimatedFee,
	}
	for i, a := range s.Addresses {
		if a == us {
			out.Addresses = append([]primitives.Address{}, s.Addresses[i:]...)
			return out
		}
	}
	out.Addresses = s.Addresses
	return out
}

// RoutesState is the set of candidate routes still available to an
// initiator or mediator choosing among them.
type RoutesState struct {
	Routes []*State
}

// Usable returns every route whose path has at least two nodes (us,
// next hop); the addresses themselves are not checked.
func (r *RoutesState) Usable() []*State {
	var out []*State
	for _, rt := range r.Routes {
		if len(rt.Addresses) >= 2 {
			out = append(out, rt)
		}
	}
	return out
}
