package connectionmanager

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/chain"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/channel"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/tokennetwork"
)

// fakeNode is a minimal in-memory ChannelOpener: OpenChannel and
// Deposit mutate a chain.State directly instead of submitting any
// transaction, so Manager's funding math can be exercised without a
// real executor or chain client.
type fakeNode struct {
	state               *chain.State
	tokenNetworkAddress primitives.Address
	us                  primitives.Address
	nextChannelID       int64
}

func newFakeNode(us, tokenNetworkAddress primitives.Address) *fakeNode {
	state := chain.NewState(primitives.NewU256(1), us, 1, primitives.Hash{}, 1)
	reg := chain.NewTokenNetworkRegistryState(primitives.Address{0xAA})
	tn := tokennetwork.NewState(tokenNetworkAddress, primitives.Address{0xBB})
	reg.AddTokenNetwork(tn)
	state.TokenNetworkRegistries[reg.Address] = reg
	return &fakeNode{state: state, tokenNetworkAddress: tokenNetworkAddress, us: us}
}

func (n *fakeNode) State() *chain.State { return n.state }

func (n *fakeNode) OpenChannel(ctx context.Context, tokenNetworkAddress, partner primitives.Address, settleTimeout, revealTimeout int64) error {
	n.nextChannelID++
	id := primitives.CanonicalIdentifier{
		ChainID:             n.state.ChainID,
		TokenNetworkAddress: tokenNetworkAddress,
		ChannelIdentifier:   primitives.NewU256(n.nextChannelID),
	}
	ch, err := channel.NewState(id, primitives.Address{0xBB}, primitives.Address{0xAA}, n.us, partner, revealTimeout, settleTimeout, n.state.BlockNumber)
	if err != nil {
		return err
	}
	tn := n.state.FindTokenNetwork(tokenNetworkAddress)
	tn.AddChannel(ch, partner)
	return nil
}

func (n *fakeNode) Deposit(ctx context.Context, tokenNetworkAddress, partner primitives.Address, totalDeposit *big.Int) error {
	tn := n.state.FindTokenNetwork(tokenNetworkAddress)
	ch := tn.OpenChannelWithPartner(partner)
	if ch == nil {
		return fmt.Errorf("connectionmanager test: channel not found for partner %s", partner.Hex())
	}
	ch.OurState.ContractBalance = new(big.Int).Set(totalDeposit)
	return nil
}

func (n *fakeNode) Close(ctx context.Context, tokenNetworkAddress, partner primitives.Address) error {
	return nil
}

// fakeNetwork reports a fixed set of partner addresses as present in
// the token network, independent of what channels this node has opened.
type fakeNetwork struct {
	nodes []primitives.Address
}

func (f *fakeNetwork) Nodes(tokenNetworkAddress primitives.Address) []primitives.Address {
	return f.nodes
}

func TestConnectOpensChannelsUpToTarget(t *testing.T) {
	us := primitives.Address{0x01}
	tokenNetworkAddress := primitives.Address{0x10}
	partners := []primitives.Address{{0x20}, {0x21}, {0x22}, {0x23}}

	node := newFakeNode(us, tokenNetworkAddress)
	network := &fakeNetwork{nodes: partners}
	m := New(node, network, us, tokenNetworkAddress, 500, 50)

	if err := m.Connect(context.Background(), big.NewInt(1000), 3, 0.4); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	open := m.openChannels()
	if len(open) != 3 {
		t.Fatalf("opened %d channels, want 3 (initChannelTarget)", len(open))
	}
}

func TestInitialFundingPerPartnerSplitsReservedShare(t *testing.T) {
	us := primitives.Address{0x01}
	tokenNetworkAddress := primitives.Address{0x10}
	node := newFakeNode(us, tokenNetworkAddress)
	network := &fakeNetwork{nodes: []primitives.Address{{0x20}, {0x21}, {0x22}}}
	m := New(node, network, us, tokenNetworkAddress, 500, 50)

	if err := m.Connect(context.Background(), big.NewInt(1000), 3, 0.4); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// 1000 * (1 - 0.4) / 3 = 200 per partner.
	for _, ch := range m.openChannels() {
		if ch.Deposit().Cmp(big.NewInt(200)) != 0 {
			t.Fatalf("channel with %s funded %s, want 200", ch.PartnerState.Address.Hex(), ch.Deposit().String())
		}
	}
}

func TestWantsMoreChannelsFalseOnceTargetReached(t *testing.T) {
	us := primitives.Address{0x01}
	tokenNetworkAddress := primitives.Address{0x10}
	node := newFakeNode(us, tokenNetworkAddress)
	network := &fakeNetwork{nodes: []primitives.Address{{0x20}, {0x21}}}
	m := New(node, network, us, tokenNetworkAddress, 500, 50)

	if err := m.Connect(context.Background(), big.NewInt(1000), 2, 0.4); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if m.WantsMoreChannels() {
		t.Fatalf("WantsMoreChannels true after reaching initChannelTarget with partners exhausted")
	}
}

func TestFindNewPartnersExcludesSelfAndExistingChannels(t *testing.T) {
	us := primitives.Address{0x01}
	tokenNetworkAddress := primitives.Address{0x10}
	existing := primitives.Address{0x20}
	node := newFakeNode(us, tokenNetworkAddress)
	network := &fakeNetwork{nodes: []primitives.Address{us, existing, {0x21}}}
	m := New(node, network, us, tokenNetworkAddress, 500, 50)

	if err := node.OpenChannel(context.Background(), tokenNetworkAddress, existing, 500, 50); err != nil {
		t.Fatalf("seeding existing channel: %v", err)
	}

	found := m.findNewPartners(10)
	for _, p := range found {
		if p == us {
			t.Fatalf("findNewPartners returned our own address")
		}
		if p == existing {
			t.Fatalf("findNewPartners returned a partner we already have a channel with")
		}
	}
	if len(found) != 1 || found[0] != (primitives.Address{0x21}) {
		t.Fatalf("findNewPartners = %v, want only {0x21}", found)
	}
}
