// Package connectionmanager automatically maintains a target number of
// funded channels in a token network, adapted from the teacher's
// root-level connectionmanager.go onto this module's chain.State /
// channel.State / pkg/transaction types (spec's supplemented
// "automatic channel funding" feature).
package connectionmanager

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/chain"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/channel"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
)

// bootstrapAddr is a well-known placeholder partner used to seed an
// otherwise-empty token network, matching the teacher's BOOTSTRAP_ADDR.
var bootstrapAddr = primitives.Address{0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02, 0x02}

// NetworkView answers what the connection manager needs to know about
// a token network besides its own channel bookkeeping: who else is
// reachable in it, grounded on the teacher's network.ChannelGraph.
type NetworkView interface {
	// Nodes returns every address known to participate in this token
	// network, including ones this node has no channel with yet.
	Nodes(tokenNetworkAddress primitives.Address) []primitives.Address
}

// ChannelOpener is the minimum the connection manager needs from the
// rest of the node to actually open a channel and deposit into it.
type ChannelOpener interface {
	// OpenChannel requests a new channel via the transaction executor
	// and transitions the state machine once confirmed, returning once
	// the channel is visible in State().
	OpenChannel(ctx context.Context, tokenNetworkAddress, partner primitives.Address, settleTimeout, revealTimeout int64) error
	// Deposit submits a SetTotalDeposit transaction for an existing
	// channel.
	Deposit(ctx context.Context, tokenNetworkAddress, partner primitives.Address, totalDeposit *big.Int) error
	// Close closes an existing channel.
	Close(ctx context.Context, tokenNetworkAddress, partner primitives.Address) error
	// State returns the current chain state for reading channel status.
	State() *chain.State
}

// Manager keeps a token network funded to a target number of open
// channels, grounded on the teacher's ConnectionManager: same
// initial-funding-per-partner formula, same want-more-channels and
// retry-on-new-channel-detected triggers.
type Manager struct {
	node                ChannelOpener
	network             NetworkView
	self                primitives.Address
	tokenNetworkAddress primitives.Address
	settleTimeout       int64
	revealTimeout       int64

	mu                  sync.Mutex
	funds               *big.Int
	initChannelTarget   int64
	joinableFundsTarget float64
	leaving             bool
}

// New builds a Manager for one token network. self is this node's own
// address, excluded from candidate partners.
func New(node ChannelOpener, network NetworkView, self, tokenNetworkAddress primitives.Address, settleTimeout, revealTimeout int64) *Manager {
	return &Manager{
		node:                node,
		network:             network,
		self:                self,
		tokenNetworkAddress: tokenNetworkAddress,
		settleTimeout:       settleTimeout,
		revealTimeout:       revealTimeout,
		funds:               big.NewInt(0),
		initChannelTarget:   3,
		joinableFundsTarget: 0.4,
	}
}

// Connect establishes (or adjusts) this node's presence in the token
// network: bootstraps the network if it has no channels at all yet,
// then opens channels with new partners up to initChannelTarget.
//
// Subsequent calls only affect the spendable funds and the connection
// strategy for channels opened from here on; Connect never closes an
// existing channel.
func (m *Manager) Connect(ctx context.Context, funds *big.Int, initChannelTarget int64, joinableFundsTarget float64) error {
	if funds.Sign() <= 0 {
		return fmt.Errorf("connectionmanager: connecting needs a positive funds value")
	}

	m.mu.Lock()
	m.leaving = false
	m.initChannelTarget = initChannelTarget
	m.joinableFundsTarget = joinableFundsTarget
	m.mu.Unlock()

	if len(m.openChannels()) == 0 && len(m.network.Nodes(m.tokenNetworkAddress)) == 0 {
		log.Debug("connectionmanager: bootstrapping token network", "token_network", m.tokenNetworkAddress.Hex())
		if err := m.node.OpenChannel(ctx, m.tokenNetworkAddress, bootstrapAddr, m.settleTimeout, m.revealTimeout); err != nil {
			log.Error("connectionmanager: bootstrap open failed", "err", err)
		}
	}

	m.mu.Lock()
	m.funds = funds
	m.mu.Unlock()

	return m.addNewPartners(ctx)
}

// WantsMoreChannels reports whether funds remain and the channel
// target has not yet been reached.
func (m *Manager) WantsMoreChannels() bool {
	if m.leaveState() {
		return false
	}
	return m.fundsRemaining().Sign() > 0 && int64(len(m.openChannels())) < m.targetChannelCount()
}

// RetryConnect is called when a new channel is observed in the token
// network; it tries to top the node back up to its channel target.
func (m *Manager) RetryConnect(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.funds.Sign() <= 0 || m.leaving {
		return
	}
	if new(big.Int).Sub(m.funds, m.sumDeposits()).Sign() <= 0 {
		return
	}
	if int64(len(m.openChannels())) >= m.initChannelTarget {
		return
	}
	if err := m.addNewPartnersLocked(ctx); err != nil {
		log.Warn("connectionmanager: retry connect failed", "err", err)
	}
}

// JoinChannel funds a channel opened by another node choosing this
// node as a partner, up to the lesser of the partner's own deposit,
// this node's remaining funds, and the configured per-channel target.
func (m *Manager) JoinChannel(ctx context.Context, partner primitives.Address, partnerDeposit *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.funds.Sign() <= 0 || m.leaving {
		return
	}
	joining := new(big.Int).Set(partnerDeposit)
	if remaining := new(big.Int).Sub(m.funds, m.sumDeposits()); joining.Cmp(remaining) > 0 {
		joining = remaining
	}
	if initial := m.initialFundingPerPartnerLocked(); joining.Cmp(initial) > 0 {
		joining = initial
	}
	if joining.Sign() <= 0 {
		return
	}
	if err := m.node.Deposit(ctx, m.tokenNetworkAddress, partner, joining); err != nil {
		log.Error("connectionmanager: join deposit failed", "partner", partner.Hex(), "err", err)
	}
}

// Leave closes every open channel (or only the ones that ever received
// a transfer, if onlyReceiving) and blocks until they have all
// settled.
func (m *Manager) Leave(ctx context.Context, onlyReceiving bool) []*channel.State {
	m.mu.Lock()
	m.leaving = true
	m.initChannelTarget = 0
	m.mu.Unlock()

	var toClose []*channel.State
	if onlyReceiving {
		toClose = m.receivingChannels()
	} else {
		toClose = m.openChannels()
	}
	for _, c := range toClose {
		if err := m.node.Close(ctx, m.tokenNetworkAddress, c.PartnerState.Address); err != nil {
			log.Error("connectionmanager: close failed", "partner", c.PartnerState.Address.Hex(), "err", err)
		}
	}
	m.waitForSettle(toClose)
	return toClose
}

func (m *Manager) waitForSettle(closing []*channel.State) {
	for {
		pending := false
		for _, c := range closing {
			current := c
			if tn := m.node.State().FindTokenNetwork(m.tokenNetworkAddress); tn != nil {
				if latest := tn.GetChannel(c.CanonicalIdentifier); latest != nil {
					current = latest
				}
			}
			if current.StatusOf() != channel.StatusSettled {
				pending = true
				break
			}
		}
		if !pending {
			return
		}
		time.Sleep(time.Minute)
	}
}

func (m *Manager) leaveState() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leaving || m.initChannelTarget < 1
}

func (m *Manager) targetChannelCount() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initChannelTarget
}

func (m *Manager) openChannels() []*channel.State {
	state := m.node.State()
	tn := state.FindTokenNetwork(m.tokenNetworkAddress)
	if tn == nil {
		return nil
	}
	var out []*channel.State
	for _, c := range tn.ChannelsByID {
		if c.StatusOf() == channel.StatusOpened {
			out = append(out, c)
		}
	}
	return out
}

// receivingChannels is the subset of open channels the partner has
// ever transferred something to us over, grounded on the teacher's
// receivingChannels ("channels that had received any transfers").
func (m *Manager) receivingChannels() []*channel.State {
	var out []*channel.State
	for _, c := range m.openChannels() {
		if c.PartnerState.TransferredAmount().Sign() > 0 {
			out = append(out, c)
		}
	}
	return out
}

// sumDeposits is the total on-chain balance already committed to open
// channels in this token network.
func (m *Manager) sumDeposits() *big.Int {
	sum := big.NewInt(0)
	for _, c := range m.openChannels() {
		sum.Add(sum, c.Deposit())
	}
	return sum
}

func (m *Manager) fundsRemaining() *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.funds.Sign() <= 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Sub(m.funds, m.sumDeposits())
}

func (m *Manager) initialFundingPerPartnerLocked() *big.Int {
	if m.initChannelTarget <= 0 {
		return big.NewInt(0)
	}
	remainingShare := 1 - m.joinableFundsTarget
	funds := new(big.Int).Set(m.funds)
	scaled := new(big.Int).Mul(funds, big.NewInt(int64(remainingShare*1000)))
	scaled.Div(scaled, big.NewInt(1000))
	return scaled.Div(scaled, big.NewInt(m.initChannelTarget))
}

func (m *Manager) addNewPartners(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addNewPartnersLocked(ctx)
}

func (m *Manager) addNewPartnersLocked(ctx context.Context) error {
	want := int(m.initChannelTarget) - len(m.openChannels())
	if want <= 0 {
		return nil
	}
	for _, partner := range m.findNewPartners(want) {
		if err := m.node.OpenChannel(ctx, m.tokenNetworkAddress, partner, m.settleTimeout, m.revealTimeout); err != nil {
			log.Error("connectionmanager: open failed", "partner", partner.Hex(), "err", err)
			return err
		}
		if err := m.node.Deposit(ctx, m.tokenNetworkAddress, partner, m.initialFundingPerPartnerLocked()); err != nil {
			log.Error("connectionmanager: deposit failed", "partner", partner.Hex(), "err", err)
			return err
		}
	}
	return nil
}

// findNewPartners returns up to count addresses known to the token
// network that this node has no channel with yet.
func (m *Manager) findNewPartners(count int) []primitives.Address {
	known := make(map[primitives.Address]bool)
	for _, c := range m.openChannels() {
		known[c.PartnerState.Address] = true
	}
	known[bootstrapAddr] = true
	known[m.self] = true

	var available []primitives.Address
	for _, n := range m.network.Nodes(m.tokenNetworkAddress) {
		if !known[n] {
			available = append(available, n)
		}
	}
	if count < len(available) {
		return available[:count]
	}
	return available
}
