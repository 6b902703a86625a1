package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/chain"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/channel"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/connectionmanager"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/contracts"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/transaction"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/transition"
)

// pollInterval is how often node re-checks the transitioned chain state
// for a submitted channel operation's effect, since opening/depositing
// is only reflected once the sync loop decodes the resulting contract
// event; waitUntil keeps polling until the effect appears or ctx ends.
const pollInterval = time.Second

// node adapts this binary's wiring to pkg/connectionmanager's
// ChannelOpener and NetworkView seams: every call submits a real
// on-chain transaction through the shared executor, then waits for the
// state machine to observe its effect.
type node struct {
	manager  *transition.Manager
	proxies  *contracts.ProxyManager
	executor *transaction.Executor
	account  *transaction.SingleWriterAccount
	signerKey *ecdsa.PrivateKey
	chainID  *big.Int
	us       primitives.Address
}

func newNode(manager *transition.Manager, proxies *contracts.ProxyManager, executor *transaction.Executor, account *transaction.SingleWriterAccount, signerKey *ecdsa.PrivateKey, chainID *big.Int, us primitives.Address) *node {
	return &node{manager: manager, proxies: proxies, executor: executor, account: account, signerKey: signerKey, chainID: chainID, us: us}
}

func (n *node) State() *chain.State { return n.manager.State() }

func (n *node) signer() *transaction.Signer {
	return transaction.NewSigner(n.signerKey, n.chainID, n.account)
}

func (n *node) OpenChannel(ctx context.Context, tokenNetworkAddress, partner primitives.Address, settleTimeout, revealTimeout int64) error {
	tx := &transaction.OpenChannelTransaction{
		TokenNetwork:  n.proxies.TokenNetworkProxy(tokenNetworkAddress),
		Signer:        n.signer(),
		Us:            n.us,
		Partner:       partner,
		SettleTimeout: settleTimeout,
	}
	state := n.manager.State()
	if _, err := n.executor.Execute(ctx, tx, partner, state.BlockHash, state.BlockNumber); err != nil {
		return fmt.Errorf("node: open channel: %w", err)
	}
	return n.waitUntil(ctx, func() bool {
		ch, _ := n.lookupChannel(tokenNetworkAddress, partner)
		return ch != nil
	})
}

func (n *node) Deposit(ctx context.Context, tokenNetworkAddress, partner primitives.Address, totalDeposit *big.Int) error {
	ch, id := n.lookupChannel(tokenNetworkAddress, partner)
	if ch == nil {
		return fmt.Errorf("node: deposit: no channel with %s in token network %s", partner.Hex(), tokenNetworkAddress.Hex())
	}
	tokenAddress := ch.TokenAddress
	tx := &transaction.SetTotalDepositTransaction{
		TokenNetwork:        n.proxies.TokenNetworkProxy(tokenNetworkAddress),
		TokenNetworkAddress: tokenNetworkAddress,
		Token:               n.proxies.ERC20Proxy(tokenAddress),
		Signer:              n.signer(),
		ChannelIdentifier:   id.ChannelIdentifier,
		Us:                  n.us,
		Partner:             partner,
		TotalDeposit:        totalDeposit,
	}
	state := n.manager.State()
	if _, err := n.executor.Execute(ctx, tx, partner, state.BlockHash, state.BlockNumber); err != nil {
		return fmt.Errorf("node: deposit: %w", err)
	}
	return n.waitUntil(ctx, func() bool {
		ch, _ := n.lookupChannel(tokenNetworkAddress, partner)
		return ch != nil && ch.Deposit().Cmp(totalDeposit) >= 0
	})
}

func (n *node) Close(ctx context.Context, tokenNetworkAddress, partner primitives.Address) error {
	ch, id := n.lookupChannel(tokenNetworkAddress, partner)
	if ch == nil {
		return fmt.Errorf("node: close: no channel with %s in token network %s", partner.Hex(), tokenNetworkAddress.Hex())
	}
	tx := &transaction.CloseChannelTransaction{
		TokenNetwork:      n.proxies.TokenNetworkProxy(tokenNetworkAddress),
		Signer:            n.signer(),
		ChannelIdentifier: id.ChannelIdentifier,
		Partner:           partner,
	}
	if ch.PartnerState.BalanceProof != nil {
		bp := ch.PartnerState.BalanceProof
		tx.BalanceHash = bp.BalanceHash
		tx.Nonce = common.BigToHash(bp.Nonce)
		tx.AdditionalHash = bp.MessageHash
		tx.Signature = bp.Signature
	}
	state := n.manager.State()
	_, err := n.executor.Execute(ctx, tx, partner, state.BlockHash, state.BlockNumber)
	if err != nil {
		return fmt.Errorf("node: close: %w", err)
	}
	return n.waitUntil(ctx, func() bool {
		ch, _ := n.lookupChannel(tokenNetworkAddress, partner)
		return ch == nil || ch.StatusOf() != channel.StatusOpened
	})
}

func (n *node) lookupChannel(tokenNetworkAddress, partner primitives.Address) (*channel.State, primitives.CanonicalIdentifier) {
	tn := n.manager.State().FindTokenNetwork(tokenNetworkAddress)
	if tn == nil {
		return nil, primitives.CanonicalIdentifier{}
	}
	for _, ch := range tn.ChannelsByID {
		if ch.PartnerState.Address == partner {
			return ch, ch.CanonicalIdentifier
		}
	}
	return nil, primitives.CanonicalIdentifier{}
}

func (n *node) waitUntil(ctx context.Context, done func() bool) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	if done() {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if done() {
				return nil
			}
		}
	}
}

// networkView satisfies pkg/connectionmanager.NetworkView from whatever
// channels a node already has in a token network; without a PFS or
// gossip integration this node can only discover partners it has
// transacted with before, so automatic funding only ever grows
// existing relationships rather than bootstrapping brand-new ones.
type networkView struct {
	manager *transition.Manager
}

func newNetworkView(manager *transition.Manager) *networkView {
	return &networkView{manager: manager}
}

func (v *networkView) Nodes(tokenNetworkAddress primitives.Address) []primitives.Address {
	tn := v.manager.State().FindTokenNetwork(tokenNetworkAddress)
	if tn == nil {
		return nil
	}
	var out []primitives.Address
	for _, ch := range tn.ChannelsByID {
		out = append(out, ch.PartnerState.Address)
	}
	return out
}

var _ connectionmanager.ChannelOpener = (*node)(nil)
var _ connectionmanager.NetworkView = (*networkView)(nil)
