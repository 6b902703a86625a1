package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/channel"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/chain"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/contracts"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/mediatedtransfer"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/transaction"
)

// txRunner turns the contract-send events pkg/eventhandler schedules
// into the concrete pkg/transaction.Transaction the executor can run,
// looking up whatever channel/participant context the event itself
// doesn't carry from the live chain state (spec §4.8's event-to-
// transaction mapping).
type txRunner struct {
	key                *ecdsa.PrivateKey
	us                 primitives.Address
	chainID            *big.Int
	secretRegistryAddr primitives.Address
	proxies            *contracts.ProxyManager
	executor           *transaction.Executor
	state              func() *chain.State
	account            *transaction.SingleWriterAccount
}

// newTxRunner builds a runner sharing one SingleWriterAccount across
// every scheduled transaction, seeded from startingNonce (the chain's
// current pending nonce for us at startup), so concurrently scheduled
// transactions never collide on the same nonce.
func newTxRunner(key *ecdsa.PrivateKey, us primitives.Address, chainID *big.Int, secretRegistryAddr primitives.Address, proxies *contracts.ProxyManager, executor *transaction.Executor, state func() *chain.State, startingNonce uint64) *txRunner {
	return &txRunner{
		key:                key,
		us:                 us,
		chainID:            chainID,
		secretRegistryAddr: secretRegistryAddr,
		proxies:            proxies,
		executor:           executor,
		state:              state,
		account:            transaction.NewSingleWriterAccount(us, startingNonce),
	}
}

// findChannel looks up a channel's current state by canonical
// identifier, the context the contract-send events themselves don't
// carry.
func (r *txRunner) findChannel(state *chain.State, id primitives.CanonicalIdentifier) *channel.State {
	tn := state.FindTokenNetwork(id.TokenNetworkAddress)
	if tn == nil {
		return nil
	}
	return tn.GetChannel(id)
}

func (r *txRunner) signer(account transaction.Account) *transaction.Signer {
	return transaction.NewSigner(r.key, r.chainID, account)
}

// Schedule implements pkg/eventhandler.TransactionRunner. It runs
// fire-and-forget in its own goroutine so a slow or failing
// transaction never backs up state-machine dispatch.
func (r *txRunner) Schedule(ctx context.Context, ev interface{}) {
	go func() {
		if err := r.run(ctx, ev); err != nil {
			log.Error("runner: transaction failed", "event", fmt.Sprintf("%T", ev), "err", err)
		}
	}()
}

func (r *txRunner) run(ctx context.Context, ev interface{}) error {
	state := r.state()
	account := r.account

	switch sc := ev.(type) {
	case *channel.ContractSendChannelClose:
		ch := r.findChannel(state, sc.CanonicalIdentifier)
		if ch == nil {
			return fmt.Errorf("runner: no local channel state for close %s", sc.CanonicalIdentifier.Key())
		}
		tn := r.proxies.TokenNetworkProxy(sc.CanonicalIdentifier.TokenNetworkAddress)
		tx := &transaction.CloseChannelTransaction{
			TokenNetwork:      tn,
			Signer:            r.signer(account),
			ChannelIdentifier: sc.CanonicalIdentifier.ChannelIdentifier,
			Partner:           ch.PartnerState.Address,
		}
		if sc.BalanceProof != nil {
			tx.BalanceHash = sc.BalanceProof.BalanceHash
			tx.Nonce = common.BigToHash(sc.BalanceProof.Nonce)
			tx.AdditionalHash = sc.BalanceProof.MessageHash
			tx.Signature = sc.BalanceProof.Signature
		}
		_, err := r.executor.Execute(ctx, tx, ch.PartnerState.Address, state.BlockHash, state.BlockNumber)
		return err

	case *channel.ContractSendChannelWithdraw:
		tn := r.proxies.TokenNetworkProxy(sc.CanonicalIdentifier.TokenNetworkAddress)
		tx := &transaction.WithdrawTransaction{
			TokenNetwork:         tn,
			Signer:               r.signer(account),
			ChannelIdentifier:    sc.CanonicalIdentifier.ChannelIdentifier,
			Participant:          r.us,
			TotalWithdraw:        sc.TotalWithdraw,
			ExpirationBlock:      sc.Expiration,
			ParticipantSignature: sc.OurSignature,
			PartnerSignature:     sc.PartnerSignature,
		}
		_, err := r.executor.Execute(ctx, tx, primitives.EmptyAddress, state.BlockHash, state.BlockNumber)
		return err

	case *channel.ContractSendChannelUpdateTransfer:
		ch := r.findChannel(state, sc.CanonicalIdentifier)
		if ch == nil {
			return fmt.Errorf("runner: no local channel state for update transfer %s", sc.CanonicalIdentifier.Key())
		}
		tn := r.proxies.TokenNetworkProxy(sc.CanonicalIdentifier.TokenNetworkAddress)
		nonClosingSig, err := primitives.SignMessage(r.key, primitives.PackBalanceProof(sc.BalanceProof.Nonce, sc.BalanceProof.BalanceHash, sc.BalanceProof.MessageHash, sc.CanonicalIdentifier, primitives.MessageTypeIDBalanceProofUpdate))
		if err != nil {
			return fmt.Errorf("runner: signing non-closing balance proof: %w", err)
		}
		tx := &transaction.UpdateTransferTransaction{
			TokenNetwork:          tn,
			Signer:                r.signer(account),
			ChannelIdentifier:     sc.CanonicalIdentifier.ChannelIdentifier,
			ClosingParticipant:    ch.PartnerState.Address,
			NonClosingParticipant: r.us,
			BalanceHash:           sc.BalanceProof.BalanceHash,
			AdditionalHash:        sc.BalanceProof.MessageHash,
			Nonce:                 sc.BalanceProof.Nonce,
			ClosingSignature:      sc.BalanceProof.Signature,
			NonClosingSignature:   nonClosingSig,
		}
		_, err = r.executor.Execute(ctx, tx, ch.PartnerState.Address, state.BlockHash, state.BlockNumber)
		return err

	case *channel.ContractSendChannelBatchUnlock:
		ch := r.findChannel(state, sc.CanonicalIdentifier)
		if ch == nil {
			return fmt.Errorf("runner: no local channel state for batch unlock %s", sc.CanonicalIdentifier.Key())
		}
		end := ch.OurState
		if sc.Participant == ch.PartnerState.Address {
			end = ch.PartnerState
		}
		var encoded []byte
		for _, lock := range end.PendingLocks.Locks() {
			encoded = append(encoded, lock.EncodedBytes...)
		}
		tn := r.proxies.TokenNetworkProxy(sc.CanonicalIdentifier.TokenNetworkAddress)
		tx := &transaction.BatchUnlockTransaction{
			TokenNetwork:      tn,
			Signer:            r.signer(account),
			ChannelIdentifier: sc.CanonicalIdentifier.ChannelIdentifier,
			Sender:            sc.Participant,
			Receiver:          sc.Partner,
			LockedEncoded:     encoded,
		}
		_, err := r.executor.Execute(ctx, tx, sc.Partner, state.BlockHash, state.BlockNumber)
		return err

	case *mediatedtransfer.ContractSendSecretReveal:
		tx := &transaction.SecretRevealTransaction{
			SecretRegistry: r.proxies.SecretRegistryProxy(r.secretRegistryAddr),
			Signer:         r.signer(account),
			Secret:         sc.Secret,
		}
		_, err := r.executor.Execute(ctx, tx, primitives.EmptyAddress, state.BlockHash, state.BlockNumber)
		return err

	default:
		return fmt.Errorf("runner: unrecognized contract send event %T", ev)
	}
}
