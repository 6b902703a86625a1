// Package eventhandler turns state-machine events into side effects:
// either a wire message pushed onto a partner's transport queue, or an
// on-chain transaction handed to the executor (component K, grounded
// on raiden/api/src/event_handler.rs's EventHandler::handle_event).
package eventhandler

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/log"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/channel"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/encoding"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/mediatedtransfer"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/primitives"
)

// QueueIdentifier addresses one partner's outbound message queue for a
// given channel, the unit the transport retries and orders messages
// within (spec §6.3).
type QueueIdentifier struct {
	Recipient           primitives.Address
	CanonicalIdentifier primitives.CanonicalIdentifier
}

// Transport is the minimum the event handler needs from the transport
// layer: enqueue a signed message for eventual delivery/retry.
type Transport interface {
	Enqueue(queue QueueIdentifier, msg encoding.SignedMessage)
}

// TransactionRunner is the minimum the event handler needs from the
// transaction executor (component I): schedule tx for submission.
type TransactionRunner interface {
	Schedule(ctx context.Context, tx interface{})
}

// Notifier is the minimum the event handler needs from the upper-layer
// notification handler (pkg/notify): surface a payment outcome.
type Notifier interface {
	NotifyPaymentSentSuccess(*mediatedtransfer.PaymentSentSuccess)
	NotifyPaymentReceivedSuccess(*mediatedtransfer.PaymentReceivedSuccess)
	NotifyPaymentSentFailed(*mediatedtransfer.ErrorPaymentSentFailed)
}

// Handler dispatches every event emitted by a Transition call.
type Handler struct {
	privateKey *ecdsa.PrivateKey
	us         primitives.Address
	transport  Transport
	txRunner   TransactionRunner
	notifier   Notifier
}

// New builds a Handler that signs outbound messages with key and
// reports the local node's own address as us (used as the Participant
// field of withdraw messages, which are not self-describing).
func New(key *ecdsa.PrivateKey, us primitives.Address, transport Transport, txRunner TransactionRunner, notifier Notifier) *Handler {
	return &Handler{privateKey: key, us: us, transport: transport, txRunner: txRunner, notifier: notifier}
}

// HandleAll dispatches every event returned by a single Transition
// call, in order.
func (h *Handler) HandleAll(ctx context.Context, events []interface{}) {
	for _, ev := range events {
		h.Handle(ctx, ev)
	}
}

// Handle dispatches a single event. Unrecognized events are logged and
// dropped rather than treated as a fatal error, since new event types
// may be added without every handler knowing about them yet.
func (h *Handler) Handle(ctx context.Context, event interface{}) {
	switch ev := event.(type) {

	case *channel.SendWithdrawRequest:
		h.enqueue(ev.CanonicalIdentifier, ev.Receiver, ev.MessageIdentifier, encoding.FromSendWithdrawRequest(ev, h.us))
	case *channel.SendWithdrawConfirmation:
		h.enqueue(ev.CanonicalIdentifier, ev.Receiver, ev.MessageIdentifier, encoding.FromSendWithdrawConfirmation(ev, h.us))
	case *channel.SendWithdrawExpired:
		h.enqueue(ev.CanonicalIdentifier, ev.Receiver, ev.MessageIdentifier, encoding.FromSendWithdrawExpired(ev, h.us))
	case *channel.SendProcessed:
		h.enqueue(ev.CanonicalIdentifier, ev.Receiver, ev.MessageIdentifier, encoding.NewProcessed(ev.MessageIdentifier))

	case *mediatedtransfer.SendLockedTransfer:
		h.enqueue(ev.Transfer.BalanceProof.CanonicalIdentifier, ev.Receiver, ev.MessageIdentifier, encoding.FromSendLockedTransfer(ev))
	case *mediatedtransfer.SendLockExpired:
		h.enqueue(ev.BalanceProof.CanonicalIdentifier, ev.Receiver, ev.MessageIdentifier, encoding.FromSendLockExpired(ev))
	case *mediatedtransfer.SendUnlock:
		h.enqueue(ev.BalanceProof.CanonicalIdentifier, ev.Receiver, ev.MessageIdentifier, encoding.FromSendUnlock(ev))
	case *mediatedtransfer.SendSecretRequest:
		h.signAndSend(ev.Receiver, ev.MessageIdentifier, encoding.FromSendSecretRequest(ev))
	case *mediatedtransfer.SendSecretReveal:
		h.signAndSend(ev.Receiver, ev.MessageIdentifier, encoding.FromSendSecretReveal(ev))

	case *channel.ContractSendChannelClose:
		h.schedule(ctx, ev)
	case *channel.ContractSendChannelWithdraw:
		h.schedule(ctx, ev)
	case *channel.ContractSendChannelUpdateTransfer:
		h.schedule(ctx, ev)
	case *channel.ContractSendChannelBatchUnlock:
		h.schedule(ctx, ev)
	case *mediatedtransfer.ContractSendSecretReveal:
		h.schedule(ctx, ev)

	case *mediatedtransfer.PaymentSentSuccess:
		if h.notifier != nil {
			h.notifier.NotifyPaymentSentSuccess(ev)
		}
	case *mediatedtransfer.PaymentReceivedSuccess:
		if h.notifier != nil {
			h.notifier.NotifyPaymentReceivedSuccess(ev)
		}
	case *mediatedtransfer.ErrorPaymentSentFailed:
		if h.notifier != nil {
			h.notifier.NotifyPaymentSentFailed(ev)
		}

	case *channel.ErrorInvalidActionWithdraw,
		*channel.ErrorInvalidActionSetRevealTimeout,
		*channel.ErrorInvalidReceivedWithdrawRequest,
		*channel.ErrorInvalidReceivedWithdrawConfirmation,
		*channel.ErrorInvalidReceivedUnlock,
		*channel.ErrorInvalidReceivedLockExpired,
		*channel.ErrorInvalidReceivedLockedTransfer,
		*mediatedtransfer.ErrorUnlockClaimFailed:
		log.Warn("eventhandler: rejected/failed event", "event", fmt.Sprintf("%+v", ev))

	default:
		log.Warn("eventhandler: unhandled event type", "type", fmt.Sprintf("%T", ev))
	}
}

// enqueue signs msg and pushes it onto recipient's queue for the given
// canonical identifier.
func (h *Handler) enqueue(id primitives.CanonicalIdentifier, recipient primitives.Address, _ uint64, msg encoding.SignedMessage) {
	if err := encoding.Sign(msg, h.privateKey); err != nil {
		log.Error("eventhandler: failed to sign outbound message", "err", err)
		return
	}
	h.transport.Enqueue(QueueIdentifier{Recipient: recipient, CanonicalIdentifier: id}, msg)
}

// signAndSend handles messages that aren't scoped to a single channel
// (secret request/reveal travel along the payment path, not a queue
// keyed by canonical identifier), so they go straight to the transport
// under a queue keyed only by recipient.
func (h *Handler) signAndSend(recipient primitives.Address, _ uint64, msg encoding.SignedMessage) {
	if err := encoding.Sign(msg, h.privateKey); err != nil {
		log.Error("eventhandler: failed to sign outbound message", "err", err)
		return
	}
	h.transport.Enqueue(QueueIdentifier{Recipient: recipient}, msg)
}

func (h *Handler) schedule(ctx context.Context, tx interface{}) {
	if h.txRunner == nil {
		log.Warn("eventhandler: no transaction runner configured, dropping contract send", "tx", fmt.Sprintf("%T", tx))
		return
	}
	h.txRunner.Schedule(ctx, tx)
}
