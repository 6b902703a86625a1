// Package notify surfaces payment outcomes to whatever sits above the
// node (a CLI, an HTTP API, a GUI) without letting a slow or absent
// listener stall the event handler. Adapted from the teacher's
// notify/notifyhandler.go: same non-blocking-channel-fanout shape,
// generalized from the teacher's SentTransfer/ReceivedTransfer models
// to this module's chain-level payment events (spec §4.8).
package notify

import (
	"fmt"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/mediatedtransfer"
)

// Level is the severity of a Notice.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

// Notice is a human-readable status line for the upper layer to
// display, along with the raw event that triggered it.
type Notice struct {
	Level Level
	Info  string
	Cause interface{}
}

func newNotice(level Level, info string, cause interface{}) *Notice {
	return &Notice{Level: level, Info: info, Cause: cause}
}

// Handler fans payment outcomes out to whoever reads its channels.
// Every Notify* call is non-blocking: an upper layer that isn't
// reading misses notices rather than stalling the event handler.
type Handler struct {
	sentChan     chan *mediatedtransfer.PaymentSentSuccess
	receivedChan chan *mediatedtransfer.PaymentReceivedSuccess
	failedChan   chan *mediatedtransfer.ErrorPaymentSentFailed
	noticeChan   chan *Notice
}

// New builds a Handler. Its channels are never closed; callers should
// select on them for as long as the node runs.
func New() *Handler {
	return &Handler{
		sentChan:     make(chan *mediatedtransfer.PaymentSentSuccess),
		receivedChan: make(chan *mediatedtransfer.PaymentReceivedSuccess),
		failedChan:   make(chan *mediatedtransfer.ErrorPaymentSentFailed),
		noticeChan:   make(chan *Notice),
	}
}

// Notices returns the read-only stream of human-readable notices.
func (h *Handler) Notices() <-chan *Notice { return h.noticeChan }

// SentPayments returns the read-only stream of successful outgoing
// payments.
func (h *Handler) SentPayments() <-chan *mediatedtransfer.PaymentSentSuccess { return h.sentChan }

// ReceivedPayments returns the read-only stream of successful incoming
// payments.
func (h *Handler) ReceivedPayments() <-chan *mediatedtransfer.PaymentReceivedSuccess {
	return h.receivedChan
}

// FailedPayments returns the read-only stream of failed outgoing
// payments.
func (h *Handler) FailedPayments() <-chan *mediatedtransfer.ErrorPaymentSentFailed {
	return h.failedChan
}

// NotifyPaymentSentSuccess implements pkg/eventhandler.Notifier.
func (h *Handler) NotifyPaymentSentSuccess(ev *mediatedtransfer.PaymentSentSuccess) {
	if ev == nil {
		return
	}
	select {
	case h.sentChan <- ev:
	default:
	}
	info := fmt.Sprintf("payment %d of %s to %s succeeded", ev.PaymentIdentifier, ev.Amount, ev.Target.Hex())
	select {
	case h.noticeChan <- newNotice(LevelInfo, info, ev):
	default:
	}
}

// NotifyPaymentReceivedSuccess implements pkg/eventhandler.Notifier.
func (h *Handler) NotifyPaymentReceivedSuccess(ev *mediatedtransfer.PaymentReceivedSuccess) {
	if ev == nil {
		return
	}
	select {
	case h.receivedChan <- ev:
	default:
	}
	info := fmt.Sprintf("received payment %d of %s from %s", ev.PaymentIdentifier, ev.Amount, ev.Initiator.Hex())
	select {
	case h.noticeChan <- newNotice(LevelInfo, info, ev):
	default:
	}
}

// NotifyPaymentSentFailed implements pkg/eventhandler.Notifier.
func (h *Handler) NotifyPaymentSentFailed(ev *mediatedtransfer.ErrorPaymentSentFailed) {
	if ev == nil {
		return
	}
	select {
	case h.failedChan <- ev:
	default:
	}
	info := fmt.Sprintf("payment %d to %s failed: %s", ev.PaymentIdentifier, ev.Target.Hex(), ev.Reason)
	select {
	case h.noticeChan <- newNotice(LevelError, info, ev):
	default:
	}
}
