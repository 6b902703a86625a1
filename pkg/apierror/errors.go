// Package apierror defines the error taxonomy surfaced to callers of
// the core across every boundary: inbound messages, local actions,
// payments, transaction execution and storage (spec §7).
package apierror

import "fmt"

// InvalidReceived is returned when an inbound wire message fails
// validation (bad signature, stale nonce, unknown channel). It never
// aborts the state machine; the corresponding Error* event is what the
// state machine actually emits, this type is for API-boundary reporting.
type InvalidReceived struct {
	MessageType string
	Reason      string
}

func (e *InvalidReceived) Error() string {
	return fmt.Sprintf("invalid received %s: %s", e.MessageType, e.Reason)
}

// InvalidAction is returned when a local action (open channel, pay,
// withdraw) is rejected before it ever reaches the state machine, e.g.
// malformed arguments.
type InvalidAction struct {
	Action string
	Reason string
}

func (e *InvalidAction) Error() string {
	return fmt.Sprintf("invalid action %s: %s", e.Action, e.Reason)
}

// PaymentFailed reports a payment that started but could not complete
// (no route, lock expired, secret request mismatch).
type PaymentFailed struct {
	PaymentIdentifier uint64
	Reason            string
}

func (e *PaymentFailed) Error() string {
	return fmt.Sprintf("payment %d failed: %s", e.PaymentIdentifier, e.Reason)
}

// BrokenPrecondition is returned by the transaction executor when a
// precondition for an on-chain write no longer holds by the time the
// transaction would be submitted (e.g. channel already closed by the
// partner); the operation is abandoned, not retried (spec §4.8).
type BrokenPrecondition struct {
	Op     string
	Reason string
}

func (e *BrokenPrecondition) Error() string {
	return fmt.Sprintf("broken precondition for %s: %s", e.Op, e.Reason)
}

// Unrecoverable is returned by the transaction executor for failures
// that indicate a bug or an irrecoverable environment problem (e.g.
// insufficient gas reserve); the node should not keep retrying.
type Unrecoverable struct {
	Op     string
	Reason string
}

func (e *Unrecoverable) Error() string {
	return fmt.Sprintf("unrecoverable error in %s: %s", e.Op, e.Reason)
}

// Recoverable is returned by the transaction executor for failures
// that are worth retrying (e.g. transient RPC error, underpriced gas).
type Recoverable struct {
	Op     string
	Reason string
}

func (e *Recoverable) Error() string {
	return fmt.Sprintf("recoverable error in %s: %s", e.Op, e.Reason)
}

// Storage is returned for append-only persistence failures (spec §6.6).
type Storage struct {
	Op     string
	Reason string
}

func (e *Storage) Error() string {
	return fmt.Sprintf("storage error during %s: %s", e.Op, e.Reason)
}
