package main

import (
	"sync"

	"github.com/ethereum/go-ethereum/log"

	"github.com/SmartMeshFoundation/SmartRaiden/pkg/encoding"
	"github.com/SmartMeshFoundation/SmartRaiden/pkg/eventhandler"
)

// loggingTransport satisfies pkg/eventhandler.Transport by logging
// every outbound message instead of delivering it over the wire: the
// Matrix transport itself is out of scope (spec's Non-goals on outer
// transport surfaces), so this is the stand-in that lets every other
// component exercise the real queueing discipline end to end.
type loggingTransport struct {
	mu     sync.Mutex
	queued int
}

func newLoggingTransport() *loggingTransport {
	return &loggingTransport{}
}

func (t *loggingTransport) Enqueue(queue eventhandler.QueueIdentifier, msg encoding.SignedMessage) {
	t.mu.Lock()
	t.queued++
	t.mu.Unlock()
	log.Info("transport: would deliver message", "recipient", queue.Recipient, "channel", queue.CanonicalIdentifier.ChannelIdentifier, "type", msg.Type())
}
