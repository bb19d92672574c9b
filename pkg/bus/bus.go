// Package bus defines the message-bus contract the fronctocol engine
// depends on (spec.md §4.C). The engine is agnostic to transport: it only
// needs to read/write typed fields through a buffer, cache a message that
// arrived too early, and know who sent or should receive it. The in-memory
// transport in pkg/bus/memory implements this contract.
package bus

import (
	"github.com/fortissimo/mpc/pkg/codec"
	"github.com/fortissimo/mpc/pkg/identity"
)

// IncomingMessage is a message read off the wire, not yet fully consumed.
type IncomingMessage interface {
	// Sender identifies who sent this message.
	Sender() identity.ID
	// Buf exposes the remaining unread bytes for typed reads.
	Buf() *codec.Buffer
	// Clear discards the message's remaining bytes.
	Clear()
	// CreateCache captures the message (including its control block) into
	// an owned holder that can be replayed later via Uncache, for when a
	// fronctocol's peer ids aren't all known yet (spec.md §4.D).
	CreateCache(controlBlock uint8) Cache
}

// Cache is a deferred, owned copy of an IncomingMessage.
type Cache interface {
	ControlBlock() uint8
	Uncache() IncomingMessage
}

// OutgoingMessage is a message being built for delivery to one recipient.
type OutgoingMessage interface {
	Recipient() identity.ID
	Buf() *codec.Buffer
	Clear()
}

// Sink is where the engine deposits outgoing messages for the transport to
// actually deliver.
type Sink interface {
	Send(OutgoingMessage)
}

// SliceSink accumulates outgoing messages into a slice, matching the
// engine's `&mut outgoing` vector-out-parameter style from spec.md §4.D.
type SliceSink struct {
	Messages []OutgoingMessage
}

// Send appends a message.
func (s *SliceSink) Send(m OutgoingMessage) {
	s.Messages = append(s.Messages, m)
}
