// Package memory implements bus.IncomingMessage/OutgoingMessage over plain
// byte buffers and wires parties together with Go channels, for tests and
// simulations that don't need real sockets (spec.md §1's "in-memory test
// harness").
package memory

import (
	"github.com/fortissimo/mpc/pkg/bus"
	"github.com/fortissimo/mpc/pkg/codec"
	"github.com/fortissimo/mpc/pkg/identity"
)

// Message is the concrete bus.IncomingMessage/bus.OutgoingMessage
// implementation used by the in-memory harness: a peer identity plus a
// codec buffer.
type Message struct {
	peer identity.ID
	buf  *codec.Buffer
}

// NewOutgoing builds an empty outgoing message addressed to recipient. Its
// signature matches engine.NewOutgoing so it can be passed directly to
// engine.New.
func NewOutgoing(recipient identity.ID) bus.OutgoingMessage {
	return &Message{peer: recipient, buf: codec.NewBuffer()}
}

// NewIncoming wraps previously-framed bytes as an incoming message from
// sender.
func NewIncoming(sender identity.ID, raw []byte) *Message {
	return &Message{peer: sender, buf: codec.WrapBuffer(raw)}
}

// Sender implements bus.IncomingMessage.
func (m *Message) Sender() identity.ID { return m.peer }

// Recipient implements bus.OutgoingMessage.
func (m *Message) Recipient() identity.ID { return m.peer }

// Buf implements bus.IncomingMessage and bus.OutgoingMessage.
func (m *Message) Buf() *codec.Buffer { return m.buf }

// Clear discards the buffer's contents.
func (m *Message) Clear() { m.buf.Clear() }

// CreateCache snapshots the message's remaining bytes for later replay.
func (m *Message) CreateCache(controlBlock uint8) bus.Cache {
	return &cache{controlBlock: controlBlock, peer: m.peer, raw: append([]byte(nil), m.buf.Bytes()...)}
}

type cache struct {
	controlBlock uint8
	peer         identity.ID
	raw          []byte
}

func (c *cache) ControlBlock() uint8 { return c.controlBlock }

func (c *cache) Uncache() bus.IncomingMessage {
	return NewIncoming(c.peer, c.raw)
}

// Network is a fully-connected in-memory network: every ordered pair of
// parties gets a FIFO channel, satisfying the per-(sender,recipient)
// ordering guarantee spec.md §4.C requires.
type Network struct {
	parties []identity.ID
	queues  map[identity.ID]map[identity.ID]chan []byte
}

// NewNetwork builds a fully-connected network among parties.
func NewNetwork(parties ...identity.ID) *Network {
	n := &Network{parties: parties, queues: make(map[identity.ID]map[identity.ID]chan []byte)}
	for _, from := range parties {
		n.queues[from] = make(map[identity.ID]chan []byte)
		for _, to := range parties {
			if from.Equal(to) {
				continue
			}
			// Buffered generously: the harness is for tests, not for
			// bounding memory under adversarial load.
			n.queues[from][to] = make(chan []byte, 4096)
		}
	}
	return n
}

// Deliver pushes an outgoing message from `from` onto its recipient's
// inbound queue.
func (n *Network) Deliver(from identity.ID, msg *Message) {
	n.queues[from][msg.Recipient()] <- append([]byte(nil), msg.Buf().Bytes()...)
}

// Inbox returns the channel `to` receives messages from `from` on.
func (n *Network) Inbox(from, to identity.ID) <-chan []byte {
	return n.queues[from][to]
}

// Parties returns the network's participant list.
func (n *Network) Parties() []identity.ID { return n.parties }
