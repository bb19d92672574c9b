// Package multiply implements the Beaver-triple multiplication primitive
// (spec.md §4.F), both over the arithmetic field and over booleans (XOR/AND
// shares), grounded on original_source/src/main/cpp/mpc/Multiply.t.h and
// BooleanMultiply.t.h.
//
// Both variants mask their operands with a pre-drawn triple, reveal the
// masked values through two sequential child protocols/reveal invocations
// (sequential, not parallel, since two children invoked with an identical
// peer set would be ambiguous for the engine's SYNC matching), and
// reconstruct the product locally.
package multiply

import (
	"errors"

	"github.com/fortissimo/mpc/internal/engine"
	"github.com/fortissimo/mpc/pkg/bus"
	"github.com/fortissimo/mpc/pkg/dealer"
	"github.com/fortissimo/mpc/pkg/field"
	"github.com/fortissimo/mpc/pkg/identity"
	"github.com/fortissimo/mpc/pkg/party"
	"github.com/fortissimo/mpc/protocols/reveal"
)

// Multiply computes a share of x*y given shares x, y and a Beaver triple.
type Multiply struct {
	Self      identity.ID
	Others    []identity.ID
	PeerSet   *party.Set
	Revealer  identity.ID
	F         *field.Field
	X, Y      *field.Element
	Triple    dealer.BeaverTriple
	Transport func(identity.ID) bus.OutgoingMessage

	Z *field.Element

	eShare           *field.Element
	dReveal, eReveal *reveal.Reveal
}

func New(self, revealer identity.ID, others []identity.ID, peers *party.Set, f *field.Field, x, y *field.Element, triple dealer.BeaverTriple, transport func(identity.ID) bus.OutgoingMessage) *Multiply {
	return &Multiply{Self: self, Others: others, PeerSet: peers, Revealer: revealer, F: f, X: x, Y: y, Triple: triple, Transport: transport}
}

func (m *Multiply) Name() string { return "multiply" }

func (m *Multiply) Init() ([]engine.Action, error) {
	d := m.X.Sub(m.Triple.A)
	m.eShare = m.Y.Sub(m.Triple.B)
	m.dReveal = reveal.New(m.Self, m.Revealer, m.Others, m.F, d, m.Transport)
	return []engine.Action{engine.Invoke{Implementation: m.dReveal, Peers: m.PeerSet}}, nil
}

func (m *Multiply) HandleComplete(child engine.Implementation) ([]engine.Action, error) {
	switch {
	case m.eReveal == nil && child == engine.Implementation(m.dReveal):
		m.eReveal = reveal.New(m.Self, m.Revealer, m.Others, m.F, m.eShare, m.Transport)
		return []engine.Action{engine.Invoke{Implementation: m.eReveal, Peers: m.PeerSet}}, nil
	case m.eReveal != nil && child == engine.Implementation(m.eReveal):
		d := m.dReveal.Opened
		e := m.eReveal.Opened
		z := m.Triple.B.Mul(d).Add(m.Triple.A.Mul(e)).Add(m.Triple.C)
		if m.Self.Equal(m.Revealer) {
			z = z.Add(d.Mul(e))
		}
		m.Z = z
		return []engine.Action{engine.Complete{}}, nil
	default:
		return nil, errors.New("multiply: unexpected child completion")
	}
}

func (m *Multiply) HandleReceive(bus.IncomingMessage) ([]engine.Action, error) {
	return nil, errors.New("multiply: unexpected direct payload")
}

func (m *Multiply) HandlePromise(engine.Implementation) ([]engine.Action, error) {
	return nil, errors.New("multiply: has no promises")
}

// Boolean computes a share of x AND y given XOR shares x, y and a boolean
// Beaver triple.
type Boolean struct {
	Self      identity.ID
	Others    []identity.ID
	PeerSet   *party.Set
	Revealer  identity.ID
	X, Y      byte
	Triple    dealer.BooleanBeaverTriple
	Transport func(identity.ID) bus.OutgoingMessage

	Z byte

	eShare           byte
	dReveal, eReveal *reveal.Reveal
}

func NewBoolean(self, revealer identity.ID, others []identity.ID, peers *party.Set, x, y byte, triple dealer.BooleanBeaverTriple, transport func(identity.ID) bus.OutgoingMessage) *Boolean {
	return &Boolean{Self: self, Others: others, PeerSet: peers, Revealer: revealer, X: x, Y: y, Triple: triple, Transport: transport}
}

func (m *Boolean) Name() string { return "multiply.boolean" }

func (m *Boolean) Init() ([]engine.Action, error) {
	d := m.X ^ m.Triple.A
	m.eShare = m.Y ^ m.Triple.B
	m.dReveal = reveal.NewBoolean(m.Self, m.Revealer, m.Others, d, m.Transport)
	return []engine.Action{engine.Invoke{Implementation: m.dReveal, Peers: m.PeerSet}}, nil
}

func (m *Boolean) HandleComplete(child engine.Implementation) ([]engine.Action, error) {
	switch {
	case m.eReveal == nil && child == engine.Implementation(m.dReveal):
		m.eReveal = reveal.NewBoolean(m.Self, m.Revealer, m.Others, m.eShare, m.Transport)
		return []engine.Action{engine.Invoke{Implementation: m.eReveal, Peers: m.PeerSet}}, nil
	case m.eReveal != nil && child == engine.Implementation(m.eReveal):
		d := m.dReveal.OpenedXOR
		e := m.eReveal.OpenedXOR
		z := (m.Triple.B & d) ^ (m.Triple.A & e) ^ m.Triple.C
		if m.Self.Equal(m.Revealer) {
			z ^= d & e
		}
		m.Z = z
		return []engine.Action{engine.Complete{}}, nil
	default:
		return nil, errors.New("multiply: unexpected child completion")
	}
}

func (m *Boolean) HandleReceive(bus.IncomingMessage) ([]engine.Action, error) {
	return nil, errors.New("multiply: unexpected direct payload")
}

func (m *Boolean) HandlePromise(engine.Implementation) ([]engine.Action, error) {
	return nil, errors.New("multiply: has no promises")
}
