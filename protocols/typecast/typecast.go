// Package typecast implements the two bit-representation conversions
// spec.md §4.F names: TypeCast (an arithmetic share of a 0/1 value becomes a
// boolean/XOR share of the same bit) and TypeCastFromBit (the reverse).
// Grounded on original_source/src/main/cpp/mpc/TypeCastBit.t.h and
// TypeCastFromBit.t.h.
//
// Both mask the input with a dealer-supplied random bit shared in both
// representations, reveal the mask-adjusted value through one child
// protocols/reveal invocation, and use the revealed correction bit to flip
// exactly one party's share so the result still sums/XORs to the right
// secret.
package typecast

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

// TypeCast converts an arithmetic share of a bit into a boolean share.
type TypeCast struct {
	Self      identity.ID
	Others    []identity.ID
	PeerSet   *party.Set
	Revealer  identity.ID
	F         *field.Field
	X         *field.Element
	Triple    dealer.TypeCastTriple
	Transport func(identity.ID) bus.OutgoingMessage

	Result byte

	reveal *reveal.Reveal
}

func New(self, revealer identity.ID, others []identity.ID, peers *party.Set, f *field.Field, x *field.Element, triple dealer.TypeCastTriple, transport func(identity.ID) bus.OutgoingMessage) *TypeCast {
	return &TypeCast{Self: self, Others: others, PeerSet: peers, Revealer: revealer, F: f, X: x, Triple: triple, Transport: transport}
}

func (t *TypeCast) Name() string { return "typecast" }

func (t *TypeCast) Init() ([]engine.Action, error) {
	mShare := t.X.Sub(t.Triple.RArith)
	t.reveal = reveal.New(t.Self, t.Revealer, t.Others, t.F, mShare, t.Transport)
	return []engine.Action{engine.Invoke{Implementation: t.reveal, Peers: t.PeerSet}}, nil
}

func (t *TypeCast) HandleComplete(child engine.Implementation) ([]engine.Action, error) {
	if child != engine.Implementation(t.reveal) {
		return nil, errors.New("typecast: unexpected child completion")
	}
	var correction byte
	if !t.reveal.Opened.IsZero() {
		correction = 1
	}
	result := t.Triple.RBoolean
	if t.Self.Equal(t.Revealer) {
		result ^= correction
	}
	t.Result = result
	return []engine.Action{engine.Complete{}}, nil
}

func (t *TypeCast) HandleReceive(bus.IncomingMessage) ([]engine.Action, error) {
	return nil, errors.New("typecast: unexpected direct payload")
}

func (t *TypeCast) HandlePromise(engine.Implementation) ([]engine.Action, error) {
	return nil, errors.New("typecast: has no promises")
}

// FromBit converts a boolean share of a bit into an arithmetic share.
type FromBit struct {
	Self      identity.ID
	Others    []identity.ID
	PeerSet   *party.Set
	Revealer  identity.ID
	F         *field.Field
	X         byte
	Triple    dealer.TypeCastFromBitTriple
	Transport func(identity.ID) bus.OutgoingMessage

	Result *field.Element

	reveal *reveal.Reveal
}

func NewFromBit(self, revealer identity.ID, others []identity.ID, peers *party.Set, f *field.Field, x byte, triple dealer.TypeCastFromBitTriple, transport func(identity.ID) bus.OutgoingMessage) *FromBit {
	return &FromBit{Self: self, Others: others, PeerSet: peers, Revealer: revealer, F: f, X: x, Triple: triple, Transport: transport}
}

func (t *FromBit) Name() string { return "typecast.frombit" }

func (t *FromBit) Init() ([]engine.Action, error) {
	mShare := t.X ^ t.Triple.RBoolean
	t.reveal = reveal.NewBoolean(t.Self, t.Revealer, t.Others, mShare, t.Transport)
	return []engine.Action{engine.Invoke{Implementation: t.reveal, Peers: t.PeerSet}}, nil
}

func (t *FromBit) HandleComplete(child engine.Implementation) ([]engine.Action, error) {
	if child != engine.Implementation(t.reveal) {
		return nil, errors.New("typecast: unexpected child completion")
	}
	result := t.Triple.RArith
	if t.reveal.OpenedXOR == 1 {
		result = result.Neg()
		if t.Self.Equal(t.Revealer) {
			result = result.Add(t.F.One())
		}
	}
	t.Result = result
	return []engine.Action{engine.Complete{}}, nil
}

func (t *FromBit) HandleReceive(bus.IncomingMessage) ([]engine.Action, error) {
	return nil, errors.New("typecast: unexpected direct payload")
}

func (t *FromBit) HandlePromise(engine.Implementation) ([]engine.Action, error) {
	return nil, errors.New("typecast: has no promises")
}
