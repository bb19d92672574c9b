// Package unboundedor implements UnboundedFaninOr (spec.md §4.G): the OR of
// an arbitrary number of shared bits in a constant number of rounds, via the
// classic "mask a nonzero-iff-true sum with a pre-shared random nonzero
// field element, reveal the ratio, zero-test in the clear" trick, grounded
// on original_source/src/main/cpp/mpc/UnboundedFaninOr.t.h.
//
// Bits are represented as arithmetic 0/1 shares throughout this package
// (rather than boolean/XOR shares) since the OR test works by summing the
// bits in the field; TypeCast/TypeCastFromBit remain available as standalone
// primitives for callers that need to cross representations.
package unboundedor

import (
	"errors"

	"github.com/fortissimo/mpc/internal/engine"
	"github.com/fortissimo/mpc/pkg/bus"
	"github.com/fortissimo/mpc/pkg/dealer"
	"github.com/fortissimo/mpc/pkg/field"
	"github.com/fortissimo/mpc/pkg/identity"
	"github.com/fortissimo/mpc/pkg/party"
	"github.com/fortissimo/mpc/protocols/multiply"
	"github.com/fortissimo/mpc/protocols/reveal"
)

// UnboundedFaninOr computes a share of OR(bits), where each bit is an
// arithmetic 0/1 share.
type UnboundedFaninOr struct {
	Self      identity.ID
	Others    []identity.ID
	PeerSet   *party.Set
	Revealer  identity.ID
	F         *field.Field
	Bits      []*field.Element
	Series    dealer.ExponentSeries // only Series.Inverse (r^-1) is used
	Triple    dealer.BeaverTriple   // consumed by the internal x*r^-1 multiply
	Transport func(identity.ID) bus.OutgoingMessage

	Result byte // boolean share: 1 on Revealer iff any bit was 1, 0 elsewhere

	mul *multiply.Multiply
	rev *reveal.Reveal
}

func New(self, revealer identity.ID, others []identity.ID, peers *party.Set, f *field.Field, bits []*field.Element, series dealer.ExponentSeries, triple dealer.BeaverTriple, transport func(identity.ID) bus.OutgoingMessage) *UnboundedFaninOr {
	return &UnboundedFaninOr{Self: self, Others: others, PeerSet: peers, Revealer: revealer, F: f, Bits: bits, Series: series, Triple: triple, Transport: transport}
}

func (u *UnboundedFaninOr) Name() string { return "unboundedor" }

func (u *UnboundedFaninOr) Init() ([]engine.Action, error) {
	x := u.F.Zero()
	for _, b := range u.Bits {
		x = x.Add(b)
	}
	u.mul = multiply.New(u.Self, u.Revealer, u.Others, u.PeerSet, u.F, x, u.Series.Inverse, u.Triple, u.Transport)
	return []engine.Action{engine.Invoke{Implementation: u.mul, Peers: u.PeerSet}}, nil
}

func (u *UnboundedFaninOr) HandleComplete(child engine.Implementation) ([]engine.Action, error) {
	switch {
	case u.rev == nil && child == engine.Implementation(u.mul):
		u.rev = reveal.New(u.Self, u.Revealer, u.Others, u.F, u.mul.Z, u.Transport)
		return []engine.Action{engine.Invoke{Implementation: u.rev, Peers: u.PeerSet}}, nil
	case u.rev != nil && child == engine.Implementation(u.rev):
		var bit byte
		if !u.rev.Opened.IsZero() {
			bit = 1
		}
		if u.Self.Equal(u.Revealer) {
			u.Result = bit
		}
		return []engine.Action{engine.Complete{}}, nil
	default:
		return nil, errors.New("unboundedor: unexpected child completion")
	}
}

func (u *UnboundedFaninOr) HandleReceive(bus.IncomingMessage) ([]engine.Action, error) {
	return nil, errors.New("unboundedor: unexpected direct payload")
}

func (u *UnboundedFaninOr) HandlePromise(engine.Implementation) ([]engine.Action, error) {
	return nil, errors.New("unboundedor: has no promises")
}
