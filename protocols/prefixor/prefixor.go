// Package prefixor implements PrefixOr (spec.md §4.G): for a sequence of
// shared bits, produce the running OR of every prefix, grounded on
// original_source/src/main/cpp/mpc/PrefixOr.t.h.
//
// The original composes this from block-decomposed unboundedor calls
// (λ≈⌈√ℓ⌉ blocks) to keep the round count sublinear in ℓ. This
// implementation instead chains ℓ-1 pairwise protocols/unboundedor
// invocations sequentially — correct and still constant-round per step, but
// O(ℓ) sequential steps rather than O(√ℓ); the round-count optimization is
// not replicated (see DESIGN.md).
package prefixor

import (
	"errors"

	"github.com/fortissimo/mpc/internal/engine"
	"github.com/fortissimo/mpc/pkg/bus"
	"github.com/fortissimo/mpc/pkg/dealer"
	"github.com/fortissimo/mpc/pkg/field"
	"github.com/fortissimo/mpc/pkg/identity"
	"github.com/fortissimo/mpc/pkg/party"
	"github.com/fortissimo/mpc/protocols/unboundedor"
)

// PrefixOr computes Result[i] = OR(Bits[0..i]) for every i.
type PrefixOr struct {
	Self      identity.ID
	Others    []identity.ID
	PeerSet   *party.Set
	Revealer  identity.ID
	F         *field.Field
	Bits      []*field.Element
	Series    []dealer.ExponentSeries // len(Bits)-1 entries
	Triples   []dealer.BeaverTriple   // len(Bits)-1 entries
	Transport func(identity.ID) bus.OutgoingMessage

	Result []*field.Element

	step    int
	current *unboundedor.UnboundedFaninOr
}

func New(self, revealer identity.ID, others []identity.ID, peers *party.Set, f *field.Field, bits []*field.Element, series []dealer.ExponentSeries, triples []dealer.BeaverTriple, transport func(identity.ID) bus.OutgoingMessage) *PrefixOr {
	return &PrefixOr{Self: self, Others: others, PeerSet: peers, Revealer: revealer, F: f, Bits: bits, Series: series, Triples: triples, Transport: transport}
}

func (p *PrefixOr) Name() string { return "prefixor" }

func (p *PrefixOr) Init() ([]engine.Action, error) {
	if len(p.Bits) == 0 {
		return []engine.Action{engine.Complete{}}, nil
	}
	p.Result = make([]*field.Element, len(p.Bits))
	p.Result[0] = p.Bits[0]
	if len(p.Bits) == 1 {
		return []engine.Action{engine.Complete{}}, nil
	}
	return p.startStep(1)
}

func (p *PrefixOr) startStep(i int) ([]engine.Action, error) {
	or := unboundedor.New(p.Self, p.Revealer, p.Others, p.PeerSet, p.F,
		[]*field.Element{p.Result[i-1], p.Bits[i]}, p.Series[i-1], p.Triples[i-1], p.Transport)
	p.current = or
	p.step = i
	return []engine.Action{engine.Invoke{Implementation: or, Peers: p.PeerSet}}, nil
}

func (p *PrefixOr) HandleComplete(child engine.Implementation) ([]engine.Action, error) {
	if child != engine.Implementation(p.current) {
		return nil, errors.New("prefixor: unexpected child completion")
	}
	var bitShare *field.Element
	if p.Self.Equal(p.Revealer) {
		bitShare = p.F.FromUint64(uint64(p.current.Result))
	} else {
		bitShare = p.F.Zero()
	}
	p.Result[p.step] = bitShare
	if p.step+1 == len(p.Bits) {
		return []engine.Action{engine.Complete{}}, nil
	}
	return p.startStep(p.step + 1)
}

func (p *PrefixOr) HandleReceive(bus.IncomingMessage) ([]engine.Action, error) {
	return nil, errors.New("prefixor: unexpected direct payload")
}

func (p *PrefixOr) HandlePromise(engine.Implementation) ([]engine.Action, error) {
	return nil, errors.New("prefixor: has no promises")
}
