// Package bitwisecompare implements BitwiseCompare (spec.md §4.G): compares
// a secret-shared ℓ-bit value against a PUBLIC ℓ-bit comparand, grounded on
// original_source/src/main/cpp/mpc/BitwiseCompare.t.h.
//
// Because the comparand is public, bit-level XOR and the final selection
// are both local scalar operations (multiplying a share by a public 0/1
// constant needs no interaction) — only protocols/prefixor's internal
// unboundedor calls touch the network.
package bitwisecompare

import (
	"errors"

	"github.com/fortissimo/mpc/internal/engine"
	"github.com/fortissimo/mpc/pkg/bus"
	"github.com/fortissimo/mpc/pkg/dealer"
	"github.com/fortissimo/mpc/pkg/field"
	"github.com/fortissimo/mpc/pkg/identity"
	"github.com/fortissimo/mpc/pkg/party"
	"github.com/fortissimo/mpc/protocols/prefixor"
)

// BitwiseCompare computes a share of the bit (Shared < Public), bits ordered
// MSB-first in both Shared and Public.
type BitwiseCompare struct {
	Self      identity.ID
	Others    []identity.ID
	PeerSet   *party.Set
	Revealer  identity.ID
	F         *field.Field
	Shared    []*field.Element
	Public    []byte
	Series    []dealer.ExponentSeries
	Triples   []dealer.BeaverTriple
	Transport func(identity.ID) bus.OutgoingMessage

	Result *field.Element

	prefix *prefixor.PrefixOr
}

func New(self, revealer identity.ID, others []identity.ID, peers *party.Set, f *field.Field, shared []*field.Element, public []byte, series []dealer.ExponentSeries, triples []dealer.BeaverTriple, transport func(identity.ID) bus.OutgoingMessage) *BitwiseCompare {
	return &BitwiseCompare{Self: self, Others: others, PeerSet: peers, Revealer: revealer, F: f, Shared: shared, Public: public, Series: series, Triples: triples, Transport: transport}
}

func (c *BitwiseCompare) Name() string { return "bitwisecompare" }

func (c *BitwiseCompare) Init() ([]engine.Action, error) {
	xorBits := make([]*field.Element, len(c.Shared))
	for i, pb := range c.Public {
		if pb == 0 {
			xorBits[i] = c.Shared[i]
		} else {
			xorBits[i] = c.F.One().Sub(c.Shared[i])
		}
	}
	c.prefix = prefixor.New(c.Self, c.Revealer, c.Others, c.PeerSet, c.F, xorBits, c.Series, c.Triples, c.Transport)
	return []engine.Action{engine.Invoke{Implementation: c.prefix, Peers: c.PeerSet}}, nil
}

func (c *BitwiseCompare) HandleComplete(child engine.Implementation) ([]engine.Action, error) {
	if child != engine.Implementation(c.prefix) {
		return nil, errors.New("bitwisecompare: unexpected child completion")
	}
	result := c.F.Zero()
	prev := c.F.Zero()
	for i, p := range c.prefix.Result {
		selector := p.Sub(prev)
		if c.Public[i] == 1 {
			result = result.Add(selector)
		}
		prev = p
	}
	c.Result = result
	return []engine.Action{engine.Complete{}}, nil
}

func (c *BitwiseCompare) HandleReceive(bus.IncomingMessage) ([]engine.Action, error) {
	return nil, errors.New("bitwisecompare: unexpected direct payload")
}

func (c *BitwiseCompare) HandlePromise(engine.Implementation) ([]engine.Action, error) {
	return nil, errors.New("bitwisecompare: has no promises")
}
