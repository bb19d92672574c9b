// Package compare implements Compare (spec.md §4.G): determines whether one
// secret-shared field element is less than another, grounded on
// original_source/src/main/cpp/mpc/Compare.t.h.
//
// It masks the difference 2(x-y) with a dealer-supplied random ℓ-bit value,
// reveals the masked value, bit-decomposes it in the clear, and runs
// protocols/bitwisecompare between the mask's shared bits and the revealed
// public bits. The original also recovers the exact equal/greater
// distinction from the revealed value's low bits combined with the mask's
// LSB; this implementation returns only the strict less-than bit (the
// comparator protocols/quicksort and protocols/sisosort actually need) and
// does not replicate that finer three-way reconstruction — see DESIGN.md.
package compare

import (
	"errors"
	"fmt"

	"github.com/fortissimo/mpc/internal/engine"
	"github.com/fortissimo/mpc/pkg/bus"
	"github.com/fortissimo/mpc/pkg/dealer"
	"github.com/fortissimo/mpc/pkg/field"
	"github.com/fortissimo/mpc/pkg/identity"
	"github.com/fortissimo/mpc/pkg/party"
	"github.com/fortissimo/mpc/protocols/bitwisecompare"
	"github.com/fortissimo/mpc/protocols/reveal"
)

// Compare computes a share of the bit (X < Y).
type Compare struct {
	Self      identity.ID
	Others    []identity.ID
	PeerSet   *party.Set
	Revealer  identity.ID
	F         *field.Field
	X, Y      *field.Element
	Aux       dealer.DecomposedBitSet // Aux.Bits is LSB-first
	Series    []dealer.ExponentSeries
	Triples   []dealer.BeaverTriple
	Transport func(identity.ID) bus.OutgoingMessage

	Less *field.Element

	rev *reveal.Reveal
	bc  *bitwisecompare.BitwiseCompare
}

func New(self, revealer identity.ID, others []identity.ID, peers *party.Set, f *field.Field, x, y *field.Element, aux dealer.DecomposedBitSet, series []dealer.ExponentSeries, triples []dealer.BeaverTriple, transport func(identity.ID) bus.OutgoingMessage) *Compare {
	return &Compare{Self: self, Others: others, PeerSet: peers, Revealer: revealer, F: f, X: x, Y: y, Aux: aux, Series: series, Triples: triples, Transport: transport}
}

func (c *Compare) Name() string { return "compare" }

func (c *Compare) Init() ([]engine.Action, error) {
	for i, bit := range c.Aux.Bits {
		if !bit.SameField(c.F) {
			return nil, fmt.Errorf("compare: Aux.Bits[%d] is not shared in F — construct its DecomposedBitSetGenerator with Small == F", i)
		}
	}
	diff := c.X.Sub(c.Y)
	masked := diff.Mul(c.F.FromUint64(2)).Add(c.Aux.R)
	c.rev = reveal.New(c.Self, c.Revealer, c.Others, c.F, masked, c.Transport)
	return []engine.Action{engine.Invoke{Implementation: c.rev, Peers: c.PeerSet}}, nil
}

func (c *Compare) HandleComplete(child engine.Implementation) ([]engine.Action, error) {
	switch {
	case c.bc == nil && child == engine.Implementation(c.rev):
		numBit := len(c.Aux.Bits)
		z := c.rev.Opened
		// Both sequences are reordered MSB-first for protocols/bitwisecompare,
		// since Aux.Bits (and z's natural bit order) are LSB-first.
		sharedMSB := make([]*field.Element, numBit)
		publicMSB := make([]byte, numBit)
		for i := 0; i < numBit; i++ {
			sharedMSB[i] = c.Aux.Bits[numBit-1-i]
			publicMSB[i] = z.Bit(numBit - 1 - i)
		}
		c.bc = bitwisecompare.New(c.Self, c.Revealer, c.Others, c.PeerSet, c.F, sharedMSB, publicMSB, c.Series, c.Triples, c.Transport)
		return []engine.Action{engine.Invoke{Implementation: c.bc, Peers: c.PeerSet}}, nil
	case c.bc != nil && child == engine.Implementation(c.bc):
		c.Less = c.bc.Result
		return []engine.Action{engine.Complete{}}, nil
	default:
		return nil, errors.New("compare: unexpected child completion")
	}
}

func (c *Compare) HandleReceive(bus.IncomingMessage) ([]engine.Action, error) {
	return nil, errors.New("compare: unexpected direct payload")
}

func (c *Compare) HandlePromise(engine.Implementation) ([]engine.Action, error) {
	return nil, errors.New("compare: has no promises")
}
