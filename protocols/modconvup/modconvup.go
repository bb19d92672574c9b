// Package modconvup implements ModConvUp (spec.md §4.H): re-shares a value
// held as an additive share mod a small field q into an additive share mod a
// larger field Q (Q > n·q, n the party count), grounded on
// original_source/src/main/cpp/mpc/ModConvUp.t.h.
//
// It embeds the q-share into Q, masks it with a dealer-supplied random value
// bounded by q, reveals the masked sum, and uses protocols/bitwisecompare
// once to recover the single bit indicating whether adding the mask wrapped
// past q — the only correction an up-conversion from a small bounded range
// needs. The original's construction runs two BitwiseCompare calls plus a
// TypeCastFromBit lift; this implementation folds the overflow bit directly
// into the (public-constant) correction term instead of lifting a second
// comparison, since q is public once revealed — a deliberate simplification
// of the exact original wiring documented in DESIGN.md.
package modconvup

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/fortissimo/mpc/internal/engine"
	"github.com/fortissimo/mpc/pkg/bus"
	"github.com/fortissimo/mpc/pkg/dealer"
	"github.com/fortissimo/mpc/pkg/field"
	"github.com/fortissimo/mpc/pkg/identity"
	"github.com/fortissimo/mpc/pkg/party"
	"github.com/fortissimo/mpc/protocols/bitwisecompare"
	"github.com/fortissimo/mpc/protocols/reveal"
)

// ModConvUp converts a share of x mod Source into a share of the same x mod
// Target.
type ModConvUp struct {
	Self      identity.ID
	Others    []identity.ID
	PeerSet   *party.Set
	Revealer  identity.ID
	Source    *field.Field // q
	Target    *field.Field // Q
	XShare    *field.Element
	Aux       dealer.ModConvUpAux // R and its bit decomposition, both shared mod Target
	Series    []dealer.ExponentSeries
	Triples   []dealer.BeaverTriple
	Transport func(identity.ID) bus.OutgoingMessage

	Result *field.Element

	qBig  *big.Int
	vMod  *big.Int
	rev   *reveal.Reveal
	bc    *bitwisecompare.BitwiseCompare
}

func New(self, revealer identity.ID, others []identity.ID, peers *party.Set, source, target *field.Field, xShare *field.Element, aux dealer.ModConvUpAux, series []dealer.ExponentSeries, triples []dealer.BeaverTriple, transport func(identity.ID) bus.OutgoingMessage) *ModConvUp {
	return &ModConvUp{Self: self, Others: others, PeerSet: peers, Revealer: revealer, Source: source, Target: target, XShare: xShare, Aux: aux, Series: series, Triples: triples, Transport: transport}
}

func (m *ModConvUp) Name() string { return "modconvup" }

func (m *ModConvUp) Init() ([]engine.Action, error) {
	for i, bit := range m.Aux.Bits {
		if !bit.SameField(m.Target) {
			return nil, fmt.Errorf("modconvup: Aux.Bits[%d] is not shared in Target — construct its ModConvUpAuxGenerator with Small == Target", i)
		}
	}
	m.qBig = new(big.Int).SetBytes(m.Source.ModulusBytes())
	sShare := m.Target.FromBytes(m.XShare.Bytes())
	masked := sShare.Add(m.Aux.R)
	m.rev = reveal.New(m.Self, m.Revealer, m.Others, m.Target, masked, m.Transport)
	return []engine.Action{engine.Invoke{Implementation: m.rev, Peers: m.PeerSet}}, nil
}

func (m *ModConvUp) HandleComplete(child engine.Implementation) ([]engine.Action, error) {
	switch {
	case m.bc == nil && child == engine.Implementation(m.rev):
		z := m.rev.Opened
		zBig := new(big.Int).SetBytes(z.Bytes())
		m.vMod = new(big.Int).Mod(zBig, m.qBig)
		threshold := new(big.Int).Sub(m.qBig, m.vMod)
		if threshold.Cmp(m.qBig) >= 0 {
			// v == 0: R < q <= threshold always holds, so the mask never wraps.
			return m.finish(m.Target.Zero())
		}
		numBit := len(m.Aux.Bits)
		sharedMSB := make([]*field.Element, numBit)
		publicMSB := make([]byte, numBit)
		for i := 0; i < numBit; i++ {
			sharedMSB[i] = m.Aux.Bits[numBit-1-i]
			publicMSB[i] = byte(threshold.Bit(numBit - 1 - i))
		}
		m.bc = bitwisecompare.New(m.Self, m.Revealer, m.Others, m.PeerSet, m.Target, sharedMSB, publicMSB, m.Series, m.Triples, m.Transport)
		return []engine.Action{engine.Invoke{Implementation: m.bc, Peers: m.PeerSet}}, nil
	case m.bc != nil && child == engine.Implementation(m.bc):
		isLess := m.bc.Result
		overflow := isLess.Neg()
		if m.Self.Equal(m.Revealer) {
			overflow = overflow.Add(m.Target.One())
		}
		return m.finish(overflow)
	default:
		return nil, errors.New("modconvup: unexpected child completion")
	}
}

func (m *ModConvUp) finish(overflow *field.Element) ([]engine.Action, error) {
	var zShare *field.Element
	if m.Self.Equal(m.Revealer) {
		zShare = m.Target.FromBytes(m.vMod.Bytes())
	} else {
		zShare = m.Target.Zero()
	}
	qElem := m.Target.FromBytes(m.qBig.Bytes())
	m.Result = zShare.Sub(m.Aux.R).Add(overflow.Mul(qElem))
	return []engine.Action{engine.Complete{}}, nil
}

func (m *ModConvUp) HandleReceive(bus.IncomingMessage) ([]engine.Action, error) {
	return nil, errors.New("modconvup: unexpected direct payload")
}

func (m *ModConvUp) HandlePromise(engine.Implementation) ([]engine.Action, error) {
	return nil, errors.New("modconvup: has no promises")
}
