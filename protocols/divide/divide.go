// Package divide implements secret-shared restoring binary long division
// (spec.md §5's supplemented module list, grounded on
// original_source/.../mpc/Divide.t.h and .../DivideDealer.t.h for the
// per-bit randomness shape), reusing protocols/compare's dealer/patron
// chain.
//
// The dividend is supplied pre-decomposed into secret-shared bits
// (DividendBits, most-significant first — the same shape protocols/compare
// already consumes elsewhere), and division proceeds one bit at a time:
// the running remainder is shifted left and the next dividend bit brought
// in locally, then compared against the (secret) divisor to decide the
// quotient bit. Since the quotient bit is itself secret, restoring the
// remainder (subtracting the divisor back out when the trial remainder was
// big enough) needs one secure multiplication, not a local select. So each
// bit of quotient costs one Compare and one Multiply, strictly sequential
// since each bit's remainder depends on the last.
package divide

import (
	"errors"
	"fmt"

	"github.com/fortissimo/mpc/internal/engine"
	"github.com/fortissimo/mpc/pkg/bus"
	"github.com/fortissimo/mpc/pkg/dealer"
	"github.com/fortissimo/mpc/pkg/field"
	"github.com/fortissimo/mpc/pkg/identity"
	"github.com/fortissimo/mpc/pkg/party"
	"github.com/fortissimo/mpc/protocols/compare"
	"github.com/fortissimo/mpc/protocols/multiply"
)

// BitMaterial is the randomness one quotient bit's compare-then-restore
// step consumes.
type BitMaterial struct {
	CmpAux       dealer.DecomposedBitSet
	CmpSeries    []dealer.ExponentSeries
	CmpTriples   []dealer.BeaverTriple
	SelectTriple dealer.BeaverTriple
}

// Divide computes Quotient and Remainder such that the value represented by
// DividendBits equals Quotient*Divisor + Remainder, with
// 0 <= Remainder < Divisor (assuming the caller's bit width bounds the
// dividend below Divisor's square, the usual restoring-division
// precondition).
type Divide struct {
	Self         identity.ID
	Others       []identity.ID
	PeerSet      *party.Set
	Revealer     identity.ID
	F            *field.Field
	DividendBits []*field.Element // MSB first
	Divisor      *field.Element
	Bits         []BitMaterial // len(DividendBits) entries
	Transport    func(identity.ID) bus.OutgoingMessage

	Quotient  []*field.Element // MSB first, len(DividendBits)
	Remainder *field.Element

	idx       int
	remainder *field.Element
	trial     *field.Element
	quotient  []*field.Element
	phase     int // 0 = comparing, 1 = restoring
	cmp       *compare.Compare
	sel       *multiply.Multiply
}

func New(self, revealer identity.ID, others []identity.ID, peers *party.Set, f *field.Field, dividendBits []*field.Element, divisor *field.Element, bits []BitMaterial, transport func(identity.ID) bus.OutgoingMessage) *Divide {
	return &Divide{Self: self, Others: others, PeerSet: peers, Revealer: revealer, F: f, DividendBits: dividendBits, Divisor: divisor, Bits: bits, Transport: transport}
}

func (d *Divide) Name() string { return "divide" }

func (d *Divide) Init() ([]engine.Action, error) {
	if len(d.DividendBits) == 0 {
		return nil, errors.New("divide: DividendBits must be non-empty")
	}
	if len(d.Bits) != len(d.DividendBits) {
		return nil, fmt.Errorf("divide: need %d bit-material entries, got %d", len(d.DividendBits), len(d.Bits))
	}
	d.remainder = d.F.Zero()
	d.quotient = make([]*field.Element, len(d.DividendBits))
	d.idx = 0
	return d.startBit()
}

func (d *Divide) startBit() ([]engine.Action, error) {
	if d.idx >= len(d.DividendBits) {
		d.Quotient = d.quotient
		d.Remainder = d.remainder
		return []engine.Action{engine.Complete{}}, nil
	}
	d.trial = d.remainder.Add(d.remainder).Add(d.DividendBits[d.idx])
	mat := d.Bits[d.idx]
	d.cmp = compare.New(d.Self, d.Revealer, d.Others, d.PeerSet, d.F, d.trial, d.Divisor, mat.CmpAux, mat.CmpSeries, mat.CmpTriples, d.Transport)
	d.phase = 0
	return []engine.Action{engine.Invoke{Implementation: d.cmp, Peers: d.PeerSet}}, nil
}

func (d *Divide) HandleComplete(child engine.Implementation) ([]engine.Action, error) {
	switch d.phase {
	case 0:
		if child != engine.Implementation(d.cmp) {
			return nil, errors.New("divide: unexpected child completion in compare phase")
		}
		qBit := d.F.One().Sub(d.cmp.Less)
		d.quotient[d.idx] = qBit
		d.sel = multiply.New(d.Self, d.Revealer, d.Others, d.PeerSet, d.F, qBit, d.Divisor, d.Bits[d.idx].SelectTriple, d.Transport)
		d.phase = 1
		return []engine.Action{engine.Invoke{Implementation: d.sel, Peers: d.PeerSet}}, nil
	case 1:
		if child != engine.Implementation(d.sel) {
			return nil, errors.New("divide: unexpected child completion in restore phase")
		}
		d.remainder = d.trial.Sub(d.sel.Z)
		d.idx++
		return d.startBit()
	default:
		return nil, fmt.Errorf("divide: unknown phase %d", d.phase)
	}
}

func (d *Divide) HandleReceive(bus.IncomingMessage) ([]engine.Action, error) {
	return nil, errors.New("divide: unexpected direct payload")
}

func (d *Divide) HandlePromise(engine.Implementation) ([]engine.Action, error) {
	return nil, errors.New("divide: has no promises")
}
