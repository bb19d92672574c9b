// Package waksman implements a Waksman permutation network shuffle
// (spec.md §4.J): given n = 2^d secret-shared rows, it runs them through a
// recursive network of (d-1)*2^d+1 oblivious conditional-swap gates whose
// control bits are drawn uniformly at random by the dealer
// (pkg/dealer.WaksmanBits), producing a uniformly random permutation of the
// rows without revealing which permutation was applied — the shuffle step
// SISOSort uses to hide the relationship between a sorted output and its
// input order, grounded on original_source/src/main/cpp/mpc/Waksman.t.h.
//
// Rather than routing a specific target permutation (Waksman's classical
// use), every gate's control bit here is independently random, which is the
// standard technique for an oblivious random shuffle: a full Waksman network
// of uniformly random switches realizes a uniformly random permutation.
// Each gate is itself a batch of per-column oblivious swaps
// (protocols/multiply under protocols/batch), and the gates within one
// network "column" are batched together too, so one network level costs one
// Multiply's two sequential reveals regardless of row width or row count.
package waksman

import (
	"errors"
	"fmt"

	"github.com/fortissimo/mpc/internal/engine"
	"github.com/fortissimo/mpc/pkg/bus"
	"github.com/fortissimo/mpc/pkg/dealer"
	"github.com/fortissimo/mpc/pkg/field"
	"github.com/fortissimo/mpc/pkg/identity"
	"github.com/fortissimo/mpc/pkg/party"
	"github.com/fortissimo/mpc/protocols/batch"
	"github.com/fortissimo/mpc/protocols/multiply"
)

// Waksman shuffles Rows in place via oblivious conditional swaps.
type Waksman struct {
	Self      identity.ID
	Others    []identity.ID
	PeerSet   *party.Set
	Revealer  identity.ID
	F         *field.Field
	Rows      [][]*field.Element    // n = 2^d rows, each a fixed-width vector of columns
	Bits      []dealer.WaksmanBits  // one control-bit share per gate, in the order GateSpecs(n) lists them
	Triples   [][]dealer.BeaverTriple // per gate (same order), one triple per column
	Transport func(identity.ID) bus.OutgoingMessage

	Result [][]*field.Element

	rounds     [][][2]int
	roundIdx   int
	gateOffset int
	curGates   []*swapGate
	curBatch   *batch.Batch
}

func New(self, revealer identity.ID, others []identity.ID, peers *party.Set, f *field.Field, rows [][]*field.Element, bits []dealer.WaksmanBits, triples [][]dealer.BeaverTriple, transport func(identity.ID) bus.OutgoingMessage) *Waksman {
	return &Waksman{Self: self, Others: others, PeerSet: peers, Revealer: revealer, F: f, Rows: rows, Bits: bits, Triples: triples, Transport: transport}
}

func (w *Waksman) Name() string { return "waksman" }

func (w *Waksman) Init() ([]engine.Action, error) {
	wires := make([]int, len(w.Rows))
	for i := range wires {
		wires[i] = i
	}
	w.rounds = waksmanRounds(wires)
	return w.startRound(0)
}

func (w *Waksman) startRound(idx int) ([]engine.Action, error) {
	if idx >= len(w.rounds) {
		w.Result = w.Rows
		return []engine.Action{engine.Complete{}}, nil
	}
	gates := w.rounds[idx]
	children := make([]engine.Implementation, len(gates))
	curGates := make([]*swapGate, len(gates))
	for k, pair := range gates {
		gi := w.gateOffset + k
		if gi >= len(w.Bits) || gi >= len(w.Triples) {
			return nil, fmt.Errorf("waksman: not enough dealt gates: need %d, have %d", w.gateOffset+len(gates), len(w.Bits))
		}
		g := newSwapGate(w.Self, w.Revealer, w.Others, w.PeerSet, w.F, w.Rows[pair[0]], w.Rows[pair[1]], w.Bits[gi].Big, w.Triples[gi], w.Transport)
		children[k] = g
		curGates[k] = g
	}
	w.curGates = curGates
	w.roundIdx = idx
	w.curBatch = batch.New(w.Self, w.Transport, children)
	return []engine.Action{engine.Invoke{Implementation: w.curBatch, Peers: w.PeerSet}}, nil
}

func (w *Waksman) HandleComplete(child engine.Implementation) ([]engine.Action, error) {
	if child != engine.Implementation(w.curBatch) {
		return nil, errors.New("waksman: unexpected child completion")
	}
	gates := w.rounds[w.roundIdx]
	for k, pair := range gates {
		w.Rows[pair[0]] = w.curGates[k].newLeft
		w.Rows[pair[1]] = w.curGates[k].newRight
	}
	w.gateOffset += len(gates)
	return w.startRound(w.roundIdx + 1)
}

func (w *Waksman) HandleReceive(bus.IncomingMessage) ([]engine.Action, error) {
	return nil, errors.New("waksman: unexpected direct payload")
}

func (w *Waksman) HandlePromise(engine.Implementation) ([]engine.Action, error) {
	return nil, errors.New("waksman: has no promises")
}

// GateSpecs returns the (i, j) row-index pairs of every swap gate the
// network for n rows needs, in the exact order Waksman.Bits/Triples must be
// supplied in. n must be a power of two, n >= 2.
func GateSpecs(n int) [][2]int {
	wires := make([]int, n)
	for i := range wires {
		wires[i] = i
	}
	var out [][2]int
	for _, round := range waksmanRounds(wires) {
		out = append(out, round...)
	}
	return out
}

// GateCount reports how many swap gates (and so how many WaksmanBits and
// per-gate BeaverTriple sets) a network over n rows requires.
func GateCount(n int) int { return len(GateSpecs(n)) }

// waksmanRounds builds the recursive Waksman network topology over the
// given (already-permuted-to-canonical-order) wire indices, returning its
// switch columns in execution order. Within one returned round every switch
// touches disjoint wire indices, so a caller can batch a whole round into
// one MPC round trip.
func waksmanRounds(wires []int) [][][2]int {
	n := len(wires)
	if n <= 1 {
		return nil
	}
	if n == 2 {
		return [][][2]int{{{wires[0], wires[1]}}}
	}

	half := n / 2
	topWires := make([]int, half)
	bottomWires := make([]int, half)
	firstColumn := make([][2]int, half)
	for k := 0; k < half; k++ {
		firstColumn[k] = [2]int{wires[2*k], wires[2*k+1]}
		topWires[k] = wires[2*k]
		bottomWires[k] = wires[2*k+1]
	}

	merged := zipRounds(waksmanRounds(topWires), waksmanRounds(bottomWires))

	lastColumn := make([][2]int, 0, half-1)
	for k := 0; k < half-1; k++ {
		lastColumn = append(lastColumn, [2]int{topWires[k], bottomWires[k]})
	}
	// The (half-1)-th top/bottom pair bypasses the last column untouched —
	// the saving that turns a full Beneš network into a Waksman network.

	rounds := make([][][2]int, 0, len(merged)+2)
	rounds = append(rounds, firstColumn)
	rounds = append(rounds, merged...)
	rounds = append(rounds, lastColumn)
	return rounds
}

func zipRounds(a, b [][][2]int) [][][2]int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([][][2]int, n)
	for i := 0; i < n; i++ {
		var round [][2]int
		if i < len(a) {
			round = append(round, a[i]...)
		}
		if i < len(b) {
			round = append(round, b[i]...)
		}
		out[i] = round
	}
	return out
}

// swapGate obliviously swaps two rows' columns if its control bit share s
// is 1, leaving them in place if s is 0, via one secure multiplication per
// column: new_i = row_i + s*(row_j - row_i), new_j = row_j - s*(row_j - row_i).
type swapGate struct {
	self      identity.ID
	others    []identity.ID
	peers     *party.Set
	revealer  identity.ID
	f         *field.Field
	left      []*field.Element
	right     []*field.Element
	s         *field.Element
	triples   []dealer.BeaverTriple
	transport func(identity.ID) bus.OutgoingMessage

	muls     []*multiply.Multiply
	inner    *batch.Batch
	newLeft  []*field.Element
	newRight []*field.Element
}

func newSwapGate(self, revealer identity.ID, others []identity.ID, peers *party.Set, f *field.Field, left, right []*field.Element, s *field.Element, triples []dealer.BeaverTriple, transport func(identity.ID) bus.OutgoingMessage) *swapGate {
	return &swapGate{self: self, revealer: revealer, others: others, peers: peers, f: f, left: left, right: right, s: s, triples: triples, transport: transport}
}

func (g *swapGate) Name() string { return "waksman.swapgate" }

func (g *swapGate) Init() ([]engine.Action, error) {
	if len(g.left) != len(g.right) || len(g.left) != len(g.triples) {
		return nil, fmt.Errorf("waksman: swap gate column/triple count mismatch: %d/%d/%d", len(g.left), len(g.right), len(g.triples))
	}
	muls := make([]*multiply.Multiply, len(g.left))
	children := make([]engine.Implementation, len(g.left))
	for c := range g.left {
		diff := g.right[c].Sub(g.left[c])
		muls[c] = multiply.New(g.self, g.revealer, g.others, g.peers, g.f, g.s, diff, g.triples[c], g.transport)
		children[c] = muls[c]
	}
	g.muls = muls
	g.inner = batch.New(g.self, g.transport, children)
	return []engine.Action{engine.Invoke{Implementation: g.inner, Peers: g.peers}}, nil
}

func (g *swapGate) HandleComplete(child engine.Implementation) ([]engine.Action, error) {
	if child != engine.Implementation(g.inner) {
		return nil, errors.New("waksman: swap gate unexpected child completion")
	}
	newLeft := make([]*field.Element, len(g.left))
	newRight := make([]*field.Element, len(g.right))
	for c := range g.left {
		d := g.muls[c].Z
		newLeft[c] = g.left[c].Add(d)
		newRight[c] = g.right[c].Sub(d)
	}
	g.newLeft = newLeft
	g.newRight = newRight
	return []engine.Action{engine.Complete{}}, nil
}

func (g *swapGate) HandleReceive(bus.IncomingMessage) ([]engine.Action, error) {
	return nil, errors.New("waksman: swap gate unexpected direct payload")
}

func (g *swapGate) HandlePromise(engine.Implementation) ([]engine.Action, error) {
	return nil, errors.New("waksman: swap gate has no promises")
}
