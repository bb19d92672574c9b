// Package lexcompare extends protocols/compare to multi-column rows
// (spec.md §4.K's "lexicographic AND-reduction" over SISOSort's composite
// sort keys), grounded on original_source/src/main/cpp/mpc/Quicksort.t.h's
// row-comparison helper.
//
// Row A < Row B iff A[0] < B[0], or A[0] == B[0] and the remaining columns
// recursively compare less. Each column needs both directions of
// protocols/compare (A<B and B<A) to derive its equality bit locally
// (1 - lt - gt); combining a column's equality bit with the lexicographic
// result of the columns after it needs one more secure multiplication per
// column boundary, since both operands are secret. All 2*len(Columns)
// column comparisons share the same peer set and are batched into one round
// via protocols/batch; the K-1 combining multiplications are inherently
// sequential (each depends on the previous column's folded result) and run
// one per round, innermost column first.
package lexcompare

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
	"github.com/fortissimo/mpc/protocols/compare"
	"github.com/fortissimo/mpc/protocols/multiply"
)

// ColumnMaterial is the dealt randomness one column's pair of Compare calls
// (A<B and B<A) consumes.
type ColumnMaterial struct {
	LTAux     dealer.DecomposedBitSet
	LTSeries  []dealer.ExponentSeries
	LTTriples []dealer.BeaverTriple
	GTAux     dealer.DecomposedBitSet
	GTSeries  []dealer.ExponentSeries
	GTTriples []dealer.BeaverTriple
}

// LexCompare computes a share of (A < B) comparing A and B lexicographically
// over their shared columns (A[i] and B[i] must have the same length as
// Columns).
type LexCompare struct {
	Self        identity.ID
	Others      []identity.ID
	PeerSet     *party.Set
	Revealer    identity.ID
	F           *field.Field
	A, B        []*field.Element
	Columns     []ColumnMaterial  // len(A) entries
	FoldTriples []dealer.BeaverTriple // len(A)-1 entries
	Transport   func(identity.ID) bus.OutgoingMessage

	Less *field.Element

	ltCmp, gtCmp []*compare.Compare
	colBatch     *batch.Batch
	acc          *field.Element
	foldIdx      int // column index currently being folded in, counting down
	foldStep     int // FoldTriples cursor, counting up
	foldCur      *multiply.Multiply
}

func New(self, revealer identity.ID, others []identity.ID, peers *party.Set, f *field.Field, a, b []*field.Element, columns []ColumnMaterial, foldTriples []dealer.BeaverTriple, transport func(identity.ID) bus.OutgoingMessage) *LexCompare {
	return &LexCompare{Self: self, Others: others, PeerSet: peers, Revealer: revealer, F: f, A: a, B: b, Columns: columns, FoldTriples: foldTriples, Transport: transport}
}

func (l *LexCompare) Name() string { return "lexcompare" }

func (l *LexCompare) Init() ([]engine.Action, error) {
	k := len(l.Columns)
	if k == 0 || len(l.A) != k || len(l.B) != k {
		return nil, fmt.Errorf("lexcompare: need matching non-empty column counts, got A=%d B=%d Columns=%d", len(l.A), len(l.B), k)
	}
	if len(l.FoldTriples) != k-1 {
		return nil, fmt.Errorf("lexcompare: need %d fold triples, got %d", k-1, len(l.FoldTriples))
	}
	l.ltCmp = make([]*compare.Compare, k)
	l.gtCmp = make([]*compare.Compare, k)
	children := make([]engine.Implementation, 0, 2*k)
	for c := 0; c < k; c++ {
		l.ltCmp[c] = compare.New(l.Self, l.Revealer, l.Others, l.PeerSet, l.F, l.A[c], l.B[c], l.Columns[c].LTAux, l.Columns[c].LTSeries, l.Columns[c].LTTriples, l.Transport)
		l.gtCmp[c] = compare.New(l.Self, l.Revealer, l.Others, l.PeerSet, l.F, l.B[c], l.A[c], l.Columns[c].GTAux, l.Columns[c].GTSeries, l.Columns[c].GTTriples, l.Transport)
		children = append(children, l.ltCmp[c], l.gtCmp[c])
	}
	l.colBatch = batch.New(l.Self, l.Transport, children)
	return []engine.Action{engine.Invoke{Implementation: l.colBatch, Peers: l.PeerSet}}, nil
}

func (l *LexCompare) HandleComplete(child engine.Implementation) ([]engine.Action, error) {
	switch {
	case l.acc == nil && child == engine.Implementation(l.colBatch):
		k := len(l.Columns)
		l.acc = l.ltCmp[k-1].Less
		if k == 1 {
			l.Less = l.acc
			return []engine.Action{engine.Complete{}}, nil
		}
		l.foldIdx = k - 2
		l.foldStep = 0
		return l.startFold()
	case l.foldCur != nil && child == engine.Implementation(l.foldCur):
		l.acc = l.ltCmp[l.foldIdx].Less.Add(l.foldCur.Z)
		if l.foldIdx == 0 {
			l.Less = l.acc
			return []engine.Action{engine.Complete{}}, nil
		}
		l.foldIdx--
		l.foldStep++
		return l.startFold()
	default:
		return nil, errors.New("lexcompare: unexpected child completion")
	}
}

func (l *LexCompare) startFold() ([]engine.Action, error) {
	eq := l.F.One().Sub(l.ltCmp[l.foldIdx].Less).Sub(l.gtCmp[l.foldIdx].Less)
	l.foldCur = multiply.New(l.Self, l.Revealer, l.Others, l.PeerSet, l.F, eq, l.acc, l.FoldTriples[l.foldStep], l.Transport)
	return []engine.Action{engine.Invoke{Implementation: l.foldCur, Peers: l.PeerSet}}, nil
}

func (l *LexCompare) HandleReceive(bus.IncomingMessage) ([]engine.Action, error) {
	return nil, errors.New("lexcompare: unexpected direct payload")
}

func (l *LexCompare) HandlePromise(engine.Implementation) ([]engine.Action, error) {
	return nil, errors.New("lexcompare: has no promises")
}
