// Package quicksort implements an oblivious Hoare-partition quicksort over
// secret-shared rows (spec.md §4.K), grounded on
// original_source/src/main/cpp/mpc/Quicksort.t.h.
//
// Each partition step picks the range's first row as pivot, compares every
// other row in the range against it via protocols/lexcompare (batched into
// one round across the whole range), reveals the resulting less-than bits
// (also batched), and then partitions the range in the clear: once the
// comparison OUTCOMES are public, moving the still-secret-shared row data
// into its new slots needs no further cryptography, only a local stable
// partition by the revealed bits. The two resulting sub-ranges are pushed
// onto an explicit work stack, so the whole sort runs as an iterative loop
// rather than recursion — matching the engine's flat Implementation model,
// which has no call stack of its own to recurse on.
//
// Row comparisons are data-dependent in count (a range of size m needs m-1
// comparisons, and which sub-ranges result depends on the revealed bits), so
// the randomness a full sort will consume can't be sized exactly ahead of
// time the way protocols/waksman's fixed gate count can. Quicksort instead
// draws from a pre-dealt Pool, consumed front-to-back, and fails if the pool
// runs out; RequiredComparisons gives callers a safe (worst-case, not tight)
// sizing bound.
package quicksort

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
	"github.com/fortissimo/mpc/protocols/lexcompare"
	"github.com/fortissimo/mpc/protocols/reveal"
)

// RequiredComparisons returns a safe upper bound on the number of pairwise
// row comparisons a quicksort over n rows might perform (the worst-case
// already-sorted-or-reverse-sorted input), for sizing a Pool.
func RequiredComparisons(n int) int {
	if n < 2 {
		return 0
	}
	return n * (n - 1) / 2
}

type rng struct{ lo, hi int }

// Quicksort sorts Rows in place (ascending by the lexicographic order of
// their first KeyCols columns).
type Quicksort struct {
	Self      identity.ID
	Others    []identity.ID
	PeerSet   *party.Set
	Revealer  identity.ID
	F         *field.Field
	Rows        [][]*field.Element
	KeyCols     int
	PoolEntries []ComparisonMaterial
	Transport   func(identity.ID) bus.OutgoingMessage

	Sorted [][]*field.Element

	stack   []rng
	poolIdx int

	lo, hi   int
	phase    int // 0 = comparing, 1 = revealing
	lexes    []*lexcompare.LexCompare
	revealed []*reveal.Reveal
	curBatch *batch.Batch
}

// ComparisonMaterial is the randomness one row-vs-pivot comparison consumes.
type ComparisonMaterial struct {
	Columns     []lexcompare.ColumnMaterial
	FoldTriples []dealer.BeaverTriple
}

func New(self, revealer identity.ID, others []identity.ID, peers *party.Set, f *field.Field, rows [][]*field.Element, keyCols int, pool []ComparisonMaterial, transport func(identity.ID) bus.OutgoingMessage) *Quicksort {
	return &Quicksort{Self: self, Others: others, PeerSet: peers, Revealer: revealer, F: f, Rows: rows, KeyCols: keyCols, PoolEntries: pool, Transport: transport}
}

func (q *Quicksort) Name() string { return "quicksort" }

func (q *Quicksort) Init() ([]engine.Action, error) {
	q.stack = []rng{{0, len(q.Rows)}}
	return q.startNextRange()
}

func (q *Quicksort) startNextRange() ([]engine.Action, error) {
	for len(q.stack) > 0 {
		r := q.stack[len(q.stack)-1]
		q.stack = q.stack[:len(q.stack)-1]
		if r.hi-r.lo > 1 {
			return q.startPartition(r.lo, r.hi)
		}
	}
	q.Sorted = q.Rows
	return []engine.Action{engine.Complete{}}, nil
}

func (q *Quicksort) startPartition(lo, hi int) ([]engine.Action, error) {
	q.lo, q.hi = lo, hi
	pivot := q.Rows[lo]
	m := hi - lo - 1
	lexes := make([]*lexcompare.LexCompare, m)
	children := make([]engine.Implementation, m)
	for i := 0; i < m; i++ {
		if q.poolIdx >= len(q.PoolEntries) {
			return nil, fmt.Errorf("quicksort: comparison pool exhausted after %d comparisons", q.poolIdx)
		}
		mat := q.PoolEntries[q.poolIdx]
		q.poolIdx++
		row := q.Rows[lo+1+i]
		lc := lexcompare.New(q.Self, q.Revealer, q.Others, q.PeerSet, q.F, row[:q.KeyCols], pivot[:q.KeyCols], mat.Columns, mat.FoldTriples, q.Transport)
		lexes[i] = lc
		children[i] = lc
	}
	q.lexes = lexes
	q.phase = 0
	q.curBatch = batch.New(q.Self, q.Transport, children)
	return []engine.Action{engine.Invoke{Implementation: q.curBatch, Peers: q.PeerSet}}, nil
}

func (q *Quicksort) HandleComplete(child engine.Implementation) ([]engine.Action, error) {
	if child != engine.Implementation(q.curBatch) {
		return nil, errors.New("quicksort: unexpected child completion")
	}
	switch q.phase {
	case 0:
		revealed := make([]*reveal.Reveal, len(q.lexes))
		children := make([]engine.Implementation, len(q.lexes))
		for i, lc := range q.lexes {
			rv := reveal.New(q.Self, q.Revealer, q.Others, q.F, lc.Less, q.Transport)
			revealed[i] = rv
			children[i] = rv
		}
		q.revealed = revealed
		q.phase = 1
		q.curBatch = batch.New(q.Self, q.Transport, children)
		return []engine.Action{engine.Invoke{Implementation: q.curBatch, Peers: q.PeerSet}}, nil
	case 1:
		q.partition()
		return q.startNextRange()
	default:
		return nil, fmt.Errorf("quicksort: unknown phase %d", q.phase)
	}
}

// partition stably reorders Rows[lo:hi] using the revealed less-than bits,
// then pushes the two resulting sub-ranges (excluding the now-fixed pivot)
// back onto the work stack.
func (q *Quicksort) partition() {
	pivot := q.Rows[q.lo]
	low := make([][]*field.Element, 0, len(q.revealed))
	high := make([][]*field.Element, 0, len(q.revealed))
	for i, rv := range q.revealed {
		row := q.Rows[q.lo+1+i]
		if !rv.Opened.IsZero() {
			low = append(low, row)
		} else {
			high = append(high, row)
		}
	}
	out := q.Rows[q.lo:q.hi]
	copy(out, low)
	out[len(low)] = pivot
	copy(out[len(low)+1:], high)

	pivotPos := q.lo + len(low)
	if pivotPos-q.lo > 1 {
		q.stack = append(q.stack, rng{q.lo, pivotPos})
	}
	if q.hi-(pivotPos+1) > 1 {
		q.stack = append(q.stack, rng{pivotPos + 1, q.hi})
	}
}

func (q *Quicksort) HandleReceive(bus.IncomingMessage) ([]engine.Action, error) {
	return nil, errors.New("quicksort: unexpected direct payload")
}

func (q *Quicksort) HandlePromise(engine.Implementation) ([]engine.Action, error) {
	return nil, errors.New("quicksort: has no promises")
}
