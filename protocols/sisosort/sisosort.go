// Package sisosort implements SISOSort (spec.md §4.K): a single-input,
// single-output oblivious sort that pads its rows to a power of two with
// sentinel rows, runs them through protocols/waksman to hide the
// correspondence between input position and sorted position, then sorts the
// shuffled rows with protocols/quicksort, grounded on
// original_source/src/main/cpp/mpc/SISOSort.t.h.
//
// Padding rows carry the maximum representable key (p-1 in every key
// column), so they sort to the tail regardless of the real rows' values and
// can simply be dropped after sorting — callers must ensure real key
// columns never legitimately take that sentinel value, since a real row
// indistinguishable from the sentinel would no longer be guaranteed to sort
// last. Shuffling happens before sorting, not after: it is quicksort's
// comparisons (which reveal partition structure as they run) that need their
// relationship to input order hidden, so the shuffle has to come first.
package sisosort

import (
	"errors"
	"fmt"

	"github.com/fortissimo/mpc/internal/engine"
	"github.com/fortissimo/mpc/pkg/bus"
	"github.com/fortissimo/mpc/pkg/dealer"
	"github.com/fortissimo/mpc/pkg/field"
	"github.com/fortissimo/mpc/pkg/identity"
	"github.com/fortissimo/mpc/pkg/party"
	"github.com/fortissimo/mpc/protocols/quicksort"
	"github.com/fortissimo/mpc/protocols/waksman"
)

// PaddedSize returns the power-of-two row count SISOSort will actually
// shuffle and sort n rows as.
func PaddedSize(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p *= 2
	}
	return p
}

// GateCount reports how many Waksman swap gates sorting n rows requires,
// for sizing WaksmanBits/WaksmanTriples.
func GateCount(n int) int { return waksman.GateCount(PaddedSize(n)) }

// RequiredComparisons reports a safe upper bound on the row comparisons
// sorting n rows might perform, for sizing SortPool.
func RequiredComparisons(n int) int { return quicksort.RequiredComparisons(PaddedSize(n)) }

// SISOSort sorts Rows (ascending, lexicographic over the first KeyCols
// columns) without revealing the permutation relating input and output
// order.
type SISOSort struct {
	Self           identity.ID
	Others         []identity.ID
	PeerSet        *party.Set
	Revealer       identity.ID
	F              *field.Field
	Rows           [][]*field.Element
	KeyCols        int
	WaksmanBits    []dealer.WaksmanBits
	WaksmanTriples [][]dealer.BeaverTriple
	SortPool       []quicksort.ComparisonMaterial
	Transport      func(identity.ID) bus.OutgoingMessage

	Result [][]*field.Element

	padded [][]*field.Element
	wak    *waksman.Waksman
	qs     *quicksort.Quicksort
}

func New(self, revealer identity.ID, others []identity.ID, peers *party.Set, f *field.Field, rows [][]*field.Element, keyCols int, waksmanBits []dealer.WaksmanBits, waksmanTriples [][]dealer.BeaverTriple, sortPool []quicksort.ComparisonMaterial, transport func(identity.ID) bus.OutgoingMessage) *SISOSort {
	return &SISOSort{Self: self, Others: others, PeerSet: peers, Revealer: revealer, F: f, Rows: rows, KeyCols: keyCols, WaksmanBits: waksmanBits, WaksmanTriples: waksmanTriples, SortPool: sortPool, Transport: transport}
}

func (s *SISOSort) Name() string { return "sisosort" }

func (s *SISOSort) Init() ([]engine.Action, error) {
	n := len(s.Rows)
	if n == 0 {
		s.Result = s.Rows
		return []engine.Action{engine.Complete{}}, nil
	}
	width := len(s.Rows[0])
	if s.KeyCols <= 0 || s.KeyCols > width {
		return nil, fmt.Errorf("sisosort: KeyCols %d out of range for row width %d", s.KeyCols, width)
	}
	paddedN := PaddedSize(n)
	padded := make([][]*field.Element, paddedN)
	copy(padded, s.Rows)
	maxKey := s.F.Zero().Sub(s.F.One())
	for i := n; i < paddedN; i++ {
		row := make([]*field.Element, width)
		for c := 0; c < s.KeyCols; c++ {
			row[c] = maxKey
		}
		for c := s.KeyCols; c < width; c++ {
			row[c] = s.F.Zero()
		}
		padded[i] = row
	}
	s.padded = padded

	s.wak = waksman.New(s.Self, s.Revealer, s.Others, s.PeerSet, s.F, s.padded, s.WaksmanBits, s.WaksmanTriples, s.Transport)
	return []engine.Action{engine.Invoke{Implementation: s.wak, Peers: s.PeerSet}}, nil
}

func (s *SISOSort) HandleComplete(child engine.Implementation) ([]engine.Action, error) {
	switch {
	case s.qs == nil && child == engine.Implementation(s.wak):
		s.qs = quicksort.New(s.Self, s.Revealer, s.Others, s.PeerSet, s.F, s.wak.Result, s.KeyCols, s.SortPool, s.Transport)
		return []engine.Action{engine.Invoke{Implementation: s.qs, Peers: s.PeerSet}}, nil
	case s.qs != nil && child == engine.Implementation(s.qs):
		s.Result = s.qs.Sorted[:len(s.Rows)]
		return []engine.Action{engine.Complete{}}, nil
	default:
		return nil, errors.New("sisosort: unexpected child completion")
	}
}

func (s *SISOSort) HandleReceive(bus.IncomingMessage) ([]engine.Action, error) {
	return nil, errors.New("sisosort: unexpected direct payload")
}

func (s *SISOSort) HandlePromise(engine.Implementation) ([]engine.Action, error) {
	return nil, errors.New("sisosort: has no promises")
}
