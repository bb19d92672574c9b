// Package matrix implements a batched secret-shared matrix multiply
// (spec.md §5's supplemented module list, grounded on
// original_source/.../mpc/Matrix.t.h): it shares all of protocols/multiply's
// dealer/patron machinery but exercises protocols/batch at a different
// shape, batching every scalar product the multiplication needs into one
// batched invocation, so the whole product costs one Multiply's two
// sequential reveals regardless of matrix size.
//
// C = A*B for an m×k A and a k×n B needs one secure multiplication per
// (i, j, l) triple — m*k*n in total — since every term A[i][l]*B[l][j] has
// both operands secret; summing those terms into C[i][j] is a purely local
// addition once the products are known, no further rounds needed.
package matrix

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

// RequiredTriples reports how many Beaver triples multiplying an m×k matrix
// by a k×n matrix consumes.
func RequiredTriples(m, k, n int) int { return m * k * n }

// Multiply computes C = A*B over secret-shared matrices.
type Multiply struct {
	Self      identity.ID
	Others    []identity.ID
	PeerSet   *party.Set
	Revealer  identity.ID
	F         *field.Field
	A         [][]*field.Element // m x k
	B         [][]*field.Element // k x n
	Triples   []dealer.BeaverTriple // flat, consumed in (i, j, l) order, m*k*n entries
	Transport func(identity.ID) bus.OutgoingMessage

	C [][]*field.Element // m x n

	m, k, n int
	muls    [][][]*multiply.Multiply // [i][j][l]
	b       *batch.Batch
}

func New(self, revealer identity.ID, others []identity.ID, peers *party.Set, f *field.Field, a, b [][]*field.Element, triples []dealer.BeaverTriple, transport func(identity.ID) bus.OutgoingMessage) *Multiply {
	return &Multiply{Self: self, Others: others, PeerSet: peers, Revealer: revealer, F: f, A: a, B: b, Triples: triples, Transport: transport}
}

func (mm *Multiply) Name() string { return "matrix.multiply" }

func (mm *Multiply) Init() ([]engine.Action, error) {
	m := len(mm.A)
	if m == 0 || len(mm.B) == 0 {
		return nil, errors.New("matrix: A and B must be non-empty")
	}
	k := len(mm.B)
	n := len(mm.B[0])
	for i, row := range mm.A {
		if len(row) != k {
			return nil, fmt.Errorf("matrix: A row %d has %d columns, want %d to match B's rows", i, len(row), k)
		}
	}
	for l, row := range mm.B {
		if len(row) != n {
			return nil, fmt.Errorf("matrix: B row %d has %d columns, want %d", l, len(row), n)
		}
	}
	need := m * k * n
	if len(mm.Triples) != need {
		return nil, fmt.Errorf("matrix: need %d triples for a %dx%d by %dx%d multiply, got %d", need, m, k, k, n, len(mm.Triples))
	}
	mm.m, mm.k, mm.n = m, k, n

	muls := make([][][]*multiply.Multiply, m)
	children := make([]engine.Implementation, 0, need)
	idx := 0
	for i := 0; i < m; i++ {
		muls[i] = make([][]*multiply.Multiply, n)
		for j := 0; j < n; j++ {
			muls[i][j] = make([]*multiply.Multiply, k)
			for l := 0; l < k; l++ {
				term := multiply.New(mm.Self, mm.Revealer, mm.Others, mm.PeerSet, mm.F, mm.A[i][l], mm.B[l][j], mm.Triples[idx], mm.Transport)
				idx++
				muls[i][j][l] = term
				children = append(children, term)
			}
		}
	}
	mm.muls = muls
	mm.b = batch.New(mm.Self, mm.Transport, children)
	return []engine.Action{engine.Invoke{Implementation: mm.b, Peers: mm.PeerSet}}, nil
}

func (mm *Multiply) HandleComplete(child engine.Implementation) ([]engine.Action, error) {
	if child != engine.Implementation(mm.b) {
		return nil, errors.New("matrix: unexpected child completion")
	}
	c := make([][]*field.Element, mm.m)
	for i := 0; i < mm.m; i++ {
		c[i] = make([]*field.Element, mm.n)
		for j := 0; j < mm.n; j++ {
			sum := mm.F.Zero()
			for l := 0; l < mm.k; l++ {
				sum = sum.Add(mm.muls[i][j][l].Z)
			}
			c[i][j] = sum
		}
	}
	mm.C = c
	return []engine.Action{engine.Complete{}}, nil
}

func (mm *Multiply) HandleReceive(bus.IncomingMessage) ([]engine.Action, error) {
	return nil, errors.New("matrix: unexpected direct payload")
}

func (mm *Multiply) HandlePromise(engine.Implementation) ([]engine.Action, error) {
	return nil, errors.New("matrix: has no promises")
}
