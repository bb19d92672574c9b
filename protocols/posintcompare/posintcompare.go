// Package posintcompare implements PosIntCompare (spec.md §4.G): a thin
// wrapper around protocols/compare for inputs known to lie in [0, p/2),
// where the bare mod-p Compare construction is safe, grounded on
// original_source/src/main/cpp/mpc/PosIntCompare.t.h.
package posintcompare

import (
	"github.com/fortissimo/mpc/internal/engine"
	"github.com/fortissimo/mpc/pkg/bus"
	"github.com/fortissimo/mpc/pkg/dealer"
	"github.com/fortissimo/mpc/pkg/field"
	"github.com/fortissimo/mpc/pkg/identity"
	"github.com/fortissimo/mpc/pkg/party"
	"github.com/fortissimo/mpc/protocols/compare"
)

// PosIntCompare computes a share of (X < Y) for X, Y known to lie in
// [0, p/2).
type PosIntCompare struct {
	*compare.Compare
}

// New builds a PosIntCompare. Callers are responsible for ensuring X and Y
// are within [0, p/2); this package does not itself range-check shares,
// since doing so would require revealing them.
func New(self, revealer identity.ID, others []identity.ID, peers *party.Set, f *field.Field, x, y *field.Element, aux dealer.DecomposedBitSet, series []dealer.ExponentSeries, triples []dealer.BeaverTriple, transport func(identity.ID) bus.OutgoingMessage) *PosIntCompare {
	return &PosIntCompare{Compare: compare.New(self, revealer, others, peers, f, x, y, aux, series, triples, transport)}
}

func (p *PosIntCompare) Name() string { return "posintcompare" }

var _ engine.Implementation = (*PosIntCompare)(nil)
