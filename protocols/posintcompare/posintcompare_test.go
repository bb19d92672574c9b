package posintcompare_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortissimo/mpc/internal/engine"
	"github.com/fortissimo/mpc/pkg/bus"
	"github.com/fortissimo/mpc/pkg/bus/memory"
	"github.com/fortissimo/mpc/pkg/dealer"
	"github.com/fortissimo/mpc/pkg/field"
	"github.com/fortissimo/mpc/pkg/harness"
	"github.com/fortissimo/mpc/pkg/identity"
	"github.com/fortissimo/mpc/pkg/party"
	"github.com/fortissimo/mpc/protocols/posintcompare"
)

func othersOf(all []identity.ID, self identity.ID) []identity.ID {
	var out []identity.ID
	for _, id := range all {
		if !id.Equal(self) {
			out = append(out, id)
		}
	}
	return out
}

func reconstruct(f *field.Field, shares []*field.Element) *field.Element {
	sum := f.Zero()
	for _, s := range shares {
		sum = sum.Add(s)
	}
	return sum
}

// runPosIntCompare mirrors protocols/compare's scenario but drives the
// embedded-wrapper constructor, confirming PosIntCompare.Less is reachable
// straight off the embedded *compare.Compare.
func runPosIntCompare(t *testing.T, x, y uint64) bool {
	t.Helper()
	const numBit = 7
	f := field.New(big.NewInt(97).Bytes())
	ids := []identity.ID{identity.Generate(), identity.Generate(), identity.Generate()}
	revealer := ids[0]
	peers := party.New(ids...)

	aux, err := (dealer.DecomposedBitSetGenerator{F: f, Small: f, NumBit: numBit}).Generate(ids, 1)
	require.NoError(t, err)
	series, err := (dealer.ExponentSeriesGenerator{F: f, Degree: 1}).Generate(ids, numBit-1)
	require.NoError(t, err)
	triples, err := (dealer.BeaverTripleGenerator{F: f}).Generate(ids, numBit-1)
	require.NoError(t, err)
	xShares, err := f.ShareAdditive(f.FromUint64(x), len(ids))
	require.NoError(t, err)
	yShares, err := f.ShareAdditive(f.FromUint64(y), len(ids))
	require.NoError(t, err)

	net := memory.NewNetwork(ids...)
	impls := make([]*posintcompare.PosIntCompare, len(ids))
	var parties []harness.Party
	initial := make(map[identity.ID][]bus.OutgoingMessage)
	for i, id := range ids {
		impls[i] = posintcompare.New(id, revealer, othersOf(ids, id), peers, f, xShares[i], yShares[i], aux[id][0], series[id], triples[id], memory.NewOutgoing)
		eng := engine.New(id, memory.NewOutgoing)
		out, err := eng.Init(impls[i], peers)
		require.NoError(t, err)
		initial[id] = out
		parties = append(parties, harness.Party{ID: id, Engine: eng})
	}

	require.NoError(t, harness.Run(net, parties, initial))
	assert.True(t, harness.AllClosed(parties))

	shares := make([]*field.Element, len(ids))
	for i := range ids {
		shares[i] = impls[i].Less
	}
	return !reconstruct(f, shares).IsZero()
}

func TestThreePartyPosIntCompareLess(t *testing.T) {
	assert.True(t, runPosIntCompare(t, 7, 11))
}

func TestThreePartyPosIntCompareNotLess(t *testing.T) {
	assert.False(t, runPosIntCompare(t, 11, 7))
	assert.False(t, runPosIntCompare(t, 7, 7))
}
