package lexcompare_test

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
	"github.com/fortissimo/mpc/protocols/lexcompare"
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

func buildColumns(t *testing.T, f *field.Field, ids []identity.ID, numBit, keyCols int) map[identity.ID][]lexcompare.ColumnMaterial {
	t.Helper()
	perAux := numBit - 1
	aux, err := (dealer.DecomposedBitSetGenerator{F: f, Small: f, NumBit: numBit}).Generate(ids, keyCols*2)
	require.NoError(t, err)
	series, err := (dealer.ExponentSeriesGenerator{F: f, Degree: 1}).Generate(ids, keyCols*2*perAux)
	require.NoError(t, err)
	triples, err := (dealer.BeaverTripleGenerator{F: f}).Generate(ids, keyCols*2*perAux)
	require.NoError(t, err)

	out := make(map[identity.ID][]lexcompare.ColumnMaterial, len(ids))
	for _, id := range ids {
		cols := make([]lexcompare.ColumnMaterial, keyCols)
		auxIdx, si := 0, 0
		for c := 0; c < keyCols; c++ {
			ltAux := aux[id][auxIdx]
			auxIdx++
			gtAux := aux[id][auxIdx]
			auxIdx++
			ltSeries := series[id][si : si+perAux]
			ltTriples := triples[id][si : si+perAux]
			si += perAux
			gtSeries := series[id][si : si+perAux]
			gtTriples := triples[id][si : si+perAux]
			si += perAux
			cols[c] = lexcompare.ColumnMaterial{
				LTAux: ltAux, LTSeries: ltSeries, LTTriples: ltTriples,
				GTAux: gtAux, GTSeries: gtSeries, GTTriples: gtTriples,
			}
		}
		out[id] = cols
	}
	return out
}

func runLexCompare(t *testing.T, a, b []uint64) bool {
	t.Helper()
	const numBit = 7
	keyCols := len(a)
	f := field.New(big.NewInt(97).Bytes())
	ids := []identity.ID{identity.Generate(), identity.Generate(), identity.Generate()}
	revealer := ids[0]
	peers := party.New(ids...)

	columns := buildColumns(t, f, ids, numBit, keyCols)
	foldTriples, err := (dealer.BeaverTripleGenerator{F: f}).Generate(ids, keyCols-1)
	require.NoError(t, err)

	shareRow := func(vals []uint64) [][]*field.Element {
		out := make([][]*field.Element, len(vals))
		for i, v := range vals {
			s, err := f.ShareAdditive(f.FromUint64(v), len(ids))
			require.NoError(t, err)
			out[i] = s
		}
		return out
	}
	aShares := shareRow(a)
	bShares := shareRow(b)

	net := memory.NewNetwork(ids...)
	impls := make([]*lexcompare.LexCompare, len(ids))
	var parties []harness.Party
	initial := make(map[identity.ID][]bus.OutgoingMessage)
	for i, id := range ids {
		myA := make([]*field.Element, keyCols)
		myB := make([]*field.Element, keyCols)
		for c := 0; c < keyCols; c++ {
			myA[c] = aShares[c][i]
			myB[c] = bShares[c][i]
		}
		impls[i] = lexcompare.New(id, revealer, othersOf(ids, id), peers, f, myA, myB, columns[id], foldTriples[id], memory.NewOutgoing)
		eng := engine.New(id, memory.NewOutgoing)
		out, err := eng.Init(impls[i], peers)
		require.NoError(t, err)
		initial[id] = out
		parties = append(parties, harness.Party{ID: id, Engine: eng})
	}

	require.NoError(t, harness.Run(net, parties, initial))
	assert.True(t, harness.AllClosed(parties))

	sum := f.Zero()
	for _, impl := range impls {
		sum = sum.Add(impl.Less)
	}
	return !sum.IsZero()
}

// TestThreePartyLexCompare covers a 3-column row comparison where the first
// two columns tie and the outcome is decided by the third.
func TestThreePartyLexCompare(t *testing.T) {
	assert.True(t, runLexCompare(t, []uint64{5, 9, 1}, []uint64{5, 9, 2}))
	assert.False(t, runLexCompare(t, []uint64{5, 9, 2}, []uint64{5, 9, 1}))
	assert.False(t, runLexCompare(t, []uint64{5, 9, 2}, []uint64{5, 9, 2}))
}

// TestThreePartyLexCompareFirstColumnDecides covers the case where the
// leading column alone decides the order.
func TestThreePartyLexCompareFirstColumnDecides(t *testing.T) {
	assert.True(t, runLexCompare(t, []uint64{3, 99, 99}, []uint64{4, 0, 0}))
	assert.False(t, runLexCompare(t, []uint64{4, 0, 0}, []uint64{3, 99, 99}))
}
