package sisosort_test

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
	"github.com/fortissimo/mpc/protocols/quicksort"
	"github.com/fortissimo/mpc/protocols/sisosort"
	"github.com/fortissimo/mpc/protocols/waksman"
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

func buildComparisonPool(t *testing.T, f *field.Field, ids []identity.ID, numBit, keyCols, count int) map[identity.ID][]quicksort.ComparisonMaterial {
	t.Helper()
	perAux := numBit - 1
	totalAux := count * keyCols * 2
	totalSeries := totalAux * perAux
	totalFold := count * (keyCols - 1)
	if totalFold < 0 {
		totalFold = 0
	}

	aux, err := (dealer.DecomposedBitSetGenerator{F: f, Small: f, NumBit: numBit}).Generate(ids, totalAux)
	require.NoError(t, err)
	series, err := (dealer.ExponentSeriesGenerator{F: f, Degree: 1}).Generate(ids, totalSeries)
	require.NoError(t, err)
	triples, err := (dealer.BeaverTripleGenerator{F: f}).Generate(ids, totalSeries)
	require.NoError(t, err)
	fold, err := (dealer.BeaverTripleGenerator{F: f}).Generate(ids, totalFold)
	require.NoError(t, err)

	out := make(map[identity.ID][]quicksort.ComparisonMaterial, len(ids))
	for _, id := range ids {
		a, s, tr, fl := aux[id], series[id], triples[id], fold[id]
		auxIdx, si, fi := 0, 0, 0
		mats := make([]quicksort.ComparisonMaterial, count)
		for c := 0; c < count; c++ {
			columns := make([]lexcompare.ColumnMaterial, keyCols)
			for col := 0; col < keyCols; col++ {
				ltAux := a[auxIdx]
				auxIdx++
				gtAux := a[auxIdx]
				auxIdx++
				ltSeries := s[si : si+perAux]
				ltTriples := tr[si : si+perAux]
				si += perAux
				gtSeries := s[si : si+perAux]
				gtTriples := tr[si : si+perAux]
				si += perAux
				columns[col] = lexcompare.ColumnMaterial{
					LTAux: ltAux, LTSeries: ltSeries, LTTriples: ltTriples,
					GTAux: gtAux, GTSeries: gtSeries, GTTriples: gtTriples,
				}
			}
			var foldTriples []dealer.BeaverTriple
			if keyCols > 1 {
				foldTriples = fl[fi : fi+keyCols-1]
				fi += keyCols - 1
			}
			mats[c] = quicksort.ComparisonMaterial{Columns: columns, FoldTriples: foldTriples}
		}
		out[id] = mats
	}
	return out
}

func buildWaksmanMaterial(t *testing.T, f *field.Field, ids []identity.ID, gateCount, width int) (map[identity.ID][]dealer.WaksmanBits, map[identity.ID][][]dealer.BeaverTriple) {
	t.Helper()
	bits, err := (dealer.WaksmanBitsGenerator{Big: f, Key: f}).Generate(ids, gateCount)
	require.NoError(t, err)
	flat, err := (dealer.BeaverTripleGenerator{F: f}).Generate(ids, gateCount*width)
	require.NoError(t, err)

	triples := make(map[identity.ID][][]dealer.BeaverTriple, len(ids))
	for _, id := range ids {
		reshaped := make([][]dealer.BeaverTriple, gateCount)
		for g := 0; g < gateCount; g++ {
			reshaped[g] = flat[id][g*width : (g+1)*width]
		}
		triples[id] = reshaped
	}
	return bits, triples
}

// TestFourPartySISOSort covers spec.md §8's 4-party SISOSort scenario: 25
// two-column rows (column 0 the sort key), sorted ascending without
// revealing the permutation relating input and output order.
func TestFourPartySISOSort(t *testing.T) {
	const numBit = 7
	f := field.New(big.NewInt(97).Bytes())
	ids := []identity.ID{identity.Generate(), identity.Generate(), identity.Generate(), identity.Generate()}
	revealer := ids[0]
	peers := party.New(ids...)

	n := 25
	width := 2
	rows := make([][]uint64, n)
	key := uint64(17)
	for r := 0; r < n; r++ {
		rows[r] = []uint64{key % 89, uint64(r)}
		key = key*13 + 7
	}
	paddedN := sisosort.PaddedSize(n)
	gateCount := waksman.GateCount(paddedN)

	waksmanBits, waksmanTriples := buildWaksmanMaterial(t, f, ids, gateCount, width)
	sortPool := buildComparisonPool(t, f, ids, numBit, 1, sisosort.RequiredComparisons(n))

	rowShares := make([][][]*field.Element, n)
	for r := 0; r < n; r++ {
		rowShares[r] = make([][]*field.Element, width)
		for c := 0; c < width; c++ {
			s, err := f.ShareAdditive(f.FromUint64(rows[r][c]), len(ids))
			require.NoError(t, err)
			rowShares[r][c] = s
		}
	}

	net := memory.NewNetwork(ids...)
	impls := make([]*sisosort.SISOSort, len(ids))
	var parties []harness.Party
	initial := make(map[identity.ID][]bus.OutgoingMessage)
	for i, id := range ids {
		myRows := make([][]*field.Element, n)
		for r := 0; r < n; r++ {
			myRows[r] = make([]*field.Element, width)
			for c := 0; c < width; c++ {
				myRows[r][c] = rowShares[r][c][i]
			}
		}
		impls[i] = sisosort.New(id, revealer, othersOf(ids, id), peers, f, myRows, 1, waksmanBits[id], waksmanTriples[id], sortPool[id], memory.NewOutgoing)
		eng := engine.New(id, memory.NewOutgoing)
		out, err := eng.Init(impls[i], peers)
		require.NoError(t, err)
		initial[id] = out
		parties = append(parties, harness.Party{ID: id, Engine: eng})
	}

	require.NoError(t, harness.Run(net, parties, initial))
	assert.True(t, harness.AllClosed(parties))

	gotKeys := make([]uint64, n)
	payloadSeen := make(map[uint64]bool, n)
	for r := 0; r < n; r++ {
		keySum := f.Zero()
		payloadSum := f.Zero()
		for i := range ids {
			keySum = keySum.Add(impls[i].Result[r][0])
			payloadSum = payloadSum.Add(impls[i].Result[r][1])
		}
		gotKeys[r] = new(big.Int).SetBytes(keySum.Bytes()).Uint64()
		payloadSeen[new(big.Int).SetBytes(payloadSum.Bytes()).Uint64()] = true
	}

	for r := 1; r < n; r++ {
		assert.LessOrEqual(t, gotKeys[r-1], gotKeys[r], "rows not sorted at index %d", r)
	}
	assert.Len(t, payloadSeen, n, "every original row's payload must still be present exactly once")

	wantKeys := make([]uint64, n)
	for r, row := range rows {
		wantKeys[r] = row[0]
	}
	assert.ElementsMatch(t, wantKeys, gotKeys)
}
