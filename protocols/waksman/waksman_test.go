package waksman_test

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

// TestThreePartyWaksmanShufflePreservesMultiset checks that shuffling four
// one-column rows through a Waksman network yields the same rows back (as a
// multiset), only reordered.
func TestThreePartyWaksmanShufflePreservesMultiset(t *testing.T) {
	f := field.New(big.NewInt(97).Bytes())
	ids := []identity.ID{identity.Generate(), identity.Generate(), identity.Generate()}
	revealer := ids[0]
	peers := party.New(ids...)

	rowVals := []uint64{10, 20, 30, 40}
	n := len(rowVals)
	gateCount := waksman.GateCount(n)

	bits, err := (dealer.WaksmanBitsGenerator{Big: f, Key: f}).Generate(ids, gateCount)
	require.NoError(t, err)
	flatTriples, err := (dealer.BeaverTripleGenerator{F: f}).Generate(ids, gateCount)
	require.NoError(t, err)

	rowShares := make([][]*field.Element, n)
	for r, v := range rowVals {
		s, err := f.ShareAdditive(f.FromUint64(v), len(ids))
		require.NoError(t, err)
		rowShares[r] = s
	}

	net := memory.NewNetwork(ids...)
	impls := make([]*waksman.Waksman, len(ids))
	var parties []harness.Party
	initial := make(map[identity.ID][]bus.OutgoingMessage)
	for i, id := range ids {
		myRows := make([][]*field.Element, n)
		for r := 0; r < n; r++ {
			myRows[r] = []*field.Element{rowShares[r][i]}
		}
		triples := make([][]dealer.BeaverTriple, gateCount)
		for g := 0; g < gateCount; g++ {
			triples[g] = []dealer.BeaverTriple{flatTriples[id][g]}
		}
		impls[i] = waksman.New(id, revealer, othersOf(ids, id), peers, f, myRows, bits[id], triples, memory.NewOutgoing)
		eng := engine.New(id, memory.NewOutgoing)
		out, err := eng.Init(impls[i], peers)
		require.NoError(t, err)
		initial[id] = out
		parties = append(parties, harness.Party{ID: id, Engine: eng})
	}

	require.NoError(t, harness.Run(net, parties, initial))
	assert.True(t, harness.AllClosed(parties))

	got := make([]uint64, n)
	for r := 0; r < n; r++ {
		sum := f.Zero()
		for i := range ids {
			sum = sum.Add(impls[i].Result[r][0])
		}
		got[r] = new(big.Int).SetBytes(sum.Bytes()).Uint64()
	}
	assert.ElementsMatch(t, rowVals, got)
}
