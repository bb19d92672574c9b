package batch_test

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
	"github.com/fortissimo/mpc/protocols/batch"
	"github.com/fortissimo/mpc/protocols/multiply"
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

// TestThreePartyBatchOfMultiplies checks that several independent Multiply
// calls sharing one peer set complete correctly when driven together by
// one Batch.
func TestThreePartyBatchOfMultiplies(t *testing.T) {
	f := field.New(big.NewInt(97).Bytes())
	ids := []identity.ID{identity.Generate(), identity.Generate(), identity.Generate()}
	revealer := ids[0]
	peers := party.New(ids...)

	pairs := [][2]uint64{{3, 4}, {5, 6}, {7, 8}}
	triples, err := (dealer.BeaverTripleGenerator{F: f}).Generate(ids, len(pairs))
	require.NoError(t, err)

	xShares := make([][]*field.Element, len(pairs))
	yShares := make([][]*field.Element, len(pairs))
	for i, pair := range pairs {
		xs, err := f.ShareAdditive(f.FromUint64(pair[0]), len(ids))
		require.NoError(t, err)
		ys, err := f.ShareAdditive(f.FromUint64(pair[1]), len(ids))
		require.NoError(t, err)
		xShares[i] = xs
		yShares[i] = ys
	}

	net := memory.NewNetwork(ids...)
	muls := make([][]*multiply.Multiply, len(ids))
	var parties []harness.Party
	initial := make(map[identity.ID][]bus.OutgoingMessage)
	for pIdx, id := range ids {
		children := make([]engine.Implementation, len(pairs))
		mine := make([]*multiply.Multiply, len(pairs))
		for i := range pairs {
			m := multiply.New(id, revealer, othersOf(ids, id), peers, f, xShares[i][pIdx], yShares[i][pIdx], triples[id][i], memory.NewOutgoing)
			mine[i] = m
			children[i] = m
		}
		muls[pIdx] = mine
		b := batch.New(id, memory.NewOutgoing, children)
		eng := engine.New(id, memory.NewOutgoing)
		out, err := eng.Init(b, peers)
		require.NoError(t, err)
		initial[id] = out
		parties = append(parties, harness.Party{ID: id, Engine: eng})
	}

	require.NoError(t, harness.Run(net, parties, initial))
	assert.True(t, harness.AllClosed(parties))

	for i, pair := range pairs {
		sum := f.Zero()
		for pIdx := range ids {
			sum = sum.Add(muls[pIdx][i].Z)
		}
		assert.True(t, sum.Equal(f.FromUint64(pair[0]*pair[1])), "pair %d", i)
	}
}
