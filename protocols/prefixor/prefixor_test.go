package prefixor_test

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
	"github.com/fortissimo/mpc/protocols/prefixor"
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

// TestThreePartyPrefixOr covers spec.md §8's 3-party PrefixOr scenario:
// p=97, ℓ=7 bits.
func TestThreePartyPrefixOr(t *testing.T) {
	f := field.New(big.NewInt(97).Bytes())
	bits := []byte{0, 0, 1, 0, 1, 1, 0}
	numBit := len(bits)
	ids := []identity.ID{identity.Generate(), identity.Generate(), identity.Generate()}
	revealer := ids[0]
	peers := party.New(ids...)

	series, err := (dealer.ExponentSeriesGenerator{F: f, Degree: 1}).Generate(ids, numBit-1)
	require.NoError(t, err)
	triples, err := (dealer.BeaverTripleGenerator{F: f}).Generate(ids, numBit-1)
	require.NoError(t, err)

	bitShares := make([][]*field.Element, numBit)
	for i, b := range bits {
		s, err := f.ShareAdditive(f.FromUint64(uint64(b)), len(ids))
		require.NoError(t, err)
		bitShares[i] = s
	}

	net := memory.NewNetwork(ids...)
	impls := make([]*prefixor.PrefixOr, len(ids))
	var parties []harness.Party
	initial := make(map[identity.ID][]bus.OutgoingMessage)
	for i, id := range ids {
		myBits := make([]*field.Element, numBit)
		for b := range bits {
			myBits[b] = bitShares[b][i]
		}
		impls[i] = prefixor.New(id, revealer, othersOf(ids, id), peers, f, myBits, series[id], triples[id], memory.NewOutgoing)
		eng := engine.New(id, memory.NewOutgoing)
		out, err := eng.Init(impls[i], peers)
		require.NoError(t, err)
		initial[id] = out
		parties = append(parties, harness.Party{ID: id, Engine: eng})
	}

	require.NoError(t, harness.Run(net, parties, initial))
	assert.True(t, harness.AllClosed(parties))

	want := []bool{false, false, true, true, true, true, true}
	for b := 0; b < numBit; b++ {
		shares := make([]*field.Element, len(ids))
		for i := range ids {
			shares[i] = impls[i].Result[b]
		}
		sum := f.Zero()
		for _, s := range shares {
			sum = sum.Add(s)
		}
		assert.Equal(t, want[b], !sum.IsZero(), "bit %d", b)
	}
}
