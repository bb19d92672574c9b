package modconvup_test

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
	"github.com/fortissimo/mpc/protocols/modconvup"
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

// TestThreePartyModConvUp re-shares a value held mod a small field (q=97)
// into a share mod a larger field (Q=65537 > n*q), asserting the
// reconstructed value is unchanged.
func TestThreePartyModConvUp(t *testing.T) {
	const numBit = 7 // enough to decompose any value below q=97
	source := field.New(big.NewInt(97).Bytes())
	target := field.New(big.NewInt(65537).Bytes())
	ids := []identity.ID{identity.Generate(), identity.Generate(), identity.Generate()}
	revealer := ids[0]
	peers := party.New(ids...)

	aux, err := dealer.NewModConvUpAuxGenerator(target, source, numBit).Generate(ids, 1)
	require.NoError(t, err)
	series, err := (dealer.ExponentSeriesGenerator{F: target, Degree: 1}).Generate(ids, numBit-1)
	require.NoError(t, err)
	triples, err := (dealer.BeaverTripleGenerator{F: target}).Generate(ids, numBit-1)
	require.NoError(t, err)

	x := uint64(42)
	xShares, err := source.ShareAdditive(source.FromUint64(x), len(ids))
	require.NoError(t, err)

	net := memory.NewNetwork(ids...)
	impls := make([]*modconvup.ModConvUp, len(ids))
	var parties []harness.Party
	initial := make(map[identity.ID][]bus.OutgoingMessage)
	for i, id := range ids {
		impls[i] = modconvup.New(id, revealer, othersOf(ids, id), peers, source, target, xShares[i], aux[id][0], series[id], triples[id], memory.NewOutgoing)
		eng := engine.New(id, memory.NewOutgoing)
		out, err := eng.Init(impls[i], peers)
		require.NoError(t, err)
		initial[id] = out
		parties = append(parties, harness.Party{ID: id, Engine: eng})
	}

	require.NoError(t, harness.Run(net, parties, initial))
	assert.True(t, harness.AllClosed(parties))

	sum := target.Zero()
	for _, impl := range impls {
		sum = sum.Add(impl.Result)
	}
	assert.True(t, sum.Equal(target.FromUint64(x)))
}
