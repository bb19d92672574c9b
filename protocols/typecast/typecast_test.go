package typecast_test

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
	"github.com/fortissimo/mpc/protocols/typecast"
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

// TestThreePartyTypeCastFromBit covers spec.md §8's 3-party TypeCastFromBit
// scenario over p=97.
func TestThreePartyTypeCastFromBit(t *testing.T) {
	f := field.New(big.NewInt(97).Bytes())
	ids := []identity.ID{identity.Generate(), identity.Generate(), identity.Generate()}
	revealer := ids[0]
	peers := party.New(ids...)

	triples, err := (dealer.TypeCastFromBitTripleGenerator{F: f}).Generate(ids, 1)
	require.NoError(t, err)

	// 1 XORed across three boolean shares.
	bitShares := []byte{1, 0, 0}

	net := memory.NewNetwork(ids...)
	impls := make([]*typecast.FromBit, len(ids))
	var parties []harness.Party
	initial := make(map[identity.ID][]bus.OutgoingMessage)
	for i, id := range ids {
		impls[i] = typecast.NewFromBit(id, revealer, othersOf(ids, id), peers, f, bitShares[i], triples[id][0], memory.NewOutgoing)
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
		sum = sum.Add(impl.Result)
	}
	assert.True(t, sum.Equal(f.One()))
}

func TestThreePartyTypeCast(t *testing.T) {
	f := field.New(big.NewInt(97).Bytes())
	ids := []identity.ID{identity.Generate(), identity.Generate(), identity.Generate()}
	revealer := ids[0]
	peers := party.New(ids...)

	triples, err := (dealer.TypeCastTripleGenerator{F: f}).Generate(ids, 1)
	require.NoError(t, err)
	shares, err := f.ShareAdditive(f.One(), len(ids))
	require.NoError(t, err)

	net := memory.NewNetwork(ids...)
	impls := make([]*typecast.TypeCast, len(ids))
	var parties []harness.Party
	initial := make(map[identity.ID][]bus.OutgoingMessage)
	for i, id := range ids {
		impls[i] = typecast.New(id, revealer, othersOf(ids, id), peers, f, shares[i], triples[id][0], memory.NewOutgoing)
		eng := engine.New(id, memory.NewOutgoing)
		out, err := eng.Init(impls[i], peers)
		require.NoError(t, err)
		initial[id] = out
		parties = append(parties, harness.Party{ID: id, Engine: eng})
	}

	require.NoError(t, harness.Run(net, parties, initial))
	assert.True(t, harness.AllClosed(parties))

	var xor byte
	for _, impl := range impls {
		xor ^= impl.Result
	}
	assert.Equal(t, byte(1), xor)
}
