package multiply_test

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

func reconstruct(f *field.Field, shares []*field.Element) *field.Element {
	sum := f.Zero()
	for _, s := range shares {
		sum = sum.Add(s)
	}
	return sum
}

// TestThreePartyBeaverMultiply covers spec.md §8's 3-party Beaver multiply
// scenario: p = 2^31-1, x = 7, y = 11.
func TestThreePartyBeaverMultiply(t *testing.T) {
	p := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 31), big.NewInt(1))
	f := field.New(p.Bytes())
	ids := []identity.ID{identity.Generate(), identity.Generate(), identity.Generate()}
	revealer := ids[0]
	peers := party.New(ids...)

	triples, err := (dealer.BeaverTripleGenerator{F: f}).Generate(ids, 1)
	require.NoError(t, err)
	xShares, err := f.ShareAdditive(f.FromUint64(7), len(ids))
	require.NoError(t, err)
	yShares, err := f.ShareAdditive(f.FromUint64(11), len(ids))
	require.NoError(t, err)

	net := memory.NewNetwork(ids...)
	impls := make([]*multiply.Multiply, len(ids))
	var parties []harness.Party
	initial := make(map[identity.ID][]bus.OutgoingMessage)
	for i, id := range ids {
		impls[i] = multiply.New(id, revealer, othersOf(ids, id), peers, f, xShares[i], yShares[i], triples[id][0], memory.NewOutgoing)
		eng := engine.New(id, memory.NewOutgoing)
		out, err := eng.Init(impls[i], peers)
		require.NoError(t, err)
		initial[id] = out
		parties = append(parties, harness.Party{ID: id, Engine: eng})
	}

	require.NoError(t, harness.Run(net, parties, initial))
	assert.True(t, harness.AllClosed(parties))

	zShares := make([]*field.Element, len(ids))
	for i := range ids {
		zShares[i] = impls[i].Z
	}
	assert.True(t, reconstruct(f, zShares).Equal(f.FromUint64(77)))
}

func TestThreePartyBooleanMultiply(t *testing.T) {
	ids := []identity.ID{identity.Generate(), identity.Generate(), identity.Generate()}
	revealer := ids[0]
	peers := party.New(ids...)

	triples, err := (dealer.BooleanBeaverTripleGenerator{}).Generate(ids, 1)
	require.NoError(t, err)

	// 1 AND 1 = 1, split as XOR shares across three parties.
	xShares := []byte{1, 0, 0}
	yShares := []byte{0, 1, 0}

	net := memory.NewNetwork(ids...)
	impls := make([]*multiply.Boolean, len(ids))
	var parties []harness.Party
	initial := make(map[identity.ID][]bus.OutgoingMessage)
	for i, id := range ids {
		impls[i] = multiply.NewBoolean(id, revealer, othersOf(ids, id), peers, xShares[i], yShares[i], triples[id][0], memory.NewOutgoing)
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
		xor ^= impl.Z
	}
	assert.Equal(t, byte(1), xor)
}
