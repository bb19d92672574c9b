package zip_test

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
	"github.com/fortissimo/mpc/protocols/zip"
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

func multiplyOp(self, revealer identity.ID, others []identity.ID, peers *party.Set, f *field.Field, triples []dealer.BeaverTriple) zip.Op {
	return func(call int, a, b *field.Element) (engine.Implementation, func() *field.Element) {
		m := multiply.New(self, revealer, others, peers, f, a, b, triples[call], memory.NewOutgoing)
		return m, func() *field.Element { return m.Z }
	}
}

func TestThreePartyZipAdjacent(t *testing.T) {
	f := field.New(big.NewInt(97).Bytes())
	ids := []identity.ID{identity.Generate(), identity.Generate(), identity.Generate()}
	revealer := ids[0]
	peers := party.New(ids...)

	vals := []uint64{2, 3, 4, 5}
	n := len(vals)
	triples, err := (dealer.BeaverTripleGenerator{F: f}).Generate(ids, n-1)
	require.NoError(t, err)

	itemShares := make([][]*field.Element, n)
	for i, v := range vals {
		s, err := f.ShareAdditive(f.FromUint64(v), len(ids))
		require.NoError(t, err)
		itemShares[i] = s
	}

	net := memory.NewNetwork(ids...)
	impls := make([]*zip.Adjacent, len(ids))
	var parties []harness.Party
	initial := make(map[identity.ID][]bus.OutgoingMessage)
	for i, id := range ids {
		items := make([]*field.Element, n)
		for r := 0; r < n; r++ {
			items[r] = itemShares[r][i]
		}
		op := multiplyOp(id, revealer, othersOf(ids, id), peers, f, triples[id])
		impls[i] = zip.NewAdjacent(id, peers, memory.NewOutgoing, items, op)
		eng := engine.New(id, memory.NewOutgoing)
		out, err := eng.Init(impls[i], peers)
		require.NoError(t, err)
		initial[id] = out
		parties = append(parties, harness.Party{ID: id, Engine: eng})
	}

	require.NoError(t, harness.Run(net, parties, initial))
	assert.True(t, harness.AllClosed(parties))

	want := []uint64{6, 12, 20}
	for r := 0; r < n-1; r++ {
		sum := f.Zero()
		for i := range ids {
			sum = sum.Add(impls[i].Results[r])
		}
		assert.True(t, sum.Equal(f.FromUint64(want[r])), "pair %d", r)
	}
}

func TestThreePartyZipReduce(t *testing.T) {
	f := field.New(big.NewInt(97).Bytes())
	ids := []identity.ID{identity.Generate(), identity.Generate(), identity.Generate()}
	revealer := ids[0]
	peers := party.New(ids...)

	vals := []uint64{2, 3, 4, 5, 6}
	n := len(vals)
	// Up to n-1 multiplications across all rounds of a disjoint-pair
	// reduction tree.
	triples, err := (dealer.BeaverTripleGenerator{F: f}).Generate(ids, n)
	require.NoError(t, err)

	itemShares := make([][]*field.Element, n)
	for i, v := range vals {
		s, err := f.ShareAdditive(f.FromUint64(v), len(ids))
		require.NoError(t, err)
		itemShares[i] = s
	}

	net := memory.NewNetwork(ids...)
	impls := make([]*zip.Reduce, len(ids))
	var parties []harness.Party
	initial := make(map[identity.ID][]bus.OutgoingMessage)
	for i, id := range ids {
		items := make([]*field.Element, n)
		for r := 0; r < n; r++ {
			items[r] = itemShares[r][i]
		}
		op := multiplyOp(id, revealer, othersOf(ids, id), peers, f, triples[id])
		impls[i] = zip.NewReduce(id, peers, memory.NewOutgoing, items, op)
		eng := engine.New(id, memory.NewOutgoing)
		out, err := eng.Init(impls[i], peers)
		require.NoError(t, err)
		initial[id] = out
		parties = append(parties, harness.Party{ID: id, Engine: eng})
	}

	require.NoError(t, harness.Run(net, parties, initial))
	assert.True(t, harness.AllClosed(parties))

	sum := f.Zero()
	for i := range ids {
		sum = sum.Add(impls[i].Result)
	}
	assert.True(t, sum.Equal(f.FromUint64(2*3*4*5*6)))
}
