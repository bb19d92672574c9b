package main

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/fortissimo/mpc/internal/engine"
	"github.com/fortissimo/mpc/pkg/bus"
	"github.com/fortissimo/mpc/pkg/bus/memory"
	"github.com/fortissimo/mpc/pkg/dealer"
	"github.com/fortissimo/mpc/pkg/field"
	"github.com/fortissimo/mpc/pkg/harness"
	"github.com/fortissimo/mpc/pkg/identity"
	"github.com/fortissimo/mpc/pkg/party"
	"github.com/fortissimo/mpc/protocols/compare"
	"github.com/fortissimo/mpc/protocols/lexcompare"
	"github.com/fortissimo/mpc/protocols/multiply"
	"github.com/fortissimo/mpc/protocols/prefixor"
	"github.com/fortissimo/mpc/protocols/quicksort"
	"github.com/fortissimo/mpc/protocols/sisosort"
	"github.com/fortissimo/mpc/protocols/typecast"
	"github.com/fortissimo/mpc/protocols/waksman"
)

// resolveField maps a --field flag value to a concrete field.Field.
func resolveField(name string) (*field.Field, error) {
	switch name {
	case "p97":
		return field.New(big.NewInt(97).Bytes()), nil
	case "mersenne31":
		p := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 31), big.NewInt(1))
		return field.New(p.Bytes()), nil
	default:
		base, s := 10, name
		if strings.HasPrefix(name, "0x") || strings.HasPrefix(name, "0X") {
			base, s = 16, name[2:]
		}
		p, ok := new(big.Int).SetString(s, base)
		if !ok || p.Sign() <= 0 {
			return nil, fmt.Errorf("unrecognized field %q (want p97, mersenne31, or a prime literal)", name)
		}
		return field.New(p.Bytes()), nil
	}
}

func newParties(n int) []identity.ID {
	ids := make([]identity.ID, n)
	for i := range ids {
		ids[i] = identity.Generate()
	}
	return ids
}

func othersOf(all []identity.ID, self identity.ID) []identity.ID {
	out := make([]identity.ID, 0, len(all)-1)
	for _, id := range all {
		if !id.Equal(self) {
			out = append(out, id)
		}
	}
	return out
}

func transport(to identity.ID) bus.OutgoingMessage { return memory.NewOutgoing(to) }

// runProtocol wires one build() result per party into its own engine, runs
// them all to quiescence over an in-memory network, and hands back every
// party's root Implementation so callers can read off whatever result
// field that protocol exposes.
func runProtocol(parties []identity.ID, build func(self identity.ID, others []identity.ID, peers *party.Set, revealer identity.ID) engine.Implementation) (map[identity.ID]engine.Implementation, error) {
	peers := party.New(parties...)
	revealer := parties[0]
	net := memory.NewNetwork(parties...)

	impls := make(map[identity.ID]engine.Implementation, len(parties))
	harnessParties := make([]harness.Party, len(parties))
	initial := make(map[identity.ID][]bus.OutgoingMessage, len(parties))

	for i, self := range parties {
		impl := build(self, othersOf(parties, self), peers.Clone(), revealer)
		impls[self] = impl

		eng := engine.New(self, transport)
		out, err := eng.Init(impl, peers)
		if err != nil {
			return nil, fmt.Errorf("party %s: init: %w", self, err)
		}
		harnessParties[i] = harness.Party{ID: self, Engine: eng}
		initial[self] = out
	}

	if err := harness.Run(net, harnessParties, initial); err != nil {
		return nil, err
	}
	return impls, nil
}

func reconstruct(f *field.Field, shares []*field.Element) *field.Element {
	sum := f.Zero()
	for _, s := range shares {
		sum = sum.Add(s)
	}
	return sum
}

// --- multiply ---

func demoMultiply(f *field.Field, parties []identity.ID, x, y uint64) (*field.Element, error) {
	triples, err := (dealer.BeaverTripleGenerator{F: f}).Generate(parties, 1)
	if err != nil {
		return nil, err
	}
	xShares, err := f.ShareAdditive(f.FromUint64(x), len(parties))
	if err != nil {
		return nil, err
	}
	yShares, err := f.ShareAdditive(f.FromUint64(y), len(parties))
	if err != nil {
		return nil, err
	}

	impls, err := runProtocol(parties, func(self identity.ID, others []identity.ID, peers *party.Set, revealer identity.ID) engine.Implementation {
		i := indexOf(parties, self)
		return multiply.New(self, revealer, others, peers, f, xShares[i], yShares[i], triples[self][0], transport)
	})
	if err != nil {
		return nil, err
	}

	shares := make([]*field.Element, len(parties))
	for i, p := range parties {
		shares[i] = impls[p].(*multiply.Multiply).Z
	}
	return reconstruct(f, shares), nil
}

// --- compare ---

func demoCompare(f *field.Field, parties []identity.ID, x, y uint64, bits int) (bool, error) {
	aux, err := (dealer.DecomposedBitSetGenerator{F: f, Small: f, NumBit: bits}).Generate(parties, 1)
	if err != nil {
		return false, err
	}
	series, err := (dealer.ExponentSeriesGenerator{F: f, Degree: 1}).Generate(parties, bits-1)
	if err != nil {
		return false, err
	}
	triples, err := (dealer.BeaverTripleGenerator{F: f}).Generate(parties, bits-1)
	if err != nil {
		return false, err
	}
	xShares, err := f.ShareAdditive(f.FromUint64(x), len(parties))
	if err != nil {
		return false, err
	}
	yShares, err := f.ShareAdditive(f.FromUint64(y), len(parties))
	if err != nil {
		return false, err
	}

	impls, err := runProtocol(parties, func(self identity.ID, others []identity.ID, peers *party.Set, revealer identity.ID) engine.Implementation {
		i := indexOf(parties, self)
		return compare.New(self, revealer, others, peers, f, xShares[i], yShares[i], aux[self][0], series[self], triples[self], transport)
	})
	if err != nil {
		return false, err
	}

	shares := make([]*field.Element, len(parties))
	for i, p := range parties {
		shares[i] = impls[p].(*compare.Compare).Less
	}
	return !reconstruct(f, shares).IsZero(), nil
}

// --- prefixor ---

func demoPrefixOr(f *field.Field, parties []identity.ID, bits []byte) ([]bool, error) {
	if len(bits) == 0 {
		return nil, fmt.Errorf("prefixor: need at least one bit")
	}
	series, err := (dealer.ExponentSeriesGenerator{F: f, Degree: 1}).Generate(parties, len(bits)-1)
	if err != nil {
		return nil, err
	}
	triples, err := (dealer.BeaverTripleGenerator{F: f}).Generate(parties, len(bits)-1)
	if err != nil {
		return nil, err
	}
	bitShares := make([][]*field.Element, len(bits))
	for i, b := range bits {
		s, err := f.ShareAdditive(f.FromUint64(uint64(b)), len(parties))
		if err != nil {
			return nil, err
		}
		bitShares[i] = s
	}

	impls, err := runProtocol(parties, func(self identity.ID, others []identity.ID, peers *party.Set, revealer identity.ID) engine.Implementation {
		pIdx := indexOf(parties, self)
		myBits := make([]*field.Element, len(bits))
		for i := range bits {
			myBits[i] = bitShares[i][pIdx]
		}
		return prefixor.New(self, revealer, others, peers, f, myBits, series[self], triples[self], transport)
	})
	if err != nil {
		return nil, err
	}

	out := make([]bool, len(bits))
	for i := range bits {
		shares := make([]*field.Element, len(parties))
		for j, p := range parties {
			shares[j] = impls[p].(*prefixor.PrefixOr).Result[i]
		}
		out[i] = !reconstruct(f, shares).IsZero()
	}
	return out, nil
}

// --- typecast ---

func demoTypeCast(f *field.Field, parties []identity.ID, bit uint64) (byte, error) {
	triples, err := (dealer.TypeCastTripleGenerator{F: f}).Generate(parties, 1)
	if err != nil {
		return 0, err
	}
	shares, err := f.ShareAdditive(f.FromUint64(bit), len(parties))
	if err != nil {
		return 0, err
	}

	impls, err := runProtocol(parties, func(self identity.ID, others []identity.ID, peers *party.Set, revealer identity.ID) engine.Implementation {
		i := indexOf(parties, self)
		return typecast.New(self, revealer, others, peers, f, shares[i], triples[self][0], transport)
	})
	if err != nil {
		return 0, err
	}

	var xor byte
	for _, p := range parties {
		xor ^= impls[p].(*typecast.TypeCast).Result
	}
	return xor, nil
}

// --- sisosort ---

func demoSISOSort(f *field.Field, parties []identity.ID, rows [][]uint64, keyCols, bits int) ([][]uint64, error) {
	n := len(rows)
	if n == 0 {
		return nil, fmt.Errorf("sisosort: need at least one row")
	}
	width := len(rows[0])
	paddedN := sisosort.PaddedSize(n)

	gateCount := waksman.GateCount(paddedN)
	waksmanBits, err := (dealer.WaksmanBitsGenerator{Big: f, Key: f}).Generate(parties, gateCount)
	if err != nil {
		return nil, err
	}
	flatTriples, err := (dealer.BeaverTripleGenerator{F: f}).Generate(parties, gateCount*width)
	if err != nil {
		return nil, err
	}
	waksmanTriples := make(map[identity.ID][][]dealer.BeaverTriple, len(parties))
	for _, p := range parties {
		flat := flatTriples[p]
		reshaped := make([][]dealer.BeaverTriple, gateCount)
		for g := 0; g < gateCount; g++ {
			reshaped[g] = flat[g*width : (g+1)*width]
		}
		waksmanTriples[p] = reshaped
	}

	comparisonCount := sisosort.RequiredComparisons(n)
	sortPool, err := buildComparisonPool(f, parties, bits, keyCols, comparisonCount)
	if err != nil {
		return nil, err
	}

	rowShares := make([][][]*field.Element, n) // [row][col][party]
	for r := 0; r < n; r++ {
		rowShares[r] = make([][]*field.Element, width)
		for c := 0; c < width; c++ {
			s, err := f.ShareAdditive(f.FromUint64(rows[r][c]), len(parties))
			if err != nil {
				return nil, err
			}
			rowShares[r][c] = s
		}
	}

	impls, err := runProtocol(parties, func(self identity.ID, others []identity.ID, peers *party.Set, revealer identity.ID) engine.Implementation {
		pIdx := indexOf(parties, self)
		myRows := make([][]*field.Element, n)
		for r := 0; r < n; r++ {
			myRows[r] = make([]*field.Element, width)
			for c := 0; c < width; c++ {
				myRows[r][c] = rowShares[r][c][pIdx]
			}
		}
		return sisosort.New(self, revealer, others, peers, f, myRows, keyCols, waksmanBits[self], waksmanTriples[self], sortPool[self], transport)
	})
	if err != nil {
		return nil, err
	}

	out := make([][]uint64, n)
	for r := 0; r < n; r++ {
		out[r] = make([]uint64, width)
		for c := 0; c < width; c++ {
			shares := make([]*field.Element, len(parties))
			for i, p := range parties {
				shares[i] = impls[p].(*sisosort.SISOSort).Result[r][c]
			}
			out[r][c] = new(big.Int).SetBytes(reconstruct(f, shares).Bytes()).Uint64()
		}
	}
	return out, nil
}

// buildComparisonPool deals the randomness count independent row-vs-pivot
// comparisons over keyCols-wide keys will consume.
func buildComparisonPool(f *field.Field, parties []identity.ID, bits, keyCols, count int) (map[identity.ID][]quicksort.ComparisonMaterial, error) {
	perAux := bits - 1
	totalAux := count * keyCols * 2
	totalSeries := totalAux * perAux
	totalFold := count * (keyCols - 1)
	if totalFold < 0 {
		totalFold = 0
	}

	auxMap, err := (dealer.DecomposedBitSetGenerator{F: f, Small: f, NumBit: bits}).Generate(parties, totalAux)
	if err != nil {
		return nil, err
	}
	seriesMap, err := (dealer.ExponentSeriesGenerator{F: f, Degree: 1}).Generate(parties, totalSeries)
	if err != nil {
		return nil, err
	}
	triplesMap, err := (dealer.BeaverTripleGenerator{F: f}).Generate(parties, totalSeries)
	if err != nil {
		return nil, err
	}
	foldMap, err := (dealer.BeaverTripleGenerator{F: f}).Generate(parties, totalFold)
	if err != nil {
		return nil, err
	}

	out := make(map[identity.ID][]quicksort.ComparisonMaterial, len(parties))
	for _, p := range parties {
		aux, series, triples, fold := auxMap[p], seriesMap[p], triplesMap[p], foldMap[p]
		auxIdx, si, fi := 0, 0, 0
		mats := make([]quicksort.ComparisonMaterial, count)
		for c := 0; c < count; c++ {
			columns := make([]lexcompare.ColumnMaterial, keyCols)
			for col := 0; col < keyCols; col++ {
				ltAux := aux[auxIdx]
				auxIdx++
				gtAux := aux[auxIdx]
				auxIdx++
				ltSeries := series[si : si+perAux]
				ltTriples := triples[si : si+perAux]
				si += perAux
				gtSeries := series[si : si+perAux]
				gtTriples := triples[si : si+perAux]
				si += perAux
				columns[col] = lexcompare.ColumnMaterial{
					LTAux: ltAux, LTSeries: ltSeries, LTTriples: ltTriples,
					GTAux: gtAux, GTSeries: gtSeries, GTTriples: gtTriples,
				}
			}
			var foldTriples []dealer.BeaverTriple
			if keyCols > 1 {
				foldTriples = fold[fi : fi+keyCols-1]
				fi += keyCols - 1
			}
			mats[c] = quicksort.ComparisonMaterial{Columns: columns, FoldTriples: foldTriples}
		}
		out[p] = mats
	}
	return out, nil
}

func indexOf(parties []identity.ID, self identity.ID) int {
	for i, p := range parties {
		if p.Equal(self) {
			return i
		}
	}
	return -1
}
