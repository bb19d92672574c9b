package dealer

import (
	"crypto/rand"
	"fmt"

	"github.com/fortissimo/mpc/pkg/codec"
	"github.com/fortissimo/mpc/pkg/field"
	"github.com/fortissimo/mpc/pkg/identity"
)

// This file collects the randomness kinds spec.md §3 names and the
// Generators that produce them, grounded on
// original_source/src/main/cpp/mpc/*Dealer*.t.h. Each Generator samples one
// secret per instance and splits it additively (arithmetic) or via XOR
// (boolean) across the requesting patrons, mirroring protocols/lss/dealer's
// BootstrapDealer share-and-send structure.

func randBit() (byte, error) {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return b[0] & 1, nil
}

func shareXORByte(secret byte, n int) ([]byte, error) {
	shares := make([]byte, n)
	buf := make([]byte, n-1)
	if n > 1 {
		if _, err := rand.Read(buf); err != nil {
			return nil, err
		}
	}
	var acc byte
	for i := 0; i < n-1; i++ {
		b := buf[i] & 1
		shares[i] = b
		acc ^= b
	}
	shares[n-1] = secret ^ acc
	return shares, nil
}

// --- Beaver triples (arithmetic multiply, spec.md §4.F) ---

type BeaverTriple struct{ A, B, C *field.Element }

type BeaverTripleGenerator struct{ F *field.Field }

func (g BeaverTripleGenerator) Encode() []byte { return append([]byte("beaver/"), g.F.ModulusBytes()...) }

func (g BeaverTripleGenerator) Generate(parties []identity.ID, k int) (map[identity.ID][]BeaverTriple, error) {
	n := len(parties)
	out := make(map[identity.ID][]BeaverTriple, n)
	for _, p := range parties {
		out[p] = make([]BeaverTriple, 0, k)
	}
	for i := 0; i < k; i++ {
		a, err := g.F.Random()
		if err != nil {
			return nil, err
		}
		b, err := g.F.Random()
		if err != nil {
			return nil, err
		}
		c := a.Mul(b)
		as, err := g.F.ShareAdditive(a, n)
		if err != nil {
			return nil, err
		}
		bs, err := g.F.ShareAdditive(b, n)
		if err != nil {
			return nil, err
		}
		cs, err := g.F.ShareAdditive(c, n)
		if err != nil {
			return nil, err
		}
		for j, p := range parties {
			out[p] = append(out[p], BeaverTriple{A: as[j], B: bs[j], C: cs[j]})
		}
	}
	return out, nil
}

var BeaverTripleCodec = Codec[BeaverTriple]{
	Write: func(b *codec.Buffer, t BeaverTriple) error {
		if err := t.A.WriteTo(b); err != nil {
			return err
		}
		if err := t.B.WriteTo(b); err != nil {
			return err
		}
		return t.C.WriteTo(b)
	},
}

// NewBeaverTripleCodec binds a BeaverTriple codec's Read side to a Field,
// since ReadFrom needs to know which modulus to reduce into.
func NewBeaverTripleCodec(f *field.Field) Codec[BeaverTriple] {
	c := BeaverTripleCodec
	c.Read = func(b *codec.Buffer) (BeaverTriple, error) {
		a, err := f.ReadFrom(b)
		if err != nil {
			return BeaverTriple{}, err
		}
		bb, err := f.ReadFrom(b)
		if err != nil {
			return BeaverTriple{}, err
		}
		cc, err := f.ReadFrom(b)
		if err != nil {
			return BeaverTriple{}, err
		}
		return BeaverTriple{A: a, B: bb, C: cc}, nil
	}
	return c
}

// --- Boolean Beaver triples (boolean multiply, spec.md §4.F) ---

type BooleanBeaverTriple struct{ A, B, C byte }

type BooleanBeaverTripleGenerator struct{}

func (BooleanBeaverTripleGenerator) Encode() []byte { return []byte("beaver-bool") }

func (BooleanBeaverTripleGenerator) Generate(parties []identity.ID, k int) (map[identity.ID][]BooleanBeaverTriple, error) {
	n := len(parties)
	out := make(map[identity.ID][]BooleanBeaverTriple, n)
	for _, p := range parties {
		out[p] = make([]BooleanBeaverTriple, 0, k)
	}
	for i := 0; i < k; i++ {
		a, err := randBit()
		if err != nil {
			return nil, err
		}
		b, err := randBit()
		if err != nil {
			return nil, err
		}
		c := a & b
		as, err := shareXORByte(a, n)
		if err != nil {
			return nil, err
		}
		bs, err := shareXORByte(b, n)
		if err != nil {
			return nil, err
		}
		cs, err := shareXORByte(c, n)
		if err != nil {
			return nil, err
		}
		for j, p := range parties {
			out[p] = append(out[p], BooleanBeaverTriple{A: as[j], B: bs[j], C: cs[j]})
		}
	}
	return out, nil
}

var BooleanBeaverTripleCodec = Codec[BooleanBeaverTriple]{
	Write: func(b *codec.Buffer, t BooleanBeaverTriple) error {
		b.WriteUint8(t.A)
		b.WriteUint8(t.B)
		b.WriteUint8(t.C)
		return nil
	},
	Read: func(b *codec.Buffer) (BooleanBeaverTriple, error) {
		a, err := b.ReadUint8()
		if err != nil {
			return BooleanBeaverTriple{}, err
		}
		bb, err := b.ReadUint8()
		if err != nil {
			return BooleanBeaverTriple{}, err
		}
		cc, err := b.ReadUint8()
		if err != nil {
			return BooleanBeaverTriple{}, err
		}
		return BooleanBeaverTriple{A: a, B: bb, C: cc}, nil
	},
}

// --- TypeCast triples (spec.md §4.F: arithmetic-share-of-bit <-> boolean-share-of-bit) ---

// TypeCastTriple carries a random bit shared twice: once as a field element
// (mod p) and once XOR-shared, so TypeCast can mask the input in one
// representation and reveal it, then reapply the mask in the other.
type TypeCastTriple struct {
	RArith   *field.Element
	RBoolean byte
}

type TypeCastTripleGenerator struct{ F *field.Field }

func (g TypeCastTripleGenerator) Encode() []byte { return append([]byte("typecast/"), g.F.ModulusBytes()...) }

func (g TypeCastTripleGenerator) Generate(parties []identity.ID, k int) (map[identity.ID][]TypeCastTriple, error) {
	n := len(parties)
	out := make(map[identity.ID][]TypeCastTriple, n)
	for _, p := range parties {
		out[p] = make([]TypeCastTriple, 0, k)
	}
	for i := 0; i < k; i++ {
		r, err := randBit()
		if err != nil {
			return nil, err
		}
		arithShares, err := g.F.ShareAdditive(g.F.FromUint64(uint64(r)), n)
		if err != nil {
			return nil, err
		}
		boolShares, err := shareXORByte(r, n)
		if err != nil {
			return nil, err
		}
		for j, p := range parties {
			out[p] = append(out[p], TypeCastTriple{RArith: arithShares[j], RBoolean: boolShares[j]})
		}
	}
	return out, nil
}

func NewTypeCastTripleCodec(f *field.Field) Codec[TypeCastTriple] {
	return Codec[TypeCastTriple]{
		Write: func(b *codec.Buffer, t TypeCastTriple) error {
			if err := t.RArith.WriteTo(b); err != nil {
				return err
			}
			b.WriteUint8(t.RBoolean)
			return nil
		},
		Read: func(b *codec.Buffer) (TypeCastTriple, error) {
			a, err := f.ReadFrom(b)
			if err != nil {
				return TypeCastTriple{}, err
			}
			bit, err := b.ReadUint8()
			if err != nil {
				return TypeCastTriple{}, err
			}
			return TypeCastTriple{RArith: a, RBoolean: bit}, nil
		},
	}
}

// TypeCastFromBitTriple is the same correlated randomness shape, used by the
// reverse conversion; kept as a distinct type so callers can't mix up which
// dealer stream a triple came from.
type TypeCastFromBitTriple TypeCastTriple

type TypeCastFromBitTripleGenerator struct{ F *field.Field }

func (g TypeCastFromBitTripleGenerator) Encode() []byte {
	return append([]byte("typecastfrombit/"), g.F.ModulusBytes()...)
}

func (g TypeCastFromBitTripleGenerator) Generate(parties []identity.ID, k int) (map[identity.ID][]TypeCastFromBitTriple, error) {
	inner, err := (TypeCastTripleGenerator{F: g.F}).Generate(parties, k)
	if err != nil {
		return nil, err
	}
	out := make(map[identity.ID][]TypeCastFromBitTriple, len(inner))
	for p, items := range inner {
		conv := make([]TypeCastFromBitTriple, len(items))
		for i, it := range items {
			conv[i] = TypeCastFromBitTriple(it)
		}
		out[p] = conv
	}
	return out, nil
}

func NewTypeCastFromBitTripleCodec(f *field.Field) Codec[TypeCastFromBitTriple] {
	inner := NewTypeCastTripleCodec(f)
	return Codec[TypeCastFromBitTriple]{
		Write: func(b *codec.Buffer, t TypeCastFromBitTriple) error { return inner.Write(b, TypeCastTriple(t)) },
		Read: func(b *codec.Buffer) (TypeCastFromBitTriple, error) {
			t, err := inner.Read(b)
			return TypeCastFromBitTriple(t), err
		},
	}
}

// --- ExponentSeries(p, degree) (spec.md §4.G: UnboundedFaninOr) ---

// ExponentSeries carries shares of r^1..r^degree plus r^-1 for one random
// nonzero r, the randomness UnboundedFaninOr's Lagrange trick consumes.
type ExponentSeries struct {
	Powers  []*field.Element
	Inverse *field.Element
}

type ExponentSeriesGenerator struct {
	F      *field.Field
	Degree int
}

func (g ExponentSeriesGenerator) Encode() []byte {
	return []byte(fmt.Sprintf("exp-series/%s/%d", g.F.ModulusBytes(), g.Degree))
}

func (g ExponentSeriesGenerator) Generate(parties []identity.ID, k int) (map[identity.ID][]ExponentSeries, error) {
	n := len(parties)
	out := make(map[identity.ID][]ExponentSeries, n)
	for _, p := range parties {
		out[p] = make([]ExponentSeries, 0, k)
	}
	for i := 0; i < k; i++ {
		var r *field.Element
		for {
			cand, err := g.F.Random()
			if err != nil {
				return nil, err
			}
			if !cand.IsZero() {
				r = cand
				break
			}
		}
		powers := make([]*field.Element, g.Degree)
		cur := g.F.One()
		for d := 0; d < g.Degree; d++ {
			cur = cur.Mul(r)
			powers[d] = cur
		}
		inv := r.Inverse()

		powerShares := make([][]*field.Element, g.Degree)
		for d := 0; d < g.Degree; d++ {
			s, err := g.F.ShareAdditive(powers[d], n)
			if err != nil {
				return nil, err
			}
			powerShares[d] = s
		}
		invShares, err := g.F.ShareAdditive(inv, n)
		if err != nil {
			return nil, err
		}
		for j, p := range parties {
			series := ExponentSeries{Powers: make([]*field.Element, g.Degree), Inverse: invShares[j]}
			for d := 0; d < g.Degree; d++ {
				series.Powers[d] = powerShares[d][j]
			}
			out[p] = append(out[p], series)
		}
	}
	return out, nil
}

func NewExponentSeriesCodec(f *field.Field, degree int) Codec[ExponentSeries] {
	return Codec[ExponentSeries]{
		Write: func(b *codec.Buffer, s ExponentSeries) error {
			for _, p := range s.Powers {
				if err := p.WriteTo(b); err != nil {
					return err
				}
			}
			return s.Inverse.WriteTo(b)
		},
		Read: func(b *codec.Buffer) (ExponentSeries, error) {
			s := ExponentSeries{Powers: make([]*field.Element, degree)}
			for i := range s.Powers {
				p, err := f.ReadFrom(b)
				if err != nil {
					return ExponentSeries{}, err
				}
				s.Powers[i] = p
			}
			inv, err := f.ReadFrom(b)
			if err != nil {
				return ExponentSeries{}, err
			}
			s.Inverse = inv
			return s, nil
		},
	}
}

// --- DecomposedBitSet(p, s, bits) (spec.md §4.G: Compare) ---

// DecomposedBitSet carries a random value shared mod p alongside a share of
// each of its bits mod a small field s, so Compare can mask a comparand and
// still bit-decompose the masked value via the revealed bits' small-field
// shares (original_source's DecomposedBitSet.t.h).
type DecomposedBitSet struct {
	R    *field.Element
	Bits []*field.Element
}

type DecomposedBitSetGenerator struct {
	F      *field.Field // large field, modulus p
	Small  *field.Field // small field, modulus s
	NumBit int          // bits (ℓ)
}

func (g DecomposedBitSetGenerator) Encode() []byte {
	return []byte(fmt.Sprintf("decomposed-bitset/%s/%s/%d", g.F.ModulusBytes(), g.Small.ModulusBytes(), g.NumBit))
}

func (g DecomposedBitSetGenerator) Generate(parties []identity.ID, k int) (map[identity.ID][]DecomposedBitSet, error) {
	n := len(parties)
	out := make(map[identity.ID][]DecomposedBitSet, n)
	for _, p := range parties {
		out[p] = make([]DecomposedBitSet, 0, k)
	}
	for i := 0; i < k; i++ {
		bits := make([]byte, g.NumBit)
		var rVal uint64
		for b := 0; b < g.NumBit; b++ {
			bit, err := randBit()
			if err != nil {
				return nil, err
			}
			bits[b] = bit
			if bit == 1 {
				rVal |= 1 << uint(b)
			}
		}
		r := g.F.FromUint64(rVal)
		rShares, err := g.F.ShareAdditive(r, n)
		if err != nil {
			return nil, err
		}
		bitShares := make([][]*field.Element, g.NumBit)
		for b := 0; b < g.NumBit; b++ {
			s, err := g.Small.ShareAdditive(g.Small.FromUint64(uint64(bits[b])), n)
			if err != nil {
				return nil, err
			}
			bitShares[b] = s
		}
		for j, p := range parties {
			set := DecomposedBitSet{R: rShares[j], Bits: make([]*field.Element, g.NumBit)}
			for b := 0; b < g.NumBit; b++ {
				set.Bits[b] = bitShares[b][j]
			}
			out[p] = append(out[p], set)
		}
	}
	return out, nil
}

func NewDecomposedBitSetCodec(large, small *field.Field, numBit int) Codec[DecomposedBitSet] {
	return Codec[DecomposedBitSet]{
		Write: func(b *codec.Buffer, s DecomposedBitSet) error {
			if err := s.R.WriteTo(b); err != nil {
				return err
			}
			for _, bit := range s.Bits {
				if err := bit.WriteTo(b); err != nil {
					return err
				}
			}
			return nil
		},
		Read: func(b *codec.Buffer) (DecomposedBitSet, error) {
			r, err := large.ReadFrom(b)
			if err != nil {
				return DecomposedBitSet{}, err
			}
			bits := make([]*field.Element, numBit)
			for i := range bits {
				bit, err := small.ReadFrom(b)
				if err != nil {
					return DecomposedBitSet{}, err
				}
				bits[i] = bit
			}
			return DecomposedBitSet{R: r, Bits: bits}, nil
		},
	}
}

// --- ModConvUpAux (spec.md §4.H) ---

// ModConvUpAux reuses the DecomposedBitSet shape (a random masking value and
// its bit shares) for the up-conversion's two BitwiseCompare calls.
type ModConvUpAux = DecomposedBitSet

type ModConvUpAuxGenerator struct {
	inner DecomposedBitSetGenerator
}

func NewModConvUpAuxGenerator(largeQ, small *field.Field, numBit int) ModConvUpAuxGenerator {
	return ModConvUpAuxGenerator{inner: DecomposedBitSetGenerator{F: largeQ, Small: small, NumBit: numBit}}
}

func (g ModConvUpAuxGenerator) Encode() []byte { return append([]byte("modconvup-aux/"), g.inner.Encode()...) }

func (g ModConvUpAuxGenerator) Generate(parties []identity.ID, k int) (map[identity.ID][]ModConvUpAux, error) {
	return g.inner.Generate(parties, k)
}

func NewModConvUpAuxCodec(largeQ, small *field.Field, numBit int) Codec[ModConvUpAux] {
	return NewDecomposedBitSetCodec(largeQ, small, numBit)
}

// --- WaksmanBits (spec.md §4.J) ---

// WaksmanBits is one swap gate's control bit, shared three ways (the
// permutation network's large field, the comparison small field, and a raw
// XOR bit), since each stage of the shuffle consumes a different
// representation of the same bit.
type WaksmanBits struct {
	Big *field.Element
	Key *field.Element
	Xor byte
}

type WaksmanBitsGenerator struct {
	Big *field.Field
	Key *field.Field
}

func (g WaksmanBitsGenerator) Encode() []byte {
	return []byte(fmt.Sprintf("waksman-bits/%s/%s", g.Big.ModulusBytes(), g.Key.ModulusBytes()))
}

func (g WaksmanBitsGenerator) Generate(parties []identity.ID, k int) (map[identity.ID][]WaksmanBits, error) {
	n := len(parties)
	out := make(map[identity.ID][]WaksmanBits, n)
	for _, p := range parties {
		out[p] = make([]WaksmanBits, 0, k)
	}
	for i := 0; i < k; i++ {
		bit, err := randBit()
		if err != nil {
			return nil, err
		}
		bigShares, err := g.Big.ShareAdditive(g.Big.FromUint64(uint64(bit)), n)
		if err != nil {
			return nil, err
		}
		keyShares, err := g.Key.ShareAdditive(g.Key.FromUint64(uint64(bit)), n)
		if err != nil {
			return nil, err
		}
		xorShares, err := shareXORByte(bit, n)
		if err != nil {
			return nil, err
		}
		for j, p := range parties {
			out[p] = append(out[p], WaksmanBits{Big: bigShares[j], Key: keyShares[j], Xor: xorShares[j]})
		}
	}
	return out, nil
}

func NewWaksmanBitsCodec(big, key *field.Field) Codec[WaksmanBits] {
	return Codec[WaksmanBits]{
		Write: func(b *codec.Buffer, w WaksmanBits) error {
			if err := w.Big.WriteTo(b); err != nil {
				return err
			}
			if err := w.Key.WriteTo(b); err != nil {
				return err
			}
			b.WriteUint8(w.Xor)
			return nil
		},
		Read: func(b *codec.Buffer) (WaksmanBits, error) {
			bigV, err := big.ReadFrom(b)
			if err != nil {
				return WaksmanBits{}, err
			}
			keyV, err := key.ReadFrom(b)
			if err != nil {
				return WaksmanBits{}, err
			}
			xor, err := b.ReadUint8()
			if err != nil {
				return WaksmanBits{}, err
			}
			return WaksmanBits{Big: bigV, Key: keyV, Xor: xor}, nil
		},
	}
}
