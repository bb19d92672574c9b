// Package field implements arithmetic mod a fixed prime p, the arithmetic
// secret-sharing field the MPC primitives (Multiply, Reveal, TypeCast, ...)
// operate over. It generalizes the teacher's saferith.Nat usage (e.g.
// protocols/lss/sign/sign.go's SetBytes/SetUint64 calls feeding a curve
// scalar) into standalone mod-p arithmetic, since nothing in the teacher
// needed a field not tied to a curve's scalar group.
package field

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/cronokirby/saferith"

	"github.com/fortissimo/mpc/pkg/codec"
)

// Field names one prime modulus that elements are reduced under. All
// Elements produced by the same Field are safe to combine; combining
// Elements from different Fields panics, mirroring saferith's own
// modulus-mismatch panics.
type Field struct {
	p *saferith.Modulus
}

// New builds a Field from a prime's big-endian byte encoding. Primality is
// the caller's responsibility: this package does no primality testing, the
// same way the teacher trusts curve.Secp256k1's hardcoded order.
func New(primeBytes []byte) *Field {
	return &Field{p: saferith.ModulusFromBytes(primeBytes)}
}

// Modulus exposes the underlying saferith modulus, e.g. for dealer code that
// needs to sample directly against it.
func (f *Field) Modulus() *saferith.Modulus { return f.p }

// ModulusBytes returns the modulus's big-endian magnitude, for dealer
// Generators that need to fingerprint which field they were configured for.
func (f *Field) ModulusBytes() []byte { return f.p.Big().Bytes() }

// Zero returns the additive identity.
func (f *Field) Zero() *Element { return &Element{f: f, v: new(saferith.Nat)} }

// One returns the multiplicative identity.
func (f *Field) One() *Element { return f.FromUint64(1) }

// FromUint64 builds an Element from a small integer, reduced mod p.
func (f *Field) FromUint64(v uint64) *Element {
	n := new(saferith.Nat).SetUint64(v)
	n.Mod(n, f.p)
	return &Element{f: f, v: n}
}

// FromBytes builds an Element from a big-endian magnitude, reduced mod p.
func (f *Field) FromBytes(b []byte) *Element {
	n := new(saferith.Nat).SetBytes(b)
	n.Mod(n, f.p)
	return &Element{f: f, v: n}
}

// Random draws a uniform Element using crypto/rand, for dealer-side
// randomness generation (Beaver triples and friends).
func (f *Field) Random() (*Element, error) {
	byteLen := (f.p.BitLen() + 7) / 8
	buf := make([]byte, byteLen+8) // extra bytes to keep the mod-bias negligible
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("field: reading randomness: %w", err)
	}
	return f.FromBytes(buf), nil
}

// ShareAdditive splits secret into n shares that sum to it mod p: the
// dealer pattern every randomness generator (Beaver triples, exponent
// series, decomposed bit-sets, ...) builds on (spec.md §3).
func (f *Field) ShareAdditive(secret *Element, n int) ([]*Element, error) {
	shares := make([]*Element, n)
	sum := f.Zero()
	for i := 0; i < n-1; i++ {
		r, err := f.Random()
		if err != nil {
			return nil, err
		}
		shares[i] = r
		sum = sum.Add(r)
	}
	shares[n-1] = secret.Sub(sum)
	return shares, nil
}

// Element is one value in a Field.
type Element struct {
	f *Field
	v *saferith.Nat
}

func (e *Element) checkField(other *Element) {
	if e.f != other.f {
		panic("field: operands belong to different fields")
	}
}

// SameField reports whether e is an element of f, i.e. whether passing e to
// an operation on another element of f is safe. Callers that accept
// pre-shared randomness from a caller-chosen field (protocols/compare's
// Aux.Bits, protocols/modconvup's Aux.Bits) should check this before use,
// since a mismatch only otherwise surfaces as checkField's panic deep
// inside the arithmetic.
func (e *Element) SameField(f *Field) bool { return e.f == f }

// Add returns e + other mod p.
func (e *Element) Add(other *Element) *Element {
	e.checkField(other)
	return &Element{f: e.f, v: new(saferith.Nat).ModAdd(e.v, other.v, e.f.p)}
}

// Sub returns e - other mod p.
func (e *Element) Sub(other *Element) *Element {
	e.checkField(other)
	return &Element{f: e.f, v: new(saferith.Nat).ModSub(e.v, other.v, e.f.p)}
}

// Mul returns e * other mod p.
func (e *Element) Mul(other *Element) *Element {
	e.checkField(other)
	return &Element{f: e.f, v: new(saferith.Nat).ModMul(e.v, other.v, e.f.p)}
}

// Neg returns -e mod p.
func (e *Element) Neg() *Element {
	return &Element{f: e.f, v: new(saferith.Nat).ModNeg(e.v, e.f.p)}
}

// Inverse returns e^-1 mod p via Fermat's little theorem (p prime), as
// e^(p-2). Panics if e is zero.
func (e *Element) Inverse() *Element {
	if e.IsZero() {
		panic("field: inverse of zero")
	}
	pMinusTwo := new(big.Int).Sub(e.f.p.Big(), big.NewInt(2))
	exp := new(saferith.Nat).SetBytes(pMinusTwo.Bytes())
	inv := new(saferith.Nat).Exp(e.v, exp, e.f.p)
	return &Element{f: e.f, v: inv}
}

// Equal reports whether e and other encode the same field value.
func (e *Element) Equal(other *Element) bool {
	e.checkField(other)
	return e.v.Big().Cmp(other.v.Big()) == 0
}

// IsZero reports whether e is the additive identity.
func (e *Element) IsZero() bool {
	return e.v.Big().Sign() == 0
}

// Bytes returns e's canonical big-endian magnitude, padded to the modulus's
// byte length so every party encodes the same value identically.
func (e *Element) Bytes() []byte {
	byteLen := (e.f.p.BitLen() + 7) / 8
	out := make([]byte, byteLen)
	e.v.Big().FillBytes(out)
	return out
}

// Bit returns the i-th least-significant bit (0 = LSB) of e's canonical
// representative in [0, p), for protocols that bit-decompose a revealed
// value locally (e.g. protocols/compare).
func (e *Element) Bit(i int) byte {
	return byte(e.v.Big().Bit(i))
}

// WriteTo appends e to a codec buffer as a length-prefixed big number.
func (e *Element) WriteTo(b *codec.Buffer) error {
	return b.WriteBigNum(e.v)
}

// ReadFrom reads an Element belonging to f from a codec buffer.
func (f *Field) ReadFrom(b *codec.Buffer) (*Element, error) {
	n, err := b.ReadBigNum()
	if err != nil {
		return nil, err
	}
	n.Mod(n, f.p)
	return &Element{f: f, v: n}, nil
}
