// Package identity provides the opaque, ordered, serializable participant
// identity that the fronctocol engine and PeerSet are built around
// (spec.md §3). Identities are secp256k1 compressed public keys, giving a
// natural total order (byte-lexicographic) and a fixed wire width, matching
// how the teacher's threshold-signature protocols name parties.
package identity

import (
	"bytes"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/fortissimo/mpc/pkg/codec"
)

// Size is the fixed wire width of an Identity: a compressed secp256k1 point.
const Size = 33

// ID is an opaque, totally ordered, equality-comparable participant
// identity. The zero value is not a valid identity.
type ID struct {
	raw [Size]byte
}

// FromPublicKey builds an Identity from a secp256k1 public key.
func FromPublicKey(pub *secp256k1.PublicKey) ID {
	var id ID
	copy(id.raw[:], pub.SerializeCompressed())
	return id
}

// FromBytes parses a previously-serialized identity.
func FromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) != Size {
		return id, fmt.Errorf("identity: expected %d bytes, got %d", Size, len(b))
	}
	if _, err := secp256k1.ParsePubKey(b); err != nil {
		return id, fmt.Errorf("identity: not a valid compressed point: %w", err)
	}
	copy(id.raw[:], b)
	return id, nil
}

// Generate produces a fresh random identity backed by a new secp256k1
// keypair, for tests and simulations.
func Generate() ID {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		// crypto/rand failures are unrecoverable; spec.md §7 treats
		// exhausted entropy as a fatal engineering condition, not one to
		// propagate through every identity-using call site.
		panic(fmt.Errorf("identity: failed to generate key: %w", err))
	}
	return FromPublicKey(priv.PubKey())
}

// Bytes returns the identity's fixed-width wire encoding.
func (id ID) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, id.raw[:])
	return out
}

// Equal reports whether two identities name the same participant.
func (id ID) Equal(other ID) bool {
	return id.raw == other.raw
}

// Less gives the total order used to keep PeerSets stably sorted on every
// party (spec.md §3).
func (id ID) Less(other ID) bool {
	return bytes.Compare(id.raw[:], other.raw[:]) < 0
}

// String renders a short hex form for logs.
func (id ID) String() string {
	return fmt.Sprintf("%x", id.raw[:8])
}

// WriteTo appends the identity to a codec buffer.
func (id ID) WriteTo(b *codec.Buffer) {
	b.Add(id.raw[:])
}

// ReadFrom parses an identity out of a codec buffer.
func ReadFrom(b *codec.Buffer) (ID, error) {
	raw, err := b.Remove(Size)
	if err != nil {
		return ID{}, err
	}
	var id ID
	copy(id.raw[:], raw)
	return id, nil
}
