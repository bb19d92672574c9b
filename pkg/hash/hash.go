// Package hash provides the blake3-based session and broadcast hashing the
// engine and protocols share, matching the teacher's use of
// github.com/zeebo/blake3 for domain-separated key derivation and keyed
// hashing (protocols/frost/sign/round1.go).
package hash

import (
	"sort"

	"github.com/zeebo/blake3"

	"github.com/fortissimo/mpc/pkg/identity"
)

// SessionID derives a 32-byte session identifier from a protocol name and
// the sorted set of participant identities, so every party computes the
// same id without needing a coordinator to hand one out.
func SessionID(protocol string, parties []identity.ID) [32]byte {
	h := blake3.New()
	_, _ = h.Write([]byte(protocol))
	sorted := append([]identity.ID(nil), parties...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })
	for _, p := range sorted {
		b := p.Bytes()
		_, _ = h.Write(b)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Broadcast accumulates bytes across a round the way the teacher's
// round.Helper does for its broadcast-consistency hash, then finalizes to a
// 32-byte digest every party compares to detect a forked view of the round
// (spec.md's equivalent is sync-message/peerset agreement; this covers
// payload-level equivocation instead).
type Broadcast struct {
	h *blake3.Hasher
}

// NewBroadcast starts a fresh broadcast hash keyed to a session id, so
// hashes from different sessions never collide.
func NewBroadcast(sessionID [32]byte) *Broadcast {
	key := make([]byte, 32)
	blake3.DeriveKey("fortissimo mpc broadcast hash", sessionID[:], key)
	h, _ := blake3.NewKeyed(key)
	return &Broadcast{h: h}
}

// Write feeds bytes into the running hash.
func (b *Broadcast) Write(p []byte) {
	_, _ = b.h.Write(p)
}

// Sum finalizes the hash. Safe to call more than once; does not consume the
// running state.
func (b *Broadcast) Sum() [32]byte {
	var out [32]byte
	copy(out[:], b.h.Sum(nil))
	return out
}
