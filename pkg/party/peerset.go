// Package party implements PeerSet (spec.md §3, §4.B): an ordered set of
// participant identities carrying, per fronctocol instance, each peer's
// remote fronctocol id and completion flag.
package party

import (
	"sort"

	"github.com/fortissimo/mpc/pkg/codec"
	"github.com/fortissimo/mpc/pkg/identity"
)

// InvalidID marks a peer entry whose remote fronctocol id is not yet known.
const InvalidID uint64 = ^uint64(0)

type entry struct {
	id        identity.ID
	peerID    uint64
	completed bool
}

// Set is an ordered collection of identities with per-peer mutable state.
// Ordering is stable and identical on every party: entries are sorted by
// identity. Two Sets are equal iff they contain the same identities.
type Set struct {
	entries []entry
}

// New builds a Set from a list of identities, sorted into canonical order.
func New(ids ...identity.ID) *Set {
	s := &Set{entries: make([]entry, 0, len(ids))}
	for _, id := range ids {
		s.Insert(id)
	}
	return s
}

// Clone returns a deep copy, e.g. for attaching to a freshly invoked child
// fronctocol that starts with the parent's membership but its own id/
// completion state.
func (s *Set) Clone() *Set {
	out := &Set{entries: make([]entry, len(s.entries))}
	copy(out.entries, s.entries)
	return out
}

// CloneFresh returns a copy with membership preserved but all peer ids
// reset to InvalidID and completion flags cleared, for starting a new
// fronctocol instance among the same participants.
func (s *Set) CloneFresh() *Set {
	out := &Set{entries: make([]entry, len(s.entries))}
	for i, e := range s.entries {
		out.entries[i] = entry{id: e.id, peerID: InvalidID, completed: false}
	}
	return out
}

// Insert adds an identity (no-op if already present), keeping entries
// sorted.
func (s *Set) Insert(id identity.ID) {
	i := s.search(id)
	if i < len(s.entries) && s.entries[i].id.Equal(id) {
		return
	}
	s.entries = append(s.entries, entry{})
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = entry{id: id, peerID: InvalidID}
}

// Remove deletes an identity from the set, if present.
func (s *Set) Remove(id identity.ID) {
	i := s.search(id)
	if i < len(s.entries) && s.entries[i].id.Equal(id) {
		s.entries = append(s.entries[:i], s.entries[i+1:]...)
	}
}

// Has reports whether id is a member.
func (s *Set) Has(id identity.ID) bool {
	i := s.search(id)
	return i < len(s.entries) && s.entries[i].id.Equal(id)
}

// Len returns the number of members.
func (s *Set) Len() int { return len(s.entries) }

// IDs returns the members in canonical sorted order.
func (s *Set) IDs() []identity.ID {
	out := make([]identity.ID, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.id
	}
	return out
}

// ForEach visits every member in canonical order. The callback may mutate
// the peer id and completed flag through the pointers it is given.
func (s *Set) ForEach(f func(id identity.ID, peerID *uint64, completed *bool)) {
	for i := range s.entries {
		f(s.entries[i].id, &s.entries[i].peerID, &s.entries[i].completed)
	}
}

// FindPeerID returns the remote fronctocol id known for id, or InvalidID.
func (s *Set) FindPeerID(id identity.ID) uint64 {
	i := s.search(id)
	if i < len(s.entries) && s.entries[i].id.Equal(id) {
		return s.entries[i].peerID
	}
	return InvalidID
}

// SetID unconditionally sets id's remote fronctocol id.
func (s *Set) SetID(id identity.ID, peerID uint64) {
	i := s.search(id)
	if i < len(s.entries) && s.entries[i].id.Equal(id) {
		s.entries[i].peerID = peerID
	}
}

// CheckAndSetID atomically sets id's remote fronctocol id only if it was
// still InvalidID, returning whether the set happened (matching the
// original's checkAndSetId test-and-set semantics, used to detect
// duplicate SYNC delivery).
func (s *Set) CheckAndSetID(id identity.ID, peerID uint64) bool {
	i := s.search(id)
	if i >= len(s.entries) || !s.entries[i].id.Equal(id) {
		return false
	}
	if s.entries[i].peerID != InvalidID {
		return false
	}
	s.entries[i].peerID = peerID
	return true
}

// SetCompleted marks id as having completed this fronctocol instance.
func (s *Set) SetCompleted(id identity.ID) {
	i := s.search(id)
	if i < len(s.entries) && s.entries[i].id.Equal(id) {
		s.entries[i].completed = true
	}
}

// FindCompletionStatus reports whether id has completed.
func (s *Set) FindCompletionStatus(id identity.ID) bool {
	i := s.search(id)
	if i < len(s.entries) && s.entries[i].id.Equal(id) {
		return s.entries[i].completed
	}
	return false
}

// HasAllPeerIDs reports whether every member has a known remote id.
func (s *Set) HasAllPeerIDs() bool {
	for _, e := range s.entries {
		if e.peerID == InvalidID {
			return false
		}
	}
	return true
}

// CheckAllCompleted reports whether every member has completed.
func (s *Set) CheckAllCompleted() bool {
	for _, e := range s.entries {
		if !e.completed {
			return false
		}
	}
	return true
}

// Equal reports whether two sets have the same membership (ignoring
// per-peer mutable state), which is how the engine matches a SYNC
// message's peerset to a cradle/womb entry.
func (s *Set) Equal(other *Set) bool {
	if s == nil || other == nil {
		return s == other
	}
	if len(s.entries) != len(other.entries) {
		return false
	}
	for i := range s.entries {
		if !s.entries[i].id.Equal(other.entries[i].id) {
			return false
		}
	}
	return true
}

func (s *Set) search(id identity.ID) int {
	return sort.Search(len(s.entries), func(i int) bool {
		return !s.entries[i].id.Less(id)
	})
}

// WriteTo emits a u32 count then identities in sorted order.
func (s *Set) WriteTo(b *codec.Buffer) {
	b.WriteUint32(uint32(len(s.entries)))
	for _, e := range s.entries {
		e.id.WriteTo(b)
	}
}

// ReadFrom reconstructs a Set (with all peer ids invalid) from the wire.
func ReadFrom(b *codec.Buffer) (*Set, error) {
	n, err := b.ReadUint32()
	if err != nil {
		return nil, err
	}
	ids := make([]identity.ID, 0, n)
	for i := uint32(0); i < n; i++ {
		id, err := identity.ReadFrom(b)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return New(ids...), nil
}
