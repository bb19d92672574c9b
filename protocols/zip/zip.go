// Package zip implements ZipAdjacent and ZipReduce (spec.md §2 row K,
// named but not detailed there; grounded on
// original_source/.../mpc/ZipAdjacent.t.h): batched pairwise combinators
// over a list of secret-shared values, which combine many pairs without
// running them one after another. No other package in this module calls
// them.
//
// Adjacent applies the same two-argument combinator to every overlapping
// neighbour pair (list[i], list[i+1]), batched into a single invocation
// regardless of list length, so it costs the rounds of one Op. Reduce instead pairs the list up disjointly
// (list[0] with list[1], list[2] with list[3], ...), carries any odd
// leftover element forward untouched, and repeats round by round until one
// combined value remains — a parallel-prefix reduction of depth O(log n)
// rather than Reduce-via-Adjacent's O(n).
package zip

import (
	"errors"

	"github.com/fortissimo/mpc/internal/engine"
	"github.com/fortissimo/mpc/pkg/bus"
	"github.com/fortissimo/mpc/pkg/field"
	"github.com/fortissimo/mpc/pkg/identity"
	"github.com/fortissimo/mpc/pkg/party"
	"github.com/fortissimo/mpc/protocols/batch"
)

// Op builds the child fronctocol combining a and b. call is a round-global
// call counter so the caller can pull per-call randomness out of a flat
// pool; the returned getter reads the combined result once the child
// fronctocol this call built has completed.
type Op func(call int, a, b *field.Element) (engine.Implementation, func() *field.Element)

// Adjacent runs Op over every overlapping adjacent pair of Items in one
// batch, producing len(Items)-1 results.
type Adjacent struct {
	Self      identity.ID
	PeerSet   *party.Set
	Transport func(identity.ID) bus.OutgoingMessage
	Items     []*field.Element
	Op        Op

	Results []*field.Element

	getters []func() *field.Element
	b       *batch.Batch
}

func NewAdjacent(self identity.ID, peers *party.Set, transport func(identity.ID) bus.OutgoingMessage, items []*field.Element, op Op) *Adjacent {
	return &Adjacent{Self: self, PeerSet: peers, Transport: transport, Items: items, Op: op}
}

func (z *Adjacent) Name() string { return "zip.adjacent" }

func (z *Adjacent) Init() ([]engine.Action, error) {
	n := len(z.Items)
	if n < 2 {
		z.Results = nil
		return []engine.Action{engine.Complete{}}, nil
	}
	children := make([]engine.Implementation, n-1)
	getters := make([]func() *field.Element, n-1)
	for i := 0; i < n-1; i++ {
		child, get := z.Op(i, z.Items[i], z.Items[i+1])
		children[i] = child
		getters[i] = get
	}
	z.getters = getters
	z.b = batch.New(z.Self, z.Transport, children)
	return []engine.Action{engine.Invoke{Implementation: z.b, Peers: z.PeerSet}}, nil
}

func (z *Adjacent) HandleComplete(child engine.Implementation) ([]engine.Action, error) {
	if child != engine.Implementation(z.b) {
		return nil, errors.New("zip: adjacent unexpected child completion")
	}
	results := make([]*field.Element, len(z.getters))
	for i, get := range z.getters {
		results[i] = get()
	}
	z.Results = results
	return []engine.Action{engine.Complete{}}, nil
}

func (z *Adjacent) HandleReceive(bus.IncomingMessage) ([]engine.Action, error) {
	return nil, errors.New("zip: adjacent unexpected direct payload")
}

func (z *Adjacent) HandlePromise(engine.Implementation) ([]engine.Action, error) {
	return nil, errors.New("zip: adjacent has no promises")
}

// Reduce combines Items down to a single value via repeated disjoint
// pairing rounds of Op.
type Reduce struct {
	Self      identity.ID
	PeerSet   *party.Set
	Transport func(identity.ID) bus.OutgoingMessage
	Items     []*field.Element
	Op        Op

	Result *field.Element

	active  []*field.Element
	callIdx int
	getters []func() *field.Element
	b       *batch.Batch
}

func NewReduce(self identity.ID, peers *party.Set, transport func(identity.ID) bus.OutgoingMessage, items []*field.Element, op Op) *Reduce {
	return &Reduce{Self: self, PeerSet: peers, Transport: transport, Items: items, Op: op}
}

func (z *Reduce) Name() string { return "zip.reduce" }

func (z *Reduce) Init() ([]engine.Action, error) {
	if len(z.Items) == 0 {
		return nil, errors.New("zip: reduce needs at least one item")
	}
	z.active = z.Items
	return z.startRound()
}

func (z *Reduce) startRound() ([]engine.Action, error) {
	if len(z.active) == 1 {
		z.Result = z.active[0]
		return []engine.Action{engine.Complete{}}, nil
	}
	pairs := len(z.active) / 2
	children := make([]engine.Implementation, pairs)
	getters := make([]func() *field.Element, pairs)
	for k := 0; k < pairs; k++ {
		child, get := z.Op(z.callIdx, z.active[2*k], z.active[2*k+1])
		z.callIdx++
		children[k] = child
		getters[k] = get
	}
	z.getters = getters
	z.b = batch.New(z.Self, z.Transport, children)
	return []engine.Action{engine.Invoke{Implementation: z.b, Peers: z.PeerSet}}, nil
}

func (z *Reduce) HandleComplete(child engine.Implementation) ([]engine.Action, error) {
	if child != engine.Implementation(z.b) {
		return nil, errors.New("zip: reduce unexpected child completion")
	}
	next := make([]*field.Element, 0, len(z.getters)+1)
	for _, get := range z.getters {
		next = append(next, get())
	}
	if len(z.active)%2 == 1 {
		next = append(next, z.active[len(z.active)-1])
	}
	z.active = next
	return z.startRound()
}

func (z *Reduce) HandleReceive(bus.IncomingMessage) ([]engine.Action, error) {
	return nil, errors.New("zip: reduce unexpected direct payload")
}

func (z *Reduce) HandlePromise(engine.Implementation) ([]engine.Action, error) {
	return nil, errors.New("zip: reduce has no promises")
}
