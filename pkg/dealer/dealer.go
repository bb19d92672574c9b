// Package dealer implements the randomness dealer/patron pattern (spec.md
// §4.E): a trusted dealer party streams correlated randomness to every
// dataowner patron in fixed-size batches, decoupled from the patron's
// eventual use of it via the engine's promise/await mechanism.
package dealer

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/fortissimo/mpc/internal/engine"
	"github.com/fortissimo/mpc/pkg/bus"
	"github.com/fortissimo/mpc/pkg/codec"
	"github.com/fortissimo/mpc/pkg/identity"
)

// BatchSize is the fixed number of randomness instances the dealer ships
// per wire message, matching the original's "fixed-size batches" framing.
const BatchSize = 16

// Generator produces fresh correlated randomness of kind R: for k fresh
// secrets, one share per non-dealer party such that the shares reconstruct
// each secret. Encode identifies the generator's parameters (modulus,
// length, ...) so the dealer can detect patrons requesting incompatible
// randomness.
type Generator[R any] interface {
	Generate(parties []identity.ID, k int) (map[identity.ID][]R, error)
	Encode() []byte
}

// Codec supplies the wire (de)serialization for one instance of R, since a
// generic type parameter can't carry its own methods without a constraint
// that every randomness kind would otherwise need to implement identically.
type Codec[R any] struct {
	Write func(*codec.Buffer, R) error
	Read  func(*codec.Buffer) (R, error)
}

// Dispenser is a strict FIFO of pre-generated randomness of one kind
// (spec.md §3).
type Dispenser[R any] struct {
	items []R
}

// NewDispenser wraps a slice as a Dispenser, taking ownership of it.
func NewDispenser[R any](items []R) *Dispenser[R] {
	return &Dispenser[R]{items: items}
}

// Size returns the number of instances remaining.
func (d *Dispenser[R]) Size() int { return len(d.items) }

// Get removes and returns the next instance. Depletion is a fatal
// engineering bug per spec.md §7, not a recoverable condition, but this
// package still returns an error rather than panicking so callers can
// decide (the engine's abort path is the intended consumer).
func (d *Dispenser[R]) Get() (R, error) {
	var zero R
	if len(d.items) == 0 {
		return zero, errors.New("dealer: dispenser exhausted")
	}
	v := d.items[0]
	d.items = d.items[1:]
	return v, nil
}

// Insert appends a freshly-arrived instance.
func (d *Dispenser[R]) Insert(v R) { d.items = append(d.items, v) }

// LittleDispenser moves the next k instances into a new Dispenser, failing
// if fewer than k remain.
func (d *Dispenser[R]) LittleDispenser(k int) (*Dispenser[R], error) {
	if k > len(d.items) {
		return nil, fmt.Errorf("dealer: little_dispenser(%d): only %d remain", k, len(d.items))
	}
	out := append([]R(nil), d.items[:k]...)
	d.items = d.items[k:]
	return &Dispenser[R]{items: out}, nil
}

// House is the dealer-side fronctocol: it collects every patron's request,
// resolves disagreements (num_desired escalates to the max asked; Info
// disagreement aborts), and streams fixed-size batches to each patron.
type House[R any] struct {
	self      identity.ID
	patrons   []identity.ID
	gen       Generator[R]
	codec     Codec[R]
	transport func(identity.ID) bus.OutgoingMessage

	pending  map[identity.ID]request
	received int
}

type request struct {
	numDesired uint64
	info       []byte
}

// NewHouse builds the dealer-side implementation for a request from
// patrons (all peers other than self). transport builds outgoing messages,
// matching engine.NewOutgoing's shape.
func NewHouse[R any](self identity.ID, patrons []identity.ID, gen Generator[R], c Codec[R], transport func(identity.ID) bus.OutgoingMessage) *House[R] {
	return &House[R]{self: self, patrons: patrons, gen: gen, codec: c, transport: transport, pending: make(map[identity.ID]request)}
}

func (h *House[R]) Name() string { return "dealer.house" }

func (h *House[R]) Init() ([]engine.Action, error) { return nil, nil }

func (h *House[R]) HandleReceive(msg bus.IncomingMessage) ([]engine.Action, error) {
	numDesired, err := msg.Buf().ReadUint64()
	if err != nil {
		return nil, fmt.Errorf("dealer: house: malformed request: %w", err)
	}
	info, err := msg.Buf().ReadBytes()
	if err != nil {
		return nil, fmt.Errorf("dealer: house: malformed request: %w", err)
	}
	sender := msg.Sender()
	if _, ok := h.pending[sender]; ok {
		return nil, fmt.Errorf("dealer: house: duplicate request from %s", sender)
	}
	h.pending[sender] = request{numDesired: numDesired, info: info}
	h.received++
	if h.received < len(h.patrons) {
		return nil, nil
	}

	var maxDesired uint64
	var refInfo []byte
	for i, p := range h.patrons {
		req := h.pending[p]
		if i == 0 {
			refInfo = req.info
		} else if !bytes.Equal(refInfo, req.info) {
			return nil, fmt.Errorf("dealer: house: patrons disagree on randomness parameters")
		}
		if req.numDesired > maxDesired {
			maxDesired = req.numDesired
		}
	}
	if !bytes.Equal(refInfo, h.gen.Encode()) {
		return nil, fmt.Errorf("dealer: house: patron request does not match configured generator")
	}

	numBatches := (maxDesired + BatchSize - 1) / BatchSize
	if numBatches == 0 {
		numBatches = 1
	}

	var actions []engine.Action
	for b := uint64(0); b < numBatches; b++ {
		shares, err := h.gen.Generate(h.patrons, BatchSize)
		if err != nil {
			return nil, fmt.Errorf("dealer: house: generating batch %d: %w", b, err)
		}
		for _, p := range h.patrons {
			items := shares[p]
			if len(items) != BatchSize {
				return nil, fmt.Errorf("dealer: house: generator returned %d items for %s, want %d", len(items), p, BatchSize)
			}
			omsg := h.newOutgoing(p)
			if b == 0 {
				omsg.Buf().WriteUint64(numBatches)
				omsg.Buf().WriteUint64(BatchSize)
			}
			for _, item := range items {
				if err := h.codec.Write(omsg.Buf(), item); err != nil {
					return nil, fmt.Errorf("dealer: house: encoding batch %d for %s: %w", b, p, err)
				}
			}
			actions = append(actions, engine.Send{Message: omsg})
		}
	}
	actions = append(actions, engine.Complete{})
	return actions, nil
}

func (h *House[R]) HandleComplete(engine.Implementation) ([]engine.Action, error) {
	return nil, errors.New("dealer: house has no children")
}

func (h *House[R]) HandlePromise(engine.Implementation) ([]engine.Action, error) {
	return nil, errors.New("dealer: house has no promises")
}

func (h *House[R]) newOutgoing(to identity.ID) bus.OutgoingMessage {
	return h.transport(to)
}

// Patron is the dataowner-side fronctocol: it requests numDesired instances
// from the dealer and accumulates batches into a Dispenser until it has
// them all, then completes. A Patron can be started via
// engine.PromiseInvoke so the awaiting fronctocol can overlap other work
// while the dealer streams batches.
type Patron[R any] struct {
	self   identity.ID
	dealer identity.ID
	gen    Generator[R]
	codec  Codec[R]
	want   uint64

	transport func(identity.ID) bus.OutgoingMessage

	numBatches       uint64
	perBatch         uint64
	batchesReceived  uint64
	dispenser        *Dispenser[R]
}

// NewPatron builds the patron-side implementation requesting `want`
// instances from dealer.
func NewPatron[R any](self, dealerID identity.ID, want uint64, gen Generator[R], c Codec[R], transport func(identity.ID) bus.OutgoingMessage) *Patron[R] {
	return &Patron[R]{self: self, dealer: dealerID, gen: gen, codec: c, want: want, transport: transport, dispenser: NewDispenser[R](nil)}
}

func (p *Patron[R]) Name() string { return "dealer.patron" }

func (p *Patron[R]) Init() ([]engine.Action, error) {
	omsg := p.transport(p.dealer)
	omsg.Buf().WriteUint64(p.want)
	omsg.Buf().WriteBytes(p.gen.Encode())
	return []engine.Action{engine.Send{Message: omsg}}, nil
}

func (p *Patron[R]) HandleReceive(msg bus.IncomingMessage) ([]engine.Action, error) {
	if p.numBatches == 0 {
		n, err := msg.Buf().ReadUint64()
		if err != nil {
			return nil, fmt.Errorf("dealer: patron: malformed batch header: %w", err)
		}
		per, err := msg.Buf().ReadUint64()
		if err != nil {
			return nil, fmt.Errorf("dealer: patron: malformed batch header: %w", err)
		}
		p.numBatches = n
		p.perBatch = per
	}
	for i := uint64(0); i < p.perBatch; i++ {
		item, err := p.codec.Read(msg.Buf())
		if err != nil {
			return nil, fmt.Errorf("dealer: patron: decoding batch item %d: %w", i, err)
		}
		p.dispenser.Insert(item)
	}
	p.batchesReceived++
	if p.batchesReceived == p.numBatches {
		return []engine.Action{engine.Complete{}}, nil
	}
	return nil, nil
}

func (p *Patron[R]) HandleComplete(engine.Implementation) ([]engine.Action, error) {
	return nil, errors.New("dealer: patron has no children")
}

func (p *Patron[R]) HandlePromise(engine.Implementation) ([]engine.Action, error) {
	return nil, errors.New("dealer: patron has no promises")
}

// Result returns the accumulated randomness. Only meaningful once the
// patron has completed (directly, or via the awaiter's HandlePromise).
func (p *Patron[R]) Result() *Dispenser[R] { return p.dispenser }
