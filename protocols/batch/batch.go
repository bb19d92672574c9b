// Package batch implements the Batch combinator (spec.md §4.I): runs a
// uniform vector of sibling fronctocols as if they were one, so a caller
// that needs N independent instances of the same sub-protocol (N columns of
// a Waksman swap gate, N comparisons in a sort round) pays for one round
// trip instead of N, grounded on original_source/src/main/cpp/ff/Batch.t.h.
//
// Batch drives its children directly, maintaining one call stack per slot
// (mirroring the real engine's instance tree) rather than handing Invoke
// actions back to the real engine: when a slot's active node emits Invoke,
// Batch pushes the invoked implementation onto that slot's stack and calls
// its Init() immediately (no wire round trip is needed merely to start a
// child); when a node emits Complete, Batch pops it and delivers it to its
// stack parent via HandleComplete, continuing to drive until a slot either
// needs the network (a Send) or has no parent left (the slot is done).
// Checking round-action uniformity — every slot reaching a Send addressed
// to the same recipient, or every slot completing, at the same stack depth
// — happens once all slots have been driven as far as they can go locally.
// Any Await, or any shape mismatch across slots, aborts the batch.
package batch

import (
	"fmt"

	"github.com/fortissimo/mpc/internal/engine"
	"github.com/fortissimo/mpc/pkg/bus"
	"github.com/fortissimo/mpc/pkg/codec"
	"github.com/fortissimo/mpc/pkg/identity"
)

// Batch is the fronctocol implementation wrapping a vector of sibling
// children as one instance.
type Batch struct {
	Self      identity.ID
	Transport func(identity.ID) bus.OutgoingMessage

	stacks [][]engine.Implementation
}

// New builds a Batch over an initial generation of sibling children. All
// children must be constructed over the same peer set Batch itself is
// invoked with.
func New(self identity.ID, transport func(identity.ID) bus.OutgoingMessage, children []engine.Implementation) *Batch {
	stacks := make([][]engine.Implementation, len(children))
	for i, c := range children {
		stacks[i] = []engine.Implementation{c}
	}
	return &Batch{Self: self, Transport: transport, stacks: stacks}
}

func (b *Batch) Name() string { return "batch" }

func (b *Batch) Init() ([]engine.Action, error) {
	actions := make([][]engine.Action, len(b.stacks))
	for i := range b.stacks {
		a, err := b.stacks[i][len(b.stacks[i])-1].Init()
		if err != nil {
			return nil, fmt.Errorf("batch: slot %d init: %w", i, err)
		}
		actions[i] = a
	}
	return b.advance(actions)
}

func (b *Batch) HandleReceive(msg bus.IncomingMessage) ([]engine.Action, error) {
	sender := msg.Sender()
	actions := make([][]engine.Action, len(b.stacks))
	for i := range b.stacks {
		raw, err := msg.Buf().ReadBytes()
		if err != nil {
			return nil, fmt.Errorf("batch: malformed sub-message %d: %w", i, err)
		}
		top := b.stacks[i][len(b.stacks[i])-1]
		a, err := top.HandleReceive(&subMessage{sender: sender, buf: codec.WrapBuffer(raw)})
		if err != nil {
			return nil, fmt.Errorf("batch: slot %d: %w", i, err)
		}
		actions[i] = a
	}
	return b.advance(actions)
}

// advance drives every slot as far as it can go locally, then merges the
// resulting per-slot action lists into Batch's own action list.
func (b *Batch) advance(actions [][]engine.Action) ([]engine.Action, error) {
	resolved := make([][]engine.Action, len(actions))
	for i, a := range actions {
		r, err := b.driveSlot(i, a)
		if err != nil {
			return nil, err
		}
		resolved[i] = r
	}
	return b.merge(resolved)
}

// driveSlot processes Invoke (push + Init) and Complete (pop + parent
// HandleComplete) locally for one slot until it reaches a round that
// genuinely needs the network, or the slot's entire stack unwinds.
func (b *Batch) driveSlot(i int, actions []engine.Action) ([]engine.Action, error) {
	for {
		if len(actions) == 0 {
			return actions, nil
		}
		if len(actions) == 1 {
			switch act := actions[0].(type) {
			case engine.Invoke:
				b.stacks[i] = append(b.stacks[i], act.Implementation)
				next, err := act.Implementation.Init()
				if err != nil {
					return nil, fmt.Errorf("slot %d child init: %w", i, err)
				}
				actions = next
				continue
			case engine.Complete:
				next, done, err := b.popComplete(i)
				if err != nil {
					return nil, err
				}
				if done {
					return []engine.Action{engine.Complete{}}, nil
				}
				actions = next
				continue
			default:
				return actions, nil
			}
		}

		if _, ok := actions[len(actions)-1].(engine.Complete); !ok {
			return actions, nil
		}
		sends := actions[:len(actions)-1]
		next, done, err := b.popComplete(i)
		if err != nil {
			return nil, err
		}
		if done {
			return actions, nil
		}
		combined := make([]engine.Action, 0, len(sends)+len(next))
		combined = append(combined, sends...)
		combined = append(combined, next...)
		actions = combined
	}
}

// popComplete pops slot i's active node (it just completed) and, if a stack
// parent remains, delivers the completion via HandleComplete. done reports
// whether the slot's whole stack has now unwound.
func (b *Batch) popComplete(i int) (next []engine.Action, done bool, err error) {
	n := len(b.stacks[i])
	completed := b.stacks[i][n-1]
	b.stacks[i] = b.stacks[i][:n-1]
	if len(b.stacks[i]) == 0 {
		return nil, true, nil
	}
	parent := b.stacks[i][len(b.stacks[i])-1]
	next, err = parent.HandleComplete(completed)
	if err != nil {
		return nil, false, fmt.Errorf("slot %d parent handle-complete: %w", i, err)
	}
	return next, false, nil
}

// merge checks round-action uniformity across slots and combines their
// locally-resolved action lists into Batch's own.
func (b *Batch) merge(resolved [][]engine.Action) ([]engine.Action, error) {
	zero := 0
	for _, r := range resolved {
		if len(r) == 0 {
			zero++
		}
	}
	if zero == len(resolved) {
		return []engine.Action{}, nil
	}
	if zero != 0 {
		return nil, fmt.Errorf("batch: %d of %d slots are idle while others act (round-action uniformity violated)", zero, len(resolved))
	}

	maxLen := 0
	for _, r := range resolved {
		if len(r) > maxLen {
			maxLen = len(r)
		}
	}

	var merged []engine.Action
	for pos := 0; pos < maxLen; pos++ {
		var recipient identity.ID
		haveRecipient := false
		isComplete := false
		for i, r := range resolved {
			if pos >= len(r) {
				return nil, fmt.Errorf("batch: slot %d round shorter than its siblings (round-action uniformity violated)", i)
			}
			switch act := r[pos].(type) {
			case engine.Send:
				if !haveRecipient {
					recipient = act.Message.Recipient()
					haveRecipient = true
				} else if !act.Message.Recipient().Equal(recipient) {
					return nil, fmt.Errorf("batch: slot %d sent to a different recipient than its siblings", i)
				}
			case engine.Complete:
				isComplete = true
			default:
				return nil, fmt.Errorf("batch: unsupported batched action %T (await is not supported)", act)
			}
		}
		if isComplete {
			for i, r := range resolved {
				if _, ok := r[pos].(engine.Complete); !ok {
					return nil, fmt.Errorf("batch: slot %d round mismatch: expected Complete", i)
				}
			}
			merged = append(merged, engine.Complete{})
			continue
		}
		omsg := b.Transport(recipient)
		for i, r := range resolved {
			send, ok := r[pos].(engine.Send)
			if !ok {
				return nil, fmt.Errorf("batch: slot %d round mismatch: expected Send", i)
			}
			omsg.Buf().WriteBytes(send.Message.Buf().Bytes())
		}
		merged = append(merged, engine.Send{Message: omsg})
	}
	return merged, nil
}

func (b *Batch) HandleComplete(engine.Implementation) ([]engine.Action, error) {
	return nil, fmt.Errorf("batch: has no engine-level children (all batching is internal)")
}

func (b *Batch) HandlePromise(engine.Implementation) ([]engine.Action, error) {
	return nil, fmt.Errorf("batch: has no promises")
}

// subMessage adapts one length-prefixed slice of a merged Batch message into
// a bus.IncomingMessage for a single slot's HandleReceive.
type subMessage struct {
	sender identity.ID
	buf    *codec.Buffer
}

func (m *subMessage) Sender() identity.ID { return m.sender }
func (m *subMessage) Buf() *codec.Buffer  { return m.buf }
func (m *subMessage) Clear()              { m.buf.Clear() }
func (m *subMessage) CreateCache(uint8) bus.Cache {
	panic("batch: sub-messages are resolved synchronously and are never cached")
}
