// Package reveal implements Reveal (spec.md §4.F): every party sends its
// share of a value to a designated revealer, who reconstructs it (summing
// mod p for arithmetic shares, XORing for boolean shares) and broadcasts the
// opened value back, grounded on
// original_source/src/main/cpp/mpc/Reveal.t.h.
package reveal

import (
	"errors"
	"fmt"

	"github.com/fortissimo/mpc/internal/engine"
	"github.com/fortissimo/mpc/pkg/bus"
	"github.com/fortissimo/mpc/pkg/field"
	"github.com/fortissimo/mpc/pkg/identity"
)

// Reveal is the fronctocol implementation for one revealed value. Construct
// one per value to reveal; batch multiple reveals through protocols/batch
// rather than reusing an instance.
type Reveal struct {
	Self      identity.ID
	Revealer  identity.ID
	Others    []identity.ID // every participant besides Self
	Boolean   bool
	F         *field.Field  // unused when Boolean
	Share     *field.Element
	XORShare  byte
	Transport func(identity.ID) bus.OutgoingMessage

	Opened    *field.Element
	OpenedXOR byte

	sum           *field.Element
	xorAcc        byte
	receivedCount int
}

// New builds an arithmetic Reveal instance.
func New(self, revealer identity.ID, others []identity.ID, f *field.Field, share *field.Element, transport func(identity.ID) bus.OutgoingMessage) *Reveal {
	return &Reveal{Self: self, Revealer: revealer, Others: others, F: f, Share: share, Transport: transport}
}

// NewBoolean builds a boolean (XOR-shared) Reveal instance.
func NewBoolean(self, revealer identity.ID, others []identity.ID, share byte, transport func(identity.ID) bus.OutgoingMessage) *Reveal {
	return &Reveal{Self: self, Revealer: revealer, Others: others, Boolean: true, XORShare: share, Transport: transport}
}

func (r *Reveal) Name() string { return "reveal" }

func (r *Reveal) Init() ([]engine.Action, error) {
	if r.Self.Equal(r.Revealer) {
		if r.Boolean {
			r.xorAcc = r.XORShare
		} else {
			r.sum = r.F.Zero().Add(r.Share)
		}
		if len(r.Others) == 0 {
			return r.finish()
		}
		return nil, nil
	}
	omsg := r.Transport(r.Revealer)
	if r.Boolean {
		omsg.Buf().WriteUint8(r.XORShare)
	} else if err := r.Share.WriteTo(omsg.Buf()); err != nil {
		return nil, err
	}
	return []engine.Action{engine.Send{Message: omsg}}, nil
}

func (r *Reveal) HandleReceive(msg bus.IncomingMessage) ([]engine.Action, error) {
	if r.Self.Equal(r.Revealer) {
		if r.Boolean {
			b, err := msg.Buf().ReadUint8()
			if err != nil {
				return nil, fmt.Errorf("reveal: malformed share from %s: %w", msg.Sender(), err)
			}
			r.xorAcc ^= b
		} else {
			e, err := r.F.ReadFrom(msg.Buf())
			if err != nil {
				return nil, fmt.Errorf("reveal: malformed share from %s: %w", msg.Sender(), err)
			}
			r.sum = r.sum.Add(e)
		}
		r.receivedCount++
		if r.receivedCount == len(r.Others) {
			return r.finish()
		}
		return nil, nil
	}

	if r.Boolean {
		b, err := msg.Buf().ReadUint8()
		if err != nil {
			return nil, fmt.Errorf("reveal: malformed opened value: %w", err)
		}
		r.OpenedXOR = b
	} else {
		e, err := r.F.ReadFrom(msg.Buf())
		if err != nil {
			return nil, fmt.Errorf("reveal: malformed opened value: %w", err)
		}
		r.Opened = e
	}
	return []engine.Action{engine.Complete{}}, nil
}

func (r *Reveal) finish() ([]engine.Action, error) {
	if r.Boolean {
		r.OpenedXOR = r.xorAcc
	} else {
		r.Opened = r.sum
	}
	actions := make([]engine.Action, 0, len(r.Others)+1)
	for _, p := range r.Others {
		omsg := r.Transport(p)
		if r.Boolean {
			omsg.Buf().WriteUint8(r.OpenedXOR)
		} else if err := r.Opened.WriteTo(omsg.Buf()); err != nil {
			return nil, err
		}
		actions = append(actions, engine.Send{Message: omsg})
	}
	actions = append(actions, engine.Complete{})
	return actions, nil
}

func (r *Reveal) HandleComplete(engine.Implementation) ([]engine.Action, error) {
	return nil, errors.New("reveal: has no children")
}

func (r *Reveal) HandlePromise(engine.Implementation) ([]engine.Action, error) {
	return nil, errors.New("reveal: has no promises")
}
