package engine

import (
	"github.com/fortissimo/mpc/pkg/bus"
	"github.com/fortissimo/mpc/pkg/party"
)

// Action is one of the five things a fronctocol's handler may emit after
// being entered: Send, Invoke, Promise, Await, Complete (spec.md §4.D). An
// Abort is modeled as an error return from a handler rather than an Action,
// since it always supersedes anything else the handler might have emitted.
type Action interface {
	isAction()
}

// Send emits one outgoing message. The engine prepends the PAYLOAD header
// before handing it to the transport.
type Send struct {
	Message bus.OutgoingMessage
}

func (Send) isAction() {}

// Invoke starts a child fronctocol, linked to the emitting instance as its
// parent.
type Invoke struct {
	Implementation Implementation
	Peers          *party.Set
}

func (Invoke) isAction() {}

// PromiseInvoke starts a child fronctocol whose completion is decoupled from any
// awaiter until an Await names it (spec.md glossary: Promise). Handle must
// be a fresh, not-yet-used *Promise; the engine fills it in.
type PromiseInvoke struct {
	Implementation Implementation
	Peers          *party.Set
	Handle         *Promise
}

func (PromiseInvoke) isAction() {}

// Await connects a previously promised child to the emitting instance as
// its parent, so the child's completion re-enters the awaiter via
// HandlePromise.
type Await struct {
	Handle *Promise
}

func (Await) isAction() {}

// Complete signals that this instance's handler is done: no further
// actions may be emitted by it afterward (spec.md §3 invariant).
type Complete struct{}

func (Complete) isAction() {}

// Promise is an opaque handle a fronctocol holds between emitting a
// PromiseInvoke and later emitting an Await for the same child. Its
// internals are only ever touched by the engine.
type Promise struct {
	inst     *instance
	awaited  bool
	attached bool
}
