// Package engine implements the fronctocol engine (spec.md §4.D): a
// per-party scheduler that owns a tree of active protocol instances,
// matches corresponding instances across parties, routes typed wire
// messages into the right instance, advances instances via handler
// callbacks that emit Actions, and tears instances down after remote
// confirmation.
package engine

import (
	"errors"
	"fmt"

	"github.com/fortissimo/mpc/pkg/bus"
	"github.com/fortissimo/mpc/pkg/identity"
	"github.com/fortissimo/mpc/pkg/log"
	"github.com/fortissimo/mpc/pkg/party"
)

// Wire control blocks (spec.md §4.D).
const (
	CtrlSync     uint8 = 0x00
	CtrlPayload  uint8 = 0x01
	CtrlComplete uint8 = 0x02
	CtrlAbort    uint8 = 0x04
)

// MainID is the reserved fronctocol id of the root instance.
const MainID uint64 = 0

// InvalidID is the sentinel fronctocol id carried by ABORT messages, which
// the engine ignores (spec.md §9): it's what lets an abort propagate
// without needing to resolve an existing instance.
const InvalidID uint64 = ^uint64(0)

// AbortError describes an abort together with the peers (if any) blamed
// for it. The engine itself does not construct or return this type.
type AbortError struct {
	Culprits []identity.ID
	Err      error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("fronctocol aborted: %v", e.Err)
}

func (e *AbortError) Unwrap() error { return e.Err }

// NewOutgoing builds an empty outgoing message addressed to recipient. The
// engine never constructs wire bytes itself beyond the header it prepends,
// so it needs a factory from whichever transport is in use.
type NewOutgoing func(recipient identity.ID) bus.OutgoingMessage

// Engine is a single party's fronctocol scheduler.
type Engine struct {
	self        identity.ID
	newOutgoing NewOutgoing

	nextID      uint64
	instances   map[uint64]*instance
	initialized bool
	finished    bool
	aborted     bool
}

// New builds an Engine for party self. newOutgoing constructs outgoing
// messages for the transport in use (pkg/bus/memory is the one this module
// provides).
func New(self identity.ID, newOutgoing NewOutgoing) *Engine {
	return &Engine{
		self:        self,
		newOutgoing: newOutgoing,
		nextID:      1,
		instances:   make(map[uint64]*instance),
	}
}

// Init installs the root ("main") fronctocol and runs it to its first
// suspension point, returning whatever it wants sent out.
func (e *Engine) Init(main Implementation, peers *party.Set) ([]bus.OutgoingMessage, error) {
	if e.initialized {
		return nil, errors.New("engine: init invoked multiple times")
	}
	rootPeers := peers.Clone()
	rootPeers.ForEach(func(_ identity.ID, peerID *uint64, _ *bool) {
		*peerID = MainID
	})
	root := &instance{id: MainID, peers: rootPeers, impl: main}
	e.instances[MainID] = root
	e.initialized = true

	var out []bus.OutgoingMessage
	actions, err := main.Init()
	if err != nil {
		e.abort(err, nil, &out)
		return out, nil
	}
	if err := e.handleActions(root, actions, &out); err != nil {
		e.abort(err, nil, &out)
	}
	e.drainCaches(root, &out)
	return out, nil
}

// HandleReceive feeds one inbound wire message through the engine.
func (e *Engine) HandleReceive(imsg bus.IncomingMessage) ([]bus.OutgoingMessage, error) {
	var out []bus.OutgoingMessage

	ctrlBlock, err := imsg.Buf().ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("engine: malformed message header: %w", err)
	}
	fronctocolID, err := imsg.Buf().ReadUint64()
	if err != nil {
		return nil, fmt.Errorf("engine: malformed message header: %w", err)
	}

	if e.aborted {
		imsg.Clear()
		return out, nil
	}

	if ctrlBlock == CtrlAbort {
		log.Warn("abort received", "from", imsg.Sender())
		imsg.Clear()
		e.abort(fmt.Errorf("abort received from %s", imsg.Sender()), []identity.ID{imsg.Sender()}, &out)
		return out, nil
	}

	inst, ok := e.instances[fronctocolID]
	if !ok {
		log.Warn("message for unknown fronctocol", "from", imsg.Sender(), "id", fronctocolID)
		return out, nil
	}

	if !inst.peers.HasAllPeerIDs() {
		inst.caches = append(inst.caches, cachedMessage{controlBlock: ctrlBlock, cache: imsg.CreateCache(ctrlBlock)})
		return out, nil
	}

	e.distribute(ctrlBlock, imsg, inst, &out)
	return out, nil
}

// IsFinished reports whether this party's own root fronctocol has
// completed, regardless of whether other parties have.
func (e *Engine) IsFinished() bool { return e.finished }

// IsClosed reports whether the root has completed and every instance this
// party tracked has been fully torn down (all peers confirmed complete).
func (e *Engine) IsClosed() bool { return e.finished && len(e.instances) == 0 }

// IsAborted reports whether this engine has aborted. Monotonic: never
// resets once true (spec.md §8).
func (e *Engine) IsAborted() bool { return e.aborted }

// NumFronctocols returns the number of live (un-erased) instances, for
// diagnostics and tests.
func (e *Engine) NumFronctocols() int { return len(e.instances) }

func (e *Engine) distribute(ctrlBlock uint8, imsg bus.IncomingMessage, inst *instance, out *[]bus.OutgoingMessage) {
	switch ctrlBlock {
	case CtrlSync:
		e.handleSync(imsg, inst, out)
	case CtrlPayload:
		e.handlePayload(imsg, inst, out)
	case CtrlComplete:
		e.handleCompleteMessage(imsg, inst)
	default:
		log.Warn("unknown control block", "ctrl", ctrlBlock)
	}
}

func (e *Engine) drainCaches(inst *instance, out *[]bus.OutgoingMessage) {
	caches := inst.caches
	inst.caches = nil
	for _, c := range caches {
		e.distribute(c.controlBlock, c.cache.Uncache(), inst, out)
	}
}

func (e *Engine) handleSync(imsg bus.IncomingMessage, parent *instance, out *[]bus.OutgoingMessage) {
	peerset, err := party.ReadFrom(imsg.Buf())
	if err != nil {
		e.abort(fmt.Errorf("engine: malformed SYNC peerset: %w", err), nil, out)
		return
	}
	peerChildID, err := imsg.Buf().ReadUint64()
	if err != nil {
		e.abort(fmt.Errorf("engine: malformed SYNC child id: %w", err), nil, out)
		return
	}
	sender := imsg.Sender()

	for i, child := range parent.cradle {
		if child.peers.Equal(peerset) && child.peers.CheckAndSetID(sender, peerChildID) {
			if child.peers.HasAllPeerIDs() {
				e.initInstance(child, out)
				parent.cradle = append(parent.cradle[:i], parent.cradle[i+1:]...)
			}
			return
		}
	}

	for _, child := range parent.womb {
		if child.peers.Equal(peerset) && child.peers.CheckAndSetID(sender, peerChildID) {
			return
		}
	}

	fresh := peerset.CloneFresh()
	fresh.SetID(sender, peerChildID)
	parent.womb = append(parent.womb, &instance{peers: fresh})
}

func (e *Engine) handlePayload(imsg bus.IncomingMessage, inst *instance, out *[]bus.OutgoingMessage) {
	if inst.completed {
		log.Warn("payload delivered to completed fronctocol", "id", inst.id)
	}
	actions, err := inst.impl.HandleReceive(imsg)
	if err != nil {
		e.abort(err, nil, out)
		return
	}
	if err := e.handleActions(inst, actions, out); err != nil {
		e.abort(err, nil, out)
	}
}

func (e *Engine) handleCompleteMessage(imsg bus.IncomingMessage, inst *instance) {
	inst.peers.SetCompleted(imsg.Sender())
	if inst.collected && inst.peers.CheckAllCompleted() {
		if inst.id == MainID {
			e.finished = true
		}
		delete(e.instances, inst.id)
	}
}

func (e *Engine) initInstance(inst *instance, out *[]bus.OutgoingMessage) {
	actions, err := inst.impl.Init()
	if err != nil {
		e.abort(err, nil, out)
		return
	}
	if err := e.handleActions(inst, actions, out); err != nil {
		e.abort(err, nil, out)
		return
	}
	e.drainCaches(inst, out)
}

func (e *Engine) handleActions(inst *instance, actions []Action, out *[]bus.OutgoingMessage) error {
	for _, action := range actions {
		if e.aborted {
			return nil
		}
		switch a := action.(type) {
		case Send:
			e.handleSend(inst, a, out)
		case Invoke:
			e.handleInvoke(inst, a.Implementation, a.Peers, false, nil, out)
		case PromiseInvoke:
			e.handleInvoke(inst, a.Implementation, a.Peers, true, a.Handle, out)
		case Await:
			if err := e.handleAwait(inst, a, out); err != nil {
				return err
			}
		case Complete:
			e.handleComplete(inst, out)
		default:
			return fmt.Errorf("engine: unrecognized action %T", action)
		}
	}
	return nil
}

func (e *Engine) handleSend(inst *instance, action Send, out *[]bus.OutgoingMessage) {
	omsg := action.Message
	peerID := inst.peers.FindPeerID(omsg.Recipient())
	if peerID == party.InvalidID {
		log.Warn("sending message to a non-peer", "recipient", omsg.Recipient())
	}
	var header [9]byte
	header[0] = CtrlPayload
	putUint64(header[1:], peerID)
	omsg.Buf().Prepend(header[:])
	*out = append(*out, omsg)
}

func (e *Engine) handleInvoke(parent *instance, impl Implementation, peers *party.Set, promised bool, handle *Promise, out *[]bus.OutgoingMessage) {
	childID := e.nextID
	e.nextID++

	var child *instance
	for i, w := range parent.womb {
		if w.peers.Equal(peers) && w.peers.CheckAndSetID(e.self, childID) {
			child = w
			parent.womb = append(parent.womb[:i], parent.womb[i+1:]...)
			break
		}
	}
	if child == nil {
		fresh := peers.CloneFresh()
		fresh.SetID(e.self, childID)
		child = &instance{peers: fresh}
	}

	child.id = childID
	child.impl = impl
	child.promised = promised
	if promised {
		child.parent = nil
		if handle != nil {
			handle.inst = child
		}
		child.promise = handle
	} else {
		child.parent = parent
	}

	child.peers.ForEach(func(peerIdentity identity.ID, _ *uint64, _ *bool) {
		if peerIdentity.Equal(e.self) {
			return
		}
		peerParentID := parent.peers.FindPeerID(peerIdentity)
		omsg := e.newOutgoing(peerIdentity)
		var header [9]byte
		header[0] = CtrlSync
		putUint64(header[1:], peerParentID)
		omsg.Buf().Add(header[:])
		child.peers.WriteTo(omsg.Buf())
		omsg.Buf().WriteUint64(child.id)
		*out = append(*out, omsg)
	})

	e.instances[child.id] = child

	if child.peers.HasAllPeerIDs() {
		e.initInstance(child, out)
	} else {
		parent.cradle = append(parent.cradle, child)
	}
}

func (e *Engine) handleAwait(inst *instance, action Await, out *[]bus.OutgoingMessage) error {
	p := action.Handle
	if p == nil || p.inst == nil {
		return errors.New("engine: await of an unresolved promise")
	}
	if p.attached {
		return errors.New("engine: promise awaited more than once")
	}
	child := p.inst
	if child.parent != nil {
		return errors.New("engine: promise already has a parent")
	}
	child.parent = inst
	p.attached = true

	if child.completed {
		actions, err := inst.impl.HandlePromise(child.impl)
		if err != nil {
			return err
		}
		if err := e.handleActions(inst, actions, out); err != nil {
			return err
		}
		child.collected = true
		if child.peers.CheckAllCompleted() {
			delete(e.instances, child.id)
		}
	}
	return nil
}

func (e *Engine) handleComplete(inst *instance, out *[]bus.OutgoingMessage) {
	inst.completed = true
	inst.peers.SetCompleted(e.self)

	inst.peers.ForEach(func(peerIdentity identity.ID, peerID *uint64, _ *bool) {
		if peerIdentity.Equal(e.self) {
			return
		}
		omsg := e.newOutgoing(peerIdentity)
		var header [9]byte
		header[0] = CtrlComplete
		putUint64(header[1:], *peerID)
		omsg.Buf().Add(header[:])
		*out = append(*out, omsg)
	})

	if inst.id != MainID && inst.parent != nil {
		var actions []Action
		var err error
		if inst.promised {
			actions, err = inst.parent.impl.HandlePromise(inst.impl)
		} else {
			actions, err = inst.parent.impl.HandleComplete(inst.impl)
		}
		if err != nil {
			e.abort(err, nil, out)
			return
		}
		if err := e.handleActions(inst.parent, actions, out); err != nil {
			e.abort(err, nil, out)
			return
		}
		inst.collected = true
	} else if inst.id == MainID {
		e.finished = true
		inst.collected = true
	}

	if inst.collected && inst.peers.CheckAllCompleted() {
		delete(e.instances, inst.id)
	}
}

func (e *Engine) abort(err error, culprits []identity.ID, out *[]bus.OutgoingMessage) {
	if e.aborted {
		return
	}
	e.aborted = true
	log.Error("fronctocol engine aborting", "err", err)

	main, ok := e.instances[MainID]
	if !ok {
		return
	}
	main.peers.ForEach(func(peerIdentity identity.ID, _ *uint64, _ *bool) {
		if peerIdentity.Equal(e.self) {
			return
		}
		omsg := e.newOutgoing(peerIdentity)
		var header [9]byte
		header[0] = CtrlAbort
		putUint64(header[1:], InvalidID)
		omsg.Buf().Add(header[:])
		*out = append(*out, omsg)
	})
}

func putUint64(b []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}
