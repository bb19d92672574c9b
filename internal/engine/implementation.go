package engine

import (
	"github.com/fortissimo/mpc/pkg/bus"
	"github.com/fortissimo/mpc/pkg/party"
)

// Implementation is one party's local embodiment of a protocol: the owned
// state and handler callbacks behind a fronctocol instance (spec.md §3).
//
// Init is called once all of the instance's peer ids are known. The other
// three callbacks resume the instance in response to, respectively, a wire
// message, a child's completion, and a previously-promised child's
// completion. Each returns the actions the instance wants to take next, or
// an error, which the engine treats as an abort.
type Implementation interface {
	Name() string
	Init() ([]Action, error)
	HandleReceive(msg bus.IncomingMessage) ([]Action, error)
	HandleComplete(child Implementation) ([]Action, error)
	HandlePromise(child Implementation) ([]Action, error)
}

// instance is one party's bookkeeping for a single fronctocol: the
// Implementation plus everything the engine needs to route messages to it
// and tear it down (spec.md §3). Owned by the engine's id map; parent is a
// non-owning back-reference.
type instance struct {
	id     uint64
	peers  *party.Set
	parent *instance
	impl   Implementation

	cradle []*instance
	womb   []*instance

	caches []cachedMessage

	completed bool
	collected bool
	promised  bool

	// promise is set iff this instance was created via PromiseInvoke; it
	// lets Await locate the instance to attach itself as parent.
	promise *Promise
}

type cachedMessage struct {
	controlBlock uint8
	cache        bus.Cache
}
