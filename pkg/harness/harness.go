// Package harness drives a set of engines over the in-memory bus until
// quiescence, for tests and simulations (spec.md §5's "transport polls
// sockets, reads a message, feeds it to the engine, drains outgoing").
package harness

import (
	"fmt"

	"github.com/fortissimo/mpc/internal/engine"
	"github.com/fortissimo/mpc/pkg/bus"
	"github.com/fortissimo/mpc/pkg/bus/memory"
	"github.com/fortissimo/mpc/pkg/identity"
)

// Party bundles one participant's engine with its identity for the
// harness's bookkeeping.
type Party struct {
	ID     identity.ID
	Engine *engine.Engine
}

// Run pumps messages across net between engines until every engine is
// closed, aborted, or no further progress can be made. It returns an error
// if any engine aborts.
func Run(net *memory.Network, parties []Party, initial map[identity.ID][]bus.OutgoingMessage) error {
	byID := make(map[identity.ID]*engine.Engine, len(parties))
	for _, p := range parties {
		byID[p.ID] = p.Engine
	}

	deliver := func(from identity.ID, msgs []bus.OutgoingMessage) {
		for _, m := range msgs {
			net.Deliver(from, m.(*memory.Message))
		}
	}
	for from, msgs := range initial {
		deliver(from, msgs)
	}

	for rounds := 0; rounds < 1_000_000; rounds++ {
		progressed := false
		for _, to := range parties {
			for _, from := range net.Parties() {
				if from.Equal(to.ID) {
					continue
				}
				inbox := net.Inbox(from, to.ID)
				for {
					select {
					case raw := <-inbox:
						progressed = true
						imsg := memory.NewIncoming(from, raw)
						out, err := to.Engine.HandleReceive(imsg)
						if err != nil {
							return fmt.Errorf("harness: party %s: %w", to.ID, err)
						}
						deliver(to.ID, out)
					default:
						goto drained
					}
				}
			drained:
			}
		}
		if !progressed {
			break
		}
	}

	for _, p := range parties {
		if p.Engine.IsAborted() {
			return fmt.Errorf("harness: party %s aborted", p.ID)
		}
	}
	return nil
}

// AllClosed reports whether every party's engine reached IsClosed.
func AllClosed(parties []Party) bool {
	for _, p := range parties {
		if !p.Engine.IsClosed() {
			return false
		}
	}
	return true
}
