package engine_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortissimo/mpc/internal/engine"
	"github.com/fortissimo/mpc/pkg/bus"
	"github.com/fortissimo/mpc/pkg/bus/memory"
	"github.com/fortissimo/mpc/pkg/harness"
	"github.com/fortissimo/mpc/pkg/identity"
	"github.com/fortissimo/mpc/pkg/party"
)

// exchangeImpl exchanges one uint32 with a single peer then completes,
// grounded on the original's ExchangeIntFronctocol (see
// original_source/.../ValueSum.test.cpp).
type exchangeImpl struct {
	self    identity.ID
	peer    identity.ID
	myVal   uint32
	peerVal uint32
}

func (e *exchangeImpl) Name() string { return "exchange" }

func (e *exchangeImpl) Init() ([]engine.Action, error) {
	omsg := memory.NewOutgoing(e.peer)
	omsg.Buf().WriteUint32(e.myVal)
	return []engine.Action{engine.Send{Message: omsg}}, nil
}

func (e *exchangeImpl) HandleReceive(msg bus.IncomingMessage) ([]engine.Action, error) {
	v, err := msg.Buf().ReadUint32()
	if err != nil {
		return nil, err
	}
	e.peerVal = v
	return []engine.Action{engine.Complete{}}, nil
}

func (e *exchangeImpl) HandleComplete(engine.Implementation) ([]engine.Action, error) {
	return nil, errors.New("exchange fronctocol shouldn't get complete")
}

func (e *exchangeImpl) HandlePromise(engine.Implementation) ([]engine.Action, error) {
	return nil, errors.New("exchange fronctocol shouldn't get promise")
}

// sumImpl invokes an exchangeImpl with every other party and sums the
// results, grounded on the original's ValueSumFronctocol.
type sumImpl struct {
	self    identity.ID
	others  []identity.ID
	val     uint32
	result  uint32
	pending int
}

func (s *sumImpl) Name() string { return "sum" }

func (s *sumImpl) Init() ([]engine.Action, error) {
	s.result = s.val
	actions := make([]engine.Action, 0, len(s.others))
	for _, p := range s.others {
		ex := &exchangeImpl{self: s.self, peer: p, myVal: s.val}
		actions = append(actions, engine.Invoke{Implementation: ex, Peers: party.New(s.self, p)})
		s.pending++
	}
	return actions, nil
}

func (s *sumImpl) HandleReceive(bus.IncomingMessage) ([]engine.Action, error) {
	return nil, errors.New("sum fronctocol did not expect incoming messages")
}

func (s *sumImpl) HandleComplete(child engine.Implementation) ([]engine.Action, error) {
	ex := child.(*exchangeImpl)
	s.result += ex.peerVal
	s.pending--
	if s.pending == 0 {
		return []engine.Action{engine.Complete{}}, nil
	}
	return nil, nil
}

func (s *sumImpl) HandlePromise(engine.Implementation) ([]engine.Action, error) {
	return nil, errors.New("sum fronctocol shouldn't get promise")
}

func TestThreePartySumFronctocol(t *testing.T) {
	ids := []identity.ID{identity.Generate(), identity.Generate(), identity.Generate()}
	vals := []uint32{7, 11, 23}
	net := memory.NewNetwork(ids...)

	impls := make([]*sumImpl, len(ids))
	var parties []harness.Party
	initial := make(map[identity.ID][]bus.OutgoingMessage)
	for i, id := range ids {
		var others []identity.ID
		for _, o := range ids {
			if !o.Equal(id) {
				others = append(others, o)
			}
		}
		impls[i] = &sumImpl{self: id, others: others, val: vals[i]}
		eng := engine.New(id, memory.NewOutgoing)
		out, err := eng.Init(impls[i], party.New(ids...))
		require.NoError(t, err)
		initial[id] = out
		parties = append(parties, harness.Party{ID: id, Engine: eng})
	}

	require.NoError(t, harness.Run(net, parties, initial))
	assert.True(t, harness.AllClosed(parties))

	var total uint32
	for _, v := range vals {
		total += v
	}
	for i, impl := range impls {
		assert.Equal(t, total, impl.result, "party %d", i)
	}
}
