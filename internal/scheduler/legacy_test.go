package scheduler

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeflow/calvinrt/internal/actor"
	"github.com/nodeflow/calvinrt/internal/asynctest"
	"github.com/nodeflow/calvinrt/internal/monitor"
	"github.com/nodeflow/calvinrt/internal/node"
)

func newTestBaseline(t *testing.T, mgr actor.Manager) (*BaselineScheduler, *asynctest.Driver, *monitor.Default) {
	t.Helper()
	driver := asynctest.New(time.Unix(0, 0))
	mon := monitor.New(zerolog.Nop())
	mon.SetNow(driver.Now)
	cfg := quietConfig()
	s := NewBaseline(driver, mon, mgr, node.New("n1", &countingRM{}), cfg, zerolog.Nop())
	return s, driver, mon
}

// The baseline's next round is only the actors tagged pending by inbound
// events, never the full enabled set.
func TestBaselineFiresOnlyPendingActors(t *testing.T) {
	a1 := &scriptActor{id: "a1", fire: firesN(1)}
	a2 := &scriptActor{id: "a2", fire: firesN(1)}
	mgr := &fakeManager{enabled: []actor.Actor{a1, a2}}
	s, driver, _ := newTestBaseline(t, mgr)

	ep := &testEndpoint{id: "e1", owner: "a1"}
	s.RegisterEndpoint(ep)
	s.TunnelRx(ep)
	driver.Advance(0)

	assert.Equal(t, 1, a1.didFires)
	assert.Zero(t, a2.fireCalls, "a2 was never tagged pending")
}

func TestBaselineScheduleCalvinsysTagsActor(t *testing.T) {
	a1 := &scriptActor{id: "a1", fire: firesN(1)}
	a2 := &scriptActor{id: "a2", fire: firesN(1)}
	mgr := &fakeManager{enabled: []actor.Actor{a1, a2}}
	s, driver, _ := newTestBaseline(t, mgr)

	s.ScheduleCalvinsys("a2")
	driver.Advance(0)

	assert.Zero(t, a1.fireCalls)
	assert.Equal(t, 1, a2.didFires)
}

// An idle loop_once with nothing backed off falls back to the 1s legacy
// watchdog, which re-arms loop_once.
func TestBaselineWatchdogRearmsLoop(t *testing.T) {
	mgr := &fakeManager{}
	s, driver, _ := newTestBaseline(t, mgr)

	s.armLoopOnce(0)
	driver.Advance(0)
	require.Equal(t, 1, mgr.enabledCalls)

	driver.Advance(legacyWatchdogTimeout)
	assert.Equal(t, 2, mgr.enabledCalls, "the watchdog must have re-armed loop_once")
}

// After a nack the next loop_once is armed at the monitor's next slot.
func TestBaselineNackArmsAtNextSlot(t *testing.T) {
	a1 := &scriptActor{id: "a1"}
	mgr := &fakeManager{enabled: []actor.Actor{a1}}
	s, driver, mon := newTestBaseline(t, mgr)

	ep := &testEndpoint{id: "e1", owner: "a1"}
	s.RegisterEndpoint(ep)
	s.TunnelTxNack(ep)

	next, ok := mon.NextSlot()
	require.True(t, ok)

	driver.Advance(next.Sub(driver.Now()))
	assert.GreaterOrEqual(t, mgr.enabledCalls, 1, "loop_once must run once the backoff expires")
}

func TestBaselineAckClearsBackoff(t *testing.T) {
	mgr := &fakeManager{}
	s, _, mon := newTestBaseline(t, mgr)

	ep := &testEndpoint{id: "e1", owner: "a1"}
	s.RegisterEndpoint(ep)
	s.TunnelTxNack(ep)
	_, ok := mon.NextSlot()
	require.True(t, ok)

	s.TunnelTxAck(ep)
	_, ok = mon.NextSlot()
	assert.False(t, ok)
}

func TestBaselineStopCancelsHandles(t *testing.T) {
	a1 := &scriptActor{id: "a1", fire: firesN(10)}
	mgr := &fakeManager{enabled: []actor.Actor{a1}}
	s, driver, _ := newTestBaseline(t, mgr)

	s.ScheduleCalvinsys("a1")
	s.Stop()
	s.Stop()
	driver.Advance(time.Second)

	assert.Zero(t, a1.fireCalls, "no loop_once may run after Stop")
}
