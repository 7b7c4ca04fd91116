// Package scheduler implements the cooperative run-loop that fires actors
// and pumps endpoint communication: the shared base machinery plus three
// concrete tick policies (Simple, RoundRobin, NonPreemptive) parameterised
// by a Strategy tag rather than duplicated across subclasses, and the
// legacy BaselineScheduler kept alongside it in legacy.go.
package scheduler

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/nodeflow/calvinrt/internal/actor"
	"github.com/nodeflow/calvinrt/internal/async"
	"github.com/nodeflow/calvinrt/internal/endpoint"
	"github.com/nodeflow/calvinrt/internal/monitor"
	"github.com/nodeflow/calvinrt/internal/node"
	"github.com/nodeflow/calvinrt/internal/observability"
	"github.com/nodeflow/calvinrt/internal/queue"
)

// Scheduler is the Simple/RoundRobin/NonPreemptive family: one struct, one
// firing primitive chosen at construction time by tag. The legacy baseline
// design is different enough in shape (no task queue) that it lives in its
// own type, BaselineScheduler.
type Scheduler struct {
	driver     async.Driver
	dispatcher *queue.Dispatcher
	monitor    monitor.Monitor
	actors     actor.Manager
	node       *node.Node
	cfg        Config
	tag        Strategy
	primitive  firePrimitive
	log        zerolog.Logger

	mu   sync.Mutex
	done bool
	sink EventSink
}

// EventSink receives a copy of each scheduling decision for the debug
// stream. Implementations must not block: they run on the loop goroutine.
type EventSink interface {
	SchedulerEvent(kind, actorID, endpointID string)
}

// New builds a Scheduler running the given strategy tag.
func New(driver async.Driver, mon monitor.Monitor, actors actor.Manager, nd *node.Node, cfg Config, tag Strategy, log zerolog.Logger) *Scheduler {
	s := &Scheduler{
		driver:  driver,
		monitor: mon,
		actors:  actors,
		node:    nd,
		cfg:     cfg,
		tag:     tag,
		log:     log.With().Str("strategy", tag.String()).Logger(),
	}
	switch tag {
	case RoundRobin:
		s.primitive = fireActorOnce
	case NonPreemptive:
		s.primitive = fireActorNonPreemptive
	default:
		s.primitive = fireActorPreemptive
	}
	s.dispatcher = queue.New(driver, s.watchdog, cfg.WatchdogDelay, s.log)
	return s
}

// SetEventSink attaches sink to the scheduler's decision stream. Call
// before Run; passing nil detaches.
func (s *Scheduler) SetEventSink(sink EventSink) {
	s.sink = sink
}

func (s *Scheduler) emit(kind, actorID, endpointID string) {
	if s.sink != nil {
		s.sink.SchedulerEvent(kind, actorID, endpointID)
	}
}

// Run primes the queue with the periodic control tasks and the first tick,
// then hands control to the async driver.
func (s *Scheduler) Run() {
	s.dispatcher.InsertTask(s.maintenanceLoop, s.cfg.MaintenanceDelay)
	s.dispatcher.InsertTask(s.checkReplication, s.cfg.ReplicationInterval)
	s.dispatcher.InsertTask(s.tick, 0)
	s.driver.Run()
}

// Stop requests the driver exit; idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	s.mu.Unlock()
	s.driver.Post(func() { s.driver.Stop() })
}

// Done reports whether Stop has been called.
func (s *Scheduler) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// tick pumps endpoint communication, tries firing every enabled actor
// with this scheduler's primitive, and re-enqueues itself if either
// produced activity.
func (s *Scheduler) tick() {
	start := s.driver.Now()
	didTx := s.monitor.Communicate(s.monitor.Endpoints())
	fired := s.fireActors(s.actors.EnabledActors(), s.primitive)
	observability.SchedulerDecisions.WithLabelValues("tick").Inc()
	observability.StrategyTickDuration.Observe(s.driver.Now().Sub(start).Seconds())
	for _, id := range fired {
		s.emit("fire", id, "")
	}
	if didTx || len(fired) > 0 {
		s.dispatcher.InsertTask(s.tick, 0)
	}
}

// watchdog fires when the queue would otherwise sit empty too long; it
// logs and re-enqueues the tick so the scheduler recovers from a missed
// wake-up.
func (s *Scheduler) watchdog() {
	observability.WatchdogFires.Inc()
	s.log.Warn().Msg("scheduler watchdog fired")
	s.emit("watchdog", "", "")
	s.dispatcher.InsertTask(s.tick, 0)
}

// checkReplication drives the external replication manager once per
// interval, best-effort.
func (s *Scheduler) checkReplication() {
	if s.node != nil && s.node.RM != nil {
		s.node.RM.ReplicationLoop()
	}
	s.dispatcher.InsertTask(s.tick, 0)
	s.dispatcher.InsertTask(s.checkReplication, s.cfg.ReplicationInterval)
}

// maintenanceLoop migrates actors that have requested it and re-evaluates
// denied actors, then re-arms itself.
func (s *Scheduler) maintenanceLoop() {
	// TODO: try to migrate shadow actors as well.
	for _, a := range s.actors.MigratableActors() {
		info, ok := a.MigrationInfo()
		if !ok {
			continue
		}
		id := a.ID()
		if err := s.actors.Migrate(id, info.NodeID, a.RemoveMigrationInfo); err != nil {
			s.log.Warn().Err(err).Str("actor_id", id).Msg("maintenance: migrate failed")
			continue
		}
		observability.MigrationsTriggered.Inc()
		s.emit("migrate", id, "")
	}
	for _, a := range s.actors.DeniedActors() {
		a.EnableOrMigrate()
	}
	s.dispatcher.InsertTask(s.tick, 0)
	s.dispatcher.InsertTask(s.maintenanceLoop, s.cfg.MaintenanceDelay)
}

// TriggerMaintenanceLoop is the public nudge: delay=true leaves it to the
// periodic task, delay=false runs it on the next tick.
func (s *Scheduler) TriggerMaintenanceLoop(delay bool) {
	if delay {
		return
	}
	s.dispatcher.InsertTask(s.maintenanceLoop, 0)
}

// Event API. Behavior is identical across Simple, RoundRobin, and
// NonPreemptive -- only the firing primitive selected in New differs --
// so it lives here rather than being duplicated per strategy file.

func (s *Scheduler) TunnelRx(ep endpoint.Endpoint) {
	observability.SchedulerDecisions.WithLabelValues("tunnel_rx").Inc()
	s.dispatcher.InsertTask(s.tick, 0)
}

func (s *Scheduler) TunnelTxAck(ep endpoint.Endpoint) {
	s.monitor.ClearBackoff(ep)
	observability.SchedulerDecisions.WithLabelValues("tunnel_tx_ack").Inc()
	s.emit("backoff_clear", ep.OwnerActorID(), ep.ID())
	s.dispatcher.InsertTask(s.tick, 0)
}

func (s *Scheduler) TunnelTxNack(ep endpoint.Endpoint) {
	s.monitor.SetBackoff(ep)
	observability.SchedulerDecisions.WithLabelValues("tunnel_tx_nack").Inc()
	s.emit("backoff_set", ep.OwnerActorID(), ep.ID())
	next, ok := s.monitor.NextSlot()
	if !ok {
		return
	}
	delay := next.Sub(s.driver.Now())
	if delay < 0 {
		delay = 0
	}
	s.dispatcher.InsertTask(s.tick, delay)
}

// TunnelTxThrottle is a deliberate no-op in every strategy; remote
// slowdown requests are currently ignored.
func (s *Scheduler) TunnelTxThrottle(ep endpoint.Endpoint) {}

func (s *Scheduler) ScheduleCalvinsys(actorID string) {
	observability.SchedulerDecisions.WithLabelValues("schedule_calvinsys").Inc()
	s.dispatcher.InsertTask(s.tick, 0)
}

func (s *Scheduler) RegisterEndpoint(ep endpoint.Endpoint)   { s.monitor.RegisterEndpoint(ep) }
func (s *Scheduler) UnregisterEndpoint(ep endpoint.Endpoint) { s.monitor.UnregisterEndpoint(ep) }

// QueueLen exposes the dispatcher's current depth, for tests and metrics.
func (s *Scheduler) QueueLen() int { return s.dispatcher.Len() }
