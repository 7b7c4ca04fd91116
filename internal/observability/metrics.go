// Package observability exposes the scheduler's internal state as
// Prometheus metrics, promauto-registered under the calvinrt_ prefix.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TaskQueueDepth tracks the number of pending tasks in the dispatcher.
	TaskQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "calvinrt_task_queue_depth",
		Help: "Current number of tasks in the scheduler's time-ordered queue",
	})

	// SchedulerDecisions counts per-type scheduling decisions (tick,
	// tunnel_rx, tunnel_tx_ack, tunnel_tx_nack, schedule_calvinsys,
	// baseline_loop_once).
	SchedulerDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calvinrt_scheduler_decisions_total",
		Help: "Total number of scheduling decisions made, by kind",
	}, []string{"decision"})

	// StrategyTickDuration tracks how long one strategy() tick takes.
	StrategyTickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "calvinrt_strategy_tick_duration_seconds",
		Help:    "Duration of one scheduler strategy tick",
		Buckets: prometheus.DefBuckets,
	})

	// ActorFireDuration tracks time spent inside a single actor Fire call.
	// The primitive label carries the strategy name, which selects the
	// firing primitive.
	ActorFireDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "calvinrt_actor_fire_duration_seconds",
		Help:    "Duration of one actor Fire call, by strategy (simple/round_robin/non_preemptive)",
		Buckets: prometheus.DefBuckets,
	}, []string{"primitive"})

	// ActorFireErrors counts exceptions caught at the fire_actors boundary.
	ActorFireErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calvinrt_actor_fire_errors_total",
		Help: "Total number of actor.Fire panics/errors recovered by the scheduler",
	}, []string{"actor_id"})

	// BackoffActiveEndpoints tracks how many endpoints currently have a
	// non-zero backoff.
	BackoffActiveEndpoints = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "calvinrt_monitor_backoff_endpoints",
		Help: "Number of endpoints currently backed off",
	})

	// WatchdogFires counts watchdog invocations. Stays at zero under healthy
	// operation.
	WatchdogFires = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calvinrt_watchdog_fires_total",
		Help: "Total number of times the watchdog task fired",
	})

	// MigrationsTriggered counts actor migrations the maintenance loop
	// initiated.
	MigrationsTriggered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calvinrt_actor_migrations_total",
		Help: "Total number of actor migrations triggered by maintenance_loop",
	})

	// ReplicationLoopRuns counts replication control-loop invocations.
	ReplicationLoopRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calvinrt_replication_loop_runs_total",
		Help: "Total number of replication_loop invocations",
	})
)
