package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/nodeflow/calvinrt/internal/actor"
	"github.com/nodeflow/calvinrt/internal/async"
	"github.com/nodeflow/calvinrt/internal/monitor"
	"github.com/nodeflow/calvinrt/internal/node"
)

// NewSimple builds the scheduler that retries every enabled actor to
// quiescence each tick.
func NewSimple(driver async.Driver, mon monitor.Monitor, actors actor.Manager, nd *node.Node, cfg Config, log zerolog.Logger) *Scheduler {
	return New(driver, mon, actors, nd, cfg, Simple, log)
}

// NewRoundRobin builds the scheduler that gives each enabled actor exactly
// one firing attempt per tick.
func NewRoundRobin(driver async.Driver, mon monitor.Monitor, actors actor.Manager, nd *node.Node, cfg Config, log zerolog.Logger) *Scheduler {
	return New(driver, mon, actors, nd, cfg, RoundRobin, log)
}

// NewNonPreemptive builds the scheduler that drains each actor fully
// before moving to the next.
func NewNonPreemptive(driver async.Driver, mon monitor.Monitor, actors actor.Manager, nd *node.Node, cfg Config, log zerolog.Logger) *Scheduler {
	return New(driver, mon, actors, nd, cfg, NonPreemptive, log)
}

// ParseStrategy resolves a config/CLI strategy name to its tag.
func ParseStrategy(name string) (Strategy, bool) {
	switch name {
	case "simple", "":
		return Simple, true
	case "round_robin", "roundrobin":
		return RoundRobin, true
	case "non_preemptive", "nonpreemptive":
		return NonPreemptive, true
	default:
		return 0, false
	}
}
