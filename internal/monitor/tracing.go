package monitor

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/nodeflow/calvinrt/internal/endpoint"
)

// TracingMonitor decorates a Monitor with a zerolog debug event per
// Communicate/SetBackoff/ClearBackoff call, with no behavioral difference
// from the wrapped Monitor. It is opt-in via --trace-monitor so production
// runs don't pay for the extra log calls.
type TracingMonitor struct {
	inner Monitor
	log   zerolog.Logger
}

// Trace wraps m so every registration, communication, and backoff operation
// also emits a trace log line; Endpoints and NextSlot are not logged.
func Trace(m Monitor, log zerolog.Logger) *TracingMonitor {
	return &TracingMonitor{inner: m, log: log}
}

func (t *TracingMonitor) RegisterEndpoint(ep endpoint.Endpoint) {
	t.log.Debug().Str("endpoint_id", ep.ID()).Msg("register_endpoint")
	t.inner.RegisterEndpoint(ep)
}

func (t *TracingMonitor) UnregisterEndpoint(ep endpoint.Endpoint) {
	t.log.Debug().Str("endpoint_id", ep.ID()).Msg("unregister_endpoint")
	t.inner.UnregisterEndpoint(ep)
}

func (t *TracingMonitor) Endpoints() []endpoint.Endpoint {
	return t.inner.Endpoints()
}

func (t *TracingMonitor) Communicate(endpoints []endpoint.Endpoint) bool {
	didTransfer := t.inner.Communicate(endpoints)
	t.log.Debug().Int("endpoint_count", len(endpoints)).Bool("did_transfer", didTransfer).Msg("communicate")
	return didTransfer
}

func (t *TracingMonitor) SetBackoff(ep endpoint.Endpoint) {
	t.log.Debug().Str("endpoint_id", ep.ID()).Msg("set_backoff")
	t.inner.SetBackoff(ep)
}

func (t *TracingMonitor) ClearBackoff(ep endpoint.Endpoint) {
	t.log.Debug().Str("endpoint_id", ep.ID()).Msg("clear_backoff")
	t.inner.ClearBackoff(ep)
}

func (t *TracingMonitor) NextSlot() (time.Time, bool) {
	return t.inner.NextSlot()
}
