package evecache

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/guarzo/evedmv-cache/internal/telemetry"
)

// Sink receives the cache's fire-and-forget observability events.
// The registry wraps whatever sink it is given in a buffered dispatcher,
// so a slow implementation can only lose events, never stall a caller.
type Sink = telemetry.Sink

// NewPrometheusSink exports cache events as Prometheus counters labeled
// by instance name.
func NewPrometheusSink(reg prometheus.Registerer) Sink {
	return telemetry.NewPrometheusSink(reg)
}
