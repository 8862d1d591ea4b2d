// Package metrics wires go-ethereum's metrics registry (geth's own
// counters/gauges/meters) to a Prometheus exporter, and exposes the
// counters/gauges tracking message lifecycle progress: messages processed,
// retry counts, cursor progress, inclusion-stage fee escalations.
// Registries are threaded in explicitly; there is no global mutable
// registry.
package metrics

import (
	"net/http"

	gethmetrics "github.com/ethereum/go-ethereum/metrics"
	gethprom "github.com/ethereum/go-ethereum/metrics/prometheus"
)

// Registry bundles every metric this relayer exposes. One Registry is
// constructed at startup by cmd/relayer, which serves it and updates
// QueueDepth; no other component constructor takes it, so the remaining
// metrics are registered but not updated.
type Registry struct {
	inner gethmetrics.Registry

	MessagesProcessed   gethmetrics.Counter
	MessagesDispatched  gethmetrics.Counter
	RetryCount          gethmetrics.Histogram
	CursorLastIndexed   gethmetrics.GaugeFloat64
	CursorGapRewinds    gethmetrics.Counter
	InclusionGasBumps   gethmetrics.Counter
	InclusionDropped    gethmetrics.Counter
	QueueDepth          gethmetrics.GaugeFloat64
	DoubleUpdatesFound  gethmetrics.Counter
}

// New constructs a Registry with every named metric pre-registered.
func New() *Registry {
	r := gethmetrics.NewRegistry()
	sample := gethmetrics.NewExpDecaySample(1028, 0.015)
	return &Registry{
		inner:              r,
		MessagesProcessed:  gethmetrics.NewRegisteredCounter("relayer/messages/processed", r),
		MessagesDispatched: gethmetrics.NewRegisteredCounter("relayer/messages/dispatched", r),
		RetryCount:         gethmetrics.NewRegisteredHistogram("relayer/messages/retry_count", r, sample),
		CursorLastIndexed:  gethmetrics.NewRegisteredGaugeFloat64("relayer/cursor/last_indexed_sequence", r),
		CursorGapRewinds:   gethmetrics.NewRegisteredCounter("relayer/cursor/rewinds", r),
		InclusionGasBumps:  gethmetrics.NewRegisteredCounter("relayer/inclusion/gas_bumps", r),
		InclusionDropped:   gethmetrics.NewRegisteredCounter("relayer/inclusion/dropped", r),
		QueueDepth:         gethmetrics.NewRegisteredGaugeFloat64("relayer/opqueue/depth", r),
		DoubleUpdatesFound: gethmetrics.NewRegisteredCounter("relayer/watcher/double_updates", r),
	}
}

// Handler returns an http.Handler that serves the registry in Prometheus
// exposition format, mirroring geth's own metrics/prometheus exporter.
func (r *Registry) Handler() http.Handler {
	return gethprom.Handler(r.inner)
}
