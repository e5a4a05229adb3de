// control/telemetry.go
// Author: momentics <momentics@gmail.com>
//
// Telemetry turns cumulative traffic totals into go-metrics gauges and
// counter deltas, and mirrors them into a MetricsRegistry.

package control

import (
	"strconv"
	"time"

	"github.com/hashicorp/go-metrics"
)

const (
	defaultInterval = 10 * time.Second
	defaultRetain   = time.Minute
)

// Traffic is one observation of the network layer's totals.
type Traffic struct {
	HTTPUpload      uint64
	HTTPDownload    uint64
	SocketUpload    uint64
	SocketDownload  uint64
	PendingRequests int
	Connections     int
}

// Telemetry publishes traffic observations. A nil sink disables go-metrics
// emission; the registry is always maintained.
type Telemetry struct {
	sink     *metrics.Metrics
	labels   []metrics.Label
	registry *MetricsRegistry
	last     Traffic
}

// NewTelemetry creates a Telemetry writing to sink (may be nil).
func NewTelemetry(sink *metrics.Metrics, labels []metrics.Label) *Telemetry {
	return &Telemetry{
		sink:     sink,
		labels:   labels,
		registry: NewMetricsRegistry(),
	}
}

// NewInmemTelemetry builds a go-metrics pipeline backed by an in-memory sink,
// used by the CLI and tests. Hostname tagging and runtime metrics are off.
func NewInmemTelemetry(service string, labels []metrics.Label) (*Telemetry, *metrics.InmemSink, error) {
	sink := metrics.NewInmemSink(defaultInterval, defaultRetain)
	cfg := metrics.DefaultConfig(service)
	cfg.EnableHostname = false
	cfg.EnableRuntimeMetrics = false
	m, err := metrics.New(cfg, sink)
	if err != nil {
		return nil, nil, err
	}
	return NewTelemetry(m, labels), sink, nil
}

// Registry exposes the snapshot registry.
func (t *Telemetry) Registry() *MetricsRegistry {
	return t.registry
}

// Publish records a traffic observation. Byte counters advance by the
// positive delta since the previous observation; socket totals can shrink
// when a connection is removed, which is not reported as negative traffic.
func (t *Telemetry) Publish(tr Traffic) {
	t.incr(MetricHTTPUploadBytes, delta(t.last.HTTPUpload, tr.HTTPUpload))
	t.incr(MetricHTTPDownloadBytes, delta(t.last.HTTPDownload, tr.HTTPDownload))
	t.incr(MetricSocketUploadBytes, delta(t.last.SocketUpload, tr.SocketUpload))
	t.incr(MetricSocketDownloadBytes, delta(t.last.SocketDownload, tr.SocketDownload))
	t.last = tr

	up := tr.HTTPUpload + tr.SocketUpload
	down := tr.HTTPDownload + tr.SocketDownload
	t.gauge(MetricHTTPPendingCount, float32(tr.PendingRequests))
	t.gauge(MetricConnOpenCount, float32(tr.Connections))
	t.gauge(MetricTotalUploadBytes, float32(up))
	t.gauge(MetricTotalDownloadBytes, float32(down))

	t.registry.Set("http.upload", tr.HTTPUpload)
	t.registry.Set("http.download", tr.HTTPDownload)
	t.registry.Set("http.pending", tr.PendingRequests)
	t.registry.Set("socket.upload", tr.SocketUpload)
	t.registry.Set("socket.download", tr.SocketDownload)
	t.registry.Set("connections.open", tr.Connections)
	t.registry.Set("total.upload", up)
	t.registry.Set("total.download", down)
}

// ConnectionEstablished counts a successful Connect.
func (t *Telemetry) ConnectionEstablished(id uint64, peer string) {
	t.registry.Incr("connections.established", 1)
	if t.sink != nil {
		t.sink.IncrCounterWithLabels(MetricConnEstCount, 1, t.with(
			LabelConnID.M(strconv.FormatUint(id, 10)),
			LabelPeerAddr.M(peer),
		))
	}
}

// ConnectionFailed counts a failed Connect.
func (t *Telemetry) ConnectionFailed(peer string, code string) {
	t.registry.Incr("connections.errors", 1)
	if t.sink != nil {
		t.sink.IncrCounterWithLabels(MetricConnErrorCount, 1, t.with(
			LabelPeerAddr.M(peer),
			LabelErrorCode.M(code),
		))
	}
}

// ConnectionClosed counts an explicit removal.
func (t *Telemetry) ConnectionClosed(id uint64) {
	t.registry.Incr("connections.closed", 1)
	if t.sink != nil {
		t.sink.IncrCounterWithLabels(MetricConnClosedCount, 1, t.with(
			LabelConnID.M(strconv.FormatUint(id, 10)),
		))
	}
}

func (t *Telemetry) incr(key []string, n uint64) {
	if n == 0 || t.sink == nil {
		return
	}
	t.sink.IncrCounterWithLabels(key, float32(n), t.labels)
}

func (t *Telemetry) gauge(key []string, v float32) {
	if t.sink == nil {
		return
	}
	t.sink.SetGaugeWithLabels(key, v, t.labels)
}

func (t *Telemetry) with(extra ...metrics.Label) []metrics.Label {
	out := make([]metrics.Label, 0, len(t.labels)+len(extra))
	out = append(out, t.labels...)
	return append(out, extra...)
}

func delta(prev, cur uint64) uint64 {
	if cur <= prev {
		return 0
	}
	return cur - prev
}
