// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Metric keys, labels and the snapshot registry.

package control

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-metrics"
)

var (
	MetricHTTPUploadBytes     = []string{"network", "http", "upload", "bytes"}
	MetricHTTPDownloadBytes   = []string{"network", "http", "download", "bytes"}
	MetricHTTPPendingCount    = []string{"network", "http", "pending", "count"}
	MetricSocketUploadBytes   = []string{"network", "socket", "upload", "bytes"}
	MetricSocketDownloadBytes = []string{"network", "socket", "download", "bytes"}
	MetricConnOpenCount       = []string{"network", "connection", "open", "count"}
	MetricConnEstCount        = []string{"network", "connection", "established", "count"}
	MetricConnErrorCount      = []string{"network", "connection", "error", "count"}
	MetricConnClosedCount     = []string{"network", "connection", "closed", "count"}
	MetricTotalUploadBytes    = []string{"network", "total", "upload", "bytes"}
	MetricTotalDownloadBytes  = []string{"network", "total", "download", "bytes"}
)

// TelemetryLabel names a metric label or log attribute.
type TelemetryLabel string

var (
	LabelError     TelemetryLabel = "error"
	LabelPeerAddr  TelemetryLabel = "peer_addr"
	LabelConnID    TelemetryLabel = "connection_id"
	LabelErrorCode TelemetryLabel = "error_code"
)

// M builds a go-metrics label.
func (lab TelemetryLabel) M(val string) metrics.Label {
	return metrics.Label{Name: string(lab), Value: val}
}

// L builds a slog attribute, for embedders logging through log/slog.
func (lab TelemetryLabel) L(val any) slog.Attr {
	return slog.Attr{
		Key:   string(lab),
		Value: slog.AnyValue(val),
	}
}

// MetricsRegistry holds the latest published values.
type MetricsRegistry struct {
	mu      sync.RWMutex
	metrics map[string]any
	updated time.Time
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		metrics: make(map[string]any),
	}
}

// Set sets or updates a metric key.
func (mr *MetricsRegistry) Set(key string, value any) {
	mr.mu.Lock()
	mr.metrics[key] = value
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// Incr adds delta to an integer metric.
func (mr *MetricsRegistry) Incr(key string, delta uint64) {
	mr.mu.Lock()
	cur, _ := mr.metrics[key].(uint64)
	mr.metrics[key] = cur + delta
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// GetSnapshot returns a copy of the latest metrics.
func (mr *MetricsRegistry) GetSnapshot() map[string]any {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]any, len(mr.metrics))
	for k, v := range mr.metrics {
		out[k] = v
	}
	return out
}

// Updated returns the time of the last write.
func (mr *MetricsRegistry) Updated() time.Time {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.updated
}
