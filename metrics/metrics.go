// Package metrics exposes the pipeline's Prometheus collectors.
//
// One Metrics struct holds every collector, registered once on a private
// registry; workers increment plain fields with no label churn on the
// hot path.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all station-level collectors.
type Metrics struct {
	FramesAcquired   prometheus.Counter
	FramesDropped    *prometheus.CounterVec // label: queue (visualization|analysis)
	FramesGated      prometheus.Counter
	FramesPublished  prometheus.Counter
	FitsSucceeded    prometheus.Counter
	FitsFailed       prometheus.Counter
	BatchesCommitted prometheus.Counter
	RowsWritten      prometheus.Counter
	StoreReconnects  prometheus.Counter
	StreamClients    prometheus.Gauge
	LiveClients      prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		FramesAcquired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "beamscope", Subsystem: "frames", Name: "acquired_total",
			Help: "Frames delivered by the camera callback",
		}),
		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "beamscope", Subsystem: "frames", Name: "dropped_total",
			Help: "Frames rejected by a full bounded queue",
		}, []string{"queue"}),
		FramesGated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "beamscope", Subsystem: "frames", Name: "gated_total",
			Help: "Frames below the trigger admission threshold",
		}),
		FramesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "beamscope", Subsystem: "frames", Name: "published_total",
			Help: "Encoded visualizations published to the broadcaster",
		}),
		FitsSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "beamscope", Subsystem: "fit", Name: "succeeded_total",
			Help: "Successful centroid fits",
		}),
		FitsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "beamscope", Subsystem: "fit", Name: "failed_total",
			Help: "Failed or inconclusive centroid fits",
		}),
		BatchesCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "beamscope", Subsystem: "writer", Name: "batches_total",
			Help: "Measurement batches committed to the store",
		}),
		RowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "beamscope", Subsystem: "writer", Name: "rows_total",
			Help: "Measurement rows committed to the store",
		}),
		StoreReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "beamscope", Subsystem: "writer", Name: "reconnects_total",
			Help: "Store reconnects after a persistence failure",
		}),
		StreamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "beamscope", Subsystem: "stream", Name: "clients",
			Help: "Connected MJPEG viewers",
		}),
		LiveClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "beamscope", Subsystem: "stream", Name: "live_clients",
			Help: "Connected websocket measurement listeners",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.FramesAcquired, m.FramesDropped, m.FramesGated, m.FramesPublished,
		m.FitsSucceeded, m.FitsFailed,
		m.BatchesCommitted, m.RowsWritten, m.StoreReconnects,
		m.StreamClients, m.LiveClients,
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
