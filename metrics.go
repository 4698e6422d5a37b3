package screen

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values.
const (
	resultOK            = "ok"
	resultModeNotFound  = "mode_not_found"
	resultAllocation    = "allocation_failed"
	resultFormat        = "format_failed"
	resultModeRejected  = "mode_rejected"
	updateKindRects     = "rects"
	updateKindFlip      = "flip"
	defaultMetricsSpace = "screen"
)

// sessionMetrics holds the Prometheus collectors of a session.
type sessionMetrics struct {
	activations      *prometheus.CounterVec // Mode activations (by result)
	displayUpdates   *prometheus.CounterVec // Display updates (by kind: rects, flip)
	blitBytes        prometheus.Counter     // Bytes written to hardware buffers
	swaps            prometheus.Counter     // Visible buffer swaps
	framebufferBytes prometheus.Gauge       // Bytes held by frame buffers
	retraceWait      prometheus.Histogram   // Time spent waiting for the vertical retrace
}

// newSessionMetrics creates the collectors. With a nil registerer the
// collectors are not registered.
func newSessionMetrics(reg prometheus.Registerer, namespace, session string) *sessionMetrics {
	if namespace == "" {
		namespace = defaultMetricsSpace
	}
	var (
		f      = promauto.With(reg)
		labels = prometheus.Labels{"session": session}
	)
	return &sessionMetrics{
		activations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "activations_total",
				Help:        "Total video mode activations by result",
				ConstLabels: labels,
			},
			[]string{"result"},
		),
		displayUpdates: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "display_updates_total",
				Help:        "Total display updates by kind (rects, flip)",
				ConstLabels: labels,
			},
			[]string{"kind"},
		),
		blitBytes: f.NewCounter(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "blit_bytes_total",
				Help:        "Total bytes converted or copied to hardware buffers",
				ConstLabels: labels,
			},
		),
		swaps: f.NewCounter(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "buffer_swaps_total",
				Help:        "Total visible buffer swaps",
				ConstLabels: labels,
			},
		),
		framebufferBytes: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Name:        "framebuffer_bytes",
				Help:        "Bytes currently allocated for frame buffers, shadow buffer included",
				ConstLabels: labels,
			},
		),
		retraceWait: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Name:        "retrace_wait_seconds",
				Help:        "Time spent waiting for the vertical retrace",
				ConstLabels: labels,
				Buckets:     []float64{.001, .0025, .005, .01, .02, .04, .08},
			},
		),
	}
}

// collectors returns all collectors, for unregistering.
func (m *sessionMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.activations,
		m.displayUpdates,
		m.blitBytes,
		m.swaps,
		m.framebufferBytes,
		m.retraceWait,
	}
}
