// Package metrics exposes Prometheus instrumentation for compression and
// document assembly. All methods are safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	imagesTotal      *prometheus.CounterVec
	encodePasses     prometheus.Histogram
	compressionRatio prometheus.Histogram
	imageDuration    prometheus.Histogram

	documentsTotal  *prometheus.CounterVec
	documentBuilds  prometheus.Histogram
	documentQuality prometheus.Histogram
	documentBytes   prometheus.Histogram
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		imagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "photoshrinker",
				Subsystem: "image",
				Name:      "results_total",
				Help:      "Images processed by result (compressed, over_budget, failed, rejected).",
			},
			[]string{"result"},
		),
		encodePasses: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "photoshrinker",
			Subsystem: "image",
			Name:      "encode_passes",
			Help:      "Encode passes needed per image.",
			Buckets:   prometheus.LinearBuckets(1, 2, 10),
		}),
		compressionRatio: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "photoshrinker",
			Subsystem: "image",
			Name:      "compression_ratio",
			Help:      "Output size divided by input size.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		imageDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "photoshrinker",
			Subsystem: "image",
			Name:      "duration_seconds",
			Help:      "Time spent decoding and compressing one image.",
			Buckets:   prometheus.DefBuckets,
		}),
		documentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "photoshrinker",
				Subsystem: "document",
				Name:      "results_total",
				Help:      "Document assemblies by result (assembled, failed).",
			},
			[]string{"result"},
		),
		documentBuilds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "photoshrinker",
			Subsystem: "document",
			Name:      "builds",
			Help:      "Full document builds per assembly, including the final build.",
			Buckets:   prometheus.LinearBuckets(2, 2, 10),
		}),
		documentQuality: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "photoshrinker",
			Subsystem: "document",
			Name:      "final_quality",
			Help:      "Shared JPEG quality of the returned document.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
		documentBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "photoshrinker",
			Subsystem: "document",
			Name:      "size_bytes",
			Help:      "Size of returned documents.",
			Buckets:   prometheus.ExponentialBuckets(64*1024, 2, 10),
		}),
	}

	registry.MustRegister(
		m.imagesTotal,
		m.encodePasses,
		m.compressionRatio,
		m.imageDuration,
		m.documentsTotal,
		m.documentBuilds,
		m.documentQuality,
		m.documentBytes,
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveImage records one successfully compressed image.
func (m *Metrics) ObserveImage(result string, passes int, inBytes, outBytes int64, took time.Duration) {
	if m == nil {
		return
	}
	m.imagesTotal.WithLabelValues(result).Inc()
	m.encodePasses.Observe(float64(passes))
	if inBytes > 0 {
		m.compressionRatio.Observe(float64(outBytes) / float64(inBytes))
	}
	m.imageDuration.Observe(took.Seconds())
}

// ImageFailed records an image that produced no result.
func (m *Metrics) ImageFailed(result string) {
	if m == nil {
		return
	}
	m.imagesTotal.WithLabelValues(result).Inc()
}

// ObserveDocument records one assembled document.
func (m *Metrics) ObserveDocument(builds, quality int, size int64) {
	if m == nil {
		return
	}
	m.documentsTotal.WithLabelValues("assembled").Inc()
	m.documentBuilds.Observe(float64(builds))
	m.documentQuality.Observe(float64(quality))
	m.documentBytes.Observe(float64(size))
}

// DocumentFailed records a failed assembly.
func (m *Metrics) DocumentFailed() {
	if m == nil {
		return
	}
	m.documentsTotal.WithLabelValues("failed").Inc()
}
