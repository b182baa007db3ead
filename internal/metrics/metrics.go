// Package metrics exposes capture and API counters in the Prometheus
// exposition format.
//
// Every Metrics value owns its registry, so several can coexist in one
// process (tests, multiple sessions) without duplicate registration panics.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gray-logic-knxnet/internal/capture"
)

const namespace = "knxnet"

// Frame outcomes used for the outcome label.
const (
	OutcomeDecoded = "decoded"
	OutcomeFailed  = "failed"
)

// StatsSource supplies the inspector counters that are not derived from
// individual frames. *capture.Inspector satisfies it.
type StatsSource interface {
	Stats() capture.Stats
}

// Metrics holds every collector the service exports.
type Metrics struct {
	registry *prometheus.Registry

	Frames       *prometheus.CounterVec
	FrameSize    prometheus.Histogram
	CEMISize     prometheus.Histogram
	ChannelsSeen prometheus.Gauge

	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	seenMu sync.Mutex
	seen   map[uint8]struct{}
}

// New creates and registers all collectors. stats may be nil, in which case
// the invalid line and sink error counters are not exported.
func New(stats StatsSource) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		Frames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Datagrams inspected, by service and outcome",
		}, []string{"service", "outcome"}),
		FrameSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_size_bytes",
			Help:      "Declared total length of inspected datagrams",
			Buckets:   []float64{8, 10, 16, 20, 26, 32, 64, 128, 256},
		}),
		CEMISize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cemi_size_bytes",
			Help:      "Size of cEMI frames carried by TUNNELLING_REQUEST",
			Buckets:   []float64{8, 11, 12, 16, 24, 32, 64},
		}),
		ChannelsSeen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channels_seen",
			Help:      "Distinct communication channels observed this session",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by method, route and status code",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		seen: make(map[uint8]struct{}),
	}

	if stats != nil {
		factory.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_lines_total",
			Help:      "Capture lines that were not hex",
		}, func() float64 { return float64(stats.Stats().InvalidLines) })
		factory.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Frame deliveries rejected by a sink",
		}, func() float64 { return float64(stats.Stats().SinkErrors) })
	}

	return m
}

// HandleFrame implements capture.Sink.
func (m *Metrics) HandleFrame(_ context.Context, f capture.Frame) error {
	// Unregistered identifiers share one label so hostile traffic cannot
	// grow the series count.
	service := f.ServiceName
	switch {
	case !f.HasHeader():
		service = "invalid"
	case !f.Service.Known():
		service = "unknown"
	}
	outcome := OutcomeDecoded
	if !f.Valid() {
		outcome = OutcomeFailed
	}
	m.Frames.WithLabelValues(service, outcome).Inc()

	if f.HasHeader() {
		m.FrameSize.Observe(float64(f.TotalLength))
	}
	if len(f.CEMI) > 0 {
		m.CEMISize.Observe(float64(len(f.CEMI)))
	}
	if f.Channel != nil {
		m.markChannel(*f.Channel)
	}
	return nil
}

// RecordHTTPRequest records one API request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(durationSeconds)
}

func (m *Metrics) markChannel(ch uint8) {
	m.seenMu.Lock()
	defer m.seenMu.Unlock()

	if _, ok := m.seen[ch]; ok {
		return
	}
	m.seen[ch] = struct{}{}
	m.ChannelsSeen.Set(float64(len(m.seen)))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
