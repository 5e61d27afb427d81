package promadapters

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/guildworks/toolledger/ledger"
)

// DefaultDurationBuckets are the histogram buckets used for durations, in seconds.
var DefaultDurationBuckets = []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5}

// MetricsCollector implements ledger.ContextualMetricsCollector with Prometheus vectors.
//
// A vector is registered the first time its metric name is used, and the label keys of that first
// observation become its label names. Later observations fill missing keys with "" and drop unknown keys.
// Metric names that fail registration are remembered and ignored.
type MetricsCollector struct {
	registry *prometheus.Registry
	buckets  []float64

	mu         sync.Mutex
	histograms map[string]vec[*prometheus.HistogramVec]
	counters   map[string]vec[*prometheus.CounterVec]
	gauges     map[string]vec[*prometheus.GaugeVec]
	rejected   map[string]struct{}
}

type vec[T any] struct {
	metric     T
	labelNames []string
}

// Option configures a MetricsCollector.
type Option func(*MetricsCollector)

// WithBuckets replaces the duration histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(m *MetricsCollector) {
		if len(buckets) > 0 {
			m.buckets = buckets
		}
	}
}

// NewMetricsCollector creates a collector that registers into registry.
// A nil registry gets a fresh one with the Go and process collectors.
func NewMetricsCollector(registry *prometheus.Registry, options ...Option) *MetricsCollector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &MetricsCollector{
		registry:   registry,
		buckets:    DefaultDurationBuckets,
		histograms: make(map[string]vec[*prometheus.HistogramVec]),
		counters:   make(map[string]vec[*prometheus.CounterVec]),
		gauges:     make(map[string]vec[*prometheus.GaugeVec]),
		rejected:   make(map[string]struct{}),
	}

	for _, option := range options {
		option(m)
	}

	return m
}

// Registry returns the registry the collector writes to.
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordDuration observes duration in seconds.
func (m *MetricsCollector) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.histograms[metric]
	if !ok {
		if m.isRejected(metric) {
			return
		}

		names := labelNamesOf(labels)
		histogram := prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: metric, Help: helpFor(metric), Buckets: m.buckets},
			names,
		)

		if !m.register(metric, histogram) {
			return
		}

		entry = vec[*prometheus.HistogramVec]{metric: histogram, labelNames: names}
		m.histograms[metric] = entry
	}

	entry.metric.With(labelsFor(entry.labelNames, labels)).Observe(duration.Seconds())
}

// RecordDurationContext observes duration in seconds. The context is not used.
func (m *MetricsCollector) RecordDurationContext(
	_ context.Context,
	metric string,
	duration time.Duration,
	labels map[string]string,
) {

	m.RecordDuration(metric, duration, labels)
}

// IncrementCounter adds one to the counter.
func (m *MetricsCollector) IncrementCounter(metric string, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.counters[metric]
	if !ok {
		if m.isRejected(metric) {
			return
		}

		names := labelNamesOf(labels)
		counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: metric, Help: helpFor(metric)}, names)

		if !m.register(metric, counter) {
			return
		}

		entry = vec[*prometheus.CounterVec]{metric: counter, labelNames: names}
		m.counters[metric] = entry
	}

	entry.metric.With(labelsFor(entry.labelNames, labels)).Inc()
}

// IncrementCounterContext adds one to the counter. The context is not used.
func (m *MetricsCollector) IncrementCounterContext(_ context.Context, metric string, labels map[string]string) {
	m.IncrementCounter(metric, labels)
}

// RecordValue sets the gauge.
func (m *MetricsCollector) RecordValue(metric string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.gauges[metric]
	if !ok {
		if m.isRejected(metric) {
			return
		}

		names := labelNamesOf(labels)
		gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: metric, Help: helpFor(metric)}, names)

		if !m.register(metric, gauge) {
			return
		}

		entry = vec[*prometheus.GaugeVec]{metric: gauge, labelNames: names}
		m.gauges[metric] = entry
	}

	entry.metric.With(labelsFor(entry.labelNames, labels)).Set(value)
}

// RecordValueContext sets the gauge. The context is not used.
func (m *MetricsCollector) RecordValueContext(_ context.Context, metric string, value float64, labels map[string]string) {
	m.RecordValue(metric, value, labels)
}

func (m *MetricsCollector) isRejected(metric string) bool {
	_, rejected := m.rejected[metric]
	return rejected
}

func (m *MetricsCollector) register(metric string, collector prometheus.Collector) bool {
	if err := m.registry.Register(collector); err != nil {
		m.rejected[metric] = struct{}{}
		return false
	}

	return true
}

func labelNamesOf(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func labelsFor(names []string, labels map[string]string) prometheus.Labels {
	result := make(prometheus.Labels, len(names))
	for _, name := range names {
		result[name] = labels[name]
	}

	return result
}

func helpFor(metric string) string {
	return "Tool ledger metric " + strings.ReplaceAll(metric, "_", " ")
}

var _ ledger.ContextualMetricsCollector = (*MetricsCollector)(nil)
