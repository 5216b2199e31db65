package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Insert kinds reported by WriterMetrics.
const (
	InsertOne  = "one"
	InsertMany = "many"
)

// Failure reasons reported by WriterMetrics.
const (
	ReasonSerialization = "serialization"
	ReasonResolution    = "resolution"
	ReasonStore         = "store"
	ReasonCancelled     = "cancelled"
)

// WriterMetrics counts the work done by a batch writer.
// A nil *WriterMetrics is valid and records nothing.
type WriterMetrics struct {
	records  prometheus.Counter
	groups   prometheus.Counter
	inserts  *prometheus.CounterVec
	failures *prometheus.CounterVec
	latency  prometheus.Histogram
}

// NewWriterMetrics creates writer metrics labelled with the destination name.
// They are not registered; see Collectors.
func NewWriterMetrics(namespace, destination string) *WriterMetrics {
	constLabels := prometheus.Labels{"destination": destination}
	return &WriterMetrics{
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "writer",
			Name:        "records_total",
			Help:        "Total number of records submitted to the writer.",
			ConstLabels: constLabels,
		}),
		groups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "writer",
			Name:        "groups_total",
			Help:        "Total number of destination groups flushed.",
			ConstLabels: constLabels,
		}),
		inserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "writer",
			Name:        "insert_calls_total",
			Help:        "Total number of insert calls by kind (one, many).",
			ConstLabels: constLabels,
		}, []string{"kind"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "writer",
			Name:        "failures_total",
			Help:        "Total number of failed write calls by reason.",
			ConstLabels: constLabels,
		}, []string{"reason"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "writer",
			Name:        "write_duration_seconds",
			Help:        "Latency of write calls.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		}),
	}
}

// Collectors returns the underlying collectors for registration.
func (m *WriterMetrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.records, m.groups, m.inserts, m.failures, m.latency}
}

// Register adds the collectors to the shared registry.
func (m *WriterMetrics) Register() error {
	for _, c := range m.Collectors() {
		if err := RegisterCollector(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveRecords counts the records handed to one write call.
func (m *WriterMetrics) ObserveRecords(n int) {
	if m == nil {
		return
	}
	m.records.Add(float64(n))
}

// ObserveInsert counts a flushed group and its insert call kind,
// InsertOne or InsertMany.
func (m *WriterMetrics) ObserveInsert(kind string) {
	if m == nil {
		return
	}
	m.groups.Inc()
	m.inserts.WithLabelValues(kind).Inc()
}

// ObserveFailure counts a failed write call under reason.
func (m *WriterMetrics) ObserveFailure(reason string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(reason).Inc()
}

// ObserveDuration records the latency of one write call.
func (m *WriterMetrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.latency.Observe(d.Seconds())
}
