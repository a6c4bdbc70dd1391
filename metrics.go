package measstore

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector receives operational events from the engine.
type MetricsCollector interface {
	// TaskDone is called after every executed ingestion task.
	TaskDone(err error)
	// ChunkFetched is called for every remote codestream chunk fetch.
	ChunkFetched()
	// AccessorCacheStats receives cumulative accessor cache counters.
	AccessorCacheStats(hits, misses int64)
	// QueueDepth receives the current ingestion queue depth.
	QueueDepth(n int)
}

// NopMetrics discards all events.
type NopMetrics struct{}

func (NopMetrics) TaskDone(error)                  {}
func (NopMetrics) ChunkFetched()                   {}
func (NopMetrics) AccessorCacheStats(int64, int64) {}
func (NopMetrics) QueueDepth(int)                  {}

// PrometheusMetrics exposes engine counters via a prometheus registry.
type PrometheusMetrics struct {
	tasksTotal   *prometheus.CounterVec
	chunkFetches prometheus.Counter
	cacheHits    prometheus.Gauge
	cacheMisses  prometheus.Gauge
	queueDepth   prometheus.Gauge
}

// Compile time check to ensure the MetricsCollector interface is satisfied.
var _ MetricsCollector = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics registers the engine collectors with reg.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "measstore_ingest_tasks_total",
			Help: "Ingestion tasks executed, by outcome.",
		}, []string{"outcome"}),
		chunkFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "measstore_codestream_chunk_fetches_total",
			Help: "Remote codestream chunk fetches.",
		}),
		cacheHits: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "measstore_accessor_cache_hits",
			Help: "Cumulative codestream accessor cache hits.",
		}),
		cacheMisses: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "measstore_accessor_cache_misses",
			Help: "Cumulative codestream accessor cache misses.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "measstore_ingest_queue_depth",
			Help: "Pending ingestion tasks.",
		}),
	}
	reg.MustRegister(m.tasksTotal, m.chunkFetches, m.cacheHits, m.cacheMisses, m.queueDepth)
	return m
}

func (m *PrometheusMetrics) TaskDone(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.tasksTotal.WithLabelValues(outcome).Inc()
}

func (m *PrometheusMetrics) ChunkFetched() {
	m.chunkFetches.Inc()
}

func (m *PrometheusMetrics) AccessorCacheStats(hits, misses int64) {
	m.cacheHits.Set(float64(hits))
	m.cacheMisses.Set(float64(misses))
}

func (m *PrometheusMetrics) QueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}
