package prometheus

import (
	"strconv"
	"time"

	"intranet-portal/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements metrics.Collector for Prometheus.
type PrometheusCollector struct {
	namespace string

	// Ledger
	ledgerOps     *prometheus.CounterVec
	ledgerLatency *prometheus.HistogramVec
	balance       prometheus.Gauge
	pending       prometheus.Gauge

	// Markdown
	renders       *prometheus.CounterVec
	renderLatency *prometheus.HistogramVec

	// Render cache layers
	cacheHits    *prometheus.CounterVec
	cacheMisses  *prometheus.CounterVec
	cacheSets    *prometheus.CounterVec
	cacheDeletes *prometheus.CounterVec
	cacheErrors  *prometheus.CounterVec
	getLatency   *prometheus.HistogramVec

	// Circuit breaker
	circuitOpens *prometheus.CounterVec
	circuitState *prometheus.GaugeVec

	// Chain-level
	chainHits    *prometheus.CounterVec
	chainMisses  prometheus.Counter
	chainLatency *prometheus.HistogramVec

	// Audit trail
	auditWrites  *prometheus.CounterVec
	auditDropped *prometheus.CounterVec
	auditQueue   *prometheus.GaugeVec
	auditLatency *prometheus.HistogramVec
}

var fastBuckets = prometheus.ExponentialBuckets(0.0001, 2, 15) // 0.1ms to ~3s

// NewPrometheusCollector creates a new Prometheus metrics collector.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	return &PrometheusCollector{
		namespace: namespace,
		ledgerOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_operations_total",
				Help:      "Treasury ledger operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		ledgerLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ledger_operation_duration_seconds",
				Help:      "Treasury ledger operation latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		balance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_balance",
			Help:      "Current approved cashbox balance",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_pending_total",
			Help:      "Signed net of pending transactions",
		}),
		renders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "markdown_renders_total",
				Help:      "Markdown renders by cache usage",
			},
			[]string{"cached"},
		),
		renderLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "markdown_render_duration_seconds",
				Help:      "Markdown render latency",
				Buckets:   fastBuckets,
			},
			[]string{"cached"},
		),
		cacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of render cache hits per layer",
			},
			[]string{"layer"},
		),
		cacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of render cache misses per layer",
			},
			[]string{"layer"},
		),
		cacheSets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_sets_total",
				Help:      "Total number of render cache set operations per layer",
			},
			[]string{"layer"},
		),
		cacheDeletes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_deletes_total",
				Help:      "Total number of render cache delete operations per layer",
			},
			[]string{"layer"},
		),
		cacheErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_errors_total",
				Help:      "Total number of render cache errors per layer and operation",
			},
			[]string{"layer", "operation"},
		),
		getLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cache_get_duration_seconds",
				Help:      "Render cache get latency",
				Buckets:   fastBuckets,
			},
			[]string{"layer"},
		),
		circuitOpens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_opens_total",
				Help:      "Total number of circuit breaker opens per layer",
			},
			[]string{"layer"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Current circuit breaker state per layer (0=closed, 1=open, 2=half-open)",
			},
			[]string{"layer"},
		),
		chainHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chain_hits_total",
				Help:      "Render cache chain hits by layer index",
			},
			[]string{"layer_index"},
		),
		chainMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chain_misses_total",
			Help:      "Render cache chain misses",
		}),
		chainLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "chain_get_duration_seconds",
				Help:      "Render cache chain lookup latency",
				Buckets:   fastBuckets,
			},
			[]string{"hit"},
		),
		auditWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_writes_total",
				Help:      "Audit events written per sink and status",
			},
			[]string{"sink", "status"},
		),
		auditDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_dropped_total",
				Help:      "Audit events dropped because the queue was full",
			},
			[]string{"sink"},
		),
		auditQueue: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "audit_queue_depth",
				Help:      "Pending audit events per sink",
			},
			[]string{"sink"},
		),
		auditLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "audit_write_duration_seconds",
				Help:      "Audit sink write latency",
				Buckets:   fastBuckets,
			},
			[]string{"sink"},
		),
	}
}

func (pc *PrometheusCollector) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		pc.ledgerOps, pc.ledgerLatency, pc.balance, pc.pending,
		pc.renders, pc.renderLatency,
		pc.cacheHits, pc.cacheMisses, pc.cacheSets, pc.cacheDeletes, pc.cacheErrors, pc.getLatency,
		pc.circuitOpens, pc.circuitState,
		pc.chainHits, pc.chainMisses, pc.chainLatency,
		pc.auditWrites, pc.auditDropped, pc.auditQueue, pc.auditLatency,
	}
}

// Register registers all metrics with the given registerer.
func (pc *PrometheusCollector) Register(registerer prometheus.Registerer) error {
	for _, collector := range pc.collectors() {
		if err := registerer.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

// RecordLedgerOperation records a treasury operation.
func (pc *PrometheusCollector) RecordLedgerOperation(operation string, outcome string, duration time.Duration) {
	pc.ledgerOps.WithLabelValues(operation, outcome).Inc()
	pc.ledgerLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordBalance updates the balance gauges.
func (pc *PrometheusCollector) RecordBalance(balance, pending float64) {
	pc.balance.Set(balance)
	pc.pending.Set(pending)
}

// RecordRender records a markdown render.
func (pc *PrometheusCollector) RecordRender(cached bool, duration time.Duration) {
	label := strconv.FormatBool(cached)
	pc.renders.WithLabelValues(label).Inc()
	pc.renderLatency.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordCacheGet records a cache get operation.
func (pc *PrometheusCollector) RecordCacheGet(layer string, hit bool, duration time.Duration) {
	if hit {
		pc.cacheHits.WithLabelValues(layer).Inc()
	} else {
		pc.cacheMisses.WithLabelValues(layer).Inc()
	}
	pc.getLatency.WithLabelValues(layer).Observe(duration.Seconds())
}

// RecordCacheSet records a cache set operation.
func (pc *PrometheusCollector) RecordCacheSet(layer string, success bool, duration time.Duration) {
	pc.cacheSets.WithLabelValues(layer).Inc()
	if !success {
		pc.cacheErrors.WithLabelValues(layer, "set").Inc()
	}
}

// RecordCacheDelete records a cache delete operation.
func (pc *PrometheusCollector) RecordCacheDelete(layer string, success bool, duration time.Duration) {
	pc.cacheDeletes.WithLabelValues(layer).Inc()
	if !success {
		pc.cacheErrors.WithLabelValues(layer, "delete").Inc()
	}
}

// RecordCircuitState records the current circuit breaker state.
func (pc *PrometheusCollector) RecordCircuitState(layer string, state metrics.CircuitState) {
	pc.circuitState.WithLabelValues(layer).Set(float64(state))
	if state == metrics.CircuitOpen {
		pc.circuitOpens.WithLabelValues(layer).Inc()
	}
}

// RecordChainGet records a chain-level get operation.
func (pc *PrometheusCollector) RecordChainGet(hit bool, layerIndex int, totalDuration time.Duration) {
	if hit {
		pc.chainHits.WithLabelValues(strconv.Itoa(layerIndex)).Inc()
	} else {
		pc.chainMisses.Inc()
	}
	pc.chainLatency.WithLabelValues(strconv.FormatBool(hit)).Observe(totalDuration.Seconds())
}

// RecordAuditWrite records an audit sink write.
func (pc *PrometheusCollector) RecordAuditWrite(sink string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	pc.auditWrites.WithLabelValues(sink, status).Inc()
	pc.auditLatency.WithLabelValues(sink).Observe(duration.Seconds())
}

// RecordAuditDropped records a dropped audit event.
func (pc *PrometheusCollector) RecordAuditDropped(sink string) {
	pc.auditDropped.WithLabelValues(sink).Inc()
}

// RecordAuditQueueDepth records the audit queue depth.
func (pc *PrometheusCollector) RecordAuditQueueDepth(sink string, depth int) {
	pc.auditQueue.WithLabelValues(sink).Set(float64(depth))
}
