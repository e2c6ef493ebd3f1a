// Package observability provides Prometheus metrics for the pipeline:
// one struct registering every counter/gauge/histogram via promauto,
// and small Record* helpers at the call sites instead of threading
// *Metrics through every function signature.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus metric the pipeline emits.
type Metrics struct {
	// Ingestor metrics
	MessagesProcessed   prometheus.Counter
	PoolEventsProcessed prometheus.Counter
	SwapEventsProcessed prometheus.Counter
	IngestorErrors      prometheus.Counter
	EventsDropped       prometheus.Counter
	EventBufferDepth    prometheus.Gauge
	ReconnectAttempts   prometheus.Counter
	WSConnectionUp      prometheus.Gauge

	// Universe Manager metrics
	UniverseRefreshTotal   *prometheus.CounterVec
	UniverseRefreshSeconds prometheus.Histogram
	MonitoredSetSize       prometheus.Gauge
	CatalogBudgetUsed      prometheus.Gauge

	// Signal Engine metrics
	SignalsEmitted          prometheus.Counter
	SignalsGatedByLiquidity prometheus.Counter
	SignalsGatedByCooldown  prometheus.Counter
	LiquidityProbeSeconds   prometheus.Histogram

	// Store metrics
	StoreOpDuration *prometheus.HistogramVec
	StoreOpErrors   *prometheus.CounterVec

	// Scheduler/health metrics
	LastUniverseRefresh prometheus.Gauge
	LastPruneRun        prometheus.Gauge
	UptimeSeconds       prometheus.Counter
}

// New registers and returns a fresh Metrics instance under namespace
// (defaults to "solana_signal_pipeline" when empty).
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_signal_pipeline"
	}

	return &Metrics{
		MessagesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingestor", Name: "messages_processed_total",
			Help: "Total WebSocket log notifications processed",
		}),
		PoolEventsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingestor", Name: "pool_events_total",
			Help: "Total pool-init events upserted",
		}),
		SwapEventsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingestor", Name: "swap_events_total",
			Help: "Total swap events ingested into OHLCV buckets",
		}),
		IngestorErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingestor", Name: "errors_total",
			Help: "Total malformed/dropped notifications",
		}),
		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingestor", Name: "events_dropped_total",
			Help: "Total SwapEvents dropped from a full dispatch buffer",
		}),
		EventBufferDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "ingestor", Name: "event_buffer_depth",
			Help: "Current depth of the dispatch channel to the Signal Engine",
		}),
		ReconnectAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingestor", Name: "reconnect_attempts_total",
			Help: "Total WebSocket reconnect attempts",
		}),
		WSConnectionUp: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "ingestor", Name: "ws_connection_up",
			Help: "1 when the log-subscription WebSocket is Active, 0 otherwise",
		}),

		UniverseRefreshTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "universe", Name: "refresh_total",
			Help: "Total universe refresh ticks by source and outcome",
		}, []string{"source", "outcome"}),
		UniverseRefreshSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "universe", Name: "refresh_duration_seconds",
			Help: "Universe refresh tick duration", Buckets: prometheus.DefBuckets,
		}),
		MonitoredSetSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "universe", Name: "monitored_set_size",
			Help: "Current number of monitored mints",
		}),
		CatalogBudgetUsed: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "universe", Name: "catalog_budget_used",
			Help: "Requests consumed from the daily catalog API budget",
		}),

		SignalsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "signalengine", Name: "signals_emitted_total",
			Help: "Total signals inserted after passing the liquidity gate",
		}),
		SignalsGatedByLiquidity: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "signalengine", Name: "signals_gated_liquidity_total",
			Help: "Total candidate signals rejected by the liquidity probe gate",
		}),
		SignalsGatedByCooldown: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "signalengine", Name: "signals_gated_cooldown_total",
			Help: "Total candidate signals rejected by the per-mint cooldown",
		}),
		LiquidityProbeSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "signalengine", Name: "liquidity_probe_duration_seconds",
			Help: "Aggregator quote call duration", Buckets: prometheus.DefBuckets,
		}),

		StoreOpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "store", Name: "operation_duration_seconds",
			Help: "Store operation duration", Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		StoreOpErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "store", Name: "operation_errors_total",
			Help: "Store operation failures by operation and error kind",
		}, []string{"operation", "kind"}),

		LastUniverseRefresh: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "health", Name: "last_universe_refresh_timestamp",
			Help: "Unix timestamp of the last completed universe refresh",
		}),
		LastPruneRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "health", Name: "last_prune_run_timestamp",
			Help: "Unix timestamp of the last completed store prune",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "health", Name: "uptime_seconds_total",
			Help: "Total process uptime in seconds",
		}),
	}
}

// Handler returns the HTTP handler serving /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordStoreOp records a Store operation's duration and, if err is
// non-nil, classifies it by storage.Kind for the error counter.
func (m *Metrics) RecordStoreOp(operation string, seconds float64, transient bool, err error) {
	m.StoreOpDuration.WithLabelValues(operation).Observe(seconds)
	if err != nil {
		kind := "permanent"
		if transient {
			kind = "transient"
		}
		m.StoreOpErrors.WithLabelValues(operation, kind).Inc()
	}
}
