// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Poller metrics
	PollsTotal         *prometheus.CounterVec
	PollDuration       prometheus.Histogram
	SnapshotEvents     prometheus.Gauge
	LastSuccessfulPoll prometheus.Gauge
	SnapshotVersion    prometheus.Gauge

	// Upstream metrics
	RPCCallLatency  *prometheus.HistogramVec
	RPCCallErrors   *prometheus.CounterVec
	PriceFeedErrors *prometheus.CounterVec
	PriceFallbacks  *prometheus.CounterVec

	// Dashboard metrics
	ChartBuildsTotal   *prometheus.CounterVec
	ChartBuildDuration *prometheus.HistogramVec
	FetchCycles        prometheus.Counter
	SessionConnected   prometheus.Gauge
	ScalingFallbacks   prometheus.Counter
	ImageCacheLookups  *prometheus.CounterVec

	// Push metrics
	WSClients      prometheus.Gauge
	WSMessagesSent prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance registered with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "treasury_charts"
	}
	factory := promauto.With(reg)

	return &Metrics{
		PollsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "polls_total",
			Help:      "Total number of treasury polls by status",
		}, []string{"status"}),
		PollDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "poll_duration_seconds",
			Help:      "Treasury poll duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		SnapshotEvents: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "snapshot_events",
			Help:      "Number of rebase events in the current snapshot",
		}),
		LastSuccessfulPoll: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "last_successful_poll_timestamp",
			Help:      "Unix timestamp of last successful poll",
		}),
		SnapshotVersion: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "snapshot_version",
			Help:      "Version of the snapshot currently held",
		}),

		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "rpc_call_latency_seconds",
			Help:      "Chain provider RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "rpc_call_errors_total",
			Help:      "Total number of failed chain provider calls",
		}, []string{"method"}),
		PriceFeedErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricefeed",
			Name:      "errors_total",
			Help:      "Total number of failed price feed requests by asset",
		}, []string{"asset"}),
		PriceFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricefeed",
			Name:      "fallbacks_total",
			Help:      "Total number of times a stored price replaced a live one",
		}, []string{"asset"}),

		ChartBuildsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "chart_builds_total",
			Help:      "Total number of chart builds by chart and status",
		}, []string{"chart", "status"}),
		ChartBuildDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "chart_build_duration_seconds",
			Help:      "Chart build duration in seconds, upstream fetches included",
			Buckets:   prometheus.DefBuckets,
		}, []string{"chart"}),
		FetchCycles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "fetch_cycles_total",
			Help:      "Total number of dashboard fetch cycles started",
		}),
		SessionConnected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "session_connected",
			Help:      "1 when a wallet session is connected",
		}),
		ScalingFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "scaling_fallbacks_total",
			Help:      "Total number of scaling charts built from the stored history",
		}),
		ImageCacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "image_cache_lookups_total",
			Help:      "Rendered chart image cache lookups by result (hit, miss)",
		}, []string{"result"}),

		WSClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "clients",
			Help:      "Number of connected websocket clients",
		}),
		WSMessagesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "messages_sent_total",
			Help:      "Total number of websocket messages sent",
		}),

		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", prometheus.DefaultRegisterer)

// RecordPoll records a treasury poll.
func RecordPoll(status string, seconds float64) {
	DefaultMetrics.PollsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.PollDuration.Observe(seconds)
}

// RecordSnapshot updates the snapshot gauges after a successful poll.
func RecordSnapshot(version uint64, events int, unixSeconds int64) {
	DefaultMetrics.SnapshotVersion.Set(float64(version))
	DefaultMetrics.SnapshotEvents.Set(float64(events))
	DefaultMetrics.LastSuccessfulPoll.Set(float64(unixSeconds))
}

// RecordRPCCall records chain provider call latency and failures.
func RecordRPCCall(method string, seconds float64, err error) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
	if err != nil {
		DefaultMetrics.RPCCallErrors.WithLabelValues(method).Inc()
	}
}

// RecordPriceFeedError records a failed price lookup.
func RecordPriceFeedError(asset string) {
	DefaultMetrics.PriceFeedErrors.WithLabelValues(asset).Inc()
}

// RecordPriceFallback records a stored price used in place of a live one.
func RecordPriceFallback(asset string) {
	DefaultMetrics.PriceFallbacks.WithLabelValues(asset).Inc()
}

// RecordChartBuild records a chart build.
func RecordChartBuild(chart, status string, seconds float64) {
	DefaultMetrics.ChartBuildsTotal.WithLabelValues(chart, status).Inc()
	DefaultMetrics.ChartBuildDuration.WithLabelValues(chart).Observe(seconds)
}

// RecordScalingFallback records a scaling chart built from the stored history.
func RecordScalingFallback() {
	DefaultMetrics.ScalingFallbacks.Inc()
}

// RecordImageCache records a rendered image cache lookup.
func RecordImageCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	DefaultMetrics.ImageCacheLookups.WithLabelValues(result).Inc()
}

// RecordFetchCycle records the start of a dashboard fetch cycle.
func RecordFetchCycle() {
	DefaultMetrics.FetchCycles.Inc()
}

// SetSessionConnected updates the session gauge.
func SetSessionConnected(connected bool) {
	if connected {
		DefaultMetrics.SessionConnected.Set(1)
		return
	}
	DefaultMetrics.SessionConnected.Set(0)
}

// SetWSClients updates the websocket client gauge.
func SetWSClients(n int) {
	DefaultMetrics.WSClients.Set(float64(n))
}

// RecordWSMessage records a websocket message sent.
func RecordWSMessage() {
	DefaultMetrics.WSMessagesSent.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
