package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics holds all Prometheus metrics for the monitor
type PrometheusMetrics struct {
	// Scan pipeline metrics
	ScansTotal      *prometheus.CounterVec
	ScanDuration    prometheus.Histogram
	EvictionsTotal  prometheus.Counter
	RescansSelected prometheus.Counter
	PairsDiscovered prometheus.Counter

	// Provider metrics
	ProviderRequests *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec

	// Chain metrics
	RPCRequests      *prometheus.CounterVec
	LatestBlock      prometheus.Gauge
	ConnectionStatus prometheus.Gauge

	// Storage metrics
	ActiveTokens  prometheus.Gauge
	RemovedTokens prometheus.Gauge
	StorageOps    *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Push channel metrics
	WSClients  prometheus.Gauge
	WSMessages prometheus.Counter
}

// NewPrometheusMetrics creates and registers all Prometheus metrics
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		ScansTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "token_monitor_scans_total",
				Help: "Total number of token scans by outcome",
			},
			[]string{"status"},
		),
		ScanDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "token_monitor_scan_duration_seconds",
				Help:    "Duration of a full token scan",
				Buckets: prometheus.DefBuckets,
			},
		),
		EvictionsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "token_monitor_evictions_total",
				Help: "Total number of tokens evicted to the removed set",
			},
		),
		RescansSelected: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "token_monitor_rescans_selected_total",
				Help: "Total number of tokens selected for rescan",
			},
		),
		PairsDiscovered: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "token_monitor_pairs_discovered_total",
				Help: "Total number of matching pairs discovered on chain",
			},
		),
		ProviderRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "token_monitor_provider_requests_total",
				Help: "Total number of risk provider requests by outcome",
			},
			[]string{"provider", "status"},
		),
		ProviderDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "token_monitor_provider_duration_seconds",
				Help:    "Duration of risk provider requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		RPCRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "token_monitor_rpc_requests_total",
				Help: "Total number of chain RPC requests by method and status",
			},
			[]string{"method", "status"},
		),
		LatestBlock: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "token_monitor_latest_block",
				Help: "Latest block number observed on chain",
			},
		),
		ConnectionStatus: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "token_monitor_connection_status",
				Help: "Chain connection status (1 = connected, 0 = disconnected)",
			},
		),
		ActiveTokens: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "token_monitor_active_tokens",
				Help: "Number of tokens currently tracked",
			},
		),
		RemovedTokens: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "token_monitor_removed_tokens",
				Help: "Number of tokens in the removed set",
			},
		),
		StorageOps: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "token_monitor_storage_operations_total",
				Help: "Total number of storage operations by type and status",
			},
			[]string{"operation", "status"},
		),
		HTTPRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "token_monitor_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "token_monitor_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		WSClients: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "token_monitor_ws_clients",
				Help: "Number of connected WebSocket clients",
			},
		),
		WSMessages: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "token_monitor_ws_messages_total",
				Help: "Total number of messages broadcast to WebSocket clients",
			},
		),
	}
}

// RecordScan records a completed scan with its outcome
func (m *PrometheusMetrics) RecordScan(status string, seconds float64) {
	m.ScansTotal.WithLabelValues(status).Inc()
	m.ScanDuration.Observe(seconds)
}

// RecordProviderRequest records a risk provider call
func (m *PrometheusMetrics) RecordProviderRequest(provider, status string, seconds float64) {
	m.ProviderRequests.WithLabelValues(provider, status).Inc()
	m.ProviderDuration.WithLabelValues(provider).Observe(seconds)
}

// RecordRPCRequest records a chain RPC call
func (m *PrometheusMetrics) RecordRPCRequest(method, status string) {
	m.RPCRequests.WithLabelValues(method, status).Inc()
}

// RecordStorageOperation records a storage operation
func (m *PrometheusMetrics) RecordStorageOperation(operation, status string) {
	m.StorageOps.WithLabelValues(operation, status).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *PrometheusMetrics) RecordHTTPRequest(method, path, status string, seconds float64) {
	m.HTTPRequests.WithLabelValues(method, path, status).Inc()
	m.HTTPDuration.WithLabelValues(method, path).Observe(seconds)
}

// UpdateTokenCounts refreshes the live/removed token gauges
func (m *PrometheusMetrics) UpdateTokenCounts(active, removed int64) {
	m.ActiveTokens.Set(float64(active))
	m.RemovedTokens.Set(float64(removed))
}

// SetConnectionStatus updates the chain connection gauge
func (m *PrometheusMetrics) SetConnectionStatus(connected bool) {
	if connected {
		m.ConnectionStatus.Set(1)
	} else {
		m.ConnectionStatus.Set(0)
	}
}
