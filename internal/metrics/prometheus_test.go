package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecording(t *testing.T) {
	// promauto registers on the default registry, so one instance per test
	// binary
	m := NewPrometheusMetrics()

	m.RecordScan("success", 0.5)
	m.RecordScan("success", 0.2)
	m.RecordScan("failure", 1.1)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ScansTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScansTotal.WithLabelValues("failure")))

	m.RecordStorageOperation("upsert_snapshot", "success")
	m.RecordStorageOperation("upsert_snapshot", "error")
	m.RecordStorageOperation("evict_token", "success")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StorageOps.WithLabelValues("upsert_snapshot", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StorageOps.WithLabelValues("upsert_snapshot", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StorageOps.WithLabelValues("evict_token", "success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.StorageOps.WithLabelValues("record_failure", "error")))

	m.RecordProviderRequest("honeypot", "success", 0.3)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderRequests.WithLabelValues("honeypot", "success")))

	m.RecordRPCRequest("eth_getLogs", "success")
	m.RecordRPCRequest("eth_getLogs", "error")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RPCRequests.WithLabelValues("eth_getLogs", "error")))

	m.SetConnectionStatus(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConnectionStatus))
	m.SetConnectionStatus(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ConnectionStatus))

	m.UpdateTokenCounts(42, 7)
	assert.Equal(t, 42.0, testutil.ToFloat64(m.ActiveTokens))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.RemovedTokens))
}
