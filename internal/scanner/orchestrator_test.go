package scanner

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-given/token-monitor/internal/config"
	"github.com/zero-given/token-monitor/internal/models"
	"github.com/zero-given/token-monitor/internal/providers"
	"github.com/zero-given/token-monitor/internal/storage"
)

type stubHoneypot struct {
	report *providers.HoneypotReport
	err    error
}

func (s *stubHoneypot) Check(_ context.Context, address string) (*providers.HoneypotReport, error) {
	if s.err != nil {
		return providers.FailClosedReport(address, "honeypot check failed: "+s.err.Error()), s.err
	}
	r := *s.report
	r.Address = address
	return &r, nil
}

type stubSecurity struct {
	data *models.SecurityData
	err  error
}

func (s *stubSecurity) Scan(_ context.Context, _ string) (*models.SecurityData, error) {
	if s.err != nil {
		return &models.SecurityData{}, s.err
	}
	return s.data, nil
}

// deadlineHoneypot fails like a real HTTP client would when its context is
// already cancelled.
type deadlineHoneypot struct {
	report *providers.HoneypotReport
}

func (s *deadlineHoneypot) Check(ctx context.Context, address string) (*providers.HoneypotReport, error) {
	if err := ctx.Err(); err != nil {
		return providers.FailClosedReport(address, "honeypot check failed: "+err.Error()), err
	}
	r := *s.report
	r.Address = address
	return &r, nil
}

type recordingHub struct {
	updates  []string
	removals []string
}

func (h *recordingHub) BroadcastTokenUpdate(snap *models.TokenSnapshot) {
	h.updates = append(h.updates, snap.Address)
}

func (h *recordingHub) BroadcastTokenRemoval(address, _ string) {
	h.removals = append(h.removals, address)
}

// failingStore makes every snapshot write fail while the rest of the store
// keeps working, so failure bookkeeping can be exercised.
type failingStore struct {
	storage.Storage
}

func (f *failingStore) UpsertSnapshot(_ context.Context, _ *models.TokenSnapshot) (int, error) {
	return 0, errors.New("disk full")
}

func newScannerStore(t *testing.T) storage.Storage {
	t.Helper()

	cfg := &config.StorageConfig{
		Type:             "sqlite",
		ConnectionString: filepath.Join(t.TempDir(), "scanner.db"),
		MaxConnections:   1,
		MaxIdleTime:      time.Minute,
	}
	store := storage.NewSQLiteStorage(cfg)
	require.NoError(t, store.Connect())
	t.Cleanup(func() { store.Close() })
	return store
}

func testScanConfig() *config.ScannerConfig {
	return &config.ScannerConfig{
		PollInterval:            time.Second,
		RescanInterval:          time.Minute,
		MinRescanAge:            time.Minute,
		MaxScans:                1000,
		HoneypotFailureLimit:    5,
		LiquiditySampleInterval: 1,
		ScanTimeout:             time.Minute,
	}
}

func safeReport() *providers.HoneypotReport {
	return &providers.HoneypotReport{
		VerdictKnown: true,
		IsHoneypot:   false,
		TokenName:    "Test Token",
		TokenSymbol:  "TST",
		Data: models.HoneypotData{
			SimulationSuccess: true,
			PairLiquidity:     5000,
			BuyTax:            1,
			SellTax:           2,
		},
	}
}

func TestScanSuccessWritesSnapshot(t *testing.T) {
	store := newScannerStore(t)
	hub := &recordingHub{}
	o := NewOrchestrator(store,
		&stubHoneypot{report: safeReport()},
		&stubSecurity{data: &models.SecurityData{Found: true, HolderCount: 7}},
		testScanConfig(), hub, nil)

	snap, err := o.Scan(context.Background(), "0xtoken", "0xpair")
	require.NoError(t, err)
	require.NotNil(t, snap)

	stored, err := store.GetSnapshot(context.Background(), "0xtoken")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 1, stored.TotalScans)
	assert.Equal(t, "TST", stored.Symbol)
	assert.False(t, stored.IsHoneypot)
	assert.Equal(t, 5000.0, stored.Liquidity)
	assert.True(t, stored.Security.Found)
	assert.Nil(t, stored.AgeHours, "no creation time means unknown age")

	assert.Equal(t, []string{"0xtoken"}, hub.updates)
}

func TestScanSecurityExhaustionStillWritesSnapshot(t *testing.T) {
	store := newScannerStore(t)
	o := NewOrchestrator(store,
		&stubHoneypot{report: safeReport()},
		&stubSecurity{err: errors.New("connection refused")},
		testScanConfig(), nil, nil)

	snap, err := o.Scan(context.Background(), "0xtoken", "0xpair")
	require.NoError(t, err, "a degraded provider is not a failed scan")
	require.NotNil(t, snap)

	stored, err := store.GetSnapshot(context.Background(), "0xtoken")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 1, stored.TotalScans)
	assert.False(t, stored.Security.Found, "security fields stay empty")
	assert.Equal(t, 0, stored.ConsecutiveFailures)
}

func TestScanHoneypotTransportFailureFailsClosed(t *testing.T) {
	store := newScannerStore(t)
	o := NewOrchestrator(store,
		&stubHoneypot{err: errors.New("timeout")},
		&stubSecurity{data: &models.SecurityData{}},
		testScanConfig(), nil, nil)

	snap, err := o.Scan(context.Background(), "0xtoken", "0xpair")
	require.NoError(t, err)
	require.NotNil(t, snap)

	assert.True(t, snap.IsHoneypot, "unverifiable tokens default to honeypot")
	assert.Contains(t, snap.HoneypotReason, "honeypot check failed")
}

func TestRescansAccumulateLiquidityBuckets(t *testing.T) {
	store := newScannerStore(t)
	report := safeReport()
	report.Data.PairLiquidity = 777
	o := NewOrchestrator(store,
		&stubHoneypot{report: report},
		&stubSecurity{data: &models.SecurityData{}},
		testScanConfig(), nil, nil)

	for i := 0; i < 10; i++ {
		_, err := o.Scan(context.Background(), "0xtoken", "0xpair")
		require.NoError(t, err)
	}

	stored, err := store.GetSnapshot(context.Background(), "0xtoken")
	require.NoError(t, err)
	assert.Equal(t, 10, stored.TotalScans)
	require.NotNil(t, stored.Buckets[0], "checkpoint 10 recorded")
	assert.Equal(t, 777.0, *stored.Buckets[0])
	assert.Nil(t, stored.Buckets[1])
}

func TestScanInFlightSurvivesShutdownSignal(t *testing.T) {
	store := newScannerStore(t)
	o := NewOrchestrator(store,
		&deadlineHoneypot{report: safeReport()},
		&stubSecurity{data: &models.SecurityData{}},
		testScanConfig(), nil, nil)

	// The caller's context is already cancelled, as it is when a shutdown
	// signal arrives while a scan is in flight
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snap, err := o.Scan(ctx, "0xtoken", "0xpair")
	require.NoError(t, err, "shutdown must not cut a started scan short")
	require.NotNil(t, snap)
	assert.False(t, snap.IsHoneypot)

	stored, err := store.GetSnapshot(context.Background(), "0xtoken")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 1, stored.TotalScans)
}

func TestPersistenceFailuresLeadToEviction(t *testing.T) {
	realStore := newScannerStore(t)
	hub := &recordingHub{}
	o := NewOrchestrator(&failingStore{Storage: realStore},
		&stubHoneypot{report: safeReport()},
		&stubSecurity{data: &models.SecurityData{}},
		testScanConfig(), hub, nil)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := o.Scan(ctx, "0xdoomed", "0xpair")
		require.Error(t, err)
	}

	// Failure rows fail closed, so five persistence failures hit the limit
	live, err := realStore.GetSnapshot(ctx, "0xdoomed")
	require.NoError(t, err)
	assert.Nil(t, live)

	removed, err := realStore.GetRemovedTokens(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, "0xdoomed", removed[0].Address)
	assert.Equal(t, RemovalReason(5), removed[0].RemovalReason)

	assert.Equal(t, []string{"0xdoomed"}, hub.removals)
	assert.Empty(t, hub.updates)
}
