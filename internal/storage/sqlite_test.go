package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-given/token-monitor/internal/config"
	"github.com/zero-given/token-monitor/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()

	cfg := &config.StorageConfig{
		Type:             "sqlite",
		ConnectionString: filepath.Join(t.TempDir(), "tokens.db"),
		MaxConnections:   1,
		MaxIdleTime:      time.Minute,
	}
	store := NewSQLiteStorage(cfg)
	require.NoError(t, store.Connect())
	t.Cleanup(func() { store.Close() })
	return store
}

func testSnapshot(address string, lastScan time.Time, honeypot bool) *models.TokenSnapshot {
	return &models.TokenSnapshot{
		Address:     address,
		PairAddress: "0xpair-" + address,
		Name:        "Test Token",
		Symbol:      "TST",
		Decimals:    18,
		LastScanAt:  lastScan,
		IsHoneypot:  honeypot,
		Liquidity:   1000,
	}
}

func TestUpsertSnapshotLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	snap := testSnapshot("0xaaa", first, false)

	total, err := store.UpsertSnapshot(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, models.StatusNew, snap.Status)
	assert.Equal(t, first, snap.FirstSeen)

	second := first.Add(time.Minute)
	snap2 := testSnapshot("0xaaa", second, true)
	total, err = store.UpsertSnapshot(ctx, snap2)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, models.StatusActive, snap2.Status)

	stored, err := store.GetSnapshot(ctx, "0xaaa")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 2, stored.TotalScans)
	assert.Equal(t, 0, stored.ConsecutiveFailures)
	assert.True(t, stored.IsHoneypot)
	assert.Equal(t, first, stored.FirstSeen.UTC(), "first_seen carried from original row")
	assert.Equal(t, second, stored.LastScanAt.UTC())
}

func TestUpsertResetsFailuresAndKeepsLastError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	_, err := store.UpsertSnapshot(ctx, testSnapshot("0xbbb", now, true))
	require.NoError(t, err)

	failures, err := store.RecordFailure(ctx, "0xbbb", "provider timeout")
	require.NoError(t, err)
	assert.Equal(t, 1, failures)

	// A later successful scan resets the counter but keeps the error text
	_, err = store.UpsertSnapshot(ctx, testSnapshot("0xbbb", now.Add(time.Minute), false))
	require.NoError(t, err)

	stored, err := store.GetSnapshot(ctx, "0xbbb")
	require.NoError(t, err)
	assert.Equal(t, 0, stored.ConsecutiveFailures)
	assert.Equal(t, "provider timeout", stored.LastError)
}

func TestRecordFailureCreatesRowForUnknownToken(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	failures, err := store.RecordFailure(ctx, "0xnew", "boom")
	require.NoError(t, err)
	assert.Equal(t, 1, failures)

	stored, err := store.GetSnapshot(ctx, "0xnew")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 1, stored.TotalScans)
	assert.Equal(t, 1, stored.ConsecutiveFailures)
	assert.True(t, stored.IsHoneypot, "unknown tokens fail closed")
	assert.Equal(t, "boom", stored.LastError)
}

func TestRecordFailureIsAdditive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	_, err := store.UpsertSnapshot(ctx, testSnapshot("0xccc", now, true))
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		failures, err := store.RecordFailure(ctx, "0xccc", "err")
		require.NoError(t, err)
		assert.Equal(t, i, failures)
	}

	stored, err := store.GetSnapshot(ctx, "0xccc")
	require.NoError(t, err)
	assert.Equal(t, "err", stored.LastError)
	assert.Equal(t, 1, stored.TotalScans, "failures do not advance total_scans")
}

func TestEvictTokenRequiresBothConditions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seed := func(addr string, honeypot bool, failures int) {
		_, err := store.UpsertSnapshot(ctx, testSnapshot(addr, now, honeypot))
		require.NoError(t, err)
		for i := 0; i < failures; i++ {
			_, err := store.RecordFailure(ctx, addr, "fail")
			require.NoError(t, err)
		}
	}

	seed("0xhp-at-limit", true, 5)
	seed("0xhp-under", true, 4)
	seed("0xclean-at-limit", false, 5)

	evicted, err := store.EvictToken(ctx, "0xhp-at-limit", 5, "Exceeded honeypot failure limit (5)")
	require.NoError(t, err)
	assert.True(t, evicted)

	evicted, err = store.EvictToken(ctx, "0xhp-under", 5, "reason")
	require.NoError(t, err)
	assert.False(t, evicted, "below the failure limit")

	evicted, err = store.EvictToken(ctx, "0xclean-at-limit", 5, "reason")
	require.NoError(t, err)
	assert.False(t, evicted, "not flagged as honeypot")

	evicted, err = store.EvictToken(ctx, "0xmissing", 5, "reason")
	require.NoError(t, err)
	assert.False(t, evicted)
}

func TestEvictionIsMutuallyExclusive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := store.UpsertSnapshot(ctx, testSnapshot("0xdead", now, true))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := store.RecordFailure(ctx, "0xdead", "honeypot check failed")
		require.NoError(t, err)
	}

	evicted, err := store.EvictToken(ctx, "0xdead", 5, "Exceeded honeypot failure limit (5)")
	require.NoError(t, err)
	require.True(t, evicted)

	live, err := store.GetSnapshot(ctx, "0xdead")
	require.NoError(t, err)
	assert.Nil(t, live, "evicted token must leave the live set")

	removed, err := store.GetRemovedTokens(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, "0xdead", removed[0].Address)
	assert.Equal(t, "Exceeded honeypot failure limit (5)", removed[0].RemovalReason)
	assert.Equal(t, 5, removed[0].Failures)
	assert.Equal(t, "honeypot check failed", removed[0].LastError)
}

func TestSelectDueOrderingAndExclusions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-10 * time.Minute)

	withAge := func(addr string, lastScan time.Time, age *float64) *models.TokenSnapshot {
		snap := testSnapshot(addr, lastScan, false)
		snap.AgeHours = age
		return snap
	}
	hours := func(h float64) *float64 { return &h }

	// Eligible, varying ages
	_, err := store.UpsertSnapshot(ctx, withAge("0xyoung", old, hours(5)))
	require.NoError(t, err)
	_, err = store.UpsertSnapshot(ctx, withAge("0xold", old, hours(10)))
	require.NoError(t, err)
	_, err = store.UpsertSnapshot(ctx, withAge("0xunknown-age", old, nil))
	require.NoError(t, err)

	// Too recently scanned
	_, err = store.UpsertSnapshot(ctx, withAge("0xfresh", now.Add(-10*time.Second), hours(50)))
	require.NoError(t, err)

	// At the failure limit
	_, err = store.UpsertSnapshot(ctx, withAge("0xfailing", old, hours(50)))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err = store.RecordFailure(ctx, "0xfailing", "fail")
		require.NoError(t, err)
	}

	// At the scan cap (maxScans=3 below)
	capped := withAge("0xcapped", old, hours(50))
	for i := 0; i < 3; i++ {
		_, err = store.UpsertSnapshot(ctx, withAge("0xcapped", old, capped.AgeHours))
		require.NoError(t, err)
	}

	due, err := store.SelectDue(ctx, now, 5, 3, time.Minute)
	require.NoError(t, err)

	addresses := make([]string, len(due))
	for i, c := range due {
		addresses[i] = c.Address
	}
	assert.Equal(t, []string{"0xold", "0xyoung", "0xunknown-age"}, addresses,
		"oldest first, unknown ages last")
}

func TestRescanQueueBookkeeping(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.EnqueueRescan(ctx, "0xqueued", "0xpair"))
	require.NoError(t, store.EnqueueRescan(ctx, "0xqueued", "0xpair"), "duplicate enqueue is a no-op")
	require.NoError(t, store.BumpRescanCount(ctx, "0xqueued"))

	stats, err := store.GetStorageStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.RescanQueueSize)
}

func TestGetSnapshotsFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	hp := testSnapshot("0x111", now, true)
	hp.Symbol = "SCAM"
	_, err := store.UpsertSnapshot(ctx, hp)
	require.NoError(t, err)

	clean := testSnapshot("0x222", now.Add(time.Second), false)
	clean.Symbol = "GOOD"
	_, err = store.UpsertSnapshot(ctx, clean)
	require.NoError(t, err)

	isHoneypot := true
	got, err := store.GetSnapshots(ctx, models.SnapshotFilter{IsHoneypot: &isHoneypot})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "0x111", got[0].Address)

	got, err = store.GetSnapshots(ctx, models.SnapshotFilter{Search: "GOOD"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "0x222", got[0].Address)

	count, err := store.GetSnapshotCount(ctx, models.SnapshotFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestSnapshotRoundTripDetailColumns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	snap := testSnapshot("0xdetail", now, false)
	snap.Honeypot = models.HoneypotData{
		SimulationSuccess: true,
		BuyTax:            1.5,
		SellTax:           2.5,
		PairLiquidity:     12345.6,
		Token0Symbol:      "TST",
		Token1Symbol:      "WETH",
	}
	snap.Security = models.SecurityData{
		Found:        true,
		IsOpenSource: true,
		HolderCount:  42,
		BuyTax:       1.5,
	}
	liq := 500.0
	snap.Buckets[0] = &liq

	_, err := store.UpsertSnapshot(ctx, snap)
	require.NoError(t, err)

	stored, err := store.GetSnapshot(ctx, "0xdetail")
	require.NoError(t, err)
	require.NotNil(t, stored)

	assert.Equal(t, snap.Honeypot.PairLiquidity, stored.Honeypot.PairLiquidity)
	assert.Equal(t, "WETH", stored.Honeypot.Token1Symbol)
	assert.True(t, stored.Security.Found)
	assert.Equal(t, 42, stored.Security.HolderCount)
	require.NotNil(t, stored.Buckets[0])
	assert.Equal(t, 500.0, *stored.Buckets[0])
	assert.Nil(t, stored.Buckets[1])
}
