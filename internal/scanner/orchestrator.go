package scanner

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zero-given/token-monitor/internal/config"
	"github.com/zero-given/token-monitor/internal/metrics"
	"github.com/zero-given/token-monitor/internal/models"
	"github.com/zero-given/token-monitor/internal/providers"
	"github.com/zero-given/token-monitor/internal/storage"
	"github.com/zero-given/token-monitor/pkg/utils"
)

// HoneypotChecker is the honeypot provider dependency.
type HoneypotChecker interface {
	Check(ctx context.Context, address string) (*providers.HoneypotReport, error)
}

// SecurityScanner is the security provider dependency.
type SecurityScanner interface {
	Scan(ctx context.Context, address string) (*models.SecurityData, error)
}

// Broadcaster pushes snapshot changes to connected clients.
type Broadcaster interface {
	BroadcastTokenUpdate(snap *models.TokenSnapshot)
	BroadcastTokenRemoval(address, reason string)
}

// Orchestrator runs the full scan sequence for one token: provider queries,
// merge, age derivation, persistence, liquidity checkpointing and eviction
// on failure. It is driven by a single loop, so per-address writes never
// race.
type Orchestrator struct {
	store    storage.Storage
	honeypot HoneypotChecker
	security SecurityScanner
	cfg      *config.ScannerConfig
	hub      Broadcaster
	prom     *metrics.PrometheusMetrics
	logger   *logrus.Logger
	now      func() time.Time
}

// NewOrchestrator creates a scan orchestrator. hub and prom may be nil.
func NewOrchestrator(store storage.Storage, honeypot HoneypotChecker, security SecurityScanner,
	cfg *config.ScannerConfig, hub Broadcaster, prom *metrics.PrometheusMetrics) *Orchestrator {
	return &Orchestrator{
		store:    store,
		honeypot: honeypot,
		security: security,
		cfg:      cfg,
		hub:      hub,
		prom:     prom,
		logger:   utils.GetLogger(),
		now:      time.Now,
	}
}

// Scan runs one scan for a token. Provider failures degrade (fail-closed
// honeypot verdict, empty security report) and still produce a snapshot;
// only persistence problems count as a failed scan. A failed scan is
// recorded against the token and may trigger eviction, and the error is
// returned so the caller can log it, but callers are expected to carry on
// with the next token.
//
// A scan that has started always runs to completion: the caller's context
// gates selecting new work, not work already in flight, so shutdown never
// cuts a scan short. The scan timeout bounds runaway work instead.
func (o *Orchestrator) Scan(ctx context.Context, token, pair string) (*models.TokenSnapshot, error) {
	scanCtx := context.WithoutCancel(ctx)
	if o.cfg.ScanTimeout > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(scanCtx, o.cfg.ScanTimeout)
		defer cancel()
	}

	start := o.now()

	snap, err := o.scan(scanCtx, token, pair)
	elapsed := o.now().Sub(start).Seconds()

	if err != nil {
		if o.prom != nil {
			o.prom.RecordScan("failure", elapsed)
		}
		o.handleFailure(scanCtx, token, err)
		return nil, utils.NewAppError(utils.ErrCodeScan, "Token scan failed", err.Error())
	}

	if o.prom != nil {
		o.prom.RecordScan("success", elapsed)
	}
	return snap, nil
}

func (o *Orchestrator) scan(ctx context.Context, token, pair string) (*models.TokenSnapshot, error) {
	hp, err := o.honeypot.Check(ctx, token)
	if err != nil {
		// hp is already the fail-closed report
		o.logger.WithError(err).WithField("address", token).Warn("Honeypot check degraded, failing closed")
	}

	sec, err := o.security.Scan(ctx, token)
	if err != nil {
		o.logger.WithError(err).WithField("address", token).Warn("Security scan degraded, proceeding with empty report")
		sec = &models.SecurityData{}
	}

	// Whole-second UTC timestamps keep text-stored datetimes comparable
	now := o.now().UTC().Truncate(time.Second)

	prev, err := o.store.GetSnapshot(ctx, token)
	if err != nil {
		return nil, err
	}

	var prevBuckets models.LiquidityBuckets
	expectedScans := 1
	if prev != nil {
		prevBuckets = prev.Buckets
		expectedScans = prev.TotalScans + 1
	}

	snap := &models.TokenSnapshot{
		Address:        token,
		PairAddress:    pair,
		Name:           hp.TokenName,
		Symbol:         hp.TokenSymbol,
		Decimals:       hp.TokenDecimals,
		TotalSupply:    hp.TotalSupply,
		HolderCount:    hp.HolderCount,
		LastScanAt:     now,
		AgeHours:       TokenAgeHours(hp.Data.CreationTime, now),
		IsHoneypot:     hp.IsHoneypot,
		HoneypotReason: hp.Reason,
		Liquidity:      hp.Data.PairLiquidity,
		BuyTax:         hp.Data.BuyTax,
		SellTax:        hp.Data.SellTax,
		Honeypot:       hp.Data,
		Security:       *sec,
	}
	if snap.PairAddress == "" && prev != nil {
		snap.PairAddress = prev.PairAddress
	}
	snap.Buckets = RecordLiquidity(prevBuckets, expectedScans,
		snap.Liquidity, o.cfg.LiquiditySampleInterval)

	totalScans, err := o.store.UpsertSnapshot(ctx, snap)
	o.recordStorageOp("upsert_snapshot", err)
	if err != nil {
		return nil, err
	}

	// Reflect the persisted counters so broadcast payloads match the row
	snap.TotalScans = totalScans
	snap.ConsecutiveFailures = 0
	if totalScans > 1 {
		snap.Status = models.StatusActive
	} else {
		snap.Status = models.StatusNew
	}
	if prev != nil {
		snap.FirstSeen = prev.FirstSeen
	} else {
		snap.FirstSeen = now
	}

	o.logger.WithFields(logrus.Fields{
		"address":     token,
		"symbol":      snap.Symbol,
		"is_honeypot": snap.IsHoneypot,
		"liquidity":   snap.Liquidity,
		"total_scans": totalScans,
	}).Info("Token scan complete")

	if o.hub != nil {
		o.hub.BroadcastTokenUpdate(snap)
	}

	return snap, nil
}

// handleFailure records the failed scan and applies the eviction policy.
// Bookkeeping errors here are logged and swallowed; the scan error itself
// is what surfaces to the caller.
func (o *Orchestrator) handleFailure(ctx context.Context, token string, scanErr error) {
	failures, err := o.store.RecordFailure(ctx, token, scanErr.Error())
	o.recordStorageOp("record_failure", err)
	if err != nil {
		o.logger.WithError(err).WithField("address", token).Error("Failed to record scan failure")
		return
	}

	limit := o.cfg.HoneypotFailureLimit
	evicted, err := o.store.EvictToken(ctx, token, limit, RemovalReason(limit))
	o.recordStorageOp("evict_token", err)
	if err != nil {
		o.logger.WithError(err).WithField("address", token).Error("Eviction check failed")
		return
	}

	if evicted {
		if o.prom != nil {
			o.prom.EvictionsTotal.Inc()
		}
		o.logger.WithFields(logrus.Fields{
			"address":  token,
			"failures": failures,
		}).Warn("Token evicted after repeated honeypot failures")
		if o.hub != nil {
			o.hub.BroadcastTokenRemoval(token, RemovalReason(limit))
		}
	}
}

func (o *Orchestrator) recordStorageOp(op string, err error) {
	if o.prom == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	o.prom.RecordStorageOperation(op, status)
}
