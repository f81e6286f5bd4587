package monitor

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/zero-given/token-monitor/internal/config"
	"github.com/zero-given/token-monitor/internal/connection"
	"github.com/zero-given/token-monitor/internal/metrics"
	"github.com/zero-given/token-monitor/internal/models"
	"github.com/zero-given/token-monitor/internal/scanner"
	"github.com/zero-given/token-monitor/internal/storage"
	"github.com/zero-given/token-monitor/pkg/utils"
)

// PairMonitor watches the factory contract for new pairs and drives the
// scan pipeline: a fast discovery loop for fresh pairs and a slower rescan
// loop that re-checks tracked tokens.
type PairMonitor struct {
	chainCfg *config.ChainConfig
	scanCfg  *config.ScannerConfig

	conn         connection.Manager
	store        storage.Storage
	orchestrator *scanner.Orchestrator
	selector     *scanner.Selector
	prom         *metrics.PrometheusMetrics
	logger       *logrus.Logger

	factory   common.Address
	baseToken string

	mu                 sync.RWMutex
	running            bool
	stopChan           chan struct{}
	stopOnce           sync.Once
	wg                 sync.WaitGroup
	lastProcessedBlock uint64
	stats              MonitorStats
}

// MonitorStats holds monitoring statistics
type MonitorStats struct {
	Running         bool      `json:"running"`
	LastBlock       uint64    `json:"last_block"`
	PairsDiscovered uint64    `json:"pairs_discovered"`
	TokensScanned   uint64    `json:"tokens_scanned"`
	ScanErrors      uint64    `json:"scan_errors"`
	RescansRun      uint64    `json:"rescans_run"`
	LastPollAt      time.Time `json:"last_poll_at"`
	LastRescanAt    time.Time `json:"last_rescan_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewPairMonitor creates a pair monitor
func NewPairMonitor(chainCfg *config.ChainConfig, scanCfg *config.ScannerConfig,
	conn connection.Manager, store storage.Storage,
	orchestrator *scanner.Orchestrator, selector *scanner.Selector,
	prom *metrics.PrometheusMetrics) *PairMonitor {
	return &PairMonitor{
		chainCfg:     chainCfg,
		scanCfg:      scanCfg,
		conn:         conn,
		store:        store,
		orchestrator: orchestrator,
		selector:     selector,
		prom:         prom,
		logger:       utils.GetLogger(),
		factory:      common.HexToAddress(chainCfg.FactoryAddress),
		baseToken:    strings.ToLower(common.HexToAddress(chainCfg.BaseTokenAddress).Hex()),
	}
}

// Start begins monitoring. The initial chain query is fatal; everything
// after that degrades and retries.
func (m *PairMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return utils.NewAppError(utils.ErrCodeValidation, "Monitor already running")
	}
	m.running = true
	m.stopChan = make(chan struct{})
	m.stopOnce = sync.Once{}
	m.stats.StartedAt = time.Now()
	m.stats.Running = true
	m.mu.Unlock()

	latest, err := m.conn.GetLatestBlockNumber(ctx)
	if err != nil {
		m.mu.Lock()
		m.running = false
		m.stats.Running = false
		m.mu.Unlock()
		return utils.NewAppError(utils.ErrCodeBlockchain, "Failed to query chain head at startup", err.Error())
	}

	m.mu.Lock()
	m.lastProcessedBlock = latest
	m.stats.LastBlock = latest
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"factory":    m.chainCfg.FactoryAddress,
		"base_token": m.baseToken,
		"head":       latest,
	}).Info("Pair monitor starting")

	m.wg.Add(1)
	go m.run(ctx)

	return nil
}

// Stop halts monitoring, letting any in-flight scan finish.
func (m *PairMonitor) Stop() error {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
	m.wg.Wait()

	m.mu.Lock()
	m.running = false
	m.stats.Running = false
	m.mu.Unlock()

	m.logger.Info("Pair monitor stopped")
	return nil
}

// IsRunning returns whether the monitor is running
func (m *PairMonitor) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// GetStats returns a copy of the monitoring statistics
func (m *PairMonitor) GetStats() MonitorStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

func (m *PairMonitor) run(ctx context.Context) {
	defer m.wg.Done()

	m.backfill(ctx)

	pollTicker := time.NewTicker(m.scanCfg.PollInterval)
	defer pollTicker.Stop()
	rescanTicker := time.NewTicker(m.scanCfg.RescanInterval)
	defer rescanTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case <-pollTicker.C:
			m.pollNewPairs(ctx)
		case <-rescanTicker.C:
			m.rescanDue(ctx)
		}
	}
}

// backfill looks back over recent blocks so a restart picks up the latest
// pair instead of waiting for the next one. A short window is tried first,
// then a wider one; only the most recent matching pair is scanned.
func (m *PairMonitor) backfill(ctx context.Context) {
	head := m.lastProcessedBlock
	lookback := m.chainCfg.StartBlockLookback
	if lookback == 0 {
		return
	}

	events := m.fetchPairs(ctx, blockFloor(head, lookback), head)
	if len(events) == 0 {
		events = m.fetchPairs(ctx, blockFloor(head, lookback*5), head)
	}
	if len(events) == 0 {
		m.logger.Info("No recent pairs found during backfill")
		return
	}

	latest := events[len(events)-1]
	token, ok := latest.TokenOfInterest(m.baseToken)
	if !ok {
		return
	}

	m.logger.WithFields(logrus.Fields{
		"pair":  latest.PairAddress,
		"token": token,
		"block": latest.BlockNumber,
	}).Info("Backfill found recent pair")

	m.handlePair(ctx, latest, token)
}

// pollNewPairs advances through new blocks and scans any matching pairs.
func (m *PairMonitor) pollNewPairs(ctx context.Context) {
	latest, err := m.conn.GetLatestBlockNumber(ctx)
	if err != nil {
		m.logger.WithError(err).Warn("Failed to get latest block")
		return
	}

	m.mu.RLock()
	from := m.lastProcessedBlock + 1
	m.mu.RUnlock()

	if latest < from {
		return
	}

	// Chunk large ranges so a long outage does not produce one huge query
	for start := from; start <= latest; start += m.chainCfg.MaxBlockRange + 1 {
		end := start + m.chainCfg.MaxBlockRange
		if end > latest {
			end = latest
		}

		for _, ev := range m.fetchPairs(ctx, start, end) {
			token, ok := ev.TokenOfInterest(m.baseToken)
			if !ok {
				continue
			}
			m.handlePair(ctx, ev, token)
		}
	}

	m.mu.Lock()
	m.lastProcessedBlock = latest
	m.stats.LastBlock = latest
	m.stats.LastPollAt = time.Now()
	m.mu.Unlock()
}

// fetchPairs queries and parses PairCreated logs in [from, to].
func (m *PairMonitor) fetchPairs(ctx context.Context, from, to uint64) []*models.PairEvent {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{m.factory},
		Topics:    [][]common.Hash{{PairCreatedTopic}},
	}

	logs, err := m.conn.FilterLogs(ctx, query)
	if err != nil {
		m.logger.WithError(err).WithFields(logrus.Fields{
			"from": from,
			"to":   to,
		}).Warn("Log filter query failed")
		return nil
	}

	var events []*models.PairEvent
	for _, lg := range logs {
		ev, err := ParsePairCreated(lg)
		if err != nil {
			m.logger.WithError(err).WithField("tx", lg.TxHash.Hex()).Warn("Skipping unparsable PairCreated log")
			continue
		}
		events = append(events, ev)
	}
	return events
}

// handlePair runs a first scan for a newly discovered token.
func (m *PairMonitor) handlePair(ctx context.Context, ev *models.PairEvent, token string) {
	if m.prom != nil {
		m.prom.PairsDiscovered.Inc()
	}
	m.mu.Lock()
	m.stats.PairsDiscovered++
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"token": token,
		"pair":  ev.PairAddress,
		"block": ev.BlockNumber,
	}).Info("New pair discovered")

	if err := m.store.EnqueueRescan(ctx, token, ev.PairAddress); err != nil {
		m.logger.WithError(err).WithField("token", token).Warn("Failed to enqueue rescan entry")
	}

	m.scanToken(ctx, token, ev.PairAddress)
}

// rescanDue re-scans every token the selector considers due, pacing
// requests so providers are not hammered.
func (m *PairMonitor) rescanDue(ctx context.Context) {
	candidates, err := m.selector.DueTokens(ctx)
	if err != nil {
		m.logger.WithError(err).Warn("Rescan selection failed")
		return
	}
	if len(candidates) == 0 {
		return
	}

	m.logger.WithField("count", len(candidates)).Info("Rescanning due tokens")

	for _, c := range candidates {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		default:
		}

		if m.prom != nil {
			m.prom.RescansSelected.Inc()
		}
		m.scanToken(ctx, c.Address, c.PairAddress)
		if err := m.store.BumpRescanCount(ctx, c.Address); err != nil {
			m.logger.WithError(err).WithField("token", c.Address).Debug("Failed to bump rescan counter")
		}

		m.mu.Lock()
		m.stats.RescansRun++
		m.mu.Unlock()

		if m.scanCfg.ScanDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-m.stopChan:
				return
			case <-time.After(m.scanCfg.ScanDelay):
			}
		}
	}

	m.mu.Lock()
	m.stats.LastRescanAt = time.Now()
	m.mu.Unlock()
}

// scanToken runs one scan and records the outcome in the stats. Scan errors
// never propagate; the orchestrator has already recorded them against the
// token.
func (m *PairMonitor) scanToken(ctx context.Context, token, pair string) {
	_, err := m.orchestrator.Scan(ctx, token, pair)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.stats.ScanErrors++
		m.logger.WithError(err).WithField("token", token).Error("Token scan failed")
		return
	}
	m.stats.TokensScanned++
}

// GetHealth returns monitor health information
func (m *PairMonitor) GetHealth() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]interface{}{
		"running":          m.running,
		"last_block":       m.lastProcessedBlock,
		"pairs_discovered": m.stats.PairsDiscovered,
		"tokens_scanned":   m.stats.TokensScanned,
		"scan_errors":      m.stats.ScanErrors,
		"last_poll_at":     m.stats.LastPollAt,
		"last_rescan_at":   m.stats.LastRescanAt,
	}
}

func blockFloor(head, lookback uint64) uint64 {
	if lookback >= head {
		return 0
	}
	return head - lookback
}
