package connection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"github.com/zero-given/token-monitor/internal/config"
	"github.com/zero-given/token-monitor/internal/metrics"
	"github.com/zero-given/token-monitor/pkg/utils"
)

// Manager defines the chain connection manager interface
type Manager interface {
	GetClient() (*ethclient.Client, error)
	GetClientWithContext(ctx context.Context) (*ethclient.Client, error)
	HealthCheck() error
	HealthCheckWithContext(ctx context.Context) error
	GetLatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)
	IsConnected() bool
	Close() error
	Stats() ConnectionStats
}

// ConnectionManager manages the connection to an EVM node with backup
// endpoints and automatic reconnection.
type ConnectionManager struct {
	config          *config.ChainConfig
	primaryURL      string
	backupURLs      []string
	currentIndex    int
	client          *ethclient.Client
	mu              sync.RWMutex
	logger          *logrus.Logger
	stats           ConnectionStats
	lastHealthCheck time.Time
	isHealthy       bool
	prom            *metrics.PrometheusMetrics
}

// ConnectionStats holds connection statistics
type ConnectionStats struct {
	TotalRequests   uint64    `json:"total_requests"`
	FailedRequests  uint64    `json:"failed_requests"`
	Reconnects      uint64    `json:"reconnects"`
	CurrentURL      string    `json:"current_url"`
	LastConnectedAt time.Time `json:"last_connected_at"`
	LastHealthCheck time.Time `json:"last_health_check"`
	IsHealthy       bool      `json:"is_healthy"`
	NetworkID       uint64    `json:"network_id"`
	LatestBlock     uint64    `json:"latest_block"`
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager(cfg *config.ChainConfig, prom *metrics.PrometheusMetrics) *ConnectionManager {
	return &ConnectionManager{
		config:       cfg,
		primaryURL:   cfg.NodeURL,
		backupURLs:   cfg.BackupNodes,
		currentIndex: 0,
		logger:       utils.GetLogger(),
		prom:         prom,
		stats: ConnectionStats{
			CurrentURL: cfg.NodeURL,
		},
	}
}

// GetClient returns the current client connection
func (cm *ConnectionManager) GetClient() (*ethclient.Client, error) {
	return cm.GetClientWithContext(context.Background())
}

// GetClientWithContext returns the current client with context
func (cm *ConnectionManager) GetClientWithContext(ctx context.Context) (*ethclient.Client, error) {
	cm.mu.RLock()
	client := cm.client
	lastCheck := cm.lastHealthCheck
	cm.mu.RUnlock()

	if client == nil {
		return cm.connect(ctx)
	}

	// Revalidate stale connections before handing them out
	if time.Since(lastCheck) > time.Minute {
		if err := cm.quickHealthCheck(ctx, client); err != nil {
			cm.logger.WithError(err).Warn("Client health check failed, reconnecting")
			return cm.reconnect(ctx)
		}
		cm.mu.Lock()
		cm.lastHealthCheck = time.Now()
		cm.mu.Unlock()
	}

	cm.mu.Lock()
	cm.stats.TotalRequests++
	cm.mu.Unlock()
	return client, nil
}

// connect establishes a new connection, rotating through backups
func (cm *ConnectionManager) connect(ctx context.Context) (*ethclient.Client, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	urls := cm.getAllURLs()

	for attempt := 0; attempt < cm.config.RetryAttempts; attempt++ {
		for i, url := range urls {
			cm.logger.WithFields(logrus.Fields{
				"url":     url,
				"attempt": attempt + 1,
			}).Info("Attempting node connection")

			client, err := cm.dialWithTimeout(ctx, url)
			if err != nil {
				cm.logger.WithError(err).WithField("url", url).Warn("Connection failed")
				cm.stats.FailedRequests++
				continue
			}

			if err := cm.quickHealthCheck(ctx, client); err != nil {
				client.Close()
				cm.logger.WithError(err).WithField("url", url).Warn("Health check failed after connection")
				continue
			}

			cm.client = client
			cm.currentIndex = i
			cm.stats.CurrentURL = url
			cm.stats.LastConnectedAt = time.Now()
			cm.isHealthy = true
			cm.lastHealthCheck = time.Now()
			if cm.prom != nil {
				cm.prom.SetConnectionStatus(true)
			}

			cm.logger.WithField("url", url).Info("Connected to node")
			return client, nil
		}

		if attempt < cm.config.RetryAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(cm.config.RetryDelay):
			}
		}
	}

	if cm.prom != nil {
		cm.prom.SetConnectionStatus(false)
	}
	return nil, utils.NewAppError(utils.ErrCodeConnection, "Failed to connect to any node",
		"All connection attempts exhausted")
}

// reconnect drops the current client and dials again
func (cm *ConnectionManager) reconnect(ctx context.Context) (*ethclient.Client, error) {
	cm.mu.Lock()
	if cm.client != nil {
		cm.client.Close()
		cm.client = nil
	}
	cm.stats.Reconnects++
	cm.mu.Unlock()

	return cm.connect(ctx)
}

func (cm *ConnectionManager) dialWithTimeout(ctx context.Context, url string) (*ethclient.Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, cm.config.RequestTimeout)
	defer cancel()

	return ethclient.DialContext(dialCtx, url)
}

func (cm *ConnectionManager) setUnhealthy() {
	cm.mu.Lock()
	cm.isHealthy = false
	cm.mu.Unlock()
}

func (cm *ConnectionManager) quickHealthCheck(ctx context.Context, client *ethclient.Client) error {
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := client.NetworkID(checkCtx)
	return err
}

// HealthCheck performs a comprehensive health check
func (cm *ConnectionManager) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return cm.HealthCheckWithContext(ctx)
}

// HealthCheckWithContext verifies network identity and block availability
func (cm *ConnectionManager) HealthCheckWithContext(ctx context.Context) error {
	client, err := cm.GetClientWithContext(ctx)
	if err != nil {
		cm.setUnhealthy()
		return err
	}

	networkID, err := client.NetworkID(ctx)
	if err != nil {
		cm.setUnhealthy()
		return utils.NewAppError(utils.ErrCodeConnection, "Failed to get network ID", err.Error())
	}

	if cm.config.NetworkID > 0 && networkID.Int64() != cm.config.NetworkID {
		cm.setUnhealthy()
		return utils.NewAppError(utils.ErrCodeConnection,
			"Network ID mismatch",
			fmt.Sprintf("expected %d, got %d", cm.config.NetworkID, networkID.Int64()))
	}

	blockNumber, err := client.BlockNumber(ctx)
	if err != nil {
		cm.setUnhealthy()
		return utils.NewAppError(utils.ErrCodeConnection, "Failed to get latest block", err.Error())
	}

	cm.mu.Lock()
	cm.stats.NetworkID = networkID.Uint64()
	cm.stats.LatestBlock = blockNumber
	cm.stats.LastHealthCheck = time.Now()
	cm.stats.IsHealthy = true
	cm.lastHealthCheck = time.Now()
	cm.isHealthy = true
	cm.mu.Unlock()

	if cm.prom != nil {
		cm.prom.LatestBlock.Set(float64(blockNumber))
		cm.prom.SetConnectionStatus(true)
	}

	cm.logger.WithFields(logrus.Fields{
		"network_id":   networkID.Uint64(),
		"latest_block": blockNumber,
		"url":          cm.stats.CurrentURL,
	}).Info("Health check passed")

	return nil
}

// GetLatestBlockNumber returns the latest block number
func (cm *ConnectionManager) GetLatestBlockNumber(ctx context.Context) (uint64, error) {
	client, err := cm.GetClientWithContext(ctx)
	if err != nil {
		if cm.prom != nil {
			cm.prom.RecordRPCRequest("eth_blockNumber", "error")
		}
		return 0, err
	}

	blockNumber, err := client.BlockNumber(ctx)
	if err != nil {
		if cm.prom != nil {
			cm.prom.RecordRPCRequest("eth_blockNumber", "error")
		}
		return 0, err
	}

	cm.mu.Lock()
	cm.stats.LatestBlock = blockNumber
	cm.mu.Unlock()

	if cm.prom != nil {
		cm.prom.RecordRPCRequest("eth_blockNumber", "success")
		cm.prom.LatestBlock.Set(float64(blockNumber))
	}

	return blockNumber, nil
}

// FilterLogs runs a log filter query against the connected node
func (cm *ConnectionManager) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	client, err := cm.GetClientWithContext(ctx)
	if err != nil {
		if cm.prom != nil {
			cm.prom.RecordRPCRequest("eth_getLogs", "error")
		}
		return nil, err
	}

	logs, err := client.FilterLogs(ctx, query)
	if err != nil {
		if cm.prom != nil {
			cm.prom.RecordRPCRequest("eth_getLogs", "error")
		}
		return nil, utils.NewAppError(utils.ErrCodeBlockchain, "Log filter query failed", err.Error())
	}

	if cm.prom != nil {
		cm.prom.RecordRPCRequest("eth_getLogs", "success")
	}
	return logs, nil
}

// IsConnected returns whether the manager is connected
func (cm *ConnectionManager) IsConnected() bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.client != nil && cm.isHealthy
}

// Close closes the connection
func (cm *ConnectionManager) Close() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.client != nil {
		cm.client.Close()
		cm.client = nil
	}

	cm.isHealthy = false
	cm.logger.Info("Connection manager closed")
	return nil
}

// Stats returns connection statistics
func (cm *ConnectionManager) Stats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.stats
}

// getAllURLs returns all endpoints, rotated so the last working one is tried first
func (cm *ConnectionManager) getAllURLs() []string {
	urls := []string{cm.primaryURL}
	urls = append(urls, cm.backupURLs...)

	if cm.currentIndex > 0 && cm.currentIndex < len(urls) {
		rotated := make([]string, len(urls))
		copy(rotated, urls[cm.currentIndex:])
		copy(rotated[len(urls)-cm.currentIndex:], urls[:cm.currentIndex])
		return rotated
	}

	return urls
}
