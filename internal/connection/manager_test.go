package connection

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zero-given/token-monitor/internal/config"
)

func testChainConfig() *config.ChainConfig {
	return &config.ChainConfig{
		NodeURL:        "http://127.0.0.1:1",
		NetworkID:      1,
		RequestTimeout: 100 * time.Millisecond,
		RetryAttempts:  1,
		RetryDelay:     time.Millisecond,
	}
}

func TestStatsSafeUnderConcurrentUse(t *testing.T) {
	cm := NewConnectionManager(testChainConfig(), nil)

	// A cancelled context makes every dial and health check fail fast, so
	// the goroutines hammer the shared state without touching the network
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				cm.GetClientWithContext(ctx)
				cm.Stats()
				cm.IsConnected()
				cm.HealthCheckWithContext(ctx)
			}
		}()
	}
	wg.Wait()

	assert.False(t, cm.IsConnected())
	stats := cm.Stats()
	assert.False(t, stats.IsHealthy)
}
