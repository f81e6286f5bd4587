package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/zero-given/token-monitor/internal/config"
	"github.com/zero-given/token-monitor/internal/models"
	"github.com/zero-given/token-monitor/pkg/utils"
)

// Storage defines the persistence interface for token snapshots.
//
// Write operations assume a single writer per address: the scan loop is the
// only component mutating rows, so read-modify-write sequences inside one
// method do not race with each other.
type Storage interface {
	// Connection management
	Connect() error
	Close() error
	Ping() error
	Migrate() error

	// Scan pipeline writes
	//
	// UpsertSnapshot persists the outcome of a successful scan. The first
	// write for an address creates the row with total_scans=1; every later
	// write increments total_scans and resets consecutive_failures to zero.
	// first_seen is carried from the existing row. Returns the new
	// total_scans value.
	UpsertSnapshot(ctx context.Context, snap *models.TokenSnapshot) (int, error)

	// RecordFailure additively increments consecutive_failures and
	// overwrites last_error. No other column changes. Returns the failure
	// count after the increment.
	RecordFailure(ctx context.Context, address, lastError string) (int, error)

	// EvictToken moves a live row to the removed set in one transaction,
	// but only when the row currently satisfies the eviction condition
	// (consecutive_failures >= failureLimit and is_honeypot). Returns
	// whether the eviction happened.
	EvictToken(ctx context.Context, address string, failureLimit int, reason string) (bool, error)

	// SelectDue returns tokens eligible for a rescan: below the failure
	// limit, below the scan cap, and last scanned at least minAge ago.
	// Ordered oldest token first (age_hours descending, NULL ages last,
	// address as tiebreak).
	SelectDue(ctx context.Context, now time.Time, failureLimit, maxScans int, minAge time.Duration) ([]*models.RescanCandidate, error)

	// Reads
	GetSnapshot(ctx context.Context, address string) (*models.TokenSnapshot, error)
	GetSnapshots(ctx context.Context, filter models.SnapshotFilter) ([]*models.TokenSnapshot, error)
	GetSnapshotCount(ctx context.Context, filter models.SnapshotFilter) (int64, error)
	GetRemovedTokens(ctx context.Context, limit, offset int) ([]*models.RemovedToken, error)
	GetRemovedTokenCount(ctx context.Context) (int64, error)

	// Rescan queue bookkeeping. Non-authoritative: the rescan selector
	// works off the snapshot table, this queue only records discovery
	// order for inspection.
	EnqueueRescan(ctx context.Context, address, pair string) error
	BumpRescanCount(ctx context.Context, address string) error

	// Monitoring
	GetStorageStats() (*StorageStats, error)
	GetHealth() *StorageHealth
}

// StorageStats holds storage statistics
type StorageStats struct {
	ActiveTokens    int64     `json:"active_tokens"`
	RemovedTokens   int64     `json:"removed_tokens"`
	HoneypotTokens  int64     `json:"honeypot_tokens"`
	RescanQueueSize int64     `json:"rescan_queue_size"`
	LastUpdated     time.Time `json:"last_updated"`
}

// StorageHealth holds storage health information
type StorageHealth struct {
	Connected bool      `json:"connected"`
	Type      string    `json:"type"`
	LastPing  time.Time `json:"last_ping"`
	Error     string    `json:"error,omitempty"`
}

// NewStorage creates a storage instance based on configuration
func NewStorage(cfg *config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "sqlite":
		return NewSQLiteStorage(cfg), nil
	case "postgres":
		return NewPostgresStorage(cfg), nil
	default:
		return nil, utils.NewAppError(utils.ErrCodeConfiguration,
			"Unsupported storage type", fmt.Sprintf("type: %s", cfg.Type))
	}
}
