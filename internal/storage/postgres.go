package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/zero-given/token-monitor/internal/config"
	"github.com/zero-given/token-monitor/internal/models"
	"github.com/zero-given/token-monitor/pkg/utils"
)

// PostgresStorage implements Storage using PostgreSQL
type PostgresStorage struct {
	config    *config.StorageConfig
	db        *sql.DB
	logger    *logrus.Logger
	mu        sync.RWMutex
	connected bool
	lastPing  time.Time
	lastError string
}

// NewPostgresStorage creates a new PostgreSQL storage instance
func NewPostgresStorage(cfg *config.StorageConfig) *PostgresStorage {
	return &PostgresStorage{
		config: cfg,
		logger: utils.GetLogger(),
	}
}

// Connect establishes the database connection and runs migrations
func (s *PostgresStorage) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := sql.Open("postgres", s.config.ConnectionString)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to open PostgreSQL database", err.Error())
	}

	db.SetMaxOpenConns(s.config.MaxConnections)
	db.SetConnMaxIdleTime(s.config.MaxIdleTime)

	if err := db.Ping(); err != nil {
		db.Close()
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to ping PostgreSQL database", err.Error())
	}

	s.db = db
	s.connected = true
	s.lastPing = time.Now()

	s.logger.Info("Connected to PostgreSQL database")

	return s.migrate()
}

// Close closes the database connection
func (s *PostgresStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		s.connected = false
		return err
	}
	return nil
}

// Ping checks database connectivity
func (s *PostgresStorage) Ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected")
	}

	err := s.db.Ping()
	s.lastPing = time.Now()
	if err != nil {
		s.lastError = err.Error()
		s.connected = false
		return err
	}
	s.connected = true
	s.lastError = ""
	return nil
}

// Migrate runs pending schema migrations
func (s *PostgresStorage) Migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.migrate()
}

func (s *PostgresStorage) migrate() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL
		)`); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to create migrations table", err.Error())
	}

	for _, migration := range getPostgresMigrations() {
		var count int
		if err := s.db.QueryRow(
			"SELECT COUNT(*) FROM schema_migrations WHERE version = $1",
			migration.Version).Scan(&count); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "Failed to check migration", err.Error())
		}
		if count > 0 {
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "Failed to begin migration", err.Error())
		}
		if _, err := tx.Exec(migration.SQL); err != nil {
			tx.Rollback()
			return utils.NewAppError(utils.ErrCodeDatabase,
				fmt.Sprintf("Migration %d failed", migration.Version), err.Error())
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, name, applied_at) VALUES ($1, $2, $3)",
			migration.Version, migration.Name, time.Now().UTC()); err != nil {
			tx.Rollback()
			return utils.NewAppError(utils.ErrCodeDatabase, "Failed to record migration", err.Error())
		}
		if err := tx.Commit(); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "Failed to commit migration", err.Error())
		}

		s.logger.WithFields(logrus.Fields{
			"version": migration.Version,
			"name":    migration.Name,
		}).Info("Applied migration")
	}

	return nil
}

// UpsertSnapshot persists a successful scan, incrementing total_scans and
// resetting consecutive_failures.
func (s *PostgresStorage) UpsertSnapshot(ctx context.Context, snap *models.TokenSnapshot) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to begin transaction", err.Error())
	}
	defer tx.Rollback()

	var (
		priorScans int
		firstSeen  time.Time
		lastError  string
	)
	err = tx.QueryRowContext(ctx,
		"SELECT total_scans, first_seen, last_error FROM token_snapshots WHERE token_address = $1",
		snap.Address).Scan(&priorScans, &firstSeen, &lastError)
	switch {
	case err == sql.ErrNoRows:
		snap.TotalScans = 1
		snap.FirstSeen = snap.LastScanAt
		snap.Status = models.StatusNew
	case err != nil:
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to read prior snapshot", err.Error())
	default:
		snap.TotalScans = priorScans + 1
		snap.FirstSeen = firstSeen
		snap.Status = models.StatusActive
		snap.LastError = lastError
	}
	snap.ConsecutiveFailures = 0

	honeypotJSON, err := json.Marshal(snap.Honeypot)
	if err != nil {
		return 0, utils.NewAppError(utils.ErrCodeInternal, "Failed to encode honeypot data", err.Error())
	}
	securityJSON, err := json.Marshal(snap.Security)
	if err != nil {
		return 0, utils.NewAppError(utils.ErrCodeInternal, "Failed to encode security data", err.Error())
	}
	bucketsJSON, err := json.Marshal(snap.Buckets)
	if err != nil {
		return 0, utils.NewAppError(utils.ErrCodeInternal, "Failed to encode liquidity buckets", err.Error())
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO token_snapshots (
			token_address, pair_address, token_name, token_symbol,
			token_decimals, total_supply, holder_count,
			first_seen, last_scan_at, age_hours,
			total_scans, consecutive_failures,
			is_honeypot, honeypot_reason, liquidity, buy_tax, sell_tax,
			last_error, status, honeypot_data, security_data, liquidity_buckets
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		ON CONFLICT (token_address) DO UPDATE SET
			pair_address = EXCLUDED.pair_address,
			token_name = EXCLUDED.token_name,
			token_symbol = EXCLUDED.token_symbol,
			token_decimals = EXCLUDED.token_decimals,
			total_supply = EXCLUDED.total_supply,
			holder_count = EXCLUDED.holder_count,
			first_seen = EXCLUDED.first_seen,
			last_scan_at = EXCLUDED.last_scan_at,
			age_hours = EXCLUDED.age_hours,
			total_scans = EXCLUDED.total_scans,
			consecutive_failures = EXCLUDED.consecutive_failures,
			is_honeypot = EXCLUDED.is_honeypot,
			honeypot_reason = EXCLUDED.honeypot_reason,
			liquidity = EXCLUDED.liquidity,
			buy_tax = EXCLUDED.buy_tax,
			sell_tax = EXCLUDED.sell_tax,
			last_error = EXCLUDED.last_error,
			status = EXCLUDED.status,
			honeypot_data = EXCLUDED.honeypot_data,
			security_data = EXCLUDED.security_data,
			liquidity_buckets = EXCLUDED.liquidity_buckets`,
		snap.Address, snap.PairAddress, snap.Name, snap.Symbol,
		snap.Decimals, snap.TotalSupply, snap.HolderCount,
		snap.FirstSeen, snap.LastScanAt, nullFloat(snap.AgeHours),
		snap.TotalScans, snap.ConsecutiveFailures,
		snap.IsHoneypot, snap.HoneypotReason, snap.Liquidity, snap.BuyTax, snap.SellTax,
		snap.LastError, snap.Status, string(honeypotJSON), string(securityJSON), string(bucketsJSON))
	if err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to upsert snapshot", err.Error())
	}

	if err := tx.Commit(); err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to commit snapshot", err.Error())
	}

	return snap.TotalScans, nil
}

// RecordFailure increments the failure counter and overwrites last_error.
func (s *PostgresStorage) RecordFailure(ctx context.Context, address, lastError string) (int, error) {
	var failures int
	err := s.db.QueryRowContext(ctx, `
		UPDATE token_snapshots
		SET consecutive_failures = consecutive_failures + 1, last_error = $1
		WHERE token_address = $2
		RETURNING consecutive_failures`,
		lastError, address).Scan(&failures)
	if err == sql.ErrNoRows {
		now := time.Now().UTC()
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO token_snapshots (
				token_address, first_seen, last_scan_at,
				total_scans, consecutive_failures,
				is_honeypot, last_error, status
			) VALUES ($1, $2, $3, 1, 1, TRUE, $4, $5)`,
			address, now, now, lastError, models.StatusNew)
		if err != nil {
			return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to create failure row", err.Error())
		}
		return 1, nil
	}
	if err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to record failure", err.Error())
	}
	return failures, nil
}

// EvictToken atomically moves a live row to removed_tokens when it meets the
// eviction condition.
func (s *PostgresStorage) EvictToken(ctx context.Context, address string, failureLimit int, reason string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, utils.NewAppError(utils.ErrCodeDatabase, "Failed to begin transaction", err.Error())
	}
	defer tx.Rollback()

	var (
		pairAddress, name, symbol, honeypotReason, lastErr string
		firstSeen, lastScanAt                              time.Time
		ageHours                                           sql.NullFloat64
		totalScans, failures                               int
		isHoneypot                                         bool
		liquidity                                          float64
	)
	err = tx.QueryRowContext(ctx, `
		SELECT pair_address, token_name, token_symbol, first_seen, last_scan_at,
		       age_hours, total_scans, consecutive_failures, is_honeypot,
		       honeypot_reason, liquidity, last_error
		FROM token_snapshots
		WHERE token_address = $1 AND consecutive_failures >= $2 AND is_honeypot = TRUE`,
		address, failureLimit).Scan(
		&pairAddress, &name, &symbol, &firstSeen, &lastScanAt,
		&ageHours, &totalScans, &failures, &isHoneypot,
		&honeypotReason, &liquidity, &lastErr)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, utils.NewAppError(utils.ErrCodeDatabase, "Failed to read eviction candidate", err.Error())
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO removed_tokens (
			token_address, pair_address, token_name, token_symbol,
			first_seen, last_scan_at, removed_at, age_hours,
			total_scans, consecutive_failures, is_honeypot, honeypot_reason,
			liquidity, last_error, removal_reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (token_address) DO UPDATE SET
			removed_at = EXCLUDED.removed_at,
			removal_reason = EXCLUDED.removal_reason`,
		address, pairAddress, name, symbol,
		firstSeen, lastScanAt, time.Now().UTC(), ageHours,
		totalScans, failures, isHoneypot, honeypotReason,
		liquidity, lastErr, reason)
	if err != nil {
		return false, utils.NewAppError(utils.ErrCodeDatabase, "Failed to write removed token", err.Error())
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM token_snapshots WHERE token_address = $1", address); err != nil {
		return false, utils.NewAppError(utils.ErrCodeDatabase, "Failed to delete live snapshot", err.Error())
	}

	if err := tx.Commit(); err != nil {
		return false, utils.NewAppError(utils.ErrCodeDatabase, "Failed to commit eviction", err.Error())
	}

	return true, nil
}

// SelectDue returns rescan candidates ordered oldest token first.
func (s *PostgresStorage) SelectDue(ctx context.Context, now time.Time, failureLimit, maxScans int, minAge time.Duration) ([]*models.RescanCandidate, error) {
	cutoff := now.Add(-minAge)

	rows, err := s.db.QueryContext(ctx, `
		SELECT token_address, pair_address, last_scan_at, total_scans,
		       consecutive_failures, age_hours
		FROM token_snapshots
		WHERE consecutive_failures < $1 AND total_scans < $2 AND last_scan_at <= $3
		ORDER BY age_hours DESC NULLS LAST, token_address ASC`,
		failureLimit, maxScans, cutoff)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to select rescan candidates", err.Error())
	}
	defer rows.Close()

	var candidates []*models.RescanCandidate
	for rows.Next() {
		c := &models.RescanCandidate{}
		var age sql.NullFloat64
		if err := rows.Scan(&c.Address, &c.PairAddress, &c.LastScanAt,
			&c.TotalScans, &c.Failures, &age); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan rescan candidate", err.Error())
		}
		if age.Valid {
			c.AgeHours = &age.Float64
		}
		candidates = append(candidates, c)
	}

	return candidates, rows.Err()
}

// GetSnapshot returns the live snapshot for an address, or nil when absent.
func (s *PostgresStorage) GetSnapshot(ctx context.Context, address string) (*models.TokenSnapshot, error) {
	row := s.db.QueryRowContext(ctx, selectSnapshotSQL+" WHERE token_address = $1", address)
	snap, err := scanSnapshotRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return snap, err
}

// GetSnapshots returns live snapshots matching the filter, newest first.
func (s *PostgresStorage) GetSnapshots(ctx context.Context, filter models.SnapshotFilter) ([]*models.TokenSnapshot, error) {
	query := selectSnapshotSQL
	where, args := buildSnapshotFilter(filter)
	query += where + " ORDER BY last_scan_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, rebind(query), args...)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query snapshots", err.Error())
	}
	defer rows.Close()

	var snapshots []*models.TokenSnapshot
	for rows.Next() {
		snap, err := scanSnapshotRow(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

// GetSnapshotCount returns the number of live snapshots matching the filter.
func (s *PostgresStorage) GetSnapshotCount(ctx context.Context, filter models.SnapshotFilter) (int64, error) {
	query := "SELECT COUNT(*) FROM token_snapshots"
	where, args := buildSnapshotFilter(filter)
	query += where

	var count int64
	if err := s.db.QueryRowContext(ctx, rebind(query), args...).Scan(&count); err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count snapshots", err.Error())
	}
	return count, nil
}

// GetRemovedTokens returns removed tokens, most recently removed first.
func (s *PostgresStorage) GetRemovedTokens(ctx context.Context, limit, offset int) ([]*models.RemovedToken, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT token_address, pair_address, token_name, token_symbol,
		       first_seen, last_scan_at, removed_at, age_hours,
		       total_scans, consecutive_failures, is_honeypot, honeypot_reason,
		       liquidity, last_error, removal_reason
		FROM removed_tokens
		ORDER BY removed_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query removed tokens", err.Error())
	}
	defer rows.Close()

	var removed []*models.RemovedToken
	for rows.Next() {
		r := &models.RemovedToken{}
		var age sql.NullFloat64
		if err := rows.Scan(&r.Address, &r.PairAddress, &r.Name, &r.Symbol,
			&r.FirstSeen, &r.LastScanAt, &r.RemovedAt, &age,
			&r.TotalScans, &r.Failures, &r.IsHoneypot, &r.HoneypotReason,
			&r.Liquidity, &r.LastError, &r.RemovalReason); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan removed token", err.Error())
		}
		if age.Valid {
			r.AgeHours = &age.Float64
		}
		removed = append(removed, r)
	}
	return removed, rows.Err()
}

// GetRemovedTokenCount returns the size of the removed set.
func (s *PostgresStorage) GetRemovedTokenCount(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM removed_tokens").Scan(&count); err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count removed tokens", err.Error())
	}
	return count, nil
}

// EnqueueRescan records a discovered token in the rescan queue.
func (s *PostgresStorage) EnqueueRescan(ctx context.Context, address, pair string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rescan_queue (token_address, pair_address, scan_count, enqueued_at)
		VALUES ($1, $2, 0, $3)
		ON CONFLICT (token_address) DO NOTHING`,
		address, pair, time.Now().UTC())
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to enqueue rescan", err.Error())
	}
	return nil
}

// BumpRescanCount increments the bookkeeping counter for a queued token.
func (s *PostgresStorage) BumpRescanCount(ctx context.Context, address string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE rescan_queue SET scan_count = scan_count + 1 WHERE token_address = $1", address)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to bump rescan count", err.Error())
	}
	return nil
}

// GetStorageStats returns storage statistics
func (s *PostgresStorage) GetStorageStats() (*StorageStats, error) {
	stats := &StorageStats{LastUpdated: time.Now()}

	queries := map[string]*int64{
		"SELECT COUNT(*) FROM token_snapshots":                          &stats.ActiveTokens,
		"SELECT COUNT(*) FROM removed_tokens":                           &stats.RemovedTokens,
		"SELECT COUNT(*) FROM token_snapshots WHERE is_honeypot = TRUE": &stats.HoneypotTokens,
		"SELECT COUNT(*) FROM rescan_queue":                             &stats.RescanQueueSize,
	}
	for query, target := range queries {
		if err := s.db.QueryRow(query).Scan(target); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to gather storage stats", err.Error())
		}
	}
	return stats, nil
}

// GetHealth returns storage health information
func (s *PostgresStorage) GetHealth() *StorageHealth {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &StorageHealth{
		Connected: s.connected,
		Type:      "postgres",
		LastPing:  s.lastPing,
		Error:     s.lastError,
	}
}
