package storage

// Migration represents a database schema migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// getSQLiteMigrations returns the SQLite schema migrations in order
func getSQLiteMigrations() []*Migration {
	return []*Migration{
		{
			Version: 1,
			Name:    "create_token_snapshots",
			SQL: `
				CREATE TABLE IF NOT EXISTS token_snapshots (
					token_address TEXT PRIMARY KEY,
					pair_address TEXT NOT NULL DEFAULT '',
					token_name TEXT NOT NULL DEFAULT '',
					token_symbol TEXT NOT NULL DEFAULT '',
					token_decimals INTEGER NOT NULL DEFAULT 0,
					total_supply TEXT NOT NULL DEFAULT '',
					holder_count INTEGER NOT NULL DEFAULT 0,
					first_seen DATETIME NOT NULL,
					last_scan_at DATETIME NOT NULL,
					age_hours REAL,
					total_scans INTEGER NOT NULL DEFAULT 1,
					consecutive_failures INTEGER NOT NULL DEFAULT 0,
					is_honeypot BOOLEAN NOT NULL DEFAULT 1,
					honeypot_reason TEXT NOT NULL DEFAULT '',
					liquidity REAL NOT NULL DEFAULT 0,
					buy_tax REAL NOT NULL DEFAULT 0,
					sell_tax REAL NOT NULL DEFAULT 0,
					last_error TEXT NOT NULL DEFAULT '',
					status TEXT NOT NULL DEFAULT 'new',
					honeypot_data TEXT NOT NULL DEFAULT '{}',
					security_data TEXT NOT NULL DEFAULT '{}',
					liquidity_buckets TEXT NOT NULL DEFAULT '[]'
				);
				CREATE INDEX IF NOT EXISTS idx_snapshots_last_scan ON token_snapshots(last_scan_at);
				CREATE INDEX IF NOT EXISTS idx_snapshots_age ON token_snapshots(age_hours DESC);
				CREATE INDEX IF NOT EXISTS idx_snapshots_honeypot ON token_snapshots(is_honeypot);
			`,
		},
		{
			Version: 2,
			Name:    "create_removed_tokens",
			SQL: `
				CREATE TABLE IF NOT EXISTS removed_tokens (
					token_address TEXT PRIMARY KEY,
					pair_address TEXT NOT NULL DEFAULT '',
					token_name TEXT NOT NULL DEFAULT '',
					token_symbol TEXT NOT NULL DEFAULT '',
					first_seen DATETIME NOT NULL,
					last_scan_at DATETIME NOT NULL,
					removed_at DATETIME NOT NULL,
					age_hours REAL,
					total_scans INTEGER NOT NULL DEFAULT 0,
					consecutive_failures INTEGER NOT NULL DEFAULT 0,
					is_honeypot BOOLEAN NOT NULL DEFAULT 1,
					honeypot_reason TEXT NOT NULL DEFAULT '',
					liquidity REAL NOT NULL DEFAULT 0,
					last_error TEXT NOT NULL DEFAULT '',
					removal_reason TEXT NOT NULL DEFAULT ''
				);
				CREATE INDEX IF NOT EXISTS idx_removed_removed_at ON removed_tokens(removed_at DESC);
			`,
		},
		{
			Version: 3,
			Name:    "create_rescan_queue",
			SQL: `
				CREATE TABLE IF NOT EXISTS rescan_queue (
					token_address TEXT PRIMARY KEY,
					pair_address TEXT NOT NULL DEFAULT '',
					scan_count INTEGER NOT NULL DEFAULT 0,
					enqueued_at DATETIME NOT NULL
				);
			`,
		},
	}
}

// getPostgresMigrations returns the PostgreSQL schema migrations in order
func getPostgresMigrations() []*Migration {
	return []*Migration{
		{
			Version: 1,
			Name:    "create_token_snapshots",
			SQL: `
				CREATE TABLE IF NOT EXISTS token_snapshots (
					token_address TEXT PRIMARY KEY,
					pair_address TEXT NOT NULL DEFAULT '',
					token_name TEXT NOT NULL DEFAULT '',
					token_symbol TEXT NOT NULL DEFAULT '',
					token_decimals INTEGER NOT NULL DEFAULT 0,
					total_supply TEXT NOT NULL DEFAULT '',
					holder_count INTEGER NOT NULL DEFAULT 0,
					first_seen TIMESTAMP NOT NULL,
					last_scan_at TIMESTAMP NOT NULL,
					age_hours DOUBLE PRECISION,
					total_scans INTEGER NOT NULL DEFAULT 1,
					consecutive_failures INTEGER NOT NULL DEFAULT 0,
					is_honeypot BOOLEAN NOT NULL DEFAULT TRUE,
					honeypot_reason TEXT NOT NULL DEFAULT '',
					liquidity DOUBLE PRECISION NOT NULL DEFAULT 0,
					buy_tax DOUBLE PRECISION NOT NULL DEFAULT 0,
					sell_tax DOUBLE PRECISION NOT NULL DEFAULT 0,
					last_error TEXT NOT NULL DEFAULT '',
					status TEXT NOT NULL DEFAULT 'new',
					honeypot_data JSONB NOT NULL DEFAULT '{}',
					security_data JSONB NOT NULL DEFAULT '{}',
					liquidity_buckets JSONB NOT NULL DEFAULT '[]'
				);
				CREATE INDEX IF NOT EXISTS idx_snapshots_last_scan ON token_snapshots(last_scan_at);
				CREATE INDEX IF NOT EXISTS idx_snapshots_age ON token_snapshots(age_hours DESC);
				CREATE INDEX IF NOT EXISTS idx_snapshots_honeypot ON token_snapshots(is_honeypot);
			`,
		},
		{
			Version: 2,
			Name:    "create_removed_tokens",
			SQL: `
				CREATE TABLE IF NOT EXISTS removed_tokens (
					token_address TEXT PRIMARY KEY,
					pair_address TEXT NOT NULL DEFAULT '',
					token_name TEXT NOT NULL DEFAULT '',
					token_symbol TEXT NOT NULL DEFAULT '',
					first_seen TIMESTAMP NOT NULL,
					last_scan_at TIMESTAMP NOT NULL,
					removed_at TIMESTAMP NOT NULL,
					age_hours DOUBLE PRECISION,
					total_scans INTEGER NOT NULL DEFAULT 0,
					consecutive_failures INTEGER NOT NULL DEFAULT 0,
					is_honeypot BOOLEAN NOT NULL DEFAULT TRUE,
					honeypot_reason TEXT NOT NULL DEFAULT '',
					liquidity DOUBLE PRECISION NOT NULL DEFAULT 0,
					last_error TEXT NOT NULL DEFAULT '',
					removal_reason TEXT NOT NULL DEFAULT ''
				);
				CREATE INDEX IF NOT EXISTS idx_removed_removed_at ON removed_tokens(removed_at DESC);
			`,
		},
		{
			Version: 3,
			Name:    "create_rescan_queue",
			SQL: `
				CREATE TABLE IF NOT EXISTS rescan_queue (
					token_address TEXT PRIMARY KEY,
					pair_address TEXT NOT NULL DEFAULT '',
					scan_count INTEGER NOT NULL DEFAULT 0,
					enqueued_at TIMESTAMP NOT NULL
				);
			`,
		},
	}
}
