package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLite holds the SQLite database connections.
// Separate read and write pools leverage WAL mode's concurrency model:
// unlimited concurrent readers plus exactly one writer. The single-writer
// pool is what makes ApplyContribution / ApplySample transactions safe
// against same-row races — concurrent read-modify-write updates for one IP
// or baseline key serialize on the write connection.
type SQLite struct {
	WriteDB *sql.DB // write pool, MaxOpenConns=1 (WAL single writer)
	ReadDB  *sql.DB // read pool, concurrent readers
	Path    string
	Logger  *zap.SugaredLogger
}

// configureSQLiteConnection applies WAL mode, foreign keys and a busy
// timeout to one pool.
func configureSQLiteConnection(db *sql.DB, dbPath string) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Avoid immediate SQLITE_BUSY under writer contention
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	// In-memory databases report "memory" journal mode, not "wal"
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to query journal mode: %w", err)
	}
	if dbPath != ":memory:" && journalMode != "wal" {
		return fmt.Errorf("WAL mode not enabled (got %q)", journalMode)
	}

	return nil
}

// validateDatabasePath rejects paths that escape the working tree
func validateDatabasePath(dbPath string) error {
	if dbPath == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if dbPath == ":memory:" {
		return nil
	}
	if strings.Contains(dbPath, "..") {
		return fmt.Errorf("database path must not contain path traversal sequences")
	}
	return nil
}

// NewSQLite creates a new SQLite store with split read/write pools
func NewSQLite(dbPath string, logger *zap.SugaredLogger) (*SQLite, error) {
	if err := validateDatabasePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	dir := filepath.Dir(dbPath)
	if dbPath != ":memory:" && dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// In-memory databases need shared cache so both pools see one database
	actualPath := dbPath
	if dbPath == ":memory:" {
		actualPath = "file::memory:?cache=shared"
	}

	writeDB, err := sql.Open("sqlite", actualPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite write database: %w", err)
	}
	if err := configureSQLiteConnection(writeDB, dbPath); err != nil {
		_ = writeDB.Close()
		return nil, fmt.Errorf("failed to configure write connection: %w", err)
	}
	writeDB.SetMaxOpenConns(1)
	writeDB.SetMaxIdleConns(1)
	writeDB.SetConnMaxLifetime(0)
	writeDB.SetConnMaxIdleTime(10 * time.Minute)

	readDB, err := sql.Open("sqlite", actualPath)
	if err != nil {
		_ = writeDB.Close()
		return nil, fmt.Errorf("failed to open SQLite read database: %w", err)
	}
	if err := configureSQLiteConnection(readDB, dbPath); err != nil {
		_ = writeDB.Close()
		_ = readDB.Close()
		return nil, fmt.Errorf("failed to configure read connection: %w", err)
	}
	readDB.SetMaxOpenConns(10)
	readDB.SetMaxIdleConns(5)
	readDB.SetConnMaxLifetime(5 * time.Minute)
	readDB.SetConnMaxIdleTime(10 * time.Minute)

	s := &SQLite{
		WriteDB: writeDB,
		ReadDB:  readDB,
		Path:    dbPath,
		Logger:  logger,
	}

	if err := s.createTables(); err != nil {
		_ = writeDB.Close()
		_ = readDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Infof("SQLite database initialized at %s with separate read/write pools", dbPath)
	return s, nil
}

// Close closes both pools
func (s *SQLite) Close() error {
	var firstErr error
	if err := s.WriteDB.Close(); err != nil {
		firstErr = err
	}
	if err := s.ReadDB.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// WithTransaction executes fn inside a transaction on the write pool,
// rolling back on error or panic. Combined with the single-writer pool this
// gives read-modify-write callers serializable behavior per row.
func (s *SQLite) WithTransaction(fn func(*sql.Tx) error) error {
	tx, err := s.WriteDB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("failed to rollback transaction (original error: %w, rollback error: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// createTables creates all necessary tables
func (s *SQLite) createTables() error {
	schema := `
	-- Registered sensor agents
	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL UNIQUE,
		hostname TEXT NOT NULL,
		os TEXT NOT NULL DEFAULT 'unknown',
		version TEXT NOT NULL DEFAULT '1.0.0',
		ip_address TEXT,
		status TEXT NOT NULL DEFAULT 'offline',
		cpu_percent REAL NOT NULL DEFAULT 0,
		memory_percent REAL NOT NULL DEFAULT 0,
		network_bps INTEGER NOT NULL DEFAULT 0,
		packets_captured INTEGER NOT NULL DEFAULT 0,
		alerts_generated INTEGER NOT NULL DEFAULT 0,
		last_seen DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_agents_status ON agents(status);
	CREATE INDEX IF NOT EXISTS idx_agents_last_seen ON agents(last_seen DESC);

	-- IDS alerts (suricata, zeek-derived, anomaly-derived)
	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		src_ip TEXT NOT NULL,
		src_port INTEGER,
		dst_ip TEXT NOT NULL,
		dst_port INTEGER,
		protocol TEXT NOT NULL DEFAULT 'tcp',
		signature_id TEXT,
		signature_name TEXT NOT NULL,
		severity TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT 'Unclassified',
		threat_score REAL NOT NULL DEFAULT 0,
		event_type TEXT NOT NULL,
		raw_data TEXT, -- JSON passthrough, never inspected by scoring
		timestamp DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_alerts_timestamp ON alerts(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_alerts_src_ip ON alerts(src_ip);
	CREATE INDEX IF NOT EXISTS idx_alerts_agent ON alerts(agent_id);
	CREATE INDEX IF NOT EXISTS idx_alerts_severity ON alerts(severity);

	-- Network flows (zeek conn logs and raw agent flows)
	CREATE TABLE IF NOT EXISTS flows (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		src_ip TEXT NOT NULL,
		src_port INTEGER,
		dst_ip TEXT NOT NULL,
		dst_port INTEGER,
		protocol TEXT NOT NULL DEFAULT 'tcp',
		bytes_sent INTEGER NOT NULL DEFAULT 0,
		bytes_recv INTEGER NOT NULL DEFAULT 0,
		packets_sent INTEGER NOT NULL DEFAULT 0,
		packets_recv INTEGER NOT NULL DEFAULT 0,
		duration REAL NOT NULL DEFAULT 0,
		service TEXT,
		conn_state TEXT,
		threat_score REAL NOT NULL DEFAULT 0,
		flags TEXT, -- JSON passthrough
		timestamp DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_flows_timestamp ON flows(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_flows_src_ip ON flows(src_ip);
	CREATE INDEX IF NOT EXISTS idx_flows_agent ON flows(agent_id);

	-- Agent throughput time series
	CREATE TABLE IF NOT EXISTS traffic_stats (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		packets_per_sec INTEGER NOT NULL DEFAULT 0,
		bytes_per_sec INTEGER NOT NULL DEFAULT 0,
		cpu_percent REAL NOT NULL DEFAULT 0,
		memory_percent REAL NOT NULL DEFAULT 0,
		timestamp DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_traffic_stats_agent_ts ON traffic_stats(agent_id, timestamp DESC);

	-- Per-IP composite threat scores
	CREATE TABLE IF NOT EXISTS threat_scores (
		id TEXT PRIMARY KEY,
		ip_address TEXT NOT NULL UNIQUE,
		suricata_score REAL NOT NULL DEFAULT 0,
		zeek_score REAL NOT NULL DEFAULT 0,
		anomaly_score REAL NOT NULL DEFAULT 0,
		ml_score REAL NOT NULL DEFAULT 0,
		combined_score REAL NOT NULL DEFAULT 0,
		alert_count INTEGER NOT NULL DEFAULT 0,
		flow_count INTEGER NOT NULL DEFAULT 0,
		classification TEXT NOT NULL DEFAULT 'benign',
		last_seen DATETIME NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_threat_scores_combined ON threat_scores(combined_score DESC);
	CREATE INDEX IF NOT EXISTS idx_threat_scores_classification ON threat_scores(classification);

	-- Per-(agent, metric) statistical baselines
	CREATE TABLE IF NOT EXISTS anomaly_baselines (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		metric_name TEXT NOT NULL,
		mean_value REAL NOT NULL DEFAULT 0,
		std_value REAL NOT NULL DEFAULT 1,
		ewma_value REAL NOT NULL DEFAULT 0,
		sample_count INTEGER NOT NULL DEFAULT 1,
		last_updated DATETIME NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE(agent_id, metric_name)
	);

	-- Block directory; rows are never deleted (audit trail).
	-- agent_id '' means the block applies to all agents.
	CREATE TABLE IF NOT EXISTS blocklist (
		id TEXT PRIMARY KEY,
		ip_address TEXT NOT NULL,
		agent_id TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT 'manual',
		threat_score REAL NOT NULL DEFAULT 0,
		active INTEGER NOT NULL DEFAULT 1,
		expires_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE(ip_address, agent_id)
	);
	CREATE INDEX IF NOT EXISTS idx_blocklist_active ON blocklist(active);
	CREATE INDEX IF NOT EXISTS idx_blocklist_expires ON blocklist(expires_at);

	-- Tracked incidents
	CREATE TABLE IF NOT EXISTS incidents (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		severity TEXT NOT NULL DEFAULT 'medium',
		status TEXT NOT NULL DEFAULT 'open',
		src_ip TEXT,
		dst_ip TEXT,
		threat_score REAL NOT NULL DEFAULT 0,
		related_alerts TEXT, -- JSON array of alert IDs
		related_flows TEXT, -- JSON array of flow IDs
		assigned_to TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		resolved_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_incidents_status ON incidents(status);
	CREATE INDEX IF NOT EXISTS idx_incidents_severity ON incidents(severity);
	CREATE INDEX IF NOT EXISTS idx_incidents_created_at ON incidents(created_at DESC);
	`

	if _, err := s.WriteDB.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// formatTime renders a timestamp the way every table stores it. Second
// precision keeps stored timestamps lexicographically ordered, which the
// lazy-expiry SQL comparison relies on.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime is the inverse of formatTime; zero time on empty input
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
