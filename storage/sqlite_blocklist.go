package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"snsm/core"

	"github.com/google/uuid"
)

const blocklistColumns = `id, ip_address, agent_id, reason, source, threat_score,
	active, expires_at, created_at, updated_at`

// UpsertBlock inserts or refreshes the entry keyed by (ip_address,
// agent_id). A conflict refreshes reason, source, score, expiry and
// reactivates the row — re-blocking never stacks a second entry and the
// original created_at is preserved.
func (s *SQLite) UpsertBlock(ctx context.Context, entry *core.BlocklistEntry) (*core.BlocklistEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	var expires interface{}
	if entry.ExpiresAt != nil {
		expires = formatTime(*entry.ExpiresAt)
	}

	_, err := s.WriteDB.ExecContext(ctx,
		`INSERT INTO blocklist (`+blocklistColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(ip_address, agent_id) DO UPDATE SET
			reason = excluded.reason,
			source = excluded.source,
			threat_score = excluded.threat_score,
			active = excluded.active,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		entry.ID, entry.IPAddress, entry.AgentID, entry.Reason, string(entry.Source),
		entry.ThreatScore, boolToInt(entry.Active), expires,
		formatTime(entry.CreatedAt), formatTime(entry.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert blocklist entry: %w", err)
	}

	return s.getBlock(ctx, entry.IPAddress, entry.AgentID)
}

// getBlock reads one entry back by its upsert key. Reads through the write
// pool so an upsert in the same call observes its own write under WAL.
func (s *SQLite) getBlock(ctx context.Context, ip, agentID string) (*core.BlocklistEntry, error) {
	row := s.WriteDB.QueryRowContext(ctx,
		`SELECT `+blocklistColumns+` FROM blocklist WHERE ip_address = ? AND agent_id = ?`,
		ip, agentID)

	entry, err := scanBlocklistEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBlockNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blocklist entry: %w", err)
	}
	return entry, nil
}

// DeactivateBlocks flips active=false on every entry for the IP; the rows
// remain as the audit trail.
func (s *SQLite) DeactivateBlocks(ctx context.Context, ip string) (int64, error) {
	result, err := s.WriteDB.ExecContext(ctx,
		`UPDATE blocklist SET active = 0, updated_at = ? WHERE ip_address = ?`,
		formatTime(time.Now().UTC()), ip)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate blocklist entries: %w", err)
	}
	return result.RowsAffected()
}

// ListBlocks returns entries with active=true, scoped to an agent plus
// global entries when agentID is non-empty. Expiry filtering is the
// caller's responsibility (lazy expiry).
func (s *SQLite) ListBlocks(ctx context.Context, agentID string) ([]core.BlocklistEntry, error) {
	query := `SELECT ` + blocklistColumns + ` FROM blocklist WHERE active = 1`
	args := []interface{}{}
	if agentID != "" {
		query += ` AND (agent_id = '' OR agent_id = ?)`
		args = append(args, agentID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.ReadDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query blocklist: %w", err)
	}
	defer rows.Close()

	var entries []core.BlocklistEntry
	for rows.Next() {
		entry, err := scanBlocklistEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan blocklist entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// CountActiveBlocks counts entries currently blocking, applying the lazy
// expiry check in SQL.
func (s *SQLite) CountActiveBlocks(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := s.ReadDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM blocklist
		 WHERE active = 1 AND (expires_at IS NULL OR expires_at > ?)`,
		formatTime(now)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active blocks: %w", err)
	}
	return count, nil
}

func scanBlocklistEntry(row scanner) (*core.BlocklistEntry, error) {
	var e core.BlocklistEntry
	var source, createdAt, updatedAt string
	var expiresAt sql.NullString
	var active int

	err := row.Scan(&e.ID, &e.IPAddress, &e.AgentID, &e.Reason, &source,
		&e.ThreatScore, &active, &expiresAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	e.Source = core.BlockSource(source)
	e.Active = active != 0
	if expiresAt.Valid && expiresAt.String != "" {
		t := parseTime(expiresAt.String)
		e.ExpiresAt = &t
	}
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return &e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
