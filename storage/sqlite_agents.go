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

const agentColumns = `id, agent_id, hostname, os, version, ip_address, status,
	cpu_percent, memory_percent, network_bps, packets_captured, alerts_generated,
	last_seen, created_at, updated_at`

// UpsertAgent registers an agent or refreshes an existing registration.
// Agents re-register on every startup, so the upsert is keyed by agent_id
// and preserves created_at.
func (s *SQLite) UpsertAgent(ctx context.Context, agent *core.Agent) (*core.Agent, error) {
	if agent.ID == "" {
		agent.ID = uuid.New().String()
	}

	_, err := s.WriteDB.ExecContext(ctx,
		`INSERT INTO agents (`+agentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(agent_id) DO UPDATE SET
			hostname = excluded.hostname,
			os = excluded.os,
			version = excluded.version,
			ip_address = excluded.ip_address,
			status = excluded.status,
			last_seen = excluded.last_seen,
			updated_at = excluded.updated_at`,
		agent.ID, agent.AgentID, agent.Hostname, agent.OS, agent.Version,
		agent.IPAddress, string(agent.Status),
		agent.CPUPercent, agent.MemoryPercent, agent.NetworkBps,
		agent.PacketsCaptured, agent.AlertsGenerated,
		formatTime(agent.LastSeen), formatTime(agent.CreatedAt), formatTime(agent.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert agent: %w", err)
	}

	// read the row back so the caller sees the surviving id and created_at
	row := s.WriteDB.QueryRowContext(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE agent_id = ?`, agent.AgentID)
	stored, err := scanAgent(row)
	if err != nil {
		return nil, fmt.Errorf("failed to read back agent: %w", err)
	}
	return stored, nil
}

// UpdateHeartbeat records one telemetry report and marks the agent online.
// Returns ErrAgentNotFound for unregistered agents.
func (s *SQLite) UpdateHeartbeat(ctx context.Context, hb *core.Heartbeat, now time.Time) error {
	result, err := s.WriteDB.ExecContext(ctx,
		`UPDATE agents SET
			status = ?, cpu_percent = ?, memory_percent = ?, network_bps = ?,
			packets_captured = ?, alerts_generated = ?, last_seen = ?, updated_at = ?
		 WHERE agent_id = ?`,
		string(core.AgentStatusOnline), hb.CPUPercent, hb.MemoryPercent, hb.TrafficBps,
		hb.PacketsCaptured, hb.AlertsGenerated, formatTime(now), formatTime(now),
		hb.AgentID)
	if err != nil {
		return fmt.Errorf("failed to update heartbeat: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check heartbeat update: %w", err)
	}
	if affected == 0 {
		return ErrAgentNotFound
	}
	return nil
}

// GetAgent returns one agent by its agent_id, or ErrAgentNotFound
func (s *SQLite) GetAgent(ctx context.Context, agentID string) (*core.Agent, error) {
	row := s.ReadDB.QueryRowContext(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE agent_id = ?`, agentID)

	agent, err := scanAgent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAgentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	return agent, nil
}

// GetAgents returns all registered agents, most recently seen first
func (s *SQLite) GetAgents(ctx context.Context) ([]core.Agent, error) {
	rows, err := s.ReadDB.QueryContext(ctx,
		`SELECT `+agentColumns+` FROM agents ORDER BY last_seen DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query agents: %w", err)
	}
	defer rows.Close()

	var agents []core.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		agents = append(agents, *agent)
	}
	return agents, rows.Err()
}

// MarkAgentsOffline flips agents whose last heartbeat predates the cutoff
// to offline, returning how many changed
func (s *SQLite) MarkAgentsOffline(ctx context.Context, notSeenSince time.Time) (int64, error) {
	result, err := s.WriteDB.ExecContext(ctx,
		`UPDATE agents SET status = ?, updated_at = ?
		 WHERE status = ? AND last_seen < ?`,
		string(core.AgentStatusOffline), formatTime(time.Now()),
		string(core.AgentStatusOnline), formatTime(notSeenSince))
	if err != nil {
		return 0, fmt.Errorf("failed to mark agents offline: %w", err)
	}
	return result.RowsAffected()
}

// InsertTrafficStat appends one throughput sample to the time series
func (s *SQLite) InsertTrafficStat(ctx context.Context, stat *core.TrafficStat) error {
	if stat.ID == "" {
		stat.ID = uuid.New().String()
	}

	_, err := s.WriteDB.ExecContext(ctx,
		`INSERT INTO traffic_stats (id, agent_id, packets_per_sec, bytes_per_sec,
			cpu_percent, memory_percent, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		stat.ID, stat.AgentID, stat.PacketsPerSec, stat.BytesPerSec,
		stat.CPUPercent, stat.MemoryPercent, formatTime(stat.Timestamp))
	if err != nil {
		return fmt.Errorf("failed to insert traffic stat: %w", err)
	}
	return nil
}

// GetTrafficStats returns an agent's throughput samples since the cutoff,
// oldest first for charting
func (s *SQLite) GetTrafficStats(ctx context.Context, agentID string, since time.Time) ([]core.TrafficStat, error) {
	rows, err := s.ReadDB.QueryContext(ctx,
		`SELECT id, agent_id, packets_per_sec, bytes_per_sec, cpu_percent, memory_percent, timestamp
		 FROM traffic_stats
		 WHERE agent_id = ? AND timestamp >= ?
		 ORDER BY timestamp ASC`, agentID, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query traffic stats: %w", err)
	}
	defer rows.Close()

	var stats []core.TrafficStat
	for rows.Next() {
		var st core.TrafficStat
		var timestamp string
		if err := rows.Scan(&st.ID, &st.AgentID, &st.PacketsPerSec, &st.BytesPerSec,
			&st.CPUPercent, &st.MemoryPercent, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan traffic stat: %w", err)
		}
		st.Timestamp = parseTime(timestamp)
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func scanAgent(row scanner) (*core.Agent, error) {
	var a core.Agent
	var ipAddress, lastSeen sql.NullString
	var status, createdAt, updatedAt string

	err := row.Scan(&a.ID, &a.AgentID, &a.Hostname, &a.OS, &a.Version,
		&ipAddress, &status,
		&a.CPUPercent, &a.MemoryPercent, &a.NetworkBps,
		&a.PacketsCaptured, &a.AlertsGenerated,
		&lastSeen, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	a.IPAddress = ipAddress.String
	a.Status = core.AgentStatus(status)
	a.LastSeen = parseTime(lastSeen.String)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}
