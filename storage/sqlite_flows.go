package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"snsm/core"

	"github.com/google/uuid"
)

const flowColumns = `id, agent_id, src_ip, src_port, dst_ip, dst_port, protocol,
	bytes_sent, bytes_recv, packets_sent, packets_recv, duration, service,
	conn_state, threat_score, flags, timestamp`

// InsertFlows persists a batch of flows in one transaction
func (s *SQLite) InsertFlows(ctx context.Context, flows []*core.Flow) error {
	if len(flows) == 0 {
		return nil
	}

	return s.WithTransaction(func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO flows (`+flowColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare flow insert: %w", err)
		}
		defer stmt.Close()

		for _, flow := range flows {
			if flow.ID == "" {
				flow.ID = uuid.New().String()
			}
			var flags interface{}
			if len(flow.Flags) > 0 {
				flags = string(flow.Flags)
			}
			_, err = stmt.ExecContext(ctx,
				flow.ID, flow.AgentID,
				flow.SrcIP, flow.SrcPort, flow.DstIP, flow.DstPort, flow.Protocol,
				flow.BytesSent, flow.BytesRecv, flow.PacketsSent, flow.PacketsRecv,
				flow.Duration, flow.Service, flow.ConnState, flow.ThreatScore,
				flags, formatTime(flow.Timestamp))
			if err != nil {
				return fmt.Errorf("failed to insert flow %s: %w", flow.ID, err)
			}
		}
		return nil
	})
}

// GetFlows returns flows matching the filters, newest first
func (s *SQLite) GetFlows(ctx context.Context, filters core.FlowFilters) ([]core.Flow, error) {
	query := `SELECT ` + flowColumns + ` FROM flows`
	var conditions []string
	var args []interface{}

	if filters.AgentID != "" {
		conditions = append(conditions, "agent_id = ?")
		args = append(args, filters.AgentID)
	}
	if filters.SrcIP != "" {
		conditions = append(conditions, "src_ip = ?")
		args = append(args, filters.SrcIP)
	}
	if !filters.Since.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, formatTime(filters.Since))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.ReadDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}
	defer rows.Close()

	return collectFlows(rows)
}

// GetFlowCount returns the total number of stored flows
func (s *SQLite) GetFlowCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.ReadDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM flows`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count flows: %w", err)
	}
	return count, nil
}

// GetRecentFlowsForIP returns the latest flows where the IP appears as
// source or destination
func (s *SQLite) GetRecentFlowsForIP(ctx context.Context, ip string, limit int) ([]core.Flow, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.ReadDB.QueryContext(ctx,
		`SELECT `+flowColumns+` FROM flows
		 WHERE src_ip = ? OR dst_ip = ?
		 ORDER BY timestamp DESC
		 LIMIT ?`, ip, ip, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query flows for IP: %w", err)
	}
	defer rows.Close()

	return collectFlows(rows)
}

func collectFlows(rows *sql.Rows) ([]core.Flow, error) {
	var flows []core.Flow
	for rows.Next() {
		flow, err := scanFlow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}
		flows = append(flows, *flow)
	}
	return flows, rows.Err()
}

func scanFlow(row scanner) (*core.Flow, error) {
	var f core.Flow
	var srcPort, dstPort sql.NullInt64
	var service, connState, flags sql.NullString
	var timestamp string

	err := row.Scan(&f.ID, &f.AgentID,
		&f.SrcIP, &srcPort, &f.DstIP, &dstPort, &f.Protocol,
		&f.BytesSent, &f.BytesRecv, &f.PacketsSent, &f.PacketsRecv,
		&f.Duration, &service, &connState, &f.ThreatScore,
		&flags, &timestamp)
	if err != nil {
		return nil, err
	}

	f.SrcPort = int(srcPort.Int64)
	f.DstPort = int(dstPort.Int64)
	f.Service = service.String
	f.ConnState = connState.String
	if flags.Valid {
		f.Flags = []byte(flags.String)
	}
	f.Timestamp = parseTime(timestamp)
	return &f, nil
}
