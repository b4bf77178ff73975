package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"snsm/core"

	"github.com/google/uuid"
)

const alertColumns = `id, agent_id, src_ip, src_port, dst_ip, dst_port, protocol,
	signature_id, signature_name, severity, category, threat_score, event_type,
	raw_data, timestamp`

// InsertAlerts persists a batch of alerts in one transaction. IDs are
// assigned here when the caller left them empty.
func (s *SQLite) InsertAlerts(ctx context.Context, alerts []*core.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	return s.WithTransaction(func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO alerts (`+alertColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare alert insert: %w", err)
		}
		defer stmt.Close()

		for _, alert := range alerts {
			if alert.ID == "" {
				alert.ID = uuid.New().String()
			}
			var rawData interface{}
			if len(alert.RawData) > 0 {
				rawData = string(alert.RawData)
			}
			_, err = stmt.ExecContext(ctx,
				alert.ID, alert.AgentID,
				alert.SrcIP, alert.SrcPort, alert.DstIP, alert.DstPort, alert.Protocol,
				alert.SignatureID, alert.SignatureName, string(alert.Severity), alert.Category,
				alert.ThreatScore, alert.EventType, rawData, formatTime(alert.Timestamp))
			if err != nil {
				return fmt.Errorf("failed to insert alert %s: %w", alert.ID, err)
			}
		}
		return nil
	})
}

// GetAlerts returns alerts matching the filters, newest first
func (s *SQLite) GetAlerts(ctx context.Context, filters core.AlertFilters) ([]core.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts`
	var conditions []string
	var args []interface{}

	if filters.AgentID != "" {
		conditions = append(conditions, "agent_id = ?")
		args = append(args, filters.AgentID)
	}
	if filters.Severity != "" {
		conditions = append(conditions, "severity = ?")
		args = append(args, string(filters.Severity))
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
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	return collectAlerts(rows)
}

// GetAlertCount returns the total number of stored alerts
func (s *SQLite) GetAlertCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.ReadDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return count, nil
}

// CountAlertsBySeverity returns per-severity alert counts since the cutoff
func (s *SQLite) CountAlertsBySeverity(ctx context.Context, since time.Time) (map[core.Severity]int64, error) {
	rows, err := s.ReadDB.QueryContext(ctx,
		`SELECT severity, COUNT(*) FROM alerts WHERE timestamp >= ? GROUP BY severity`,
		formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to count alerts by severity: %w", err)
	}
	defer rows.Close()

	counts := make(map[core.Severity]int64)
	for rows.Next() {
		var severity string
		var count int64
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, fmt.Errorf("failed to scan severity count: %w", err)
		}
		counts[core.Severity(severity)] = count
	}
	return counts, rows.Err()
}

// GetRecentAlertsForIP returns the latest alerts where the IP appears as
// source or destination. Used for incident context.
func (s *SQLite) GetRecentAlertsForIP(ctx context.Context, ip string, limit int) ([]core.Alert, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.ReadDB.QueryContext(ctx,
		`SELECT `+alertColumns+` FROM alerts
		 WHERE src_ip = ? OR dst_ip = ?
		 ORDER BY timestamp DESC
		 LIMIT ?`, ip, ip, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts for IP: %w", err)
	}
	defer rows.Close()

	return collectAlerts(rows)
}

func collectAlerts(rows *sql.Rows) ([]core.Alert, error) {
	var alerts []core.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, *alert)
	}
	return alerts, rows.Err()
}

func scanAlert(row scanner) (*core.Alert, error) {
	var a core.Alert
	var srcPort, dstPort sql.NullInt64
	var signatureID, rawData sql.NullString
	var severity, timestamp string

	err := row.Scan(&a.ID, &a.AgentID,
		&a.SrcIP, &srcPort, &a.DstIP, &dstPort, &a.Protocol,
		&signatureID, &a.SignatureName, &severity, &a.Category,
		&a.ThreatScore, &a.EventType, &rawData, &timestamp)
	if err != nil {
		return nil, err
	}

	a.SrcPort = int(srcPort.Int64)
	a.DstPort = int(dstPort.Int64)
	a.SignatureID = signatureID.String
	a.Severity = core.Severity(severity)
	if rawData.Valid {
		a.RawData = []byte(rawData.String)
	}
	a.Timestamp = parseTime(timestamp)
	return &a, nil
}
