package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"snsm/core"

	"github.com/google/uuid"
)

const incidentColumns = `id, title, description, severity, status, src_ip, dst_ip,
	threat_score, related_alerts, related_flows, assigned_to,
	created_at, updated_at, resolved_at`

// CreateIncident stores a new incident, assigning an ID when absent
func (s *SQLite) CreateIncident(ctx context.Context, incident *core.Incident) error {
	if incident.ID == "" {
		incident.ID = uuid.New().String()
	}

	relatedAlerts, err := marshalIDList(incident.RelatedAlerts)
	if err != nil {
		return fmt.Errorf("failed to encode related alerts: %w", err)
	}
	relatedFlows, err := marshalIDList(incident.RelatedFlows)
	if err != nil {
		return fmt.Errorf("failed to encode related flows: %w", err)
	}

	var resolvedAt interface{}
	if incident.ResolvedAt != nil {
		resolvedAt = formatTime(*incident.ResolvedAt)
	}

	_, err = s.WriteDB.ExecContext(ctx,
		`INSERT INTO incidents (`+incidentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		incident.ID, incident.Title, incident.Description,
		string(incident.Severity), string(incident.Status),
		incident.SrcIP, incident.DstIP, incident.ThreatScore,
		relatedAlerts, relatedFlows, incident.AssignedTo,
		formatTime(incident.CreatedAt), formatTime(incident.UpdatedAt), resolvedAt)
	if err != nil {
		return fmt.Errorf("failed to insert incident: %w", err)
	}
	return nil
}

// GetIncident returns one incident by ID, or ErrIncidentNotFound
func (s *SQLite) GetIncident(ctx context.Context, id string) (*core.Incident, error) {
	row := s.ReadDB.QueryRowContext(ctx,
		`SELECT `+incidentColumns+` FROM incidents WHERE id = ?`, id)

	incident, err := scanIncident(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrIncidentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get incident: %w", err)
	}
	return incident, nil
}

// GetIncidents returns incidents matching the filters, newest first
func (s *SQLite) GetIncidents(ctx context.Context, filters core.IncidentFilters) ([]core.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents`
	var conditions []string
	var args []interface{}

	if filters.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filters.Status))
	}
	if filters.Severity != "" {
		conditions = append(conditions, "severity = ?")
		args = append(args, string(filters.Severity))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.ReadDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}
	defer rows.Close()

	var incidents []core.Incident
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		incidents = append(incidents, *incident)
	}
	return incidents, rows.Err()
}

// UpdateIncident replaces the mutable fields of an incident.
func (s *SQLite) UpdateIncident(ctx context.Context, id string, incident *core.Incident) error {
	relatedAlerts, err := marshalIDList(incident.RelatedAlerts)
	if err != nil {
		return fmt.Errorf("failed to encode related alerts: %w", err)
	}
	relatedFlows, err := marshalIDList(incident.RelatedFlows)
	if err != nil {
		return fmt.Errorf("failed to encode related flows: %w", err)
	}

	var resolvedAt interface{}
	if incident.ResolvedAt != nil {
		resolvedAt = formatTime(*incident.ResolvedAt)
	}

	result, err := s.WriteDB.ExecContext(ctx,
		`UPDATE incidents SET
			title = ?, description = ?, severity = ?, status = ?,
			src_ip = ?, dst_ip = ?, threat_score = ?,
			related_alerts = ?, related_flows = ?, assigned_to = ?,
			updated_at = ?, resolved_at = ?
		 WHERE id = ?`,
		incident.Title, incident.Description,
		string(incident.Severity), string(incident.Status),
		incident.SrcIP, incident.DstIP, incident.ThreatScore,
		relatedAlerts, relatedFlows, incident.AssignedTo,
		formatTime(incident.UpdatedAt), resolvedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update incident: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check incident update: %w", err)
	}
	if affected == 0 {
		return ErrIncidentNotFound
	}
	return nil
}

func marshalIDList(ids []string) (string, error) {
	if len(ids) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func scanIncident(row scanner) (*core.Incident, error) {
	var inc core.Incident
	var description, srcIP, dstIP, assignedTo sql.NullString
	var relatedAlerts, relatedFlows, resolvedAt sql.NullString
	var severity, status, createdAt, updatedAt string

	err := row.Scan(&inc.ID, &inc.Title, &description, &severity, &status,
		&srcIP, &dstIP, &inc.ThreatScore,
		&relatedAlerts, &relatedFlows, &assignedTo,
		&createdAt, &updatedAt, &resolvedAt)
	if err != nil {
		return nil, err
	}

	inc.Description = description.String
	inc.Severity = core.Severity(severity)
	inc.Status = core.IncidentStatus(status)
	inc.SrcIP = srcIP.String
	inc.DstIP = dstIP.String
	inc.AssignedTo = assignedTo.String
	inc.CreatedAt = parseTime(createdAt)
	inc.UpdatedAt = parseTime(updatedAt)

	if relatedAlerts.Valid && relatedAlerts.String != "" {
		if err := json.Unmarshal([]byte(relatedAlerts.String), &inc.RelatedAlerts); err != nil {
			return nil, fmt.Errorf("corrupt related_alerts for incident %s: %w", inc.ID, err)
		}
	}
	if relatedFlows.Valid && relatedFlows.String != "" {
		if err := json.Unmarshal([]byte(relatedFlows.String), &inc.RelatedFlows); err != nil {
			return nil, fmt.Errorf("corrupt related_flows for incident %s: %w", inc.ID, err)
		}
	}
	if resolvedAt.Valid && resolvedAt.String != "" {
		t := parseTime(resolvedAt.String)
		inc.ResolvedAt = &t
	}
	return &inc, nil
}
