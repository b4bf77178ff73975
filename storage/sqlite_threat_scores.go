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

const threatScoreColumns = `id, ip_address, suricata_score, zeek_score, anomaly_score, ml_score,
	combined_score, alert_count, flow_count, classification, last_seen, created_at, updated_at`

// ApplyContribution loads or creates the IP's record, runs the max-merge
// and weighted recompute, and persists — all inside one transaction on the
// single-writer pool, so concurrent contributions for the same IP cannot
// lose an update.
func (s *SQLite) ApplyContribution(ctx context.Context, ip string, source core.ScoreSource, score float64, now time.Time) (*core.ThreatScore, error) {
	var record *core.ThreatScore

	err := s.WithTransaction(func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT `+threatScoreColumns+` FROM threat_scores WHERE ip_address = ?`, ip)

		existing, err := scanThreatScore(row)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to load threat score: %w", err)
		}

		if existing == nil {
			record = core.NewThreatScore(ip, source, score, now)
			record.ID = uuid.New().String()
			_, err = tx.ExecContext(ctx,
				`INSERT INTO threat_scores (`+threatScoreColumns+`)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				record.ID, record.IPAddress,
				record.SuricataScore, record.ZeekScore, record.AnomalyScore, record.MLScore,
				record.CombinedScore, record.AlertCount, record.FlowCount,
				string(record.Classification),
				formatTime(record.LastSeen), formatTime(record.CreatedAt), formatTime(record.UpdatedAt))
			if err != nil {
				return fmt.Errorf("failed to insert threat score: %w", err)
			}
			return nil
		}

		existing.ApplyContribution(source, score, now)
		record = existing
		_, err = tx.ExecContext(ctx,
			`UPDATE threat_scores SET
				suricata_score = ?, zeek_score = ?, anomaly_score = ?, ml_score = ?,
				combined_score = ?, alert_count = ?, flow_count = ?,
				classification = ?, last_seen = ?, updated_at = ?
			 WHERE ip_address = ?`,
			record.SuricataScore, record.ZeekScore, record.AnomalyScore, record.MLScore,
			record.CombinedScore, record.AlertCount, record.FlowCount,
			string(record.Classification), formatTime(record.LastSeen), formatTime(record.UpdatedAt),
			ip)
		if err != nil {
			return fmt.Errorf("failed to update threat score: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// GetThreatScore returns the record for one IP, or ErrThreatScoreNotFound
func (s *SQLite) GetThreatScore(ctx context.Context, ip string) (*core.ThreatScore, error) {
	row := s.ReadDB.QueryRowContext(ctx,
		`SELECT `+threatScoreColumns+` FROM threat_scores WHERE ip_address = ?`, ip)

	record, err := scanThreatScore(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrThreatScoreNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get threat score: %w", err)
	}
	return record, nil
}

// GetTopThreatScores returns records at or above minScore, highest first
func (s *SQLite) GetTopThreatScores(ctx context.Context, minScore float64, limit int) ([]core.ThreatScore, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.ReadDB.QueryContext(ctx,
		`SELECT `+threatScoreColumns+` FROM threat_scores
		 WHERE combined_score >= ?
		 ORDER BY combined_score DESC
		 LIMIT ?`, minScore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query threat scores: %w", err)
	}
	defer rows.Close()

	var records []core.ThreatScore
	for rows.Next() {
		record, err := scanThreatScore(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan threat score: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// GetThreatScoreCount returns the number of tracked IPs
func (s *SQLite) GetThreatScoreCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.ReadDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM threat_scores`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count threat scores: %w", err)
	}
	return count, nil
}

// scanner covers both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanThreatScore(row scanner) (*core.ThreatScore, error) {
	var t core.ThreatScore
	var classification, lastSeen, createdAt, updatedAt string

	err := row.Scan(&t.ID, &t.IPAddress,
		&t.SuricataScore, &t.ZeekScore, &t.AnomalyScore, &t.MLScore,
		&t.CombinedScore, &t.AlertCount, &t.FlowCount,
		&classification, &lastSeen, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	t.Classification = core.Classification(classification)
	t.LastSeen = parseTime(lastSeen)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}
