package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"snsm/core"

	"github.com/google/uuid"
)

const baselineColumns = `id, agent_id, metric_name, mean_value, std_value, ewma_value,
	sample_count, last_updated, created_at`

// ApplySample runs fn against the current baseline for (agent, metric) —
// nil when none exists — and persists whatever fn returns, inside one
// transaction on the single-writer pool. This is the same per-row
// atomicity contract as ApplyContribution: concurrent samples for one
// baseline key serialize instead of losing a Welford update.
func (s *SQLite) ApplySample(ctx context.Context, agentID, metricName string, fn func(b *core.AnomalyBaseline) (*core.AnomalyBaseline, error)) (*core.AnomalyBaseline, error) {
	var baseline *core.AnomalyBaseline

	err := s.WithTransaction(func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT `+baselineColumns+` FROM anomaly_baselines WHERE agent_id = ? AND metric_name = ?`,
			agentID, metricName)

		existing, err := scanBaseline(row)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to load baseline: %w", err)
		}

		updated, err := fn(existing)
		if err != nil {
			return err
		}
		baseline = updated

		if existing == nil {
			baseline.ID = uuid.New().String()
			_, err = tx.ExecContext(ctx,
				`INSERT INTO anomaly_baselines (`+baselineColumns+`)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				baseline.ID, baseline.AgentID, baseline.MetricName,
				baseline.MeanValue, baseline.StdValue, baseline.EWMAValue,
				baseline.SampleCount, formatTime(baseline.LastUpdated), formatTime(baseline.CreatedAt))
			if err != nil {
				return fmt.Errorf("failed to insert baseline: %w", err)
			}
			return nil
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE anomaly_baselines SET
				mean_value = ?, std_value = ?, ewma_value = ?, sample_count = ?, last_updated = ?
			 WHERE agent_id = ? AND metric_name = ?`,
			baseline.MeanValue, baseline.StdValue, baseline.EWMAValue,
			baseline.SampleCount, formatTime(baseline.LastUpdated),
			agentID, metricName)
		if err != nil {
			return fmt.Errorf("failed to update baseline: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return baseline, nil
}

// GetBaseline returns the baseline for (agent, metric), or ErrBaselineNotFound
func (s *SQLite) GetBaseline(ctx context.Context, agentID, metricName string) (*core.AnomalyBaseline, error) {
	row := s.ReadDB.QueryRowContext(ctx,
		`SELECT `+baselineColumns+` FROM anomaly_baselines WHERE agent_id = ? AND metric_name = ?`,
		agentID, metricName)

	baseline, err := scanBaseline(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBaselineNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get baseline: %w", err)
	}
	return baseline, nil
}

func scanBaseline(row scanner) (*core.AnomalyBaseline, error) {
	var b core.AnomalyBaseline
	var lastUpdated, createdAt string

	err := row.Scan(&b.ID, &b.AgentID, &b.MetricName,
		&b.MeanValue, &b.StdValue, &b.EWMAValue,
		&b.SampleCount, &lastUpdated, &createdAt)
	if err != nil {
		return nil, err
	}

	b.LastUpdated = parseTime(lastUpdated)
	b.CreatedAt = parseTime(createdAt)
	return &b, nil
}
