package scoring

import (
	"context"
	"fmt"
	"sort"
	"time"

	"snsm/core"
	"snsm/metrics"

	"go.uber.org/zap"
)

// ThreatScoreStore is the storage contract for composite score updates.
// ApplyContribution must be atomic per IP row: it loads or creates the
// record, runs the max-merge and weighted recompute, and persists, all
// under row-level isolation. Two concurrent updates for the same IP must
// both land — a lost update here silently under-counts threat.
type ThreatScoreStore interface {
	ApplyContribution(ctx context.Context, ip string, source core.ScoreSource, score float64, now time.Time) (*core.ThreatScore, error)
}

// Contribution is one (ip, source, score) update
type Contribution struct {
	IP     string
	Source core.ScoreSource
	Score  float64
}

// Aggregator fuses per-source event scores into per-IP composite records
type Aggregator struct {
	store  ThreatScoreStore
	logger *zap.SugaredLogger
}

// NewAggregator creates a new aggregator
func NewAggregator(store ThreatScoreStore, logger *zap.SugaredLogger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Aggregator{store: store, logger: logger}
}

// Update folds one contribution into the IP's composite record and returns
// the updated record.
func (a *Aggregator) Update(ctx context.Context, ip string, source core.ScoreSource, score float64) (*core.ThreatScore, error) {
	ip = core.NormalizeIP(ip)
	if !core.IsValidIP(ip) {
		return nil, fmt.Errorf("invalid ip address %q", ip)
	}
	if !source.IsValid() {
		return nil, fmt.Errorf("invalid score source %q", source)
	}

	record, err := a.store.ApplyContribution(ctx, ip, source, core.ClampScore(score), time.Now().UTC())
	if err != nil {
		metrics.ScoreUpdateFailures.WithLabelValues(string(source)).Inc()
		return nil, fmt.Errorf("failed to apply %s contribution for %s: %w", source, ip, err)
	}

	metrics.ScoreUpdates.WithLabelValues(string(source)).Inc()
	return record, nil
}

// UpdateBatch applies many contributions from one ingestion call. Same-IP
// contributions are applied sequentially in sorted IP order, so a batch can
// never race against itself, and every event still increments its counter
// by exactly one. A failed update is logged and skipped: composite scores
// are derived state, and the events they derive from are already stored.
// Returns the final record per IP.
func (a *Aggregator) UpdateBatch(ctx context.Context, contributions []Contribution) map[string]*core.ThreatScore {
	ordered := make([]Contribution, len(contributions))
	copy(ordered, contributions)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].IP < ordered[j].IP })

	updated := make(map[string]*core.ThreatScore)
	for _, c := range ordered {
		record, err := a.Update(ctx, c.IP, c.Source, c.Score)
		if err != nil {
			a.logger.Warnw("Threat score update skipped",
				"ip", c.IP,
				"source", c.Source,
				"error", err)
			continue
		}
		updated[record.IPAddress] = record
	}
	return updated
}
