package scoring

import (
	"context"

	"snsm/core"

	"go.uber.org/zap"
)

// AutoBlocker upserts a correlation-sourced block for an IP. Implemented by
// the blocklist manager.
type AutoBlocker interface {
	AutoBlock(ctx context.Context, ip string, combinedScore float64) (*core.BlocklistEntry, error)
}

// Trigger inspects updated composite scores and issues auto-blocks when an
// IP crosses the blocking threshold. Blocking is a best-effort side effect:
// a failed upsert is surfaced in logs and metrics but never rolls back or
// fails the scoring update that triggered it.
type Trigger struct {
	blocker   AutoBlocker
	threshold float64
	logger    *zap.SugaredLogger
}

// NewTrigger creates a correlation trigger. A zero threshold falls back to
// the malicious classification boundary.
func NewTrigger(blocker AutoBlocker, threshold float64, logger *zap.SugaredLogger) *Trigger {
	if threshold == 0 {
		threshold = core.MaliciousThreshold
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Trigger{blocker: blocker, threshold: threshold, logger: logger}
}

// Inspect checks one updated record against the threshold. Re-inspecting an
// already-blocked IP refreshes its block TTL rather than stacking entries,
// so calling this on every score update is safe. A nil trigger means
// auto-blocking is disabled and every inspection is a no-op.
func (t *Trigger) Inspect(ctx context.Context, record *core.ThreatScore) {
	if t == nil || record == nil || record.CombinedScore < t.threshold {
		return
	}

	t.logger.Infow("High threat detected",
		"ip", record.IPAddress,
		"combined_score", record.CombinedScore,
		"classification", record.Classification)

	if _, err := t.blocker.AutoBlock(ctx, record.IPAddress, record.CombinedScore); err != nil {
		t.logger.Warnw("Auto-block failed",
			"ip", record.IPAddress,
			"combined_score", record.CombinedScore,
			"error", err)
	}
}

// InspectAll runs Inspect over a batch of updated records
func (t *Trigger) InspectAll(ctx context.Context, records map[string]*core.ThreatScore) {
	if t == nil {
		return
	}
	for _, record := range records {
		t.Inspect(ctx, record)
	}
}
