package anomaly

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"snsm/core"
	"snsm/metrics"

	"go.uber.org/zap"
)

// Anomaly types reported in results
const (
	TypeNone            = "none"
	TypeZScoreViolation = "z_score_violation"
	TypeRateSpike       = "rate_spike"
)

// Result is the verdict for one metric sample
type Result struct {
	IsAnomaly    bool    `json:"is_anomaly"`
	AnomalyScore float64 `json:"anomaly_score"`
	AnomalyType  string  `json:"anomaly_type"`
	Details      Details `json:"details"`
}

// Details carries the baseline state the verdict was computed against
type Details struct {
	ZScore          float64 `json:"z_score"`
	EWMA            float64 `json:"ewma"`
	Mean            float64 `json:"mean"`
	Std             float64 `json:"std"`
	BaselineCreated bool    `json:"baseline_created,omitempty"`
}

// BatchResult aggregates per-metric results for one agent report
type BatchResult struct {
	AgentID      string             `json:"agent_id"`
	Results      map[string]*Result `json:"results"`
	AnomalyCount int                `json:"anomaly_count"`
	TotalScore   float64            `json:"total_score"`
}

// AverageScore returns the mean score over the metrics flagged anomalous,
// or 0 when none were.
func (b *BatchResult) AverageScore() float64 {
	if b.AnomalyCount == 0 {
		return 0
	}
	return b.TotalScore / float64(b.AnomalyCount)
}

// AnomalousMetrics returns the sorted names of flagged metrics
func (b *BatchResult) AnomalousMetrics() []string {
	var names []string
	for name, r := range b.Results {
		if r.IsAnomaly {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// BaselineStore is the storage contract the detector needs. ApplySample
// must run fn atomically with respect to other callers for the same
// (agent, metric) key: fn receives the current baseline (nil when none
// exists) and returns the baseline to persist. Row-level atomicity here is
// the correctness contract from the concurrency model — without it two
// concurrent samples for the same key silently lose a Welford update.
type BaselineStore interface {
	ApplySample(ctx context.Context, agentID, metricName string, fn func(b *core.AnomalyBaseline) (*core.AnomalyBaseline, error)) (*core.AnomalyBaseline, error)
}

// Config holds detector tuning
type Config struct {
	Alpha          float64 // EWMA smoothing factor (default 0.3)
	ZThreshold     float64 // Z-score magnitude threshold (default 3)
	RateMultiplier float64 // rate-spike mean multiplier (default 3)
	RateMinSamples int64   // minimum samples before rate check (default 10)
	Logger         *zap.SugaredLogger
}

// Detector evaluates metric samples against their adaptive baselines
type Detector struct {
	store  BaselineStore
	alpha  float64
	zMax   float64
	rateX  float64
	rateN  int64
	logger *zap.SugaredLogger
}

// NewDetector creates a detector with defaults filled in
func NewDetector(store BaselineStore, config *Config) *Detector {
	if config == nil {
		config = &Config{}
	}
	if config.Alpha == 0 {
		config.Alpha = DefaultAlpha
	}
	if config.ZThreshold == 0 {
		config.ZThreshold = DefaultZThreshold
	}
	if config.RateMultiplier == 0 {
		config.RateMultiplier = DefaultRateMultiplier
	}
	if config.RateMinSamples == 0 {
		config.RateMinSamples = DefaultRateMinSamples
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop().Sugar()
	}

	return &Detector{
		store:  store,
		alpha:  config.Alpha,
		zMax:   config.ZThreshold,
		rateX:  config.RateMultiplier,
		rateN:  config.RateMinSamples,
		logger: config.Logger,
	}
}

// evaluate scores one sample against an existing baseline and advances the
// baseline in place. The two checks are independent and can co-fire; the
// stronger score wins via max, and a rate spike takes over the reported type.
func (d *Detector) evaluate(b *core.AnomalyBaseline, value float64, now time.Time) *Result {
	result := &Result{
		AnomalyType: TypeNone,
		Details: Details{
			EWMA: b.EWMAValue,
			Mean: b.MeanValue,
			Std:  b.StdValue,
		},
	}

	z := ComputeZScore(value, b.MeanValue, b.StdValue)
	result.Details.ZScore = z

	if math.Abs(z) > d.zMax {
		result.IsAnomaly = true
		result.AnomalyType = TypeZScoreViolation
		result.AnomalyScore = math.Min(100, math.Abs(z)*20)
	}

	if b.SampleCount > d.rateN && value > b.MeanValue*d.rateX {
		result.IsAnomaly = true
		result.AnomalyType = TypeRateSpike
		result.AnomalyScore = math.Max(result.AnomalyScore, math.Min(100, value/b.MeanValue*25))
	}

	// Baseline learns from every sample, anomalous or not
	b.EWMAValue = ComputeEWMA(value, b.EWMAValue, d.alpha)
	b.MeanValue, b.StdValue = UpdateRunningStats(b.MeanValue, b.StdValue, value, b.SampleCount)
	b.SampleCount++
	b.LastUpdated = now

	return result
}

// DetectMetric evaluates one sample and persists the advanced baseline in a
// single atomic step. The first sample for a key seeds the baseline and
// returns a non-anomalous result since there is no history to compare
// against.
func (d *Detector) DetectMetric(ctx context.Context, agentID, metricName string, value float64) (*Result, error) {
	if agentID == "" {
		return nil, fmt.Errorf("agent id is required")
	}
	if metricName == "" {
		return nil, fmt.Errorf("metric name is required")
	}

	var result *Result
	now := time.Now().UTC()

	_, err := d.store.ApplySample(ctx, agentID, metricName, func(b *core.AnomalyBaseline) (*core.AnomalyBaseline, error) {
		if b == nil {
			b = core.NewAnomalyBaseline(agentID, metricName, value, now)
			result = &Result{
				AnomalyType: TypeNone,
				Details: Details{
					EWMA:            b.EWMAValue,
					Mean:            b.MeanValue,
					Std:             b.StdValue,
					BaselineCreated: true,
				},
			}
			return b, nil
		}

		result = d.evaluate(b, value, now)
		return b, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply metric sample: %w", err)
	}

	if result.IsAnomaly {
		metrics.AnomaliesDetected.WithLabelValues(result.AnomalyType).Inc()
		d.logger.Infow("Metric anomaly detected",
			"agent_id", agentID,
			"metric", metricName,
			"type", result.AnomalyType,
			"score", result.AnomalyScore,
			"z_score", result.Details.ZScore)
	}

	return result, nil
}

// DetectBatch evaluates every numeric metric in one agent report. A failed
// sample does not abort the batch; it is logged and skipped so one bad
// metric cannot suppress verdicts for the rest.
func (d *Detector) DetectBatch(ctx context.Context, agentID string, samples map[string]float64) (*BatchResult, error) {
	if agentID == "" {
		return nil, fmt.Errorf("agent id is required")
	}

	batch := &BatchResult{
		AgentID: agentID,
		Results: make(map[string]*Result, len(samples)),
	}

	// Iterate in sorted order so same-key updates within one batch are
	// applied in a fixed sequence
	names := make([]string, 0, len(samples))
	for name := range samples {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		result, err := d.DetectMetric(ctx, agentID, name, samples[name])
		if err != nil {
			d.logger.Warnw("Skipping metric sample", "agent_id", agentID, "metric", name, "error", err)
			continue
		}
		batch.Results[name] = result
		if result.IsAnomaly {
			batch.AnomalyCount++
			batch.TotalScore += result.AnomalyScore
		}
	}

	return batch, nil
}
