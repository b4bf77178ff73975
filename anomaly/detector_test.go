package anomaly

import (
	"context"
	"sync"
	"testing"
	"time"

	"snsm/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeBaselineStore keeps baselines in memory and honors the ApplySample
// callback contract.
type fakeBaselineStore struct {
	mu        sync.Mutex
	baselines map[string]*core.AnomalyBaseline
}

func newFakeBaselineStore() *fakeBaselineStore {
	return &fakeBaselineStore{baselines: make(map[string]*core.AnomalyBaseline)}
}

func (s *fakeBaselineStore) ApplySample(ctx context.Context, agentID, metricName string, fn func(b *core.AnomalyBaseline) (*core.AnomalyBaseline, error)) (*core.AnomalyBaseline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := agentID + "|" + metricName
	var current *core.AnomalyBaseline
	if b, ok := s.baselines[key]; ok {
		copied := *b
		current = &copied
	}

	updated, err := fn(current)
	if err != nil {
		return nil, err
	}
	s.baselines[key] = updated
	copied := *updated
	return &copied, nil
}

func (s *fakeBaselineStore) seed(agentID, metricName string, b *core.AnomalyBaseline) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baselines[agentID+"|"+metricName] = b
}

func newTestDetector(t *testing.T, store BaselineStore) *Detector {
	t.Helper()
	return NewDetector(store, &Config{Logger: zaptest.NewLogger(t).Sugar()})
}

func TestDetectMetric_FirstSampleSeedsBaseline(t *testing.T) {
	store := newFakeBaselineStore()
	detector := newTestDetector(t, store)

	result, err := detector.DetectMetric(context.Background(), "agent-1", "cpu_usage", 42)
	require.NoError(t, err)

	assert.False(t, result.IsAnomaly)
	assert.Equal(t, TypeNone, result.AnomalyType)
	assert.True(t, result.Details.BaselineCreated)
	assert.Equal(t, 42.0, result.Details.Mean)
	// The seed std is 1 so the next Z-score is defined
	assert.Equal(t, 1.0, result.Details.Std)
}

func TestDetectMetric_ConstantSeriesStaysQuiet(t *testing.T) {
	store := newFakeBaselineStore()
	detector := newTestDetector(t, store)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		result, err := detector.DetectMetric(ctx, "agent-1", "cpu_usage", 10)
		require.NoError(t, err)
		assert.False(t, result.IsAnomaly, "sample %d flagged", i)
	}

	b := store.baselines["agent-1|cpu_usage"]
	require.NotNil(t, b)
	assert.InDelta(t, 10.0, b.MeanValue, 1e-9)
	// The creation seed keeps the reconstructed std at 1 for a constant
	// series, so identical reports never drift into anomaly territory
	assert.InDelta(t, 1.0, b.StdValue, 1e-9)
	assert.Equal(t, int64(5), b.SampleCount)
}

func TestDetectMetric_ZScoreViolation(t *testing.T) {
	store := newFakeBaselineStore()
	detector := newTestDetector(t, store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := detector.DetectMetric(ctx, "agent-1", "conn_rate", 10)
		require.NoError(t, err)
	}

	result, err := detector.DetectMetric(ctx, "agent-1", "conn_rate", 100)
	require.NoError(t, err)

	assert.True(t, result.IsAnomaly)
	assert.Equal(t, TypeZScoreViolation, result.AnomalyType)
	assert.Equal(t, 100.0, result.AnomalyScore)
	assert.Greater(t, result.Details.ZScore, 3.0)
}

func TestDetectMetric_NegativeDeviationAlsoFires(t *testing.T) {
	store := newFakeBaselineStore()
	store.seed("agent-1", "traffic_bps", &core.AnomalyBaseline{
		AgentID:     "agent-1",
		MetricName:  "traffic_bps",
		MeanValue:   1000,
		StdValue:    10,
		EWMAValue:   1000,
		SampleCount: 5,
	})
	detector := newTestDetector(t, store)

	// A collapse far below the mean is as anomalous as a spike
	result, err := detector.DetectMetric(context.Background(), "agent-1", "traffic_bps", 0)
	require.NoError(t, err)

	assert.True(t, result.IsAnomaly)
	assert.Equal(t, TypeZScoreViolation, result.AnomalyType)
	assert.Less(t, result.Details.ZScore, -3.0)
}

func TestDetectMetric_RateSpike(t *testing.T) {
	store := newFakeBaselineStore()
	// Wide std keeps the Z-score below threshold so only the rate check fires
	store.seed("agent-1", "conn_rate", &core.AnomalyBaseline{
		AgentID:     "agent-1",
		MetricName:  "conn_rate",
		MeanValue:   100,
		StdValue:    200,
		EWMAValue:   100,
		SampleCount: 20,
	})
	detector := newTestDetector(t, store)

	result, err := detector.DetectMetric(context.Background(), "agent-1", "conn_rate", 350)
	require.NoError(t, err)

	assert.True(t, result.IsAnomaly)
	assert.Equal(t, TypeRateSpike, result.AnomalyType)
	// 350/100 * 25
	assert.InDelta(t, 87.5, result.AnomalyScore, 1e-9)
}

func TestDetectMetric_RateCheckNeedsHistory(t *testing.T) {
	store := newFakeBaselineStore()
	store.seed("agent-1", "conn_rate", &core.AnomalyBaseline{
		AgentID:     "agent-1",
		MetricName:  "conn_rate",
		MeanValue:   100,
		StdValue:    200,
		EWMAValue:   100,
		SampleCount: 5,
	})
	detector := newTestDetector(t, store)

	// Same spike, but below the minimum sample count
	result, err := detector.DetectMetric(context.Background(), "agent-1", "conn_rate", 350)
	require.NoError(t, err)
	assert.False(t, result.IsAnomaly)
}

func TestDetectMetric_BaselineLearnsFromAnomalies(t *testing.T) {
	store := newFakeBaselineStore()
	store.seed("agent-1", "cpu_usage", &core.AnomalyBaseline{
		AgentID:     "agent-1",
		MetricName:  "cpu_usage",
		MeanValue:   10,
		StdValue:    1,
		EWMAValue:   10,
		SampleCount: 3,
		LastUpdated: time.Now().UTC().Add(-time.Minute),
	})
	detector := newTestDetector(t, store)

	_, err := detector.DetectMetric(context.Background(), "agent-1", "cpu_usage", 100)
	require.NoError(t, err)

	b := store.baselines["agent-1|cpu_usage"]
	// Mean moved toward the outlier and the count advanced: anomalous
	// samples still train the baseline
	assert.Greater(t, b.MeanValue, 10.0)
	assert.Equal(t, int64(4), b.SampleCount)
	assert.InDelta(t, ComputeEWMA(100, 10, DefaultAlpha), b.EWMAValue, 1e-9)
}

func TestDetectMetric_Validation(t *testing.T) {
	detector := newTestDetector(t, newFakeBaselineStore())
	ctx := context.Background()

	_, err := detector.DetectMetric(ctx, "", "cpu_usage", 1)
	assert.Error(t, err)

	_, err = detector.DetectMetric(ctx, "agent-1", "", 1)
	assert.Error(t, err)
}

func TestDetectBatch(t *testing.T) {
	store := newFakeBaselineStore()
	store.seed("agent-1", "conn_rate", &core.AnomalyBaseline{
		AgentID:     "agent-1",
		MetricName:  "conn_rate",
		MeanValue:   100,
		StdValue:    200,
		EWMAValue:   100,
		SampleCount: 20,
	})
	detector := newTestDetector(t, store)

	batch, err := detector.DetectBatch(context.Background(), "agent-1", map[string]float64{
		"conn_rate": 350, // rate spike, score 87.5
		"cpu_usage": 42,  // first sample, seeds baseline
	})
	require.NoError(t, err)

	assert.Equal(t, "agent-1", batch.AgentID)
	assert.Len(t, batch.Results, 2)
	assert.Equal(t, 1, batch.AnomalyCount)
	assert.InDelta(t, 87.5, batch.TotalScore, 1e-9)
	assert.InDelta(t, 87.5, batch.AverageScore(), 1e-9)
	assert.Equal(t, []string{"conn_rate"}, batch.AnomalousMetrics())
}

func TestBatchResult_AverageScoreEmpty(t *testing.T) {
	batch := &BatchResult{}
	assert.Equal(t, 0.0, batch.AverageScore())
	assert.Empty(t, batch.AnomalousMetrics())
}
