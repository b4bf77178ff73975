package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0.0, ClampScore(-5))
	assert.Equal(t, 0.0, ClampScore(0))
	assert.Equal(t, 42.5, ClampScore(42.5))
	assert.Equal(t, 100.0, ClampScore(100))
	assert.Equal(t, 100.0, ClampScore(250))
}

func TestCombineScores_WeightedSum(t *testing.T) {
	// All sources at 100 must combine to exactly 100
	assert.InDelta(t, 100.0, CombineScores(100, 100, 100, 100), 1e-9)

	// Single-source contributions reflect their weights
	assert.InDelta(t, 40.0, CombineScores(100, 0, 0, 0), 1e-9)
	assert.InDelta(t, 25.0, CombineScores(0, 100, 0, 0), 1e-9)
	assert.InDelta(t, 20.0, CombineScores(0, 0, 100, 0), 1e-9)
	assert.InDelta(t, 15.0, CombineScores(0, 0, 0, 100), 1e-9)
}

func TestScoreSourceWeightsSumToOne(t *testing.T) {
	sum := WeightSuricata + WeightZeek + WeightAnomaly + WeightML
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestClassifyScore(t *testing.T) {
	assert.Equal(t, ClassificationBenign, ClassifyScore(0))
	assert.Equal(t, ClassificationBenign, ClassifyScore(29.99))
	assert.Equal(t, ClassificationSuspicious, ClassifyScore(30))
	assert.Equal(t, ClassificationSuspicious, ClassifyScore(59.99))
	assert.Equal(t, ClassificationMalicious, ClassifyScore(60))
	assert.Equal(t, ClassificationMalicious, ClassifyScore(100))
}

func TestNewThreatScore(t *testing.T) {
	now := time.Now().UTC()
	ts := NewThreatScore("203.0.113.10", ScoreSourceSuricata, 90, now)

	assert.Equal(t, "203.0.113.10", ts.IPAddress)
	assert.Equal(t, 90.0, ts.SuricataScore)
	assert.InDelta(t, 36.0, ts.CombinedScore, 1e-9)
	assert.Equal(t, ClassificationSuspicious, ts.Classification)
	assert.Equal(t, int64(1), ts.AlertCount)
	assert.Equal(t, int64(0), ts.FlowCount)
	assert.Equal(t, now, ts.LastSeen)
}

func TestApplyContribution_MaxMerge(t *testing.T) {
	now := time.Now().UTC()
	ts := NewThreatScore("203.0.113.10", ScoreSourceSuricata, 90, now)

	// A lower score for the same source must not reduce the field
	ts.ApplyContribution(ScoreSourceSuricata, 50, now.Add(time.Second))
	assert.Equal(t, 90.0, ts.SuricataScore)

	// A higher score raises it
	ts.ApplyContribution(ScoreSourceSuricata, 95, now.Add(2*time.Second))
	assert.Equal(t, 95.0, ts.SuricataScore)
}

func TestApplyContribution_CombinedNeverDecreases(t *testing.T) {
	now := time.Now().UTC()
	ts := NewThreatScore("203.0.113.10", ScoreSourceZeek, 80, now)

	prev := ts.CombinedScore
	contributions := []struct {
		source ScoreSource
		score  float64
	}{
		{ScoreSourceSuricata, 70},
		{ScoreSourceZeek, 10},
		{ScoreSourceAnomaly, 60},
		{ScoreSourceSuricata, 20},
		{ScoreSourceML, 50},
	}

	for _, c := range contributions {
		ts.ApplyContribution(c.source, c.score, now)
		assert.GreaterOrEqual(t, ts.CombinedScore, prev,
			"combined score decreased after %s=%v", c.source, c.score)
		prev = ts.CombinedScore
	}
}

func TestApplyContribution_Counters(t *testing.T) {
	now := time.Now().UTC()
	ts := NewThreatScore("203.0.113.10", ScoreSourceSuricata, 50, now)

	ts.ApplyContribution(ScoreSourceZeek, 30, now)
	ts.ApplyContribution(ScoreSourceZeek, 20, now)
	ts.ApplyContribution(ScoreSourceAnomaly, 40, now)

	// Zeek contributions count as flows, everything else as alerts.
	// Counters increment even when the score does not change the max.
	assert.Equal(t, int64(2), ts.AlertCount)
	assert.Equal(t, int64(2), ts.FlowCount)
}

func TestApplyContribution_ClampsInput(t *testing.T) {
	now := time.Now().UTC()
	ts := NewThreatScore("203.0.113.10", ScoreSourceSuricata, 500, now)

	assert.Equal(t, 100.0, ts.SuricataScore)
	assert.InDelta(t, 40.0, ts.CombinedScore, 1e-9)
}

func TestScoreSourceHelpers(t *testing.T) {
	assert.True(t, ScoreSourceSuricata.IsValid())
	assert.True(t, ScoreSourceZeek.IsValid())
	assert.False(t, ScoreSource("netflow").IsValid())

	assert.True(t, ScoreSourceZeek.CountsFlows())
	assert.False(t, ScoreSourceSuricata.CountsFlows())
	assert.False(t, ScoreSourceAnomaly.CountsFlows())

	assert.Equal(t, 0.0, ScoreSource("netflow").Weight())
}
