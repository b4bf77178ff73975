package core

import "time"

// AnomalyBaseline is the adaptive statistical baseline for one
// (agent, metric) pair: running mean and standard deviation via Welford's
// algorithm plus an EWMA. Created on the first sample and updated on every
// subsequent one, anomalous or not; never deleted.
//
// On creation StdValue is seeded to 1 so the next sample's Z-score is
// defined without a divide-by-zero.
type AnomalyBaseline struct {
	ID          string    `json:"id"`
	AgentID     string    `json:"agent_id"`
	MetricName  string    `json:"metric_name"`
	MeanValue   float64   `json:"mean_value"`
	StdValue    float64   `json:"std_value"`
	EWMAValue   float64   `json:"ewma_value"`
	SampleCount int64     `json:"sample_count"`
	LastUpdated time.Time `json:"last_updated"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewAnomalyBaseline seeds a baseline from the first observed sample
func NewAnomalyBaseline(agentID, metricName string, value float64, now time.Time) *AnomalyBaseline {
	return &AnomalyBaseline{
		AgentID:     agentID,
		MetricName:  metricName,
		MeanValue:   value,
		StdValue:    1,
		EWMAValue:   value,
		SampleCount: 1,
		LastUpdated: now,
		CreatedAt:   now,
	}
}
