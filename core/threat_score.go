package core

import (
	"time"
)

// ThreatScore is the per-IP composite threat record. Each per-source field
// tracks the highest score ever attributed to that source for the IP; the
// combined score is the weighted sum of the four source fields. Records are
// created on the first contributing event and never deleted.
type ThreatScore struct {
	ID             string         `json:"id"`
	IPAddress      string         `json:"ip_address"`
	SuricataScore  float64        `json:"suricata_score"`
	ZeekScore      float64        `json:"zeek_score"`
	AnomalyScore   float64        `json:"anomaly_score"`
	MLScore        float64        `json:"ml_score"`
	CombinedScore  float64        `json:"combined_score"`
	AlertCount     int64          `json:"alert_count"`
	FlowCount      int64          `json:"flow_count"`
	Classification Classification `json:"classification"`
	LastSeen       time.Time      `json:"last_seen"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// ClampScore bounds a raw score to [0,100]
func ClampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// CombineScores computes the weighted combined score from the four
// per-source scores.
func CombineScores(suricata, zeek, anomaly, ml float64) float64 {
	return suricata*WeightSuricata + zeek*WeightZeek + anomaly*WeightAnomaly + ml*WeightML
}

// sourceField returns a pointer to the per-source score field
func (t *ThreatScore) sourceField(source ScoreSource) *float64 {
	switch source {
	case ScoreSourceSuricata:
		return &t.SuricataScore
	case ScoreSourceZeek:
		return &t.ZeekScore
	case ScoreSourceAnomaly:
		return &t.AnomalyScore
	case ScoreSourceML:
		return &t.MLScore
	default:
		return nil
	}
}

// ApplyContribution merges one (source, score) contribution into the record.
// The per-source field keeps the maximum of its current value and the new
// score: a transient spike permanently raises that source's floor. The
// combined score, counters, classification and last_seen are all recomputed.
//
// Callers must hold whatever write lock the backing store requires; two
// concurrent ApplyContribution calls for the same IP outside a transaction
// can lose the max-merge.
func (t *ThreatScore) ApplyContribution(source ScoreSource, score float64, now time.Time) {
	score = ClampScore(score)

	if field := t.sourceField(source); field != nil && score > *field {
		*field = score
	}

	t.CombinedScore = CombineScores(t.SuricataScore, t.ZeekScore, t.AnomalyScore, t.MLScore)
	t.Classification = ClassifyScore(t.CombinedScore)

	if source.CountsFlows() {
		t.FlowCount++
	} else {
		t.AlertCount++
	}

	t.LastSeen = now
	t.UpdatedAt = now
}

// NewThreatScore creates the initial record for an IP from its first
// contributing event.
func NewThreatScore(ip string, source ScoreSource, score float64, now time.Time) *ThreatScore {
	t := &ThreatScore{
		IPAddress: ip,
		CreatedAt: now,
	}
	t.ApplyContribution(source, score, now)
	return t
}
