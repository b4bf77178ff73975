package core

// Severity represents the severity of an alert
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// String returns the string representation
func (s Severity) String() string {
	return string(s)
}

// IsValid checks if the severity is valid
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	default:
		return false
	}
}

// ParseSuricataSeverity maps Suricata's numeric severity (1 = most severe)
// to a Severity. Unmapped values default to medium.
func ParseSuricataSeverity(n int) Severity {
	switch n {
	case 1:
		return SeverityCritical
	case 2:
		return SeverityHigh
	case 3:
		return SeverityMedium
	case 4:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// Classification is the threat classification derived from a combined score
type Classification string

const (
	ClassificationBenign     Classification = "benign"
	ClassificationSuspicious Classification = "suspicious"
	ClassificationMalicious  Classification = "malicious"
)

// Classification thresholds on the combined score
const (
	MaliciousThreshold  = 60.0
	SuspiciousThreshold = 30.0
)

// ClassifyScore derives the classification from a combined score.
// The classification is a pure function of the score so a stored record
// can always be re-derived from its combined_score.
func ClassifyScore(combined float64) Classification {
	switch {
	case combined >= MaliciousThreshold:
		return ClassificationMalicious
	case combined >= SuspiciousThreshold:
		return ClassificationSuspicious
	default:
		return ClassificationBenign
	}
}

// String returns the string representation
func (c Classification) String() string {
	return string(c)
}

// BlockSource identifies what issued a blocklist entry
type BlockSource string

const (
	BlockSourceManual      BlockSource = "manual"
	BlockSourceAuto        BlockSource = "auto"
	BlockSourceCorrelation BlockSource = "correlation"
	BlockSourceML          BlockSource = "ml"
)

// IsValid checks if the block source is valid
func (b BlockSource) IsValid() bool {
	switch b {
	case BlockSourceManual, BlockSourceAuto, BlockSourceCorrelation, BlockSourceML:
		return true
	default:
		return false
	}
}

// ScoreSource identifies which detection pipeline produced a score contribution
type ScoreSource string

const (
	ScoreSourceSuricata ScoreSource = "suricata"
	ScoreSourceZeek     ScoreSource = "zeek"
	ScoreSourceAnomaly  ScoreSource = "anomaly"
	ScoreSourceML       ScoreSource = "ml"
)

// Fixed fusion weights for the combined threat score. They sum to 1.0.
const (
	WeightSuricata = 0.40
	WeightZeek     = 0.25
	WeightAnomaly  = 0.20
	WeightML       = 0.15
)

// Weight returns the fusion weight for this source
func (s ScoreSource) Weight() float64 {
	switch s {
	case ScoreSourceSuricata:
		return WeightSuricata
	case ScoreSourceZeek:
		return WeightZeek
	case ScoreSourceAnomaly:
		return WeightAnomaly
	case ScoreSourceML:
		return WeightML
	default:
		return 0
	}
}

// IsValid checks if the score source is valid
func (s ScoreSource) IsValid() bool {
	switch s {
	case ScoreSourceSuricata, ScoreSourceZeek, ScoreSourceAnomaly, ScoreSourceML:
		return true
	default:
		return false
	}
}

// CountsFlows reports whether contributions from this source increment the
// flow counter rather than the alert counter.
func (s ScoreSource) CountsFlows() bool {
	return s == ScoreSourceZeek
}

// AgentStatus represents the reported health of a sensor agent
type AgentStatus string

const (
	AgentStatusOnline  AgentStatus = "online"
	AgentStatusOffline AgentStatus = "offline"
	AgentStatusError   AgentStatus = "error"
)

// IncidentStatus represents the lifecycle state of an incident
type IncidentStatus string

const (
	IncidentStatusOpen          IncidentStatus = "open"
	IncidentStatusInvestigating IncidentStatus = "investigating"
	IncidentStatusContained     IncidentStatus = "contained"
	IncidentStatusResolved      IncidentStatus = "resolved"
)

// IsValid checks if the incident status is valid
func (s IncidentStatus) IsValid() bool {
	switch s {
	case IncidentStatusOpen, IncidentStatusInvestigating, IncidentStatusContained, IncidentStatusResolved:
		return true
	default:
		return false
	}
}
