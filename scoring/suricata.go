// Package scoring converts raw sensor events into bounded [0,100] threat
// scores and fuses per-source scores into each IP's composite record.
package scoring

import (
	"strings"

	"snsm/core"
)

// Severity base scores for IDS alerts
const (
	baseCritical = 90
	baseHigh     = 70
	baseMedium   = 50
	baseLow      = 25

	// categoryBoost is added when the alert category names a malware or
	// exploit family
	categoryBoost = 15
)

// ScoreAlert maps one IDS alert to a threat score in [25,100] from its
// severity and category. Unknown severities fall back to medium. The
// category match is a case-sensitive substring test: Suricata emits these
// category names with fixed capitalization, and loosening the match would
// change scoring outcomes.
func ScoreAlert(severity core.Severity, category string) float64 {
	var score float64
	switch severity {
	case core.SeverityCritical:
		score = baseCritical
	case core.SeverityHigh:
		score = baseHigh
	case core.SeverityLow:
		score = baseLow
	default:
		score = baseMedium
	}

	if strings.Contains(category, "Malware") || strings.Contains(category, "Exploit") {
		score += categoryBoost
	}

	return core.ClampScore(score)
}
