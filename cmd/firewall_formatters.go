package cmd

import (
	"fmt"
	"strings"
	"time"

	"snsm/core"
)

// renderBlocklistTable displays active blocks in a formatted table
func renderBlocklistTable(entries []core.BlocklistEntry) {
	if len(entries) == 0 {
		warningColor.Println("No active blocks")
		return
	}

	headerColor.Println("ACTIVE BLOCKS")
	headerColor.Println(strings.Repeat("=", 110))
	fmt.Printf("%-40s %-12s %-7s %-12s %-15s %s\n",
		"IP", "Source", "Score", "Expires", "Agent", "Reason")
	fmt.Println(strings.Repeat("-", 110))

	for _, entry := range entries {
		expires := "never"
		if entry.ExpiresAt != nil {
			expires = formatTimeUntil(*entry.ExpiresAt)
		}

		agent := entry.AgentID
		if agent == "" {
			agent = "all"
		}

		reason := entry.Reason
		if len(reason) > 40 {
			reason = reason[:37] + "..."
		}

		fmt.Printf("%-40s %-12s %-7.1f %-12s %-15s %s\n",
			entry.IPAddress, entry.Source, entry.ThreatScore, expires, agent, reason)
	}

	fmt.Println(strings.Repeat("=", 110))
	infoColor.Printf("%d active block(s)\n", len(entries))
}

// renderThreatScoresTable displays threat scores in a formatted table
func renderThreatScoresTable(scores []core.ThreatScore) {
	if len(scores) == 0 {
		warningColor.Println("No threat scores recorded")
		return
	}

	headerColor.Println("TOP THREAT SCORES")
	headerColor.Println(strings.Repeat("=", 110))
	fmt.Printf("%-40s %-9s %-14s %-8s %-8s %-8s %-8s %s\n",
		"IP", "Combined", "Classification", "IDS", "Flow", "Anomaly", "Alerts", "Last Seen")
	fmt.Println(strings.Repeat("-", 110))

	for _, score := range scores {
		classification := formatClassification(score.Classification)
		fmt.Printf("%-40s %-9.1f %-14s %-8.1f %-8.1f %-8.1f %-8d %s\n",
			score.IPAddress, score.CombinedScore, classification,
			score.SuricataScore, score.ZeekScore, score.AnomalyScore,
			score.AlertCount, formatTimeSince(score.LastSeen))
	}

	fmt.Println(strings.Repeat("=", 110))
}

// formatClassification colors a classification label for terminal output
func formatClassification(c core.Classification) string {
	switch c {
	case core.ClassificationMalicious:
		return errorColor.Sprint(string(c))
	case core.ClassificationSuspicious:
		return warningColor.Sprint(string(c))
	default:
		return string(c)
	}
}

// formatTimeSince renders a past timestamp as a compact relative duration
func formatTimeSince(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// formatTimeUntil renders a future timestamp as a compact relative duration
func formatTimeUntil(t time.Time) string {
	d := time.Until(t)
	if d <= 0 {
		return "expired"
	}
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
