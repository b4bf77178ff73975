package scoring

import (
	"strings"

	"snsm/core"
)

// suspiciousConnStates are Zeek connection states for incomplete, rejected
// or reset connections
var suspiciousConnStates = map[string]bool{
	"S0":     true,
	"REJ":    true,
	"RSTO":   true,
	"RSTOS0": true,
	"SH":     true,
	"SHR":    true,
}

// riskyServices attract lateral-movement and brute-force traffic
var riskyServices = map[string]bool{
	"ssh":    true,
	"telnet": true,
	"ftp":    true,
	"smb":    true,
}

// FlowSample is the scorer's view of one Zeek conn log entry. Missing
// numeric fields default to zero and a missing service or conn_state to the
// empty string, which simply leaves the corresponding heuristics untriggered.
type FlowSample struct {
	ConnState   string  // Zeek conn_state, e.g. S0, REJ, SF
	Duration    float64 // seconds
	OrigBytes   int64
	RespBytes   int64
	Service     string // identified protocol, empty when unknown
	DNSQueryLen int    // length of the DNS query name, 0 when absent
}

// ScoreFlow maps one flow to a behavioral threat score in [0,100]. The
// heuristics are independent and cumulative: a single flow can trigger
// several at once, and the sum is capped at 100.
func ScoreFlow(f FlowSample) float64 {
	var score float64

	if suspiciousConnStates[f.ConnState] {
		score += 30
	}

	// Fast bulk transfer: sub-100ms connection pushing over 1KB out
	if f.Duration > 0 && f.Duration < 0.1 && f.OrigBytes > 1000 {
		score += 20
	}

	if f.OrigBytes+f.RespBytes > 10_000_000 {
		score += 15
	}

	if riskyServices[strings.ToLower(f.Service)] {
		score += 10
	}

	// DNS tunneling: oversized query names
	if f.Service == "dns" && f.DNSQueryLen > 50 {
		score += 40
	}

	// Port scan: connection attempt with no answer and no identified service
	if f.ConnState == "S0" && f.Service == "" {
		score += 25
	}

	return core.ClampScore(score)
}
