package core

import (
	"encoding/json"
	"time"
)

// Alert is a stored IDS alert. Alerts come from three pipelines: Suricata
// alerts forwarded by agents, behavioral alerts derived from suspicious Zeek
// flows, and statistical-anomaly alerts derived from metric batches. The
// raw event body is carried through opaquely for audit and is never
// inspected by scoring.
type Alert struct {
	ID            string          `json:"id"`
	AgentID       string          `json:"agent_id"`
	SrcIP         string          `json:"src_ip"`
	SrcPort       int             `json:"src_port,omitempty"`
	DstIP         string          `json:"dst_ip"`
	DstPort       int             `json:"dst_port,omitempty"`
	Protocol      string          `json:"protocol"`
	SignatureID   string          `json:"signature_id,omitempty"`
	SignatureName string          `json:"signature_name"`
	Severity      Severity        `json:"severity"`
	Category      string          `json:"category"`
	ThreatScore   float64         `json:"threat_score"`
	EventType     string          `json:"event_type"`
	RawData       json.RawMessage `json:"raw_data,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Flow is a stored network flow observation (Zeek conn log shape)
type Flow struct {
	ID          string          `json:"id"`
	AgentID     string          `json:"agent_id"`
	SrcIP       string          `json:"src_ip"`
	SrcPort     int             `json:"src_port,omitempty"`
	DstIP       string          `json:"dst_ip"`
	DstPort     int             `json:"dst_port,omitempty"`
	Protocol    string          `json:"protocol"`
	BytesSent   int64           `json:"bytes_sent"`
	BytesRecv   int64           `json:"bytes_recv"`
	PacketsSent int64           `json:"packets_sent"`
	PacketsRecv int64           `json:"packets_recv"`
	Duration    float64         `json:"duration"`
	Service     string          `json:"service,omitempty"`
	ConnState   string          `json:"conn_state,omitempty"`
	ThreatScore float64         `json:"threat_score"`
	Flags       json.RawMessage `json:"flags,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// TrafficStat is one time-series sample of an agent's throughput and load
type TrafficStat struct {
	ID            string    `json:"id"`
	AgentID       string    `json:"agent_id"`
	PacketsPerSec int64     `json:"packets_per_sec"`
	BytesPerSec   int64     `json:"bytes_per_sec"`
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	Timestamp     time.Time `json:"timestamp"`
}

// Incident groups related alerts and flows under one tracked case
type Incident struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Description   string         `json:"description,omitempty"`
	Severity      Severity       `json:"severity"`
	Status        IncidentStatus `json:"status"`
	SrcIP         string         `json:"src_ip,omitempty"`
	DstIP         string         `json:"dst_ip,omitempty"`
	ThreatScore   float64        `json:"threat_score"`
	RelatedAlerts []string       `json:"related_alerts,omitempty"`
	RelatedFlows  []string       `json:"related_flows,omitempty"`
	AssignedTo    string         `json:"assigned_to,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	ResolvedAt    *time.Time     `json:"resolved_at,omitempty"`
}

// AlertFilters narrows alert list queries
type AlertFilters struct {
	AgentID  string
	Severity Severity
	SrcIP    string
	Since    time.Time
	Limit    int
}

// FlowFilters narrows flow list queries
type FlowFilters struct {
	AgentID string
	SrcIP   string
	Since   time.Time
	Limit   int
}

// IncidentFilters narrows incident list queries
type IncidentFilters struct {
	Status   IncidentStatus
	Severity Severity
	Limit    int
}
