package core

import "time"

// Agent is a registered sensor agent. Agents re-register on startup
// (idempotent upsert keyed by agent_id) and report liveness plus host
// telemetry through periodic heartbeats.
type Agent struct {
	ID              string      `json:"id"`
	AgentID         string      `json:"agent_id"`
	Hostname        string      `json:"hostname"`
	OS              string      `json:"os"`
	Version         string      `json:"version"`
	IPAddress       string      `json:"ip_address,omitempty"`
	Status          AgentStatus `json:"status"`
	CPUPercent      float64     `json:"cpu_percent"`
	MemoryPercent   float64     `json:"memory_percent"`
	NetworkBps      int64       `json:"network_bps"`
	PacketsCaptured int64       `json:"packets_captured"`
	AlertsGenerated int64       `json:"alerts_generated"`
	LastSeen        time.Time   `json:"last_seen"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Heartbeat carries one telemetry report from an agent
type Heartbeat struct {
	AgentID         string  `json:"agent_id"`
	CPUPercent      float64 `json:"cpu"`
	MemoryPercent   float64 `json:"mem"`
	TrafficBps      int64   `json:"traffic_bps"`
	PacketsCaptured int64   `json:"packets_captured"`
	AlertsGenerated int64   `json:"alerts_generated"`
}
