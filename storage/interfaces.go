package storage

import (
	"context"
	"time"

	"snsm/core"
)

// ThreatScoreStorageInterface defines the interface for per-IP composite
// threat score storage. ApplyContribution is the only write path and must
// provide row-level atomicity for the read-modify-write: concurrent
// contributions for the same IP must never lose a max-merge.
type ThreatScoreStorageInterface interface {
	ApplyContribution(ctx context.Context, ip string, source core.ScoreSource, score float64, now time.Time) (*core.ThreatScore, error)
	GetThreatScore(ctx context.Context, ip string) (*core.ThreatScore, error)
	GetTopThreatScores(ctx context.Context, minScore float64, limit int) ([]core.ThreatScore, error)
	GetThreatScoreCount(ctx context.Context) (int64, error)
}

// BaselineStorageInterface defines the interface for anomaly baseline
// storage. ApplySample has the same per-key atomicity contract as
// ApplyContribution: fn receives nil when no baseline exists and returns
// the baseline to persist.
type BaselineStorageInterface interface {
	ApplySample(ctx context.Context, agentID, metricName string, fn func(b *core.AnomalyBaseline) (*core.AnomalyBaseline, error)) (*core.AnomalyBaseline, error)
	GetBaseline(ctx context.Context, agentID, metricName string) (*core.AnomalyBaseline, error)
}

// BlocklistStorageInterface defines the interface for the block directory
type BlocklistStorageInterface interface {
	UpsertBlock(ctx context.Context, entry *core.BlocklistEntry) (*core.BlocklistEntry, error)
	DeactivateBlocks(ctx context.Context, ip string) (int64, error)
	ListBlocks(ctx context.Context, agentID string) ([]core.BlocklistEntry, error)
	CountActiveBlocks(ctx context.Context, now time.Time) (int64, error)
}

// AlertStorageInterface defines the interface for alert storage
type AlertStorageInterface interface {
	InsertAlerts(ctx context.Context, alerts []*core.Alert) error
	GetAlerts(ctx context.Context, filters core.AlertFilters) ([]core.Alert, error)
	GetAlertCount(ctx context.Context) (int64, error)
	CountAlertsBySeverity(ctx context.Context, since time.Time) (map[core.Severity]int64, error)
	GetRecentAlertsForIP(ctx context.Context, ip string, limit int) ([]core.Alert, error)
}

// FlowStorageInterface defines the interface for flow storage
type FlowStorageInterface interface {
	InsertFlows(ctx context.Context, flows []*core.Flow) error
	GetFlows(ctx context.Context, filters core.FlowFilters) ([]core.Flow, error)
	GetFlowCount(ctx context.Context) (int64, error)
	GetRecentFlowsForIP(ctx context.Context, ip string, limit int) ([]core.Flow, error)
}

// AgentStorageInterface defines the interface for agent registration,
// heartbeat bookkeeping and traffic time series
type AgentStorageInterface interface {
	UpsertAgent(ctx context.Context, agent *core.Agent) (*core.Agent, error)
	UpdateHeartbeat(ctx context.Context, hb *core.Heartbeat, now time.Time) error
	GetAgent(ctx context.Context, agentID string) (*core.Agent, error)
	GetAgents(ctx context.Context) ([]core.Agent, error)
	MarkAgentsOffline(ctx context.Context, notSeenSince time.Time) (int64, error)
	InsertTrafficStat(ctx context.Context, stat *core.TrafficStat) error
	GetTrafficStats(ctx context.Context, agentID string, since time.Time) ([]core.TrafficStat, error)
}

// IncidentStorageInterface defines the interface for incident storage
type IncidentStorageInterface interface {
	CreateIncident(ctx context.Context, incident *core.Incident) error
	GetIncident(ctx context.Context, id string) (*core.Incident, error)
	GetIncidents(ctx context.Context, filters core.IncidentFilters) ([]core.Incident, error)
	UpdateIncident(ctx context.Context, id string, incident *core.Incident) error
}
