package storage

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"snsm/core"
)

// In-memory implementations of the storage interfaces for handler and
// pipeline tests. All mutating methods are safe for concurrent use; the
// per-key atomicity contracts hold because each apply runs under the
// store mutex.

// MockThreatScoreStorage implements ThreatScoreStorageInterface
type MockThreatScoreStorage struct {
	mu     sync.Mutex
	scores map[string]*core.ThreatScore
	nextID int
}

func NewMockThreatScoreStorage() *MockThreatScoreStorage {
	return &MockThreatScoreStorage{scores: make(map[string]*core.ThreatScore)}
}

func (m *MockThreatScoreStorage) ApplyContribution(ctx context.Context, ip string, source core.ScoreSource, score float64, now time.Time) (*core.ThreatScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.scores[ip]
	if !ok {
		record := core.NewThreatScore(ip, source, score, now)
		m.nextID++
		record.ID = "ts-" + strconv.Itoa(m.nextID)
		m.scores[ip] = record
		copied := *record
		return &copied, nil
	}

	existing.ApplyContribution(source, score, now)
	copied := *existing
	return &copied, nil
}

func (m *MockThreatScoreStorage) GetThreatScore(ctx context.Context, ip string) (*core.ThreatScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.scores[ip]
	if !ok {
		return nil, ErrThreatScoreNotFound
	}
	copied := *record
	return &copied, nil
}

func (m *MockThreatScoreStorage) GetTopThreatScores(ctx context.Context, minScore float64, limit int) ([]core.ThreatScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	var records []core.ThreatScore
	for _, record := range m.scores {
		if record.CombinedScore >= minScore {
			records = append(records, *record)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CombinedScore > records[j].CombinedScore
	})
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (m *MockThreatScoreStorage) GetThreatScoreCount(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.scores)), nil
}

// MockBaselineStorage implements BaselineStorageInterface
type MockBaselineStorage struct {
	mu        sync.Mutex
	baselines map[string]*core.AnomalyBaseline
	nextID    int
}

func NewMockBaselineStorage() *MockBaselineStorage {
	return &MockBaselineStorage{baselines: make(map[string]*core.AnomalyBaseline)}
}

func baselineKey(agentID, metricName string) string {
	return agentID + "|" + metricName
}

func (m *MockBaselineStorage) ApplySample(ctx context.Context, agentID, metricName string, fn func(b *core.AnomalyBaseline) (*core.AnomalyBaseline, error)) (*core.AnomalyBaseline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := baselineKey(agentID, metricName)
	var current *core.AnomalyBaseline
	if existing, ok := m.baselines[key]; ok {
		copied := *existing
		current = &copied
	}

	updated, err := fn(current)
	if err != nil {
		return nil, err
	}
	if updated.ID == "" {
		m.nextID++
		updated.ID = "bl-" + strconv.Itoa(m.nextID)
	}
	stored := *updated
	m.baselines[key] = &stored
	return updated, nil
}

func (m *MockBaselineStorage) GetBaseline(ctx context.Context, agentID, metricName string) (*core.AnomalyBaseline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	baseline, ok := m.baselines[baselineKey(agentID, metricName)]
	if !ok {
		return nil, ErrBaselineNotFound
	}
	copied := *baseline
	return &copied, nil
}

// MockBlocklistStorage implements BlocklistStorageInterface
type MockBlocklistStorage struct {
	mu      sync.Mutex
	entries map[string]*core.BlocklistEntry
	nextID  int
}

func NewMockBlocklistStorage() *MockBlocklistStorage {
	return &MockBlocklistStorage{entries: make(map[string]*core.BlocklistEntry)}
}

func blockKey(ip, agentID string) string {
	return ip + "|" + agentID
}

func (m *MockBlocklistStorage) UpsertBlock(ctx context.Context, entry *core.BlocklistEntry) (*core.BlocklistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := blockKey(entry.IPAddress, entry.AgentID)
	if existing, ok := m.entries[key]; ok {
		updated := *entry
		updated.ID = existing.ID
		updated.CreatedAt = existing.CreatedAt
		m.entries[key] = &updated
		copied := updated
		return &copied, nil
	}

	stored := *entry
	if stored.ID == "" {
		m.nextID++
		stored.ID = "blk-" + strconv.Itoa(m.nextID)
	}
	m.entries[key] = &stored
	copied := stored
	return &copied, nil
}

func (m *MockBlocklistStorage) DeactivateBlocks(ctx context.Context, ip string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deactivated int64
	for _, entry := range m.entries {
		if entry.IPAddress == ip && entry.Active {
			entry.Active = false
			deactivated++
		}
	}
	return deactivated, nil
}

func (m *MockBlocklistStorage) ListBlocks(ctx context.Context, agentID string) ([]core.BlocklistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var entries []core.BlocklistEntry
	for _, entry := range m.entries {
		if !entry.Active {
			continue
		}
		if agentID != "" && entry.AgentID != "" && entry.AgentID != agentID {
			continue
		}
		entries = append(entries, *entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

func (m *MockBlocklistStorage) CountActiveBlocks(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for _, entry := range m.entries {
		if entry.IsActive(now) {
			count++
		}
	}
	return count, nil
}

// MockAlertStorage implements AlertStorageInterface
type MockAlertStorage struct {
	mu     sync.Mutex
	alerts []core.Alert
	nextID int
}

func NewMockAlertStorage() *MockAlertStorage {
	return &MockAlertStorage{}
}

func (m *MockAlertStorage) InsertAlerts(ctx context.Context, alerts []*core.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, alert := range alerts {
		if alert.ID == "" {
			m.nextID++
			alert.ID = "al-" + strconv.Itoa(m.nextID)
		}
		m.alerts = append(m.alerts, *alert)
	}
	return nil
}

func (m *MockAlertStorage) GetAlerts(ctx context.Context, filters core.AlertFilters) ([]core.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	limit := filters.Limit
	if limit <= 0 {
		limit = 100
	}

	var matched []core.Alert
	for _, alert := range m.alerts {
		if filters.AgentID != "" && alert.AgentID != filters.AgentID {
			continue
		}
		if filters.Severity != "" && alert.Severity != filters.Severity {
			continue
		}
		if filters.SrcIP != "" && alert.SrcIP != filters.SrcIP {
			continue
		}
		if !filters.Since.IsZero() && alert.Timestamp.Before(filters.Since) {
			continue
		}
		matched = append(matched, alert)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *MockAlertStorage) GetAlertCount(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.alerts)), nil
}

func (m *MockAlertStorage) CountAlertsBySeverity(ctx context.Context, since time.Time) (map[core.Severity]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[core.Severity]int64)
	for _, alert := range m.alerts {
		if alert.Timestamp.Before(since) {
			continue
		}
		counts[alert.Severity]++
	}
	return counts, nil
}

func (m *MockAlertStorage) GetRecentAlertsForIP(ctx context.Context, ip string, limit int) ([]core.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	var matched []core.Alert
	for _, alert := range m.alerts {
		if alert.SrcIP == ip || alert.DstIP == ip {
			matched = append(matched, alert)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// MockFlowStorage implements FlowStorageInterface
type MockFlowStorage struct {
	mu     sync.Mutex
	flows  []core.Flow
	nextID int
}

func NewMockFlowStorage() *MockFlowStorage {
	return &MockFlowStorage{}
}

func (m *MockFlowStorage) InsertFlows(ctx context.Context, flows []*core.Flow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, flow := range flows {
		if flow.ID == "" {
			m.nextID++
			flow.ID = "fl-" + strconv.Itoa(m.nextID)
		}
		m.flows = append(m.flows, *flow)
	}
	return nil
}

func (m *MockFlowStorage) GetFlows(ctx context.Context, filters core.FlowFilters) ([]core.Flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	limit := filters.Limit
	if limit <= 0 {
		limit = 100
	}

	var matched []core.Flow
	for _, flow := range m.flows {
		if filters.AgentID != "" && flow.AgentID != filters.AgentID {
			continue
		}
		if filters.SrcIP != "" && flow.SrcIP != filters.SrcIP {
			continue
		}
		if !filters.Since.IsZero() && flow.Timestamp.Before(filters.Since) {
			continue
		}
		matched = append(matched, flow)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *MockFlowStorage) GetFlowCount(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.flows)), nil
}

func (m *MockFlowStorage) GetRecentFlowsForIP(ctx context.Context, ip string, limit int) ([]core.Flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	var matched []core.Flow
	for _, flow := range m.flows {
		if flow.SrcIP == ip || flow.DstIP == ip {
			matched = append(matched, flow)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// MockAgentStorage implements AgentStorageInterface
type MockAgentStorage struct {
	mu     sync.Mutex
	agents map[string]*core.Agent
	stats  []core.TrafficStat
	nextID int
}

func NewMockAgentStorage() *MockAgentStorage {
	return &MockAgentStorage{agents: make(map[string]*core.Agent)}
}

func (m *MockAgentStorage) UpsertAgent(ctx context.Context, agent *core.Agent) (*core.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.agents[agent.AgentID]; ok {
		updated := *agent
		updated.ID = existing.ID
		updated.CreatedAt = existing.CreatedAt
		m.agents[agent.AgentID] = &updated
		copied := updated
		return &copied, nil
	}

	stored := *agent
	if stored.ID == "" {
		m.nextID++
		stored.ID = "ag-" + strconv.Itoa(m.nextID)
	}
	m.agents[agent.AgentID] = &stored
	copied := stored
	return &copied, nil
}

func (m *MockAgentStorage) UpdateHeartbeat(ctx context.Context, hb *core.Heartbeat, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	agent, ok := m.agents[hb.AgentID]
	if !ok {
		return ErrAgentNotFound
	}
	agent.Status = core.AgentStatusOnline
	agent.CPUPercent = hb.CPUPercent
	agent.MemoryPercent = hb.MemoryPercent
	agent.NetworkBps = hb.TrafficBps
	agent.PacketsCaptured = hb.PacketsCaptured
	agent.AlertsGenerated = hb.AlertsGenerated
	agent.LastSeen = now
	agent.UpdatedAt = now
	return nil
}

func (m *MockAgentStorage) GetAgent(ctx context.Context, agentID string) (*core.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	agent, ok := m.agents[agentID]
	if !ok {
		return nil, ErrAgentNotFound
	}
	copied := *agent
	return &copied, nil
}

func (m *MockAgentStorage) GetAgents(ctx context.Context) ([]core.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var agents []core.Agent
	for _, agent := range m.agents {
		agents = append(agents, *agent)
	}
	sort.Slice(agents, func(i, j int) bool {
		return agents[i].LastSeen.After(agents[j].LastSeen)
	})
	return agents, nil
}

func (m *MockAgentStorage) MarkAgentsOffline(ctx context.Context, notSeenSince time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var changed int64
	for _, agent := range m.agents {
		if agent.Status == core.AgentStatusOnline && agent.LastSeen.Before(notSeenSince) {
			agent.Status = core.AgentStatusOffline
			changed++
		}
	}
	return changed, nil
}

func (m *MockAgentStorage) InsertTrafficStat(ctx context.Context, stat *core.TrafficStat) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if stat.ID == "" {
		m.nextID++
		stat.ID = "tr-" + strconv.Itoa(m.nextID)
	}
	m.stats = append(m.stats, *stat)
	return nil
}

func (m *MockAgentStorage) GetTrafficStats(ctx context.Context, agentID string, since time.Time) ([]core.TrafficStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stats []core.TrafficStat
	for _, stat := range m.stats {
		if stat.AgentID == agentID && !stat.Timestamp.Before(since) {
			stats = append(stats, stat)
		}
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Timestamp.Before(stats[j].Timestamp)
	})
	return stats, nil
}

// MockIncidentStorage implements IncidentStorageInterface
type MockIncidentStorage struct {
	mu        sync.Mutex
	incidents map[string]*core.Incident
	nextID    int
}

func NewMockIncidentStorage() *MockIncidentStorage {
	return &MockIncidentStorage{incidents: make(map[string]*core.Incident)}
}

func (m *MockIncidentStorage) CreateIncident(ctx context.Context, incident *core.Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if incident.ID == "" {
		m.nextID++
		incident.ID = "inc-" + strconv.Itoa(m.nextID)
	}
	stored := *incident
	m.incidents[incident.ID] = &stored
	return nil
}

func (m *MockIncidentStorage) GetIncident(ctx context.Context, id string) (*core.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	incident, ok := m.incidents[id]
	if !ok {
		return nil, ErrIncidentNotFound
	}
	copied := *incident
	return &copied, nil
}

func (m *MockIncidentStorage) GetIncidents(ctx context.Context, filters core.IncidentFilters) ([]core.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	var matched []core.Incident
	for _, incident := range m.incidents {
		if filters.Status != "" && incident.Status != filters.Status {
			continue
		}
		if filters.Severity != "" && incident.Severity != filters.Severity {
			continue
		}
		matched = append(matched, *incident)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *MockIncidentStorage) UpdateIncident(ctx context.Context, id string, incident *core.Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.incidents[id]
	if !ok {
		return ErrIncidentNotFound
	}
	updated := *incident
	updated.ID = id
	updated.CreatedAt = existing.CreatedAt
	m.incidents[id] = &updated
	return nil
}
