package api

import (
	"errors"
	"net/http"
	"time"

	"snsm/core"
	"snsm/storage"

	"github.com/gorilla/mux"
)

// getAgents godoc
//
//	@Summary		List agents
//	@Description	Returns all registered agents, most recently seen first
//	@Tags			agents
//	@Produce		json
//	@Success		200	{object}	map[string]interface{}
//	@Router			/api/agents [get]
func (a *API) getAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := a.deps.AgentStorage.GetAgents(r.Context())
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, "Failed to get agents", err)
		return
	}
	a.respondJSON(w, map[string]interface{}{
		"success": true,
		"count":   len(agents),
		"agents":  agents,
	}, http.StatusOK)
}

// getTopThreatScores godoc
//
//	@Summary		Top threat scores
//	@Description	Returns tracked IPs at or above min_score, highest combined score first
//	@Tags			threat-scores
//	@Produce		json
//	@Param			limit		query	int		false	"Maximum number of results"	default(50)
//	@Param			min_score	query	number	false	"Minimum combined score"	default(0)
//	@Success		200	{object}	map[string]interface{}
//	@Router			/api/threat-scores [get]
func (a *API) getTopThreatScores(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	minScore := queryFloat(r, "min_score", 0)

	// the dashboard polls this constantly; serve from cache when the
	// default view is requested
	cacheable := a.deps.Cache != nil && limit == 50 && minScore == 0
	if cacheable {
		var cached []core.ThreatScore
		if ok, _ := a.deps.Cache.Get(r.Context(), core.CacheKeyTopThreats, &cached); ok {
			a.respondJSON(w, map[string]interface{}{
				"success":       true,
				"count":         len(cached),
				"threat_scores": cached,
			}, http.StatusOK)
			return
		}
	}

	scores, err := a.deps.ThreatScoreStorage.GetTopThreatScores(r.Context(), minScore, limit)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, "Failed to get threat scores", err)
		return
	}

	if cacheable {
		if err := a.deps.Cache.Set(r.Context(), core.CacheKeyTopThreats, scores, 15*time.Second); err != nil {
			a.logger.Debugw("Failed to cache top threats", "error", err)
		}
	}

	a.respondJSON(w, map[string]interface{}{
		"success":       true,
		"count":         len(scores),
		"threat_scores": scores,
	}, http.StatusOK)
}

// getThreatScore godoc
//
//	@Summary		Threat score for one IP
//	@Description	Returns the composite score plus recent alert and flow context for an IP
//	@Tags			threat-scores
//	@Produce		json
//	@Param			ip	path	string	true	"IP address"
//	@Success		200	{object}	map[string]interface{}
//	@Router			/api/threat-scores/{ip} [get]
func (a *API) getThreatScore(w http.ResponseWriter, r *http.Request) {
	ip := core.NormalizeIP(mux.Vars(r)["ip"])

	record, err := a.deps.ThreatScoreStorage.GetThreatScore(r.Context(), ip)
	if errors.Is(err, storage.ErrThreatScoreNotFound) {
		// unknown IPs are benign by absence, not an error
		a.respondJSON(w, map[string]interface{}{
			"ip_address":     ip,
			"combined_score": 0,
			"classification": "unknown",
			"message":        "No threat data for this IP",
		}, http.StatusOK)
		return
	}
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, "Failed to get threat score", err)
		return
	}

	recentAlerts, err := a.deps.AlertStorage.GetRecentAlertsForIP(r.Context(), ip, 10)
	if err != nil {
		a.logger.Warnw("Failed to fetch recent alerts", "ip", ip, "error", err)
	}
	recentFlows, err := a.deps.FlowStorage.GetRecentFlowsForIP(r.Context(), ip, 10)
	if err != nil {
		a.logger.Warnw("Failed to fetch recent flows", "ip", ip, "error", err)
	}

	a.respondJSON(w, map[string]interface{}{
		"success":       true,
		"threat_score":  record,
		"recent_alerts": recentAlerts,
		"recent_flows":  recentFlows,
	}, http.StatusOK)
}

// getAlerts godoc
//
//	@Summary		List alerts
//	@Description	Returns stored alerts, newest first
//	@Tags			alerts
//	@Produce		json
//	@Param			agent_id	query	string	false	"Filter by agent"
//	@Param			severity	query	string	false	"Filter by severity"
//	@Param			src_ip		query	string	false	"Filter by source IP"
//	@Param			hours		query	int		false	"Look-back window in hours"
//	@Param			limit		query	int		false	"Maximum number of results"	default(100)
//	@Success		200	{object}	map[string]interface{}
//	@Router			/api/alerts [get]
func (a *API) getAlerts(w http.ResponseWriter, r *http.Request) {
	filters := core.AlertFilters{
		AgentID:  r.URL.Query().Get("agent_id"),
		Severity: core.Severity(r.URL.Query().Get("severity")),
		SrcIP:    r.URL.Query().Get("src_ip"),
		Limit:    queryInt(r, "limit", 100),
	}
	if hours := queryInt(r, "hours", 0); hours > 0 {
		filters.Since = time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	}

	alerts, err := a.deps.AlertStorage.GetAlerts(r.Context(), filters)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, "Failed to get alerts", err)
		return
	}
	a.respondJSON(w, map[string]interface{}{
		"success": true,
		"count":   len(alerts),
		"alerts":  alerts,
	}, http.StatusOK)
}

// getFlows godoc
//
//	@Summary		List flows
//	@Description	Returns stored flows, newest first
//	@Tags			flows
//	@Produce		json
//	@Param			agent_id	query	string	false	"Filter by agent"
//	@Param			src_ip		query	string	false	"Filter by source IP"
//	@Param			hours		query	int		false	"Look-back window in hours"
//	@Param			limit		query	int		false	"Maximum number of results"	default(100)
//	@Success		200	{object}	map[string]interface{}
//	@Router			/api/flows [get]
func (a *API) getFlows(w http.ResponseWriter, r *http.Request) {
	filters := core.FlowFilters{
		AgentID: r.URL.Query().Get("agent_id"),
		SrcIP:   r.URL.Query().Get("src_ip"),
		Limit:   queryInt(r, "limit", 100),
	}
	if hours := queryInt(r, "hours", 0); hours > 0 {
		filters.Since = time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	}

	flows, err := a.deps.FlowStorage.GetFlows(r.Context(), filters)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, "Failed to get flows", err)
		return
	}
	a.respondJSON(w, map[string]interface{}{
		"success": true,
		"count":   len(flows),
		"flows":   flows,
	}, http.StatusOK)
}

// getStatistics godoc
//
//	@Summary		Dashboard statistics
//	@Description	Returns a traffic/alert/block summary over a look-back window
//	@Tags			statistics
//	@Produce		json
//	@Param			agent_id	query	string	false	"Scope traffic stats to one agent"
//	@Param			hours		query	int		false	"Look-back window in hours"	default(24)
//	@Success		200	{object}	map[string]interface{}
//	@Router			/api/statistics [get]
func (a *API) getStatistics(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agent_id")
	hours := queryInt(r, "hours", 24)
	if hours <= 0 {
		hours = 24
	}

	now := time.Now().UTC()
	since := now.Add(-time.Duration(hours) * time.Hour)

	var stats []core.TrafficStat
	var err error
	if agentID != "" {
		stats, err = a.deps.AgentStorage.GetTrafficStats(r.Context(), agentID, since)
	} else {
		// all agents: merge the per-agent series
		agents, agentsErr := a.deps.AgentStorage.GetAgents(r.Context())
		if agentsErr != nil {
			err = agentsErr
		} else {
			for _, agent := range agents {
				agentStats, statsErr := a.deps.AgentStorage.GetTrafficStats(r.Context(), agent.AgentID, since)
				if statsErr != nil {
					err = statsErr
					break
				}
				stats = append(stats, agentStats...)
			}
		}
	}
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, "Failed to get traffic stats", err)
		return
	}

	severityCounts, err := a.deps.AlertStorage.CountAlertsBySeverity(r.Context(), since)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, "Failed to count alerts", err)
		return
	}

	activeBlocks, err := a.deps.Blocklist.CountActive(r.Context())
	if err != nil {
		a.logger.Warnw("Failed to count active blocks", "error", err)
	}

	topThreats, err := a.deps.ThreatScoreStorage.GetTopThreatScores(r.Context(), core.SuspiciousThreshold, 10)
	if err != nil {
		a.logger.Warnw("Failed to fetch top threats", "error", err)
	}

	var totalPackets, totalBytes int64
	var cpuSum, memSum float64
	for _, s := range stats {
		totalPackets += s.PacketsPerSec
		totalBytes += s.BytesPerSec
		cpuSum += s.CPUPercent
		memSum += s.MemoryPercent
	}
	avgCPU, avgMemory := 0.0, 0.0
	if len(stats) > 0 {
		avgCPU = cpuSum / float64(len(stats))
		avgMemory = memSum / float64(len(stats))
	}

	var totalAlerts int64
	breakdown := map[string]int64{"critical": 0, "high": 0, "medium": 0, "low": 0}
	for severity, count := range severityCounts {
		breakdown[string(severity)] = count
		totalAlerts += count
	}

	a.respondJSON(w, map[string]interface{}{
		"success": true,
		"time_range": map[string]interface{}{
			"from":  since.Format(time.RFC3339),
			"to":    now.Format(time.RFC3339),
			"hours": hours,
		},
		"summary": map[string]interface{}{
			"total_packets": totalPackets,
			"total_bytes":   totalBytes,
			"avg_cpu":       avgCPU,
			"avg_memory":    avgMemory,
			"total_alerts":  totalAlerts,
			"active_blocks": activeBlocks,
		},
		"severity_breakdown": breakdown,
		"traffic_stats":      stats,
		"top_threats":        topThreats,
	}, http.StatusOK)
}

type incidentRequest struct {
	Title         string   `json:"title" validate:"required"`
	Description   string   `json:"description"`
	Severity      string   `json:"severity" validate:"omitempty,oneof=critical high medium low"`
	Status        string   `json:"status" validate:"omitempty,oneof=open investigating contained resolved"`
	SrcIP         string   `json:"src_ip" validate:"omitempty,ip"`
	DstIP         string   `json:"dst_ip" validate:"omitempty,ip"`
	ThreatScore   float64  `json:"threat_score" validate:"min=0,max=100"`
	RelatedAlerts []string `json:"related_alerts"`
	RelatedFlows  []string `json:"related_flows"`
	AssignedTo    string   `json:"assigned_to"`
}

// getIncidents godoc
//
//	@Summary		List incidents
//	@Description	Returns tracked incidents, newest first
//	@Tags			incidents
//	@Produce		json
//	@Param			status		query	string	false	"Filter by status"
//	@Param			severity	query	string	false	"Filter by severity"
//	@Param			limit		query	int		false	"Maximum number of results"	default(50)
//	@Success		200	{object}	map[string]interface{}
//	@Router			/api/incidents [get]
func (a *API) getIncidents(w http.ResponseWriter, r *http.Request) {
	filters := core.IncidentFilters{
		Status:   core.IncidentStatus(r.URL.Query().Get("status")),
		Severity: core.Severity(r.URL.Query().Get("severity")),
		Limit:    queryInt(r, "limit", 50),
	}

	incidents, err := a.deps.IncidentStorage.GetIncidents(r.Context(), filters)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, "Failed to get incidents", err)
		return
	}
	a.respondJSON(w, map[string]interface{}{
		"success":   true,
		"count":     len(incidents),
		"incidents": incidents,
	}, http.StatusOK)
}

// createIncident godoc
//
//	@Summary		Create incident
//	@Tags			incidents
//	@Accept			json
//	@Produce		json
//	@Success		201	{object}	map[string]interface{}
//	@Failure		400	{string}	string	"title is required"
//	@Router			/api/incidents [post]
func (a *API) createIncident(w http.ResponseWriter, r *http.Request) {
	var req incidentRequest
	if err := a.decodeJSONBody(w, r, &req); err != nil {
		a.respondError(w, http.StatusBadRequest, "title is required", err)
		return
	}

	now := time.Now().UTC()
	incident := &core.Incident{
		Title:         req.Title,
		Description:   req.Description,
		Severity:      core.Severity(firstNonEmpty(req.Severity, string(core.SeverityMedium))),
		Status:        core.IncidentStatus(firstNonEmpty(req.Status, string(core.IncidentStatusOpen))),
		SrcIP:         req.SrcIP,
		DstIP:         req.DstIP,
		ThreatScore:   req.ThreatScore,
		RelatedAlerts: req.RelatedAlerts,
		RelatedFlows:  req.RelatedFlows,
		AssignedTo:    req.AssignedTo,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := a.deps.IncidentStorage.CreateIncident(r.Context(), incident); err != nil {
		a.respondError(w, http.StatusInternalServerError, "Failed to create incident", err)
		return
	}

	a.respondJSON(w, map[string]interface{}{
		"success":  true,
		"incident": incident,
	}, http.StatusCreated)
}

// getIncident godoc
//
//	@Summary		Get incident
//	@Tags			incidents
//	@Produce		json
//	@Param			id	path	string	true	"Incident ID"
//	@Success		200	{object}	map[string]interface{}
//	@Failure		404	{string}	string	"Incident not found"
//	@Router			/api/incidents/{id} [get]
func (a *API) getIncident(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	incident, err := a.deps.IncidentStorage.GetIncident(r.Context(), id)
	if errors.Is(err, storage.ErrIncidentNotFound) {
		a.respondError(w, http.StatusNotFound, "Incident not found", nil)
		return
	}
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, "Failed to get incident", err)
		return
	}
	a.respondJSON(w, map[string]interface{}{
		"success":  true,
		"incident": incident,
	}, http.StatusOK)
}

// updateIncident godoc
//
//	@Summary		Update incident
//	@Description	Replaces the mutable incident fields; resolving stamps resolved_at
//	@Tags			incidents
//	@Accept			json
//	@Produce		json
//	@Param			id	path	string	true	"Incident ID"
//	@Success		200	{object}	map[string]interface{}
//	@Failure		404	{string}	string	"Incident not found"
//	@Router			/api/incidents/{id} [put]
func (a *API) updateIncident(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req incidentRequest
	if err := a.decodeJSONBody(w, r, &req); err != nil {
		a.respondError(w, http.StatusBadRequest, "title is required", err)
		return
	}

	existing, err := a.deps.IncidentStorage.GetIncident(r.Context(), id)
	if errors.Is(err, storage.ErrIncidentNotFound) {
		a.respondError(w, http.StatusNotFound, "Incident not found", nil)
		return
	}
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, "Failed to get incident", err)
		return
	}

	now := time.Now().UTC()
	updated := &core.Incident{
		ID:            id,
		Title:         req.Title,
		Description:   req.Description,
		Severity:      core.Severity(firstNonEmpty(req.Severity, string(existing.Severity))),
		Status:        core.IncidentStatus(firstNonEmpty(req.Status, string(existing.Status))),
		SrcIP:         req.SrcIP,
		DstIP:         req.DstIP,
		ThreatScore:   req.ThreatScore,
		RelatedAlerts: req.RelatedAlerts,
		RelatedFlows:  req.RelatedFlows,
		AssignedTo:    req.AssignedTo,
		CreatedAt:     existing.CreatedAt,
		UpdatedAt:     now,
		ResolvedAt:    existing.ResolvedAt,
	}
	if updated.Status == core.IncidentStatusResolved && updated.ResolvedAt == nil {
		updated.ResolvedAt = &now
	}

	if err := a.deps.IncidentStorage.UpdateIncident(r.Context(), id, updated); err != nil {
		a.respondError(w, http.StatusInternalServerError, "Failed to update incident", err)
		return
	}
	a.respondJSON(w, map[string]interface{}{
		"success":  true,
		"incident": updated,
	}, http.StatusOK)
}

// healthCheck godoc
//
//	@Summary		Health check
//	@Produce		json
//	@Success		200	{object}	map[string]string
//	@Router			/health [get]
func (a *API) healthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if a.deps.AlertStorage == nil || a.deps.ThreatScoreStorage == nil {
		status = "degraded"
	}

	a.respondJSON(w, map[string]string{
		"status": status,
		"time":   time.Now().UTC().Format(time.RFC3339),
	}, http.StatusOK)
}
