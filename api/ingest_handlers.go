package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"snsm/blocklist"
	"snsm/core"
	"snsm/metrics"
	"snsm/scoring"

	"github.com/gorilla/mux"
)

// zeekScoreFloor is the flow score above which the source IP's zeek
// contribution is pushed to the aggregator
const zeekScoreFloor = 20.0

// zeekAlertThreshold is the flow score at or above which a behavioral
// alert is derived from the flow
const zeekAlertThreshold = 50.0

type registerRequest struct {
	AgentID   string `json:"agent_id" validate:"required"`
	Hostname  string `json:"hostname" validate:"required"`
	OS        string `json:"os"`
	Version   string `json:"version"`
	IPAddress string `json:"ip_address" validate:"omitempty,ip"`
}

// registerAgent godoc
//
//	@Summary		Register agent
//	@Description	Registers a sensor agent, or refreshes an existing registration (idempotent)
//	@Tags			agents
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	map[string]interface{}
//	@Failure		400	{string}	string	"Invalid request"
//	@Router			/api/agents/register [post]
func (a *API) registerAgent(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := a.decodeJSONBody(w, r, &req); err != nil {
		a.respondError(w, http.StatusBadRequest, "agent_id and hostname are required", err)
		return
	}

	if req.OS == "" {
		req.OS = "unknown"
	}
	if req.Version == "" {
		req.Version = "1.0.0"
	}

	now := time.Now().UTC()
	agent, err := a.deps.AgentStorage.UpsertAgent(r.Context(), &core.Agent{
		AgentID:   req.AgentID,
		Hostname:  req.Hostname,
		OS:        req.OS,
		Version:   req.Version,
		IPAddress: req.IPAddress,
		Status:    core.AgentStatusOnline,
		LastSeen:  now,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, "Failed to register agent", err)
		return
	}

	a.logger.Infow("Agent registered", "agent_id", agent.AgentID, "hostname", agent.Hostname)
	a.respondJSON(w, map[string]interface{}{
		"success": true,
		"agent":   agent,
		"message": "Agent registered successfully",
	}, http.StatusOK)
}

type heartbeatRequest struct {
	AgentID         string  `json:"agent_id" validate:"required"`
	CPU             float64 `json:"cpu"`
	Mem             float64 `json:"mem"`
	TrafficBps      int64   `json:"traffic_bps"`
	PacketsCaptured int64   `json:"packets_captured"`
	AlertsGenerated int64   `json:"alerts_generated"`
}

// agentHeartbeat godoc
//
//	@Summary		Agent heartbeat
//	@Description	Records one liveness/telemetry report and appends a traffic time-series sample
//	@Tags			agents
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	map[string]interface{}
//	@Failure		404	{string}	string	"Agent not registered"
//	@Router			/api/agents/heartbeat [post]
func (a *API) agentHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if err := a.decodeJSONBody(w, r, &req); err != nil {
		a.respondError(w, http.StatusBadRequest, "agent_id is required", err)
		return
	}

	now := time.Now().UTC()
	hb := &core.Heartbeat{
		AgentID:         req.AgentID,
		CPUPercent:      req.CPU,
		MemoryPercent:   req.Mem,
		TrafficBps:      req.TrafficBps,
		PacketsCaptured: req.PacketsCaptured,
		AlertsGenerated: req.AlertsGenerated,
	}
	if err := a.deps.AgentStorage.UpdateHeartbeat(r.Context(), hb, now); err != nil {
		a.respondError(w, http.StatusNotFound, "Agent not registered", err)
		return
	}

	// time-series sample for the statistics API; failure is non-fatal
	stat := &core.TrafficStat{
		AgentID:       req.AgentID,
		PacketsPerSec: req.PacketsCaptured / 60,
		BytesPerSec:   req.TrafficBps,
		CPUPercent:    req.CPU,
		MemoryPercent: req.Mem,
		Timestamp:     now,
	}
	if err := a.deps.AgentStorage.InsertTrafficStat(r.Context(), stat); err != nil {
		a.logger.Warnw("Failed to insert traffic stat", "agent_id", req.AgentID, "error", err)
	}

	a.respondJSON(w, map[string]interface{}{
		"success":   true,
		"timestamp": now.Format(time.RFC3339),
	}, http.StatusOK)
}

type suricataIngestRequest struct {
	AgentID string            `json:"agent_id" validate:"required"`
	Alerts  []json.RawMessage `json:"alerts" validate:"required"`
}

// suricataAlert is one EVE alert record; alternate field names cover the
// shapes different agent versions send
type suricataAlert struct {
	SrcIP       string      `json:"src_ip"`
	Src         string      `json:"src"`
	SrcPort     int         `json:"src_port"`
	DestIP      string      `json:"dest_ip"`
	Dst         string      `json:"dst"`
	DestPort    int         `json:"dest_port"`
	Proto       string      `json:"proto"`
	SignatureID json.Number `json:"signature_id"`
	SID         json.Number `json:"sid"`
	Signature   string      `json:"signature"`
	Msg         string      `json:"msg"`
	Severity    int         `json:"severity"`
	Category    string      `json:"category"`
	Timestamp   string      `json:"timestamp"`
}

// ingestSuricata godoc
//
//	@Summary		Ingest Suricata alerts
//	@Description	Stores a batch of IDS alerts, scores them and updates per-IP threat scores
//	@Tags			ingest
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	map[string]interface{}
//	@Failure		400	{string}	string	"agent_id and alerts array required"
//	@Router			/api/ingest/suricata [post]
func (a *API) ingestSuricata(w http.ResponseWriter, r *http.Request) {
	timer := time.Now()
	defer func() {
		metrics.IngestDuration.WithLabelValues("suricata").Observe(time.Since(timer).Seconds())
	}()

	var req suricataIngestRequest
	if err := a.decodeJSONBody(w, r, &req); err != nil {
		a.respondError(w, http.StatusBadRequest, "agent_id and alerts array required", err)
		return
	}

	a.logger.Infow("Suricata alerts received", "agent_id", req.AgentID, "count", len(req.Alerts))

	now := time.Now().UTC()
	alerts := make([]*core.Alert, 0, len(req.Alerts))
	for _, raw := range req.Alerts {
		var ev suricataAlert
		if err := json.Unmarshal(raw, &ev); err != nil {
			metrics.EventsRejected.WithLabelValues("suricata").Inc()
			a.logger.Warnw("Dropping malformed suricata alert", "agent_id", req.AgentID, "error", err)
			continue
		}
		alerts = append(alerts, buildSuricataAlert(req.AgentID, &ev, raw, now))
		metrics.EventsIngested.WithLabelValues("suricata").Inc()
	}

	if err := a.deps.AlertStorage.InsertAlerts(r.Context(), alerts); err != nil {
		a.respondError(w, http.StatusInternalServerError, "Failed to store alerts", err)
		return
	}
	for _, alert := range alerts {
		metrics.AlertsGenerated.WithLabelValues(string(alert.Severity)).Inc()
	}

	// score the source IP of every alert; failures are logged inside the
	// aggregator and never fail the ingest
	contributions := make([]scoring.Contribution, 0, len(alerts))
	for _, alert := range alerts {
		contributions = append(contributions, scoring.Contribution{
			IP:     alert.SrcIP,
			Source: core.ScoreSourceSuricata,
			Score:  alert.ThreatScore,
		})
	}
	records := a.deps.Aggregator.UpdateBatch(r.Context(), contributions)
	a.deps.Trigger.InspectAll(r.Context(), records)

	a.respondJSON(w, map[string]interface{}{
		"success":   true,
		"processed": len(alerts),
	}, http.StatusOK)
}

func buildSuricataAlert(agentID string, ev *suricataAlert, raw json.RawMessage, now time.Time) *core.Alert {
	srcIP := firstNonEmpty(ev.SrcIP, ev.Src, "0.0.0.0")
	dstIP := firstNonEmpty(ev.DestIP, ev.Dst, "0.0.0.0")
	if normalized := core.NormalizeIP(srcIP); core.IsValidIP(normalized) {
		srcIP = normalized
	}
	if normalized := core.NormalizeIP(dstIP); core.IsValidIP(normalized) {
		dstIP = normalized
	}

	severity := core.ParseSuricataSeverity(ev.Severity)
	category := ev.Category
	if category == "" {
		category = "Unclassified"
	}

	timestamp := now
	if ev.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, ev.Timestamp); err == nil {
			timestamp = parsed.UTC()
		}
	}

	return &core.Alert{
		AgentID:       agentID,
		SrcIP:         srcIP,
		SrcPort:       ev.SrcPort,
		DstIP:         dstIP,
		DstPort:       ev.DestPort,
		Protocol:      strings.ToLower(firstNonEmpty(ev.Proto, "tcp")),
		SignatureID:   firstNonEmpty(ev.SignatureID.String(), ev.SID.String()),
		SignatureName: firstNonEmpty(ev.Signature, ev.Msg, "Unknown signature"),
		Severity:      severity,
		Category:      category,
		ThreatScore:   scoring.ScoreAlert(severity, category),
		EventType:     "suricata",
		RawData:       raw,
		Timestamp:     timestamp,
	}
}

type zeekIngestRequest struct {
	AgentID string            `json:"agent_id" validate:"required"`
	Logs    []json.RawMessage `json:"logs" validate:"required"`
}

// zeekLog is one conn/dns log record in Zeek's native field naming
type zeekLog struct {
	IDOrigH   string  `json:"id_orig_h"`
	Src       string  `json:"src"`
	IDOrigP   int     `json:"id_orig_p"`
	SrcPort   int     `json:"src_port"`
	IDRespH   string  `json:"id_resp_h"`
	Dst       string  `json:"dst"`
	IDRespP   int     `json:"id_resp_p"`
	DstPort   int     `json:"dst_port"`
	Proto     string  `json:"proto"`
	OrigBytes int64   `json:"orig_bytes"`
	RespBytes int64   `json:"resp_bytes"`
	OrigPkts  int64   `json:"orig_pkts"`
	RespPkts  int64   `json:"resp_pkts"`
	Duration  float64 `json:"duration"`
	Service   string  `json:"service"`
	ConnState string  `json:"conn_state"`
	Query     string  `json:"query"`
	TS        float64 `json:"ts"`
}

// ingestZeek godoc
//
//	@Summary		Ingest Zeek logs
//	@Description	Stores conn logs as flows, scores them behaviorally, derives alerts for suspicious flows and updates threat scores
//	@Tags			ingest
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	map[string]interface{}
//	@Failure		400	{string}	string	"agent_id and logs array required"
//	@Router			/api/ingest/zeek [post]
func (a *API) ingestZeek(w http.ResponseWriter, r *http.Request) {
	timer := time.Now()
	defer func() {
		metrics.IngestDuration.WithLabelValues("zeek").Observe(time.Since(timer).Seconds())
	}()

	var req zeekIngestRequest
	if err := a.decodeJSONBody(w, r, &req); err != nil {
		a.respondError(w, http.StatusBadRequest, "agent_id and logs array required", err)
		return
	}

	a.logger.Infow("Zeek logs received", "agent_id", req.AgentID, "count", len(req.Logs))

	now := time.Now().UTC()
	flows := make([]*core.Flow, 0, len(req.Logs))
	for _, raw := range req.Logs {
		var log zeekLog
		if err := json.Unmarshal(raw, &log); err != nil {
			metrics.EventsRejected.WithLabelValues("zeek").Inc()
			a.logger.Warnw("Dropping malformed zeek log", "agent_id", req.AgentID, "error", err)
			continue
		}
		flows = append(flows, buildZeekFlow(req.AgentID, &log, raw, now))
		metrics.EventsIngested.WithLabelValues("zeek").Inc()
	}

	if err := a.deps.FlowStorage.InsertFlows(r.Context(), flows); err != nil {
		a.respondError(w, http.StatusInternalServerError, "Failed to store flows", err)
		return
	}

	// behavioral alerts for suspicious flows
	var derived []*core.Alert
	for _, flow := range flows {
		if flow.ThreatScore >= zeekAlertThreshold {
			derived = append(derived, deriveZeekAlert(flow))
		}
	}
	if len(derived) > 0 {
		if err := a.deps.AlertStorage.InsertAlerts(r.Context(), derived); err != nil {
			a.logger.Warnw("Failed to store derived zeek alerts", "agent_id", req.AgentID, "error", err)
		} else {
			for _, alert := range derived {
				metrics.AlertsGenerated.WithLabelValues(string(alert.Severity)).Inc()
			}
		}
	}

	var contributions []scoring.Contribution
	for _, flow := range flows {
		if flow.ThreatScore > zeekScoreFloor {
			contributions = append(contributions, scoring.Contribution{
				IP:     flow.SrcIP,
				Source: core.ScoreSourceZeek,
				Score:  flow.ThreatScore,
			})
		}
	}
	records := a.deps.Aggregator.UpdateBatch(r.Context(), contributions)
	a.deps.Trigger.InspectAll(r.Context(), records)

	a.respondJSON(w, map[string]interface{}{
		"success":    true,
		"processed":  len(flows),
		"suspicious": len(derived),
	}, http.StatusOK)
}

func buildZeekFlow(agentID string, log *zeekLog, raw json.RawMessage, now time.Time) *core.Flow {
	srcIP := firstNonEmpty(log.IDOrigH, log.Src, "0.0.0.0")
	dstIP := firstNonEmpty(log.IDRespH, log.Dst, "0.0.0.0")
	if normalized := core.NormalizeIP(srcIP); core.IsValidIP(normalized) {
		srcIP = normalized
	}
	if normalized := core.NormalizeIP(dstIP); core.IsValidIP(normalized) {
		dstIP = normalized
	}

	timestamp := now
	if log.TS > 0 {
		timestamp = time.Unix(0, int64(log.TS*float64(time.Second))).UTC()
	}

	score := scoring.ScoreFlow(scoring.FlowSample{
		ConnState:   log.ConnState,
		Duration:    log.Duration,
		OrigBytes:   log.OrigBytes,
		RespBytes:   log.RespBytes,
		Service:     log.Service,
		DNSQueryLen: len(log.Query),
	})

	srcPort := log.IDOrigP
	if srcPort == 0 {
		srcPort = log.SrcPort
	}
	dstPort := log.IDRespP
	if dstPort == 0 {
		dstPort = log.DstPort
	}

	return &core.Flow{
		AgentID:     agentID,
		SrcIP:       srcIP,
		SrcPort:     srcPort,
		DstIP:       dstIP,
		DstPort:     dstPort,
		Protocol:    strings.ToLower(firstNonEmpty(log.Proto, "tcp")),
		BytesSent:   log.OrigBytes,
		BytesRecv:   log.RespBytes,
		PacketsSent: log.OrigPkts,
		PacketsRecv: log.RespPkts,
		Duration:    log.Duration,
		Service:     log.Service,
		ConnState:   log.ConnState,
		ThreatScore: score,
		Flags:       raw,
		Timestamp:   timestamp,
	}
}

func deriveZeekAlert(flow *core.Flow) *core.Alert {
	severity := core.SeverityMedium
	if flow.ThreatScore >= 70 {
		severity = core.SeverityHigh
	}
	connState := flow.ConnState
	if connState == "" {
		connState = "connection"
	}
	return &core.Alert{
		AgentID:       flow.AgentID,
		SrcIP:         flow.SrcIP,
		SrcPort:       flow.SrcPort,
		DstIP:         flow.DstIP,
		DstPort:       flow.DstPort,
		Protocol:      flow.Protocol,
		SignatureName: "Zeek: Suspicious " + connState + " behavior",
		Severity:      severity,
		Category:      "Behavioral Anomaly",
		ThreatScore:   flow.ThreatScore,
		EventType:     "zeek",
		RawData:       flow.Flags,
		Timestamp:     flow.Timestamp,
	}
}

type flowsIngestRequest struct {
	AgentID string    `json:"agent_id" validate:"required"`
	Flows   []rawFlow `json:"flows" validate:"required"`
}

// rawFlow is a pre-scored flow sample from agents that run their own
// enrichment; stored as-is without rescoring
type rawFlow struct {
	SrcIP       string          `json:"src_ip"`
	Src         string          `json:"src"`
	SrcPort     int             `json:"src_port"`
	DstIP       string          `json:"dst_ip"`
	Dst         string          `json:"dst"`
	DstPort     int             `json:"dst_port"`
	Protocol    string          `json:"protocol"`
	Proto       string          `json:"proto"`
	BytesSent   int64           `json:"bytes_sent"`
	OrigBytes   int64           `json:"orig_bytes"`
	BytesRecv   int64           `json:"bytes_recv"`
	RespBytes   int64           `json:"resp_bytes"`
	PacketsSent int64           `json:"packets_sent"`
	OrigPkts    int64           `json:"orig_pkts"`
	PacketsRecv int64           `json:"packets_recv"`
	RespPkts    int64           `json:"resp_pkts"`
	Duration    float64         `json:"duration"`
	Service     string          `json:"service"`
	ConnState   string          `json:"conn_state"`
	ThreatScore float64         `json:"threat_score"`
	Flags       json.RawMessage `json:"flags"`
	Timestamp   string          `json:"timestamp"`
}

// ingestFlows godoc
//
//	@Summary		Ingest raw flows
//	@Description	Stores pre-scored flow samples without rescoring
//	@Tags			ingest
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	map[string]interface{}
//	@Failure		400	{string}	string	"agent_id and flows array required"
//	@Router			/api/ingest/flows [post]
func (a *API) ingestFlows(w http.ResponseWriter, r *http.Request) {
	timer := time.Now()
	defer func() {
		metrics.IngestDuration.WithLabelValues("flows").Observe(time.Since(timer).Seconds())
	}()

	var req flowsIngestRequest
	if err := a.decodeJSONBody(w, r, &req); err != nil {
		a.respondError(w, http.StatusBadRequest, "agent_id and flows array required", err)
		return
	}

	a.logger.Infow("Flow data received", "agent_id", req.AgentID, "count", len(req.Flows))

	now := time.Now().UTC()
	flows := make([]*core.Flow, 0, len(req.Flows))
	for i := range req.Flows {
		flows = append(flows, buildRawFlow(req.AgentID, &req.Flows[i], now))
		metrics.EventsIngested.WithLabelValues("flows").Inc()
	}

	if err := a.deps.FlowStorage.InsertFlows(r.Context(), flows); err != nil {
		a.respondError(w, http.StatusInternalServerError, "Failed to store flows", err)
		return
	}

	a.respondJSON(w, map[string]interface{}{
		"success":   true,
		"processed": len(flows),
	}, http.StatusOK)
}

func buildRawFlow(agentID string, f *rawFlow, now time.Time) *core.Flow {
	srcIP := firstNonEmpty(f.SrcIP, f.Src, "0.0.0.0")
	dstIP := firstNonEmpty(f.DstIP, f.Dst, "0.0.0.0")
	if normalized := core.NormalizeIP(srcIP); core.IsValidIP(normalized) {
		srcIP = normalized
	}
	if normalized := core.NormalizeIP(dstIP); core.IsValidIP(normalized) {
		dstIP = normalized
	}

	timestamp := now
	if f.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, f.Timestamp); err == nil {
			timestamp = parsed.UTC()
		}
	}

	bytesSent := f.BytesSent
	if bytesSent == 0 {
		bytesSent = f.OrigBytes
	}
	bytesRecv := f.BytesRecv
	if bytesRecv == 0 {
		bytesRecv = f.RespBytes
	}
	packetsSent := f.PacketsSent
	if packetsSent == 0 {
		packetsSent = f.OrigPkts
	}
	packetsRecv := f.PacketsRecv
	if packetsRecv == 0 {
		packetsRecv = f.RespPkts
	}

	return &core.Flow{
		AgentID:     agentID,
		SrcIP:       srcIP,
		SrcPort:     f.SrcPort,
		DstIP:       dstIP,
		DstPort:     f.DstPort,
		Protocol:    strings.ToLower(firstNonEmpty(f.Protocol, f.Proto, "tcp")),
		BytesSent:   bytesSent,
		BytesRecv:   bytesRecv,
		PacketsSent: packetsSent,
		PacketsRecv: packetsRecv,
		Duration:    f.Duration,
		Service:     f.Service,
		ConnState:   f.ConnState,
		ThreatScore: f.ThreatScore,
		Flags:       f.Flags,
		Timestamp:   timestamp,
	}
}

type metricsIngestRequest struct {
	AgentID string                 `json:"agent_id" validate:"required"`
	Metrics map[string]interface{} `json:"metrics" validate:"required"`
}

// ingestMetrics godoc
//
//	@Summary		Ingest metric samples
//	@Description	Runs statistical anomaly detection over an agent's metric batch, deriving an alert and an anomaly score contribution when the batch is anomalous
//	@Tags			ingest
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	map[string]interface{}
//	@Failure		400	{string}	string	"agent_id and metrics required"
//	@Router			/api/ingest/metrics [post]
func (a *API) ingestMetrics(w http.ResponseWriter, r *http.Request) {
	timer := time.Now()
	defer func() {
		metrics.IngestDuration.WithLabelValues("metrics").Observe(time.Since(timer).Seconds())
	}()

	var req metricsIngestRequest
	if err := a.decodeJSONBody(w, r, &req); err != nil {
		a.respondError(w, http.StatusBadRequest, "agent_id and metrics required", err)
		return
	}

	a.logger.Infow("Metric batch received", "agent_id", req.AgentID, "count", len(req.Metrics))

	// only numeric entries are metric samples; "ip" tags the source host
	samples := make(map[string]float64)
	sourceIP := ""
	for name, value := range req.Metrics {
		switch v := value.(type) {
		case float64:
			samples[name] = v
		case string:
			if name == "ip" {
				sourceIP = v
			}
		}
	}

	batch, err := a.deps.Detector.DetectBatch(r.Context(), req.AgentID, samples)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, "Anomaly detection failed", err)
		return
	}

	avgScore := batch.AverageScore()
	if batch.AnomalyCount > 0 && avgScore >= a.config.Anomaly.AlertThreshold {
		a.raiseAnomalyAlert(r, req.AgentID, sourceIP, avgScore, batch.AnomalousMetrics())

		// the anomaly verdict also feeds the per-IP score when the batch
		// names its source host
		ip := core.NormalizeIP(sourceIP)
		if core.IsValidIP(ip) {
			record, err := a.deps.Aggregator.Update(r.Context(), ip, core.ScoreSourceAnomaly, avgScore)
			if err == nil {
				a.deps.Trigger.Inspect(r.Context(), record)
			}
		}
	}

	a.respondJSON(w, map[string]interface{}{
		"success":       true,
		"agent_id":      req.AgentID,
		"anomaly_count": batch.AnomalyCount,
		"total_score":   batch.TotalScore,
		"results":       batch.Results,
	}, http.StatusOK)
}

func (a *API) raiseAnomalyAlert(r *http.Request, agentID, sourceIP string, avgScore float64, anomalousMetrics []string) {
	severity := core.SeverityMedium
	if avgScore >= 70 {
		severity = core.SeverityHigh
	}

	srcIP := core.NormalizeIP(sourceIP)
	if !core.IsValidIP(srcIP) {
		srcIP = "0.0.0.0"
	}

	alert := &core.Alert{
		AgentID:       agentID,
		SrcIP:         srcIP,
		DstIP:         "0.0.0.0",
		Protocol:      "tcp",
		SignatureName: "Anomaly detected: " + strings.Join(anomalousMetrics, ", "),
		Severity:      severity,
		Category:      "Statistical Anomaly",
		ThreatScore:   avgScore,
		EventType:     "anomaly",
		Timestamp:     time.Now().UTC(),
	}
	if err := a.deps.AlertStorage.InsertAlerts(r.Context(), []*core.Alert{alert}); err != nil {
		a.logger.Warnw("Failed to store anomaly alert", "agent_id", agentID, "error", err)
		return
	}
	metrics.AlertsGenerated.WithLabelValues(string(severity)).Inc()
}

// getAgentBlocklist godoc
//
//	@Summary		Agent blocklist poll
//	@Description	Returns the active, unexpired block directory for one agent plus ready-to-apply nftables rules
//	@Tags			agents
//	@Produce		json
//	@Param			agent_id	path	string	true	"Agent ID"
//	@Success		200	{object}	map[string]interface{}
//	@Router			/api/agents/{agent_id}/blocklist [get]
func (a *API) getAgentBlocklist(w http.ResponseWriter, r *http.Request) {
	agentID := mux.Vars(r)["agent_id"]
	if agentID == "" {
		agentID = r.Header.Get("X-Agent-ID")
	}

	entries, err := a.deps.Blocklist.ListActive(r.Context(), agentID)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, "Failed to fetch blocklist", err)
		return
	}

	a.respondJSON(w, map[string]interface{}{
		"success":        true,
		"count":          len(entries),
		"blocklist":      entries,
		"nftables_rules": blocklist.NftablesRules(entries),
		"generated_at":   time.Now().UTC().Format(time.RFC3339),
	}, http.StatusOK)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
