package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"snsm/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedThreatScore(t *testing.T, env *testEnv, ip string, source core.ScoreSource, score float64) {
	t.Helper()
	_, err := env.scores.ApplyContribution(context.Background(), ip, source, score, time.Now().UTC())
	require.NoError(t, err)
}

func TestGetTopThreatScores(t *testing.T) {
	env := setupTestAPI(t)
	seedThreatScore(t, env, "203.0.113.1", core.ScoreSourceSuricata, 90) // combined 36
	seedThreatScore(t, env, "203.0.113.2", core.ScoreSourceSuricata, 50) // combined 20
	seedThreatScore(t, env, "203.0.113.2", core.ScoreSourceZeek, 80)     // combined 40
	seedThreatScore(t, env, "203.0.113.3", core.ScoreSourceAnomaly, 40)  // combined 8

	w := env.doRequest(t, "GET", "/api/threat-scores", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(3), body["count"])

	scores := body["threat_scores"].([]interface{})
	require.Len(t, scores, 3)
	first := scores[0].(map[string]interface{})
	assert.Equal(t, "203.0.113.2", first["ip_address"])
	assert.InDelta(t, 40.0, first["combined_score"].(float64), 0.001)

	// min_score filters on the combined value
	w = env.doRequest(t, "GET", "/api/threat-scores?min_score=30", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.Equal(t, float64(2), body["count"])

	w = env.doRequest(t, "GET", "/api/threat-scores?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.Equal(t, float64(1), body["count"])
}

func TestGetThreatScore_KnownIP(t *testing.T) {
	env := setupTestAPI(t)
	seedThreatScore(t, env, "203.0.113.9", core.ScoreSourceSuricata, 70)

	require.NoError(t, env.alerts.InsertAlerts(context.Background(), []*core.Alert{{
		AgentID:       "sensor-01",
		SrcIP:         "203.0.113.9",
		DstIP:         "192.168.1.5",
		SignatureName: "ET SCAN Nmap",
		Severity:      core.SeverityHigh,
		Timestamp:     time.Now().UTC(),
	}}))

	w := env.doRequest(t, "GET", "/api/threat-scores/203.0.113.9", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	record := body["threat_score"].(map[string]interface{})
	assert.Equal(t, "203.0.113.9", record["ip_address"])
	assert.InDelta(t, 28.0, record["combined_score"].(float64), 0.001)

	alerts := body["recent_alerts"].([]interface{})
	assert.Len(t, alerts, 1)
}

func TestGetThreatScore_UnknownIPIsBenign(t *testing.T) {
	env := setupTestAPI(t)

	w := env.doRequest(t, "GET", "/api/threat-scores/198.51.100.200", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, float64(0), body["combined_score"])
	assert.Equal(t, "unknown", body["classification"])
}

func TestGetAlerts_Filters(t *testing.T) {
	env := setupTestAPI(t)
	now := time.Now().UTC()

	require.NoError(t, env.alerts.InsertAlerts(context.Background(), []*core.Alert{
		{AgentID: "sensor-01", SrcIP: "10.0.0.1", Severity: core.SeverityCritical, Timestamp: now},
		{AgentID: "sensor-01", SrcIP: "10.0.0.2", Severity: core.SeverityLow, Timestamp: now.Add(-time.Minute)},
		{AgentID: "sensor-02", SrcIP: "10.0.0.1", Severity: core.SeverityCritical, Timestamp: now.Add(-48 * time.Hour)},
	}))

	w := env.doRequest(t, "GET", "/api/alerts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), decodeBody(t, w)["count"])

	w = env.doRequest(t, "GET", "/api/alerts?severity=critical", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decodeBody(t, w)["count"])

	w = env.doRequest(t, "GET", "/api/alerts?agent_id=sensor-02", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decodeBody(t, w)["count"])

	// a look-back window drops the stale alert
	w = env.doRequest(t, "GET", "/api/alerts?hours=24", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decodeBody(t, w)["count"])

	w = env.doRequest(t, "GET", "/api/alerts?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(1), body["count"])
	newest := body["alerts"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "10.0.0.1", newest["src_ip"])
}

func TestGetFlows_Filters(t *testing.T) {
	env := setupTestAPI(t)
	now := time.Now().UTC()

	require.NoError(t, env.flows.InsertFlows(context.Background(), []*core.Flow{
		{AgentID: "sensor-01", SrcIP: "10.0.0.1", DstIP: "10.0.0.9", Timestamp: now},
		{AgentID: "sensor-01", SrcIP: "10.0.0.2", DstIP: "10.0.0.9", Timestamp: now.Add(-time.Minute)},
	}))

	w := env.doRequest(t, "GET", "/api/flows", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decodeBody(t, w)["count"])

	w = env.doRequest(t, "GET", "/api/flows?src_ip=10.0.0.2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decodeBody(t, w)["count"])
}

func TestGetStatistics(t *testing.T) {
	env := setupTestAPI(t)
	registerTestAgent(t, env, "sensor-01")
	now := time.Now().UTC()

	require.NoError(t, env.agents.InsertTrafficStat(context.Background(), &core.TrafficStat{
		AgentID: "sensor-01", PacketsPerSec: 100, BytesPerSec: 50000,
		CPUPercent: 40, MemoryPercent: 60, Timestamp: now,
	}))
	require.NoError(t, env.agents.InsertTrafficStat(context.Background(), &core.TrafficStat{
		AgentID: "sensor-01", PacketsPerSec: 300, BytesPerSec: 150000,
		CPUPercent: 60, MemoryPercent: 80, Timestamp: now.Add(-time.Minute),
	}))

	require.NoError(t, env.alerts.InsertAlerts(context.Background(), []*core.Alert{
		{SrcIP: "10.0.0.1", Severity: core.SeverityCritical, Timestamp: now},
		{SrcIP: "10.0.0.2", Severity: core.SeverityLow, Timestamp: now},
	}))

	_, err := env.manager.Block(context.Background(), blockRequestFor("203.0.113.50", ""))
	require.NoError(t, err)

	seedThreatScore(t, env, "203.0.113.1", core.ScoreSourceSuricata, 90)

	w := env.doRequest(t, "GET", "/api/statistics", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	summary := body["summary"].(map[string]interface{})
	assert.Equal(t, float64(400), summary["total_packets"])
	assert.Equal(t, float64(200000), summary["total_bytes"])
	assert.InDelta(t, 50.0, summary["avg_cpu"].(float64), 0.001)
	assert.InDelta(t, 70.0, summary["avg_memory"].(float64), 0.001)
	assert.Equal(t, float64(2), summary["total_alerts"])
	assert.Equal(t, float64(1), summary["active_blocks"])

	breakdown := body["severity_breakdown"].(map[string]interface{})
	assert.Equal(t, float64(1), breakdown["critical"])
	assert.Equal(t, float64(1), breakdown["low"])
	assert.Equal(t, float64(0), breakdown["high"])

	topThreats := body["top_threats"].([]interface{})
	assert.Len(t, topThreats, 1)
}

func TestIncidentLifecycle(t *testing.T) {
	env := setupTestAPI(t)

	w := env.doRequest(t, "POST", "/api/incidents", map[string]interface{}{
		"title":        "Beaconing from workstation",
		"description":  "Repeated C2 callbacks observed",
		"severity":     "high",
		"src_ip":       "192.168.1.55",
		"threat_score": 72.5,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	body := decodeBody(t, w)
	incident := body["incident"].(map[string]interface{})
	id := incident["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "open", incident["status"])

	w = env.doRequest(t, "GET", "/api/incidents/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// resolving stamps resolved_at
	w = env.doRequest(t, "PUT", "/api/incidents/"+id, map[string]interface{}{
		"title":  "Beaconing from workstation",
		"status": "resolved",
	})
	require.Equal(t, http.StatusOK, w.Code)

	stored, err := env.incidents.GetIncident(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, core.IncidentStatusResolved, stored.Status)
	require.NotNil(t, stored.ResolvedAt)

	w = env.doRequest(t, "GET", "/api/incidents?status=resolved", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decodeBody(t, w)["count"])

	w = env.doRequest(t, "GET", "/api/incidents?status=open", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decodeBody(t, w)["count"])
}

func TestCreateIncident_MissingTitle(t *testing.T) {
	env := setupTestAPI(t)
	w := env.doRequest(t, "POST", "/api/incidents", map[string]interface{}{
		"description": "no title",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateIncident_InvalidStatus(t *testing.T) {
	env := setupTestAPI(t)
	w := env.doRequest(t, "POST", "/api/incidents", map[string]interface{}{
		"title":  "bad status",
		"status": "closed",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetIncident_NotFound(t *testing.T) {
	env := setupTestAPI(t)
	w := env.doRequest(t, "GET", "/api/incidents/missing-id", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.doRequest(t, "PUT", "/api/incidents/missing-id", map[string]interface{}{
		"title": "whatever",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetAgents(t *testing.T) {
	env := setupTestAPI(t)
	registerTestAgent(t, env, "sensor-01")
	registerTestAgent(t, env, "sensor-02")

	w := env.doRequest(t, "GET", "/api/agents", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decodeBody(t, w)["count"])
}
