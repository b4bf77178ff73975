package api

import (
	"context"
	"net/http"
	"testing"

	"snsm/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerTestAgent(t *testing.T, env *testEnv, agentID string) {
	t.Helper()
	w := env.doRequest(t, "POST", "/api/agents/register", map[string]interface{}{
		"agent_id": agentID,
		"hostname": agentID + ".lan",
		"os":       "linux",
		"version":  "1.2.0",
	})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRegisterAgent(t *testing.T) {
	env := setupTestAPI(t)

	w := env.doRequest(t, "POST", "/api/agents/register", map[string]interface{}{
		"agent_id":   "sensor-01",
		"hostname":   "edge.lan",
		"ip_address": "192.168.1.10",
	})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])

	agent, err := env.agents.GetAgent(context.Background(), "sensor-01")
	require.NoError(t, err)
	assert.Equal(t, "edge.lan", agent.Hostname)
	assert.Equal(t, core.AgentStatusOnline, agent.Status)
	// omitted fields get placeholder defaults
	assert.Equal(t, "unknown", agent.OS)
	assert.Equal(t, "1.0.0", agent.Version)
}

func TestRegisterAgent_MissingHostname(t *testing.T) {
	env := setupTestAPI(t)
	w := env.doRequest(t, "POST", "/api/agents/register", map[string]interface{}{
		"agent_id": "sensor-01",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterAgent_Reregistration(t *testing.T) {
	env := setupTestAPI(t)

	registerTestAgent(t, env, "sensor-01")
	first, err := env.agents.GetAgent(context.Background(), "sensor-01")
	require.NoError(t, err)

	w := env.doRequest(t, "POST", "/api/agents/register", map[string]interface{}{
		"agent_id": "sensor-01",
		"hostname": "renamed.lan",
	})
	require.Equal(t, http.StatusOK, w.Code)

	second, err := env.agents.GetAgent(context.Background(), "sensor-01")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "renamed.lan", second.Hostname)
}

func TestAgentHeartbeat(t *testing.T) {
	env := setupTestAPI(t)
	registerTestAgent(t, env, "sensor-01")

	w := env.doRequest(t, "POST", "/api/agents/heartbeat", map[string]interface{}{
		"agent_id":         "sensor-01",
		"cpu":              42.5,
		"mem":              61.0,
		"traffic_bps":      125000,
		"packets_captured": 6000,
	})
	require.Equal(t, http.StatusOK, w.Code)

	agent, err := env.agents.GetAgent(context.Background(), "sensor-01")
	require.NoError(t, err)
	assert.Equal(t, 42.5, agent.CPUPercent)
	assert.Equal(t, int64(125000), agent.NetworkBps)

	// each heartbeat appends a time-series sample
	stats, err := env.agents.GetTrafficStats(context.Background(), "sensor-01", agent.CreatedAt.Add(-1))
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, int64(100), stats[0].PacketsPerSec)
}

func TestAgentHeartbeat_Unregistered(t *testing.T) {
	env := setupTestAPI(t)
	w := env.doRequest(t, "POST", "/api/agents/heartbeat", map[string]interface{}{
		"agent_id": "ghost",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIngestSuricata(t *testing.T) {
	env := setupTestAPI(t)

	w := env.doRequest(t, "POST", "/api/ingest/suricata", map[string]interface{}{
		"agent_id": "sensor-01",
		"alerts": []map[string]interface{}{
			{
				"src_ip":       "203.0.113.7",
				"src_port":     44231,
				"dest_ip":      "192.168.1.5",
				"dest_port":    443,
				"proto":        "TCP",
				"signature_id": 2027863,
				"signature":    "ET MALWARE Cobalt Strike Beacon Observed",
				"severity":     1,
				"category":     "Malware Command and Control",
			},
			{
				"src_ip":    "198.51.100.3",
				"dest_ip":   "192.168.1.5",
				"signature": "SURICATA STREAM excessive retransmissions",
				"severity":  4,
			},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, float64(2), body["processed"])

	alerts, err := env.alerts.GetAlerts(context.Background(), core.AlertFilters{})
	require.NoError(t, err)
	require.Len(t, alerts, 2)

	stored, err := env.alerts.GetRecentAlertsForIP(context.Background(), "203.0.113.7", 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, core.SeverityCritical, stored[0].Severity)
	assert.Equal(t, "tcp", stored[0].Protocol)
	// critical base plus the malware category boost, capped
	assert.Equal(t, 100.0, stored[0].ThreatScore)

	// the IDS verdict lands on the per-IP composite record
	record, err := env.scores.GetThreatScore(context.Background(), "203.0.113.7")
	require.NoError(t, err)
	assert.Equal(t, 100.0, record.SuricataScore)
	assert.InDelta(t, 40.0, record.CombinedScore, 0.001)
	assert.Equal(t, int64(1), record.AlertCount)
}

func TestIngestSuricata_MalformedAlertSkipped(t *testing.T) {
	env := setupTestAPI(t)

	w := env.doRequest(t, "POST", "/api/ingest/suricata", map[string]interface{}{
		"agent_id": "sensor-01",
		"alerts": []interface{}{
			"not an alert object",
			map[string]interface{}{
				"src_ip":    "203.0.113.7",
				"dest_ip":   "192.168.1.5",
				"signature": "ET SCAN Nmap",
				"severity":  2,
			},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, float64(1), body["processed"])
}

func TestIngestSuricata_MissingAlerts(t *testing.T) {
	env := setupTestAPI(t)
	w := env.doRequest(t, "POST", "/api/ingest/suricata", map[string]interface{}{
		"agent_id": "sensor-01",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestZeek(t *testing.T) {
	env := setupTestAPI(t)

	w := env.doRequest(t, "POST", "/api/ingest/zeek", map[string]interface{}{
		"agent_id": "sensor-01",
		"logs": []map[string]interface{}{
			{
				// half-open scan probe: no service, no response
				"id_orig_h":  "198.51.100.9",
				"id_orig_p":  55012,
				"id_resp_h":  "192.168.1.20",
				"id_resp_p":  22,
				"proto":      "tcp",
				"conn_state": "S0",
			},
			{
				// ordinary completed HTTP fetch
				"id_orig_h":  "192.168.1.30",
				"id_resp_h":  "93.184.216.34",
				"id_resp_p":  80,
				"proto":      "tcp",
				"conn_state": "SF",
				"service":    "http",
				"duration":   1.2,
				"orig_bytes": 400,
				"resp_bytes": 15000,
			},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, float64(2), body["processed"])
	assert.Equal(t, float64(1), body["suspicious"])

	flows, err := env.flows.GetFlows(context.Background(), core.FlowFilters{})
	require.NoError(t, err)
	require.Len(t, flows, 2)

	// the S0 flow crosses the alert threshold and derives a behavioral alert
	derived, err := env.alerts.GetRecentAlertsForIP(context.Background(), "198.51.100.9", 10)
	require.NoError(t, err)
	require.Len(t, derived, 1)
	assert.Equal(t, "zeek", derived[0].EventType)
	assert.Equal(t, "Behavioral Anomaly", derived[0].Category)
	assert.Equal(t, core.SeverityMedium, derived[0].Severity)

	record, err := env.scores.GetThreatScore(context.Background(), "198.51.100.9")
	require.NoError(t, err)
	assert.Equal(t, 55.0, record.ZeekScore)
	assert.Equal(t, int64(1), record.FlowCount)
	assert.Equal(t, int64(0), record.AlertCount)

	// the benign flow contributes nothing
	_, err = env.scores.GetThreatScore(context.Background(), "192.168.1.30")
	assert.Error(t, err)
}

func TestIngestZeek_HighScoreAutoBlocks(t *testing.T) {
	env := setupTestAPI(t)

	// push the source over the blocking threshold: IDS puts it at 40
	// combined, the flow verdict adds another 25
	w := env.doRequest(t, "POST", "/api/ingest/suricata", map[string]interface{}{
		"agent_id": "sensor-01",
		"alerts": []map[string]interface{}{{
			"src_ip":    "203.0.113.66",
			"dest_ip":   "192.168.1.5",
			"signature": "ET MALWARE Known C2",
			"severity":  1,
			"category":  "Malware Command and Control",
		}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.doRequest(t, "POST", "/api/ingest/zeek", map[string]interface{}{
		"agent_id": "sensor-01",
		"logs": []map[string]interface{}{{
			"id_orig_h":  "203.0.113.66",
			"id_resp_h":  "192.168.1.20",
			"id_resp_p":  53,
			"proto":      "udp",
			"conn_state": "REJ",
			"service":    "dns",
			"duration":   0.05,
			"orig_bytes": 6000000,
			"resp_bytes": 6000000,
			"query":      "aGV4ZW5jb2RlZGV4ZmlsdHJhdGlvbnBheWxvYWRjaHVuazAwMDE.tunnel.example.com",
		}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	record, err := env.scores.GetThreatScore(context.Background(), "203.0.113.66")
	require.NoError(t, err)
	assert.InDelta(t, 65.0, record.CombinedScore, 0.001)
	assert.Equal(t, core.ClassificationMalicious, record.Classification)

	// crossing the threshold raised a correlation block
	entries, err := env.manager.ListActive(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "203.0.113.66", entries[0].IPAddress)
	assert.Equal(t, core.BlockSourceCorrelation, entries[0].Source)
	assert.Contains(t, entries[0].Reason, "threat_score=65.0")
}

func TestIngestFlows_PreScored(t *testing.T) {
	env := setupTestAPI(t)

	w := env.doRequest(t, "POST", "/api/ingest/flows", map[string]interface{}{
		"agent_id": "sensor-01",
		"flows": []map[string]interface{}{{
			"src_ip":       "10.0.0.5",
			"dst_ip":       "10.0.0.9",
			"dst_port":     8443,
			"protocol":     "tcp",
			"orig_bytes":   1234,
			"resp_bytes":   9876,
			"threat_score": 77.5,
		}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, float64(1), body["processed"])

	flows, err := env.flows.GetFlows(context.Background(), core.FlowFilters{})
	require.NoError(t, err)
	require.Len(t, flows, 1)
	// stored verbatim, no rescoring
	assert.Equal(t, 77.5, flows[0].ThreatScore)
	// zeek field aliases are honored
	assert.Equal(t, int64(1234), flows[0].BytesSent)
	assert.Equal(t, int64(9876), flows[0].BytesRecv)
}

func TestIngestMetrics_QuietBaseline(t *testing.T) {
	env := setupTestAPI(t)

	w := env.doRequest(t, "POST", "/api/ingest/metrics", map[string]interface{}{
		"agent_id": "sensor-01",
		"metrics":  map[string]interface{}{"conn_rate": 50.0, "cpu_usage": 20.0},
	})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, float64(0), body["anomaly_count"])

	baseline, err := env.baselines.GetBaseline(context.Background(), "sensor-01", "conn_rate")
	require.NoError(t, err)
	assert.Equal(t, 50.0, baseline.MeanValue)
}

func TestIngestMetrics_SpikeRaisesAlertAndScore(t *testing.T) {
	env := setupTestAPI(t)

	// establish a baseline first
	w := env.doRequest(t, "POST", "/api/ingest/metrics", map[string]interface{}{
		"agent_id": "sensor-01",
		"metrics":  map[string]interface{}{"conn_rate": 50.0},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.doRequest(t, "POST", "/api/ingest/metrics", map[string]interface{}{
		"agent_id": "sensor-01",
		"metrics":  map[string]interface{}{"conn_rate": 5000.0, "ip": "172.16.4.9"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, float64(1), body["anomaly_count"])

	// an anomaly alert names the offending metric
	alerts, err := env.alerts.GetAlerts(context.Background(), core.AlertFilters{})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "anomaly", alerts[0].EventType)
	assert.Equal(t, "Statistical Anomaly", alerts[0].Category)
	assert.Contains(t, alerts[0].SignatureName, "conn_rate")
	assert.Equal(t, "172.16.4.9", alerts[0].SrcIP)

	// the tagged source host picks up an anomaly contribution
	record, err := env.scores.GetThreatScore(context.Background(), "172.16.4.9")
	require.NoError(t, err)
	assert.Equal(t, 100.0, record.AnomalyScore)
	assert.InDelta(t, 20.0, record.CombinedScore, 0.001)
}

func TestIngestMetrics_NoSourceIPSkipsScoring(t *testing.T) {
	env := setupTestAPI(t)

	w := env.doRequest(t, "POST", "/api/ingest/metrics", map[string]interface{}{
		"agent_id": "sensor-01",
		"metrics":  map[string]interface{}{"conn_rate": 50.0},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.doRequest(t, "POST", "/api/ingest/metrics", map[string]interface{}{
		"agent_id": "sensor-01",
		"metrics":  map[string]interface{}{"conn_rate": 5000.0},
	})
	require.Equal(t, http.StatusOK, w.Code)

	// anomaly alert still raised, but no IP record without a source tag
	alerts, err := env.alerts.GetAlerts(context.Background(), core.AlertFilters{})
	require.NoError(t, err)
	assert.Len(t, alerts, 1)

	count, err := env.scores.GetThreatScoreCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestGetAgentBlocklist(t *testing.T) {
	env := setupTestAPI(t)

	_, err := env.manager.Block(context.Background(), blockRequestFor("203.0.113.40", ""))
	require.NoError(t, err)
	_, err = env.manager.Block(context.Background(), blockRequestFor("203.0.113.41", "other-agent"))
	require.NoError(t, err)

	w := env.doRequest(t, "GET", "/api/agents/sensor-01/blocklist", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	// only the global entry applies to this agent
	assert.Equal(t, float64(1), body["count"])
	assert.NotEmpty(t, body["nftables_rules"])
	assert.NotEmpty(t, body["generated_at"])
}
