package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Batch is one ingest POST: the endpoint to hit, the payload to send, and an
// optional pause before the next batch.
type Batch struct {
	Endpoint string
	Payload  map[string]interface{}
	Delay    time.Duration
}

// EventGenerator fabricates Suricata alerts, Zeek connection logs, and metric
// samples in the shapes the ingest endpoints expect.
type EventGenerator struct {
	agentID    string
	attackerIP string
	victimIP   string
	rand       *rand.Rand
}

func NewEventGenerator(agentID, attackerIP, victimIP string) *EventGenerator {
	return &EventGenerator{
		agentID:    agentID,
		attackerIP: attackerIP,
		victimIP:   victimIP,
		rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Heartbeat builds a heartbeat payload with plausible host stats.
func (g *EventGenerator) Heartbeat() map[string]interface{} {
	return map[string]interface{}{
		"agent_id":         g.agentID,
		"cpu":              10 + g.rand.Float64()*60,
		"mem":              30 + g.rand.Float64()*40,
		"traffic_bps":      int64(g.rand.Intn(10_000_000)),
		"packets_captured": int64(g.rand.Intn(100_000)),
	}
}

// RandomBatch picks one event family at random for stream mode.
func (g *EventGenerator) RandomBatch() Batch {
	switch g.rand.Intn(3) {
	case 0:
		return g.suricataBatch([]map[string]interface{}{
			g.suricataAlert(g.randomSeverity(), "ET SCAN Suspicious inbound", "Attempted Information Leak"),
		})
	case 1:
		return g.zeekBatch([]map[string]interface{}{
			g.zeekConn("S0", "", 200, 0, 0.5),
		})
	default:
		return g.metricsBatch(map[string]interface{}{
			"ip":            g.attackerIP,
			"cpu_usage":     10 + g.rand.Float64()*30,
			"conn_rate":     float64(g.rand.Intn(200)),
			"bytes_per_sec": float64(g.rand.Intn(1_000_000)),
		})
	}
}

// PortScanScenario emits many short failed connections from one source.
func (g *EventGenerator) PortScanScenario(conns int) []Batch {
	logs := make([]map[string]interface{}, 0, conns)
	for i := 0; i < conns; i++ {
		conn := g.zeekConn("S0", "", int64(40+g.rand.Intn(80)), 0, 0.01)
		conn["id_resp_p"] = 1 + g.rand.Intn(1024)
		logs = append(logs, conn)
	}

	alerts := []map[string]interface{}{
		g.suricataAlert(2, "ET SCAN Nmap TCP scan detected", "Attempted Information Leak"),
	}

	return []Batch{
		g.zeekBatch(logs),
		g.suricataBatch(alerts),
	}
}

// MalwareBeaconScenario emits periodic C2-style alerts and connections.
func (g *EventGenerator) MalwareBeaconScenario(beacons int) []Batch {
	batches := make([]Batch, 0, beacons)
	for i := 0; i < beacons; i++ {
		batch := g.suricataBatch([]map[string]interface{}{
			g.suricataAlert(1, "ET MALWARE Cobalt Strike beacon", "Malware Command and Control"),
		})
		batch.Delay = 500 * time.Millisecond
		batches = append(batches, batch)
	}
	return batches
}

// DNSTunnelScenario emits DNS queries with oversized labels.
func (g *EventGenerator) DNSTunnelScenario(queries int) []Batch {
	logs := make([]map[string]interface{}, 0, queries)
	for i := 0; i < queries; i++ {
		conn := g.zeekConn("SF", "dns", 300, 600, 0.2)
		conn["query"] = fmt.Sprintf("%0*d.exfil.example.com", 60, g.rand.Intn(1_000_000))
		logs = append(logs, conn)
	}
	return []Batch{g.zeekBatch(logs)}
}

// MetricSpikeScenario first establishes a quiet baseline, then spikes.
func (g *EventGenerator) MetricSpikeScenario(samples int) []Batch {
	batches := make([]Batch, 0, samples+1)
	for i := 0; i < samples; i++ {
		batch := g.metricsBatch(map[string]interface{}{
			"ip":        g.attackerIP,
			"conn_rate": 50 + g.rand.Float64()*10,
		})
		batch.Delay = 100 * time.Millisecond
		batches = append(batches, batch)
	}
	batches = append(batches, g.metricsBatch(map[string]interface{}{
		"ip":        g.attackerIP,
		"conn_rate": 5000.0,
	}))
	return batches
}

// scenarioFile is the YAML shape for custom scenarios: a list of batches,
// each naming an ingest endpoint and carrying a free-form payload.
type scenarioFile struct {
	Batches []struct {
		Endpoint string                 `yaml:"endpoint"`
		Payload  map[string]interface{} `yaml:"payload"`
		DelayMS  int                    `yaml:"delay_ms"`
	} `yaml:"batches"`
}

// LoadScenarioFile reads custom batches from a YAML file. The agent_id is
// injected when the payload omits it so files stay reusable across agents.
func (g *EventGenerator) LoadScenarioFile(path string) ([]Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var file scenarioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse scenario file: %w", err)
	}

	batches := make([]Batch, 0, len(file.Batches))
	for _, b := range file.Batches {
		if b.Payload == nil {
			b.Payload = map[string]interface{}{}
		}
		if _, ok := b.Payload["agent_id"]; !ok {
			b.Payload["agent_id"] = g.agentID
		}
		batches = append(batches, Batch{
			Endpoint: b.Endpoint,
			Payload:  b.Payload,
			Delay:    time.Duration(b.DelayMS) * time.Millisecond,
		})
	}
	return batches, nil
}

func (g *EventGenerator) suricataAlert(severity int, signature, category string) map[string]interface{} {
	return map[string]interface{}{
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"src_ip":       g.attackerIP,
		"dest_ip":      g.victimIP,
		"src_port":     1024 + g.rand.Intn(60000),
		"dest_port":    443,
		"protocol":     "TCP",
		"signature":    signature,
		"signature_id": 2000000 + g.rand.Intn(100000),
		"severity":     severity,
		"category":     category,
	}
}

func (g *EventGenerator) zeekConn(connState, service string, origBytes, respBytes int64, duration float64) map[string]interface{} {
	return map[string]interface{}{
		"ts":         float64(time.Now().Unix()),
		"id_orig_h":  g.attackerIP,
		"id_orig_p":  1024 + g.rand.Intn(60000),
		"id_resp_h":  g.victimIP,
		"id_resp_p":  443,
		"proto":      "tcp",
		"service":    service,
		"conn_state": connState,
		"orig_bytes": origBytes,
		"resp_bytes": respBytes,
		"orig_pkts":  1 + g.rand.Intn(10),
		"resp_pkts":  g.rand.Intn(10),
		"duration":   duration,
	}
}

func (g *EventGenerator) suricataBatch(alerts []map[string]interface{}) Batch {
	return Batch{
		Endpoint: "/api/ingest/suricata",
		Payload: map[string]interface{}{
			"agent_id": g.agentID,
			"alerts":   alerts,
		},
	}
}

func (g *EventGenerator) zeekBatch(logs []map[string]interface{}) Batch {
	return Batch{
		Endpoint: "/api/ingest/zeek",
		Payload: map[string]interface{}{
			"agent_id": g.agentID,
			"logs":     logs,
		},
	}
}

func (g *EventGenerator) metricsBatch(metrics map[string]interface{}) Batch {
	return Batch{
		Endpoint: "/api/ingest/metrics",
		Payload: map[string]interface{}{
			"agent_id": g.agentID,
			"metrics":  metrics,
		},
	}
}

func (g *EventGenerator) randomSeverity() int {
	return 1 + g.rand.Intn(4)
}
