// eventgen emits synthetic sensor traffic at the backend's ingest endpoints.
// It registers a fake agent, heartbeats, and replays attack scenarios so the
// scoring pipeline can be exercised without real sensors.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const defaultAPIURL = "http://localhost:8080"

type Config struct {
	Mode         string
	Scenario     string
	ScenarioFile string
	Rate         int
	Duration     int
	APIUrl       string
	AgentID      string
	AttackerIP   string
	VictimIP     string
}

func main() {
	cfg := parseFlags()

	gen := NewEventGenerator(cfg.AgentID, cfg.AttackerIP, cfg.VictimIP)
	client := &sender{apiURL: cfg.APIUrl}

	if err := client.registerAgent(cfg.AgentID); err != nil {
		fmt.Printf("Error registering agent: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Registered agent %s\n", cfg.AgentID)

	switch cfg.Mode {
	case "stream":
		runStream(gen, client, cfg)
	case "scenario":
		runScenario(gen, client, cfg)
	default:
		fmt.Printf("Unknown mode: %s\n", cfg.Mode)
		os.Exit(1)
	}
}

func parseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.Mode, "mode", "scenario", "Generation mode: stream, scenario")
	flag.StringVar(&cfg.Scenario, "scenario", "port_scan", "Scenario name: port_scan, malware_beacon, dns_tunnel, metric_spike, mixed")
	flag.StringVar(&cfg.ScenarioFile, "scenario-file", "", "YAML file with custom scenario definitions")
	flag.IntVar(&cfg.Rate, "rate", 5, "Batches per minute (for stream mode)")
	flag.IntVar(&cfg.Duration, "duration", 60, "Duration in seconds (for stream mode)")
	flag.StringVar(&cfg.APIUrl, "api-url", defaultAPIURL, "Backend base URL")
	flag.StringVar(&cfg.AgentID, "agent-id", "eventgen-01", "Agent ID to register and emit as")
	flag.StringVar(&cfg.AttackerIP, "attacker-ip", "198.51.100.25", "Source IP for hostile traffic")
	flag.StringVar(&cfg.VictimIP, "victim-ip", "192.0.2.50", "Destination IP for hostile traffic")

	flag.Parse()
	return cfg
}

func runStream(gen *EventGenerator, client *sender, cfg *Config) {
	interval := time.Minute / time.Duration(cfg.Rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	timeout := time.After(time.Duration(cfg.Duration) * time.Second)
	batches := 0

	fmt.Printf("Streaming mixed batches every %s for %ds\n", interval, cfg.Duration)

	for {
		select {
		case <-ticker.C:
			if err := client.sendBatch(gen.RandomBatch()); err != nil {
				fmt.Printf("Error sending batch: %v\n", err)
			}
			if err := client.heartbeat(gen.Heartbeat()); err != nil {
				fmt.Printf("Error sending heartbeat: %v\n", err)
			}
			batches++
		case <-timeout:
			fmt.Printf("Stream complete. Sent %d batches.\n", batches)
			return
		}
	}
}

func runScenario(gen *EventGenerator, client *sender, cfg *Config) {
	var (
		batches []Batch
		err     error
	)

	if cfg.ScenarioFile != "" {
		batches, err = gen.LoadScenarioFile(cfg.ScenarioFile)
		if err != nil {
			fmt.Printf("Error loading scenario file: %v\n", err)
			os.Exit(1)
		}
	} else {
		switch cfg.Scenario {
		case "port_scan":
			fmt.Println("Generating port scan scenario...")
			batches = gen.PortScanScenario(30)
		case "malware_beacon":
			fmt.Println("Generating malware beacon scenario...")
			batches = gen.MalwareBeaconScenario(10)
		case "dns_tunnel":
			fmt.Println("Generating DNS tunneling scenario...")
			batches = gen.DNSTunnelScenario(15)
		case "metric_spike":
			fmt.Println("Generating metric spike scenario...")
			batches = gen.MetricSpikeScenario(40)
		case "mixed":
			fmt.Println("Generating mixed attack scenario...")
			batches = append(batches, gen.PortScanScenario(15)...)
			batches = append(batches, gen.MalwareBeaconScenario(5)...)
			batches = append(batches, gen.DNSTunnelScenario(5)...)
		default:
			fmt.Printf("Unknown scenario: %s\n", cfg.Scenario)
			fmt.Println("Available scenarios: port_scan, malware_beacon, dns_tunnel, metric_spike, mixed")
			os.Exit(1)
		}
	}

	fmt.Printf("Sending %d batches...\n", len(batches))
	for i, batch := range batches {
		if err := client.sendBatch(batch); err != nil {
			fmt.Printf("Error sending batch %d: %v\n", i, err)
		}
		if batch.Delay > 0 && i < len(batches)-1 {
			time.Sleep(batch.Delay)
		}
	}
	fmt.Println("Scenario complete.")
}

// sender posts generated payloads to the backend ingest endpoints.
type sender struct {
	apiURL string
}

func (s *sender) registerAgent(agentID string) error {
	hostname, _ := os.Hostname()
	return s.post("/api/agents/register", map[string]interface{}{
		"agent_id": agentID,
		"hostname": hostname,
		"os":       "linux",
		"version":  "eventgen",
	})
}

func (s *sender) heartbeat(payload map[string]interface{}) error {
	return s.post("/api/agents/heartbeat", payload)
}

func (s *sender) sendBatch(batch Batch) error {
	return s.post(batch.Endpoint, batch.Payload)
}

func (s *sender) post(path string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	resp, err := http.Post(s.apiURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to reach backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("backend returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
