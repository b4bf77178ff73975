// Package cmd provides command-line interface commands for the SNSM backend.
package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"snsm/core"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// CLI output formatters
var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

// Global flags for firewall commands
var (
	apiBaseURL string
	outputJSON bool
	noColor    bool
)

const (
	defaultAPIURL  = "http://127.0.0.1:8080"
	requestTimeout = 30 * time.Second
	maxResponse    = 1 << 20 // 1MB
)

// resolveAPIBase picks the backend URL: explicit flag, then environment,
// then the local default.
func resolveAPIBase(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("SNSM_API_URL"); env != "" {
		return env
	}
	return defaultAPIURL
}

// NewFirewallCmd creates the firewall management command tree. The CLI is an
// HTTP client for the running backend rather than a direct database tool, so
// blocks issued from the terminal flow through the same cache invalidation
// and webhook notifications as automatic ones.
func NewFirewallCmd() *cobra.Command {
	firewallCmd := &cobra.Command{
		Use:   "firewall",
		Short: "Manage the IP blocklist",
		Long:  "Inspect and modify the active blocklist through the SNSM backend API.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
			apiBaseURL = resolveAPIBase(apiBaseURL)
		},
	}

	firewallCmd.PersistentFlags().StringVar(&apiBaseURL, "api", "", "Backend API base URL (default $SNSM_API_URL or "+defaultAPIURL+")")
	firewallCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output raw JSON")
	firewallCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	firewallCmd.AddCommand(newBlockListCmd())
	firewallCmd.AddCommand(newBlockCmd())
	firewallCmd.AddCommand(newUnblockCmd())
	firewallCmd.AddCommand(newThreatScoresCmd())

	return firewallCmd
}

func newBlockListCmd() *cobra.Command {
	var agentID string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List active blocks",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/firewall/blocks"
			if agentID != "" {
				path += "?agent_id=" + agentID
			}

			var resp struct {
				Count     int64                 `json:"count"`
				Blocklist []core.BlocklistEntry `json:"blocklist"`
			}
			if err := apiGet(path, &resp); err != nil {
				return err
			}

			if outputJSON {
				return printJSON(resp)
			}
			renderBlocklistTable(resp.Blocklist)
			return nil
		},
	}

	cmd.Flags().StringVar(&agentID, "agent", "", "Only show blocks scoped to this agent")
	return cmd
}

func newBlockCmd() *cobra.Command {
	var (
		reason     string
		ttlSeconds int64
		agentID    string
	)

	cmd := &cobra.Command{
		Use:   "block <ip>",
		Short: "Block an IP address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ip := args[0]
			if !core.IsValidIP(ip) {
				return fmt.Errorf("invalid IP address: %s", ip)
			}

			s := startSpinner(fmt.Sprintf("Blocking %s...", ip))
			var resp struct {
				Success         bool                 `json:"success"`
				ExpiresAt       string               `json:"expires_at"`
				BlocklistEntry  *core.BlocklistEntry `json:"blocklist_entry"`
				NftablesCommand string               `json:"nftables_command"`
			}
			err := apiPost("/api/firewall/block", map[string]interface{}{
				"action":      "block",
				"ip":          ip,
				"reason":      reason,
				"ttl_seconds": ttlSeconds,
				"agent_id":    agentID,
				"source":      string(core.BlockSourceManual),
			}, &resp)
			stopSpinner(s)
			if err != nil {
				return err
			}

			if outputJSON {
				return printJSON(resp)
			}
			successColor.Printf("Blocked %s\n", ip)
			if resp.ExpiresAt != "" {
				infoColor.Printf("  expires: %s\n", resp.ExpiresAt)
			}
			if resp.NftablesCommand != "" {
				fmt.Printf("  apply on agent: %s\n", resp.NftablesCommand)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "Blocked via CLI", "Reason recorded with the block")
	cmd.Flags().Int64Var(&ttlSeconds, "ttl", 0, "Block lifetime in seconds (0 uses the server default)")
	cmd.Flags().StringVar(&agentID, "agent", "", "Scope the block to a single agent")
	return cmd
}

func newUnblockCmd() *cobra.Command {
	var agentID string

	cmd := &cobra.Command{
		Use:   "unblock <ip>",
		Short: "Unblock an IP address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ip := args[0]
			if !core.IsValidIP(ip) {
				return fmt.Errorf("invalid IP address: %s", ip)
			}

			s := startSpinner(fmt.Sprintf("Unblocking %s...", ip))
			var resp struct {
				Success         bool   `json:"success"`
				NftablesCommand string `json:"nftables_command"`
			}
			err := apiPost("/api/firewall/unblock", map[string]interface{}{
				"action":   "unblock",
				"ip":       ip,
				"agent_id": agentID,
			}, &resp)
			stopSpinner(s)
			if err != nil {
				return err
			}

			if outputJSON {
				return printJSON(resp)
			}
			successColor.Printf("Unblocked %s\n", ip)
			if resp.NftablesCommand != "" {
				fmt.Printf("  apply on agent: %s\n", resp.NftablesCommand)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&agentID, "agent", "", "Only lift blocks scoped to this agent")
	return cmd
}

func newThreatScoresCmd() *cobra.Command {
	var (
		limit    int
		minScore float64
	)

	cmd := &cobra.Command{
		Use:   "scores",
		Short: "Show top threat scores",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/api/threat-scores?limit=%d&min_score=%g", limit, minScore)

			var resp struct {
				Count        int64              `json:"count"`
				ThreatScores []core.ThreatScore `json:"threat_scores"`
			}
			if err := apiGet(path, &resp); err != nil {
				return err
			}

			if outputJSON {
				return printJSON(resp)
			}
			renderThreatScoresTable(resp.ThreatScores)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 25, "Maximum rows to fetch")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "Only show IPs at or above this combined score")
	return cmd
}

// apiGet fetches a JSON document from the backend.
func apiGet(path string, dest interface{}) error {
	client := &http.Client{Timeout: requestTimeout}
	resp, err := client.Get(apiBaseURL + path)
	if err != nil {
		return fmt.Errorf("failed to reach backend at %s: %w", apiBaseURL, err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, dest)
}

// apiPost sends a JSON payload to the backend.
func apiPost(path string, payload interface{}, dest interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	client := &http.Client{Timeout: requestTimeout}
	resp, err := client.Post(apiBaseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to reach backend at %s: %w", apiBaseURL, err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, dest)
}

func decodeResponse(resp *http.Response, dest interface{}) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("backend returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("backend returned %d", resp.StatusCode)
	}

	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func startSpinner(msg string) *spinner.Spinner {
	if outputJSON || noColor {
		return nil
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + msg
	s.Start()
	return s
}

func stopSpinner(s *spinner.Spinner) {
	if s != nil {
		s.Stop()
	}
}
