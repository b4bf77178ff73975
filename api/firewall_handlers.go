package api

import (
	"net/http"
	"time"

	"snsm/blocklist"
	"snsm/core"
)

type firewallRequest struct {
	Action     string  `json:"action"`
	IP         string  `json:"ip" validate:"required"`
	Reason     string  `json:"reason"`
	TTLSeconds int     `json:"ttl_seconds" validate:"omitempty,min=1"`
	AgentID    string  `json:"agent_id"`
	Source     string  `json:"source"`
	Score      float64 `json:"threat_score"`
}

// blockIP godoc
//
//	@Summary		Block an IP
//	@Description	Upserts a block directory entry and returns the nftables command agents should apply
//	@Tags			firewall
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	map[string]interface{}
//	@Failure		400	{string}	string	"ip is required"
//	@Router			/api/firewall/block [post]
func (a *API) blockIP(w http.ResponseWriter, r *http.Request) {
	var req firewallRequest
	if err := a.decodeJSONBody(w, r, &req); err != nil {
		a.respondError(w, http.StatusBadRequest, "ip is required", err)
		return
	}

	entry, err := a.deps.Blocklist.Block(r.Context(), blocklist.BlockRequest{
		IP:          req.IP,
		Reason:      req.Reason,
		TTLSeconds:  req.TTLSeconds,
		Source:      core.BlockSource(req.Source),
		AgentID:     req.AgentID,
		ThreatScore: req.Score,
	})
	if err != nil {
		a.respondError(w, http.StatusBadRequest, "Failed to block IP", err)
		return
	}

	a.respondJSON(w, map[string]interface{}{
		"success":          true,
		"action":           "blocked",
		"ip":               entry.IPAddress,
		"expires_at":       entry.ExpiresAt,
		"blocklist_entry":  entry,
		"nftables_command": blocklist.NftablesBlockCommand(entry),
	}, http.StatusOK)
}

// unblockIP godoc
//
//	@Summary		Unblock an IP
//	@Description	Deactivates every block entry for the IP, keeping rows for audit
//	@Tags			firewall
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	map[string]interface{}
//	@Failure		400	{string}	string	"ip is required"
//	@Router			/api/firewall/unblock [post]
func (a *API) unblockIP(w http.ResponseWriter, r *http.Request) {
	var req firewallRequest
	if err := a.decodeJSONBody(w, r, &req); err != nil {
		a.respondError(w, http.StatusBadRequest, "ip is required", err)
		return
	}

	if err := a.deps.Blocklist.Unblock(r.Context(), req.IP); err != nil {
		a.respondError(w, http.StatusBadRequest, "Failed to unblock IP", err)
		return
	}

	a.respondJSON(w, map[string]interface{}{
		"success":          true,
		"action":           "unblocked",
		"ip":               core.NormalizeIP(req.IP),
		"nftables_command": blocklist.NftablesUnblockCommand(core.NormalizeIP(req.IP)),
	}, http.StatusOK)
}

// getBlocks godoc
//
//	@Summary		List active blocks
//	@Description	Returns the active, unexpired block directory
//	@Tags			firewall
//	@Produce		json
//	@Param			agent_id	query	string	false	"Scope to one agent (plus global entries)"
//	@Success		200	{object}	map[string]interface{}
//	@Router			/api/firewall/blocks [get]
func (a *API) getBlocks(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agent_id")

	entries, err := a.deps.Blocklist.ListActive(r.Context(), agentID)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, "Failed to fetch blocks", err)
		return
	}

	a.respondJSON(w, map[string]interface{}{
		"success":      true,
		"count":        len(entries),
		"blocklist":    entries,
		"generated_at": time.Now().UTC().Format(time.RFC3339),
	}, http.StatusOK)
}
