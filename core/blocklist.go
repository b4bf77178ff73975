package core

import "time"

// BlocklistEntry is one firewall block directive, keyed by
// (ip_address, agent_id) with an empty agent_id meaning "all agents".
// Re-blocking an already-blocked IP refreshes the existing row instead of
// stacking entries. Unblocking flips Active to false; rows are never
// physically deleted so the block history remains auditable.
type BlocklistEntry struct {
	ID          string      `json:"id"`
	IPAddress   string      `json:"ip_address"`
	AgentID     string      `json:"agent_id,omitempty"`
	Reason      string      `json:"reason"`
	Source      BlockSource `json:"source"`
	ThreatScore float64     `json:"threat_score"`
	Active      bool        `json:"active"`
	ExpiresAt   *time.Time  `json:"expires_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// IsActive reports whether the entry is currently blocking. Expiry is lazy:
// there is no background sweep, so every reader must apply this check. An
// entry with a past expires_at is inactive even while its Active flag is
// still true in the store.
func (e *BlocklistEntry) IsActive(now time.Time) bool {
	if !e.Active {
		return false
	}
	if e.ExpiresAt != nil && !e.ExpiresAt.After(now) {
		return false
	}
	return true
}
