package blocklist

import (
	"fmt"
	"time"

	"snsm/core"
)

// NftablesRule is the declarative form of one block, consumed by agents
// that manage their own nftables chains.
type NftablesRule struct {
	IP      string     `json:"ip"`
	Action  string     `json:"action"`
	Comment string     `json:"comment"`
	Expires *time.Time `json:"expires,omitempty"`
}

// NftablesBlockCommand renders the nft command an agent runs to install a
// drop rule for the entry.
func NftablesBlockCommand(entry *core.BlocklistEntry) string {
	reason := entry.Reason
	if reason == "" {
		reason = "threat_detected"
	}
	comment := fmt.Sprintf("SNSM_BLOCK_%d", entry.CreatedAt.UnixMilli())
	return fmt.Sprintf("nft add rule inet snsm input ip saddr %s drop comment %q", entry.IPAddress, comment+": "+reason)
}

// NftablesUnblockCommand renders the nft command an agent runs to remove
// the drop rule for an IP. nft deletes by handle, so the handle is resolved
// by listing the chain first.
func NftablesUnblockCommand(ip string) string {
	return fmt.Sprintf(`nft delete rule inet snsm input handle $(nft -a list chain inet snsm input | grep "%s" | awk '{print $NF}')`, ip)
}

// NftablesRules converts active entries into declarative rules for the
// agent blocklist poll response.
func NftablesRules(entries []core.BlocklistEntry) []NftablesRule {
	rules := make([]NftablesRule, 0, len(entries))
	for _, e := range entries {
		reason := e.Reason
		if reason == "" {
			reason = "threat_detected"
		}
		rules = append(rules, NftablesRule{
			IP:      e.IPAddress,
			Action:  "drop",
			Comment: "SNSM_BLOCK: " + reason,
			Expires: e.ExpiresAt,
		})
	}
	return rules
}
