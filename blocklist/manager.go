// Package blocklist owns the active-block directory: TTL-bounded block
// upserts, manual unblocks, and the lazily-expired active set that agents
// translate into firewall rules.
package blocklist

import (
	"context"
	"fmt"
	"time"

	"snsm/core"
	"snsm/metrics"

	"go.uber.org/zap"
)

// DefaultTTL bounds a block when the caller does not supply one
const DefaultTTL = time.Hour

// cacheTTL bounds staleness of the cached active set between invalidations
const cacheTTL = 30 * time.Second

// Store is the storage contract for the block directory
type Store interface {
	// UpsertBlock inserts or refreshes the entry keyed by
	// (ip_address, agent_id) and returns the stored row
	UpsertBlock(ctx context.Context, entry *core.BlocklistEntry) (*core.BlocklistEntry, error)
	// DeactivateBlocks flips active=false on every entry for the IP,
	// keeping the rows for audit; returns the number touched
	DeactivateBlocks(ctx context.Context, ip string) (int64, error)
	// ListBlocks returns entries with active=true, scoped to an agent
	// (plus global entries) when agentID is non-empty
	ListBlocks(ctx context.Context, agentID string) ([]core.BlocklistEntry, error)
	// CountActiveBlocks applies the lazy expiry check against now
	CountActiveBlocks(ctx context.Context, now time.Time) (int64, error)
}

// Notifier announces block-directory changes, e.g. to a webhook. May be nil.
type Notifier interface {
	NotifyBlock(entry *core.BlocklistEntry)
	NotifyUnblock(ip string)
}

// BlockRequest is one block upsert
type BlockRequest struct {
	IP          string
	Reason      string
	TTLSeconds  int
	Source      core.BlockSource
	AgentID     string
	ThreatScore float64
}

// Manager owns the block directory
type Manager struct {
	store    Store
	cache    *core.RedisCache
	notifier Notifier
	ttl      time.Duration
	logger   *zap.SugaredLogger
}

// NewManager creates a blocklist manager. cache and notifier may be nil.
func NewManager(store Store, cache *core.RedisCache, notifier Notifier, defaultTTL time.Duration, logger *zap.SugaredLogger) *Manager {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Manager{
		store:    store,
		cache:    cache,
		notifier: notifier,
		ttl:      defaultTTL,
		logger:   logger,
	}
}

// Block upserts a block entry. Re-blocking an already-blocked IP refreshes
// the TTL and reason on the existing (ip, agent) row instead of stacking a
// second entry.
func (m *Manager) Block(ctx context.Context, req BlockRequest) (*core.BlocklistEntry, error) {
	ip := core.NormalizeIP(req.IP)
	if !core.IsValidIP(ip) {
		return nil, fmt.Errorf("invalid ip address %q", req.IP)
	}

	source := req.Source
	if source == "" {
		source = core.BlockSourceManual
	}
	if !source.IsValid() {
		return nil, fmt.Errorf("invalid block source %q", req.Source)
	}

	reason := req.Reason
	if reason == "" {
		reason = "Manual block"
	}

	ttl := m.ttl
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}

	now := time.Now().UTC()
	expires := now.Add(ttl)
	entry := &core.BlocklistEntry{
		IPAddress:   ip,
		AgentID:     req.AgentID,
		Reason:      reason,
		Source:      source,
		ThreatScore: req.ThreatScore,
		Active:      true,
		ExpiresAt:   &expires,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	stored, err := m.store.UpsertBlock(ctx, entry)
	if err != nil {
		metrics.BlockFailures.Inc()
		return nil, fmt.Errorf("failed to upsert block for %s: %w", ip, err)
	}

	metrics.BlocksIssued.WithLabelValues(string(source)).Inc()
	m.logger.Infow("IP blocked",
		"ip", ip,
		"source", source,
		"agent_id", req.AgentID,
		"expires_at", expires)

	m.invalidateCache(ctx)
	if m.notifier != nil {
		m.notifier.NotifyBlock(stored)
	}

	return stored, nil
}

// AutoBlock upserts a correlation-sourced block with the default TTL,
// carrying the triggering composite score in the reason and as a snapshot.
func (m *Manager) AutoBlock(ctx context.Context, ip string, combinedScore float64) (*core.BlocklistEntry, error) {
	return m.Block(ctx, BlockRequest{
		IP:          ip,
		Reason:      fmt.Sprintf("Auto-blocked: threat_score=%.1f", combinedScore),
		Source:      core.BlockSourceCorrelation,
		ThreatScore: combinedScore,
	})
}

// Unblock flips every entry for the IP to inactive. Rows are kept for the
// audit trail.
func (m *Manager) Unblock(ctx context.Context, ip string) error {
	ip = core.NormalizeIP(ip)
	if !core.IsValidIP(ip) {
		return fmt.Errorf("invalid ip address %q", ip)
	}

	n, err := m.store.DeactivateBlocks(ctx, ip)
	if err != nil {
		return fmt.Errorf("failed to unblock %s: %w", ip, err)
	}

	m.logger.Infow("IP unblocked", "ip", ip, "entries", n)
	m.invalidateCache(ctx)
	if m.notifier != nil {
		m.notifier.NotifyUnblock(ip)
	}
	return nil
}

// ListActive returns the entries currently blocking, applying the lazy
// expiry check: active and either unexpired or without an expiry. There is
// no background reaper, so this filter is the single source of truth for
// what counts as blocked. The unscoped list is served from cache when
// available since every agent polls it.
func (m *Manager) ListActive(ctx context.Context, agentID string) ([]core.BlocklistEntry, error) {
	now := time.Now().UTC()

	if agentID == "" && m.cache != nil {
		var cached []core.BlocklistEntry
		if found, err := m.cache.Get(ctx, core.CacheKeyActiveBlocklist, &cached); err == nil && found {
			return filterActive(cached, now), nil
		}
	}

	entries, err := m.store.ListBlocks(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocks: %w", err)
	}

	if agentID == "" && m.cache != nil {
		if err := m.cache.Set(ctx, core.CacheKeyActiveBlocklist, entries, cacheTTL); err != nil {
			m.logger.Warnw("Failed to cache active blocklist", "error", err)
		}
	}

	return filterActive(entries, now), nil
}

// CountActive returns how many entries are currently blocking
func (m *Manager) CountActive(ctx context.Context) (int64, error) {
	count, err := m.store.CountActiveBlocks(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to count active blocks: %w", err)
	}
	return count, nil
}

func filterActive(entries []core.BlocklistEntry, now time.Time) []core.BlocklistEntry {
	active := make([]core.BlocklistEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsActive(now) {
			active = append(active, e)
		}
	}
	return active
}

func (m *Manager) invalidateCache(ctx context.Context) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Delete(ctx, core.CacheKeyActiveBlocklist); err != nil {
		m.logger.Warnw("Failed to invalidate blocklist cache", "error", err)
	}
}
