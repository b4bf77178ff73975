package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"snsm/core"
	"snsm/util/goroutine"

	"go.uber.org/zap"
)

// maxConsecutiveFailures is how many webhook failures in a row suspend
// delivery for the cooldown window
const maxConsecutiveFailures = 3

// failureCooldown is how long delivery stays suspended after repeated
// failures
const failureCooldown = time.Minute

// WebhookNotifier posts block directory changes to an external webhook.
// Delivery is asynchronous and best-effort: a dead webhook must never slow
// down or fail the block path, so after a few consecutive failures the
// notifier goes quiet for a cooldown instead of hammering the endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *zap.SugaredLogger

	mu           sync.Mutex
	failures     int
	suspendUntil time.Time
}

// NewWebhookNotifier creates a notifier posting to url. Returns nil when
// url is empty so callers can pass the result straight to the blocklist
// manager.
func NewWebhookNotifier(url string, timeout time.Duration, logger *zap.SugaredLogger) *WebhookNotifier {
	if url == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type blockEvent struct {
	Event       string     `json:"event"`
	IPAddress   string     `json:"ip_address"`
	Reason      string     `json:"reason,omitempty"`
	Source      string     `json:"source,omitempty"`
	ThreatScore float64    `json:"threat_score,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}

// NotifyBlock announces a new or refreshed block
func (n *WebhookNotifier) NotifyBlock(entry *core.BlocklistEntry) {
	n.deliver(blockEvent{
		Event:       "blocked",
		IPAddress:   entry.IPAddress,
		Reason:      entry.Reason,
		Source:      string(entry.Source),
		ThreatScore: entry.ThreatScore,
		ExpiresAt:   entry.ExpiresAt,
		Timestamp:   time.Now().UTC(),
	})
}

// NotifyUnblock announces a deactivated block
func (n *WebhookNotifier) NotifyUnblock(ip string) {
	n.deliver(blockEvent{
		Event:     "unblocked",
		IPAddress: ip,
		Timestamp: time.Now().UTC(),
	})
}

func (n *WebhookNotifier) deliver(event blockEvent) {
	if n.suspended() {
		return
	}

	goroutine.Go("webhook-notify", n.logger, func() {
		if err := n.post(event); err != nil {
			n.recordFailure(err)
			return
		}
		n.recordSuccess()
	})
}

func (n *WebhookNotifier) post(event blockEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	resp, err := n.client.Post(n.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook post failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (n *WebhookNotifier) suspended() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return time.Now().Before(n.suspendUntil)
}

func (n *WebhookNotifier) recordFailure(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.failures++
	n.logger.Warnw("Webhook notification failed",
		"error", err,
		"consecutive_failures", n.failures)

	if n.failures >= maxConsecutiveFailures {
		n.suspendUntil = time.Now().Add(failureCooldown)
		n.failures = 0
		n.logger.Warnw("Webhook delivery suspended",
			"until", n.suspendUntil)
	}
}

func (n *WebhookNotifier) recordSuccess() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = 0
}
