package cmd

import (
	"testing"
	"time"

	"snsm/core"

	"github.com/stretchr/testify/assert"
)

func TestFormatTimeSince(t *testing.T) {
	now := time.Now()

	assert.Equal(t, "never", formatTimeSince(time.Time{}))
	assert.Equal(t, "just now", formatTimeSince(now.Add(-10*time.Second)))
	assert.Equal(t, "5m ago", formatTimeSince(now.Add(-5*time.Minute)))
	assert.Equal(t, "3h ago", formatTimeSince(now.Add(-3*time.Hour)))
	assert.Equal(t, "2d ago", formatTimeSince(now.Add(-49*time.Hour)))
}

func TestFormatTimeUntil(t *testing.T) {
	now := time.Now()

	assert.Equal(t, "expired", formatTimeUntil(now.Add(-time.Minute)))
	assert.Equal(t, "30s", formatTimeUntil(now.Add(30*time.Second+500*time.Millisecond)))
	assert.Equal(t, "45m", formatTimeUntil(now.Add(45*time.Minute+30*time.Second)))
	assert.Equal(t, "2h30m", formatTimeUntil(now.Add(2*time.Hour+30*time.Minute+30*time.Second)))
}

func TestFormatClassification(t *testing.T) {
	// color sequences are disabled in tests, labels must survive verbatim
	assert.Contains(t, formatClassification(core.ClassificationMalicious), "malicious")
	assert.Contains(t, formatClassification(core.ClassificationSuspicious), "suspicious")
	assert.Equal(t, "benign", formatClassification(core.ClassificationBenign))
}

func TestResolveAPIBase(t *testing.T) {
	t.Setenv("SNSM_API_URL", "")
	assert.Equal(t, defaultAPIURL, resolveAPIBase(""))
	assert.Equal(t, "http://backend:9000", resolveAPIBase("http://backend:9000"))

	t.Setenv("SNSM_API_URL", "http://env-host:8081")
	assert.Equal(t, "http://env-host:8081", resolveAPIBase(""))
	// an explicit flag still wins over the environment
	assert.Equal(t, "http://backend:9000", resolveAPIBase("http://backend:9000"))
}
