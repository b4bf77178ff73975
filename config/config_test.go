package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestConfig returns a valid Config for testing
func newTestConfig() Config {
	var c Config
	c.DataDir = "./data"
	c.API.Host = "0.0.0.0"
	c.API.Port = 8080
	c.API.RateLimit.RequestsPerSecond = 100
	c.API.RateLimit.Burst = 200
	c.Scoring.AutoBlockEnabled = true
	c.Scoring.BlockTTL = time.Hour
	c.Anomaly.EWMAAlpha = 0.3
	c.Anomaly.ZThreshold = 3.0
	c.Anomaly.RateMultiplier = 3.0
	c.Anomaly.RateMinSamples = 10
	c.Anomaly.AlertThreshold = 50.0
	c.Agents.OfflineAfter = 2 * time.Minute
	c.Agents.CheckInterval = 30 * time.Second
	return c
}

func TestLoadConfig(t *testing.T) {
	viper.Reset()
	config, err := LoadConfig()
	require.NoError(t, err)
	assert.NotNil(t, config)

	// Check defaults
	assert.Equal(t, "0.0.0.0", config.API.Host)
	assert.Equal(t, 8080, config.API.Port)
	assert.Equal(t, 100, config.API.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, config.API.RateLimit.Burst)
	assert.False(t, config.API.TrustProxy)

	assert.False(t, config.Redis.Enabled)
	assert.Equal(t, "localhost:6379", config.Redis.Addr)

	assert.True(t, config.Scoring.AutoBlockEnabled)
	assert.Equal(t, 0.0, config.Scoring.AutoBlockThreshold)
	assert.Equal(t, time.Hour, config.Scoring.BlockTTL)

	assert.Equal(t, 0.3, config.Anomaly.EWMAAlpha)
	assert.Equal(t, 3.0, config.Anomaly.ZThreshold)
	assert.Equal(t, 3.0, config.Anomaly.RateMultiplier)
	assert.Equal(t, int64(10), config.Anomaly.RateMinSamples)
	assert.Equal(t, 50.0, config.Anomaly.AlertThreshold)

	assert.Equal(t, 2*time.Minute, config.Agents.OfflineAfter)
	assert.Equal(t, 30*time.Second, config.Agents.CheckInterval)

	assert.Equal(t, "info", config.Logging.Level)

	// SQLite path is derived from the data dir when unset
	assert.Equal(t, filepath.Join("data", "snsm.db"), config.Storage.SQLitePath)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	viper.Reset()
	t.Setenv("SNSM_API_PORT", "9090")
	t.Setenv("SNSM_DATA_DIR", "/var/lib/snsm")
	t.Setenv("SNSM_LOG_LEVEL", "debug")

	config, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, config.API.Port)
	assert.Equal(t, "/var/lib/snsm", config.DataDir)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, filepath.Join("/var/lib/snsm", "snsm.db"), config.Storage.SQLitePath)

	viper.Reset()
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "valid config",
			config:  newTestConfig(),
			wantErr: false,
		},
		{
			name: "invalid API port",
			config: func() Config {
				c := newTestConfig()
				c.API.Port = 0
				return c
			}(),
			wantErr: true,
		},
		{
			name: "API port out of range",
			config: func() Config {
				c := newTestConfig()
				c.API.Port = 99999
				return c
			}(),
			wantErr: true,
		},
		{
			name: "non-positive rate limit",
			config: func() Config {
				c := newTestConfig()
				c.API.RateLimit.RequestsPerSecond = 0
				return c
			}(),
			wantErr: true,
		},
		{
			name: "invalid trusted proxy network",
			config: func() Config {
				c := newTestConfig()
				c.API.TrustedProxyNetworks = []string{"10.0.0.0/8", "not-a-cidr"}
				return c
			}(),
			wantErr: true,
		},
		{
			name: "valid trusted proxy networks",
			config: func() Config {
				c := newTestConfig()
				c.API.TrustedProxyNetworks = []string{"10.0.0.0/8", "192.168.0.0/16"}
				return c
			}(),
			wantErr: false,
		},
		{
			name: "ewma alpha zero",
			config: func() Config {
				c := newTestConfig()
				c.Anomaly.EWMAAlpha = 0
				return c
			}(),
			wantErr: true,
		},
		{
			name: "ewma alpha above one",
			config: func() Config {
				c := newTestConfig()
				c.Anomaly.EWMAAlpha = 1.5
				return c
			}(),
			wantErr: true,
		},
		{
			name: "ewma alpha exactly one",
			config: func() Config {
				c := newTestConfig()
				c.Anomaly.EWMAAlpha = 1.0
				return c
			}(),
			wantErr: false,
		},
		{
			name: "negative z threshold",
			config: func() Config {
				c := newTestConfig()
				c.Anomaly.ZThreshold = -1
				return c
			}(),
			wantErr: true,
		},
		{
			name: "zero rate multiplier",
			config: func() Config {
				c := newTestConfig()
				c.Anomaly.RateMultiplier = 0
				return c
			}(),
			wantErr: true,
		},
		{
			name: "auto block threshold above 100",
			config: func() Config {
				c := newTestConfig()
				c.Scoring.AutoBlockThreshold = 150
				return c
			}(),
			wantErr: true,
		},
		{
			name: "negative block ttl",
			config: func() Config {
				c := newTestConfig()
				c.Scoring.BlockTTL = -time.Minute
				return c
			}(),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfig(&tt.config)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolveDataPaths(t *testing.T) {
	c := newTestConfig()
	c.DataDir = "/srv/snsm"
	c.ResolveDataPaths()
	assert.Equal(t, filepath.Join("/srv/snsm", "snsm.db"), c.Storage.SQLitePath)

	// Explicit path wins over the derived one
	c = newTestConfig()
	c.Storage.SQLitePath = "/tmp/custom.db"
	c.ResolveDataPaths()
	assert.Equal(t, "/tmp/custom.db", c.Storage.SQLitePath)

	// Empty data dir falls back to ./data
	c = newTestConfig()
	c.DataDir = ""
	c.ResolveDataPaths()
	assert.Equal(t, filepath.Join("data", "snsm.db"), c.Storage.SQLitePath)
}
