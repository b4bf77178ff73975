package config

import (
	"fmt"
	"net"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the SNSM backend
type Config struct {
	// DataDir is the base data directory (SNSM_DATA_DIR, default: ./data)
	DataDir string `mapstructure:"data_dir"`

	API struct {
		Host                 string   `mapstructure:"host"`
		Port                 int      `mapstructure:"port"`
		AllowedOrigins       []string `mapstructure:"allowed_origins"`
		TrustProxy           bool     `mapstructure:"trust_proxy"`
		TrustedProxyNetworks []string `mapstructure:"trusted_proxy_networks"`
		RateLimit            struct {
			RequestsPerSecond int `mapstructure:"requests_per_second"`
			Burst             int `mapstructure:"burst"`
		} `mapstructure:"rate_limit"`
	} `mapstructure:"api"`

	Storage struct {
		// SQLitePath overrides the default ${DataDir}/snsm.db location
		SQLitePath string `mapstructure:"sqlite_path"`
	} `mapstructure:"storage"`

	Redis struct {
		Enabled  bool   `mapstructure:"enabled"`
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Scoring struct {
		// AutoBlockEnabled turns correlation-triggered blocking on or off
		AutoBlockEnabled bool `mapstructure:"auto_block_enabled"`
		// AutoBlockThreshold is the combined score at or above which an IP
		// is auto-blocked; 0 means use the malicious classification cutoff
		AutoBlockThreshold float64 `mapstructure:"auto_block_threshold"`
		// BlockTTL is how long auto-issued blocks stay active
		BlockTTL time.Duration `mapstructure:"block_ttl"`
	} `mapstructure:"scoring"`

	Anomaly struct {
		EWMAAlpha      float64 `mapstructure:"ewma_alpha"`
		ZThreshold     float64 `mapstructure:"z_threshold"`
		RateMultiplier float64 `mapstructure:"rate_multiplier"`
		RateMinSamples int64   `mapstructure:"rate_min_samples"`
		// AlertThreshold is the batch average anomaly score at or above
		// which a derived alert is raised
		AlertThreshold float64 `mapstructure:"alert_threshold"`
	} `mapstructure:"anomaly"`

	Agents struct {
		// OfflineAfter is how long without a heartbeat before an agent is
		// marked offline
		OfflineAfter  time.Duration `mapstructure:"offline_after"`
		CheckInterval time.Duration `mapstructure:"check_interval"`
	} `mapstructure:"agents"`

	Notify struct {
		// WebhookURL receives block/unblock notifications; empty disables
		WebhookURL string        `mapstructure:"webhook_url"`
		Timeout    time.Duration `mapstructure:"timeout"`
	} `mapstructure:"notify"`

	Logging struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"logging"`
}

func setDefaults() {
	viper.SetDefault("data_dir", "./data")

	viper.SetDefault("api.host", "0.0.0.0")
	viper.SetDefault("api.port", 8080)
	viper.SetDefault("api.allowed_origins", []string{"http://localhost:3000"})
	viper.SetDefault("api.trust_proxy", false)
	viper.SetDefault("api.trusted_proxy_networks", []string{})
	viper.SetDefault("api.rate_limit.requests_per_second", 100)
	viper.SetDefault("api.rate_limit.burst", 200)

	viper.SetDefault("storage.sqlite_path", "") // empty = derive from data_dir

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("scoring.auto_block_enabled", true)
	viper.SetDefault("scoring.auto_block_threshold", 0.0) // 0 = malicious cutoff
	viper.SetDefault("scoring.block_ttl", time.Hour)

	viper.SetDefault("anomaly.ewma_alpha", 0.3)
	viper.SetDefault("anomaly.z_threshold", 3.0)
	viper.SetDefault("anomaly.rate_multiplier", 3.0)
	viper.SetDefault("anomaly.rate_min_samples", 10)
	viper.SetDefault("anomaly.alert_threshold", 50.0)

	viper.SetDefault("agents.offline_after", 2*time.Minute)
	viper.SetDefault("agents.check_interval", 30*time.Second)

	viper.SetDefault("notify.webhook_url", "")
	viper.SetDefault("notify.timeout", 10*time.Second)

	viper.SetDefault("logging.level", "info")
}

// loadFromEnv sets up environment variable loading
func loadFromEnv() {
	viper.SetEnvPrefix("SNSM")
	viper.AutomaticEnv()

	_ = viper.BindEnv("data_dir", "SNSM_DATA_DIR")
	_ = viper.BindEnv("storage.sqlite_path", "SNSM_SQLITE_PATH")
	_ = viper.BindEnv("api.port", "SNSM_API_PORT")
	_ = viper.BindEnv("redis.addr", "SNSM_REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "SNSM_REDIS_PASSWORD")
	_ = viper.BindEnv("notify.webhook_url", "SNSM_WEBHOOK_URL")
	_ = viper.BindEnv("logging.level", "SNSM_LOG_LEVEL")
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()
	loadFromEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, will use defaults and env vars
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	config.ResolveDataPaths()
	return &config, nil
}

func validateConfig(config *Config) error {
	if config.API.Port < 1 || config.API.Port > 65535 {
		return fmt.Errorf("invalid API port: %d", config.API.Port)
	}
	if config.API.RateLimit.RequestsPerSecond < 1 {
		return fmt.Errorf("rate limit requests_per_second must be positive")
	}
	for _, network := range config.API.TrustedProxyNetworks {
		if _, _, err := net.ParseCIDR(network); err != nil {
			return fmt.Errorf("invalid trusted proxy network %q: %w", network, err)
		}
	}
	if config.Anomaly.EWMAAlpha <= 0 || config.Anomaly.EWMAAlpha > 1 {
		return fmt.Errorf("anomaly ewma_alpha must be in (0, 1], got %f", config.Anomaly.EWMAAlpha)
	}
	if config.Anomaly.ZThreshold <= 0 {
		return fmt.Errorf("anomaly z_threshold must be positive, got %f", config.Anomaly.ZThreshold)
	}
	if config.Anomaly.RateMultiplier <= 0 {
		return fmt.Errorf("anomaly rate_multiplier must be positive, got %f", config.Anomaly.RateMultiplier)
	}
	if config.Scoring.AutoBlockThreshold < 0 || config.Scoring.AutoBlockThreshold > 100 {
		return fmt.Errorf("auto_block_threshold must be in [0, 100], got %f", config.Scoring.AutoBlockThreshold)
	}
	if config.Scoring.BlockTTL < 0 {
		return fmt.Errorf("block_ttl must not be negative")
	}
	return nil
}

// ResolveDataPaths derives unset paths from DataDir
func (c *Config) ResolveDataPaths() {
	dataDir := c.DataDir
	if dataDir == "" {
		dataDir = "./data"
	}

	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = filepath.Join(dataDir, "snsm.db")
	} else if !filepath.IsAbs(c.Storage.SQLitePath) {
		c.Storage.SQLitePath = filepath.Clean(c.Storage.SQLitePath)
	}
}
