package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"

	"snsm/config"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger creates the application logger with a colored console encoder.
// The returned atomic level starts at info and can be adjusted once the
// configuration has been loaded.
func InitLogger() (*zap.Logger, *zap.SugaredLogger, zap.AtomicLevel, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder // Colored levels
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder        // Readable timestamps
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder      // Short file paths

	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)

	core := zapcore.NewCore(
		consoleEncoder,
		zapcore.AddSync(os.Stdout),
		level,
	)

	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return logger, logger.Sugar(), level, nil
}

// ApplyLogLevel re-levels the logger from the loaded configuration.
func ApplyLogLevel(level zap.AtomicLevel, cfg *config.Config, sugar *zap.SugaredLogger) {
	if cfg.Logging.Level == "" {
		return
	}
	parsed, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		sugar.Warnw("Invalid log level, keeping current", "level", cfg.Logging.Level)
		return
	}
	level.SetLevel(parsed)
}

// InitConfig loads the application configuration.
func InitConfig(sugar *zap.SugaredLogger) (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load config: %v\n", err)
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if viper.ConfigFileUsed() == "" {
		sugar.Info("No config file found, using defaults and env vars")
	}

	return cfg, nil
}

// EnsureDataDirectories creates the data directory tree with restrictive
// permissions. This is a pre-flight check that runs before any service
// initialization.
func EnsureDataDirectories(cfg *config.Config, sugar *zap.SugaredLogger) error {
	dirs := []string{
		cfg.DataDir,
		filepath.Dir(cfg.Storage.SQLitePath),
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		// Verify the directory is writable before committing to it.
		probe := filepath.Join(dir, ".write_test")
		if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
			return fmt.Errorf("directory %s is not writable: %w", dir, err)
		}
		os.Remove(probe)
	}

	sugar.Infow("Data directories ready", "data_dir", cfg.DataDir)
	return nil
}
