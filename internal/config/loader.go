package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads the ambient configuration from the config file and
// WEBSCRAPE_-prefixed environment variables. Priority (highest to lowest):
// env vars > config file > defaults; no CLI flags are bound. This is separate from LoadJob, which parses the per-job JSON
// artifact the engine actually runs.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("WEBSCRAPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("webscrape")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".webscrape"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)

	v.SetDefault("sink.type", cfg.Sink.Type)
	v.SetDefault("sink.output_dir", cfg.Sink.OutputDir)
	v.SetDefault("sink.batch_size", cfg.Sink.BatchSize)
	v.SetDefault("sink.dsn", cfg.Sink.DSN)
	v.SetDefault("sink.database", cfg.Sink.Database)
	v.SetDefault("sink.collection", cfg.Sink.Collection)

	v.SetDefault("checkpoint.dir", cfg.Checkpoint.Dir)
	v.SetDefault("checkpoint.enabled", cfg.Checkpoint.Enabled)

	v.SetDefault("bloom.dir", cfg.Bloom.Dir)
	v.SetDefault("bloom.expected_items", cfg.Bloom.ExpectedItems)
	v.SetDefault("bloom.false_positive", cfg.Bloom.FalsePositive)
	v.SetDefault("bloom.recent_lru_size", cfg.Bloom.RecentLRUSize)

	v.SetDefault("debug.dir", cfg.Debug.Dir)
	v.SetDefault("debug.enabled", cfg.Debug.Enabled)

	v.SetDefault("defaults.concurrency", cfg.Defaults.Concurrency)
	v.SetDefault("defaults.rate_limit", cfg.Defaults.RateLimit)
	v.SetDefault("defaults.request_timeout", cfg.Defaults.RequestTimeout)
	v.SetDefault("defaults.min_delay", cfg.Defaults.MinDelay)
	v.SetDefault("defaults.max_delay", cfg.Defaults.MaxDelay)
	v.SetDefault("defaults.max_nested_urls", cfg.Defaults.MaxNestedURLs)
	v.SetDefault("defaults.user_agents", cfg.Defaults.UserAgents)
}
