package config

import "time"

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the ambient, operator-facing configuration: logging, metrics,
// and storage/runtime defaults. It is distinct from JobConfig (job.go),
// which is the declarative per-job artifact the engine actually runs.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"    validate:"required"`
	Metrics    MetricsConfig    `mapstructure:"metrics"    yaml:"metrics"    validate:"required"`
	Sink       SinkConfig       `mapstructure:"sink"       yaml:"sink"       validate:"required"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint" yaml:"checkpoint"`
	Bloom      BloomConfig      `mapstructure:"bloom"      yaml:"bloom"      validate:"required"`
	Debug      DebugConfig      `mapstructure:"debug"      yaml:"debug"`
	Defaults   RunDefaults      `mapstructure:"defaults"   yaml:"defaults"`
}

// DebugConfig controls where parse/extract failure HTML snapshots land
// (§7: "A debug HTML snapshot is saved to debug/fail_<ts>_<hash>.html").
type DebugConfig struct {
	Dir     string `mapstructure:"dir"     yaml:"dir"`
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
}

// LoggingConfig controls structured logging (slog).
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"  validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"` // text | json
	Output string `mapstructure:"output" yaml:"output"`                                     // stderr | stdout
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"    validate:"omitempty,min=1,max=65535"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// SinkConfig selects and configures the output backend.
type SinkConfig struct {
	Type       string `mapstructure:"type"        yaml:"type"        validate:"required,oneof=jsonl sqlite postgres mongo"`
	OutputDir  string `mapstructure:"output_dir"  yaml:"output_dir"`
	BatchSize  int    `mapstructure:"batch_size"  yaml:"batch_size"  validate:"min=1"`
	DSN        string `mapstructure:"dsn"         yaml:"dsn"`
	Database   string `mapstructure:"database"    yaml:"database"`
	Collection string `mapstructure:"collection"  yaml:"collection"`
}

// CheckpointConfig controls the WAL-backed checkpoint store location.
type CheckpointConfig struct {
	Dir     string `mapstructure:"dir"     yaml:"dir"`
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
}

// BloomConfig controls the seen-set geometry and persistence directory.
type BloomConfig struct {
	Dir           string  `mapstructure:"dir"             yaml:"dir"`
	ExpectedItems uint    `mapstructure:"expected_items"  yaml:"expected_items"  validate:"min=1"`
	FalsePositive float64 `mapstructure:"false_positive"  yaml:"false_positive"  validate:"gt=0,lt=1"`
	RecentLRUSize int     `mapstructure:"recent_lru_size" yaml:"recent_lru_size" validate:"min=1"`
}

// RunDefaults seed JobConfig fields that a job file leaves unset.
type RunDefaults struct {
	Concurrency    int           `mapstructure:"concurrency"     yaml:"concurrency"`
	RateLimit      int           `mapstructure:"rate_limit"      yaml:"rate_limit"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	MinDelay       float64       `mapstructure:"min_delay"       yaml:"min_delay"`
	MaxDelay       float64       `mapstructure:"max_delay"       yaml:"max_delay"`
	MaxNestedURLs  int           `mapstructure:"max_nested_urls" yaml:"max_nested_urls"`
	UserAgents     []string      `mapstructure:"user_agents"     yaml:"user_agents"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "text", Output: "stderr"},
		Metrics: MetricsConfig{Enabled: false, Port: 9090, Path: "/metrics"},
		Sink: SinkConfig{
			Type:      "jsonl",
			OutputDir: "./output",
			BatchSize: 10,
		},
		Checkpoint: CheckpointConfig{Dir: "./.webscrape_checkpoints", Enabled: true},
		Debug:      DebugConfig{Dir: "./debug", Enabled: true},
		Bloom: BloomConfig{
			Dir:           "./.webscrape_bloom",
			ExpectedItems: 100000,
			FalsePositive: 0.001,
			RecentLRUSize: 1000,
		},
		Defaults: RunDefaults{
			Concurrency:    10,
			RateLimit:      5,
			RequestTimeout: 15 * time.Second,
			MinDelay:       1.0,
			MaxDelay:       3.0,
			MaxNestedURLs:  20,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			},
		},
	}
}
