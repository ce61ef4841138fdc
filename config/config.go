package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Tickerflow TickerflowConfig `yaml:"tickerflow"`
	Channels   ChannelsConfig   `yaml:"channels"`
	Engine     EngineConfig     `yaml:"engine"`
	Reconnect  ReconnectConfig  `yaml:"reconnect"`
	History    HistoryConfig    `yaml:"history"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type TickerflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// Duration accepts YAML scalars in time.ParseDuration form, e.g. "500ms"
// or "1m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped standard library duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type ChannelsConfig struct {
	RawBuffer   int `yaml:"raw_buffer"`
	TickBuffer  int `yaml:"tick_buffer"`
	EventBuffer int `yaml:"event_buffer"`
}

type EngineConfig struct {
	DefaultSubscriptions int      `yaml:"default_subscriptions"`
	CacheMaxEntries      int      `yaml:"cache_max_entries"`
	ArbitrageInterval    Duration `yaml:"arbitrage_interval"`
	ArbitrageThreshold   float64  `yaml:"arbitrage_threshold_pct"`
}

type ReconnectConfig struct {
	MinDelay Duration `yaml:"min_delay"`
	MaxDelay Duration `yaml:"max_delay"`
	Factor   float64  `yaml:"factor"`
	Jitter   bool     `yaml:"jitter"`
}

type HistoryConfig struct {
	Timeout      Duration `yaml:"timeout"`
	DefaultLimit int      `yaml:"default_limit"`
}

type MetricsConfig struct {
	CloudWatch bool   `yaml:"cloudwatch"`
	Region     string `yaml:"region"`
	Namespace  string `yaml:"namespace"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

// envPattern matches ${VAR} placeholders in the raw YAML document.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv substitutes ${VAR} placeholders with environment values before
// the document is parsed. Unset variables expand to the empty string.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(expandEnv(data), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Default returns the configuration used when fields are omitted from the
// YAML document.
func Default() *Config {
	return &Config{
		Tickerflow: TickerflowConfig{Name: "tickerflow", Version: "dev"},
		Channels: ChannelsConfig{
			RawBuffer:   1000,
			TickBuffer:  1000,
			EventBuffer: 256,
		},
		Engine: EngineConfig{
			DefaultSubscriptions: 3,
			CacheMaxEntries:      10000,
			ArbitrageInterval:    Duration(time.Second),
			ArbitrageThreshold:   0.5,
		},
		Reconnect: ReconnectConfig{
			MinDelay: Duration(time.Second),
			MaxDelay: Duration(time.Minute),
			Factor:   2,
			Jitter:   true,
		},
		History: HistoryConfig{
			Timeout:      Duration(10 * time.Second),
			DefaultLimit: 100,
		},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Tickerflow.Name == "" {
		return fmt.Errorf("tickerflow.name is required")
	}
	if cfg.Tickerflow.Version == "" {
		return fmt.Errorf("tickerflow.version is required")
	}

	if cfg.Channels.RawBuffer <= 0 {
		return fmt.Errorf("channels.raw_buffer must be greater than 0")
	}
	if cfg.Channels.TickBuffer <= 0 {
		return fmt.Errorf("channels.tick_buffer must be greater than 0")
	}

	if cfg.Engine.DefaultSubscriptions <= 0 {
		return fmt.Errorf("engine.default_subscriptions must be greater than 0")
	}
	if cfg.Engine.CacheMaxEntries <= 0 {
		return fmt.Errorf("engine.cache_max_entries must be greater than 0")
	}
	if cfg.Engine.ArbitrageInterval <= 0 {
		return fmt.Errorf("engine.arbitrage_interval must be greater than 0")
	}
	if cfg.Engine.ArbitrageThreshold <= 0 {
		return fmt.Errorf("engine.arbitrage_threshold_pct must be greater than 0")
	}

	if cfg.Reconnect.MinDelay <= 0 || cfg.Reconnect.MaxDelay < cfg.Reconnect.MinDelay {
		return fmt.Errorf("reconnect delays are invalid")
	}
	if cfg.Reconnect.Factor < 1 {
		return fmt.Errorf("reconnect.factor must be at least 1")
	}

	if cfg.Metrics.CloudWatch && cfg.Metrics.Namespace == "" {
		return fmt.Errorf("metrics.namespace is required when CloudWatch is enabled")
	}

	return nil
}
