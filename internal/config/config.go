// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"firestige.xyz/dissector/internal/core"
)

// Config represents the top-level configuration.
// Maps to the `dissector:` root key in YAML.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Source  SourceConfig  `mapstructure:"source"`
	Decoder DecoderConfig `mapstructure:"decoder"`
	Output  OutputConfig  `mapstructure:"output"`
	Limit   uint64        `mapstructure:"limit"` // Max frames per run, 0 = unlimited
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level"`  // debug / info / warn / error
	Format  string           `mapstructure:"format"` // json / text
	Pattern string           `mapstructure:"pattern"`
	Time    string           `mapstructure:"time"`
	Outputs LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains structured log output destinations.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`  // MB
	MaxAgeDays int  `mapstructure:"max_age_days"` // Days
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Source ───

// Source types.
const (
	SourceFile     = "file"
	SourcePcap     = "pcap"
	SourceAFPacket = "afpacket"
)

// SourceConfig selects and tunes the frame source.
type SourceConfig struct {
	Type        string `mapstructure:"type"`   // file / pcap / afpacket
	Path        string `mapstructure:"path"`   // Capture file, type=file
	Device      string `mapstructure:"device"` // Interface name, live types
	SnapLen     int    `mapstructure:"snap_len"`
	Promiscuous bool   `mapstructure:"promiscuous"`
	Timeout     string `mapstructure:"timeout"` // Read timeout for live capture, e.g. "500ms"
	BPFFilter   string `mapstructure:"bpf_filter"`

	// Options carries source-specific settings, decoded by the source itself.
	Options map[string]any `mapstructure:"options"`
}

// ReadTimeout returns the parsed Timeout, or d when unset.
func (s SourceConfig) ReadTimeout(d time.Duration) time.Duration {
	if s.Timeout == "" {
		return d
	}
	t, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return d
	}
	return t
}

// ─── Decoder ───

// DecoderConfig tunes the frame decoder.
type DecoderConfig struct {
	SkipIPv4Options bool `mapstructure:"skip_ipv4_options"`
}

// ─── Output ───

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Output sink types.
const (
	OutputConsole = "console"
	OutputKafka   = "kafka"
)

// OutputConfig controls where and how dissections are written.
type OutputConfig struct {
	Type       string      `mapstructure:"type"`   // console / kafka
	Format     string      `mapstructure:"format"` // text / json / yaml, console only
	PayloadHex bool        `mapstructure:"payload_hex"`
	Kafka      KafkaConfig `mapstructure:"kafka"`
}

// KafkaConfig configures the Kafka sink. Records are always JSON.
type KafkaConfig struct {
	Brokers      []string `mapstructure:"brokers"`
	Topic        string   `mapstructure:"topic"`
	BatchSize    int      `mapstructure:"batch_size"`
	BatchTimeout string   `mapstructure:"batch_timeout"` // e.g. "100ms"
	Compression  string   `mapstructure:"compression"`   // none / gzip / snappy / lz4 / zstd
	MaxAttempts  int      `mapstructure:"max_attempts"`
}

// Timeout returns the parsed BatchTimeout, or d when unset.
func (k KafkaConfig) Timeout(d time.Duration) time.Duration {
	if k.BatchTimeout == "" {
		return d
	}
	t, err := time.ParseDuration(k.BatchTimeout)
	if err != nil {
		return d
	}
	return t
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `dissector: ...`.
type configRoot struct {
	Dissector Config `mapstructure:"dissector"`
}

// Load loads configuration from file. An empty path yields the defaults,
// still subject to environment overrides.
// The YAML file uses `dissector:` as root key; env vars use the DISSECTOR_ prefix
// (e.g., DISSECTOR_LOG_LEVEL).
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `dissector.` key prefix maps to `DISSECTOR_` through the key replacer
	// (e.g., key "dissector.log.level" → env "DISSECTOR_LOG_LEVEL").
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Dissector

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		panic(fmt.Sprintf("config: defaults do not decode: %v", err))
	}
	cfg := root.Dissector
	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		panic(fmt.Sprintf("config: defaults do not validate: %v", err))
	}
	return &cfg
}

// setDefaults sets default values for configuration.
// All keys use "dissector." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("dissector.log.level", "info")
	v.SetDefault("dissector.log.format", "text")
	v.SetDefault("dissector.log.pattern", "%time [%level] %component %caller: %msg %field\n")
	v.SetDefault("dissector.log.time", "2006-01-02 15:04:05.000")
	v.SetDefault("dissector.log.outputs.file.enabled", false)
	v.SetDefault("dissector.log.outputs.file.path", "/var/log/dissector/dissector.log")
	v.SetDefault("dissector.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("dissector.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("dissector.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("dissector.log.outputs.file.rotation.compress", true)

	// Metrics defaults
	v.SetDefault("dissector.metrics.enabled", false)
	v.SetDefault("dissector.metrics.listen", ":9091")
	v.SetDefault("dissector.metrics.path", "/metrics")

	// Source defaults
	v.SetDefault("dissector.source.type", SourceFile)
	v.SetDefault("dissector.source.snap_len", 65535)
	v.SetDefault("dissector.source.promiscuous", true)
	v.SetDefault("dissector.source.timeout", "500ms")

	// Decoder defaults
	v.SetDefault("dissector.decoder.skip_ipv4_options", false)

	// Output defaults
	v.SetDefault("dissector.output.type", OutputConsole)
	v.SetDefault("dissector.output.format", FormatText)
	v.SetDefault("dissector.output.kafka.batch_size", 100)
	v.SetDefault("dissector.output.kafka.batch_timeout", "100ms")
	v.SetDefault("dissector.output.kafka.compression", "snappy")
	v.SetDefault("dissector.output.kafka.max_attempts", 3)
	v.SetDefault("dissector.output.payload_hex", false)

	v.SetDefault("dissector.limit", 0)
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
// Errors wrap core.ErrConfigInvalid.
func (cfg *Config) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return invalid("invalid log level: %s (must be debug/info/warn/error)", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return invalid("invalid log format: %s (must be json/text)", cfg.Log.Format)
	}
	if cfg.Log.Outputs.File.Enabled && cfg.Log.Outputs.File.Path == "" {
		return invalid("log.outputs.file.path is required when file output is enabled")
	}

	// ── Metrics ──
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return invalid("metrics.listen is required when metrics.enabled=true")
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	// ── Source ──
	switch cfg.Source.Type {
	case SourceFile:
		// Path may still come from the command line; checked when the source opens.
	case SourcePcap, SourceAFPacket:
		// Device likewise.
	default:
		return invalid("unsupported source.type: %s (must be file/pcap/afpacket)", cfg.Source.Type)
	}
	if cfg.Source.SnapLen <= 0 {
		cfg.Source.SnapLen = 65535
	}
	if cfg.Source.Timeout != "" {
		if _, err := time.ParseDuration(cfg.Source.Timeout); err != nil {
			return invalid("invalid source.timeout %q: %v", cfg.Source.Timeout, err)
		}
	}

	// ── Output ──
	switch cfg.Output.Format {
	case FormatText, FormatJSON, FormatYAML:
	default:
		return invalid("invalid output.format: %s (must be text/json/yaml)", cfg.Output.Format)
	}
	switch cfg.Output.Type {
	case "":
		cfg.Output.Type = OutputConsole
	case OutputConsole:
	case OutputKafka:
		k := &cfg.Output.Kafka
		if len(k.Brokers) == 0 {
			return invalid("output.kafka.brokers is required when output.type=kafka")
		}
		if k.Topic == "" {
			return invalid("output.kafka.topic is required when output.type=kafka")
		}
		switch k.Compression {
		case "", "none", "gzip", "snappy", "lz4", "zstd":
		default:
			return invalid("invalid output.kafka.compression: %s (must be none/gzip/snappy/lz4/zstd)", k.Compression)
		}
		if k.BatchTimeout != "" {
			if _, err := time.ParseDuration(k.BatchTimeout); err != nil {
				return invalid("invalid output.kafka.batch_timeout %q: %v", k.BatchTimeout, err)
			}
		}
		if k.BatchSize <= 0 {
			k.BatchSize = 100
		}
		if k.MaxAttempts <= 0 {
			k.MaxAttempts = 3
		}
	default:
		return invalid("unsupported output.type: %s (must be console/kafka)", cfg.Output.Type)
	}

	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", core.ErrConfigInvalid, fmt.Sprintf(format, args...))
}
