package config

// Configuration loading and validation for diagdecode

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tonylturner/diagdecode/internal/errors"
	"github.com/tonylturner/diagdecode/internal/logging"
)

// DefaultPath is where the CLI looks for configuration when --config is not given.
const DefaultPath = "diagdecode.yaml"

const (
	defaultDoIPPort = 13400
	maxWorkers      = 256
)

// Output formats understood by the report renderers.
const (
	FormatText = "text"
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// CaptureConfig controls pcap extraction and batch decoding.
type CaptureConfig struct {
	Port    int `yaml:"port"`    // TCP port carrying DoIP
	Workers int `yaml:"workers"` // decode worker goroutines; 0 means one per CPU
}

// OutputConfig controls how decode results are rendered.
type OutputConfig struct {
	Format string `yaml:"format"` // "text", "csv", or "json"
}

// Config represents the tool configuration
type Config struct {
	SchemaPath string        `yaml:"schema_path,omitempty"`
	LogLevel   string        `yaml:"log_level"`
	LogFile    string        `yaml:"log_file,omitempty"`
	LogFormat  string        `yaml:"log_format,omitempty"` // "text" or "json"
	LogEvery   int           `yaml:"log_every,omitempty"`  // console sampling of non-error lines
	Capture    CaptureConfig `yaml:"capture"`
	Output     OutputConfig  `yaml:"output"`
}

// CreateDefaultConfig returns the configuration used when no file exists.
func CreateDefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// WriteDefaultConfig writes the default configuration to path.
func WriteDefaultConfig(path string) error {
	cfg := CreateDefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// LoadConfig loads and validates the configuration at path. When the file is
// missing and autoCreate is set, a default file is written first.
func LoadConfig(path string, autoCreate bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if !autoCreate {
				return nil, errors.WrapConfigError(
					fmt.Errorf("config file not found: %s", path),
					path,
				)
			}
			if err := WriteDefaultConfig(path); err != nil {
				return nil, fmt.Errorf("create default config: %w", err)
			}
			data, err = os.ReadFile(path)
			if err != nil {
				return nil, errors.WrapConfigError(
					fmt.Errorf("read created config file: %w", err),
					path,
				)
			}
		} else {
			return nil, errors.WrapConfigError(
				fmt.Errorf("read config file: %w", err),
				path,
			)
		}
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapConfigError(fmt.Errorf("parse YAML: %w", err), path)
	}
	applyDefaults(&cfg)

	if err := ValidateConfig(&cfg); err != nil {
		return nil, errors.WrapConfigError(fmt.Errorf("validate config: %w", err), path)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.Capture.Port == 0 {
		cfg.Capture.Port = defaultDoIPPort
	}
	if cfg.LogEvery == 0 {
		cfg.LogEvery = 1
	}
	if cfg.Capture.Workers == 0 {
		cfg.Capture.Workers = min(runtime.NumCPU(), maxWorkers)
	}
	if cfg.Output.Format == "" {
		cfg.Output.Format = FormatText
	}
	cfg.Output.Format = strings.ToLower(cfg.Output.Format)
}

// ValidateConfig validates a configuration after defaults are applied.
func ValidateConfig(cfg *Config) error {
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return fmt.Errorf("log_format must be 'text' or 'json', got %q", cfg.LogFormat)
	}
	if cfg.LogEvery < 1 {
		return fmt.Errorf("log_every must be at least 1, got %d", cfg.LogEvery)
	}
	if cfg.Capture.Port < 1 || cfg.Capture.Port > 65535 {
		return fmt.Errorf("capture.port must be between 1 and 65535, got %d", cfg.Capture.Port)
	}
	if cfg.Capture.Workers < 1 || cfg.Capture.Workers > maxWorkers {
		return fmt.Errorf("capture.workers must be between 1 and %d, got %d", maxWorkers, cfg.Capture.Workers)
	}
	if err := ValidateOutputFormat(cfg.Output.Format); err != nil {
		return fmt.Errorf("output.format: %w", err)
	}
	return nil
}

// ValidateOutputFormat reports whether format names a supported renderer.
func ValidateOutputFormat(format string) error {
	switch format {
	case FormatText, FormatCSV, FormatJSON:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (expected text, csv, json)", format)
	}
}
