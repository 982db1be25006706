// Package config loads formdeps runtime configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/formdeps/internal/ir"
	"github.com/roach88/formdeps/internal/logging"
)

// Config holds the CLI's runtime configuration. Command-line flags
// override file values.
type Config struct {
	LogLevel       string         `yaml:"log_level"`
	LogFormat      string         `yaml:"log_format"`
	DBPath         string         `yaml:"db_path"`
	MetricsAddr    string         `yaml:"metrics_addr"`
	CORSOrigins    []string       `yaml:"cors_origins"`
	QueueCapacity  int            `yaml:"queue_capacity"`
	MaxEventHops   int            `yaml:"max_event_hops"`
	DefaultTrigger ir.TriggerKind `yaml:"default_trigger"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML config file, applies defaults, and validates.
// Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = logging.FormatText
	}
	if c.QueueCapacity == 0 {
		c.QueueCapacity = 1024
	}
	if c.MaxEventHops == 0 {
		c.MaxEventHops = 16
	}
	if c.DefaultTrigger == "" {
		c.DefaultTrigger = ir.TriggerChange
	}
}

// Error reports every invalid setting at once.
type Error struct {
	Problems []string
}

func (e *Error) Error() string {
	return "invalid config: " + strings.Join(e.Problems, "; ")
}

func (c *Config) validate() error {
	var problems []string

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, fmt.Sprintf("log_level %q must be debug, info, warn or error", c.LogLevel))
	}
	if c.LogFormat != logging.FormatText && c.LogFormat != logging.FormatJSON {
		problems = append(problems, fmt.Sprintf("log_format %q must be text or json", c.LogFormat))
	}
	if c.QueueCapacity < 0 {
		problems = append(problems, "queue_capacity must be positive")
	}
	if c.MaxEventHops < 0 {
		problems = append(problems, "max_event_hops must be positive")
	}
	if !ir.ValidTriggers[c.DefaultTrigger] {
		problems = append(problems, fmt.Sprintf("default_trigger %q is not a trigger kind", c.DefaultTrigger))
	}

	if len(problems) > 0 {
		return &Error{Problems: problems}
	}
	return nil
}
